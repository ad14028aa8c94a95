package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/hyperjump/docrag/internal/rag"
	"github.com/hyperjump/docrag/internal/server"
	"github.com/hyperjump/docrag/internal/storage"
	"github.com/hyperjump/docrag/internal/watcher"
)

var serveNoWatch bool

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP server",
	Long: `Starts the HTTP API. Files dropped into the configured watch
directories are indexed automatically unless --no-watch is given.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

var watchCmd = &cobra.Command{
	Use:   "watch [dir...]",
	Short: "Index files dropped into inbox directories",
	Long: `Watches directories (default: watch.directories from the config)
and indexes new or modified files once they stop changing.`,
	RunE: runWatch,
}

func init() {
	serveCmd.Flags().BoolVar(&serveNoWatch, "no-watch", false, "disable the inbox watcher")
	rootCmd.AddCommand(serveCmd, watchCmd)
}

// indexFunc adapts the service to the watcher callback.
func indexFunc(svc *rag.Service) watcher.IndexFunc {
	return func(ctx context.Context, path string) error {
		_, err := svc.SyncFile(ctx, path, nil)
		return err
	}
}

func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx, stop := signalContext(cmd.Context())
	defer stop()

	a, err := newApp(ctx, true)
	if err != nil {
		return err
	}
	defer a.Close()

	var opts []server.Option
	if sqlite, ok := a.store.(*storage.SQLiteStore); ok {
		opts = append(opts, server.WithStoreSize(sqlite.SizeBytes))
	}
	if !serveNoWatch && len(a.cfg.Watch.Directories) > 0 {
		w := watcher.New(a.cfg.Watch.Directories, a.cfg.Watch.Extensions, indexFunc(a.service), watcher.WithLogger(a.logger))
		if err := w.Start(ctx); err != nil {
			return err
		}
		defer w.Stop()
		w.SyncExistingFiles()
		opts = append(opts, server.WithWatcher(w))
	}

	srv := server.NewServer(a.service, &a.cfg.Server, a.logger, opts...)
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	a.logger.Info("Shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Stop(shutdownCtx)
}

func runWatch(cmd *cobra.Command, args []string) error {
	ctx, stop := signalContext(cmd.Context())
	defer stop()

	a, err := newApp(ctx, false)
	if err != nil {
		return err
	}
	defer a.Close()

	dirs := args
	if len(dirs) == 0 {
		dirs = a.cfg.Watch.Directories
	}
	if len(dirs) == 0 {
		return errors.New("no directories to watch: pass them as arguments or set watch.directories")
	}

	index := func(ctx context.Context, path string) error {
		id, err := a.service.SyncFile(ctx, path, nil)
		if err == nil {
			cmd.PrintErrf("Indexed %s as %s\n", path, id)
		}
		return err
	}
	w := watcher.New(dirs, a.cfg.Watch.Extensions, index, watcher.WithLogger(a.logger))
	if err := w.Start(ctx); err != nil {
		return err
	}
	defer w.Stop()
	w.SyncExistingFiles()

	cmd.PrintErrf("Watching %d directories, press Ctrl+C to stop\n", len(dirs))
	<-ctx.Done()
	a.logger.Debug("watch stopped", zap.Strings("directories", dirs))
	return nil
}
