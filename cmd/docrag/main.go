// Package main is the docrag CLI entry point.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/hyperjump/docrag/internal/cli"
	"github.com/hyperjump/docrag/internal/config"
	"github.com/hyperjump/docrag/internal/rag"
	"github.com/hyperjump/docrag/internal/storage"
	"github.com/hyperjump/docrag/pkg/utils"
)

var version = "dev"

var (
	configPath string
	debugFlag  bool
	jsonOutput bool
)

var rootCmd = &cobra.Command{
	Use:   "docrag",
	Short: "Local document retrieval for RAG",
	Long: `docrag chunks documents, builds a per-document TF-IDF index and
retrieves the passages most relevant to a question, ready to be pasted
into a language model prompt.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file path (default: ./config.yaml when present)")
	rootCmd.PersistentFlags().BoolVar(&debugFlag, "debug", false, "enable debug logging")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "output as JSON")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// loadConfig resolves the configuration for a command run. An explicit path
// must exist. Without one, config.yaml in the working directory is used when
// present, otherwise defaults. .env and DOCRAG_* variables are applied last.
func loadConfig(path string) (*config.Config, string, error) {
	if err := config.LoadDotEnv(); err != nil {
		return nil, "", err
	}
	var (
		cfg *config.Config
		err error
	)
	switch {
	case path != "":
		cfg, err = config.Load(path)
	default:
		path = "config.yaml"
		if cwd, cwdErr := os.Getwd(); cwdErr == nil {
			path = filepath.Join(cwd, path)
		}
		cfg, err = config.Load(path)
		if errors.Is(err, os.ErrNotExist) {
			cfg, path, err = config.Default(), "", nil
		}
	}
	if err != nil {
		return nil, "", err
	}
	if err := config.ApplyEnv(cfg); err != nil {
		return nil, "", err
	}
	return cfg, path, nil
}

// app bundles what a command needs.
type app struct {
	cfg     *config.Config
	logger  *zap.Logger
	store   storage.Store
	service *rag.Service
}

func (a *app) Close() {
	if a.store != nil {
		_ = a.store.Close()
	}
	_ = a.logger.Sync()
}

// newApp loads configuration, opens the store and builds the service.
// server selects the JSON server logger instead of the console logger.
func newApp(ctx context.Context, server bool) (*app, error) {
	cfg, resolved, err := loadConfig(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	debug := cfg.Debug || debugFlag

	var logger *zap.Logger
	if server {
		logger, err = utils.NewLogger(debug)
	} else {
		logger, err = utils.NewCLILogger(debug)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}
	logger.Debug("config loaded",
		zap.String("config_path", resolved),
		zap.String("driver", cfg.Storage.Driver),
		zap.Bool("debug", debug),
	)

	store, err := storage.Open(cfg.Storage)
	if err != nil {
		return nil, fmt.Errorf("failed to open storage: %w", err)
	}
	if err := store.Initialize(ctx); err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}

	svc := rag.NewService(store, cfg.RAG, rag.WithLogger(logger))
	return &app{cfg: cfg, logger: logger, store: store, service: svc}, nil
}

func outputFormat() cli.OutputFormat {
	if jsonOutput {
		return cli.OutputJSON
	}
	return cli.OutputText
}
