// Package watcher indexes files dropped into inbox directories.
package watcher

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/hyperjump/docrag/internal/rag"
)

const defaultDebounce = 400 * time.Millisecond

// ErrStopped is returned when starting a watcher that has been stopped.
var ErrStopped = errors.New("watcher stopped")

// IndexFunc indexes one file. An error wrapping rag.ErrBusy re-queues the file.
type IndexFunc func(ctx context.Context, path string) error

// Watcher watches inbox directories recursively and indexes created or
// modified files once their events settle.
type Watcher struct {
	dirs       []string
	extensions []string
	index      IndexFunc
	debounce   time.Duration
	logger     *zap.Logger

	mu       sync.Mutex
	fsw      *fsnotify.Watcher
	ctx      context.Context
	pending  map[string]*time.Timer
	started  bool
	stopped  bool
	done     chan struct{}
	stopOnce sync.Once
}

// Option configures a Watcher.
type Option func(*Watcher)

// WithLogger sets the logger. Defaults to a no-op logger.
func WithLogger(l *zap.Logger) Option {
	return func(w *Watcher) { w.logger = l }
}

// WithDebounce sets how long a file must be quiet before it is indexed, and
// the delay before a busy file is retried.
func WithDebounce(d time.Duration) Option {
	return func(w *Watcher) { w.debounce = d }
}

// New creates a watcher over dirs. extensions filters file names
// case-insensitively, with or without the leading dot; empty accepts all.
func New(dirs, extensions []string, index IndexFunc, opts ...Option) *Watcher {
	w := &Watcher{
		dirs:       dirs,
		extensions: extensions,
		index:      index,
		debounce:   defaultDebounce,
		logger:     zap.NewNop(),
		pending:    make(map[string]*time.Timer),
		done:       make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Start creates missing directories, begins watching and returns. The
// watcher runs until ctx is cancelled or Stop is called, and cannot be
// restarted afterwards.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.stopped {
		return ErrStopped
	}
	if w.started {
		return nil
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	for _, dir := range w.dirs {
		if err := os.MkdirAll(dir, 0755); err != nil {
			_ = fsw.Close()
			return err
		}
		if err := addTree(fsw, dir); err != nil {
			_ = fsw.Close()
			return err
		}
	}
	w.fsw = fsw
	w.ctx = ctx
	w.started = true
	w.logger.Info("watching inbox", zap.Strings("directories", w.dirs), zap.Strings("extensions", w.extensions))
	go w.run(ctx, fsw)
	return nil
}

func addTree(fsw *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil || !d.IsDir() {
			return err
		}
		return fsw.Add(path)
	})
}

func (w *Watcher) run(ctx context.Context, fsw *fsnotify.Watcher) {
	for {
		select {
		case <-ctx.Done():
			w.Stop()
			return
		case <-w.done:
			return
		case ev, ok := <-fsw.Events:
			if !ok {
				return
			}
			w.handleEvent(ev)
		case err, ok := <-fsw.Errors:
			if !ok {
				return
			}
			w.logger.Warn("watcher error", zap.Error(err))
		}
	}
}

func (w *Watcher) handleEvent(ev fsnotify.Event) {
	path := ev.Name
	w.logger.Debug("watcher event", zap.String("op", ev.Op.String()), zap.String("path", path))
	switch {
	case ev.Has(fsnotify.Create) || ev.Has(fsnotify.Write):
		info, err := os.Stat(path)
		if err != nil {
			return
		}
		if info.IsDir() {
			w.handleNewDirectory(path)
			return
		}
		if w.accepts(path) {
			w.schedule(path)
		}
	case ev.Has(fsnotify.Remove) || ev.Has(fsnotify.Rename):
		w.cancel(path)
	}
}

// handleNewDirectory watches a directory created inside an inbox and queues
// the files it already contains.
func (w *Watcher) handleNewDirectory(dir string) {
	w.mu.Lock()
	fsw := w.fsw
	w.mu.Unlock()
	if fsw == nil {
		return
	}
	if err := addTree(fsw, dir); err != nil {
		w.logger.Warn("failed to watch directory", zap.String("path", dir), zap.Error(err))
	}
	w.queueExisting(dir)
}

func (w *Watcher) accepts(path string) bool {
	return matchExtension(path, w.extensions)
}

func matchExtension(path string, extensions []string) bool {
	if len(extensions) == 0 {
		return true
	}
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")
	for _, e := range extensions {
		if strings.TrimPrefix(strings.ToLower(e), ".") == ext {
			return true
		}
	}
	return false
}

// schedule (re)starts the debounce timer for path.
func (w *Watcher) schedule(path string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.started {
		return
	}
	if t, ok := w.pending[path]; ok {
		t.Stop()
	}
	w.pending[path] = time.AfterFunc(w.debounce, func() { w.fire(path) })
}

func (w *Watcher) cancel(path string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if t, ok := w.pending[path]; ok {
		t.Stop()
		delete(w.pending, path)
	}
}

func (w *Watcher) fire(path string) {
	w.mu.Lock()
	delete(w.pending, path)
	ctx, started := w.ctx, w.started
	w.mu.Unlock()
	if !started || ctx.Err() != nil {
		return
	}

	err := w.index(ctx, path)
	switch {
	case err == nil:
		w.logger.Info("indexed file", zap.String("path", path))
	case errors.Is(err, rag.ErrBusy):
		w.logger.Debug("indexer busy, retrying", zap.String("path", path), zap.Duration("delay", w.debounce))
		w.schedule(path)
	default:
		w.logger.Error("failed to index file", zap.String("path", path), zap.Error(err))
	}
}

// SyncExistingFiles queues every matching file already present in the inbox
// directories. Call it after Start.
func (w *Watcher) SyncExistingFiles() {
	for _, dir := range w.dirs {
		w.queueExisting(dir)
	}
}

func (w *Watcher) queueExisting(root string) {
	_ = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		if w.accepts(path) {
			w.schedule(path)
		}
		return nil
	})
}

// Directories returns the watched inbox directories.
func (w *Watcher) Directories() []string {
	return append([]string(nil), w.dirs...)
}

// Stop stops watching and drops pending files.
func (w *Watcher) Stop() {
	w.mu.Lock()
	if !w.started {
		w.mu.Unlock()
		return
	}
	for path, t := range w.pending {
		t.Stop()
		delete(w.pending, path)
	}
	_ = w.fsw.Close()
	w.fsw = nil
	w.started = false
	w.stopped = true
	w.mu.Unlock()
	w.stopOnce.Do(func() { close(w.done) })
}
