// Package watch hands HTML files dropped into an inbox directory to a handler.
package watch

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// DefaultDebounce is how long a file must stay quiet before it is handled.
const DefaultDebounce = 300 * time.Millisecond

// Handler processes one inbox file. The file is removed when it returns nil.
type Handler func(ctx context.Context, path string) error

// Watcher watches a single directory, not its subdirectories.
type Watcher struct {
	dir      string
	handler  Handler
	logger   *zap.Logger
	debounce time.Duration
	watcher  *fsnotify.Watcher

	mu     sync.Mutex
	timers map[string]*time.Timer
	ready  chan string
	done   chan struct{}
}

// New creates dir when missing and starts watching it. Events are only
// handled once Run is called.
func New(dir string, handler Handler, logger *zap.Logger) (*Watcher, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create inbox %s: %w", dir, err)
	}
	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}
	if err := fsWatcher.Add(dir); err != nil {
		fsWatcher.Close()
		return nil, fmt.Errorf("failed to watch %s: %w", dir, err)
	}
	return &Watcher{
		dir:      dir,
		handler:  handler,
		logger:   logger.With(zap.String("inbox", dir)),
		debounce: DefaultDebounce,
		watcher:  fsWatcher,
		timers:   make(map[string]*time.Timer),
		ready:    make(chan string, 16),
		done:     make(chan struct{}),
	}, nil
}

// SetDebounce changes the quiet period. Call it before Run.
func (w *Watcher) SetDebounce(d time.Duration) {
	w.debounce = d
}

// Run handles files already in the inbox, then every new or rewritten one,
// until ctx is done. It closes the underlying watcher on return.
func (w *Watcher) Run(ctx context.Context) error {
	defer w.stop()

	entries, err := os.ReadDir(w.dir)
	if err != nil {
		return fmt.Errorf("failed to read inbox: %w", err)
	}
	for _, entry := range entries {
		if !entry.IsDir() && isHTML(entry.Name()) {
			w.schedule(filepath.Join(w.dir, entry.Name()))
		}
	}

	w.logger.Info("watching inbox")
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case event, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			if event.Op&(fsnotify.Create|fsnotify.Write) != 0 && isHTML(event.Name) {
				w.schedule(event.Name)
			}

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("watch error", zap.Error(err))

		case path := <-w.ready:
			w.handle(ctx, path)
		}
	}
}

// schedule (re)starts the debounce timer of path.
func (w *Watcher) schedule(path string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if timer, ok := w.timers[path]; ok {
		timer.Reset(w.debounce)
		return
	}
	w.timers[path] = time.AfterFunc(w.debounce, func() {
		w.mu.Lock()
		delete(w.timers, path)
		w.mu.Unlock()
		select {
		case w.ready <- path:
		case <-w.done:
		}
	})
}

func (w *Watcher) handle(ctx context.Context, path string) {
	if _, err := os.Stat(path); err != nil {
		w.logger.Debug("inbox file vanished", zap.String("path", path))
		return
	}
	if err := w.handler(ctx, path); err != nil {
		w.logger.Error("failed to handle inbox file", zap.String("path", path), zap.Error(err))
		return
	}
	if err := os.Remove(path); err != nil {
		w.logger.Warn("failed to remove inbox file", zap.String("path", path), zap.Error(err))
		return
	}
	w.logger.Info("inbox file handled", zap.String("path", path))
}

func (w *Watcher) stop() {
	close(w.done)
	w.mu.Lock()
	for path, timer := range w.timers {
		timer.Stop()
		delete(w.timers, path)
	}
	w.mu.Unlock()
	w.watcher.Close()
}

func isHTML(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".html", ".htm":
		return true
	}
	return false
}
