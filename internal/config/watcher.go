package config

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// defaultQuietWindow is how long the file must stay unchanged before a
// reload fires. Editor saves arrive as bursts of events (truncate, write,
// chmod, rename-into-place); reloading on the first one can read a
// half-written file.
const defaultQuietWindow = 250 * time.Millisecond

// Watcher reloads the config file when it changes on disk and hands each
// valid new configuration to the apply callback. A reload that fails to
// parse or validate is logged and dropped; the previous configuration
// stays in effect.
type Watcher struct {
	path  string
	apply func(*Config)
	quiet time.Duration
	fsw   *fsnotify.Watcher
	stop  chan struct{}
	once  sync.Once

	mu      sync.RWMutex
	current *Config
}

// WatcherOption customizes a Watcher.
type WatcherOption func(*Watcher)

// WithQuietWindow overrides the debounce interval between the last
// filesystem event and the reload.
func WithQuietWindow(d time.Duration) WatcherOption {
	return func(w *Watcher) {
		if d > 0 {
			w.quiet = d
		}
	}
}

// NewWatcher loads the config at path and starts watching it for changes.
// The watch is on the containing directory, not the file itself, because
// most editors replace the file on save and an inode watch would go stale
// after the first write.
func NewWatcher(path string, apply func(*Config), opts ...WatcherOption) (*Watcher, error) {
	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create config watcher: %w", err)
	}
	if err := fsw.Add(filepath.Dir(path)); err != nil {
		_ = fsw.Close()
		return nil, fmt.Errorf("watch config directory: %w", err)
	}

	w := &Watcher{
		path:    path,
		apply:   apply,
		quiet:   defaultQuietWindow,
		fsw:     fsw,
		stop:    make(chan struct{}),
		current: cfg,
	}
	for _, opt := range opts {
		opt(w)
	}

	go w.run()
	return w, nil
}

// Config returns the configuration from the most recent successful load.
func (w *Watcher) Config() *Config {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.current
}

// run coalesces filesystem events for the config file into reloads: each
// matching event re-arms the quiet timer, and the reload fires only once
// the timer drains.
func (w *Watcher) run() {
	name := filepath.Base(w.path)
	var pending <-chan time.Time

	for {
		select {
		case <-w.stop:
			return

		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if filepath.Base(ev.Name) != name {
				continue
			}
			// Create and Rename cover save-by-replace editors; Write
			// covers in-place appends.
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			pending = time.After(w.quiet)

		case <-pending:
			pending = nil
			w.reload()

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			slog.Warn("config watch error", slog.String("error", err.Error()))
		}
	}
}

// reload reads the file back, keeps the old configuration on any failure,
// and publishes the new one to Config readers and the apply callback.
func (w *Watcher) reload() {
	cfg, err := Load(w.path)
	if err != nil {
		slog.Error("config reload failed",
			slog.String("path", w.path),
			slog.String("error", err.Error()),
		)
		return
	}
	if err := cfg.Validate(); err != nil {
		slog.Error("config reload rejected",
			slog.String("path", w.path),
			slog.String("error", err.Error()),
		)
		return
	}

	w.mu.Lock()
	w.current = cfg
	w.mu.Unlock()

	slog.Info("config reloaded", slog.String("path", w.path))

	if w.apply != nil {
		w.apply(cfg)
	}
}

// Close stops the watch. Safe to call more than once.
func (w *Watcher) Close() error {
	var err error
	w.once.Do(func() {
		close(w.stop)
		err = w.fsw.Close()
	})
	return err
}
