package rules

import (
	"context"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce is how long the watcher waits for writes to settle.
const DefaultDebounce = 500 * time.Millisecond

// ReloadFunc receives each successfully reloaded catalogue. An error return
// is logged and the previous catalogue stays current.
type ReloadFunc func(*Catalogue) error

// Watcher reloads a catalogue file when it changes on disk.
//
// The parent directory is watched rather than the file, so editors that
// replace the file by rename are handled.
type Watcher struct {
	path     string
	debounce time.Duration
	onReload ReloadFunc
	logger   *slog.Logger
	fsw      *fsnotify.Watcher

	mu      sync.Mutex
	current *Catalogue
	dirty   bool
}

// NewWatcher creates a watcher for path. initial is the catalogue already in
// use; reloads with the same digest are skipped.
func NewWatcher(path string, initial *Catalogue, onReload ReloadFunc, logger *slog.Logger) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Watcher{
		path:     filepath.Clean(path),
		debounce: DefaultDebounce,
		onReload: onReload,
		logger:   logger.With("component", "rules-watcher"),
		fsw:      fsw,
		current:  initial,
	}, nil
}

// SetDebounce overrides the debounce delay. Call before Start.
func (w *Watcher) SetDebounce(d time.Duration) {
	if d > 0 {
		w.debounce = d
	}
}

// Current returns the catalogue most recently accepted.
func (w *Watcher) Current() *Catalogue {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.current
}

// Start begins watching. It returns once the watch is registered; events are
// processed until ctx is cancelled or Stop is called.
func (w *Watcher) Start(ctx context.Context) error {
	if err := w.fsw.Add(filepath.Dir(w.path)); err != nil {
		return err
	}
	go w.loop(ctx)
	w.logger.Info("watching rule catalogue", "path", w.path, "debounce", w.debounce)
	return nil
}

// Stop releases the underlying watch.
func (w *Watcher) Stop() error {
	return w.fsw.Close()
}

func (w *Watcher) loop(ctx context.Context) {
	ticker := time.NewTicker(w.debounce)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if filepath.Clean(ev.Name) != w.path {
				continue
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) != 0 {
				w.mu.Lock()
				w.dirty = true
				w.mu.Unlock()
			}

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.logger.Error("watch error", "error", err)

		case <-ticker.C:
			w.mu.Lock()
			dirty := w.dirty
			w.dirty = false
			w.mu.Unlock()
			if dirty {
				w.reload()
			}
		}
	}
}

func (w *Watcher) reload() {
	cat, err := Load(w.path)
	if err != nil {
		w.logger.Error("catalogue reload rejected, keeping previous", "path", w.path, "error", err)
		return
	}

	w.mu.Lock()
	prev := w.current
	w.mu.Unlock()
	if prev != nil && prev.Digest() == cat.Digest() {
		return
	}

	if w.onReload != nil {
		if err := w.onReload(cat); err != nil {
			w.logger.Error("catalogue reload rejected, keeping previous", "path", w.path, "error", err)
			return
		}
	}

	w.mu.Lock()
	w.current = cat
	w.mu.Unlock()
	w.logger.Info("rule catalogue reloaded", "version", cat.Version, "rules", len(cat.Rules), "digest", cat.Digest())
}
