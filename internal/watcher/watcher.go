// Package watcher follows the loaded source file on disk so the timeline
// can react when it is rewritten or removed underneath the agent.
package watcher

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

type Watcher interface {
	Watch(path string) error
	Clear()
	OnChange(callback func(path string, event EventType))
}

type EventType int

const (
	EventModify EventType = iota
	EventDelete
)

func (e EventType) String() string {
	switch e {
	case EventModify:
		return "modify"
	case EventDelete:
		return "delete"
	default:
		return fmt.Sprintf("event(%d)", int(e))
	}
}

// DefaultDebounce collapses the burst of events a single save produces.
const DefaultDebounce = 500 * time.Millisecond

// FileWatcher watches one file at a time. It watches the parent directory
// so editors that save by rename are still seen.
type FileWatcher struct {
	fs       *fsnotify.Watcher
	logger   *slog.Logger
	debounce time.Duration

	mu       sync.Mutex
	path     string
	dir      string
	callback func(path string, event EventType)
	timer    *time.Timer
}

func New(logger *slog.Logger, debounce time.Duration) (*FileWatcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	return &FileWatcher{fs: fw, logger: logger, debounce: debounce}, nil
}

func (w *FileWatcher) OnChange(callback func(path string, event EventType)) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.callback = callback
}

// Watch switches to path, dropping whatever was watched before.
func (w *FileWatcher) Watch(path string) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("invalid path: %w", err)
	}
	dir := filepath.Dir(abs)

	w.mu.Lock()
	defer w.mu.Unlock()

	if w.dir != dir {
		if w.dir != "" {
			_ = w.fs.Remove(w.dir)
		}
		if err := w.fs.Add(dir); err != nil {
			w.dir, w.path = "", ""
			return fmt.Errorf("failed to watch %s: %w", dir, err)
		}
		w.dir = dir
	}
	w.path = abs
	w.stopTimer()

	if w.logger != nil {
		w.logger.Debug("watching source file", "path", abs)
	}
	return nil
}

// Clear stops watching without closing the watcher.
func (w *FileWatcher) Clear() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.dir != "" {
		_ = w.fs.Remove(w.dir)
	}
	w.dir, w.path = "", ""
	w.stopTimer()
}

// Run delivers events until ctx is cancelled or Stop is called.
func (w *FileWatcher) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-w.fs.Events:
			if !ok {
				return nil
			}
			w.handle(event)

		case err, ok := <-w.fs.Errors:
			if !ok {
				return nil
			}
			if w.logger != nil {
				w.logger.Warn("watcher error", "error", err)
			}
		}
	}
}

func (w *FileWatcher) Stop() error {
	w.mu.Lock()
	w.stopTimer()
	w.mu.Unlock()
	return w.fs.Close()
}

func (w *FileWatcher) handle(event fsnotify.Event) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.path == "" || filepath.Clean(event.Name) != w.path {
		return
	}
	if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) &&
		!event.Has(fsnotify.Remove) && !event.Has(fsnotify.Rename) {
		return
	}

	w.stopTimer()
	path := w.path
	w.timer = time.AfterFunc(w.debounce, func() { w.fire(path) })
}

// fire classifies the change by what is on disk once the burst settled.
func (w *FileWatcher) fire(path string) {
	w.mu.Lock()
	if w.path != path {
		w.mu.Unlock()
		return
	}
	cb := w.callback
	w.mu.Unlock()

	kind := EventModify
	if _, err := os.Stat(path); os.IsNotExist(err) {
		kind = EventDelete
	}

	if w.logger != nil {
		w.logger.Info("source file changed", "path", path, "event", kind.String())
	}
	if cb != nil {
		cb(path, kind)
	}
}

func (w *FileWatcher) stopTimer() {
	if w.timer != nil {
		w.timer.Stop()
		w.timer = nil
	}
}
