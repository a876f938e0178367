// Package watch turns filesystem activity in the data directory into
// pipeline ticks. New delta files land in bursts of four; the watcher
// debounces a burst into a single trigger.
package watch

import (
	"context"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Watcher watches directories and fires OnChange after a quiet period
// follows a create or rename event.
type Watcher struct {
	fs       *fsnotify.Watcher
	debounce time.Duration

	mu    sync.Mutex
	timer *time.Timer

	// OnChange runs in the watcher goroutine after each debounced burst.
	OnChange func()
	// OnError receives watcher errors; nil means they are dropped.
	OnError func(error)
}

// New creates a Watcher with the given debounce window.
func New(debounce time.Duration) (*Watcher, error) {
	fs, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if debounce <= 0 {
		debounce = 2 * time.Second
	}
	return &Watcher{fs: fs, debounce: debounce}, nil
}

// Add registers a directory. Directories that do not exist yet are
// skipped; they can be re-added once the pipeline creates them.
func (w *Watcher) Add(dir string) error {
	return w.fs.Add(dir)
}

// Start consumes events until ctx is cancelled.
func (w *Watcher) Start(ctx context.Context) {
	trigger := make(chan struct{}, 1)
	for {
		select {
		case <-ctx.Done():
			return
		case <-trigger:
			if w.OnChange != nil {
				w.OnChange()
			}
		case ev, ok := <-w.fs.Events:
			if !ok {
				return
			}
			if ev.Op&(fsnotify.Create|fsnotify.Rename) != 0 {
				w.schedule(trigger)
			}
		case err, ok := <-w.fs.Errors:
			if !ok {
				return
			}
			if w.OnError != nil {
				w.OnError(err)
			}
		}
	}
}

// schedule restarts the debounce timer for the current burst.
func (w *Watcher) schedule(trigger chan struct{}) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.debounce, func() {
		select {
		case trigger <- struct{}{}:
		default:
		}
	})
}

// Close releases the underlying filesystem watcher.
func (w *Watcher) Close() error {
	w.mu.Lock()
	if w.timer != nil {
		w.timer.Stop()
	}
	w.mu.Unlock()
	return w.fs.Close()
}
