package domain

import (
	"context"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"converse/internal/logging"
)

// Watcher monitors a domain library file and recompiles it on change. The
// engine installs the fresh registry at the next turn boundary, so an edit
// to the library never disturbs a turn in flight.
type Watcher struct {
	mu          sync.Mutex
	watcher     *fsnotify.Watcher
	path        string
	onReload    func(*Registry)
	debounceDur time.Duration
	lastEvent   time.Time
	running     bool
	stopCh      chan struct{}
	doneCh      chan struct{}
}

// NewWatcher creates a watcher for the library at path. onReload receives
// every successfully recompiled registry.
func NewWatcher(path string, onReload func(*Registry)) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	return &Watcher{
		watcher:     fw,
		path:        path,
		onReload:    onReload,
		debounceDur: 500 * time.Millisecond, // editors save in bursts
		stopCh:      make(chan struct{}),
		doneCh:      make(chan struct{}),
	}, nil
}

// Start begins watching. Non-blocking; the watch loop runs in a goroutine
// until Stop or context cancellation.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return nil
	}
	w.running = true
	w.mu.Unlock()

	// Watch the directory: most editors replace the file on save, which
	// drops the watch on the file itself.
	if err := w.watcher.Add(filepath.Dir(w.path)); err != nil {
		return err
	}
	logging.Domain("watching domain library %s for changes", w.path)

	go w.loop(ctx)
	return nil
}

func (w *Watcher) loop(ctx context.Context) {
	defer close(w.doneCh)
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopCh:
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != filepath.Clean(w.path) {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			w.mu.Lock()
			if time.Since(w.lastEvent) < w.debounceDur {
				w.mu.Unlock()
				continue
			}
			w.lastEvent = time.Now()
			w.mu.Unlock()

			w.reload()
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			logging.Get(logging.CategoryDomain).Warn("domain watcher error: %v", err)
		}
	}
}

func (w *Watcher) reload() {
	reg, err := LoadLibrary(w.path)
	if err != nil {
		// A half-saved or broken library keeps the previous registry.
		logging.Get(logging.CategoryDomain).Error("domain reload failed, keeping previous registry: %v", err)
		return
	}
	logging.Domain("domain library reloaded: %q", reg.Name)
	w.onReload(reg)
}

// Stop halts the watch loop and releases the underlying watcher.
func (w *Watcher) Stop() {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return
	}
	w.running = false
	w.mu.Unlock()

	close(w.stopCh)
	<-w.doneCh
	w.watcher.Close()
}
