package catalog

import (
	"log/slog"
	"sync"

	"github.com/fsnotify/fsnotify"

	"github.com/jmylchreest/cuedeck/internal/model"
)

// Watcher watches the data directory and loads audio files that appear in
// it from outside cuedeck.
type Watcher struct {
	watcher *fsnotify.Watcher
	catalog *Catalog
	dir     string
	logger  *slog.Logger
	done    chan struct{}
	stopped chan struct{}
	mu      sync.Mutex
	running bool
}

// NewWatcher creates a new directory watcher for the catalog.
func NewWatcher(c *Catalog, dir string, logger *slog.Logger) (*Watcher, error) {
	if logger == nil {
		logger = slog.Default()
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	return &Watcher{
		watcher: watcher,
		catalog: c,
		dir:     dir,
		logger:  logger,
		done:    make(chan struct{}),
		stopped: make(chan struct{}),
	}, nil
}

// Start begins watching the directory.
func (w *Watcher) Start() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.running {
		return nil
	}
	if err := w.watcher.Add(w.dir); err != nil {
		return err
	}
	w.running = true

	go w.watch()
	return nil
}

// watch is the main watch loop.
func (w *Watcher) watch() {
	defer close(w.stopped)

	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}

			if !model.IsAudioFile(event.Name, w.catalog.extensions) {
				continue
			}

			if event.Has(fsnotify.Create) || event.Has(fsnotify.Rename) || event.Has(fsnotify.Write) {
				added, err := w.catalog.Load(w.dir)
				if err != nil {
					w.logger.Warn("failed to rescan data directory", "dir", w.dir, "error", err)
					continue
				}
				if added > 0 {
					w.logger.Debug("picked up new cues", "file", event.Name, "added", added)
				}
			}

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn("directory watcher error", "error", err)

		case <-w.done:
			return
		}
	}
}

// Stop stops the watcher and waits for the watch loop to exit.
func (w *Watcher) Stop() error {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return w.watcher.Close()
	}
	w.running = false
	close(w.done)
	w.mu.Unlock()

	err := w.watcher.Close()
	<-w.stopped
	return err
}
