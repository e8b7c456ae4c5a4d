package catalog

import (
	"log/slog"
	"path/filepath"
	"sync"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
)

// Source hands out the current catalog.
type Source interface {
	Current() *Catalog
}

// Static is a Source that never changes.
type Static struct {
	C *Catalog
}

// Current returns the wrapped catalog.
func (s Static) Current() *Catalog { return s.C }

// Watcher keeps a catalog in sync with its file. Each reload swaps in a
// new immutable Catalog; readers never see a partially loaded one.
type Watcher struct {
	watcher  *fsnotify.Watcher
	filePath string
	logger   *slog.Logger
	current  atomic.Pointer[Catalog]
	onReload func(*Catalog)
	done     chan struct{}
	mu       sync.Mutex
	running  bool
}

// NewWatcher loads the file and prepares a watcher for it.
func NewWatcher(filePath string, logger *slog.Logger) (*Watcher, error) {
	if logger == nil {
		logger = slog.Default()
	}

	initial, err := Load(filePath)
	if err != nil {
		return nil, err
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	w := &Watcher{
		watcher:  fw,
		filePath: filePath,
		logger:   logger,
		done:     make(chan struct{}),
	}
	w.current.Store(initial)
	return w, nil
}

// Current returns the most recently loaded catalog.
func (w *Watcher) Current() *Catalog {
	return w.current.Load()
}

// SetReloadCallback sets a function called after each successful reload.
func (w *Watcher) SetReloadCallback(fn func(*Catalog)) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.onReload = fn
}

// Start begins watching the catalog file for changes.
func (w *Watcher) Start() error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return nil
	}
	w.running = true
	w.mu.Unlock()

	// Watch the directory; editors often replace the file on save
	dir := filepath.Dir(w.filePath)
	if err := w.watcher.Add(dir); err != nil {
		return err
	}

	go w.watch()
	w.logger.Debug("catalog watcher started", "path", w.filePath)
	return nil
}

func (w *Watcher) watch() {
	filename := filepath.Base(w.filePath)

	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Base(event.Name) != filename {
				continue
			}
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) {
				w.reload()
			}

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn("catalog watcher error", "error", err)

		case <-w.done:
			return
		}
	}
}

// reload parses the file and swaps it in. A bad file keeps the previous
// catalog.
func (w *Watcher) reload() {
	c, err := Load(w.filePath)
	if err != nil {
		w.logger.Warn("catalog changed but failed to load, keeping previous", "path", w.filePath, "error", err)
		return
	}
	w.current.Store(c)
	w.logger.Info("catalog reloaded", "path", w.filePath, "entries", c.Len())

	w.mu.Lock()
	fn := w.onReload
	w.mu.Unlock()
	if fn != nil {
		fn(c)
	}
}

// Stop stops the watcher.
func (w *Watcher) Stop() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if !w.running {
		return w.watcher.Close()
	}
	w.running = false
	close(w.done)
	return w.watcher.Close()
}
