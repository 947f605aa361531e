package loader

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/Faultbox/liteviz/internal/logger"
	"github.com/Faultbox/liteviz/internal/viewer"
)

// Watcher reloads files into the scene when they change on disk. It
// watches the parent directories so editors that replace files by rename
// are still seen.
type Watcher struct {
	fs       *fsnotify.Watcher
	scene    *viewer.Scene
	notifier *viewer.Notifier
	load     viewer.LoadFunc
	log      *zap.Logger

	mu    sync.Mutex
	files map[string]bool
	dirs  map[string]bool

	// reloaded, when set, is called after every reload attempt.
	reloaded func(path string, err error)
}

// NewWatcher creates a watcher feeding scene through load. Reloads wait on
// notifier while the viewer is paused; notifier may be nil.
func NewWatcher(scene *viewer.Scene, notifier *viewer.Notifier, load viewer.LoadFunc) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating file watcher: %w", err)
	}
	return &Watcher{
		fs:       fw,
		scene:    scene,
		notifier: notifier,
		load:     load,
		log:      logger.Named("watcher"),
		files:    make(map[string]bool),
		dirs:     make(map[string]bool),
	}, nil
}

// Add starts watching path.
func (w *Watcher) Add(path string) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("resolving %s: %w", path, err)
	}
	dir := filepath.Dir(abs)

	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.dirs[dir] {
		if err := w.fs.Add(dir); err != nil {
			return fmt.Errorf("watching %s: %w", dir, err)
		}
		w.dirs[dir] = true
	}
	w.files[abs] = true
	w.log.Debug("watching file", zap.String("path", abs))
	return nil
}

// Watched reports whether path is being watched.
func (w *Watcher) Watched(path string) bool {
	abs, err := filepath.Abs(path)
	if err != nil {
		return false
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.files[abs]
}

// Run processes file events until ctx is done or the watcher is closed.
func (w *Watcher) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-w.fs.Events:
			if !ok {
				return nil
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) {
				continue
			}
			if !w.Watched(ev.Name) {
				continue
			}
			if w.notifier != nil {
				if err := w.notifier.Wait(ctx); err != nil {
					return err
				}
			}
			w.reload(ev.Name)
		case err, ok := <-w.fs.Errors:
			if !ok {
				return nil
			}
			w.log.Warn("file watcher error", zap.Error(err))
		}
	}
}

func (w *Watcher) reload(path string) {
	it, err := w.load(path)
	if err != nil {
		// Partially written files fail here; the next write event retries.
		w.log.Debug("reload failed", zap.String("path", path), zap.Error(err))
	} else {
		w.scene.Put(it)
		w.log.Info("file reloaded", zap.String("path", path), zap.Stringer("type", it.Type))
	}
	if w.reloaded != nil {
		w.reloaded(path, err)
	}
}

// Close stops watching.
func (w *Watcher) Close() error {
	return w.fs.Close()
}
