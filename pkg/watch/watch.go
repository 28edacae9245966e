// Package watch triggers debounced rebuilds when input files change.
//
// Directories are watched rather than files: editors commonly replace a
// file by renaming a temporary over it, which drops a file-level watch.
// Events are filtered back down to the tracked file set.
package watch

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// DefaultDebounce is the quiet period used when none is configured.
const DefaultDebounce = 500 * time.Millisecond

// ChangeFunc is called once per settled burst of changes. The returned
// slice, when non-nil, replaces the tracked file set.
type ChangeFunc func(ctx context.Context, changed []string) ([]string, error)

// Watcher monitors a set of files.
type Watcher struct {
	watcher  *fsnotify.Watcher
	debounce time.Duration
	logger   *zap.Logger

	mu    sync.Mutex
	files map[string]struct{}
	dirs  map[string]struct{}
}

// New creates a watcher tracking paths. A zero debounce uses
// DefaultDebounce; a nil logger discards.
func New(paths []string, debounce time.Duration, logger *zap.Logger) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	w := &Watcher{
		watcher:  fw,
		debounce: debounce,
		logger:   logger,
		files:    make(map[string]struct{}),
		dirs:     make(map[string]struct{}),
	}
	if err := w.SetPaths(paths); err != nil {
		_ = fw.Close()
		return nil, err
	}
	return w, nil
}

// SetPaths replaces the tracked file set, watching any new directories and
// releasing directories no longer needed.
func (w *Watcher) SetPaths(paths []string) error {
	files := make(map[string]struct{}, len(paths))
	dirs := make(map[string]struct{})
	for _, p := range paths {
		abs, err := filepath.Abs(p)
		if err != nil {
			return fmt.Errorf("failed to resolve path %s: %w", p, err)
		}
		files[abs] = struct{}{}
		dirs[filepath.Dir(abs)] = struct{}{}
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	for dir := range dirs {
		if _, ok := w.dirs[dir]; ok {
			continue
		}
		if err := w.watcher.Add(dir); err != nil {
			return fmt.Errorf("failed to watch directory %s: %w", dir, err)
		}
	}
	for dir := range w.dirs {
		if _, ok := dirs[dir]; !ok {
			_ = w.watcher.Remove(dir)
		}
	}
	w.files = files
	w.dirs = dirs
	return nil
}

// Files returns the number of tracked files.
func (w *Watcher) Files() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.files)
}

func (w *Watcher) tracked(name string) (string, bool) {
	abs, err := filepath.Abs(name)
	if err != nil {
		return "", false
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	_, ok := w.files[abs]
	return abs, ok
}

// Run blocks until ctx is cancelled, calling onChange after each burst of
// changes to tracked files has been quiet for the debounce period.
// Errors from onChange are logged and do not stop the watcher.
func (w *Watcher) Run(ctx context.Context, onChange ChangeFunc) error {
	defer func() { _ = w.watcher.Close() }()

	timer := time.NewTimer(w.debounce)
	if !timer.Stop() {
		<-timer.C
	}
	defer timer.Stop()

	pending := make(map[string]struct{})

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) && !event.Has(fsnotify.Remove) {
				continue
			}
			abs, ok := w.tracked(event.Name)
			if !ok {
				continue
			}
			w.logger.Debug("change detected", zap.String("file", abs), zap.String("op", event.Op.String()))
			pending[abs] = struct{}{}
			timer.Reset(w.debounce)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("watcher error", zap.Error(err))

		case <-timer.C:
			changed := make([]string, 0, len(pending))
			for p := range pending {
				changed = append(changed, p)
			}
			clear(pending)

			next, err := onChange(ctx, changed)
			if err != nil {
				w.logger.Error("rebuild failed", zap.Error(err))
				continue
			}
			if next != nil {
				if err := w.SetPaths(next); err != nil {
					w.logger.Error("failed to update watched paths", zap.Error(err))
				}
			}
		}
	}
}
