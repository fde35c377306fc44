package scene

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/df07/go-interactive-raytracer/pkg/core"
)

// DefaultDebounce is how long Watch waits for writes to settle
const DefaultDebounce = 150 * time.Millisecond

// Watcher reloads a scene file whenever it changes on disk
type Watcher struct {
	Path     string
	Debounce time.Duration

	// OnChange receives every successfully reloaded scene
	OnChange func(*Scene)
	// OnError receives load and watcher errors; nil drops them
	OnError func(error)
}

// Watch reloads path whenever it is written, calling onChange with each new
// scene. Load errors are logged. It blocks until ctx is done.
func Watch(ctx context.Context, path string, onChange func(*Scene)) error {
	w := &Watcher{Path: path, OnChange: onChange}
	return w.Run(ctx)
}

// Run watches the parent directory, so editors that replace the file by
// renaming are still seen. It blocks until ctx is done.
func (w *Watcher) Run(ctx context.Context) error {
	path, err := ExpandPath(w.Path)
	if err != nil {
		return err
	}
	if path, err = filepath.Abs(path); err != nil {
		return err
	}
	debounce := w.Debounce
	if debounce <= 0 {
		debounce = DefaultDebounce
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(filepath.Dir(path)); err != nil {
		return fmt.Errorf("failed to watch %s: %w", filepath.Dir(path), err)
	}
	core.Logger().Debug("watching scene", "path", path)

	timer := time.NewTimer(debounce)
	timer.Stop()

	for {
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != path {
				continue
			}
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) || event.Has(fsnotify.Rename) {
				timer.Reset(debounce)
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			w.report(fmt.Errorf("watcher: %w", err))

		case <-timer.C:
			s, err := Load(path)
			if err != nil {
				w.report(err)
				continue
			}
			core.Logger().Info("scene reloaded", "path", path, "name", s.Name)
			if w.OnChange != nil {
				w.OnChange(s)
			}
		}
	}
}

func (w *Watcher) report(err error) {
	core.Logger().Warn("scene reload failed", "path", w.Path, "err", err)
	if w.OnError != nil {
		w.OnError(err)
	}
}
