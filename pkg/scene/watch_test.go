package scene

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWatcher_Reload(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "live.yaml")
	require.NoError(t, os.WriteFile(path, []byte(tinyScene), 0o644))

	scenes := make(chan *Scene, 4)
	errs := make(chan error, 4)
	w := &Watcher{
		Path:     path,
		Debounce: 20 * time.Millisecond,
		OnChange: func(s *Scene) { scenes <- s },
		OnError:  func(err error) { errs <- err },
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	// Give the watcher time to register the directory
	time.Sleep(100 * time.Millisecond)

	// Unrelated files in the same directory are ignored
	require.NoError(t, os.WriteFile(filepath.Join(dir, "other.yaml"), []byte(tinyScene), 0o644))
	require.NoError(t, os.WriteFile(path, []byte(fullScene), 0o644))

	select {
	case s := <-scenes:
		assert.Equal(t, "Two Spheres", s.Name)
	case <-time.After(5 * time.Second):
		t.Fatal("Expected a reload after writing the scene file")
	}

	require.NoError(t, os.WriteFile(path, []byte("shapes: [{type: cube}]"), 0o644))
	select {
	case err := <-errs:
		assert.ErrorIs(t, err, ErrInvalidScene)
	case <-time.After(5 * time.Second):
		t.Fatal("Expected a load error for an invalid scene")
	}

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Watcher did not stop after cancel")
	}
}

func TestWatch_MissingDirectory(t *testing.T) {
	err := Watch(context.Background(), filepath.Join(t.TempDir(), "nope", "scene.yaml"), nil)
	assert.Error(t, err)
}
