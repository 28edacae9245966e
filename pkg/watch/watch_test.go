package watch

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWatcher_DebouncesTrackedChanges(t *testing.T) {
	dir := t.TempDir()
	tracked := filepath.Join(dir, "data.json")
	untracked := filepath.Join(dir, "other.txt")
	require.NoError(t, os.WriteFile(tracked, []byte("{}"), 0o644))

	w, err := New([]string{tracked}, 50*time.Millisecond, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	calls := make(chan []string, 10)
	done := make(chan error, 1)
	go func() {
		done <- w.Run(ctx, func(_ context.Context, changed []string) ([]string, error) {
			calls <- changed
			return nil, nil
		})
	}()

	// Give the event loop a moment to start.
	time.Sleep(50 * time.Millisecond)
	require.NoError(t, os.WriteFile(untracked, []byte("x"), 0o644))
	for i := 0; i < 3; i++ {
		require.NoError(t, os.WriteFile(tracked, []byte(`{"n":1}`), 0o644))
	}

	select {
	case changed := <-calls:
		abs, _ := filepath.Abs(tracked)
		assert.Equal(t, []string{abs}, changed)
	case <-ctx.Done():
		t.Fatal("no rebuild triggered")
	}

	cancel()
	require.NoError(t, <-done)
}

func TestWatcher_SetPaths(t *testing.T) {
	a := t.TempDir()
	b := t.TempDir()

	w, err := New([]string{filepath.Join(a, "x.json")}, 0, nil)
	require.NoError(t, err)
	defer func() { _ = w.watcher.Close() }()

	assert.Equal(t, DefaultDebounce, w.debounce)
	assert.Equal(t, 1, w.Files())

	require.NoError(t, w.SetPaths([]string{filepath.Join(b, "y.json"), filepath.Join(b, "z.tmpl")}))
	assert.Equal(t, 2, w.Files())
	assert.Len(t, w.dirs, 1)

	_, ok := w.tracked(filepath.Join(a, "x.json"))
	assert.False(t, ok)
	_, ok = w.tracked(filepath.Join(b, "z.tmpl"))
	assert.True(t, ok)
}

func TestNew_MissingDirectory(t *testing.T) {
	_, err := New([]string{filepath.Join(t.TempDir(), "nope", "data.json")}, 0, nil)
	assert.Error(t, err)
}
