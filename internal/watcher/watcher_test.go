package watcher

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWatcher_DebouncesCreateIntoBatch(t *testing.T) {
	root := t.TempDir()
	w, err := New(root, 50*time.Millisecond)
	require.NoError(t, err)
	require.NoError(t, w.Start())
	defer func() { _ = w.Stop() }()

	path := filepath.Join(root, "a.go")
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))

	select {
	case batch := <-w.Batches():
		assert.Contains(t, batch, path)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for debounced batch")
	}
}

func TestWatcher_UnlinkBypassesDebounce(t *testing.T) {
	root := t.TempDir()
	path := filepath.Join(root, "a.go")
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))

	w, err := New(root, time.Hour) // long window: unlink must still arrive fast
	require.NoError(t, err)
	require.NoError(t, w.Start())
	defer func() { _ = w.Stop() }()

	require.NoError(t, os.Remove(path))

	select {
	case p := <-w.Unlinks():
		assert.Equal(t, path, p)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for unlink event")
	}
}

func TestWatcher_SkipsAlwaysIgnoredDirs(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "node_modules"), 0o755))

	w, err := New(root, 50*time.Millisecond)
	require.NoError(t, err)
	require.NoError(t, w.Start())
	defer func() { _ = w.Stop() }()

	require.NoError(t, os.WriteFile(filepath.Join(root, "node_modules", "x.js"), []byte("x"), 0o644))

	select {
	case batch := <-w.Batches():
		t.Fatalf("expected no batch for ignored directory, got %v", batch)
	case <-time.After(300 * time.Millisecond):
		// expected: nothing fired
	}
}
