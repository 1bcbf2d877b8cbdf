package journal

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_MissingFileYieldsEmptyJournal(t *testing.T) {
	j := Load(filepath.Join(t.TempDir(), "missing.json"))
	assert.Equal(t, 0, j.Len())
	assert.False(t, j.Dirty())
}

func TestLoad_CorruptFileYieldsEmptyJournal(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	require.NoError(t, os.WriteFile(path, []byte("not json"), 0o644))

	j := Load(path)
	assert.Equal(t, 0, j.Len())
}

func TestHasChanged(t *testing.T) {
	j := New(filepath.Join(t.TempDir(), "state.json"))
	assert.True(t, j.HasChanged("/a.go", "h1"))

	j.Put("/a.go", FileEntry{Hash: "h1"})
	assert.False(t, j.HasChanged("/a.go", "h1"))
	assert.True(t, j.HasChanged("/a.go", "h2"))
}

func TestSave_NoOpWhenClean(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	j := New(path)
	require.NoError(t, j.Save())
	_, err := os.Stat(path)
	assert.True(t, os.IsNotExist(err))
}

func TestSave_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sub", "state.json")
	j := New(path)
	j.Put("/a.go", FileEntry{Hash: "h1", ChunkIDs: []string{"c1", "c2"}, ChunkCount: 2})
	require.NoError(t, j.Save())
	assert.False(t, j.Dirty())

	reloaded := Load(path)
	entry, ok := reloaded.Get("/a.go")
	require.True(t, ok)
	assert.Equal(t, "h1", entry.Hash)
	assert.Equal(t, []string{"c1", "c2"}, entry.ChunkIDs)
}

func TestRemove(t *testing.T) {
	j := New(filepath.Join(t.TempDir(), "state.json"))
	j.Put("/a.go", FileEntry{Hash: "h1"})
	j.Remove("/a.go")
	_, ok := j.Get("/a.go")
	assert.False(t, ok)
}

func TestClear(t *testing.T) {
	j := New(filepath.Join(t.TempDir(), "state.json"))
	j.Put("/a.go", FileEntry{Hash: "h1"})
	j.Put("/b.go", FileEntry{Hash: "h2"})
	require.NoError(t, j.Save())

	j.Clear()
	assert.Equal(t, 0, j.Len())
	assert.True(t, j.Dirty())

	_, ok := j.Get("/a.go")
	assert.False(t, ok)
}
