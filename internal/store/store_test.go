package store

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) Store {
	t.Helper()
	s := New(Config{Dir: t.TempDir(), Dimensions: 4})
	require.NoError(t, s.Init())
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestStore_InsertAndSearch(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.Insert([]Chunk{
		{ID: "a", Filepath: "x.go", Content: "alpha", LineStart: 1, LineEnd: 5, Vector: []float32{1, 0, 0, 0}, Hash: "h1"},
		{ID: "b", Filepath: "y.go", Content: "beta", LineStart: 1, LineEnd: 5, Vector: []float32{0, 1, 0, 0}, Hash: "h2"},
	}))

	results, err := s.Search([]float32{1, 0, 0, 0}, 10, "")
	require.NoError(t, err)
	require.NotEmpty(t, results)
	assert.Equal(t, "a", results[0].ID)
}

func TestStore_SearchWithPathPrefix(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.Insert([]Chunk{
		{ID: "a", Filepath: "src/foo.go", Content: "alpha", LineStart: 1, LineEnd: 5, Vector: []float32{1, 0, 0, 0}, Hash: "h1"},
		{ID: "b", Filepath: "vendor/foo.go", Content: "alpha too", LineStart: 1, LineEnd: 5, Vector: []float32{1, 0, 0, 0}, Hash: "h2"},
	}))

	results, err := s.Search([]float32{1, 0, 0, 0}, 10, "src/")
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "a", results[0].ID)
}

func TestStore_SearchWithPathPrefixContainingSpecialChars(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.Insert([]Chunk{
		{ID: "a", Filepath: "/home/o'brien/src/foo.go", Content: "alpha", LineStart: 1, LineEnd: 5, Vector: []float32{1, 0, 0, 0}, Hash: "h1"},
		{ID: "b", Filepath: "/home/other/src/foo.go", Content: "alpha too", LineStart: 1, LineEnd: 5, Vector: []float32{1, 0, 0, 0}, Hash: "h2"},
	}))

	results, err := s.Search([]float32{1, 0, 0, 0}, 10, "/home/o'brien")
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "a", results[0].ID)
}

func TestStore_DeleteByIDs(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.Insert([]Chunk{{ID: "a", Filepath: "x.go", Content: "x", LineStart: 1, LineEnd: 1, Vector: []float32{1, 0, 0, 0}, Hash: "h"}}))
	require.NoError(t, s.DeleteByIDs([]string{"a"}))

	n, err := s.Count()
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestStore_DeleteByFilepath(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.Insert([]Chunk{
		{ID: "a", Filepath: "x.go", Content: "1", LineStart: 1, LineEnd: 1, Vector: []float32{1, 0, 0, 0}, Hash: "h"},
		{ID: "b", Filepath: "x.go", Content: "2", LineStart: 2, LineEnd: 2, Vector: []float32{0, 1, 0, 0}, Hash: "h"},
		{ID: "c", Filepath: "y.go", Content: "3", LineStart: 1, LineEnd: 1, Vector: []float32{0, 0, 1, 0}, Hash: "h"},
	}))
	require.NoError(t, s.DeleteByFilepath("x.go"))

	stats, err := s.Stats()
	require.NoError(t, err)
	assert.Equal(t, 1, stats.TotalChunks)
	assert.Equal(t, 1, stats.UniqueFiles)
}

func TestStore_ClearThenEmpty(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.Insert([]Chunk{{ID: "a", Filepath: "x.go", Content: "x", LineStart: 1, LineEnd: 1, Vector: []float32{1, 0, 0, 0}, Hash: "h"}}))
	require.NoError(t, s.Clear())

	n, err := s.Count()
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestStore_DimensionMismatchRejected(t *testing.T) {
	s := newTestStore(t)
	err := s.Insert([]Chunk{{ID: "a", Filepath: "x.go", Vector: []float32{1, 2}}})
	require.Error(t, err)
}

func TestStore_PersistsAcrossReopen(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "store")
	s := New(Config{Dir: dir, Dimensions: 4})
	require.NoError(t, s.Init())
	require.NoError(t, s.Insert([]Chunk{{ID: "a", Filepath: "x.go", Content: "x", LineStart: 1, LineEnd: 1, Vector: []float32{1, 0, 0, 0}, Hash: "h"}}))
	require.NoError(t, s.Close())

	s2 := New(Config{Dir: dir, Dimensions: 4})
	require.NoError(t, s2.Init())
	defer func() { _ = s2.Close() }()

	n, err := s2.Count()
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}
