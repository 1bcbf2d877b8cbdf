// Package engine implements wb-grep's indexer (C6): per-file reconciliation,
// full-tree indexing, file deletion, and query resolution, wiring together
// the walker, chunker, embedding client, vector store, and state journal.
package engine

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
	"os"
	"path/filepath"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/wb200/wb-grep/internal/chunk"
	"github.com/wb200/wb-grep/internal/embed"
	"github.com/wb200/wb-grep/internal/journal"
	"github.com/wb200/wb-grep/internal/store"
	"github.com/wb200/wb-grep/internal/walker"
	"github.com/wb200/wb-grep/internal/werr"
)

// binarySampleSize is the number of leading code units scanned for NUL
// bytes when deciding whether a file is binary.
const binarySampleSize = 8000

// Config wires an Engine's dependencies and tunables.
type Config struct {
	Root         string
	Store        store.Store
	Embedder     embed.Embedder
	Journal      *journal.Journal
	Walker       *walker.Walker
	BatchSize    int
	MaxFileSize  int64
	MaxResults   int
}

// Engine drives reconciliation of a single project root.
type Engine struct {
	cfg Config
}

// New constructs an Engine from cfg.
func New(cfg Config) *Engine {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 10
	}
	if cfg.MaxFileSize <= 0 {
		cfg.MaxFileSize = 1 << 20
	}
	if cfg.MaxResults <= 0 {
		cfg.MaxResults = 10
	}
	return &Engine{cfg: cfg}
}

// ReconcileResult reports the outcome of reconciling a single file.
type ReconcileResult struct {
	Chunks  int
	Skipped bool
	Err     error
}

// ReconcileFile re-indexes path if its content changed since the last
// reconcile (or unconditionally, if force is set).
func (e *Engine) ReconcileFile(ctx context.Context, path string, force bool) ReconcileResult {
	info, err := os.Stat(path)
	if err != nil {
		return ReconcileResult{Err: werr.IO("stat file", err)}
	}
	if info.Size() > e.cfg.MaxFileSize || info.Size() == 0 {
		return ReconcileResult{Skipped: true}
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return ReconcileResult{Err: werr.IO("read file", err)}
	}
	if !utf8.Valid(raw) {
		return ReconcileResult{Skipped: true}
	}
	if isBinary(raw) {
		return ReconcileResult{Skipped: true}
	}

	content := string(raw)
	hash := sha256Hex(raw)

	existing, hadEntry := e.cfg.Journal.Get(path)
	if !force && hadEntry && existing.Hash == hash {
		return ReconcileResult{Skipped: true}
	}

	if hadEntry && len(existing.ChunkIDs) > 0 {
		if err := e.cfg.Store.DeleteByIDs(existing.ChunkIDs); err != nil {
			return ReconcileResult{Err: werr.Store("delete stale chunks", err)}
		}
	}

	chunks := chunk.Chunk(path, content)
	if len(chunks) == 0 {
		return ReconcileResult{Skipped: true}
	}

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Content
	}
	vectors, err := e.cfg.Embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return ReconcileResult{Err: werr.Transient("embed chunks", err)}
	}

	ids := make([]string, len(chunks))
	rows := make([]store.Chunk, len(chunks))
	now := info.ModTime().UnixMilli()
	for i, c := range chunks {
		id := uuid.New().String()
		ids[i] = id
		rows[i] = store.Chunk{
			ID:        id,
			Filepath:  path,
			Content:   c.Content,
			LineStart: c.LineStart,
			LineEnd:   c.LineEnd,
			Vector:    vectors[i],
			Hash:      hash,
			Timestamp: now,
		}
	}
	if err := e.cfg.Store.Insert(rows); err != nil {
		return ReconcileResult{Err: werr.Store("insert chunks", err)}
	}

	e.cfg.Journal.Put(path, journal.FileEntry{
		Hash:         hash,
		LastModified: now,
		ChunkIDs:     ids,
		ChunkCount:   len(ids),
	})

	return ReconcileResult{Chunks: len(chunks)}
}

// DeleteFile removes path's chunks from the store and the journal.
func (e *Engine) DeleteFile(path string) error {
	entry, ok := e.cfg.Journal.Get(path)
	if ok && len(entry.ChunkIDs) > 0 {
		if err := e.cfg.Store.DeleteByIDs(entry.ChunkIDs); err != nil {
			return werr.Store("delete chunks for removed file", err)
		}
	}
	e.cfg.Journal.Remove(path)
	return e.cfg.Journal.Save()
}

// ProgressFunc is called before each file is reconciled during a full-tree
// index: (1-based position of this file, total, path).
type ProgressFunc func(i, total int, path string)

// IndexSummary reports the aggregate outcome of a full-tree index pass.
type IndexSummary struct {
	Indexed     int
	Skipped     int
	Failed      int
	TotalChunks int
}

// FullIndex walks the whole tree and reconciles every discovered file,
// clearing the store and journal first if clear is set. The journal is
// saved every BatchSize files and once more at the end.
func (e *Engine) FullIndex(ctx context.Context, clear bool, progress ProgressFunc) (IndexSummary, error) {
	var summary IndexSummary

	if clear {
		if err := e.cfg.Store.Clear(); err != nil {
			return summary, werr.Store("clear store", err)
		}
		e.cfg.Journal.Clear()
	}

	var paths []string
	for p := range e.cfg.Walker.Walk() {
		paths = append(paths, p)
	}

	for i, p := range paths {
		if progress != nil {
			progress(i+1, len(paths), p)
		}
		result := e.ReconcileFile(ctx, p, clear)
		switch {
		case result.Err != nil:
			summary.Failed++
			slog.Warn("full index: failed to reconcile file", slog.String("path", p), slog.String("error", result.Err.Error()))
		case result.Skipped:
			summary.Skipped++
		default:
			summary.Indexed++
			summary.TotalChunks += result.Chunks
		}
		if (i+1)%e.cfg.BatchSize == 0 {
			if err := e.cfg.Journal.Save(); err != nil {
				return summary, err
			}
		}
	}
	return summary, e.cfg.Journal.Save()
}

// Result is a single query hit.
type Result = store.Result

// Query embeds text once and searches the store, resolving a relative
// pathFilter against the project root. limit of 0 uses the configured
// default.
func (e *Engine) Query(ctx context.Context, text string, limit int, pathFilter string) ([]Result, error) {
	vector, err := e.cfg.Embedder.Embed(ctx, text)
	if err != nil {
		return nil, werr.Transient("embed query", err)
	}

	if limit <= 0 {
		limit = e.cfg.MaxResults
	}

	resolvedPrefix := ""
	if pathFilter != "" {
		if filepath.IsAbs(pathFilter) {
			resolvedPrefix = pathFilter
		} else {
			resolvedPrefix = filepath.Join(e.cfg.Root, pathFilter)
		}
	}

	return e.cfg.Store.Search(vector, limit, resolvedPrefix)
}

func sha256Hex(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

// isBinary reports whether the first binarySampleSize runes of content
// contain more than one NUL.
func isBinary(content []byte) bool {
	count := 0
	n := 0
	for i := 0; i < len(content) && n < binarySampleSize; {
		r, size := utf8.DecodeRune(content[i:])
		if r == 0 {
			count++
			if count > 1 {
				return true
			}
		}
		i += size
		n++
	}
	return false
}
