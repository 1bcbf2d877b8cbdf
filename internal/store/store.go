package store

import (
	"path/filepath"
	"sort"

	"github.com/wb200/wb-grep/internal/werr"
)

// vectorStore composes the ANN graph with the chunk-row database into the
// single Store contract the indexer drives.
type vectorStore struct {
	cfg  Config
	ann  *annIndex
	rows *rowStore
}

var _ Store = (*vectorStore)(nil)

// annPath / rowsPath are the fixed filenames under Config.Dir.
func annPath(dir string) string  { return filepath.Join(dir, "vectors.hnsw") }
func rowsPath(dir string) string { return filepath.Join(dir, "chunks.db") }

// New creates a Store rooted at cfg.Dir. Call Init to load or create the
// on-disk files.
func New(cfg Config) Store {
	cfg = cfg.withDefaults()
	return &vectorStore{
		cfg: cfg,
		ann: newANNIndex(cfg.Dimensions, cfg.M, cfg.EfSearch),
	}
}

func (s *vectorStore) Init() error {
	rows, err := openRowStore(rowsPath(s.cfg.Dir))
	if err != nil {
		return werr.Store("open chunk rows database", err)
	}
	s.rows = rows

	if err := s.ann.load(annPath(s.cfg.Dir)); err != nil {
		_ = rows.close()
		return werr.Store("load vector index", err)
	}
	return nil
}

func (s *vectorStore) Insert(chunks []Chunk) error {
	for _, c := range chunks {
		if err := s.ann.add(c.ID, c.Vector); err != nil {
			return werr.Store("insert vector", err)
		}
	}
	if err := s.rows.insert(chunks); err != nil {
		return werr.Store("insert chunk rows", err)
	}
	return s.persist()
}

func (s *vectorStore) DeleteByIDs(ids []string) error {
	if err := s.ann.delete(ids); err != nil {
		return werr.Store("delete vectors", err)
	}
	if err := s.rows.deleteByIDs(ids); err != nil {
		return werr.Store("delete chunk rows", err)
	}
	return s.persist()
}

func (s *vectorStore) DeleteByFilepath(path string) error {
	ids, err := s.rows.deleteByFilepath(path)
	if err != nil {
		return werr.Store("delete chunk rows by filepath", err)
	}
	if err := s.ann.delete(ids); err != nil {
		return werr.Store("delete vectors by filepath", err)
	}
	return s.persist()
}

// Search returns up to limit results, optionally restricted to chunks
// whose filepath starts with pathPrefix. Because the ANN graph has no
// notion of filepath, a prefix filter oversamples the graph search before
// joining against the row store.
func (s *vectorStore) Search(queryVector []float32, limit int, pathPrefix string) ([]Result, error) {
	if limit <= 0 {
		limit = 10
	}

	k := limit
	if pathPrefix != "" {
		k = limit * 8
		if n := s.ann.count(); n > 0 && k > n {
			k = n
		}
	}

	hits, err := s.ann.search(queryVector, k)
	if err != nil {
		return nil, werr.Store("search vectors", err)
	}
	if len(hits) == 0 {
		return nil, nil
	}

	sort.Slice(hits, func(i, j int) bool { return hits[i].Score > hits[j].Score })

	ids := make([]string, len(hits))
	for i, h := range hits {
		ids[i] = h.ID
	}
	rowsByID, err := s.rows.rowsByIDsWithPrefix(ids, pathPrefix)
	if err != nil {
		return nil, werr.Store("fetch chunk rows", err)
	}

	results := make([]Result, 0, limit)
	for _, h := range hits {
		row, ok := rowsByID[h.ID]
		if !ok {
			continue // filtered out by prefix, or orphaned
		}
		results = append(results, Result{
			ID:        h.ID,
			Filepath:  row.Filepath,
			Content:   row.Content,
			LineStart: row.LineStart,
			LineEnd:   row.LineEnd,
			Score:     h.Score,
		})
		if len(results) == limit {
			break
		}
	}
	return results, nil
}

func (s *vectorStore) Count() (int, error) {
	n, err := s.rows.count()
	if err != nil {
		return 0, werr.Store("count chunks", err)
	}
	return n, nil
}

func (s *vectorStore) Stats() (Stats, error) {
	total, err := s.rows.count()
	if err != nil {
		return Stats{}, werr.Store("count chunks", err)
	}
	files, err := s.rows.uniqueFiles()
	if err != nil {
		return Stats{}, werr.Store("count unique files", err)
	}
	return Stats{TotalChunks: total, UniqueFiles: files}, nil
}

func (s *vectorStore) Clear() error {
	s.ann.reset()
	if err := s.rows.clear(); err != nil {
		return werr.Store("clear chunk rows", err)
	}
	return s.persist()
}

func (s *vectorStore) Close() error {
	s.ann.close()
	if err := s.rows.close(); err != nil {
		return werr.Store("close chunk rows database", err)
	}
	return nil
}

func (s *vectorStore) persist() error {
	if err := s.ann.save(annPath(s.cfg.Dir)); err != nil {
		return werr.Store("persist vector index", err)
	}
	return nil
}
