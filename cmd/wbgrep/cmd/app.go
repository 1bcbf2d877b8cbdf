package cmd

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/wb200/wb-grep/internal/config"
	"github.com/wb200/wb-grep/internal/embed"
	"github.com/wb200/wb-grep/internal/engine"
	"github.com/wb200/wb-grep/internal/journal"
	"github.com/wb200/wb-grep/internal/store"
	"github.com/wb200/wb-grep/internal/walker"
)

// storeDirName is the on-disk directory wb-grep keeps its vector index and
// journal under, relative to a project root.
const storeDirName = ".wb-grep"

// app bundles the wired-up dependencies a command needs to drive the
// engine, plus a Close that releases the store and embedding client.
type app struct {
	Root     string
	Config   *config.Config
	Engine   *engine.Engine
	Embedder embed.Embedder
	Store    store.Store
	Journal  *journal.Journal
	Walker   *walker.Walker
}

// newApp resolves root to an absolute path, loads configuration, and wires
// the walker, embedding client, vector store, and state journal into an
// Engine.
func newApp(root string) (*app, error) {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve root: %w", err)
	}

	cfg, err := config.Load(absRoot)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	dataDir := filepath.Join(absRoot, storeDirName)

	embedder := embed.NewOllamaEmbedder(embed.OllamaConfig{
		BaseURL:     cfg.Ollama.BaseURL,
		Model:       cfg.Ollama.Model,
		Timeout:     time.Duration(cfg.Ollama.Timeout) * time.Millisecond,
		Retries:     cfg.Ollama.Retries,
		Concurrency: cfg.Indexing.Concurrency,
	})

	vectorStore := store.New(store.Config{
		Dir:        filepath.Join(dataDir, "vectors"),
		Dimensions: embedder.Dimensions(),
	})
	if err := vectorStore.Init(); err != nil {
		_ = embedder.Close()
		return nil, fmt.Errorf("init vector store: %w", err)
	}

	j := journal.Load(filepath.Join(dataDir, "state.json"))
	w := walker.New(absRoot, cfg.Ignore.Extra)

	eng := engine.New(engine.Config{
		Root:        absRoot,
		Store:       vectorStore,
		Embedder:    embedder,
		Journal:     j,
		Walker:      w,
		BatchSize:   cfg.Indexing.BatchSize,
		MaxFileSize: cfg.Indexing.MaxFileSize,
		MaxResults:  cfg.Search.MaxResults,
	})

	return &app{
		Root:     absRoot,
		Config:   cfg,
		Engine:   eng,
		Embedder: embedder,
		Store:    vectorStore,
		Journal:  j,
		Walker:   w,
	}, nil
}

// Close saves the journal and releases the store and embedding client.
func (a *app) Close() error {
	saveErr := a.Journal.Save()
	storeErr := a.Store.Close()
	embedErr := a.Embedder.Close()
	if saveErr != nil {
		return saveErr
	}
	if storeErr != nil {
		return storeErr
	}
	return embedErr
}
