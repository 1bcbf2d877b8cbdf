// Package config loads wb-grep's on-disk and environment configuration.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/wb200/wb-grep/internal/werr"
)

// candidateFilenames are tried in order, first match wins.
var candidateFilenames = []string{".wbgreprc", ".wbgreprc.json", "wbgrep.config.json"}

// OllamaConfig configures the embedding backend (C3).
type OllamaConfig struct {
	BaseURL string `json:"baseURL"`
	Model   string `json:"model"`
	Timeout int    `json:"timeout"` // milliseconds
	Retries int    `json:"retries"`
}

// IndexingConfig configures the indexer (C6).
type IndexingConfig struct {
	BatchSize   int   `json:"batchSize"`
	MaxFileSize int64 `json:"maxFileSize"`
	Concurrency int   `json:"concurrency"`
}

// SearchConfig configures default query behavior.
type SearchConfig struct {
	MaxResults  int  `json:"maxResults"`
	ShowContent bool `json:"showContent"`
}

// IgnoreConfig carries extra ignore patterns beyond .gitignore/.wbgrepignore.
type IgnoreConfig struct {
	Extra []string `json:"extra"`
}

// Config is wb-grep's full configuration surface.
type Config struct {
	Ollama   OllamaConfig   `json:"ollama"`
	Indexing IndexingConfig `json:"indexing"`
	Search   SearchConfig   `json:"search"`
	Ignore   IgnoreConfig   `json:"ignore"`
}

// Default returns the configuration used when no config file is present.
func Default() *Config {
	return &Config{
		Ollama: OllamaConfig{
			BaseURL: "http://localhost:11434",
			Model:   "qwen3-embedding:0.6b",
			Timeout: 30000,
			Retries: 3,
		},
		Indexing: IndexingConfig{
			BatchSize:   10,
			MaxFileSize: 1 << 20, // 1 MiB
			Concurrency: 8,
		},
		Search: SearchConfig{
			MaxResults:  10,
			ShowContent: false,
		},
	}
}

// Load reads the first matching config file under root (if any), applies
// it over Default(), then layers WBGREP_-prefixed environment overrides
// on top. A missing config file is not an error.
func Load(root string) (*Config, error) {
	cfg := Default()

	for _, name := range candidateFilenames {
		path := filepath.Join(root, name)
		data, err := os.ReadFile(path)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return nil, werr.Config(fmt.Sprintf("read %s", path), err)
		}
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, werr.Config(fmt.Sprintf("parse %s", path), err)
		}
		break
	}

	applyEnvOverrides(cfg)
	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	if v, ok := os.LookupEnv("WBGREP_OLLAMA_BASE_URL"); ok {
		cfg.Ollama.BaseURL = v
	}
	if v, ok := os.LookupEnv("WBGREP_OLLAMA_MODEL"); ok {
		cfg.Ollama.Model = v
	}
	if v, ok := envInt("WBGREP_OLLAMA_TIMEOUT"); ok {
		cfg.Ollama.Timeout = v
	}
	if v, ok := envInt("WBGREP_OLLAMA_RETRIES"); ok {
		cfg.Ollama.Retries = v
	}
	if v, ok := envInt("WBGREP_INDEXING_BATCH_SIZE"); ok {
		cfg.Indexing.BatchSize = v
	}
	if v, ok := envInt("WBGREP_INDEXING_MAX_FILE_SIZE"); ok {
		cfg.Indexing.MaxFileSize = int64(v)
	}
	if v, ok := envInt("WBGREP_INDEXING_CONCURRENCY"); ok {
		cfg.Indexing.Concurrency = v
	}
	if v, ok := envInt("WBGREP_SEARCH_MAX_RESULTS"); ok {
		cfg.Search.MaxResults = v
	}
}

func envInt(key string) (int, bool) {
	v, ok := os.LookupEnv(key)
	if !ok {
		return 0, false
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, false
	}
	return n, true
}
