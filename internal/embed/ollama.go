package embed

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/wb200/wb-grep/internal/werr"
)

// DefaultBaseURL is the default embedding backend address.
const DefaultBaseURL = "http://localhost:11434"

// DefaultModel is the default embedding model name.
const DefaultModel = "qwen3-embedding:0.6b"

// DefaultTimeout is the per-attempt HTTP timeout.
const DefaultTimeout = 30 * time.Second

// DefaultRetries is the number of attempts per call (first attempt + retries).
const DefaultRetries = 3

// DefaultConcurrency is the default number of in-flight requests for EmbedBatch.
const DefaultConcurrency = 8

// maxBackoff caps the inter-attempt backoff delay.
const maxBackoff = 10 * time.Second

// OllamaConfig configures an OllamaEmbedder.
type OllamaConfig struct {
	BaseURL     string
	Model       string
	Timeout     time.Duration
	Retries     int
	Concurrency int
	Dimensions  int
}

func (c OllamaConfig) withDefaults() OllamaConfig {
	if c.BaseURL == "" {
		c.BaseURL = DefaultBaseURL
	}
	if c.Model == "" {
		c.Model = DefaultModel
	}
	if c.Timeout <= 0 {
		c.Timeout = DefaultTimeout
	}
	if c.Retries <= 0 {
		c.Retries = DefaultRetries
	}
	if c.Concurrency <= 0 {
		c.Concurrency = DefaultConcurrency
	}
	if c.Dimensions <= 0 {
		c.Dimensions = DefaultDimensions
	}
	return c
}

// OllamaEmbedder generates embeddings using an Ollama-compatible HTTP API.
type OllamaEmbedder struct {
	client    *http.Client
	transport *http.Transport
	config    OllamaConfig

	mu     sync.RWMutex
	closed bool
}

var _ Embedder = (*OllamaEmbedder)(nil)

// NewOllamaEmbedder creates a new embedder against cfg.BaseURL.
func NewOllamaEmbedder(cfg OllamaConfig) *OllamaEmbedder {
	cfg = cfg.withDefaults()

	transport := &http.Transport{
		MaxIdleConns:        cfg.Concurrency,
		MaxIdleConnsPerHost: cfg.Concurrency,
		MaxConnsPerHost:     cfg.Concurrency * 2,
		IdleConnTimeout:     10 * time.Second,
	}

	// No static http.Client.Timeout: each attempt gets its own
	// context.WithTimeout so backoff sleeps between attempts aren't
	// counted against the per-request deadline.
	client := &http.Client{Transport: transport}

	return &OllamaEmbedder{
		client:    client,
		transport: transport,
		config:    cfg,
	}
}

func (e *OllamaEmbedder) Dimensions() int  { return e.config.Dimensions }
func (e *OllamaEmbedder) ModelName() string { return e.config.Model }

type embedRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
}

type embedResponse struct {
	Embedding []float32 `json:"embedding"`
}

type tagsResponse struct {
	Models []struct {
		Name string `json:"name"`
	} `json:"models"`
}

// HasModel reports whether GET /api/tags lists cfg.Model, or any model whose
// name begins with cfg.Model's base name (the part before the first ':').
func (e *OllamaEmbedder) HasModel(ctx context.Context) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, e.config.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, e.config.BaseURL+"/api/tags", nil)
	if err != nil {
		return false, werr.Protocol("build tags request", err)
	}
	resp, err := e.client.Do(req)
	if err != nil {
		return false, werr.Transient("tags request failed", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return false, werr.Protocol(fmt.Sprintf("tags returned %d: %s", resp.StatusCode, body), nil)
	}

	var tr tagsResponse
	if err := json.NewDecoder(resp.Body).Decode(&tr); err != nil {
		return false, werr.Protocol("decode tags response", err)
	}

	base := e.config.Model
	if idx := strings.IndexByte(base, ':'); idx >= 0 {
		base = base[:idx]
	}
	for _, m := range tr.Models {
		if m.Name == e.config.Model || strings.HasPrefix(m.Name, base) {
			return true, nil
		}
	}
	return false, nil
}

// Ping reports whether the backend answers GET /api/tags at all, regardless
// of which models it advertises. Used as a cheap liveness check before a
// full index or query run.
func (e *OllamaEmbedder) Ping(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, e.config.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, e.config.BaseURL+"/api/tags", nil)
	if err != nil {
		return false
	}
	resp, err := e.client.Do(req)
	if err != nil {
		return false
	}
	defer func() { _ = resp.Body.Close() }()
	return resp.StatusCode == http.StatusOK
}

// Embed generates an embedding for a single text, retrying per the backoff
// schedule min(1000*2^(k-2), 10000)ms before attempt k (k>=2).
func (e *OllamaEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	var lastErr error
	for attempt := 1; attempt <= e.config.Retries; attempt++ {
		if attempt > 1 {
			delay := backoffFor(attempt)
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(delay):
			}
		}

		vec, err := e.doEmbed(ctx, text)
		if err == nil {
			return normalizeVector(vec), nil
		}
		lastErr = err
		if !werr.IsRetryable(err) {
			return nil, err
		}
	}
	return nil, werr.Transient(fmt.Sprintf("embedding failed after %d attempts", e.config.Retries), lastErr)
}

// backoffFor returns the delay before attempt k (k>=2); attempt 1 has no delay.
func backoffFor(attempt int) time.Duration {
	if attempt < 2 {
		return 0
	}
	ms := 1000 * (1 << uint(attempt-2))
	d := time.Duration(ms) * time.Millisecond
	if d > maxBackoff {
		return maxBackoff
	}
	return d
}

// doEmbed performs a single HTTP attempt, racing the request against ctx
// cancellation so a caller can abandon a hung call without leaking the
// goroutine or the connection.
func (e *OllamaEmbedder) doEmbed(ctx context.Context, text string) ([]float32, error) {
	ctx, cancel := context.WithTimeout(ctx, e.config.Timeout)
	defer cancel()

	type result struct {
		vec []float32
		err error
	}
	resultCh := make(chan result, 1)

	go func() {
		vec, err := e.embedOnce(ctx, text)
		resultCh <- result{vec, err}
	}()

	select {
	case <-ctx.Done():
		e.transport.CloseIdleConnections()
		return nil, werr.Transient("embed request canceled or timed out", ctx.Err())
	case r := <-resultCh:
		return r.vec, r.err
	}
}

func (e *OllamaEmbedder) embedOnce(ctx context.Context, text string) ([]float32, error) {
	body, err := json.Marshal(embedRequest{Model: e.config.Model, Prompt: text})
	if err != nil {
		return nil, werr.Protocol("marshal embed request", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.config.BaseURL+"/api/embeddings", bytes.NewReader(body))
	if err != nil {
		return nil, werr.Protocol("build embed request", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, werr.Transient("embed request failed", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return nil, werr.Protocol(fmt.Sprintf("embed backend returned %d: %s", resp.StatusCode, respBody), nil)
	}

	var er embedResponse
	if err := json.NewDecoder(resp.Body).Decode(&er); err != nil {
		return nil, werr.Protocol("decode embed response", err)
	}
	return er.Embedding, nil
}

// EmbedBatch embeds texts with at most config.Concurrency requests in
// flight. A per-text failure is substituted with a zero vector at that
// index; the batch call itself only fails if every text failed.
func (e *OllamaEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	results := make([][]float32, len(texts))
	errs := make([]error, len(texts))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.config.Concurrency)

	for i, text := range texts {
		i, text := i, text
		g.Go(func() error {
			vec, err := e.Embed(gctx, text)
			if err != nil {
				errs[i] = err
				results[i] = make([]float32, e.config.Dimensions)
				return nil // per-item failure doesn't abort the group
			}
			results[i] = vec
			return nil
		})
	}
	_ = g.Wait()

	var firstErr error
	failures := 0
	for _, err := range errs {
		if err != nil {
			failures++
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	if failures == len(texts) {
		return nil, werr.Transient("all items in batch failed", firstErr)
	}
	for i, err := range errs {
		if err != nil {
			slog.Warn("embedding failed for item, substituting zero vector",
				slog.Int("index", i), slog.String("error", err.Error()))
		}
	}
	return results, nil
}

// Close closes the embedder's idle connections and replaces the client's
// transport so pooled connections are not reused afterwards. Connections
// still serving a request are not force-closed.
func (e *OllamaEmbedder) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return nil
	}
	e.closed = true
	e.transport.CloseIdleConnections()
	// Replace the transport so any still-active connections are orphaned
	// and garbage collected rather than reused after Close.
	e.client.Transport = &http.Transport{}
	return nil
}
