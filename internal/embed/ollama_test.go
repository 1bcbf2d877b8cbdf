package embed

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestEmbedder(t *testing.T, handler http.HandlerFunc) (*OllamaEmbedder, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	e := NewOllamaEmbedder(OllamaConfig{BaseURL: srv.URL, Dimensions: 4, Timeout: 2 * time.Second, Retries: 3})
	t.Cleanup(func() { _ = e.Close() })
	return e, srv
}

func TestEmbed_Success(t *testing.T) {
	e, _ := newTestEmbedder(t, func(w http.ResponseWriter, r *http.Request) {
		var req embedRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "/api/embeddings", r.URL.Path)
		_ = json.NewEncoder(w).Encode(embedResponse{Embedding: []float32{1, 0, 0, 0}})
	})

	vec, err := e.Embed(context.Background(), "hello")
	require.NoError(t, err)
	assert.Len(t, vec, 4)
}

func TestEmbed_RetriesThenSucceeds(t *testing.T) {
	var calls int32
	e, _ := newTestEmbedder(t, func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt32(&calls, 1)
		if n < 3 {
			// Drop the connection without a response: a network-level
			// failure, which Embed retries (an HTTP error status is not).
			panic(http.ErrAbortHandler)
		}
		_ = json.NewEncoder(w).Encode(embedResponse{Embedding: []float32{0, 1, 0, 0}})
	})
	e.config.Timeout = 2 * time.Second

	start := time.Now()
	vec, err := e.Embed(context.Background(), "hello")
	require.NoError(t, err)
	assert.Len(t, vec, 4)
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
	assert.GreaterOrEqual(t, time.Since(start), time.Second) // backoff before attempts 2 and 3
}

func TestEmbed_NonRetryableProtocolErrorFailsFast(t *testing.T) {
	var calls int32
	e, _ := newTestEmbedder(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte("bad request"))
	})

	_, err := e.Embed(context.Background(), "hello")
	require.Error(t, err)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestEmbedBatch_PartialFailureSubstitutesZeroVector(t *testing.T) {
	e, _ := newTestEmbedder(t, func(w http.ResponseWriter, r *http.Request) {
		var req embedRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		if req.Prompt == "bad" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		_ = json.NewEncoder(w).Encode(embedResponse{Embedding: []float32{1, 1, 1, 1}})
	})

	results, err := e.EmbedBatch(context.Background(), []string{"good", "bad", "good"})
	require.NoError(t, err)
	require.Len(t, results, 3)
	assert.NotZero(t, results[0][0])
	assert.Equal(t, []float32{0, 0, 0, 0}, results[1])
	assert.NotZero(t, results[2][0])
}

func TestEmbedBatch_AllFailuresFailTheBatch(t *testing.T) {
	e, _ := newTestEmbedder(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	})

	_, err := e.EmbedBatch(context.Background(), []string{"a", "b"})
	require.Error(t, err)
}

func TestHasModel(t *testing.T) {
	e, _ := newTestEmbedder(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/tags", r.URL.Path)
		_ = json.NewEncoder(w).Encode(tagsResponse{Models: []struct {
			Name string `json:"name"`
		}{{Name: DefaultModel}}})
	})

	ok, err := e.HasModel(context.Background())
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestPing(t *testing.T) {
	e, _ := newTestEmbedder(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/tags", r.URL.Path)
		_ = json.NewEncoder(w).Encode(tagsResponse{})
	})
	assert.True(t, e.Ping(context.Background()))
}

func TestPing_UnreachableBackend(t *testing.T) {
	e := NewOllamaEmbedder(OllamaConfig{BaseURL: "http://127.0.0.1:1", Dimensions: 4, Timeout: 200 * time.Millisecond})
	t.Cleanup(func() { _ = e.Close() })
	assert.False(t, e.Ping(context.Background()))
}
