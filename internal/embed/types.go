package embed

import (
	"context"
	"math"
)

// DefaultDimensions is the embedding dimension for the default model
// (qwen3-embedding:0.6b).
const DefaultDimensions = 1024

// Embedder generates vector embeddings for text.
type Embedder interface {
	// Embed generates an embedding for a single text.
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch generates embeddings for multiple texts with bounded
	// concurrency. A per-item failure yields a zero vector at that slot;
	// the batch itself only fails if every item failed.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	// Dimensions returns the embedding dimension.
	Dimensions() int

	// ModelName returns the configured model identifier.
	ModelName() string

	// HasModel checks whether the configured model is available on the backend.
	HasModel(ctx context.Context) (bool, error)

	// Ping reports whether the backend is reachable at all, independent of
	// which models it advertises.
	Ping(ctx context.Context) bool

	// Close releases resources (idle connections).
	Close() error
}

// normalizeVector normalizes a vector to unit length.
func normalizeVector(v []float32) []float32 {
	var sumSquares float64
	for _, val := range v {
		sumSquares += float64(val) * float64(val)
	}

	magnitude := math.Sqrt(sumSquares)
	if magnitude == 0 {
		return v
	}

	normalized := make([]float32, len(v))
	for i, val := range v {
		normalized[i] = float32(float64(val) / magnitude)
	}
	return normalized
}
