package chunk

// Chunking constants: the maximum lines per chunk, the overlap between
// consecutive line-window chunks, and the minimum lines a chunk must span
// to be kept.
const (
	MaxChunkLines = 150
	OverlapLines  = 5
	MinChunkLines = 5
)

// ChunkSpan is a contiguous, 1-based inclusive line range of a single file.
type ChunkSpan struct {
	Content   string
	LineStart int
	LineEnd   int
}
