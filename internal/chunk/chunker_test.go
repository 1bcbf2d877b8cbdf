package chunk

import (
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func nLines(n int) string {
	lines := make([]string, n)
	for i := range lines {
		lines[i] = "line " + strconv.Itoa(i+1)
	}
	return strings.Join(lines, "\n")
}

func TestChunk_EmptyContent(t *testing.T) {
	assert.Nil(t, Chunk("a.go", ""))
}

func TestChunk_WholeFileShortCircuit(t *testing.T) {
	content := nLines(MaxChunkLines)
	chunks := Chunk("a.txt", content)
	require.Len(t, chunks, 1)
	assert.Equal(t, 1, chunks[0].LineStart)
	assert.Equal(t, MaxChunkLines, chunks[0].LineEnd)
}

func TestChunk_LineWindowOverlapsOnOverflow(t *testing.T) {
	content := nLines(MaxChunkLines + 1)
	chunks := Chunk("a.txt", content) // .txt has no boundary family
	require.Len(t, chunks, 2)
	assert.Equal(t, 1, chunks[0].LineStart)
	assert.Equal(t, MaxChunkLines, chunks[0].LineEnd)
	assert.True(t, chunks[1].LineStart <= chunks[0].LineEnd, "chunks must overlap")
	assert.Equal(t, MaxChunkLines+1, chunks[1].LineEnd)
}

func TestChunk_BoundaryDrivenGo(t *testing.T) {
	var b strings.Builder
	b.WriteString("package main\n\n")
	for i := 0; i < 3; i++ {
		b.WriteString("func f" + strconv.Itoa(i) + "() {\n")
		b.WriteString(nLines(60))
		b.WriteString("\n}\n\n")
	}
	chunks := Chunk("a.go", b.String())
	require.NotEmpty(t, chunks)
	for _, c := range chunks {
		assert.GreaterOrEqual(t, c.LineStart, 1)
		assert.GreaterOrEqual(t, c.LineEnd, c.LineStart)
	}
}

func TestChunk_NoBoundaryMatchesFallsBackToLineWindow(t *testing.T) {
	content := nLines(MaxChunkLines * 2)
	chunks := Chunk("a.go", content) // no "func"/"type" lines present
	require.NotEmpty(t, chunks)
	assert.Equal(t, 1, chunks[0].LineStart)
}

func TestChunk_UndersizeSpanDropped(t *testing.T) {
	var b strings.Builder
	b.WriteString("func big() {\n")
	b.WriteString(nLines(200))
	b.WriteString("\n}\n")
	b.WriteString("func tiny() {\n}\n") // span shorter than MinChunkLines
	chunks := Chunk("a.go", b.String())
	require.NotEmpty(t, chunks)
	for _, c := range chunks {
		assert.True(t, c.LineEnd-c.LineStart+1 >= MinChunkLines || c.LineEnd == c.LineStart)
	}
}
