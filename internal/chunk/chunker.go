package chunk

import (
	"path/filepath"
	"regexp"
	"strings"
)

// boundaryPatterns maps a file extension to the regex family that marks a
// probable top-level declaration start (function, class, struct...). Files
// with no matching family always fall back to the line-window chunker.
var boundaryPatterns = map[string]*regexp.Regexp{
	".ts":   tsBoundary,
	".tsx":  tsBoundary,
	".js":   tsBoundary,
	".jsx":  tsBoundary,
	".py":   pyBoundary,
	".java": javaBoundary,
	".go":   goBoundary,
	".rs":   rsBoundary,
	".rb":   rbBoundary,
	".php":  phpBoundary,
	".c":    cBoundary,
	".h":    cBoundary,
	".cpp":  cBoundary,
}

var (
	tsBoundary   = regexp.MustCompile(`^\s*(export\s+)?(default\s+)?(async\s+)?(function|class|interface|type|const|enum)\s`)
	pyBoundary   = regexp.MustCompile(`^\s*(async\s+def|def|class)\s`)
	javaBoundary = regexp.MustCompile(`^\s*(public|private|protected|static|final|abstract)[\w\s<>\[\]]*\s(class|interface|enum)\s|^\s*(public|private|protected)[\w\s<>\[\],]*\([^)]*\)\s*\{?\s*$`)
	goBoundary   = regexp.MustCompile(`^\s*func\s|^\s*type\s+\w+\s+(struct|interface)\s*\{`)
	rsBoundary   = regexp.MustCompile(`^\s*(pub\s+)?(async\s+)?(fn|struct|enum|trait|impl)\s`)
	rbBoundary   = regexp.MustCompile(`^\s*(def|class|module)\s`)
	phpBoundary  = regexp.MustCompile(`^\s*(public|private|protected|static|abstract|final)?\s*(function|class|interface|trait)\s`)
	cBoundary    = regexp.MustCompile(`^\s*(static\s+|inline\s+)*[\w][\w\s\*]*\s+\w+\s*\([^;]*\)\s*\{?\s*$|^\s*(struct|enum|union|class)\s+\w+\s*\{?`)
)

// boundaryRegexFor returns the boundary family for path's extension, or nil
// if the extension has no known family (line-window chunking applies).
func boundaryRegexFor(path string) *regexp.Regexp {
	ext := strings.ToLower(filepath.Ext(path))
	return boundaryPatterns[ext]
}

// Chunk splits content into line-range chunks for path, following the
// boundary-driven strategy for recognized languages and the line-window
// strategy otherwise. Line numbers in the returned chunks are 1-based and
// inclusive, referencing the original content.
func Chunk(path string, content string) []ChunkSpan {
	lines := splitLines(content)
	total := len(lines)
	if total == 0 {
		return nil
	}
	if total <= MaxChunkLines {
		return []ChunkSpan{{Content: content, LineStart: 1, LineEnd: total}}
	}

	if re := boundaryRegexFor(path); re != nil {
		if chunks := chunkByBoundaries(lines, re); len(chunks) > 0 {
			return chunks
		}
	}
	return chunkByLineWindow(lines, 0)
}

// chunkByBoundaries detects declaration-start lines with re and forms chunks
// between consecutive boundaries, subdividing any oversize span with the
// line-window strategy and dropping any undersize span.
func chunkByBoundaries(lines []string, re *regexp.Regexp) []ChunkSpan {
	boundaries := []int{0}
	for i := 1; i < len(lines); i++ {
		if re.MatchString(lines[i]) {
			if boundaries[len(boundaries)-1] != i {
				boundaries = append(boundaries, i)
			}
		}
	}
	if len(boundaries) <= 1 {
		return nil
	}

	var chunks []ChunkSpan
	for i, start := range boundaries {
		end := len(lines)
		if i+1 < len(boundaries) {
			end = boundaries[i+1]
		}
		spanLen := end - start
		if spanLen < MinChunkLines {
			continue
		}
		if spanLen <= MaxChunkLines {
			chunks = append(chunks, ChunkSpan{
				Content:   joinLines(lines[start:end]),
				LineStart: start + 1,
				LineEnd:   end,
			})
			continue
		}
		for _, c := range chunkByLineWindow(lines[start:end], start) {
			chunks = append(chunks, c)
		}
	}
	return chunks
}

// chunkByLineWindow slides a MaxChunkLines window with OverlapLines overlap
// across lines. offset is added to every emitted line number so the caller
// can chunk a sub-slice of a larger file. The final chunk is always kept
// even if short, so a non-empty input never yields zero chunks.
func chunkByLineWindow(lines []string, offset int) []ChunkSpan {
	total := len(lines)
	if total == 0 {
		return nil
	}
	stride := MaxChunkLines - OverlapLines

	var chunks []ChunkSpan
	start := 0
	for start < total {
		end := start + MaxChunkLines
		if end > total {
			end = total
		}
		isLast := end == total
		if end-start < MinChunkLines && !isLast {
			break
		}
		chunks = append(chunks, ChunkSpan{
			Content:   joinLines(lines[start:end]),
			LineStart: offset + start + 1,
			LineEnd:   offset + end,
		})
		if isLast {
			break
		}
		start += stride
	}
	if len(chunks) == 0 {
		chunks = append(chunks, ChunkSpan{
			Content:   joinLines(lines),
			LineStart: offset + 1,
			LineEnd:   offset + total,
		})
	}
	return chunks
}

func splitLines(content string) []string {
	if content == "" {
		return nil
	}
	return strings.Split(content, "\n")
}

func joinLines(lines []string) string {
	return strings.Join(lines, "\n")
}
