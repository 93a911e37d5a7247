// Package chunker splits source files into bounded, overlapping segments
// for embedding. Splits prefer language-specific declaration boundaries and
// fall back to hard character cuts, so the maximum chunk size always holds
// and no content is dropped.
package chunker

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/codechat-ai/codechat/internal/domain"
	"github.com/codechat-ai/codechat/internal/port"
	"github.com/codechat-ai/codechat/pkg/config"
)

// Chunker produces deterministic chunk sequences: the same file with the
// same parameters always yields identical chunks.
type Chunker struct {
	size    int
	overlap int
	markers config.MarkerTable
}

// New creates a chunker with the given chunk size and overlap (characters).
// Overlap must be smaller than size.
func New(size, overlap int, markers config.MarkerTable) (*Chunker, error) {
	if size <= 0 {
		return nil, fmt.Errorf("chunk size must be positive, got %d", size)
	}
	if overlap < 0 || overlap >= size {
		return nil, fmt.Errorf("chunk overlap must be in [0, size), got %d", overlap)
	}
	return &Chunker{size: size, overlap: overlap, markers: markers}, nil
}

// Split chunks one source file. Empty files yield no chunks; files at or
// under the chunk size yield exactly one chunk holding the full content.
// Binary content is rejected with a ChunkingError so ingestion can skip
// the file and continue.
func (c *Chunker) Split(file domain.SourceFile) ([]domain.Chunk, error) {
	text := file.Content
	if strings.TrimSpace(text) == "" {
		return nil, nil
	}
	if looksBinary(text) {
		return nil, &port.ChunkingError{Path: file.Path, Err: fmt.Errorf("binary content")}
	}

	if len(text) <= c.size {
		return []domain.Chunk{{
			FilePath: file.Path,
			Language: file.Language,
			Ordinal:  0,
			Content:  text,
			Symbol:   symbolAt(text),
		}}, nil
	}

	markers := c.markers.Markers(file.Language)

	var chunks []domain.Chunk
	pos := 0
	symbol := symbolAt(text)
	for pos < len(text) {
		end := pos + c.size
		if end < len(text) {
			// A hard cut must not land inside a multibyte rune.
			end = runeStart(text, end)
			if end == pos {
				_, n := utf8.DecodeRuneInString(text[pos:])
				end = pos + n
			}
		}
		if end >= len(text) {
			chunks = append(chunks, domain.Chunk{
				FilePath: file.Path,
				Language: file.Language,
				Ordinal:  len(chunks),
				Content:  text[pos:],
				Symbol:   symbol,
			})
			break
		}

		cut, nextSymbol, onMarker := c.findCut(text, pos, end, markers)
		chunks = append(chunks, domain.Chunk{
			FilePath: file.Path,
			Language: file.Language,
			Ordinal:  len(chunks),
			Content:  text[pos:cut],
			Symbol:   symbol,
		})

		next := cut
		if !onMarker {
			// Hard cut: back up by the overlap so no context is lost
			// across the boundary.
			if candidate := runeStart(text, cut-c.overlap); candidate > pos {
				next = candidate
			}
		}
		symbol = nextSymbol
		pos = next
	}

	return chunks, nil
}

// SplitAll chunks every file in order, skipping per-file failures. It
// returns the chunks plus the paths that were skipped.
func (c *Chunker) SplitAll(files []domain.SourceFile) ([]domain.Chunk, []string) {
	var chunks []domain.Chunk
	var skipped []string
	for _, f := range files {
		fc, err := c.Split(f)
		if err != nil {
			skipped = append(skipped, f.Path)
			continue
		}
		chunks = append(chunks, fc...)
	}
	return chunks, skipped
}

// findCut picks the split position inside (pos, end]. It prefers the last
// occurrence of the highest-priority marker within the window so chunks
// stay close to the target size; with no marker in range it falls back to
// a hard cut at end. Only hard cuts get the overlap treatment, so onMarker
// distinguishes them from paragraph cuts, which also carry no symbol.
func (c *Chunker) findCut(text string, pos, end int, markers []string) (cut int, symbol string, onMarker bool) {
	window := text[pos:end]
	for _, m := range markers {
		idx := strings.LastIndex(window, m)
		if idx <= 0 {
			continue
		}
		cut = pos + idx
		if m == "\n\n" {
			// Paragraph fallback: boundary, not a declaration.
			return cut, "", true
		}
		return cut, symbolAt(text[cut:]), true
	}
	return end, "", false
}

// symbolAt extracts the first non-empty line starting at a split boundary,
// used as the chunk's declaration symbol.
func symbolAt(text string) string {
	text = strings.TrimLeft(text, "\n\r")
	if i := strings.IndexByte(text, '\n'); i >= 0 {
		text = text[:i]
	}
	line := strings.TrimSpace(text)
	if !isDeclaration(line) {
		return ""
	}
	const maxSymbolLen = 120
	if len(line) > maxSymbolLen {
		line = line[:runeStart(line, maxSymbolLen)]
	}
	return line
}

// runeStart backs i up to the nearest UTF-8 rune boundary in text.
func runeStart(text string, i int) int {
	for i > 0 && !utf8.RuneStart(text[i]) {
		i--
	}
	return i
}

// declarationPrefixes recognize the lines worth recording as symbols.
var declarationPrefixes = []string{
	"func ", "def ", "async def ", "class ", "type ", "interface ",
	"struct ", "fn ", "impl ", "module ", "namespace ", "public ",
	"private ", "protected ", "export ", "function ",
}

func isDeclaration(line string) bool {
	for _, p := range declarationPrefixes {
		if strings.HasPrefix(line, p) {
			return true
		}
	}
	return false
}

// looksBinary reports whether content appears to be binary data that
// slipped through the extension allow-list.
func looksBinary(text string) bool {
	if strings.ContainsRune(text, '\x00') {
		return true
	}
	sample := text
	if len(sample) > 8192 {
		sample = sample[:8192]
	}
	return !utf8.ValidString(sample) && invalidRatio(sample) > 0.1
}

func invalidRatio(s string) float64 {
	invalid := 0
	total := 0
	for len(s) > 0 {
		r, size := utf8.DecodeRuneInString(s)
		if r == utf8.RuneError && size == 1 {
			invalid++
		}
		total++
		s = s[size:]
	}
	if total == 0 {
		return 0
	}
	return float64(invalid) / float64(total)
}
