package domain

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestChunkKey(t *testing.T) {
	c := Chunk{FilePath: "src/app.py", Ordinal: 3}
	assert.Equal(t, "src/app.py#3", c.Key())
}

func TestAttributionFor_TruncatesExcerpt(t *testing.T) {
	long := strings.Repeat("x", 600)
	attr := AttributionFor(SimilarChunk{
		Chunk:      Chunk{FilePath: "a.py", Ordinal: 1, Content: long},
		Similarity: 0.9,
	})

	assert.Equal(t, "a.py", attr.FilePath)
	assert.Equal(t, 1, attr.Ordinal)
	assert.Len(t, attr.Excerpt, 503) // 500 chars plus ellipsis
	assert.True(t, strings.HasSuffix(attr.Excerpt, "..."))
	assert.InDelta(t, 0.9, attr.Similarity, 1e-9)
}

func TestAttributionFor_ShortContentKeptWhole(t *testing.T) {
	attr := AttributionFor(SimilarChunk{
		Chunk: Chunk{FilePath: "b.py", Content: "def f(): pass"},
	})
	assert.Equal(t, "def f(): pass", attr.Excerpt)
}

func TestDetectLanguage(t *testing.T) {
	cases := map[string]string{
		"main.py":      "python",
		"src/App.TSX":  "typescript",
		"server.go":    "go",
		"README.md":    "markdown",
		"Makefile":     "text",
		"photo.unknow": "text",
	}
	for path, want := range cases {
		assert.Equal(t, want, DetectLanguage(path), path)
	}
}
