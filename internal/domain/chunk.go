package domain

import "strconv"

// SourceFile is a single file read from a cloned repository.
// It only lives for the duration of ingestion; chunks are what persist.
type SourceFile struct {
	Path     string `json:"path"`
	Language string `json:"language"`
	Content  string `json:"-"`
}

// Chunk is a bounded segment of a source file, the unit of embedding
// and retrieval. Symbol is set when the chunk starts at a declaration
// boundary (e.g. "func Foo(" or "class Bar:").
type Chunk struct {
	FilePath string `json:"file_path"`
	Language string `json:"language"`
	Ordinal  int    `json:"ordinal"`
	Content  string `json:"content"`
	Symbol   string `json:"symbol,omitempty"`
}

// Key identifies a chunk within a repository: file path plus ordinal.
// Upserts replace records with the same key.
func (c Chunk) Key() string {
	return c.FilePath + "#" + strconv.Itoa(c.Ordinal)
}

// IndexedRecord couples a chunk with its embedding vector for storage.
type IndexedRecord struct {
	Chunk
	Vector []float32 `json:"-"`
}

// SimilarChunk is returned by vector search, including the similarity score.
type SimilarChunk struct {
	Chunk
	Similarity float64 `json:"similarity"`
}

// Attribution is the (file path, excerpt, score) tuple that justifies part
// of an answer.
type Attribution struct {
	FilePath   string  `json:"file_path"`
	Ordinal    int     `json:"ordinal"`
	Excerpt    string  `json:"excerpt"`
	Similarity float64 `json:"similarity"`
}

const maxExcerptLen = 500

// AttributionFor builds an attribution from a search hit, truncating the
// excerpt the way the answer payload expects.
func AttributionFor(sc SimilarChunk) Attribution {
	excerpt := sc.Content
	if len(excerpt) > maxExcerptLen {
		excerpt = excerpt[:maxExcerptLen] + "..."
	}
	return Attribution{
		FilePath:   sc.FilePath,
		Ordinal:    sc.Ordinal,
		Excerpt:    excerpt,
		Similarity: sc.Similarity,
	}
}
