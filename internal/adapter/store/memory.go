package store

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"

	"github.com/codechat-ai/codechat/internal/domain"
	"github.com/codechat-ai/codechat/internal/port"
)

// MemoryIndex is an in-process vector index using brute-force cosine
// similarity. Records are kept in insertion order so equal-similarity ties
// resolve to the earlier insert under the stable sort.
type MemoryIndex struct {
	mu        sync.RWMutex
	dimension int
	records   []domain.IndexedRecord
	byKey     map[string]int
}

// NewMemoryIndex creates an empty, uninitialized index.
func NewMemoryIndex() *MemoryIndex {
	return &MemoryIndex{byKey: make(map[string]int)}
}

// Init declares the vector dimensionality and resets the index.
func (m *MemoryIndex) Init(_ context.Context, dimension int) error {
	if dimension <= 0 {
		return &port.StoreError{Op: "init", Err: fmt.Errorf("invalid dimension %d", dimension)}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.dimension = dimension
	m.records = nil
	m.byKey = make(map[string]int)
	return nil
}

// Upsert inserts or replaces records by chunk key. Replacements keep the
// original insertion position so tie-breaking stays stable.
func (m *MemoryIndex) Upsert(_ context.Context, records []domain.IndexedRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.dimension == 0 {
		return &port.StoreError{Op: "upsert", Err: port.ErrStoreUninitialized}
	}
	for _, r := range records {
		if len(r.Vector) != m.dimension {
			return &port.StoreError{
				Op:  "upsert",
				Err: fmt.Errorf("%w: record %s has %d, index has %d", port.ErrDimensionMismatch, r.Key(), len(r.Vector), m.dimension),
			}
		}
	}
	for _, r := range records {
		if i, ok := m.byKey[r.Key()]; ok {
			m.records[i] = r
			continue
		}
		m.byKey[r.Key()] = len(m.records)
		m.records = append(m.records, r)
	}
	return nil
}

// Query returns the k nearest records by cosine similarity, descending.
func (m *MemoryIndex) Query(_ context.Context, embedding []float32, k int) ([]domain.SimilarChunk, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.dimension == 0 {
		return nil, &port.StoreError{Op: "query", Err: port.ErrStoreUninitialized}
	}
	if len(embedding) != m.dimension {
		return nil, &port.StoreError{
			Op:  "query",
			Err: fmt.Errorf("%w: query has %d, index has %d", port.ErrDimensionMismatch, len(embedding), m.dimension),
		}
	}
	if k <= 0 {
		return nil, nil
	}

	results := make([]domain.SimilarChunk, len(m.records))
	for i, r := range m.records {
		results[i] = domain.SimilarChunk{
			Chunk:      r.Chunk,
			Similarity: cosine(r.Vector, embedding),
		}
	}
	// Stable sort preserves insertion order for equal scores.
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Similarity > results[j].Similarity
	})
	if k > len(results) {
		k = len(results)
	}
	return results[:k], nil
}

// Count returns the number of records held.
func (m *MemoryIndex) Count(_ context.Context) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.records), nil
}

// Clear removes all records but keeps the declared dimension.
func (m *MemoryIndex) Clear(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records = nil
	m.byKey = make(map[string]int)
	return nil
}

// cosine computes cosine similarity with float64 accumulation.
func cosine(a, b []float32) float64 {
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
