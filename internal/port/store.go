package port

import (
	"context"

	"github.com/codechat-ai/codechat/internal/domain"
)

// VectorIndex persists (chunk, vector) records and answers k-nearest-
// neighbor queries by cosine similarity. One index holds the records of
// one repository snapshot for one session; all vectors in an index share
// the dimensionality declared at Init.
type VectorIndex interface {
	// Init declares the vector dimensionality. Must be called before
	// Upsert or Query.
	Init(ctx context.Context, dimension int) error

	// Upsert inserts or replaces records by chunk identity (file path +
	// ordinal). Idempotent.
	Upsert(ctx context.Context, records []domain.IndexedRecord) error

	// Query returns the k records most similar to the embedding, ordered
	// by non-increasing similarity; ties break by insertion order. Returns
	// fewer than k when the index holds fewer records.
	Query(ctx context.Context, embedding []float32, k int) ([]domain.SimilarChunk, error)

	// Count returns the number of records held.
	Count(ctx context.Context) (int, error)

	// Clear removes all records.
	Clear(ctx context.Context) error
}

// IndexFactory creates a fresh, empty vector index for a session. Ingestion
// builds the new repository's index in a fresh instance and swaps it in
// only after the full upsert succeeds, so a failed load never corrupts the
// index currently being queried.
type IndexFactory func(sessionID string) VectorIndex
