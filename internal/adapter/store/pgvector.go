package store

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/codechat-ai/codechat/internal/domain"
	"github.com/codechat-ai/codechat/internal/port"
)

// PgVectorIndex is a pgvector-backed index scoped to one session snapshot.
// A fresh snapshot ID per load keeps staged rows invisible to queries
// against the previously live snapshot until the caller swaps indexes.
type PgVectorIndex struct {
	store      *PostgresStore
	sessionID  string
	snapshotID string

	mu        sync.RWMutex
	dimension int
}

// NewPgVectorIndex creates an index over the given session snapshot.
func NewPgVectorIndex(store *PostgresStore, sessionID, snapshotID string) *PgVectorIndex {
	return &PgVectorIndex{store: store, sessionID: sessionID, snapshotID: snapshotID}
}

// Init declares the vector dimensionality and drops any staged rows left
// over from an aborted load of the same snapshot.
func (p *PgVectorIndex) Init(ctx context.Context, dimension int) error {
	if dimension <= 0 {
		return &port.StoreError{Op: "init", Err: fmt.Errorf("invalid dimension %d", dimension)}
	}
	p.mu.Lock()
	p.dimension = dimension
	p.mu.Unlock()

	_, err := p.store.db.ExecContext(ctx,
		`DELETE FROM embeddings WHERE session_id = $1 AND snapshot_id = $2`,
		p.sessionID, p.snapshotID,
	)
	if err != nil {
		return &port.StoreError{Op: "init", Err: err}
	}
	return nil
}

// Upsert inserts or replaces records by (file_path, ordinal) within the
// snapshot, in a single transaction.
func (p *PgVectorIndex) Upsert(ctx context.Context, records []domain.IndexedRecord) error {
	p.mu.RLock()
	dimension := p.dimension
	p.mu.RUnlock()

	if dimension == 0 {
		return &port.StoreError{Op: "upsert", Err: port.ErrStoreUninitialized}
	}
	for _, r := range records {
		if len(r.Vector) != dimension {
			return &port.StoreError{
				Op:  "upsert",
				Err: fmt.Errorf("%w: record %s has %d, index has %d", port.ErrDimensionMismatch, r.Key(), len(r.Vector), dimension),
			}
		}
	}
	if len(records) == 0 {
		return nil
	}

	tx, err := p.store.db.BeginTx(ctx, nil)
	if err != nil {
		return &port.StoreError{Op: "upsert", Err: fmt.Errorf("begin tx: %w", err)}
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO embeddings (session_id, snapshot_id, file_path, ordinal, content, language, symbol, vector)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8::vector)
		 ON CONFLICT (session_id, snapshot_id, file_path, ordinal) DO UPDATE SET
			content = EXCLUDED.content,
			language = EXCLUDED.language,
			symbol = EXCLUDED.symbol,
			vector = EXCLUDED.vector`)
	if err != nil {
		return &port.StoreError{Op: "upsert", Err: fmt.Errorf("prepare: %w", err)}
	}
	defer stmt.Close()

	for _, r := range records {
		if _, err := stmt.ExecContext(ctx,
			p.sessionID, p.snapshotID, r.FilePath, r.Ordinal,
			r.Content, r.Language, r.Symbol, vectorToString(r.Vector),
		); err != nil {
			return &port.StoreError{Op: "upsert", Err: fmt.Errorf("insert %s: %w", r.Key(), err)}
		}
	}

	if err := tx.Commit(); err != nil {
		return &port.StoreError{Op: "upsert", Err: fmt.Errorf("commit: %w", err)}
	}
	return nil
}

// Query returns the k nearest records by cosine distance. Ties at equal
// distance resolve by insertion order via the serial id.
func (p *PgVectorIndex) Query(ctx context.Context, embedding []float32, k int) ([]domain.SimilarChunk, error) {
	p.mu.RLock()
	dimension := p.dimension
	p.mu.RUnlock()

	if dimension == 0 {
		return nil, &port.StoreError{Op: "query", Err: port.ErrStoreUninitialized}
	}
	if len(embedding) != dimension {
		return nil, &port.StoreError{
			Op:  "query",
			Err: fmt.Errorf("%w: query has %d, index has %d", port.ErrDimensionMismatch, len(embedding), dimension),
		}
	}
	if k <= 0 {
		return nil, nil
	}

	query := `SELECT file_path, ordinal, content, language, symbol,
	                 1 - (vector <=> $1::vector) AS similarity
	          FROM embeddings
	          WHERE session_id = $2 AND snapshot_id = $3
	          ORDER BY vector <=> $1::vector, id
	          LIMIT $4`

	rows, err := p.store.db.QueryContext(ctx, query, vectorToString(embedding), p.sessionID, p.snapshotID, k)
	if err != nil {
		return nil, &port.StoreError{Op: "query", Err: err}
	}
	defer rows.Close()

	var results []domain.SimilarChunk
	for rows.Next() {
		var sc domain.SimilarChunk
		if err := rows.Scan(&sc.FilePath, &sc.Ordinal, &sc.Content, &sc.Language, &sc.Symbol, &sc.Similarity); err != nil {
			return nil, &port.StoreError{Op: "query", Err: fmt.Errorf("scan: %w", err)}
		}
		results = append(results, sc)
	}
	if err := rows.Err(); err != nil {
		return nil, &port.StoreError{Op: "query", Err: err}
	}
	return results, nil
}

// Count returns the number of records in the snapshot.
func (p *PgVectorIndex) Count(ctx context.Context) (int, error) {
	var count int
	err := p.store.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM embeddings WHERE session_id = $1 AND snapshot_id = $2`,
		p.sessionID, p.snapshotID,
	).Scan(&count)
	if err != nil {
		return 0, &port.StoreError{Op: "count", Err: err}
	}
	return count, nil
}

// Clear removes all records in the snapshot.
func (p *PgVectorIndex) Clear(ctx context.Context) error {
	_, err := p.store.db.ExecContext(ctx,
		`DELETE FROM embeddings WHERE session_id = $1 AND snapshot_id = $2`,
		p.sessionID, p.snapshotID,
	)
	if err != nil {
		return &port.StoreError{Op: "clear", Err: err}
	}
	return nil
}

// vectorToString converts a float32 slice to pgvector text format: [0.1,0.2,0.3].
func vectorToString(v []float32) string {
	parts := make([]string, len(v))
	for i, val := range v {
		parts[i] = fmt.Sprintf("%g", val)
	}
	return "[" + strings.Join(parts, ",") + "]"
}
