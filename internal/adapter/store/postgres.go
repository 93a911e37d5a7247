package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"
)

// PostgresStore holds the shared connection pool for pgvector-backed
// indexes. Every session index created from it shares the pool.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore opens a connection, verifies it, and ensures the
// embeddings schema exists.
func NewPostgresStore(databaseURL string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.PingContext(context.Background()); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}

	s := &PostgresStore{db: db}
	if err := s.ensureSchema(context.Background()); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Close closes the database connection.
func (s *PostgresStore) Close() error {
	return s.db.Close()
}

// DB returns the underlying *sql.DB for use in transactions.
func (s *PostgresStore) DB() *sql.DB {
	return s.db
}

// ensureSchema creates the embeddings table if missing. The vector column
// is untyped so indexes with different embedding dimensions can coexist;
// dimension checks happen in Go before any row is written.
func (s *PostgresStore) ensureSchema(ctx context.Context) error {
	statements := []string{
		`CREATE EXTENSION IF NOT EXISTS vector`,
		`CREATE TABLE IF NOT EXISTS embeddings (
			id          BIGSERIAL PRIMARY KEY,
			session_id  TEXT NOT NULL,
			snapshot_id TEXT NOT NULL,
			file_path   TEXT NOT NULL,
			ordinal     INT NOT NULL,
			content     TEXT NOT NULL,
			language    TEXT NOT NULL DEFAULT '',
			symbol      TEXT NOT NULL DEFAULT '',
			vector      vector NOT NULL,
			created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			UNIQUE (session_id, snapshot_id, file_path, ordinal)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_embeddings_session_snapshot
			ON embeddings (session_id, snapshot_id)`,
	}
	for _, stmt := range statements {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}
