package port

import (
	"errors"
	"fmt"
)

// Sentinel errors used across ports.
var (
	ErrSessionNotFound    = errors.New("session not found")
	ErrNoRepository       = errors.New("no repository loaded")
	ErrIngestInProgress   = errors.New("ingestion in progress")
	ErrStoreUninitialized = errors.New("vector store not initialized")
	ErrDimensionMismatch  = errors.New("embedding dimension mismatch")
)

// FetchError reports a failed repository fetch: unreachable URL, not a git
// repository, or a repository exceeding the configured ceilings.
type FetchError struct {
	URL    string
	Reason string
	Err    error
}

func (e *FetchError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("fetch %s: %s: %v", e.URL, e.Reason, e.Err)
	}
	return fmt.Sprintf("fetch %s: %s", e.URL, e.Reason)
}

func (e *FetchError) Unwrap() error { return e.Err }

// ChunkingError reports a single file that could not be chunked (binary
// content misclassified as source, unreadable file). These are skipped
// during ingestion, never fatal.
type ChunkingError struct {
	Path string
	Err  error
}

func (e *ChunkingError) Error() string {
	return fmt.Sprintf("chunk %s: %v", e.Path, e.Err)
}

func (e *ChunkingError) Unwrap() error { return e.Err }

// EmbeddingError reports an embedding provider failure (auth, rate limit,
// network). Callers never substitute zero vectors; they retry within the
// bounded policy or abort the ingestion.
type EmbeddingError struct {
	Provider string
	Err      error
}

func (e *EmbeddingError) Error() string {
	return fmt.Sprintf("embedding provider %s: %v", e.Provider, e.Err)
}

func (e *EmbeddingError) Unwrap() error { return e.Err }

// StoreError reports an uninitialized or corrupted vector index.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("vector store %s: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error { return e.Err }

// LLMError reports a chat-completion provider failure or an empty response.
type LLMError struct {
	Provider string
	Err      error
}

func (e *LLMError) Error() string {
	return fmt.Sprintf("llm provider %s: %v", e.Provider, e.Err)
}

func (e *LLMError) Unwrap() error { return e.Err }
