package domain

import "time"

// Session is the per-browser-session context object. Each session owns its
// own vector index and conversation history; nothing is shared across
// sessions.
type Session struct {
	ID         string    `json:"id"`
	CreatedAt  time.Time `json:"created_at"`
	LastActive time.Time `json:"last_active"`

	Repository *RepositoryInfo    `json:"repository,omitempty"`
	History    []ConversationTurn `json:"history"`

	// Ingesting is true while a repository load is in flight; queries are
	// rejected until it completes.
	Ingesting bool `json:"ingesting"`
}

// RepositoryInfo describes the currently loaded repository snapshot.
type RepositoryInfo struct {
	URL        string      `json:"url"`
	Name       string      `json:"name"`
	LoadedAt   time.Time   `json:"loaded_at"`
	Stats      IngestStats `json:"stats"`
	Dimension  int         `json:"dimension"`
	EmbedModel string      `json:"embed_model"`
}

// IngestStats summarizes one ingestion run for display in the UI.
type IngestStats struct {
	FilesScanned int                      `json:"files_scanned"`
	FilesAdded   int                      `json:"files_added"`
	FilesSkipped int                      `json:"files_skipped"`
	ChunkCount   int                      `json:"chunk_count"`
	TotalLines   int                      `json:"total_lines"`
	Languages    map[string]LanguageStats `json:"languages"`
}

// LanguageStats counts files and lines for a single language.
type LanguageStats struct {
	Files int `json:"files"`
	Lines int `json:"lines"`
}

// Turn states. A question moves through these in order and ends in
// answered or failed; a failed turn never carries a partial answer.
const (
	TurnReceived    = "received"
	TurnEmbedded    = "embedded"
	TurnRetrieved   = "retrieved"
	TurnPromptBuilt = "prompt_built"
	TurnAnswered    = "answered"
	TurnFailed      = "failed"
)

// ConversationTurn is one question/answer exchange, with the attributions
// used to produce the answer. Append-only within a session.
type ConversationTurn struct {
	Question  string        `json:"question"`
	Answer    string        `json:"answer,omitempty"`
	State     string        `json:"state"`
	Error     string        `json:"error,omitempty"`
	Sources   []Attribution `json:"sources,omitempty"`
	AskedAt   time.Time     `json:"asked_at"`
	ElapsedMS int64         `json:"elapsed_ms"`
}
