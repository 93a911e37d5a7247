package service

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/codechat-ai/codechat/internal/domain"
	"github.com/codechat-ai/codechat/internal/port"
)

// sessionState pairs a session with its live vector index. The index is
// swapped atomically under the registry lock when a repository load
// completes.
type sessionState struct {
	session *domain.Session
	index   port.VectorIndex
}

// SessionService manages the in-memory session registry: creation,
// lookup, history, the ingest flag, and the live index per session.
type SessionService struct {
	mu         sync.RWMutex
	sessions   map[string]*sessionState
	ttl        time.Duration
	maxHistory int
}

// NewSessionService creates a session registry. Sessions idle longer than
// ttl are removed by the sweeper; history is capped at maxHistory turns.
func NewSessionService(ttl time.Duration, maxHistory int) *SessionService {
	return &SessionService{
		sessions:   make(map[string]*sessionState),
		ttl:        ttl,
		maxHistory: maxHistory,
	}
}

// Create registers a new empty session and returns it.
func (s *SessionService) Create() *domain.Session {
	now := time.Now()
	session := &domain.Session{
		ID:         uuid.NewString(),
		CreatedAt:  now,
		LastActive: now,
	}

	s.mu.Lock()
	s.sessions[session.ID] = &sessionState{session: session}
	s.mu.Unlock()

	slog.Info("session created", "session_id", session.ID)
	return session
}

// Get returns a copy of the session and refreshes its activity timestamp.
func (s *SessionService) Get(id string) (*domain.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	state, ok := s.sessions[id]
	if !ok {
		return nil, port.ErrSessionNotFound
	}
	state.session.LastActive = time.Now()
	return copySession(state.session), nil
}

// Delete removes a session and clears its index.
func (s *SessionService) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	state, ok := s.sessions[id]
	if ok {
		delete(s.sessions, id)
	}
	s.mu.Unlock()

	if !ok {
		return port.ErrSessionNotFound
	}
	if state.index != nil {
		if err := state.index.Clear(ctx); err != nil {
			slog.Warn("index cleanup failed", "session_id", id, "error", err)
		}
	}
	slog.Info("session deleted", "session_id", id)
	return nil
}

// Index returns the session's live vector index, or ErrNoRepository when
// no repository has been loaded yet.
func (s *SessionService) Index(id string) (port.VectorIndex, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	state, ok := s.sessions[id]
	if !ok {
		return nil, port.ErrSessionNotFound
	}
	if state.index == nil {
		return nil, port.ErrNoRepository
	}
	return state.index, nil
}

// SwapIndex installs a fully built index and repository info, replacing
// whatever was live before. The previous index is cleared best-effort so
// queries never observe a partially loaded state.
func (s *SessionService) SwapIndex(ctx context.Context, id string, index port.VectorIndex, repo *domain.RepositoryInfo) error {
	s.mu.Lock()
	state, ok := s.sessions[id]
	if !ok {
		s.mu.Unlock()
		return port.ErrSessionNotFound
	}
	previous := state.index
	state.index = index
	state.session.Repository = repo
	state.session.LastActive = time.Now()
	s.mu.Unlock()

	if previous != nil {
		if err := previous.Clear(ctx); err != nil {
			slog.Warn("previous index cleanup failed", "session_id", id, "error", err)
		}
	}
	return nil
}

// ClearRepository unloads the session's repository and drops its index.
func (s *SessionService) ClearRepository(ctx context.Context, id string) error {
	s.mu.Lock()
	state, ok := s.sessions[id]
	if !ok {
		s.mu.Unlock()
		return port.ErrSessionNotFound
	}
	previous := state.index
	state.index = nil
	state.session.Repository = nil
	state.session.History = nil
	s.mu.Unlock()

	if previous != nil {
		if err := previous.Clear(ctx); err != nil {
			slog.Warn("index cleanup failed", "session_id", id, "error", err)
		}
	}
	return nil
}

// SetIngesting marks whether a repository load is running. Starting a
// load while one is already running returns ErrIngestInProgress.
func (s *SessionService) SetIngesting(id string, ingesting bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	state, ok := s.sessions[id]
	if !ok {
		return port.ErrSessionNotFound
	}
	if ingesting && state.session.Ingesting {
		return port.ErrIngestInProgress
	}
	state.session.Ingesting = ingesting
	return nil
}

// AppendTurn records a completed conversation turn, trimming the oldest
// entries past the history cap.
func (s *SessionService) AppendTurn(id string, turn domain.ConversationTurn) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	state, ok := s.sessions[id]
	if !ok {
		return port.ErrSessionNotFound
	}
	state.session.History = append(state.session.History, turn)
	if s.maxHistory > 0 && len(state.session.History) > s.maxHistory {
		overflow := len(state.session.History) - s.maxHistory
		state.session.History = state.session.History[overflow:]
	}
	state.session.LastActive = time.Now()
	return nil
}

// History returns a copy of the session's conversation turns.
func (s *SessionService) History(id string) ([]domain.ConversationTurn, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	state, ok := s.sessions[id]
	if !ok {
		return nil, port.ErrSessionNotFound
	}
	history := make([]domain.ConversationTurn, len(state.session.History))
	copy(history, state.session.History)
	return history, nil
}

// ResetHistory clears the conversation without unloading the repository.
func (s *SessionService) ResetHistory(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	state, ok := s.sessions[id]
	if !ok {
		return port.ErrSessionNotFound
	}
	state.session.History = nil
	state.session.LastActive = time.Now()
	return nil
}

// StartSweeper removes idle sessions in the background until ctx is done.
func (s *SessionService) StartSweeper(ctx context.Context) {
	if s.ttl <= 0 {
		return
	}
	interval := s.ttl / 4
	if interval < time.Minute {
		interval = time.Minute
	}

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.sweep(ctx)
			}
		}
	}()
}

func (s *SessionService) sweep(ctx context.Context) {
	cutoff := time.Now().Add(-s.ttl)

	s.mu.Lock()
	var expired []*sessionState
	for id, state := range s.sessions {
		// Never expire mid-ingest, the load goroutine still needs the entry.
		if state.session.Ingesting {
			continue
		}
		if state.session.LastActive.Before(cutoff) {
			expired = append(expired, state)
			delete(s.sessions, id)
		}
	}
	s.mu.Unlock()

	for _, state := range expired {
		if state.index != nil {
			if err := state.index.Clear(ctx); err != nil {
				slog.Warn("expired index cleanup failed", "session_id", state.session.ID, "error", err)
			}
		}
		slog.Info("session expired", "session_id", state.session.ID, "last_active", state.session.LastActive)
	}
}

// copySession deep-copies the mutable parts callers could otherwise race on.
func copySession(src *domain.Session) *domain.Session {
	dst := *src
	if src.Repository != nil {
		repo := *src.Repository
		dst.Repository = &repo
	}
	dst.History = make([]domain.ConversationTurn, len(src.History))
	copy(dst.History, src.History)
	return &dst
}
