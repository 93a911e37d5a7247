package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/codechat-ai/codechat/internal/domain"
	"github.com/codechat-ai/codechat/internal/port"
	"github.com/codechat-ai/codechat/internal/retry"
)

const systemPrompt = `You are a codebase assistant. Answer questions about the loaded repository using only the provided code context.
Be precise, reference the specific files and functions the context shows, and quote code when it helps.
If the context does not contain the answer, say so instead of guessing.`

// exampleQuestions are starter prompts surfaced to fresh sessions.
var exampleQuestions = []string{
	"What does this repository do?",
	"Where is the main entry point and what does it set up?",
	"How is configuration loaded?",
	"How are errors handled across the codebase?",
	"Which external services does this code talk to?",
}

// RAGService answers questions about a session's loaded repository by
// embedding the question, retrieving the nearest chunks, and prompting
// the chat model with them.
type RAGService struct {
	ai       port.AIProvider
	sessions *SessionService
	k        int
	retry    retry.Policy
}

// NewRAGService creates a query service retrieving k chunks per question.
func NewRAGService(ai port.AIProvider, sessions *SessionService, k int, policy retry.Policy) *RAGService {
	if k <= 0 {
		k = 5
	}
	return &RAGService{ai: ai, sessions: sessions, k: k, retry: policy}
}

// ExampleQuestions returns starter prompts for the UI.
func (s *RAGService) ExampleQuestions() []string {
	return exampleQuestions
}

// Ask runs one conversation turn. The turn advances through its states as
// the pipeline progresses; a failure at any stage records a failed turn
// with no partial answer. The returned turn is already appended to the
// session history.
func (s *RAGService) Ask(ctx context.Context, sessionID, question string) (domain.ConversationTurn, error) {
	turn, index, history, err := s.begin(sessionID, question)
	if err != nil {
		return turn, err
	}

	contextParts, err := s.retrieve(ctx, index, &turn)
	if err != nil {
		return s.fail(sessionID, turn, err)
	}
	contextParts = append(contextParts, history...)

	answer, err := retry.Do(ctx, s.retry, func(ctx context.Context) (string, error) {
		return s.ai.Chat(ctx, systemPrompt, question, contextParts)
	})
	if err != nil {
		return s.fail(sessionID, turn, err)
	}

	turn.State = domain.TurnAnswered
	turn.Answer = answer
	turn.ElapsedMS = time.Since(turn.AskedAt).Milliseconds()
	if err := s.sessions.AppendTurn(sessionID, turn); err != nil {
		return turn, err
	}

	slog.Info("question answered",
		"session_id", sessionID,
		"sources", len(turn.Sources),
		"elapsed_ms", turn.ElapsedMS)
	return turn, nil
}

// AskStream runs one conversation turn with a streamed answer. The
// attributions are available immediately; the turn is appended to history
// once the stream drains. The error channel reports how the stream ended,
// delivering at most one value after the token channel closes: a provider
// connection that dies mid-answer records a failed turn with no partial
// answer, exactly like a non-streamed LLM failure.
func (s *RAGService) AskStream(ctx context.Context, sessionID, question string) (<-chan string, <-chan error, []domain.Attribution, error) {
	turn, index, history, err := s.begin(sessionID, question)
	if err != nil {
		return nil, nil, nil, err
	}

	contextParts, err := s.retrieve(ctx, index, &turn)
	if err != nil {
		_, err = s.fail(sessionID, turn, err)
		return nil, nil, nil, err
	}
	contextParts = append(contextParts, history...)

	stream, streamErrs, err := s.ai.ChatStream(ctx, systemPrompt, question, contextParts)
	if err != nil {
		_, err = s.fail(sessionID, turn, err)
		return nil, nil, nil, err
	}

	out := make(chan string, 64)
	errs := make(chan error, 1)
	go func() {
		defer close(errs)
		var answer strings.Builder
		for token := range stream {
			answer.WriteString(token)
			out <- token
		}
		close(out)
		if err := <-streamErrs; err != nil {
			// The tokens sent so far are discarded, not recorded.
			_, err = s.fail(sessionID, turn, err)
			errs <- err
			return
		}
		turn.State = domain.TurnAnswered
		turn.Answer = answer.String()
		turn.ElapsedMS = time.Since(turn.AskedAt).Milliseconds()
		if err := s.sessions.AppendTurn(sessionID, turn); err != nil {
			slog.Warn("append streamed turn failed", "session_id", sessionID, "error", err)
		}
	}()

	return out, errs, turn.Sources, nil
}

// Search embeds query and returns the k nearest chunks without invoking
// the chat model.
func (s *RAGService) Search(ctx context.Context, sessionID, query string, k int) ([]domain.SimilarChunk, error) {
	if k <= 0 {
		k = s.k
	}
	index, err := s.sessions.Index(sessionID)
	if err != nil {
		return nil, err
	}
	vector, err := retry.Do(ctx, s.retry, func(ctx context.Context) ([]float32, error) {
		return s.ai.Embed(ctx, query)
	})
	if err != nil {
		return nil, err
	}
	return index.Query(ctx, vector, k)
}

// begin validates the session and opens a turn in the received state. It
// also returns the recent conversation as context parts so follow-up
// questions can resolve references to earlier answers.
func (s *RAGService) begin(sessionID, question string) (domain.ConversationTurn, port.VectorIndex, []string, error) {
	turn := domain.ConversationTurn{
		Question: question,
		State:    domain.TurnReceived,
		AskedAt:  time.Now(),
	}

	session, err := s.sessions.Get(sessionID)
	if err != nil {
		return turn, nil, nil, err
	}
	if session.Ingesting {
		return turn, nil, nil, port.ErrIngestInProgress
	}
	index, err := s.sessions.Index(sessionID)
	if err != nil {
		return turn, nil, nil, err
	}
	return turn, index, historyContext(session.History), nil
}

// historyContext renders the last few answered turns as context parts.
const maxHistoryTurns = 4

func historyContext(history []domain.ConversationTurn) []string {
	start := len(history) - maxHistoryTurns
	if start < 0 {
		start = 0
	}
	var parts []string
	for _, t := range history[start:] {
		if t.State != domain.TurnAnswered {
			continue
		}
		answer := t.Answer
		if len(answer) > 500 {
			answer = answer[:500] + "..."
		}
		parts = append(parts, fmt.Sprintf("[previous question]: %s\n[previous answer]: %s", t.Question, answer))
	}
	return parts
}

// retrieve embeds the question and gathers the context chunks, advancing
// the turn through embedded, retrieved, and prompt-built.
func (s *RAGService) retrieve(ctx context.Context, index port.VectorIndex, turn *domain.ConversationTurn) ([]string, error) {
	vector, err := retry.Do(ctx, s.retry, func(ctx context.Context) ([]float32, error) {
		return s.ai.Embed(ctx, turn.Question)
	})
	if err != nil {
		return nil, err
	}
	turn.State = domain.TurnEmbedded

	chunks, err := index.Query(ctx, vector, s.k)
	if err != nil {
		return nil, err
	}
	turn.State = domain.TurnRetrieved
	turn.Sources = make([]domain.Attribution, len(chunks))
	for i, c := range chunks {
		turn.Sources[i] = domain.AttributionFor(c)
	}

	contextParts := make([]string, len(chunks))
	for i, c := range chunks {
		contextParts[i] = fmt.Sprintf("File: %s (similarity: %.2f)\n%s", c.FilePath, c.Similarity, c.Content)
	}
	turn.State = domain.TurnPromptBuilt
	return contextParts, nil
}

// fail records a failed turn. The answer stays empty, only the error and
// whatever sources were retrieved before the failure are kept.
func (s *RAGService) fail(sessionID string, turn domain.ConversationTurn, err error) (domain.ConversationTurn, error) {
	turn.State = domain.TurnFailed
	turn.Error = err.Error()
	turn.ElapsedMS = time.Since(turn.AskedAt).Milliseconds()
	if appendErr := s.sessions.AppendTurn(sessionID, turn); appendErr != nil {
		slog.Warn("append failed turn", "session_id", sessionID, "error", appendErr)
	}
	slog.Error("question failed", "session_id", sessionID, "state", turn.State, "error", err)
	return turn, err
}
