package service

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codechat-ai/codechat/internal/adapter/store"
	"github.com/codechat-ai/codechat/internal/domain"
	"github.com/codechat-ai/codechat/internal/port"
)

func TestSessionService_CreateAndGet(t *testing.T) {
	svc := NewSessionService(time.Hour, 50)

	created := svc.Create()
	require.NotEmpty(t, created.ID)

	got, err := svc.Get(created.ID)
	require.NoError(t, err)
	assert.Equal(t, created.ID, got.ID)
	assert.Nil(t, got.Repository)
	assert.False(t, got.Ingesting)

	_, err = svc.Get("nope")
	assert.ErrorIs(t, err, port.ErrSessionNotFound)
}

func TestSessionService_GetReturnsDetachedCopy(t *testing.T) {
	svc := NewSessionService(time.Hour, 50)
	session := svc.Create()
	require.NoError(t, svc.AppendTurn(session.ID, domain.ConversationTurn{
		Question: "q1",
		State:    domain.TurnAnswered,
	}))

	got, err := svc.Get(session.ID)
	require.NoError(t, err)
	require.Len(t, got.History, 1)

	// Mutating the copy must not leak into the registry.
	got.ID = "mutated"
	got.History[0].Question = "mutated"

	again, err := svc.Get(session.ID)
	require.NoError(t, err)
	assert.Equal(t, session.ID, again.ID)
	assert.Equal(t, "q1", again.History[0].Question)
}

func TestSessionService_IndexRequiresRepository(t *testing.T) {
	svc := NewSessionService(time.Hour, 50)
	session := svc.Create()

	_, err := svc.Index(session.ID)
	assert.ErrorIs(t, err, port.ErrNoRepository)

	_, err = svc.Index("nope")
	assert.ErrorIs(t, err, port.ErrSessionNotFound)
}

func TestSessionService_SwapIndexClearsPrevious(t *testing.T) {
	ctx := context.Background()
	svc := NewSessionService(time.Hour, 50)
	session := svc.Create()

	first := store.NewMemoryIndex()
	require.NoError(t, first.Init(ctx, 2))
	require.NoError(t, first.Upsert(ctx, []domain.IndexedRecord{
		{Chunk: domain.Chunk{FilePath: "a.py"}, Vector: []float32{1, 0}},
	}))
	require.NoError(t, svc.SwapIndex(ctx, session.ID, first, &domain.RepositoryInfo{Name: "one"}))

	second := store.NewMemoryIndex()
	require.NoError(t, second.Init(ctx, 2))
	require.NoError(t, svc.SwapIndex(ctx, session.ID, second, &domain.RepositoryInfo{Name: "two"}))

	// The replaced index is emptied.
	count, err := first.Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, count)

	got, err := svc.Get(session.ID)
	require.NoError(t, err)
	require.NotNil(t, got.Repository)
	assert.Equal(t, "two", got.Repository.Name)

	idx, err := svc.Index(session.ID)
	require.NoError(t, err)
	assert.Same(t, second, idx)
}

func TestSessionService_DeleteClearsIndex(t *testing.T) {
	ctx := context.Background()
	svc := NewSessionService(time.Hour, 50)
	session := svc.Create()

	idx := store.NewMemoryIndex()
	require.NoError(t, idx.Init(ctx, 2))
	require.NoError(t, idx.Upsert(ctx, []domain.IndexedRecord{
		{Chunk: domain.Chunk{FilePath: "a.py"}, Vector: []float32{1, 0}},
	}))
	require.NoError(t, svc.SwapIndex(ctx, session.ID, idx, &domain.RepositoryInfo{Name: "repo"}))

	require.NoError(t, svc.Delete(ctx, session.ID))

	count, err := idx.Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, count)

	_, err = svc.Get(session.ID)
	assert.ErrorIs(t, err, port.ErrSessionNotFound)
	assert.ErrorIs(t, svc.Delete(ctx, session.ID), port.ErrSessionNotFound)
}

func TestSessionService_ClearRepository(t *testing.T) {
	ctx := context.Background()
	svc := NewSessionService(time.Hour, 50)
	session := svc.Create()

	idx := store.NewMemoryIndex()
	require.NoError(t, idx.Init(ctx, 2))
	require.NoError(t, svc.SwapIndex(ctx, session.ID, idx, &domain.RepositoryInfo{Name: "repo"}))
	require.NoError(t, svc.AppendTurn(session.ID, domain.ConversationTurn{Question: "q"}))

	require.NoError(t, svc.ClearRepository(ctx, session.ID))

	got, err := svc.Get(session.ID)
	require.NoError(t, err)
	assert.Nil(t, got.Repository)
	assert.Empty(t, got.History)

	_, err = svc.Index(session.ID)
	assert.ErrorIs(t, err, port.ErrNoRepository)
}

func TestSessionService_IngestFlagGuardsConcurrentLoads(t *testing.T) {
	svc := NewSessionService(time.Hour, 50)
	session := svc.Create()

	require.NoError(t, svc.SetIngesting(session.ID, true))
	assert.ErrorIs(t, svc.SetIngesting(session.ID, true), port.ErrIngestInProgress)

	require.NoError(t, svc.SetIngesting(session.ID, false))
	require.NoError(t, svc.SetIngesting(session.ID, true))
}

func TestSessionService_HistoryCap(t *testing.T) {
	svc := NewSessionService(time.Hour, 3)
	session := svc.Create()

	for i := 0; i < 5; i++ {
		require.NoError(t, svc.AppendTurn(session.ID, domain.ConversationTurn{
			Question: fmt.Sprintf("q%d", i),
		}))
	}

	history, err := svc.History(session.ID)
	require.NoError(t, err)
	require.Len(t, history, 3)
	assert.Equal(t, "q2", history[0].Question)
	assert.Equal(t, "q4", history[2].Question)

	require.NoError(t, svc.ResetHistory(session.ID))
	history, err = svc.History(session.ID)
	require.NoError(t, err)
	assert.Empty(t, history)
}

func TestSessionService_SweepExpiresIdleSessions(t *testing.T) {
	ctx := context.Background()
	svc := NewSessionService(time.Minute, 50)

	stale := svc.Create()
	fresh := svc.Create()
	loading := svc.Create()
	require.NoError(t, svc.SetIngesting(loading.ID, true))

	svc.mu.Lock()
	svc.sessions[stale.ID].session.LastActive = time.Now().Add(-2 * time.Minute)
	svc.sessions[loading.ID].session.LastActive = time.Now().Add(-2 * time.Minute)
	svc.mu.Unlock()

	svc.sweep(ctx)

	_, err := svc.Get(stale.ID)
	assert.ErrorIs(t, err, port.ErrSessionNotFound)

	_, err = svc.Get(fresh.ID)
	assert.NoError(t, err)

	// Sessions mid-load are never swept.
	_, err = svc.Get(loading.ID)
	assert.NoError(t, err)
}
