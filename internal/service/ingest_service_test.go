package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codechat-ai/codechat/internal/adapter/store"
	"github.com/codechat-ai/codechat/internal/chunker"
	"github.com/codechat-ai/codechat/internal/domain"
	"github.com/codechat-ai/codechat/internal/port"
	"github.com/codechat-ai/codechat/internal/retry"
	"github.com/codechat-ai/codechat/pkg/config"
)

var testRepoFiles = []domain.SourceFile{
	{Path: "a.py", Language: "python", Content: "def handler():\n    return 1\n"},
	{Path: "b.py", Language: "python", Content: "class Parser:\n    pass\n"},
}

func newTestIngest(t *testing.T, ai, fallback port.AIProvider, fetcher port.RepositoryFetcher) (*IngestService, *SessionService) {
	t.Helper()

	markers, err := config.LoadMarkerTable("")
	require.NoError(t, err)
	splitter, err := chunker.New(200, 20, markers)
	require.NoError(t, err)

	sessions := NewSessionService(time.Hour, 50)
	factory := func(string) port.VectorIndex { return store.NewMemoryIndex() }

	ingest := NewIngestService(fetcher, splitter, ai, fallback, factory, sessions, IngestConfig{
		Dimension:         3,
		BatchSize:         2,
		FallbackDimension: 2,
		Retry:             retry.Policy{Attempts: 1, Interval: time.Millisecond, Timeout: time.Second},
	})
	return ingest, sessions
}

func TestIngest_LoadBuildsIndexAndSwapsIn(t *testing.T) {
	ctx := context.Background()
	ai := newFakeAI()
	ingest, sessions := newTestIngest(t, ai, nil, &fakeFetcher{files: testRepoFiles})
	session := sessions.Create()

	repo, err := ingest.Load(ctx, session.ID, "https://example.com/repo.git", nil)
	require.NoError(t, err)

	assert.Equal(t, "repo", repo.Name)
	assert.Equal(t, 3, repo.Dimension)
	assert.Equal(t, "fake-embed", repo.EmbedModel)
	assert.Equal(t, 2, repo.Stats.ChunkCount)

	got, err := sessions.Get(session.ID)
	require.NoError(t, err)
	assert.False(t, got.Ingesting)
	require.NotNil(t, got.Repository)

	idx, err := sessions.Index(session.ID)
	require.NoError(t, err)
	count, err := idx.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

func TestIngest_ReportsStageProgress(t *testing.T) {
	ctx := context.Background()
	ingest, sessions := newTestIngest(t, newFakeAI(), nil, &fakeFetcher{files: testRepoFiles})
	session := sessions.Create()

	stages := map[string]bool{}
	_, err := ingest.Load(ctx, session.ID, "https://example.com/repo.git", func(stage string, done, total int) {
		stages[stage] = true
	})
	require.NoError(t, err)

	for _, stage := range []string{"fetching", "chunking", "embedding", "indexing"} {
		assert.True(t, stages[stage], "missing stage %q", stage)
	}
}

func TestIngest_EmbedFailureKeepsPreviousRepository(t *testing.T) {
	ctx := context.Background()
	ai := newFakeAI()
	ingest, sessions := newTestIngest(t, ai, nil, &fakeFetcher{files: testRepoFiles})
	session := sessions.Create()

	_, err := ingest.Load(ctx, session.ID, "https://example.com/first.git", nil)
	require.NoError(t, err)

	ai.embedErr = errors.New("quota exceeded")
	_, err = ingest.Load(ctx, session.ID, "https://example.com/second.git", nil)
	require.Error(t, err)

	var embedErr *port.EmbeddingError
	assert.ErrorAs(t, err, &embedErr)

	// The failed load changed nothing: old repo, old index, flag cleared.
	got, err := sessions.Get(session.ID)
	require.NoError(t, err)
	assert.False(t, got.Ingesting)
	require.NotNil(t, got.Repository)
	assert.Equal(t, "first", got.Repository.Name)

	idx, err := sessions.Index(session.ID)
	require.NoError(t, err)
	count, err := idx.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

func TestIngest_FallbackEmbedderGetsOwnDimension(t *testing.T) {
	ctx := context.Background()
	primary := newFakeAI()
	primary.embedErr = errors.New("model unavailable")

	fallback := newFakeAI()
	fallback.name = "fallback"
	fallback.model = "fallback-embed"
	fallback.dim = 2

	ingest, sessions := newTestIngest(t, primary, fallback, &fakeFetcher{files: testRepoFiles})
	session := sessions.Create()

	repo, err := ingest.Load(ctx, session.ID, "https://example.com/repo.git", nil)
	require.NoError(t, err)

	// Vectors land in a fresh index with the fallback's dimension, never
	// mixed with the primary model's.
	assert.Equal(t, 2, repo.Dimension)
	assert.Equal(t, "fallback-embed", repo.EmbedModel)

	idx, err := sessions.Index(session.ID)
	require.NoError(t, err)
	results, err := idx.Query(ctx, []float32{1, 0}, 1)
	require.NoError(t, err)
	require.Len(t, results, 1)
}

func TestIngest_RejectsConcurrentLoad(t *testing.T) {
	ctx := context.Background()
	ingest, sessions := newTestIngest(t, newFakeAI(), nil, &fakeFetcher{files: testRepoFiles})
	session := sessions.Create()

	require.NoError(t, sessions.SetIngesting(session.ID, true))
	_, err := ingest.Load(ctx, session.ID, "https://example.com/repo.git", nil)
	assert.ErrorIs(t, err, port.ErrIngestInProgress)
}

func TestIngest_EmptyRepositoryFails(t *testing.T) {
	ctx := context.Background()
	ingest, sessions := newTestIngest(t, newFakeAI(), nil, &fakeFetcher{files: nil})
	session := sessions.Create()

	_, err := ingest.Load(ctx, session.ID, "https://example.com/empty.git", nil)
	require.Error(t, err)

	var fetchErr *port.FetchError
	assert.ErrorAs(t, err, &fetchErr)

	_, err = sessions.Index(session.ID)
	assert.ErrorIs(t, err, port.ErrNoRepository)
}

func TestIngest_UnknownSession(t *testing.T) {
	ingest, _ := newTestIngest(t, newFakeAI(), nil, &fakeFetcher{files: testRepoFiles})
	_, err := ingest.Load(context.Background(), "nope", "https://example.com/repo.git", nil)
	assert.ErrorIs(t, err, port.ErrSessionNotFound)
}
