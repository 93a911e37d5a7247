package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/codechat-ai/codechat/internal/adapter/vcs"
	"github.com/codechat-ai/codechat/internal/chunker"
	"github.com/codechat-ai/codechat/internal/domain"
	"github.com/codechat-ai/codechat/internal/port"
	"github.com/codechat-ai/codechat/internal/retry"
)

// IngestProgress receives pipeline stage updates: stage name plus how many
// units of that stage are done out of total (0/0 for unbounded stages).
type IngestProgress func(stage string, done, total int)

// IngestConfig tunes the load pipeline.
type IngestConfig struct {
	Dimension         int // expected embedding width, 0 = infer from first vector
	BatchSize         int
	FallbackDimension int // expected width of the fallback embedder
	Retry             retry.Policy
}

// IngestService runs the repository load pipeline: fetch, chunk, embed,
// index, swap. The session's previous index stays live until the new one
// is complete, so a failure anywhere leaves the session unchanged.
type IngestService struct {
	fetcher  port.RepositoryFetcher
	splitter *chunker.Chunker
	ai       port.AIProvider
	fallback port.AIProvider // nil when no fallback embedder is configured
	newIndex port.IndexFactory
	sessions *SessionService
	cfg      IngestConfig
}

// NewIngestService creates the load pipeline. fallback may be nil.
func NewIngestService(
	fetcher port.RepositoryFetcher,
	splitter *chunker.Chunker,
	ai port.AIProvider,
	fallback port.AIProvider,
	newIndex port.IndexFactory,
	sessions *SessionService,
	cfg IngestConfig,
) *IngestService {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 32
	}
	return &IngestService{
		fetcher:  fetcher,
		splitter: splitter,
		ai:       ai,
		fallback: fallback,
		newIndex: newIndex,
		sessions: sessions,
		cfg:      cfg,
	}
}

// Load fetches url, chunks and embeds its source files, builds a fresh
// index, and swaps it into the session. All-or-nothing: any failure
// leaves the previously loaded repository (if any) queryable.
func (s *IngestService) Load(ctx context.Context, sessionID, url string, progress IngestProgress) (*domain.RepositoryInfo, error) {
	if progress == nil {
		progress = func(string, int, int) {}
	}
	if err := s.sessions.SetIngesting(sessionID, true); err != nil {
		return nil, err
	}
	defer func() {
		if err := s.sessions.SetIngesting(sessionID, false); err != nil {
			slog.Warn("clear ingest flag failed", "session_id", sessionID, "error", err)
		}
	}()

	started := time.Now()
	slog.Info("repository load started", "session_id", sessionID, "url", url)

	progress("fetching", 0, 0)
	files, stats, err := s.fetcher.Fetch(ctx, url)
	if err != nil {
		return nil, err
	}

	progress("chunking", 0, len(files))
	chunks, skipped := s.splitter.SplitAll(files)
	for _, path := range skipped {
		slog.Warn("file skipped during chunking", "path", path)
	}
	stats.FilesAdded -= len(skipped)
	stats.FilesSkipped += len(skipped)
	stats.ChunkCount = len(chunks)
	progress("chunking", len(files), len(files))

	if len(chunks) == 0 {
		return nil, &port.FetchError{URL: url, Reason: "no ingestible content"}
	}

	provider := s.ai
	dimension := s.cfg.Dimension
	vectors, err := s.embedAll(ctx, provider, dimension, chunks, progress)
	if err != nil && s.fallback != nil && isEmbeddingError(err) {
		slog.Warn("primary embedder failed, retrying with fallback",
			"session_id", sessionID, "primary", provider.Name(), "fallback", s.fallback.Name(), "error", err)
		provider = s.fallback
		dimension = s.cfg.FallbackDimension
		vectors, err = s.embedAll(ctx, provider, dimension, chunks, progress)
	}
	if err != nil {
		return nil, err
	}
	if dimension == 0 {
		dimension = len(vectors[0])
	}

	progress("indexing", 0, len(chunks))
	index := s.newIndex(sessionID)
	if err := index.Init(ctx, dimension); err != nil {
		return nil, err
	}
	records := make([]domain.IndexedRecord, len(chunks))
	for i, c := range chunks {
		records[i] = domain.IndexedRecord{Chunk: c, Vector: vectors[i]}
	}
	for start := 0; start < len(records); start += s.cfg.BatchSize {
		end := start + s.cfg.BatchSize
		if end > len(records) {
			end = len(records)
		}
		if err := index.Upsert(ctx, records[start:end]); err != nil {
			// Drop the staged rows, the live index is untouched.
			if clearErr := index.Clear(ctx); clearErr != nil {
				slog.Warn("staged index cleanup failed", "session_id", sessionID, "error", clearErr)
			}
			return nil, err
		}
		progress("indexing", end, len(records))
	}

	repo := &domain.RepositoryInfo{
		URL:        url,
		Name:       vcs.RepoName(url),
		LoadedAt:   time.Now(),
		Stats:      *stats,
		Dimension:  dimension,
		EmbedModel: provider.EmbedModel(),
	}
	if err := s.sessions.SwapIndex(ctx, sessionID, index, repo); err != nil {
		if clearErr := index.Clear(ctx); clearErr != nil {
			slog.Warn("staged index cleanup failed", "session_id", sessionID, "error", clearErr)
		}
		return nil, err
	}

	slog.Info("repository load complete",
		"session_id", sessionID,
		"repo", repo.Name,
		"files", stats.FilesAdded,
		"chunks", stats.ChunkCount,
		"embed_model", repo.EmbedModel,
		"elapsed", time.Since(started).Round(time.Millisecond))
	return repo, nil
}

// embedAll embeds every chunk in fixed-size sequential batches. When
// dimension is nonzero every vector must match it; a mismatch fails the
// whole load rather than producing a mixed-width index.
func (s *IngestService) embedAll(ctx context.Context, provider port.AIProvider, dimension int, chunks []domain.Chunk, progress IngestProgress) ([][]float32, error) {
	vectors := make([][]float32, 0, len(chunks))
	progress("embedding", 0, len(chunks))

	for start := 0; start < len(chunks); start += s.cfg.BatchSize {
		end := start + s.cfg.BatchSize
		if end > len(chunks) {
			end = len(chunks)
		}
		texts := make([]string, end-start)
		for i, c := range chunks[start:end] {
			texts[i] = c.Content
		}

		batch, err := retry.Do(ctx, s.cfg.Retry, func(ctx context.Context) ([][]float32, error) {
			return provider.EmbedBatch(ctx, texts)
		})
		if err != nil {
			return nil, err
		}
		for i, v := range batch {
			if dimension == 0 {
				dimension = len(v)
			}
			if len(v) != dimension {
				return nil, &port.EmbeddingError{
					Provider: provider.Name(),
					Err:      fmt.Errorf("%w: chunk %s has %d, expected %d", port.ErrDimensionMismatch, chunks[start+i].Key(), len(v), dimension),
				}
			}
		}
		vectors = append(vectors, batch...)
		progress("embedding", end, len(chunks))
	}
	return vectors, nil
}

func isEmbeddingError(err error) bool {
	var embedErr *port.EmbeddingError
	return errors.As(err, &embedErr)
}
