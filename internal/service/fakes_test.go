package service

import (
	"context"
	"strings"
	"sync/atomic"

	"github.com/codechat-ai/codechat/internal/domain"
	"github.com/codechat-ai/codechat/internal/port"
)

// fakeAI is a deterministic keyword embedder: vectors light up on the
// words "def"/"function" and "class", so retrieval tests can predict
// which chunk wins.
type fakeAI struct {
	name      string
	model     string
	dim       int
	embedErr  error
	chatErr   error
	streamErr error // delivered after the token stream drains
	chatReply string

	embedCalls  atomic.Int64
	chatCalls   atomic.Int64
	lastContext []string
}

func newFakeAI() *fakeAI {
	return &fakeAI{name: "fake", model: "fake-embed", dim: 3, chatReply: "the answer"}
}

func (f *fakeAI) Name() string       { return f.name }
func (f *fakeAI) EmbedModel() string { return f.model }
func (f *fakeAI) ChatModel() string  { return "fake-chat" }

func (f *fakeAI) vector(text string) []float32 {
	v := make([]float32, f.dim)
	v[f.dim-1] = 0.1
	lower := strings.ToLower(text)
	if strings.Contains(lower, "def ") || strings.Contains(lower, "function") {
		v[0] = 1
	}
	if f.dim > 1 && strings.Contains(lower, "class") {
		v[1] = 1
	}
	return v
}

func (f *fakeAI) Embed(ctx context.Context, text string) ([]float32, error) {
	vectors, err := f.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

func (f *fakeAI) EmbedBatch(_ context.Context, texts []string) ([][]float32, error) {
	f.embedCalls.Add(1)
	if f.embedErr != nil {
		return nil, &port.EmbeddingError{Provider: f.name, Err: f.embedErr}
	}
	vectors := make([][]float32, len(texts))
	for i, text := range texts {
		vectors[i] = f.vector(text)
	}
	return vectors, nil
}

func (f *fakeAI) Chat(_ context.Context, _ string, _ string, contextChunks []string) (string, error) {
	f.chatCalls.Add(1)
	f.lastContext = contextChunks
	if f.chatErr != nil {
		return "", &port.LLMError{Provider: f.name, Err: f.chatErr}
	}
	return f.chatReply, nil
}

func (f *fakeAI) ChatStream(context.Context, string, string, []string) (<-chan string, <-chan error, error) {
	if f.chatErr != nil {
		return nil, nil, &port.LLMError{Provider: f.name, Err: f.chatErr}
	}
	ch := make(chan string, 2)
	ch <- f.chatReply[:len(f.chatReply)/2]
	ch <- f.chatReply[len(f.chatReply)/2:]
	close(ch)
	errs := make(chan error, 1)
	if f.streamErr != nil {
		errs <- &port.LLMError{Provider: f.name, Err: f.streamErr}
	}
	close(errs)
	return ch, errs, nil
}

// fakeFetcher serves a canned file set without touching git.
type fakeFetcher struct {
	files []domain.SourceFile
	err   error
}

func (f *fakeFetcher) Fetch(context.Context, string) ([]domain.SourceFile, *domain.IngestStats, error) {
	if f.err != nil {
		return nil, nil, f.err
	}
	stats := &domain.IngestStats{
		FilesScanned: len(f.files),
		FilesAdded:   len(f.files),
		Languages:    make(map[string]domain.LanguageStats),
	}
	for _, file := range f.files {
		stats.TotalLines += strings.Count(file.Content, "\n") + 1
		ls := stats.Languages[file.Language]
		ls.Files++
		stats.Languages[file.Language] = ls
	}
	return f.files, stats, nil
}
