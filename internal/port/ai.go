package port

import "context"

// AIProvider abstracts the hosted AI backend for embeddings and chat
// completions. Implementations can target Ollama, OpenAI, or any
// compatible API.
type AIProvider interface {
	// Name returns the provider identifier used in error reporting.
	Name() string

	// EmbedModel returns the embedding model identifier.
	EmbedModel() string

	// ChatModel returns the chat model identifier.
	ChatModel() string

	// Embed generates a vector embedding for the given text.
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch generates embeddings for multiple texts in one call.
	// The result is order-preserving: vector i belongs to texts[i].
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	// Chat sends a prompt with optional context chunks and returns the
	// complete LLM response.
	Chat(ctx context.Context, systemPrompt string, userPrompt string, contextChunks []string) (string, error)

	// ChatStream sends a prompt and streams the response token-by-token
	// via channel. The error channel reports how the stream ended: after
	// the token channel closes it delivers at most one terminal error,
	// then closes. A clean completion closes it without a value, so a
	// connection that dies mid-answer is distinguishable from a finished
	// one.
	ChatStream(ctx context.Context, systemPrompt string, userPrompt string, contextChunks []string) (<-chan string, <-chan error, error)
}
