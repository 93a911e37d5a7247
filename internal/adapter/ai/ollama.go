package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/codechat-ai/codechat/internal/port"
)

// OllamaEndpointConfig holds the configuration for a single Ollama endpoint.
type OllamaEndpointConfig struct {
	BaseURL string // e.g. http://localhost:11434 or https://api.ollama.com
	Model   string // e.g. bge-m3, qwen3
	Token   string // Bearer token for Ollama Cloud (empty = no auth)
}

// OllamaProvider implements port.AIProvider using the Ollama REST API.
// Supports separate endpoints for embed vs chat (different URLs, models,
// and tokens).
type OllamaProvider struct {
	embed      OllamaEndpointConfig
	chat       OllamaEndpointConfig
	httpClient *http.Client
}

// NewOllamaProvider creates an Ollama-backed AI provider with separate
// embed/chat configs.
func NewOllamaProvider(embed, chat OllamaEndpointConfig) *OllamaProvider {
	return &OllamaProvider{
		embed:      embed,
		chat:       chat,
		httpClient: &http.Client{},
	}
}

// Name returns the provider identifier.
func (o *OllamaProvider) Name() string { return "ollama" }

// EmbedModel returns the embedding model identifier.
func (o *OllamaProvider) EmbedModel() string { return o.embed.Model }

// ChatModel returns the chat model identifier.
func (o *OllamaProvider) ChatModel() string { return o.chat.Model }

// Embed generates a vector embedding for the given text.
func (o *OllamaProvider) Embed(ctx context.Context, text string) ([]float32, error) {
	vectors, err := o.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

// EmbedBatch generates embeddings for multiple texts in one call. The
// response preserves input order.
func (o *OllamaProvider) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	payload := map[string]interface{}{
		"model": o.embed.Model,
		"input": texts,
	}

	body, err := o.post(ctx, o.embed, "/api/embed", payload)
	if err != nil {
		return nil, &port.EmbeddingError{Provider: o.Name(), Err: err}
	}

	var resp struct {
		Embeddings [][]float32 `json:"embeddings"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, &port.EmbeddingError{Provider: o.Name(), Err: fmt.Errorf("decode: %w", err)}
	}

	if len(resp.Embeddings) != len(texts) {
		return nil, &port.EmbeddingError{
			Provider: o.Name(),
			Err:      fmt.Errorf("expected %d embeddings, got %d", len(texts), len(resp.Embeddings)),
		}
	}

	return resp.Embeddings, nil
}

// Chat sends a prompt with context chunks and returns the complete response.
func (o *OllamaProvider) Chat(ctx context.Context, systemPrompt string, userPrompt string, contextChunks []string) (string, error) {
	payload := map[string]interface{}{
		"model":    o.chat.Model,
		"messages": buildMessages(systemPrompt, userPrompt, contextChunks),
		"stream":   false,
	}

	body, err := o.post(ctx, o.chat, "/api/chat", payload)
	if err != nil {
		return "", &port.LLMError{Provider: o.Name(), Err: err}
	}

	var resp struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", &port.LLMError{Provider: o.Name(), Err: fmt.Errorf("decode: %w", err)}
	}

	if resp.Message.Content == "" {
		return "", &port.LLMError{Provider: o.Name(), Err: fmt.Errorf("empty response")}
	}

	return resp.Message.Content, nil
}

// ChatStream sends a prompt and streams the response token-by-token. The
// error channel delivers the terminal error, if any, once the token
// channel closes; a stream that ends without Ollama's done marker counts
// as failed.
func (o *OllamaProvider) ChatStream(ctx context.Context, systemPrompt string, userPrompt string, contextChunks []string) (<-chan string, <-chan error, error) {
	payload := map[string]interface{}{
		"model":    o.chat.Model,
		"messages": buildMessages(systemPrompt, userPrompt, contextChunks),
		"stream":   true,
	}

	payloadBytes, _ := json.Marshal(payload)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.chat.BaseURL+"/api/chat", bytes.NewReader(payloadBytes))
	if err != nil {
		return nil, nil, &port.LLMError{Provider: o.Name(), Err: fmt.Errorf("create request: %w", err)}
	}
	req.Header.Set("Content-Type", "application/json")
	if o.chat.Token != "" {
		req.Header.Set("Authorization", "Bearer "+o.chat.Token)
	}

	resp, err := o.httpClient.Do(req)
	if err != nil {
		return nil, nil, &port.LLMError{Provider: o.Name(), Err: err}
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		return nil, nil, &port.LLMError{Provider: o.Name(), Err: fmt.Errorf("API error (%d): %s", resp.StatusCode, string(body))}
	}

	ch := make(chan string, 64)
	errs := make(chan error, 1)
	go func() {
		defer close(errs)
		defer close(ch)
		defer resp.Body.Close()

		decoder := json.NewDecoder(resp.Body)
		for decoder.More() {
			var chunk struct {
				Message struct {
					Content string `json:"content"`
				} `json:"message"`
				Done bool `json:"done"`
			}
			if err := decoder.Decode(&chunk); err != nil {
				errs <- &port.LLMError{Provider: o.Name(), Err: fmt.Errorf("stream: %w", err)}
				return
			}
			if chunk.Message.Content != "" {
				ch <- chunk.Message.Content
			}
			if chunk.Done {
				return
			}
		}
		errs <- &port.LLMError{Provider: o.Name(), Err: fmt.Errorf("stream ended before done marker")}
	}()

	return ch, errs, nil
}

// post is a helper for POST requests to an Ollama endpoint (with optional
// bearer token).
func (o *OllamaProvider) post(ctx context.Context, cfg OllamaEndpointConfig, path string, payload interface{}) ([]byte, error) {
	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, cfg.BaseURL+path, bytes.NewReader(payloadBytes))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if cfg.Token != "" {
		req.Header.Set("Authorization", "Bearer "+cfg.Token)
	}

	resp, err := o.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("API error (%d): %s", resp.StatusCode, string(body))
	}

	return io.ReadAll(resp.Body)
}

// buildMessages assembles the role-tagged message list: system instruction
// plus a user prompt carrying the retrieved context.
func buildMessages(systemPrompt, userPrompt string, contextChunks []string) []map[string]string {
	fullPrompt := userPrompt
	if len(contextChunks) > 0 {
		var sb bytes.Buffer
		for i, chunk := range contextChunks {
			fmt.Fprintf(&sb, "\n--- Context chunk %d ---\n%s\n", i+1, chunk)
		}
		fullPrompt = fmt.Sprintf("Relevant code context:\n%s\n\nQuestion: %s", sb.String(), userPrompt)
	}

	return []map[string]string{
		{"role": "system", "content": systemPrompt},
		{"role": "user", "content": fullPrompt},
	}
}
