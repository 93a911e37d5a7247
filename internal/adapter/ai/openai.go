package ai

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/codechat-ai/codechat/internal/port"
)

// OpenAIConfig configures the OpenAI-compatible provider. Any service
// speaking the /embeddings and /chat/completions wire format works
// (OpenAI, Groq, vLLM, LM Studio).
type OpenAIConfig struct {
	BaseURL    string
	APIKey     string
	EmbedModel string
	ChatModel  string
}

// OpenAIProvider implements port.AIProvider against an OpenAI-compatible API.
type OpenAIProvider struct {
	cfg        OpenAIConfig
	httpClient *http.Client
}

// NewOpenAIProvider creates an OpenAI-compatible AI provider.
func NewOpenAIProvider(cfg OpenAIConfig) *OpenAIProvider {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.openai.com/v1"
	}
	return &OpenAIProvider{
		cfg:        cfg,
		httpClient: &http.Client{},
	}
}

// Name returns the provider identifier.
func (p *OpenAIProvider) Name() string { return "openai" }

// EmbedModel returns the embedding model identifier.
func (p *OpenAIProvider) EmbedModel() string { return p.cfg.EmbedModel }

// ChatModel returns the chat model identifier.
func (p *OpenAIProvider) ChatModel() string { return p.cfg.ChatModel }

// Embed generates a vector embedding for the given text.
func (p *OpenAIProvider) Embed(ctx context.Context, text string) ([]float32, error) {
	vectors, err := p.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

// EmbedBatch generates embeddings for multiple texts in one call. The API
// returns indexed items; vectors are reassembled in input order.
func (p *OpenAIProvider) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	payload := map[string]interface{}{
		"model": p.cfg.EmbedModel,
		"input": texts,
	}

	body, err := p.post(ctx, "/embeddings", payload)
	if err != nil {
		return nil, &port.EmbeddingError{Provider: p.Name(), Err: err}
	}

	var resp struct {
		Data []struct {
			Index     int       `json:"index"`
			Embedding []float32 `json:"embedding"`
		} `json:"data"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, &port.EmbeddingError{Provider: p.Name(), Err: fmt.Errorf("decode: %w", err)}
	}
	if len(resp.Data) != len(texts) {
		return nil, &port.EmbeddingError{
			Provider: p.Name(),
			Err:      fmt.Errorf("expected %d embeddings, got %d", len(texts), len(resp.Data)),
		}
	}

	vectors := make([][]float32, len(texts))
	for _, item := range resp.Data {
		if item.Index < 0 || item.Index >= len(vectors) {
			return nil, &port.EmbeddingError{Provider: p.Name(), Err: fmt.Errorf("embedding index %d out of range", item.Index)}
		}
		vectors[item.Index] = item.Embedding
	}
	return vectors, nil
}

// Chat sends a prompt with context chunks and returns the complete response.
func (p *OpenAIProvider) Chat(ctx context.Context, systemPrompt string, userPrompt string, contextChunks []string) (string, error) {
	payload := map[string]interface{}{
		"model":    p.cfg.ChatModel,
		"messages": buildMessages(systemPrompt, userPrompt, contextChunks),
	}

	body, err := p.post(ctx, "/chat/completions", payload)
	if err != nil {
		return "", &port.LLMError{Provider: p.Name(), Err: err}
	}

	var resp struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", &port.LLMError{Provider: p.Name(), Err: fmt.Errorf("decode: %w", err)}
	}
	if len(resp.Choices) == 0 || resp.Choices[0].Message.Content == "" {
		return "", &port.LLMError{Provider: p.Name(), Err: fmt.Errorf("empty response")}
	}

	return resp.Choices[0].Message.Content, nil
}

// ChatStream sends a prompt and streams the response token-by-token using
// the SSE delta format. The error channel delivers the terminal error, if
// any, once the token channel closes; a stream that ends without the
// [DONE] sentinel counts as failed.
func (p *OpenAIProvider) ChatStream(ctx context.Context, systemPrompt string, userPrompt string, contextChunks []string) (<-chan string, <-chan error, error) {
	payload := map[string]interface{}{
		"model":    p.cfg.ChatModel,
		"messages": buildMessages(systemPrompt, userPrompt, contextChunks),
		"stream":   true,
	}

	payloadBytes, _ := json.Marshal(payload)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.cfg.BaseURL+"/chat/completions", bytes.NewReader(payloadBytes))
	if err != nil {
		return nil, nil, &port.LLMError{Provider: p.Name(), Err: fmt.Errorf("create request: %w", err)}
	}
	req.Header.Set("Content-Type", "application/json")
	if p.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+p.cfg.APIKey)
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, nil, &port.LLMError{Provider: p.Name(), Err: err}
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		return nil, nil, &port.LLMError{Provider: p.Name(), Err: fmt.Errorf("API error (%d): %s", resp.StatusCode, string(body))}
	}

	ch := make(chan string, 64)
	errs := make(chan error, 1)
	go func() {
		defer close(errs)
		defer close(ch)
		defer resp.Body.Close()

		scanner := bufio.NewScanner(resp.Body)
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
		for scanner.Scan() {
			data, ok := strings.CutPrefix(scanner.Text(), "data: ")
			if !ok {
				continue
			}
			if data == "[DONE]" {
				return
			}
			var delta struct {
				Choices []struct {
					Delta struct {
						Content string `json:"content"`
					} `json:"delta"`
				} `json:"choices"`
			}
			if json.Unmarshal([]byte(data), &delta) != nil {
				continue
			}
			if len(delta.Choices) > 0 && delta.Choices[0].Delta.Content != "" {
				ch <- delta.Choices[0].Delta.Content
			}
		}
		err := scanner.Err()
		if err == nil {
			err = fmt.Errorf("stream ended before [DONE]")
		}
		errs <- &port.LLMError{Provider: p.Name(), Err: err}
	}()

	return ch, errs, nil
}

func (p *OpenAIProvider) post(ctx context.Context, path string, payload interface{}) ([]byte, error) {
	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.cfg.BaseURL+path, bytes.NewReader(payloadBytes))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if p.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+p.cfg.APIKey)
	}

	resp, err := p.httpClient.Do(req)
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
