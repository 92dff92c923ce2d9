package inference

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

const (
	// DefaultTimeout is long enough for LLM inference requests
	DefaultTimeout = 120 * time.Second
	// DefaultChatModel is the default chat completion model
	DefaultChatModel = "openai-gpt-oss-120b"
	// DefaultEmbeddingModel is the default embedding model
	DefaultEmbeddingModel = "text-embedding-3-small"
)

// Client talks to an OpenAI-compatible inference API: chat completions for
// classification prompts and the embeddings endpoint for semantic vectors.
// It implements the services.LLMClient and services.EmbeddingClient
// interfaces.
type Client struct {
	apiKey         string
	baseURL        string
	httpClient     *http.Client
	chatModel      string
	embeddingModel string
}

// Config holds configuration for the inference client
type Config struct {
	APIKey         string
	BaseURL        string
	Timeout        time.Duration
	ChatModel      string
	EmbeddingModel string
}

// NewClient creates an inference client. BaseURL is required; the rest
// falls back to defaults.
func NewClient(config Config) *Client {
	if config.Timeout == 0 {
		config.Timeout = DefaultTimeout
	}
	if config.ChatModel == "" {
		config.ChatModel = DefaultChatModel
	}
	if config.EmbeddingModel == "" {
		config.EmbeddingModel = DefaultEmbeddingModel
	}

	return &Client{
		apiKey:  config.APIKey,
		baseURL: config.BaseURL,
		httpClient: &http.Client{
			Timeout: config.Timeout,
		},
		chatModel:      config.ChatModel,
		embeddingModel: config.EmbeddingModel,
	}
}

// Message represents a message in a chat completion request
type Message struct {
	Role    string `json:"role"` // "system", "user", "assistant"
	Content string `json:"content"`
}

// ChatRequest is an OpenAI-compatible chat completion request
type ChatRequest struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	Temperature float64   `json:"temperature,omitempty"`
	MaxTokens   int       `json:"max_tokens,omitempty"`
	TopP        float64   `json:"top_p,omitempty"`
	Stream      bool      `json:"stream,omitempty"`
}

// ChatChoice represents a choice in the chat completion response
type ChatChoice struct {
	Index        int     `json:"index"`
	Message      Message `json:"message"`
	FinishReason string  `json:"finish_reason"`
}

// Usage represents token usage information
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// ChatResponse represents the chat completion response
type ChatResponse struct {
	ID      string       `json:"id"`
	Object  string       `json:"object"`
	Created int64        `json:"created"`
	Model   string       `json:"model"`
	Choices []ChatChoice `json:"choices"`
	Usage   Usage        `json:"usage"`
}

// Option is a function that modifies the chat request
type Option func(*ChatRequest)

// WithTemperature sets the temperature for the request
func WithTemperature(temp float64) Option {
	return func(req *ChatRequest) {
		req.Temperature = temp
	}
}

// WithMaxTokens sets the max tokens for the request
func WithMaxTokens(tokens int) Option {
	return func(req *ChatRequest) {
		req.MaxTokens = tokens
	}
}

// WithModel sets a different model for the request
func WithModel(model string) Option {
	return func(req *ChatRequest) {
		req.Model = model
	}
}

// ChatCompletion sends a chat completion request
func (c *Client) ChatCompletion(ctx context.Context, messages []Message, options ...Option) (*ChatResponse, error) {
	req := ChatRequest{
		Model:       c.chatModel,
		Messages:    messages,
		Temperature: 0.1, // classification prompts want deterministic output
		MaxTokens:   256,
		Stream:      false,
	}
	for _, opt := range options {
		opt(&req)
	}

	var result ChatResponse
	if err := c.post(ctx, "/v1/chat/completions", req, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// Generate implements services.LLMClient: a single-turn user prompt that
// returns the raw completion text.
func (c *Client) Generate(ctx context.Context, prompt string, maxTokens int) (string, error) {
	resp, err := c.ChatCompletion(ctx, []Message{{Role: "user", Content: prompt}}, WithMaxTokens(maxTokens))
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("no choices returned from inference API")
	}
	return resp.Choices[0].Message.Content, nil
}

// embeddingRequest is an OpenAI-compatible embeddings request
type embeddingRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type embeddingDatum struct {
	Index     int       `json:"index"`
	Embedding []float32 `json:"embedding"`
}

type embeddingResponse struct {
	Data  []embeddingDatum `json:"data"`
	Usage Usage            `json:"usage"`
}

// Embeddings implements services.EmbeddingClient. The result preserves input
// order via the index field of the response.
func (c *Client) Embeddings(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	req := embeddingRequest{Model: c.embeddingModel, Input: texts}
	var resp embeddingResponse
	if err := c.post(ctx, "/v1/embeddings", req, &resp); err != nil {
		return nil, err
	}
	if len(resp.Data) != len(texts) {
		return nil, fmt.Errorf("embeddings API returned %d vectors for %d inputs", len(resp.Data), len(texts))
	}

	vectors := make([][]float32, len(texts))
	for _, datum := range resp.Data {
		if datum.Index < 0 || datum.Index >= len(vectors) {
			return nil, fmt.Errorf("embeddings API returned out-of-range index %d", datum.Index)
		}
		vectors[datum.Index] = datum.Embedding
	}
	return vectors, nil
}

// HealthCheck verifies the inference API is accessible
func (c *Client) HealthCheck(ctx context.Context) error {
	_, err := c.ChatCompletion(ctx, []Message{
		{Role: "user", Content: "Say 'ok' if you can hear me."},
	}, WithMaxTokens(10))
	return err
}

func (c *Client) post(ctx context.Context, path string, payload, result interface{}) error {
	jsonData, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+path, bytes.NewBuffer(jsonData))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("inference API error (status %d): %s", resp.StatusCode, string(respBody))
	}

	if err := json.Unmarshal(respBody, result); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
