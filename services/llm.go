package services

import "context"

// LLMClient is the optional text-generation backend used by the
// classification services. Every caller has a local heuristic fallback, so
// implementations must fail fast rather than block the pipeline.
type LLMClient interface {
	Generate(ctx context.Context, prompt string, maxTokens int) (string, error)
}

// EmbeddingClient is the optional embedding backend. A nil client or a
// failing call degrades the pipeline to keyword-based similarity.
type EmbeddingClient interface {
	Embeddings(ctx context.Context, texts []string) ([][]float32, error)
}
