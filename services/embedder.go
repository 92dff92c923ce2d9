package services

import (
	"context"
	"log"
)

// EmbeddingService produces semantic vectors for question texts. It degrades
// gracefully: with no backend, or on any backend failure, it returns nil
// vectors and the pipeline falls back to keyword similarity.
type EmbeddingService struct {
	client EmbeddingClient
}

// NewEmbeddingService creates an embedding service; client may be nil
func NewEmbeddingService(client EmbeddingClient) *EmbeddingService {
	return &EmbeddingService{client: client}
}

// Enabled reports whether an embedding backend is configured
func (s *EmbeddingService) Enabled() bool {
	return s.client != nil
}

// Embed returns a vector for one text, or nil when unavailable
func (s *EmbeddingService) Embed(ctx context.Context, text string) []float32 {
	vectors := s.EmbedBatch(ctx, []string{text})
	if len(vectors) == 0 {
		return nil
	}
	return vectors[0]
}

// EmbedBatch returns one vector per input text. On backend failure every
// vector is nil; the result slice always matches the input length so callers
// can zip it against their questions.
func (s *EmbeddingService) EmbedBatch(ctx context.Context, texts []string) [][]float32 {
	result := make([][]float32, len(texts))
	if s.client == nil || len(texts) == 0 {
		return result
	}

	vectors, err := s.client.Embeddings(ctx, texts)
	if err != nil {
		log.Printf("EmbeddingService: batch of %d failed: %v", len(texts), err)
		return result
	}
	if len(vectors) != len(texts) {
		log.Printf("EmbeddingService: backend returned %d vectors for %d texts", len(vectors), len(texts))
		return result
	}
	copy(result, vectors)
	return result
}
