package services

import (
	"context"
	"errors"
	"testing"
)

type stubEmbeddingClient struct {
	vectors [][]float32
	err     error
}

func (s *stubEmbeddingClient) Embeddings(ctx context.Context, texts []string) ([][]float32, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.vectors, nil
}

func TestEmbedBatchMatchesInputLength(t *testing.T) {
	client := &stubEmbeddingClient{vectors: [][]float32{{1, 0}, {0, 1}}}
	s := NewEmbeddingService(client)

	got := s.EmbedBatch(context.Background(), []string{"first", "second"})
	if len(got) != 2 {
		t.Fatalf("expected 2 vectors, got %d", len(got))
	}
	if got[0][0] != 1 || got[1][1] != 1 {
		t.Errorf("unexpected vectors: %v", got)
	}
}

func TestEmbedBatchDegradesOnFailure(t *testing.T) {
	s := NewEmbeddingService(&stubEmbeddingClient{err: errors.New("backend down")})

	got := s.EmbedBatch(context.Background(), []string{"a", "b", "c"})
	if len(got) != 3 {
		t.Fatalf("expected slice to match input length, got %d", len(got))
	}
	for i, vec := range got {
		if vec != nil {
			t.Errorf("vector %d: expected nil on failure, got %v", i, vec)
		}
	}
}

func TestEmbedBatchRejectsLengthMismatch(t *testing.T) {
	s := NewEmbeddingService(&stubEmbeddingClient{vectors: [][]float32{{1}}})

	got := s.EmbedBatch(context.Background(), []string{"a", "b"})
	if got[0] != nil || got[1] != nil {
		t.Errorf("expected nil vectors on count mismatch, got %v", got)
	}
}

func TestEmbeddingServiceWithoutBackend(t *testing.T) {
	s := NewEmbeddingService(nil)
	if s.Enabled() {
		t.Errorf("expected Enabled to be false without a client")
	}
	if vec := s.Embed(context.Background(), "text"); vec != nil {
		t.Errorf("expected nil vector, got %v", vec)
	}
}
