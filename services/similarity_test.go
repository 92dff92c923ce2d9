package services

import (
	"math"
	"testing"
)

func TestCosineSimilarity(t *testing.T) {
	tests := []struct {
		name string
		a, b []float32
		want float64
	}{
		{"identical", []float32{1, 2, 3}, []float32{1, 2, 3}, 1},
		{"orthogonal", []float32{1, 0}, []float32{0, 1}, 0},
		{"opposite", []float32{1, 0}, []float32{-1, 0}, -1},
		{"zero vector", []float32{0, 0}, []float32{1, 1}, 0},
		{"length mismatch", []float32{1, 2}, []float32{1, 2, 3}, 0},
		{"empty", nil, nil, 0},
	}
	for _, tt := range tests {
		got := CosineSimilarity(tt.a, tt.b)
		if math.Abs(got-tt.want) > 1e-9 {
			t.Errorf("%s: CosineSimilarity = %f, want %f", tt.name, got, tt.want)
		}
	}
}

func TestKeywordSimilarity(t *testing.T) {
	if got := KeywordSimilarity(
		"Explain the disaster management cycle",
		"Explain the disaster management cycle"); got != 1 {
		t.Errorf("identical texts: got %f, want 1", got)
	}
	if got := KeywordSimilarity(
		"disaster management cycle phases",
		"flood routing hydrograph computation"); got != 0 {
		t.Errorf("disjoint texts: got %f, want 0", got)
	}
	// Stopwords and short words carry no signal
	if got := KeywordSimilarity("what is the of an", "explain describe discuss"); got != 0 {
		t.Errorf("stopword-only texts: got %f, want 0", got)
	}
}

func TestSimilarityPrefersEmbeddings(t *testing.T) {
	a := SimilarityItem{Text: "completely different words", Embedding: []float32{1, 0}}
	b := SimilarityItem{Text: "nothing shared here", Embedding: []float32{1, 0}}

	if got := Similarity(a, b); math.Abs(got-1) > 1e-9 {
		t.Errorf("expected embedding similarity 1, got %f", got)
	}

	// Without embeddings the keyword fallback decides
	a.Embedding = nil
	if got := Similarity(a, b); got != 0 {
		t.Errorf("expected keyword fallback 0, got %f", got)
	}
}

func TestFindDuplicate(t *testing.T) {
	target := SimilarityItem{Embedding: []float32{1, 0, 0}}
	candidates := []SimilarityItem{
		{Embedding: []float32{0, 1, 0}},
		{Embedding: []float32{1, 0.1, 0}},
		{Embedding: []float32{0.5, 0.5, 0.5}},
	}
	if got := FindDuplicate(target, candidates); got != 1 {
		t.Errorf("FindDuplicate = %d, want 1", got)
	}

	below := []SimilarityItem{{Embedding: []float32{0, 1, 0}}}
	if got := FindDuplicate(target, below); got != -1 {
		t.Errorf("expected -1 for no match above threshold, got %d", got)
	}
}

func TestBatchFindDuplicatesPointsAtEarliest(t *testing.T) {
	items := []SimilarityItem{
		{Text: "disaster management cycle phases explained"},
		{Text: "disaster management cycle phases explained"},
		{Text: "flood routing hydrograph computation methods"},
		{Text: "disaster management cycle phases explained"},
	}

	dups := BatchFindDuplicates(items)
	if len(dups) != 2 {
		t.Fatalf("expected 2 duplicates, got %d: %v", len(dups), dups)
	}
	if dups[1] != 0 {
		t.Errorf("expected item 1 to point at item 0, got %d", dups[1])
	}
	if dups[3] != 0 {
		t.Errorf("expected item 3 to point at the first occurrence, got %d", dups[3])
	}
	if _, ok := dups[2]; ok {
		t.Errorf("item 2 wrongly marked as duplicate")
	}
}
