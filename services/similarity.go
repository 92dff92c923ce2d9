package services

import (
	"math"
	"strings"
)

// Similarity thresholds. Duplicate detection is stricter than topic
// clustering: two questions can share a topic without being the same
// question.
const (
	DuplicateThreshold  = 0.85
	ClusteringThreshold = 0.75
)

// CosineSimilarity returns the cosine of the angle between two vectors.
// Mismatched lengths or a zero-norm vector yield 0, never an error or NaN.
func CosineSimilarity(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

// SimilarityItem pairs a text with its (possibly nil) embedding so the
// duplicate and clustering passes can fall back per item.
type SimilarityItem struct {
	Text      string
	Embedding []float32
}

// Similarity compares two items: embeddings when both have them, keyword
// overlap otherwise.
func Similarity(a, b SimilarityItem) float64 {
	if a.Embedding != nil && b.Embedding != nil {
		return CosineSimilarity(a.Embedding, b.Embedding)
	}
	return KeywordSimilarity(a.Text, b.Text)
}

// FindDuplicate returns the index of the most similar candidate at or above
// the duplicate threshold, or -1 when none qualifies. The target itself must
// not be in candidates.
func FindDuplicate(target SimilarityItem, candidates []SimilarityItem) int {
	best := -1
	bestScore := 0.0
	for i := range candidates {
		score := Similarity(target, candidates[i])
		if score >= DuplicateThreshold && score > bestScore {
			bestScore = score
			best = i
		}
	}
	return best
}

// BatchFindDuplicates marks duplicates within one batch. Each item is only
// compared against earlier items, and the scan stops at the first match, so
// a run of near-identical questions all point at the first occurrence. The
// result maps duplicate index to original index; non-duplicates are absent.
func BatchFindDuplicates(items []SimilarityItem) map[int]int {
	duplicates := make(map[int]int)
	for i := 1; i < len(items); i++ {
		for j := 0; j < i; j++ {
			if _, isDup := duplicates[j]; isDup {
				continue
			}
			if Similarity(items[i], items[j]) >= DuplicateThreshold {
				duplicates[i] = j
				break
			}
		}
	}
	return duplicates
}

var similarityStopwords = map[string]bool{
	"the": true, "a": true, "an": true, "and": true, "or": true, "of": true,
	"in": true, "on": true, "to": true, "for": true, "with": true, "is": true,
	"are": true, "what": true, "how": true, "why": true, "explain": true,
	"describe": true, "discuss": true, "write": true, "note": true,
	"short": true, "briefly": true, "give": true, "state": true,
	"define": true, "any": true, "its": true, "that": true, "this": true,
}

// KeywordSimilarity is the embedding-free fallback: Jaccard overlap of the
// content words of two texts after stopword removal.
func KeywordSimilarity(a, b string) float64 {
	setA := contentWords(a)
	setB := contentWords(b)
	if len(setA) == 0 || len(setB) == 0 {
		return 0
	}

	intersection := 0
	for word := range setA {
		if setB[word] {
			intersection++
		}
	}
	union := len(setA) + len(setB) - intersection
	return float64(intersection) / float64(union)
}

func contentWords(text string) map[string]bool {
	words := make(map[string]bool)
	for _, field := range strings.Fields(strings.ToLower(text)) {
		word := strings.Trim(field, ".,;:?!()[]\"'")
		if len(word) < 3 || similarityStopwords[word] {
			continue
		}
		words[word] = true
	}
	return words
}
