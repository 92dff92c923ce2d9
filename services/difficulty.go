package services

import (
	"context"
	"fmt"
	"log"
	"regexp"
	"strings"

	"github.com/examtrace/api/model"
)

// DifficultyClassifier estimates how hard a question is. Like the Bloom
// classifier it prefers a validated LLM answer and falls back to a score
// built from indicator phrases, mark value, length and sub-part structure.
type DifficultyClassifier struct {
	llm LLMClient
}

// NewDifficultyClassifier creates a classifier. A nil llm uses heuristics only.
func NewDifficultyClassifier(llm LLMClient) *DifficultyClassifier {
	return &DifficultyClassifier{llm: llm}
}

var (
	easyIndicators = []string{
		"define", "list", "state", "name", "what is", "give example",
		"identify", "recall", "basic", "simple", "elementary",
	}
	mediumIndicators = []string{
		"explain", "describe", "compare", "contrast", "discuss",
		"illustrate", "classify", "solve", "calculate", "apply",
		"demonstrate", "interpret",
	}
	hardIndicators = []string{
		"analyze", "analyse", "evaluate", "design", "create", "synthesize",
		"justify", "critique", "prove", "derive", "optimize",
		"complex", "advanced", "challenging", "develop", "construct",
	}

	multiPartRegex = regexp.MustCompile(`(?i)\([a-z]\)|[ivx]+\)`)
)

const difficultyPrompt = `Rate the difficulty of the following exam question as easy, medium, or hard.
Consider the cognitive demand, not the topic.

Question: %s (worth %d marks)

Respond with ONLY one word: easy, medium, or hard.`

// Classify returns the difficulty for a question, never an empty string
func (d *DifficultyClassifier) Classify(ctx context.Context, text string, marks int) string {
	if d.llm != nil {
		if level := d.classifyWithLLM(ctx, text, marks); level != "" {
			return level
		}
	}
	return d.classifyByHeuristics(text, marks)
}

func (d *DifficultyClassifier) classifyWithLLM(ctx context.Context, text string, marks int) string {
	prompt := fmt.Sprintf(difficultyPrompt, truncateForPrompt(text, 500), marks)
	response, err := d.llm.Generate(ctx, prompt, 5)
	if err != nil {
		log.Printf("DifficultyClassifier: LLM classification failed: %v", err)
		return ""
	}
	switch strings.ToLower(strings.TrimSpace(response)) {
	case model.DifficultyEasy:
		return model.DifficultyEasy
	case model.DifficultyMedium:
		return model.DifficultyMedium
	case model.DifficultyHard:
		return model.DifficultyHard
	}
	return ""
}

// classifyByHeuristics keeps a tally per level: indicator phrase hits,
// a mark-value bump, a word-count bump, and a sub-part bump toward medium.
// The highest tally wins; ties fall to the easier level, all-zero to medium.
func (d *DifficultyClassifier) classifyByHeuristics(text string, marks int) string {
	lower := strings.ToLower(text)
	easy, medium, hard := 0, 0, 0

	for _, indicator := range easyIndicators {
		if strings.Contains(lower, indicator) {
			easy++
		}
	}
	for _, indicator := range mediumIndicators {
		if strings.Contains(lower, indicator) {
			medium++
		}
	}
	for _, indicator := range hardIndicators {
		if strings.Contains(lower, indicator) {
			hard++
		}
	}

	if marks > 0 {
		switch {
		case marks <= 2:
			easy += 2
		case marks <= 5:
			medium += 2
		default:
			hard += 2
		}
	}

	wordCount := len(strings.Fields(text))
	if wordCount < 20 {
		easy++
	} else if wordCount > 50 {
		hard++
	}

	if multiPartRegex.MatchString(text) {
		medium++
	}

	switch {
	case easy == 0 && medium == 0 && hard == 0:
		return model.DifficultyMedium
	case easy >= medium && easy >= hard:
		return model.DifficultyEasy
	case medium >= hard:
		return model.DifficultyMedium
	}
	return model.DifficultyHard
}
