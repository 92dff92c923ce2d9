package services

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/examtrace/api/model"
)

// BloomClassifier assigns a Bloom's Taxonomy level to a question. The LLM
// path is tried first when a backend is configured; its answer is only
// accepted when it is one of the six known levels, otherwise the keyword
// heuristic decides.
type BloomClassifier struct {
	llm LLMClient
}

// NewBloomClassifier creates a classifier. A nil llm uses keywords only.
func NewBloomClassifier(llm LLMClient) *BloomClassifier {
	return &BloomClassifier{llm: llm}
}

var bloomLevels = []string{
	model.BloomRemember,
	model.BloomUnderstand,
	model.BloomApply,
	model.BloomAnalyze,
	model.BloomEvaluate,
	model.BloomCreate,
}

// bloomKeywords lists the action verbs characteristic of each level.
// Each level's keyword weight is the count of levels minus its index, so a
// lower-level verb outweighs a higher-level one when both appear: "define
// and design X" reads as a remember question, not a create question.
var bloomKeywords = map[string][]string{
	model.BloomRemember:   {"define", "list", "state", "name", "what is", "identify", "recall", "label", "recognize"},
	model.BloomUnderstand: {"explain", "describe", "discuss", "summarize", "interpret", "classify", "outline", "illustrate"},
	model.BloomApply:      {"apply", "solve", "calculate", "demonstrate", "use", "implement", "compute", "show", "execute"},
	model.BloomAnalyze:    {"analyze", "analyse", "compare", "contrast", "differentiate", "examine", "distinguish", "categorize"},
	model.BloomEvaluate:   {"evaluate", "justify", "critique", "assess", "argue", "defend", "judge", "recommend"},
	model.BloomCreate:     {"design", "develop", "create", "construct", "formulate", "propose", "devise", "compose"},
}

const bloomPrompt = `Classify the following exam question into exactly one Bloom's Taxonomy level.
The levels are: remember, understand, apply, analyze, evaluate, create.

Question: %s

Respond with ONLY the level name in lowercase.`

// Classify returns the Bloom level for a question, never an empty string
func (b *BloomClassifier) Classify(ctx context.Context, text string) string {
	if b.llm != nil {
		if level := b.classifyWithLLM(ctx, text); level != "" {
			return level
		}
	}
	return b.classifyByKeywords(text)
}

func (b *BloomClassifier) classifyWithLLM(ctx context.Context, text string) string {
	prompt := fmt.Sprintf(bloomPrompt, truncateForPrompt(text, 500))
	response, err := b.llm.Generate(ctx, prompt, 10)
	if err != nil {
		log.Printf("BloomClassifier: LLM classification failed: %v", err)
		return ""
	}
	answer := strings.ToLower(strings.TrimSpace(response))
	for _, level := range bloomLevels {
		if answer == level {
			return level
		}
	}
	return ""
}

// classifyByKeywords scores every level by weighted verb matches; the
// default for a question with no action verb is "understand".
func (b *BloomClassifier) classifyByKeywords(text string) string {
	lower := strings.ToLower(text)

	best := model.BloomUnderstand
	bestScore := 0

	for i, level := range bloomLevels {
		weight := len(bloomLevels) - i
		score := 0
		for _, keyword := range bloomKeywords[level] {
			if strings.Contains(lower, keyword) {
				score += weight
			}
		}
		if score > bestScore {
			bestScore = score
			best = level
		}
	}
	return best
}
