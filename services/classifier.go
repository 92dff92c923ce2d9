package services

import (
	"context"
	"fmt"
	"log"
	"strconv"
	"strings"

	"github.com/examtrace/api/model"
)

// ModuleClassifier assigns questions to curriculum modules. Strict-format
// subjects take the rule path (exam pattern lookup); everything else goes
// through the heuristic path: author rules, extraction hints, keyword
// scoring, then an optional LLM call.
type ModuleClassifier struct {
	llm LLMClient
}

// NewModuleClassifier creates a classifier. A nil llm disables the LLM
// fallback; the keyword path still runs.
func NewModuleClassifier(llm LLMClient) *ModuleClassifier {
	return &ModuleClassifier{llm: llm}
}

const classifyPrompt = `You are a question classifier for academic subjects. Given a question and the available modules,
determine which module the question belongs to.

Subject: %s
Modules:
%s

Question: %s

Respond with ONLY the module number (e.g., "1", "2", "3"). If unsure, respond with "0".`

// Default keywords applied when a module defines none of its own.
// Inherited from the disaster-management curriculum the scoring was first
// tuned on; real curricula are expected to set their own keyword lists.
var defaultModuleKeywords = map[int][]string{
	1: {"disaster", "hazard", "vulnerability", "risk", "types of disaster", "natural disaster",
		"man-made", "classification", "definition", "concept", "introduction"},
	2: {"mitigation", "preparedness", "prevention", "disaster management cycle", "planning",
		"capacity building", "early warning", "risk reduction", "DRR"},
	3: {"NDMA", "SDMA", "DDMA", "disaster management act", "policy", "institutional",
		"framework", "authority", "organization", "structure", "government"},
	4: {"response", "relief", "rehabilitation", "recovery", "emergency", "rescue",
		"evacuation", "shelter", "medical", "aid", "reconstruction"},
	5: {"community", "participation", "awareness", "local", "village", "CBDM", "training",
		"volunteer", "NGO", "stakeholder", "education"},
}

// ClassifyByPattern is the deterministic rule path for strict-format
// subjects: exam pattern lookup first, then the fixed KTU numbering scheme.
// Never fails - unmapped questions default to module 1.
func (c *ModuleClassifier) ClassifyByPattern(pattern *model.ExamPattern, questionNumber, part string) int {
	if pattern != nil {
		if num := pattern.ModuleForQuestion(questionNumber, part); num > 0 {
			return num
		}
	}
	if num := ktuDefaultModule(questionNumber, part); num > 0 {
		return num
	}
	return 1
}

// ktuDefaultModule implements the standard KTU scheme: Part A pairs 1,2 ->
// module 1 through 9,10 -> module 5; Part B pairs 11,12 -> module 1 through
// 19,20 -> module 5.
func ktuDefaultModule(questionNumber, part string) int {
	num, err := strconv.Atoi(strings.TrimSpace(questionNumber))
	if err != nil {
		return 0
	}
	switch strings.ToUpper(part) {
	case "A":
		if num >= 1 && num <= 10 {
			return (num + 1) / 2
		}
	case "B":
		if num >= 11 && num <= 20 {
			return (num - 9) / 2
		}
	}
	return 0
}

// Classify runs the heuristic path for one question. Returns (module, true)
// on a match; (0, false) when nothing scored and no LLM answer was usable.
func (c *ModuleClassifier) Classify(ctx context.Context, q ExtractedQuestion, subject *model.Subject, modules []model.Module, rules []model.ClassificationRule) (int, bool) {
	if len(modules) == 0 {
		return 0, false
	}

	// Author-defined rules run first
	if num := c.classifyByRules(q, modules, rules); num > 0 {
		return num, true
	}

	// An extraction-time module heading beats scoring
	if q.ModuleHint > 0 && moduleExists(modules, q.ModuleHint) {
		return q.ModuleHint, true
	}

	if num := c.classifyByKeywords(q.Text, modules); num > 0 {
		return num, true
	}

	if c.llm != nil {
		if num := c.classifyWithLLM(ctx, q.Text, subject, modules); num > 0 {
			return num, true
		}
	}

	return 0, false
}

// ClassifyBatch classifies many questions, defaulting unmatched ones to
// module 1 so every question is actionable downstream. The asymmetry with
// Classify is intentional and matched by the analysis pipeline's behavior.
func (c *ModuleClassifier) ClassifyBatch(ctx context.Context, questions []ExtractedQuestion, subject *model.Subject, modules []model.Module, rules []model.ClassificationRule) []int {
	results := make([]int, len(questions))
	for i, q := range questions {
		if num, ok := c.Classify(ctx, q, subject, modules, rules); ok {
			results[i] = num
		} else {
			results[i] = 1
		}
	}
	return results
}

func (c *ModuleClassifier) classifyByRules(q ExtractedQuestion, modules []model.Module, rules []model.ClassificationRule) int {
	ruleCtx := RuleContext{QuestionText: q.Text, Marks: q.Marks}
	for i := range rules {
		if !rules[i].IsActive {
			continue
		}
		expr, err := ParseRuleExpr(rules[i].Expression)
		if err != nil {
			log.Printf("ModuleClassifier: skipping rule %q: %v", rules[i].Name, err)
			continue
		}
		if expr.Eval(ruleCtx) && moduleExists(modules, rules[i].ModuleNumber) {
			return rules[i].ModuleNumber
		}
	}
	return 0
}

// classifyByKeywords scores each module against the question text:
// +3 per keyword hit, +2 per topic hit, +1 per module-name word longer than
// three characters. All checks are case-insensitive substring matches.
func (c *ModuleClassifier) classifyByKeywords(text string, modules []model.Module) int {
	questionLower := strings.ToLower(text)

	bestMatch := 0
	bestScore := 0

	for i := range modules {
		module := &modules[i]
		score := 0

		keywords := module.KeywordList()
		if len(keywords) == 0 {
			keywords = defaultModuleKeywords[module.Number]
		}
		for _, keyword := range keywords {
			if strings.Contains(questionLower, strings.ToLower(keyword)) {
				score += 3
			}
		}

		for _, topic := range module.TopicList() {
			if strings.Contains(questionLower, strings.ToLower(topic)) {
				score += 2
			}
		}

		for _, word := range strings.Fields(strings.ToLower(module.Name)) {
			if len(word) > 3 && strings.Contains(questionLower, word) {
				score++
			}
		}

		if score > bestScore {
			bestScore = score
			bestMatch = module.Number
		}
	}

	if bestScore > 0 {
		return bestMatch
	}
	return 0
}

func (c *ModuleClassifier) classifyWithLLM(ctx context.Context, text string, subject *model.Subject, modules []model.Module) int {
	var sb strings.Builder
	for i := range modules {
		topics := modules[i].TopicList()
		if len(topics) > 5 {
			topics = topics[:5]
		}
		topicsText := "No topics defined"
		if len(topics) > 0 {
			topicsText = strings.Join(topics, ", ")
		}
		fmt.Fprintf(&sb, "%d. %s: %s\n", modules[i].Number, modules[i].Name, topicsText)
	}

	subjectName := ""
	if subject != nil {
		subjectName = subject.Name
	}
	prompt := fmt.Sprintf(classifyPrompt, subjectName, sb.String(), truncateForPrompt(text, 500))

	response, err := c.llm.Generate(ctx, prompt, 10)
	if err != nil {
		log.Printf("ModuleClassifier: LLM classification failed: %v", err)
		return 0
	}

	num, err := strconv.Atoi(strings.TrimSpace(response))
	if err != nil || num < 1 || num > len(modules) {
		return 0
	}
	return num
}

func moduleExists(modules []model.Module, number int) bool {
	for i := range modules {
		if modules[i].Number == number {
			return true
		}
	}
	return false
}

func truncateForPrompt(text string, max int) string {
	if len(text) > max {
		return text[:max]
	}
	return text
}

// QuestionTypeOf tags a question with a coarse type from surface cues
func QuestionTypeOf(text string) string {
	lower := strings.ToLower(text)
	switch {
	case containsAny(lower, "define", "what is"):
		return "definition"
	case containsAny(lower, "derive", "proof"):
		return "derivation"
	case containsAny(lower, "calculate", "compute"):
		return "numerical"
	case containsAny(lower, "draw", "diagram"):
		return "diagram"
	case containsAny(lower, "compare", "differentiate"):
		return "comparison"
	}
	return "theory"
}

func containsAny(text string, terms ...string) bool {
	for _, term := range terms {
		if strings.Contains(text, term) {
			return true
		}
	}
	return false
}
