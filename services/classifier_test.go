package services

import (
	"context"
	"testing"

	"gorm.io/datatypes"

	"github.com/examtrace/api/model"
)

func testModules() []model.Module {
	m1 := model.Module{Number: 1, Name: "Hazards"}
	m1.SetKeywords([]string{"hazard", "vulnerability"})
	m2 := model.Module{Number: 2, Name: "Mitigation"}
	m2.SetKeywords([]string{"mitigation", "disaster management cycle"})
	m3 := model.Module{Number: 3, Name: "Institutions"}
	m3.SetKeywords([]string{"ndma", "policy"})
	return []model.Module{m1, m2, m3}
}

func TestKTUDefaultModule(t *testing.T) {
	tests := []struct {
		number string
		part   string
		want   int
	}{
		{"1", "A", 1},
		{"2", "A", 1},
		{"9", "A", 5},
		{"10", "A", 5},
		{"11", "B", 1},
		{"12", "B", 1},
		{"19", "B", 5},
		{"20", "B", 5},
		{"5", "a", 3}, // part is case-insensitive
		{"21", "B", 0},
		{"0", "A", 0},
		{"11", "A", 0}, // Part A only covers 1-10
		{"abc", "A", 0},
	}
	for _, tt := range tests {
		if got := ktuDefaultModule(tt.number, tt.part); got != tt.want {
			t.Errorf("ktuDefaultModule(%q, %q) = %d, want %d", tt.number, tt.part, got, tt.want)
		}
	}
}

func TestClassifyByPattern(t *testing.T) {
	c := NewModuleClassifier(nil)

	pattern := &model.ExamPattern{}
	if err := pattern.SetMapping(map[string]int{"11:B": 3}); err != nil {
		t.Fatalf("SetMapping failed: %v", err)
	}

	// Explicit mapping wins over the default scheme
	if got := c.ClassifyByPattern(pattern, "11", "B"); got != 3 {
		t.Errorf("mapped question: got %d, want 3", got)
	}
	// Unmapped questions fall back to the standard scheme
	if got := c.ClassifyByPattern(pattern, "12", "B"); got != 1 {
		t.Errorf("unmapped question: got %d, want 1", got)
	}
	if got := c.ClassifyByPattern(nil, "7", "A"); got != 4 {
		t.Errorf("no pattern: got %d, want 4", got)
	}
	// Unparseable numbers never fail the pipeline
	if got := c.ClassifyByPattern(nil, "x", ""); got != 1 {
		t.Errorf("unparseable number: got %d, want 1", got)
	}
}

func TestClassifyByKeywords(t *testing.T) {
	c := NewModuleClassifier(nil)
	subject := &model.Subject{Name: "Disaster Management", UniversityType: model.UniversityOther}
	modules := testModules()

	q := ExtractedQuestion{Text: "Explain the disaster management cycle with a diagram", Marks: 14}
	num, ok := c.Classify(context.Background(), q, subject, modules, nil)
	if !ok || num != 2 {
		t.Errorf("Classify = (%d, %v), want (2, true)", num, ok)
	}

	q = ExtractedQuestion{Text: "Describe the structure of NDMA and its policy role", Marks: 14}
	num, ok = c.Classify(context.Background(), q, subject, modules, nil)
	if !ok || num != 3 {
		t.Errorf("Classify = (%d, %v), want (3, true)", num, ok)
	}

	// Nothing matches and no LLM is configured
	q = ExtractedQuestion{Text: "zzz qqq www", Marks: 3}
	num, ok = c.Classify(context.Background(), q, subject, modules, nil)
	if ok || num != 0 {
		t.Errorf("Classify = (%d, %v), want (0, false)", num, ok)
	}
}

func TestClassifyModuleHintBeatsKeywords(t *testing.T) {
	c := NewModuleClassifier(nil)
	subject := &model.Subject{Name: "Disaster Management", UniversityType: model.UniversityOther}
	modules := testModules()

	q := ExtractedQuestion{Text: "Explain hazard and vulnerability", ModuleHint: 3}
	num, ok := c.Classify(context.Background(), q, subject, modules, nil)
	if !ok || num != 3 {
		t.Errorf("Classify = (%d, %v), want (3, true)", num, ok)
	}

	// A hint pointing at a nonexistent module is ignored
	q.ModuleHint = 9
	num, ok = c.Classify(context.Background(), q, subject, modules, nil)
	if !ok || num != 1 {
		t.Errorf("Classify = (%d, %v), want keyword result (1, true)", num, ok)
	}
}

func TestClassifyRulesRunFirst(t *testing.T) {
	c := NewModuleClassifier(nil)
	subject := &model.Subject{Name: "Disaster Management", UniversityType: model.UniversityOther}
	modules := testModules()

	rules := []model.ClassificationRule{{
		Name:         "flood questions",
		ModuleNumber: 3,
		IsActive:     true,
		Expression:   datatypes.JSON(`{"op":"contains","value":"flood"}`),
	}}

	q := ExtractedQuestion{Text: "Explain flood plain zoning", Marks: 14}
	num, ok := c.Classify(context.Background(), q, subject, modules, rules)
	if !ok || num != 3 {
		t.Errorf("Classify = (%d, %v), want (3, true)", num, ok)
	}

	// Inactive rules are skipped
	rules[0].IsActive = false
	num, ok = c.Classify(context.Background(), q, subject, modules, rules)
	if ok || num != 0 {
		t.Errorf("Classify = (%d, %v), want (0, false) with rule disabled", num, ok)
	}
}

func TestClassifyBatchDefaultsToModuleOne(t *testing.T) {
	c := NewModuleClassifier(nil)
	subject := &model.Subject{Name: "Disaster Management", UniversityType: model.UniversityOther}
	modules := testModules()

	questions := []ExtractedQuestion{
		{Text: "Explain the disaster management cycle"},
		{Text: "zzz qqq www"},
	}
	got := c.ClassifyBatch(context.Background(), questions, subject, modules, nil)
	if got[0] != 2 {
		t.Errorf("question 0: got module %d, want 2", got[0])
	}
	if got[1] != 1 {
		t.Errorf("question 1: expected unmatched default 1, got %d", got[1])
	}
}

func TestQuestionTypeOf(t *testing.T) {
	tests := []struct {
		text string
		want string
	}{
		{"Define hazard and vulnerability", "definition"},
		{"What is an early warning system?", "definition"},
		{"Derive the expression for runoff", "derivation"},
		{"Calculate the peak discharge", "numerical"},
		{"Draw the disaster management cycle", "diagram"},
		{"Compare structural and non-structural mitigation", "comparison"},
		{"Discuss relief operations in detail", "theory"},
	}
	for _, tt := range tests {
		if got := QuestionTypeOf(tt.text); got != tt.want {
			t.Errorf("QuestionTypeOf(%q) = %q, want %q", tt.text, got, tt.want)
		}
	}
}
