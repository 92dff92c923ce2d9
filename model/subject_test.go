package model

import "testing"

func TestIsKTU(t *testing.T) {
	tests := []struct {
		universityType UniversityType
		want           bool
	}{
		{UniversityKTU, true},
		{"", true}, // legacy rows default to the strict path
		{UniversityOther, false},
	}
	for _, tt := range tests {
		s := Subject{UniversityType: tt.universityType}
		if got := s.IsKTU(); got != tt.want {
			t.Errorf("IsKTU(%q) = %v, want %v", tt.universityType, got, tt.want)
		}
	}
}

func TestPatternKey(t *testing.T) {
	if got := PatternKey(11, "b"); got != "11:B" {
		t.Errorf("PatternKey = %q, want 11:B", got)
	}
}

func TestExamPatternModuleForQuestion(t *testing.T) {
	p := ExamPattern{}
	if err := p.SetMapping(map[string]int{"11:B": 1, "13:B": 2}); err != nil {
		t.Fatalf("SetMapping failed: %v", err)
	}

	if got := p.ModuleForQuestion("11", "B"); got != 1 {
		t.Errorf("mapped question: got %d, want 1", got)
	}
	if got := p.ModuleForQuestion("11", "b"); got != 1 {
		t.Errorf("part lookup should be case-insensitive, got %d", got)
	}
	if got := p.ModuleForQuestion(" 13 ", "B"); got != 2 {
		t.Errorf("number lookup should trim whitespace, got %d", got)
	}
	if got := p.ModuleForQuestion("12", "B"); got != 0 {
		t.Errorf("unmapped question: got %d, want 0", got)
	}

	empty := ExamPattern{}
	if got := empty.ModuleForQuestion("11", "B"); got != 0 {
		t.Errorf("empty mapping: got %d, want 0", got)
	}
}

func TestModuleTopicsKeywordsRoundTrip(t *testing.T) {
	m := Module{Number: 1, Name: "Hazards"}
	m.SetTopics([]string{"Types of disasters", "Risk concepts"})
	m.SetKeywords([]string{"hazard", "risk"})

	topics := m.TopicList()
	if len(topics) != 2 || topics[0] != "Types of disasters" {
		t.Errorf("unexpected topics: %v", topics)
	}
	keywords := m.KeywordList()
	if len(keywords) != 2 || keywords[1] != "risk" {
		t.Errorf("unexpected keywords: %v", keywords)
	}

	var blank Module
	if blank.TopicList() != nil || blank.KeywordList() != nil {
		t.Errorf("expected nil lists for unset columns")
	}
}
