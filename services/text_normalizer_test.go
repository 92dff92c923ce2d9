package services

import (
	"strings"
	"testing"
)

func TestNormalizeCleansOCRArtifacts(t *testing.T) {
	n := NewTextNormalizer()

	raw := "\uFEFFDeﬁne  ‘hazard’\r\nPart   B – questions"
	got := n.Normalize(raw)

	if strings.Contains(got, "\r") {
		t.Errorf("expected CR removed, got %q", got)
	}
	if strings.Contains(got, "\uFEFF") {
		t.Errorf("expected byte order mark removed, got %q", got)
	}
	if !strings.Contains(got, "Define 'hazard'") {
		t.Errorf("expected ligature and quote replacement, got %q", got)
	}
	if !strings.Contains(got, "Part B - questions") {
		t.Errorf("expected dash replacement and space collapse, got %q", got)
	}
}

func TestIsBoilerplate(t *testing.T) {
	n := NewTextNormalizer()

	tests := []struct {
		line string
		want bool
	}{
		{"Page 2 of 4", true},
		{"3 / 4", true},
		{"42", true},
		{"short", true},
		{"Explain the disaster management cycle", false},
	}
	for _, tt := range tests {
		if got := n.IsBoilerplate(tt.line, 15); got != tt.want {
			t.Errorf("IsBoilerplate(%q) = %v, want %v", tt.line, got, tt.want)
		}
	}
}

func TestStripMarkAnnotation(t *testing.T) {
	n := NewTextNormalizer()

	tests := []struct {
		in        string
		wantText  string
		wantMarks int
	}{
		{"Define hazard. (3 marks)", "Define hazard.", 3},
		{"Define hazard. (14)", "Define hazard.", 14},
		{"Define hazard. [3]", "Define hazard.", 3},
		{"Define hazard. 3 marks", "Define hazard.", 3},
		{"Define hazard.", "Define hazard.", 0},
	}
	for _, tt := range tests {
		text, marks := n.StripMarkAnnotation(tt.in)
		if text != tt.wantText || marks != tt.wantMarks {
			t.Errorf("StripMarkAnnotation(%q) = (%q, %d), want (%q, %d)",
				tt.in, text, marks, tt.wantText, tt.wantMarks)
		}
	}
}
