package services

import (
	"context"
	"testing"

	"github.com/examtrace/api/model"
)

func TestBloomClassifyByKeywords(t *testing.T) {
	b := NewBloomClassifier(nil)
	ctx := context.Background()

	tests := []struct {
		text string
		want string
	}{
		{"Define the term hazard with examples", model.BloomRemember},
		{"Explain the disaster management cycle", model.BloomUnderstand},
		{"Calculate the peak flood discharge", model.BloomApply},
		{"Compare structural and non-structural measures", model.BloomAnalyze},
		{"Justify the need for an early warning system", model.BloomEvaluate},
		{"Propose a mitigation framework for coastal areas", model.BloomCreate},
		// No action verb at all defaults to understand
		{"The monsoon season in Kerala", model.BloomUnderstand},
	}
	for _, tt := range tests {
		if got := b.Classify(ctx, tt.text); got != tt.want {
			t.Errorf("Classify(%q) = %q, want %q", tt.text, got, tt.want)
		}
	}
}

// When verbs from several levels appear, the lower level wins: a question
// asking to define something is a recall question even if it also says design.
func TestBloomLowerLevelOutweighsHigher(t *testing.T) {
	b := NewBloomClassifier(nil)

	got := b.Classify(context.Background(), "Define and design a flood warning framework")
	if got != model.BloomRemember {
		t.Errorf("Classify = %q, want %q", got, model.BloomRemember)
	}
}
