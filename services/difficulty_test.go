package services

import (
	"context"
	"testing"

	"github.com/examtrace/api/model"
)

func TestDifficultyHeuristics(t *testing.T) {
	d := NewDifficultyClassifier(nil)
	ctx := context.Background()

	tests := []struct {
		name  string
		text  string
		marks int
		want  string
	}{
		{
			"short low-mark recall question",
			"Define hazard.",
			2,
			model.DifficultyEasy,
		},
		{
			"high-mark synthesis question",
			"Design a disaster recovery plan and critically evaluate its effectiveness",
			14,
			model.DifficultyHard,
		},
		{
			"explanation verbs with mid marks",
			"Explain and illustrate the disaster management cycle and discuss its recovery phases",
			3,
			model.DifficultyMedium,
		},
		{
			"no signals at all defaults to medium",
			"Write about the role of local communities during flood events in coastal regions of the country over recent years and decades",
			0,
			model.DifficultyMedium,
		},
		{
			"tied tallies fall to the easier level",
			"Define and analyze the hazard profile of a coastal district in India with particular attention to cyclone and flood exposure",
			0,
			model.DifficultyEasy,
		},
	}
	for _, tt := range tests {
		if got := d.Classify(ctx, tt.text, tt.marks); got != tt.want {
			t.Errorf("%s: Classify = %q, want %q", tt.name, got, tt.want)
		}
	}
}

func TestDifficultySubPartsScoreMedium(t *testing.T) {
	d := NewDifficultyClassifier(nil)

	// The high mark value alone reads as hard; sub-part structure adds to
	// the medium tally and the longer text drops the short-question bump.
	flat := "Describe the institutional framework for disaster management in India covering national and district level authorities"
	parts := flat + " (a) national level (b) district level"

	if got := d.Classify(context.Background(), flat, 14); got != model.DifficultyHard {
		t.Errorf("flat question: got %q, want %q", got, model.DifficultyHard)
	}
	if got := d.Classify(context.Background(), parts, 14); got != model.DifficultyMedium {
		t.Errorf("multi-part question: got %q, want %q", got, model.DifficultyMedium)
	}
}
