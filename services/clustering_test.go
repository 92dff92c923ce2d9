package services

import (
	"strings"
	"testing"

	"github.com/examtrace/api/model"
)

func makeQuestions(texts []string) []model.Question {
	questions := make([]model.Question, len(texts))
	for i, text := range texts {
		questions[i] = model.Question{Text: text}
	}
	return questions
}

func TestCleanQuestionText(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"a) Explain flood routing (14)", "Explain flood routing"},
		{"(b) Describe relief operations [14]", "Describe relief operations"},
		{"Explain mitigation\nOR\nDescribe preparedness", "Explain mitigation Describe preparedness"},
		{"Plain question text", "Plain question text"},
	}
	for _, tt := range tests {
		if got := cleanQuestionText(tt.in); got != tt.want {
			t.Errorf("cleanQuestionText(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestExtractTopicName(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{
			"Explain the disaster management cycle with a neat diagram",
			"The disaster management cycle with a neat diagram",
		},
		{
			"Write short notes on early warning systems. (3 marks)",
			"Early warning systems",
		},
		{
			"What do you mean by vulnerability assessment?",
			"Vulnerability assessment?",
		},
		{"", "General"},
	}
	for _, tt := range tests {
		if got := extractTopicName(tt.in); got != tt.want {
			t.Errorf("extractTopicName(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestExtractTopicNameTruncatesAtWordBoundary(t *testing.T) {
	long := "Discuss " + strings.Repeat("institutional framework coordination ", 6)
	got := extractTopicName(long)

	if len(got) > topicNameMaxLen {
		t.Errorf("name too long (%d chars): %q", len(got), got)
	}
	if strings.HasSuffix(got, " ") || strings.HasSuffix(got, "-") {
		t.Errorf("name has trailing separator: %q", got)
	}
	// The cut must land between words, not inside one
	lastWord := got[strings.LastIndex(got, " ")+1:]
	if lastWord != "institutional" && lastWord != "framework" && lastWord != "coordination" {
		t.Errorf("name cut mid-word: %q", got)
	}
}

// Greedy clustering groups same-topic questions and keeps distinct topics
// apart. No embedding backend here, so the keyword fallback decides.
func TestClusterGroupGreedy(t *testing.T) {
	s := &TopicClusteringService{}

	texts := []string{
		"Explain the disaster management cycle with a neat diagram",
		"Describe the disaster management cycle with a neat diagram",
		"Describe flood routing using the Muskingum method",
	}
	questions := makeQuestions(texts)
	items := make([]SimilarityItem, len(texts))
	for i, text := range texts {
		items[i] = SimilarityItem{Text: cleanQuestionText(text)}
	}

	drafts := s.clusterGroup(questions, items, []int{0, 1, 2})
	if len(drafts) != 2 {
		t.Fatalf("expected 2 clusters, got %d", len(drafts))
	}
	if len(drafts[0].questions) != 2 {
		t.Errorf("expected first cluster to hold both cycle questions, got %d", len(drafts[0].questions))
	}
	if drafts[0].representative.Text != items[0].Text {
		t.Errorf("representative should be the first member, got %q", drafts[0].representative.Text)
	}
	if len(drafts[1].questions) != 1 {
		t.Errorf("expected flood question in its own cluster, got %d members", len(drafts[1].questions))
	}
}

// A question that clears the threshold against two seeds joins the earlier
// seed, even when the later seed scores higher. Vectors sit at 0, 60 and 35
// degrees: the third scores 0.819 against the first seed and 0.906 against
// the second.
func TestClusterGroupJoinsFirstQualifyingSeed(t *testing.T) {
	s := &TopicClusteringService{}

	questions := makeQuestions([]string{
		"storm surge barriers",
		"earthquake retrofitting",
		"coastal flood defences",
	})
	items := []SimilarityItem{
		{Text: "storm surge barriers", Embedding: []float32{1, 0}},
		{Text: "earthquake retrofitting", Embedding: []float32{0.5, 0.8660254}},
		{Text: "coastal flood defences", Embedding: []float32{0.8191520, 0.5735764}},
	}

	drafts := s.clusterGroup(questions, items, []int{0, 1, 2})
	if len(drafts) != 2 {
		t.Fatalf("expected 2 clusters, got %d", len(drafts))
	}
	if len(drafts[0].questions) != 2 {
		t.Fatalf("expected third question in the first cluster, got %d members", len(drafts[0].questions))
	}
	if drafts[0].questions[1].Text != questions[2].Text {
		t.Errorf("first cluster absorbed %q, want %q", drafts[0].questions[1].Text, questions[2].Text)
	}
	if len(drafts[1].questions) != 1 {
		t.Errorf("expected second cluster untouched, got %d members", len(drafts[1].questions))
	}
}

// Year-less papers contribute a single "unknown" year entry, so the
// frequency count always equals the number of distinct year entries.
func TestClusterStatsCountYearlessPapersOnce(t *testing.T) {
	s := &TopicClusteringService{}

	q1 := model.Question{Text: "Explain flood plain zoning", Marks: 14, Part: "B"}
	q2 := model.Question{Text: "Describe flood plain zoning", Marks: 14, Part: "B"}
	q3 := model.Question{Text: "Discuss flood plain zoning", Marks: 3, Part: "A",
		Paper: model.Paper{Year: "2022"}}

	drafts := []*clusterDraft{
		{
			representative: SimilarityItem{Text: "flood plain zoning"},
			questions:      []*model.Question{&q1, &q2},
		},
		{
			representative: SimilarityItem{Text: "flood plain zoning again"},
			questions:      []*model.Question{&q3, &q1},
		},
	}

	clusters := s.buildClusters(1, drafts)
	if len(clusters) != 2 {
		t.Fatalf("expected 2 clusters, got %d", len(clusters))
	}

	yearless := clusters[0]
	if yearless.FrequencyCount != 1 {
		t.Errorf("yearless cluster: FrequencyCount = %d, want 1", yearless.FrequencyCount)
	}
	if years := yearless.YearList(); len(years) != 1 || years[0] != "unknown" {
		t.Errorf("yearless cluster: YearList = %v, want [unknown]", years)
	}
	if yearless.PriorityTier != model.PriorityTier4 {
		t.Errorf("yearless cluster: tier = %q, want %q", yearless.PriorityTier, model.PriorityTier4)
	}

	mixed := clusters[1]
	if mixed.FrequencyCount != 2 {
		t.Errorf("mixed cluster: FrequencyCount = %d, want 2", mixed.FrequencyCount)
	}
	if years := mixed.YearList(); len(years) != mixed.FrequencyCount {
		t.Errorf("mixed cluster: %d year entries for FrequencyCount %d", len(years), mixed.FrequencyCount)
	}
	if mixed.PriorityTier != model.PriorityTier3 {
		t.Errorf("mixed cluster: tier = %q, want %q", mixed.PriorityTier, model.PriorityTier3)
	}
}
