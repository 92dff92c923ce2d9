package model

import "testing"

func TestSetYearsKeepsFrequencyConsistent(t *testing.T) {
	c := TopicCluster{}
	c.SetYears([]string{"2021", "2022", "2023"})

	if c.FrequencyCount != 3 {
		t.Errorf("FrequencyCount = %d, want 3", c.FrequencyCount)
	}
	years := c.YearList()
	if len(years) != 3 || years[0] != "2021" {
		t.Errorf("unexpected years: %v", years)
	}

	c.SetYears(nil)
	if c.FrequencyCount != 0 {
		t.Errorf("FrequencyCount after clearing = %d, want 0", c.FrequencyCount)
	}
	if c.YearList() == nil {
		t.Errorf("expected empty list, got nil")
	}
}

func TestCalculatePriorityTier(t *testing.T) {
	tests := []struct {
		frequency int
		want      PriorityTier
	}{
		{6, PriorityTier1},
		{4, PriorityTier1},
		{3, PriorityTier2},
		{2, PriorityTier3},
		{1, PriorityTier4},
		{0, PriorityTier4},
	}
	for _, tt := range tests {
		c := TopicCluster{FrequencyCount: tt.frequency}
		c.CalculatePriorityTier(4, 3, 2)
		if c.PriorityTier != tt.want {
			t.Errorf("frequency %d: tier %q, want %q", tt.frequency, c.PriorityTier, tt.want)
		}
	}
}

func TestTierLabel(t *testing.T) {
	if PriorityTier1.TierLabel() != "Top Priority" {
		t.Errorf("unexpected label: %q", PriorityTier1.TierLabel())
	}
	if PriorityTier("tier_9").TierLabel() != "Unknown" {
		t.Errorf("expected Unknown for invalid tier")
	}
}
