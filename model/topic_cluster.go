package model

import (
	"encoding/json"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// PriorityTier ranks a topic by how many distinct exam sittings it appeared in
type PriorityTier string

const (
	PriorityTier1 PriorityTier = "tier_1" // Top priority (4+ exams)
	PriorityTier2 PriorityTier = "tier_2" // High priority (3 exams)
	PriorityTier3 PriorityTier = "tier_3" // Medium priority (2 exams)
	PriorityTier4 PriorityTier = "tier_4" // Low priority (1 exam)
)

// TierLabel returns a human-readable label for the tier
func (t PriorityTier) TierLabel() string {
	switch t {
	case PriorityTier1:
		return "Top Priority"
	case PriorityTier2:
		return "High Priority"
	case PriorityTier3:
		return "Medium Priority"
	case PriorityTier4:
		return "Low Priority"
	}
	return "Unknown"
}

// TopicCluster groups semantically similar questions across papers into one
// recurring exam topic. Clusters are rebuilt wholesale per subject on each
// clustering run.
type TopicCluster struct {
	ID        uint           `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
	SubjectID uint           `gorm:"index;not null" json:"subject_id"`
	ModuleID  *uint          `gorm:"index" json:"module_id,omitempty"` // nil for unclassified questions

	TopicName          string `gorm:"type:varchar(500);not null" json:"topic_name"`
	NormalizedKey      string `gorm:"type:varchar(500);index" json:"normalized_key"`
	RepresentativeText string `gorm:"type:text" json:"representative_text"`

	// Repetition statistics. FrequencyCount is the number of distinct exam
	// years the topic appeared in, not the raw question count.
	FrequencyCount int            `gorm:"default:0" json:"frequency_count"`
	YearsAppeared  datatypes.JSON `gorm:"type:jsonb" json:"years_appeared"`
	TotalMarks     int            `gorm:"default:0" json:"total_marks"`
	QuestionCount  int            `gorm:"default:0" json:"question_count"`

	PriorityTier PriorityTier `gorm:"type:varchar(10);default:'tier_4'" json:"priority_tier"`

	// Part distribution
	PartACount int `gorm:"default:0" json:"part_a_count"`
	PartBCount int `gorm:"default:0" json:"part_b_count"`

	// Relationships
	Subject   Subject    `gorm:"foreignKey:SubjectID;constraint:OnDelete:CASCADE" json:"-"`
	Module    *Module    `gorm:"foreignKey:ModuleID;constraint:OnDelete:CASCADE" json:"module,omitempty"`
	Questions []Question `gorm:"foreignKey:TopicClusterID;constraint:OnDelete:SET NULL" json:"questions,omitempty"`
}

// YearList decodes the YearsAppeared JSON column
func (c *TopicCluster) YearList() []string {
	if len(c.YearsAppeared) == 0 {
		return nil
	}
	var years []string
	if err := json.Unmarshal(c.YearsAppeared, &years); err != nil {
		return nil
	}
	return years
}

// SetYears stores the sorted year list and keeps FrequencyCount consistent
func (c *TopicCluster) SetYears(years []string) {
	if years == nil {
		years = []string{}
	}
	data, _ := json.Marshal(years)
	c.YearsAppeared = datatypes.JSON(data)
	c.FrequencyCount = len(years)
}

// CalculatePriorityTier sets the tier from FrequencyCount against the given
// thresholds. Tier is a pure function of frequency.
func (c *TopicCluster) CalculatePriorityTier(tier1, tier2, tier3 int) {
	switch {
	case c.FrequencyCount >= tier1:
		c.PriorityTier = PriorityTier1
	case c.FrequencyCount >= tier2:
		c.PriorityTier = PriorityTier2
	case c.FrequencyCount >= tier3:
		c.PriorityTier = PriorityTier3
	default:
		c.PriorityTier = PriorityTier4
	}
}
