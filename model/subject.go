package model

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// UniversityType determines which classification path a subject's papers take.
// KTU follows a strict question-number-to-module scheme; everything else goes
// through the heuristic (keyword/AI) path.
type UniversityType string

const (
	UniversityKTU   UniversityType = "KTU"
	UniversityOther UniversityType = "OTHER"
)

// Subject represents a course subject whose papers are analyzed
type Subject struct {
	ID             uint           `gorm:"primaryKey" json:"id"`
	CreatedAt      time.Time      `json:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at"`
	DeletedAt      gorm.DeletedAt `gorm:"index" json:"-"`
	Name           string         `gorm:"type:varchar(255);not null" json:"name"`
	Code           string         `gorm:"type:varchar(50)" json:"code,omitempty"`
	UniversityType UniversityType `gorm:"type:varchar(20);default:'KTU'" json:"university_type"`
	SyllabusText   string         `gorm:"type:text" json:"syllabus_text,omitempty"`

	// Relationships
	Modules     []Module       `gorm:"foreignKey:SubjectID;constraint:OnDelete:CASCADE" json:"modules,omitempty"`
	Papers      []Paper        `gorm:"foreignKey:SubjectID;constraint:OnDelete:CASCADE" json:"papers,omitempty"`
	ExamPattern *ExamPattern   `gorm:"foreignKey:SubjectID;constraint:OnDelete:CASCADE" json:"exam_pattern,omitempty"`
	Clusters    []TopicCluster `gorm:"foreignKey:SubjectID;constraint:OnDelete:CASCADE" json:"-"`
}

// IsKTU reports whether the subject uses the strict rule-based exam format
func (s *Subject) IsKTU() bool {
	return s.UniversityType == "" || s.UniversityType == UniversityKTU
}

// Module represents a curriculum unit within a subject.
// Topics and Keywords are JSON-encoded string lists.
type Module struct {
	ID        uint           `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
	SubjectID uint           `gorm:"index;not null" json:"subject_id"`
	Number    int            `gorm:"not null" json:"number"` // 1..N
	Name      string         `gorm:"type:varchar(255);not null" json:"name"`
	Topics    datatypes.JSON `gorm:"type:jsonb" json:"topics,omitempty"`
	Keywords  datatypes.JSON `gorm:"type:jsonb" json:"keywords,omitempty"`
	Weightage float64        `gorm:"default:0" json:"weightage"` // 0..100

	Subject Subject `gorm:"foreignKey:SubjectID;constraint:OnDelete:CASCADE" json:"-"`
}

// TopicList decodes the Topics JSON column
func (m *Module) TopicList() []string {
	return decodeStringList(m.Topics)
}

// KeywordList decodes the Keywords JSON column
func (m *Module) KeywordList() []string {
	return decodeStringList(m.Keywords)
}

// SetTopics encodes the given list into the Topics column
func (m *Module) SetTopics(topics []string) {
	m.Topics = encodeStringList(topics)
}

// SetKeywords encodes the given list into the Keywords column
func (m *Module) SetKeywords(keywords []string) {
	m.Keywords = encodeStringList(keywords)
}

// ExamPattern maps (question number, part) pairs to module numbers for
// subjects following a fixed university exam format. The mapping is static
// configuration; the analysis pipeline only reads it.
type ExamPattern struct {
	ID        uint           `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
	SubjectID uint           `gorm:"uniqueIndex;not null" json:"subject_id"`
	Name      string         `gorm:"type:varchar(255)" json:"name,omitempty"`
	// Mapping is a JSON object keyed "<question_number>:<part>" -> module number,
	// e.g. {"11:B": 1, "12:B": 1, "13:B": 2}
	Mapping datatypes.JSON `gorm:"type:jsonb" json:"mapping"`

	Subject Subject `gorm:"foreignKey:SubjectID;constraint:OnDelete:CASCADE" json:"-"`
}

// PatternKey builds the mapping key for a question number and part
func PatternKey(questionNumber int, part string) string {
	return fmt.Sprintf("%d:%s", questionNumber, strings.ToUpper(part))
}

// ModuleForQuestion returns the mapped module number for a question, or 0
// when the pattern has no entry for it.
func (p *ExamPattern) ModuleForQuestion(questionNumber, part string) int {
	if len(p.Mapping) == 0 {
		return 0
	}
	var mapping map[string]int
	if err := json.Unmarshal(p.Mapping, &mapping); err != nil {
		return 0
	}
	key := fmt.Sprintf("%s:%s", strings.TrimSpace(questionNumber), strings.ToUpper(strings.TrimSpace(part)))
	return mapping[key]
}

// SetMapping encodes a mapping table into the Mapping column
func (p *ExamPattern) SetMapping(mapping map[string]int) error {
	data, err := json.Marshal(mapping)
	if err != nil {
		return err
	}
	p.Mapping = datatypes.JSON(data)
	return nil
}

// ClassificationRule is an author-defined rule that assigns questions to a
// module. The rule body is a closed expression AST (see services.RuleExpr),
// evaluated by a safe interpreter - rules are data, never code.
type ClassificationRule struct {
	ID           uint           `gorm:"primaryKey" json:"id"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
	DeletedAt    gorm.DeletedAt `gorm:"index" json:"-"`
	SubjectID    uint           `gorm:"index;not null" json:"subject_id"`
	Name         string         `gorm:"type:varchar(255);not null" json:"name"`
	ModuleNumber int            `gorm:"not null" json:"module_number"`
	IsActive     bool           `gorm:"default:true" json:"is_active"`
	Expression   datatypes.JSON `gorm:"type:jsonb;not null" json:"expression"`

	Subject Subject `gorm:"foreignKey:SubjectID;constraint:OnDelete:CASCADE" json:"-"`
}

func decodeStringList(data datatypes.JSON) []string {
	if len(data) == 0 {
		return nil
	}
	var list []string
	if err := json.Unmarshal(data, &list); err != nil {
		return nil
	}
	return list
}

func encodeStringList(list []string) datatypes.JSON {
	if list == nil {
		list = []string{}
	}
	data, _ := json.Marshal(list)
	return datatypes.JSON(data)
}
