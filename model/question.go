package model

import (
	"encoding/json"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Difficulty levels for a question
const (
	DifficultyEasy   = "easy"
	DifficultyMedium = "medium"
	DifficultyHard   = "hard"
)

// Bloom's Taxonomy cognitive levels, in ascending order of demand
const (
	BloomRemember   = "remember"
	BloomUnderstand = "understand"
	BloomApply      = "apply"
	BloomAnalyze    = "analyze"
	BloomEvaluate   = "evaluate"
	BloomCreate     = "create"
)

// Question represents a single extracted and classified exam question
type Question struct {
	ID        uint           `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
	PaperID   uint           `gorm:"index;not null" json:"paper_id"`

	QuestionNumber string `gorm:"type:varchar(20);not null" json:"question_number"` // e.g. "1", "11", "12"
	Text           string `gorm:"type:text;not null" json:"text"`
	Marks          int    `gorm:"default:0" json:"marks"`
	Part           string `gorm:"type:varchar(5)" json:"part,omitempty"` // "A", "B" or ""

	// Classification results
	ModuleID     *uint  `gorm:"index" json:"module_id,omitempty"`
	QuestionType string `gorm:"type:varchar(50)" json:"question_type,omitempty"` // definition, derivation, numerical, diagram, comparison, theory
	Difficulty   string `gorm:"type:varchar(20)" json:"difficulty,omitempty"`
	BloomLevel   string `gorm:"type:varchar(20)" json:"bloom_level,omitempty"`

	// Semantic analysis
	Embedding   datatypes.JSON `gorm:"type:jsonb" json:"-"` // JSON-encoded []float32, null when no backend
	IsDuplicate bool           `gorm:"default:false" json:"is_duplicate"`
	DuplicateOf *uint          `json:"duplicate_of,omitempty"`

	// Pass-through images from the PDF extraction collaborator (not interpreted)
	Images datatypes.JSON `gorm:"type:jsonb" json:"images,omitempty"`

	// Clustering
	TopicClusterID *uint `gorm:"index" json:"topic_cluster_id,omitempty"`

	// Relationships
	Paper  Paper   `gorm:"foreignKey:PaperID;constraint:OnDelete:CASCADE" json:"-"`
	Module *Module `gorm:"foreignKey:ModuleID;constraint:OnDelete:SET NULL" json:"module,omitempty"`
}

// EmbeddingVector decodes the stored embedding, or nil when absent
func (q *Question) EmbeddingVector() []float32 {
	if len(q.Embedding) == 0 {
		return nil
	}
	var vec []float32
	if err := json.Unmarshal(q.Embedding, &vec); err != nil {
		return nil
	}
	return vec
}

// SetEmbedding stores the given vector; a nil vector clears the column
func (q *Question) SetEmbedding(vec []float32) {
	if vec == nil {
		q.Embedding = nil
		return
	}
	data, _ := json.Marshal(vec)
	q.Embedding = datatypes.JSON(data)
}
