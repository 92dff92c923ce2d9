package model

import (
	"time"

	"gorm.io/gorm"
)

// PaperStatus represents the processing status of a paper
type PaperStatus string

const (
	PaperPending    PaperStatus = "pending"
	PaperProcessing PaperStatus = "processing"
	PaperCompleted  PaperStatus = "completed"
	PaperFailed     PaperStatus = "failed"
)

// Paper represents an uploaded exam question paper
type Paper struct {
	ID        uint           `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
	SubjectID uint           `gorm:"index;not null" json:"subject_id"`
	Title     string         `gorm:"type:varchar(255);not null" json:"title"`
	Year      string         `gorm:"type:varchar(50)" json:"year,omitempty"`      // e.g. "2023"
	ExamType  string         `gorm:"type:varchar(100)" json:"exam_type,omitempty"` // e.g. "End Semester"

	// File details (set when the paper is uploaded as a PDF)
	SpacesKey string `gorm:"type:varchar(512)" json:"spaces_key,omitempty"`
	FileHash  string `gorm:"type:varchar(64);index" json:"file_hash,omitempty"` // SHA-256 for dedup
	PageCount int    `gorm:"default:0" json:"page_count"`

	// Extracted text (cached) - the input to the analysis pipeline
	RawText string `gorm:"type:text" json:"-"`

	// Processing status
	Status          PaperStatus `gorm:"type:varchar(20);default:'pending'" json:"status"`
	ProcessingError string      `gorm:"type:text" json:"processing_error,omitempty"`
	ProcessedAt     *time.Time  `json:"processed_at,omitempty"`

	// Detailed progress tracking
	StatusDetail        string `gorm:"type:varchar(255)" json:"status_detail,omitempty"`
	QuestionsExtracted  int    `gorm:"default:0" json:"questions_extracted"`
	QuestionsClassified int    `gorm:"default:0" json:"questions_classified"`
	ProgressPercent     int    `gorm:"default:0" json:"progress_percent"`

	// Relationships
	Subject   Subject    `gorm:"foreignKey:SubjectID;constraint:OnDelete:CASCADE" json:"subject,omitempty"`
	Questions []Question `gorm:"foreignKey:PaperID;constraint:OnDelete:CASCADE" json:"questions,omitempty"`
}

// PaperSummary is a lightweight shape for listing papers
type PaperSummary struct {
	ID            uint        `json:"id"`
	Title         string      `json:"title"`
	Year          string      `json:"year,omitempty"`
	ExamType      string      `json:"exam_type,omitempty"`
	Status        PaperStatus `json:"status"`
	QuestionCount int         `json:"question_count"`
	CreatedAt     time.Time   `json:"created_at"`
}

// ToSummary converts a Paper to its listing shape
func (p *Paper) ToSummary() PaperSummary {
	return PaperSummary{
		ID:            p.ID,
		Title:         p.Title,
		Year:          p.Year,
		ExamType:      p.ExamType,
		Status:        p.Status,
		QuestionCount: len(p.Questions),
		CreatedAt:     p.CreatedAt,
	}
}
