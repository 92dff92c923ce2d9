package model

import (
	"time"

	"gorm.io/gorm"
)

// AnalysisJobStatus is the state machine over a paper analysis run.
// queued -> extracting -> classifying -> analyzing -> completed, with any
// state able to transition to failed.
type AnalysisJobStatus string

const (
	AnalysisQueued      AnalysisJobStatus = "queued"
	AnalysisExtracting  AnalysisJobStatus = "extracting"
	AnalysisClassifying AnalysisJobStatus = "classifying"
	AnalysisAnalyzing   AnalysisJobStatus = "analyzing"
	AnalysisCompleted   AnalysisJobStatus = "completed"
	AnalysisFailed      AnalysisJobStatus = "failed"
)

// IsTerminal reports whether the status is a terminal state
func (s AnalysisJobStatus) IsTerminal() bool {
	return s == AnalysisCompleted || s == AnalysisFailed
}

// AnalysisJob tracks one paper-analysis invocation. The Postgres row is the
// source of truth; the job is mirrored to Redis for cheap status polling.
type AnalysisJob struct {
	ID        uint           `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`

	JobID   string `gorm:"type:varchar(64);uniqueIndex;not null" json:"job_id"`
	PaperID uint   `gorm:"index;not null" json:"paper_id"`

	Status       AnalysisJobStatus `gorm:"type:varchar(20);default:'queued'" json:"status"`
	Progress     int               `gorm:"default:0" json:"progress"` // 0-100, monotonically non-decreasing
	StatusDetail string            `gorm:"type:varchar(255)" json:"status_detail,omitempty"`
	ErrorMessage string            `gorm:"type:text" json:"error_message,omitempty"`

	// Statistics
	QuestionsExtracted  int `gorm:"default:0" json:"questions_extracted"`
	QuestionsClassified int `gorm:"default:0" json:"questions_classified"`
	DuplicatesFound     int `gorm:"default:0" json:"duplicates_found"`

	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`

	Paper Paper `gorm:"foreignKey:PaperID;constraint:OnDelete:CASCADE" json:"-"`
}

// AnalysisJobStatusResponse is the polling payload for a job
type AnalysisJobStatusResponse struct {
	JobID               string            `json:"job_id"`
	PaperID             uint              `json:"paper_id"`
	Status              AnalysisJobStatus `json:"status"`
	Progress            int               `json:"progress"`
	StatusDetail        string            `json:"status_detail,omitempty"`
	QuestionsExtracted  int               `json:"questions_extracted"`
	QuestionsClassified int               `json:"questions_classified"`
	DuplicatesFound     int               `json:"duplicates_found"`
	ErrorMessage        string            `json:"error_message,omitempty"`
	StartedAt           *time.Time        `json:"started_at,omitempty"`
	CompletedAt         *time.Time        `json:"completed_at,omitempty"`
}

// ToStatusResponse converts the job to its polling shape. Safe to call in any
// job phase, including after failure.
func (j *AnalysisJob) ToStatusResponse() AnalysisJobStatusResponse {
	return AnalysisJobStatusResponse{
		JobID:               j.JobID,
		PaperID:             j.PaperID,
		Status:              j.Status,
		Progress:            j.Progress,
		StatusDetail:        j.StatusDetail,
		QuestionsExtracted:  j.QuestionsExtracted,
		QuestionsClassified: j.QuestionsClassified,
		DuplicatesFound:     j.DuplicatesFound,
		ErrorMessage:        j.ErrorMessage,
		StartedAt:           j.StartedAt,
		CompletedAt:         j.CompletedAt,
	}
}

// Redis key patterns for analysis jobs
const (
	// RedisKeyAnalysisJob stores the job status payload as JSON for polling.
	// Usage: fmt.Sprintf(RedisKeyAnalysisJob, jobID)
	RedisKeyAnalysisJob = "analysis:job:%s"

	// RedisKeyPaperLock guards against concurrent analysis of the same paper.
	// Usage: fmt.Sprintf(RedisKeyPaperLock, paperID)
	RedisKeyPaperLock = "analysis:lock:paper:%d"

	// RedisKeyClusterLock serializes clustering runs per subject.
	// Usage: fmt.Sprintf(RedisKeyClusterLock, subjectID)
	RedisKeyClusterLock = "analysis:lock:cluster:%d"
)
