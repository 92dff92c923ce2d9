package analysis

import (
	"errors"
	"strconv"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"github.com/examtrace/api/database"
	"github.com/examtrace/api/model"
	"github.com/examtrace/api/services"
	"github.com/examtrace/api/utils/response"
)

// AnalysisHandler exposes the analysis pipeline: starting paper analysis,
// polling job status, clustering, and the priority report.
type AnalysisHandler struct {
	db       *gorm.DB
	analysis *services.AnalysisService
	reports  *database.PostgreSQLStore
}

// NewAnalysisHandler creates a new analysis handler
func NewAnalysisHandler(db *gorm.DB, analysis *services.AnalysisService, reports *database.PostgreSQLStore) *AnalysisHandler {
	return &AnalysisHandler{
		db:       db,
		analysis: analysis,
		reports:  reports,
	}
}

// AnalyzePaper handles POST /api/v1/papers/:id/analyze. The pipeline runs in
// the background; the response carries the job ID to poll.
func (h *AnalysisHandler) AnalyzePaper(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return response.BadRequest(c, "Invalid paper ID")
	}

	job, err := h.analysis.StartAnalysisAsync(c.Context(), id)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrPaperBusy):
			return response.Conflict(c, "Analysis already in progress for this paper")
		case errors.Is(err, services.ErrNoText):
			return response.BadRequest(c, "Paper has no extracted text to analyze")
		case errors.Is(err, gorm.ErrRecordNotFound):
			return response.NotFound(c, "Paper not found")
		default:
			return response.InternalServerError(c, "Failed to start analysis")
		}
	}

	return response.Accepted(c, "Analysis started", fiber.Map{
		"job_id":   job.JobID,
		"paper_id": job.PaperID,
		"status":   job.Status,
	})
}

// GetJobStatus handles GET /api/v1/analysis-jobs/:job_id
func (h *AnalysisHandler) GetJobStatus(c *fiber.Ctx) error {
	jobID := c.Params("job_id")
	if jobID == "" {
		return response.BadRequest(c, "Invalid job ID")
	}

	status, err := h.analysis.GetJobStatus(c.Context(), jobID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return response.NotFound(c, "Analysis job not found")
		}
		return response.InternalServerError(c, "Failed to fetch job status")
	}
	return response.Success(c, status)
}

// ResetPaper handles POST /api/v1/papers/:id/reset. Wipes the paper's
// questions and starts a fresh analysis.
func (h *AnalysisHandler) ResetPaper(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return response.BadRequest(c, "Invalid paper ID")
	}

	job, err := h.analysis.ResetAndReanalyze(c.Context(), id)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrPaperBusy):
			return response.Conflict(c, "Analysis already in progress for this paper")
		case errors.Is(err, services.ErrNoText):
			return response.BadRequest(c, "Paper has no extracted text to analyze")
		case errors.Is(err, gorm.ErrRecordNotFound):
			return response.NotFound(c, "Paper not found")
		default:
			return response.InternalServerError(c, "Failed to reset paper")
		}
	}

	return response.Accepted(c, "Re-analysis started", fiber.Map{
		"job_id":   job.JobID,
		"paper_id": job.PaperID,
		"status":   job.Status,
	})
}

// ResetSubject handles POST /api/v1/subjects/:id/reset. Deletes every
// question and cluster of the subject and returns its papers to pending.
func (h *AnalysisHandler) ResetSubject(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return response.BadRequest(c, "Invalid subject ID")
	}

	if err := h.analysis.ResetSubject(c.Context(), id); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return response.NotFound(c, "Subject not found")
		}
		return response.InternalServerError(c, "Failed to reset subject")
	}
	return response.SuccessWithMessage(c, "Subject reset", fiber.Map{"subject_id": id})
}

// ClusterSubject handles POST /api/v1/subjects/:id/cluster. Rebuilds the
// subject's topic clusters synchronously.
func (h *AnalysisHandler) ClusterSubject(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return response.BadRequest(c, "Invalid subject ID")
	}

	var subject model.Subject
	if err := h.db.First(&subject, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return response.NotFound(c, "Subject not found")
		}
		return response.InternalServerError(c, "Failed to fetch subject")
	}

	count, err := h.analysis.TriggerClustering(c.Context(), id)
	if err != nil {
		if errors.Is(err, services.ErrClusteringBusy) {
			return response.Conflict(c, "Clustering already in progress for this subject")
		}
		return response.InternalServerError(c, "Clustering failed")
	}

	return response.SuccessWithMessage(c, "Clustering complete", fiber.Map{
		"subject_id":    id,
		"cluster_count": count,
	})
}

// ListClusters handles GET /api/v1/subjects/:id/clusters
func (h *AnalysisHandler) ListClusters(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return response.BadRequest(c, "Invalid subject ID")
	}

	var clusters []model.TopicCluster
	err = h.db.Preload("Module").
		Where("subject_id = ?", id).
		Order("priority_tier ASC, frequency_count DESC, total_marks DESC").
		Find(&clusters).Error
	if err != nil {
		return response.InternalServerError(c, "Failed to fetch clusters")
	}

	return response.Success(c, fiber.Map{
		"clusters": clusters,
		"total":    len(clusters),
	})
}

// GetPriorityReport handles GET /api/v1/subjects/:id/priority-report via the
// raw reporting store.
func (h *AnalysisHandler) GetPriorityReport(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return response.BadRequest(c, "Invalid subject ID")
	}

	var subject model.Subject
	if err := h.db.First(&subject, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return response.NotFound(c, "Subject not found")
		}
		return response.InternalServerError(c, "Failed to fetch subject")
	}

	report, err := h.reports.PriorityReport(c.Context(), id)
	if err != nil {
		return response.InternalServerError(c, "Failed to build priority report")
	}
	return response.Success(c, report)
}

func parseID(c *fiber.Ctx, param string) (uint, error) {
	id, err := strconv.ParseUint(c.Params(param), 10, 32)
	if err != nil {
		return 0, err
	}
	return uint(id), nil
}
