package cron

import (
	"fmt"
	"log"
	"time"

	"github.com/examtrace/api/model"
)

// Jobs older than this in a non-terminal state are considered orphaned.
// Generous compared to the pipeline's own 10-minute timeout so a slow but
// live run is never clobbered.
const staleJobAge = 30 * time.Minute

// Finished job rows and cron logs are kept this long for debugging
const jobRetention = 7 * 24 * time.Hour

// RecoverStaleJobs fails analysis jobs whose worker died mid-run (process
// restart, crash). The paper is reset to failed as well so the UI stops
// showing a perpetual spinner and the user can retry.
func (m *CronManager) RecoverStaleJobs() {
	jobName := "recover_stale_jobs"
	cutoff := time.Now().Add(-staleJobAge)

	var stale []model.AnalysisJob
	err := m.db.
		Where("status NOT IN ? AND updated_at < ?",
			[]string{string(model.AnalysisCompleted), string(model.AnalysisFailed)}, cutoff).
		Find(&stale).Error
	if err != nil {
		m.logJobError(jobName, fmt.Errorf("failed to query stale jobs: %w", err))
		return
	}

	if len(stale) == 0 {
		m.logJobComplete(jobName, "No stale jobs")
		return
	}

	recovered := 0
	for i := range stale {
		job := &stale[i]
		now := time.Now()
		err := m.db.Model(job).Updates(map[string]interface{}{
			"status":        model.AnalysisFailed,
			"error_message": "analysis interrupted, no progress for 30 minutes",
			"status_detail": "Analysis interrupted",
			"completed_at":  now,
		}).Error
		if err != nil {
			log.Printf("[CRON] Failed to mark job %s stale: %v", job.JobID, err)
			continue
		}

		err = m.db.Model(&model.Paper{}).
			Where("id = ? AND status = ?", job.PaperID, model.PaperProcessing).
			Updates(map[string]interface{}{
				"status":           model.PaperFailed,
				"processing_error": "analysis interrupted",
				"status_detail":    "Analysis interrupted",
			}).Error
		if err != nil {
			log.Printf("[CRON] Failed to reset paper %d: %v", job.PaperID, err)
		}
		recovered++
	}

	m.logJobComplete(jobName, fmt.Sprintf("Recovered %d of %d stale jobs", recovered, len(stale)))
}

// CleanupOldJobs prunes finished analysis jobs and cron logs past retention
func (m *CronManager) CleanupOldJobs() {
	jobName := "cleanup_old_jobs"
	cutoff := time.Now().Add(-jobRetention)

	jobs := m.db.Unscoped().
		Where("status IN ? AND updated_at < ?",
			[]string{string(model.AnalysisCompleted), string(model.AnalysisFailed)}, cutoff).
		Delete(&model.AnalysisJob{})
	if jobs.Error != nil {
		m.logJobError(jobName, fmt.Errorf("failed to delete old jobs: %w", jobs.Error))
		return
	}

	logs := m.db.Unscoped().
		Where("started_at < ?", cutoff).
		Delete(&model.CronJobLog{})
	if logs.Error != nil {
		m.logJobError(jobName, fmt.Errorf("failed to delete old cron logs: %w", logs.Error))
		return
	}

	m.logJobComplete(jobName, fmt.Sprintf("Deleted %d jobs, %d cron logs", jobs.RowsAffected, logs.RowsAffected))
}
