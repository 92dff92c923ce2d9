package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/examtrace/api/model"
	"github.com/examtrace/api/utils/cache"
)

// TTL configuration for mirrored job state
const (
	JobStateTTLSuccess = 1 * time.Hour  // completed jobs
	JobStateTTLFailure = 24 * time.Hour // failed jobs, kept longer for debugging
	JobStateTTLActive  = 24 * time.Hour // queued/running jobs
	PaperLockTTL       = 10 * time.Minute
	ClusterLockTTL     = 5 * time.Minute
)

// ProgressTracker mirrors analysis job state to Redis so status polling does
// not touch Postgres, and hands out the distributed locks that keep a paper
// (or a subject's clustering) from being analyzed twice concurrently.
// All methods tolerate a nil cache: mirroring becomes a no-op and locks are
// always granted, which keeps single-instance deployments working without
// Redis.
type ProgressTracker struct {
	cache *cache.RedisCache
}

// NewProgressTracker creates a progress tracker; redisCache may be nil
func NewProgressTracker(redisCache *cache.RedisCache) *ProgressTracker {
	return &ProgressTracker{cache: redisCache}
}

// MirrorJob writes the job's polling payload to Redis with a TTL chosen from
// its status. Mirror failures are logged, never propagated - Postgres holds
// the source of truth.
func (pt *ProgressTracker) MirrorJob(ctx context.Context, job *model.AnalysisJob) {
	if pt.cache == nil {
		return
	}

	ttl := JobStateTTLActive
	switch job.Status {
	case model.AnalysisCompleted:
		ttl = JobStateTTLSuccess
	case model.AnalysisFailed:
		ttl = JobStateTTLFailure
	}

	key := fmt.Sprintf(model.RedisKeyAnalysisJob, job.JobID)
	if err := pt.cache.SetJSON(ctx, key, job.ToStatusResponse(), ttl); err != nil {
		log.Printf("ProgressTracker: failed to mirror job %s: %v", job.JobID, err)
	}
}

// GetMirroredJob reads a job's polling payload from Redis. Returns
// (nil, nil) on a miss so callers fall through to Postgres.
func (pt *ProgressTracker) GetMirroredJob(ctx context.Context, jobID string) (*model.AnalysisJobStatusResponse, error) {
	if pt.cache == nil {
		return nil, nil
	}

	key := fmt.Sprintf(model.RedisKeyAnalysisJob, jobID)
	var resp model.AnalysisJobStatusResponse
	if err := pt.cache.GetJSON(ctx, key, &resp); err != nil {
		if errors.Is(err, cache.ErrNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading mirrored job %s: %w", jobID, err)
	}
	return &resp, nil
}

// AcquirePaperLock takes the per-paper analysis lock. Returns false when
// another analysis of the same paper is already running.
func (pt *ProgressTracker) AcquirePaperLock(ctx context.Context, paperID uint) bool {
	return pt.acquireLock(ctx, fmt.Sprintf(model.RedisKeyPaperLock, paperID), PaperLockTTL)
}

// ReleasePaperLock releases the per-paper analysis lock
func (pt *ProgressTracker) ReleasePaperLock(ctx context.Context, paperID uint) {
	pt.releaseLock(ctx, fmt.Sprintf(model.RedisKeyPaperLock, paperID))
}

// AcquireClusterLock takes the per-subject clustering lock
func (pt *ProgressTracker) AcquireClusterLock(ctx context.Context, subjectID uint) bool {
	return pt.acquireLock(ctx, fmt.Sprintf(model.RedisKeyClusterLock, subjectID), ClusterLockTTL)
}

// ReleaseClusterLock releases the per-subject clustering lock
func (pt *ProgressTracker) ReleaseClusterLock(ctx context.Context, subjectID uint) {
	pt.releaseLock(ctx, fmt.Sprintf(model.RedisKeyClusterLock, subjectID))
}

func (pt *ProgressTracker) acquireLock(ctx context.Context, key string, ttl time.Duration) bool {
	if pt.cache == nil {
		return true
	}
	ok, err := pt.cache.SetNX(ctx, key, "1", ttl)
	if err != nil {
		log.Printf("ProgressTracker: lock %s unavailable, proceeding without it: %v", key, err)
		return true
	}
	return ok
}

func (pt *ProgressTracker) releaseLock(ctx context.Context, key string) {
	if pt.cache == nil {
		return
	}
	if err := pt.cache.Delete(ctx, key); err != nil {
		log.Printf("ProgressTracker: failed to release lock %s: %v", key, err)
	}
}
