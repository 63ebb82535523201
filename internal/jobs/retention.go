package jobs

import (
	"context"
	"time"

	"lpgen/internal/config"
	"lpgen/internal/metrics"
)

// RetentionStats captures the number of jobs evicted by TTL cleanup.
type RetentionStats struct {
	JobsDeleted int64 `json:"jobsDeleted"`
}

// CleanupExpiredJobs evicts finished jobs older than retention.jobDays so
// that a long-running process does not grow without bound. Pending and
// processing jobs are never touched.
func CleanupExpiredJobs(ctx context.Context, cfg *config.Config, reg *Registry, evict EvictFunc, now time.Time) RetentionStats {
	var stats RetentionStats
	if cfg.Retention.JobDays <= 0 {
		return stats
	}
	cutoff := now.UTC().AddDate(0, 0, -cfg.Retention.JobDays)

	for _, job := range reg.List() {
		if !job.Status.Terminal() {
			continue
		}
		finished := job.CreatedAt
		if job.FinishedAt != nil {
			finished = *job.FinishedAt
		}
		if !finished.Before(cutoff) {
			continue
		}
		if !reg.Remove(job.ID) {
			continue
		}
		if evict != nil {
			evict(ctx, job)
		}
		stats.JobsDeleted++
	}

	metrics.RecordRetentionJobs(stats.JobsDeleted)
	return stats
}
