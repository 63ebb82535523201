package jobs

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"lpgen/internal/config"
)

// Executor runs the whole pipeline for one registered job. It owns all
// state transitions after the job leaves pending.
type Executor interface {
	Execute(ctx context.Context, jobID string)
}

// EvictFunc releases everything a job owns outside the registry (working
// directory, bundle, mirror row) once retention drops it.
type EvictFunc func(ctx context.Context, job Job)

// Runner schedules each job's pipeline as an independent goroutine,
// bounded by worker.maxConcurrentJobs, and periodically applies the
// retention policy.
type Runner struct {
	cfg      *config.Config
	registry *Registry
	exec     Executor
	evict    EvictFunc
	logger   *slog.Logger

	sem    chan struct{}
	wg     sync.WaitGroup
	ctx    context.Context
	cancel context.CancelFunc
}

// NewRunner constructs a Runner. Jobs submitted to it run under a
// context that is only canceled by Shutdown.
func NewRunner(cfg *config.Config, reg *Registry, exec Executor, evict EvictFunc, logger *slog.Logger) *Runner {
	maxJobs := cfg.Worker.MaxConcurrentJobs
	if maxJobs <= 0 {
		maxJobs = 4
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Runner{
		cfg:      cfg,
		registry: reg,
		exec:     exec,
		evict:    evict,
		logger:   logger,
		sem:      make(chan struct{}, maxJobs),
		ctx:      ctx,
		cancel:   cancel,
	}
}

func (r *Runner) logInfo(msg string, args ...any) {
	if r.logger != nil {
		r.logger.Info(msg, args...)
	}
}

// Submit schedules a pending job. It never blocks the caller: waiting for
// a free worker slot happens in the job's own goroutine.
func (r *Runner) Submit(jobID string) {
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()

		select {
		case r.sem <- struct{}{}:
			defer func() { <-r.sem }()
		case <-r.ctx.Done():
			// Still hand the job to the executor so it terminates in
			// error instead of staying pending forever.
		}

		r.logInfo("job_dispatched", "job_id", jobID, "in_flight", len(r.sem))
		r.exec.Execute(r.ctx, jobID)
	}()
}

// InFlight returns the number of jobs currently holding a worker slot.
func (r *Runner) InFlight() int {
	return len(r.sem)
}

// Start runs the retention loop in the current goroutine until ctx is
// done. It returns immediately when retention is disabled.
func (r *Runner) Start(ctx context.Context) {
	if !r.cfg.Retention.Enabled {
		return
	}

	interval := time.Duration(r.cfg.Retention.CleanupIntervalMinutes) * time.Minute
	if interval <= 0 {
		interval = time.Hour
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		stats := CleanupExpiredJobs(ctx, r.cfg, r.registry, r.evict, time.Now())
		if stats.JobsDeleted > 0 {
			r.logInfo("retention_cleanup", "jobs_deleted", stats.JobsDeleted)
		}
	}
}

// Shutdown waits for in-flight jobs until ctx expires, then cancels them
// and waits for the executor to record their failure.
func (r *Runner) Shutdown(ctx context.Context) {
	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		r.cancel()
		return
	case <-ctx.Done():
	}

	r.logInfo("runner_cancel_inflight", "in_flight", len(r.sem))
	r.cancel()
	<-done
}
