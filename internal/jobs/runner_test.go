package jobs

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lpgen/internal/config"
)

type blockingExecutor struct {
	release  chan struct{}
	running  atomic.Int32
	peak     atomic.Int32
	executed atomic.Int32
	canceled atomic.Int32
}

func (e *blockingExecutor) Execute(ctx context.Context, jobID string) {
	n := e.running.Add(1)
	for {
		p := e.peak.Load()
		if n <= p || e.peak.CompareAndSwap(p, n) {
			break
		}
	}
	select {
	case <-e.release:
	case <-ctx.Done():
		e.canceled.Add(1)
	}
	e.running.Add(-1)
	e.executed.Add(1)
}

func TestRunnerBoundsConcurrency(t *testing.T) {
	cfg := &config.Config{}
	cfg.Worker.MaxConcurrentJobs = 2
	exec := &blockingExecutor{release: make(chan struct{})}
	r := NewRunner(cfg, NewRegistry(), exec, nil, nil)

	for i := 0; i < 5; i++ {
		r.Submit("job")
	}
	require.Eventually(t, func() bool { return exec.running.Load() == 2 }, time.Second, 5*time.Millisecond)
	// give the remaining goroutines a chance to overrun the limit
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, int32(2), exec.peak.Load())

	close(exec.release)
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	r.Shutdown(ctx)

	assert.Equal(t, int32(5), exec.executed.Load())
	assert.Zero(t, exec.canceled.Load())
}

func TestRunnerShutdownCancelsStragglers(t *testing.T) {
	cfg := &config.Config{}
	cfg.Worker.MaxConcurrentJobs = 1
	exec := &blockingExecutor{release: make(chan struct{})}
	r := NewRunner(cfg, NewRegistry(), exec, nil, nil)

	r.Submit("a")
	r.Submit("b")
	require.Eventually(t, func() bool { return exec.running.Load() == 1 }, time.Second, 5*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	r.Shutdown(ctx)

	// both jobs were handed to the executor and saw cancellation
	assert.Equal(t, int32(2), exec.executed.Load())
	assert.Equal(t, int32(2), exec.canceled.Load())
}

func TestCleanupExpiredJobsOnlyEvictsOldTerminalJobs(t *testing.T) {
	cfg := &config.Config{}
	cfg.Retention.JobDays = 7
	reg := NewRegistry()

	finish := func(j *Job, at time.Time) {
		require.NoError(t, j.Start(at))
		require.NoError(t, j.BeginStep(0, at))
		require.NoError(t, j.Fail("boom", at))
	}

	oldDone := NewJob(testBrief(), "", t0)
	finish(oldDone, t0)
	oldPending := NewJob(testBrief(), "", t0)
	recentDone := NewJob(testBrief(), "", t0.AddDate(0, 0, 9))
	finish(recentDone, t0.AddDate(0, 0, 9))
	for _, j := range []*Job{oldDone, oldPending, recentDone} {
		require.NoError(t, reg.Add(j))
	}

	var mu sync.Mutex
	var evicted []string
	evict := func(_ context.Context, j Job) {
		mu.Lock()
		evicted = append(evicted, j.ID)
		mu.Unlock()
	}

	stats := CleanupExpiredJobs(context.Background(), cfg, reg, evict, t0.AddDate(0, 0, 10))

	assert.Equal(t, int64(1), stats.JobsDeleted)
	assert.Equal(t, []string{oldDone.ID}, evicted)
	_, ok := reg.Get(oldDone.ID)
	assert.False(t, ok)
	_, ok = reg.Get(oldPending.ID)
	assert.True(t, ok)
	_, ok = reg.Get(recentDone.ID)
	assert.True(t, ok)
}

func TestCleanupDisabledWithoutJobDays(t *testing.T) {
	reg := NewRegistry()
	j := NewJob(testBrief(), "", t0)
	require.NoError(t, reg.Add(j))

	stats := CleanupExpiredJobs(context.Background(), &config.Config{}, reg, nil, t0.AddDate(1, 0, 0))
	assert.Zero(t, stats.JobsDeleted)
	assert.Equal(t, 1, reg.Len())
}
