package jobs

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistryGetReturnsSnapshot(t *testing.T) {
	reg := NewRegistry()
	j := NewJob(testBrief(), "", t0)
	require.NoError(t, reg.Add(j))

	got, ok := reg.Get(j.ID)
	require.True(t, ok)
	got.Steps[0].Status = StatusError

	again, _ := reg.Get(j.ID)
	assert.Equal(t, StatusPending, again.Steps[0].Status)

	_, ok = reg.Get("missing")
	assert.False(t, ok)
}

func TestRegistryRejectsDuplicates(t *testing.T) {
	reg := NewRegistry()
	j := NewJob(testBrief(), "", t0)
	require.NoError(t, reg.Add(j))
	assert.ErrorIs(t, reg.Add(j), ErrDuplicateJob)
}

func TestRegistryListNewestFirst(t *testing.T) {
	reg := NewRegistry()
	old := NewJob(testBrief(), "", t0)
	mid := NewJob(testBrief(), "", t0.Add(time.Minute))
	recent := NewJob(testBrief(), "", t0.Add(2*time.Minute))
	for _, j := range []*Job{mid, old, recent} {
		require.NoError(t, reg.Add(j))
	}

	list := reg.List()
	require.Len(t, list, 3)
	assert.Equal(t, recent.ID, list[0].ID)
	assert.Equal(t, mid.ID, list[1].ID)
	assert.Equal(t, old.ID, list[2].ID)
}

func TestRegistryUpdateIsAllOrNothing(t *testing.T) {
	reg := NewRegistry()
	j := NewJob(testBrief(), "", t0)
	require.NoError(t, reg.Add(j))

	_, err := reg.Update(j.ID, func(job *Job) error {
		job.Progress = 55
		return errors.New("boom")
	})
	require.Error(t, err)

	got, _ := reg.Get(j.ID)
	assert.Zero(t, got.Progress)

	_, err = reg.Update("missing", func(*Job) error { return nil })
	assert.ErrorIs(t, err, ErrJobNotFound)
}

func TestRegistryObserversSeeEveryTransition(t *testing.T) {
	var mu sync.Mutex
	var seen []Status
	reg := NewRegistry(func(j Job) {
		mu.Lock()
		seen = append(seen, j.Status)
		mu.Unlock()
	})

	j := NewJob(testBrief(), "", t0)
	require.NoError(t, reg.Add(j))
	_, err := reg.Update(j.ID, func(job *Job) error {
		if err := job.Start(t0); err != nil {
			return err
		}
		return job.BeginStep(0, t0)
	})
	require.NoError(t, err)
	// rejected transitions are not observed
	_, err = reg.Update(j.ID, func(job *Job) error { return job.Start(t0) })
	require.ErrorIs(t, err, ErrInvalidTransition)

	assert.Equal(t, []Status{StatusPending, StatusProcessing}, seen)
}

func TestRegistryReadsNeverSeePartialTransitions(t *testing.T) {
	reg := NewRegistry()
	j := NewJob(testBrief(), "", t0)
	require.NoError(t, reg.Add(j))
	_, err := reg.Update(j.ID, func(job *Job) error { return job.Start(t0) })
	require.NoError(t, err)

	done := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case <-done:
				return
			default:
			}
			snap, _ := reg.Get(j.ID)
			// currentStep and step statuses must always agree
			if snap.CurrentStep != "" {
				found := false
				for _, s := range snap.Steps {
					if s.ID == snap.CurrentStep {
						found = s.Status == StatusProcessing
					}
				}
				if !assert.True(t, found, "currentStep %s not processing in snapshot", snap.CurrentStep) {
					return
				}
			}
		}
	}()

	for i := range j.Steps {
		_, err := reg.Update(j.ID, func(job *Job) error {
			if i > 0 {
				if err := job.CompleteStep(i-1, t0); err != nil {
					return err
				}
			}
			return job.BeginStep(i, t0)
		})
		require.NoError(t, err)
	}
	close(done)
	wg.Wait()
}
