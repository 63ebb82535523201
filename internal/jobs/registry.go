package jobs

import (
	"fmt"
	"sort"
	"sync"
)

// Observer receives a snapshot of a job after every successful
// transition. Observers run outside the registry lock.
type Observer func(Job)

// Registry is the in-memory source of truth for job state. It is created
// once at startup and handed to every component that needs it.
type Registry struct {
	mu        sync.RWMutex
	jobs      map[string]*Job
	observers []Observer
}

func NewRegistry(observers ...Observer) *Registry {
	return &Registry{
		jobs:      make(map[string]*Job),
		observers: observers,
	}
}

// Observe registers an additional observer. It must be called before
// jobs start flowing through the registry.
func (r *Registry) Observe(o Observer) {
	if o == nil {
		return
	}
	r.mu.Lock()
	r.observers = append(r.observers, o)
	r.mu.Unlock()
}

// Add registers a new job.
func (r *Registry) Add(job *Job) error {
	r.mu.Lock()
	if _, ok := r.jobs[job.ID]; ok {
		r.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrDuplicateJob, job.ID)
	}
	stored := job.Clone()
	r.jobs[job.ID] = &stored
	snap := stored.Clone()
	observers := r.observers
	r.mu.Unlock()

	r.notify(observers, snap)
	return nil
}

// Get returns a snapshot of the job.
func (r *Registry) Get(id string) (Job, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	job, ok := r.jobs[id]
	if !ok {
		return Job{}, false
	}
	return job.Clone(), true
}

// List returns snapshots of all jobs, most recently created first.
func (r *Registry) List() []Job {
	r.mu.RLock()
	out := make([]Job, 0, len(r.jobs))
	for _, job := range r.jobs {
		out = append(out, job.Clone())
	}
	r.mu.RUnlock()

	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID > out[j].ID
	})
	return out
}

// Update applies fn to a copy of the job and, only if fn succeeds, swaps
// the copy in. Readers therefore see either the whole transition or none
// of it.
func (r *Registry) Update(id string, fn func(*Job) error) (Job, error) {
	r.mu.Lock()
	job, ok := r.jobs[id]
	if !ok {
		r.mu.Unlock()
		return Job{}, fmt.Errorf("%w: %s", ErrJobNotFound, id)
	}
	next := job.Clone()
	if err := fn(&next); err != nil {
		r.mu.Unlock()
		return job.Clone(), err
	}
	r.jobs[id] = &next
	snap := next.Clone()
	observers := r.observers
	r.mu.Unlock()

	r.notify(observers, snap)
	return snap, nil
}

// Remove evicts a job. It reports whether the job existed.
func (r *Registry) Remove(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.jobs[id]; !ok {
		return false
	}
	delete(r.jobs, id)
	return true
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.jobs)
}

func (r *Registry) notify(observers []Observer, snap Job) {
	for _, o := range observers {
		o(snap.Clone())
	}
}
