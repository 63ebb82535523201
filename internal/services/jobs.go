package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"lpgen/internal/artifact"
	"lpgen/internal/jobs"
	"lpgen/internal/model"
)

var (
	ErrNotFound      = errors.New("job not found")
	ErrNotReady      = errors.New("job is not completed")
	ErrBundleMissing = errors.New("bundle file is missing")
)

// ValidationError reports a brief field that failed validation.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Scheduler runs a registered job's pipeline in the background.
type Scheduler interface {
	Submit(jobID string)
}

// BundleLocator resolves where a job's bundle lives.
type BundleLocator interface {
	BundlePath(jobID string) string
}

// JobService is the request-facing API over the registry: it creates,
// retries and inspects jobs and serves their bundles.
type JobService interface {
	Create(ctx context.Context, brief model.Brief) (string, error)
	Status(ctx context.Context, id string) (jobs.Job, error)
	List(ctx context.Context) []jobs.Job
	Retry(ctx context.Context, id string) (string, error)
	Download(ctx context.Context, id string) (*os.File, string, error)
	Artifact(ctx context.Context, id, name string) ([]byte, error)
}

type jobService struct {
	registry  *jobs.Registry
	store     *artifact.Store
	bundles   BundleLocator
	scheduler Scheduler
	logger    *slog.Logger
	now       func() time.Time
}

func NewJobService(reg *jobs.Registry, store *artifact.Store, bundles BundleLocator, scheduler Scheduler, logger *slog.Logger) JobService {
	return &jobService{
		registry:  reg,
		store:     store,
		bundles:   bundles,
		scheduler: scheduler,
		logger:    logger,
		now:       time.Now,
	}
}

// ValidateBrief trims every field in place and checks the required ones.
// Testimonials are optional.
func ValidateBrief(b *model.Brief) error {
	fields := []struct {
		name     string
		value    *string
		required bool
	}{
		{"serviceName", &b.ServiceName, true},
		{"serviceType", &b.ServiceType, true},
		{"targetAudience", &b.TargetAudience, true},
		{"features", &b.Features, true},
		{"testimonials", &b.Testimonials, false},
		{"companyName", &b.CompanyName, true},
	}
	for _, f := range fields {
		*f.value = strings.TrimSpace(*f.value)
		if f.required && *f.value == "" {
			return &ValidationError{Field: f.name, Message: "is required"}
		}
	}
	return nil
}

func (s *jobService) Create(ctx context.Context, brief model.Brief) (string, error) {
	if err := ValidateBrief(&brief); err != nil {
		return "", err
	}
	return s.submit(brief, "")
}

func (s *jobService) submit(brief model.Brief, retryOf string) (string, error) {
	job := jobs.NewJob(brief, retryOf, s.now())
	if err := s.registry.Add(job); err != nil {
		return "", err
	}
	if s.logger != nil {
		s.logger.Info("job_created", "job_id", job.ID, "retry_of", retryOf)
	}
	s.scheduler.Submit(job.ID)
	return job.ID, nil
}

func (s *jobService) Status(ctx context.Context, id string) (jobs.Job, error) {
	job, ok := s.registry.Get(id)
	if !ok {
		return jobs.Job{}, ErrNotFound
	}
	return job, nil
}

func (s *jobService) List(ctx context.Context) []jobs.Job {
	return s.registry.List()
}

// Retry starts a fresh job from the original job's brief. The original
// job is left untouched.
func (s *jobService) Retry(ctx context.Context, id string) (string, error) {
	orig, ok := s.registry.Get(id)
	if !ok || orig.OriginalRequest == nil {
		return "", ErrNotFound
	}
	return s.submit(*orig.OriginalRequest, orig.ID)
}

// Download opens the bundle of a completed job. The caller closes the
// file. The returned name is the filename offered to the client.
func (s *jobService) Download(ctx context.Context, id string) (*os.File, string, error) {
	job, ok := s.registry.Get(id)
	if !ok {
		return nil, "", ErrNotFound
	}
	if job.Status != jobs.StatusCompleted {
		return nil, "", ErrNotReady
	}
	f, err := os.Open(s.bundles.BundlePath(id))
	if errors.Is(err, os.ErrNotExist) {
		return nil, "", ErrBundleMissing
	}
	if err != nil {
		return nil, "", err
	}
	return f, "lp-" + id + ".zip", nil
}

// Artifact returns one generated file of a job, for previews.
func (s *jobService) Artifact(ctx context.Context, id, name string) ([]byte, error) {
	if _, ok := s.registry.Get(id); !ok {
		return nil, ErrNotFound
	}
	if err := artifact.ValidateName(name); err != nil || name == artifact.SnapshotFile || strings.HasPrefix(name, ".") {
		return nil, ErrNotFound
	}
	scope, err := s.store.Open(id)
	if err != nil {
		return nil, err
	}
	data, err := scope.Read(name)
	if errors.Is(err, artifact.ErrNotFound) {
		return nil, ErrNotFound
	}
	return data, err
}
