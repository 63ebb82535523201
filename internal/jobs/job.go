package jobs

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"lpgen/internal/model"
)

var (
	ErrInvalidTransition = errors.New("invalid job transition")
	ErrJobNotFound       = errors.New("job not found")
	ErrDuplicateJob      = errors.New("job already registered")
)

// Step ids, in pipeline order.
const (
	StepWireframe  = "wireframe"
	StepCSS        = "css"
	StepJS         = "js"
	StepImage      = "image"
	StepApplyImage = "apply-image"
)

// Step is the record of one pipeline stage within a job.
type Step struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	Description string  `json:"description"`
	Status      Status  `json:"status"`
	Progress    float64 `json:"progress"`
}

type stepDef struct {
	id, name, description string
	// progress is the overall job progress published when the step starts.
	progress float64
}

var stepDefs = []stepDef{
	{StepWireframe, "Wireframe", "Generate the HTML structure", 10},
	{StepCSS, "Styling", "Generate the CSS stylesheet", 30},
	{StepJS, "Interactivity", "Implement JavaScript behavior", 50},
	{StepImage, "Image generation", "Generate images for the page", 70},
	{StepApplyImage, "Image integration", "Apply the generated images", 90},
}

// StepIDs returns the fixed step order.
func StepIDs() []string {
	ids := make([]string, len(stepDefs))
	for i, d := range stepDefs {
		ids[i] = d.id
	}
	return ids
}

// StartProgress is the overall progress published when step i starts.
func StartProgress(i int) float64 {
	if i < 0 || i >= len(stepDefs) {
		return 0
	}
	return stepDefs[i].progress
}

func newSteps() []Step {
	steps := make([]Step, len(stepDefs))
	for i, d := range stepDefs {
		steps[i] = Step{ID: d.id, Name: d.name, Description: d.description, Status: StatusPending}
	}
	return steps
}

// Job is one end-to-end run of the generation pipeline for a brief. All
// mutation goes through the transition methods below, which refuse moves
// the state machine does not allow.
type Job struct {
	ID              string        `json:"jobId"`
	Status          Status        `json:"status"`
	Progress        float64       `json:"progress"`
	CurrentStep     string        `json:"currentStep"`
	Steps           []Step        `json:"steps"`
	Error           string        `json:"error,omitempty"`
	Result          *model.Result `json:"result,omitempty"`
	CreatedAt       time.Time     `json:"createdAt"`
	UpdatedAt       time.Time     `json:"updatedAt"`
	StartedAt       *time.Time    `json:"startedAt,omitempty"`
	FinishedAt      *time.Time    `json:"finishedAt,omitempty"`
	OriginalRequest *model.Brief  `json:"originalRequest,omitempty"`
	RetryOf         string        `json:"retryOf,omitempty"`
}

// NewJob builds a pending job for brief with a fresh uuidv7 id (v4 when
// v7 generation fails).
func NewJob(brief model.Brief, retryOf string, now time.Time) *Job {
	id, err := uuid.NewV7()
	if err != nil {
		id = uuid.New()
	}
	b := brief
	return &Job{
		ID:              id.String(),
		Status:          StatusPending,
		Steps:           newSteps(),
		CreatedAt:       now.UTC(),
		UpdatedAt:       now.UTC(),
		OriginalRequest: &b,
		RetryOf:         retryOf,
	}
}

func (j *Job) transitionErr(format string, args ...any) error {
	return fmt.Errorf("%w: job %s: %s", ErrInvalidTransition, j.ID, fmt.Sprintf(format, args...))
}

// Start moves a pending job to processing.
func (j *Job) Start(now time.Time) error {
	if j.Status != StatusPending {
		return j.transitionErr("start from %s", j.Status)
	}
	t := now.UTC()
	j.Status = StatusProcessing
	j.StartedAt = &t
	j.UpdatedAt = t
	return nil
}

// BeginStep marks step i processing. Every earlier step must already be
// completed and no other step may be in flight.
func (j *Job) BeginStep(i int, now time.Time) error {
	if j.Status != StatusProcessing {
		return j.transitionErr("begin step while %s", j.Status)
	}
	if i < 0 || i >= len(j.Steps) {
		return j.transitionErr("step index %d out of range", i)
	}
	for k := range j.Steps {
		switch {
		case k < i && j.Steps[k].Status != StatusCompleted:
			return j.transitionErr("step %s before %s is %s", j.Steps[k].ID, j.Steps[i].ID, j.Steps[k].Status)
		case k >= i && j.Steps[k].Status != StatusPending:
			return j.transitionErr("step %s is %s", j.Steps[k].ID, j.Steps[k].Status)
		}
	}
	j.Steps[i].Status = StatusProcessing
	j.CurrentStep = j.Steps[i].ID
	if p := StartProgress(i); p > j.Progress {
		j.Progress = p
	}
	j.UpdatedAt = now.UTC()
	return nil
}

// CompleteStep marks the in-flight step i completed.
func (j *Job) CompleteStep(i int, now time.Time) error {
	if j.Status != StatusProcessing {
		return j.transitionErr("complete step while %s", j.Status)
	}
	if i < 0 || i >= len(j.Steps) {
		return j.transitionErr("step index %d out of range", i)
	}
	if j.Steps[i].Status != StatusProcessing {
		return j.transitionErr("complete step %s from %s", j.Steps[i].ID, j.Steps[i].Status)
	}
	j.Steps[i].Status = StatusCompleted
	j.Steps[i].Progress = 100
	j.CurrentStep = ""
	j.UpdatedAt = now.UTC()
	return nil
}

// Complete finishes a job whose steps have all completed and attaches the
// result.
func (j *Job) Complete(result model.Result, now time.Time) error {
	if j.Status != StatusProcessing {
		return j.transitionErr("complete from %s", j.Status)
	}
	for _, s := range j.Steps {
		if s.Status != StatusCompleted {
			return j.transitionErr("complete with step %s %s", s.ID, s.Status)
		}
	}
	t := now.UTC()
	r := result
	j.Status = StatusCompleted
	j.Progress = 100
	j.CurrentStep = ""
	j.Result = &r
	j.Error = ""
	j.FinishedAt = &t
	j.UpdatedAt = t
	return nil
}

// Fail terminates a processing job. Any step still in flight is marked
// error; later steps stay pending. Progress keeps its last value.
func (j *Job) Fail(msg string, now time.Time) error {
	if j.Status != StatusProcessing {
		return j.transitionErr("fail from %s", j.Status)
	}
	inFlight := false
	for k := range j.Steps {
		if j.Steps[k].Status == StatusProcessing {
			j.Steps[k].Status = StatusError
			inFlight = true
		}
	}
	if !inFlight {
		return j.transitionErr("fail with no step in flight")
	}
	if msg == "" {
		msg = "unknown error"
	}
	t := now.UTC()
	j.Status = StatusError
	j.Error = msg
	j.Result = nil
	j.CurrentStep = ""
	j.FinishedAt = &t
	j.UpdatedAt = t
	return nil
}

// FailedStep returns the id of the step the job stopped at, if any.
func (j *Job) FailedStep() string {
	for _, s := range j.Steps {
		if s.Status == StatusError {
			return s.ID
		}
	}
	return ""
}

// Clone returns a deep copy safe to hand out of the registry.
func (j *Job) Clone() Job {
	out := *j
	out.Steps = append([]Step(nil), j.Steps...)
	if j.Result != nil {
		r := *j.Result
		r.Images = append([]string(nil), j.Result.Images...)
		out.Result = &r
	}
	if j.OriginalRequest != nil {
		b := *j.OriginalRequest
		out.OriginalRequest = &b
	}
	if j.StartedAt != nil {
		t := *j.StartedAt
		out.StartedAt = &t
	}
	if j.FinishedAt != nil {
		t := *j.FinishedAt
		out.FinishedAt = &t
	}
	return out
}
