package pipeline

import (
	"context"
	"fmt"

	"lpgen/internal/artifact"
	"lpgen/internal/model"
)

// Artifacts is what the stages produced so far for one job. Each stage
// receives the accumulated value and returns it with its own outputs
// filled in; the files themselves live in the job's artifact scope.
type Artifacts struct {
	Brief  model.Brief
	HTML   string
	CSS    string
	JS     string
	Images []string
}

// Stage is one step of the generation pipeline.
type Stage interface {
	ID() string
	Run(ctx context.Context, scope *artifact.Scope, in Artifacts) (Artifacts, error)
}

// StageError reports which stage failed and why.
type StageError struct {
	Stage string
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("stage %s failed: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }
