package pipeline

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	md "github.com/JohannesKaufmann/html-to-markdown"

	"lpgen/internal/artifact"
	"lpgen/internal/config"
	"lpgen/internal/jobs"
	"lpgen/internal/metrics"
	"lpgen/internal/model"
	"lpgen/internal/packager"
)

// Bundler packages a finished job's artifacts.
type Bundler interface {
	Package(ctx context.Context, scope *artifact.Scope) (packager.Bundle, error)
}

// Executor drives one job through every stage in order, publishing each
// transition to the registry. It implements jobs.Executor.
type Executor struct {
	registry     *jobs.Registry
	store        *artifact.Store
	stages       []Stage
	bundler      Bundler
	stageTimeout time.Duration
	logger       *slog.Logger
	now          func() time.Time
}

func NewExecutor(cfg *config.Config, reg *jobs.Registry, store *artifact.Store, stages []Stage, bundler Bundler, logger *slog.Logger) *Executor {
	return &Executor{
		registry:     reg,
		store:        store,
		stages:       stages,
		bundler:      bundler,
		stageTimeout: time.Duration(cfg.Worker.StageTimeoutMs) * time.Millisecond,
		logger:       logger,
		now:          time.Now,
	}
}

func (e *Executor) logInfo(msg string, args ...any) {
	if e.logger != nil {
		e.logger.Info(msg, args...)
	}
}

func (e *Executor) logError(msg string, args ...any) {
	if e.logger != nil {
		e.logger.Error(msg, args...)
	}
}

// Execute runs the pipeline for jobID. Failures are recorded on the job,
// never returned: nothing here affects other jobs.
func (e *Executor) Execute(ctx context.Context, jobID string) {
	if len(e.stages) == 0 {
		e.logError("job_no_stages", "job_id", jobID)
		return
	}

	job, err := e.registry.Update(jobID, func(j *jobs.Job) error {
		if err := j.Start(e.now()); err != nil {
			return err
		}
		return j.BeginStep(0, e.now())
	})
	if err != nil {
		e.logError("job_start_failed", "job_id", jobID, "error", err)
		return
	}
	e.logInfo("job_started", "job_id", jobID)

	scope, err := e.store.Open(jobID)
	if err != nil {
		e.fail(jobID, &StageError{Stage: e.stages[0].ID(), Err: err})
		return
	}

	in := Artifacts{}
	if job.OriginalRequest != nil {
		in.Brief = *job.OriginalRequest
	}

	for i, st := range e.stages {
		if i > 0 {
			if _, err := e.registry.Update(jobID, func(j *jobs.Job) error {
				if err := j.CompleteStep(i-1, e.now()); err != nil {
					return err
				}
				return j.BeginStep(i, e.now())
			}); err != nil {
				e.logError("job_transition_failed", "job_id", jobID, "stage", st.ID(), "error", err)
				return
			}
		}

		if err := ctx.Err(); err != nil {
			e.fail(jobID, &StageError{Stage: st.ID(), Err: err})
			return
		}

		start := time.Now()
		out, err := e.runStage(ctx, st, scope, in)
		elapsed := time.Since(start).Milliseconds()
		if err != nil {
			metrics.RecordStage(st.ID(), string(jobs.StatusError), elapsed)
			e.fail(jobID, &StageError{Stage: st.ID(), Err: err})
			return
		}
		metrics.RecordStage(st.ID(), string(jobs.StatusCompleted), elapsed)
		e.logInfo("stage_completed", "job_id", jobID, "stage", st.ID(), "duration_ms", elapsed)
		in = out
	}

	last := len(e.stages) - 1
	result, err := e.assemble(ctx, scope)
	if err != nil {
		e.fail(jobID, &StageError{Stage: e.stages[last].ID(), Err: err})
		return
	}

	if _, err := e.registry.Update(jobID, func(j *jobs.Job) error {
		if err := j.CompleteStep(last, e.now()); err != nil {
			return err
		}
		return j.Complete(result, e.now())
	}); err != nil {
		e.logError("job_transition_failed", "job_id", jobID, "error", err)
		return
	}
	metrics.RecordJob(string(jobs.StatusCompleted))
	e.logInfo("job_completed", "job_id", jobID, "bundle", result.Bundle)
}

func (e *Executor) runStage(ctx context.Context, st Stage, scope *artifact.Scope, in Artifacts) (out Artifacts, err error) {
	if e.stageTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.stageTimeout)
		defer cancel()
	}
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return st.Run(ctx, scope, in)
}

func (e *Executor) fail(jobID string, stageErr *StageError) {
	msg := stageErr.Error()
	if _, err := e.registry.Update(jobID, func(j *jobs.Job) error {
		return j.Fail(msg, e.now())
	}); err != nil {
		e.logError("job_transition_failed", "job_id", jobID, "error", err)
		return
	}
	metrics.RecordJob(string(jobs.StatusError))
	e.logError("job_failed", "job_id", jobID, "stage", stageErr.Stage, "error", stageErr.Err)
}

// assemble reads the final artifacts into a Result and packages the
// bundle.
func (e *Executor) assemble(ctx context.Context, scope *artifact.Scope) (model.Result, error) {
	var (
		res model.Result
		err error
	)
	res.JobID = scope.JobID()
	if res.HTML, err = scope.ReadString(artifact.MarkupFile); err != nil {
		return res, err
	}
	if res.CSS, err = scope.ReadString(artifact.StylesheetFile); err != nil {
		return res, err
	}
	if res.JS, err = scope.ReadString(artifact.ScriptFile); err != nil {
		return res, err
	}
	if res.Images, err = scope.List(artifact.ImagePattern); err != nil {
		return res, err
	}

	if preview := PreviewImage(res.Images); preview != "" {
		data, err := scope.Read(preview)
		if err != nil {
			return res, err
		}
		res.ImageBase64 = "data:image/png;base64," + base64.StdEncoding.EncodeToString(data)
	}

	converter := md.NewConverter("", true, nil)
	if outline, err := converter.ConvertString(res.HTML); err == nil {
		res.Outline = strings.TrimSpace(outline)
	} else {
		e.logInfo("outline_failed", "job_id", res.JobID, "error", err)
	}

	if e.bundler == nil {
		return res, errors.New("no bundler configured")
	}
	bundle, err := e.bundler.Package(ctx, scope)
	if err != nil {
		return res, err
	}
	res.Bundle = filepath.Base(bundle.Path)
	res.BundleSHA256 = bundle.SHA256
	res.CreatedAt = e.now().UTC()
	return res, nil
}

// PreviewImage picks the image shown in the result: the first section
// background, else the first page image, else any image.
func PreviewImage(images []string) string {
	for _, prefix := range []string{"placeholder_css_", "placeholder_html_"} {
		for _, name := range images {
			if strings.HasPrefix(name, prefix) {
				return name
			}
		}
	}
	if len(images) > 0 {
		return images[0]
	}
	return ""
}
