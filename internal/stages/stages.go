// Package stages implements the five generation steps run by the pipeline
// executor: wireframe, stylesheet, script, image rendering and image
// integration.
package stages

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"lpgen/internal/artifact"
	"lpgen/internal/config"
	"lpgen/internal/jobs"
	"lpgen/internal/llm"
	"lpgen/internal/pipeline"
)

// Default returns the pipeline's stages in their fixed order.
func Default(cfg *config.Config, client llm.Client) []pipeline.Stage {
	return []pipeline.Stage{
		Wireframe{Client: client},
		Stylesheet{Client: client},
		Script{Client: client},
		&Images{Client: client, Renderer: PlaceholderRenderer{}, Concurrency: cfg.Images.Concurrency},
		ApplyImages{Client: client},
	}
}

var errEmptyOutput = errors.New("model returned no code")

func generateCode(ctx context.Context, c llm.Client, p llm.Prompt, langs ...string) (string, error) {
	out, err := c.Generate(ctx, p)
	if err != nil {
		return "", fmt.Errorf("generate %s: %w", p.Task, err)
	}
	code := llm.ExtractCode(out, langs...)
	if strings.TrimSpace(code) == "" {
		return "", fmt.Errorf("generate %s: %w", p.Task, errEmptyOutput)
	}
	return code, nil
}

// Wireframe turns the brief into the page's HTML structure.
type Wireframe struct {
	Client llm.Client
}

func (Wireframe) ID() string { return jobs.StepWireframe }

func (s Wireframe) Run(ctx context.Context, scope *artifact.Scope, in pipeline.Artifacts) (pipeline.Artifacts, error) {
	markup, err := generateCode(ctx, s.Client, llm.Prompt{
		Task:   llm.TaskWireframe,
		System: wireframeSystem,
		User:   in.Brief.Outline(),
	}, "html")
	if err != nil {
		return in, err
	}
	if err := scope.WriteString(artifact.MarkupFile, markup); err != nil {
		return in, err
	}
	in.HTML = markup
	return in, nil
}

// Stylesheet styles the wireframe.
type Stylesheet struct {
	Client llm.Client
}

func (Stylesheet) ID() string { return jobs.StepCSS }

func (s Stylesheet) Run(ctx context.Context, scope *artifact.Scope, in pipeline.Artifacts) (pipeline.Artifacts, error) {
	if in.HTML == "" {
		return in, errors.New("no markup to style")
	}
	css, err := generateCode(ctx, s.Client, llm.Prompt{
		Task:   llm.TaskStylesheet,
		System: stylesheetSystem,
		User:   in.HTML,
	}, "css")
	if err != nil {
		return in, err
	}
	if err := scope.WriteString(artifact.StylesheetFile, css); err != nil {
		return in, err
	}
	in.CSS = css
	return in, nil
}

// Script adds interactive behaviour.
type Script struct {
	Client llm.Client
}

func (Script) ID() string { return jobs.StepJS }

func (s Script) Run(ctx context.Context, scope *artifact.Scope, in pipeline.Artifacts) (pipeline.Artifacts, error) {
	js, err := generateCode(ctx, s.Client, llm.Prompt{
		Task:   llm.TaskScript,
		System: scriptSystem,
		User:   "**HTML**:\n" + in.HTML + "\n\n**CSS**:\n" + in.CSS,
	}, "javascript", "js")
	if err != nil {
		return in, err
	}
	if err := scope.WriteString(artifact.ScriptFile, js); err != nil {
		return in, err
	}
	in.JS = js
	return in, nil
}
