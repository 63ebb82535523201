package stages

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"lpgen/internal/artifact"
	"lpgen/internal/jobs"
	"lpgen/internal/llm"
	"lpgen/internal/pipeline"
)

var jpegRefRe = regexp.MustCompile(`placeholder_[a-z]+_\d+\.jpe?g`)

// ApplyImages asks the model to wire section background images into the
// stylesheet, then points every image reference at a file that exists.
type ApplyImages struct {
	Client llm.Client
}

func (ApplyImages) ID() string { return jobs.StepApplyImage }

func (s ApplyImages) Run(ctx context.Context, scope *artifact.Scope, in pipeline.Artifacts) (pipeline.Artifacts, error) {
	out, err := s.Client.Generate(ctx, llm.Prompt{
		Task:   llm.TaskApplyImages,
		System: applyImagesSystem,
		User:   "**HTML**:\n```html\n" + in.HTML + "\n```\n**CSS**:\n```css\n" + in.CSS + "\n```",
	})
	if err != nil {
		return in, fmt.Errorf("generate %s: %w", llm.TaskApplyImages, err)
	}

	blocks := llm.CodeBlocksByType(out)
	css := blocks["css"]
	if strings.TrimSpace(css) == "" {
		css = in.CSS
	}
	markup := blocks["html"]
	if strings.TrimSpace(markup) == "" {
		markup = in.HTML
	}

	css = ResolveImageRefs(css, in.Images)
	markup = ResolveImageRefs(markup, in.Images)

	if markup != in.HTML {
		if err := scope.WriteString(artifact.MarkupFile, markup); err != nil {
			return in, err
		}
	}
	if err := scope.WriteString(artifact.StylesheetFile, css); err != nil {
		return in, err
	}

	in.HTML = markup
	in.CSS = css
	return in, nil
}

// ResolveImageRefs rewrites .jpg/.jpeg placeholder references to the
// canonical .png image. A reference with no rendered counterpart falls
// back to the first rendered image. Text is unchanged when no images
// exist.
func ResolveImageRefs(text string, images []string) string {
	if len(images) == 0 {
		return text
	}
	have := make(map[string]struct{}, len(images))
	for _, name := range images {
		have[name] = struct{}{}
	}
	return jpegRefRe.ReplaceAllStringFunc(text, func(ref string) string {
		png := canonicalImageName(ref)
		if _, ok := have[png]; ok {
			return png
		}
		return images[0]
	})
}
