package stages

import (
	"bytes"
	"context"
	"fmt"
	"hash/fnv"
	"image"
	"image/color"
	"image/png"
	"path"
	"regexp"
	"sort"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/sync/errgroup"

	"lpgen/internal/artifact"
	"lpgen/internal/jobs"
	"lpgen/internal/llm"
	"lpgen/internal/pipeline"
)

const defaultImagePrompt = "A clean, modern photograph suited to a landing page section, no text"

var placeholderNameRe = regexp.MustCompile(`placeholder_[a-z]+_\d+\.(?:png|jpe?g)`)

// ImageRenderer produces the bytes of one generated image.
type ImageRenderer interface {
	Render(ctx context.Context, name, prompt string) ([]byte, error)
}

// Images finds every image placeholder the markup and stylesheet refer to,
// asks the model for a prompt per placeholder and renders them in
// parallel.
type Images struct {
	Client      llm.Client
	Renderer    ImageRenderer
	Concurrency int
}

func (*Images) ID() string { return jobs.StepImage }

func (s *Images) Run(ctx context.Context, scope *artifact.Scope, in pipeline.Artifacts) (pipeline.Artifacts, error) {
	names := FindPlaceholders(in.HTML, in.CSS)

	prompts := make(map[string]string, len(names))
	if len(names) > 0 {
		out, err := s.Client.Generate(ctx, llm.Prompt{
			Task:   llm.TaskImagePrompts,
			System: imagePromptsSystem,
			User:   "```html\n" + in.HTML + "\n```\n```css\n" + in.CSS + "\n```",
		})
		if err != nil {
			return in, fmt.Errorf("generate image prompts: %w", err)
		}
		fields, err := llm.ParseJSONObject(out)
		if err != nil {
			return in, fmt.Errorf("parse image prompts: %w", err)
		}
		for k, v := range fields {
			text, ok := v.(string)
			if !ok || !placeholderNameRe.MatchString(k) {
				continue
			}
			prompts[canonicalImageName(k)] = text
		}
	}

	limit := s.Concurrency
	if limit <= 0 {
		limit = 4
	}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)
	for _, name := range names {
		prompt := prompts[name]
		if prompt == "" {
			prompt = defaultImagePrompt
		}
		g.Go(func() (err error) {
			// workers run off the executor goroutine, so recover here
			defer func() {
				if r := recover(); r != nil {
					err = fmt.Errorf("render %s: panic: %v", name, r)
				}
			}()
			data, err := s.Renderer.Render(gctx, name, prompt)
			if err != nil {
				return fmt.Errorf("render %s: %w", name, err)
			}
			return scope.Write(name, data)
		})
	}
	if err := g.Wait(); err != nil {
		return in, err
	}

	in.Images = names
	return in, nil
}

// FindPlaceholders returns the canonical (.png) names of every image
// placeholder referenced by <img src> in markup or url(...) in css,
// sorted and de-duplicated.
func FindPlaceholders(markup, css string) []string {
	seen := make(map[string]struct{})
	add := func(ref string) {
		base := path.Base(strings.TrimSpace(ref))
		if placeholderNameRe.MatchString(base) && placeholderNameRe.FindString(base) == base {
			seen[canonicalImageName(base)] = struct{}{}
		}
	}

	if markup != "" {
		if doc, err := goquery.NewDocumentFromReader(strings.NewReader(markup)); err == nil {
			doc.Find("img[src]").Each(func(_ int, sel *goquery.Selection) {
				add(sel.AttrOr("src", ""))
			})
			doc.Find("[style]").Each(func(_ int, sel *goquery.Selection) {
				for _, m := range placeholderNameRe.FindAllString(sel.AttrOr("style", ""), -1) {
					add(m)
				}
			})
		}
	}
	for _, m := range placeholderNameRe.FindAllString(css, -1) {
		add(m)
	}

	names := make([]string, 0, len(seen))
	for n := range seen {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

func canonicalImageName(name string) string {
	ext := path.Ext(name)
	return strings.TrimSuffix(name, ext) + artifact.ImageExt
}

// PlaceholderRenderer draws a flat placeholder image: 640x360 for page
// images (16:9), 400x400 otherwise. The fill colour is derived from the
// prompt so different placeholders are distinguishable.
type PlaceholderRenderer struct{}

func (PlaceholderRenderer) Render(ctx context.Context, name, prompt string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	w, h := 400, 400
	if strings.Contains(name, "_html_") || strings.Contains(name, "_css_") {
		w, h = 640, 360
	}

	hash := fnv.New32a()
	_, _ = hash.Write([]byte(prompt))
	sum := hash.Sum32()
	fill := color.RGBA{R: 150 + uint8(sum%80), G: 190 + uint8((sum>>8)%50), B: 220 + uint8((sum>>16)%30), A: 255}
	band := color.RGBA{R: fill.R / 2, G: fill.G / 2, B: fill.B / 2, A: 255}

	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		c := fill
		if y >= h*2/5 && y < h*3/5 {
			c = band
		}
		for x := 0; x < w; x++ {
			img.SetRGBA(x, y, c)
		}
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
