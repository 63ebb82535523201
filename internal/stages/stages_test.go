package stages

import (
	"bytes"
	"context"
	"errors"
	"image/png"
	"sync/atomic"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lpgen/internal/artifact"
	"lpgen/internal/config"
	"lpgen/internal/jobs"
	"lpgen/internal/llm"
	"lpgen/internal/model"
	"lpgen/internal/pipeline"
)

func newScope(t *testing.T) *artifact.Scope {
	t.Helper()
	scope, err := artifact.New(t.TempDir()).Open(uuid.NewString())
	require.NoError(t, err)
	return scope
}

func brief() model.Brief {
	return model.Brief{
		ServiceName:    "EasySpeak",
		ServiceType:    "Online English school",
		TargetAudience: "Working adults",
		Features:       "1:1 lessons, 24/7 booking",
		Testimonials:   "Great teachers!",
		CompanyName:    "Absolute Inc.",
	}
}

func TestDefaultStagesFollowStepOrder(t *testing.T) {
	cfg := &config.Config{}
	got := Default(cfg, llm.StaticClient{})
	require.Len(t, got, len(jobs.StepIDs()))
	for i, st := range got {
		assert.Equal(t, jobs.StepIDs()[i], st.ID())
	}
}

func TestStaticPipelineWritesAllArtifacts(t *testing.T) {
	scope := newScope(t)
	ctx := context.Background()
	in := pipeline.Artifacts{Brief: brief()}

	var err error
	for _, st := range Default(&config.Config{}, llm.StaticClient{}) {
		in, err = st.Run(ctx, scope, in)
		require.NoError(t, err, st.ID())
	}

	for _, name := range []string{artifact.MarkupFile, artifact.StylesheetFile, artifact.ScriptFile} {
		assert.True(t, scope.Exists(name), name)
	}
	images, err := scope.List(artifact.ImagePattern)
	require.NoError(t, err)
	assert.Equal(t, []string{"placeholder_css_1.png", "placeholder_html_1.png", "placeholder_html_2.png"}, images)
	assert.Equal(t, images, in.Images)

	css, err := scope.ReadString(artifact.StylesheetFile)
	require.NoError(t, err)
	assert.NotContains(t, css, ".jpg")
	assert.Contains(t, css, "placeholder_css_1.png")

	raw, err := scope.Read("placeholder_html_1.png")
	require.NoError(t, err)
	img, err := png.Decode(bytes.NewReader(raw))
	require.NoError(t, err)
	assert.Equal(t, 640, img.Bounds().Dx())
	assert.Equal(t, 360, img.Bounds().Dy())
}

type failingClient struct{}

func (failingClient) Generate(context.Context, llm.Prompt) (string, error) {
	return "", errors.New("provider down")
}

type emptyClient struct{}

func (emptyClient) Generate(context.Context, llm.Prompt) (string, error) {
	return "```html\n\n```", nil
}

func TestWireframeFailuresLeaveNoMarkup(t *testing.T) {
	for name, client := range map[string]llm.Client{"error": failingClient{}, "empty": emptyClient{}} {
		t.Run(name, func(t *testing.T) {
			scope := newScope(t)
			_, err := Wireframe{Client: client}.Run(context.Background(), scope, pipeline.Artifacts{Brief: brief()})
			require.Error(t, err)
			assert.False(t, scope.Exists(artifact.MarkupFile))
		})
	}
}

func TestStylesheetRequiresMarkup(t *testing.T) {
	_, err := Stylesheet{Client: llm.StaticClient{}}.Run(context.Background(), newScope(t), pipeline.Artifacts{})
	assert.Error(t, err)
}

func TestFindPlaceholders(t *testing.T) {
	markup := `<html><body>
<img src="placeholder_html_2.png"><img src="./placeholder_html_1.jpg">
<img src="https://example.com/logo.png">
<div style="background: url('placeholder_bg_1.png')"></div>
<img src="placeholder_html_2.png">
</body></html>`
	css := `.hero { background: url("placeholder_css_1.jpg"); } .x { background: url(other.png); }`

	assert.Equal(t, []string{
		"placeholder_bg_1.png",
		"placeholder_css_1.png",
		"placeholder_html_1.png",
		"placeholder_html_2.png",
	}, FindPlaceholders(markup, css))
	assert.Empty(t, FindPlaceholders("", ""))
}

type countingRenderer struct {
	calls atomic.Int32
	fail  string
}

func (r *countingRenderer) Render(ctx context.Context, name, prompt string) ([]byte, error) {
	r.calls.Add(1)
	if name == r.fail {
		return nil, errors.New("renderer exploded")
	}
	return PlaceholderRenderer{}.Render(ctx, name, prompt)
}

func TestImagesStagePropagatesRenderFailure(t *testing.T) {
	renderer := &countingRenderer{fail: "placeholder_html_1.png"}
	st := &Images{Client: llm.StaticClient{}, Renderer: renderer, Concurrency: 2}
	in := pipeline.Artifacts{HTML: `<img src="placeholder_html_1.png"><img src="placeholder_html_2.png">`}

	_, err := st.Run(context.Background(), newScope(t), in)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "placeholder_html_1.png")
}

type panickingRenderer struct{}

func (panickingRenderer) Render(context.Context, string, string) ([]byte, error) {
	panic("renderer exploded")
}

func TestImagesStageRecoversRendererPanic(t *testing.T) {
	st := &Images{Client: llm.StaticClient{}, Renderer: panickingRenderer{}, Concurrency: 2}
	in := pipeline.Artifacts{HTML: `<img src="placeholder_html_1.png">`}

	var err error
	require.NotPanics(t, func() { _, err = st.Run(context.Background(), newScope(t), in) })
	require.Error(t, err)
	assert.Contains(t, err.Error(), "panic: renderer exploded")
}

func TestImagesStageWithoutPlaceholdersSkipsModel(t *testing.T) {
	st := &Images{Client: failingClient{}, Renderer: PlaceholderRenderer{}}
	out, err := st.Run(context.Background(), newScope(t), pipeline.Artifacts{HTML: "<p>plain</p>"})
	require.NoError(t, err)
	assert.Empty(t, out.Images)
}

func TestResolveImageRefs(t *testing.T) {
	images := []string{"placeholder_css_1.png", "placeholder_html_1.png"}
	in := "a { background: url('placeholder_css_1.jpg'); } b { background: url('placeholder_css_9.jpeg'); }"
	assert.Equal(t,
		"a { background: url('placeholder_css_1.png'); } b { background: url('placeholder_css_1.png'); }",
		ResolveImageRefs(in, images))
	assert.Equal(t, in, ResolveImageRefs(in, nil))
}

func TestPlaceholderRendererIsDeterministic(t *testing.T) {
	a, err := PlaceholderRenderer{}.Render(context.Background(), "placeholder_x_1.png", "sunset")
	require.NoError(t, err)
	b, err := PlaceholderRenderer{}.Render(context.Background(), "placeholder_x_1.png", "sunset")
	require.NoError(t, err)
	assert.Equal(t, a, b)

	img, err := png.Decode(bytes.NewReader(a))
	require.NoError(t, err)
	assert.Equal(t, 400, img.Bounds().Dx())
}
