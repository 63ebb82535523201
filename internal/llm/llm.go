package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"strings"
	"time"

	"lpgen/internal/config"
	"lpgen/internal/metrics"
)

// Provider represents a logical LLM provider.
type Provider string

const (
	ProviderOpenAI    Provider = "openai"
	ProviderAnthropic Provider = "anthropic"
	ProviderGoogle    Provider = "google"
	// ProviderStatic renders deterministic templates without any network
	// call. Used for local runs and tests.
	ProviderStatic Provider = "static"
)

// Task tells a client which pipeline step a prompt belongs to. Remote
// providers ignore it; the static provider uses it to pick a template.
type Task string

const (
	TaskWireframe    Task = "wireframe"
	TaskStylesheet   Task = "stylesheet"
	TaskScript       Task = "script"
	TaskImagePrompts Task = "image-prompts"
	TaskApplyImages  Task = "apply-images"
)

// Prompt is one generation request.
type Prompt struct {
	Task   Task
	System string
	User   string
}

// Client is the abstraction used by the pipeline stages.
type Client interface {
	Generate(ctx context.Context, p Prompt) (string, error)
}

// ParseJSONObject attempts to parse a JSON object from the given content.
// It strips a surrounding ``` fence, then tries the whole string, and if
// that fails, the outermost {...} block.
func ParseJSONObject(content string) (map[string]any, error) {
	content = stripFence(strings.TrimSpace(content), "json")

	var fields map[string]any
	if err := json.Unmarshal([]byte(content), &fields); err == nil {
		return fields, nil
	}

	start := strings.Index(content, "{")
	end := strings.LastIndex(content, "}")
	if start == -1 || end <= start {
		return nil, errors.New("no JSON object found in content")
	}

	snippet := content[start : end+1]
	if err := json.Unmarshal([]byte(snippet), &fields); err != nil {
		return nil, fmt.Errorf("decode extracted JSON: %w", err)
	}

	return fields, nil
}

func stripFence(text string, langs ...string) string {
	if !strings.HasPrefix(text, "```") {
		return text
	}
	nl := strings.IndexByte(text, '\n')
	if nl == -1 {
		return text
	}
	tag := strings.ToLower(strings.TrimSpace(text[3:nl]))
	if tag != "" {
		known := false
		for _, l := range langs {
			if tag == l {
				known = true
				break
			}
		}
		if !known {
			return text
		}
	}
	body := text[nl+1:]
	body = strings.TrimSuffix(strings.TrimRight(body, " \t\r\n"), "```")
	return strings.TrimSpace(body)
}

// ExtractCode returns the code inside a leading ``` fence tagged with one
// of langs (or untagged). Unfenced text is returned trimmed as-is.
func ExtractCode(text string, langs ...string) string {
	return stripFence(strings.TrimSpace(text), langs...)
}

var codeBlockRe = regexp.MustCompile("(?s)```(\\w+)\\n(.*?)\\n```")

// CodeBlocksByType collects every fenced block in text and joins the
// blocks of each language with newlines.
func CodeBlocksByType(text string) map[string]string {
	parts := make(map[string][]string)
	for _, m := range codeBlockRe.FindAllStringSubmatch(text, -1) {
		lang := strings.ToLower(m[1])
		parts[lang] = append(parts[lang], strings.TrimSpace(m[2]))
	}
	out := make(map[string]string, len(parts))
	for lang, blocks := range parts {
		out[lang] = strings.Join(blocks, "\n")
	}
	return out
}

// NewClientFromConfig constructs the Client every stage shares, wrapped so
// that each call is counted in metrics.
func NewClientFromConfig(cfg *config.Config) (Client, Provider, string, error) {
	prov := Provider(cfg.LLM.DefaultProvider)
	timeout := time.Duration(cfg.LLM.TimeoutMs) * time.Millisecond
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}

	var (
		c     Client
		model string
	)
	switch prov {
	case ProviderOpenAI:
		openaiCfg := cfg.LLM.OpenAI
		model = openaiCfg.Model
		if openaiCfg.APIKey == "" || model == "" {
			return nil, prov, model, errors.New("openai llm provider is not fully configured")
		}
		c = &openAIClient{
			apiKey:  openaiCfg.APIKey,
			baseURL: openaiCfg.BaseURL,
			model:   model,
			http:    &http.Client{Timeout: timeout},
		}
	case ProviderAnthropic:
		anthCfg := cfg.LLM.Anthropic
		model = anthCfg.Model
		if anthCfg.APIKey == "" || model == "" {
			return nil, prov, model, errors.New("anthropic llm provider is not fully configured")
		}
		c = &anthropicClient{
			apiKey:    anthCfg.APIKey,
			baseURL:   anthCfg.BaseURL,
			model:     model,
			maxTokens: anthCfg.MaxTokens,
			http:      &http.Client{Timeout: timeout},
		}
	case ProviderGoogle:
		googleCfg := cfg.LLM.Google
		model = googleCfg.Model
		if googleCfg.APIKey == "" || model == "" {
			return nil, prov, model, errors.New("google llm provider is not fully configured")
		}
		c = &googleClient{
			apiKey:  googleCfg.APIKey,
			baseURL: googleCfg.BaseURL,
			model:   model,
			http:    &http.Client{Timeout: timeout},
		}
	case ProviderStatic:
		model = "template"
		c = StaticClient{}
	default:
		return nil, prov, "", fmt.Errorf("unsupported llm provider: %s", cfg.LLM.DefaultProvider)
	}

	return Instrument(c, prov, model), prov, model, nil
}

// Instrument wraps c so every call is recorded under provider/model.
func Instrument(c Client, provider Provider, model string) Client {
	return instrumented{next: c, provider: provider, model: model}
}

type instrumented struct {
	next     Client
	provider Provider
	model    string
}

func (i instrumented) Generate(ctx context.Context, p Prompt) (string, error) {
	out, err := i.next.Generate(ctx, p)
	metrics.RecordLLMCall(string(i.provider), i.model, err == nil)
	return out, err
}
