package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
)

// openAIClient implements Client using OpenAI-compatible Chat Completions.
type openAIClient struct {
	apiKey  string
	baseURL string
	model   string
	http    *http.Client
}

// anthropicClient implements Client using Anthropic's Messages API.
type anthropicClient struct {
	apiKey    string
	baseURL   string
	model     string
	maxTokens int
	http      *http.Client
}

// googleClient implements Client using Google Gemini (Generative Language API).
type googleClient struct {
	apiKey  string
	baseURL string
	model   string
	http    *http.Client
}

// openAIChatRequest is a minimal representation of the Chat Completions API.
type openAIChatRequest struct {
	Model          string                `json:"model"`
	Messages       []openAIChatMessage   `json:"messages"`
	Temperature    float64               `json:"temperature"`
	ResponseFormat *openAIResponseFormat `json:"response_format,omitempty"`
}

type openAIResponseFormat struct {
	Type string `json:"type"`
}

type openAIChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type openAIChatResponse struct {
	Choices []struct {
		Message openAIChatMessage `json:"message"`
	} `json:"choices"`
}

// anthropicMessagesRequest & response are minimal shapes for Anthropic's Messages API.
type anthropicMessagesRequest struct {
	Model       string             `json:"model"`
	MaxTokens   int                `json:"max_tokens"`
	Temperature float64            `json:"temperature"`
	System      string             `json:"system,omitempty"`
	Messages    []anthropicMessage `json:"messages"`
}

type anthropicMessage struct {
	Role    string                 `json:"role"`
	Content []anthropicTextContent `json:"content"`
}

type anthropicTextContent struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type anthropicMessagesResponse struct {
	Content []anthropicTextContent `json:"content"`
}

// googleGenerateContentRequest & response are minimal shapes for Gemini's generateContent.
type googleGenerateContentRequest struct {
	SystemInstruction *googleContent  `json:"systemInstruction,omitempty"`
	Contents          []googleContent `json:"contents"`
}

type googleContent struct {
	Parts []googlePart `json:"parts"`
}

type googlePart struct {
	Text string `json:"text,omitempty"`
}

type googleGenerateContentResponse struct {
	Candidates []struct {
		Content googleContent `json:"content"`
	} `json:"candidates"`
}

// postJSON sends body to endpoint and decodes a 2xx JSON response into out.
func postJSON(ctx context.Context, client *http.Client, endpoint string, headers map[string]string, body, out any, name string) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		httpReq.Header.Set(k, v)
	}

	resp, err := client.Do(httpReq)
	if err != nil {
		// the url may carry credentials; keep only the cause
		var ue *url.Error
		if errors.As(err, &ue) {
			return fmt.Errorf("%s: %s request failed: %w", name, ue.Op, ue.Err)
		}
		return fmt.Errorf("%s: %w", name, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("%s failed with status %d: %s", name, resp.StatusCode, strings.TrimSpace(string(snippet)))
	}

	return json.NewDecoder(resp.Body).Decode(out)
}

func (c *openAIClient) Generate(ctx context.Context, p Prompt) (string, error) {
	messages := make([]openAIChatMessage, 0, 2)
	if p.System != "" {
		messages = append(messages, openAIChatMessage{Role: "system", Content: p.System})
	}
	messages = append(messages, openAIChatMessage{Role: "user", Content: p.User})

	body := openAIChatRequest{
		Model:       c.model,
		Messages:    messages,
		Temperature: 1.0,
	}
	if p.Task == TaskImagePrompts {
		body.ResponseFormat = &openAIResponseFormat{Type: "json_object"}
	}

	endpoint := c.baseURL
	if endpoint == "" {
		endpoint = "https://api.openai.com/v1"
	}
	endpoint = strings.TrimRight(endpoint, "/") + "/chat/completions"

	var parsed openAIChatResponse
	if err := postJSON(ctx, c.http, endpoint, map[string]string{"Authorization": "Bearer " + c.apiKey}, body, &parsed, "openai chat completion"); err != nil {
		return "", err
	}
	if len(parsed.Choices) == 0 {
		return "", errors.New("openai chat completion returned no choices")
	}

	return parsed.Choices[0].Message.Content, nil
}

// Generate for anthropicClient uses Anthropic's Messages API.
func (c *anthropicClient) Generate(ctx context.Context, p Prompt) (string, error) {
	maxTokens := c.maxTokens
	if maxTokens <= 0 {
		maxTokens = 8192
	}
	body := anthropicMessagesRequest{
		Model:       c.model,
		MaxTokens:   maxTokens,
		Temperature: 1.0,
		System:      p.System,
		Messages: []anthropicMessage{
			{
				Role: "user",
				Content: []anthropicTextContent{
					{Type: "text", Text: p.User},
				},
			},
		},
	}

	endpoint := c.baseURL
	if endpoint == "" {
		endpoint = "https://api.anthropic.com/v1"
	}
	endpoint = strings.TrimRight(endpoint, "/") + "/messages"

	headers := map[string]string{
		"x-api-key":         c.apiKey,
		"anthropic-version": "2023-06-01",
	}

	var parsed anthropicMessagesResponse
	if err := postJSON(ctx, c.http, endpoint, headers, body, &parsed, "anthropic messages request"); err != nil {
		return "", err
	}
	if len(parsed.Content) == 0 {
		return "", errors.New("anthropic messages returned no content")
	}

	return parsed.Content[0].Text, nil
}

// Generate for googleClient uses Gemini's generateContent API.
func (c *googleClient) Generate(ctx context.Context, p Prompt) (string, error) {
	body := googleGenerateContentRequest{
		Contents: []googleContent{
			{
				Parts: []googlePart{{Text: p.User}},
			},
		},
	}
	if p.System != "" {
		body.SystemInstruction = &googleContent{Parts: []googlePart{{Text: p.System}}}
	}

	base := c.baseURL
	if base == "" {
		base = "https://generativelanguage.googleapis.com/v1beta"
	}
	endpoint := fmt.Sprintf("%s/models/%s:generateContent", strings.TrimRight(base, "/"), url.PathEscape(c.model))
	headers := map[string]string{"x-goog-api-key": c.apiKey}

	var parsed googleGenerateContentResponse
	if err := postJSON(ctx, c.http, endpoint, headers, body, &parsed, "google generateContent"); err != nil {
		return "", err
	}
	if len(parsed.Candidates) == 0 || len(parsed.Candidates[0].Content.Parts) == 0 {
		return "", errors.New("google generateContent returned no candidates")
	}

	var b strings.Builder
	for _, part := range parsed.Candidates[0].Content.Parts {
		b.WriteString(part.Text)
	}
	return b.String(), nil
}
