package cli

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
	"time"

	"lpgen/internal/jobs"
	"lpgen/internal/model"
)

// APIError is a non-2xx answer from the server, decoded from its error
// envelope when possible.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *APIError) Error() string {
	if e.Code == "" {
		return fmt.Sprintf("server returned %d: %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("%s (%d): %s", e.Code, e.StatusCode, e.Message)
}

// Client talks to the job API over HTTP.
type Client struct {
	BaseURL    string
	HTTPClient *http.Client
}

func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		BaseURL:    strings.TrimRight(baseURL, "/"),
		HTTPClient: &http.Client{Timeout: timeout},
	}
}

func (c *Client) url(path string) string {
	return c.BaseURL + path
}

func (c *Client) do(ctx context.Context, method, path string, body any) (*http.Response, error) {
	var r io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		r = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.url(path), r)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode >= 300 {
		defer resp.Body.Close()
		return nil, decodeAPIError(resp)
	}
	return resp, nil
}

func decodeAPIError(resp *http.Response) error {
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	var env struct {
		Code  string `json:"code"`
		Error string `json:"error"`
	}
	if err := json.Unmarshal(data, &env); err == nil && env.Error != "" {
		return &APIError{StatusCode: resp.StatusCode, Code: env.Code, Message: env.Error}
	}
	return &APIError{StatusCode: resp.StatusCode, Message: strings.TrimSpace(string(data))}
}

func (c *Client) getJSON(ctx context.Context, method, path string, body, out any) error {
	resp, err := c.do(ctx, method, path, body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	return json.NewDecoder(resp.Body).Decode(out)
}

// Generate submits a brief and returns the new job id.
func (c *Client) Generate(ctx context.Context, brief model.Brief) (string, error) {
	var out struct {
		JobID string `json:"jobId"`
	}
	if err := c.getJSON(ctx, http.MethodPost, "/api/generate", brief, &out); err != nil {
		return "", err
	}
	return out.JobID, nil
}

func (c *Client) Status(ctx context.Context, id string) (jobs.Job, error) {
	var job jobs.Job
	err := c.getJSON(ctx, http.MethodGet, "/api/jobs/"+url.PathEscape(id), nil, &job)
	return job, err
}

func (c *Client) List(ctx context.Context) ([]jobs.Job, error) {
	var out struct {
		Jobs []jobs.Job `json:"jobs"`
	}
	if err := c.getJSON(ctx, http.MethodGet, "/api/jobs", nil, &out); err != nil {
		return nil, err
	}
	return out.Jobs, nil
}

// Retry starts a new job from the brief of job id.
func (c *Client) Retry(ctx context.Context, id string) (string, error) {
	var out struct {
		JobID string `json:"jobId"`
	}
	if err := c.getJSON(ctx, http.MethodPost, "/api/jobs/"+url.PathEscape(id)+"/retry", nil, &out); err != nil {
		return "", err
	}
	return out.JobID, nil
}

// Download streams the bundle of a completed job into w and returns the
// number of bytes written.
func (c *Client) Download(ctx context.Context, id string, w io.Writer) (int64, error) {
	resp, err := c.do(ctx, http.MethodGet, "/api/jobs/"+url.PathEscape(id)+"/download", nil)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	return io.Copy(w, resp.Body)
}

// Wait polls job id until it reaches a terminal status. onUpdate is called
// for every poll whose progress or step changed.
func (c *Client) Wait(ctx context.Context, id string, interval time.Duration, onUpdate func(jobs.Job)) (jobs.Job, error) {
	if interval <= 0 {
		interval = time.Second
	}
	var last jobs.Job
	first := true
	for {
		job, err := c.Status(ctx, id)
		if err != nil {
			var apiErr *APIError
			if errors.As(err, &apiErr) {
				return job, err
			}
			// transient transport errors are retried until ctx expires
			if ctx.Err() != nil {
				return last, ctx.Err()
			}
		} else {
			if onUpdate != nil && (first || job.Progress != last.Progress || job.CurrentStep != last.CurrentStep || job.Status != last.Status) {
				onUpdate(job)
			}
			first = false
			last = job
			if job.Status.Terminal() {
				return job, nil
			}
		}

		select {
		case <-ctx.Done():
			return last, ctx.Err()
		case <-time.After(interval):
		}
	}
}
