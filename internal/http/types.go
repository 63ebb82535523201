package http

import (
	"lpgen/internal/jobs"
	"lpgen/internal/model"
)

// GenerateRequest is the brief submitted to POST /api/generate.
type GenerateRequest = model.Brief

// GenerateResponse is returned by generate and retry.
type GenerateResponse struct {
	JobID string `json:"jobId"`
}

// JobsListResponse is returned by GET /api/jobs.
type JobsListResponse struct {
	Jobs []jobs.Job `json:"jobs"`
}

// ErrorResponse is the error envelope every endpoint uses.
type ErrorResponse struct {
	Success bool        `json:"success"`
	Code    string      `json:"code,omitempty"`
	Error   string      `json:"error"`
	Details interface{} `json:"details,omitempty"`
}
