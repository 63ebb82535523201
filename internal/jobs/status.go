package jobs

// Status represents the lifecycle state of a job or of one of its steps.
// These values are part of the public JSON contract and of the mirror
// table (generation_jobs.status).
//
// Centralizing these here avoids scattering string
// literals like "pending" or "completed" across
// packages.
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusError      Status = "error"
)

// Terminal reports whether no further transitions are possible.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusError
}
