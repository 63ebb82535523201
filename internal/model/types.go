package model

import (
	"fmt"
	"time"
)

// Brief is the structured input for a landing page: what is being sold,
// to whom, and by which company.
type Brief struct {
	ServiceName    string `json:"serviceName"`
	ServiceType    string `json:"serviceType"`
	TargetAudience string `json:"targetAudience"`
	Features       string `json:"features"`
	Testimonials   string `json:"testimonials"`
	CompanyName    string `json:"companyName"`
}

// Outline renders the brief as the numbered section list handed to the
// structure stage.
func (b Brief) Outline() string {
	return fmt.Sprintf("1. Service name: %s\n\n2. Service category: %s\n\n3. Target audience: %s\n\n4. Features: %s\n\n5. Testimonials: %s\n\n6. Company: %s",
		b.ServiceName, b.ServiceType, b.TargetAudience, b.Features, b.Testimonials, b.CompanyName)
}

// Result is the generated page attached to a completed job.
type Result struct {
	JobID        string    `json:"jobId"`
	HTML         string    `json:"html"`
	CSS          string    `json:"css"`
	JS           string    `json:"js"`
	ImageBase64  string    `json:"imageBase64"`
	Images       []string  `json:"images,omitempty"`
	Outline      string    `json:"outline,omitempty"`
	Bundle       string    `json:"bundle"`
	BundleSHA256 string    `json:"bundleSha256"`
	CreatedAt    time.Time `json:"createdAt"`
}
