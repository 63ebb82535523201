package metrics

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRecordRequestAndExport(t *testing.T) {
	RecordRequest("GET", "/api/jobs/:id", 200, 42)

	out := Export()
	assert.Contains(t, out, `lpgen_http_requests_total{method="GET",path="/api/jobs/:id",status="200"}`)
	assert.Contains(t, out, "lpgen_http_request_duration_ms_sum")
	assert.Contains(t, out, "lpgen_http_request_duration_ms_count")
}

func TestRecordPipelineMetrics(t *testing.T) {
	RecordStage("css", "completed", 120)
	RecordStage("css", "error", 30)
	RecordJob("completed")
	RecordLLMCall("static", "template", true)

	out := Export()
	for _, want := range []string{
		`lpgen_stage_runs_total{stage="css",outcome="completed"}`,
		`lpgen_stage_runs_total{stage="css",outcome="error"}`,
		`lpgen_stage_duration_ms_count{stage="css"}`,
		`lpgen_jobs_total{status="completed"}`,
		`lpgen_llm_requests_total{provider="static",model="template",success="true"}`,
	} {
		assert.Contains(t, out, want)
	}
}

func TestRecordRetentionIgnoresNonPositive(t *testing.T) {
	mu.RLock()
	before := retentionJobsDeleted
	mu.RUnlock()

	RecordRetentionJobs(0)
	RecordRetentionJobs(-3)
	RecordRetentionJobs(2)

	mu.RLock()
	after := retentionJobsDeleted
	mu.RUnlock()
	assert.EqualValues(t, 2, after-before)
	assert.Contains(t, Export(), "lpgen_retention_jobs_deleted_total")
}
