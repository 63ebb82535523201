package metrics

import (
	"fmt"
	"sort"
	"strings"
	"sync"
)

// Simple Prometheus-style metrics for HTTP requests and the generation
// pipeline. In-memory only; values reset on restart.

var (
	mu             sync.RWMutex
	requestsTotal  = make(map[reqKey]int64)
	latencyMsSum   = make(map[latKey]int64)
	latencyMsCount = make(map[latKey]int64)
	llmCalls       = make(map[llmKey]int64)

	jobsTotal      = make(map[string]int64)
	stageRuns      = make(map[stageKey]int64)
	stageMsSum     = make(map[string]int64)
	stageMsCount   = make(map[string]int64)
	bundleBytesSum int64

	retentionJobsDeleted int64
)

type reqKey struct {
	Method string
	Path   string
	Status int
}

type latKey struct {
	Method string
	Path   string
}

type llmKey struct {
	Provider string
	Model    string
	Success  string
}

type stageKey struct {
	Stage   string
	Outcome string
}

// RecordRequest increments request counter and records latency.
func RecordRequest(method, path string, status int, latencyMs int64) {
	mu.Lock()
	defer mu.Unlock()

	rk := reqKey{Method: method, Path: path, Status: status}
	requestsTotal[rk]++

	lk := latKey{Method: method, Path: path}
	latencyMsSum[lk] += latencyMs
	latencyMsCount[lk]++
}

// RecordLLMCall increments the counter of generation calls made to a
// provider.
func RecordLLMCall(provider, model string, success bool) {
	mu.Lock()
	defer mu.Unlock()

	s := "false"
	if success {
		s = "true"
	}
	key := llmKey{Provider: provider, Model: model, Success: s}
	llmCalls[key]++
}

// RecordJob counts a job reaching a terminal status.
func RecordJob(status string) {
	mu.Lock()
	defer mu.Unlock()
	jobsTotal[status]++
}

// RecordStage records the outcome ("completed" or "error") and duration of
// one stage run.
func RecordStage(stage, outcome string, durationMs int64) {
	mu.Lock()
	defer mu.Unlock()
	stageRuns[stageKey{Stage: stage, Outcome: outcome}]++
	stageMsSum[stage] += durationMs
	stageMsCount[stage]++
}

// RecordBundle adds the size of a freshly packaged bundle.
func RecordBundle(bytes int64) {
	if bytes <= 0 {
		return
	}
	mu.Lock()
	defer mu.Unlock()
	bundleBytesSum += bytes
}

// RecordRetentionJobs increments the counter of jobs evicted by TTL.
func RecordRetentionJobs(deleted int64) {
	if deleted <= 0 {
		return
	}
	mu.Lock()
	defer mu.Unlock()
	retentionJobsDeleted += deleted
}

func sortedStrings(m map[string]int64) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Export returns Prometheus-style metrics text.
func Export() string {
	mu.RLock()
	defer mu.RUnlock()

	var b strings.Builder

	b.WriteString("# HELP lpgen_http_requests_total Total HTTP requests\n")
	b.WriteString("# TYPE lpgen_http_requests_total counter\n")

	// Sort keys for stable output
	var reqKeys []reqKey
	for k := range requestsTotal {
		reqKeys = append(reqKeys, k)
	}
	sort.Slice(reqKeys, func(i, j int) bool {
		if reqKeys[i].Method != reqKeys[j].Method {
			return reqKeys[i].Method < reqKeys[j].Method
		}
		if reqKeys[i].Path != reqKeys[j].Path {
			return reqKeys[i].Path < reqKeys[j].Path
		}
		return reqKeys[i].Status < reqKeys[j].Status
	})

	for _, k := range reqKeys {
		v := requestsTotal[k]
		fmt.Fprintf(&b, "lpgen_http_requests_total{method=\"%s\",path=\"%s\",status=\"%d\"} %d\n",
			k.Method, k.Path, k.Status, v)
	}

	b.WriteString("# HELP lpgen_http_request_duration_ms_sum Total request duration in milliseconds\n")
	b.WriteString("# TYPE lpgen_http_request_duration_ms_sum counter\n")
	b.WriteString("# HELP lpgen_http_request_duration_ms_count Request count for latency metric\n")
	b.WriteString("# TYPE lpgen_http_request_duration_ms_count counter\n")

	var latKeys []latKey
	for k := range latencyMsSum {
		latKeys = append(latKeys, k)
	}
	sort.Slice(latKeys, func(i, j int) bool {
		if latKeys[i].Method != latKeys[j].Method {
			return latKeys[i].Method < latKeys[j].Method
		}
		return latKeys[i].Path < latKeys[j].Path
	})

	for _, k := range latKeys {
		fmt.Fprintf(&b, "lpgen_http_request_duration_ms_sum{method=\"%s\",path=\"%s\"} %d\n",
			k.Method, k.Path, latencyMsSum[k])
		fmt.Fprintf(&b, "lpgen_http_request_duration_ms_count{method=\"%s\",path=\"%s\"} %d\n",
			k.Method, k.Path, latencyMsCount[k])
	}

	// LLM metrics
	b.WriteString("# HELP lpgen_llm_requests_total Total LLM generation calls\n")
	b.WriteString("# TYPE lpgen_llm_requests_total counter\n")

	var llmKeys []llmKey
	for k := range llmCalls {
		llmKeys = append(llmKeys, k)
	}
	sort.Slice(llmKeys, func(i, j int) bool {
		if llmKeys[i].Provider != llmKeys[j].Provider {
			return llmKeys[i].Provider < llmKeys[j].Provider
		}
		if llmKeys[i].Model != llmKeys[j].Model {
			return llmKeys[i].Model < llmKeys[j].Model
		}
		return llmKeys[i].Success < llmKeys[j].Success
	})

	for _, k := range llmKeys {
		fmt.Fprintf(&b, "lpgen_llm_requests_total{provider=\"%s\",model=\"%s\",success=\"%s\"} %d\n",
			k.Provider, k.Model, k.Success, llmCalls[k])
	}

	// Job and stage metrics
	b.WriteString("# HELP lpgen_jobs_total Jobs that reached a terminal status\n")
	b.WriteString("# TYPE lpgen_jobs_total counter\n")
	for _, s := range sortedStrings(jobsTotal) {
		fmt.Fprintf(&b, "lpgen_jobs_total{status=\"%s\"} %d\n", s, jobsTotal[s])
	}

	b.WriteString("# HELP lpgen_stage_runs_total Pipeline stage runs by outcome\n")
	b.WriteString("# TYPE lpgen_stage_runs_total counter\n")

	var stageKeys []stageKey
	for k := range stageRuns {
		stageKeys = append(stageKeys, k)
	}
	sort.Slice(stageKeys, func(i, j int) bool {
		if stageKeys[i].Stage != stageKeys[j].Stage {
			return stageKeys[i].Stage < stageKeys[j].Stage
		}
		return stageKeys[i].Outcome < stageKeys[j].Outcome
	})
	for _, k := range stageKeys {
		fmt.Fprintf(&b, "lpgen_stage_runs_total{stage=\"%s\",outcome=\"%s\"} %d\n",
			k.Stage, k.Outcome, stageRuns[k])
	}

	b.WriteString("# HELP lpgen_stage_duration_ms_sum Total stage duration in milliseconds\n")
	b.WriteString("# TYPE lpgen_stage_duration_ms_sum counter\n")
	b.WriteString("# HELP lpgen_stage_duration_ms_count Stage run count for duration metric\n")
	b.WriteString("# TYPE lpgen_stage_duration_ms_count counter\n")
	for _, s := range sortedStrings(stageMsSum) {
		fmt.Fprintf(&b, "lpgen_stage_duration_ms_sum{stage=\"%s\"} %d\n", s, stageMsSum[s])
		fmt.Fprintf(&b, "lpgen_stage_duration_ms_count{stage=\"%s\"} %d\n", s, stageMsCount[s])
	}

	b.WriteString("# HELP lpgen_bundle_bytes_total Total bytes of packaged bundles\n")
	b.WriteString("# TYPE lpgen_bundle_bytes_total counter\n")
	fmt.Fprintf(&b, "lpgen_bundle_bytes_total %d\n", bundleBytesSum)

	// Retention metrics
	b.WriteString("# HELP lpgen_retention_jobs_deleted_total Total jobs deleted by TTL\n")
	b.WriteString("# TYPE lpgen_retention_jobs_deleted_total counter\n")
	fmt.Fprintf(&b, "lpgen_retention_jobs_deleted_total %d\n", retentionJobsDeleted)

	return b.String()
}
