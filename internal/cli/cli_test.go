package cli

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lpgen/internal/jobs"
	"lpgen/internal/model"
)

type fakeAPI struct {
	polls atomic.Int32
	brief model.Brief
}

func (f *fakeAPI) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/generate", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&f.brief)
		_ = json.NewEncoder(w).Encode(map[string]string{"jobId": "job-1"})
	})
	mux.HandleFunc("GET /api/jobs", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"jobs": []jobs.Job{
			{ID: "job-2", Status: jobs.StatusError, Error: "boom"},
			{ID: "job-1", Status: jobs.StatusCompleted, Progress: 100},
		}})
	})
	mux.HandleFunc("GET /api/jobs/{id}", func(w http.ResponseWriter, r *http.Request) {
		if r.PathValue("id") != "job-1" {
			w.WriteHeader(http.StatusNotFound)
			_ = json.NewEncoder(w).Encode(map[string]any{"success": false, "code": "NOT_FOUND", "error": "job not found"})
			return
		}
		job := jobs.Job{ID: "job-1", Status: jobs.StatusProcessing, Progress: 30, CurrentStep: "css"}
		if f.polls.Add(1) >= 3 {
			job = jobs.Job{ID: "job-1", Status: jobs.StatusCompleted, Progress: 100}
		}
		_ = json.NewEncoder(w).Encode(job)
	})
	mux.HandleFunc("GET /api/jobs/{id}/download", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/zip")
		_, _ = w.Write([]byte("PK-fake-zip"))
	})
	mux.HandleFunc("POST /api/jobs/{id}/retry", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]string{"jobId": "job-3"})
	})
	return mux
}

func run(t *testing.T, srv *httptest.Server, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(append([]string{"--server", srv.URL}, args...))
	err := cmd.Execute()
	return out.String(), err
}

func TestGenerate_SendsBriefFromFlags(t *testing.T) {
	api := &fakeAPI{}
	srv := httptest.NewServer(api.handler())
	defer srv.Close()

	out, err := run(t, srv, "generate", "--service-name", "EasySpeak", "--company", "Absolute Inc.")
	require.NoError(t, err)
	assert.Equal(t, "job-1\n", out)
	assert.Equal(t, "EasySpeak", api.brief.ServiceName)
	assert.Equal(t, "Absolute Inc.", api.brief.CompanyName)
}

func TestWait_PollsUntilTerminal(t *testing.T) {
	api := &fakeAPI{}
	srv := httptest.NewServer(api.handler())
	defer srv.Close()

	out, err := run(t, srv, "wait", "job-1", "--interval", "1ms")
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	// unchanged polls are not reprinted
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], "processing")
	assert.Contains(t, lines[1], "completed")
}

func TestStatus_NotFoundSurfacesAPIError(t *testing.T) {
	srv := httptest.NewServer((&fakeAPI{}).handler())
	defer srv.Close()

	_, err := run(t, srv, "status", "missing")
	require.Error(t, err)
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusNotFound, apiErr.StatusCode)
	assert.Equal(t, "NOT_FOUND", apiErr.Code)
}

func TestList_FiltersByStatus(t *testing.T) {
	srv := httptest.NewServer((&fakeAPI{}).handler())
	defer srv.Close()

	out, err := run(t, srv, "list", "--status", "error")
	require.NoError(t, err)
	assert.Contains(t, out, "job-2")
	assert.NotContains(t, out, "job-1")
}

func TestRetryAndDownload(t *testing.T) {
	srv := httptest.NewServer((&fakeAPI{}).handler())
	defer srv.Close()

	out, err := run(t, srv, "retry", "job-1")
	require.NoError(t, err)
	assert.Equal(t, "job-3\n", out)

	dest := filepath.Join(t.TempDir(), "bundle.zip")
	_, err = run(t, srv, "download", "job-1", "-o", dest)
	require.NoError(t, err)
	data, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Equal(t, "PK-fake-zip", string(data))
	_, err = os.Stat(dest + ".part")
	assert.True(t, os.IsNotExist(err))
}
