package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadAppliesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	raw := []byte("server:\n  host: 127.0.0.1\nllm:\n  defaultProvider: anthropic\n  anthropic:\n    apiKey: from-file\n    baseURL: http://proxy.local/v1\n")
	require.NoError(t, os.WriteFile(path, raw, 0o644))

	cfg := Load(path)

	assert.Equal(t, "127.0.0.1", cfg.Server.Host)
	assert.Equal(t, 8000, cfg.Server.Port)
	assert.Equal(t, "jobs", cfg.Storage.JobsDir)
	assert.Equal(t, "downloads", cfg.Storage.DownloadsDir)
	assert.Equal(t, 4, cfg.Worker.MaxConcurrentJobs)
	assert.Equal(t, "anthropic", cfg.LLM.DefaultProvider)
	assert.Equal(t, "from-file", cfg.LLM.Anthropic.APIKey)
	assert.Equal(t, "http://proxy.local/v1", cfg.LLM.Anthropic.BaseURL)
}

func TestApplyDefaultsReadsKeysFromEnv(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "sk-env")
	t.Setenv("GEMINI_API_KEY", "gm-env")

	var cfg Config
	cfg.ApplyDefaults()

	assert.Equal(t, "sk-env", cfg.LLM.OpenAI.APIKey)
	assert.Equal(t, "gm-env", cfg.LLM.Google.APIKey)
	assert.Equal(t, "static", cfg.LLM.DefaultProvider)
}
