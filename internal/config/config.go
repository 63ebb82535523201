package config

import (
	"log"
	"os"

	"gopkg.in/yaml.v3"
)

type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// StorageConfig controls where per-job working directories and packaged
// bundles live on disk.
type StorageConfig struct {
	JobsDir      string `yaml:"jobsDir"`
	DownloadsDir string `yaml:"downloadsDir"`
}

type WorkerConfig struct {
	MaxConcurrentJobs int `yaml:"maxConcurrentJobs"`
	// StageTimeoutMs bounds a single stage invocation. Zero disables the
	// timeout and lets a hanging stage stall only its own job.
	StageTimeoutMs int `yaml:"stageTimeoutMs"`
}

type OpenAIConfig struct {
	APIKey  string `yaml:"apiKey"`
	BaseURL string `yaml:"baseURL"`
	Model   string `yaml:"model"`
}

type AnthropicConfig struct {
	APIKey    string `yaml:"apiKey"`
	BaseURL   string `yaml:"baseURL"`
	Model     string `yaml:"model"`
	MaxTokens int    `yaml:"maxTokens"`
}

type GoogleLLMConfig struct {
	APIKey  string `yaml:"apiKey"`
	BaseURL string `yaml:"baseURL"`
	Model   string `yaml:"model"`
}

type LLMConfig struct {
	// DefaultProvider selects the client used by every stage:
	// openai, anthropic, google or static (offline templates).
	DefaultProvider string          `yaml:"defaultProvider"`
	TimeoutMs       int             `yaml:"timeoutMs"`
	OpenAI          OpenAIConfig    `yaml:"openai"`
	Anthropic       AnthropicConfig `yaml:"anthropic"`
	Google          GoogleLLMConfig `yaml:"google"`
}

// ImagesConfig controls placeholder image rendering in the image stage.
type ImagesConfig struct {
	Concurrency int `yaml:"concurrency"`
}

// DatabaseConfig configures the optional durable mirror of job snapshots.
// An empty DSN disables the mirror.
type DatabaseConfig struct {
	Driver string `yaml:"driver"` // postgres | sqlite
	DSN    string `yaml:"dsn"`
}

type RedisConfig struct {
	URL string `yaml:"url"`
}

type RateLimitConfig struct {
	GeneratePerMinute int `yaml:"generatePerMinute"`
}

// RetentionConfig controls eviction of finished jobs. When disabled, jobs
// live for the lifetime of the process.
type RetentionConfig struct {
	Enabled                bool `yaml:"enabled"`
	CleanupIntervalMinutes int  `yaml:"cleanupIntervalMinutes"`
	JobDays                int  `yaml:"jobDays"`
}

type LogConfig struct {
	Level string `yaml:"level"`
}

type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Storage   StorageConfig   `yaml:"storage"`
	Worker    WorkerConfig    `yaml:"worker"`
	LLM       LLMConfig       `yaml:"llm"`
	Images    ImagesConfig    `yaml:"images"`
	Database  DatabaseConfig  `yaml:"database"`
	Redis     RedisConfig     `yaml:"redis"`
	RateLimit RateLimitConfig `yaml:"ratelimit"`
	Retention RetentionConfig `yaml:"retention"`
	Log       LogConfig       `yaml:"log"`
}

func Load(path string) *Config {
	f, err := os.Open(path)
	if err != nil {
		log.Fatalf("failed to open config file: %v", err)
	}
	defer f.Close()

	var cfg Config
	if err := yaml.NewDecoder(f).Decode(&cfg); err != nil {
		log.Fatalf("failed to decode config: %v", err)
	}

	cfg.ApplyDefaults()
	return &cfg
}

// ApplyDefaults fills zero values with working defaults and pulls provider
// API keys from the environment when the file leaves them empty.
func (c *Config) ApplyDefaults() {
	if c.Server.Port == 0 {
		c.Server.Port = 8000
	}
	if c.Storage.JobsDir == "" {
		c.Storage.JobsDir = "jobs"
	}
	if c.Storage.DownloadsDir == "" {
		c.Storage.DownloadsDir = "downloads"
	}
	if c.Worker.MaxConcurrentJobs <= 0 {
		c.Worker.MaxConcurrentJobs = 4
	}
	if c.LLM.DefaultProvider == "" {
		c.LLM.DefaultProvider = "static"
	}
	if c.LLM.TimeoutMs <= 0 {
		c.LLM.TimeoutMs = 120000
	}
	if c.LLM.Anthropic.MaxTokens <= 0 {
		c.LLM.Anthropic.MaxTokens = 8192
	}
	if c.Images.Concurrency <= 0 {
		c.Images.Concurrency = 4
	}
	if c.Database.Driver == "" {
		c.Database.Driver = "postgres"
	}
	if c.Retention.CleanupIntervalMinutes <= 0 {
		c.Retention.CleanupIntervalMinutes = 60
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}

	if c.LLM.OpenAI.APIKey == "" {
		c.LLM.OpenAI.APIKey = os.Getenv("OPENAI_API_KEY")
	}
	if c.LLM.Anthropic.APIKey == "" {
		c.LLM.Anthropic.APIKey = os.Getenv("ANTHROPIC_API_KEY")
	}
	if c.LLM.Google.APIKey == "" {
		c.LLM.Google.APIKey = os.Getenv("GEMINI_API_KEY")
	}
}
