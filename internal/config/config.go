// Package config loads and validates the application configuration from a
// YAML file and AUTOFILL_-prefixed environment variables, with defaults for
// every knob.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the full application configuration tree.
type Config struct {
	Logger    LoggerConfig    `mapstructure:"logger" yaml:"logger"`
	Server    ServerConfig    `mapstructure:"server" yaml:"server"`
	Database  DatabaseConfig  `mapstructure:"database" yaml:"database"`
	LLM       LLMConfig       `mapstructure:"llm" yaml:"llm"`
	Retrieval RetrievalConfig `mapstructure:"retrieval" yaml:"retrieval"`
	Ingest    IngestConfig    `mapstructure:"ingest" yaml:"ingest"`
	Browser   BrowserConfig   `mapstructure:"browser" yaml:"browser"`
	Agent     AgentConfig     `mapstructure:"agent" yaml:"agent"`
	Identity  IdentityConfig  `mapstructure:"identity" yaml:"identity"`
}

// LoggerConfig holds all the configuration for the logger.
type LoggerConfig struct {
	Level       string `mapstructure:"level" yaml:"level"`
	Format      string `mapstructure:"format" yaml:"format"`
	AddSource   bool   `mapstructure:"add_source" yaml:"add_source"`
	ServiceName string `mapstructure:"service_name" yaml:"service_name"`
	LogFile     string `mapstructure:"log_file" yaml:"log_file"`
	MaxSize     int    `mapstructure:"max_size" yaml:"max_size"`
	MaxBackups  int    `mapstructure:"max_backups" yaml:"max_backups"`
	MaxAge      int    `mapstructure:"max_age" yaml:"max_age"`
	Compress    bool   `mapstructure:"compress" yaml:"compress"`
}

// ServerConfig holds the backend API listener settings.
type ServerConfig struct {
	ListenAddr     string        `mapstructure:"listen_addr" yaml:"listen_addr"`
	RequestTimeout time.Duration `mapstructure:"request_timeout" yaml:"request_timeout"`
	MaxUploadMB    int           `mapstructure:"max_upload_mb" yaml:"max_upload_mb"`
}

// DatabaseConfig holds the chunk store connection details. An empty URL
// selects the in-memory store.
type DatabaseConfig struct {
	URL string `mapstructure:"url" yaml:"url"`
}

// LLMConfig configures the generation and embedding models.
type LLMConfig struct {
	APIKey         string        `mapstructure:"api_key" yaml:"-"`
	Model          string        `mapstructure:"model" yaml:"model"`
	EmbeddingModel string        `mapstructure:"embedding_model" yaml:"embedding_model"`
	Temperature    float32       `mapstructure:"temperature" yaml:"temperature"`
	MaxRetryWindow time.Duration `mapstructure:"max_retry_window" yaml:"max_retry_window"`
	// RequestsPerSecond throttles generation calls. Zero means unthrottled.
	RequestsPerSecond float64 `mapstructure:"requests_per_second" yaml:"requests_per_second"`
}

// RetrievalConfig tunes the per-field semantic search.
type RetrievalConfig struct {
	TopK        int `mapstructure:"top_k" yaml:"top_k"`
	Concurrency int `mapstructure:"concurrency" yaml:"concurrency"`
}

// IngestConfig tunes the CV chunking pipeline.
type IngestConfig struct {
	ChunkSize int `mapstructure:"chunk_size" yaml:"chunk_size"`
	Overlap   int `mapstructure:"overlap" yaml:"overlap"`
	// Replace purges a tenant's previous index on every upload.
	Replace     bool `mapstructure:"replace" yaml:"replace"`
	Concurrency int  `mapstructure:"concurrency" yaml:"concurrency"`
}

// BrowserConfig holds settings for the driven Chrome instance.
type BrowserConfig struct {
	Headless          bool          `mapstructure:"headless" yaml:"headless"`
	DisableGPU        bool          `mapstructure:"disable_gpu" yaml:"disable_gpu"`
	Args              []string      `mapstructure:"args" yaml:"args"`
	NavigationTimeout time.Duration `mapstructure:"navigation_timeout" yaml:"navigation_timeout"`
	PostLoadWait      time.Duration `mapstructure:"post_load_wait" yaml:"post_load_wait"`
	ScriptTimeout     time.Duration `mapstructure:"script_timeout" yaml:"script_timeout"`
}

// AgentConfig selects how the page-driving side reaches the reasoning layer.
type AgentConfig struct {
	// Backend is "local" for the in-process planner or "remote" for a hosted
	// backend over HTTP.
	Backend string `mapstructure:"backend" yaml:"backend"`
	// BackendURL is the remote backend's base URL; ignored for "local".
	BackendURL string `mapstructure:"backend_url" yaml:"backend_url"`
}

// IdentityConfig overrides where the tenant id file lives.
type IdentityConfig struct {
	Path string `mapstructure:"path" yaml:"path"`
}

const (
	BackendLocal  = "local"
	BackendRemote = "remote"
)

// SetDefaults initializes default values for every configuration parameter.
func SetDefaults(v *viper.Viper) {
	// -- Logger --
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.add_source", false)
	v.SetDefault("logger.service_name", "autofill-agent")
	v.SetDefault("logger.log_file", "")
	v.SetDefault("logger.max_size", 100)
	v.SetDefault("logger.max_backups", 5)
	v.SetDefault("logger.max_age", 30)
	v.SetDefault("logger.compress", true)

	// -- Server --
	v.SetDefault("server.listen_addr", ":8000")
	v.SetDefault("server.request_timeout", "120s")
	v.SetDefault("server.max_upload_mb", 10)

	// -- LLM --
	v.SetDefault("llm.model", "gemini-2.0-flash")
	v.SetDefault("llm.embedding_model", "gemini-embedding-001")
	v.SetDefault("llm.temperature", 0.0)
	v.SetDefault("llm.max_retry_window", "2m")
	v.SetDefault("llm.requests_per_second", 0.0)

	// -- Retrieval --
	v.SetDefault("retrieval.top_k", 3)
	v.SetDefault("retrieval.concurrency", 4)

	// -- Ingest --
	v.SetDefault("ingest.chunk_size", 800)
	v.SetDefault("ingest.overlap", 100)
	v.SetDefault("ingest.replace", true)
	v.SetDefault("ingest.concurrency", 4)

	// -- Browser --
	v.SetDefault("browser.headless", false)
	v.SetDefault("browser.disable_gpu", true)
	v.SetDefault("browser.navigation_timeout", "90s")
	v.SetDefault("browser.post_load_wait", "1500ms")
	v.SetDefault("browser.script_timeout", "20s")

	// -- Agent --
	v.SetDefault("agent.backend", BackendLocal)
	v.SetDefault("agent.backend_url", "http://localhost:8000")
}

// Load reads the configuration from the given file (or ./config.yaml when
// empty), layering environment variables over it. A missing file is not an
// error; defaults and env vars carry the day.
func Load(cfgFile string) (*Config, error) {
	v := viper.New()
	SetDefaults(v)

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.AddConfigPath(".")
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}

	v.SetEnvPrefix("AUTOFILL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Sensitive values come from the environment, never the file.
	v.BindEnv("llm.api_key", "AUTOFILL_LLM_API_KEY", "GEMINI_API_KEY")
	v.BindEnv("database.url", "AUTOFILL_DATABASE_URL")

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if cfgFile != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	return NewFromViper(v)
}

// NewFromViper unmarshals and validates a populated viper instance.
func NewFromViper(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// NewDefault returns a configuration populated with defaults only.
func NewDefault() *Config {
	v := viper.New()
	SetDefaults(v)
	cfg, err := NewFromViper(v)
	if err != nil {
		panic(fmt.Sprintf("default config is invalid: %v", err))
	}
	return cfg
}

// Validate checks the configuration for sane values.
func (c *Config) Validate() error {
	if c.Retrieval.TopK <= 0 {
		return fmt.Errorf("retrieval.top_k must be a positive integer")
	}
	if c.Retrieval.Concurrency <= 0 {
		return fmt.Errorf("retrieval.concurrency must be a positive integer")
	}
	if c.Ingest.ChunkSize <= 0 {
		return fmt.Errorf("ingest.chunk_size must be a positive integer")
	}
	if c.Ingest.Overlap < 0 || c.Ingest.Overlap >= c.Ingest.ChunkSize {
		return fmt.Errorf("ingest.overlap must be non-negative and smaller than ingest.chunk_size")
	}
	switch c.Agent.Backend {
	case BackendLocal, BackendRemote:
	default:
		return fmt.Errorf("agent.backend must be %q or %q", BackendLocal, BackendRemote)
	}
	if c.Agent.Backend == BackendRemote && strings.TrimSpace(c.Agent.BackendURL) == "" {
		return fmt.Errorf("agent.backend_url is required for the remote backend")
	}
	return nil
}
