// Package config provides configuration management for the literature
// synthesis service.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// SSL mode constants for database connections.
const (
	// SSLModeDisable disables SSL (use only for local development).
	SSLModeDisable = "disable"
	// SSLModeRequire requires SSL but does not verify certificates.
	SSLModeRequire = "require"
	// SSLModeVerifyCA verifies the server certificate against a CA.
	SSLModeVerifyCA = "verify-ca"
	// SSLModeVerifyFull verifies the server certificate and hostname.
	SSLModeVerifyFull = "verify-full"
)

// Config holds all configuration for the literature synthesis service.
type Config struct {
	// Server contains HTTP server settings.
	Server ServerConfig `mapstructure:"server"`
	// Database contains PostgreSQL connection settings.
	Database DatabaseConfig `mapstructure:"database"`
	// Temporal contains Temporal workflow orchestration settings.
	Temporal TemporalConfig `mapstructure:"temporal"`
	// Logging contains structured logging settings.
	Logging LoggingConfig `mapstructure:"logging"`
	// Metrics contains Prometheus metrics exposure settings.
	Metrics MetricsConfig `mapstructure:"metrics"`
	// LLM contains LLM client settings shared by the agent steps and judge.
	LLM LLMConfig `mapstructure:"llm"`
	// Pipeline contains orchestrator limits.
	Pipeline PipelineConfig `mapstructure:"pipeline"`
	// Safety contains safety gate settings.
	Safety SafetyConfig `mapstructure:"safety"`
	// Quality contains quality gate thresholds.
	Quality QualityConfig `mapstructure:"quality"`
	// Judge contains rubric judge settings.
	Judge JudgeConfig `mapstructure:"judge"`
	// Batch contains evaluate-mode batch runner settings.
	Batch BatchConfig `mapstructure:"batch"`
	// PaperSources contains paper source API configurations.
	PaperSources PaperSourcesConfig `mapstructure:"paper_sources"`
	// Kafka contains Kafka publisher settings for run lifecycle events.
	Kafka KafkaConfig `mapstructure:"kafka"`
}

// ServerConfig holds server configuration.
type ServerConfig struct {
	// Host is the address to bind the server to (default: 0.0.0.0).
	Host string `mapstructure:"host"`
	// HTTPPort is the HTTP server port (default: 8080).
	HTTPPort int `mapstructure:"http_port"`
	// ReadTimeout is the maximum duration for reading a request body.
	ReadTimeout time.Duration `mapstructure:"read_timeout"`
	// WriteTimeout is the maximum duration for writing a response.
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	// ShutdownTimeout is the maximum duration to wait for graceful shutdown.
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// DatabaseConfig holds database connection configuration.
type DatabaseConfig struct {
	// Host is the PostgreSQL server hostname.
	Host string `mapstructure:"host"`
	// Port is the PostgreSQL server port (default: 5432).
	Port int `mapstructure:"port"`
	// User is the database username.
	User string `mapstructure:"user"`
	// Password is the database password (loaded from LITSYNTH_DATABASE_PASSWORD).
	Password string `mapstructure:"-"`
	// Name is the database name.
	Name string `mapstructure:"name"`
	// SSLMode controls SSL connection security (require, verify-ca, verify-full, disable).
	SSLMode string `mapstructure:"ssl_mode"`
	// MaxConns is the maximum number of connections in the pool (default: 20).
	MaxConns int32 `mapstructure:"max_conns"`
	// MinConns is the minimum number of connections to keep open (default: 2).
	MinConns int32 `mapstructure:"min_conns"`
	// MaxConnLifetime is the maximum lifetime of a connection before it is closed.
	MaxConnLifetime time.Duration `mapstructure:"max_conn_lifetime"`
	// MaxConnIdleTime is the maximum idle time before a connection is closed.
	MaxConnIdleTime time.Duration `mapstructure:"max_conn_idle_time"`
	// ConnectTimeout is the maximum time to wait for a connection.
	ConnectTimeout time.Duration `mapstructure:"connect_timeout"`
	// MigrationPath is the path to migration files (relative or absolute).
	MigrationPath string `mapstructure:"migration_path"`
	// MigrationAutoRun enables automatic migration on startup (default: false).
	MigrationAutoRun bool `mapstructure:"migration_auto_run"`
}

// TemporalConfig holds Temporal workflow configuration.
type TemporalConfig struct {
	// HostPort is the Temporal server address.
	HostPort string `mapstructure:"host_port"`
	// Namespace is the Temporal namespace.
	Namespace string `mapstructure:"namespace"`
	// TaskQueue is the task queue name for synthesis workflows.
	TaskQueue string `mapstructure:"task_queue"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	// Level is the log level (trace, debug, info, warn, error, fatal, panic).
	Level string `mapstructure:"level"`
	// Format is the log format (json, console).
	Format string `mapstructure:"format"`
	// Output is the log output destination (stdout, stderr).
	Output string `mapstructure:"output"`
	// TimeFormat is the timestamp format.
	TimeFormat string `mapstructure:"time_format"`
}

// MetricsConfig holds metrics configuration.
type MetricsConfig struct {
	// Enabled enables metrics collection and exposure.
	Enabled bool `mapstructure:"enabled"`
	// Path is the HTTP path for the metrics endpoint.
	Path string `mapstructure:"path"`
	// Addr is the listen address of the standalone metrics server used by
	// processes without an API listener, such as the worker.
	Addr string `mapstructure:"addr"`
}

// LLMConfig holds LLM client configuration.
type LLMConfig struct {
	// Provider is the LLM provider (openai, anthropic).
	Provider string `mapstructure:"provider"`
	// Timeout is the timeout for LLM API calls.
	Timeout time.Duration `mapstructure:"timeout"`
	// MaxRetries is the maximum number of retries for failed calls.
	MaxRetries int `mapstructure:"max_retries"`
	// CallsPerMinute is the process-wide LLM call quota shared across runs.
	// Zero disables the quota.
	CallsPerMinute int `mapstructure:"calls_per_minute"`
	// QuotaBurst is the quota bucket burst size. Zero means CallsPerMinute.
	QuotaBurst int `mapstructure:"quota_burst"`
	// WaitOnQuota makes callers wait for quota instead of failing fast.
	WaitOnQuota bool `mapstructure:"wait_on_quota"`
	// OpenAI contains OpenAI-specific settings.
	OpenAI OpenAIConfig `mapstructure:"openai"`
	// Anthropic contains Anthropic-specific settings.
	Anthropic AnthropicConfig `mapstructure:"anthropic"`
}

// OpenAIConfig holds OpenAI-specific settings.
type OpenAIConfig struct {
	// APIKey is the OpenAI API key (loaded from LITSYNTH_LLM_OPENAI_API_KEY).
	APIKey string `mapstructure:"-"`
	// Model is the OpenAI model to use.
	Model string `mapstructure:"model"`
	// BaseURL is the OpenAI API base URL (for custom endpoints).
	BaseURL string `mapstructure:"base_url"`
}

// AnthropicConfig holds Anthropic-specific settings.
type AnthropicConfig struct {
	// APIKey is the Anthropic API key (loaded from LITSYNTH_LLM_ANTHROPIC_API_KEY).
	APIKey string `mapstructure:"-"`
	// Model is the Anthropic model to use.
	Model string `mapstructure:"model"`
	// BaseURL is the Anthropic API base URL (for custom endpoints).
	BaseURL string `mapstructure:"base_url"`
}

// PipelineConfig holds orchestrator limits.
type PipelineConfig struct {
	// MaxRevisions bounds the quality revision loop (default: 2).
	MaxRevisions int `mapstructure:"max_revisions"`
	// PlanTimeout bounds the Plan step. Zero disables the deadline.
	PlanTimeout time.Duration `mapstructure:"plan_timeout"`
	// ResearchTimeout bounds the Research step.
	ResearchTimeout time.Duration `mapstructure:"research_timeout"`
	// AnalyzeTimeout bounds the Analyze step.
	AnalyzeTimeout time.Duration `mapstructure:"analyze_timeout"`
	// WriteTimeout bounds the Write step.
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	// JudgeTimeout bounds the judge scoring call.
	JudgeTimeout time.Duration `mapstructure:"judge_timeout"`
	// MaxPapers caps the papers carried into analysis.
	MaxPapers int `mapstructure:"max_papers"`
	// MaxQueries caps how many plan queries are executed.
	MaxQueries int `mapstructure:"max_queries"`
}

// SafetyConfig holds safety gate settings.
type SafetyConfig struct {
	// MaxMaskFraction is the largest share of a draft that sanitization may
	// mask before the run is refused instead (default: 0.30).
	MaxMaskFraction float64 `mapstructure:"max_mask_fraction"`
}

// QualityConfig holds quality gate thresholds.
type QualityConfig struct {
	// MinDraftLength is the minimum acceptable draft length in bytes.
	MinDraftLength int `mapstructure:"min_draft_length"`
}

// JudgeConfig holds rubric judge settings.
type JudgeConfig struct {
	// Mode selects the scorer: "heuristic" (deterministic) or "llm".
	Mode string `mapstructure:"mode"`
	// Weights maps criterion name to its share of the overall score.
	// Empty means the built-in default weighting.
	Weights map[string]float64 `mapstructure:"weights"`
}

// BatchConfig holds evaluate-mode batch runner settings.
type BatchConfig struct {
	// MaxConcurrentRuns bounds how many runs execute at once (default: 3).
	MaxConcurrentRuns int `mapstructure:"max_concurrent_runs"`
}

// PaperSourcesConfig holds configuration for all paper source APIs.
type PaperSourcesConfig struct {
	// SemanticScholar contains Semantic Scholar API settings.
	SemanticScholar PaperSourceConfig `mapstructure:"semantic_scholar"`
	// ArXiv contains arXiv API settings.
	ArXiv PaperSourceConfig `mapstructure:"arxiv"`
}

// PaperSourceConfig holds configuration for a single paper source API.
type PaperSourceConfig struct {
	// Enabled controls whether this source is used.
	Enabled bool `mapstructure:"enabled"`
	// APIKey is the API key (loaded from the environment, e.g.
	// LITSYNTH_PAPER_SOURCES_SEMANTIC_SCHOLAR_API_KEY).
	APIKey string `mapstructure:"-"`
	// BaseURL is the API base URL.
	BaseURL string `mapstructure:"base_url"`
	// Timeout is the timeout for API calls.
	Timeout time.Duration `mapstructure:"timeout"`
	// RateLimit is the maximum requests per second.
	RateLimit float64 `mapstructure:"rate_limit"`
	// MaxResults is the maximum results per query.
	MaxResults int `mapstructure:"max_results"`
}

// KafkaConfig holds Kafka publisher settings for run lifecycle events.
type KafkaConfig struct {
	// Enabled controls whether event publishing is active (default: false).
	Enabled bool `mapstructure:"enabled"`
	// Brokers is the list of Kafka broker addresses.
	Brokers []string `mapstructure:"brokers"`
	// Topic is the Kafka topic to publish run events to.
	Topic string `mapstructure:"topic"`
	// BatchSize is the maximum number of messages to batch before sending.
	BatchSize int `mapstructure:"batch_size"`
	// BatchTimeout is the maximum time to wait for a batch to fill.
	BatchTimeout time.Duration `mapstructure:"batch_timeout"`
}

// DSN returns the PostgreSQL connection string.
func (c *DatabaseConfig) DSN() string {
	params := url.Values{}
	params.Set("sslmode", c.SSLMode)
	if c.ConnectTimeout > 0 {
		params.Set("connect_timeout", fmt.Sprintf("%d", int(c.ConnectTimeout.Seconds())))
	}

	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?%s",
		url.QueryEscape(c.User),
		url.QueryEscape(c.Password),
		c.Host,
		c.Port,
		c.Name,
		params.Encode(),
	)
}

// HTTPAddress returns the HTTP server address.
func (c *ServerConfig) HTTPAddress() string {
	return fmt.Sprintf("%s:%d", c.Host, c.HTTPPort)
}

// Load loads configuration from environment variables and config files.
func Load() (*Config, error) {
	v := viper.New()

	setDefaults(v)

	v.SetEnvPrefix("LITSYNTH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("/etc/litsynth")

	if err := v.ReadInConfig(); err != nil {
		var configNotFound viper.ConfigFileNotFoundError
		if !errors.As(err, &configNotFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// No config file is fine, env vars and defaults cover everything.
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	loadSecrets(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

// loadSecrets populates secret fields exclusively from environment variables.
// These fields are tagged with mapstructure:"-" to keep them out of config files.
func loadSecrets(cfg *Config) {
	cfg.Database.Password = os.Getenv("LITSYNTH_DATABASE_PASSWORD")

	cfg.LLM.OpenAI.APIKey = os.Getenv("LITSYNTH_LLM_OPENAI_API_KEY")
	cfg.LLM.Anthropic.APIKey = os.Getenv("LITSYNTH_LLM_ANTHROPIC_API_KEY")

	cfg.PaperSources.SemanticScholar.APIKey = os.Getenv("LITSYNTH_PAPER_SOURCES_SEMANTIC_SCHOLAR_API_KEY")
	cfg.PaperSources.ArXiv.APIKey = os.Getenv("LITSYNTH_PAPER_SOURCES_ARXIV_API_KEY")
}

// setDefaults sets default configuration values.
func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.http_port", 8080)
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "30s")
	v.SetDefault("server.shutdown_timeout", "30s")

	// Database defaults
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "litsynth")
	v.SetDefault("database.name", "litsynth")
	// Default to "require" for production security. Use
	// LITSYNTH_DATABASE_SSL_MODE=disable for local development.
	v.SetDefault("database.ssl_mode", SSLModeRequire)
	v.SetDefault("database.max_conns", 20)
	v.SetDefault("database.min_conns", 2)
	v.SetDefault("database.max_conn_lifetime", "1h")
	v.SetDefault("database.max_conn_idle_time", "30m")
	v.SetDefault("database.connect_timeout", "10s")
	v.SetDefault("database.migration_path", "migrations")
	v.SetDefault("database.migration_auto_run", false)

	// Temporal defaults
	v.SetDefault("temporal.host_port", "localhost:7233")
	v.SetDefault("temporal.namespace", "litsynth")
	v.SetDefault("temporal.task_queue", "litsynth-runs")

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.output", "stdout")
	v.SetDefault("logging.time_format", time.RFC3339)

	// Metrics defaults
	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.path", "/metrics")
	v.SetDefault("metrics.addr", "0.0.0.0:9090")

	// LLM defaults. API keys are loaded exclusively from environment
	// variables (see loadSecrets).
	v.SetDefault("llm.provider", "anthropic")
	v.SetDefault("llm.timeout", "60s")
	v.SetDefault("llm.max_retries", 3)
	v.SetDefault("llm.calls_per_minute", 60)
	v.SetDefault("llm.quota_burst", 10)
	v.SetDefault("llm.wait_on_quota", true)
	v.SetDefault("llm.openai.model", "gpt-4o")
	v.SetDefault("llm.openai.base_url", "")
	v.SetDefault("llm.anthropic.model", "claude-sonnet-4-20250514")
	v.SetDefault("llm.anthropic.base_url", "")

	// Pipeline defaults
	v.SetDefault("pipeline.max_revisions", 2)
	v.SetDefault("pipeline.plan_timeout", "2m")
	v.SetDefault("pipeline.research_timeout", "3m")
	v.SetDefault("pipeline.analyze_timeout", "3m")
	v.SetDefault("pipeline.write_timeout", "3m")
	v.SetDefault("pipeline.judge_timeout", "2m")
	v.SetDefault("pipeline.max_papers", 10)
	v.SetDefault("pipeline.max_queries", 3)

	// Safety defaults
	v.SetDefault("safety.max_mask_fraction", 0.30)

	// Quality defaults
	v.SetDefault("quality.min_draft_length", 500)

	// Judge defaults. Weights fall back to the built-in rubric when unset.
	v.SetDefault("judge.mode", "heuristic")

	// Batch defaults
	v.SetDefault("batch.max_concurrent_runs", 3)

	// Paper sources defaults - Semantic Scholar
	v.SetDefault("paper_sources.semantic_scholar.enabled", true)
	v.SetDefault("paper_sources.semantic_scholar.base_url", "https://api.semanticscholar.org/graph/v1")
	v.SetDefault("paper_sources.semantic_scholar.timeout", "30s")
	v.SetDefault("paper_sources.semantic_scholar.rate_limit", 1.0)
	v.SetDefault("paper_sources.semantic_scholar.max_results", 20)

	// Paper sources defaults - arXiv
	v.SetDefault("paper_sources.arxiv.enabled", true)
	v.SetDefault("paper_sources.arxiv.base_url", "https://export.arxiv.org/api")
	v.SetDefault("paper_sources.arxiv.timeout", "30s")
	v.SetDefault("paper_sources.arxiv.rate_limit", 3.0) // arXiv recommends max 3 req/sec
	v.SetDefault("paper_sources.arxiv.max_results", 20)

	// Kafka defaults
	v.SetDefault("kafka.enabled", false)
	v.SetDefault("kafka.brokers", []string{"localhost:9092"})
	v.SetDefault("kafka.topic", "litsynth.runs")
	v.SetDefault("kafka.batch_size", 100)
	v.SetDefault("kafka.batch_timeout", "10ms")
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Server.HTTPPort <= 0 || c.Server.HTTPPort > 65535 {
		return fmt.Errorf("invalid HTTP port: %d", c.Server.HTTPPort)
	}

	if c.Database.Host == "" {
		return fmt.Errorf("database host is required")
	}
	if c.Database.Port <= 0 || c.Database.Port > 65535 {
		return fmt.Errorf("invalid database port: %d", c.Database.Port)
	}
	if c.Database.Name == "" {
		return fmt.Errorf("database name is required")
	}
	if c.Database.MaxConns < c.Database.MinConns {
		return fmt.Errorf("max_conns (%d) must be >= min_conns (%d)", c.Database.MaxConns, c.Database.MinConns)
	}

	validLogLevels := map[string]bool{
		"trace": true, "debug": true, "info": true,
		"warn": true, "error": true, "fatal": true, "panic": true,
	}
	if !validLogLevels[strings.ToLower(c.Logging.Level)] {
		return fmt.Errorf("invalid log level: %s", c.Logging.Level)
	}

	switch strings.ToLower(c.LLM.Provider) {
	case "openai":
		if c.LLM.OpenAI.APIKey == "" {
			return fmt.Errorf("LLM provider %q requires LITSYNTH_LLM_OPENAI_API_KEY to be set", c.LLM.Provider)
		}
	case "anthropic":
		if c.LLM.Anthropic.APIKey == "" {
			return fmt.Errorf("LLM provider %q requires LITSYNTH_LLM_ANTHROPIC_API_KEY to be set", c.LLM.Provider)
		}
	default:
		return fmt.Errorf("unsupported LLM provider: %s", c.LLM.Provider)
	}

	if c.Pipeline.MaxRevisions < 0 {
		return fmt.Errorf("pipeline max_revisions must not be negative")
	}
	if c.Safety.MaxMaskFraction <= 0 || c.Safety.MaxMaskFraction > 1 {
		return fmt.Errorf("safety max_mask_fraction must be in (0, 1], got %g", c.Safety.MaxMaskFraction)
	}
	if c.Quality.MinDraftLength <= 0 {
		return fmt.Errorf("quality min_draft_length must be positive")
	}

	switch strings.ToLower(c.Judge.Mode) {
	case "heuristic", "llm":
	default:
		return fmt.Errorf("invalid judge mode: %s", c.Judge.Mode)
	}
	if len(c.Judge.Weights) > 0 {
		var sum float64
		for name, weight := range c.Judge.Weights {
			if weight < 0 {
				return fmt.Errorf("judge weight %s must not be negative", name)
			}
			sum += weight
		}
		if sum < 0.99 || sum > 1.01 {
			return fmt.Errorf("judge weights must sum to 1.0, got %g", sum)
		}
	}

	if c.Batch.MaxConcurrentRuns <= 0 {
		return fmt.Errorf("batch max_concurrent_runs must be positive")
	}

	if c.Kafka.Enabled {
		if len(c.Kafka.Brokers) == 0 {
			return fmt.Errorf("kafka brokers are required when kafka is enabled")
		}
		if c.Kafka.Topic == "" {
			return fmt.Errorf("kafka topic is required when kafka is enabled")
		}
	}

	return nil
}
