package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds the entire application configuration.
type Config struct {
	Logger    LoggerConfig    `mapstructure:"logger" yaml:"logger"`
	LLM       LLMConfig       `mapstructure:"llm" yaml:"llm"`
	Jira      JiraConfig      `mapstructure:"jira" yaml:"jira"`
	LogJuicer LogJuicerConfig `mapstructure:"logjuicer" yaml:"logjuicer"`
	Store     StoreConfig     `mapstructure:"store" yaml:"store"`
	Server    ServerConfig    `mapstructure:"server" yaml:"server"`
	Worker    WorkerConfig    `mapstructure:"worker" yaml:"worker"`
}

// LoggerConfig controls the zap setup, including optional rotating file output.
type LoggerConfig struct {
	Level       string `mapstructure:"level" yaml:"level"`
	Format      string `mapstructure:"format" yaml:"format"` // "console" or "json"
	ServiceName string `mapstructure:"service_name" yaml:"service_name"`
	AddSource   bool   `mapstructure:"add_source" yaml:"add_source"`
	LogFile     string `mapstructure:"log_file" yaml:"log_file"`
	MaxSize     int    `mapstructure:"max_size" yaml:"max_size"` // megabytes
	MaxBackups  int    `mapstructure:"max_backups" yaml:"max_backups"`
	MaxAge      int    `mapstructure:"max_age" yaml:"max_age"` // days
	Compress    bool   `mapstructure:"compress" yaml:"compress"`
}

// LLMModelConfig describes one named model endpoint.
type LLMModelConfig struct {
	Model       string        `mapstructure:"model" yaml:"model"`
	Endpoint    string        `mapstructure:"endpoint" yaml:"endpoint"`
	Temperature float32       `mapstructure:"temperature" yaml:"temperature"`
	MaxTokens   int           `mapstructure:"max_tokens" yaml:"max_tokens"`
	APITimeout  time.Duration `mapstructure:"api_timeout" yaml:"api_timeout"`
}

// LLMConfig bundles the provider credentials with the two model tiers.
type LLMConfig struct {
	Provider string `mapstructure:"provider" yaml:"provider"`
	APIKey   string `mapstructure:"api_key" yaml:"api_key"`
	// RenderMarkdown enables the secondary pass that reformats the validated
	// analysis into a markdown chunk stream.
	RenderMarkdown bool           `mapstructure:"render_markdown" yaml:"render_markdown"`
	Fast           LLMModelConfig `mapstructure:"fast" yaml:"fast"`
	Powerful       LLMModelConfig `mapstructure:"powerful" yaml:"powerful"`
}

// ProviderGemini is the only supported LLM provider.
const ProviderGemini = "gemini"

// JiraConfig configures the optional issue correlation phase.
type JiraConfig struct {
	URL        string        `mapstructure:"url" yaml:"url"`
	Token      string        `mapstructure:"token" yaml:"token"`
	Projects   []string      `mapstructure:"projects" yaml:"projects"`
	MaxResults int           `mapstructure:"max_results" yaml:"max_results"`
	Timeout    time.Duration `mapstructure:"timeout" yaml:"timeout"`
}

// Enabled reports whether enough configuration is present to correlate.
func (c JiraConfig) Enabled() bool {
	return c.URL != "" && c.Token != "" && len(c.Projects) > 0
}

// LogJuicerConfig locates the log-anomaly engine serving the raw reports.
type LogJuicerConfig struct {
	URL          string        `mapstructure:"url" yaml:"url"`
	CABundlePath string        `mapstructure:"ca_bundle_path" yaml:"ca_bundle_path"`
	Timeout      time.Duration `mapstructure:"timeout" yaml:"timeout"`
}

// StoreConfig configures the optional postgres event store.
type StoreConfig struct {
	DSN          string        `mapstructure:"dsn" yaml:"dsn"`
	MaxConns     int           `mapstructure:"max_conns" yaml:"max_conns"`
	ConnLifetime time.Duration `mapstructure:"conn_lifetime" yaml:"conn_lifetime"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Addr            string        `mapstructure:"addr" yaml:"addr"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout"`
}

// WorkerConfig sizes the analysis worker pool.
type WorkerConfig struct {
	PoolSize  int `mapstructure:"pool_size" yaml:"pool_size"`
	QueueSize int `mapstructure:"queue_size" yaml:"queue_size"`
}

// SetDefaults registers every default value on the given viper instance.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.service_name", "rca-cli")
	v.SetDefault("logger.max_size", 50)
	v.SetDefault("logger.max_backups", 3)
	v.SetDefault("logger.max_age", 14)

	v.SetDefault("llm.provider", ProviderGemini)
	v.SetDefault("llm.render_markdown", false)
	v.SetDefault("llm.fast.model", "gemini-2.5-flash")
	v.SetDefault("llm.fast.temperature", 0.5)
	v.SetDefault("llm.fast.max_tokens", 65536)
	v.SetDefault("llm.fast.api_timeout", 2*time.Minute)
	v.SetDefault("llm.powerful.model", "gemini-2.5-pro")
	v.SetDefault("llm.powerful.temperature", 0.5)
	v.SetDefault("llm.powerful.max_tokens", 1048576)
	v.SetDefault("llm.powerful.api_timeout", 5*time.Minute)

	v.SetDefault("jira.max_results", 5)
	v.SetDefault("jira.timeout", 30*time.Second)

	v.SetDefault("logjuicer.timeout", 10*time.Minute)
	v.SetDefault("logjuicer.ca_bundle_path", "/etc/pki/ca-trust/extracted/pem/tls-ca-bundle.pem")

	v.SetDefault("store.max_conns", 5)
	v.SetDefault("store.conn_lifetime", 5*time.Minute)

	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.shutdown_timeout", 10*time.Second)

	v.SetDefault("worker.pool_size", 2)
	v.SetDefault("worker.queue_size", 16)
}

// Load unmarshals and validates the configuration held by v.
func Load(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects configurations the pipeline cannot run with.
func (c *Config) Validate() error {
	if c.LLM.Provider != ProviderGemini {
		return fmt.Errorf("unknown or unsupported LLM provider: %q. Supported: [%s]", c.LLM.Provider, ProviderGemini)
	}
	if c.LLM.Fast.Model == "" || c.LLM.Powerful.Model == "" {
		return fmt.Errorf("both llm.fast.model and llm.powerful.model must be set")
	}
	if c.Jira.MaxResults <= 0 {
		return fmt.Errorf("jira.max_results must be positive, got %d", c.Jira.MaxResults)
	}
	if c.Worker.PoolSize <= 0 {
		return fmt.Errorf("worker.pool_size must be positive, got %d", c.Worker.PoolSize)
	}
	for _, p := range c.Jira.Projects {
		if strings.TrimSpace(p) == "" {
			return fmt.Errorf("jira.projects must not contain blank entries")
		}
	}
	return nil
}
