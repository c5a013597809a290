// Package config provides configuration management for the meetflow service.
// It supports loading configuration from a YAML file with environment
// variable overrides for deployment-specific values and secrets.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Default configuration values.
const (
	DefaultListenAddr  = ":8080"
	DefaultLLMModel    = "gpt-4o"
	DefaultLLMTimeout  = 2 * time.Minute
	DefaultHTTPTimeout = 30 * time.Second
)

// ServerConfig holds HTTP server settings for the webhook endpoint.
type ServerConfig struct {
	// ListenAddr is the address the webhook server binds to.
	ListenAddr string `yaml:"listen_addr"`

	// Environment selects logging format and gin mode ("development", "production").
	Environment string `yaml:"environment"`

	// WithWorker starts the pipeline worker pool inside the serve process.
	WithWorker bool `yaml:"with_worker"`
}

// DatabaseConfig holds PostgreSQL connection settings.
type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Database string `yaml:"database"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	SSLMode  string `yaml:"sslmode"`
}

// RedisConfig holds redis connection settings for the durable queue.
type RedisConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// Addr returns the host:port address for the redis client.
func (c RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// LLMConfig holds settings for the OpenAI-compatible completion service.
type LLMConfig struct {
	// BaseURL is the API root, e.g. "https://api.openai.com".
	BaseURL string `yaml:"base_url"`

	// APIKey authenticates completion requests.
	APIKey string `yaml:"api_key"`

	// Model is the completion model identifier.
	Model string `yaml:"model"`

	// Timeout bounds a single completion request.
	Timeout time.Duration `yaml:"timeout"`
}

// PlatformConfig holds credentials and endpoints for the video/chat platform.
type PlatformConfig struct {
	// APIKey is the platform API key; inbound webhooks must echo it in
	// the x-api-key header.
	APIKey string `yaml:"api_key"`

	// APISecret signs outbound requests and verifies inbound webhook
	// signatures (HMAC-SHA256 over the raw body).
	APISecret string `yaml:"api_secret"`

	// VideoBaseURL is the video call control API root.
	VideoBaseURL string `yaml:"video_base_url"`

	// ChatBaseURL is the chat API root.
	ChatBaseURL string `yaml:"chat_base_url"`
}

// PipelineConfig holds transcript pipeline worker settings.
type PipelineConfig struct {
	// Workers is the number of concurrent pipeline workers.
	Workers int `yaml:"workers"`

	// MaxRetries bounds attempts per job before dead-lettering.
	MaxRetries int `yaml:"max_retries"`

	// VisibilityTimeout is how long a dequeued job stays invisible
	// before it is considered stale and recovered.
	VisibilityTimeout time.Duration `yaml:"visibility_timeout"`
}

// LoggingConfig holds logger settings.
type LoggingConfig struct {
	Level string `yaml:"level"`
	JSON  bool   `yaml:"json"`
}

// Config is the root configuration for the meetflow service.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Redis    RedisConfig    `yaml:"redis"`
	LLM      LLMConfig      `yaml:"llm"`
	Platform PlatformConfig `yaml:"platform"`
	Pipeline PipelineConfig `yaml:"pipeline"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// Default returns a Config populated with development defaults.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			ListenAddr:  DefaultListenAddr,
			Environment: "development",
		},
		Database: DatabaseConfig{
			Host:     "localhost",
			Port:     5432,
			Database: "meetflow",
			User:     "meetflow",
			SSLMode:  "disable",
		},
		Redis: RedisConfig{
			Host: "localhost",
			Port: 6379,
		},
		LLM: LLMConfig{
			BaseURL: "https://api.openai.com",
			Model:   DefaultLLMModel,
			Timeout: DefaultLLMTimeout,
		},
		Pipeline: PipelineConfig{
			Workers:           4,
			MaxRetries:        5,
			VisibilityTimeout: 5 * time.Minute,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Load reads configuration from the given YAML file (if path is non-empty)
// and applies environment variable overrides on top of defaults.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnv overrides config values from environment variables.
// Secrets are expected to arrive this way in deployed environments.
func (c *Config) applyEnv() {
	setString(&c.Server.ListenAddr, "MEETFLOW_LISTEN_ADDR")
	setString(&c.Server.Environment, "MEETFLOW_ENV")

	setString(&c.Database.Host, "DB_HOST")
	setInt(&c.Database.Port, "DB_PORT")
	setString(&c.Database.Database, "DB_NAME")
	setString(&c.Database.User, "DB_USER")
	setString(&c.Database.Password, "DB_PASSWORD")
	setString(&c.Database.SSLMode, "DB_SSLMODE")

	setString(&c.Redis.Host, "REDIS_HOST")
	setInt(&c.Redis.Port, "REDIS_PORT")
	setString(&c.Redis.Password, "REDIS_PASSWORD")

	setString(&c.LLM.BaseURL, "LLM_BASE_URL")
	setString(&c.LLM.APIKey, "LLM_API_KEY")
	setString(&c.LLM.Model, "LLM_MODEL")

	setString(&c.Platform.APIKey, "PLATFORM_API_KEY")
	setString(&c.Platform.APISecret, "PLATFORM_API_SECRET")
	setString(&c.Platform.VideoBaseURL, "PLATFORM_VIDEO_URL")
	setString(&c.Platform.ChatBaseURL, "PLATFORM_CHAT_URL")
}

// Validate checks that required fields are present.
func (c *Config) Validate() error {
	if c.Server.ListenAddr == "" {
		return fmt.Errorf("server listen address is required")
	}
	if c.Database.Host == "" || c.Database.Database == "" {
		return fmt.Errorf("database host and name are required")
	}
	if c.Pipeline.Workers <= 0 {
		return fmt.Errorf("pipeline workers must be positive, got %d", c.Pipeline.Workers)
	}
	if c.Pipeline.MaxRetries < 0 {
		return fmt.Errorf("pipeline max retries must not be negative, got %d", c.Pipeline.MaxRetries)
	}
	return nil
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}
