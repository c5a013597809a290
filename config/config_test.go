package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	assert.Equal(t, DefaultListenAddr, cfg.Server.ListenAddr)
	assert.Equal(t, "development", cfg.Server.Environment)
	assert.Equal(t, 5432, cfg.Database.Port)
	assert.Equal(t, "localhost:6379", cfg.Redis.Addr())
	assert.Equal(t, DefaultLLMModel, cfg.LLM.Model)
	assert.Equal(t, 4, cfg.Pipeline.Workers)
	assert.Equal(t, 5, cfg.Pipeline.MaxRetries)
	require.NoError(t, cfg.Validate())
}

func TestLoad_YAMLFile(t *testing.T) {
	content := `
server:
  listen_addr: ":9090"
  environment: production
  with_worker: true
database:
  host: db.internal
  database: meetings
pipeline:
  workers: 8
  visibility_timeout: 10m
logging:
  level: debug
  json: true
`
	path := filepath.Join(t.TempDir(), "meetflow.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.Server.ListenAddr)
	assert.Equal(t, "production", cfg.Server.Environment)
	assert.True(t, cfg.Server.WithWorker)
	assert.Equal(t, "db.internal", cfg.Database.Host)
	assert.Equal(t, 8, cfg.Pipeline.Workers)
	assert.Equal(t, 10*time.Minute, cfg.Pipeline.VisibilityTimeout)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.True(t, cfg.Logging.JSON)

	// Untouched values keep their defaults.
	assert.Equal(t, 5432, cfg.Database.Port)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("MEETFLOW_LISTEN_ADDR", ":7070")
	t.Setenv("DB_PASSWORD", "hunter2")
	t.Setenv("REDIS_HOST", "redis.internal")
	t.Setenv("PLATFORM_API_SECRET", "top-secret")
	t.Setenv("LLM_MODEL", "gpt-4o-mini")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, ":7070", cfg.Server.ListenAddr)
	assert.Equal(t, "hunter2", cfg.Database.Password)
	assert.Equal(t, "redis.internal:6379", cfg.Redis.Addr())
	assert.Equal(t, "top-secret", cfg.Platform.APISecret)
	assert.Equal(t, "gpt-4o-mini", cfg.LLM.Model)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load("/nonexistent/meetflow.yaml")
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"empty listen addr", func(c *Config) { c.Server.ListenAddr = "" }},
		{"missing db host", func(c *Config) { c.Database.Host = "" }},
		{"zero workers", func(c *Config) { c.Pipeline.Workers = 0 }},
		{"negative retries", func(c *Config) { c.Pipeline.MaxRetries = -1 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}
