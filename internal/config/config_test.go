package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"secevents/internal/domain"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoad_ExpandsEnvAndAppliesDefaults(t *testing.T) {
	t.Setenv("SECEVENTS_TEST_TOKEN", "s3cr3t")
	path := writeConfig(t, `
profile: prod
api:
  base_url: https://api.example.com
  token: ${SECEVENTS_TEST_TOKEN}
  page_size: 100
sink:
  kafka:
    topic: security.alerts
sync:
  interval: 1m
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "prod", cfg.Profile)
	assert.Equal(t, "s3cr3t", cfg.API.Token)
	assert.Equal(t, 100, cfg.API.PageSize)
	assert.Equal(t, 30*time.Second, cfg.API.Timeout)
	assert.Equal(t, 3, cfg.API.Retry.MaxAttempts)
	assert.Equal(t, time.Minute, cfg.Sync.Interval)
	assert.Equal(t, "security.alerts", cfg.Sink.Kafka.Topic)
	assert.Equal(t, "secevents", cfg.Sink.NATS.Subject)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.True(t, strings.HasPrefix(cfg.Checkpoint.URL, "file://"))
	assert.True(t, strings.HasSuffix(cfg.Checkpoint.URL, "/.secevents/checkpoints/prod"))
	assert.NoError(t, cfg.Validate())
}

func TestLoad_MissingFileGivesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "default", cfg.Profile)
	assert.Equal(t, 500, cfg.API.PageSize)
	assert.NoError(t, cfg.Validate())
}

func TestLoad_InvalidYAML(t *testing.T) {
	_, err := Load(writeConfig(t, "api: [unclosed"))
	assert.ErrorIs(t, err, domain.ErrConfiguration)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"bad base url", func(c *Config) { c.API.BaseURL = "not a url" }, "api.base_url"},
		{"zero page size", func(c *Config) { c.API.PageSize = 0 }, "api.page_size"},
		{"backoff order", func(c *Config) { c.API.Retry.InitialBackoff = time.Hour }, "initial_backoff"},
		{"checkpoint scheme", func(c *Config) { c.Checkpoint.URL = "/var/lib/cp" }, "checkpoint.url"},
		{"log level", func(c *Config) { c.LogLevel = "verbose" }, "log_level"},
		{"kafka topic", func(c *Config) { c.Sink.Kafka.Topic = "bad topic" }, "sink.kafka.topic"},
		{"nats wildcard", func(c *Config) { c.Sink.NATS.Subject = "events.>" }, "sink.nats.subject"},
		{"ops addr", func(c *Config) { c.Ops.Addr = "9090" }, "ops.addr"},
		{"sample ratio", func(c *Config) { c.Tracing.SampleRatio = 2 }, "sample_ratio"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{}
			cfg.setDefaults()
			tt.mutate(cfg)

			err := cfg.Validate()
			require.Error(t, err)
			assert.ErrorIs(t, err, domain.ErrConfiguration)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestValidate_OpsAddr(t *testing.T) {
	cfg := &Config{Ops: OpsConfig{Addr: ":9090"}}
	cfg.setDefaults()
	assert.NoError(t, cfg.Validate())
}
