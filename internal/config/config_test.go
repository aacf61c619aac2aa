package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "gridcalc.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.GreaterOrEqual(t, cfg.Workers, 1)
	assert.Equal(t, ":7070", cfg.Listen)
}

func TestLoadWithoutFile(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default().MaxAssignments, cfg.MaxAssignments)
}

func TestLoadFile(t *testing.T) {
	path := writeFile(t, `
listen: "127.0.0.1:9000"
workers: 3
max_assignments: 500
requests_per_second: 20
request_burst: 5
shutdown_timeout: 2s
logging:
  level: debug
  format: json
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "127.0.0.1:9000", cfg.Listen)
	assert.Equal(t, 3, cfg.Workers)
	assert.Equal(t, 500, cfg.MaxAssignments)
	assert.Equal(t, 20.0, cfg.RequestsPerSecond)
	assert.Equal(t, 5, cfg.RequestBurst)
	assert.Equal(t, 2*time.Second, cfg.ShutdownTimeout)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "json", cfg.Logging.Format)
	// Unset keys keep their defaults.
	assert.Equal(t, Default().MaxRangeValues, cfg.MaxRangeValues)
	assert.Equal(t, 3, cfg.Logging.MaxBackups)
}

func TestLoadEmptyFile(t *testing.T) {
	cfg, err := Load(writeFile(t, ""))
	require.NoError(t, err)
	assert.Equal(t, Default().Listen, cfg.Listen)
}

func TestLoadRejectsUnknownKeys(t *testing.T) {
	_, err := Load(writeFile(t, "listen: \":1\"\nlisten_port: 9\n"))
	assert.Error(t, err)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestApplyEnv(t *testing.T) {
	env := map[string]string{
		EnvListen:      "0.0.0.0:8000",
		EnvWorkers:     "12",
		EnvMetricsAddr: "127.0.0.1:9100",
		EnvLogLevel:    "warn",
	}
	cfg := Default()
	require.NoError(t, applyEnv(&cfg, func(k string) string { return env[k] }))

	assert.Equal(t, "0.0.0.0:8000", cfg.Listen)
	assert.Equal(t, 12, cfg.Workers)
	assert.Equal(t, "127.0.0.1:9100", cfg.MetricsAddr)
	assert.Equal(t, "warn", cfg.Logging.Level)
}

func TestApplyEnvBadWorkers(t *testing.T) {
	cfg := Default()
	err := applyEnv(&cfg, func(k string) string {
		if k == EnvWorkers {
			return "many"
		}
		return ""
	})
	assert.Error(t, err)
}

func TestLoadUsesEnvironment(t *testing.T) {
	t.Setenv(EnvListen, "127.0.0.1:7171")
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:7171", cfg.Listen)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"no listen address", func(c *Config) { c.Listen = "" }},
		{"listen without port", func(c *Config) { c.Listen = "localhost" }},
		{"zero workers", func(c *Config) { c.Workers = 0 }},
		{"tiny line limit", func(c *Config) { c.MaxLineBytes = 8 }},
		{"negative rate", func(c *Config) { c.RequestsPerSecond = -1 }},
		{"zero burst", func(c *Config) { c.RequestBurst = 0 }},
		{"negative assignment limit", func(c *Config) { c.MaxAssignments = -1 }},
		{"bad metrics address", func(c *Config) { c.MetricsAddr = "nope" }},
		{"bad log level", func(c *Config) { c.Logging.Level = "trace" }},
		{"bad log format", func(c *Config) { c.Logging.Format = "xml" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}
