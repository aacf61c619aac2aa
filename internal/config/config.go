// Package config loads the gridcalc server configuration.
//
// Settings are resolved in increasing order of precedence:
//
//  1. built-in defaults (Default)
//  2. an optional YAML file
//  3. GRIDCALC_* environment variables
//  4. command-line flags, applied by cmd/server
//
// The result is checked with Validate before use.
//
// Example file:
//
//	listen: ":7070"
//	workers: 8
//	max_assignments: 10000000
//	metrics_addr: "127.0.0.1:9100"
//	logging:
//	  level: info
//	  format: json
//	  file: /var/log/gridcalc.log
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"runtime"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Environment variables that override file settings.
const (
	EnvListen      = "GRIDCALC_LISTEN"
	EnvWorkers     = "GRIDCALC_WORKERS"
	EnvMetricsAddr = "GRIDCALC_METRICS_ADDR"
	EnvLogLevel    = "GRIDCALC_LOG_LEVEL"
)

// Config is the complete server configuration.
type Config struct {
	// Listen is the TCP address for the line protocol.
	Listen string `yaml:"listen" validate:"required,hostname_port"`
	// Workers bounds the number of connections served at once. Further
	// connections wait in the listen backlog.
	Workers int `yaml:"workers" validate:"min=1"`
	// ReusePort sets SO_REUSEPORT on the listener where supported.
	ReusePort bool `yaml:"reuse_port"`
	// MaxLineBytes is the longest request line accepted.
	MaxLineBytes int `yaml:"max_line_bytes" validate:"min=64"`
	// RequestsPerSecond limits each connection's request rate; 0 disables.
	RequestsPerSecond float64 `yaml:"requests_per_second" validate:"min=0"`
	// RequestBurst is the limiter burst size when RequestsPerSecond > 0.
	RequestBurst int `yaml:"request_burst" validate:"min=1"`
	// MaxRangeValues caps the length of one variable range; 0 disables.
	MaxRangeValues int `yaml:"max_range_values" validate:"min=0"`
	// MaxAssignments caps the merged assignments evaluated per request; 0 disables.
	MaxAssignments int `yaml:"max_assignments" validate:"min=0"`
	// MetricsAddr serves /metrics and /health over HTTP when set.
	MetricsAddr string `yaml:"metrics_addr" validate:"omitempty,hostname_port"`
	// ShutdownTimeout bounds graceful shutdown.
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" validate:"min=0"`

	Logging Logging `yaml:"logging"`
}

// Logging configures the process logger.
type Logging struct {
	Level      string `yaml:"level" validate:"oneof=debug info warn error"`
	Format     string `yaml:"format" validate:"oneof=text json"`
	File       string `yaml:"file"`
	MaxSizeMB  int    `yaml:"max_size_mb" validate:"min=0"`
	MaxBackups int    `yaml:"max_backups" validate:"min=0"`
	MaxAgeDays int    `yaml:"max_age_days" validate:"min=0"`
	Compress   bool   `yaml:"compress"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Listen:          ":7070",
		Workers:         runtime.NumCPU(),
		MaxLineBytes:    64 * 1024,
		RequestBurst:    1,
		MaxRangeValues:  1_000_000,
		MaxAssignments:  10_000_000,
		ShutdownTimeout: 5 * time.Second,
		Logging: Logging{
			Level:      "info",
			Format:     "text",
			MaxSizeMB:  100,
			MaxBackups: 3,
			MaxAgeDays: 28,
		},
	}
}

// Load returns the defaults overlaid with the YAML file at path (if path is
// non-empty) and then with the environment. It does not validate.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("read config: %w", err)
		}
		if err := decode(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	if err := applyEnv(&cfg, os.Getenv); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// decode unmarshals YAML into cfg, rejecting unknown keys.
func decode(data []byte, cfg *Config) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

func applyEnv(cfg *Config, getenv func(string) string) error {
	if v := getenv(EnvListen); v != "" {
		cfg.Listen = v
	}
	if v := getenv(EnvWorkers); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvWorkers, err)
		}
		cfg.Workers = n
	}
	if v := getenv(EnvMetricsAddr); v != "" {
		cfg.MetricsAddr = v
	}
	if v := getenv(EnvLogLevel); v != "" {
		cfg.Logging.Level = v
	}
	return nil
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks every field against its constraints.
func (c Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}
