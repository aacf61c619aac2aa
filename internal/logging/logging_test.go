package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dreamware/gridcalc/internal/config"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    slog.Level
		wantErr bool
	}{
		{"debug", slog.LevelDebug, false},
		{"", slog.LevelInfo, false},
		{"INFO", slog.LevelInfo, false},
		{"warning", slog.LevelWarn, false},
		{"error", slog.LevelError, false},
		{"trace", slog.LevelInfo, true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseLevel(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNewJSONFiltersByLevel(t *testing.T) {
	var buf bytes.Buffer
	logger, closer, err := New(config.Logging{Level: "warn", Format: "json"}, &buf)
	require.NoError(t, err)
	defer closer.Close()

	logger.Info("hidden")
	logger.Warn("shown", "conn", "abc")

	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	assert.Equal(t, "shown", rec["msg"])
	assert.Equal(t, "abc", rec["conn"])
	assert.Equal(t, "WARN", rec["level"])
}

func TestNewText(t *testing.T) {
	var buf bytes.Buffer
	logger, closer, err := New(config.Logging{Level: "info", Format: "text"}, &buf)
	require.NoError(t, err)
	defer closer.Close()

	logger.Info("listening", "addr", ":7070")
	assert.Contains(t, buf.String(), "msg=listening")
	assert.Contains(t, buf.String(), "addr=:7070")
}

func TestNewWritesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "gridcalc.log")
	var buf bytes.Buffer
	logger, closer, err := New(config.Logging{
		Level:     "info",
		Format:    "json",
		File:      path,
		MaxSizeMB: 1,
	}, &buf)
	require.NoError(t, err)

	logger.Info("to both")
	require.NoError(t, closer.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "to both")
	assert.Contains(t, buf.String(), "to both")
}

func TestNewRejectsBadConfig(t *testing.T) {
	_, _, err := New(config.Logging{Level: "loud"}, &bytes.Buffer{})
	assert.Error(t, err)

	_, _, err = New(config.Logging{Level: "info", Format: "xml"}, &bytes.Buffer{})
	assert.Error(t, err)
}

func TestDiscard(t *testing.T) {
	assert.False(t, Discard().Enabled(t.Context(), slog.LevelError))
}
