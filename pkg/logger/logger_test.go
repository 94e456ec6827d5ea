package logger_test

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	. "extjob/pkg/logger"
)

func TestNew_WritesJSONToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "reporter.log")
	l, err := New(Config{Level: "info", Encoding: "json", OutputPath: path, Service: "extjob-test"})
	require.NoError(t, err)

	l.Debug("dropped")
	l.Info("build result posted")
	require.NoError(t, l.Sync())

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var entry map[string]any
	require.NoError(t, json.Unmarshal(data, &entry))
	assert.Equal(t, "build result posted", entry["message"])
	assert.Equal(t, "info", entry["level"])
	assert.Equal(t, "extjob-test", entry["service"])
}

func TestNew_RejectsUnknownLevel(t *testing.T) {
	_, err := New(Config{Level: "chatty"})
	assert.Error(t, err)
}

func TestNew_RejectsUnknownEncoding(t *testing.T) {
	_, err := New(Config{Encoding: "xml"})
	assert.Error(t, err)
}

func TestGet_FallsBackToDefaults(t *testing.T) {
	assert.NotNil(t, Get())
}

func TestInit_ReplacesGlobal(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Encoding = "console"

	l, err := Init(cfg)
	require.NoError(t, err)
	assert.Same(t, l, Get())
}
