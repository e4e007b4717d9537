package logger

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitWritesLogFile(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "config")
	require.NoError(t, Init(Config{ConfigDir: dir}))
	t.Cleanup(Close)

	require.NotNil(t, Logger)
	assert.Equal(t, log.WarnLevel, Logger.GetLevel())

	Info("dropped below warn")
	Warn("streak recalculation skipped", "habit", "h1")

	Close()
	data, err := os.ReadFile(filepath.Join(dir, "logs", "habitual.log"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "streak recalculation skipped")
	assert.Contains(t, string(data), "habit=h1")
	assert.NotContains(t, string(data), "dropped below warn")
}

func TestInitLevels(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
		want log.Level
	}{
		{"default", Config{}, log.WarnLevel},
		{"debug", Config{Debug: true}, log.DebugLevel},
		{"console", Config{Console: true}, log.InfoLevel},
		{"debug wins over console", Config{Debug: true, Console: true}, log.DebugLevel},
		{"explicit level wins", Config{Debug: true, Level: "error"}, log.ErrorLevel},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.cfg.ConfigDir = t.TempDir()
			require.NoError(t, Init(tt.cfg))
			t.Cleanup(Close)
			assert.Equal(t, tt.want, Logger.GetLevel())
		})
	}
}

func TestInitRejectsUnknownLevel(t *testing.T) {
	err := Init(Config{ConfigDir: t.TempDir(), Level: "chatty"})
	assert.ErrorContains(t, err, "invalid log level")
}

func TestInitJSON(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, Init(Config{ConfigDir: dir, JSON: true}))
	With("jobs").Error("recalculation failed", "habits", 3)
	Close()

	data, err := os.ReadFile(filepath.Join(dir, "logs", "habitual.log"))
	require.NoError(t, err)
	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(data), &entry))
	assert.Equal(t, "recalculation failed", entry["msg"])
	assert.Equal(t, "jobs", entry["component"])
	assert.EqualValues(t, 3, entry["habits"])
}

func TestWithAddsComponent(t *testing.T) {
	var buf bytes.Buffer
	Logger = log.NewWithOptions(&buf, log.Options{Level: log.DebugLevel})
	t.Cleanup(func() { Logger = nil })

	With("events").Info("delivered", "habit", "h1")

	assert.Contains(t, buf.String(), "component=events")
	assert.Contains(t, buf.String(), "habit=h1")
}

func TestNoopWithoutInit(t *testing.T) {
	Close()
	assert.NotPanics(t, func() {
		Debug("d")
		Info("i")
		Warn("w")
		Error("e")
		With("jobs").Warn("component")
		Close()
	})
}
