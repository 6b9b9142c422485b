package logger

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    slog.Level
		wantErr bool
	}{
		{"debug", slog.LevelDebug, false},
		{"DEBUG", slog.LevelDebug, false},
		{"info", slog.LevelInfo, false},
		{"", slog.LevelInfo, false},
		{"warn", slog.LevelWarn, false},
		{"WARNING", slog.LevelWarn, false},
		{"error", slog.LevelError, false},
		{" Error ", slog.LevelError, false},
		{"verbose", slog.LevelInfo, true},
	}

	for _, tt := range tests {
		got, err := ParseLevel(tt.in)
		if tt.wantErr {
			assert.Error(t, err, "input %q", tt.in)
			continue
		}
		require.NoError(t, err, "input %q", tt.in)
		assert.Equal(t, tt.want, got, "input %q", tt.in)
	}
}

func TestInitTextFormat(t *testing.T) {
	var buf bytes.Buffer
	Init(slog.LevelInfo, &buf, "text")

	slog.Info("hello", "key", "value")
	out := buf.String()
	assert.Contains(t, out, "hello")
	assert.Contains(t, out, "key=value")
}

func TestInitJSONFormat(t *testing.T) {
	var buf bytes.Buffer
	Init(slog.LevelInfo, &buf, "json")

	slog.Info("structured", "component", "test")

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "structured", entry["msg"])
	assert.Equal(t, "test", entry["component"])
}

func TestInitLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	Init(slog.LevelWarn, &buf, "text")

	slog.Info("suppressed")
	slog.Warn("visible")

	out := buf.String()
	assert.NotContains(t, out, "suppressed")
	assert.Contains(t, out, "visible")
}

func TestWarnLevelLabel(t *testing.T) {
	var buf bytes.Buffer
	Init(slog.LevelDebug, &buf, "json")

	slog.Warn("careful")

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "WARN", entry["level"])
}

func TestInitUnknownFormatFallsBackToText(t *testing.T) {
	var buf bytes.Buffer
	Init(slog.LevelInfo, &buf, "xml")

	slog.Info("still logged")
	assert.Contains(t, buf.String(), "still logged")
}

func TestGetLoggerInitializesDefault(t *testing.T) {
	mu.Lock()
	defaultLogger = nil
	mu.Unlock()

	lg := GetLogger()
	require.NotNil(t, lg)
	assert.Same(t, lg, GetLogger())
}

func TestOpenLogFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "docent.log")

	f, cleanup, err := OpenLogFile(path)
	require.NoError(t, err)
	require.NotNil(t, f)
	t.Cleanup(cleanup)

	_, err = f.WriteString("first line\n")
	require.NoError(t, err)

	// Append mode: reopening must not truncate.
	f2, cleanup2, err := OpenLogFile(path)
	require.NoError(t, err)
	t.Cleanup(cleanup2)
	_, err = f2.WriteString("second line\n")
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "first line")
	assert.Contains(t, string(data), "second line")
}

func TestOpenLogFileBadPath(t *testing.T) {
	_, _, err := OpenLogFile(filepath.Join(t.TempDir(), "missing", "dir", "x.log"))
	assert.Error(t, err)
}
