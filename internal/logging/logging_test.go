package logging

import (
	"bufio"
	"bytes"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
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
		{"INFO", slog.LevelInfo, false},
		{"", slog.LevelInfo, false},
		{"warn", slog.LevelWarn, false},
		{"warning", slog.LevelWarn, false},
		{" error ", slog.LevelError, false},
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

func TestConfigValidate(t *testing.T) {
	assert.NoError(t, DefaultConfig().Validate())
	assert.Error(t, Config{Level: "loud", Format: FormatText}.Validate())
	assert.Error(t, Config{Level: "info", Format: "xml"}.Validate())
}

func TestNew_JSONConsoleRespectsLevel(t *testing.T) {
	var buf bytes.Buffer
	config := DefaultConfig()
	config.Format = FormatJSON
	config.Level = "warn"

	logger, closeFn, err := New(config, &buf)
	require.NoError(t, err)
	defer closeFn()

	logger.Info("hidden")
	logger.Warn("job stderr", "job", "backup")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 1)

	var record map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &record))
	assert.Equal(t, "job stderr", record["msg"])
	assert.Equal(t, "backup", record["job"])
	assert.Equal(t, "WARN", record["level"])
}

func TestNew_TextConsoleWithoutColor(t *testing.T) {
	var buf bytes.Buffer
	config := DefaultConfig()
	config.Color = false

	logger, _, err := New(config, &buf)
	require.NoError(t, err)

	logger.Info("job finished", "job", "report")

	out := buf.String()
	assert.Contains(t, out, "job finished")
	assert.Contains(t, out, "job=report")
	assert.NotContains(t, out, "\x1b[", "expected no ANSI escapes")
}

func TestNew_FileReceivesDebug(t *testing.T) {
	var buf bytes.Buffer
	path := filepath.Join(t.TempDir(), "cronexec.log")
	config := DefaultConfig()
	config.Color = false
	config.File = path

	logger, closeFn, err := New(config, &buf)
	require.NoError(t, err)

	logger.With("component", "scheduler").Debug("job stdout", "output", "hello")
	logger.Info("job finished")
	require.NoError(t, closeFn())

	assert.NotContains(t, buf.String(), "job stdout", "console is at info level")

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	var messages []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var record map[string]any
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &record))
		messages = append(messages, record["msg"].(string))
		if record["msg"] == "job stdout" {
			assert.Equal(t, "scheduler", record["component"])
		}
	}
	assert.Equal(t, []string{"job stdout", "job finished"}, messages)
}

func TestNew_InvalidConfig(t *testing.T) {
	_, _, err := New(Config{Level: "nope"}, &bytes.Buffer{})
	assert.Error(t, err)

	_, _, err = New(Config{Level: "info", Format: "xml"}, &bytes.Buffer{})
	assert.Error(t, err)
}
