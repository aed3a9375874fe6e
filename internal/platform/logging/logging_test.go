package logging

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	tmpDir := t.TempDir()

	logger, err := New(Config{
		Level:    "debug",
		Dir:      tmpDir,
		Filename: "test.log",
	})
	require.NoError(t, err)
	require.NotNil(t, logger)

	assert.NoError(t, logger.Close())
}

func TestNew_ConsoleOnly(t *testing.T) {
	logger, err := New(Config{Level: "info"})
	require.NoError(t, err)
	assert.NoError(t, logger.Close())
}

func TestLogger_WritesToFile(t *testing.T) {
	tmpDir := t.TempDir()

	logger, err := New(Config{
		Level:    "debug",
		Dir:      tmpDir,
		Filename: "test.log",
	})
	require.NoError(t, err)

	logger.Info("session %s confirmed", "S1")
	logger.Warn("emit deferred until connect")
	require.NoError(t, logger.Close())

	data, err := os.ReadFile(filepath.Join(tmpDir, "test.log"))
	require.NoError(t, err)
	content := string(data)
	assert.True(t, strings.Contains(content, "session S1 confirmed"))
	assert.True(t, strings.Contains(content, "emit deferred until connect"))
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"INFO", slog.LevelInfo},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"", slog.LevelInfo},
		{"bogus", slog.LevelInfo},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, parseLevel(tt.in), tt.in)
	}
}
