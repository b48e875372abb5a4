package logging

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"calltrace/internal/config"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestNopWithoutFile(t *testing.T) {
	logger, err := New(config.LoggingConfig{Level: "debug"})
	require.NoError(t, err)
	require.False(t, logger.Core().Enabled(zap.ErrorLevel))
}

func TestWritesToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "calltrace.log")
	logger, err := New(config.LoggingConfig{Level: "warn", File: path})
	require.NoError(t, err)

	logger.Info("dropped")
	logger.Warn("reload failed", zap.String("path", "trace.txt"))
	require.NoError(t, logger.Sync())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 1)

	var entry map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &entry))
	require.Equal(t, "reload failed", entry["msg"])
	require.Equal(t, "trace.txt", entry["path"])
	require.Equal(t, "warn", entry["level"])
}

func TestInvalidLevel(t *testing.T) {
	_, err := New(config.LoggingConfig{Level: "chatty", File: filepath.Join(t.TempDir(), "x.log")})
	require.Error(t, err)
}

func TestUnwritableFile(t *testing.T) {
	notDir := filepath.Join(t.TempDir(), "file")
	require.NoError(t, os.WriteFile(notDir, nil, 0o644))

	_, err := New(config.LoggingConfig{Level: "info", File: filepath.Join(notDir, "x.log")})
	require.Error(t, err)
}

func TestCreatesLogDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "calltrace.log")
	logger, err := New(config.LoggingConfig{Level: "info", File: path, MaxSizeMB: 1})
	require.NoError(t, err)
	logger.Info("started")

	_, err = os.Stat(path)
	require.NoError(t, err)
}
