package logging

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"DEBUG":   slog.LevelDebug,
		"warn":    slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"info":    slog.LevelInfo,
		"":        slog.LevelInfo,
		"chatty":  slog.LevelInfo,
	}
	for in, want := range tests {
		assert.Equal(t, want, ParseLevel(in), "ParseLevel(%q)", in)
	}
}

func TestDebugFromEnv(t *testing.T) {
	t.Setenv(EnvDebug, "1")
	assert.True(t, DebugFromEnv())
	t.Setenv(EnvDebug, "off")
	assert.False(t, DebugFromEnv())
}

func TestNew_FiltersByLevel(t *testing.T) {
	var buf bytes.Buffer
	log := New(&buf, slog.LevelInfo)
	log.Debug("hidden")
	log.Info("agent created", "id", "cwt-20260101-abcd")

	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "id=cwt-20260101-abcd")
}

func TestSetup(t *testing.T) {
	prev := slog.Default()
	defer slog.SetDefault(prev)

	path := filepath.Join(t.TempDir(), ".cwt", File)
	closer, err := Setup(path, slog.LevelDebug)
	require.NoError(t, err)

	slog.Debug("session started", "id", "main")
	require.NoError(t, closer.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "session started")
	assert.Contains(t, string(data), "id=main")
}
