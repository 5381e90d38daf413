package log

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/turbot/pipe-fittings/constants"
)

func TestLoggerRedactsSecrets(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(slog.LevelInfo, &buf)

	logger.Info("starting step", "step", "build", "GITHUB_TOKEN", "ghp_abcdef")

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "build", entry["step"])
	assert.Equal(t, "starting step", entry["msg"])
	assert.Equal(t, "<redacted>", entry["GITHUB_TOKEN"])
}

func TestLoggerOffWritesNothing(t *testing.T) {
	var buf bytes.Buffer
	NewLogger(constants.LogLevelOff, &buf).Error("lost")
	assert.Empty(t, buf.String())
}

func TestParseLevel(t *testing.T) {
	level, ok := ParseLevel(" Debug ")
	assert.True(t, ok)
	assert.Equal(t, slog.LevelDebug, level)

	_, ok = ParseLevel("verbose")
	assert.False(t, ok)
}

func TestLoggerLevelFromEnvironment(t *testing.T) {
	t.Setenv(EnvLogLevel, "debug")
	assert.Equal(t, slog.LevelDebug, levelFromEnv())

	t.Setenv(EnvLogLevel, "")
	assert.Equal(t, constants.LogLevelOff, levelFromEnv())
}
