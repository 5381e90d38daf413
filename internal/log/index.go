package log

import (
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/turbot/pipe-fittings/constants"

	"github.com/turbot/flowci/internal/sanitize"
)

// EnvLogLevel selects the diagnostic log level. Logging is off unless it is
// set, so stderr only carries step output by default.
const EnvLogLevel = "FLOWCI_LOG_LEVEL"

var levels = map[string]slog.Leveler{
	"trace": constants.LogLevelTrace,
	"debug": slog.LevelDebug,
	"info":  slog.LevelInfo,
	"warn":  slog.LevelWarn,
	"error": slog.LevelError,
	"off":   constants.LogLevelOff,
}

// ParseLevel maps a level name to a slog level. Unknown names return false.
func ParseLevel(name string) (slog.Leveler, bool) {
	level, ok := levels[strings.ToLower(strings.TrimSpace(name))]
	return level, ok
}

// NewLogger returns a json logger writing to w. Attribute values pass through
// the active sanitizer, so env vars and secrets never reach the log.
func NewLogger(level slog.Leveler, w io.Writer) *slog.Logger {
	if level == constants.LogLevelOff {
		return slog.New(slog.NewJSONHandler(io.Discard, nil))
	}

	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level:       level,
		ReplaceAttr: redactAttr,
	}))
}

func redactAttr(_ []string, a slog.Attr) slog.Attr {
	switch a.Key {
	case slog.TimeKey, slog.LevelKey, slog.MessageKey:
		return a
	}
	return slog.Any(a.Key, sanitize.Instance().SanitizeKeyValue(a.Key, a.Value.Any()))
}

// SetDefaultLogger installs a stderr logger at the level named by
// FLOWCI_LOG_LEVEL. It is called again once the config file is read.
func SetDefaultLogger() {
	slog.SetDefault(NewLogger(levelFromEnv(), os.Stderr))
}

func levelFromEnv() slog.Leveler {
	if level, ok := ParseLevel(os.Getenv(EnvLogLevel)); ok {
		return level
	}
	return constants.LogLevelOff
}
