package fplog

import (
	"context"
	"io"
	"os"
	"strings"

	//nolint:depguard // Wrapper for Zap
	"go.uber.org/zap"

	//nolint:depguard // Wrapper for Zap
	"go.uber.org/zap/zapcore"

	"github.com/turbot/flowci/internal/sanitize"
)

type FlowciLogger struct {

	// Level is the logging level to use for output
	Level zapcore.Level

	// Special handling for the "trace" level
	TraceLevel string

	// Format is the logging format to use for output: json or console
	Format string

	// Color is whether to use color in the console output
	Color bool

	// Writer receives the log output, stdout when unset
	Writer io.Writer

	// Zap is the Zap logger instance
	Zap   *zap.Logger
	Sugar *zap.SugaredLogger
}

// LoggerOption defines a type of function to configures the Logger.
type LoggerOption func(*FlowciLogger) error

// NewLogger creates a new Logger.
func NewLogger(ctx context.Context, opts ...LoggerOption) (*FlowciLogger, error) {
	// Defaults
	c := &FlowciLogger{
		Level:  zapcore.WarnLevel,
		Format: "console",
	}
	// Set options
	for _, opt := range opts {
		err := opt(c)
		if err != nil {
			return c, err
		}
	}

	err := c.Initialize()
	if err != nil {
		return nil, err
	}
	return c, nil
}

// NewNopLogger returns a logger that discards everything.
func NewNopLogger() *FlowciLogger {
	z := zap.NewNop()
	return &FlowciLogger{
		Level: zapcore.FatalLevel,
		Zap:   z,
		Sugar: z.Sugar(),
	}
}

func WithColor(enabled bool) LoggerOption {
	return func(c *FlowciLogger) error {
		c.Color = enabled
		return nil
	}
}

func WithWriter(w io.Writer) LoggerOption {
	return func(c *FlowciLogger) error {
		c.Writer = w
		return nil
	}
}

func WithLevel(level string) LoggerOption {
	return func(c *FlowciLogger) error {
		logLevel, err := zapcore.ParseLevel(strings.ToLower(level))
		if err != nil {
			return err
		}
		c.Level = logLevel
		return nil
	}
}

func WithLevelFromEnvironment() LoggerOption {
	return func(c *FlowciLogger) error {
		traceLevelStr := strings.ToLower(os.Getenv("FLOWCI_TRACE_LEVEL"))
		if traceLevelStr != "" {
			logLevel, err := zapcore.ParseLevel(traceLevelStr)
			if err == nil {
				c.Level = logLevel
				c.TraceLevel = traceLevelStr
			}
			return nil
		}

		// Get the desired logging level from the FLOWCI_LOG_LEVEL environment variable
		logLevelStr := strings.ToLower(os.Getenv("FLOWCI_LOG_LEVEL"))
		if logLevelStr == "" || logLevelStr == "off" {
			// Default to warn
			logLevelStr = "warn"
		}

		logLevel, err := zapcore.ParseLevel(logLevelStr)
		if err == nil {
			c.Level = logLevel
		}
		return nil
	}
}

func WithFormatFromEnvironment() LoggerOption {
	return func(c *FlowciLogger) error {
		// Get the desired logging format from the FLOWCI_LOG_FORMAT environment variable
		logFormat := strings.ToLower(os.Getenv("FLOWCI_LOG_FORMAT"))
		switch logFormat {
		case "json", "console":
			c.Format = logFormat
		}
		return nil
	}
}

func (c *FlowciLogger) Initialize() error {

	// Configure the logging output
	var encoder zapcore.Encoder
	if c.Format == "json" {
		encoder = zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig())
	} else {
		ec := zap.NewDevelopmentEncoderConfig()
		if c.Color {
			ec.EncodeLevel = zapcore.CapitalColorLevelEncoder
		}
		encoder = zapcore.NewConsoleEncoder(ec)
	}

	var sink zapcore.WriteSyncer
	if c.Writer != nil {
		sink = zapcore.AddSync(c.Writer)
	} else {
		sink = zapcore.Lock(os.Stdout)
	}

	atomicLevel := zap.NewAtomicLevelAt(c.Level)

	c.Zap = zap.New(zapcore.NewCore(encoder, sink, atomicLevel))
	c.Sugar = c.Zap.Sugar()

	return nil
}

// With returns a child logger that adds keysAndValues to every entry.
func (c *FlowciLogger) With(keysAndValues ...interface{}) *FlowciLogger {
	child := *c
	child.Sugar = c.Sugar.With(sanitize.SanitizeLogEntries(keysAndValues)...)
	child.Zap = child.Sugar.Desugar()
	return &child
}

func (c *FlowciLogger) Sync() error {
	return c.Zap.Sync()
}

func (c *FlowciLogger) Error(msg string, keysAndValues ...interface{}) {
	sanitizedKeysAndValues := sanitize.SanitizeLogEntries(keysAndValues)
	c.Sugar.Errorw(msg, sanitizedKeysAndValues...)
}

func (c *FlowciLogger) Warn(msg string, keysAndValues ...interface{}) {
	sanitizedKeysAndValues := sanitize.SanitizeLogEntries(keysAndValues)
	c.Sugar.Warnw(msg, sanitizedKeysAndValues...)
}

func (c *FlowciLogger) Info(msg string, keysAndValues ...interface{}) {
	sanitizedKeysAndValues := sanitize.SanitizeLogEntries(keysAndValues)
	c.Sugar.Infow(msg, sanitizedKeysAndValues...)
}

func (c *FlowciLogger) Debug(msg string, keysAndValues ...interface{}) {
	sanitizedKeysAndValues := sanitize.SanitizeLogEntries(keysAndValues)
	c.Sugar.Debugw(msg, sanitizedKeysAndValues...)
}

func (c *FlowciLogger) Trace(msg string, keysAndValues ...interface{}) {
	if c.TraceLevel != "" {
		sanitizedKeysAndValues := sanitize.SanitizeLogEntries(keysAndValues)
		msg = "**** " + msg
		switch c.TraceLevel {
		case "debug":
			c.Sugar.Debugw(msg, sanitizedKeysAndValues...)
		case "info":
			c.Sugar.Infow(msg, sanitizedKeysAndValues...)
		case "warn":
			c.Sugar.Warnw(msg, sanitizedKeysAndValues...)
		}
	}
}
