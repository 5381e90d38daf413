package fplog

import (
	"context"
	"os"
)

type loggerContextKey struct{}

func ContextWithLogger(ctx context.Context) context.Context {
	opts := []LoggerOption{}
	// TODO - expose color as a flag once the CLI gains a --no-color option
	opts = append(opts,
		WithLevelFromEnvironment(),
		WithFormatFromEnvironment(),
		WithColor(true),
		// stdout is reserved for command output
		WithWriter(os.Stderr),
	)
	lgr, err := NewLogger(ctx, opts...)
	if err != nil {
		panic(err)
	}

	return ContextWithFlowciLogger(ctx, lgr)
}

func ContextWithFlowciLogger(ctx context.Context, lgr *FlowciLogger) context.Context {
	// Golang context is a parent-child relationship. When we "add" a value in a context, we actually
	// create a new context with a pointer to the parent contet. When we do a ctx.Value() the code traverses the
	// parent-child relationship up. We always pass the context at the bottom of the relationship.
	return context.WithValue(ctx, loggerContextKey{}, lgr)
}

// Logger returns the logger carried by ctx, or a no-op logger when there is
// none.
func Logger(ctx context.Context) *FlowciLogger {
	if ctx == nil {
		return NewNopLogger()
	}
	if lgr, ok := ctx.Value(loggerContextKey{}).(*FlowciLogger); ok && lgr != nil {
		return lgr
	}
	return NewNopLogger()
}
