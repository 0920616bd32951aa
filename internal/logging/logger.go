// Package logging defines the structured-logging interface used across the
// service, with zap and slog backed implementations.
package logging

import "context"

// Logger is a context-aware, structured logger.
//
// The variadic args are interpreted as key–value pairs, e.g.:
//
//	log.Info(ctx, "authentication finished", "username", u, "result", r)
type Logger interface {
	Debug(ctx context.Context, msg string, args ...any)
	Info(ctx context.Context, msg string, args ...any)
	Warn(ctx context.Context, msg string, args ...any)
	Error(ctx context.Context, msg string, args ...any)

	// With returns a child logger that always includes the given key–value pairs.
	With(args ...any) Logger
}

// New builds a Logger for the named backend ("zap" or "slog").
// Unknown backends fall back to zap.
func New(backend, level, format string) (Logger, error) {
	if backend == "slog" {
		return NewSlogLoggerFor(level, format), nil
	}
	return NewZapLoggerFor(level, format)
}
