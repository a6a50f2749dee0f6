// Package logging builds the process logger and carries request-scoped
// loggers through contexts.
package logging

import (
	"context"
	"log/slog"
)

type loggerKey struct{}

var discard = slog.New(slog.DiscardHandler)

// WithLogger returns a copy of ctx carrying logger. A nil logger is stored
// as a discarding one so lookups never return nil.
func WithLogger(ctx context.Context, logger *slog.Logger) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	if logger == nil {
		logger = discard
	}
	return context.WithValue(ctx, loggerKey{}, logger)
}

// FromContext prefers the request logger, then fallback.
func FromContext(ctx context.Context, fallback *slog.Logger) *slog.Logger {
	if ctx != nil {
		if logger, _ := ctx.Value(loggerKey{}).(*slog.Logger); logger != nil {
			return logger
		}
	}
	if fallback != nil {
		return fallback
	}
	return discard
}

// With stores the context logger, or fallback, extended with args.
func With(ctx context.Context, fallback *slog.Logger, args ...any) context.Context {
	return WithLogger(ctx, FromContext(ctx, fallback).With(args...))
}
