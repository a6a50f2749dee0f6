package logging

import (
	"context"
	"io"
	"log/slog"
	"strings"

	sentryslog "github.com/getsentry/sentry-go/slog"
	"github.com/lmittmann/tint"
)

type Options struct {
	Level  slog.Level
	Format string
	Output io.Writer
	// Sentry forwards warnings as breadcrumbs and errors as events. The
	// Sentry client must already be initialized.
	Sentry bool
}

func New(opts Options) *slog.Logger {
	var console slog.Handler
	switch strings.ToLower(strings.TrimSpace(opts.Format)) {
	case "json":
		console = slog.NewJSONHandler(opts.Output, &slog.HandlerOptions{Level: opts.Level})
	default:
		console = tint.NewHandler(opts.Output, &tint.Options{Level: opts.Level})
	}

	if !opts.Sentry {
		return slog.New(Redact(console))
	}

	sentryHandler := sentryslog.Option{
		EventLevel: []slog.Level{slog.LevelError},
		LogLevel:   []slog.Level{slog.LevelWarn, slog.LevelInfo},
	}.NewSentryHandler(context.Background())
	return slog.New(Redact(Fanout(console, sentryHandler)))
}
