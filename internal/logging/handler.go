package logging

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
)

const redacted = "[redacted]"

// Attribute keys whose values never reach a sink.
var sensitiveKeys = map[string]struct{}{
	"access_token":  {},
	"authorization": {},
	"cookie":        {},
	"password":      {},
	"receipt":       {},
	"secret":        {},
	"token":         {},
	"x-signature":   {},
}

// Fanout sends each record to every handler that accepts its level. Nil
// handlers are skipped.
func Fanout(handlers ...slog.Handler) slog.Handler {
	f := fanout{}
	for _, handler := range handlers {
		if handler != nil {
			f.handlers = append(f.handlers, handler)
		}
	}
	if len(f.handlers) == 0 {
		return slog.NewTextHandler(io.Discard, nil)
	}
	if len(f.handlers) == 1 {
		return f.handlers[0]
	}
	return f
}

type fanout struct {
	handlers []slog.Handler
}

func (f fanout) Enabled(ctx context.Context, level slog.Level) bool {
	for _, handler := range f.handlers {
		if handler.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

func (f fanout) Handle(ctx context.Context, record slog.Record) error {
	var errs []error
	for _, handler := range f.handlers {
		if handler.Enabled(ctx, record.Level) {
			errs = append(errs, handler.Handle(ctx, record.Clone()))
		}
	}
	return errors.Join(errs...)
}

func (f fanout) WithAttrs(attrs []slog.Attr) slog.Handler {
	return f.each(func(h slog.Handler) slog.Handler { return h.WithAttrs(attrs) })
}

func (f fanout) WithGroup(name string) slog.Handler {
	return f.each(func(h slog.Handler) slog.Handler { return h.WithGroup(name) })
}

func (f fanout) each(fn func(slog.Handler) slog.Handler) fanout {
	next := fanout{handlers: make([]slog.Handler, len(f.handlers))}
	for i, handler := range f.handlers {
		next.handlers[i] = fn(handler)
	}
	return next
}

// Redact masks sensitive attributes, including ones nested in groups,
// before next sees them.
func Redact(next slog.Handler) slog.Handler {
	return redactHandler{next: next}
}

type redactHandler struct {
	next slog.Handler
}

func (h redactHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.next.Enabled(ctx, level)
}

func (h redactHandler) Handle(ctx context.Context, record slog.Record) error {
	clean := slog.NewRecord(record.Time, record.Level, record.Message, record.PC)
	record.Attrs(func(attr slog.Attr) bool {
		clean.AddAttrs(redactAttr(attr))
		return true
	})
	return h.next.Handle(ctx, clean)
}

func (h redactHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return redactHandler{next: h.next.WithAttrs(redactAttrs(attrs))}
}

func (h redactHandler) WithGroup(name string) slog.Handler {
	return redactHandler{next: h.next.WithGroup(name)}
}

func redactAttrs(attrs []slog.Attr) []slog.Attr {
	out := make([]slog.Attr, len(attrs))
	for i, attr := range attrs {
		out[i] = redactAttr(attr)
	}
	return out
}

func redactAttr(attr slog.Attr) slog.Attr {
	if _, ok := sensitiveKeys[strings.ToLower(attr.Key)]; ok {
		return slog.String(attr.Key, redacted)
	}
	attr.Value = attr.Value.Resolve()
	if attr.Value.Kind() == slog.KindGroup {
		return slog.Attr{Key: attr.Key, Value: slog.GroupValue(redactAttrs(attr.Value.Group())...)}
	}
	return attr
}
