package observability

import (
	"context"

	"github.com/getsentry/sentry-go"
	"github.com/getsentry/sentry-go/attribute"
)

type meterContextKey struct{}

// WithMeter stores the request meter. Handlers attach it once per request
// with the route, client and admin attributes already set.
func WithMeter(ctx context.Context, meter sentry.Meter) context.Context {
	if meter == nil {
		meter = sentry.NewMeter(ctx)
	}
	return context.WithValue(ctx, meterContextKey{}, meter.WithCtx(ctx))
}

// MeterFromContext returns the request meter, or a bare one for work that
// runs outside a request such as jobs and CLI commands.
func MeterFromContext(ctx context.Context) sentry.Meter {
	if meter, ok := ctx.Value(meterContextKey{}).(sentry.Meter); ok && meter != nil {
		return meter.WithCtx(ctx)
	}
	return sentry.NewMeter(ctx).WithCtx(ctx)
}

// Count adds one to the named counter. labels are key/value pairs; a
// trailing key without a value is dropped.
func Count(ctx context.Context, name string, labels ...string) {
	meter := MeterFromContext(ctx)
	attrs := labelAttributes(labels)
	if len(attrs) == 0 {
		meter.Count(name, 1)
		return
	}
	meter.Count(name, 1, sentry.WithAttributes(attrs...))
}

func labelAttributes(labels []string) []attribute.Builder {
	attrs := make([]attribute.Builder, 0, len(labels)/2)
	for i := 0; i+1 < len(labels); i += 2 {
		attrs = append(attrs, attribute.String(labels[i], labels[i+1]))
	}
	return attrs
}
