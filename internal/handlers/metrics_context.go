package handlers

import (
	"net/http"

	"github.com/getsentry/sentry-go"
	"github.com/getsentry/sentry-go/attribute"

	"github.com/kumamontessori/kuma/internal/observability"
)

// MetricsContext puts a meter tagged with the route and client in the
// context. On admin and API paths the admin identity is added too; storefront
// requests never touch the session store.
func (h *Handlers) MetricsContext(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		attrs := []attribute.Builder{
			attribute.String("http.method", r.Method),
			attribute.String("network.client.ip", clientIP(r)),
		}
		if route := routeLabel(r); route != "" {
			attrs = append(attrs, attribute.String("http.route", route))
		}
		if isPrivatePath(r.URL.Path) {
			if sess := h.currentSession(r); sess != nil {
				attrs = append(attrs,
					attribute.String("user.id", sess.UserID.String()),
					attribute.String("user.role", string(sess.Role)),
				)
			}
		}

		meter := sentry.NewMeter(ctx).WithCtx(ctx)
		meter.SetAttributes(attrs...)
		next.ServeHTTP(w, r.WithContext(observability.WithMeter(ctx, meter)))
	})
}
