package handlers

import (
	"net"
	"net/http"
	"net/url"
	"strings"

	"github.com/kumamontessori/kuma/internal/config"
	"github.com/kumamontessori/kuma/internal/observability"
)

// Checkout forms redirect to the hosted payment pages, so form-action must
// allow the gateways. Product images may live on any https bucket.
const contentSecurityPolicy = "default-src 'self'; " +
	"img-src 'self' data: https:; " +
	"style-src 'self'; " +
	"script-src 'self'; " +
	"connect-src 'self'; " +
	"frame-ancestors 'none'; " +
	"base-uri 'self'; " +
	"form-action 'self' https://www.mercadopago.com.ar https://sandbox.mercadopago.com.ar https://checkout.stripe.com"

// SecurityHeaders sets the headers every response carries. Admin pages and
// the JSON API are never cached.
func (h *Handlers) SecurityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		headers := w.Header()
		headers.Set("Content-Security-Policy", contentSecurityPolicy)
		headers.Set("X-Content-Type-Options", "nosniff")
		headers.Set("X-Frame-Options", "DENY")
		headers.Set("Referrer-Policy", "strict-origin-when-cross-origin")
		headers.Set("Cross-Origin-Opener-Policy", "same-origin")
		headers.Set("Permissions-Policy", "camera=(), microphone=(), geolocation=(), payment=()")
		if SecureCookiesFromConfig(h.config) {
			headers.Set("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
		}
		if isPrivatePath(r.URL.Path) {
			headers.Set("Cache-Control", "no-store")
		}

		next.ServeHTTP(w, r)
	})
}

func isPrivatePath(path string) bool {
	return path == adminHomePath ||
		strings.HasPrefix(path, adminHomePath+"/") ||
		strings.HasPrefix(path, loginPath) ||
		strings.HasPrefix(path, "/api/")
}

// RequireSameOrigin blocks cross-site form posts. Cart forms, checkout and
// the admin all sit behind it; gateway webhooks do not.
func (h *Handlers) RequireSameOrigin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !requestMutatesState(r.Method) {
			next.ServeHTTP(w, r)
			return
		}

		ctx := r.Context()
		observability.Count(ctx, "security.same_origin.checked")
		if reason := h.crossOriginReason(r); reason != "" {
			observability.Count(ctx, "security.same_origin.blocked", "reason", reason)
			h.loggerFromContext(ctx).Warn("blocked cross-origin request",
				"reason", reason,
				"origin", r.Header.Get("Origin"),
				"referer", r.Header.Get("Referer"),
			)
			http.Error(w, "Forbidden", http.StatusForbidden)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// crossOriginReason returns why r does not come from this site, or "" when
// it does. Origin wins over Referer; a request with neither is rejected.
func (h *Handlers) crossOriginReason(r *http.Request) string {
	allowed := allowedRequestHosts(h.config, r)

	if origin := strings.TrimSpace(r.Header.Get("Origin")); origin != "" {
		if origin == "null" || !hostAllowed(origin, allowed) {
			return "invalid_origin"
		}
		return ""
	}
	if referer := strings.TrimSpace(r.Header.Get("Referer")); referer != "" {
		if !hostAllowed(referer, allowed) {
			return "invalid_referer"
		}
		return ""
	}
	return "missing_origin_and_referer"
}

func requestMutatesState(method string) bool {
	switch method {
	case http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
		return true
	default:
		return false
	}
}

func hostAllowed(rawURL string, allowed map[string]struct{}) bool {
	parsed, err := url.Parse(rawURL)
	if err != nil || parsed.Hostname() == "" {
		return false
	}
	_, ok := allowed[strings.ToLower(parsed.Hostname())]
	return ok
}

// allowedRequestHosts is the request host plus the configured site host,
// so the store works both behind a proxy and on its public name.
func allowedRequestHosts(cfg *config.Config, r *http.Request) map[string]struct{} {
	hosts := map[string]struct{}{}
	if host := normalizeHost(r.Host); host != "" {
		hosts[host] = struct{}{}
	}
	if cfg != nil {
		if parsed, err := url.Parse(strings.TrimSpace(cfg.BaseURL)); err == nil && parsed.Hostname() != "" {
			hosts[strings.ToLower(parsed.Hostname())] = struct{}{}
		}
	}
	return hosts
}

func normalizeHost(hostport string) string {
	hostport = strings.TrimSpace(hostport)
	if host, _, err := net.SplitHostPort(hostport); err == nil {
		hostport = host
	}
	return strings.ToLower(hostport)
}
