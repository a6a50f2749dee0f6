package handlers

import (
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/kumamontessori/kuma/internal/logging"
	"github.com/kumamontessori/kuma/internal/observability"
)

const (
	requestIDHeader    = "X-Request-ID"
	maxRequestIDLength = 64
)

// statusRecorder remembers what the handler wrote for the access log.
type statusRecorder struct {
	http.ResponseWriter
	status int
	bytes  int
}

func (w *statusRecorder) WriteHeader(status int) {
	if w.status == 0 {
		w.status = status
	}
	w.ResponseWriter.WriteHeader(status)
}

func (w *statusRecorder) Write(b []byte) (int, error) {
	if w.status == 0 {
		w.status = http.StatusOK
	}
	n, err := w.ResponseWriter.Write(b)
	w.bytes += n
	return n, err
}

func (w *statusRecorder) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}

func (w *statusRecorder) statusCode() int {
	if w.status == 0 {
		return http.StatusOK
	}
	return w.status
}

// RequestLogger tags the request with an ID, puts a request logger in the
// context and writes one access line when the handler returns.
func (h *Handlers) RequestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		requestID := requestIDFromRequest(r)
		w.Header().Set(requestIDHeader, requestID)

		logger := h.logger.With(
			"request_id", requestID,
			"method", r.Method,
			"path", r.URL.Path,
			"remote_ip", clientIP(r),
		)
		route := routeLabel(r)
		if route != "" {
			logger = logger.With("route", route)
		}

		ctx := logging.WithLogger(r.Context(), logger)
		rec := &statusRecorder{ResponseWriter: w}
		next.ServeHTTP(rec, r.WithContext(ctx))

		status := rec.statusCode()
		if status >= http.StatusInternalServerError {
			if route == "" {
				route = "unknown"
			}
			observability.Count(ctx, "http.server.errors", "http.route", route, "http.status_code", strconv.Itoa(status))
		}
		logger.Log(ctx, accessLogLevel(r.URL.Path, status), "request completed",
			"status", status,
			"duration_ms", time.Since(start).Milliseconds(),
			"bytes", rec.bytes,
		)
	})
}

// accessLogLevel keeps asset and probe traffic out of the info log. Server
// errors are warnings here; handlers log their cause at error level.
func accessLogLevel(path string, status int) slog.Level {
	switch {
	case status >= http.StatusInternalServerError:
		return slog.LevelWarn
	case quietPath(path):
		return slog.LevelDebug
	default:
		return slog.LevelInfo
	}
}

func quietPath(path string) bool {
	switch {
	case strings.HasPrefix(path, "/assets/"), strings.HasPrefix(path, "/uploads/"):
		return true
	case path == "/health", path == "/metrics", path == "/favicon.ico":
		return true
	default:
		return false
	}
}

// requestIDFromRequest reuses the proxy's request ID when it is short and
// printable, so it can be logged without escaping.
func requestIDFromRequest(r *http.Request) string {
	if id := strings.TrimSpace(r.Header.Get(requestIDHeader)); validRequestID(id) {
		return id
	}
	return uuid.NewString()
}

func validRequestID(id string) bool {
	if id == "" || len(id) > maxRequestIDLength {
		return false
	}
	for _, c := range id {
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9':
		case c == '-', c == '_', c == '.':
		default:
			return false
		}
	}
	return true
}

func clientIP(r *http.Request) string {
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		first, _, _ := strings.Cut(forwarded, ",")
		if ip := strings.TrimSpace(first); ip != "" {
			return ip
		}
	}
	if realIP := strings.TrimSpace(r.Header.Get("X-Real-Ip")); realIP != "" {
		return realIP
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}

// routeLabel is the mux route name, or its template for unnamed routes.
func routeLabel(r *http.Request) string {
	route := mux.CurrentRoute(r)
	if route == nil {
		return ""
	}
	if name := route.GetName(); name != "" {
		return name
	}
	if template, err := route.GetPathTemplate(); err == nil {
		return template
	}
	return ""
}
