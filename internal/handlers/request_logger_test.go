package handlers

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/kumamontessori/kuma/internal/logging"
)

func TestValidRequestID(t *testing.T) {
	t.Parallel()

	tests := []struct {
		id   string
		want bool
	}{
		{id: "5f0c6d9e-1f7a-4c1b-9a57-5c1f0b1a2b3c", want: true},
		{id: "lb.edge_01", want: true},
		{id: "", want: false},
		{id: "id with spaces", want: false},
		{id: "line\nbreak", want: false},
		{id: strings.Repeat("a", maxRequestIDLength+1), want: false},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.id, func(t *testing.T) {
			t.Parallel()
			if got := validRequestID(tc.id); got != tc.want {
				t.Fatalf("validRequestID(%q) = %v, want %v", tc.id, got, tc.want)
			}
		})
	}
}

func TestAccessLogLevel(t *testing.T) {
	t.Parallel()

	tests := []struct {
		path   string
		status int
		want   slog.Level
	}{
		{path: "/productos", status: http.StatusOK, want: slog.LevelInfo},
		{path: "/carrito/agregar", status: http.StatusBadRequest, want: slog.LevelInfo},
		{path: "/assets/css/app.css", status: http.StatusOK, want: slog.LevelDebug},
		{path: "/health", status: http.StatusOK, want: slog.LevelDebug},
		{path: "/health", status: http.StatusServiceUnavailable, want: slog.LevelWarn},
		{path: "/checkout", status: http.StatusInternalServerError, want: slog.LevelWarn},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.path, func(t *testing.T) {
			t.Parallel()
			if got := accessLogLevel(tc.path, tc.status); got != tc.want {
				t.Fatalf("accessLogLevel(%q, %d) = %v, want %v", tc.path, tc.status, got, tc.want)
			}
		})
	}
}

func TestRequestLogger(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	h := &Handlers{logger: slog.New(slog.NewJSONHandler(&buf, nil))}
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		logging.FromContext(r.Context(), nil).Info("inside handler")
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte("ok"))
	})

	req := httptest.NewRequest(http.MethodPost, "/checkout", nil)
	req.Header.Set(requestIDHeader, "edge-42")
	req.Header.Set("X-Forwarded-For", "203.0.113.7, 10.0.0.1")
	rec := httptest.NewRecorder()
	h.RequestLogger(next).ServeHTTP(rec, req)

	if got := rec.Header().Get(requestIDHeader); got != "edge-42" {
		t.Fatalf("unexpected request id header: %q", got)
	}

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected the handler line and the access line, got %q", buf.String())
	}
	for _, line := range lines {
		var record map[string]any
		if err := json.Unmarshal([]byte(line), &record); err != nil {
			t.Fatalf("invalid json log %q: %v", line, err)
		}
		if record["request_id"] != "edge-42" || record["remote_ip"] != "203.0.113.7" {
			t.Fatalf("record is missing request attributes: %v", record)
		}
	}

	var access map[string]any
	if err := json.Unmarshal([]byte(lines[1]), &access); err != nil {
		t.Fatalf("invalid json log: %v", err)
	}
	if access["msg"] != "request completed" || access["status"] != float64(http.StatusCreated) || access["bytes"] != float64(2) {
		t.Fatalf("unexpected access record: %v", access)
	}
}

func TestRequestLogger_ReplacesUnsafeRequestID(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	h := &Handlers{logger: slog.New(slog.NewJSONHandler(&buf, nil))}
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(requestIDHeader, "bad id\r\nforged: 1")
	rec := httptest.NewRecorder()
	h.RequestLogger(http.NotFoundHandler()).ServeHTTP(rec, req)

	got := rec.Header().Get(requestIDHeader)
	if got == "" || strings.ContainsAny(got, " \r\n") {
		t.Fatalf("unexpected request id: %q", got)
	}
}
