package handlers

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/kumamontessori/kuma/internal/config"
)

func TestRequireSameOrigin(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		method  string
		origin  string
		referer string
		status  int
	}{
		{name: "matching origin", method: http.MethodPost, origin: "https://kuma.example", status: http.StatusNoContent},
		{name: "public host with port", method: http.MethodPost, origin: "https://kuma.example:443", status: http.StatusNoContent},
		{name: "matching referer", method: http.MethodPost, referer: "https://kuma.example/carrito", status: http.StatusNoContent},
		{name: "request host", method: http.MethodPost, origin: "http://internal.kuma:8080", status: http.StatusNoContent},
		{name: "missing origin and referer", method: http.MethodPost, status: http.StatusForbidden},
		{name: "cross origin", method: http.MethodPost, origin: "https://attacker.example", status: http.StatusForbidden},
		{name: "opaque origin", method: http.MethodPost, origin: "null", referer: "https://kuma.example/", status: http.StatusForbidden},
		{name: "origin wins over referer", method: http.MethodPut, origin: "https://attacker.example", referer: "https://kuma.example/", status: http.StatusForbidden},
		{name: "cross referer", method: http.MethodDelete, referer: "https://attacker.example/kuma.example", status: http.StatusForbidden},
		{name: "read only", method: http.MethodGet, origin: "https://attacker.example", status: http.StatusNoContent},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			h := &Handlers{config: &config.Config{BaseURL: "https://kuma.example"}}
			next := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(http.StatusNoContent)
			})

			req := httptest.NewRequest(tc.method, "http://internal.kuma:8080/carrito/agregar", nil)
			if tc.origin != "" {
				req.Header.Set("Origin", tc.origin)
			}
			if tc.referer != "" {
				req.Header.Set("Referer", tc.referer)
			}
			rec := httptest.NewRecorder()
			h.RequireSameOrigin(next).ServeHTTP(rec, req)

			if rec.Code != tc.status {
				t.Fatalf("unexpected status: got=%d want=%d", rec.Code, tc.status)
			}
		})
	}
}

func TestSecurityHeaders(t *testing.T) {
	t.Parallel()

	tests := []struct {
		path    string
		baseURL string
		noStore bool
		hsts    bool
	}{
		{path: "/productos", baseURL: "https://kuma.example", hsts: true},
		{path: "/admin", baseURL: "https://kuma.example", noStore: true, hsts: true},
		{path: "/admin/orders/42", baseURL: "http://localhost:8080", noStore: true},
		{path: "/admin-login", baseURL: "http://localhost:8080", noStore: true},
		{path: "/api/orders/status", baseURL: "http://localhost:8080", noStore: true},
		{path: "/administracion", baseURL: "http://localhost:8080"},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.path, func(t *testing.T) {
			t.Parallel()
			h := &Handlers{config: &config.Config{BaseURL: tc.baseURL}}
			rec := httptest.NewRecorder()
			h.SecurityHeaders(http.NotFoundHandler()).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, tc.path, nil))

			headers := rec.Header()
			if !strings.Contains(headers.Get("Content-Security-Policy"), "form-action 'self' https://www.mercadopago.com.ar") {
				t.Fatalf("unexpected csp: %q", headers.Get("Content-Security-Policy"))
			}
			if headers.Get("X-Frame-Options") != "DENY" {
				t.Fatalf("expected framing to be denied")
			}
			if got := headers.Get("Cache-Control") == "no-store"; got != tc.noStore {
				t.Fatalf("unexpected no-store: got=%v want=%v", got, tc.noStore)
			}
			if got := headers.Get("Strict-Transport-Security") != ""; got != tc.hsts {
				t.Fatalf("unexpected hsts: got=%v want=%v", got, tc.hsts)
			}
		})
	}
}
