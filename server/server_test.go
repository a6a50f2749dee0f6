package server

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gorilla/mux"

	"github.com/kumamontessori/kuma/internal/config"
	"github.com/kumamontessori/kuma/internal/handlers"
)

func newTestServer(t *testing.T, opts Options) *Server {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	s, err := New(&config.Config{Port: "8080"}, logger, &handlers.Handlers{}, opts)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return s
}

func TestNew_RequiresDependencies(t *testing.T) {
	t.Parallel()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	if _, err := New(nil, logger, &handlers.Handlers{}, Options{}); err == nil {
		t.Fatalf("expected an error without config")
	}
	if _, err := New(&config.Config{}, nil, &handlers.Handlers{}, Options{}); err == nil {
		t.Fatalf("expected an error without logger")
	}
	if _, err := New(&config.Config{}, logger, nil, Options{}); err == nil {
		t.Fatalf("expected an error without handlers")
	}
}

func TestRouter_MatchesRoutes(t *testing.T) {
	t.Parallel()

	router := newTestServer(t, Options{UploadDir: t.TempDir()}).buildRouter()

	tests := []struct {
		method string
		path   string
		name   string
	}{
		{method: http.MethodGet, path: "/", name: "home"},
		{method: http.MethodGet, path: "/productos/torre-de-aprendizaje", name: "product"},
		{method: http.MethodGet, path: "/categorias/madera", name: "category"},
		{method: http.MethodPost, path: "/carrito/agregar", name: "cart.add"},
		{method: http.MethodPost, path: "/checkout", name: "checkout.submit"},
		{method: http.MethodGet, path: "/checkout/pending", name: "checkout.result"},
		{method: http.MethodPost, path: "/api/webhooks/mercadopago", name: "webhooks.mercadopago"},
		{method: http.MethodPost, path: "/api/webhooks/stripe", name: "webhooks.stripe"},
		{method: http.MethodPost, path: "/api/shipping/oca/quote", name: "api.shipping.quote"},
		{method: http.MethodPut, path: "/api/shipping/42/status", name: "api.shipping.status"},
		{method: http.MethodGet, path: "/admin", name: "admin.dashboard"},
		{method: http.MethodGet, path: "/admin/products/new", name: "admin.products.new"},
		{method: http.MethodGet, path: "/admin/products/42", name: "admin.products.edit"},
		{method: http.MethodPost, path: "/admin/orders/42/status", name: "admin.orders.status"},
		{method: http.MethodGet, path: "/admin-login", name: "admin.login"},
		{method: http.MethodGet, path: "/uploads/products/a.png", name: "uploads"},
		{method: http.MethodGet, path: "/assets/css/app.css", name: "assets"},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.method+" "+tc.path, func(t *testing.T) {
			t.Parallel()
			var match mux.RouteMatch
			if !router.Match(httptest.NewRequest(tc.method, tc.path, nil), &match) {
				t.Fatalf("no route matched")
			}
			if got := match.Route.GetName(); got != tc.name {
				t.Fatalf("unexpected route: got=%q want=%q", got, tc.name)
			}
		})
	}
}

func TestRouter_RejectsUnknownOutcomeAndMethod(t *testing.T) {
	t.Parallel()

	router := newTestServer(t, Options{}).buildRouter()

	var match mux.RouteMatch
	if router.Match(httptest.NewRequest(http.MethodGet, "/checkout/maybe", nil), &match) && match.Route != nil {
		t.Fatalf("unexpected route for an unknown outcome: %q", match.Route.GetName())
	}

	match = mux.RouteMatch{}
	router.Match(httptest.NewRequest(http.MethodDelete, "/carrito/agregar", nil), &match)
	if match.MatchErr != mux.ErrMethodMismatch {
		t.Fatalf("expected a method mismatch, got %v", match.MatchErr)
	}

	match = mux.RouteMatch{}
	if router.Match(httptest.NewRequest(http.MethodGet, "/uploads/a.png", nil), &match) && match.Route != nil {
		t.Fatalf("uploads must not be served without a local upload dir")
	}
}

func TestNoDirectoryListing(t *testing.T) {
	t.Parallel()

	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	tests := []struct {
		path   string
		status int
	}{
		{path: "css/", status: http.StatusNotFound},
		{path: "", status: http.StatusNotFound},
		{path: "css/app.css", status: http.StatusNoContent},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.path, func(t *testing.T) {
			t.Parallel()
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.URL.Path = tc.path
			rec := httptest.NewRecorder()
			noDirectoryListing(next).ServeHTTP(rec, req)
			if rec.Code != tc.status {
				t.Fatalf("unexpected status: got=%d want=%d", rec.Code, tc.status)
			}
		})
	}
}
