package observability

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gorilla/mux"
)

func TestHTTPMetricsMiddlewareRecordsRouteTemplate(t *testing.T) {
	t.Parallel()

	metrics := NewHTTPMetrics()
	router := mux.NewRouter()
	router.Use(metrics.Middleware)
	router.HandleFunc("/productos/{slug}", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})
	router.Handle("/metrics", metrics.Handler())

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/productos/torre-rosa", nil))
	if rec.Code != http.StatusTeapot {
		t.Fatalf("expected 418, got %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	body, _ := io.ReadAll(rec.Body)
	want := `kuma_http_requests_total{method="GET",route="/productos/{slug}",status="418"} 1`
	if !strings.Contains(string(body), want) {
		t.Fatalf("expected metrics output to contain %q", want)
	}
}
