package mercadopago

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/kumamontessori/kuma/internal/payments"
	"github.com/kumamontessori/kuma/internal/retry"
)

func newTestClient(t *testing.T, handler http.Handler, sandbox bool) *Client {
	t.Helper()

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client, err := New(Config{
		AccessToken: "TEST-token",
		BaseURL:     server.URL,
		Sandbox:     sandbox,
		Transport:   http.DefaultTransport,
		Retry:       retry.Config{MaxRetries: 2, InitialInterval: time.Millisecond, MaxInterval: time.Millisecond},
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return client
}

func TestNewRequiresAccessToken(t *testing.T) {
	t.Parallel()

	if _, err := New(Config{}); !errors.Is(err, payments.ErrNotConfigured) {
		t.Fatalf("expected ErrNotConfigured, got %v", err)
	}
}

func TestCreatePreference(t *testing.T) {
	t.Parallel()

	orderID := uuid.New()
	var got preferenceRequest
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/checkout/preferences" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		if auth := r.Header.Get("Authorization"); auth != "Bearer TEST-token" {
			t.Errorf("unexpected authorization header %q", auth)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode body: %v", err)
		}
		_, _ = w.Write([]byte(`{"id":"pref-1","init_point":"https://mp/live","sandbox_init_point":"https://mp/sandbox"}`))
	}), true)

	result, err := client.CreatePreference(context.Background(), payments.Preference{
		OrderID: orderID,
		Items: []payments.Item{
			{ID: "p1", Title: "Torre rosa", Quantity: 2, UnitPrice: decimal.RequireFromString("12500.50")},
		},
		Payer:               payments.Payer{Name: "Ana", Email: "ana@example.com", Phone: "1122334455"},
		BackURLs:            payments.BackURLs{Success: "https://kuma.com.ar/checkout/success"},
		NotificationURL:     "https://kuma.com.ar/api/webhooks/mercadopago",
		StatementDescriptor: "Kuma Montessori",
	})
	if err != nil {
		t.Fatalf("CreatePreference: %v", err)
	}
	if result.ID != "pref-1" || result.InitPoint != "https://mp/sandbox" {
		t.Fatalf("unexpected result %+v", result)
	}
	if got.ExternalReference != orderID.String() {
		t.Fatalf("expected external reference %s, got %s", orderID, got.ExternalReference)
	}
	if len(got.Items) != 1 || got.Items[0].CurrencyID != "ARS" || got.Items[0].UnitPrice != 12500.50 {
		t.Fatalf("unexpected items %+v", got.Items)
	}
	if got.AutoReturn != "approved" || got.StatementDescriptor != "Kuma Montessori" {
		t.Fatalf("unexpected preference %+v", got)
	}
}

func TestCreatePreferenceWithoutInitPoint(t *testing.T) {
	t.Parallel()

	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"id":"pref-1"}`))
	}), false)

	_, err := client.CreatePreference(context.Background(), payments.Preference{OrderID: uuid.New()})
	if !errors.Is(err, ErrMissingInitPoint) {
		t.Fatalf("expected ErrMissingInitPoint, got %v", err)
	}
}

func TestCreatePreferenceRetriesWithIdempotencyKey(t *testing.T) {
	t.Parallel()

	orderID := uuid.New()
	var (
		calls atomic.Int32
		keys  = make(chan string, 3)
	)
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		keys <- r.Header.Get("X-Idempotency-Key")
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte(`{"id":"pref-1","init_point":"https://mp/live"}`))
	}), false)

	if _, err := client.CreatePreference(context.Background(), payments.Preference{OrderID: orderID}); err != nil {
		t.Fatalf("CreatePreference: %v", err)
	}
	if calls.Load() != 2 {
		t.Fatalf("expected 2 calls, got %d", calls.Load())
	}
	close(keys)
	for key := range keys {
		if key != orderID.String() {
			t.Fatalf("expected idempotency key %s on every attempt, got %q", orderID, key)
		}
	}
}

func TestGetPaymentRetriesServerErrors(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		if r.URL.Path != "/v1/payments/123" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		_, _ = w.Write([]byte(`{"id":123,"status":"approved","status_detail":"accredited","external_reference":"order-1","payment_method_id":"visa","transaction_amount":1500.5}`))
	}), false)

	payment, err := client.GetPayment(context.Background(), "123")
	if err != nil {
		t.Fatalf("GetPayment: %v", err)
	}
	if calls.Load() != 2 {
		t.Fatalf("expected 2 calls, got %d", calls.Load())
	}
	if payment.ID != "123" || payment.ExternalReference != "order-1" || payment.PaymentMethod != "visa" {
		t.Fatalf("unexpected payment %+v", payment)
	}
	if !payment.Amount.Equal(decimal.RequireFromString("1500.50")) {
		t.Fatalf("unexpected amount %s", payment.Amount)
	}
}

func TestGetPaymentNotFound(t *testing.T) {
	t.Parallel()

	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, `{"message":"not found"}`, http.StatusNotFound)
	}), false)

	if _, err := client.GetPayment(context.Background(), "999"); !errors.Is(err, payments.ErrPaymentNotFound) {
		t.Fatalf("expected ErrPaymentNotFound, got %v", err)
	}
}

func TestSearchPayments(t *testing.T) {
	t.Parallel()

	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/payments/search" || r.URL.Query().Get("external_reference") != "order-7" {
			t.Errorf("unexpected request %s", r.URL.String())
		}
		_, _ = w.Write([]byte(`{"results":[{"id":1,"status":"rejected"},{"id":2,"status":"approved"}]}`))
	}), false)

	results, err := client.SearchPayments(context.Background(), "order-7")
	if err != nil {
		t.Fatalf("SearchPayments: %v", err)
	}
	if len(results) != 2 || results[1].Status != "approved" {
		t.Fatalf("unexpected results %+v", results)
	}
}
