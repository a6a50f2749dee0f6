package stripe

import (
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	stripeapi "github.com/stripe/stripe-go/v84"

	"github.com/kumamontessori/kuma/internal/payments"
)

func TestNewGatewayRequiresKey(t *testing.T) {
	t.Parallel()

	if _, err := NewGateway(" "); !errors.Is(err, payments.ErrNotConfigured) {
		t.Fatalf("expected ErrNotConfigured, got %v", err)
	}
}

func TestCheckoutSessionParams(t *testing.T) {
	t.Parallel()

	orderID := uuid.New()
	params := checkoutSessionParams(payments.Preference{
		OrderID: orderID,
		Items: []payments.Item{
			{Title: "Cubo de binomios", Quantity: 0, UnitPrice: decimal.RequireFromString("9999.99")},
		},
		BackURLs: payments.BackURLs{Success: "https://kuma.com.ar/checkout/success", Failure: "https://kuma.com.ar/checkout/failure"},
	})

	if len(params.LineItems) != 1 {
		t.Fatalf("expected 1 line item, got %d", len(params.LineItems))
	}
	line := params.LineItems[0]
	if *line.Quantity != 1 || *line.PriceData.UnitAmount != 999999 || *line.PriceData.Currency != "ars" {
		t.Fatalf("unexpected line item %+v", line)
	}
	if params.Metadata["order_id"] != orderID.String() || *params.ClientReferenceID != orderID.String() {
		t.Fatalf("expected order reference in metadata")
	}
	if params.CustomerEmail != nil {
		t.Fatalf("expected no customer email")
	}
	if *params.CancelURL != "https://kuma.com.ar/checkout/failure" {
		t.Fatalf("unexpected cancel URL %s", *params.CancelURL)
	}
}

func TestTranslateIntentStatus(t *testing.T) {
	t.Parallel()

	if got := translateIntentStatus(stripeapi.PaymentIntentStatusSucceeded); got != payments.StatusApproved {
		t.Fatalf("expected approved, got %s", got)
	}
	if got := translateIntentStatus(stripeapi.PaymentIntentStatusCanceled); got != payments.StatusRejected {
		t.Fatalf("expected rejected, got %s", got)
	}
	if got := translateIntentStatus(stripeapi.PaymentIntentStatusProcessing); got != payments.StatusInProcess {
		t.Fatalf("expected in_process, got %s", got)
	}
}
