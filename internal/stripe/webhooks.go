package stripe

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	stripeapi "github.com/stripe/stripe-go/v84"
	"github.com/stripe/stripe-go/v84/webhook"

	"github.com/kumamontessori/kuma/internal/payments"
)

const maxWebhookBody = 64 << 10

// ErrWebhookSecretMissing is returned when no signing secret is configured.
// An empty key is a valid HMAC key, so verifying against it would accept
// events anyone can sign.
var ErrWebhookSecretMissing = errors.New("stripe webhook secret is not configured")

func ReadWebhookEvent(r *http.Request, secret string) (*stripeapi.Event, error) {
	if strings.TrimSpace(secret) == "" {
		return nil, ErrWebhookSecretMissing
	}

	signature := r.Header.Get("Stripe-Signature")
	if signature == "" {
		return nil, fmt.Errorf("missing stripe signature header")
	}

	payload, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		return nil, fmt.Errorf("failed to read request body: %w", err)
	}

	event, err := webhook.ConstructEventWithOptions(payload, signature, secret, webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		return nil, fmt.Errorf("webhook signature validation failed: %w", err)
	}

	return &event, nil
}

// EventPayment turns a Checkout event into a gateway-neutral payment.
// ok is false for event types that do not affect orders.
func EventPayment(event *stripeapi.Event) (payment payments.Payment, ok bool, err error) {
	switch event.Type {
	case "checkout.session.completed", "checkout.session.expired":
		var sess stripeapi.CheckoutSession
		if err := json.Unmarshal(event.Data.Raw, &sess); err != nil {
			return payment, false, fmt.Errorf("failed to decode checkout session: %w", err)
		}
		payment = payments.Payment{
			ID:                sess.ID,
			ExternalReference: sess.Metadata[orderIDMetadataKey],
			StatusDetail:      string(event.Type),
			PaymentMethod:     "stripe_checkout",
			Status:            payments.StatusRejected,
		}
		if sess.ClientReferenceID != "" && payment.ExternalReference == "" {
			payment.ExternalReference = sess.ClientReferenceID
		}
		if sess.PaymentIntent != nil && sess.PaymentIntent.ID != "" {
			payment.ID = sess.PaymentIntent.ID
		}
		if event.Type == "checkout.session.completed" {
			payment.Status = payments.StatusApproved
		}
		return payment, true, nil

	case "payment_intent.payment_failed":
		var intent stripeapi.PaymentIntent
		if err := json.Unmarshal(event.Data.Raw, &intent); err != nil {
			return payment, false, fmt.Errorf("failed to decode payment intent: %w", err)
		}
		payment = paymentFromIntent(&intent)
		payment.Status = payments.StatusRejected
		return payment, true, nil

	case "charge.refunded":
		var charge stripeapi.Charge
		if err := json.Unmarshal(event.Data.Raw, &charge); err != nil {
			return payment, false, fmt.Errorf("failed to decode charge: %w", err)
		}
		payment = payments.Payment{
			ID:                charge.ID,
			ExternalReference: charge.Metadata[orderIDMetadataKey],
			Status:            payments.StatusRefunded,
			StatusDetail:      string(event.Type),
		}
		if charge.PaymentIntent != nil && charge.PaymentIntent.ID != "" {
			payment.ID = charge.PaymentIntent.ID
		}
		return payment, true, nil
	}
	return payment, false, nil
}
