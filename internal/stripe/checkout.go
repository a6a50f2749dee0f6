// Package stripe implements the payment gateway on Stripe Checkout.
package stripe

import (
	"context"
	"fmt"
	"strings"

	"github.com/stripe/stripe-go/v84"

	"github.com/kumamontessori/kuma/internal/money"
	"github.com/kumamontessori/kuma/internal/payments"
)

const orderIDMetadataKey = "order_id"

// Gateway creates Checkout sessions and reads payment intents.
type Gateway struct {
	client *stripe.Client
}

func NewGateway(secretKey string) (*Gateway, error) {
	if strings.TrimSpace(secretKey) == "" {
		return nil, payments.ErrNotConfigured
	}
	return &Gateway{client: stripe.NewClient(secretKey)}, nil
}

func (g *Gateway) Name() string {
	return payments.ProviderStripe
}

func checkoutSessionParams(pref payments.Preference) *stripe.CheckoutSessionCreateParams {
	currency := strings.ToLower(money.Currency)
	lineItems := make([]*stripe.CheckoutSessionCreateLineItemParams, 0, len(pref.Items))
	for _, item := range pref.Items {
		quantity := int64(item.Quantity)
		if quantity <= 0 {
			quantity = 1
		}
		lineItems = append(lineItems, &stripe.CheckoutSessionCreateLineItemParams{
			PriceData: &stripe.CheckoutSessionCreateLineItemPriceDataParams{
				Currency: stripe.String(currency),
				ProductData: &stripe.CheckoutSessionCreateLineItemPriceDataProductDataParams{
					Name: stripe.String(item.Title),
				},
				UnitAmount: stripe.Int64(money.ToCents(item.UnitPrice)),
			},
			Quantity: stripe.Int64(quantity),
		})
	}

	metadata := map[string]string{orderIDMetadataKey: pref.ExternalReference()}
	params := &stripe.CheckoutSessionCreateParams{
		Mode:              stripe.String(string(stripe.CheckoutSessionModePayment)),
		SuccessURL:        stripe.String(pref.BackURLs.Success),
		CancelURL:         stripe.String(pref.BackURLs.Failure),
		ClientReferenceID: stripe.String(pref.ExternalReference()),
		LineItems:         lineItems,
		CustomerEmail:     stripe.String(pref.Payer.Email),
		Metadata:          metadata,
		PaymentIntentData: &stripe.CheckoutSessionCreatePaymentIntentDataParams{
			Metadata:            metadata,
			StatementDescriptor: stripe.String(pref.StatementDescriptor),
		},
	}
	// Stripe validates the email format, so only send one when present.
	if pref.Payer.Email == "" {
		params.CustomerEmail = nil
	}
	if pref.StatementDescriptor == "" {
		params.PaymentIntentData.StatementDescriptor = nil
	}
	return params
}

func (g *Gateway) CreatePreference(ctx context.Context, pref payments.Preference) (*payments.PreferenceResult, error) {
	if ctx == nil {
		return nil, fmt.Errorf("context is required")
	}

	sess, err := g.client.V1CheckoutSessions.Create(ctx, checkoutSessionParams(pref))
	if err != nil {
		return nil, fmt.Errorf("failed to create checkout session: %w", err)
	}
	return &payments.PreferenceResult{ID: sess.ID, InitPoint: sess.URL}, nil
}

func (g *Gateway) GetPayment(ctx context.Context, id string) (*payments.Payment, error) {
	intent, err := g.client.V1PaymentIntents.Retrieve(ctx, id, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to get payment intent %s: %w", id, err)
	}
	payment := paymentFromIntent(intent)
	return &payment, nil
}

func (g *Gateway) SearchPayments(ctx context.Context, externalReference string) ([]payments.Payment, error) {
	params := &stripe.PaymentIntentSearchParams{}
	params.Query = fmt.Sprintf("metadata['%s']:'%s'", orderIDMetadataKey, externalReference)

	var out []payments.Payment
	for intent, err := range g.client.V1PaymentIntents.Search(ctx, params) {
		if err != nil {
			return nil, fmt.Errorf("failed to search payment intents: %w", err)
		}
		out = append(out, paymentFromIntent(intent))
	}
	return out, nil
}

func paymentFromIntent(intent *stripe.PaymentIntent) payments.Payment {
	method := ""
	if len(intent.PaymentMethodTypes) > 0 {
		method = intent.PaymentMethodTypes[0]
	}
	return payments.Payment{
		ID:                intent.ID,
		Status:            translateIntentStatus(intent.Status),
		StatusDetail:      string(intent.Status),
		ExternalReference: intent.Metadata[orderIDMetadataKey],
		PaymentMethod:     method,
		Amount:            money.FromCents(intent.Amount),
	}
}

// translateIntentStatus maps payment intent states onto the gateway-neutral vocabulary.
func translateIntentStatus(status stripe.PaymentIntentStatus) string {
	switch status {
	case stripe.PaymentIntentStatusSucceeded:
		return payments.StatusApproved
	case stripe.PaymentIntentStatusCanceled:
		return payments.StatusRejected
	default:
		return payments.StatusInProcess
	}
}
