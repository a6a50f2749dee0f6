// Package payments defines the gateway used by checkout and the payment webhooks.
package payments

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/kumamontessori/kuma/internal/models"
)

const (
	ProviderMercadoPago = "mercadopago"
	ProviderStripe      = "stripe"
)

// Payment statuses. Gateways with another vocabulary translate into these.
const (
	StatusApproved  = "approved"
	StatusRejected  = "rejected"
	StatusInProcess = "in_process"
	StatusRefunded  = "refunded"
)

var (
	ErrNotConfigured   = errors.New("payment gateway is not configured")
	ErrPaymentNotFound = errors.New("payment not found")
)

type Gateway interface {
	Name() string
	CreatePreference(ctx context.Context, pref Preference) (*PreferenceResult, error)
	GetPayment(ctx context.Context, id string) (*Payment, error)
	SearchPayments(ctx context.Context, externalReference string) ([]Payment, error)
}

type Item struct {
	ID        string
	Title     string
	Quantity  int
	UnitPrice decimal.Decimal
}

type Payer struct {
	Name       string
	Email      string
	Phone      string
	Address    string
	PostalCode string
}

type BackURLs struct {
	Success string
	Failure string
	Pending string
}

type Preference struct {
	OrderID             uuid.UUID
	Items               []Item
	Payer               Payer
	BackURLs            BackURLs
	NotificationURL     string
	StatementDescriptor string
}

// ExternalReference is the order ID the gateway echoes back on every payment.
func (p Preference) ExternalReference() string {
	return p.OrderID.String()
}

type PreferenceResult struct {
	ID        string
	InitPoint string
}

type Payment struct {
	ID                string
	Status            string
	StatusDetail      string
	ExternalReference string
	PaymentMethod     string
	Amount            decimal.Decimal
}

// OrderStatus maps a gateway payment status to an order status.
func (p Payment) OrderStatus() models.OrderStatus {
	return MapStatus(p.Status)
}

// MapStatus maps the gateway status vocabulary onto order statuses.
// Unknown statuses leave the order pending.
func MapStatus(status string) models.OrderStatus {
	switch strings.ToLower(strings.TrimSpace(status)) {
	case StatusApproved:
		return models.StatusPaid
	case StatusRejected:
		return models.StatusFailed
	case StatusRefunded:
		return models.StatusRefunded
	default:
		return models.StatusPending
	}
}
