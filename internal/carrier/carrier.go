// Package carrier quotes, labels and tracks parcels with OCA e-Pak, or with
// a simulated carrier when no credentials are configured.
package carrier

import (
	"context"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/kumamontessori/kuma/internal/models"
)

const DefaultOperativa = "Puerta a Puerta"

type Carrier interface {
	Name() string
	Quote(ctx context.Context, req QuoteRequest) (*Quote, error)
	CreateLabel(ctx context.Context, req LabelRequest) (*Label, error)
	Track(ctx context.Context, trackingNumber, document string) (*Tracking, error)
}

// ValidationError carries a message shown to the caller as a 400.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

func invalid(message string) error {
	return &ValidationError{Message: message}
}

type QuoteRequest struct {
	OriginPostalCode      string          `json:"postalCodeOrigin"`
	DestinationPostalCode string          `json:"postalCodeDestination"`
	Weight                float64         `json:"weight"`
	Volume                float64         `json:"volume"`
	DeclaredValue         decimal.Decimal `json:"declaredValue"`
	Packages              int             `json:"packages"`
	Operativa             string          `json:"operativeType"`
}

func (r QuoteRequest) validate() error {
	if strings.TrimSpace(r.OriginPostalCode) == "" || strings.TrimSpace(r.DestinationPostalCode) == "" {
		return invalid("Códigos postales de origen y destino son requeridos")
	}
	return nil
}

type Quote struct {
	Price        decimal.Decimal `json:"price"`
	DeliveryTime string          `json:"deliveryTime"`
}

type LabelRequest struct {
	OrderID          string          `json:"orderId"`
	RecipientName    string          `json:"recipientName"`
	RecipientAddress string          `json:"recipientAddress"`
	PostalCode       string          `json:"recipientPostalCode"`
	City             string          `json:"recipientCity"`
	Province         string          `json:"recipientProvince"`
	Phone            string          `json:"recipientPhone"`
	Email            string          `json:"recipientEmail"`
	Packages         int             `json:"packages"`
	Weight           float64         `json:"weight"`
	DeclaredValue    decimal.Decimal `json:"declaredValue"`
	Observations     string          `json:"observations"`
}

func (r LabelRequest) validate() error {
	if strings.TrimSpace(r.RecipientName) == "" ||
		strings.TrimSpace(r.RecipientAddress) == "" ||
		strings.TrimSpace(r.PostalCode) == "" {
		return invalid("Datos del destinatario incompletos")
	}
	return nil
}

type Label struct {
	TrackingNumber string `json:"trackingNumber"`
	Label          string `json:"labelUrl,omitempty"`
}

type Tracking struct {
	Status string  `json:"status"`
	Events []Event `json:"events"`
}

type Event struct {
	Date        string `json:"date"`
	Description string `json:"description"`
	Location    string `json:"location"`
}

func validateTrackingNumber(number string) error {
	if strings.TrimSpace(number) == "" {
		return invalid("Número de seguimiento requerido")
	}
	return nil
}

// ShippingStatus maps a carrier state, canonical or free text, onto a shipping status.
func ShippingStatus(state string) models.ShippingStatus {
	normalized := strings.ToUpper(strings.TrimSpace(state))
	switch models.ShippingStatus(normalized) {
	case models.ShippingPending, models.ShippingInTransit, models.ShippingDelivered,
		models.ShippingReturned, models.ShippingCancelled:
		return models.ShippingStatus(normalized)
	}

	lower := strings.ToLower(normalized)
	switch {
	case strings.Contains(lower, "entregad"):
		return models.ShippingDelivered
	case strings.Contains(lower, "devuel"), strings.Contains(lower, "devoluci"):
		return models.ShippingReturned
	case strings.Contains(lower, "anulad"), strings.Contains(lower, "cancel"):
		return models.ShippingCancelled
	case strings.Contains(lower, "tránsito"), strings.Contains(lower, "transito"),
		strings.Contains(lower, "camino"), strings.Contains(lower, "distribuci"),
		strings.Contains(lower, "retirad"):
		return models.ShippingInTransit
	default:
		return models.ShippingPending
	}
}
