package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type ShippingStatus string

const (
	ShippingPending   ShippingStatus = "PENDING"
	ShippingInTransit ShippingStatus = "IN_TRANSIT"
	ShippingDelivered ShippingStatus = "DELIVERED"
	ShippingReturned  ShippingStatus = "RETURNED"
	ShippingCancelled ShippingStatus = "CANCELLED"
)

var shippingStatusLabels = map[ShippingStatus]string{
	ShippingPending:   "Pendiente",
	ShippingInTransit: "En tránsito",
	ShippingDelivered: "Entregado",
	ShippingReturned:  "Devuelto",
	ShippingCancelled: "Cancelado",
}

func ParseShippingStatus(value string) (ShippingStatus, error) {
	status := ShippingStatus(strings.ToUpper(strings.TrimSpace(value)))
	if _, ok := shippingStatusLabels[status]; !ok {
		return "", fmt.Errorf("unknown shipping status %q", value)
	}
	return status, nil
}

func (s ShippingStatus) Label() string {
	if label, ok := shippingStatusLabels[s]; ok {
		return label
	}
	return string(s)
}

// Terminal reports whether the carrier will not report further progress.
func (s ShippingStatus) Terminal() bool {
	switch s {
	case ShippingDelivered, ShippingReturned, ShippingCancelled:
		return true
	default:
		return false
	}
}

const DefaultShippingProvider = "OCA"

type Shipping struct {
	ID                uuid.UUID       `json:"id"`
	OrderID           uuid.UUID       `json:"order_id"`
	Provider          string          `json:"provider"`
	TrackingNumber    string          `json:"tracking_number"`
	Status            ShippingStatus  `json:"status"`
	Cost              decimal.Decimal `json:"cost"`
	EstimatedDelivery string          `json:"estimated_delivery"`
	Label             string          `json:"label,omitempty"`
	Events            []ShippingEvent `json:"events"`
	CreatedAt         time.Time       `json:"created_at"`
	UpdatedAt         time.Time       `json:"updated_at"`
}

type ShippingEvent struct {
	ID          uuid.UUID      `json:"id"`
	ShippingID  uuid.UUID      `json:"shipping_id"`
	Status      ShippingStatus `json:"status"`
	Description string         `json:"description"`
	Location    string         `json:"location"`
	CreatedAt   time.Time      `json:"created_at"`
}
