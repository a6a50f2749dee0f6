package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type OrderStatus string

const (
	StatusPending    OrderStatus = "PENDING"
	StatusPaid       OrderStatus = "PAID"
	StatusProcessing OrderStatus = "PROCESSING"
	StatusShipped    OrderStatus = "SHIPPED"
	StatusDelivered  OrderStatus = "DELIVERED"
	StatusCancelled  OrderStatus = "CANCELLED"
	StatusRefunded   OrderStatus = "REFUNDED"
	StatusFailed     OrderStatus = "FAILED"
)

// OrderStatuses lists every status in the order the admin panel offers them.
var OrderStatuses = []OrderStatus{
	StatusPending,
	StatusPaid,
	StatusProcessing,
	StatusShipped,
	StatusDelivered,
	StatusCancelled,
	StatusRefunded,
	StatusFailed,
}

var orderStatusLabels = map[OrderStatus]string{
	StatusPending:    "Pendiente",
	StatusPaid:       "Pagado",
	StatusProcessing: "En proceso",
	StatusShipped:    "Enviado",
	StatusDelivered:  "Entregado",
	StatusCancelled:  "Cancelado",
	StatusRefunded:   "Reembolsado",
	StatusFailed:     "Fallido",
}

func ParseOrderStatus(value string) (OrderStatus, error) {
	status := OrderStatus(strings.ToUpper(strings.TrimSpace(value)))
	if _, ok := orderStatusLabels[status]; !ok {
		return "", fmt.Errorf("unknown order status %q", value)
	}
	return status, nil
}

// Label returns the Spanish label shown to customers and admins.
func (s OrderStatus) Label() string {
	if label, ok := orderStatusLabels[s]; ok {
		return label
	}
	return string(s)
}

type Order struct {
	ID                  uuid.UUID       `json:"id"`
	CustomerName        string          `json:"customer_name"`
	CustomerEmail       string          `json:"customer_email"`
	CustomerPhone       string          `json:"customer_phone"`
	ShippingAddress     string          `json:"shipping_address"`
	ShippingCity        string          `json:"shipping_city"`
	ShippingPostalCode  string          `json:"shipping_postal_code"`
	Notes               string          `json:"notes"`
	Total               decimal.Decimal `json:"total"`
	Status              OrderStatus     `json:"status"`
	PaymentPreferenceID string          `json:"payment_preference_id"`
	PaymentID           string          `json:"payment_id"`
	PaymentMethod       string          `json:"payment_method"`
	PaymentStatus       string          `json:"payment_status"`
	Items               []OrderItem     `json:"items"`
	ItemCount           int             `json:"item_count"`
	Shipping            *Shipping       `json:"shipping,omitempty"`
	CreatedAt           time.Time       `json:"created_at"`
	UpdatedAt           time.Time       `json:"updated_at"`
}

// ShortID is the order number shown on receipts and in the admin tables.
func (o *Order) ShortID() string {
	if o == nil {
		return ""
	}
	return o.ID.String()[:8]
}

// Subtotal is the sum of the item lines without shipping.
func (o *Order) Subtotal() decimal.Decimal {
	subtotal := decimal.Zero
	if o == nil {
		return subtotal
	}
	for _, item := range o.Items {
		subtotal = subtotal.Add(item.LineTotal())
	}
	return subtotal
}

type OrderItem struct {
	ID        uuid.UUID       `json:"id"`
	OrderID   uuid.UUID       `json:"order_id"`
	ProductID uuid.UUID       `json:"product_id"`
	Title     string          `json:"title"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
}

func (i OrderItem) LineTotal() decimal.Decimal {
	return i.UnitPrice.Mul(decimal.NewFromInt(int64(i.Quantity)))
}
