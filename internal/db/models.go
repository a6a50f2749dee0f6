package db

import "github.com/kumamontessori/kuma/internal/models"

type (
	Category       = models.Category
	Product        = models.Product
	ProductImage   = models.ProductImage
	Order          = models.Order
	OrderItem      = models.OrderItem
	OrderStatus    = models.OrderStatus
	Shipping       = models.Shipping
	ShippingEvent  = models.ShippingEvent
	ShippingStatus = models.ShippingStatus
	User           = models.User
)

const (
	StatusPending    = models.StatusPending
	StatusPaid       = models.StatusPaid
	StatusProcessing = models.StatusProcessing
	StatusShipped    = models.StatusShipped
	StatusDelivered  = models.StatusDelivered
	StatusCancelled  = models.StatusCancelled
	StatusRefunded   = models.StatusRefunded
	StatusFailed     = models.StatusFailed
)
