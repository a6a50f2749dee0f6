package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/kumamontessori/kuma/internal/carrier"
	"github.com/kumamontessori/kuma/internal/catalog"
	"github.com/kumamontessori/kuma/internal/db"
	"github.com/kumamontessori/kuma/internal/logging"
	"github.com/kumamontessori/kuma/internal/models"
	"github.com/kumamontessori/kuma/internal/observability"
	"github.com/kumamontessori/kuma/internal/payments"
)

const (
	ShippingMethodPickup = "pickup"
	ShippingMethodOCA    = "oca"

	statementDescriptor = "Kuma Montessori"
)

var ErrCheckoutUnavailable = errors.New("checkout service unavailable")

var emailValidator = validator.New()

type checkoutOrderStore interface {
	Create(ctx context.Context, order *models.Order) error
	SetPaymentPreference(ctx context.Context, orderID uuid.UUID, preferenceID string) error
	GetByID(ctx context.Context, orderID uuid.UUID) (*models.Order, error)
}

type checkoutProductStore interface {
	GetByIDs(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]*models.Product, error)
}

type cartPricer interface {
	Price(lines []catalog.Line, products map[uuid.UUID]*models.Product) ([]catalog.PricedLine, error)
	Subtotal(lines []catalog.PricedLine) decimal.Decimal
}

type shippingQuoter interface {
	QuoteShipping(ctx context.Context, destinationPostalCode string, declaredValue decimal.Decimal) (*carrier.Quote, error)
}

type receiptVerifier interface {
	receiptIssuer
	Verify(token string) (uuid.UUID, error)
}

type CheckoutService struct {
	orders   checkoutOrderStore
	products checkoutProductStore
	pricer   cartPricer
	gateway  payments.Gateway
	quoter   shippingQuoter
	receipts receiptVerifier
	siteURL  string
	logger   *slog.Logger
}

func NewCheckoutService(orders checkoutOrderStore, products checkoutProductStore, pricer cartPricer, gateway payments.Gateway, quoter shippingQuoter, receipts receiptVerifier, siteURL string, logger *slog.Logger) *CheckoutService {
	return &CheckoutService{
		orders:   orders,
		products: products,
		pricer:   pricer,
		gateway:  gateway,
		quoter:   quoter,
		receipts: receipts,
		siteURL:  strings.TrimRight(siteURL, "/"),
		logger:   logger,
	}
}

func (s *CheckoutService) loggerFromContext(ctx context.Context) *slog.Logger {
	return logging.FromContext(ctx, s.logger)
}

type CustomerInput struct {
	Name       string
	Email      string
	Phone      string
	Address    string
	City       string
	PostalCode string
	Notes      string
}

type CheckoutInput struct {
	Items          []catalog.Line
	Customer       CustomerInput
	ShippingMethod string
}

type CheckoutResult struct {
	OrderID      uuid.UUID `json:"orderId"`
	PreferenceID string    `json:"preferenceId"`
	InitPoint    string    `json:"initPoint"`
	ReceiptToken string    `json:"receiptToken"`
}

func (in CheckoutInput) validate() error {
	if len(in.Items) == 0 {
		return userError("No hay productos en el carrito")
	}
	c := in.Customer
	if strings.TrimSpace(c.Name) == "" || strings.TrimSpace(c.Email) == "" ||
		strings.TrimSpace(c.Phone) == "" || strings.TrimSpace(c.Address) == "" {
		return userError("Faltan datos del cliente")
	}
	if err := emailValidator.Var(strings.TrimSpace(c.Email), "required,email"); err != nil {
		return userError("El email no es válido")
	}
	if in.shipsByCarrier() && strings.TrimSpace(c.PostalCode) == "" {
		return userError("El código postal es requerido para el envío")
	}
	return nil
}

func (in CheckoutInput) shipsByCarrier() bool {
	return !strings.EqualFold(strings.TrimSpace(in.ShippingMethod), ShippingMethodPickup)
}

// CreateOrder prices the cart against the catalog, stores a PENDING order and
// opens a payment preference for it.
func (s *CheckoutService) CreateOrder(ctx context.Context, input CheckoutInput) (*CheckoutResult, error) {
	span := startSpan(ctx, "service.checkout.create_order", "service.checkout", "CreateOrder")
	defer span.Finish()
	ctx = span.Context()

	if s == nil || s.orders == nil || s.products == nil || s.pricer == nil || s.gateway == nil {
		return nil, ErrCheckoutUnavailable
	}

	logger := s.loggerFromContext(ctx)
	recordFailure := func(reason string) {
		observability.Count(ctx, "checkout.failed", "reason", reason)
	}

	if err := input.validate(); err != nil {
		recordFailure("invalid_input")
		return nil, err
	}

	ids := make([]uuid.UUID, 0, len(input.Items))
	for _, line := range input.Items {
		ids = append(ids, line.ProductID)
	}
	products, err := s.products.GetByIDs(ctx, ids)
	if err != nil {
		recordFailure("product_lookup_failed")
		return nil, fmt.Errorf("failed to load cart products: %w", err)
	}
	lines, err := s.pricer.Price(input.Items, products)
	if err != nil {
		recordFailure("pricing_failed")
		return nil, &UserError{Message: "Algunos productos del carrito ya no están disponibles", Err: err}
	}
	subtotal := s.pricer.Subtotal(lines)

	order := &models.Order{
		CustomerName:       strings.TrimSpace(input.Customer.Name),
		CustomerEmail:      strings.ToLower(strings.TrimSpace(input.Customer.Email)),
		CustomerPhone:      strings.TrimSpace(input.Customer.Phone),
		ShippingAddress:    strings.TrimSpace(input.Customer.Address),
		ShippingCity:       strings.TrimSpace(input.Customer.City),
		ShippingPostalCode: strings.TrimSpace(input.Customer.PostalCode),
		Notes:              strings.TrimSpace(input.Customer.Notes),
		Status:             models.StatusPending,
		Total:              subtotal,
	}
	for _, line := range lines {
		order.Items = append(order.Items, models.OrderItem{
			ProductID: line.Product.ID,
			Title:     line.Product.Name,
			Quantity:  line.Quantity,
			UnitPrice: line.UnitPrice,
		})
	}

	if input.shipsByCarrier() {
		shipping, err := s.quoteShipping(ctx, order.ShippingPostalCode, subtotal)
		if err != nil {
			recordFailure("shipping_quote_failed")
			return nil, err
		}
		order.Shipping = shipping
		order.Total = order.Total.Add(shipping.Cost)
	}

	if err := s.orders.Create(ctx, order); err != nil {
		recordFailure("order_create_failed")
		return nil, fmt.Errorf("failed to create order: %w", err)
	}
	logger = logger.With("order_id", order.ID)

	result := &CheckoutResult{OrderID: order.ID}
	if s.receipts != nil {
		token, err := s.receipts.Issue(order.ID)
		if err != nil {
			recordFailure("receipt_failed")
			return nil, fmt.Errorf("failed to issue receipt: %w", err)
		}
		result.ReceiptToken = token
	}

	preference, err := s.gateway.CreatePreference(ctx, s.buildPreference(order, result.ReceiptToken))
	if err != nil {
		recordFailure("preference_failed")
		logger.Error("failed to create payment preference", "error", err, "gateway", s.gateway.Name())
		return nil, fmt.Errorf("%w: %w", ErrPaymentFailed, err)
	}
	if err := s.orders.SetPaymentPreference(ctx, order.ID, preference.ID); err != nil {
		recordFailure("preference_store_failed")
		return nil, fmt.Errorf("failed to store payment preference: %w", err)
	}
	result.PreferenceID = preference.ID
	result.InitPoint = preference.InitPoint

	observability.Count(ctx, "checkout.order_created", "gateway", s.gateway.Name())
	logger.Info("order created", "total", order.Total.StringFixed(2), "items", len(order.Items), "preference_id", preference.ID)
	return result, nil
}

func (s *CheckoutService) quoteShipping(ctx context.Context, postalCode string, declared decimal.Decimal) (*models.Shipping, error) {
	shipping := &models.Shipping{Provider: models.DefaultShippingProvider, Cost: decimal.Zero}
	if s.quoter == nil {
		return shipping, nil
	}
	quote, err := s.quoter.QuoteShipping(ctx, postalCode, declared)
	if err != nil {
		var validationErr *carrier.ValidationError
		if errors.As(err, &validationErr) {
			return nil, &UserError{Message: validationErr.Message, Err: err}
		}
		return nil, &UserError{Message: "No pudimos cotizar el envío. Probá de nuevo en unos minutos.", Err: err}
	}
	shipping.Cost = quote.Price
	shipping.EstimatedDelivery = quote.DeliveryTime
	return shipping, nil
}

func (s *CheckoutService) buildPreference(order *models.Order, receiptToken string) payments.Preference {
	pref := payments.Preference{
		OrderID: order.ID,
		Payer: payments.Payer{
			Name:       order.CustomerName,
			Email:      order.CustomerEmail,
			Phone:      order.CustomerPhone,
			Address:    order.ShippingAddress,
			PostalCode: order.ShippingPostalCode,
		},
		BackURLs: payments.BackURLs{
			Success: s.returnURL("success", receiptToken),
			Failure: s.returnURL("failure", receiptToken),
			Pending: s.returnURL("pending", receiptToken),
		},
		NotificationURL:     s.siteURL + "/api/webhooks/mercadopago",
		StatementDescriptor: statementDescriptor,
	}
	for _, item := range order.Items {
		pref.Items = append(pref.Items, payments.Item{
			ID:        item.ProductID.String(),
			Title:     item.Title,
			Quantity:  item.Quantity,
			UnitPrice: item.UnitPrice,
		})
	}
	if order.Shipping != nil && order.Shipping.Cost.IsPositive() {
		pref.Items = append(pref.Items, payments.Item{
			ID:        "shipping",
			Title:     "Envío - " + order.Shipping.Provider,
			Quantity:  1,
			UnitPrice: order.Shipping.Cost,
		})
	}
	return pref
}

func (s *CheckoutService) returnURL(outcome, receiptToken string) string {
	target := s.siteURL + "/checkout/" + outcome
	if receiptToken == "" {
		return target
	}
	return target + "?receipt=" + url.QueryEscape(receiptToken)
}

// GetOrderStatus resolves a signed receipt token to its order.
func (s *CheckoutService) GetOrderStatus(ctx context.Context, receiptToken string) (*models.Order, error) {
	span := startSpan(ctx, "service.checkout.get_order_status", "service.checkout", "GetOrderStatus")
	defer span.Finish()
	ctx = span.Context()

	if s == nil || s.orders == nil || s.receipts == nil {
		return nil, ErrCheckoutUnavailable
	}
	orderID, err := s.receipts.Verify(strings.TrimSpace(receiptToken))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrReceiptInvalid, err)
	}
	order, err := s.orders.GetByID(ctx, orderID)
	if errors.Is(err, db.ErrNotFound) {
		return nil, ErrOrderNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load order: %w", err)
	}
	return order, nil
}
