package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/kumamontessori/kuma/internal/cache"
	"github.com/kumamontessori/kuma/internal/carrier"
	"github.com/kumamontessori/kuma/internal/db"
	"github.com/kumamontessori/kuma/internal/logging"
	"github.com/kumamontessori/kuma/internal/models"
)

const (
	trackingSyncBatchSize = 100
	defaultParcelWeight   = 1.0
	missingLocation       = "N/A"
)

var ErrShippingUnavailable = errors.New("shipping service unavailable")

// DemoTrackingNumbers are suggested on the tracking page.
var DemoTrackingNumbers = []string{"OCA123456789", "OCA456789123", "OCA789123456"}

type shippingStore interface {
	Create(ctx context.Context, shipping *models.Shipping) error
	UpdateStatus(ctx context.Context, shippingID uuid.UUID, event models.ShippingEvent) (*models.Shipping, error)
	AttachLabel(ctx context.Context, shippingID uuid.UUID, trackingNumber, label string) error
	GetByID(ctx context.Context, shippingID uuid.UUID) (*models.Shipping, error)
	GetByTrackingNumber(ctx context.Context, trackingNumber string) (*models.Shipping, error)
	ClaimForTracking(ctx context.Context, limit int) ([]*models.Shipping, error)
}

type shippingOrderStore interface {
	GetByID(ctx context.Context, orderID uuid.UUID) (*models.Order, error)
	MarkShipped(ctx context.Context, orderID uuid.UUID) error
	MarkDelivered(ctx context.Context, orderID uuid.UUID) error
}

type ShippingConfig struct {
	OriginPostalCode string
	Operativa        string
}

type ShippingService struct {
	carrier       carrier.Carrier
	shippings     shippingStore
	orders        shippingOrderStore
	emails        OrderEmailSender
	config        ShippingConfig
	quotes        cache.Provider
	quoteTTL      time.Duration
	trackingBatch int
	logger        *slog.Logger
}

func NewShippingService(c carrier.Carrier, shippings shippingStore, orders shippingOrderStore, emails OrderEmailSender, config ShippingConfig, logger *slog.Logger) *ShippingService {
	if emails == nil {
		emails = noopOrderEmailSender{}
	}
	if config.Operativa == "" {
		config.Operativa = carrier.DefaultOperativa
	}
	return &ShippingService{
		carrier:   c,
		shippings: shippings,
		orders:    orders,
		emails:    emails,
		config:    config,
		logger:    logger,

		trackingBatch: trackingSyncBatchSize,
	}
}

func (s *ShippingService) loggerFromContext(ctx context.Context) *slog.Logger {
	return logging.FromContext(ctx, s.logger)
}

func (s *ShippingService) carrierReady() error {
	if s == nil || s.carrier == nil {
		return ErrShippingUnavailable
	}
	return nil
}

func (s *ShippingService) storesReady() error {
	if s == nil || s.shippings == nil || s.orders == nil {
		return ErrShippingUnavailable
	}
	return nil
}

func (s *ShippingService) CarrierName() string {
	if s == nil || s.carrier == nil {
		return ""
	}
	return s.carrier.Name()
}

// Quote asks the carrier for a price, defaulting the origin and operativa
// to the store's own.
func (s *ShippingService) Quote(ctx context.Context, req carrier.QuoteRequest) (*carrier.Quote, error) {
	span := startSpan(ctx, "service.shipping.quote", "service.shipping", "Quote")
	defer span.Finish()
	ctx = span.Context()

	if err := s.carrierReady(); err != nil {
		return nil, err
	}
	if strings.TrimSpace(req.OriginPostalCode) == "" {
		req.OriginPostalCode = s.config.OriginPostalCode
	}
	if req.Operativa == "" {
		req.Operativa = s.config.Operativa
	}
	if req.Packages <= 0 {
		req.Packages = 1
	}

	key := s.quoteKey(req)
	if quote, ok := s.cachedQuote(ctx, key); ok {
		return quote, nil
	}
	quote, err := s.carrier.Quote(ctx, req)
	if err != nil {
		return nil, err
	}
	s.storeQuote(ctx, key, quote)
	return quote, nil
}

// QuoteShipping quotes one standard parcel to postalCode.
func (s *ShippingService) QuoteShipping(ctx context.Context, postalCode string, declaredValue decimal.Decimal) (*carrier.Quote, error) {
	return s.Quote(ctx, carrier.QuoteRequest{
		DestinationPostalCode: postalCode,
		Weight:                defaultParcelWeight,
		DeclaredValue:         declaredValue,
		Packages:              1,
	})
}

func (s *ShippingService) CreateLabel(ctx context.Context, req carrier.LabelRequest) (*carrier.Label, error) {
	span := startSpan(ctx, "service.shipping.create_label", "service.shipping", "CreateLabel")
	defer span.Finish()
	ctx = span.Context()

	if err := s.carrierReady(); err != nil {
		return nil, err
	}
	if req.Packages <= 0 {
		req.Packages = 1
	}
	return s.carrier.CreateLabel(ctx, req)
}

func (s *ShippingService) Track(ctx context.Context, trackingNumber, document string) (*carrier.Tracking, error) {
	span := startSpan(ctx, "service.shipping.track", "service.shipping", "Track")
	defer span.Finish()
	ctx = span.Context()

	if err := s.carrierReady(); err != nil {
		return nil, err
	}
	return s.carrier.Track(ctx, strings.TrimSpace(trackingNumber), document)
}

type CreateShippingInput struct {
	OrderID           uuid.UUID       `json:"orderId"`
	Provider          string          `json:"provider"`
	TrackingNumber    string          `json:"trackingNumber"`
	Cost              decimal.Decimal `json:"cost"`
	EstimatedDelivery string          `json:"estimatedDelivery"`
}

// CreateShipping registers a PENDING shipment for an existing order.
func (s *ShippingService) CreateShipping(ctx context.Context, input CreateShippingInput) (*models.Shipping, error) {
	span := startSpan(ctx, "service.shipping.create_shipping", "service.shipping", "CreateShipping")
	defer span.Finish()
	ctx = span.Context()

	if err := s.storesReady(); err != nil {
		return nil, err
	}
	if input.OrderID == uuid.Nil {
		return nil, userError("La orden es requerida")
	}
	if input.Cost.IsNegative() {
		return nil, userError("El costo de envío no puede ser negativo")
	}
	if _, err := s.orders.GetByID(ctx, input.OrderID); err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return nil, ErrOrderNotFound
		}
		return nil, fmt.Errorf("failed to get order: %w", err)
	}

	shipping := &models.Shipping{
		OrderID:           input.OrderID,
		Provider:          strings.TrimSpace(input.Provider),
		TrackingNumber:    strings.TrimSpace(input.TrackingNumber),
		Cost:              input.Cost,
		EstimatedDelivery: strings.TrimSpace(input.EstimatedDelivery),
	}
	if err := s.shippings.Create(ctx, shipping); err != nil {
		if errors.Is(err, db.ErrConflict) {
			return nil, userError("La orden ya tiene un envío registrado")
		}
		return nil, fmt.Errorf("failed to create shipping: %w", err)
	}
	s.loggerFromContext(ctx).Info("shipping created", "shipping_id", shipping.ID, "order_id", shipping.OrderID)
	return shipping, nil
}

type UpdateShippingInput struct {
	Status      string `json:"status"`
	Description string `json:"description"`
	Location    string `json:"location"`
}

// UpdateShippingStatus appends an event and, when the parcel is delivered,
// moves a SHIPPED order to DELIVERED.
func (s *ShippingService) UpdateShippingStatus(ctx context.Context, shippingID uuid.UUID, input UpdateShippingInput) (*models.Shipping, error) {
	span := startSpan(ctx, "service.shipping.update_status", "service.shipping", "UpdateShippingStatus")
	defer span.Finish()
	ctx = span.Context()

	if err := s.storesReady(); err != nil {
		return nil, err
	}
	status, err := models.ParseShippingStatus(input.Status)
	if err != nil {
		return nil, &UserError{Message: "Estado de envío inválido", Err: err}
	}
	description := strings.TrimSpace(input.Description)
	if description == "" {
		description = status.Label()
	}

	shipping, err := s.shippings.UpdateStatus(ctx, shippingID, models.ShippingEvent{
		Status:      status,
		Description: description,
		Location:    strings.TrimSpace(input.Location),
	})
	if errors.Is(err, db.ErrNotFound) {
		return nil, ErrShippingNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to update shipping: %w", err)
	}
	if status == models.ShippingDelivered {
		s.followDelivery(ctx, shipping.OrderID)
	}
	return shipping, nil
}

func (s *ShippingService) followDelivery(ctx context.Context, orderID uuid.UUID) {
	logger := s.loggerFromContext(ctx).With("order_id", orderID)
	if err := s.orders.MarkDelivered(ctx, orderID); err != nil {
		if errors.Is(err, ErrInvalidStatusTransition) {
			logger.Info("order not moved to delivered", "error", err)
			return
		}
		logger.Warn("failed to mark order delivered", "error", err)
		return
	}
	logger.Info("order delivered")
	notifyOrder(ctx, logger, s.orders, s.emails, orderID, models.StatusDelivered)
}

type TrackingInfo struct {
	TrackingNumber    string                `json:"trackingNumber"`
	Provider          string                `json:"provider"`
	Status            models.ShippingStatus `json:"status"`
	EstimatedDelivery string                `json:"estimatedDelivery,omitempty"`
	Events            []TrackingEvent       `json:"events"`
}

type TrackingEvent struct {
	Date        string `json:"date"`
	Description string `json:"description"`
	Location    string `json:"location"`
}

// TrackShipment returns the stored shipment history, newest event first.
func (s *ShippingService) TrackShipment(ctx context.Context, trackingNumber string) (*TrackingInfo, error) {
	span := startSpan(ctx, "service.shipping.track_shipment", "service.shipping", "TrackShipment")
	defer span.Finish()
	ctx = span.Context()

	if err := s.storesReady(); err != nil {
		return nil, err
	}
	number := strings.TrimSpace(trackingNumber)
	if number == "" {
		return nil, userError("Número de seguimiento requerido")
	}
	shipping, err := s.shippings.GetByTrackingNumber(ctx, number)
	if errors.Is(err, db.ErrNotFound) {
		return nil, ErrShippingNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get shipping: %w", err)
	}
	return newTrackingInfo(shipping), nil
}

func newTrackingInfo(shipping *models.Shipping) *TrackingInfo {
	info := &TrackingInfo{
		TrackingNumber:    shipping.TrackingNumber,
		Provider:          shipping.Provider,
		Status:            shipping.Status,
		EstimatedDelivery: shipping.EstimatedDelivery,
		Events:            make([]TrackingEvent, 0, len(shipping.Events)),
	}
	for _, event := range shipping.Events {
		description := event.Description
		if description == "" {
			description = string(event.Status)
		}
		location := event.Location
		if location == "" {
			location = missingLocation
		}
		info.Events = append(info.Events, TrackingEvent{
			Date:        event.CreatedAt.UTC().Format(time.RFC3339),
			Description: description,
			Location:    location,
		})
	}
	return info
}

// LookupTracking serves the public tracking page: the stored history when the
// number belongs to one of our shipments, the carrier's answer otherwise.
func (s *ShippingService) LookupTracking(ctx context.Context, trackingNumber string) (*TrackingInfo, error) {
	info, err := s.TrackShipment(ctx, trackingNumber)
	switch {
	case err == nil:
		return info, nil
	case errors.Is(err, ErrShippingNotFound), errors.Is(err, ErrShippingUnavailable):
	default:
		return nil, err
	}

	tracking, trackErr := s.Track(ctx, trackingNumber, "")
	if trackErr != nil {
		s.loggerFromContext(ctx).Warn("carrier tracking lookup failed", "tracking_number", trackingNumber, "error", trackErr)
		return nil, ErrShippingNotFound
	}

	info = &TrackingInfo{
		TrackingNumber: strings.TrimSpace(trackingNumber),
		Provider:       s.CarrierName(),
		Status:         carrier.ShippingStatus(tracking.Status),
		Events:         make([]TrackingEvent, 0, len(tracking.Events)),
	}
	// Carriers report oldest first.
	for i := len(tracking.Events) - 1; i >= 0; i-- {
		event := tracking.Events[i]
		location := event.Location
		if location == "" {
			location = missingLocation
		}
		info.Events = append(info.Events, TrackingEvent{Date: event.Date, Description: event.Description, Location: location})
	}
	return info, nil
}

// labelableStatuses are the order statuses a parcel can be labelled from.
var labelableStatuses = map[models.OrderStatus]bool{
	models.StatusPaid:       true,
	models.StatusProcessing: true,
	models.StatusShipped:    true,
}

// GenerateLabel asks the carrier for a label, stores it on the order's
// shipment and marks the order SHIPPED.
func (s *ShippingService) GenerateLabel(ctx context.Context, orderID uuid.UUID) (*models.Shipping, error) {
	span := startSpan(ctx, "service.shipping.generate_label", "service.shipping", "GenerateLabel")
	defer span.Finish()
	ctx = span.Context()

	if err := s.storesReady(); err != nil {
		return nil, err
	}
	if err := s.carrierReady(); err != nil {
		return nil, err
	}
	logger := s.loggerFromContext(ctx).With("order_id", orderID)

	order, err := s.orders.GetByID(ctx, orderID)
	if errors.Is(err, db.ErrNotFound) {
		return nil, ErrOrderNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get order: %w", err)
	}
	if !labelableStatuses[order.Status] {
		return nil, userError("Solo se pueden generar etiquetas para órdenes pagadas")
	}

	shipping := order.Shipping
	if shipping == nil {
		shipping = &models.Shipping{OrderID: order.ID, Provider: models.DefaultShippingProvider, Cost: decimal.Zero}
		if err := s.shippings.Create(ctx, shipping); err != nil {
			return nil, fmt.Errorf("failed to create shipping: %w", err)
		}
	}
	if shipping.TrackingNumber != "" {
		return nil, userError("La orden ya tiene una etiqueta generada")
	}

	label, err := s.CreateLabel(ctx, carrier.LabelRequest{
		OrderID:          order.ShortID(),
		RecipientName:    order.CustomerName,
		RecipientAddress: order.ShippingAddress,
		PostalCode:       order.ShippingPostalCode,
		City:             order.ShippingCity,
		Phone:            order.CustomerPhone,
		Email:            order.CustomerEmail,
		Packages:         1,
		Weight:           defaultParcelWeight,
		DeclaredValue:    order.Subtotal(),
		Observations:     order.Notes,
	})
	if err != nil {
		var validationErr *carrier.ValidationError
		if errors.As(err, &validationErr) {
			return nil, &UserError{Message: validationErr.Message, Err: err}
		}
		return nil, fmt.Errorf("failed to create label: %w", err)
	}

	if err := s.shippings.AttachLabel(ctx, shipping.ID, label.TrackingNumber, label.Label); err != nil {
		return nil, fmt.Errorf("failed to store label: %w", err)
	}
	if err := s.orders.MarkShipped(ctx, order.ID); err != nil {
		return nil, fmt.Errorf("failed to mark order shipped: %w", err)
	}
	logger.Info("shipping label generated", "tracking_number", label.TrackingNumber, "carrier", s.carrier.Name())
	if order.Status != models.StatusShipped {
		notifyOrder(ctx, logger, s.orders, s.emails, order.ID, models.StatusShipped)
	}

	updated, err := s.shippings.GetByID(ctx, shipping.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to reload shipping: %w", err)
	}
	return updated, nil
}

type TrackingSyncResult struct {
	Checked int
	Updated int
	Failed  int
}

// SyncTracking polls the carrier for the least recently checked batch of
// active shipments and records the state changes it reports. Each run moves
// on to the next batch, so every shipment is polled eventually.
func (s *ShippingService) SyncTracking(ctx context.Context) (*TrackingSyncResult, error) {
	span := startSpan(ctx, "service.shipping.sync_tracking", "service.shipping", "SyncTracking")
	defer span.Finish()
	ctx = span.Context()

	if err := s.storesReady(); err != nil {
		return nil, err
	}
	if err := s.carrierReady(); err != nil {
		return nil, err
	}
	logger := s.loggerFromContext(ctx)

	active, err := s.shippings.ClaimForTracking(ctx, s.trackingBatch)
	if err != nil {
		return nil, fmt.Errorf("failed to claim shippings for tracking: %w", err)
	}

	result := &TrackingSyncResult{}
	for _, shipping := range active {
		result.Checked++
		tracking, err := s.carrier.Track(ctx, shipping.TrackingNumber, "")
		if err != nil {
			result.Failed++
			logger.Warn("failed to track shipment", "error", err, "tracking_number", shipping.TrackingNumber)
			continue
		}
		status := carrier.ShippingStatus(tracking.Status)
		if status == shipping.Status {
			continue
		}

		event := models.ShippingEvent{Status: status, Description: status.Label()}
		if latest := latestCarrierEvent(tracking); latest != nil {
			if latest.Description != "" {
				event.Description = latest.Description
			}
			event.Location = latest.Location
		}
		if _, err := s.shippings.UpdateStatus(ctx, shipping.ID, event); err != nil {
			result.Failed++
			logger.Warn("failed to record tracking update", "error", err, "shipping_id", shipping.ID)
			continue
		}
		result.Updated++
		logger.Info("shipment status changed", "shipping_id", shipping.ID, "from", shipping.Status, "to", status)
		if status == models.ShippingDelivered {
			s.followDelivery(ctx, shipping.OrderID)
		}
	}
	return result, nil
}

// latestCarrierEvent returns the last event the carrier listed, which is the most recent one.
func latestCarrierEvent(tracking *carrier.Tracking) *carrier.Event {
	if tracking == nil || len(tracking.Events) == 0 {
		return nil
	}
	return &tracking.Events[len(tracking.Events)-1]
}
