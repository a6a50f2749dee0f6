package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	stripeapi "github.com/stripe/stripe-go/v84"

	"github.com/kumamontessori/kuma/internal/cache"
	"github.com/kumamontessori/kuma/internal/db"
	"github.com/kumamontessori/kuma/internal/logging"
	"github.com/kumamontessori/kuma/internal/models"
	"github.com/kumamontessori/kuma/internal/observability"
	"github.com/kumamontessori/kuma/internal/payments"
	"github.com/kumamontessori/kuma/internal/payments/mercadopago"
	"github.com/kumamontessori/kuma/internal/stripe"
)

const (
	webhookDedupTTL    = 24 * time.Hour
	reconcileBatchSize = 50
)

var (
	ErrPaymentUnavailable  = errors.New("payment service unavailable")
	ErrInvalidNotification = errors.New("invalid payment notification")
)

type paymentOrderStore interface {
	GetByID(ctx context.Context, orderID uuid.UUID) (*models.Order, error)
	ApplyPayment(ctx context.Context, orderID uuid.UUID, update db.PaymentUpdate) (models.OrderStatus, error)
	ListPendingBefore(ctx context.Context, cutoff time.Time, limit int) ([]*models.Order, error)
}

type PaymentService struct {
	orders  paymentOrderStore
	gateway payments.Gateway
	cache   cache.Provider
	emails  OrderEmailSender
	metrics *prometheus.CounterVec
	now     func() time.Time
	logger  *slog.Logger
}

// NewPaymentService wires the webhook and reconcile flows. metrics may be nil.
func NewPaymentService(orders paymentOrderStore, gateway payments.Gateway, cacheProvider cache.Provider, emails OrderEmailSender, metrics *prometheus.CounterVec, logger *slog.Logger) *PaymentService {
	if emails == nil {
		emails = noopOrderEmailSender{}
	}
	return &PaymentService{
		orders:  orders,
		gateway: gateway,
		cache:   cacheProvider,
		emails:  emails,
		metrics: metrics,
		now:     time.Now,
		logger:  logger,
	}
}

func (s *PaymentService) loggerFromContext(ctx context.Context) *slog.Logger {
	return logging.FromContext(ctx, s.logger)
}

func (s *PaymentService) ready() error {
	if s == nil || s.orders == nil || s.gateway == nil {
		return ErrPaymentUnavailable
	}
	return nil
}

// recordWebhook counts a delivery in both Sentry and Prometheus.
func (s *PaymentService) recordWebhook(ctx context.Context, provider, outcome string) {
	observability.Count(ctx, "payment.webhook", "provider", provider, "outcome", outcome)
	if s.metrics != nil {
		s.metrics.WithLabelValues(provider, outcome).Inc()
	}
}

// HandleMercadoPago fetches the notified payment and applies it to its order.
// Topics other than payments are acknowledged without work.
func (s *PaymentService) HandleMercadoPago(ctx context.Context, notification mercadopago.Notification) error {
	span := startSpan(ctx, "service.payment.handle_mercadopago", "service.payment", "HandleMercadoPago")
	defer span.Finish()
	ctx = span.Context()

	if err := s.ready(); err != nil {
		return err
	}
	logger := s.loggerFromContext(ctx)

	if !notification.IsPayment() {
		s.recordWebhook(ctx, payments.ProviderMercadoPago, "ignored")
		logger.Debug("ignoring mercadopago notification", "type", notification.Type, "action", notification.Action)
		return nil
	}
	if notification.DataID == "" {
		s.recordWebhook(ctx, payments.ProviderMercadoPago, "invalid")
		return fmt.Errorf("%w: missing payment id", ErrInvalidNotification)
	}

	payment, err := s.gateway.GetPayment(ctx, notification.DataID)
	if err != nil {
		s.recordWebhook(ctx, payments.ProviderMercadoPago, "lookup_failed")
		return fmt.Errorf("failed to get payment %s: %w", notification.DataID, err)
	}
	return s.processPayment(ctx, payments.ProviderMercadoPago, *payment)
}

// HandleStripeEvent applies a verified Stripe event. Events that carry no
// order reference are resolved through the payment intent metadata.
func (s *PaymentService) HandleStripeEvent(ctx context.Context, event *stripeapi.Event) error {
	span := startSpan(ctx, "service.payment.handle_stripe_event", "service.payment", "HandleStripeEvent")
	defer span.Finish()
	ctx = span.Context()

	if err := s.ready(); err != nil {
		return err
	}
	if event == nil {
		return fmt.Errorf("%w: event is required", ErrInvalidNotification)
	}
	logger := s.loggerFromContext(ctx).With("event_id", event.ID, "event_type", event.Type)

	payment, ok, err := stripe.EventPayment(event)
	if err != nil {
		s.recordWebhook(ctx, payments.ProviderStripe, "invalid")
		return fmt.Errorf("%w: %w", ErrInvalidNotification, err)
	}
	if !ok {
		s.recordWebhook(ctx, payments.ProviderStripe, "ignored")
		logger.Debug("ignoring stripe event")
		return nil
	}

	if payment.ExternalReference == "" && payment.ID != "" {
		resolved, err := s.gateway.GetPayment(ctx, payment.ID)
		if err != nil {
			s.recordWebhook(ctx, payments.ProviderStripe, "lookup_failed")
			return fmt.Errorf("failed to resolve payment %s: %w", payment.ID, err)
		}
		payment.ExternalReference = resolved.ExternalReference
	}
	return s.processPayment(logging.WithLogger(ctx, logger), payments.ProviderStripe, payment)
}

// processPayment de-duplicates by (payment, status) and moves the order along
// the guarded transitions. Rejected transitions and unknown orders are
// acknowledged so the gateway stops retrying.
func (s *PaymentService) processPayment(ctx context.Context, provider string, payment payments.Payment) error {
	logger := s.loggerFromContext(ctx).With("provider", provider, "payment_id", payment.ID, "payment_status", payment.Status)

	orderID, err := uuid.Parse(payment.ExternalReference)
	if err != nil {
		s.recordWebhook(ctx, provider, "unknown_order")
		logger.Warn("payment without a valid order reference", "external_reference", payment.ExternalReference)
		return nil
	}
	logger = logger.With("order_id", orderID)

	key := cache.WebhookKey(provider, payment.ID, payment.Status)
	if s.cache != nil {
		fresh, err := s.cache.SetIfAbsent(ctx, key, orderID.String(), webhookDedupTTL)
		if err != nil {
			logger.Warn("failed to record webhook delivery, processing anyway", "error", err)
		} else if !fresh {
			s.recordWebhook(ctx, provider, "duplicate")
			logger.Info("duplicate payment notification")
			return nil
		}
	}

	status, previous, err := s.applyPayment(ctx, orderID, payment)
	switch {
	case err == nil:
	case errors.Is(err, ErrInvalidStatusTransition):
		s.recordWebhook(ctx, provider, "transition_rejected")
		logger.Info("payment status transition rejected", "error", err)
		return nil
	case errors.Is(err, db.ErrNotFound):
		s.recordWebhook(ctx, provider, "unknown_order")
		logger.Warn("payment for unknown order")
		return nil
	default:
		s.forget(ctx, logger, key)
		s.recordWebhook(ctx, provider, "failed")
		return fmt.Errorf("failed to apply payment: %w", err)
	}

	s.recordWebhook(ctx, provider, "processed")
	logger.Info("payment applied", "previous_status", previous, "status", status)
	if status != previous {
		notifyOrder(ctx, logger, s.orders, s.emails, orderID, status)
	}
	return nil
}

func (s *PaymentService) applyPayment(ctx context.Context, orderID uuid.UUID, payment payments.Payment) (models.OrderStatus, models.OrderStatus, error) {
	status := payment.OrderStatus()
	previous, err := s.orders.ApplyPayment(ctx, orderID, db.PaymentUpdate{
		Status:        status,
		PaymentID:     payment.ID,
		PaymentMethod: payment.PaymentMethod,
		PaymentStatus: payment.Status,
	})
	return status, previous, err
}

// forget drops the de-duplication key so the gateway retry is processed again.
func (s *PaymentService) forget(ctx context.Context, logger *slog.Logger, key string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Delete(ctx, key); err != nil {
		logger.Warn("failed to clear webhook delivery key", "error", err, "key", key)
	}
}

type ReconcileResult struct {
	Checked int
	Updated int
	Failed  int
}

// ReconcilePending re-checks PENDING orders older than olderThan against the
// gateway, covering notifications that never arrived.
func (s *PaymentService) ReconcilePending(ctx context.Context, olderThan time.Duration) (*ReconcileResult, error) {
	span := startSpan(ctx, "service.payment.reconcile_pending", "service.payment", "ReconcilePending")
	defer span.Finish()
	ctx = span.Context()

	if err := s.ready(); err != nil {
		return nil, err
	}
	logger := s.loggerFromContext(ctx)

	orders, err := s.orders.ListPendingBefore(ctx, s.now().Add(-olderThan), reconcileBatchSize)
	if err != nil {
		return nil, fmt.Errorf("failed to list pending orders: %w", err)
	}

	result := &ReconcileResult{}
	for _, order := range orders {
		result.Checked++
		found, err := s.gateway.SearchPayments(ctx, order.ID.String())
		if err != nil {
			result.Failed++
			logger.Warn("failed to search payments", "error", err, "order_id", order.ID)
			continue
		}
		payment, ok := decisivePayment(found)
		if !ok {
			continue
		}

		status, previous, err := s.applyPayment(ctx, order.ID, payment)
		if err != nil {
			if !errors.Is(err, ErrInvalidStatusTransition) {
				result.Failed++
				logger.Warn("failed to reconcile order", "error", err, "order_id", order.ID)
			}
			continue
		}
		if status != previous {
			result.Updated++
			logger.Info("order reconciled", "order_id", order.ID, "status", status, "payment_id", payment.ID)
			notifyOrder(ctx, logger, s.orders, s.emails, order.ID, status)
		}
	}
	return result, nil
}

// decisivePayment picks the payment that settles an order: an approved one
// wins, otherwise the last payment that left the pending state.
func decisivePayment(found []payments.Payment) (payments.Payment, bool) {
	var (
		chosen payments.Payment
		ok     bool
	)
	for _, payment := range found {
		switch payment.OrderStatus() {
		case models.StatusPaid:
			return payment, true
		case models.StatusPending:
			continue
		}
		chosen, ok = payment, true
	}
	return chosen, ok
}
