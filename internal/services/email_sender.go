package services

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"

	"github.com/google/uuid"

	"github.com/kumamontessori/kuma/internal/email"
	"github.com/kumamontessori/kuma/internal/models"
)

type OrderEmailSender interface {
	SendOrderConfirmation(ctx context.Context, order *models.Order) error
	SendOrderShipped(ctx context.Context, order *models.Order) error
	SendOrderDelivered(ctx context.Context, order *models.Order) error
}

type receiptIssuer interface {
	Issue(orderID uuid.UUID) (string, error)
}

// ProviderOrderEmailSender renders the order templates and sends them
// through the configured email provider.
type ProviderOrderEmailSender struct {
	provider email.Provider
	renderer *email.Renderer
	receipts receiptIssuer
	siteURL  string
}

// NewOrderEmailSender returns a sender that drops every email when provider is nil.
func NewOrderEmailSender(provider email.Provider, receipts receiptIssuer, siteURL string) (OrderEmailSender, error) {
	if provider == nil {
		return noopOrderEmailSender{}, nil
	}
	renderer, err := email.NewRenderer()
	if err != nil {
		return nil, err
	}
	return &ProviderOrderEmailSender{
		provider: provider,
		renderer: renderer,
		receipts: receipts,
		siteURL:  siteURL,
	}, nil
}

func (s *ProviderOrderEmailSender) SendOrderConfirmation(ctx context.Context, order *models.Order) error {
	return s.send(ctx, email.OrderConfirmation, order)
}

func (s *ProviderOrderEmailSender) SendOrderShipped(ctx context.Context, order *models.Order) error {
	return s.send(ctx, email.OrderShipped, order)
}

func (s *ProviderOrderEmailSender) SendOrderDelivered(ctx context.Context, order *models.Order) error {
	return s.send(ctx, email.OrderDelivered, order)
}

func (s *ProviderOrderEmailSender) send(ctx context.Context, template email.Template, order *models.Order) error {
	if order == nil {
		return fmt.Errorf("order is required")
	}
	msg, err := s.renderer.Render(template, email.NewOrderInfo(order, s.siteURL, s.orderURL(order.ID)))
	if err != nil {
		return err
	}
	return s.provider.SendEmail(ctx, msg)
}

// orderURL links to the signed receipt page. It is empty when no token can be issued.
func (s *ProviderOrderEmailSender) orderURL(orderID uuid.UUID) string {
	if s.receipts == nil {
		return ""
	}
	token, err := s.receipts.Issue(orderID)
	if err != nil {
		return ""
	}
	return s.siteURL + "/checkout/success?receipt=" + url.QueryEscape(token)
}

type noopOrderEmailSender struct{}

func (noopOrderEmailSender) SendOrderConfirmation(context.Context, *models.Order) error {
	return nil
}

func (noopOrderEmailSender) SendOrderShipped(context.Context, *models.Order) error {
	return nil
}

func (noopOrderEmailSender) SendOrderDelivered(context.Context, *models.Order) error {
	return nil
}

type orderLoader interface {
	GetByID(ctx context.Context, orderID uuid.UUID) (*models.Order, error)
}

// notifyOrder reloads the order and sends the email for its new status.
// Failures are logged; they never undo the status change.
func notifyOrder(ctx context.Context, logger *slog.Logger, orders orderLoader, sender OrderEmailSender, orderID uuid.UUID, status models.OrderStatus) {
	if sender == nil {
		return
	}
	var send func(context.Context, *models.Order) error
	switch status {
	case models.StatusPaid:
		send = sender.SendOrderConfirmation
	case models.StatusShipped:
		send = sender.SendOrderShipped
	case models.StatusDelivered:
		send = sender.SendOrderDelivered
	default:
		return
	}

	order, err := orders.GetByID(ctx, orderID)
	if err != nil {
		logger.Warn("failed to load order for email", "error", err, "order_id", orderID, "status", status)
		return
	}
	if err := send(ctx, order); err != nil {
		logger.Warn("failed to send order email", "error", err, "order_id", orderID, "status", status)
		return
	}
	logger.Info("order email sent", "order_id", orderID, "status", status)
}
