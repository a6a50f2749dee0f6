package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/kumamontessori/kuma/internal/db"
	"github.com/kumamontessori/kuma/internal/logging"
	"github.com/kumamontessori/kuma/internal/models"
)

const recentOrdersLimit = 5

var ErrAdminServiceUnavailable = errors.New("admin service unavailable")

type adminOrderStore interface {
	GetByID(ctx context.Context, orderID uuid.UUID) (*models.Order, error)
	List(ctx context.Context, limit int) ([]*models.Order, error)
	Stats(ctx context.Context) (*db.OrderStats, error)
	SetStatus(ctx context.Context, orderID uuid.UUID, status models.OrderStatus) (models.OrderStatus, error)
}

type counter interface {
	Count(ctx context.Context) (int, error)
}

type AdminService struct {
	orders     adminOrderStore
	products   counter
	categories counter
	emails     OrderEmailSender
	logger     *slog.Logger
}

func NewAdminService(orders adminOrderStore, products, categories counter, emails OrderEmailSender, logger *slog.Logger) *AdminService {
	if emails == nil {
		emails = noopOrderEmailSender{}
	}
	return &AdminService{
		orders:     orders,
		products:   products,
		categories: categories,
		emails:     emails,
		logger:     logger,
	}
}

func (s *AdminService) loggerFromContext(ctx context.Context) *slog.Logger {
	return logging.FromContext(ctx, s.logger)
}

func (s *AdminService) ready() error {
	if s == nil || s.orders == nil || s.products == nil || s.categories == nil {
		return ErrAdminServiceUnavailable
	}
	return nil
}

type StatusCount struct {
	Status models.OrderStatus
	Count  int
}

type Dashboard struct {
	ProductCount   int
	CategoryCount  int
	TotalOrders    int
	TotalSales     decimal.Decimal
	OrdersByStatus []StatusCount
	RecentOrders   []*models.Order
}

func (s *AdminService) Dashboard(ctx context.Context) (*Dashboard, error) {
	span := startSpan(ctx, "service.admin.dashboard", "service.admin", "Dashboard")
	defer span.Finish()
	ctx = span.Context()

	if err := s.ready(); err != nil {
		return nil, err
	}

	products, err := s.products.Count(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to count products: %w", err)
	}
	categories, err := s.categories.Count(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to count categories: %w", err)
	}
	stats, err := s.orders.Stats(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate orders: %w", err)
	}
	recent, err := s.orders.List(ctx, recentOrdersLimit)
	if err != nil {
		return nil, fmt.Errorf("failed to list recent orders: %w", err)
	}

	dashboard := &Dashboard{
		ProductCount:  products,
		CategoryCount: categories,
		TotalOrders:   stats.TotalOrders,
		TotalSales:    stats.TotalSales,
		RecentOrders:  recent,
	}
	for _, status := range models.OrderStatuses {
		if count := stats.ByStatus[status]; count > 0 {
			dashboard.OrdersByStatus = append(dashboard.OrdersByStatus, StatusCount{Status: status, Count: count})
		}
	}
	return dashboard, nil
}

func (s *AdminService) ListOrders(ctx context.Context) ([]*models.Order, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	orders, err := s.orders.List(ctx, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to list orders: %w", err)
	}
	return orders, nil
}

func (s *AdminService) GetOrder(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	order, err := s.orders.GetByID(ctx, orderID)
	if errors.Is(err, db.ErrNotFound) {
		return nil, ErrOrderNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get order: %w", err)
	}
	return order, nil
}

// UpdateOrderStatus is the admin override: any valid status may be set.
func (s *AdminService) UpdateOrderStatus(ctx context.Context, orderID uuid.UUID, value string) error {
	span := startSpan(ctx, "service.admin.update_order_status", "service.admin", "UpdateOrderStatus")
	defer span.Finish()
	ctx = span.Context()

	if err := s.ready(); err != nil {
		return err
	}
	status, err := models.ParseOrderStatus(value)
	if err != nil {
		return &UserError{Message: "Estado de orden inválido", Err: err}
	}

	previous, err := s.orders.SetStatus(ctx, orderID, status)
	if errors.Is(err, db.ErrNotFound) {
		return ErrOrderNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to update order status: %w", err)
	}

	logger := s.loggerFromContext(ctx).With("order_id", orderID)
	logger.Info("order status updated by admin", "previous_status", previous, "status", status)
	if previous != status {
		notifyOrder(ctx, logger, s.orders, s.emails, orderID, status)
	}
	return nil
}
