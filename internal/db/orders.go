package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/kumamontessori/kuma/internal/models"
	"github.com/kumamontessori/kuma/internal/money"
)

type OrderStore struct {
	pool *pgxpool.Pool
}

var ErrInvalidStatusTransition = errors.New("invalid order status transition")

// paymentTransitions lists, per target status, the statuses a payment
// notification may move an order from.
var paymentTransitions = map[OrderStatus][]OrderStatus{
	StatusPaid:     {StatusPending, StatusFailed, StatusPaid},
	StatusFailed:   {StatusPending, StatusFailed},
	StatusRefunded: {StatusPaid, StatusProcessing, StatusShipped, StatusDelivered, StatusRefunded},
	StatusPending:  {StatusPending},
}

// AllowedPaymentSources returns the statuses from which a payment may move an order to target.
func AllowedPaymentSources(target OrderStatus) []OrderStatus {
	return paymentTransitions[target]
}

func NewOrderStore(pool *pgxpool.Pool) *OrderStore {
	return &OrderStore{pool: pool}
}

// Create stores the order, its items and, when present, its shipping record in one transaction.
func (s *OrderStore) Create(ctx context.Context, order *Order) error {
	if len(order.Items) == 0 {
		return fmt.Errorf("order has no items")
	}
	if order.Status == "" {
		order.Status = StatusPending
	}

	return withTx(ctx, s.pool, func(tx pgx.Tx) error {
		err := tx.QueryRow(ctx, `
			INSERT INTO orders (
				customer_name, customer_email, customer_phone, shipping_address, shipping_city,
				shipping_postal_code, notes, total_cents, status
			)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
			RETURNING id, created_at, updated_at`,
			order.CustomerName, order.CustomerEmail, order.CustomerPhone, order.ShippingAddress,
			order.ShippingCity, order.ShippingPostalCode, order.Notes, money.ToCents(order.Total),
			string(order.Status),
		).Scan(&order.ID, &order.CreatedAt, &order.UpdatedAt)
		if err != nil {
			return fmt.Errorf("failed to insert order: %w", mapError(err))
		}

		for i := range order.Items {
			item := &order.Items[i]
			item.OrderID = order.ID
			err := tx.QueryRow(ctx, `
				INSERT INTO order_items (order_id, product_id, title, quantity, unit_price_cents)
				VALUES ($1, $2, $3, $4, $5)
				RETURNING id`,
				order.ID, item.ProductID, item.Title, item.Quantity, money.ToCents(item.UnitPrice),
			).Scan(&item.ID)
			if err != nil {
				return fmt.Errorf("failed to insert order item: %w", mapError(err))
			}
		}
		order.ItemCount = len(order.Items)

		if order.Shipping != nil {
			order.Shipping.OrderID = order.ID
			if err := insertShipping(ctx, tx, order.Shipping); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *OrderStore) SetPaymentPreference(ctx context.Context, orderID uuid.UUID, preferenceID string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE orders SET payment_preference_id = $1, updated_at = NOW() WHERE id = $2`, preferenceID, orderID)
	if err != nil {
		return fmt.Errorf("failed to store payment preference: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

type PaymentUpdate struct {
	Status        OrderStatus
	PaymentID     string
	PaymentMethod string
	PaymentStatus string
}

// ApplyPayment records a gateway payment and moves the order only along
// paymentTransitions. It returns the status the order had before the update.
func (s *OrderStore) ApplyPayment(ctx context.Context, orderID uuid.UUID, update PaymentUpdate) (OrderStatus, error) {
	allowed, ok := paymentTransitions[update.Status]
	if !ok {
		return "", fmt.Errorf("%w: payments cannot set %s", ErrInvalidStatusTransition, update.Status)
	}

	var previous string
	err := s.pool.QueryRow(ctx, `
		WITH prev AS (SELECT status FROM orders WHERE id = $1 FOR UPDATE)
		UPDATE orders
		SET status = $2, payment_id = $3, payment_method = $4, payment_status = $5, updated_at = NOW()
		WHERE id = $1 AND status = ANY($6)
		RETURNING (SELECT status FROM prev)`,
		orderID, string(update.Status), update.PaymentID, update.PaymentMethod, update.PaymentStatus,
		statusStrings(allowed),
	).Scan(&previous)
	if err == nil {
		return OrderStatus(previous), nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return "", fmt.Errorf("failed to apply payment: %w", err)
	}

	current, lookupErr := s.currentStatus(ctx, orderID)
	if lookupErr != nil {
		return "", lookupErr
	}
	return current, fmt.Errorf("%w: %s -> %s", ErrInvalidStatusTransition, current, update.Status)
}

// SetStatus is the admin override: any valid status is accepted.
func (s *OrderStore) SetStatus(ctx context.Context, orderID uuid.UUID, status OrderStatus) (OrderStatus, error) {
	if _, err := models.ParseOrderStatus(string(status)); err != nil {
		return "", err
	}
	var previous string
	err := s.pool.QueryRow(ctx, `
		WITH prev AS (SELECT status FROM orders WHERE id = $1 FOR UPDATE)
		UPDATE orders SET status = $2, updated_at = NOW()
		WHERE id = $1
		RETURNING (SELECT status FROM prev)`,
		orderID, string(status),
	).Scan(&previous)
	if err != nil {
		return "", mapError(err)
	}
	return OrderStatus(previous), nil
}

// MarkShipped moves a paid order to SHIPPED once a label exists.
func (s *OrderStore) MarkShipped(ctx context.Context, orderID uuid.UUID) error {
	return s.guardedStatus(ctx, orderID, StatusShipped, StatusPaid, StatusProcessing, StatusShipped)
}

// MarkDelivered follows a delivered shipment.
func (s *OrderStore) MarkDelivered(ctx context.Context, orderID uuid.UUID) error {
	return s.guardedStatus(ctx, orderID, StatusDelivered, StatusShipped)
}

func (s *OrderStore) guardedStatus(ctx context.Context, orderID uuid.UUID, target OrderStatus, from ...OrderStatus) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE orders SET status = $1, updated_at = NOW() WHERE id = $2 AND status = ANY($3)`,
		string(target), orderID, statusStrings(from))
	if err != nil {
		return fmt.Errorf("failed to update order status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		current, lookupErr := s.currentStatus(ctx, orderID)
		if lookupErr != nil {
			return lookupErr
		}
		return fmt.Errorf("%w: %s -> %s", ErrInvalidStatusTransition, current, target)
	}
	return nil
}

func (s *OrderStore) currentStatus(ctx context.Context, orderID uuid.UUID) (OrderStatus, error) {
	var current string
	if err := s.pool.QueryRow(ctx, `SELECT status FROM orders WHERE id = $1`, orderID).Scan(&current); err != nil {
		return "", mapError(err)
	}
	return OrderStatus(current), nil
}

const orderColumns = `o.id, o.customer_name, o.customer_email, o.customer_phone, o.shipping_address,
	o.shipping_city, o.shipping_postal_code, o.notes, o.total_cents, o.status, o.payment_preference_id,
	o.payment_id, o.payment_method, o.payment_status, o.created_at, o.updated_at,
	(SELECT COUNT(*) FROM order_items i WHERE i.order_id = o.id)`

func scanOrder(row pgx.Row) (*Order, error) {
	var (
		o          Order
		totalCents int64
		status     string
	)
	err := row.Scan(
		&o.ID, &o.CustomerName, &o.CustomerEmail, &o.CustomerPhone, &o.ShippingAddress,
		&o.ShippingCity, &o.ShippingPostalCode, &o.Notes, &totalCents, &status, &o.PaymentPreferenceID,
		&o.PaymentID, &o.PaymentMethod, &o.PaymentStatus, &o.CreatedAt, &o.UpdatedAt,
		&o.ItemCount,
	)
	if err != nil {
		return nil, mapError(err)
	}
	o.Total = money.FromCents(totalCents)
	o.Status = OrderStatus(status)
	return &o, nil
}

// GetByID loads the order with its items and shipping record.
func (s *OrderStore) GetByID(ctx context.Context, orderID uuid.UUID) (*Order, error) {
	order, err := scanOrder(s.pool.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders o WHERE o.id = $1`, orderID))
	if err != nil {
		return nil, err
	}

	rows, err := s.pool.Query(ctx, `
		SELECT id, order_id, product_id, title, quantity, unit_price_cents
		FROM order_items WHERE order_id = $1 ORDER BY title`, orderID)
	if err != nil {
		return nil, fmt.Errorf("failed to load order items: %w", err)
	}
	items, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (OrderItem, error) {
		var (
			item      OrderItem
			unitCents int64
		)
		err := row.Scan(&item.ID, &item.OrderID, &item.ProductID, &item.Title, &item.Quantity, &unitCents)
		item.UnitPrice = money.FromCents(unitCents)
		return item, err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan order items: %w", err)
	}
	order.Items = items

	shipping, err := getShippingByOrderID(ctx, s.pool, orderID)
	switch {
	case err == nil:
		order.Shipping = shipping
	case !errors.Is(err, ErrNotFound):
		return nil, err
	}
	return order, nil
}

func (s *OrderStore) queryOrders(ctx context.Context, query string, args ...any) ([]*Order, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query orders: %w", err)
	}
	defer rows.Close()

	var orders []*Order
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, order)
	}
	return orders, rows.Err()
}

// List returns orders newest first. A limit of zero means no limit.
func (s *OrderStore) List(ctx context.Context, limit int) ([]*Order, error) {
	if limit <= 0 {
		return s.queryOrders(ctx, `SELECT `+orderColumns+` FROM orders o ORDER BY o.created_at DESC`)
	}
	return s.queryOrders(ctx, `SELECT `+orderColumns+` FROM orders o ORDER BY o.created_at DESC LIMIT $1`, limit)
}

// ListPendingBefore returns PENDING orders created before cutoff, oldest first.
func (s *OrderStore) ListPendingBefore(ctx context.Context, cutoff time.Time, limit int) ([]*Order, error) {
	return s.queryOrders(ctx, `
		SELECT `+orderColumns+` FROM orders o
		WHERE o.status = $1 AND o.created_at < $2
		ORDER BY o.created_at
		LIMIT $3`, string(StatusPending), cutoff, limit)
}

type OrderStats struct {
	TotalOrders int
	TotalSales  decimal.Decimal
	ByStatus    map[OrderStatus]int
}

// Stats aggregates the dashboard figures. Sales only count PAID orders.
func (s *OrderStore) Stats(ctx context.Context) (*OrderStats, error) {
	stats := &OrderStats{ByStatus: make(map[OrderStatus]int), TotalSales: decimal.Zero}

	rows, err := s.pool.Query(ctx, `
		SELECT status, COUNT(*), COALESCE(SUM(total_cents), 0)
		FROM orders GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate orders: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			status     string
			count      int
			totalCents int64
		)
		if err := rows.Scan(&status, &count, &totalCents); err != nil {
			return nil, err
		}
		stats.ByStatus[OrderStatus(status)] = count
		stats.TotalOrders += count
		if OrderStatus(status) == StatusPaid {
			stats.TotalSales = money.FromCents(totalCents)
		}
	}
	return stats, rows.Err()
}

func statusStrings(statuses []OrderStatus) []string {
	out := make([]string, len(statuses))
	for i, status := range statuses {
		out[i] = string(status)
	}
	return out
}
