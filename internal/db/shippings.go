package db

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/kumamontessori/kuma/internal/models"
	"github.com/kumamontessori/kuma/internal/money"
)

const initialShippingEvent = "Envío registrado"

type ShippingStore struct {
	pool *pgxpool.Pool
}

func NewShippingStore(pool *pgxpool.Pool) *ShippingStore {
	return &ShippingStore{pool: pool}
}

// Create inserts a PENDING shipping record and its initial event.
func (s *ShippingStore) Create(ctx context.Context, shipping *Shipping) error {
	return withTx(ctx, s.pool, func(tx pgx.Tx) error {
		return insertShipping(ctx, tx, shipping)
	})
}

func insertShipping(ctx context.Context, q querier, shipping *Shipping) error {
	if shipping.Provider == "" {
		shipping.Provider = models.DefaultShippingProvider
	}
	shipping.Status = models.ShippingPending

	err := q.QueryRow(ctx, `
		INSERT INTO shippings (order_id, provider, tracking_number, status, cost_cents, estimated_delivery)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at, updated_at`,
		shipping.OrderID, shipping.Provider, nullableText(shipping.TrackingNumber), string(shipping.Status),
		money.ToCents(shipping.Cost), shipping.EstimatedDelivery,
	).Scan(&shipping.ID, &shipping.CreatedAt, &shipping.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert shipping: %w", mapError(err))
	}

	event := ShippingEvent{ShippingID: shipping.ID, Status: models.ShippingPending, Description: initialShippingEvent}
	if err := insertEvent(ctx, q, &event); err != nil {
		return err
	}
	shipping.Events = []ShippingEvent{event}
	return nil
}

func insertEvent(ctx context.Context, q querier, event *ShippingEvent) error {
	err := q.QueryRow(ctx, `
		INSERT INTO shipping_events (shipping_id, status, description, location)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at`,
		event.ShippingID, string(event.Status), event.Description, event.Location,
	).Scan(&event.ID, &event.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert shipping event: %w", err)
	}
	return nil
}

// UpdateStatus sets the shipment status and appends an event in one transaction.
func (s *ShippingStore) UpdateStatus(ctx context.Context, shippingID uuid.UUID, event ShippingEvent) (*Shipping, error) {
	event.ShippingID = shippingID
	err := withTx(ctx, s.pool, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx,
			`UPDATE shippings SET status = $1, updated_at = NOW() WHERE id = $2`, string(event.Status), shippingID)
		if err != nil {
			return fmt.Errorf("failed to update shipping: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return ErrNotFound
		}
		return insertEvent(ctx, tx, &event)
	})
	if err != nil {
		return nil, err
	}
	return s.GetByID(ctx, shippingID)
}

// AttachLabel stores the carrier tracking number and label for a shipment.
func (s *ShippingStore) AttachLabel(ctx context.Context, shippingID uuid.UUID, trackingNumber, label string) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE shippings SET tracking_number = $1, label = $2, updated_at = NOW()
		WHERE id = $3`, trackingNumber, label, shippingID)
	if err != nil {
		return fmt.Errorf("failed to attach label: %w", mapError(err))
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

const shippingColumns = `id, order_id, provider, tracking_number, status, cost_cents, estimated_delivery,
	label, created_at, updated_at`

func scanShipping(row pgx.Row) (*Shipping, error) {
	var (
		sh        Shipping
		tracking  *string
		status    string
		costCents int64
	)
	err := row.Scan(&sh.ID, &sh.OrderID, &sh.Provider, &tracking, &status, &costCents,
		&sh.EstimatedDelivery, &sh.Label, &sh.CreatedAt, &sh.UpdatedAt)
	if err != nil {
		return nil, mapError(err)
	}
	sh.TrackingNumber = textValue(tracking)
	sh.Status = ShippingStatus(status)
	sh.Cost = money.FromCents(costCents)
	return &sh, nil
}

func loadEvents(ctx context.Context, q querier, shipping *Shipping) error {
	rows, err := q.Query(ctx, `
		SELECT id, shipping_id, status, description, location, created_at
		FROM shipping_events WHERE shipping_id = $1
		ORDER BY created_at DESC, id`, shipping.ID)
	if err != nil {
		return fmt.Errorf("failed to load shipping events: %w", err)
	}
	events, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (ShippingEvent, error) {
		var (
			event  ShippingEvent
			status string
		)
		err := row.Scan(&event.ID, &event.ShippingID, &status, &event.Description, &event.Location, &event.CreatedAt)
		event.Status = ShippingStatus(status)
		return event, err
	})
	if err != nil {
		return fmt.Errorf("failed to scan shipping events: %w", err)
	}
	shipping.Events = events
	return nil
}

func getShipping(ctx context.Context, q querier, where string, arg any) (*Shipping, error) {
	shipping, err := scanShipping(q.QueryRow(ctx, `SELECT `+shippingColumns+` FROM shippings WHERE `+where, arg))
	if err != nil {
		return nil, err
	}
	if err := loadEvents(ctx, q, shipping); err != nil {
		return nil, err
	}
	return shipping, nil
}

func getShippingByOrderID(ctx context.Context, q querier, orderID uuid.UUID) (*Shipping, error) {
	return getShipping(ctx, q, `order_id = $1`, orderID)
}

func (s *ShippingStore) GetByID(ctx context.Context, shippingID uuid.UUID) (*Shipping, error) {
	return getShipping(ctx, s.pool, `id = $1`, shippingID)
}

func (s *ShippingStore) GetByOrderID(ctx context.Context, orderID uuid.UUID) (*Shipping, error) {
	return getShippingByOrderID(ctx, s.pool, orderID)
}

// GetByTrackingNumber returns the shipment with its events newest first.
func (s *ShippingStore) GetByTrackingNumber(ctx context.Context, trackingNumber string) (*Shipping, error) {
	return getShipping(ctx, s.pool, `tracking_number = $1`, trackingNumber)
}

// ClaimForTracking returns up to limit non-terminal shipments with a
// tracking number, least recently checked first, and stamps them as checked.
// Successive calls rotate through every active shipment; concurrent callers
// skip rows another poller holds.
func (s *ShippingStore) ClaimForTracking(ctx context.Context, limit int) ([]*Shipping, error) {
	rows, err := s.pool.Query(ctx, `
		UPDATE shippings SET last_checked_at = NOW()
		WHERE id IN (
			SELECT id FROM shippings
			WHERE tracking_number IS NOT NULL AND tracking_number <> ''
				AND status NOT IN ('DELIVERED', 'RETURNED', 'CANCELLED')
			ORDER BY last_checked_at NULLS FIRST, created_at
			LIMIT $1
			FOR UPDATE SKIP LOCKED
		)
		RETURNING `+shippingColumns, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to claim shippings for tracking: %w", err)
	}
	defer rows.Close()

	var shippings []*Shipping
	for rows.Next() {
		shipping, err := scanShipping(rows)
		if err != nil {
			return nil, err
		}
		shippings = append(shippings, shipping)
	}
	return shippings, rows.Err()
}
