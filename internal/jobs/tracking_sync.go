package jobs

import (
	"context"
	"fmt"

	"github.com/kumamontessori/kuma/internal/logging"
	"github.com/kumamontessori/kuma/internal/services"
)

type trackingSyncer interface {
	SyncTracking(ctx context.Context) (*services.TrackingSyncResult, error)
}

// TrackingSync polls the carrier for shipments that are still moving.
type TrackingSync struct {
	shipping trackingSyncer
}

func NewTrackingSync(shipping trackingSyncer) *TrackingSync {
	return &TrackingSync{shipping: shipping}
}

func (j *TrackingSync) Name() string {
	return "shipping.tracking_sync"
}

func (j *TrackingSync) Run(ctx context.Context) error {
	result, err := j.shipping.SyncTracking(ctx)
	if err != nil {
		return fmt.Errorf("tracking sync: %w", err)
	}
	logging.FromContext(ctx, nil).Info("tracking sync finished",
		"checked", result.Checked,
		"updated", result.Updated,
		"failed", result.Failed,
	)
	return nil
}
