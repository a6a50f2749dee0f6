package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/kumamontessori/kuma/internal/logging"
	"github.com/kumamontessori/kuma/internal/services"
)

type paymentReconciler interface {
	ReconcilePending(ctx context.Context, olderThan time.Duration) (*services.ReconcileResult, error)
}

// PaymentReconcile re-checks orders that stayed PENDING, in case a webhook
// was never delivered.
type PaymentReconcile struct {
	payments paymentReconciler
	age      time.Duration
}

func NewPaymentReconcile(payments paymentReconciler, age time.Duration) *PaymentReconcile {
	if age <= 0 {
		age = 10 * time.Minute
	}
	return &PaymentReconcile{payments: payments, age: age}
}

func (j *PaymentReconcile) Name() string {
	return "orders.payment_reconcile"
}

func (j *PaymentReconcile) Run(ctx context.Context) error {
	result, err := j.payments.ReconcilePending(ctx, j.age)
	if err != nil {
		return fmt.Errorf("payment reconcile: %w", err)
	}
	logging.FromContext(ctx, nil).Info("payment reconcile finished",
		"checked", result.Checked,
		"updated", result.Updated,
		"failed", result.Failed,
	)
	return nil
}
