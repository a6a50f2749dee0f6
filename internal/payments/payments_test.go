package payments

import (
	"testing"

	"github.com/kumamontessori/kuma/internal/models"
)

func TestMapStatus(t *testing.T) {
	t.Parallel()

	tests := []struct {
		status string
		want   models.OrderStatus
	}{
		{status: "approved", want: models.StatusPaid},
		{status: "APPROVED", want: models.StatusPaid},
		{status: "rejected", want: models.StatusFailed},
		{status: "in_process", want: models.StatusPending},
		{status: "refunded", want: models.StatusRefunded},
		{status: "authorized", want: models.StatusPending},
		{status: "", want: models.StatusPending},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.status, func(t *testing.T) {
			t.Parallel()
			if got := MapStatus(tt.status); got != tt.want {
				t.Fatalf("MapStatus(%q) = %s, want %s", tt.status, got, tt.want)
			}
		})
	}
}
