package dashboard

import (
	"strings"
	"testing"

	"github.com/kumamontessori/kuma/internal/models"
)

func TestOrderStatusBadge(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		status    models.OrderStatus
		wantLabel string
		wantClass string
	}{
		{name: "paid", status: models.StatusPaid, wantLabel: "Pagado", wantClass: "bg-green-100"},
		{name: "pending", status: models.StatusPending, wantLabel: "Pendiente", wantClass: "bg-yellow-100"},
		{name: "processing", status: models.StatusProcessing, wantLabel: "En proceso", wantClass: "bg-blue-100"},
		{name: "shipped", status: models.StatusShipped, wantLabel: "Enviado", wantClass: "bg-indigo-100"},
		{name: "delivered", status: models.StatusDelivered, wantLabel: "Entregado", wantClass: "bg-green-100"},
		{name: "cancelled", status: models.StatusCancelled, wantLabel: "Cancelado", wantClass: "bg-gray-100"},
		{name: "refunded", status: models.StatusRefunded, wantLabel: "Reembolsado", wantClass: "bg-purple-100"},
		{name: "failed", status: models.StatusFailed, wantLabel: "Fallido", wantClass: "bg-red-100"},
		{name: "unknown falls back to gray", status: models.OrderStatus("ON_HOLD"), wantLabel: "ON_HOLD", wantClass: "bg-gray-100"},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			badge := OrderStatusBadge(tt.status)
			if badge.Label != tt.wantLabel {
				t.Fatalf("label = %q, want %q", badge.Label, tt.wantLabel)
			}
			if !strings.Contains(badge.Class, tt.wantClass) {
				t.Fatalf("class %q does not contain %q", badge.Class, tt.wantClass)
			}
			if !strings.Contains(badge.Class, "rounded-full") {
				t.Fatalf("class %q lost the base classes", badge.Class)
			}
		})
	}
}

func TestOrderStatusBadge_StatusColorReplacesDefault(t *testing.T) {
	t.Parallel()

	badge := OrderStatusBadge(models.StatusFailed)
	if strings.Contains(badge.Class, "bg-gray-100") {
		t.Fatalf("default background was not merged away: %q", badge.Class)
	}

	badge = OrderStatusBadge(models.StatusPaid, "px-4")
	if strings.Contains(badge.Class, "px-2.5") || !strings.Contains(badge.Class, "px-4") {
		t.Fatalf("extra padding did not override the default: %q", badge.Class)
	}
}

func TestShippingStatusBadge(t *testing.T) {
	t.Parallel()

	badge := ShippingStatusBadge(models.ShippingInTransit)
	if badge.Label != "En tránsito" || !strings.Contains(badge.Class, "bg-blue-100") {
		t.Fatalf("unexpected badge %+v", badge)
	}
}
