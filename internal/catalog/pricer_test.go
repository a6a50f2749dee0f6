package catalog

import (
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/kumamontessori/kuma/internal/models"
)

func TestPricer_Price(t *testing.T) {
	t.Parallel()

	torre := &models.Product{ID: uuid.New(), Name: "Torre rosa", Price: decimal.RequireFromString("38500"), Stock: 5}
	letras := &models.Product{ID: uuid.New(), Name: "Letras de lija", Price: decimal.RequireFromString("33200.50"), Stock: 1}
	products := map[uuid.UUID]*models.Product{torre.ID: torre, letras.ID: letras}

	tests := []struct {
		name         string
		lines        []Line
		wantSubtotal string
		wantErr      bool
	}{
		{
			name:         "uses catalog prices",
			lines:        []Line{{ProductID: torre.ID, Quantity: 2}, {ProductID: letras.ID, Quantity: 1}},
			wantSubtotal: "110200.50",
		},
		{
			name:         "zero quantity counts as one",
			lines:        []Line{{ProductID: torre.ID, Quantity: 0}},
			wantSubtotal: "38500",
		},
		{
			name:    "unknown product",
			lines:   []Line{{ProductID: uuid.New(), Quantity: 1}},
			wantErr: true,
		},
		{
			name:    "insufficient stock",
			lines:   []Line{{ProductID: letras.ID, Quantity: 2}},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			pricer := NewPricer()
			priced, err := pricer.Price(tt.lines, products)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error, got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			got := pricer.Subtotal(priced)
			if !got.Equal(decimal.RequireFromString(tt.wantSubtotal)) {
				t.Fatalf("subtotal = %s, want %s", got, tt.wantSubtotal)
			}
		})
	}
}
