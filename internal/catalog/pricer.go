package catalog

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/kumamontessori/kuma/internal/models"
)

// Line is a requested product and quantity, before pricing.
type Line struct {
	ProductID uuid.UUID
	Quantity  int
}

// PricedLine carries the catalog price at checkout time.
type PricedLine struct {
	Product   *models.Product
	Quantity  int
	UnitPrice decimal.Decimal
}

func (l PricedLine) Total() decimal.Decimal {
	return l.UnitPrice.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

type Pricer struct{}

func NewPricer() *Pricer {
	return &Pricer{}
}

// Price resolves each line against the catalog. Prices from the client are never used.
func (p *Pricer) Price(lines []Line, products map[uuid.UUID]*models.Product) ([]PricedLine, error) {
	priced := make([]PricedLine, 0, len(lines))
	for _, line := range lines {
		product, ok := products[line.ProductID]
		if !ok || product == nil {
			return nil, fmt.Errorf("product %s not found", line.ProductID)
		}
		quantity := line.Quantity
		if quantity <= 0 {
			quantity = 1
		}
		if quantity > product.Stock {
			return nil, fmt.Errorf("insufficient stock for %s", product.Name)
		}
		priced = append(priced, PricedLine{
			Product:   product,
			Quantity:  quantity,
			UnitPrice: product.Price,
		})
	}
	return priced, nil
}

func (p *Pricer) Subtotal(lines []PricedLine) decimal.Decimal {
	subtotal := decimal.Zero
	for _, line := range lines {
		subtotal = subtotal.Add(line.Total())
	}
	return subtotal
}
