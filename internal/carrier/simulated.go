package carrier

import (
	"context"
	"fmt"
	"math/rand/v2"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/kumamontessori/kuma/internal/models"
)

// Simulated prices by destination postal code prefix and generates fake
// tracking timelines. It stands in for OCA in development.
type Simulated struct {
	now func() time.Time
}

func NewSimulated() *Simulated {
	return &Simulated{now: time.Now}
}

func (s *Simulated) Name() string {
	return models.DefaultShippingProvider
}

func (s *Simulated) Quote(_ context.Context, req QuoteRequest) (*Quote, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}

	destination := strings.TrimSpace(req.DestinationPostalCode)
	base, deliveryTime := int64(2500), "3-5 días hábiles"
	switch {
	case strings.HasPrefix(destination, "1"):
		base, deliveryTime = 1200, "1-2 días hábiles"
	case strings.HasPrefix(destination, "2"):
		base, deliveryTime = 1800, "2-3 días hábiles"
	}

	weight := decimal.NewFromFloat(req.Weight)
	if weight.LessThan(decimal.NewFromInt(1)) {
		weight = decimal.NewFromInt(1)
	}
	price := decimal.NewFromInt(base).Mul(weight).Round(0)
	return &Quote{Price: price, DeliveryTime: deliveryTime}, nil
}

func (s *Simulated) CreateLabel(_ context.Context, req LabelRequest) (*Label, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}
	return &Label{TrackingNumber: fmt.Sprintf("OCA%09d", rand.IntN(1_000_000_000))}, nil
}

func (s *Simulated) Track(_ context.Context, trackingNumber, _ string) (*Tracking, error) {
	if err := validateTrackingNumber(trackingNumber); err != nil {
		return nil, err
	}

	now := s.now()
	daysAgo := func(days int) string {
		return now.Add(-time.Duration(days) * 24 * time.Hour).UTC().Format(time.RFC3339)
	}

	switch {
	case strings.Contains(trackingNumber, "123"):
		return &Tracking{
			Status: string(models.ShippingInTransit),
			Events: []Event{
				{Date: daysAgo(2), Description: "Paquete retirado del origen", Location: "Centro de distribución CABA"},
				{Date: daysAgo(1), Description: "En tránsito hacia destino", Location: "Centro de distribución Zona Norte"},
			},
		}, nil
	case strings.Contains(trackingNumber, "456"):
		return &Tracking{
			Status: string(models.ShippingDelivered),
			Events: []Event{
				{Date: daysAgo(3), Description: "Paquete retirado del origen", Location: "Centro de distribución CABA"},
				{Date: daysAgo(2), Description: "En tránsito hacia destino", Location: "Centro de distribución Zona Norte"},
				{Date: daysAgo(1), Description: "Entregado", Location: "Domicilio del destinatario"},
			},
		}, nil
	default:
		return &Tracking{
			Status: string(models.ShippingPending),
			Events: []Event{
				{Date: now.UTC().Format(time.RFC3339), Description: "Envío registrado", Location: "Centro de distribución"},
			},
		}, nil
	}
}
