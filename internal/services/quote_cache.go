package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/kumamontessori/kuma/internal/cache"
	"github.com/kumamontessori/kuma/internal/carrier"
)

const defaultQuoteCacheTTL = 10 * time.Minute

// UseQuoteCache makes Quote reuse the carrier's price for an identical
// request. The checkout form quotes on every postal code change, and OCA
// rates move at most daily.
func (s *ShippingService) UseQuoteCache(provider cache.Provider, ttl time.Duration) {
	if ttl <= 0 {
		ttl = defaultQuoteCacheTTL
	}
	s.quotes = provider
	s.quoteTTL = ttl
}

func (s *ShippingService) quoteKey(req carrier.QuoteRequest) string {
	return fmt.Sprintf("quote:%s:%s:%s:%s:%s:%s:%d:%s",
		s.carrier.Name(),
		req.OriginPostalCode,
		req.DestinationPostalCode,
		strconv.FormatFloat(req.Weight, 'f', -1, 64),
		strconv.FormatFloat(req.Volume, 'f', -1, 64),
		req.DeclaredValue.StringFixed(2),
		req.Packages,
		req.Operativa,
	)
}

func (s *ShippingService) cachedQuote(ctx context.Context, key string) (*carrier.Quote, bool) {
	if s.quotes == nil {
		return nil, false
	}
	raw, err := s.quotes.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, cache.ErrNotFound) {
			s.loggerFromContext(ctx).Warn("failed to read cached quote", "error", err)
		}
		return nil, false
	}
	var quote carrier.Quote
	if err := json.Unmarshal([]byte(raw), &quote); err != nil {
		return nil, false
	}
	return &quote, true
}

func (s *ShippingService) storeQuote(ctx context.Context, key string, quote *carrier.Quote) {
	if s.quotes == nil || quote == nil {
		return
	}
	raw, err := json.Marshal(quote)
	if err != nil {
		return
	}
	if err := s.quotes.Set(ctx, key, string(raw), s.quoteTTL); err != nil {
		s.loggerFromContext(ctx).Warn("failed to cache quote", "error", err)
	}
}
