// Package pricefeed provides price provider implementations.
package pricefeed

import (
	"context"
	"sync"

	"github.com/xenking/token-checkout/internal/domain/cart"
	"github.com/xenking/token-checkout/internal/domain/money"
	"github.com/xenking/token-checkout/internal/domain/pricing"
)

var _ pricing.Provider = (*Static)(nil)

// Static serves unit prices from an in-process table. Prices can be replaced
// at runtime; requests for unknown SKUs are simply omitted from the result.
type Static struct {
	mu     sync.RWMutex
	prices pricing.Prices
}

// NewStatic creates a provider seeded with the given price table.
func NewStatic(prices pricing.Prices) *Static {
	table := make(pricing.Prices, len(prices))
	for sku, p := range prices {
		table[sku] = p
	}
	return &Static{prices: table}
}

// DefaultPrices is the built-in price table: APE=75, PUNK=60, MEEBIT=4.
func DefaultPrices() pricing.Prices {
	return pricing.Prices{
		cart.SKUApe:    money.MustFromDecimalString("75"),
		cart.SKUPunk:   money.MustFromDecimalString("60"),
		cart.SKUMeebit: money.MustFromDecimalString("4"),
	}
}

// GetPrices returns the current prices for the requested SKUs. SKUs without
// a known price are left out of the result.
func (s *Static) GetPrices(_ context.Context, skus []cart.SKU) (pricing.Prices, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make(pricing.Prices, len(skus))
	for _, sku := range skus {
		if price, ok := s.prices[sku]; ok {
			result[sku] = price
		}
	}
	return result, nil
}

// SetPrice replaces the price for one SKU.
func (s *Static) SetPrice(sku cart.SKU, price money.Money) {
	s.mu.Lock()
	s.prices[sku] = price
	s.mu.Unlock()
}

// RemovePrice drops the price for one SKU, making it unpriced.
func (s *Static) RemovePrice(sku cart.SKU) {
	s.mu.Lock()
	delete(s.prices, sku)
	s.mu.Unlock()
}
