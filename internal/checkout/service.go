// Package checkout orchestrates cart creation, idempotency-guarded scans and
// pricing. It performs no internal retries: a version conflict propagates
// unchanged, and retry-with-refetch is a policy of the calling boundary.
package checkout

import (
	"context"

	"github.com/go-faster/errors"

	"github.com/xenking/token-checkout/internal/domain/cart"
	"github.com/xenking/token-checkout/internal/domain/pricing"
	"github.com/xenking/token-checkout/internal/domain/promotion"
)

// Service wires the cart repository, price provider, promotions engine and
// idempotency store into the checkout use cases.
type Service struct {
	carts  cart.Repository
	prices pricing.Provider
	engine *promotion.Engine
	idem   IdempotencyStore
}

// NewService creates a checkout Service with the required collaborators.
func NewService(
	carts cart.Repository,
	prices pricing.Provider,
	engine *promotion.Engine,
	idem IdempotencyStore,
) *Service {
	return &Service{
		carts:  carts,
		prices: prices,
		engine: engine,
		idem:   idem,
	}
}

// CreateCart creates a new empty cart and returns its id.
func (s *Service) CreateCart(ctx context.Context) (string, error) {
	c, err := s.carts.Create(ctx)
	if err != nil {
		return "", errors.Wrap(err, "create cart")
	}
	return c.ID(), nil
}

// Scan adds quantity units of sku to the cart and returns the new version.
//
// When idempotencyKey is non-empty the key is checked strictly before any
// read or mutation: a duplicate returns the previously recorded version
// without touching the cart, and the record is written only after the save
// succeeded. A failed save therefore leaves no idempotency record, so the
// caller's retry re-executes cleanly.
func (s *Service) Scan(ctx context.Context, cartID, sku string, quantity int, idempotencyKey string) (int64, error) {
	fingerprint := Fingerprint(sku, quantity)

	if idempotencyKey != "" {
		verification, err := s.idem.VerifyAndSet(ctx, idempotencyKey, cartID, fingerprint)
		if err != nil {
			return 0, err
		}
		if verification.Duplicate {
			return verification.Version, nil
		}
	}

	c, err := s.carts.Get(ctx, cartID)
	if err != nil {
		return 0, err
	}

	expectedVersion := c.Version()
	if err := c.AddItem(sku, quantity); err != nil {
		return 0, err
	}
	newVersion := c.Version()

	if err := s.carts.Save(ctx, c, expectedVersion); err != nil {
		// Conflicts included: propagate unchanged, no internal retry.
		return 0, err
	}

	if idempotencyKey != "" {
		if err := s.idem.Set(ctx, idempotencyKey, cartID, newVersion, fingerprint); err != nil {
			return 0, errors.Wrap(err, "record idempotency key")
		}
	}

	return newVersion, nil
}

// GetTotal prices the cart: it snapshots the current state, fetches fresh
// unit prices for exactly the SKUs present, and delegates to the promotions
// engine. Nothing is cached between calls, so changing prices change totals.
func (s *Service) GetTotal(ctx context.Context, cartID string) (*pricing.Breakdown, error) {
	c, err := s.carts.Get(ctx, cartID)
	if err != nil {
		return nil, err
	}

	snapshot := c.Snapshot()

	skus := make([]cart.SKU, 0, len(snapshot.Items))
	for _, item := range snapshot.Items {
		skus = append(skus, item.SKU)
	}

	prices, err := s.prices.GetPrices(ctx, skus)
	if err != nil {
		return nil, errors.Wrap(err, "fetch prices")
	}

	return s.engine.CalculatePricing(snapshot, prices)
}
