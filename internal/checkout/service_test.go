package checkout

import (
	"context"
	"testing"

	"github.com/go-faster/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/token-checkout/internal/domain/cart"
	"github.com/xenking/token-checkout/internal/domain/money"
	"github.com/xenking/token-checkout/internal/domain/pricing"
	"github.com/xenking/token-checkout/internal/domain/promotion"
)

// --- Mock implementations ---

type mockCartRepo struct {
	carts     map[string]*cart.Cart
	nextID    string
	saveErr   error
	saveCount int
}

func newMockCartRepo() *mockCartRepo {
	return &mockCartRepo{carts: make(map[string]*cart.Cart), nextID: "cart-1"}
}

func (m *mockCartRepo) Create(_ context.Context) (*cart.Cart, error) {
	c, err := cart.New(m.nextID)
	if err != nil {
		return nil, err
	}
	m.carts[c.ID()] = c
	return cart.FromSnapshot(c.Snapshot())
}

func (m *mockCartRepo) Get(_ context.Context, id string) (*cart.Cart, error) {
	stored, ok := m.carts[id]
	if !ok {
		return nil, &cart.NotFoundError{ID: id}
	}
	return cart.FromSnapshot(stored.Snapshot())
}

func (m *mockCartRepo) Save(_ context.Context, c *cart.Cart, expectedVersion int64) error {
	if m.saveErr != nil {
		return m.saveErr
	}
	stored, ok := m.carts[c.ID()]
	if !ok {
		return &cart.NotFoundError{ID: c.ID()}
	}
	if stored.Version() != expectedVersion {
		return &cart.VersionConflictError{ID: c.ID(), Expected: expectedVersion, Actual: stored.Version()}
	}
	copied, err := cart.FromSnapshot(c.Snapshot())
	if err != nil {
		return err
	}
	m.carts[c.ID()] = copied
	m.saveCount++
	return nil
}

type mockPriceProvider struct {
	prices pricing.Prices
	err    error
}

func (m *mockPriceProvider) GetPrices(_ context.Context, skus []cart.SKU) (pricing.Prices, error) {
	if m.err != nil {
		return nil, m.err
	}
	out := make(pricing.Prices, len(skus))
	for _, s := range skus {
		if p, ok := m.prices[s]; ok {
			out[s] = p
		}
	}
	return out, nil
}

// --- Helpers ---

func newTestService(t *testing.T, repo cart.Repository) *Service {
	t.Helper()
	promos, err := promotion.Build(promotion.DefaultRules())
	require.NoError(t, err)
	provider := &mockPriceProvider{prices: pricing.Prices{
		cart.SKUApe:    money.MustFromDecimalString("75"),
		cart.SKUPunk:   money.MustFromDecimalString("60"),
		cart.SKUMeebit: money.MustFromDecimalString("4"),
	}}
	return NewService(repo, provider, promotion.NewEngine(promos), NewMemoryIdempotencyStore())
}

// --- Tests ---

func TestCreateCart(t *testing.T) {
	svc := newTestService(t, newMockCartRepo())

	id, err := svc.CreateCart(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "cart-1", id)
}

func TestScan_BumpsVersion(t *testing.T) {
	repo := newMockCartRepo()
	svc := newTestService(t, repo)
	ctx := context.Background()

	id, err := svc.CreateCart(ctx)
	require.NoError(t, err)

	version, err := svc.Scan(ctx, id, "APE", 2, "")
	require.NoError(t, err)
	assert.Equal(t, int64(2), version)

	version, err = svc.Scan(ctx, id, "PUNK", 1, "")
	require.NoError(t, err)
	assert.Equal(t, int64(3), version)
	assert.Equal(t, 2, repo.saveCount)
}

func TestScan_CartNotFound(t *testing.T) {
	svc := newTestService(t, newMockCartRepo())

	_, err := svc.Scan(context.Background(), "missing", "APE", 1, "")
	var nfErr *cart.NotFoundError
	require.ErrorAs(t, err, &nfErr)
}

func TestScan_InvalidInput(t *testing.T) {
	svc := newTestService(t, newMockCartRepo())
	ctx := context.Background()

	id, err := svc.CreateCart(ctx)
	require.NoError(t, err)

	_, err = svc.Scan(ctx, id, "KITTY", 1, "")
	var skuErr *cart.InvalidSKUError
	require.ErrorAs(t, err, &skuErr)

	_, err = svc.Scan(ctx, id, "APE", 0, "")
	var iqErr *cart.InvalidQuantityError
	require.ErrorAs(t, err, &iqErr)
}

func TestScan_IdempotentReplay(t *testing.T) {
	repo := newMockCartRepo()
	svc := newTestService(t, repo)
	ctx := context.Background()

	id, err := svc.CreateCart(ctx)
	require.NoError(t, err)

	first, err := svc.Scan(ctx, id, "APE", 2, "key-1")
	require.NoError(t, err)

	// The retry returns the recorded version and performs no second save.
	second, err := svc.Scan(ctx, id, "APE", 2, "key-1")
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, 1, repo.saveCount)

	stored, err := repo.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, 2, stored.ItemQuantity(cart.SKUApe))
}

func TestScan_KeyReuseDifferentParameters(t *testing.T) {
	repo := newMockCartRepo()
	svc := newTestService(t, repo)
	ctx := context.Background()

	id, err := svc.CreateCart(ctx)
	require.NoError(t, err)

	_, err = svc.Scan(ctx, id, "APE", 2, "key-1")
	require.NoError(t, err)

	_, err = svc.Scan(ctx, id, "APE", 3, "key-1")
	var kcErr *KeyConflictError
	require.ErrorAs(t, err, &kcErr)
	assert.Equal(t, "APE:2", kcErr.ExpectedFingerprint)
	assert.Equal(t, "APE:3", kcErr.ReceivedFingerprint)

	// The conflicting request mutated nothing.
	stored, err := repo.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, 2, stored.ItemQuantity(cart.SKUApe))
	assert.Equal(t, 1, repo.saveCount)
}

func TestScan_KeyReuseAcrossCarts(t *testing.T) {
	repo := newMockCartRepo()
	svc := newTestService(t, repo)
	ctx := context.Background()

	first, err := svc.CreateCart(ctx)
	require.NoError(t, err)
	repo.nextID = "cart-2"
	second, err := svc.CreateCart(ctx)
	require.NoError(t, err)

	_, err = svc.Scan(ctx, first, "APE", 2, "key-1")
	require.NoError(t, err)

	_, err = svc.Scan(ctx, second, "APE", 2, "key-1")
	var kcErr *KeyConflictError
	require.ErrorAs(t, err, &kcErr)
	assert.Equal(t, "cart-1:APE:2", kcErr.ExpectedFingerprint)
	assert.Equal(t, "cart-2:APE:2", kcErr.ReceivedFingerprint)
}

func TestScan_ConflictPropagatesWithoutRetry(t *testing.T) {
	repo := newMockCartRepo()
	svc := newTestService(t, repo)
	ctx := context.Background()

	id, err := svc.CreateCart(ctx)
	require.NoError(t, err)

	// Another writer advances the cart between our read and save.
	repo.saveErr = &cart.VersionConflictError{ID: id, Expected: 1, Actual: 2}

	_, err = svc.Scan(ctx, id, "APE", 1, "key-1")
	var vcErr *cart.VersionConflictError
	require.ErrorAs(t, err, &vcErr)

	// No idempotency record was written for the failed scan; clearing the
	// injected error lets the same key retry cleanly.
	repo.saveErr = nil
	version, err := svc.Scan(ctx, id, "APE", 1, "key-1")
	require.NoError(t, err)
	assert.Equal(t, int64(2), version)
}

func TestGetTotal(t *testing.T) {
	repo := newMockCartRepo()
	svc := newTestService(t, repo)
	ctx := context.Background()

	id, err := svc.CreateCart(ctx)
	require.NoError(t, err)

	for range 3 {
		_, err = svc.Scan(ctx, id, "APE", 1, "")
		require.NoError(t, err)
	}
	_, err = svc.Scan(ctx, id, "PUNK", 3, "")
	require.NoError(t, err)
	_, err = svc.Scan(ctx, id, "MEEBIT", 1, "")
	require.NoError(t, err)

	breakdown, err := svc.GetTotal(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "298", breakdown.Total.String())
	assert.Len(t, breakdown.LineItems, 3)
	assert.Len(t, breakdown.Adjustments, 2)
}

func TestGetTotal_EmptyCart(t *testing.T) {
	svc := newTestService(t, newMockCartRepo())
	ctx := context.Background()

	id, err := svc.CreateCart(ctx)
	require.NoError(t, err)

	breakdown, err := svc.GetTotal(ctx, id)
	require.NoError(t, err)
	assert.True(t, breakdown.Total.IsZero())
	assert.Empty(t, breakdown.LineItems)
}

func TestGetTotal_NotFound(t *testing.T) {
	svc := newTestService(t, newMockCartRepo())

	_, err := svc.GetTotal(context.Background(), "missing")
	var nfErr *cart.NotFoundError
	require.ErrorAs(t, err, &nfErr)
}

func TestGetTotal_PriceFetchError(t *testing.T) {
	repo := newMockCartRepo()
	promos, err := promotion.Build(promotion.DefaultRules())
	require.NoError(t, err)
	provider := &mockPriceProvider{err: errors.New("feed down")}
	svc := NewService(repo, provider, promotion.NewEngine(promos), NewMemoryIdempotencyStore())
	ctx := context.Background()

	id, err := svc.CreateCart(ctx)
	require.NoError(t, err)
	_, err = svc.Scan(ctx, id, "APE", 1, "")
	require.NoError(t, err)

	_, err = svc.GetTotal(ctx, id)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "fetch prices")
}
