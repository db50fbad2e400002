package promotion

import (
	"sort"
	"time"

	"github.com/go-faster/errors"

	"github.com/xenking/token-checkout/internal/domain/cart"
	"github.com/xenking/token-checkout/internal/domain/money"
	"github.com/xenking/token-checkout/internal/domain/pricing"
)

// Engine selects and applies at most one promotion per SKU.
//
// Rules are ordered once at construction by priority descending, then rule id
// ascending. That ordering is the complete tie-break: building an engine from
// any permutation of the same rule set prices identically.
type Engine struct {
	promotions []Promotion
}

// NewEngine constructs an engine over a copy of the given rule set.
func NewEngine(promotions []Promotion) *Engine {
	sorted := make([]Promotion, len(promotions))
	copy(sorted, promotions)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Priority() != sorted[j].Priority() {
			return sorted[i].Priority() > sorted[j].Priority()
		}
		return sorted[i].ID() < sorted[j].ID()
	})
	return &Engine{promotions: sorted}
}

// CalculatePricing prices a cart snapshot against the given unit prices.
//
// Items are grouped by SKU (input order of duplicates is irrelevant); SKUs
// with zero quantity or no known price are skipped entirely. For each priced
// SKU the first applicable rule in engine order is applied; rules never
// stack. Nothing is memoized: every call reprices from the snapshot and the
// prices passed in.
func (e *Engine) CalculatePricing(snapshot cart.Snapshot, prices pricing.Prices) (*pricing.Breakdown, error) {
	skus, quantities := groupBySKU(snapshot.Items)

	lineItems := make([]pricing.LineItem, 0, len(skus))
	adjustments := make([]pricing.Adjustment, 0, len(skus))
	total := money.Zero()

	for _, sku := range skus {
		quantity := quantities[sku]
		if quantity <= 0 {
			continue
		}
		unitPrice, ok := prices[sku]
		if !ok {
			// No known price: the SKU contributes nothing, by contract.
			continue
		}

		base, err := unitPrice.MulInt(quantity)
		if err != nil {
			return nil, errors.Wrapf(err, "subtotal for %s", sku)
		}

		final := base
		if promo := e.selectPromotion(sku, quantity); promo != nil {
			discounted, adjs, err := promo.Apply(sku, quantity, unitPrice)
			if err != nil {
				return nil, errors.Wrapf(err, "apply promotion %s", promo.ID())
			}
			final = discounted
			adjustments = append(adjustments, adjs...)
		}

		lineItems = append(lineItems, pricing.LineItem{
			SKU:                 sku,
			Quantity:            quantity,
			UnitPrice:           unitPrice,
			SubtotalBeforePromo: base,
			SubtotalAfterPromo:  final,
		})
		total = total.Add(final)
	}

	return &pricing.Breakdown{
		LineItems:      lineItems,
		Adjustments:    adjustments,
		Total:          total,
		PriceTimestamp: time.Now(),
	}, nil
}

// selectPromotion returns the first rule in engine order whose scope covers
// (sku, quantity), or nil when none applies.
func (e *Engine) selectPromotion(sku cart.SKU, quantity int) Promotion {
	for _, p := range e.promotions {
		if p.AppliesTo(sku, quantity) {
			return p
		}
	}
	return nil
}

// groupBySKU sums quantities per SKU, preserving first-appearance order.
func groupBySKU(items []cart.Item) ([]cart.SKU, map[cart.SKU]int) {
	order := make([]cart.SKU, 0, len(items))
	quantities := make(map[cart.SKU]int, len(items))
	for _, item := range items {
		if _, seen := quantities[item.SKU]; !seen {
			order = append(order, item.SKU)
		}
		quantities[item.SKU] += item.Quantity
	}
	return order, quantities
}
