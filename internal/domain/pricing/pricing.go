// Package pricing holds the price provider port and the priced breakdown
// types produced by the promotions engine.
package pricing

import (
	"context"
	"time"

	"github.com/xenking/token-checkout/internal/domain/cart"
	"github.com/xenking/token-checkout/internal/domain/money"
)

// Prices maps SKUs to current unit prices. An absent SKU means the provider
// has no known price for it.
type Prices map[cart.SKU]money.Money

// Provider fetches current unit prices for a set of SKUs.
type Provider interface {
	GetPrices(ctx context.Context, skus []cart.SKU) (Prices, error)
}

// AdjustmentDiscount is the kind of every discount adjustment.
const AdjustmentDiscount = "discount"

// Adjustment is one discount line attributed to a promotion and SKU.
type Adjustment struct {
	PromoID     string
	SKU         cart.SKU
	Kind        string
	Amount      money.Money
	Description string
}

// LineItem is one priced row of the cart.
type LineItem struct {
	SKU                 cart.SKU
	Quantity            int
	UnitPrice           money.Money
	SubtotalBeforePromo money.Money
	SubtotalAfterPromo  money.Money
}

// Breakdown is the full priced view of a cart: ordered line items, ordered
// adjustments, the grand total and the price fetch timestamp. It is immutable
// once produced; totals are recomputed from fresh prices on every request.
type Breakdown struct {
	LineItems      []LineItem
	Adjustments    []Adjustment
	Total          money.Money
	PriceTimestamp time.Time
	Metadata       map[string]string
}
