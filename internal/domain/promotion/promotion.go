// Package promotion implements the pluggable discount rules and the engine
// that deterministically selects and applies them.
package promotion

import (
	"github.com/xenking/token-checkout/internal/domain/cart"
	"github.com/xenking/token-checkout/internal/domain/money"
	"github.com/xenking/token-checkout/internal/domain/pricing"
)

// Promotion is a single discount rule scoped to one SKU.
//
// Every rule exposes exactly one scope predicate and one pricing function;
// the engine never probes for rule-specific fast paths.
type Promotion interface {
	// ID uniquely identifies the rule. Used as the deterministic tie-break
	// after priority.
	ID() string
	// Priority orders rules; higher priority wins.
	Priority() int
	// AppliesTo reports whether the rule covers the given SKU at the given
	// accumulated quantity.
	AppliesTo(sku cart.SKU, quantity int) bool
	// Apply computes the discounted subtotal and the discount adjustments
	// for quantity units of sku at the given unit price. It is only called
	// when AppliesTo reported true.
	Apply(sku cart.SKU, quantity int, unitPrice money.Money) (money.Money, []pricing.Adjustment, error)
}
