package promotion

import (
	"fmt"

	"github.com/go-faster/errors"

	"github.com/xenking/token-checkout/internal/domain/cart"
	"github.com/xenking/token-checkout/internal/domain/money"
	"github.com/xenking/token-checkout/internal/domain/pricing"
)

// NForM is the "buy n, pay for m" rule: every full group of n units is
// charged as m units, the remainder at full price.
type NForM struct {
	id       string
	priority int
	sku      cart.SKU
	n, m     int
}

var _ Promotion = (*NForM)(nil)

// NewNForM constructs an n-for-m rule. Both n and m must be positive.
func NewNForM(id string, priority int, sku cart.SKU, n, m int) (*NForM, error) {
	if n <= 0 || m <= 0 {
		return nil, errors.Errorf("n-for-m rule %s: n and m must be positive, got n=%d m=%d", id, n, m)
	}
	return &NForM{id: id, priority: priority, sku: sku, n: n, m: m}, nil
}

func (p *NForM) ID() string    { return p.id }
func (p *NForM) Priority() int { return p.priority }

// AppliesTo reports true once at least one full group of n units is present.
func (p *NForM) AppliesTo(sku cart.SKU, quantity int) bool {
	return sku == p.sku && quantity >= p.n
}

// Apply charges floor(q/n)*m + q%n units at full price and discounts the rest.
func (p *NForM) Apply(sku cart.SKU, quantity int, unitPrice money.Money) (money.Money, []pricing.Adjustment, error) {
	groups := quantity / p.n
	remainder := quantity % p.n
	chargedUnits := groups*p.m + remainder

	base, err := unitPrice.MulInt(quantity)
	if err != nil {
		return money.Money{}, nil, errors.Wrap(err, "base subtotal")
	}
	final, err := unitPrice.MulInt(chargedUnits)
	if err != nil {
		return money.Money{}, nil, errors.Wrap(err, "discounted subtotal")
	}
	discount, err := base.Sub(final)
	if err != nil {
		return money.Money{}, nil, errors.Wrapf(err, "rule %s discount", p.id)
	}

	adj := pricing.Adjustment{
		PromoID: p.id,
		SKU:     sku,
		Kind:    pricing.AdjustmentDiscount,
		Amount:  discount,
		Description: fmt.Sprintf("%d for %d: pay %d when buying %d %s",
			p.n, p.m, chargedUnits, quantity, sku),
	}
	return final, []pricing.Adjustment{adj}, nil
}
