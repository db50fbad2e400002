package promotion

import (
	"fmt"
	"math/big"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/xenking/token-checkout/internal/domain/cart"
	"github.com/xenking/token-checkout/internal/domain/money"
	"github.com/xenking/token-checkout/internal/domain/pricing"
)

// percentDenominator is the fixed denominator for percentage discounts:
// percentages are carried as basis points so the discount is computed with
// exact integer arithmetic on the smallest unit.
const percentDenominator = 10_000

var percentDenominatorBig = big.NewInt(percentDenominator)

// BulkPercent applies a flat percentage discount once a minimum quantity
// threshold is met. The discount is floor(subtotal_units * bp / 10000).
type BulkPercent struct {
	id          string
	priority    int
	sku         cart.SKU
	minQty      int
	basisPoints int64
}

var _ Promotion = (*BulkPercent)(nil)

// NewBulkPercent constructs a bulk percent-off rule. basisPoints must be in
// (0, 10000): 2000 means 20% off.
func NewBulkPercent(id string, priority int, sku cart.SKU, minQty int, basisPoints int64) (*BulkPercent, error) {
	if minQty <= 0 {
		return nil, errors.Errorf("bulk rule %s: minQty must be positive, got %d", id, minQty)
	}
	if basisPoints <= 0 || basisPoints >= percentDenominator {
		return nil, errors.Errorf("bulk rule %s: basis points must be in (0, %d), got %d",
			id, percentDenominator, basisPoints)
	}
	return &BulkPercent{id: id, priority: priority, sku: sku, minQty: minQty, basisPoints: basisPoints}, nil
}

func (p *BulkPercent) ID() string    { return p.id }
func (p *BulkPercent) Priority() int { return p.priority }

// AppliesTo reports true once the quantity threshold is met.
func (p *BulkPercent) AppliesTo(sku cart.SKU, quantity int) bool {
	return sku == p.sku && quantity >= p.minQty
}

// Apply discounts the subtotal by the configured percentage using integer
// floor division on the smallest-unit value.
func (p *BulkPercent) Apply(sku cart.SKU, quantity int, unitPrice money.Money) (money.Money, []pricing.Adjustment, error) {
	base, err := unitPrice.MulInt(quantity)
	if err != nil {
		return money.Money{}, nil, errors.Wrap(err, "base subtotal")
	}

	discountUnits := new(big.Int).Mul(base.ToSmallestUnit(), big.NewInt(p.basisPoints))
	discountUnits.Quo(discountUnits, percentDenominatorBig)
	discount, err := money.FromSmallestUnit(discountUnits)
	if err != nil {
		return money.Money{}, nil, errors.Wrapf(err, "rule %s discount", p.id)
	}
	final, err := base.Sub(discount)
	if err != nil {
		return money.Money{}, nil, errors.Wrapf(err, "rule %s subtotal", p.id)
	}

	adj := pricing.Adjustment{
		PromoID: p.id,
		SKU:     sku,
		Kind:    pricing.AdjustmentDiscount,
		Amount:  discount,
		Description: fmt.Sprintf("%s%% off each unit (%d units)",
			p.percentLabel(), quantity),
	}
	return final, []pricing.Adjustment{adj}, nil
}

// percentLabel renders the basis points as a human percentage, e.g. 2000 ->
// "20", 1250 -> "12.5".
func (p *BulkPercent) percentLabel() string {
	return decimal.New(p.basisPoints, -2).String()
}
