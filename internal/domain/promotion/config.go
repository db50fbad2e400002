package promotion

import (
	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/xenking/token-checkout/internal/domain/cart"
)

// Rule kinds accepted by Build.
const (
	KindNForM       = "n_for_m"
	KindBulkPercent = "bulk_percent"
)

// RuleConfig describes one promotion rule in configuration form.
type RuleConfig struct {
	Kind     string `usage:"rule kind: n_for_m or bulk_percent"`
	ID       string `usage:"unique rule identifier"`
	Priority int    `usage:"selection priority, higher wins"`
	SKU      string `usage:"catalog SKU the rule is scoped to"`
	// n_for_m parameters.
	N int `usage:"group size (buy n)"`
	M int `usage:"charged units per group (pay m)"`
	// bulk_percent parameters.
	MinQty     int    `usage:"minimum quantity threshold"`
	PercentOff string `usage:"discount fraction, e.g. 0.2 for 20%"`
}

// DefaultRules is the built-in promotion set: APE 2-for-1 and PUNK 20% off
// at three or more units.
func DefaultRules() []RuleConfig {
	return []RuleConfig{
		{Kind: KindNForM, ID: "APE_2_FOR_1", Priority: 1, SKU: "APE", N: 2, M: 1},
		{Kind: KindBulkPercent, ID: "PUNK_BULK_20_OFF", Priority: 1, SKU: "PUNK", MinQty: 3, PercentOff: "0.2"},
	}
}

// Build constructs concrete promotions from their configuration.
func Build(configs []RuleConfig) ([]Promotion, error) {
	promos := make([]Promotion, 0, len(configs))
	for _, cfg := range configs {
		sku, err := cart.ParseSKU(cfg.SKU)
		if err != nil {
			return nil, errors.Wrapf(err, "rule %s", cfg.ID)
		}

		switch cfg.Kind {
		case KindNForM:
			p, err := NewNForM(cfg.ID, cfg.Priority, sku, cfg.N, cfg.M)
			if err != nil {
				return nil, err
			}
			promos = append(promos, p)
		case KindBulkPercent:
			bp, err := parseBasisPoints(cfg.PercentOff)
			if err != nil {
				return nil, errors.Wrapf(err, "rule %s", cfg.ID)
			}
			p, err := NewBulkPercent(cfg.ID, cfg.Priority, sku, cfg.MinQty, bp)
			if err != nil {
				return nil, err
			}
			promos = append(promos, p)
		default:
			return nil, errors.Errorf("rule %s: unknown kind %q", cfg.ID, cfg.Kind)
		}
	}
	return promos, nil
}

// parseBasisPoints converts a fraction such as "0.2" to basis points (2000).
// The fraction must be expressible in whole basis points.
func parseBasisPoints(fraction string) (int64, error) {
	d, err := decimal.NewFromString(fraction)
	if err != nil {
		return 0, errors.Wrap(err, "parse percent")
	}
	bp := d.Mul(decimal.NewFromInt(percentDenominator))
	if !bp.IsInteger() {
		return 0, errors.Errorf("percent %s is finer than 0.01%%", fraction)
	}
	return bp.IntPart(), nil
}
