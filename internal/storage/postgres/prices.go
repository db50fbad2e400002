package postgres

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/xenking/token-checkout/internal/domain/cart"
	"github.com/xenking/token-checkout/internal/domain/money"
	"github.com/xenking/token-checkout/internal/domain/pricing"
)

const getPricesSQL = `SELECT sku, price FROM prices WHERE sku = ANY($1)`

var _ pricing.Provider = (*PriceProvider)(nil)

// PriceProvider serves unit prices from the prices table. SKUs without a row
// are omitted from the result, which the engine treats as "unpriced".
type PriceProvider struct {
	pool *pgxpool.Pool
}

// NewPriceProvider returns a PriceProvider that uses the given pool.
func NewPriceProvider(pool *pgxpool.Pool) *PriceProvider {
	return &PriceProvider{pool: pool}
}

// GetPrices fetches current unit prices for the requested SKUs in one query.
func (p *PriceProvider) GetPrices(ctx context.Context, skus []cart.SKU) (pricing.Prices, error) {
	codes := make([]string, len(skus))
	for i, sku := range skus {
		codes[i] = string(sku)
	}

	rows, err := p.pool.Query(ctx, getPricesSQL, codes)
	if err != nil {
		return nil, errors.Wrap(err, "query prices")
	}
	defer rows.Close()

	result := make(pricing.Prices, len(skus))
	for rows.Next() {
		var (
			code  string
			price decimal.Decimal
		)
		if err := rows.Scan(&code, &price); err != nil {
			return nil, errors.Wrap(err, "scan price")
		}
		amount, err := money.FromDecimal(price)
		if err != nil {
			return nil, errors.Wrapf(err, "price of %s", code)
		}
		result[cart.SKU(code)] = amount
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "iterate prices")
	}

	return result, nil
}
