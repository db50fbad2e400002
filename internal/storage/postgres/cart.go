package postgres

import (
	"context"
	"encoding/json"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/token-checkout/internal/domain/cart"
)

const (
	createCartSQL = `INSERT INTO carts (id, version, items) VALUES ($1, $2, $3)`
	getCartSQL    = `SELECT version, items FROM carts WHERE id = $1`
	saveCartSQL   = `UPDATE carts SET version = $2, items = $3, updated_at = now()
		WHERE id = $1 AND version = $4`
	cartVersionSQL = `SELECT version FROM carts WHERE id = $1`
)

var _ cart.Repository = (*CartRepository)(nil)

// CartRepository implements cart.Repository backed by PostgreSQL. The
// compare-and-swap save is a conditional UPDATE on the version column, so
// concurrent writers against the same cart resolve at the database without
// row locks held across application code.
type CartRepository struct {
	pool *pgxpool.Pool
}

// NewCartRepository returns a CartRepository that uses the given pool.
func NewCartRepository(pool *pgxpool.Pool) *CartRepository {
	return &CartRepository{pool: pool}
}

// Create persists and returns a new empty cart.
func (r *CartRepository) Create(ctx context.Context) (*cart.Cart, error) {
	c, err := cart.New(uuid.NewString())
	if err != nil {
		return nil, err
	}

	items, err := marshalItems(c.Snapshot().Items)
	if err != nil {
		return nil, err
	}
	if _, err := r.pool.Exec(ctx, createCartSQL, c.ID(), c.Version(), items); err != nil {
		return nil, errors.Wrapf(err, "create cart %q", c.ID())
	}

	return c, nil
}

// Get loads the cart. Every call reconstructs a fresh aggregate from the
// stored row, so callers never share state.
func (r *CartRepository) Get(ctx context.Context, id string) (*cart.Cart, error) {
	var (
		version   int64
		itemsJSON []byte
	)
	err := r.pool.QueryRow(ctx, getCartSQL, id).Scan(&version, &itemsJSON)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, &cart.NotFoundError{ID: id}
		}
		return nil, errors.Wrapf(err, "get cart %q", id)
	}

	var items []cart.Item
	if err := json.Unmarshal(itemsJSON, &items); err != nil {
		return nil, errors.Wrapf(err, "decode items of cart %q", id)
	}

	return cart.FromSnapshot(cart.Snapshot{ID: id, Version: version, Items: items})
}

// Save writes the cart only when the stored version still equals
// expectedVersion. On mismatch it reports *cart.VersionConflictError with
// the actual stored version and writes nothing.
func (r *CartRepository) Save(ctx context.Context, c *cart.Cart, expectedVersion int64) error {
	snapshot := c.Snapshot()
	items, err := marshalItems(snapshot.Items)
	if err != nil {
		return err
	}

	tag, err := r.pool.Exec(ctx, saveCartSQL, c.ID(), snapshot.Version, items, expectedVersion)
	if err != nil {
		return errors.Wrapf(err, "save cart %q", c.ID())
	}
	if tag.RowsAffected() > 0 {
		return nil
	}

	// The conditional update matched nothing: either the cart is gone or
	// someone else won the version race. Distinguish for the caller.
	var actual int64
	err = r.pool.QueryRow(ctx, cartVersionSQL, c.ID()).Scan(&actual)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return &cart.NotFoundError{ID: c.ID()}
		}
		return errors.Wrapf(err, "load version of cart %q", c.ID())
	}
	return &cart.VersionConflictError{ID: c.ID(), Expected: expectedVersion, Actual: actual}
}

func marshalItems(items []cart.Item) ([]byte, error) {
	data, err := json.Marshal(items)
	if err != nil {
		return nil, errors.Wrap(err, "marshal cart items")
	}
	return data, nil
}
