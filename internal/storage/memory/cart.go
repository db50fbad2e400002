// Package memory provides in-process implementations of the storage ports.
// It is the default backend when no database is configured, and the backbone
// of the unit tests.
package memory

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/xenking/token-checkout/internal/domain/cart"
)

var _ cart.Repository = (*CartRepository)(nil)

// CartRepository stores carts in a process-wide map guarded by a mutex.
// Save is a compare-and-swap on the stored version; Get hands out an
// independent copy so callers can never corrupt stored state.
type CartRepository struct {
	mu    sync.Mutex
	carts map[string]*cart.Cart
}

// NewCartRepository creates an empty repository.
func NewCartRepository() *CartRepository {
	return &CartRepository{carts: make(map[string]*cart.Cart)}
}

// Create persists and returns a new empty cart.
func (r *CartRepository) Create(_ context.Context) (*cart.Cart, error) {
	c, err := cart.New(uuid.NewString())
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	r.carts[c.ID()] = c
	r.mu.Unlock()

	return clone(c)
}

// Get returns an independent copy of the stored cart.
func (r *CartRepository) Get(_ context.Context, id string) (*cart.Cart, error) {
	r.mu.Lock()
	stored, ok := r.carts[id]
	r.mu.Unlock()

	if !ok {
		return nil, &cart.NotFoundError{ID: id}
	}
	return clone(stored)
}

// Save stores the cart only when the stored version still equals
// expectedVersion. On mismatch it fails with *cart.VersionConflictError and
// performs no write.
func (r *CartRepository) Save(_ context.Context, c *cart.Cart, expectedVersion int64) error {
	copied, err := clone(c)
	if err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	stored, ok := r.carts[c.ID()]
	if !ok {
		return &cart.NotFoundError{ID: c.ID()}
	}
	if stored.Version() != expectedVersion {
		return &cart.VersionConflictError{
			ID:       c.ID(),
			Expected: expectedVersion,
			Actual:   stored.Version(),
		}
	}

	r.carts[c.ID()] = copied
	return nil
}

// Clear drops all stored carts.
func (r *CartRepository) Clear() {
	r.mu.Lock()
	r.carts = make(map[string]*cart.Cart)
	r.mu.Unlock()
}

// clone copies a cart through its snapshot so the copy shares no storage
// with the original.
func clone(c *cart.Cart) (*cart.Cart, error) {
	return cart.FromSnapshot(c.Snapshot())
}
