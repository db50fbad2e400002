package cart

import (
	"fmt"
	"strings"

	"github.com/go-faster/errors"
)

// ErrEmptyID is returned when constructing a cart with a blank identifier.
var ErrEmptyID = errors.New("cart ID cannot be empty")

// InvalidSKUError indicates an item code outside the catalog. It always
// carries the full valid set so callers can surface it.
type InvalidSKUError struct {
	Value string
	Valid []SKU
}

func (e *InvalidSKUError) Error() string {
	valid := make([]string, len(e.Valid))
	for i, s := range e.Valid {
		valid[i] = string(s)
	}
	return fmt.Sprintf("invalid SKU %q: must be one of %s", e.Value, strings.Join(valid, ", "))
}

// InvalidQuantityError indicates a non-positive quantity.
type InvalidQuantityError struct {
	Quantity int
}

func (e *InvalidQuantityError) Error() string {
	return fmt.Sprintf("quantity must be a positive integer, got %d", e.Quantity)
}

// NotFoundError indicates the repository holds no cart with the given id.
type NotFoundError struct {
	ID string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("cart %s not found", e.ID)
}

// VersionConflictError reports a failed compare-and-swap save: the stored
// version no longer matches the version the caller read. No write happened.
type VersionConflictError struct {
	ID       string
	Expected int64
	Actual   int64
}

func (e *VersionConflictError) Error() string {
	return fmt.Sprintf("cart %s version conflict: expected version %d, but cart is at version %d",
		e.ID, e.Expected, e.Actual)
}
