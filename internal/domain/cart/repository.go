package cart

import "context"

// Repository defines persistence operations for carts.
//
// Get must return an independent copy of the stored aggregate: concurrent
// callers never share a mutable Cart. Save is a compare-and-swap keyed on
// version — it succeeds only when the stored version equals expectedVersion,
// otherwise it fails with *VersionConflictError and writes nothing.
type Repository interface {
	Create(ctx context.Context) (*Cart, error)
	Get(ctx context.Context, id string) (*Cart, error)
	Save(ctx context.Context, c *Cart, expectedVersion int64) error
}
