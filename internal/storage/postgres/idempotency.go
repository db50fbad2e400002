package postgres

import (
	"context"
	"sync"

	"github.com/bits-and-blooms/bloom/v3"
	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/token-checkout/internal/checkout"
)

const (
	// Sizing for the seen-keys bloom filter. At the estimated capacity the
	// false positive rate stays ~0.1%; a false positive only costs one
	// extra SELECT, never a wrong answer.
	bloomCapacity = 10_000_000
	bloomFPR      = 0.001
)

const (
	getIdemSQL = `SELECT cart_id, version, fingerprint FROM idempotency_keys WHERE key = $1`
	setIdemSQL = `INSERT INTO idempotency_keys (key, cart_id, version, fingerprint)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (key) DO UPDATE
		SET cart_id = EXCLUDED.cart_id, version = EXCLUDED.version, fingerprint = EXCLUDED.fingerprint`
	listIdemKeysSQL = `SELECT key FROM idempotency_keys`
	clearIdemSQL    = `TRUNCATE idempotency_keys`
)

var _ checkout.IdempotencyStore = (*IdempotencyStore)(nil)

// IdempotencyStore implements checkout.IdempotencyStore on PostgreSQL.
//
// A bloom filter fronts the table: most keys are seen exactly once, so the
// "definitely fresh" answer skips the SELECT entirely. The filter is warmed
// from the table at construction and only ever accumulates keys; the table
// remains the source of truth.
type IdempotencyStore struct {
	pool *pgxpool.Pool

	mu   sync.Mutex
	seen *bloom.BloomFilter
}

// NewIdempotencyStore creates a store and warms its bloom filter from the
// existing records.
func NewIdempotencyStore(ctx context.Context, pool *pgxpool.Pool) (*IdempotencyStore, error) {
	s := &IdempotencyStore{
		pool: pool,
		seen: bloom.NewWithEstimates(bloomCapacity, bloomFPR),
	}

	rows, err := pool.Query(ctx, listIdemKeysSQL)
	if err != nil {
		return nil, errors.Wrap(err, "warm idempotency filter")
	}
	defer rows.Close()

	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, errors.Wrap(err, "scan idempotency key")
		}
		s.seen.AddString(key)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "iterate idempotency keys")
	}

	return s, nil
}

// VerifyAndSet implements checkout.IdempotencyStore.
func (s *IdempotencyStore) VerifyAndSet(ctx context.Context, key, cartID, fingerprint string) (checkout.Verification, error) {
	s.mu.Lock()
	maybeSeen := s.seen.TestString(key)
	s.mu.Unlock()

	if !maybeSeen {
		return checkout.Verification{}, nil
	}

	var existing checkout.IdempotencyRecord
	err := s.pool.QueryRow(ctx, getIdemSQL, key).
		Scan(&existing.CartID, &existing.Version, &existing.Fingerprint)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			// Bloom false positive.
			return checkout.Verification{}, nil
		}
		return checkout.Verification{}, errors.Wrapf(err, "lookup idempotency key %q", key)
	}

	if existing.CartID != cartID {
		return checkout.Verification{}, &checkout.KeyConflictError{
			Key:                 key,
			ExpectedFingerprint: existing.CartID + ":" + existing.Fingerprint,
			ReceivedFingerprint: cartID + ":" + fingerprint,
		}
	}
	if existing.Fingerprint != fingerprint {
		return checkout.Verification{}, &checkout.KeyConflictError{
			Key:                 key,
			ExpectedFingerprint: existing.Fingerprint,
			ReceivedFingerprint: fingerprint,
		}
	}
	return checkout.Verification{Duplicate: true, Version: existing.Version}, nil
}

// Set implements checkout.IdempotencyStore.
func (s *IdempotencyStore) Set(ctx context.Context, key, cartID string, version int64, fingerprint string) error {
	if _, err := s.pool.Exec(ctx, setIdemSQL, key, cartID, version, fingerprint); err != nil {
		return errors.Wrapf(err, "set idempotency key %q", key)
	}

	s.mu.Lock()
	s.seen.AddString(key)
	s.mu.Unlock()
	return nil
}

// Clear implements checkout.IdempotencyStore.
func (s *IdempotencyStore) Clear(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, clearIdemSQL); err != nil {
		return errors.Wrap(err, "clear idempotency keys")
	}

	s.mu.Lock()
	s.seen.ClearAll()
	s.mu.Unlock()
	return nil
}
