package checkout

import (
	"context"
	"fmt"
	"sync"
)

// Fingerprint deterministically encodes the semantic parameters of a scan.
// The cart id is deliberately not part of it: cross-cart key reuse is
// detected separately so it can be distinguished from a parameter mismatch.
func Fingerprint(sku string, quantity int) string {
	return fmt.Sprintf("%s:%d", sku, quantity)
}

// KeyConflictError reports an idempotency key reused with different request
// parameters or against a different cart.
type KeyConflictError struct {
	Key                 string
	ExpectedFingerprint string
	ReceivedFingerprint string
}

func (e *KeyConflictError) Error() string {
	return fmt.Sprintf(
		"idempotency key conflict: key %q was previously used with different request parameters: expected %s, received %s",
		e.Key, e.ExpectedFingerprint, e.ReceivedFingerprint)
}

// Verification is the outcome of an idempotency check. When Duplicate is
// true, Version holds the version recorded by the original operation.
type Verification struct {
	Duplicate bool
	Version   int64
}

// IdempotencyRecord is the stored outcome of a previously effected scan.
type IdempotencyRecord struct {
	CartID      string
	Version     int64
	Fingerprint string
}

// IdempotencyStore maps caller-supplied keys to the outcome of the scan they
// previously effected. Records never expire; retention is a concern of the
// assembling boundary.
type IdempotencyStore interface {
	// VerifyAndSet checks the key before any mutation. A fresh key reports
	// not-a-duplicate without recording anything (recording happens via Set
	// only after the guarded operation succeeds). A key seen with the same
	// cart and fingerprint reports a duplicate together with the recorded
	// version. Any other reuse fails with *KeyConflictError: a different
	// cart composes the cart id into the expected fingerprint.
	VerifyAndSet(ctx context.Context, key, cartID, fingerprint string) (Verification, error)
	// Set unconditionally (re)writes the record for key.
	Set(ctx context.Context, key, cartID string, version int64, fingerprint string) error
	// Clear empties the store.
	Clear(ctx context.Context) error
}

// MemoryIdempotencyStore is the in-process store. A single mutex serializes
// verify-then-set so two parallel duplicates cannot both observe "fresh".
type MemoryIdempotencyStore struct {
	mu      sync.Mutex
	records map[string]IdempotencyRecord
}

var _ IdempotencyStore = (*MemoryIdempotencyStore)(nil)

// NewMemoryIdempotencyStore creates an empty in-memory store.
func NewMemoryIdempotencyStore() *MemoryIdempotencyStore {
	return &MemoryIdempotencyStore{records: make(map[string]IdempotencyRecord)}
}

// Get returns the record for key, if any. Mostly useful in tests.
func (s *MemoryIdempotencyStore) Get(key string) (IdempotencyRecord, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[key]
	return rec, ok
}

// VerifyAndSet implements IdempotencyStore.
func (s *MemoryIdempotencyStore) VerifyAndSet(_ context.Context, key, cartID, fingerprint string) (Verification, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.records[key]
	if !ok {
		return Verification{}, nil
	}
	if existing.CartID != cartID {
		return Verification{}, &KeyConflictError{
			Key:                 key,
			ExpectedFingerprint: existing.CartID + ":" + existing.Fingerprint,
			ReceivedFingerprint: cartID + ":" + fingerprint,
		}
	}
	if existing.Fingerprint != fingerprint {
		return Verification{}, &KeyConflictError{
			Key:                 key,
			ExpectedFingerprint: existing.Fingerprint,
			ReceivedFingerprint: fingerprint,
		}
	}
	return Verification{Duplicate: true, Version: existing.Version}, nil
}

// Set implements IdempotencyStore.
func (s *MemoryIdempotencyStore) Set(_ context.Context, key, cartID string, version int64, fingerprint string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[key] = IdempotencyRecord{CartID: cartID, Version: version, Fingerprint: fingerprint}
	return nil
}

// Clear implements IdempotencyStore.
func (s *MemoryIdempotencyStore) Clear(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = make(map[string]IdempotencyRecord)
	return nil
}
