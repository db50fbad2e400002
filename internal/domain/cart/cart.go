// Package cart holds the cart aggregate, the SKU catalog and the repository
// port. The cart is the unit of optimistic concurrency: its version advances
// by exactly one on every successful mutation, and the repository's
// compare-and-swap save is the only concurrency-control primitive.
package cart

import (
	"sort"
	"strings"
	"time"
)

// DefaultVersion is the version a freshly created cart starts at.
const DefaultVersion int64 = 1

// Item is a (SKU, quantity) pair. Quantity is always positive.
type Item struct {
	SKU      SKU `json:"sku"`
	Quantity int `json:"quantity"`
}

// Snapshot is an immutable point-in-time projection of a cart. It shares no
// storage with the live aggregate, so it may outlive modifications to it.
type Snapshot struct {
	ID        string
	Version   int64
	Items     []Item
	CreatedAt time.Time
}

// Cart accumulates scanned items keyed by SKU. It is not safe for concurrent
// use; callers obtain their own copy from the repository.
type Cart struct {
	id      string
	version int64
	items   map[SKU]int
}

// New constructs an empty cart with the given id at DefaultVersion.
func New(id string) (*Cart, error) {
	return NewAtVersion(id, DefaultVersion)
}

// NewAtVersion constructs an empty cart at an explicit starting version.
func NewAtVersion(id string, version int64) (*Cart, error) {
	if strings.TrimSpace(id) == "" {
		return nil, ErrEmptyID
	}
	return &Cart{
		id:      id,
		version: version,
		items:   make(map[SKU]int),
	}, nil
}

// ID returns the cart identifier.
func (c *Cart) ID() string {
	return c.id
}

// Version returns the current version of the aggregate.
func (c *Cart) Version() int64 {
	return c.version
}

// AddItem accumulates quantity units of the given SKU and bumps the version
// by exactly one. Validation happens before any mutation: on error the item
// map and version are untouched.
func (c *Cart) AddItem(sku string, quantity int) error {
	if quantity <= 0 {
		return &InvalidQuantityError{Quantity: quantity}
	}
	parsed, err := ParseSKU(sku)
	if err != nil {
		return err
	}

	c.items[parsed] += quantity
	c.version++
	return nil
}

// ItemQuantity returns the accumulated quantity for a SKU, zero if absent.
func (c *Cart) ItemQuantity(sku SKU) int {
	return c.items[sku]
}

// Items returns an independent copy of the item map.
func (c *Cart) Items() map[SKU]int {
	out := make(map[SKU]int, len(c.items))
	for s, q := range c.items {
		out[s] = q
	}
	return out
}

// IsEmpty reports whether the cart holds no items.
func (c *Cart) IsEmpty() bool {
	return len(c.items) == 0
}

// TotalItemCount returns the sum of all quantities.
func (c *Cart) TotalItemCount() int {
	total := 0
	for _, q := range c.items {
		total += q
	}
	return total
}

// Snapshot captures the cart state. Items are sorted by SKU so repeated
// snapshots of unchanged state are value-equal apart from the capture time.
func (c *Cart) Snapshot() Snapshot {
	items := make([]Item, 0, len(c.items))
	for s, q := range c.items {
		items = append(items, Item{SKU: s, Quantity: q})
	}
	sort.Slice(items, func(i, j int) bool { return items[i].SKU < items[j].SKU })

	return Snapshot{
		ID:        c.id,
		Version:   c.version,
		Items:     items,
		CreatedAt: time.Now(),
	}
}

// FromSnapshot reconstructs a cart from a snapshot. Items are re-aggregated
// rather than copied so that snapshots built from merged views restore
// correctly.
func FromSnapshot(s Snapshot) (*Cart, error) {
	c, err := NewAtVersion(s.ID, s.Version)
	if err != nil {
		return nil, err
	}
	for _, item := range s.Items {
		c.items[item.SKU] += item.Quantity
	}
	return c, nil
}
