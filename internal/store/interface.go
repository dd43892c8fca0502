package store

import (
	"context"
	"errors"
	"time"
)

// ErrKeyNotFound is returned by Get for missing keys.
var ErrKeyNotFound = errors.New("key not found")

// Member is one scored entry of a sorted secondary index.
type Member struct {
	Score float64
	ID    string
}

// Batch collects document writes and secondary-index updates that must be
// committed as one atomic multi-key operation. A reader never observes a
// partially applied batch.
type Batch struct {
	Set  map[string]string
	Del  []string
	SAdd map[string][]string
	SRem map[string][]string
	ZAdd map[string][]Member
	ZRem map[string][]string
}

// NewBatch returns an empty batch.
func NewBatch() *Batch {
	return &Batch{
		Set:  make(map[string]string),
		SAdd: make(map[string][]string),
		SRem: make(map[string][]string),
		ZAdd: make(map[string][]Member),
		ZRem: make(map[string][]string),
	}
}

// Empty reports whether the batch contains no operations.
func (b *Batch) Empty() bool {
	return len(b.Set) == 0 && len(b.Del) == 0 &&
		len(b.SAdd) == 0 && len(b.SRem) == 0 &&
		len(b.ZAdd) == 0 && len(b.ZRem) == 0
}

// UnitStay is the per-unit aggregate of one stay query: whether any day in
// the range blocks the unit, plus how many days carried a schedule document
// and the sum of their prices.
type UnitStay struct {
	Blocked      bool
	PricedNights int
	PriceSum     float64
}

// IndexStore is the thin abstraction over the external index store.
// Implementations must be safe for concurrent use.
type IndexStore interface {
	// Get returns the value at key, or ErrKeyNotFound.
	Get(ctx context.Context, key string) (string, error)

	// MGet returns the values for keys in order, "" for missing keys.
	MGet(ctx context.Context, keys []string) ([]string, error)

	// Commit applies the batch atomically.
	Commit(ctx context.Context, b *Batch) error

	// SMembers returns all members of a set index.
	SMembers(ctx context.Context, key string) ([]string, error)

	// SCard returns the cardinality of a set index.
	SCard(ctx context.Context, key string) (int64, error)

	// ZRangeByScore returns members with min <= score < max, score order.
	ZRangeByScore(ctx context.Context, key string, min, max float64) ([]string, error)

	// ZCard returns the cardinality of a sorted index.
	ZCard(ctx context.Context, key string) (int64, error)

	// Scan streams keys matching a glob pattern to fn; fn returning an
	// error stops the scan.
	Scan(ctx context.Context, pattern string, fn func(key string) error) error

	// StayQuery aggregates the schedule index over [from, to) per unit:
	// the combined exclusion and pricing phases of a dated search.
	// Implementations may run it as one server-side script or as
	// sequential round trips.
	StayQuery(ctx context.Context, from, to time.Time) (map[string]UnitStay, error)

	Close() error
}
