package indexer

import (
	"context"
	"hash/fnv"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/staysearch/unit-index/internal/domain"
)

// Gate is a bounded-concurrency control with a timed acquire. It fails
// soft: callers that cannot get a slot within the timeout skip their work
// instead of blocking indefinitely.
type Gate struct {
	sem     *semaphore.Weighted
	timeout time.Duration
}

// NewGate creates a gate admitting capacity concurrent holders.
func NewGate(capacity int64, timeout time.Duration) *Gate {
	return &Gate{
		sem:     semaphore.NewWeighted(capacity),
		timeout: timeout,
	}
}

// Acquire tries to take a slot within the gate timeout. It returns
// domain.ErrLockTimeout when the gate stays full, or the context error
// when the caller's context ends first.
func (g *Gate) Acquire(ctx context.Context) error {
	tctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()
	if err := g.sem.Acquire(tctx, 1); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return domain.ErrLockTimeout
	}
	return nil
}

// Release returns a slot taken by a successful Acquire.
func (g *Gate) Release() {
	g.sem.Release(1)
}

// lockPool serializes operations per unit id by hashing ids into a fixed
// pool of mutexes. It closes the delete-then-rebuild race between two
// concurrent reindexes of the same unit.
type lockPool struct {
	locks []sync.Mutex
}

func newLockPool(shards int) *lockPool {
	if shards <= 0 {
		shards = 64
	}
	return &lockPool{locks: make([]sync.Mutex, shards)}
}

// lock acquires the shard for key and returns its unlock function.
func (p *lockPool) lock(key string) func() {
	h := fnv.New32a()
	h.Write([]byte(key))
	mu := &p.locks[h.Sum32()%uint32(len(p.locks))]
	mu.Lock()
	return mu.Unlock
}
