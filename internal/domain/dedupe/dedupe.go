// Package dedupe tracks already-seen idempotency keys.
//
// The service uses it twice: as a fast path in front of the store's
// authoritative offline_id uniqueness check during sync replays, and as
// the sole seen-set for webhook job ids. The cache is advisory for sync
// (a miss falls through to the store), so bounded eviction is safe there.
package dedupe

import (
	"context"
	"sync"
	"sync/atomic"
)

// Deduper records seen idempotency keys for at-most-once processing.
type Deduper interface {
	// SeenAndRecord atomically checks whether key was seen and records it
	// if not. Returns true if key was already seen.
	SeenAndRecord(ctx context.Context, key string) bool

	// Unrecord removes a key, allowing a retry. Use when a key was marked
	// seen but the work behind it failed before taking effect.
	Unrecord(ctx context.Context, key string)

	Size() int64
}

// inMemoryDeduper implements Deduper with a map plus a FIFO eviction ring.
// maxSize <= 0 disables eviction.
type inMemoryDeduper struct {
	mu      sync.Mutex
	seen    map[string]struct{}
	order   []string // insertion order, oldest first; unused when unbounded
	maxSize int
	size    atomic.Int64
}

// NewInMemoryDeduper creates an in-memory deduper.
func NewInMemoryDeduper(opts ...Option) Deduper {
	d := &inMemoryDeduper{
		maxSize: 50000,
		seen:    make(map[string]struct{}),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

func (d *inMemoryDeduper) SeenAndRecord(ctx context.Context, key string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, ok := d.seen[key]; ok {
		return true
	}

	if d.maxSize > 0 {
		for len(d.seen) >= d.maxSize && len(d.order) > 0 {
			oldest := d.order[0]
			d.order = d.order[1:]
			if _, ok := d.seen[oldest]; ok {
				delete(d.seen, oldest)
				d.size.Add(-1)
			}
		}
		d.order = append(d.order, key)
	}
	d.seen[key] = struct{}{}
	d.size.Add(1)
	return false
}

func (d *inMemoryDeduper) Unrecord(ctx context.Context, key string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, ok := d.seen[key]; !ok {
		return
	}
	delete(d.seen, key)
	d.size.Add(-1)
	// The stale entry in d.order is skipped at eviction time.
}

func (d *inMemoryDeduper) Size() int64 {
	return d.size.Load()
}
