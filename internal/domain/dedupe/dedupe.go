// Package dedupe remembers idempotency keys of write requests so a retried
// submission is recognised instead of applied twice.
package dedupe

import (
	"context"
	"sync"
	"sync/atomic"
)

// DefaultMaxSize is the number of keys kept when no size is configured.
const DefaultMaxSize = 10000

// Deduper records seen idempotency keys.
type Deduper interface {
	// SeenAndRecord atomically checks if key was seen and records it if not.
	// Returns true if key was already seen, false if it was newly recorded.
	SeenAndRecord(ctx context.Context, key string) bool

	// Unrecord forgets key so the request can be retried, e.g. after the
	// write it guarded failed.
	Unrecord(ctx context.Context, key string)

	Size() int64
}

type entry struct {
	key string
	seq uint64
}

// inMemoryDeduper keeps keys in a map plus an insertion-ordered slice so the
// oldest key is evicted first once maxSize is reached.
// maxSize <= 0 means unbounded.
type inMemoryDeduper struct {
	mu      sync.Mutex
	seen    map[string]uint64 // key -> insertion sequence
	order   []entry           // keys in insertion order, bounded mode only
	start   int               // index of the oldest entry in order
	seq     uint64
	maxSize int
	size    atomic.Int64
}

// NewInMemoryDeduper creates a new in-memory deduper with configuration options.
func NewInMemoryDeduper(opts ...Option) Deduper {
	d := &inMemoryDeduper{
		maxSize: DefaultMaxSize,
	}
	for _, opt := range opts {
		opt(d)
	}
	d.seen = make(map[string]uint64)
	if d.maxSize > 0 {
		d.order = make([]entry, 0, d.maxSize)
	}
	return d
}

// SeenAndRecord atomically checks if key was seen and records it if not.
func (d *inMemoryDeduper) SeenAndRecord(_ context.Context, key string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, exists := d.seen[key]; exists {
		return true
	}

	if d.maxSize > 0 {
		d.compact()
		if len(d.seen) >= d.maxSize {
			d.evictOldest()
		}
	}
	d.seq++
	d.seen[key] = d.seq
	if d.maxSize > 0 {
		d.order = append(d.order, entry{key: key, seq: d.seq})
	}
	d.size.Store(int64(len(d.seen)))
	return false
}

// Unrecord removes key. Its slot in the order is skipped lazily.
func (d *inMemoryDeduper) Unrecord(_ context.Context, key string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, exists := d.seen[key]; exists {
		delete(d.seen, key)
		d.size.Store(int64(len(d.seen)))
	}
}

// evictOldest drops the oldest live key. Must be called with d.mu held.
func (d *inMemoryDeduper) evictOldest() {
	for d.start < len(d.order) {
		e := d.order[d.start]
		d.order[d.start] = entry{}
		d.start++
		if d.live(e) {
			delete(d.seen, e.key)
			return
		}
	}
}

// compact reclaims slots already consumed by evictions or stale after
// Unrecord. Must be called with d.mu held.
func (d *inMemoryDeduper) compact() {
	if d.start == 0 && len(d.order) < 2*d.maxSize {
		return
	}
	live := d.order[:0]
	for _, e := range d.order[d.start:] {
		if d.live(e) {
			live = append(live, e)
		}
	}
	for i := len(live); i < len(d.order); i++ {
		d.order[i] = entry{}
	}
	d.order = live
	d.start = 0
}

// live reports whether e is still the current record of its key.
func (d *inMemoryDeduper) live(e entry) bool {
	seq, ok := d.seen[e.key]
	return ok && seq == e.seq
}

// Size returns the current number of keys.
func (d *inMemoryDeduper) Size() int64 {
	return d.size.Load()
}
