// pkg/epochmap/epoch.go
package epochmap

import "go.uber.org/atomic"

// parkedBit marks a reader's published epoch as "not currently inside
// a pinned read." It occupies the top bit of the counter, the way the
// source design reserves usize's high bit; a writer can advance past
// this many calls before the bit pattern could plausibly wrap, so it
// is not a realistic collision risk.
const parkedBit = uint64(1) << 63

// epochCounter is one reader's published progress counter, shared
// between exactly one Reader and the registry the writer scans. Every
// store is sequentially consistent, which gives the protocol the
// acquire/release pairing the wait algorithm depends on without a
// separate fence call. Go's atomic package offers no weaker ordering
// to opt out of.
type epochCounter struct {
	v atomic.Uint64
}

func newEpochCounter() *epochCounter {
	return &epochCounter{}
}

func (e *epochCounter) load() uint64 {
	return e.v.Load()
}

func (e *epochCounter) store(v uint64) {
	e.v.Store(v)
}

func isParked(epoch uint64) bool {
	return epoch&parkedBit != 0
}
