// pkg/epochmap/reader.go
package epochmap

import (
	"go.uber.org/atomic"

	"evslotmap/pkg/slotmap"
)

// Reader is a single goroutine's handle onto the map. It is not safe
// to share across goroutines. Each goroutine that needs to read gets
// its own Reader, either via Clone or via a ReaderFactory. This
// restriction is what lets the pin protocol use a plain, non-atomic
// local counter for "my own last published epoch": only the owning
// goroutine ever advances it.
type Reader[V any] struct {
	front *atomic.Pointer[inner[V]]
	reg   *registry

	epoch    *epochCounter
	epochIdx int
	own      uint64 // this reader's own count; touched only by this goroutine
}

func newReader[V any](front *atomic.Pointer[inner[V]], reg *registry) *Reader[V] {
	c := newEpochCounter()
	idx := reg.insert(c)
	return &Reader[V]{front: front, reg: reg, epoch: c, epochIdx: idx}
}

// Clone returns a new, independent Reader over the same map, with its
// own freshly registered epoch counter. Use this (or a Factory) to
// hand a reader to another goroutine rather than sharing one.
func (r *Reader[V]) Clone() *Reader[V] {
	return newReader[V](r.front, r.reg)
}

// Close releases this reader's epoch slot in the registry. A Reader
// that is never closed simply pins forever-parked. Harmless, but it
// leaks a slot in the registry's slab until the process exits.
func (r *Reader[V]) Close() {
	if r.epoch == nil {
		return
	}
	r.reg.remove(r.epochIdx)
	r.epoch = nil
}

// pin publishes this reader's intent to read, then loads the current
// front buffer. It returns ok=false only when the map has been torn
// down (Writer.Close has run); in that case the epoch it just published
// is parked again before returning, since there is nothing left to
// wait on.
//
// The three-step shape (publish unparked, seq-cst, load) is the core
// of the handoff: a writer that is mid-swap either (a) already read
// this reader's old, parked epoch and will not wait on it, (b) reads
// the freshly published epoch and will wait for it to move or park
// again, or (c) the swap hasn't happened yet and this load simply
// returns the current front. All three are safe; there is no window
// where a writer can believe this reader is quiescent while it still
// holds a pointer to the buffer being retired.
func (r *Reader[V]) pin() (*inner[V], bool) {
	r.own++
	r.epoch.store(r.own)
	in := r.front.Load()
	if in == nil {
		r.epoch.store(r.own | parkedBit)
		return nil, false
	}
	return in, true
}

func (r *Reader[V]) unpin() {
	r.epoch.store(r.own | parkedBit)
}

// Get looks up id against the current front buffer and returns a
// guard over the value if found. Release the guard when done with it.
func (r *Reader[V]) Get(id slotmap.ID) (ValueGuard[V], bool) {
	in, ok := r.pin()
	if !ok || !in.isReady() {
		if ok {
			r.unpin()
		}
		return ValueGuard[V]{}, false
	}
	v, found := in.data.Get(id)
	if !found {
		r.unpin()
		return ValueGuard[V]{}, false
	}
	return ValueGuard[V]{reader: r, value: v, live: true}, true
}

// Contains reports whether id currently names a live value, without
// keeping a guard open past the call.
func (r *Reader[V]) Contains(id slotmap.ID) bool {
	in, ok := r.pin()
	if !ok {
		return false
	}
	defer r.unpin()
	return in.isReady() && in.data.Contains(id)
}

// Len reports the current front buffer's live value count, or 0 before
// the first refresh or after teardown.
func (r *Reader[V]) Len() int {
	in, ok := r.pin()
	if !ok {
		return 0
	}
	defer r.unpin()
	if !in.isReady() {
		return 0
	}
	return in.data.Len()
}

// IsEmpty reports whether the front buffer currently holds no values.
// Before the first refresh and after teardown, this reports true.
func (r *Reader[V]) IsEmpty() bool {
	in, ok := r.pin()
	if !ok {
		return true
	}
	defer r.unpin()
	return !in.isReady() || in.data.IsEmpty()
}

// Read pins the front buffer and returns a Snapshot over it. The
// buffer is held pinned (the writer will wait for quiescence rather
// than reclaim it) until the Snapshot is released. Returns ok=false
// if the map has never been refreshed yet, or has been torn down.
func (r *Reader[V]) Read() (*Snapshot[V], bool) {
	in, ok := r.pin()
	if !ok {
		return nil, false
	}
	if !in.isReady() {
		r.unpin()
		return nil, false
	}
	return &Snapshot[V]{reader: r, in: in}, true
}

// IsDestroyed reports whether the writer has torn the map down. Unlike
// the other operations this does not pin: it is a plain load of the
// front cell, safe to call even on a reader whose epoch slot has
// already been closed.
func (r *Reader[V]) IsDestroyed() bool {
	return r.front.Load() == nil
}

// Factory returns a thread-safe producer of fresh Readers over the
// same map. Unlike Reader itself, a ReaderFactory may be shared across
// goroutines freely. It holds only the atomic front cell and the
// mutex-guarded registry, both already safe for concurrent use.
func (r *Reader[V]) Factory() *ReaderFactory[V] {
	return &ReaderFactory[V]{front: r.front, reg: r.reg}
}

// ReaderFactory hands out independent Reader handles. Safe for
// concurrent use by multiple goroutines.
type ReaderFactory[V any] struct {
	front *atomic.Pointer[inner[V]]
	reg   *registry
}

// NewReader registers a fresh epoch counter and returns a Reader owned
// by the calling goroutine.
func (f *ReaderFactory[V]) NewReader() *Reader[V] {
	return newReader[V](f.front, f.reg)
}
