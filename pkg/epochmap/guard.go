// pkg/epochmap/guard.go
package epochmap

import "evslotmap/pkg/slotmap"

// ValueGuard holds a single value read out of the map. Call Release
// when done with it; until then, the reader it came from stays pinned
// and the writer will treat it as still in use.
type ValueGuard[V any] struct {
	reader   *Reader[V]
	value    V
	live     bool
	released bool
}

// Value returns the guarded value.
func (g *ValueGuard[V]) Value() V { return g.value }

// Release unpins the reader. Safe to call more than once; only the
// first call has an effect.
func (g *ValueGuard[V]) Release() {
	if !g.live || g.released {
		return
	}
	g.released = true
	g.reader.unpin()
}

// Snapshot is a whole-buffer read guard: a consistent view of every
// value present in the front buffer at the moment Reader.Read was
// called. The buffer stays pinned, and so off-limits to writer
// reclamation, until Release is called.
type Snapshot[V any] struct {
	reader   *Reader[V]
	in       *inner[V]
	released bool
}

// Len reports the number of live values in the snapshot.
func (s *Snapshot[V]) Len() int { return s.in.data.Len() }

// IsEmpty reports whether the snapshot holds no values.
func (s *Snapshot[V]) IsEmpty() bool { return s.in.data.IsEmpty() }

// Get looks up id within the snapshot.
func (s *Snapshot[V]) Get(id slotmap.ID) (V, bool) { return s.in.data.Get(id) }

// Contains reports whether id is live within the snapshot.
func (s *Snapshot[V]) Contains(id slotmap.ID) bool { return s.in.data.Contains(id) }

// Iterate calls fn for every (id, value) pair in the snapshot, in
// unspecified order, stopping early if fn returns false.
func (s *Snapshot[V]) Iterate(fn func(slotmap.ID, V) bool) { s.in.data.Iterate(fn) }

// Values calls fn for every value in the snapshot, in unspecified
// order, stopping early if fn returns false.
func (s *Snapshot[V]) Values(fn func(V) bool) { s.in.data.Values(fn) }

// Release unpins the reader this snapshot was taken from. Safe to
// call more than once.
func (s *Snapshot[V]) Release() {
	if s.released {
		return
	}
	s.released = true
	s.reader.unpin()
}
