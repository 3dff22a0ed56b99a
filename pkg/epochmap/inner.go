// pkg/epochmap/inner.go
package epochmap

import "evslotmap/pkg/slotmap"

// inner is one of the two buffers behind a map: a slot container plus
// a ready flag. A buffer starts life not ready (its data is meaningless
// until the writer has applied at least one refresh); once ready, it
// never goes back, per the data model's monotonicity invariant.
type inner[V any] struct {
	data  *slotmap.SlotMap[V]
	ready bool
}

func newInner[V any](cfg slotmap.Config) *inner[V] {
	return &inner[V]{data: slotmap.New[V](cfg)}
}

// cloneEmpty manufactures the second buffer at construction time. It
// panics if in is non-empty, mirroring slotmap.SlotMap.CloneEmpty.
// There is exactly one legitimate caller, NewWithConfig, and it only ever clones
// the still-empty first buffer.
func (in *inner[V]) cloneEmpty() *inner[V] {
	return &inner[V]{data: in.data.CloneEmpty(), ready: in.ready}
}

func (in *inner[V]) markReady() {
	in.ready = true
}

func (in *inner[V]) isReady() bool {
	return in.ready
}
