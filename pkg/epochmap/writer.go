// pkg/epochmap/writer.go
package epochmap

import (
	"runtime"

	uatomic "go.uber.org/atomic"

	"evslotmap/pkg/slotmap"
)

type opKind int

const (
	opNoOp opKind = iota
	opAdd
	opReplace
	opRemove
	opClear
)

type operation[V any] struct {
	kind  opKind
	id    slotmap.ID
	value V
}

// Writer is the single mutator of a map. Nothing about Writer is safe
// for concurrent use by more than one goroutine: scope is exactly one
// writer; callers needing more must serialize externally (a plain
// sync.Mutex around the Writer is enough).
//
// Writer embeds its own Reader so it can read its own writes without
// going through the refresh protocol. Insert/update/remove are only
// visible to readers after a refresh, but the writer's own reads of
// the current front behave exactly like any other reader's.
type Writer[V any] struct {
	*Reader[V]

	back       *inner[V]
	lastOp     *operation[V]
	lastEpochs []uint64
	closed     bool
}

// New creates an empty map and returns a fresh reader paired with its
// writer. The reader's first read (before any refresh) reports absent,
// per the data model's "not yet ready" state.
func New[V any]() (*Reader[V], *Writer[V]) {
	return NewWithConfig[V](slotmap.Config{})
}

// NewWithConfig is New with control over initial slot capacity.
func NewWithConfig[V any](cfg slotmap.Config) (*Reader[V], *Writer[V]) {
	reg := newRegistry()
	front := newInner[V](cfg)
	back := front.cloneEmpty()
	back.markReady()

	frontCell := &uatomic.Pointer[inner[V]]{}
	frontCell.Store(front)

	r := newReader[V](frontCell, reg)
	w := &Writer[V]{
		Reader: newReader[V](frontCell, reg),
		back:   back,
	}
	return r, w
}

// NewWithData seeds a map from an already-populated slot map: the
// slot map becomes the front buffer (ready immediately), and the
// writer's back buffer starts as an independent, shallow-copied
// duplicate of every value in it. Ids already present in initial
// remain valid.
func NewWithData[V any](initial *slotmap.SlotMap[V]) (*Reader[V], *Writer[V]) {
	reg := newRegistry()
	front := &inner[V]{data: initial, ready: true}
	back := &inner[V]{data: initial.CloneWith(shallowCopy[V]), ready: true}

	frontCell := &uatomic.Pointer[inner[V]]{}
	frontCell.Store(front)

	r := newReader[V](frontCell, reg)
	w := &Writer[V]{
		Reader: newReader[V](frontCell, reg),
		back:   back,
	}
	return r, w
}

// Insert adds v to the map and returns its id. Insert refreshes before
// returning, so the value is visible to every read that begins after
// Insert returns.
func (w *Writer[V]) Insert(v V) slotmap.ID {
	w.checkOpen()
	id, _ := w.refreshWithOperation(operation[V]{kind: opAdd, value: v})
	return id
}

// Update replaces the value at id. Panics if id does not presently
// name a live slot in the writer's view.
func (w *Writer[V]) Update(id slotmap.ID, v V) {
	w.checkOpen()
	w.refreshWithOperation(operation[V]{kind: opReplace, id: id, value: v})
}

// Remove deletes the value at id. Panics if id does not presently
// name a live slot in the writer's view.
func (w *Writer[V]) Remove(id slotmap.ID) {
	w.checkOpen()
	w.refreshWithOperation(operation[V]{kind: opRemove, id: id})
}

// Clear removes every value from the map.
func (w *Writer[V]) Clear() {
	w.checkOpen()
	w.refreshWithOperation(operation[V]{kind: opClear})
}

// Refresh runs one refresh with no new operation (a NoOp): it replays
// the previous operation onto the back buffer, running any Drop that
// operation owes, and swaps the buffers. Every mutator already
// refreshes, so the contents readers see do not change.
func (w *Writer[V]) Refresh() {
	w.checkOpen()
	w.refreshWithOperation(operation[V]{kind: opNoOp})
}

func (w *Writer[V]) checkOpen() {
	if w.closed {
		panic(ErrDestroyed)
	}
}

// refreshWithOperation is the eight-step protocol: wait for the
// current back buffer to be quiescent, replay the previous refresh's
// operation onto it for real (this is where a replaced or removed
// value's Drop finally runs), apply the new operation in
// shallow-copied form, mark the back buffer ready, swap it in as the
// new front, and snapshot reader epochs for the next wait.
func (w *Writer[V]) refreshWithOperation(op operation[V]) (slotmap.ID, bool) {
	w.reg.mu.Lock()
	defer w.reg.mu.Unlock()

	w.wait()

	if w.lastOp != nil {
		runOperation(w.back, *w.lastOp, true)
		w.lastOp = nil
	}
	id, hasID := runOperation(w.back, op, false)
	w.lastOp = &op
	w.back.markReady()

	old := w.front.Swap(w.back)
	w.back = old

	w.recordEpochs()
	return id, hasID
}

// wait blocks until every registered reader's published epoch is
// either parked or has moved past the value last recorded for it,
// i.e. until no reader can still hold a pointer to the current back
// buffer. Must be called with reg.mu held.
//
// The retry shape (spin a short while, then yield, then keep checking
// from wherever it left off) avoids starving a reader that is merely
// slow to park while not burning a core indefinitely waiting on one
// that is.
func (w *Writer[V]) wait() {
	reg := w.reg
	if len(w.lastEpochs) < len(reg.slots) {
		grown := make([]uint64, len(reg.slots))
		copy(grown, w.lastEpochs)
		w.lastEpochs = grown
	}

	iter := 0
	starti := 0
	for {
		stalled := -1
		for i := starti; i < len(reg.slots); i++ {
			c := reg.slots[i]
			if c == nil {
				continue
			}
			if isParked(w.lastEpochs[i]) {
				continue
			}
			now := c.load()
			if now != w.lastEpochs[i] || isParked(now) || now == 0 {
				continue
			}
			stalled = i
			break
		}
		if stalled < 0 {
			return
		}
		starti = stalled
		if iter < 20 {
			iter++
		} else {
			runtime.Gosched()
		}
	}
}

// recordEpochs snapshots every reader's current published epoch right
// after a swap, for the next call's wait to compare against. Must be
// called with reg.mu held.
func (w *Writer[V]) recordEpochs() {
	reg := w.reg
	if len(w.lastEpochs) < len(reg.slots) {
		grown := make([]uint64, len(reg.slots))
		copy(grown, w.lastEpochs)
		w.lastEpochs = grown
	}
	for i, c := range reg.slots {
		if c == nil {
			continue
		}
		w.lastEpochs[i] = c.load()
	}
}

// runOperation applies op to target. dropOwning selects whether a
// value being overwritten or removed has Drop called on it: true
// only for the replay of a previously staged operation (step 2 of the
// refresh protocol), once quiescence has proven no reader can still
// see the old value.
func runOperation[V any](target *inner[V], op operation[V], dropOwning bool) (slotmap.ID, bool) {
	switch op.kind {
	case opAdd:
		id := target.data.Insert(shallowCopy(op.value))
		return id, true
	case opReplace:
		old := target.data.Replace(op.id, shallowCopy(op.value))
		if dropOwning {
			dropValue(old)
		}
	case opRemove:
		old := target.data.Remove(op.id)
		if dropOwning {
			dropValue(old)
		}
	case opClear:
		if dropOwning {
			target.data.Values(func(v V) bool { dropValue(v); return true })
		}
		target.data.Clear()
	case opNoOp:
	}
	return slotmap.ID{}, false
}

// Close tears the map down: flushes any still-staged operation through
// both buffers, detaches the front pointer, waits for every reader to
// observe the detach, then drops every value still present exactly
// once. Go has no destructor to call this implicitly; callers that
// need deterministic cleanup of a V implementing Dropper must call
// Close explicitly. Safe to call more than once.
func (w *Writer[V]) Close() {
	if w.closed {
		return
	}
	w.closed = true

	// Two NoOp refreshes flush the previous and current pending
	// operations out of both buffers, leaving them exactly equal.
	w.refreshWithOperation(operation[V]{kind: opNoOp})
	w.refreshWithOperation(operation[V]{kind: opNoOp})

	w.reg.mu.Lock()
	finalFront := w.front.Swap(nil)
	w.wait()
	w.reg.mu.Unlock()

	// finalFront holds the map's real, authoritative values. Drop
	// each exactly once. w.back holds only duplicates; discard it
	// without calling Drop on anything in it.
	finalFront.data.Values(func(v V) bool { dropValue(v); return true })
	w.back = nil
}
