// Package epochmap implements a lock-free, single-writer/multi-reader
// concurrent slot map: one writer mutates a pkg/slotmap.SlotMap behind
// two alternating buffers, and any number of readers observe the
// result of the writer's last Refresh without ever taking a lock or
// coordinating with one another.
//
// A single insert, update, remove, or clear call also performs a
// refresh. The change is visible to new reads as soon as the call
// returns. Reads in flight when a refresh starts still see whichever
// buffer they pinned; the writer never reclaims a buffer while a
// reader might still be looking at it.
//
// Values are duplicated across the two buffers as the protocol
// alternates which one is "live." Most value types need nothing
// special for this: a plain Go copy is already a valid duplicate.
// A type that owns an external resource should implement
// ShallowCopier and Dropper so the protocol can duplicate it correctly
// and destroy it exactly once.
package epochmap

import "errors"

// ErrDestroyed is the panic value used when a Writer operation is
// attempted after Close has torn the map down. A destroyed writer has
// no back buffer left to mutate. This is a programmer error, not a
// recoverable condition.
var ErrDestroyed = errors.New("epochmap: writer is destroyed")
