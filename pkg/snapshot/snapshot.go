// Package snapshot implements the optional serialization boundary: a
// way to persist a map's current value set and reload it later,
// seeding a fresh epochmap.Writer via epochmap.NewWithData. The core
// protocol in pkg/epochmap has no concept of a wire format. This
// package supplies one concrete, optional implementation so the
// boundary is exercised rather than left as prose.
package snapshot

import (
	"bufio"
	"errors"
	"io"

	jsoniter "github.com/json-iterator/go"

	"evslotmap/pkg/epochmap"
	"evslotmap/pkg/slotmap"
)

// ErrTruncated is returned by Decode when the input ends in the
// middle of a record.
var ErrTruncated = errors.New("snapshot: truncated input")

var stream = jsoniter.ConfigCompatibleWithStandardLibrary

// record is the on-wire shape of one slot: its id (preserved exactly,
// so a reload doesn't renumber anything live readers or external keys
// might reference) and its value.
type record[V any] struct {
	Index      uint32 `json:"i"`
	Generation uint32 `json:"g"`
	Value      V      `json:"v"`
}

// Encode writes every value currently in snap as a newline-delimited
// JSON stream, one record per line. Iteration order is unspecified;
// Decode does not depend on it.
func Encode[V any](w io.Writer, snap *epochmap.Snapshot[V]) error {
	enc := stream.NewEncoder(w)
	var encErr error
	snap.Iterate(func(id slotmap.ID, v V) bool {
		rec := record[V]{Index: id.Index(), Generation: id.Generation(), Value: v}
		if err := enc.Encode(rec); err != nil {
			encErr = err
			return false
		}
		return true
	})
	return encErr
}

// Decode reads a record stream written by Encode and rebuilds a
// SlotMap with every id preserved, ready to pass to
// epochmap.NewWithData.
func Decode[V any](r io.Reader) (*slotmap.SlotMap[V], error) {
	sm := slotmap.New[V](slotmap.Config{})
	dec := stream.NewDecoder(bufio.NewReader(r))
	for dec.More() {
		var rec record[V]
		if err := dec.Decode(&rec); err != nil {
			if errors.Is(err, io.ErrUnexpectedEOF) {
				return nil, ErrTruncated
			}
			return nil, err
		}
		sm.InsertAt(slotmap.NewID(rec.Index, rec.Generation), rec.Value)
	}
	return sm, nil
}
