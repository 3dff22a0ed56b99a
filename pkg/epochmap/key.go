// pkg/epochmap/key.go
package epochmap

import (
	"encoding"
	"errors"

	tenc "evslotmap/internal/encoding"
	"evslotmap/pkg/slotmap"
)

// ErrAuxNotEncodable is returned by Key.MarshalBinary/UnmarshalBinary
// when the aux type does not implement the standard binary codec
// interfaces.
var ErrAuxNotEncodable = errors.New("epochmap: aux type does not implement encoding.BinaryMarshaler/BinaryUnmarshaler")

// Key is the external, opaque key adapter: it pairs a caller's own
// auxiliary tag (a generation counter, a request id, anything
// comparable) with the internal slot id a map handed back for an
// insert. Callers that don't need an aux value can instantiate this
// with A = struct{}.
type Key[A comparable] struct {
	Aux A
	id  slotmap.ID
}

// NewKey builds a Key from an aux value and the slot id it is paired
// with.
func NewKey[A comparable](aux A, id slotmap.ID) Key[A] {
	return Key[A]{Aux: aux, id: id}
}

// ID returns the internal slot id, for passing to a Reader or Writer.
func (k Key[A]) ID() slotmap.ID { return k.id }

// MarshalBinary packs the slot index and generation as varints (the
// same base-128 format used for on-disk page numbers), followed by
// the aux value's own binary encoding. Aux must implement
// encoding.BinaryMarshaler.
func (k Key[A]) MarshalBinary() ([]byte, error) {
	bm, ok := any(k.Aux).(encoding.BinaryMarshaler)
	if !ok {
		return nil, ErrAuxNotEncodable
	}
	auxBytes, err := bm.MarshalBinary()
	if err != nil {
		return nil, err
	}

	var tmp [10]byte
	buf := make([]byte, 0, 20+len(auxBytes))
	n := tenc.PutVarint(tmp[:], uint64(k.id.Index()))
	buf = append(buf, tmp[:n]...)
	n = tenc.PutVarint(tmp[:], uint64(k.id.Generation()))
	buf = append(buf, tmp[:n]...)
	buf = append(buf, auxBytes...)
	return buf, nil
}

// UnmarshalBinary reverses MarshalBinary. Aux must implement
// encoding.BinaryUnmarshaler.
func (k *Key[A]) UnmarshalBinary(data []byte) error {
	bu, ok := any(&k.Aux).(encoding.BinaryUnmarshaler)
	if !ok {
		return ErrAuxNotEncodable
	}

	idx, n := tenc.GetVarint(data)
	data = data[n:]
	gen, n := tenc.GetVarint(data)
	data = data[n:]

	k.id = slotmap.NewID(uint32(idx), uint32(gen))
	return bu.UnmarshalBinary(data)
}
