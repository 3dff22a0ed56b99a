// pkg/epochmap/value.go
package epochmap

// ShallowCopier lets a value type control how it is duplicated when the
// writer installs a second, independent inhabitant of the same logical
// value into the buffer it doesn't currently own. Types that hold a
// plain Go value (no external resource, no reference count to bump)
// don't need to implement this: a bare Go value copy is already a
// legal shallow copy, and is used as the fallback.
//
// Implementations must produce a second inhabitant with identical
// observable state; the two inhabitants may coexist, but at most one
// of them may ever have Drop called on it.
type ShallowCopier[V any] interface {
	ShallowCopy() V
}

// Dropper is the optional destructor hook for values that own an
// external resource (a file handle, a reference-counted buffer, ...).
// Go has no destructors, so nothing calls Drop implicitly. The writer
// calls it explicitly, and exactly once, at the point in the refresh
// protocol where a value is proven to have left the map for good (see
// writer.go's runOperation and Writer.Close).
type Dropper interface {
	Drop()
}

func shallowCopy[V any](v V) V {
	if sc, ok := any(v).(ShallowCopier[V]); ok {
		return sc.ShallowCopy()
	}
	return v
}

func dropValue[V any](v V) {
	if d, ok := any(v).(Dropper); ok {
		d.Drop()
	}
}
