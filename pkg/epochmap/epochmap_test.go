// pkg/epochmap/epochmap_test.go
package epochmap

import (
	"sync/atomic"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"evslotmap/pkg/slotmap"
)

func TestUninitializedReadsAbsent(t *testing.T) {
	r, w := New[string]()
	defer w.Close()

	if r.IsDestroyed() {
		t.Fatalf("fresh map reports destroyed")
	}
	if _, ok := r.Read(); ok {
		t.Fatalf("Read() before first refresh should report absent")
	}
	if r.Len() != 0 || !r.IsEmpty() {
		t.Fatalf("Len()/IsEmpty() before first refresh should be 0/true")
	}
}

func TestInsertVisibleAfterReturn(t *testing.T) {
	r, w := New[string]()
	defer w.Close()

	id := w.Insert("alice")

	g, ok := r.Get(id)
	require.True(t, ok, "value should be visible immediately after Insert returns")
	require.Equal(t, "alice", g.Value())
	g.Release()
}

func TestUpdateAndRemove(t *testing.T) {
	r, w := New[int]()
	defer w.Close()

	id := w.Insert(1)
	w.Update(id, 2)

	g, ok := r.Get(id)
	require.True(t, ok)
	require.Equal(t, 2, g.Value())
	g.Release()

	w.Remove(id)
	_, ok = r.Get(id)
	require.False(t, ok, "removed id should no longer resolve")
}

func TestRemoveOnUnknownIDPanics(t *testing.T) {
	_, w := New[int]()
	defer w.Close()

	id := w.Insert(1)
	w.Remove(id)

	require.Panics(t, func() {
		w.Remove(id)
	})
}

func TestSnapshotStableAcrossConcurrentWrite(t *testing.T) {
	r, w := New[int]()
	defer w.Close()

	a := w.Insert(1)
	_ = w.Insert(2)

	snap, ok := r.Read()
	require.True(t, ok)

	done := make(chan struct{})
	defer func() {
		snap.Release()
		<-done
	}()
	go func() {
		defer close(done)
		w.Insert(3)
		w.Remove(a)
	}()

	// The snapshot taken before the mutations must still see the
	// pre-mutation state: the writer does not mutate the buffer it
	// pinned until the snapshot is released, so Remove blocks until
	// then.
	require.Equal(t, 2, snap.Len())
	v, ok := snap.Get(a)
	require.True(t, ok)
	require.Equal(t, 1, v)
	snap.Release()
}

type dropCounter struct {
	n *int32
}

func (d dropCounter) Drop() {
	atomic.AddInt32(d.n, 1)
}

func TestDropRunsExactlyOnceOnRemove(t *testing.T) {
	var count int32
	_, w := New[dropCounter]()
	defer w.Close()

	id := w.Insert(dropCounter{n: &count})
	w.Remove(id)
	// One further refresh replays the remove's step-2 pass.
	w.Refresh()

	require.EqualValues(t, 1, atomic.LoadInt32(&count))
}

func TestDropRunsExactlyOnceOnClose(t *testing.T) {
	var counts [1000]int32
	_, w := New[dropCounter]()

	for i := range counts {
		w.Insert(dropCounter{n: &counts[i]})
	}
	w.Close()

	for i, c := range counts {
		if atomic.LoadInt32(&c) != 1 {
			t.Fatalf("value %d dropped %d times, want 1", i, c)
		}
	}
}

func TestCloseIsIdempotent(t *testing.T) {
	var count int32
	_, w := New[dropCounter]()
	w.Insert(dropCounter{n: &count})

	w.Close()
	w.Close()

	require.EqualValues(t, 1, atomic.LoadInt32(&count))
}

func TestOperationsAfterClosesPanic(t *testing.T) {
	_, w := New[int]()
	w.Close()

	require.Panics(t, func() {
		w.Insert(1)
	})
}

func TestIsDestroyedAfterClose(t *testing.T) {
	r, w := New[int]()
	w.Close()

	if !r.IsDestroyed() {
		t.Fatalf("reader should report destroyed after Writer.Close")
	}
	if _, ok := r.Read(); ok {
		t.Fatalf("Read() after Close should report absent")
	}
}

func TestIterateMatchesValueSet(t *testing.T) {
	r, w := New[int]()
	defer w.Close()

	want := map[int]bool{}
	for i := 0; i < 50; i++ {
		w.Insert(i)
		want[i] = true
	}

	snap, ok := r.Read()
	require.True(t, ok)
	defer snap.Release()

	got := map[int]bool{}
	snap.Iterate(func(_ slotmap.ID, v int) bool {
		got[v] = true
		return true
	})

	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("iterate mismatch (-want +got):\n%s", diff)
	}
}

func TestConcurrentReadersDuringWrites(t *testing.T) {
	r, w := New[int]()
	defer w.Close()

	ids := make([]slotmap.ID, 100)
	for i := range ids {
		ids[i] = w.Insert(i)
	}

	var g errgroup.Group
	for i := 0; i < 8; i++ {
		reader := r.Clone()
		g.Go(func() error {
			defer reader.Close()
			for j := 0; j < 200; j++ {
				snap, ok := reader.Read()
				if !ok {
					continue
				}
				n := snap.Len()
				snap.Release()
				if n < 0 {
					t.Errorf("impossible negative length %d", n)
				}
			}
			return nil
		})
	}

	done := make(chan struct{})
	go func() {
		for i := 0; i < 100; i++ {
			w.Update(ids[i%len(ids)], i*2)
		}
		close(done)
	}()

	require.NoError(t, g.Wait())
	<-done
}

func TestKeyMarshalBinaryRoundTrip(t *testing.T) {
	r, w := New[string]()
	defer w.Close()

	id := w.Insert("payload")
	want := NewKey(uuid.New(), id)

	data, err := want.MarshalBinary()
	require.NoError(t, err)

	var got Key[uuid.UUID]
	require.NoError(t, got.UnmarshalBinary(data))

	require.Equal(t, want.Aux, got.Aux)
	require.Equal(t, want.ID(), got.ID())

	g, ok := r.Get(got.ID())
	require.True(t, ok, "unmarshaled key should resolve against the live map")
	require.Equal(t, "payload", g.Value())
	g.Release()
}

func TestKeyMarshalBinaryRejectsNonEncodableAux(t *testing.T) {
	_, w := New[int]()
	defer w.Close()

	id := w.Insert(1)
	k := NewKey(42, id)

	_, err := k.MarshalBinary()
	require.ErrorIs(t, err, ErrAuxNotEncodable)
}

func TestNewWithDataPreservesIDs(t *testing.T) {
	sm := slotmap.New[string](slotmap.Config{})
	a := sm.Insert("a")
	b := sm.Insert("b")

	r, w := NewWithData[string](sm)
	defer w.Close()

	g, ok := r.Get(a)
	require.True(t, ok)
	require.Equal(t, "a", g.Value())
	g.Release()

	g, ok = r.Get(b)
	require.True(t, ok)
	require.Equal(t, "b", g.Value())
	g.Release()

	w.Update(a, "a2")
	g, ok = r.Get(a)
	require.True(t, ok)
	require.Equal(t, "a2", g.Value())
	g.Release()
}
