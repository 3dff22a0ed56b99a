// cmd/epochdemo/main.go
//
// epochdemo - exercises a lock-free single-writer/multi-reader slot
// map end to end: one writer goroutine inserts and updates records
// while a pool of reader goroutines read concurrently, never blocking
// on the writer or on each other.
//
// Usage:
//
//	epochdemo [workers] [operations]
//
// workers defaults to 4 readers; operations defaults to 2000 writer
// operations.
package main

import (
	"fmt"
	"os"
	"strconv"

	"github.com/google/uuid"
	uatomic "go.uber.org/atomic"
	"golang.org/x/sync/errgroup"

	"evslotmap/pkg/epochmap"
)

type record struct {
	Label   string
	Version int
}

func main() {
	workers := 4
	operations := 2000

	if len(os.Args) > 1 {
		n, err := strconv.Atoi(os.Args[1])
		if err != nil {
			fmt.Fprintf(os.Stderr, "epochdemo: invalid worker count %q: %v\n", os.Args[1], err)
			os.Exit(1)
		}
		workers = n
	}
	if len(os.Args) > 2 {
		n, err := strconv.Atoi(os.Args[2])
		if err != nil {
			fmt.Fprintf(os.Stderr, "epochdemo: invalid operation count %q: %v\n", os.Args[2], err)
			os.Exit(1)
		}
		operations = n
	}

	reader, writer := epochmap.New[record]()
	defer writer.Close()

	keys := make([]epochmap.Key[uuid.UUID], 0, operations/4+1)

	var readG errgroup.Group
	stop := make(chan struct{})
	var totalReads uatomic.Int64

	for i := 0; i < workers; i++ {
		r := reader.Clone()
		readG.Go(func() error {
			defer r.Close()
			var seen int64
			for {
				select {
				case <-stop:
					totalReads.Add(seen)
					return nil
				default:
				}
				snap, ok := r.Read()
				if !ok {
					continue
				}
				seen += int64(snap.Len())
				snap.Release()
			}
		})
	}

	for i := 0; i < operations; i++ {
		switch i % 4 {
		case 0, 1, 2:
			aux := uuid.New()
			id := writer.Insert(record{Label: fmt.Sprintf("event-%d", i), Version: 1})
			keys = append(keys, epochmap.NewKey(aux, id))
		case 3:
			if len(keys) == 0 {
				continue
			}
			wire, err := keys[i%len(keys)].MarshalBinary()
			if err != nil {
				fmt.Fprintf(os.Stderr, "epochdemo: marshal key: %v\n", err)
				os.Exit(1)
			}
			var k epochmap.Key[uuid.UUID]
			if err := k.UnmarshalBinary(wire); err != nil {
				fmt.Fprintf(os.Stderr, "epochdemo: unmarshal key: %v\n", err)
				os.Exit(1)
			}
			if g, ok := reader.Get(k.ID()); ok {
				rec := g.Value()
				g.Release()
				rec.Version++
				writer.Update(k.ID(), rec)
			}
		}
	}

	close(stop)
	if err := readG.Wait(); err != nil {
		fmt.Fprintf(os.Stderr, "epochdemo: reader error: %v\n", err)
		os.Exit(1)
	}

	snap, ok := reader.Read()
	finalLen := 0
	if ok {
		finalLen = snap.Len()
		snap.Release()
	}

	fmt.Fprintf(os.Stdout, "workers=%d operations=%d final_len=%d reads_observed=%d\n",
		workers, operations, finalLen, totalReads.Load())
}
