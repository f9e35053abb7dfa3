// Package partition assigns documents to workers. The mapping is
//
//	worker_for(id) = xxh64(id, seed 0) mod (procs-1) + 1
//
// over the UTF-8 bytes of the identifier, so any process that knows the group
// size computes the same owner for a document, independent of the query.
package partition

import (
	"fmt"

	"github.com/cespare/xxhash/v2"
)

// CoordinatorRank is the ordinal of the process that owns the query loop.
const CoordinatorRank = 0

// WorkerFor returns the worker ordinal in [1, procs-1] responsible for docID.
// It panics when procs < 2; configuration validation rejects such groups
// before any assignment happens.
func WorkerFor(docID string, procs int) int {
	if procs < 2 {
		panic(fmt.Sprintf("partition: group of %d processes has no workers", procs))
	}
	return int(xxhash.Sum64String(docID)%uint64(procs-1)) + 1
}

// Assigner binds WorkerFor to a fixed group size and keeps per-worker
// dispatch counts for one round.
type Assigner struct {
	procs  int
	counts []int
}

func NewAssigner(procs int) (*Assigner, error) {
	if procs < 2 {
		return nil, fmt.Errorf("partition: need at least 2 processes, got %d", procs)
	}
	return &Assigner{procs: procs, counts: make([]int, procs)}, nil
}

// Assign returns the owner of docID and records the dispatch.
func (a *Assigner) Assign(docID string) int {
	w := WorkerFor(docID, a.procs)
	a.counts[w]++
	return w
}

// Workers returns the worker ordinals in ascending order.
func (a *Assigner) Workers() []int {
	ws := make([]int, 0, a.procs-1)
	for r := 1; r < a.procs; r++ {
		ws = append(ws, r)
	}
	return ws
}

// Count returns how many documents were assigned to worker since the last Reset.
func (a *Assigner) Count(worker int) int {
	if worker < 1 || worker >= a.procs {
		return 0
	}
	return a.counts[worker]
}

func (a *Assigner) Reset() {
	for i := range a.counts {
		a.counts[i] = 0
	}
}
