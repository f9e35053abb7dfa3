// Package topk provides the size-capped ranked collection shared by workers
// (over their assigned documents) and the coordinator (over every worker's
// streamed candidates).
package topk

import (
	"container/heap"
)

// DefaultCapacity is the number of results kept per query.
const DefaultCapacity = 5

// Candidate is a scored document.
type Candidate struct {
	DocID string  `json:"doc_id"`
	Score float64 `json:"score"`
}

// Selector retains the highest-scoring candidates seen so far. It is not
// safe for concurrent use.
type Selector struct {
	h        candidateHeap
	capacity int
}

// New returns a Selector holding at most capacity candidates. A capacity
// below one falls back to DefaultCapacity.
func New(capacity int) *Selector {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Selector{
		h:        make(candidateHeap, 0, capacity+1),
		capacity: capacity,
	}
}

// Insert adds c and evicts the lowest-ranked member if the selector is over
// capacity.
func (s *Selector) Insert(c Candidate) {
	heap.Push(&s.h, c)
	if s.h.Len() > s.capacity {
		heap.Pop(&s.h)
	}
}

// DrainDescending empties the selector and returns its members ordered by
// score descending, ties by DocID ascending.
func (s *Selector) DrainDescending() []Candidate {
	result := make([]Candidate, s.h.Len())
	for i := len(result) - 1; i >= 0; i-- {
		result[i] = heap.Pop(&s.h).(Candidate)
	}
	return result
}

func (s *Selector) Len() int { return s.h.Len() }

func (s *Selector) Cap() int { return s.capacity }

// candidateHeap is a min-heap on rank: the root is the candidate evicted
// first.
type candidateHeap []Candidate

func (h candidateHeap) Len() int { return len(h) }

func (h candidateHeap) Less(i, j int) bool {
	if h[i].Score != h[j].Score {
		return h[i].Score < h[j].Score
	}
	return h[i].DocID > h[j].DocID
}

func (h candidateHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *candidateHeap) Push(x interface{}) {
	*h = append(*h, x.(Candidate))
}

func (h *candidateHeap) Pop() interface{} {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}
