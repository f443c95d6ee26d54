package attack

import (
	"container/heap"
	"sync"
)

// heapItems implements container/heap.Interface ordered by (priority asc,
// sequence asc) — a stable tie-break on insertion order.
type heapItems []*Attack

func (h heapItems) Len() int { return len(h) }
func (h heapItems) Less(i, j int) bool {
	if h[i].Priority != h[j].Priority {
		return h[i].Priority < h[j].Priority
	}
	return h[i].Sequence < h[j].Sequence
}
func (h heapItems) Swap(i, j int) { h[i], h[j] = h[j], h[i] }
func (h *heapItems) Push(x interface{}) {
	*h = append(*h, x.(*Attack))
}
func (h *heapItems) Pop() interface{} {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}

// Queue is a thread-safe priority min-heap over Attacks.
type Queue struct {
	mu   sync.Mutex
	heap heapItems
	seq  uint64
}

// NewQueue constructs an empty Queue.
func NewQueue() *Queue {
	q := &Queue{}
	heap.Init(&q.heap)
	return q
}

// Push adds an attack, assigning it the next monotonic insertion sequence.
func (q *Queue) Push(a *Attack) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.seq++
	a.Sequence = q.seq
	heap.Push(&q.heap, a)
}

// Pop removes and returns the highest-priority attack, or nil if empty.
func (q *Queue) Pop() *Attack {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.heap.Len() == 0 {
		return nil
	}
	return heap.Pop(&q.heap).(*Attack)
}

// Size returns the number of pending attacks.
func (q *Queue) Size() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.heap.Len()
}

// Snapshot returns the pending attacks ordered by (priority, sequence)
// without mutating the queue.
func (q *Queue) Snapshot() []*Attack {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]*Attack, len(q.heap))
	copy(out, q.heap)
	// Sort a copy; heap order is only partially ordered internally.
	sortAttacks(out)
	return out
}

func sortAttacks(a []*Attack) {
	for i := 1; i < len(a); i++ {
		for j := i; j > 0; j-- {
			if less(a[j], a[j-1]) {
				a[j], a[j-1] = a[j-1], a[j]
			} else {
				break
			}
		}
	}
}

func less(a, b *Attack) bool {
	if a.Priority != b.Priority {
		return a.Priority < b.Priority
	}
	return a.Sequence < b.Sequence
}
