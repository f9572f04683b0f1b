package queue

import (
	"container/heap"
	"sync"
)

type item[T any] struct {
	value    T
	priority int64
	seq      uint64
}

// itemHeap orders by priority, then by insertion.
type itemHeap[T any] []*item[T]

func (h itemHeap[T]) Len() int { return len(h) }

func (h itemHeap[T]) Less(i, j int) bool {
	if h[i].priority != h[j].priority {
		return h[i].priority < h[j].priority
	}
	return h[i].seq < h[j].seq
}

func (h itemHeap[T]) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *itemHeap[T]) Push(x any) { *h = append(*h, x.(*item[T])) }

func (h *itemHeap[T]) Pop() any {
	old := *h
	n := len(old)
	it := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return it
}

// Priority is a thread-safe min priority queue. Lower priorities come out
// first; equal priorities come out in the order they went in.
type Priority[T any] struct {
	mu   sync.Mutex
	heap itemHeap[T]
	seq  uint64
}

func NewPriority[T any]() *Priority[T] {
	return &Priority[T]{}
}

func (q *Priority[T]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.heap.Len()
}

func (q *Priority[T]) Push(value T, priority int64) {
	q.mu.Lock()
	defer q.mu.Unlock()
	heap.Push(&q.heap, &item[T]{value: value, priority: priority, seq: q.seq})
	q.seq++
}

// Pop returns false when the queue is empty.
func (q *Priority[T]) Pop() (T, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.heap.Len() == 0 {
		var zero T
		return zero, false
	}
	return heap.Pop(&q.heap).(*item[T]).value, true
}

// Drain pops everything in priority order.
func (q *Priority[T]) Drain() []T {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]T, 0, q.heap.Len())
	for q.heap.Len() > 0 {
		out = append(out, heap.Pop(&q.heap).(*item[T]).value)
	}
	return out
}
