package sequence

import "container/heap"

type PriorityItem[T any] struct {
	Value    T
	Priority int
	seq      uint64
	index    int
}

// priorityQueue is a heap ordered by the ascending flag; equal priorities
// dequeue in insertion order.
type priorityQueue[T any] struct {
	items     []*PriorityItem[T]
	ascending bool
}

func (pq *priorityQueue[T]) Len() int {
	return len(pq.items)
}

func (pq *priorityQueue[T]) Less(i, j int) bool {
	a, b := pq.items[i], pq.items[j]
	if a.Priority == b.Priority {
		return a.seq < b.seq
	}
	if pq.ascending {
		return a.Priority < b.Priority
	}
	return a.Priority > b.Priority
}

func (pq *priorityQueue[T]) Swap(i, j int) {
	pq.items[i], pq.items[j] = pq.items[j], pq.items[i]
	pq.items[i].index = i
	pq.items[j].index = j
}

func (pq *priorityQueue[T]) Push(x any) {
	item := x.(*PriorityItem[T])
	item.index = len(pq.items)
	pq.items = append(pq.items, item)
}

func (pq *priorityQueue[T]) Pop() any {
	old := pq.items
	n := len(old)
	item := old[n-1]
	old[n-1] = nil  // avoid memory leak
	item.index = -1 // for safety
	pq.items = old[0 : n-1]
	return item
}

type PriorityQueue[T any] struct {
	pq   priorityQueue[T]
	next uint64
}

// NewMinPriorityQueue dequeues the lowest priority first.
func NewMinPriorityQueue[T any]() *PriorityQueue[T] {
	pq := &PriorityQueue[T]{pq: priorityQueue[T]{ascending: true}}
	heap.Init(&pq.pq)
	return pq
}

// NewMaxPriorityQueue dequeues the highest priority first.
func NewMaxPriorityQueue[T any]() *PriorityQueue[T] {
	pq := &PriorityQueue[T]{}
	heap.Init(&pq.pq)
	return pq
}

func (pq *PriorityQueue[T]) Enqueue(value T, priority int) *PriorityItem[T] {
	item := &PriorityItem[T]{
		Value:    value,
		Priority: priority,
		seq:      pq.next,
	}
	pq.next++
	heap.Push(&pq.pq, item)
	return item
}

func (pq *PriorityQueue[T]) Dequeue() (T, bool) {
	if pq.pq.Len() == 0 {
		var zero T
		return zero, false
	}
	item := heap.Pop(&pq.pq).(*PriorityItem[T])
	return item.Value, true
}

func (pq *PriorityQueue[T]) Peek() (T, bool) {
	if pq.pq.Len() == 0 {
		var zero T
		return zero, false
	}
	return pq.pq.items[0].Value, true
}

func (pq *PriorityQueue[T]) Len() int {
	return pq.pq.Len()
}
