// Package heap implements a binary heap ordered by a caller supplied
// predicate. Unlike container/heap it needs no interface boilerplate and
// supports removal by value.
package heap

import "cmp"

// Compare reports whether a may sit above b in the heap.
type Compare[T any] func(a, b T) bool

// GreaterEqual orders a max-heap.
func GreaterEqual[T cmp.Ordered](a, b T) bool { return a >= b }

// LessEqual orders a min-heap.
func LessEqual[T cmp.Ordered](a, b T) bool { return a <= b }

// BinaryHeap keeps the element preferred by its predicate at the top.
type BinaryHeap[T any] struct {
	data    []T
	compare Compare[T]
}

// New returns an empty heap ordered by compare.
func New[T any](compare Compare[T]) *BinaryHeap[T] {
	return &BinaryHeap[T]{compare: compare}
}

// NewMax returns an empty max-heap.
func NewMax[T cmp.Ordered]() *BinaryHeap[T] {
	return New(GreaterEqual[T])
}

// NewMin returns an empty min-heap.
func NewMin[T cmp.Ordered]() *BinaryHeap[T] {
	return New(LessEqual[T])
}

// Len returns the number of elements.
func (h *BinaryHeap[T]) Len() int {
	return len(h.data)
}

// Reset drops all elements and keeps the storage.
func (h *BinaryHeap[T]) Reset() {
	h.data = h.data[:0]
}

// Build replaces the content with vals in O(n).
func (h *BinaryHeap[T]) Build(vals []T) {
	h.data = append(h.data[:0], vals...)
	for i := len(h.data)/2 - 1; i >= 0; i-- {
		h.down(i)
	}
}

// Insert adds v.
func (h *BinaryHeap[T]) Insert(v T) {
	h.data = append(h.data, v)
	h.up(len(h.data) - 1)
}

// Peek returns the top element without removing it.
func (h *BinaryHeap[T]) Peek() (T, bool) {
	if len(h.data) == 0 {
		var zero T
		return zero, false
	}
	return h.data[0], true
}

// Pop removes and returns the top element.
func (h *BinaryHeap[T]) Pop() (T, bool) {
	if len(h.data) == 0 {
		var zero T
		return zero, false
	}
	top := h.data[0]
	h.removeAt(0)
	return top, true
}

// Remove deletes one element equal to v and reports whether one was found.
// It needs T to be comparable at run time; use RemoveFunc otherwise.
func (h *BinaryHeap[T]) Remove(v T) bool {
	return h.RemoveFunc(func(x T) bool { return any(x) == any(v) })
}

// RemoveFunc deletes the first element for which match returns true.
func (h *BinaryHeap[T]) RemoveFunc(match func(T) bool) bool {
	for i, x := range h.data {
		if match(x) {
			h.removeAt(i)
			return true
		}
	}
	return false
}

// Values returns the elements in heap order. The slice is shared.
func (h *BinaryHeap[T]) Values() []T {
	return h.data
}

func (h *BinaryHeap[T]) removeAt(i int) {
	last := len(h.data) - 1
	h.data[i] = h.data[last]
	var zero T
	h.data[last] = zero
	h.data = h.data[:last]
	if i < last {
		h.up(i)
		h.down(i)
	}
}

func (h *BinaryHeap[T]) up(i int) {
	for i > 0 {
		p := (i - 1) / 2
		if h.compare(h.data[p], h.data[i]) {
			return
		}
		h.data[p], h.data[i] = h.data[i], h.data[p]
		i = p
	}
}

func (h *BinaryHeap[T]) down(i int) {
	n := len(h.data)
	for {
		best := i
		l, r := 2*i+1, 2*i+2
		if l < n && !h.compare(h.data[best], h.data[l]) {
			best = l
		}
		if r < n && !h.compare(h.data[best], h.data[r]) {
			best = r
		}
		if best == i {
			return
		}
		h.data[i], h.data[best] = h.data[best], h.data[i]
		i = best
	}
}
