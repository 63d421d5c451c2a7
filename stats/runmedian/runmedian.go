// Package runmedian computes medians over a sliding window with two heaps.
package runmedian

import "github.com/cwbudde/algo-tfprep/container/heap"

// Window keeps a multiset of values and answers median queries in O(1).
// Insert and Remove take O(log n) plus a linear search on removal.
type Window struct {
	lo *heap.BinaryHeap[float64] // max-heap, lower half
	hi *heap.BinaryHeap[float64] // min-heap, upper half
}

// NewWindow returns an empty window.
func NewWindow() *Window {
	return &Window{lo: heap.NewMax[float64](), hi: heap.NewMin[float64]()}
}

// Len returns the number of values held.
func (w *Window) Len() int {
	return w.lo.Len() + w.hi.Len()
}

// Reset empties the window.
func (w *Window) Reset() {
	w.lo.Reset()
	w.hi.Reset()
}

// Insert adds x.
func (w *Window) Insert(x float64) {
	if top, ok := w.lo.Peek(); !ok || x <= top {
		w.lo.Insert(x)
	} else {
		w.hi.Insert(x)
	}
	w.balance()
}

// Remove deletes one occurrence of x. It reports false when x is absent.
func (w *Window) Remove(x float64) bool {
	var ok bool
	if top, has := w.lo.Peek(); has && x <= top {
		ok = w.lo.Remove(x)
	} else {
		ok = w.hi.Remove(x)
	}
	w.balance()
	return ok
}

// Median returns the middle value, or the mean of the two middle values
// for an even count. An empty window yields 0.
func (w *Window) Median() float64 {
	a, ok := w.lo.Peek()
	if !ok {
		return 0
	}
	if w.lo.Len() > w.hi.Len() {
		return a
	}
	b, _ := w.hi.Peek()
	return 0.5 * (a + b)
}

// lo holds either as many values as hi or one more.
func (w *Window) balance() {
	for w.lo.Len() > w.hi.Len()+1 {
		v, _ := w.lo.Pop()
		w.hi.Insert(v)
	}
	for w.lo.Len() < w.hi.Len() {
		v, _ := w.hi.Pop()
		w.lo.Insert(v)
	}
}

// Filter writes into dst the median of src over a window of width samples
// centred on each index. The window is truncated at both ends. A width
// below 2 copies src. dst and src must have equal length and must not
// overlap.
func Filter(dst, src []float64, width int) {
	n := len(src)
	if width < 2 || n == 0 {
		copy(dst, src)
		return
	}

	half := width / 2
	w := NewWindow()
	a, b := 0, -1
	for i := 0; i < n; i++ {
		lo := max(0, i-half)
		hi := min(n-1, i-half+width-1)
		for b < hi {
			b++
			w.Insert(src[b])
		}
		for a < lo {
			w.Remove(src[a])
			a++
		}
		dst[i] = w.Median()
	}
}
