package heap

import "cmp"

// KthSmallest returns the k-th smallest value of vals (1-based) using a
// bounded max-heap. vals is not modified. k is clamped to [1, len(vals)].
func KthSmallest[T cmp.Ordered](vals []T, k int) T {
	return kth(vals, k, NewMax[T]())
}

// KthLargest returns the k-th largest value of vals (1-based).
func KthLargest[T cmp.Ordered](vals []T, k int) T {
	return kth(vals, k, NewMin[T]())
}

func kth[T cmp.Ordered](vals []T, k int, h *BinaryHeap[T]) T {
	if len(vals) == 0 {
		var zero T
		return zero
	}
	k = max(1, min(k, len(vals)))
	h.Build(vals[:k])
	for _, v := range vals[k:] {
		top, _ := h.Peek()
		if h.compare(v, top) {
			continue
		}
		h.data[0] = v
		h.down(0)
	}
	top, _ := h.Peek()
	return top
}
