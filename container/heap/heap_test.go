package heap

import (
	"math/rand/v2"
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func drain[T any](h *BinaryHeap[T]) []T {
	var out []T
	for h.Len() > 0 {
		v, _ := h.Pop()
		out = append(out, v)
	}
	return out
}

func TestMaxHeapOrder(t *testing.T) {
	h := NewMax[float32]()
	for _, v := range []float32{3, 1, 4, 1, 5, 9, 2, 6} {
		h.Insert(v)
	}
	assert.Equal(t, []float32{9, 6, 5, 4, 3, 2, 1, 1}, drain(h))
}

func TestMinHeapBuild(t *testing.T) {
	h := NewMin[int]()
	h.Build([]int{5, 3, 8, 1, 9, 2})
	top, ok := h.Peek()
	require.True(t, ok)
	assert.Equal(t, 1, top)
	assert.Equal(t, []int{1, 2, 3, 5, 8, 9}, drain(h))
}

func TestEmpty(t *testing.T) {
	h := NewMin[float64]()
	_, ok := h.Peek()
	assert.False(t, ok)
	_, ok = h.Pop()
	assert.False(t, ok)
	assert.False(t, h.Remove(1))
}

func TestRemove(t *testing.T) {
	h := NewMax[int]()
	h.Build([]int{10, 7, 3, 7, 1, 12})
	require.True(t, h.Remove(7))
	require.True(t, h.Remove(12))
	require.False(t, h.Remove(42))
	assert.Equal(t, []int{10, 7, 3, 1}, drain(h))
}

func TestCustomPredicate(t *testing.T) {
	type item struct {
		name string
		prio int
	}
	h := New(func(a, b item) bool { return a.prio <= b.prio })
	h.Insert(item{"c", 3})
	h.Insert(item{"a", 1})
	h.Insert(item{"b", 2})
	require.True(t, h.RemoveFunc(func(x item) bool { return x.name == "b" }))
	v, _ := h.Pop()
	assert.Equal(t, "a", v.name)
}

func TestRandomAgainstSort(t *testing.T) {
	r := rand.New(rand.NewPCG(1, 2))
	vals := make([]float64, 500)
	for i := range vals {
		vals[i] = r.NormFloat64()
	}
	h := NewMin[float64]()
	for _, v := range vals {
		h.Insert(v)
	}
	for i := 0; i < 100; i++ {
		require.True(t, h.Remove(vals[i]))
	}
	want := slices.Clone(vals[100:])
	slices.Sort(want)
	assert.Equal(t, want, drain(h))
}

func TestKth(t *testing.T) {
	vals := []float64{7, 2, 9, 4, 1, 8, 3, 6, 5, 10}
	assert.Equal(t, 3.0, KthSmallest(vals, 3))
	assert.Equal(t, 8.0, KthLargest(vals, 3))
	assert.Equal(t, 1.0, KthSmallest(vals, 0))
	assert.Equal(t, 1.0, KthLargest(vals, 99))
	assert.Equal(t, []float64{7, 2, 9, 4, 1, 8, 3, 6, 5, 10}, vals)
	assert.Zero(t, KthSmallest([]float64(nil), 1))
}
