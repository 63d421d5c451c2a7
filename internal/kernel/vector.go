//go:build !purego

package kernel

import "github.com/cwbudde/algo-vecmath"

// vectorOps dispatches float64 rows to algo-vecmath, which picks its own
// SSE2/AVX2/NEON path internally.
func vectorOps() Ops[float64] {
	return Ops[float64]{
		Name:   Vector,
		Sum:    vecmath.Sum,
		Dot:    vecmath.DotProduct,
		Add:    vecmath.AddBlock,
		Scale:  vecmath.ScaleBlock,
		MulAdd: vecmath.MulAddBlock,
	}
}
