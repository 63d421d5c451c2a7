package kernel

import "github.com/cwbudde/algo-tfprep/internal/cpu"

func init() {
	Global.Register(Entry{
		Name:      Scalar,
		SIMDLevel: cpu.SIMDNone,
		Priority:  0,
		Ops:       ScalarOps[float64](),
	})
}

// ScalarOps returns the reference kernel for F.
func ScalarOps[F Float]() Ops[F] {
	return Ops[F]{
		Name:   Scalar,
		Sum:    sum[F],
		Dot:    dot[F],
		Add:    add[F],
		Scale:  scale[F],
		MulAdd: mulAdd[F],
	}
}

func sum[F Float](x []F) float64 {
	var s float64
	for _, v := range x {
		s += float64(v)
	}
	return s
}

func dot[F Float](a, b []F) float64 {
	if len(a) != len(b) {
		panic("kernel: dot length mismatch")
	}
	var s float64
	for i := range a {
		s += float64(a[i]) * float64(b[i])
	}
	return s
}

func add[F Float](dst, a, b []F) {
	if len(dst) != len(a) || len(a) != len(b) {
		panic("kernel: add length mismatch")
	}
	for i := range dst {
		dst[i] = a[i] + b[i]
	}
}

func scale[F Float](dst, src []F, k F) {
	if len(dst) != len(src) {
		panic("kernel: scale length mismatch")
	}
	for i := range dst {
		dst[i] = src[i] * k
	}
}

func mulAdd[F Float](dst, a, b, c []F) {
	if len(dst) != len(a) || len(a) != len(b) || len(b) != len(c) {
		panic("kernel: muladd length mismatch")
	}
	for i := range dst {
		dst[i] = a[i]*b[i] + c[i]
	}
}
