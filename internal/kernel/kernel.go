// Package kernel holds the row kernels the conditioning stages are built on.
//
// Every kernel exists as a scalar reference implementation for any float
// type. float64 rows can additionally use a vectorised implementation backed
// by algo-vecmath. The implementation is picked once, at configuration time,
// by name:
//
//	ops, err := kernel.For[float64](kernel.Auto)
//
// Auto selects the highest-priority entry of the Global registry supported by
// the running CPU; Scalar always selects the reference kernel.
package kernel

import (
	"errors"
	"fmt"

	"github.com/cwbudde/algo-tfprep/internal/cpu"
)

// Kernel names accepted by For.
const (
	Auto   = "auto"
	Scalar = "scalar"
	Vector = "vector"
)

var (
	// ErrUnknownKernel is returned for a kernel name For does not know.
	ErrUnknownKernel = errors.New("kernel: unknown kernel")

	// ErrUnavailable is returned when the requested kernel cannot run for
	// the element type or on this CPU.
	ErrUnavailable = errors.New("kernel: kernel unavailable")
)

// Float is the element type the kernels operate on.
type Float interface {
	~float32 | ~float64
}

// Ops is one implementation of the row kernels. All slices passed to a
// kernel must have equal length; implementations panic otherwise.
type Ops[F Float] struct {
	Name string

	// Sum returns sum(x[i]) accumulated in float64.
	Sum func(x []F) float64

	// Dot returns sum(a[i]*b[i]) accumulated in float64.
	Dot func(a, b []F) float64

	// Add computes dst[i] = a[i] + b[i].
	Add func(dst, a, b []F)

	// Scale computes dst[i] = src[i] * k.
	Scale func(dst, src []F, k F)

	// MulAdd computes dst[i] = a[i]*b[i] + c[i].
	MulAdd func(dst, a, b, c []F)
}

// For returns the kernel named name for element type F.
func For[F Float](name string) (Ops[F], error) {
	switch name {
	case Scalar:
		return ScalarOps[F](), nil
	case "", Auto:
		entry := Global.Lookup(cpu.DetectFeatures())
		if entry == nil {
			return ScalarOps[F](), nil
		}
		if ops, ok := any(entry.Ops).(Ops[F]); ok {
			return ops, nil
		}
		return ScalarOps[F](), nil
	case Vector:
		entry := Global.Find(Vector, cpu.DetectFeatures())
		if entry == nil {
			return Ops[F]{}, fmt.Errorf("%w: no vector kernel for this cpu", ErrUnavailable)
		}
		ops, ok := any(entry.Ops).(Ops[F])
		if !ok {
			var zero F
			return Ops[F]{}, fmt.Errorf("%w: vector kernel needs float64 rows, got %T", ErrUnavailable, zero)
		}
		return ops, nil
	default:
		return Ops[F]{}, fmt.Errorf("%w: %q", ErrUnknownKernel, name)
	}
}

// MustFor is For that panics on error. Used for the Auto and Scalar names,
// which never fail.
func MustFor[F Float](name string) Ops[F] {
	ops, err := For[F](name)
	if err != nil {
		panic(err)
	}
	return ops
}
