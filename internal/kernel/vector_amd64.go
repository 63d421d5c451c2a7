//go:build amd64 && !purego

package kernel

import "github.com/cwbudde/algo-tfprep/internal/cpu"

func init() {
	Global.Register(Entry{
		Name:      Vector,
		SIMDLevel: cpu.SIMDSSE2,
		Priority:  10,
		Ops:       vectorOps(),
	})
}
