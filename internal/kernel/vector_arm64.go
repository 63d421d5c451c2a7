//go:build arm64 && !purego

package kernel

import "github.com/cwbudde/algo-tfprep/internal/cpu"

func init() {
	Global.Register(Entry{
		Name:      Vector,
		SIMDLevel: cpu.SIMDNEON,
		Priority:  15,
		Ops:       vectorOps(),
	})
}
