// Package cpu detects the SIMD features used to pick a numeric kernel for
// the conditioning stages.
//
// Detection runs once and is cached. Tests can pin the result with
// SetForcedFeatures and undo it with ResetDetection.
package cpu

import "sync"

// SIMDLevel is the instruction set a kernel implementation requires.
type SIMDLevel int

const (
	// SIMDNone marks the scalar reference kernel.
	SIMDNone SIMDLevel = iota

	// SIMDSSE2 is the x86-64 baseline.
	SIMDSSE2

	// SIMDAVX2 is x86-64 AVX2.
	SIMDAVX2

	// SIMDNEON is ARM Advanced SIMD.
	SIMDNEON
)

// String returns a human-readable name for the SIMD level.
func (s SIMDLevel) String() string {
	switch s {
	case SIMDNone:
		return "None"
	case SIMDSSE2:
		return "SSE2"
	case SIMDAVX2:
		return "AVX2"
	case SIMDNEON:
		return "NEON"
	default:
		return "Unknown"
	}
}

// Features describes the CPU capabilities relevant to kernel selection.
type Features struct {
	HasSSE2 bool
	HasAVX2 bool
	HasNEON bool

	// ForceScalar restricts selection to the scalar reference kernel.
	ForceScalar bool

	Architecture string
}

var (
	detected   Features
	detectOnce sync.Once
	detectMu   sync.Mutex

	forced   *Features
	forcedMu sync.RWMutex
)

// DetectFeatures returns the features of the running CPU, or the forced
// features when SetForcedFeatures was called.
func DetectFeatures() Features {
	forcedMu.RLock()
	f := forced
	forcedMu.RUnlock()

	if f != nil {
		return *f
	}

	detectMu.Lock()
	detectOnce.Do(func() {
		detected = detectFeaturesImpl()
	})
	features := detected
	detectMu.Unlock()

	return features
}

// SetForcedFeatures overrides detection. Intended for tests.
func SetForcedFeatures(f Features) {
	forcedMu.Lock()
	defer forcedMu.Unlock()
	pinned := f
	forced = &pinned
}

// ResetDetection clears forced features and the detection cache.
func ResetDetection() {
	forcedMu.Lock()
	forced = nil
	forcedMu.Unlock()

	detectMu.Lock()
	detectOnce = sync.Once{}
	detected = Features{}
	detectMu.Unlock()
}

// Supports reports whether features can run code built for level.
func Supports(features Features, level SIMDLevel) bool {
	if features.ForceScalar {
		return level == SIMDNone
	}

	switch level {
	case SIMDNone:
		return true
	case SIMDSSE2:
		return features.HasSSE2
	case SIMDAVX2:
		return features.HasAVX2
	case SIMDNEON:
		return features.HasNEON
	default:
		return false
	}
}
