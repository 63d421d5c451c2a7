package core

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/cwbudde/algo-tfprep/internal/kernel"
	"github.com/cwbudde/algo-tfprep/internal/parallel"
	"github.com/cwbudde/algo-tfprep/log"
)

type countingRecorder struct{ samples int }

func (r *countingRecorder) Samples(_ string, n int)     { r.samples += n }
func (*countingRecorder) Passthrough(string, string)    {}
func (*countingRecorder) Flagged(string, int)           {}
func (*countingRecorder) Observe(string, time.Duration) {}

func TestApplyOptions(t *testing.T) {
	logger := log.Discard()
	pool := parallel.New(3)
	rec := &countingRecorder{}

	cfg := ApplyOptions(
		WithLogger(logger),
		WithPool(pool),
		WithKernel(kernel.Scalar),
		WithRecorder(rec),
		WithSeed(42),
	)
	assert.Same(t, logger, cfg.Logger)
	assert.Same(t, pool, cfg.Pool)
	assert.Equal(t, kernel.Scalar, cfg.Kernel)
	assert.Equal(t, uint64(42), cfg.Seed)

	cfg.Recorder.Samples("x", 5)
	assert.Equal(t, 5, rec.samples)
}

func TestZeroOptionsIgnored(t *testing.T) {
	def := DefaultStageConfig()
	cfg := ApplyOptions(WithLogger(nil), WithPool(nil), WithKernel(""), WithRecorder(nil), nil)

	assert.Equal(t, def.Kernel, cfg.Kernel)
	assert.Equal(t, def.Seed, cfg.Seed)
	assert.Equal(t, def.Pool.Workers(), cfg.Pool.Workers())
	assert.NotNil(t, cfg.Logger)
	assert.NotPanics(t, func() {
		cfg.Recorder.Samples("x", 1)
		cfg.Recorder.Observe("x", time.Millisecond)
	})
}
