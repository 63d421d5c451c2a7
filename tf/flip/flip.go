// Package flip reverses the frequency axis so channels run in the opposite
// order. Polarisation products keep their order.
package flip

import (
	"slices"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/cwbudde/algo-tfprep/log"
	"github.com/cwbudde/algo-tfprep/tf/buffer"
	"github.com/cwbudde/algo-tfprep/tf/core"
)

const stageName = "flip"

// Flip reverses channel order.
type Flip[T buffer.Sample] struct {
	buffer.Buffer[T]

	cfg core.StageConfig
	log logrus.FieldLogger
}

// New returns a channel flipper.
func New[T buffer.Sample](opts ...core.Option) *Flip[T] {
	cfg := core.ApplyOptions(opts...)
	return &Flip[T]{
		cfg: cfg,
		log: log.Stage(cfg.Logger, stageName),
	}
}

// Prepare sizes the stage for src and stores the reversed frequency axis.
func (f *Flip[T]) Prepare(src *buffer.Buffer[T]) error {
	f.Buffer.Prepare(src)
	slices.Reverse(f.Frequencies)
	f.log.WithField("nchans", src.NChans).Debug("prepare")
	return nil
}

// reverse flips every product block of s, which holds NIFs blocks of
// nreal entries.
func reverse[E any](s []E, nreal int) {
	if nreal <= 0 {
		slices.Reverse(s)
		return
	}
	for k := 0; k+nreal <= len(s); k += nreal {
		slices.Reverse(s[k : k+nreal])
	}
}

func (f *Flip[T]) flipStats(b *buffer.Buffer[T]) {
	nreal := f.NRealChans()
	reverse(b.Means, nreal)
	reverse(b.Vars, nreal)
	reverse(b.Weights, nreal)
	b.Frequencies = append(b.Frequencies[:0], f.Frequencies...)
}

// Filter reverses src in place, including its statistics and frequency
// axis.
func (f *Flip[T]) Filter(src *buffer.Buffer[T]) buffer.Result[T] {
	start := time.Now()
	nreal := f.NRealChans()
	f.cfg.Pool.For(src.NSamples, func(lo, hi int) {
		for i := lo; i < hi; i++ {
			reverse(src.Row(i), nreal)
		}
	})
	f.flipStats(src)

	res := f.Buffer.Filter(src)
	f.cfg.Recorder.Samples(stageName, src.NSamples)
	f.cfg.Recorder.Observe(stageName, time.Since(start))
	return res
}

// Run writes the reversed block into the stage's own buffer.
func (f *Flip[T]) Run(src *buffer.Buffer[T]) buffer.Result[T] {
	start := time.Now()
	if f.Closable || !f.IsOpen() {
		f.Open()
	}
	nreal := f.NRealChans()
	f.cfg.Pool.For(src.NSamples, func(lo, hi int) {
		for i := lo; i < hi; i++ {
			out := f.Row(i)
			copy(out, src.Row(i))
			reverse(out, nreal)
		}
	})
	f.CopyStats(src)
	f.flipStats(&f.Buffer)

	res := f.Release(src)
	f.cfg.Recorder.Samples(stageName, src.NSamples)
	f.cfg.Recorder.Observe(stageName, time.Since(start))
	return res
}
