// Package equalize normalises every channel to zero mean and unit
// variance using the statistics carried by the buffer.
package equalize

import (
	"fmt"
	"math"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/cwbudde/algo-tfprep/internal/kernel"
	"github.com/cwbudde/algo-tfprep/log"
	"github.com/cwbudde/algo-tfprep/tf/buffer"
	"github.com/cwbudde/algo-tfprep/tf/core"
)

const stageName = "equalize"

// Equalize maps x to (x-mean)/std per channel.
type Equalize[F buffer.Float] struct {
	buffer.Buffer[F]

	cfg core.StageConfig
	log logrus.FieldLogger
	ops kernel.Ops[F]

	scale  []F
	offset []F
}

// New returns an equalizer.
func New[F buffer.Float](opts ...core.Option) *Equalize[F] {
	cfg := core.ApplyOptions(opts...)
	return &Equalize[F]{
		cfg: cfg,
		log: log.Stage(cfg.Logger, stageName),
	}
}

// Prepare sizes the stage for src and resolves the numeric kernel.
func (e *Equalize[F]) Prepare(src *buffer.Buffer[F]) error {
	ops, err := kernel.For[F](e.cfg.Kernel)
	if err != nil {
		return fmt.Errorf("equalize: %w", err)
	}
	e.ops = ops
	e.Buffer.Prepare(src)
	e.scale = make([]F, src.NChans)
	e.offset = make([]F, src.NChans)
	e.log.WithFields(logrus.Fields{
		"nsamples": src.NSamples,
		"nchans":   src.NChans,
		"kernel":   e.ops.Name,
	}).Debug("prepare")
	return nil
}

// ready reports whether src can be normalised, logging when it cannot.
func (e *Equalize[F]) ready(src *buffer.Buffer[F]) bool {
	if src.Equalized {
		e.cfg.Recorder.Passthrough(stageName, "equalized")
		return false
	}
	if !src.MeanVarReady {
		e.log.Error("mean and variance is not calculated")
		e.cfg.Recorder.Passthrough(stageName, "stats_not_ready")
		return false
	}
	if e.ops.MulAdd == nil {
		e.ops = kernel.ScalarOps[F]()
	}
	if len(e.scale) != src.NChans {
		e.scale = make([]F, src.NChans)
		e.offset = make([]F, src.NChans)
	}
	for j := 0; j < src.NChans; j++ {
		std := math.Sqrt(src.Vars[j])
		if std == 0 {
			std = 1
		}
		e.scale[j] = F(1 / std)
		e.offset[j] = F(-src.Means[j] / std)
	}
	return true
}

func (e *Equalize[F]) normalize(dst, src *buffer.Buffer[F]) {
	e.cfg.Pool.For(src.NSamples, func(lo, hi int) {
		for i := lo; i < hi; i++ {
			e.ops.MulAdd(dst.Row(i), src.Row(i), e.scale, e.offset)
		}
	})
}

func markEqualized[F buffer.Float](b *buffer.Buffer[F]) {
	b.Equalized = true
	for j := range b.Means {
		b.Means[j] = 0
		b.Vars[j] = 1
	}
}

// Filter normalises src in place.
func (e *Equalize[F]) Filter(src *buffer.Buffer[F]) buffer.Result[F] {
	if !e.ready(src) {
		return buffer.Alias(src)
	}
	start := time.Now()
	e.log.Debug("normalizing in place")

	e.normalize(src, src)
	markEqualized(src)

	r := e.Buffer.Filter(src)
	e.cfg.Recorder.Samples(stageName, src.NSamples)
	e.cfg.Recorder.Observe(stageName, time.Since(start))
	return r
}

// Run writes the normalised block into the stage's own buffer.
func (e *Equalize[F]) Run(src *buffer.Buffer[F]) buffer.Result[F] {
	if !e.ready(src) {
		return buffer.Alias(src)
	}
	start := time.Now()
	e.log.Debug("normalizing")

	if e.Closable || !e.IsOpen() {
		e.Open()
	}
	e.normalize(&e.Buffer, src)
	e.Weights = append(e.Weights[:0], src.Weights...)
	e.MeanVarReady = src.MeanVarReady
	markEqualized(&e.Buffer)

	r := e.Release(src)
	e.cfg.Recorder.Samples(stageName, src.NSamples)
	e.cfg.Recorder.Observe(stageName, time.Since(start))
	return r
}
