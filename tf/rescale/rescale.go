// Package rescale applies a fixed per-channel affine scaling, typically
// derived from stream statistics.
package rescale

import (
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/cwbudde/algo-tfprep/log"
	"github.com/cwbudde/algo-tfprep/stats/channel"
	"github.com/cwbudde/algo-tfprep/tf/buffer"
	"github.com/cwbudde/algo-tfprep/tf/core"
)

const stageName = "rescale"

// ErrLength is returned by Set when the vectors do not match the channel
// count.
var ErrLength = errors.New("rescale: length mismatch")

// Rescale maps x to weight*(x-mean)/std per channel.
type Rescale[F buffer.Float] struct {
	buffer.Buffer[F]

	mean   []float64
	std    []float64
	weight []float64

	cfg core.StageConfig
	log logrus.FieldLogger
}

// New returns a rescaler without coefficients.
func New[F buffer.Float](opts ...core.Option) *Rescale[F] {
	cfg := core.ApplyOptions(opts...)
	return &Rescale[F]{
		cfg: cfg,
		log: log.Stage(cfg.Logger, stageName),
	}
}

// Prepare sizes the stage for src.
func (r *Rescale[F]) Prepare(src *buffer.Buffer[F]) error {
	r.Buffer.Prepare(src)
	return nil
}

// Set installs the coefficients. A zero std is treated as 1.
func (r *Rescale[F]) Set(mean, std, weight []float64) error {
	if len(mean) != r.NChans || len(std) != r.NChans || len(weight) != r.NChans {
		return fmt.Errorf("%w: want %d channels", ErrLength, r.NChans)
	}
	r.mean = append(r.mean[:0], mean...)
	r.std = append(r.std[:0], std...)
	for j, s := range r.std {
		if s == 0 {
			r.std[j] = 1
		}
	}
	r.weight = append(r.weight[:0], weight...)
	return nil
}

// SetFromStat installs the mean, std and weight computed by s.
func (r *Rescale[F]) SetFromStat(s *channel.Stat[F]) error {
	return r.Set(s.Mean, s.Std, s.Weight)
}

// Ready reports whether coefficients are installed.
func (r *Rescale[F]) Ready() bool {
	return len(r.weight) > 0
}

// Filter rescales src in place. Without coefficients src passes through.
func (r *Rescale[F]) Filter(src *buffer.Buffer[F]) buffer.Result[F] {
	if !r.Ready() || src.NChans != len(r.weight) {
		r.log.Warn("no rescale coefficients")
		r.cfg.Recorder.Passthrough(stageName, "unset")
		return buffer.Alias(src)
	}
	start := time.Now()

	scale := make([]float64, src.NChans)
	for j := range scale {
		scale[j] = r.weight[j] / r.std[j]
	}
	r.cfg.Pool.For(src.NSamples, func(lo, hi int) {
		for i := lo; i < hi; i++ {
			row := src.Row(i)
			for j, v := range row {
				row[j] = F(scale[j] * (float64(v) - r.mean[j]))
			}
		}
	})

	res := r.Buffer.Filter(src)
	r.cfg.Recorder.Samples(stageName, src.NSamples)
	r.cfg.Recorder.Observe(stageName, time.Since(start))
	return res
}
