// Package downsample integrates blocks of td time samples by fd channels.
package downsample

import (
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/cwbudde/algo-tfprep/log"
	"github.com/cwbudde/algo-tfprep/tf/buffer"
	"github.com/cwbudde/algo-tfprep/tf/core"
)

const stageName = "downsample"

// ErrNotDivisible is returned by Prepare when the input shape is not a
// multiple of the downsampling factors.
var ErrNotDivisible = errors.New("downsample: shape not divisible by factor")

// Downsample sums td x fd cells into one. It works on real and complex
// samples alike.
type Downsample[T buffer.Summable] struct {
	buffer.Buffer[T]

	TD int
	FD int

	cfg core.StageConfig
	log logrus.FieldLogger
}

// New returns a downsampler with factors td and fd. Factors below 1 are
// treated as 1.
func New[T buffer.Summable](td, fd int, opts ...core.Option) *Downsample[T] {
	cfg := core.ApplyOptions(opts...)
	return &Downsample[T]{
		TD:  max(td, 1),
		FD:  max(fd, 1),
		cfg: cfg,
		log: log.Stage(cfg.Logger, stageName),
	}
}

// Identity reports whether the stage passes data through untouched.
func (d *Downsample[T]) Identity() bool {
	return d.TD == 1 && d.FD == 1
}

// Prepare sizes the output for src.
func (d *Downsample[T]) Prepare(src *buffer.Buffer[T]) error {
	if src.NSamples%d.TD != 0 {
		return fmt.Errorf("%w: %d samples by td=%d", ErrNotDivisible, src.NSamples, d.TD)
	}
	if src.NChans%d.FD != 0 || src.NRealChans()%d.FD != 0 {
		return fmt.Errorf("%w: %d channels by fd=%d", ErrNotDivisible, src.NRealChans(), d.FD)
	}

	d.TSamp = src.TSamp * float64(d.TD)
	d.Equalized = src.Equalized && d.Identity()
	d.Resize(src.NSamples/d.TD, src.NChans/d.FD)

	d.Frequencies = make([]float64, len(src.Frequencies)/d.FD)
	for j := range d.Frequencies {
		var f float64
		for k := 0; k < d.FD; k++ {
			f += src.Frequencies[j*d.FD+k]
		}
		d.Frequencies[j] = f / float64(d.FD)
	}

	if !d.Identity() {
		d.log.WithFields(logrus.Fields{
			"nsamples": src.NSamples,
			"nchans":   src.NChans,
			"tsamp":    src.TSamp,
			"td":       d.TD,
			"fd":       d.FD,
		}).Info("prepare")
	}
	return nil
}

// Run writes the integrated block into the stage's own buffer. With both
// factors 1 the input is returned as is.
func (d *Downsample[T]) Run(src *buffer.Buffer[T]) buffer.Result[T] {
	if d.Identity() {
		return buffer.Alias(src)
	}
	start := time.Now()
	d.log.WithFields(logrus.Fields{"td": d.TD, "fd": d.FD}).Debug("downsampling")

	if d.Closable || !d.IsOpen() {
		d.Open()
	} else {
		d.Zero()
	}

	nc := d.NChans
	td, fd := d.TD, d.FD
	d.cfg.Pool.For(d.NSamples, func(lo, hi int) {
		for i := lo; i < hi; i++ {
			out := d.Row(i)
			for n := 0; n < td; n++ {
				in := src.Row(i*td + n)
				for j := 0; j < nc; j++ {
					var s T
					for _, v := range in[j*fd : (j+1)*fd] {
						s += v
					}
					out[j] += s
				}
			}
		}
	})

	for j := 0; j < nc; j++ {
		var w float64
		for k := 0; k < fd; k++ {
			w += src.Weights[j*fd+k]
		}
		d.Weights[j] = w / float64(fd)
		d.Means[j] = 0
		d.Vars[j] = 0
	}
	d.MeanVarReady = false
	d.Equalized = false

	r := d.Release(src)
	d.cfg.Recorder.Samples(stageName, d.NSamples)
	d.cfg.Recorder.Observe(stageName, time.Since(start))
	return r
}
