// Package baseline removes slow, broadband baseline drifts.
//
// Every channel is fitted against a reference series s(t) by ordinary least
// squares, x(t) ~ alpha*s(t) + beta, and the fit is subtracted. The reference
// is the running median of the channel-averaged power, or a slice of an
// externally supplied series when one is set.
package baseline

import (
	"fmt"
	"math"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/cwbudde/algo-tfprep/internal/kernel"
	"github.com/cwbudde/algo-tfprep/log"
	"github.com/cwbudde/algo-tfprep/stats/runmedian"
	"github.com/cwbudde/algo-tfprep/tf/buffer"
	"github.com/cwbudde/algo-tfprep/tf/core"
)

const stageName = "baseline"

// minWindow is the smallest running-median window, in samples, for which
// baseline removal is performed.
const minWindow = 3

// BaseLine subtracts a per-channel linear fit against a reference series.
type BaseLine[F buffer.Float] struct {
	buffer.Buffer[F]

	// Width is the running-median time scale in seconds.
	Width float64

	// OutRef, when set, supplies the reference series for the whole
	// stream. Each call uses OutRef[Counter : Counter+NSamples].
	OutRef []float64

	cfg core.StageConfig
	log logrus.FieldLogger
	ops kernel.Ops[F]

	szero []float64
	s     []float64
	xe    []float64
	xs    []float64
	alpha []F
	beta  []F
	pow   []float64
	norm  []float64
}

// New returns a baseline remover with a time scale of width seconds.
func New[F buffer.Float](width float64, opts ...core.Option) *BaseLine[F] {
	cfg := core.ApplyOptions(opts...)
	return &BaseLine[F]{
		Width: width,
		cfg:   cfg,
		log:   log.Stage(cfg.Logger, stageName),
	}
}

// Prepare sizes the stage for src and resolves the numeric kernel.
func (b *BaseLine[F]) Prepare(src *buffer.Buffer[F]) error {
	ops, err := kernel.For[F](b.cfg.Kernel)
	if err != nil {
		return fmt.Errorf("baseline: %w", err)
	}
	b.ops = ops
	b.Buffer.Prepare(src)
	b.alloc(src.NSamples, src.NChans)

	b.log.WithFields(logrus.Fields{
		"width":  b.Width,
		"window": b.window(),
	}).Info("prepare")
	return nil
}

func (b *BaseLine[F]) alloc(ns, nc int) {
	b.szero = make([]float64, ns)
	b.s = make([]float64, ns)
	b.pow = make([]float64, ns)
	b.norm = make([]float64, ns)
	b.xe = make([]float64, nc)
	b.xs = make([]float64, nc)
	b.alpha = make([]F, nc)
	b.beta = make([]F, nc)
	if b.ops.MulAdd == nil {
		b.ops = kernel.ScalarOps[F]()
	}
}

func (b *BaseLine[F]) window() int {
	if b.TSamp <= 0 {
		return 0
	}
	return int(math.Round(b.Width / b.TSamp))
}

// Identity reports whether the time scale is too short for a fit.
func (b *BaseLine[F]) Identity() bool {
	return b.TSamp <= 0 || b.Width/b.TSamp < minWindow
}

// reference fills b.s for the block starting at stream position at.
func (b *BaseLine[F]) reference(src *buffer.Buffer[F], at int64) {
	n := src.NSamples
	if b.OutRef != nil {
		if at >= 0 && at+int64(n) <= int64(len(b.OutRef)) {
			copy(b.s, b.OutRef[at:at+int64(n)])
			return
		}
		b.log.WithFields(logrus.Fields{
			"counter": at,
			"length":  len(b.OutRef),
		}).Warn("reference series too short, using running median")
	}
	b.channelMean(src, b.szero)
	runmedian.Filter(b.s, b.szero, b.window())
}

func (b *BaseLine[F]) channelMean(src *buffer.Buffer[F], dst []float64) {
	nc := float64(src.NChans)
	b.cfg.Pool.For(src.NSamples, func(lo, hi int) {
		for i := lo; i < hi; i++ {
			dst[i] = b.ops.Sum(src.Row(i)) / nc
		}
	})
}

// subtract fits every channel of x against b.s and removes the fit.
func (b *BaseLine[F]) subtract(x *buffer.Buffer[F]) {
	n := x.NSamples
	var se, ss float64
	for _, v := range b.s[:n] {
		se += v
		ss += v * v
	}

	b.cfg.Pool.For(x.NChans, func(lo, hi int) {
		for j := lo; j < hi; j++ {
			b.xe[j], b.xs[j] = 0, 0
		}
		for i := 0; i < n; i++ {
			row := x.Row(i)[lo:hi]
			si := b.s[i]
			xe, xs := b.xe[lo:hi], b.xs[lo:hi]
			for k, v := range row {
				xe[k] += float64(v)
				xs[k] += float64(v) * si
			}
		}

		tmp := se*se - ss*float64(n)
		for j := lo; j < hi; j++ {
			if tmp == 0 {
				b.alpha[j], b.beta[j] = 0, 0
				continue
			}
			b.alpha[j] = F(-(b.xe[j]*se - b.xs[j]*float64(n)) / tmp)
			b.beta[j] = F(-(b.xs[j]*se - b.xe[j]*ss) / tmp)
		}
	})

	// alpha and beta hold the negated coefficients.
	b.cfg.Pool.For(n, func(lo, hi int) {
		tmp := make([]F, x.NChans)
		for i := lo; i < hi; i++ {
			row := x.Row(i)
			b.ops.Scale(tmp, b.alpha, F(b.s[i]))
			b.ops.Add(tmp, tmp, b.beta)
			b.ops.Add(row, row, tmp)
		}
	})

	for j := range x.Means {
		x.Means[j] = 0
	}
}

// normalize divides every row by the running median of the row power.
func (b *BaseLine[F]) normalize(x *buffer.Buffer[F]) {
	n := x.NSamples
	nc := float64(x.NChans)
	b.cfg.Pool.For(n, func(lo, hi int) {
		for i := lo; i < hi; i++ {
			row := x.Row(i)
			b.pow[i] = b.ops.Dot(row, row) / nc
		}
	})
	runmedian.Filter(b.norm, b.pow[:n], b.window())

	b.cfg.Pool.For(n, func(lo, hi int) {
		for i := lo; i < hi; i++ {
			k := 0.0
			if b.norm[i] != 0 {
				k = 1 / b.norm[i]
			}
			row := x.Row(i)
			b.ops.Scale(row, row, F(k))
		}
	})

	for j := range x.Vars {
		x.Vars[j] = 1
	}
	x.MeanVarReady = false
	x.Equalized = false
}

func (b *BaseLine[F]) ensure(src *buffer.Buffer[F]) {
	if len(b.s) != src.NSamples || len(b.xe) != src.NChans {
		b.alloc(src.NSamples, src.NChans)
	}
}

// Filter removes the baseline from src in place.
func (b *BaseLine[F]) Filter(src *buffer.Buffer[F]) buffer.Result[F] {
	return b.filter(src, false)
}

// Filter2 removes the baseline from src in place and then normalises every
// row by the running median of the residual power.
func (b *BaseLine[F]) Filter2(src *buffer.Buffer[F]) buffer.Result[F] {
	return b.filter(src, true)
}

func (b *BaseLine[F]) filter(src *buffer.Buffer[F], normalize bool) buffer.Result[F] {
	if b.Identity() {
		b.cfg.Recorder.Passthrough(stageName, "short_width")
		return buffer.Alias(src)
	}
	start := time.Now()
	b.log.WithField("width", b.Width).Debug("removing baseline")

	b.ensure(src)
	b.reference(src, b.Counter)
	b.subtract(src)
	if normalize {
		b.normalize(src)
	}

	r := b.Buffer.Filter(src)
	b.cfg.Recorder.Samples(stageName, src.NSamples)
	b.cfg.Recorder.Observe(stageName, time.Since(start))
	return r
}

// Run copies src into the stage's own buffer and removes the baseline there.
func (b *BaseLine[F]) Run(src *buffer.Buffer[F]) buffer.Result[F] {
	if b.Identity() {
		b.cfg.Recorder.Passthrough(stageName, "short_width")
		return buffer.Alias(src)
	}
	start := time.Now()
	b.log.WithField("width", b.Width).Debug("removing baseline")

	at := b.Counter
	b.ensure(src)
	b.reference(src, at)
	r := b.Buffer.Run(src)
	b.subtract(&b.Buffer)

	b.cfg.Recorder.Samples(stageName, b.NSamples)
	b.cfg.Recorder.Observe(stageName, time.Since(start))
	return r
}
