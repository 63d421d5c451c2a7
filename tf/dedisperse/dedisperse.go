// Package dedisperse removes the frequency-dependent dispersion delay of a
// single trial DM from a stream of blocks.
//
// History is kept in a ring of NSamples+maxdelay rows. Each call appends
// the new block at the tail, reads every channel at its own delay and
// shifts the retained rows to the head. Output therefore lags the input by
// Offset() samples.
package dedisperse

import (
	"math"
	"slices"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/cwbudde/algo-tfprep/log"
	"github.com/cwbudde/algo-tfprep/tf/buffer"
	"github.com/cwbudde/algo-tfprep/tf/core"
)

const stageName = "dedisperse"

// DispersionConstant in MHz^2 pc^-1 cm^3 s, as 1/2.41e-4.
const DispersionConstant = 1 / 2.41e-4

// Delay returns the dispersion delay in seconds between frequencies fh and
// fl (MHz) for dispersion measure dm.
func Delay(dm, fh, fl float64) float64 {
	return DispersionConstant * dm * (1/(fl*fl) - 1/(fh*fh))
}

// Dedispersion aligns all channels to the highest frequency.
type Dedispersion[F buffer.Float] struct {
	buffer.Buffer[F]

	// DM is the dispersion measure in pc cm^-3.
	DM float64

	cfg core.StageConfig
	log logrus.FieldLogger

	ring    []F
	bufSize int
	delayn  []int
}

// New returns a dedisperser for dm.
func New[F buffer.Float](dm float64, opts ...core.Option) *Dedispersion[F] {
	cfg := core.ApplyOptions(opts...)
	return &Dedispersion[F]{
		DM:  dm,
		cfg: cfg,
		log: log.Stage(cfg.Logger, stageName),
	}
}

// Prepare computes the per-channel delays and allocates the ring.
func (d *Dedispersion[F]) Prepare(src *buffer.Buffer[F]) error {
	d.Buffer.Prepare(src)
	ns, nc := d.NSamples, d.NChans

	d.delayn = make([]int, nc)
	d.bufSize = ns
	if len(d.Frequencies) > 0 && d.TSamp > 0 && ns > 0 {
		fmax := slices.Max(d.Frequencies)
		fmin := slices.Min(d.Frequencies)
		maxdelay := int(math.Ceil(Delay(d.DM, fmax, fmin) / d.TSamp))
		maxdelay = (maxdelay + ns - 1) / ns * ns
		d.bufSize = ns + maxdelay

		nreal := d.NRealChans()
		for k := 0; k < d.NIFs(); k++ {
			for j := 0; j < nreal; j++ {
				d.delayn[k*nreal+j] = int(math.Round(Delay(d.DM, fmax, d.Frequencies[j]) / d.TSamp))
			}
		}
	}
	d.ring = make([]F, d.bufSize*nc)

	d.log.WithFields(logrus.Fields{
		"dm":     d.DM,
		"offset": d.Offset(),
	}).Info("prepare")
	return nil
}

// Offset returns the number of history samples retained between calls,
// which is the output latency in samples.
func (d *Dedispersion[F]) Offset() int {
	return d.bufSize - d.NSamples
}

// Delays returns the per-column delay in samples.
func (d *Dedispersion[F]) Delays() []int {
	return d.delayn
}

// Run appends src to the history and writes the dedispersed block into the
// stage's own buffer. A zero DM returns src untouched.
func (d *Dedispersion[F]) Run(src *buffer.Buffer[F]) buffer.Result[F] {
	if d.DM == 0 {
		return buffer.Alias(src)
	}
	start := time.Now()
	d.log.WithField("dm", d.DM).Debug("dedispersing")

	ns, nc := d.NSamples, d.NChans
	nspace := d.Offset()
	copy(d.ring[nspace*nc:], src.Samples[:ns*nc])
	d.CopyStats(src)

	if d.Closable || !d.IsOpen() {
		d.Open()
	}
	d.cfg.Pool.For(ns, func(lo, hi int) {
		for i := lo; i < hi; i++ {
			out := d.Row(i)
			for j := range out {
				out[j] = d.ring[(i+d.delayn[j])*nc+j]
			}
		}
	})

	copy(d.ring[:nspace*nc], d.ring[ns*nc:])

	r := d.Release(src)
	d.cfg.Recorder.Samples(stageName, ns)
	d.cfg.Recorder.Observe(stageName, time.Since(start))
	return r
}
