// Package defaraday undoes Faraday rotation of linear polarisation.
//
// Input columns hold four products per physical channel, product k of
// channel j at column k*nreal+j: XX, YY, Re(XY), Im(XY). Output columns hold
// the Stokes parameters I, Q, U, V with Q and U derotated by the rotation
// measure.
package defaraday

import (
	"math"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/cwbudde/algo-tfprep/log"
	"github.com/cwbudde/algo-tfprep/tf/buffer"
	"github.com/cwbudde/algo-tfprep/tf/core"
)

const stageName = "defaraday"

// SpeedOfLight in m/s.
const SpeedOfLight = 299792458.0

// Defaraday converts coherence products to derotated Stokes parameters.
type Defaraday[F buffer.Float] struct {
	buffer.Buffer[F]

	// RM is the rotation measure in rad/m^2.
	RM float64

	cfg core.StageConfig
	log logrus.FieldLogger

	nreal  int
	nifs   int
	cos2   []float64
	sin2   []float64
	warned bool
}

// New returns a derotator for rotation measure rm.
func New[F buffer.Float](rm float64, opts ...core.Option) *Defaraday[F] {
	cfg := core.ApplyOptions(opts...)
	return &Defaraday[F]{
		RM:  rm,
		cfg: cfg,
		log: log.Stage(cfg.Logger, stageName),
	}
}

// Angle returns the rotation angle psi in radians at frequency f (MHz).
func Angle(rm, f float64) float64 {
	return rm / (f * f) * 1e-12 * SpeedOfLight * SpeedOfLight
}

// Prepare precomputes the rotation for every physical channel.
func (d *Defaraday[F]) Prepare(src *buffer.Buffer[F]) error {
	d.Buffer.Prepare(src)
	d.nreal = src.NRealChans()
	d.nifs = src.NIFs()

	d.cos2 = make([]float64, d.nreal)
	d.sin2 = make([]float64, d.nreal)
	for j := 0; j < d.nreal; j++ {
		psi := Angle(d.RM, d.Frequency(j))
		d.cos2[j] = math.Cos(-2 * psi)
		d.sin2[j] = math.Sin(-2 * psi)
	}

	d.log.WithFields(logrus.Fields{
		"rm":   d.RM,
		"nifs": d.nifs,
	}).Info("prepare")
	return nil
}

// Identity reports whether the stage cannot derotate its input.
func (d *Defaraday[F]) Identity() bool {
	return d.nifs != 4 || d.RM == 0
}

func (d *Defaraday[F]) skip() bool {
	if !d.Identity() {
		return false
	}
	if !d.warned {
		d.log.WithFields(logrus.Fields{"rm": d.RM, "nifs": d.nifs}).Warn("no RM correction")
		d.warned = true
	}
	d.cfg.Recorder.Passthrough(stageName, "no_rm")
	return true
}

func (d *Defaraday[F]) rotate(dst, src *buffer.Buffer[F]) {
	nreal := d.nreal
	d.cfg.Pool.For(src.NSamples, func(lo, hi int) {
		for i := lo; i < hi; i++ {
			in := src.Row(i)
			out := dst.Row(i)
			for j := 0; j < nreal; j++ {
				xx := float64(in[j])
				yy := float64(in[nreal+j])
				re := float64(in[2*nreal+j])
				im := float64(in[3*nreal+j])

				q := xx - yy
				u := 2 * re

				out[j] = F(xx + yy)
				out[nreal+j] = F(q*d.cos2[j] - u*d.sin2[j])
				out[2*nreal+j] = F(q*d.sin2[j] + u*d.cos2[j])
				out[3*nreal+j] = F(2 * im)
			}
		}
	})
}

// Filter derotates src in place.
func (d *Defaraday[F]) Filter(src *buffer.Buffer[F]) buffer.Result[F] {
	if d.skip() {
		return buffer.Alias(src)
	}
	start := time.Now()
	d.log.Debug("derotating")

	d.rotate(src, src)

	r := d.Buffer.Filter(src)
	d.cfg.Recorder.Samples(stageName, src.NSamples)
	d.cfg.Recorder.Observe(stageName, time.Since(start))
	return r
}

// Run writes the derotated block into the stage's own buffer.
func (d *Defaraday[F]) Run(src *buffer.Buffer[F]) buffer.Result[F] {
	if d.skip() {
		return buffer.Alias(src)
	}
	start := time.Now()
	d.log.Debug("derotating")

	if d.Closable || !d.IsOpen() {
		d.Open()
	}
	d.rotate(&d.Buffer, src)
	d.CopyStats(src)

	r := d.Release(src)
	d.cfg.Recorder.Samples(stageName, d.NSamples)
	d.cfg.Recorder.Observe(stageName, time.Since(start))
	return r
}
