package rfi

import (
	"math"
	"slices"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/cwbudde/algo-tfprep/tf/buffer"
)

// madScale converts a median absolute deviation to a Gaussian sigma.
const madScale = 1.4826

// Mask downsamples by (td, fd), scores every coarse cell against the median
// and MAD of its coarse channel, and fills the fine region of cells whose
// score exceeds thre in magnitude.
func (r *RFI[F]) Mask(src *buffer.Buffer[F], thre float64, td, fd int) buffer.Result[F] {
	if !divides(src, td, fd) {
		r.log.WithFields(logrus.Fields{"td": td, "fd": fd}).Warn("mask: block not divisible, skipped")
		r.cfg.Recorder.Passthrough(stageName, "mask_not_divisible")
		return buffer.Alias(src)
	}
	start := time.Now()
	x, res := r.take(src)

	g := r.coarse(x, td, fd)
	flags := make([]bool, len(g.v))
	r.cfg.Pool.For(g.nf, func(lo, hi int) {
		col := make([]float64, g.nt)
		for J := lo; J < hi; J++ {
			for I := range col {
				col[I] = g.at(I, J)
			}
			med, sigma := robust(col)
			if sigma == 0 {
				continue
			}
			for I := 0; I < g.nt; I++ {
				if math.Abs(g.at(I, J)-med)/sigma > thre {
					flags[I*g.nf+J] = true
				}
			}
		}
	})

	r.record("mask", r.fillCells(x, g, flags), start)
	return res
}

// robust returns the median and the MAD-based sigma of v. v is reordered.
func robust(v []float64) (float64, float64) {
	if len(v) == 0 {
		return 0, 0
	}
	med := median(v)
	for i := range v {
		v[i] = math.Abs(v[i] - med)
	}
	return med, madScale * median(v)
}

func median(v []float64) float64 {
	slices.Sort(v)
	n := len(v)
	if n%2 == 1 {
		return v[n/2]
	}
	return 0.5 * (v[n/2-1] + v[n/2])
}
