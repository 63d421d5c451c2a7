package rfi

import (
	"time"

	"github.com/sirupsen/logrus"

	"github.com/cwbudde/algo-tfprep/tf/buffer"
)

// Kadane returns the maximum-sum contiguous run of series as the half-open
// interval [start, end) and its sum. When every element is negative the run
// is empty and the sum is 0.
func Kadane(series []float64) (start, end int, sum float64) {
	var cur float64
	curStart := 0
	for i, v := range series {
		cur += v
		if cur > sum {
			sum = cur
			start, end = curStart, i+1
		}
		if cur < 0 {
			cur = 0
			curStart = i + 1
		}
	}
	return start, end, sum
}

// excess turns a coarse grid into z^2 - 1, the power above the noise
// expectation.
func excess(g *grid) {
	for i, v := range g.v {
		g.v[i] = v*v - 1
	}
}

// KadaneF scans every coarse time sample along frequency and flags the
// strongest run when its excess power exceeds thre2 and its bandwidth is
// at most widthlimit MHz. Polarisation products are scanned separately.
func (r *RFI[F]) KadaneF(src *buffer.Buffer[F], thre2, widthlimit float64, td, fd int) buffer.Result[F] {
	if !divides(src, td, fd) {
		r.log.WithFields(logrus.Fields{"td": td, "fd": fd}).Warn("kadaneF: block not divisible, skipped")
		r.cfg.Recorder.Passthrough(stageName, "kadanef_not_divisible")
		return buffer.Alias(src)
	}
	start := time.Now()
	x, res := r.take(src)

	g := r.coarse(x, td, fd)
	excess(g)
	nfReal := x.NRealChans() / fd
	df := channelWidth(x) * float64(fd)

	flags := make([]bool, len(g.v))
	r.cfg.Pool.For(g.nt, func(lo, hi int) {
		for I := lo; I < hi; I++ {
			for k := 0; k < x.NIFs(); k++ {
				off := I*g.nf + k*nfReal
				s, e, sum := Kadane(g.v[off : off+nfReal])
				if e > s && sum > thre2 && float64(e-s)*df <= widthlimit {
					for J := s; J < e; J++ {
						flags[off+J] = true
					}
				}
			}
		}
	})

	r.record("kadaneF", r.fillCells(x, g, flags), start)
	return res
}

// KadaneT scans every coarse channel along time and flags the strongest
// run when its excess power exceeds thre2 and its duration is at most
// bandlimit seconds.
func (r *RFI[F]) KadaneT(src *buffer.Buffer[F], thre2, bandlimit float64, td, fd int) buffer.Result[F] {
	if !divides(src, td, fd) {
		r.log.WithFields(logrus.Fields{"td": td, "fd": fd}).Warn("kadaneT: block not divisible, skipped")
		r.cfg.Recorder.Passthrough(stageName, "kadanet_not_divisible")
		return buffer.Alias(src)
	}
	start := time.Now()
	x, res := r.take(src)

	g := r.coarse(x, td, fd)
	excess(g)
	dt := x.TSamp * float64(td)

	flags := make([]bool, len(g.v))
	r.cfg.Pool.For(g.nf, func(lo, hi int) {
		col := make([]float64, g.nt)
		for J := lo; J < hi; J++ {
			for I := range col {
				col[I] = g.at(I, J)
			}
			s, e, sum := Kadane(col)
			if e > s && sum > thre2 && float64(e-s)*dt <= bandlimit {
				for I := s; I < e; I++ {
					flags[I*g.nf+J] = true
				}
			}
		}
	})

	r.record("kadaneT", r.fillCells(x, g, flags), start)
	return res
}
