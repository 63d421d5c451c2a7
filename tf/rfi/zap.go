package rfi

import (
	"time"

	"github.com/cwbudde/algo-tfprep/tf/buffer"
)

// Zap fills every channel whose frequency lies in one of ranges and sets
// its weight to 0. All polarisation products of a channel are zapped.
func (r *RFI[F]) Zap(src *buffer.Buffer[F], ranges []Range) buffer.Result[F] {
	start := time.Now()
	x, res := r.take(src)

	cols := make([]bool, x.NChans)
	hit := false
	for j := range cols {
		f := x.Frequency(j)
		for _, rg := range ranges {
			if rg.Contains(f) {
				cols[j] = true
				hit = true
				break
			}
		}
	}
	if hit {
		r.zapColumns(x, cols, "zap", start)
	}
	return res
}

// ZapChannels is Zap by physical channel index. Indices out of range are
// ignored.
func (r *RFI[F]) ZapChannels(src *buffer.Buffer[F], channels []int) buffer.Result[F] {
	start := time.Now()
	x, res := r.take(src)

	nreal := x.NRealChans()
	cols := make([]bool, x.NChans)
	hit := false
	for _, c := range channels {
		if c < 0 || c >= nreal {
			continue
		}
		for k := 0; k < x.NIFs(); k++ {
			cols[k*nreal+c] = true
		}
		hit = true
	}
	if hit {
		r.zapColumns(x, cols, "zap_channel", start)
	}
	return res
}

func (r *RFI[F]) zapColumns(x *buffer.Buffer[F], cols []bool, op string, start time.Time) {
	n := r.fillColumns(x, cols)
	for j, c := range cols {
		if c {
			x.Weights[j] = 0
		}
	}
	r.record(op, n, start)
}

// Zero blanks the whole block.
func (r *RFI[F]) Zero(src *buffer.Buffer[F]) buffer.Result[F] {
	start := time.Now()
	x, res := r.take(src)
	x.Zero()
	r.record("zero", x.Len(), start)
	return res
}

// ZeroDM subtracts the channel average from every time sample, removing
// signal that is not dispersed.
func (r *RFI[F]) ZeroDM(src *buffer.Buffer[F]) buffer.Result[F] {
	start := time.Now()
	x, res := r.take(src)

	nc := float64(x.NChans)
	r.cfg.Pool.For(x.NSamples, func(lo, hi int) {
		tmp := make([]F, x.NChans)
		for i := lo; i < hi; i++ {
			row := x.Row(i)
			m := F(-r.ops.Sum(row) / nc)
			for j := range tmp {
				tmp[j] = m
			}
			r.ops.Add(row, row, tmp)
		}
	})
	r.record("zerodm", 0, start)
	return res
}

// Zdot fits every channel against the channel-averaged series by least
// squares and subtracts the fit.
func (r *RFI[F]) Zdot(src *buffer.Buffer[F]) buffer.Result[F] {
	start := time.Now()
	x, res := r.take(src)

	ns, nc := x.NSamples, x.NChans
	s := make([]float64, ns)
	r.cfg.Pool.For(ns, func(lo, hi int) {
		for i := lo; i < hi; i++ {
			s[i] = r.ops.Sum(x.Row(i)) / float64(nc)
		}
	})

	var se, ss float64
	for _, v := range s {
		se += v
		ss += v * v
	}
	det := se*se - ss*float64(ns)

	alpha := make([]float64, nc)
	beta := make([]float64, nc)
	if det != 0 {
		r.cfg.Pool.For(nc, func(lo, hi int) {
			for j := lo; j < hi; j++ {
				var xe, xs float64
				for i := 0; i < ns; i++ {
					v := float64(x.At(i, j))
					xe += v
					xs += v * s[i]
				}
				alpha[j] = (xe*se - xs*float64(ns)) / det
				beta[j] = (xs*se - xe*ss) / det
			}
		})
	}

	r.cfg.Pool.For(ns, func(lo, hi int) {
		for i := lo; i < hi; i++ {
			row := x.Row(i)
			for j := range row {
				row[j] -= F(alpha[j]*s[i] + beta[j])
			}
		}
	})
	r.record("zdot", 0, start)
	return res
}
