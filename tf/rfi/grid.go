package rfi

import (
	"math"

	"github.com/cwbudde/algo-tfprep/tf/buffer"
)

// grid is a coarse view of a block: cell (I, J) is the normalised sum of
// td x fd fine cells, so pure noise gives unit variance.
type grid struct {
	nt, nf int
	td, fd int
	v      []float64
}

func (g *grid) at(i, j int) float64 {
	return g.v[i*g.nf+j]
}

// divides reports whether td and fd tile x, keeping polarisation products
// apart.
func divides[F buffer.Float](x *buffer.Buffer[F], td, fd int) bool {
	return td > 0 && fd > 0 &&
		x.NSamples%td == 0 && x.NChans%fd == 0 && x.NRealChans()%fd == 0
}

func (r *RFI[F]) coarse(x *buffer.Buffer[F], td, fd int) *grid {
	g := &grid{
		nt: x.NSamples / td,
		nf: x.NChans / fd,
		td: td,
		fd: fd,
	}
	g.v = make([]float64, g.nt*g.nf)

	mean := make([]float64, x.NChans)
	inv := make([]float64, x.NChans)
	for j := range mean {
		m, s := stats(x, j)
		mean[j], inv[j] = m, 1/s
	}
	norm := 1 / math.Sqrt(float64(td*fd))

	r.cfg.Pool.For(g.nt, func(lo, hi int) {
		for I := lo; I < hi; I++ {
			out := g.v[I*g.nf : (I+1)*g.nf]
			for n := 0; n < td; n++ {
				row := x.Row(I*td + n)
				for J := range out {
					for k := J * fd; k < (J+1)*fd; k++ {
						out[J] += (float64(row[k]) - mean[k]) * inv[k]
					}
				}
			}
			for J := range out {
				out[J] *= norm
			}
		}
	})
	return g
}

// fillCells replaces the fine region of every flagged coarse cell.
func (r *RFI[F]) fillCells(x *buffer.Buffer[F], g *grid, flags []bool) int {
	n := 0
	for I := 0; I < g.nt; I++ {
		for J := 0; J < g.nf; J++ {
			if flags[I*g.nf+J] {
				n += r.fillRect(x, I*g.td, (I+1)*g.td, J*g.fd, (J+1)*g.fd)
			}
		}
	}
	return n
}

// channelWidth returns the mean spacing of the physical channels in MHz.
func channelWidth[F buffer.Float](x *buffer.Buffer[F]) float64 {
	nf := len(x.Frequencies)
	if nf < 2 {
		return 0
	}
	return math.Abs(x.Frequencies[nf-1]-x.Frequencies[0]) / float64(nf-1)
}
