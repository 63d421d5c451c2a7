package testutil

import (
	"math"
	"math/rand/v2"

	"github.com/cwbudde/algo-tfprep/tf/buffer"
)

// Noise generates unit-variance Gaussian noise with a fixed seed.
func Noise(n int, seed uint64) []float64 {
	out := make([]float64, n)
	rng := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	for i := range out {
		out[i] = rng.NormFloat64()
	}
	return out
}

// Sine generates amplitude*sin(2*pi*i/period).
func Sine(period, amplitude float64, n int) []float64 {
	out := make([]float64, n)
	step := 2 * math.Pi / period
	for i := range out {
		out[i] = amplitude * math.Sin(step*float64(i))
	}
	return out
}

// Const generates a constant-valued series.
func Const(value float64, n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = value
	}
	return out
}

// Frequencies returns nchans channel frequencies starting at fch1 with
// spacing foff (MHz).
func Frequencies(nchans int, fch1, foff float64) []float64 {
	out := make([]float64, nchans)
	for j := range out {
		out[j] = fch1 + float64(j)*foff
	}
	return out
}

// Spectrum returns a buffer of Gaussian noise with a descending frequency
// axis from 1500 MHz in 1 MHz steps and a 64 us sampling interval.
func Spectrum[F buffer.Float](nsamples, nchans int, seed uint64) *buffer.Buffer[F] {
	b := buffer.New[F](nsamples, nchans)
	for i, v := range Noise(nsamples*nchans, seed) {
		b.Samples[i] = F(v)
	}
	b.Frequencies = Frequencies(nchans, 1500, -1)
	b.TSamp = 64e-6
	return b
}
