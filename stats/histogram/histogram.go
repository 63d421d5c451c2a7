// Package histogram accumulates per-channel histograms of 8-bit data.
package histogram

import (
	"math"

	"github.com/cwbudde/algo-tfprep/tf/buffer"
	"github.com/cwbudde/algo-tfprep/tf/core"
)

// Bins is the number of histogram bins, one per 8-bit level.
const Bins = 256

// Stat2 counts, for every physical channel, how often each 8-bit level
// occurs. Polarisation products of a channel share one histogram.
type Stat2 struct {
	Frequencies []float64

	// Hist is frequency-major: Hist[j*Bins+v] counts level v in channel j.
	Hist []int64

	// Counter is the number of time samples accumulated.
	Counter int64

	cfg core.StageConfig
}

// New returns an empty histogram accumulator.
func New(opts ...core.Option) *Stat2 {
	return &Stat2{cfg: core.ApplyOptions(opts...)}
}

// Prepare sizes the histograms for src.
func (s *Stat2) Prepare(src *buffer.Buffer[uint8]) error {
	s.Frequencies = append([]float64(nil), src.Frequencies...)
	nreal := src.NRealChans()
	s.Hist = make([]int64, nreal*Bins)
	s.Counter = 0
	return nil
}

// NChans returns the number of histograms.
func (s *Stat2) NChans() int {
	return len(s.Hist) / Bins
}

// Channel returns the histogram of physical channel j.
func (s *Stat2) Channel(j int) []int64 {
	return s.Hist[j*Bins : (j+1)*Bins]
}

// Reset clears all counts.
func (s *Stat2) Reset() {
	clear(s.Hist)
	s.Counter = 0
}

// Run adds src to the histograms.
func (s *Stat2) Run(src *buffer.Buffer[uint8]) buffer.Result[uint8] {
	nreal := s.NChans()
	if nreal == 0 {
		return buffer.Alias(src)
	}
	s.cfg.Pool.For(nreal, func(lo, hi int) {
		for i := 0; i < src.NSamples; i++ {
			row := src.Row(i)
			for j := lo; j < hi; j++ {
				for c := j; c < len(row); c += nreal {
					s.Hist[j*Bins+int(row[c])]++
				}
			}
		}
	})
	s.Counter += int64(src.NSamples)
	s.cfg.Recorder.Samples("stat2", src.NSamples)
	return buffer.Alias(src)
}

// ChannelSummary describes the level distribution of one channel.
type ChannelSummary struct {
	Frequency float64 `yaml:"frequency"`
	Mean      float64 `yaml:"mean"`
	Std       float64 `yaml:"std"`
	// Clipped counts samples at level 0 or 255.
	Clipped int64 `yaml:"clipped"`
}

// Summary returns mean, standard deviation and clip count per channel.
func (s *Stat2) Summary() []ChannelSummary {
	out := make([]ChannelSummary, s.NChans())
	for j := range out {
		h := s.Channel(j)
		var n, sum, sumsq float64
		for v, c := range h {
			x, w := float64(v), float64(c)
			n += w
			sum += w * x
			sumsq += w * x * x
		}
		cs := ChannelSummary{Clipped: h[0] + h[Bins-1]}
		if j < len(s.Frequencies) {
			cs.Frequency = s.Frequencies[j]
		}
		if n > 0 {
			cs.Mean = sum / n
			cs.Std = math.Sqrt(max(sumsq/n-cs.Mean*cs.Mean, 0))
		}
		out[j] = cs
	}
	return out
}
