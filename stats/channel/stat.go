// Package channel accumulates per-channel quality statistics over a stream
// and derives channel weights from them.
//
// For every channel the first four raw moments and the lag-1 product are
// accumulated. GetStat turns them into mean, standard deviation, skewness,
// excess kurtosis and lag-1 autocorrelation, then keeps a channel (weight 1)
// only when all five lie within the interquartile fences
// [Q1-k*IQR, Q3+k*IQR] of the channel population.
package channel

import (
	"math"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/cwbudde/algo-tfprep/container/heap"
	"github.com/cwbudde/algo-tfprep/log"
	"github.com/cwbudde/algo-tfprep/tf/buffer"
	"github.com/cwbudde/algo-tfprep/tf/core"
)

const stageName = "stat"

// DefaultZapThreshold is the default IQR fence multiplier.
const DefaultZapThreshold = 3.0

// degenerate is reported for the shape statistics of a constant channel.
const degenerate = math.MaxFloat32

// Stat accumulates channel statistics.
type Stat[F buffer.Float] struct {
	// ZapThreshold is the IQR fence multiplier k.
	ZapThreshold float64

	NChans      int
	Frequencies []float64

	// Counter is the number of time samples accumulated.
	Counter int64

	// Results of the last GetStat call.
	Mean     []float64
	Std      []float64
	Skewness []float64
	Kurtosis []float64
	Corr     []float64
	Weight   []float64

	m1, m2, m3, m4 []float64
	lag            []float64
	last           []float64

	cfg core.StageConfig
	log logrus.FieldLogger
}

// New returns a statistics accumulator.
func New[F buffer.Float](opts ...core.Option) *Stat[F] {
	cfg := core.ApplyOptions(opts...)
	return &Stat[F]{
		ZapThreshold: DefaultZapThreshold,
		cfg:          cfg,
		log:          log.Stage(cfg.Logger, stageName),
	}
}

// Prepare sizes the accumulators for src and resets them.
func (s *Stat[F]) Prepare(src *buffer.Buffer[F]) error {
	s.NChans = src.NChans
	s.Frequencies = append([]float64(nil), src.Frequencies...)
	s.Reset()
	return nil
}

// Reset clears the accumulators and results.
func (s *Stat[F]) Reset() {
	nc := s.NChans
	s.Counter = 0
	for _, p := range []*[]float64{
		&s.Mean, &s.Std, &s.Skewness, &s.Kurtosis, &s.Corr, &s.Weight,
		&s.m1, &s.m2, &s.m3, &s.m4, &s.lag, &s.last,
	} {
		*p = make([]float64, nc)
	}
}

// Run accumulates src. The data are not modified.
func (s *Stat[F]) Run(src *buffer.Buffer[F]) buffer.Result[F] {
	start := time.Now()
	if src.NChans != s.NChans {
		s.log.WithFields(logrus.Fields{"want": s.NChans, "got": src.NChans}).Error("channel count mismatch")
		return buffer.Alias(src)
	}

	s.cfg.Pool.For(src.NChans, func(lo, hi int) {
		for i := 0; i < src.NSamples; i++ {
			row := src.Row(i)
			for j := lo; j < hi; j++ {
				x := float64(row[j])
				x2 := x * x
				s.m1[j] += x
				s.m2[j] += x2
				s.m3[j] += x2 * x
				s.m4[j] += x2 * x2
				s.lag[j] += x * s.last[j]
				s.last[j] = x
			}
		}
	})
	s.Counter += int64(src.NSamples)

	s.cfg.Recorder.Samples(stageName, src.NSamples)
	s.cfg.Recorder.Observe(stageName, time.Since(start))
	return buffer.Alias(src)
}

// GetStat derives the statistics and weights from what was accumulated so
// far. Accumulation may continue afterwards.
func (s *Stat[F]) GetStat() {
	if s.Counter == 0 {
		s.log.Warn("no samples accumulated")
		return
	}
	n := float64(s.Counter)
	for j := 0; j < s.NChans; j++ {
		m1 := s.m1[j] / n
		m2 := s.m2[j] / n
		m3 := s.m3[j] / n
		m4 := s.m4[j] / n
		corr := 0.0
		if s.Counter > 1 {
			corr = s.lag[j] / (n - 1)
		}

		sq := m1 * m1
		v := m2 - sq
		s.Mean[j] = m1
		if v > 0 {
			skew := m3 - 3*m2*m1 + 2*sq*m1
			kurt := m4 - 4*m3*m1 + 6*m2*sq - 3*sq*sq
			s.Skewness[j] = skew / (v * math.Sqrt(v))
			s.Kurtosis[j] = kurt/(v*v) - 3
			s.Corr[j] = (corr - sq) / v
			s.Std[j] = math.Sqrt(v)
		} else {
			s.Std[j] = 1
			s.Skewness[j] = degenerate
			s.Kurtosis[j] = degenerate
			s.Corr[j] = degenerate
		}
	}
	s.weigh()
}

// fence returns the accepted interval of vals.
func (s *Stat[F]) fence(vals []float64) (float64, float64) {
	k := len(vals)/4 + 1
	q1 := heap.KthSmallest(vals, k)
	q3 := heap.KthLargest(vals, k)
	r := q3 - q1
	return q1 - s.ZapThreshold*r, q3 + s.ZapThreshold*r
}

func (s *Stat[F]) weigh() {
	type bounds struct{ lo, hi float64 }
	all := [][]float64{s.Mean, s.Std, s.Kurtosis, s.Skewness, s.Corr}
	fences := make([]bounds, len(all))
	for i, vals := range all {
		lo, hi := s.fence(vals)
		fences[i] = bounds{lo, hi}
	}

	for j := 0; j < s.NChans; j++ {
		s.Weight[j] = 1
		for i, vals := range all {
			if vals[j] < fences[i].lo || vals[j] > fences[i].hi {
				s.Weight[j] = 0
				break
			}
		}
	}

	// A rejected product rejects its physical channel.
	nreal := len(s.Frequencies)
	if nreal == 0 || s.NChans%nreal != 0 {
		return
	}
	nifs := s.NChans / nreal
	for j := 0; j < nreal; j++ {
		rejected := false
		for k := 0; k < nifs; k++ {
			if s.Weight[k*nreal+j] == 0 {
				rejected = true
				break
			}
		}
		if rejected {
			for k := 0; k < nifs; k++ {
				s.Weight[k*nreal+j] = 0
			}
		}
	}

	zapped := 0
	for _, w := range s.Weight {
		if w == 0 {
			zapped++
		}
	}
	s.log.WithFields(logrus.Fields{"zapped": zapped, "nchans": s.NChans}).Info("channel weights")
}

// Apply copies the weights into dst.
func (s *Stat[F]) Apply(dst *buffer.Buffer[F]) {
	copy(dst.Weights, s.Weight)
}
