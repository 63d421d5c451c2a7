// Package metrics exports stage counters of the conditioning pipeline to
// Prometheus.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Pipeline holds the collectors for one pipeline instance. A nil *Pipeline
// is valid and records nothing.
type Pipeline struct {
	samples     *prometheus.CounterVec
	passthrough *prometheus.CounterVec
	flagged     *prometheus.CounterVec
	duration    *prometheus.HistogramVec
}

// New creates the collectors and registers them on reg.
func New(reg prometheus.Registerer) (*Pipeline, error) {
	m := &Pipeline{
		samples: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tfprep_stage_samples_total",
				Help: "Time samples processed by a stage",
			},
			[]string{"stage"},
		),
		passthrough: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tfprep_stage_passthrough_total",
				Help: "Chunks a stage forwarded unmodified",
			},
			[]string{"stage", "reason"},
		),
		flagged: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tfprep_rfi_flagged_cells_total",
				Help: "Time-channel cells replaced by an RFI operator",
			},
			[]string{"operator"},
		),
		duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "tfprep_stage_duration_seconds",
				Help:    "Wall time of one stage call",
				Buckets: prometheus.ExponentialBuckets(0.0001, 2, 14), // 100us to ~1.6s
			},
			[]string{"stage"},
		),
	}

	for _, c := range []prometheus.Collector{m.samples, m.passthrough, m.flagged, m.duration} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// Samples adds n processed time samples for stage.
func (m *Pipeline) Samples(stage string, n int) {
	if m == nil {
		return
	}
	m.samples.WithLabelValues(stage).Add(float64(n))
}

// Passthrough counts a chunk forwarded without processing.
func (m *Pipeline) Passthrough(stage, reason string) {
	if m == nil {
		return
	}
	m.passthrough.WithLabelValues(stage, reason).Inc()
}

// Flagged adds cells replaced by an RFI operator.
func (m *Pipeline) Flagged(operator string, cells int) {
	if m == nil || cells == 0 {
		return
	}
	m.flagged.WithLabelValues(operator).Add(float64(cells))
}

// Observe records the duration of one stage call.
func (m *Pipeline) Observe(stage string, d time.Duration) {
	if m == nil {
		return
	}
	m.duration.WithLabelValues(stage).Observe(d.Seconds())
}
