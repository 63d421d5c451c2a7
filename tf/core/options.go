// Package core holds the settings every conditioning stage is built with.
package core

import (
	"time"

	"github.com/sirupsen/logrus"

	"github.com/cwbudde/algo-tfprep/internal/kernel"
	"github.com/cwbudde/algo-tfprep/internal/parallel"
	"github.com/cwbudde/algo-tfprep/log"
)

// Recorder receives per-stage measurements. *metrics.Pipeline implements it.
type Recorder interface {
	Samples(stage string, n int)
	Passthrough(stage, reason string)
	Flagged(operator string, cells int)
	Observe(stage string, d time.Duration)
}

type nopRecorder struct{}

func (nopRecorder) Samples(string, int)           {}
func (nopRecorder) Passthrough(string, string)    {}
func (nopRecorder) Flagged(string, int)           {}
func (nopRecorder) Observe(string, time.Duration) {}

// StageConfig defines the shared stage settings.
type StageConfig struct {
	Logger   logrus.FieldLogger
	Pool     *parallel.Pool
	Kernel   string
	Recorder Recorder

	// Seed drives random fills.
	Seed uint64
}

// Option mutates a StageConfig.
type Option func(*StageConfig)

// DefaultStageConfig returns serial execution, automatic kernel selection,
// a stderr logger and no metrics.
func DefaultStageConfig() StageConfig {
	return StageConfig{
		Logger:   log.GetLogger(),
		Pool:     parallel.Serial(),
		Kernel:   kernel.Auto,
		Recorder: nopRecorder{},
		Seed:     1,
	}
}

// WithLogger sets the logger.
func WithLogger(l logrus.FieldLogger) Option {
	return func(cfg *StageConfig) {
		if l != nil {
			cfg.Logger = l
		}
	}
}

// WithPool sets the worker pool used for parallel loops.
func WithPool(p *parallel.Pool) Option {
	return func(cfg *StageConfig) {
		if p != nil {
			cfg.Pool = p
		}
	}
}

// WithKernel selects the numeric kernel by name.
func WithKernel(name string) Option {
	return func(cfg *StageConfig) {
		if name != "" {
			cfg.Kernel = name
		}
	}
}

// WithRecorder sets the metrics sink.
func WithRecorder(r Recorder) Option {
	return func(cfg *StageConfig) {
		if r != nil {
			cfg.Recorder = r
		}
	}
}

// WithSeed sets the random seed.
func WithSeed(seed uint64) Option {
	return func(cfg *StageConfig) {
		cfg.Seed = seed
	}
}

// ApplyOptions applies zero or more options to the default config.
func ApplyOptions(opts ...Option) StageConfig {
	cfg := DefaultStageConfig()
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	return cfg
}
