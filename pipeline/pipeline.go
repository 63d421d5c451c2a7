// Package pipeline chains the conditioning stages in their fixed order:
//
//	downsample -> [defaraday] -> equalize -> baseline -> rfi -> [dedisperse]
//
// Equalize and baseline work in place on the downsampled block. The first
// RFI operator moves the block into the RFI stage's buffer, the remaining
// ones work there. Dedispersion, when enabled, writes into its own buffer.
// With td = fd = 1 equalize and baseline modify the caller's block, so a
// block refilled for the next chunk must have its statistics cleared with
// buffer.Buffer.ClearStats (stream.RingReader.Read does this).
package pipeline

import (
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/cwbudde/algo-tfprep/internal/parallel"
	"github.com/cwbudde/algo-tfprep/log"
	"github.com/cwbudde/algo-tfprep/tf/baseline"
	"github.com/cwbudde/algo-tfprep/tf/buffer"
	"github.com/cwbudde/algo-tfprep/tf/core"
	"github.com/cwbudde/algo-tfprep/tf/dedisperse"
	"github.com/cwbudde/algo-tfprep/tf/defaraday"
	"github.com/cwbudde/algo-tfprep/tf/downsample"
	"github.com/cwbudde/algo-tfprep/tf/equalize"
	"github.com/cwbudde/algo-tfprep/tf/rfi"
)

const stageName = "pipeline"

// Pipeline holds one instance of every stage.
type Pipeline[F buffer.Float] struct {
	buffer.Buffer[F]

	cfg   Config
	stage core.StageConfig
	log   logrus.FieldLogger

	ops  []op
	zap  []rfi.Range
	pool *buffer.Pool[F]

	downsample *downsample.Downsample[F]
	defaraday  *defaraday.Defaraday[F]
	equalize   *equalize.Equalize[F]
	baseline   *baseline.BaseLine[F]
	rfi        *rfi.RFI[F]
	dedisperse *dedisperse.Dedispersion[F]
}

// New validates cfg and builds the stages. opts apply to every stage and
// take precedence over the worker, kernel and seed settings of cfg.
func New[F buffer.Float](cfg Config, opts ...core.Option) (*Pipeline[F], error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	ops, err := parseRFIList(cfg.RFIList)
	if err != nil {
		return nil, err
	}
	zap, err := parseZapList(cfg.ZapList)
	if err != nil {
		return nil, err
	}
	fill, err := rfi.ParseFillType(cfg.FillType)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConfig, err)
	}

	stageOpts := append([]core.Option{
		core.WithPool(parallel.New(cfg.Workers)),
		core.WithKernel(cfg.Kernel),
		core.WithSeed(cfg.Seed),
	}, opts...)
	sc := core.ApplyOptions(stageOpts...)

	return &Pipeline[F]{
		cfg:   cfg,
		stage: sc,
		log:   log.Stage(sc.Logger, stageName),
		ops:   ops,
		zap:   zap,

		downsample: downsample.New[F](cfg.TD, cfg.FD, stageOpts...),
		defaraday:  defaraday.New[F](cfg.RM, stageOpts...),
		equalize:   equalize.New[F](stageOpts...),
		baseline:   baseline.New[F](cfg.BSWidth, stageOpts...),
		rfi:        rfi.New[F](fill, stageOpts...),
		dedisperse: dedisperse.New[F](cfg.DM, stageOpts...),
	}, nil
}

// Config returns the configuration the pipeline was built with.
func (p *Pipeline[F]) Config() Config {
	return p.cfg
}

// Prepare sizes every stage for input blocks shaped like src.
func (p *Pipeline[F]) Prepare(src *buffer.Buffer[F]) error {
	if err := p.downsample.Prepare(src); err != nil {
		return err
	}
	if err := p.defaraday.Prepare(&p.downsample.Buffer); err != nil {
		return err
	}
	if err := p.equalize.Prepare(&p.downsample.Buffer); err != nil {
		return err
	}
	if err := p.baseline.Prepare(&p.equalize.Buffer); err != nil {
		return err
	}
	if err := p.rfi.Prepare(&p.baseline.Buffer); err != nil {
		return err
	}
	last := &p.rfi.Buffer
	if p.cfg.DM != 0 {
		if err := p.dedisperse.Prepare(&p.rfi.Buffer); err != nil {
			return err
		}
		last = &p.dedisperse.Buffer
	}
	p.Buffer.Prepare(last)

	if p.cfg.Mode == ModeMemory {
		p.pool = buffer.NewPool[F]()
		for _, b := range p.buffers() {
			b.SetPool(p.pool)
			b.Close()
			b.Closable = true
		}
	}

	p.log.WithFields(logrus.Fields{
		"mode":     p.cfg.Mode,
		"nsamples": p.NSamples,
		"nchans":   p.NChans,
		"tsamp":    p.TSamp,
		"offset":   p.Offset(),
	}).Info("prepare")
	return nil
}

func (p *Pipeline[F]) buffers() []*buffer.Buffer[F] {
	bufs := []*buffer.Buffer[F]{
		&p.downsample.Buffer,
		&p.defaraday.Buffer,
		&p.equalize.Buffer,
		&p.baseline.Buffer,
		&p.rfi.Buffer,
		&p.Buffer,
	}
	if p.cfg.DM != 0 {
		bufs = append(bufs, &p.dedisperse.Buffer)
	}
	return bufs
}

// Offset returns the output latency in samples introduced by dedispersion.
func (p *Pipeline[F]) Offset() int {
	if p.cfg.DM == 0 {
		return 0
	}
	return p.dedisperse.Offset()
}

// settle keeps the RFI buffer allocated while it holds the block.
func (p *Pipeline[F]) settle() {
	if p.rfi.Busy {
		p.rfi.Closable = false
	}
}

// Run conditions one block.
func (p *Pipeline[F]) Run(src *buffer.Buffer[F]) buffer.Result[F] {
	start := time.Now()

	data := p.downsample.Run(src).Buf
	if p.cfg.RM != 0 {
		data = p.defaraday.Filter(data).Buf
	}
	if p.cfg.ComputeStats && !data.MeanVarReady && !data.Equalized {
		buffer.GetMeanRMS(data)
	}
	data = p.equalize.Filter(data).Buf
	data = p.baseline.Filter(data).Buf

	data = p.rfi.Zap(data, p.zap).Buf
	p.settle()
	if len(p.cfg.ZapChannels) > 0 {
		data = p.rfi.ZapChannels(data, p.cfg.ZapChannels).Buf
		p.settle()
	}
	for _, o := range p.ops {
		data = p.apply(o, data)
		p.settle()
	}

	if p.cfg.DM != 0 {
		// Dedispersion copies the block into its history, so the RFI
		// storage can go back to the pool.
		if p.cfg.Mode == ModeMemory && data == &p.rfi.Buffer {
			data.Closable = true
		}
		data = p.dedisperse.Run(data).Buf
	}

	if !src.Busy && p.cfg.Mode == ModeMemory {
		data.Closable = true
	}

	res := p.Buffer.Filter(data)
	p.stage.Recorder.Samples(stageName, data.NSamples)
	p.stage.Recorder.Observe(stageName, time.Since(start))
	return res
}

func (p *Pipeline[F]) apply(o op, data *buffer.Buffer[F]) *buffer.Buffer[F] {
	c := p.cfg
	switch o.name {
	case "mask":
		return p.rfi.Mask(data, c.ThreMask, o.td, o.fd).Buf
	case "kadanef":
		return p.rfi.KadaneF(data, c.ThreKadaneF*c.ThreKadaneF, c.WidthLimit, o.td, o.fd).Buf
	case "kadanet":
		limit := c.BandLimitKT
		if limit == 0 {
			limit = c.BandLimit
		}
		return p.rfi.KadaneT(data, c.ThreKadaneT*c.ThreKadaneT, limit, o.td, o.fd).Buf
	case "zdot":
		return p.rfi.Zdot(data).Buf
	case "zero":
		return p.rfi.Zero(data).Buf
	case "zerodm":
		return p.rfi.ZeroDM(data).Buf
	}
	return data
}
