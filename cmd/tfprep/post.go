package main

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/cwbudde/algo-tfprep/stats/channel"
	"github.com/cwbudde/algo-tfprep/stats/histogram"
	"github.com/cwbudde/algo-tfprep/tf/buffer"
	"github.com/cwbudde/algo-tfprep/tf/core"
	"github.com/cwbudde/algo-tfprep/tf/flip"
	"github.com/cwbudde/algo-tfprep/tf/rescale"
)

// post runs the optional passes between the pipeline and the quantizer and
// the output histogram after it.
type post struct {
	stat    *channel.Stat[float32]
	rescale *rescale.Rescale[float32]
	flip    *flip.Flip[float32]
	hist    *histogram.Stat2
	freqs   []float64
	nchans  int
}

func newPost(opts runOptions, shape *buffer.Buffer[float32], stageOpts []core.Option) (*post, error) {
	p := &post{
		freqs:  append([]float64(nil), shape.Frequencies...),
		nchans: shape.NChans,
	}
	if opts.stat {
		p.stat = channel.New[float32](stageOpts...)
		if err := p.stat.Prepare(shape); err != nil {
			return nil, err
		}
		p.rescale = rescale.New[float32](stageOpts...)
		if err := p.rescale.Prepare(shape); err != nil {
			return nil, err
		}
	}
	if opts.flip {
		p.flip = flip.New[float32](stageOpts...)
		if err := p.flip.Prepare(shape); err != nil {
			return nil, err
		}
		p.freqs = append(p.freqs[:0], p.flip.Frequencies...)
	}
	if opts.statsOut != "" {
		p.hist = histogram.New(stageOpts...)
		h := buffer.New[uint8](1, shape.NChans)
		h.Frequencies = p.freqs
		if err := p.hist.Prepare(h); err != nil {
			return nil, err
		}
	}
	return p, nil
}

// condition applies the channel statistics and the flip to view. The
// returned block holds view.NSamples valid rows.
func (p *post) condition(view *buffer.Buffer[float32]) (*buffer.Buffer[float32], error) {
	if view.NSamples == 0 {
		return view, nil
	}
	if p.stat != nil {
		p.stat.Run(view)
		p.stat.GetStat()
		p.stat.Apply(view)
		if err := p.rescale.SetFromStat(p.stat); err != nil {
			return nil, err
		}
		view = p.rescale.Filter(view).Buf
	}
	if p.flip != nil {
		view = p.flip.Run(view).Buf
	}
	return view, nil
}

// count adds the quantized rows to the histogram.
func (p *post) count(block []byte, rows int) {
	if p.hist == nil || rows == 0 {
		return
	}
	b := buffer.Buffer[uint8]{
		Samples:     block[:rows*p.nchans],
		NSamples:    rows,
		NChans:      p.nchans,
		Frequencies: p.freqs,
	}
	p.hist.Run(&b)
}

// Report is the document written by --stats-out.
type Report struct {
	Samples  int64                      `yaml:"samples"`
	Zapped   int                        `yaml:"zapped,omitempty"`
	Channels []histogram.ChannelSummary `yaml:"channels"`
}

func (p *post) report() Report {
	r := Report{Samples: p.hist.Counter, Channels: p.hist.Summary()}
	if p.stat != nil {
		for _, w := range p.stat.Weight {
			if w == 0 {
				r.Zapped++
			}
		}
	}
	return r
}

func (p *post) writeReport(path string) error {
	if p.hist == nil {
		return nil
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create stats: %w", err)
	}
	enc := yaml.NewEncoder(f)
	enc.SetIndent(2)
	if err := enc.Encode(p.report()); err != nil {
		f.Close()
		return fmt.Errorf("write stats: %w", err)
	}
	if err := enc.Close(); err != nil {
		f.Close()
		return fmt.Errorf("write stats: %w", err)
	}
	return f.Close()
}
