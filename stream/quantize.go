package stream

import (
	"fmt"
	"io"
	"math"

	"github.com/sirupsen/logrus"

	"github.com/cwbudde/algo-tfprep/log"
	"github.com/cwbudde/algo-tfprep/tf/buffer"
	"github.com/cwbudde/algo-tfprep/tf/core"
)

// DefaultRMS is the output standard deviation in 8-bit units.
const DefaultRMS = 20

// Quantizer writes blocks as unsigned 8-bit samples centred on 128. The
// gain and offset are fixed by the first block written.
type Quantizer[F buffer.Float] struct {
	RMS float64

	w     io.Writer
	log   logrus.FieldLogger
	gain  float64
	offs  float64
	ready bool
	out   []byte
	n     int
}

// NewQuantizer returns a quantizer writing to w.
func NewQuantizer[F buffer.Float](w io.Writer, rms float64, opts ...core.Option) *Quantizer[F] {
	if rms <= 0 {
		rms = DefaultRMS
	}
	cfg := core.ApplyOptions(opts...)
	return &Quantizer[F]{RMS: rms, w: w, log: log.Stage(cfg.Logger, "quantize")}
}

// Gain returns the scale factor, 0 before the first block.
func (q *Quantizer[F]) Gain() float64 { return q.gain }

// Offset returns the value mapped to 128.
func (q *Quantizer[F]) Offset() float64 { return q.offs }

// Block returns the bytes of the last block written. The slice is reused by
// the next Write.
func (q *Quantizer[F]) Block() []byte { return q.out[:q.n] }

// Write quantizes the first ns rows of b.
func (q *Quantizer[F]) Write(b *buffer.Buffer[F], ns int) error {
	ns = min(ns, b.NSamples)
	if ns <= 0 {
		return nil
	}
	if !q.ready {
		q.calibrate(b, ns)
	}

	n := ns * b.NChans
	if cap(q.out) < n {
		q.out = make([]byte, n)
	}
	out := q.out[:n]
	q.n = n
	for i, v := range b.Samples[:n] {
		x := math.Round((float64(v)-q.offs)*q.gain + 128)
		out[i] = byte(min(max(x, 0), 255))
	}
	if _, err := q.w.Write(out); err != nil {
		return fmt.Errorf("stream: write block: %w", err)
	}
	return nil
}

// calibrate measures mean and deviation over the weighted channels of the
// first two polarisation products.
func (q *Quantizer[F]) calibrate(b *buffer.Buffer[F], ns int) {
	nreal := b.NRealChans()
	np := min(b.NIFs(), 2)
	var sum, sumsq, cnt float64
	for i := 0; i < ns; i++ {
		row := b.Row(i)
		for k := 0; k < np; k++ {
			for j := 0; j < nreal; j++ {
				c := k*nreal + j
				if b.Weights[c] == 0 {
					continue
				}
				x := float64(row[c])
				sum += x
				sumsq += x * x
				cnt++
			}
		}
	}
	mean, std := 0.0, 1.0
	if cnt > 0 {
		mean = sum / cnt
		if v := sumsq/cnt - mean*mean; v > 0 {
			std = math.Sqrt(v)
		}
	}
	q.gain = q.RMS / std
	q.offs = mean
	q.ready = true
	q.log.WithFields(logrus.Fields{"gain": q.gain, "offset": q.offs}).Info("calibrated")
}
