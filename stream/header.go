// Package stream connects 8-bit filterbank byte streams to the pipeline:
// RingReader feeds float32 blocks from a producer, Quantizer writes
// conditioned blocks back as 8-bit samples.
package stream

import (
	"errors"
	"fmt"
	"io"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/cwbudde/algo-tfprep/tf/buffer"
)

var (
	// ErrUnsupportedBits is returned for sample widths other than 8 bits.
	ErrUnsupportedBits = errors.New("stream: unsupported sample width")
	// ErrHeader is returned for an inconsistent header.
	ErrHeader = errors.New("stream: invalid header")
)

// Header describes a filterbank stream.
type Header struct {
	Telescope  string    `yaml:"telescope"`
	SourceName string    `yaml:"source_name"`
	RA         string    `yaml:"ra"`
	Dec        string    `yaml:"dec"`
	Beam       int       `yaml:"beam"`
	StartTime  time.Time `yaml:"start_time"`

	NIFs   int `yaml:"nifs"`
	NBits  int `yaml:"nbits"`
	NChans int `yaml:"nchans"`

	// TSamp is the sampling interval in seconds.
	TSamp float64 `yaml:"tsamp"`
	// FCh1 is the frequency of the first channel and FOff the channel
	// spacing, both in MHz.
	FCh1 float64 `yaml:"fch1"`
	FOff float64 `yaml:"foff"`
}

// ReadHeader decodes a YAML or JSON header.
func ReadHeader(r io.Reader) (Header, error) {
	h := Header{NIFs: 1, NBits: 8}
	if err := yaml.NewDecoder(r).Decode(&h); err != nil {
		return Header{}, fmt.Errorf("stream: decode header: %w", err)
	}
	return h, h.Validate()
}

// Validate checks that the stream can be read.
func (h Header) Validate() error {
	if h.NBits != 8 {
		return fmt.Errorf("%w: %d bits", ErrUnsupportedBits, h.NBits)
	}
	if h.NIFs < 1 || h.NChans < 1 {
		return fmt.Errorf("%w: nifs=%d nchans=%d", ErrHeader, h.NIFs, h.NChans)
	}
	if h.TSamp <= 0 {
		return fmt.Errorf("%w: tsamp=%g", ErrHeader, h.TSamp)
	}
	return nil
}

// Frequencies returns the channel centre frequencies in MHz.
func (h Header) Frequencies() []float64 {
	f := make([]float64, h.NChans)
	for j := range f {
		f[j] = h.FCh1 + float64(j)*h.FOff
	}
	return f
}

// RowBytes is the size of one time sample in the stream.
func (h Header) RowBytes() int {
	return h.NIFs * h.NChans * h.NBits / 8
}

// NewBuffer returns a block of nsamples rows matching what a Reader
// delivers: NChans channels, polarisations summed.
func (h Header) NewBuffer(nsamples int) *buffer.Buffer[float32] {
	b := buffer.New[float32](nsamples, h.NChans)
	b.TSamp = h.TSamp
	b.Frequencies = h.Frequencies()
	return b
}
