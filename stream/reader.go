package stream

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/sirupsen/logrus"
	"github.com/smallnest/ringbuffer"
	"golang.org/x/sync/errgroup"

	"github.com/cwbudde/algo-tfprep/log"
	"github.com/cwbudde/algo-tfprep/tf/buffer"
	"github.com/cwbudde/algo-tfprep/tf/core"
)

const feedChunk = 64 << 10

// Reader delivers blocks of float32 samples.
type Reader interface {
	Header() Header
	// Read fills the first ns rows of b and returns the number of rows
	// read. Fewer rows than ns are returned only at the end of the stream.
	Read(b *buffer.Buffer[float32], ns int) (int, error)
	IsEnd() bool
	BufferCapacity() int
}

// RingReader reads 8-bit samples that a producer goroutine copies from an
// io.Reader into a ring buffer.
type RingReader struct {
	hdr Header
	rb  *ringbuffer.RingBuffer
	log logrus.FieldLogger

	data  chan struct{}
	space chan struct{}
	done  chan struct{}
	g     *errgroup.Group

	raw []byte
	end bool
}

var _ Reader = (*RingReader)(nil)

// NewRingReader returns a reader over a ring of capacity bytes. The
// capacity is raised to at least one row.
func NewRingReader(hdr Header, capacity int, opts ...core.Option) (*RingReader, error) {
	if err := hdr.Validate(); err != nil {
		return nil, err
	}
	cfg := core.ApplyOptions(opts...)
	capacity = max(capacity, hdr.RowBytes())
	return &RingReader{
		hdr:   hdr,
		rb:    ringbuffer.New(capacity),
		log:   log.Stage(cfg.Logger, "reader"),
		data:  make(chan struct{}, 1),
		space: make(chan struct{}, 1),
		done:  make(chan struct{}),
	}, nil
}

// Start launches the producer copying src into the ring. It stops at the
// end of src or when ctx is cancelled.
func (r *RingReader) Start(ctx context.Context, src io.Reader) {
	r.g, ctx = errgroup.WithContext(ctx)
	r.g.Go(func() error {
		return r.feed(ctx, src)
	})
}

// Wait returns the producer's error.
func (r *RingReader) Wait() error {
	if r.g == nil {
		return nil
	}
	return r.g.Wait()
}

func (r *RingReader) feed(ctx context.Context, src io.Reader) error {
	defer close(r.done)
	chunk := make([]byte, min(feedChunk, r.rb.Capacity()))
	var total int64
	for {
		n, err := src.Read(chunk)
		if perr := r.push(ctx, chunk[:n]); perr != nil {
			return perr
		}
		total += int64(n)
		if errors.Is(err, io.EOF) {
			r.log.WithField("bytes", total).Debug("source drained")
			return nil
		}
		if err != nil {
			return fmt.Errorf("stream: read source: %w", err)
		}
	}
}

func (r *RingReader) push(ctx context.Context, p []byte) error {
	for len(p) > 0 {
		n, err := r.rb.Write(p)
		p = p[n:]
		if n > 0 {
			notify(r.data)
			continue
		}
		if err != nil && !errors.Is(err, ringbuffer.ErrIsFull) {
			return fmt.Errorf("stream: write ring: %w", err)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-r.space:
		}
	}
	return nil
}

func notify(c chan struct{}) {
	select {
	case c <- struct{}{}:
	default:
	}
}

func (r *RingReader) finished() bool {
	select {
	case <-r.done:
		return true
	default:
		return false
	}
}

// Header returns the stream header.
func (r *RingReader) Header() Header { return r.hdr }

// IsEnd reports whether the stream ended.
func (r *RingReader) IsEnd() bool { return r.end }

// BufferCapacity returns the ring size in bytes.
func (r *RingReader) BufferCapacity() int { return r.rb.Capacity() }

// Read blocks until ns rows are available or the producer finished. With
// more than one polarisation product the first two are summed. The
// statistics and flags of b are cleared so a block can be reused.
func (r *RingReader) Read(b *buffer.Buffer[float32], ns int) (int, error) {
	nc := r.hdr.NChans
	if b.NChans != nc || ns > b.NSamples {
		return 0, fmt.Errorf("%w: need %dx%d block, got %dx%d", buffer.ErrShape, ns, nc, b.NSamples, b.NChans)
	}
	row := r.hdr.RowBytes()
	need := ns * row
	if cap(r.raw) < need {
		r.raw = make([]byte, need)
	}
	raw := r.raw[:need]

	got := 0
	for got < need {
		fin := r.finished()
		n, err := r.rb.Read(raw[got:])
		if n > 0 {
			got += n
			notify(r.space)
			continue
		}
		if err != nil && !errors.Is(err, ringbuffer.ErrIsEmpty) {
			return 0, fmt.Errorf("stream: read ring: %w", err)
		}
		if fin {
			break
		}
		select {
		case <-r.data:
		case <-r.done:
		}
	}

	if got != need {
		r.log.WithFields(logrus.Fields{"want": need, "got": got}).Warn("size mismatch")
		r.end = true
	}
	b.ClearStats()
	rows := got / row
	nifs := r.hdr.NIFs
	for i := 0; i < rows; i++ {
		in := raw[i*row : (i+1)*row]
		out := b.Row(i)
		if nifs == 1 {
			for j, v := range in {
				out[j] = float32(v)
			}
			continue
		}
		for j := range out {
			out[j] = float32(in[j]) + float32(in[nc+j])
		}
	}
	return rows, nil
}
