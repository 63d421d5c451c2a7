package buffer

import (
	"errors"
	"fmt"
)

// ErrShape is returned when a buffer's dimensions are inconsistent.
var ErrShape = errors.New("buffer: shape mismatch")

// Float is a real floating-point sample type.
type Float interface {
	~float32 | ~float64
}

// Complex is a complex sample type.
type Complex interface {
	~complex64 | ~complex128
}

// Summable is a sample type that can be block-summed.
type Summable interface {
	Float | Complex
}

// Sample is any element type a Buffer may hold.
type Sample interface {
	~uint8 | Summable
}

// Buffer is a row-major (time-major) block of NSamples x NChans samples
// plus the metadata and per-channel statistics travelling with it.
type Buffer[T Sample] struct {
	Samples []T

	NSamples int
	NChans   int

	// TSamp is the sampling interval in seconds.
	TSamp float64

	// Frequencies holds one centre frequency (MHz) per physical channel.
	// NChans may be a multiple of its length when polarisation products
	// are stored side by side.
	Frequencies []float64

	Means   []float64
	Vars    []float64
	Weights []float64

	Equalized    bool
	MeanVarReady bool
	Busy         bool
	Closable     bool

	// Counter is the number of samples that went through this buffer
	// since it was created. It is never reset.
	Counter int64

	pool *Pool[T]
}

// New returns an open, zero-filled buffer with unit weights.
func New[T Sample](nsamples, nchans int) *Buffer[T] {
	b := &Buffer[T]{}
	b.Resize(nsamples, nchans)
	b.Frequencies = make([]float64, nchans)
	return b
}

// Resize sets the dimensions, reallocates storage and resets the
// per-channel statistics (weights to 1).
func (b *Buffer[T]) Resize(nsamples, nchans int) {
	if nsamples < 0 {
		nsamples = 0
	}
	if nchans < 0 {
		nchans = 0
	}
	b.NSamples = nsamples
	b.NChans = nchans
	b.Open()
	b.resetStats()
}

func (b *Buffer[T]) resetStats() {
	b.Means = make([]float64, b.NChans)
	b.Vars = make([]float64, b.NChans)
	b.Weights = make([]float64, b.NChans)
	for j := range b.Weights {
		b.Weights[j] = 1
	}
}

// ClearStats returns the statistics and flags to their freshly prepared
// state so the buffer can be refilled with a new block. Existing slices are
// reused when they are sized for NChans.
func (b *Buffer[T]) ClearStats() {
	b.Equalized = false
	b.MeanVarReady = false
	if len(b.Means) != b.NChans || len(b.Vars) != b.NChans || len(b.Weights) != b.NChans {
		b.resetStats()
		return
	}
	clear(b.Means)
	clear(b.Vars)
	for j := range b.Weights {
		b.Weights[j] = 1
	}
}

// Prepare copies dimensions and metadata from src and allocates matching
// storage and statistics. Sample data is not copied.
func (b *Buffer[T]) Prepare(src *Buffer[T]) {
	b.Equalized = src.Equalized
	b.TSamp = src.TSamp
	b.Frequencies = append([]float64(nil), src.Frequencies...)
	b.Resize(src.NSamples, src.NChans)
}

// SetPool attaches the arena Open and Close use for storage.
func (b *Buffer[T]) SetPool(p *Pool[T]) {
	b.pool = p
}

// Len returns NSamples*NChans.
func (b *Buffer[T]) Len() int {
	return b.NSamples * b.NChans
}

// NIFs returns the number of polarisation products per physical channel.
func (b *Buffer[T]) NIFs() int {
	if len(b.Frequencies) == 0 {
		return 1
	}
	return b.NChans / len(b.Frequencies)
}

// NRealChans returns the number of physical channels.
func (b *Buffer[T]) NRealChans() int {
	if len(b.Frequencies) == 0 {
		return b.NChans
	}
	return len(b.Frequencies)
}

// Frequency returns the centre frequency of column j, taking interleaved
// polarisation products into account.
func (b *Buffer[T]) Frequency(j int) float64 {
	if len(b.Frequencies) == 0 {
		return 0
	}
	return b.Frequencies[j%len(b.Frequencies)]
}

// Row returns the samples of time index i.
func (b *Buffer[T]) Row(i int) []T {
	return b.Samples[i*b.NChans : (i+1)*b.NChans]
}

// At returns the sample at time i, channel j.
func (b *Buffer[T]) At(i, j int) T {
	return b.Samples[i*b.NChans+j]
}

// Set stores v at time i, channel j.
func (b *Buffer[T]) Set(i, j int, v T) {
	b.Samples[i*b.NChans+j] = v
}

// IsOpen reports whether storage is allocated.
func (b *Buffer[T]) IsOpen() bool {
	n := b.Len()
	return len(b.Samples) == n && (b.Samples != nil || n == 0)
}

// Open allocates zeroed storage of NSamples*NChans samples.
func (b *Buffer[T]) Open() {
	n := b.Len()
	if b.pool != nil {
		if b.Samples != nil {
			b.pool.Put(b.Samples)
		}
		b.Samples = b.pool.Get(n)
		return
	}
	if cap(b.Samples) >= n && b.Samples != nil {
		b.Samples = b.Samples[:n]
		clear(b.Samples)
		return
	}
	b.Samples = make([]T, n)
}

// Close releases storage. Dimensions and statistics are kept so Open
// restores the buffer without another Prepare.
func (b *Buffer[T]) Close() {
	if b.pool != nil && b.Samples != nil {
		b.pool.Put(b.Samples)
	}
	b.Samples = nil
}

// Zero sets every sample to zero.
func (b *Buffer[T]) Zero() {
	clear(b.Samples)
}

// Validate checks the shape invariants.
func (b *Buffer[T]) Validate() error {
	if b.IsOpen() && len(b.Samples) != b.Len() {
		return fmt.Errorf("%w: %d samples for %dx%d", ErrShape, len(b.Samples), b.NSamples, b.NChans)
	}
	if nf := len(b.Frequencies); nf > 0 && b.NChans%nf != 0 {
		return fmt.Errorf("%w: %d channels not a multiple of %d frequencies", ErrShape, b.NChans, nf)
	}
	if len(b.Means) != b.NChans || len(b.Vars) != b.NChans || len(b.Weights) != b.NChans {
		return fmt.Errorf("%w: statistics length does not match %d channels", ErrShape, b.NChans)
	}
	return nil
}

// Run takes over src's content: samples, statistics and readiness flags
// are copied into b, b's counter advances, src is released (closed when
// closable) and b becomes busy.
func (b *Buffer[T]) Run(src *Buffer[T]) Result[T] {
	if b.Closable || !b.IsOpen() {
		b.Open()
	}
	copy(b.Samples, src.Samples)
	b.CopyStats(src)

	b.Counter += int64(b.NSamples)

	src.Busy = false
	b.Busy = true
	if src.Closable {
		src.Close()
	}
	return Owned(b)
}

// CopyStats copies statistics and readiness flags from src.
func (b *Buffer[T]) CopyStats(src *Buffer[T]) {
	b.Means = append(b.Means[:0], src.Means...)
	b.Vars = append(b.Vars[:0], src.Vars...)
	b.Weights = append(b.Weights[:0], src.Weights...)
	b.MeanVarReady = src.MeanVarReady
	b.Equalized = src.Equalized
}

// Release is the tail of a stage that wrote its own output from src: src
// is no longer needed, b holds the data.
func (b *Buffer[T]) Release(src *Buffer[T]) Result[T] {
	b.Counter += int64(b.NSamples)
	src.Busy = false
	b.Busy = true
	if src.Closable {
		src.Close()
	}
	return Owned(b)
}

// Filter marks src as being processed in place by the stage owning b and
// advances b's counter.
func (b *Buffer[T]) Filter(src *Buffer[T]) Result[T] {
	b.Counter += int64(b.NSamples)
	src.Busy = true
	return Alias(src)
}

// Get returns the handle passed downstream.
func (b *Buffer[T]) Get() Result[T] {
	return Alias(b)
}

// Clone returns a deep copy without the pool attachment.
func (b *Buffer[T]) Clone() *Buffer[T] {
	c := *b
	c.pool = nil
	c.Samples = append([]T(nil), b.Samples...)
	c.Frequencies = append([]float64(nil), b.Frequencies...)
	c.Means = append([]float64(nil), b.Means...)
	c.Vars = append([]float64(nil), b.Vars...)
	c.Weights = append([]float64(nil), b.Weights...)
	return &c
}
