package downsample

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cwbudde/algo-tfprep/internal/parallel"
	"github.com/cwbudde/algo-tfprep/log"
	"github.com/cwbudde/algo-tfprep/tf/buffer"
	"github.com/cwbudde/algo-tfprep/tf/core"
)

func ramp[T buffer.Float](ns, nc int) *buffer.Buffer[T] {
	b := buffer.New[T](ns, nc)
	for i := range b.Samples {
		b.Samples[i] = T(i)
	}
	for j := range b.Frequencies {
		b.Frequencies[j] = 1000 + float64(j)
	}
	b.TSamp = 1e-4
	return b
}

func TestIdentityIsAlias(t *testing.T) {
	src := ramp[float32](4, 4)
	before := src.Clone()

	d := New[float32](1, 1, core.WithLogger(log.Discard()))
	require.NoError(t, d.Prepare(src))
	r := d.Run(src)

	assert.Equal(t, buffer.KindAlias, r.Kind)
	assert.Same(t, src, r.Buf)
	assert.Equal(t, before.Samples, src.Samples)
	assert.Equal(t, before.Busy, src.Busy)
}

func TestPrepareNotDivisible(t *testing.T) {
	d := New[float32](3, 1, core.WithLogger(log.Discard()))
	assert.ErrorIs(t, d.Prepare(ramp[float32](4, 4)), ErrNotDivisible)

	d = New[float32](1, 3, core.WithLogger(log.Discard()))
	assert.ErrorIs(t, d.Prepare(ramp[float32](4, 4)), ErrNotDivisible)
}

func TestSumsBlocks(t *testing.T) {
	src := ramp[float64](4, 4)
	src.Weights = []float64{1, 0, 1, 1}
	src.Closable = true

	d := New[float64](2, 2, core.WithLogger(log.Discard()), core.WithPool(parallel.New(4)))
	require.NoError(t, d.Prepare(src))
	assert.Equal(t, 2, d.NSamples)
	assert.Equal(t, 2, d.NChans)
	assert.InDelta(t, 2e-4, d.TSamp, 1e-15)
	assert.Equal(t, []float64{1000.5, 1002.5}, d.Frequencies)

	r := d.Run(src)
	require.Equal(t, buffer.KindOwned, r.Kind)
	// rows of src: [0 1 2 3] [4 5 6 7] [8 9 10 11] [12 13 14 15]
	assert.Equal(t, []float64{0 + 1 + 4 + 5, 2 + 3 + 6 + 7, 8 + 9 + 12 + 13, 10 + 11 + 14 + 15}, d.Samples)
	assert.Equal(t, []float64{0.5, 1}, d.Weights)
	assert.False(t, d.Equalized)
	assert.True(t, d.Busy)
	assert.False(t, src.IsOpen())
	assert.EqualValues(t, 2, d.Counter)

	// A second chunk must not accumulate on top of the first.
	src.Open()
	copy(src.Samples, ramp[float64](4, 4).Samples)
	d.Run(src)
	assert.Equal(t, 10.0, d.Samples[0])
}

func TestComplexSamples(t *testing.T) {
	src := buffer.New[complex64](2, 2)
	copy(src.Samples, []complex64{1 + 1i, 2 - 1i, 3, 4i})
	d := New[complex64](2, 2, core.WithLogger(log.Discard()))
	require.NoError(t, d.Prepare(src))
	d.Run(src)
	assert.Equal(t, []complex64{6 + 4i}, d.Samples)
}

func TestPolarisationProductsKeptApart(t *testing.T) {
	src := buffer.New[float32](1, 8)
	src.Frequencies = []float64{1, 2, 3, 4}
	copy(src.Samples, []float32{1, 1, 1, 1, 10, 10, 10, 10})

	d := New[float32](1, 2, core.WithLogger(log.Discard()))
	require.NoError(t, d.Prepare(src))
	assert.Equal(t, 2, d.NIFs())
	d.Run(src)
	assert.Equal(t, []float32{2, 2, 20, 20}, d.Samples)
}
