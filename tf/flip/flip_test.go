package flip

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cwbudde/algo-tfprep/log"
	"github.com/cwbudde/algo-tfprep/tf/buffer"
	"github.com/cwbudde/algo-tfprep/tf/core"
)

func quiet() core.Option { return core.WithLogger(log.Discard()) }

func TestFilter(t *testing.T) {
	src := buffer.New[uint8](2, 3)
	copy(src.Samples, []uint8{1, 2, 3, 4, 5, 6})
	src.Frequencies = []float64{1000, 1100, 1200}
	src.Weights = []float64{1, 0, 0.5}

	f := New[uint8](quiet())
	require.NoError(t, f.Prepare(src))
	f.Filter(src)

	assert.Equal(t, []uint8{3, 2, 1, 6, 5, 4}, src.Samples)
	assert.Equal(t, []float64{1200, 1100, 1000}, src.Frequencies)
	assert.Equal(t, []float64{0.5, 0, 1}, src.Weights)

	// A second chunk from the same source gets the same axis.
	copy(src.Samples, []uint8{1, 2, 3, 4, 5, 6})
	f.Filter(src)
	assert.Equal(t, []uint8{3, 2, 1, 6, 5, 4}, src.Samples)
	assert.Equal(t, []float64{1200, 1100, 1000}, src.Frequencies)
}

func TestProductsKeepOrder(t *testing.T) {
	src := buffer.New[float32](1, 4)
	src.Frequencies = []float64{1, 2}
	copy(src.Samples, []float32{10, 20, 30, 40})

	f := New[float32](quiet())
	require.NoError(t, f.Prepare(src))
	res := f.Run(src)

	assert.Equal(t, buffer.KindOwned, res.Kind)
	assert.Equal(t, []float32{20, 10, 40, 30}, res.Buf.Samples)
	assert.Equal(t, []float64{2, 1}, res.Buf.Frequencies)
	assert.Equal(t, []float32{10, 20, 30, 40}, src.Samples)
}
