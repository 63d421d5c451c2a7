package rescale

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cwbudde/algo-tfprep/log"
	"github.com/cwbudde/algo-tfprep/stats/channel"
	"github.com/cwbudde/algo-tfprep/tf/buffer"
	"github.com/cwbudde/algo-tfprep/tf/core"
)

func quiet() core.Option { return core.WithLogger(log.Discard()) }

func TestUnsetPassthrough(t *testing.T) {
	src := buffer.New[float32](2, 2)
	copy(src.Samples, []float32{1, 2, 3, 4})
	r := New[float32](quiet())
	require.NoError(t, r.Prepare(src))

	res := r.Filter(src)
	assert.Same(t, src, res.Buf)
	assert.Equal(t, []float32{1, 2, 3, 4}, src.Samples)
	assert.EqualValues(t, 0, r.Counter)
}

func TestSet(t *testing.T) {
	src := buffer.New[float64](2, 2)
	copy(src.Samples, []float64{1, 10, 3, 20})
	r := New[float64](quiet())
	require.NoError(t, r.Prepare(src))

	assert.ErrorIs(t, r.Set([]float64{0}, []float64{1}, []float64{1}), ErrLength)
	require.NoError(t, r.Set([]float64{2, 10}, []float64{0, 5}, []float64{1, 0.5}))

	r.Filter(src)
	assert.Equal(t, []float64{-1, 0, 1, 1}, src.Samples)
	assert.EqualValues(t, 2, r.Counter)
}

func TestFromStat(t *testing.T) {
	src := buffer.New[float64](4, 1)
	copy(src.Samples, []float64{1, 2, 3, 4})

	st := channel.New[float64](quiet())
	require.NoError(t, st.Prepare(src))
	st.Run(src)
	st.GetStat()

	r := New[float64](quiet())
	require.NoError(t, r.Prepare(src))
	require.NoError(t, r.SetFromStat(st))
	r.Filter(src)

	buffer.GetMeanRMS(src)
	assert.InDelta(t, 0, src.Means[0], 1e-12)
	assert.InDelta(t, 1, src.Vars[0], 1e-12)
}
