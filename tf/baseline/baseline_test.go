package baseline

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cwbudde/algo-tfprep/internal/testutil"
	"github.com/cwbudde/algo-tfprep/log"
	"github.com/cwbudde/algo-tfprep/tf/buffer"
	"github.com/cwbudde/algo-tfprep/tf/core"
)

const tsamp = 64e-6

func quiet() core.Option { return core.WithLogger(log.Discard()) }

func channelSums(b *buffer.Buffer[float64]) []float64 {
	out := make([]float64, b.NChans)
	for i := 0; i < b.NSamples; i++ {
		for j, v := range b.Row(i) {
			out[j] += v
		}
	}
	return out
}

func TestShortWidthIsIdentity(t *testing.T) {
	src := testutil.Spectrum[float32](32, 4, 1)
	before := append([]float32(nil), src.Samples...)

	bl := New[float32](2*tsamp, quiet())
	require.NoError(t, bl.Prepare(src))
	assert.True(t, bl.Identity())

	r := bl.Filter(src)
	assert.Same(t, src, r.Buf)
	assert.Equal(t, before, src.Samples)
	assert.EqualValues(t, 0, bl.Counter)
}

func TestAffineInReferenceIsRemoved(t *testing.T) {
	const ns, nc = 128, 4
	ref := make([]float64, 2*ns)
	for i := range ref {
		ref[i] = math.Sin(float64(i)/20) + 0.01*float64(i)
	}
	a := []float64{1, -2, 0.5, 3}
	c := []float64{10, 0, -4, 7}

	bl := New[float64](9*tsamp, quiet())
	bl.OutRef = ref

	for chunk := 0; chunk < 2; chunk++ {
		src := buffer.New[float64](ns, nc)
		src.TSamp = tsamp
		for i := 0; i < ns; i++ {
			for j := 0; j < nc; j++ {
				src.Set(i, j, a[j]*ref[chunk*ns+i]+c[j])
			}
		}
		if chunk == 0 {
			require.NoError(t, bl.Prepare(src))
		}
		bl.Filter(src)

		for i, v := range src.Samples {
			if math.Abs(v) > 1e-9 {
				t.Fatalf("chunk %d: residual[%d] = %v, want 0", chunk, i, v)
			}
		}
		assert.Equal(t, []float64{0, 0, 0, 0}, src.Means)
	}
	assert.EqualValues(t, 2*ns, bl.Counter)
}

func TestResidualHasZeroChannelSum(t *testing.T) {
	src := testutil.Spectrum[float64](256, 8, 3)
	for i := 0; i < src.NSamples; i++ {
		drift := 5 * math.Sin(float64(i)/40)
		for j := range src.Row(i) {
			src.Row(i)[j] += drift * float64(j+1)
		}
	}

	bl := New[float64](15*tsamp, quiet())
	require.NoError(t, bl.Prepare(src))
	r := bl.Filter(src)

	require.Same(t, src, r.Buf)
	for j, s := range channelSums(src) {
		assert.InDelta(t, 0, s, 1e-8, "channel %d", j)
	}
}

func TestShortReferenceFallsBack(t *testing.T) {
	src := testutil.Spectrum[float64](64, 4, 5)
	bl := New[float64](9*tsamp, quiet())
	bl.OutRef = make([]float64, 10)
	require.NoError(t, bl.Prepare(src))

	bl.Filter(src)
	testutil.RequireFinite(t, src.Samples)
	for _, s := range channelSums(src) {
		assert.InDelta(t, 0, s, 1e-8)
	}
}

func TestFilter2(t *testing.T) {
	src := testutil.Spectrum[float64](512, 16, 9)
	src.MeanVarReady = true
	src.Equalized = true

	bl := New[float64](31*tsamp, quiet())
	require.NoError(t, bl.Prepare(src))
	bl.Filter2(src)

	assert.False(t, src.MeanVarReady)
	assert.False(t, src.Equalized)
	for j := range src.Vars {
		assert.Equal(t, 1.0, src.Vars[j])
	}

	var pow float64
	for _, v := range src.Samples {
		pow += v * v
	}
	pow /= float64(len(src.Samples))
	assert.InDelta(t, 1, pow, 0.2)
}

func TestFilter2ZeroPower(t *testing.T) {
	src := buffer.New[float32](64, 4)
	src.TSamp = tsamp
	bl := New[float32](9*tsamp, quiet())
	require.NoError(t, bl.Prepare(src))
	bl.Filter2(src)
	for _, v := range src.Samples {
		require.Zero(t, v)
	}
}

func TestRunMatchesFilter(t *testing.T) {
	a := testutil.Spectrum[float64](128, 8, 11)
	b := a.Clone()

	bl1 := New[float64](9*tsamp, quiet())
	require.NoError(t, bl1.Prepare(a))
	bl2 := New[float64](9*tsamp, quiet())
	require.NoError(t, bl2.Prepare(b))

	r := bl1.Run(a)
	bl2.Filter(b)

	require.Equal(t, buffer.KindOwned, r.Kind)
	testutil.RequireSliceNearlyEqual(t, r.Buf.Samples, b.Samples, 1e-12)
	assert.Equal(t, []float64{0, 0, 0, 0, 0, 0, 0, 0}, r.Buf.Means)
}

func TestConstantChannelRemoved(t *testing.T) {
	const ns = 256
	src := buffer.New[float64](ns, 2)
	src.TSamp = tsamp
	src.Frequencies = testutil.Frequencies(2, 1500, -1)
	noise := testutil.Noise(ns, 11)
	for i := 0; i < ns; i++ {
		src.Set(i, 0, 7.5)
		src.Set(i, 1, 3+noise[i])
	}

	bl := New[float64](16*tsamp, quiet())
	require.NoError(t, bl.Prepare(src))
	bl.Filter(src)

	for i := 0; i < ns; i++ {
		require.InDelta(t, 0, src.At(i, 0), 1e-9, "sample %d", i)
	}
}
