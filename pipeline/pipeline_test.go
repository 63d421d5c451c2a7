package pipeline

import (
	"bytes"
	"context"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cwbudde/algo-tfprep/internal/testutil"
	"github.com/cwbudde/algo-tfprep/log"
	"github.com/cwbudde/algo-tfprep/metrics"
	"github.com/cwbudde/algo-tfprep/stream"
	"github.com/cwbudde/algo-tfprep/tf/buffer"
	"github.com/cwbudde/algo-tfprep/tf/core"
)

func quiet() core.Option { return core.WithLogger(log.Discard()) }

// passConfig disables every optional stage.
func passConfig() Config {
	cfg := DefaultConfig()
	cfg.BSWidth = 0
	cfg.RFIList = nil
	return cfg
}

func constant(ns, nc int, v float32) *buffer.Buffer[float32] {
	b := buffer.New[float32](ns, nc)
	b.TSamp = 1e-3
	b.Frequencies = testutil.Frequencies(nc, 1500, -1)
	for i := range b.Samples {
		b.Samples[i] = v
	}
	for j := range nc {
		b.Means[j] = float64(v)
		b.Vars[j] = 0
		b.Weights[j] = 1
	}
	b.MeanVarReady = true
	return b
}

func TestConstantBlockEqualizesToZero(t *testing.T) {
	src := constant(4, 4, 10)

	p, err := New[float32](passConfig(), quiet())
	require.NoError(t, err)
	require.NoError(t, p.Prepare(src))

	out := p.Run(src)
	require.True(t, out.Buf.Equalized)
	assert.Equal(t, make([]float32, 16), out.Buf.Samples)
	assert.Equal(t, 4, out.Buf.NSamples)
	assert.Equal(t, 4, out.Buf.NChans)
	assert.Equal(t, int64(4), p.Counter)
}

func TestEqualizedOutputHasUnitStats(t *testing.T) {
	src := testutil.Spectrum[float64](256, 8, 3)
	for i := range src.Samples {
		src.Samples[i] = 5 + 3*src.Samples[i]
	}

	p, err := New[float64](passConfig(), quiet())
	require.NoError(t, err)
	require.NoError(t, p.Prepare(src))

	out := p.Run(src).Buf
	check := out.Clone()
	buffer.GetMeanRMS(check)
	for j := range check.NChans {
		assert.InDelta(t, 0, check.Means[j], 1e-9)
		assert.InDelta(t, 1, check.Vars[j], 1e-9)
	}
}

func TestDownsampleAndDedisperseShape(t *testing.T) {
	src := testutil.Spectrum[float32](64, 16, 1)

	cfg := passConfig()
	cfg.TD = 2
	cfg.FD = 4
	cfg.DM = 5
	p, err := New[float32](cfg, quiet())
	require.NoError(t, err)
	require.NoError(t, p.Prepare(src))

	assert.Equal(t, 32, p.NSamples)
	assert.Equal(t, 4, p.NChans)
	assert.Positive(t, p.Offset())
	assert.InDelta(t, src.TSamp*2, p.TSamp, 1e-15)

	for range 3 {
		out := p.Run(src).Buf
		assert.Equal(t, 32, out.NSamples)
		assert.Equal(t, 4, out.NChans)
		testutil.RequireFinite(t, out.Samples)
	}
}

func TestNoDispersionNoOffset(t *testing.T) {
	p, err := New[float32](passConfig(), quiet())
	require.NoError(t, err)
	require.NoError(t, p.Prepare(testutil.Spectrum[float32](16, 4, 1)))
	assert.Zero(t, p.Offset())
}

func TestMemoryModeMatchesSpeedMode(t *testing.T) {
	run := func(mode Mode) [][]float32 {
		cfg := DefaultConfig()
		cfg.Mode = mode
		cfg.BSWidth = 0.01
		cfg.RFIList = [][]string{{"mask", "4", "2"}, {"kadaneF", "8", "4"}, {"zdot"}}
		cfg.ZapList = [][]float64{{1497.5, 1498.5}}
		p, err := New[float32](cfg, quiet())
		require.NoError(t, err)

		var outs [][]float32
		for k := range 3 {
			src := testutil.Spectrum[float32](128, 16, uint64(k+1))
			if k == 0 {
				require.NoError(t, p.Prepare(src))
			}
			out := p.Run(src).Buf
			testutil.RequireFinite(t, out.Samples)
			outs = append(outs, append([]float32(nil), out.Samples...))
		}
		return outs
	}

	speed := run(ModeSpeed)
	memory := run(ModeMemory)
	require.Len(t, memory, len(speed))
	for k := range speed {
		testutil.RequireSliceNearlyEqual(t, memory[k], speed[k], 1e-6)
	}
}

func TestMemoryModeReleasesIntermediates(t *testing.T) {
	cfg := passConfig()
	cfg.Mode = ModeMemory
	src := testutil.Spectrum[float32](32, 4, 1)

	p, err := New[float32](cfg, quiet())
	require.NoError(t, err)
	require.NoError(t, p.Prepare(src))
	assert.False(t, p.downsample.IsOpen())
	assert.False(t, p.rfi.IsOpen())

	out := p.Run(src).Buf
	assert.Same(t, &p.rfi.Buffer, out)
	assert.False(t, p.downsample.IsOpen(), "downsample block moves into the rfi stage")
	assert.True(t, p.rfi.IsOpen())
	assert.True(t, p.rfi.Closable, "result is released on the next chunk")
}

func TestMemoryModeDedispersionReleasesRFIBlock(t *testing.T) {
	cfg := passConfig()
	cfg.Mode = ModeMemory
	cfg.DM = 5

	p, err := New[float32](cfg, quiet())
	require.NoError(t, err)
	require.NoError(t, p.Prepare(testutil.Spectrum[float32](64, 16, 1)))

	for k := range 3 {
		out := p.Run(testutil.Spectrum[float32](64, 16, uint64(k+1))).Buf
		assert.Same(t, &p.dedisperse.Buffer, out)
		testutil.RequireFinite(t, out.Samples)
		assert.False(t, p.rfi.IsOpen(), "chunk %d", k)
		assert.True(t, p.rfi.Closable, "chunk %d", k)
	}
}

// chunks returns n raw 8-bit blocks whose level and spread change from one
// block to the next.
func chunks(n, ns, nc int) []byte {
	var out []byte
	for k := range n {
		base, scale := 20+60*k, 1+k
		for i := range ns {
			for j := range nc {
				out = append(out, byte(base+scale*((i*7+j*13)%23)))
			}
		}
	}
	return out
}

func TestReusedInputBlockIsEqualizedEveryChunk(t *testing.T) {
	const ns, nc, n = 64, 8, 3
	hdr := stream.Header{NIFs: 1, NBits: 8, NChans: nc, TSamp: 1e-3, FCh1: 1500, FOff: -1}

	r, err := stream.NewRingReader(hdr, 4*ns*nc, quiet())
	require.NoError(t, err)
	r.Start(context.Background(), bytes.NewReader(chunks(n, ns, nc)))

	block := hdr.NewBuffer(ns)
	p, err := New[float32](passConfig(), quiet())
	require.NoError(t, err)
	require.NoError(t, p.Prepare(block))

	for k := range n {
		rows, err := r.Read(block, ns)
		require.NoError(t, err)
		require.Equal(t, ns, rows)

		out := p.Run(block).Buf
		check := out.Clone()
		buffer.GetMeanRMS(check)
		for j := range nc {
			assert.InDelta(t, 0, check.Means[j], 1e-4, "chunk %d channel %d", k, j)
			assert.InDelta(t, 1, check.Vars[j], 1e-3, "chunk %d channel %d", k, j)
		}
	}

	for !r.IsEnd() {
		_, err = r.Read(block, ns)
		require.NoError(t, err)
	}
	require.NoError(t, r.Wait())
}

func TestZapListWeights(t *testing.T) {
	cfg := passConfig()
	cfg.ZapList = [][]float64{{1498.5, 1500.5}}
	src := testutil.Spectrum[float32](32, 8, 1)

	p, err := New[float32](cfg, quiet())
	require.NoError(t, err)
	require.NoError(t, p.Prepare(src))

	out := p.Run(src).Buf
	assert.Zero(t, out.Weights[0])
	assert.Zero(t, out.Weights[1])
	for j := 2; j < out.NChans; j++ {
		assert.NotZero(t, out.Weights[j], "channel %d", j)
	}
}

func TestRecorderCountsSamples(t *testing.T) {
	reg := prometheus.NewRegistry()
	m, err := metrics.New(reg)
	require.NoError(t, err)

	src := testutil.Spectrum[float32](32, 4, 1)
	p, err := New[float32](passConfig(), quiet(), core.WithRecorder(m))
	require.NoError(t, err)
	require.NoError(t, p.Prepare(src))
	p.Run(src)
	p.Run(src)

	assert.InDelta(t, 64, gathered(t, reg, "tfprep_stage_samples_total", stageName), 1e-9)
}

func gathered(t *testing.T, reg *prometheus.Registry, name, stage string) float64 {
	t.Helper()
	families, err := reg.Gather()
	require.NoError(t, err)
	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
		for _, m := range mf.GetMetric() {
			for _, l := range m.GetLabel() {
				if l.GetName() == "stage" && l.GetValue() == stage {
					return m.GetCounter().GetValue()
				}
			}
		}
	}
	t.Fatalf("%s{stage=%q} not found", name, stage)
	return 0
}

func TestNewRejectsInvalidConfig(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"mode", func(c *Config) { c.Mode = "fast" }},
		{"td", func(c *Config) { c.TD = 0 }},
		{"kernel", func(c *Config) { c.Kernel = "gpu" }},
		{"fill", func(c *Config) { c.FillType = "noise" }},
		{"operator", func(c *Config) { c.RFIList = [][]string{{"sumthreshold"}} }},
		{"operator args", func(c *Config) { c.RFIList = [][]string{{"mask", "4"}} }},
		{"operator td", func(c *Config) { c.RFIList = [][]string{{"kadaneT", "x", "1"}} }},
		{"zap pair", func(c *Config) { c.ZapList = [][]float64{{1400}} }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			_, err := New[float32](cfg, quiet())
			require.ErrorIs(t, err, ErrConfig)
		})
	}
}

func TestParseRFIListCaseInsensitive(t *testing.T) {
	ops, err := parseRFIList([][]string{{"KadaneF", "8", " 4"}, {"ZeroDM"}})
	require.NoError(t, err)
	assert.Equal(t, []op{{name: "kadanef", td: 8, fd: 4}, {name: "zerodm"}}, ops)
}

func TestDefaultConfigValid(t *testing.T) {
	require.NoError(t, DefaultConfig().Validate())
}
