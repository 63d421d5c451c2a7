package main

import (
	"bytes"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/cwbudde/algo-tfprep/internal/testutil"
	"github.com/cwbudde/algo-tfprep/log"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCommand(log.Discard())
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestDefaultsPrintsYAML(t *testing.T) {
	out, err := execute(t, "defaults")
	require.NoError(t, err)
	assert.Contains(t, out, "mode: speed")
	assert.Contains(t, out, "rfilist:")
	assert.Contains(t, out, "threKadaneF:")
}

func TestDefaultsWritesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tfprep.yaml")
	_, err := execute(t, "defaults", "--write", path)
	require.NoError(t, err)
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "bswidth:")
}

func TestKernelsListsScalar(t *testing.T) {
	out, err := execute(t, "kernels")
	require.NoError(t, err)
	assert.Contains(t, out, "scalar")
	assert.Contains(t, out, "auto")
}

func TestRunRequiresFlags(t *testing.T) {
	_, err := execute(t, "run")
	require.Error(t, err)
}

func writeFile(t *testing.T, dir, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, data, 0o644))
	return path
}

// blocksFile writes a header, a config and nblocks of 16-channel noise
// whose level and spread change from block to block.
func blocksFile(t *testing.T, dir string, nblocks int) (hdr, cfg, in string) {
	t.Helper()
	const nchans, nsamples = 16, 64
	noise := testutil.Noise(nchans*nsamples*nblocks, 9)
	raw := make([]byte, len(noise))
	for i, v := range noise {
		k := float64(i / (nchans * nsamples))
		raw[i] = byte(min(max(60+40*k+(5+5*k)*v, 0), 255))
	}
	hdr = writeFile(t, dir, "hdr.yaml", []byte("nifs: 1\nnbits: 8\nnchans: 16\ntsamp: 6.4e-5\nfch1: 1500\nfoff: -1\n"))
	cfg = writeFile(t, dir, "cfg.yaml", []byte("bswidth: 0.001\nrfilist:\n  - [mask, 4, 4]\n  - [zdot]\n"))
	in = writeFile(t, dir, "in.u8", raw)
	return hdr, cfg, in
}

func moments(b []byte) (mean, std float64) {
	var sum, sumsq float64
	for _, v := range b {
		x := float64(v)
		sum += x
		sumsq += x * x
	}
	n := float64(len(b))
	mean = sum / n
	return mean, math.Sqrt(sumsq/n - mean*mean)
}

func TestRunConditionsFile(t *testing.T) {
	const (
		blockBytes = 16 * 64
		blocks     = 3
	)
	dir := t.TempDir()
	hdr, cfg, in := blocksFile(t, dir, blocks)
	outPath := filepath.Join(dir, "out.u8")

	_, err := execute(t, "run",
		"--config", cfg,
		"--header", hdr,
		"--input", in,
		"--output", outPath,
		"--nsamples", "64",
		"--rms", "20",
	)
	require.NoError(t, err)

	out, err := os.ReadFile(outPath)
	require.NoError(t, err)
	require.Len(t, out, blocks*blockBytes)

	// Every block is equalized on its own, so each one comes out centred
	// on 128 with the requested deviation.
	for k := range blocks {
		mean, std := moments(out[k*blockBytes : (k+1)*blockBytes])
		assert.InDelta(t, 128, mean, 4, "block %d", k)
		assert.InDelta(t, 20, std, 5, "block %d", k)
	}
}

func TestRunFlipReversesChannels(t *testing.T) {
	dir := t.TempDir()
	hdr, cfg, in := blocksFile(t, dir, 2)
	plain := filepath.Join(dir, "plain.u8")
	flipped := filepath.Join(dir, "flipped.u8")

	for _, args := range [][]string{
		{"--output", plain},
		{"--output", flipped, "--flip"},
	} {
		_, err := execute(t, append([]string{"run", "--config", cfg, "--header", hdr, "--input", in, "--nsamples", "64"}, args...)...)
		require.NoError(t, err)
	}

	a, err := os.ReadFile(plain)
	require.NoError(t, err)
	b, err := os.ReadFile(flipped)
	require.NoError(t, err)
	require.Len(t, b, len(a))
	for i := 0; i < len(a); i += 16 {
		for j := range 16 {
			assert.InDelta(t, int(a[i+j]), int(b[i+15-j]), 1, "row %d channel %d", i/16, j)
		}
	}
}

func TestRunStatPassWritesReport(t *testing.T) {
	dir := t.TempDir()
	hdr, cfg, in := blocksFile(t, dir, 3)
	outPath := filepath.Join(dir, "out.u8")
	statsPath := filepath.Join(dir, "stats.yaml")

	_, err := execute(t, "run",
		"--config", cfg,
		"--header", hdr,
		"--input", in,
		"--output", outPath,
		"--nsamples", "64",
		"--stat",
		"--flip",
		"--stats-out", statsPath,
	)
	require.NoError(t, err)

	out, err := os.ReadFile(outPath)
	require.NoError(t, err)
	require.Len(t, out, 3*16*64)

	doc, err := os.ReadFile(statsPath)
	require.NoError(t, err)
	var rep Report
	require.NoError(t, yaml.Unmarshal(doc, &rep))
	assert.EqualValues(t, 3*64, rep.Samples)
	require.Len(t, rep.Channels, 16)
	assert.Equal(t, 1485.0, rep.Channels[0].Frequency)
	assert.Equal(t, 1500.0, rep.Channels[15].Frequency)
	for j, c := range rep.Channels {
		assert.InDelta(t, 128, c.Mean, 20, "channel %d", j)
	}
}

func TestRunRejectsBadHeader(t *testing.T) {
	dir := t.TempDir()
	hdr := writeFile(t, dir, "hdr.yaml", []byte("nbits: 16\nnchans: 4\ntsamp: 1e-3\n"))
	in := writeFile(t, dir, "in.u8", make([]byte, 64))

	_, err := execute(t, "run", "--header", hdr, "--input", in, "--output", filepath.Join(dir, "out.u8"))
	require.Error(t, err)
}
