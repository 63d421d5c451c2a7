package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/cwbudde/algo-tfprep/config"
	"github.com/cwbudde/algo-tfprep/metrics"
	"github.com/cwbudde/algo-tfprep/pipeline"
	"github.com/cwbudde/algo-tfprep/stream"
	"github.com/cwbudde/algo-tfprep/tf/buffer"
	"github.com/cwbudde/algo-tfprep/tf/core"
)

type runOptions struct {
	config      string
	header      string
	input       string
	output      string
	nsamples    int
	rms         float64
	ringBlocks  int
	metricsAddr string
	stat        bool
	flip        bool
	statsOut    string
}

func newRunCommand(logger *logrus.Logger) *cobra.Command {
	opts := runOptions{}
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Condition an 8-bit filterbank file",
		Long: `Stream an 8-bit filterbank file through the conditioning pipeline and
write the result as 8-bit samples. The header is a YAML or JSON document
with nifs, nbits, nchans, tsamp, fch1 and foff.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runFile(cmd.Context(), opts, logger)
		},
	}
	f := cmd.Flags()
	f.StringVarP(&opts.config, "config", "c", "", "Pipeline configuration file")
	f.StringVar(&opts.header, "header", "", "Stream header file (required)")
	f.StringVarP(&opts.input, "input", "i", "", "Raw 8-bit input file (required)")
	f.StringVarP(&opts.output, "output", "o", "", "8-bit output file (required)")
	f.IntVarP(&opts.nsamples, "nsamples", "n", 1024, "Time samples per block")
	f.Float64Var(&opts.rms, "rms", stream.DefaultRMS, "Output standard deviation in 8-bit units")
	f.IntVar(&opts.ringBlocks, "ring-blocks", 4, "Ring buffer size in blocks")
	f.StringVar(&opts.metricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address while running")
	f.BoolVar(&opts.stat, "stat", false, "Weight and rescale channels from running channel statistics")
	f.BoolVar(&opts.flip, "flip", false, "Reverse the channel order of the output")
	f.StringVar(&opts.statsOut, "stats-out", "", "Write per-channel histogram statistics of the output as YAML")
	for _, name := range []string{"header", "input", "output"} {
		_ = cmd.MarkFlagRequired(name)
	}
	return cmd
}

func runFile(ctx context.Context, opts runOptions, logger *logrus.Logger) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if opts.nsamples < 1 {
		return fmt.Errorf("nsamples must be positive, got %d", opts.nsamples)
	}

	cfg, err := config.Load(opts.config)
	if err != nil {
		return err
	}
	hdr, err := readHeader(opts.header)
	if err != nil {
		return err
	}

	in, err := os.Open(opts.input)
	if err != nil {
		return fmt.Errorf("open input: %w", err)
	}
	defer in.Close()
	out, err := os.Create(opts.output)
	if err != nil {
		return fmt.Errorf("create output: %w", err)
	}
	defer out.Close()

	reg := prometheus.NewRegistry()
	m, err := metrics.New(reg)
	if err != nil {
		return err
	}
	if opts.metricsAddr != "" {
		stop := serveMetrics(opts.metricsAddr, reg, logger)
		defer stop()
	}
	stageOpts := []core.Option{core.WithLogger(logger), core.WithRecorder(m)}

	reader, err := stream.NewRingReader(hdr, max(opts.ringBlocks, 1)*opts.nsamples*hdr.RowBytes(), stageOpts...)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	reader.Start(ctx, in)

	block := hdr.NewBuffer(opts.nsamples)
	p, err := pipeline.New[float32](cfg, stageOpts...)
	if err != nil {
		return err
	}
	if err := p.Prepare(block); err != nil {
		return err
	}

	extra, err := newPost(opts, &p.Buffer, stageOpts)
	if err != nil {
		return err
	}

	w := bufio.NewWriter(out)
	q := stream.NewQuantizer[float32](w, opts.rms, stageOpts...)

	skip := p.Offset()
	var chunk, total int
	start := time.Now()
	for !reader.IsEnd() {
		n, err := reader.Read(block, opts.nsamples)
		if err != nil {
			return err
		}
		if n == 0 {
			break
		}
		clear(block.Samples[n*block.NChans:])

		res := p.Run(block).Buf
		rows := min(n*p.NSamples/opts.nsamples, res.NSamples)
		view := trim(res, min(skip, rows), rows)
		skip -= min(skip, rows)
		final, err := extra.condition(view)
		if err != nil {
			return err
		}
		if err := q.Write(final, view.NSamples); err != nil {
			return err
		}
		extra.count(q.Block(), view.NSamples)

		chunk++
		total += n
		logger.WithFields(logrus.Fields{
			"chunk":   chunk,
			"samples": total,
			"seconds": float64(total) * hdr.TSamp,
		}).Info("processed")
	}

	cancel()
	if err := reader.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	if err := w.Flush(); err != nil {
		return fmt.Errorf("flush output: %w", err)
	}
	if err := extra.writeReport(opts.statsOut); err != nil {
		return err
	}
	logger.WithFields(logrus.Fields{
		"chunks":  chunk,
		"samples": total,
		"gain":    q.Gain(),
		"offset":  q.Offset(),
		"elapsed": time.Since(start).Round(time.Millisecond),
	}).Info("done")
	return nil
}

// trim returns rows [from, to) of b without copying. The view never owns
// the storage.
func trim(b *buffer.Buffer[float32], from, to int) *buffer.Buffer[float32] {
	v := *b
	v.Samples = b.Samples[from*b.NChans : to*b.NChans]
	v.NSamples = to - from
	v.Closable = false
	return &v
}

func readHeader(path string) (stream.Header, error) {
	f, err := os.Open(path)
	if err != nil {
		return stream.Header{}, fmt.Errorf("open header: %w", err)
	}
	defer f.Close()
	return stream.ReadHeader(f)
}

func serveMetrics(addr string, reg *prometheus.Registry, logger logrus.FieldLogger) func() {
	mux := http.NewServeMux()
	mux.Handle(metrics.Path, metrics.Handler(reg))
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithError(err).Error("metrics server")
		}
	}()
	logger.WithField("addr", addr).Info("serving metrics")
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}
}
