// Package rfi flags and replaces radio-frequency interference.
//
// Every operator takes a source buffer and returns a Result. When the
// source is not the RFI stage's own buffer the operator first takes
// ownership of the data (Owned); afterwards it works in place (Alias), so a
// chain of operators copies the block once.
package rfi

import (
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/cwbudde/algo-tfprep/internal/kernel"
	"github.com/cwbudde/algo-tfprep/log"
	"github.com/cwbudde/algo-tfprep/tf/buffer"
	"github.com/cwbudde/algo-tfprep/tf/core"
)

const stageName = "rfi"

// ErrUnknownFill is returned by ParseFillType.
var ErrUnknownFill = errors.New("rfi: unknown fill type")

// FillType selects what flagged cells are replaced with.
type FillType uint8

const (
	// FillMean replaces with the channel mean.
	FillMean FillType = iota
	// FillZero replaces with zero.
	FillZero
	// FillRand replaces with Gaussian noise of the channel mean and std.
	FillRand
)

func (f FillType) String() string {
	switch f {
	case FillMean:
		return "mean"
	case FillZero:
		return "zero"
	case FillRand:
		return "rand"
	default:
		return fmt.Sprintf("FillType(%d)", uint8(f))
	}
}

// ParseFillType parses "mean", "zero" or "rand".
func ParseFillType(s string) (FillType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "mean":
		return FillMean, nil
	case "zero":
		return FillZero, nil
	case "rand", "random":
		return FillRand, nil
	default:
		return FillMean, fmt.Errorf("%w: %q", ErrUnknownFill, s)
	}
}

// Range is a closed frequency interval in MHz.
type Range struct {
	Low  float64
	High float64
}

// Contains reports whether f lies in the range, in either orientation.
func (r Range) Contains(f float64) bool {
	lo, hi := min(r.Low, r.High), max(r.Low, r.High)
	return f >= lo && f <= hi
}

// RFI is the interference flagging stage.
type RFI[F buffer.Float] struct {
	buffer.Buffer[F]

	Fill FillType

	cfg core.StageConfig
	log logrus.FieldLogger
	ops kernel.Ops[F]
	rng *rand.Rand
}

// New returns an RFI stage using fill for flagged cells.
func New[F buffer.Float](fill FillType, opts ...core.Option) *RFI[F] {
	cfg := core.ApplyOptions(opts...)
	return &RFI[F]{
		Fill: fill,
		cfg:  cfg,
		log:  log.Stage(cfg.Logger, stageName),
		ops:  kernel.ScalarOps[F](),
		rng:  rand.New(rand.NewPCG(cfg.Seed, cfg.Seed^0x5851f42d4c957f2d)),
	}
}

// Prepare sizes the stage for src and resolves the numeric kernel.
func (r *RFI[F]) Prepare(src *buffer.Buffer[F]) error {
	ops, err := kernel.For[F](r.cfg.Kernel)
	if err != nil {
		return fmt.Errorf("rfi: %w", err)
	}
	r.ops = ops
	r.Buffer.Prepare(src)
	r.log.WithFields(logrus.Fields{
		"nsamples": src.NSamples,
		"nchans":   src.NChans,
		"fill":     r.Fill,
	}).Debug("prepare")
	return nil
}

// take returns the buffer an operator works on: the stage's own buffer,
// after copying src into it when src lives elsewhere.
func (r *RFI[F]) take(src *buffer.Buffer[F]) (*buffer.Buffer[F], buffer.Result[F]) {
	if src == &r.Buffer {
		return src, buffer.Alias(src)
	}
	res := r.Buffer.Run(src)
	return &r.Buffer, res
}

func (r *RFI[F]) record(op string, cells int, start time.Time) {
	r.cfg.Recorder.Flagged(op, cells)
	r.cfg.Recorder.Observe(stageName+"_"+op, time.Since(start))
	r.log.WithFields(logrus.Fields{"op": op, "cells": cells}).Debug("flagged")
}

// stats returns the mean and standard deviation of column j.
func stats[F buffer.Float](x *buffer.Buffer[F], j int) (float64, float64) {
	mean := x.Means[j]
	v := x.Vars[j]
	if v <= 0 || math.IsNaN(v) {
		return mean, 1
	}
	return mean, math.Sqrt(v)
}

// fillValue returns the replacement for a flagged cell of column j.
func (r *RFI[F]) fillValue(x *buffer.Buffer[F], j int) F {
	switch r.Fill {
	case FillZero:
		return 0
	case FillRand:
		mean, std := stats(x, j)
		return F(mean + std*r.rng.NormFloat64())
	default:
		return F(x.Means[j])
	}
}

// fillRect replaces rows [i0, i1) x columns [j0, j1) and returns the
// number of replaced cells.
func (r *RFI[F]) fillRect(x *buffer.Buffer[F], i0, i1, j0, j1 int) int {
	for i := i0; i < i1; i++ {
		row := x.Row(i)
		for j := j0; j < j1; j++ {
			row[j] = r.fillValue(x, j)
		}
	}
	return (i1 - i0) * (j1 - j0)
}

// fillColumns replaces every sample of the marked columns.
func (r *RFI[F]) fillColumns(x *buffer.Buffer[F], cols []bool) int {
	if r.Fill == FillRand {
		n := 0
		for j, c := range cols {
			if c {
				n += r.fillRect(x, 0, x.NSamples, j, j+1)
			}
		}
		return n
	}

	vals := make([]F, x.NChans)
	for j := range vals {
		vals[j] = r.fillValue(x, j)
	}
	r.cfg.Pool.For(x.NSamples, func(lo, hi int) {
		for i := lo; i < hi; i++ {
			row := x.Row(i)
			for j, c := range cols {
				if c {
					row[j] = vals[j]
				}
			}
		}
	})

	n := 0
	for _, c := range cols {
		if c {
			n += x.NSamples
		}
	}
	return n
}
