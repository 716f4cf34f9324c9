// Package runner drives a streaming block over an input source and an output
// sink.
//
// Each cycle reads at most one chunk of input, hands it to the block together
// with a fixed output capacity, and writes whatever the block produced. After
// the input ends the runner keeps calling the block with empty input until it
// stops making progress, so spilled output and buffered frames are flushed.
package runner

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/MrWong99/opusstream/internal/health"
	"github.com/MrWong99/opusstream/internal/observe"
)

// Block is a streaming encoder or decoder. Work consumes in and writes up to
// len(out) units, returning how many were written. Buffered reports the input
// units still held by the block.
type Block[In, Out any] interface {
	Work(in []In, out []Out) int
	Buffered() int
}

// Source reads up to len(buf) input units. It returns io.EOF once the input
// is exhausted.
type Source[T any] interface {
	Read(buf []T) (int, error)
}

// Sink writes every unit of its argument or returns an error.
type Sink[T any] interface {
	Write(units []T) error
}

// Stats summarises a finished run.
type Stats struct {
	Cycles int64
	In     int64
	Out    int64
	// Leftover is the number of input units still buffered in the block when
	// the drain stopped.
	Leftover int
}

// Option configures a [Runner].
type Option func(*options)

type options struct {
	metrics *observe.Metrics
	state   *health.State
}

// WithMetrics records cycle latency and active stream count into m.
func WithMetrics(m *observe.Metrics) Option {
	return func(o *options) { o.metrics = m }
}

// WithHealth reports the runner lifecycle into s.
func WithHealth(s *health.State) Option {
	return func(o *options) { o.state = s }
}

// Runner moves units from a Source through a Block into a Sink.
type Runner[In, Out any] struct {
	name     string
	block    Block[In, Out]
	src      Source[In]
	dst      Sink[Out]
	chunk    int
	capacity int
	opts     options
	attrs    metric.MeasurementOption
}

// New returns a Runner. name labels spans, logs and metrics. chunk and
// capacity are the input and output units per cycle and must be positive.
func New[In, Out any](name string, block Block[In, Out], src Source[In], dst Sink[Out], chunk, capacity int, opts ...Option) (*Runner[In, Out], error) {
	if chunk <= 0 || capacity <= 0 {
		return nil, fmt.Errorf("runner: chunk size %d and output capacity %d must be positive", chunk, capacity)
	}
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	return &Runner[In, Out]{
		name:     name,
		block:    block,
		src:      src,
		dst:      dst,
		chunk:    chunk,
		capacity: capacity,
		opts:     o,
		attrs:    metric.WithAttributes(attribute.String("block", name)),
	}, nil
}

// Run processes the source to its end, then drains the block. It returns
// early with ctx's error when ctx is cancelled.
func (r *Runner[In, Out]) Run(ctx context.Context) (stats Stats, err error) {
	ctx, span := observe.StartSpan(ctx, "runner."+r.name)
	defer span.End()
	log := observe.Logger(ctx).With("block", r.name)

	if m := r.opts.metrics; m != nil {
		m.ActiveStreams.Add(ctx, 1, r.attrs)
		defer m.ActiveStreams.Add(ctx, -1, r.attrs)
	}
	if s := r.opts.state; s != nil {
		s.SetReady()
		defer func() { s.SetDone(err) }()
	}

	log.Info("runner started", "chunk_size", r.chunk, "output_capacity", r.capacity)
	defer func() {
		if err != nil {
			span.RecordError(err)
		}
		log.Info("runner finished", "cycles", stats.Cycles, "in", stats.In, "out", stats.Out,
			"leftover", stats.Leftover, "err", err)
	}()

	in := make([]In, r.chunk)
	out := make([]Out, r.capacity)

	for {
		if err := ctx.Err(); err != nil {
			return stats, err
		}
		n, rerr := r.src.Read(in)
		if n > 0 {
			stats.In += int64(n)
			if _, err := r.cycle(ctx, in[:n], out, &stats); err != nil {
				return stats, err
			}
		}
		if errors.Is(rerr, io.EOF) {
			break
		}
		if rerr != nil {
			return stats, fmt.Errorf("runner: read: %w", rerr)
		}
	}

	for {
		if err := ctx.Err(); err != nil {
			return stats, err
		}
		before := r.block.Buffered()
		produced, err := r.cycle(ctx, nil, out, &stats)
		if err != nil {
			return stats, err
		}
		if produced == 0 && r.block.Buffered() >= before {
			break
		}
	}
	stats.Leftover = r.block.Buffered()
	return stats, nil
}

// cycle runs the block once and writes its output.
func (r *Runner[In, Out]) cycle(ctx context.Context, in []In, out []Out, stats *Stats) (int, error) {
	start := time.Now()
	produced := r.block.Work(in, out)
	if m := r.opts.metrics; m != nil {
		m.CycleDuration.Record(ctx, time.Since(start).Seconds(), r.attrs)
	}
	stats.Cycles++
	if produced == 0 {
		return 0, nil
	}
	stats.Out += int64(produced)
	if err := r.dst.Write(out[:produced]); err != nil {
		return produced, fmt.Errorf("runner: write: %w", err)
	}
	return produced, nil
}
