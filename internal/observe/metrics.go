// Package observe provides the observability primitives shared by the
// opusstream commands: OpenTelemetry metrics, tracing, trace-aware structured
// logging, and HTTP middleware for the admin endpoints.
//
// Metrics are recorded through the OpenTelemetry Metrics API. A Prometheus
// exporter bridge is installed by [InitProvider] so that metrics can be
// scraped via the standard /metrics endpoint. A package-level default
// [Metrics] instance ([DefaultMetrics]) is provided for convenience; tests
// should use [NewMetrics] with a custom [metric.MeterProvider] to avoid
// cross-test pollution.
package observe

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/MrWong99/opusstream/pkg/stream"
)

// meterName is the instrumentation scope name used for all opusstream metrics.
const meterName = "github.com/MrWong99/opusstream"

// Metrics holds all OpenTelemetry metric instruments for the application.
// All fields are safe for concurrent use.
type Metrics struct {
	// --- Encoder ---

	// FramesEncoded counts packets written by encoder blocks.
	FramesEncoded metric.Int64Counter

	// PacketSize tracks the byte length of encoded packets.
	PacketSize metric.Int64Histogram

	// EncodeFailures counts frames dropped because the codec rejected them.
	EncodeFailures metric.Int64Counter

	// Deferred counts packets held back because the output was full.
	Deferred metric.Int64Counter

	// --- Decoder ---

	// PacketsDecoded counts packets accepted by decoder blocks.
	PacketsDecoded metric.Int64Counter

	// DecodeFailures counts fixed-size packets dropped as undecodable.
	DecodeFailures metric.Int64Counter

	// SearchTrials tracks trial decodes per blind boundary search. Use with
	// attribute:
	//   attribute.Bool("accepted", ...)
	SearchTrials metric.Int64Histogram

	// SilentCandidates counts blind-search candidates rejected as silent.
	SilentCandidates metric.Int64Counter

	// FramesLost counts frames lost to undecodable packets while concealment
	// is enabled.
	FramesLost metric.Int64Counter

	// FramesRecovered counts frames reconstructed from redundancy data.
	FramesRecovered metric.Int64Counter

	// --- Buffers ---

	// Trimmed counts units dropped by buffer caps. Use with attribute:
	//   attribute.String("unit", "samples"|"bytes")
	Trimmed metric.Int64Counter

	// --- Runner ---

	// CycleDuration tracks the latency of one read-work-write cycle.
	CycleDuration metric.Float64Histogram

	// ActiveStreams tracks the number of running stream pipelines.
	ActiveStreams metric.Int64UpDownCounter

	// --- HTTP middleware ---

	// HTTPRequestDuration tracks admin request processing time. Use with
	// attributes:
	//   attribute.String("method", ...), attribute.String("path", ...)
	HTTPRequestDuration metric.Float64Histogram
}

// cycleBuckets defines histogram bucket boundaries (in seconds) for one
// scheduling cycle of a block.
var cycleBuckets = []float64{
	0.0001, 0.00025, 0.0005, 0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1,
}

// trialBuckets covers the range of trial decodes a blind search can make.
var trialBuckets = []float64{1, 2, 5, 10, 20, 30, 40, 50}

// packetBuckets covers typical packet sizes in bytes.
var packetBuckets = []float64{16, 32, 64, 128, 256, 512, 1024, 2048, 4000}

// NewMetrics creates a fully initialised [Metrics] struct using the given
// [metric.MeterProvider]. Returns an error if any instrument creation fails.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	// Encoder.
	if met.FramesEncoded, err = m.Int64Counter("opusstream.encoder.frames",
		metric.WithDescription("Total packets written by encoder blocks."),
	); err != nil {
		return nil, err
	}
	if met.PacketSize, err = m.Int64Histogram("opusstream.encoder.packet.size",
		metric.WithDescription("Size of encoded packets."),
		metric.WithUnit("By"),
		metric.WithExplicitBucketBoundaries(packetBuckets...),
	); err != nil {
		return nil, err
	}
	if met.EncodeFailures, err = m.Int64Counter("opusstream.encoder.failures",
		metric.WithDescription("Total frames dropped after an encode failure."),
	); err != nil {
		return nil, err
	}
	if met.Deferred, err = m.Int64Counter("opusstream.encoder.deferred",
		metric.WithDescription("Total packets deferred for lack of output capacity."),
	); err != nil {
		return nil, err
	}

	// Decoder.
	if met.PacketsDecoded, err = m.Int64Counter("opusstream.decoder.packets",
		metric.WithDescription("Total packets accepted by decoder blocks."),
	); err != nil {
		return nil, err
	}
	if met.DecodeFailures, err = m.Int64Counter("opusstream.decoder.failures",
		metric.WithDescription("Total fixed-size packets dropped as undecodable."),
	); err != nil {
		return nil, err
	}
	if met.SearchTrials, err = m.Int64Histogram("opusstream.decoder.search.trials",
		metric.WithDescription("Trial decodes per blind boundary search."),
		metric.WithExplicitBucketBoundaries(trialBuckets...),
	); err != nil {
		return nil, err
	}
	if met.SilentCandidates, err = m.Int64Counter("opusstream.decoder.search.silent",
		metric.WithDescription("Total blind-search candidates rejected as silent."),
	); err != nil {
		return nil, err
	}
	if met.FramesLost, err = m.Int64Counter("opusstream.conceal.lost",
		metric.WithDescription("Total frames lost with concealment enabled."),
	); err != nil {
		return nil, err
	}
	if met.FramesRecovered, err = m.Int64Counter("opusstream.conceal.recovered",
		metric.WithDescription("Total frames reconstructed from redundancy data."),
	); err != nil {
		return nil, err
	}

	// Buffers.
	if met.Trimmed, err = m.Int64Counter("opusstream.buffer.trimmed",
		metric.WithDescription("Total units dropped by buffer caps, by unit."),
	); err != nil {
		return nil, err
	}

	// Runner.
	if met.CycleDuration, err = m.Float64Histogram("opusstream.runner.cycle.duration",
		metric.WithDescription("Latency of one read-work-write cycle."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(cycleBuckets...),
	); err != nil {
		return nil, err
	}
	if met.ActiveStreams, err = m.Int64UpDownCounter("opusstream.active_streams",
		metric.WithDescription("Number of running stream pipelines."),
	); err != nil {
		return nil, err
	}

	// HTTP middleware histogram.
	if met.HTTPRequestDuration, err = m.Float64Histogram("opusstream.http.request.duration",
		metric.WithDescription("Admin HTTP request latency by method and path."),
		metric.WithUnit("s"),
	); err != nil {
		return nil, err
	}

	return met, nil
}

// defaultMetrics is the lazily-initialised package-level Metrics instance.
var (
	defaultMetrics     *Metrics
	defaultMetricsOnce sync.Once
)

// DefaultMetrics returns the package-level [Metrics] instance, creating it on
// first call using [otel.GetMeterProvider]. Subsequent calls return the same
// pointer. Panics if instrument creation fails.
func DefaultMetrics() *Metrics {
	defaultMetricsOnce.Do(func() {
		var err error
		defaultMetrics, err = NewMetrics(otel.GetMeterProvider())
		if err != nil {
			panic("observe: failed to create default metrics: " + err.Error())
		}
	})
	return defaultMetrics
}

// Attr is a convenience alias for [attribute.String] to reduce verbosity at
// call sites.
func Attr(key, value string) attribute.KeyValue {
	return attribute.String(key, value)
}

// BlockObserver records the events of one encoder or decoder block into
// [Metrics]. Every measurement carries a "block" attribute naming the block.
type BlockObserver struct {
	m     *Metrics
	ctx   context.Context
	block metric.MeasurementOption
}

var _ stream.Observer = (*BlockObserver)(nil)

// Observer returns a [stream.Observer] that records under the given block
// name. ctx is attached to every measurement.
func (m *Metrics) Observer(ctx context.Context, block string) *BlockObserver {
	return &BlockObserver{
		m:     m,
		ctx:   ctx,
		block: metric.WithAttributes(attribute.String("block", block)),
	}
}

// Trimmed implements [stream.Observer].
func (o *BlockObserver) Trimmed(unit string, n int) {
	o.m.Trimmed.Add(o.ctx, int64(n), o.block, metric.WithAttributes(attribute.String("unit", unit)))
}

// FrameEncoded implements [stream.Observer].
func (o *BlockObserver) FrameEncoded(size int) {
	o.m.FramesEncoded.Add(o.ctx, 1, o.block)
	o.m.PacketSize.Record(o.ctx, int64(size), o.block)
}

// EncodeFailed implements [stream.Observer].
func (o *BlockObserver) EncodeFailed() { o.m.EncodeFailures.Add(o.ctx, 1, o.block) }

// Deferred implements [stream.Observer].
func (o *BlockObserver) Deferred() { o.m.Deferred.Add(o.ctx, 1, o.block) }

// PacketDecoded implements [stream.Observer].
func (o *BlockObserver) PacketDecoded(int) { o.m.PacketsDecoded.Add(o.ctx, 1, o.block) }

// DecodeFailed implements [stream.Observer].
func (o *BlockObserver) DecodeFailed() { o.m.DecodeFailures.Add(o.ctx, 1, o.block) }

// SearchFinished implements [stream.Observer].
func (o *BlockObserver) SearchFinished(trials int, accepted bool) {
	o.m.SearchTrials.Record(o.ctx, int64(trials), o.block,
		metric.WithAttributes(attribute.Bool("accepted", accepted)))
}

// SilentCandidate implements [stream.Observer].
func (o *BlockObserver) SilentCandidate() { o.m.SilentCandidates.Add(o.ctx, 1, o.block) }

// Concealed implements [stream.Observer].
func (o *BlockObserver) Concealed(lost, recovered int) {
	o.m.FramesLost.Add(o.ctx, int64(lost), o.block)
	if recovered > 0 {
		o.m.FramesRecovered.Add(o.ctx, int64(recovered), o.block)
	}
}
