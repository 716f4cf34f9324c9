package stream

import (
	"errors"
	"log/slog"
	"os"
	"time"

	"github.com/MrWong99/opusstream/pkg/codec"
)

// Defaults applied to zero-valued configuration fields.
const (
	DefaultFrameDuration = 20 * time.Millisecond
	DefaultMaxBuffered   = 10 * time.Second
)

// ErrInvalidConfig is wrapped by constructor errors caused by bad settings.
var ErrInvalidConfig = errors.New("stream: invalid config")

// Observer receives per-event notifications from a block. Implementations
// must be cheap; they run inline on the Work path.
type Observer interface {
	// Trimmed reports n units (unit is "samples" or "bytes") dropped by a
	// buffer cap.
	Trimmed(unit string, n int)

	// FrameEncoded reports a packet of size bytes written to the output.
	FrameEncoded(size int)

	// EncodeFailed reports a frame abandoned because the codec rejected it.
	EncodeFailed()

	// Deferred reports an encoded packet that did not fit the remaining
	// output capacity; its frame stays buffered.
	Deferred()

	// PacketDecoded reports a packet accepted by the decoder, yielding
	// samples interleaved samples.
	PacketDecoded(samples int)

	// DecodeFailed reports a fixed-size packet dropped as undecodable.
	DecodeFailed()

	// SearchFinished reports the end of one blind boundary search after
	// trials trial decodes.
	SearchFinished(trials int, accepted bool)

	// SilentCandidate reports a candidate length rejected as silent.
	SilentCandidate()

	// Concealed reports a concealment attempt covering lost frames, of
	// which recovered were reconstructed.
	Concealed(lost, recovered int)
}

type nopObserver struct{}

func (nopObserver) Trimmed(string, int)      {}
func (nopObserver) FrameEncoded(int)         {}
func (nopObserver) EncodeFailed()            {}
func (nopObserver) Deferred()                {}
func (nopObserver) PacketDecoded(int)        {}
func (nopObserver) DecodeFailed()            {}
func (nopObserver) SearchFinished(int, bool) {}
func (nopObserver) SilentCandidate()         {}
func (nopObserver) Concealed(int, int)       {}

type options struct {
	log *slog.Logger
	obs Observer
	tap func([]byte)
}

// Option configures an [Encoder] or [Decoder] during construction.
type Option func(*options)

// WithLogger sets the logger used for diagnostic events. Defaults to
// [slog.Default].
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.log = l
		}
	}
}

// WithObserver installs an [Observer] for metrics collection.
func WithObserver(obs Observer) Option {
	return func(o *options) {
		if obs != nil {
			o.obs = obs
		}
	}
}

// WithPacketTap registers fn to be called with every packet an [Encoder]
// writes to its output. The slice aliases the caller's output region and
// must not be retained. Decoders ignore this option.
func WithPacketTap(fn func(packet []byte)) Option {
	return func(o *options) {
		o.tap = fn
	}
}

func buildOptions(opts []Option) options {
	o := options{log: slog.Default(), obs: nopObserver{}}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// installModel reads the acoustic-model blob at path and installs it into
// primary, and into extra handles that accept one.
func installModel(path string, primary any, extra ...any) error {
	blob, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	loader, ok := primary.(codec.ModelLoader)
	if !ok {
		return codec.ErrModelUnsupported
	}
	if err := loader.LoadModel(blob); err != nil {
		return err
	}
	for _, h := range extra {
		if l, ok := h.(codec.ModelLoader); ok {
			if err := l.LoadModel(blob); err != nil {
				return err
			}
		}
	}
	return nil
}
