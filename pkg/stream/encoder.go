package stream

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/MrWong99/opusstream/pkg/audio"
	"github.com/MrWong99/opusstream/pkg/codec"
)

// EncoderConfig configures an [Encoder].
type EncoderConfig struct {
	// SampleRate of the input in Hz.
	SampleRate int

	// Channels interleaved in the input.
	Channels int

	// Bitrate is the codec's target bitrate in bits per second.
	Bitrate int

	// Application selects the codec tuning profile.
	Application codec.Application

	// FrameDuration is the length of one codec frame. Default: 20 ms.
	FrameDuration time.Duration

	// MaxBuffered bounds how much input audio is retained while waiting for
	// output capacity. Older samples are dropped first. Default: 10 s.
	MaxBuffered time.Duration

	// ModelPath optionally names an acoustic-model blob to install into the
	// codec. Failure to read or install it is a construction error.
	ModelPath string
}

func (c EncoderConfig) withDefaults() EncoderConfig {
	if c.FrameDuration == 0 {
		c.FrameDuration = DefaultFrameDuration
	}
	if c.MaxBuffered == 0 {
		c.MaxBuffered = DefaultMaxBuffered
	}
	return c
}

func (c EncoderConfig) format() audio.Format {
	return audio.Format{SampleRate: c.SampleRate, Channels: c.Channels}
}

func (c EncoderConfig) validate() error {
	if c.SampleRate <= 0 || c.Channels <= 0 {
		return fmt.Errorf("%w: sample rate %d and channels %d must be positive", ErrInvalidConfig, c.SampleRate, c.Channels)
	}
	f := c.format()
	if f.FrameSize(c.FrameDuration) <= 0 {
		return fmt.Errorf("%w: frame duration %v holds no samples at %d Hz", ErrInvalidConfig, c.FrameDuration, c.SampleRate)
	}
	if f.FrameSamples(c.MaxBuffered) < f.FrameSamples(c.FrameDuration) {
		return fmt.Errorf("%w: max buffered %v is shorter than one frame", ErrInvalidConfig, c.MaxBuffered)
	}
	return nil
}

// Encoder turns arbitrarily chunked samples into a contiguous stream of
// encoded packets.
type Encoder struct {
	enc          codec.Encoder
	samples      *SampleBuffer
	frameSize    int // samples per channel
	frameSamples int // interleaved samples per frame
	pcm          []int16
	packet       []byte

	log *slog.Logger
	obs Observer
	tap func([]byte)
}

// NewEncoder creates the codec through backend and returns a ready block.
// The block owns the codec handle; call [Encoder.Close] to release it.
func NewEncoder(cfg EncoderConfig, backend codec.Backend, opts ...Option) (*Encoder, error) {
	cfg = cfg.withDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	o := buildOptions(opts)

	enc, err := backend.NewEncoder(cfg.SampleRate, cfg.Channels, cfg.Application, cfg.Bitrate)
	if err != nil {
		return nil, fmt.Errorf("stream: create encoder: %w", err)
	}
	if cfg.ModelPath != "" {
		if err := installModel(cfg.ModelPath, enc); err != nil {
			enc.Close()
			return nil, fmt.Errorf("stream: load model %q: %w", cfg.ModelPath, err)
		}
	}

	f := cfg.format()
	frameSamples := f.FrameSamples(cfg.FrameDuration)
	return &Encoder{
		enc:          enc,
		samples:      NewBuffer[float32](f.FrameSamples(cfg.MaxBuffered)),
		frameSize:    f.FrameSize(cfg.FrameDuration),
		frameSamples: frameSamples,
		pcm:          make([]int16, frameSamples),
		packet:       make([]byte, codec.MaxPacketSize),
		log:          o.log,
		obs:          o.obs,
		tap:          o.tap,
	}, nil
}

// Work buffers in, then encodes as many whole frames as fit into out and
// returns the number of bytes written. Packets are never split across calls:
// a packet that does not fit leaves its frame at the front of the buffer.
// An encode failure drops the offending frame and ends the call.
func (e *Encoder) Work(in []float32, out []byte) int {
	if dropped := e.samples.Push(in); dropped > 0 {
		e.obs.Trimmed("samples", dropped)
		e.log.Debug("stream: encoder buffer full, dropped oldest samples", "dropped", dropped)
	}

	written := 0
	for e.samples.Len() >= e.frameSamples && written < len(out) {
		audio.FloatsToInt16s(e.pcm, e.samples.Peek(e.frameSamples))

		n, err := e.enc.Encode(e.pcm, e.frameSize, e.packet)
		if err != nil {
			e.samples.Discard(e.frameSamples)
			e.obs.EncodeFailed()
			e.log.Debug("stream: encode failed, frame dropped", "err", err)
			break
		}
		if written+n > len(out) {
			e.obs.Deferred()
			break
		}

		e.samples.Discard(e.frameSamples)
		copy(out[written:], e.packet[:n])
		if e.tap != nil {
			e.tap(out[written : written+n])
		}
		e.obs.FrameEncoded(n)
		written += n
	}
	return written
}

// Buffered returns the number of interleaved samples awaiting encoding.
func (e *Encoder) Buffered() int { return e.samples.Len() }

// MaxBuffered returns the sample buffer's retention cap.
func (e *Encoder) MaxBuffered() int { return e.samples.Max() }

// FrameSize returns the number of interleaved samples per frame.
func (e *Encoder) FrameSize() int { return e.frameSamples }

// Reset discards buffered samples. The codec handle is kept.
func (e *Encoder) Reset() { e.samples.Reset() }

// Close releases the codec handle.
func (e *Encoder) Close() error {
	if e.enc == nil {
		return nil
	}
	err := e.enc.Close()
	e.enc = nil
	return err
}
