package stream

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/MrWong99/opusstream/pkg/audio"
	"github.com/MrWong99/opusstream/pkg/codec"
)

// DecoderConfig configures a [Decoder].
type DecoderConfig struct {
	// SampleRate of the output in Hz.
	SampleRate int

	// Channels interleaved in the output.
	Channels int

	// PacketSize is the fixed length of every packet in bytes. Zero selects
	// blind boundary search.
	PacketSize int

	// FrameDuration is the longest frame a single packet decodes to.
	// Default: 20 ms.
	FrameDuration time.Duration

	// Concealment enables redundancy-based recovery of frames lost to
	// undecodable fixed-size packets.
	Concealment bool

	// ModelPath optionally names an acoustic-model blob to install into the
	// codec. Failure to read or install it is a construction error.
	ModelPath string
}

func (c DecoderConfig) withDefaults() DecoderConfig {
	if c.FrameDuration == 0 {
		c.FrameDuration = DefaultFrameDuration
	}
	return c
}

func (c DecoderConfig) validate() error {
	if c.SampleRate <= 0 || c.Channels <= 0 {
		return fmt.Errorf("%w: sample rate %d and channels %d must be positive", ErrInvalidConfig, c.SampleRate, c.Channels)
	}
	if c.PacketSize < 0 {
		return fmt.Errorf("%w: packet size %d is negative", ErrInvalidConfig, c.PacketSize)
	}
	if c.PacketSize > MaxBufferedBytes {
		return fmt.Errorf("%w: packet size %d exceeds the %d byte buffer", ErrInvalidConfig, c.PacketSize, MaxBufferedBytes)
	}
	f := audio.Format{SampleRate: c.SampleRate, Channels: c.Channels}
	if f.FrameSize(c.FrameDuration) <= 0 {
		return fmt.Errorf("%w: frame duration %v holds no samples at %d Hz", ErrInvalidConfig, c.FrameDuration, c.SampleRate)
	}
	return nil
}

// Decoder turns an unframed stream of packet bytes into normalised samples.
type Decoder struct {
	dec        codec.Decoder
	conceal    concealer
	bytes      *ByteBuffer
	pending    *SampleBuffer // decoded samples awaiting output capacity
	packetSize int
	frameSize  int // samples per channel
	channels   int
	pcm        []int16
	floats     []float32

	log *slog.Logger
	obs Observer
}

// NewDecoder creates the codec handles through backend and returns a ready
// block. With cfg.Concealment set, a dedicated redundancy handle is created
// as well. Every handle acquired before a failing step is released before
// the error is returned. The block owns the handles; call [Decoder.Close]
// to release them.
func NewDecoder(cfg DecoderConfig, backend codec.Backend, opts ...Option) (*Decoder, error) {
	cfg = cfg.withDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	o := buildOptions(opts)
	f := audio.Format{SampleRate: cfg.SampleRate, Channels: cfg.Channels}
	frameSize := f.FrameSize(cfg.FrameDuration)

	dec, err := backend.NewDecoder(cfg.SampleRate, cfg.Channels)
	if err != nil {
		return nil, fmt.Errorf("stream: create decoder: %w", err)
	}

	var conceal concealer = noConcealment{}
	var red codec.Redundancy
	if cfg.Concealment {
		red, err = backend.NewRedundancy(cfg.SampleRate, cfg.Channels)
		if err != nil {
			dec.Close()
			return nil, fmt.Errorf("stream: create redundancy decoder: %w", err)
		}
		conceal = newRedundancyConcealment(red, frameSize, cfg.Channels, o)
	}

	if cfg.ModelPath != "" {
		var extra []any
		if red != nil {
			extra = append(extra, red)
		}
		if err := installModel(cfg.ModelPath, dec, extra...); err != nil {
			err = errors.Join(err, conceal.close(), dec.Close())
			return nil, fmt.Errorf("stream: load model %q: %w", cfg.ModelPath, err)
		}
	}

	return &Decoder{
		dec:        dec,
		conceal:    conceal,
		bytes:      NewBuffer[byte](MaxBufferedBytes),
		pending:    NewBuffer[float32](f.FrameSamples(DefaultMaxBuffered)),
		packetSize: cfg.PacketSize,
		frameSize:  frameSize,
		channels:   cfg.Channels,
		pcm:        make([]int16, frameSize*cfg.Channels),
		floats:     make([]float32, frameSize*cfg.Channels),
		log:        o.log,
		obs:        o.obs,
	}, nil
}

// Work buffers in, then decodes packets until out is full or no further
// packet can be framed, and returns the number of samples written. Samples
// decoded beyond the capacity of out are held and written first on the next
// call.
func (d *Decoder) Work(in []byte, out []float32) int {
	if dropped := d.bytes.Push(in); dropped > 0 {
		d.obs.Trimmed("bytes", dropped)
		d.log.Debug("stream: decoder buffer full, dropped oldest bytes", "dropped", dropped)
	}

	written := d.drain(out)
	for written < len(out) {
		var ok bool
		if d.packetSize > 0 {
			ok = d.nextFixed()
		} else {
			ok = d.nextBlind()
		}
		if !ok {
			break
		}
		written += d.drain(out[written:])
	}
	return written
}

// nextFixed slices fixed-size packets off the buffer until one decodes.
// Undecodable packets are dropped and counted as losses.
func (d *Decoder) nextFixed() bool {
	for d.bytes.Len() >= d.packetSize {
		packet := d.bytes.Peek(d.packetSize)
		n, err := d.dec.Decode(packet, d.pcm, d.frameSize)
		if err != nil {
			d.bytes.Discard(d.packetSize)
			d.conceal.lost()
			d.obs.DecodeFailed()
			continue
		}
		d.conceal.recover(packet, d.emit)
		d.emitPCM(d.pcm[:n*d.channels])
		d.obs.PacketDecoded(n * d.channels)
		d.bytes.Discard(d.packetSize)
		return true
	}
	return false
}

// nextBlind searches for the next packet boundary by trial-decoding every
// candidate length in ascending order. The first candidate that decodes to
// non-silent audio is accepted. Rejected candidates consume nothing.
func (d *Decoder) nextBlind() bool {
	trials := 0
	for _, size := range Candidates(d.bytes.Len()) {
		trials++
		n, err := d.dec.Decode(d.bytes.Peek(size), d.pcm, d.frameSize)
		if err != nil {
			continue
		}
		pcm := d.pcm[:n*d.channels]
		if audio.IsSilent(pcm, SilenceThreshold) {
			d.obs.SilentCandidate()
			continue
		}
		d.emitPCM(pcm)
		d.bytes.Discard(size)
		d.obs.PacketDecoded(len(pcm))
		d.obs.SearchFinished(trials, true)
		return true
	}
	if trials > 0 {
		d.obs.SearchFinished(trials, false)
	}
	return false
}

// emit queues decoded samples for output.
func (d *Decoder) emit(samples []float32) {
	if dropped := d.pending.Push(samples); dropped > 0 {
		d.obs.Trimmed("samples", dropped)
	}
}

// emitPCM converts fixed-point samples and queues them for output.
func (d *Decoder) emitPCM(pcm []int16) {
	n := audio.Int16sToFloats(d.floats, pcm)
	d.emit(d.floats[:n])
}

// drain moves pending samples into out and returns the number written.
func (d *Decoder) drain(out []float32) int {
	n := min(len(out), d.pending.Len())
	if n == 0 {
		return 0
	}
	copy(out, d.pending.Peek(n))
	d.pending.Discard(n)
	return n
}

// Buffered returns the number of raw bytes awaiting framing.
func (d *Decoder) Buffered() int { return d.bytes.Len() }

// Pending returns the number of decoded samples awaiting output capacity.
func (d *Decoder) Pending() int { return d.pending.Len() }

// PendingLoss returns the number of frames lost since the last good packet.
// It is always zero when concealment is disabled.
func (d *Decoder) PendingLoss() int { return d.conceal.pendingLoss() }

// FrameSize returns the number of interleaved samples per frame.
func (d *Decoder) FrameSize() int { return d.frameSize * d.channels }

// Reset discards buffered bytes, pending samples, and loss state. Codec
// handles are kept.
func (d *Decoder) Reset() {
	d.bytes.Reset()
	d.pending.Reset()
	d.conceal.reset()
}

// Close releases the codec and redundancy handles.
func (d *Decoder) Close() error {
	if d.dec == nil {
		return nil
	}
	err := errors.Join(d.conceal.close(), d.dec.Close())
	d.dec = nil
	return err
}
