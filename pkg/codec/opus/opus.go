// Package opus implements the [codec] interfaces on top of libopus through
// layeh.com/gopus.
//
// Redundancy recovery uses Opus in-band FEC (LBRR): a packet carrying LBRR
// data can reconstruct the single frame that preceded it. Each [Redundancy]
// owns a dedicated libopus decoder so that recovery never disturbs the state
// of the primary [Decoder].
package opus

import (
	"errors"
	"fmt"

	"layeh.com/gopus"

	"github.com/MrWong99/opusstream/pkg/audio"
	"github.com/MrWong99/opusstream/pkg/codec"
)

var errClosed = errors.New("opus: handle closed")

// Compile-time interface assertions.
var (
	_ codec.Backend    = Backend{}
	_ codec.Encoder    = (*Encoder)(nil)
	_ codec.Decoder    = (*Decoder)(nil)
	_ codec.Redundancy = (*Redundancy)(nil)
)

// Backend creates libopus handles.
type Backend struct{}

// NewEncoder implements [codec.Backend].
func (Backend) NewEncoder(sampleRate, channels int, app codec.Application, bitrate int) (codec.Encoder, error) {
	return NewEncoder(sampleRate, channels, app, bitrate)
}

// NewDecoder implements [codec.Backend].
func (Backend) NewDecoder(sampleRate, channels int) (codec.Decoder, error) {
	return NewDecoder(sampleRate, channels)
}

// NewRedundancy implements [codec.Backend].
func (Backend) NewRedundancy(sampleRate, channels int) (codec.Redundancy, error) {
	return NewRedundancy(sampleRate, channels)
}

func gopusApplication(app codec.Application) gopus.Application {
	switch app {
	case codec.ApplicationVoIP:
		return gopus.Voip
	case codec.ApplicationLowDelay:
		return gopus.RestrictedLowDelay
	default:
		return gopus.Audio
	}
}

// Encoder wraps a libopus encoder.
type Encoder struct {
	enc *gopus.Encoder
}

// NewEncoder creates a libopus encoder and applies the target bitrate.
func NewEncoder(sampleRate, channels int, app codec.Application, bitrate int) (*Encoder, error) {
	if bitrate < codec.MinBitrate || bitrate > codec.MaxBitrate {
		return nil, fmt.Errorf("opus: bitrate %d out of range [%d, %d]", bitrate, codec.MinBitrate, codec.MaxBitrate)
	}
	enc, err := gopus.NewEncoder(sampleRate, channels, gopusApplication(app))
	if err != nil {
		return nil, fmt.Errorf("opus: create encoder: %w", err)
	}
	enc.SetBitrate(bitrate)
	return &Encoder{enc: enc}, nil
}

// Encode implements [codec.Encoder].
func (e *Encoder) Encode(pcm []int16, frameSize int, data []byte) (int, error) {
	if e.enc == nil {
		return 0, errClosed
	}
	packet, err := e.enc.Encode(pcm, frameSize, len(data))
	if err != nil {
		return 0, fmt.Errorf("opus: encode: %w", err)
	}
	if len(packet) > len(data) {
		return 0, fmt.Errorf("opus: encode: packet of %d bytes exceeds buffer of %d", len(packet), len(data))
	}
	return copy(data, packet), nil
}

// Close implements [codec.Encoder].
func (e *Encoder) Close() error {
	e.enc = nil
	return nil
}

// Decoder wraps a libopus decoder.
type Decoder struct {
	dec      *gopus.Decoder
	channels int
}

// NewDecoder creates a libopus decoder.
func NewDecoder(sampleRate, channels int) (*Decoder, error) {
	dec, err := gopus.NewDecoder(sampleRate, channels)
	if err != nil {
		return nil, fmt.Errorf("opus: create decoder: %w", err)
	}
	return &Decoder{dec: dec, channels: channels}, nil
}

// Decode implements [codec.Decoder].
func (d *Decoder) Decode(packet []byte, pcm []int16, frameSize int) (int, error) {
	if d.dec == nil {
		return 0, errClosed
	}
	if len(packet) == 0 {
		return 0, codec.ErrInvalidPacket
	}
	out, err := d.dec.Decode(packet, frameSize, false)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", codec.ErrInvalidPacket, err)
	}
	n := copy(pcm, out)
	return n / d.channels, nil
}

// Close implements [codec.Decoder].
func (d *Decoder) Close() error {
	d.dec = nil
	return nil
}

// Redundancy recovers the frame preceding a packet from its LBRR payload.
type Redundancy struct {
	dec      *gopus.Decoder
	channels int
	packet   []byte
	frames   int
}

// NewRedundancy creates a dedicated libopus decoder for FEC recovery.
func NewRedundancy(sampleRate, channels int) (*Redundancy, error) {
	dec, err := gopus.NewDecoder(sampleRate, channels)
	if err != nil {
		return nil, fmt.Errorf("opus: create redundancy decoder: %w", err)
	}
	return &Redundancy{dec: dec, channels: channels}, nil
}

// carriesLBRR reports whether the packet's mode can hold LBRR data. Only
// SILK-only (configs 0-11) and hybrid (12-15) packets do; CELT-only packets
// never carry redundancy.
func carriesLBRR(packet []byte) bool {
	return len(packet) > 0 && packet[0]>>3 < 16
}

// Parse implements [codec.Redundancy]. In-band FEC covers at most the one
// frame immediately preceding packet.
func (r *Redundancy) Parse(packet []byte, maxFrames int) (int, error) {
	if r.dec == nil {
		return 0, errClosed
	}
	r.packet = append(r.packet[:0], packet...)
	r.frames = 0
	if maxFrames <= 0 || !carriesLBRR(packet) {
		return 0, nil
	}
	r.frames = 1
	return r.frames, nil
}

// Recover implements [codec.Redundancy].
func (r *Redundancy) Recover(offset int, pcm []float32, frameSize int) (int, error) {
	if r.dec == nil {
		return 0, errClosed
	}
	if offset < 1 || offset > r.frames {
		return 0, fmt.Errorf("opus: no redundancy for frame offset %d", offset)
	}
	out, err := r.dec.Decode(r.packet, frameSize, true)
	if err != nil {
		return 0, fmt.Errorf("opus: fec decode: %w", err)
	}
	n := audio.Int16sToFloats(pcm, out)
	return n / r.channels, nil
}

// Close implements [codec.Redundancy].
func (r *Redundancy) Close() error {
	r.dec = nil
	r.packet = nil
	return nil
}
