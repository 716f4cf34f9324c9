// Package mock provides scriptable in-memory implementations of the
// [codec.Encoder], [codec.Decoder], [codec.Redundancy], and [codec.Backend]
// interfaces for use in unit tests.
//
// All mocks are safe for concurrent use. They record every call so that tests
// can assert on call counts and arguments, and they expose exported fields
// that the test can set to control behaviour.
//
// The default packet format is deliberately simple and lossy: one marker
// byte followed by one byte per interleaved sample holding the sample's high
// byte. Encoding and then decoding a frame therefore reproduces it to within
// 256/32767 of full scale.
//
// Typical usage:
//
//	enc := &mock.Encoder{}
//	dec := &mock.Decoder{Channels: 1}
//	backend := &mock.Backend{Encoder: enc, Decoder: dec}
package mock

import (
	"errors"
	"fmt"
	"sync"

	"github.com/MrWong99/opusstream/pkg/codec"
)

// Marker is the first byte of every packet produced by [Encoder].
const Marker byte = 'M'

// ErrInjected is returned by calls selected through a Fail map.
var ErrInjected = errors.New("mock: injected failure")

// Compile-time interface assertions.
var (
	_ codec.Encoder     = (*Encoder)(nil)
	_ codec.Decoder     = (*Decoder)(nil)
	_ codec.Redundancy  = (*Redundancy)(nil)
	_ codec.Backend     = (*Backend)(nil)
	_ codec.ModelLoader = (*Decoder)(nil)
	_ codec.ModelLoader = (*Encoder)(nil)
)

// PacketLen returns the length of a default-format packet for a frame of
// samples interleaved samples.
func PacketLen(samples int) int { return 1 + samples }

// ─── Encoder ──────────────────────────────────────────────────────────────────

// Encoder is a mock [codec.Encoder].
type Encoder struct {
	mu sync.Mutex

	// EncodeFunc overrides the default packet format when non-nil.
	EncodeFunc func(pcm []int16, frameSize int) ([]byte, error)

	// Fail selects zero-based call indices that return [ErrInjected].
	Fail map[int]bool

	// ModelErr is returned by LoadModel.
	ModelErr error

	// Frames records a copy of the PCM passed to every Encode call.
	Frames [][]int16

	// Model records the blob passed to LoadModel.
	Model []byte

	// CloseCount records how many times Close was called.
	CloseCount int
}

// Encode implements [codec.Encoder].
func (e *Encoder) Encode(pcm []int16, frameSize int, data []byte) (int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	call := len(e.Frames)
	e.Frames = append(e.Frames, append([]int16(nil), pcm...))
	if e.Fail[call] {
		return 0, ErrInjected
	}

	var packet []byte
	if e.EncodeFunc != nil {
		var err error
		if packet, err = e.EncodeFunc(pcm, frameSize); err != nil {
			return 0, err
		}
	} else {
		packet = make([]byte, PacketLen(len(pcm)))
		packet[0] = Marker
		for i, s := range pcm {
			packet[i+1] = byte(s >> 8)
		}
	}
	if len(packet) > len(data) {
		return 0, fmt.Errorf("mock: packet of %d bytes exceeds buffer of %d", len(packet), len(data))
	}
	return copy(data, packet), nil
}

// LoadModel implements [codec.ModelLoader].
func (e *Encoder) LoadModel(blob []byte) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.Model = append([]byte(nil), blob...)
	return e.ModelErr
}

// Close implements [codec.Encoder].
func (e *Encoder) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.CloseCount++
	return nil
}

// Calls returns the number of Encode calls so far.
func (e *Encoder) Calls() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.Frames)
}

// ─── Decoder ──────────────────────────────────────────────────────────────────

// Decoder is a mock [codec.Decoder]. With no DecodeFunc it accepts exactly the
// packets produced by a default [Encoder] for frames of frameSize*Channels
// samples and rejects everything else with [codec.ErrInvalidPacket].
type Decoder struct {
	mu sync.Mutex

	// Channels is the interleaved channel count. Zero means 1.
	Channels int

	// DecodeFunc overrides the default behaviour when non-nil.
	DecodeFunc func(packet []byte, pcm []int16, frameSize int) (int, error)

	// Fail selects zero-based call indices that return [ErrInjected].
	Fail map[int]bool

	// ModelErr is returned by LoadModel.
	ModelErr error

	// Packets records a copy of every packet passed to Decode.
	Packets [][]byte

	// Model records the blob passed to LoadModel.
	Model []byte

	// CloseCount records how many times Close was called.
	CloseCount int
}

func (d *Decoder) channels() int {
	if d.Channels <= 0 {
		return 1
	}
	return d.Channels
}

// Decode implements [codec.Decoder].
func (d *Decoder) Decode(packet []byte, pcm []int16, frameSize int) (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	call := len(d.Packets)
	d.Packets = append(d.Packets, append([]byte(nil), packet...))
	if d.Fail[call] {
		return 0, ErrInjected
	}
	if d.DecodeFunc != nil {
		return d.DecodeFunc(packet, pcm, frameSize)
	}

	samples := frameSize * d.channels()
	if len(packet) != PacketLen(samples) || packet[0] != Marker || len(pcm) < samples {
		return 0, codec.ErrInvalidPacket
	}
	for i := range samples {
		pcm[i] = int16(int8(packet[i+1])) << 8
	}
	return frameSize, nil
}

// LoadModel implements [codec.ModelLoader].
func (d *Decoder) LoadModel(blob []byte) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.Model = append([]byte(nil), blob...)
	return d.ModelErr
}

// Close implements [codec.Decoder].
func (d *Decoder) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.CloseCount++
	return nil
}

// Lengths returns the length of every packet passed to Decode, in call order.
func (d *Decoder) Lengths() []int {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]int, len(d.Packets))
	for i, p := range d.Packets {
		out[i] = len(p)
	}
	return out
}

// ─── Redundancy ───────────────────────────────────────────────────────────────

// Redundancy is a mock [codec.Redundancy]. Parse reports min(maxFrames,
// Available) recoverable frames; Recover fills the frame with the constant
// value Level(offset) so tests can tell recovered frames apart.
type Redundancy struct {
	mu sync.Mutex

	// Channels is the interleaved channel count. Zero means 1.
	Channels int

	// Available is the number of frames of history every packet covers.
	Available int

	// ParseErr is returned by Parse when non-nil.
	ParseErr error

	// FailOffsets selects frame offsets whose recovery fails.
	FailOffsets map[int]bool

	// ParseCalls records the maxFrames argument of every Parse call.
	ParseCalls []int

	// RecoverCalls records the offset argument of every Recover call.
	RecoverCalls []int

	// CloseCount records how many times Close was called.
	CloseCount int

	parsed int
}

// Level returns the sample value Recover writes for offset.
func Level(offset int) float32 { return float32(offset) / 16 }

// Parse implements [codec.Redundancy].
func (r *Redundancy) Parse(packet []byte, maxFrames int) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ParseCalls = append(r.ParseCalls, maxFrames)
	if r.ParseErr != nil {
		r.parsed = 0
		return 0, r.ParseErr
	}
	r.parsed = min(maxFrames, r.Available)
	return r.parsed, nil
}

// Recover implements [codec.Redundancy].
func (r *Redundancy) Recover(offset int, pcm []float32, frameSize int) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.RecoverCalls = append(r.RecoverCalls, offset)
	if offset < 1 || offset > r.parsed || r.FailOffsets[offset] {
		return 0, ErrInjected
	}
	ch := r.Channels
	if ch <= 0 {
		ch = 1
	}
	n := min(len(pcm), frameSize*ch)
	for i := range n {
		pcm[i] = Level(offset)
	}
	return n / ch, nil
}

// Close implements [codec.Redundancy].
func (r *Redundancy) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.CloseCount++
	return nil
}

// ─── Backend ──────────────────────────────────────────────────────────────────

// Backend is a mock [codec.Backend] handing out preconfigured handles.
type Backend struct {
	Encoder    codec.Encoder
	Decoder    codec.Decoder
	Redundancy codec.Redundancy

	EncoderErr    error
	DecoderErr    error
	RedundancyErr error

	// EncoderArgs records the (sampleRate, channels, bitrate) of NewEncoder.
	EncoderArgs []int

	// Application records the profile passed to NewEncoder.
	Application codec.Application
}

// NewEncoder implements [codec.Backend].
func (b *Backend) NewEncoder(sampleRate, channels int, app codec.Application, bitrate int) (codec.Encoder, error) {
	b.EncoderArgs = []int{sampleRate, channels, bitrate}
	b.Application = app
	if b.EncoderErr != nil {
		return nil, b.EncoderErr
	}
	if b.Encoder == nil {
		b.Encoder = &Encoder{}
	}
	return b.Encoder, nil
}

// NewDecoder implements [codec.Backend].
func (b *Backend) NewDecoder(_, channels int) (codec.Decoder, error) {
	if b.DecoderErr != nil {
		return nil, b.DecoderErr
	}
	if b.Decoder == nil {
		b.Decoder = &Decoder{Channels: channels}
	}
	return b.Decoder, nil
}

// NewRedundancy implements [codec.Backend].
func (b *Backend) NewRedundancy(_, channels int) (codec.Redundancy, error) {
	if b.RedundancyErr != nil {
		return nil, b.RedundancyErr
	}
	if b.Redundancy == nil {
		b.Redundancy = &Redundancy{Channels: channels}
	}
	return b.Redundancy, nil
}
