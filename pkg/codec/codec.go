// Package codec defines the codec collaborator interfaces the streaming
// blocks are written against. Implementations wrap a native codec (see
// [github.com/MrWong99/opusstream/pkg/codec/opus]) or provide scripted
// behaviour for tests (see [github.com/MrWong99/opusstream/pkg/codec/mock]).
//
// Every handle is owned by exactly one block for its whole lifetime and is
// never shared between goroutines.
package codec

import (
	"errors"
	"strings"
)

// MaxPacketSize is the largest packet an encoder is asked to produce.
const MaxPacketSize = 4000

// Bitrate limits accepted by the encoder, in bits per second.
const (
	MinBitrate = 500
	MaxBitrate = 512000
)

// Sentinel errors returned by codec implementations.
var (
	// ErrInvalidPacket reports that a packet could not be decoded, usually
	// because it is corrupt or the framing boundary is wrong.
	ErrInvalidPacket = errors.New("codec: invalid packet")

	// ErrModelUnsupported is returned when an acoustic-model blob is supplied
	// to a codec that cannot install one.
	ErrModelUnsupported = errors.New("codec: model blobs not supported")
)

// Application selects the encoder tuning profile.
type Application int

const (
	// ApplicationAudio favours general audio fidelity. It is the default.
	ApplicationAudio Application = iota

	// ApplicationVoIP is optimised for speech intelligibility.
	ApplicationVoIP

	// ApplicationLowDelay disables speech-optimised modes for minimal latency.
	ApplicationLowDelay
)

// ParseApplication maps a profile name to an [Application]. Recognised names
// are "voip", "audio" and "lowdelay" (case-insensitive); anything else falls
// back to [ApplicationAudio] and ok is false.
func ParseApplication(name string) (app Application, ok bool) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "voip":
		return ApplicationVoIP, true
	case "audio":
		return ApplicationAudio, true
	case "lowdelay":
		return ApplicationLowDelay, true
	}
	return ApplicationAudio, false
}

// String returns the profile name accepted by [ParseApplication].
func (a Application) String() string {
	switch a {
	case ApplicationVoIP:
		return "voip"
	case ApplicationLowDelay:
		return "lowdelay"
	default:
		return "audio"
	}
}

// Encoder compresses fixed-size frames of 16-bit interleaved PCM.
type Encoder interface {
	// Encode compresses one frame of frameSize samples per channel from pcm
	// into data and returns the packet length. A non-nil error means the
	// frame could not be encoded and data is unspecified.
	Encode(pcm []int16, frameSize int, data []byte) (int, error)

	// Close releases the native handle. It is safe to call more than once.
	Close() error
}

// Decoder expands packets into 16-bit interleaved PCM.
type Decoder interface {
	// Decode decodes packet into pcm, producing at most frameSize samples per
	// channel, and returns the number of samples per channel written. A
	// non-nil error means the packet was rejected.
	Decode(packet []byte, pcm []int16, frameSize int) (int, error)

	// Close releases the native handle. It is safe to call more than once.
	Close() error
}

// Redundancy recovers lost frames from redundancy data carried inside a
// later packet. It owns its own decoder state, independent of the primary
// [Decoder].
type Redundancy interface {
	// Parse inspects packet for redundancy covering up to maxFrames frames
	// preceding it and returns how many of those frames can be recovered.
	Parse(packet []byte, maxFrames int) (int, error)

	// Recover reconstructs the lost frame at offset frames before the last
	// parsed packet (1 is the frame immediately preceding it) into pcm as
	// normalised floats, and returns the number of samples per channel
	// written.
	Recover(offset int, pcm []float32, frameSize int) (int, error)

	// Close releases the native handle. It is safe to call more than once.
	Close() error
}

// ModelLoader is implemented by codecs that accept an acoustic-model blob.
type ModelLoader interface {
	LoadModel(blob []byte) error
}

// Backend creates the native handles a block owns. Each constructor returns
// a fresh handle; the caller is responsible for closing it.
type Backend interface {
	NewEncoder(sampleRate, channels int, app Application, bitrate int) (Encoder, error)
	NewDecoder(sampleRate, channels int) (Decoder, error)
	NewRedundancy(sampleRate, channels int) (Redundancy, error)
}
