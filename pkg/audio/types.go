// Package audio holds the sample-format helpers shared by the encode and
// decode blocks: frame-size arithmetic, float/int16 scaling with clamping,
// silence detection, and little-endian PCM byte codecs.
package audio

import (
	"fmt"
	"time"
)

// MaxInt16 is the full-scale magnitude used when converting between
// normalised float samples and the codec's 16-bit fixed-point samples.
const MaxInt16 = 32767.0

// Format describes the sample rate and channel count of an interleaved
// audio stream.
type Format struct {
	// SampleRate in Hz (e.g., 48000).
	SampleRate int

	// Channels: 1 for mono, 2 for stereo. Samples are interleaved by channel.
	Channels int
}

// FrameSize returns the number of samples per channel covered by d.
// Fractional samples are truncated.
func (f Format) FrameSize(d time.Duration) int {
	return int(int64(f.SampleRate) * int64(d) / int64(time.Second))
}

// FrameSamples returns the number of interleaved samples (all channels)
// covered by d.
func (f Format) FrameSamples(d time.Duration) int {
	return f.FrameSize(d) * f.Channels
}

// String returns a compact representation such as "48000Hz/2ch".
func (f Format) String() string {
	return fmt.Sprintf("%dHz/%dch", f.SampleRate, f.Channels)
}
