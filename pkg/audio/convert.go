package audio

import (
	"encoding/binary"
	"math"
)

// Clamp limits s to the closed interval [-1, 1].
func Clamp(s float32) float32 {
	if s > 1 {
		return 1
	}
	if s < -1 {
		return -1
	}
	return s
}

// FloatToInt16 scales a normalised sample to 16-bit fixed point. Values
// outside [-1, 1] are clamped first and the product is truncated toward zero.
func FloatToInt16(s float32) int16 {
	return int16(Clamp(s) * MaxInt16)
}

// Int16ToFloat maps a 16-bit sample back to the normalised range. -32768
// would land just below -1 and is clamped.
func Int16ToFloat(s int16) float32 {
	return Clamp(float32(s) / MaxInt16)
}

// FloatsToInt16s converts src into dst and returns the number of samples
// written, which is min(len(dst), len(src)).
func FloatsToInt16s(dst []int16, src []float32) int {
	n := min(len(dst), len(src))
	for i := range n {
		dst[i] = FloatToInt16(src[i])
	}
	return n
}

// Int16sToFloats converts src into dst and returns the number of samples
// written, which is min(len(dst), len(src)).
func Int16sToFloats(dst []float32, src []int16) int {
	n := min(len(dst), len(src))
	for i := range n {
		dst[i] = Int16ToFloat(src[i])
	}
	return n
}

// IsSilent reports whether every sample's magnitude is at or below threshold.
// An empty slice is silent.
func IsSilent(pcm []int16, threshold int) bool {
	for _, s := range pcm {
		v := int(s)
		if v > threshold || v < -threshold {
			return false
		}
	}
	return true
}

// Float32sToBytes encodes samples as little-endian IEEE-754 float32.
func Float32sToBytes(samples []float32) []byte {
	b := make([]byte, len(samples)*4)
	for i, s := range samples {
		binary.LittleEndian.PutUint32(b[i*4:], math.Float32bits(s))
	}
	return b
}

// BytesToFloat32s decodes little-endian float32 samples. Trailing bytes that
// do not form a whole sample are ignored.
func BytesToFloat32s(b []byte) []float32 {
	samples := make([]float32, len(b)/4)
	for i := range samples {
		samples[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*4:]))
	}
	return samples
}

// Int16sToBytes converts 16-bit PCM samples to little-endian bytes.
func Int16sToBytes(pcm []int16) []byte {
	b := make([]byte, len(pcm)*2)
	for i, s := range pcm {
		b[i*2] = byte(s)
		b[i*2+1] = byte(s >> 8)
	}
	return b
}

// BytesToInt16s converts little-endian bytes to 16-bit PCM samples.
func BytesToInt16s(b []byte) []int16 {
	pcm := make([]int16, len(b)/2)
	for i := range pcm {
		pcm[i] = int16(b[i*2]) | int16(b[i*2+1])<<8
	}
	return pcm
}
