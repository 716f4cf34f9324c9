package audio_test

import (
	"math"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/MrWong99/opusstream/pkg/audio"
)

func TestFloatToInt16(t *testing.T) {
	tests := []struct {
		name string
		in   float32
		want int16
	}{
		{"zero", 0, 0},
		{"full scale", 1, 32767},
		{"negative full scale", -1, -32767},
		{"half truncates toward zero", 0.5, 16383},
		{"negative half truncates toward zero", -0.5, -16383},
		{"above range clamps", 3.5, 32767},
		{"below range clamps", -7, -32767},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := audio.FloatToInt16(tc.in); got != tc.want {
				t.Errorf("FloatToInt16(%v) = %d, want %d", tc.in, got, tc.want)
			}
		})
	}
}

func TestInt16ToFloat_Clamps(t *testing.T) {
	if got := audio.Int16ToFloat(math.MinInt16); got != -1 {
		t.Errorf("Int16ToFloat(-32768) = %v, want -1", got)
	}
	if got := audio.Int16ToFloat(32767); got != 1 {
		t.Errorf("Int16ToFloat(32767) = %v, want 1", got)
	}
	if got := audio.Int16ToFloat(0); got != 0 {
		t.Errorf("Int16ToFloat(0) = %v, want 0", got)
	}
}

func TestFloatsToInt16s_ShortDestination(t *testing.T) {
	dst := make([]int16, 2)
	n := audio.FloatsToInt16s(dst, []float32{1, -1, 0.25})
	if n != 2 {
		t.Fatalf("n = %d, want 2", n)
	}
	if diff := cmp.Diff([]int16{32767, -32767}, dst); diff != "" {
		t.Errorf("dst mismatch (-want +got):\n%s", diff)
	}
}

func TestIsSilent(t *testing.T) {
	tests := []struct {
		name string
		pcm  []int16
		want bool
	}{
		{"empty", nil, true},
		{"all zero", []int16{0, 0, 0}, true},
		{"at threshold", []int16{100, -100}, true},
		{"just above", []int16{0, 101}, false},
		{"negative above", []int16{-101}, false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := audio.IsSilent(tc.pcm, 100); got != tc.want {
				t.Errorf("IsSilent(%v) = %v, want %v", tc.pcm, got, tc.want)
			}
		})
	}
}

func TestFloat32Bytes(t *testing.T) {
	in := []float32{0, 0.5, -1, 1e-3}
	b := audio.Float32sToBytes(in)
	if len(b) != 16 {
		t.Fatalf("len = %d, want 16", len(b))
	}
	// A dangling partial sample is ignored.
	got := audio.BytesToFloat32s(append(b, 0xff))
	if diff := cmp.Diff(in, got); diff != "" {
		t.Errorf("decode mismatch (-want +got):\n%s", diff)
	}
}

func TestInt16Bytes_LittleEndian(t *testing.T) {
	b := audio.Int16sToBytes([]int16{0x0102, -2})
	want := []byte{0x02, 0x01, 0xfe, 0xff}
	if diff := cmp.Diff(want, b); diff != "" {
		t.Errorf("bytes mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]int16{0x0102, -2}, audio.BytesToInt16s(b)); diff != "" {
		t.Errorf("samples mismatch (-want +got):\n%s", diff)
	}
}

func TestFormat_FrameSize(t *testing.T) {
	tests := []struct {
		format      audio.Format
		d           time.Duration
		wantSize    int
		wantSamples int
	}{
		{audio.Format{SampleRate: 48000, Channels: 1}, 20 * time.Millisecond, 960, 960},
		{audio.Format{SampleRate: 48000, Channels: 2}, 20 * time.Millisecond, 960, 1920},
		{audio.Format{SampleRate: 8000, Channels: 1}, 2500 * time.Microsecond, 20, 20},
		{audio.Format{SampleRate: 16000, Channels: 2}, 60 * time.Millisecond, 960, 1920},
	}
	for _, tc := range tests {
		t.Run(tc.format.String()+"/"+tc.d.String(), func(t *testing.T) {
			if got := tc.format.FrameSize(tc.d); got != tc.wantSize {
				t.Errorf("FrameSize = %d, want %d", got, tc.wantSize)
			}
			if got := tc.format.FrameSamples(tc.d); got != tc.wantSamples {
				t.Errorf("FrameSamples = %d, want %d", got, tc.wantSamples)
			}
		})
	}
}
