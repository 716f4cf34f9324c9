package runner

import (
	"encoding/binary"
	"errors"
	"io"
	"math"

	"github.com/MrWong99/opusstream/pkg/audio"
)

// byteSource adapts an io.Reader to a Source of bytes.
type byteSource struct{ r io.Reader }

// ByteSource reads raw bytes from r.
func ByteSource(r io.Reader) Source[byte] { return byteSource{r: r} }

func (s byteSource) Read(buf []byte) (int, error) { return s.r.Read(buf) }

// byteSink adapts an io.Writer to a Sink of bytes.
type byteSink struct{ w io.Writer }

// ByteSink writes raw bytes to w.
func ByteSink(w io.Writer) Sink[byte] { return byteSink{w: w} }

func (s byteSink) Write(units []byte) error {
	_, err := s.w.Write(units)
	return err
}

// Float32Source reads little-endian float32 samples from an io.Reader. Bytes
// of a sample split across reads are carried over. A stream that ends inside
// a sample reports io.ErrUnexpectedEOF.
type Float32Source struct {
	r   io.Reader
	buf []byte
	rem int
}

// NewFloat32Source returns a Float32Source over r.
func NewFloat32Source(r io.Reader) *Float32Source {
	return &Float32Source{r: r}
}

// Read implements [Source].
func (s *Float32Source) Read(dst []float32) (int, error) {
	need := len(dst) * 4
	if len(s.buf) < need {
		grown := make([]byte, need)
		copy(grown, s.buf[:s.rem])
		s.buf = grown
	}

	n, err := s.r.Read(s.buf[s.rem:need])
	total := s.rem + n
	whole := total / 4
	for i := range whole {
		dst[i] = math.Float32frombits(binary.LittleEndian.Uint32(s.buf[i*4:]))
	}
	s.rem = copy(s.buf, s.buf[whole*4:total])

	if errors.Is(err, io.EOF) && s.rem > 0 {
		return whole, io.ErrUnexpectedEOF
	}
	return whole, err
}

// float32Sink writes samples as little-endian float32.
type float32Sink struct{ w io.Writer }

// Float32Sink writes little-endian float32 samples to w.
func Float32Sink(w io.Writer) Sink[float32] { return float32Sink{w: w} }

func (s float32Sink) Write(units []float32) error {
	_, err := s.w.Write(audio.Float32sToBytes(units))
	return err
}
