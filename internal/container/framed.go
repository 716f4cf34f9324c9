package container

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
)

// FrameReader reads length-prefixed packets from an io.Reader.
type FrameReader struct {
	r io.Reader
}

// NewFrameReader returns a new FrameReader that reads from r.
func NewFrameReader(r io.Reader) *FrameReader {
	return &FrameReader{r: r}
}

// ReadPacket reads and returns the next packet. It returns io.EOF when the
// input ends cleanly between packets and io.ErrUnexpectedEOF when it ends
// inside one.
func (f *FrameReader) ReadPacket() ([]byte, error) {
	var size uint16
	if err := binary.Read(f.r, binary.LittleEndian, &size); err != nil {
		return nil, err
	}

	packet := make([]byte, size)
	if _, err := io.ReadFull(f.r, packet); err != nil {
		if errors.Is(err, io.EOF) {
			err = io.ErrUnexpectedEOF
		}
		return nil, err
	}
	return packet, nil
}

// FrameWriter writes length-prefixed packets to an io.Writer.
type FrameWriter struct {
	w io.Writer
}

// NewFrameWriter returns a new FrameWriter that writes to w.
func NewFrameWriter(w io.Writer) *FrameWriter {
	return &FrameWriter{w: w}
}

// WritePacket writes the length prefix and the packet.
func (f *FrameWriter) WritePacket(packet []byte) error {
	if len(packet) > math.MaxUint16 {
		return fmt.Errorf("%w: %d bytes", ErrPacketTooLarge, len(packet))
	}
	var lenBuf [2]byte
	binary.LittleEndian.PutUint16(lenBuf[:], uint16(len(packet)))
	if _, err := f.w.Write(lenBuf[:]); err != nil {
		return err
	}
	_, err := f.w.Write(packet)
	return err
}
