// Package container moves Opus packets in and out of files for the CLI.
//
// Two layouts are supported: Ogg Opus streams and length-prefixed packet
// files where every packet is stored as a little-endian uint16 length followed
// by the payload. Neither layout is understood by the streaming blocks in
// pkg/stream, which only ever see raw concatenated packet bytes.
package container

import (
	"errors"
	"io"
)

// ErrPacketTooLarge is returned when a packet does not fit the layout's
// length field.
var ErrPacketTooLarge = errors.New("container: packet too large")

// PacketReader yields one packet per call and io.EOF after the last one.
type PacketReader interface {
	ReadPacket() ([]byte, error)
}

// PacketWriter stores one packet per call.
type PacketWriter interface {
	WritePacket(packet []byte) error
}

// Payloads returns a reader over the concatenated payloads of pr. The packet
// boundaries are lost, which is exactly what the blind-search decoder expects
// to reconstruct.
func Payloads(pr PacketReader) io.Reader {
	return &payloadReader{pr: pr}
}

type payloadReader struct {
	pr  PacketReader
	buf []byte
	err error
}

func (p *payloadReader) Read(b []byte) (int, error) {
	for len(p.buf) == 0 {
		if p.err != nil {
			return 0, p.err
		}
		p.buf, p.err = p.pr.ReadPacket()
	}
	n := copy(b, p.buf)
	p.buf = p.buf[n:]
	return n, nil
}
