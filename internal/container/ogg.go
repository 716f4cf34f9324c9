package container

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"github.com/jonas747/ogg"
)

// ErrNotOpus is returned when an Ogg stream does not start with an OpusHead
// identification header.
var ErrNotOpus = errors.New("container: ogg stream is not opus")

var (
	opusHeadMagic = []byte("OpusHead")
	opusTagsMagic = []byte("OpusTags")
)

// OggReader extracts Opus packets from an Ogg stream. The identification and
// comment headers are consumed on the first read and never returned.
type OggReader struct {
	dec      *ogg.PacketDecoder
	headers  bool
	channels int
}

// NewOggReader returns an OggReader over r.
func NewOggReader(r io.Reader) *OggReader {
	return &OggReader{dec: ogg.NewPacketDecoder(ogg.NewDecoder(r))}
}

// Channels reports the channel count from the OpusHead header, or 0 before
// the first successful ReadPacket.
func (o *OggReader) Channels() int { return o.channels }

// ReadPacket returns the next audio packet. A stream truncated mid-page ends
// like a complete one.
func (o *OggReader) ReadPacket() ([]byte, error) {
	if !o.headers {
		if err := o.readHeaders(); err != nil {
			return nil, err
		}
	}
	return o.next()
}

func (o *OggReader) readHeaders() error {
	head, err := o.next()
	if err != nil {
		return err
	}
	if len(head) < 19 || !bytes.HasPrefix(head, opusHeadMagic) {
		return ErrNotOpus
	}
	tags, err := o.next()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return fmt.Errorf("%w: missing OpusTags header", ErrNotOpus)
		}
		return err
	}
	if !bytes.HasPrefix(tags, opusTagsMagic) {
		return fmt.Errorf("%w: missing OpusTags header", ErrNotOpus)
	}
	o.channels = int(head[9])
	o.headers = true
	return nil
}

func (o *OggReader) next() ([]byte, error) {
	packet, _, err := o.dec.Decode()
	if err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, io.EOF
		}
		return nil, fmt.Errorf("container: ogg: %w", err)
	}
	return packet, nil
}
