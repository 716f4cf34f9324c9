package container_test

import (
	"bytes"
	"encoding/binary"
	"errors"
	"io"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/MrWong99/opusstream/internal/container"
)

// oggCRCTable is the CRC-32 table used by Ogg pages: polynomial 0x04c11db7,
// MSB first, zero initial value.
var oggCRCTable = func() (t [256]uint32) {
	for i := range t {
		r := uint32(i) << 24
		for range 8 {
			if r&0x80000000 != 0 {
				r = r<<1 ^ 0x04c11db7
			} else {
				r <<= 1
			}
		}
		t[i] = r
	}
	return t
}()

func oggCRC(b []byte) uint32 {
	var c uint32
	for _, x := range b {
		c = c<<8 ^ oggCRCTable[byte(c>>24)^x]
	}
	return c
}

// oggPage builds a single page carrying one complete packet.
func oggPage(flags byte, granule int64, seq uint32, packet []byte) []byte {
	var lacing []byte
	n := len(packet)
	for n >= 255 {
		lacing = append(lacing, 255)
		n -= 255
	}
	lacing = append(lacing, byte(n))

	var page bytes.Buffer
	page.WriteString("OggS")
	page.WriteByte(0)
	page.WriteByte(flags)
	binary.Write(&page, binary.LittleEndian, granule)
	binary.Write(&page, binary.LittleEndian, uint32(0x5eed))
	binary.Write(&page, binary.LittleEndian, seq)
	binary.Write(&page, binary.LittleEndian, uint32(0)) // crc placeholder
	page.WriteByte(byte(len(lacing)))
	page.Write(lacing)
	page.Write(packet)

	b := page.Bytes()
	binary.LittleEndian.PutUint32(b[22:26], oggCRC(b))
	return b
}

func opusHead(channels byte) []byte {
	head := []byte("OpusHead")
	head = append(head, 1, channels)
	head = binary.LittleEndian.AppendUint16(head, 0)
	head = binary.LittleEndian.AppendUint32(head, 48000)
	head = binary.LittleEndian.AppendUint16(head, 0)
	return append(head, 0)
}

func opusTags() []byte {
	tags := []byte("OpusTags")
	tags = binary.LittleEndian.AppendUint32(tags, 10)
	tags = append(tags, "opusstream"...)
	return binary.LittleEndian.AppendUint32(tags, 0)
}

// oggOpusStream builds an Ogg Opus stream with one audio packet per page.
func oggOpusStream(channels byte, packets ...[]byte) []byte {
	var out bytes.Buffer
	out.Write(oggPage(0x02, 0, 0, opusHead(channels)))
	out.Write(oggPage(0x00, 0, 1, opusTags()))
	for i, p := range packets {
		var flags byte
		if i == len(packets)-1 {
			flags = 0x04
		}
		out.Write(oggPage(flags, int64(960*(i+1)), uint32(i+2), p))
	}
	return out.Bytes()
}

func readAll(t *testing.T, pr container.PacketReader) [][]byte {
	t.Helper()
	var got [][]byte
	for {
		p, err := pr.ReadPacket()
		if errors.Is(err, io.EOF) {
			return got
		}
		if err != nil {
			t.Fatalf("ReadPacket: %v", err)
		}
		got = append(got, p)
	}
}

func samplePackets() [][]byte {
	return [][]byte{
		bytes.Repeat([]byte{0xfc}, 120),
		{0x08, 0x01},
		bytes.Repeat([]byte{0x78, 0x9a}, 300), // spans three lacing segments
	}
}

func TestFrameWriterReader_RoundTrip(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	w := container.NewFrameWriter(&buf)
	want := samplePackets()
	for _, p := range want {
		if err := w.WritePacket(p); err != nil {
			t.Fatalf("WritePacket: %v", err)
		}
	}
	if got := buf.Len(); got != 2*3+120+2+600 {
		t.Errorf("framed size = %d", got)
	}

	got := readAll(t, container.NewFrameReader(&buf))
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("packets mismatch (-want +got):\n%s", diff)
	}
}

func TestFrameWriter_TooLarge(t *testing.T) {
	t.Parallel()
	w := container.NewFrameWriter(io.Discard)
	err := w.WritePacket(make([]byte, 1<<16))
	if !errors.Is(err, container.ErrPacketTooLarge) {
		t.Errorf("err = %v, want ErrPacketTooLarge", err)
	}
}

func TestFrameReader_Truncated(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		data []byte
	}{
		{"inside prefix", []byte{0x05}},
		{"inside payload", []byte{0x05, 0x00, 1, 2}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			_, err := container.NewFrameReader(bytes.NewReader(tc.data)).ReadPacket()
			if !errors.Is(err, io.ErrUnexpectedEOF) {
				t.Errorf("err = %v, want io.ErrUnexpectedEOF", err)
			}
		})
	}
}

func TestOggReader_SkipsHeaders(t *testing.T) {
	t.Parallel()
	want := samplePackets()
	r := container.NewOggReader(bytes.NewReader(oggOpusStream(2, want...)))

	got := readAll(t, r)
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("packets mismatch (-want +got):\n%s", diff)
	}
	if r.Channels() != 2 {
		t.Errorf("Channels() = %d, want 2", r.Channels())
	}
}

func TestOggReader_NotOpus(t *testing.T) {
	t.Parallel()
	stream := oggPage(0x02, 0, 0, []byte("\x01vorbis-identification-header"))
	_, err := container.NewOggReader(bytes.NewReader(stream)).ReadPacket()
	if !errors.Is(err, container.ErrNotOpus) {
		t.Errorf("err = %v, want ErrNotOpus", err)
	}
}

func TestOggReader_Empty(t *testing.T) {
	t.Parallel()
	_, err := container.NewOggReader(bytes.NewReader(nil)).ReadPacket()
	if !errors.Is(err, io.EOF) {
		t.Errorf("err = %v, want io.EOF", err)
	}
}

func TestPayloads(t *testing.T) {
	t.Parallel()
	packets := samplePackets()
	var framed bytes.Buffer
	w := container.NewFrameWriter(&framed)
	for _, p := range packets {
		if err := w.WritePacket(p); err != nil {
			t.Fatal(err)
		}
	}

	got, err := io.ReadAll(container.Payloads(container.NewFrameReader(&framed)))
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	want := bytes.Join(packets, nil)
	if !bytes.Equal(got, want) {
		t.Errorf("payloads = %d bytes, want %d", len(got), len(want))
	}
}
