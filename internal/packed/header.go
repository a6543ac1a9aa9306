// Package packed implements PackedCodec (C7): the fixed-width binary frame
// format exchanged between DeviceStages, the playback engine, and recorded
// files, grounded directly on the original PackedTrackable wire layout.
package packed

import (
	"encoding/binary"
	"fmt"
)

// HeaderType is the low byte of Header.Flags.
type HeaderType uint16

const (
	TypeBits HeaderType = 0xff

	Unknown     HeaderType = 0
	FrameHeader HeaderType = 1
	StartHeader HeaderType = 2
	StopHeader  HeaderType = 3

	VersionBits HeaderType = 0xff00

	Version1 HeaderType = 0 << 8
	Version2 HeaderType = 1 << 8
)

// HeaderSize is the encoded byte length of a Header: zero(4) + flags(2) +
// size(2) + timestamp(8).
const HeaderSize = 16

// Header precedes every record on the wire or in a recorded file.
type Header struct {
	Zero      uint32
	Flags     uint16
	Size      uint16
	Timestamp uint64 // unix milliseconds
}

// NewHeader builds a Header for typ at tstamp, defaulting to Version2 and
// applying the original format's zero-timestamp bias: a timestamp whose low
// 32 bits are zero is nudged to 1 so a reader's `zero == 0` resync check is
// never confused with a legitimate record whose low timestamp bits are
// zero. This ±1 bias is followed exactly as the original implements it
// (spec.md §9's first open question: no simplification attempted).
func NewHeader(tstamp uint64, typ HeaderType) Header {
	flags := uint16(typ) | uint16(Version2)
	if uint32(tstamp) == 0 {
		tstamp |= 1
	}
	return Header{Flags: flags, Size: 0, Timestamp: tstamp}
}

func (h Header) IsType(t HeaderType) bool {
	return HeaderType(h.Flags)&TypeBits == t
}

func (h Header) IsVersion(v HeaderType) bool {
	return HeaderType(h.Flags)&VersionBits == v
}

func (h Header) Version() HeaderType {
	return HeaderType(h.Flags) & VersionBits
}

func (h Header) TimeStampValid() bool {
	return h.Timestamp > 1
}

// MarshalBinary encodes the header little-endian, matching the original's
// packed C struct layout byte for byte.
func (h Header) MarshalBinary() []byte {
	buf := make([]byte, HeaderSize)
	binary.LittleEndian.PutUint32(buf[0:4], h.Zero)
	binary.LittleEndian.PutUint16(buf[4:6], h.Flags)
	binary.LittleEndian.PutUint16(buf[6:8], h.Size)
	binary.LittleEndian.PutUint64(buf[8:16], h.Timestamp)
	return buf
}

// UnmarshalHeader decodes a Header from the front of data.
func UnmarshalHeader(data []byte) (Header, error) {
	if len(data) < HeaderSize {
		return Header{}, fmt.Errorf("packed: short header: %d bytes", len(data))
	}
	return Header{
		Zero:      binary.LittleEndian.Uint32(data[0:4]),
		Flags:     binary.LittleEndian.Uint16(data[4:6]),
		Size:      binary.LittleEndian.Uint16(data[6:8]),
		Timestamp: binary.LittleEndian.Uint64(data[8:16]),
	}, nil
}
