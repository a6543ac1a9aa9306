package packed

import (
	"encoding/binary"
	"fmt"

	"github.com/banshee-data/lidarfusion/internal/fusion"
)

// BinaryV1Size and BinaryV2Size are the two record widths the codec must
// stay able to read, per spec.md §6: V2 = 12 bytes (u32,i16,i16,u16,u16),
// V1 = 14 bytes (u16,i16,i16,u16,u16,u16 with a trailing unused field).
const (
	BinaryV1Size = 14
	BinaryV2Size = 12
)

// Binary is one tracked object's wire-form snapshot: a fixed-point
// position, size, and flag bitmap. Coordinates are centimetres with 0
// reserved; NewBinary biases a zero coordinate to ±1 so a reader can always
// distinguish "never set" from "exactly on the axis".
type Binary struct {
	TID   uint32
	X, Y  int16 // centimetres
	Size  uint16
	Flags fusion.Flags
}

// NewBinary converts a tracked object's metric position/size into the
// fixed-point wire form.
func NewBinary(tid uint32, xMeters, yMeters, sizeMeters float64, flags fusion.Flags) Binary {
	b := Binary{
		TID:   tid,
		X:     int16(xMeters * 100),
		Y:     int16(yMeters * 100),
		Size:  uint16(sizeMeters * 100),
		Flags: flags,
	}
	if b.X == 0 {
		b.X = 1
	}
	if b.Y == 0 {
		b.Y = 1
	}
	if b.Size == 0 {
		b.Size = 1
	}
	return b
}

// Meters returns the decoded metric position and size.
func (b Binary) Meters() (x, y, size float64) {
	return float64(b.X) / 100, float64(b.Y) / 100, float64(b.Size) / 100
}

// EncodeV2 writes the 12-byte V2 record.
func (b Binary) EncodeV2() []byte {
	buf := make([]byte, BinaryV2Size)
	binary.LittleEndian.PutUint32(buf[0:4], b.TID)
	binary.LittleEndian.PutUint16(buf[4:6], uint16(b.X))
	binary.LittleEndian.PutUint16(buf[6:8], uint16(b.Y))
	binary.LittleEndian.PutUint16(buf[8:10], b.Size)
	binary.LittleEndian.PutUint16(buf[10:12], uint16(b.Flags))
	return buf
}

// EncodeV1 writes the 14-byte V1 record; the trailing "one" field is
// reserved and always encoded as 1, matching the original layout.
func (b Binary) EncodeV1() []byte {
	buf := make([]byte, BinaryV1Size)
	binary.LittleEndian.PutUint16(buf[0:2], uint16(b.TID))
	binary.LittleEndian.PutUint16(buf[2:4], uint16(b.X))
	binary.LittleEndian.PutUint16(buf[4:6], uint16(b.Y))
	binary.LittleEndian.PutUint16(buf[6:8], b.Size)
	binary.LittleEndian.PutUint16(buf[8:10], uint16(b.Flags))
	binary.LittleEndian.PutUint16(buf[10:12], 1)
	return buf
}

// DecodeBinary decodes one record at the given version.
func DecodeBinary(data []byte, version HeaderType) (Binary, int, error) {
	if version == Version1 {
		if len(data) < BinaryV1Size {
			return Binary{}, 0, fmt.Errorf("packed: short v1 record: %d bytes", len(data))
		}
		return Binary{
			TID:   uint32(binary.LittleEndian.Uint16(data[0:2])),
			X:     int16(binary.LittleEndian.Uint16(data[2:4])),
			Y:     int16(binary.LittleEndian.Uint16(data[4:6])),
			Size:  binary.LittleEndian.Uint16(data[6:8]),
			Flags: fusion.Flags(binary.LittleEndian.Uint16(data[8:10])),
		}, BinaryV1Size, nil
	}

	if len(data) < BinaryV2Size {
		return Binary{}, 0, fmt.Errorf("packed: short v2 record: %d bytes", len(data))
	}
	return Binary{
		TID:   binary.LittleEndian.Uint32(data[0:4]),
		X:     int16(binary.LittleEndian.Uint16(data[4:6])),
		Y:     int16(binary.LittleEndian.Uint16(data[6:8])),
		Size:  binary.LittleEndian.Uint16(data[8:10]),
		Flags: fusion.Flags(binary.LittleEndian.Uint16(data[10:12])),
	}, BinaryV2Size, nil
}

// Size returns the on-wire width of a record at the given version.
func Size(version HeaderType) int {
	if version == Version1 {
		return BinaryV1Size
	}
	return BinaryV2Size
}

// Frame is one full scan's worth of tracked-object snapshots.
type Frame struct {
	Header  Header
	UUID    fusion.UUID
	Entries []Binary
}

// NewFrame starts a frame at tstamp (0 = now), tagged with the given
// device/session uuid.
func NewFrame(tstamp uint64, uuid fusion.UUID) Frame {
	return Frame{Header: NewHeader(tstamp, FrameHeader), UUID: uuid}
}

// Add appends one tracked-object snapshot.
func (f *Frame) Add(tid uint32, x, y, size float64, flags fusion.Flags) {
	f.Entries = append(f.Entries, NewBinary(tid, x, y, size, flags))
}
