package packed

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/banshee-data/lidarfusion/internal/fusion"
)

func TestNewBinaryZeroBias(t *testing.T) {
	b := NewBinary(7, 0, 0, 0, fusion.FlagTouched)
	require.NotZero(t, b.X)
	require.NotZero(t, b.Y)
	require.NotZero(t, b.Size)
	require.Equal(t, uint32(7), b.TID)
}

func TestBinaryEncodeDecodeRoundTripV2(t *testing.T) {
	b := NewBinary(42, 1.25, -3.5, 0.4, fusion.FlagPrivate|fusion.FlagPortal)
	enc := b.EncodeV2()
	require.Len(t, enc, BinaryV2Size)

	got, n, err := DecodeBinary(enc, Version2)
	require.NoError(t, err)
	require.Equal(t, BinaryV2Size, n)
	require.Equal(t, b.TID, got.TID)
	require.Equal(t, b.X, got.X)
	require.Equal(t, b.Y, got.Y)
	require.Equal(t, b.Flags, got.Flags)
}

func TestBinaryEncodeDecodeRoundTripV1(t *testing.T) {
	b := NewBinary(3, 0.5, 0.5, 0.2, fusion.FlagGreen)
	enc := b.EncodeV1()
	require.Len(t, enc, BinaryV1Size)

	got, n, err := DecodeBinary(enc, Version1)
	require.NoError(t, err)
	require.Equal(t, BinaryV1Size, n)
	require.Equal(t, b.X, got.X)
	require.Equal(t, b.Y, got.Y)
}

func TestHeaderMarshalUnmarshal(t *testing.T) {
	h := NewHeader(123456, FrameHeader)
	data := h.MarshalBinary()
	require.Len(t, data, HeaderSize)

	got, err := UnmarshalHeader(data)
	require.NoError(t, err)
	require.True(t, got.IsType(FrameHeader))
	require.Equal(t, Version2, got.Version())
	require.Equal(t, h.Timestamp, got.Timestamp)
}

func TestHeaderZeroTimestampBias(t *testing.T) {
	h := NewHeader(0, FrameHeader)
	require.Equal(t, uint64(1), h.Timestamp)
	require.False(t, h.TimeStampValid())
}
