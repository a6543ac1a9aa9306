package scansource

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestCSVLineParserValidLine(t *testing.T) {
	sample, ok := CSVLineParser("1.5708,2.0,100")
	require.True(t, ok)
	require.InDelta(t, 1.5708, sample.AngleRad, 1e-9)
	require.InDelta(t, 2.0, sample.DistanceM, 1e-9)
	require.Equal(t, 100, sample.Quality)
}

func TestCSVLineParserRejectsMalformedLines(t *testing.T) {
	_, ok := CSVLineParser("not,enough")
	require.False(t, ok)

	_, ok = CSVLineParser("a,b,c")
	require.False(t, ok)

	_, ok = CSVLineParser("")
	require.False(t, ok)
}

func TestSerialSourceGrabScanParsesBufferedLines(t *testing.T) {
	lines := make(chan string, 4)
	lines <- "0.0,1.0,90"
	lines <- "garbage"
	lines <- "0.1,1.1,90"
	close(lines)

	s := &SerialSource{parse: CSVLineParser, lines: lines}
	out, got := s.GrabScan(context.Background(), nil, 50*time.Millisecond)
	require.True(t, got)
	require.Len(t, out, 2)
}

func TestSerialSourceGrabScanRespectsTimeout(t *testing.T) {
	s := &SerialSource{parse: CSVLineParser, lines: make(chan string)}
	start := time.Now()
	out, got := s.GrabScan(context.Background(), nil, 20*time.Millisecond)
	require.False(t, got)
	require.Empty(t, out)
	require.GreaterOrEqual(t, time.Since(start), 20*time.Millisecond)
}

func TestSerialSourceGrabScanRespectsContextCancel(t *testing.T) {
	s := &SerialSource{parse: CSVLineParser, lines: make(chan string)}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	out, got := s.GrabScan(ctx, nil, time.Second)
	require.False(t, got)
	require.Empty(t, out)
}

func TestSerialSourcePingInfoReportsFamily(t *testing.T) {
	s := NewSerialSource("ldlidar", nil, CSVLineParser, Spec{NumSamples: 360})
	info, err := s.PingInfo(context.Background())
	require.NoError(t, err)
	require.Equal(t, "ldlidar", info.Model)
}
