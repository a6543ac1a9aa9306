package fusion

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestScanBufferPushBinsAndTransforms(t *testing.T) {
	sb := NewScanBuffer(360, 3, 1, 0)
	sb.Push([]RawSample{{AngleRad: 0, DistanceM: 2, Quality: 50}})

	ring := sb.Ring(0)
	require.True(t, ring[0].Touched)
	require.InDelta(t, 2.0, ring[0].Coord.X, 1e-9)
	require.InDelta(t, 0.0, ring[0].Coord.Y, 1e-9)
}

func TestScanBufferPushAppliesRangeCorrection(t *testing.T) {
	sb := NewScanBuffer(360, 2, 1, 0.1)
	sb.Push([]RawSample{{AngleRad: 0, DistanceM: 2, Quality: 50}})
	ring := sb.Ring(0)
	// d' = d*(c1 + c2*d) = 2*(1+0.2) = 2.4
	require.InDelta(t, 2.4, ring[0].Distance, 1e-9)
}

func TestScanBufferRotatesRings(t *testing.T) {
	sb := NewScanBuffer(4, 2, 1, 0)
	sb.Push([]RawSample{{AngleRad: 0, DistanceM: 1, Quality: 10}})
	sb.Push([]RawSample{{AngleRad: 0, DistanceM: 2, Quality: 20}})

	require.InDelta(t, 2.0, sb.Ring(0)[0].Distance, 1e-9)
	require.InDelta(t, 1.0, sb.Ring(1)[0].Distance, 1e-9)
}

func TestScanBufferBinWrapsNegativeAngle(t *testing.T) {
	sb := NewScanBuffer(360, 1, 1, 0)
	sb.Push([]RawSample{{AngleRad: -math.Pi / 180, DistanceM: 1, Quality: 10}})
	ring := sb.Ring(0)
	found := false
	for _, s := range ring {
		if s.Touched {
			found = true
		}
	}
	require.True(t, found)
}

func TestScanBufferTemporallyNoisy(t *testing.T) {
	sb := NewScanBuffer(4, 3, 1, 0)
	sb.Push([]RawSample{{AngleRad: 0, DistanceM: 1, Quality: 1}}) // low quality
	sb.Push([]RawSample{{AngleRad: 0, DistanceM: 1, Quality: 50}})

	require.True(t, sb.TemporallyNoisy(0, 5))
}

func TestScanBufferAccumModeAveragesAndCleans(t *testing.T) {
	sb := NewScanBuffer(4, 1, 1, 0)
	sb.SetAccumMode(true)
	sb.Push([]RawSample{{AngleRad: 0, DistanceM: 1, Quality: 10}})
	sb.Push([]RawSample{{AngleRad: 0, DistanceM: 3, Quality: 10}})

	avg, count := sb.AccumAverage(0)
	require.Equal(t, 2, count)
	require.InDelta(t, 2.0, avg.X, 1e-9)

	sb.CleanupAccum(100, 10) // expected=1000, threshold=100, count=2 < 100
	_, countAfter := sb.AccumAverage(0)
	require.Equal(t, 0, countAfter)
}

func TestScanBufferSetAccumModeOffClearsAccumulators(t *testing.T) {
	sb := NewScanBuffer(4, 1, 1, 0)
	sb.SetAccumMode(true)
	sb.Push([]RawSample{{AngleRad: 0, DistanceM: 1, Quality: 10}})
	sb.SetAccumMode(false)

	_, count := sb.AccumAverage(0)
	require.Equal(t, 0, count)
}

func TestScanBufferRingOutOfRange(t *testing.T) {
	sb := NewScanBuffer(4, 2, 1, 0)
	require.Nil(t, sb.Ring(-1))
	require.Nil(t, sb.Ring(5))
}
