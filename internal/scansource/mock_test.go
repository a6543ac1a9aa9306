package scansource

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/banshee-data/lidarfusion/internal/fusion"
)

func TestMockSourceOpenReturnsSpec(t *testing.T) {
	m := &MockSource{Spec: Spec{NumSamples: 360, MaxRange: 8}}
	spec, err := m.Open(context.Background(), "/dev/null", 0)
	require.NoError(t, err)
	require.Equal(t, 360, spec.NumSamples)
}

func TestMockSourceGrabScanAdvancesThenRepeatsLast(t *testing.T) {
	m := &MockSource{
		Scans: [][]fusion.RawSample{
			{{AngleRad: 0, DistanceM: 1, Quality: 10}},
			{{AngleRad: 1, DistanceM: 2, Quality: 20}},
		},
	}

	out1, ok1 := m.GrabScan(context.Background(), nil, time.Millisecond)
	require.True(t, ok1)
	require.Equal(t, 1.0, out1[0].DistanceM)

	out2, ok2 := m.GrabScan(context.Background(), nil, time.Millisecond)
	require.True(t, ok2)
	require.Equal(t, 2.0, out2[0].DistanceM)

	out3, ok3 := m.GrabScan(context.Background(), nil, time.Millisecond)
	require.True(t, ok3)
	require.Equal(t, 2.0, out3[0].DistanceM)
}

func TestMockSourceGrabScanEmptyScansReturnsFalse(t *testing.T) {
	m := &MockSource{}
	out, ok := m.GrabScan(context.Background(), nil, time.Millisecond)
	require.False(t, ok)
	require.Empty(t, out)
}

func TestMockSourceSetMotorRecordsState(t *testing.T) {
	m := &MockSource{}
	require.NoError(t, m.SetMotor(MotorPWM, 5.0))
	require.Equal(t, MotorPWM, m.motor)
}

func TestMockSourceCloseClearsOpened(t *testing.T) {
	m := &MockSource{}
	_, _ = m.Open(context.Background(), "x", 0)
	require.True(t, m.opened)
	require.NoError(t, m.Close())
	require.False(t, m.opened)
}
