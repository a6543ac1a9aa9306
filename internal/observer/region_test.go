package observer

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/banshee-data/lidarfusion/internal/fusion"
)

func TestRegionContainsRect(t *testing.T) {
	r := NewRegion("gate", RegionRect, 0, 0, 2, 2, false, false)
	require.True(t, r.Contains(fusion.Vec2{X: 1, Y: 1}))
	require.False(t, r.Contains(fusion.Vec2{X: 3, Y: 0}))
}

func TestRegionContainsCentredRect(t *testing.T) {
	r := NewRegion("gate", RegionRect, 4, 4, 2, 2, true, false)
	require.True(t, r.Contains(fusion.Vec2{X: 5, Y: 5}))
	require.False(t, r.Contains(fusion.Vec2{X: 6.5, Y: 5}))
}

func TestRegionContainsEllipse(t *testing.T) {
	r := NewRegion("disc", RegionEllipse, 0, 0, 2, 2, true, false)
	require.True(t, r.Contains(fusion.Vec2{X: 0, Y: 0}))
	require.False(t, r.Contains(fusion.Vec2{X: 0.9, Y: 0.9}))
}

func TestRegionContainsNormalisedRect(t *testing.T) {
	r := NewRegion("norm", RegionRect, 0, 0, 4, 2, false, true)
	require.True(t, r.Contains(fusion.Vec2{X: 2, Y: 1}))
	require.False(t, r.Contains(fusion.Vec2{X: 5, Y: 0}))
}

func TestRegionUpdateTracksEnterLeaveLifecycle(t *testing.T) {
	r := NewRegion("gate", RegionRect, 0, 0, 2, 2, false, false)
	t0 := time.Now()

	require.True(t, r.Update("a", fusion.Vec2{X: 1, Y: 1}, t0))
	require.Equal(t, 1, r.Counters.Enter)
	require.Equal(t, 1, r.Counters.Gate)

	t1 := t0.Add(500 * time.Millisecond)
	require.False(t, r.Update("a", fusion.Vec2{X: 5, Y: 5}, t1))
	require.Equal(t, 1, r.Counters.Leave)
	require.Equal(t, 0, r.Counters.Gate)
	require.Equal(t, 500*time.Millisecond, r.Counters.AvgLifespan)
}

func TestRegionUpdateReenterRecordsSwitchDuration(t *testing.T) {
	r := NewRegion("gate", RegionRect, 0, 0, 2, 2, false, false)
	t0 := time.Now()
	r.Update("a", fusion.Vec2{X: 1, Y: 1}, t0)
	r.Update("a", fusion.Vec2{X: 5, Y: 5}, t0.Add(time.Second))

	reenterAt := t0.Add(3 * time.Second)
	r.Update("a", fusion.Vec2{X: 1, Y: 1}, reenterAt)
	require.Equal(t, 2*time.Second, r.Counters.SwitchDuration)
}
