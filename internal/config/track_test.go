package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestDefaultTrackConfigPassesValidate(t *testing.T) {
	require.NoError(t, DefaultTrackConfig().Validate())
}

func TestTrackConfigFluentSettersChainAndApply(t *testing.T) {
	c := DefaultTrackConfig().
		WithUniteDistance(0.5).
		WithTrackDistance(0.7).
		WithLatentDistance(0.4).
		WithLatentLifeTime(3 * time.Second).
		WithKeepTime(2 * time.Second).
		WithMinActiveTime(250 * time.Millisecond).
		WithMinActiveFraction(0.5).
		WithTrackSmoothing(0.8).
		WithTrackMotionPredict(0.2).
		WithPrivateTimeout(time.Second).
		WithImmobileTimeout(time.Second).
		WithImmobileDistance(0.15).
		WithDistance2D(false)

	require.Equal(t, 0.5, c.UniteDistance)
	require.Equal(t, 0.7, c.TrackDistance)
	require.Equal(t, 0.4, c.LatentDistance)
	require.Equal(t, 3*time.Second, c.LatentLifeTime)
	require.Equal(t, 2*time.Second, c.KeepTime)
	require.Equal(t, 250*time.Millisecond, c.MinActiveTime)
	require.Equal(t, 0.5, c.MinActiveFraction)
	require.Equal(t, 0.8, c.TrackSmoothing)
	require.Equal(t, 0.2, c.TrackMotionPredict)
	require.Equal(t, time.Second, c.PrivateTimeout)
	require.Equal(t, time.Second, c.ImmobileTimeout)
	require.Equal(t, 0.15, c.ImmobileDistance)
	require.False(t, c.Distance2D)
	require.NoError(t, c.Validate())
}

func TestTrackConfigValidateRejectsOutOfRangeFields(t *testing.T) {
	cases := []func(*TrackConfig){
		func(c *TrackConfig) { c.UniteDistance = -1 },
		func(c *TrackConfig) { c.TrackDistance = -1 },
		func(c *TrackConfig) { c.TrackOldestFactor = 0.5 },
		func(c *TrackConfig) { c.LatentDistance = -1 },
		func(c *TrackConfig) { c.LatentLifeTime = -time.Second },
		func(c *TrackConfig) { c.ObjectMaxSize = 0 },
		func(c *TrackConfig) { c.KeepTime = -time.Second },
		func(c *TrackConfig) { c.MinActiveTime = -time.Second },
		func(c *TrackConfig) { c.MinActiveFraction = 1.5 },
		func(c *TrackConfig) { c.TrackSmoothing = -0.1 },
		func(c *TrackConfig) { c.PrivateTimeout = -time.Second },
		func(c *TrackConfig) { c.ImmobileTimeout = -time.Second },
		func(c *TrackConfig) { c.ImmobileDistance = -1 },
	}
	for _, mutate := range cases {
		c := DefaultTrackConfig()
		mutate(c)
		require.Error(t, c.Validate())
	}
}
