package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestDefaultEnvironmentConfigPassesValidate(t *testing.T) {
	require.NoError(t, DefaultEnvironmentConfig().Validate())
}

func TestEnvironmentConfigFluentSetters(t *testing.T) {
	c := DefaultEnvironmentConfig().
		WithScanSec(5 * time.Second).
		WithAdaptSec(time.Minute).
		WithThreshold(0.2).
		WithMinQuality(20).
		WithFilterMinDistance(0.3).
		WithFilterSize(0.4)

	require.Equal(t, 5*time.Second, c.ScanSec)
	require.Equal(t, time.Minute, c.AdaptSec)
	require.Equal(t, 0.2, c.Threshold)
	require.Equal(t, 20, c.MinQuality)
	require.Equal(t, 0.3, c.FilterMinDistance)
	require.Equal(t, 0.4, c.FilterSize)
	require.NoError(t, c.Validate())
}

func TestEnvironmentConfigValidateRejectsOutOfRange(t *testing.T) {
	cases := []func(*EnvironmentConfig){
		func(c *EnvironmentConfig) { c.ScanSec = -time.Second },
		func(c *EnvironmentConfig) { c.AdaptSec = -time.Second },
		func(c *EnvironmentConfig) { c.Threshold = -0.1 },
		func(c *EnvironmentConfig) { c.FilterMinDistance = -0.1 },
		func(c *EnvironmentConfig) { c.FilterSize = 0 },
	}
	for _, mutate := range cases {
		c := DefaultEnvironmentConfig()
		mutate(c)
		require.Error(t, c.Validate())
	}
}

func TestDefaultObjectConfigPassesValidate(t *testing.T) {
	require.NoError(t, DefaultObjectConfig().Validate())
}

func TestObjectConfigFluentSetters(t *testing.T) {
	c := DefaultObjectConfig().
		WithMaxDistance(0.5).
		WithMinExtent(0.05).
		WithMaxExtent(2.0).
		WithTrackDistance(0.4).
		WithMaxMarkerDistance(3.0)

	require.Equal(t, 0.5, c.MaxDistance)
	require.Equal(t, 0.05, c.MinExtent)
	require.Equal(t, 2.0, c.MaxExtent)
	require.Equal(t, 0.4, c.TrackDistance)
	require.Equal(t, 3.0, c.MaxMarkerDistance)
	require.NoError(t, c.Validate())
}

func TestObjectConfigValidateRejectsOutOfRange(t *testing.T) {
	cases := []func(*ObjectConfig){
		func(c *ObjectConfig) { c.MaxDistance = 0 },
		func(c *ObjectConfig) { c.MinExtent = -1 },
		func(c *ObjectConfig) { c.MaxExtent = c.MinExtent },
		func(c *ObjectConfig) { c.TrackDistance = 0 },
		func(c *ObjectConfig) { c.MaxCurvature = 0 },
		func(c *ObjectConfig) { c.MaxMarkerDistance = 0 },
	}
	for _, mutate := range cases {
		c := DefaultObjectConfig()
		mutate(c)
		require.Error(t, c.Validate())
	}
}
