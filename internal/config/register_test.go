package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestDefaultRegisterConfigPassesValidate(t *testing.T) {
	require.NoError(t, DefaultRegisterConfig().Validate())
}

func TestRegisterConfigFluentSetters(t *testing.T) {
	c := DefaultRegisterConfig().
		WithAccumSec(20 * time.Second).
		WithMarkerMatchDifference(0.2).
		WithMaxObjectDistanceOfMarkers(3.0).
		WithGraphCloseRounds(5)

	require.Equal(t, 20*time.Second, c.AccumSec)
	require.Equal(t, 0.2, c.MarkerMatchDifference)
	require.Equal(t, 3.0, c.MaxObjectDistanceOfMarkers)
	require.Equal(t, 5, c.GraphCloseRounds)
	require.NoError(t, c.Validate())
}

func TestRegisterConfigValidateRejectsOutOfRange(t *testing.T) {
	cases := []func(*RegisterConfig){
		func(c *RegisterConfig) { c.AccumSec = 0 },
		func(c *RegisterConfig) { c.MaxObjectDistanceOfMarkers = 0 },
		func(c *RegisterConfig) { c.MarkerMatchDifference = 0 },
		func(c *RegisterConfig) { c.CoarseRotationSamples = 0 },
		func(c *RegisterConfig) { c.FineRotationSamples = 0 },
		func(c *RegisterConfig) { c.GraphCloseRounds = 0 },
	}
	for _, mutate := range cases {
		c := DefaultRegisterConfig()
		mutate(c)
		require.Error(t, c.Validate())
	}
}

func TestDefaultDeviceConfigPassesValidate(t *testing.T) {
	require.NoError(t, DefaultDeviceConfig().Validate())
}

func TestDeviceConfigFluentSetters(t *testing.T) {
	c := DefaultDeviceConfig().
		WithFamily("ldlidar").
		WithDevicePath("/dev/ttyUSB0").
		WithNumSamples(720).
		WithMaxRange(12.0).
		WithRangeCoeffs(1.01, 0.002).
		WithNumBuffers(5)

	require.Equal(t, "ldlidar", c.Family)
	require.Equal(t, "/dev/ttyUSB0", c.DevicePath)
	require.Equal(t, 720, c.NumSamples)
	require.Equal(t, 12.0, c.MaxRange)
	require.Equal(t, 1.01, c.RangeCoeffC1)
	require.Equal(t, 0.002, c.RangeCoeffC2)
	require.Equal(t, 5, c.NumBuffers)
	require.NoError(t, c.Validate())
}

func TestDeviceConfigValidateRejectsOutOfRange(t *testing.T) {
	cases := []func(*DeviceConfig){
		func(c *DeviceConfig) { c.NumSamples = 0 },
		func(c *DeviceConfig) { c.MaxRange = 0 },
		func(c *DeviceConfig) { c.NumBuffers = 0 },
		func(c *DeviceConfig) { c.OpenTimeout = 0 },
		func(c *DeviceConfig) { c.NoDataTimeout = 0 },
	}
	for _, mutate := range cases {
		c := DefaultDeviceConfig()
		mutate(c)
		require.Error(t, c.Validate())
	}
}
