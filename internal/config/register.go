package config

import (
	"fmt"
	"time"
)

// RegisterConfig provides a configuration builder for RegistrationSolver
// (C5).
type RegisterConfig struct {
	AccumSec                  time.Duration // accumulation window per device (lidar.register.sec, default: 10s)
	MaxObjectDistanceOfMarkers float64      // metres; max centre distance forming a marker pair (default: 2.5)
	MarkerMatchDifference     float64       // metres; residual below which a transform is accepted (default: 0.1)
	CoarseRotationSamples     int           // numSamples1, coarse rotation search count (default: 51)
	FineRotationSamples       int           // numSamples2, fine rotation search count (default: 27)
	CoarseRotationRangeRad    float64       // +/- range of the coarse search (default: 10 degrees in radians)
	FineRotationDivisor       float64       // fine search range = CoarseRotationRangeRad/FineRotationDivisor (default: 30)
	GraphCloseRounds          int           // max rounds closing the transitive graph (default: 10)
}

// DefaultRegisterConfig returns a RegisterConfig with the defaults named in
// the lidar.register.* tunable table and §4.5.
func DefaultRegisterConfig() *RegisterConfig {
	return &RegisterConfig{
		AccumSec:                   10 * time.Second,
		MaxObjectDistanceOfMarkers: 2.5,
		MarkerMatchDifference:      0.1,
		CoarseRotationSamples:      51,
		FineRotationSamples:        27,
		CoarseRotationRangeRad:     10 * (3.141592653589793 / 180),
		FineRotationDivisor:        30,
		GraphCloseRounds:           10,
	}
}

// Validate checks that the configuration is in range.
func (c *RegisterConfig) Validate() error {
	if c.AccumSec <= 0 {
		return fmt.Errorf("AccumSec must be positive, got %v", c.AccumSec)
	}
	if c.MaxObjectDistanceOfMarkers <= 0 {
		return fmt.Errorf("MaxObjectDistanceOfMarkers must be positive, got %f", c.MaxObjectDistanceOfMarkers)
	}
	if c.MarkerMatchDifference <= 0 {
		return fmt.Errorf("MarkerMatchDifference must be positive, got %f", c.MarkerMatchDifference)
	}
	if c.CoarseRotationSamples < 1 {
		return fmt.Errorf("CoarseRotationSamples must be positive, got %d", c.CoarseRotationSamples)
	}
	if c.FineRotationSamples < 1 {
		return fmt.Errorf("FineRotationSamples must be positive, got %d", c.FineRotationSamples)
	}
	if c.GraphCloseRounds < 1 {
		return fmt.Errorf("GraphCloseRounds must be positive, got %d", c.GraphCloseRounds)
	}
	return nil
}

func (c *RegisterConfig) WithAccumSec(d time.Duration) *RegisterConfig { c.AccumSec = d; return c }
func (c *RegisterConfig) WithMarkerMatchDifference(d float64) *RegisterConfig {
	c.MarkerMatchDifference = d
	return c
}
func (c *RegisterConfig) WithMaxObjectDistanceOfMarkers(d float64) *RegisterConfig {
	c.MaxObjectDistanceOfMarkers = d
	return c
}
func (c *RegisterConfig) WithGraphCloseRounds(n int) *RegisterConfig {
	c.GraphCloseRounds = n
	return c
}

// DeviceConfig provides a configuration builder for a single DeviceStage
// (C4): hardware spec plus the range-correction coefficients.
type DeviceConfig struct {
	Family       string        // driver family tag: ldlidar, lslidar, mslidar, ydlidar, generic
	DevicePath   string        // serial path or host:port
	BaudHint     int           // preferred baud rate, 0 = family default
	MaxRange     float64       // metres
	NumSamples   int           // ring width
	ScanFreqHz   float64       // expected native scan rate
	MinQuality   int           // quality floor for C1 validity
	EnvMinQuality int          // quality floor used by C2 learn
	RangeCoeffC1 float64       // linear range correction d' = d*(c1 + c2*d)
	RangeCoeffC2 float64
	NumBuffers   int           // ScanBuffer ring depth (default: 3)
	OpenTimeout  time.Duration // time to wait for the open sequence (default: 5s)
	NoDataTimeout time.Duration // time with zero samples before "no data" (default: 30s)
}

// DefaultDeviceConfig returns a DeviceConfig with generic defaults; Family
// and DevicePath must still be set by the caller.
func DefaultDeviceConfig() *DeviceConfig {
	return &DeviceConfig{
		Family:        "generic",
		MaxRange:      8.0,
		NumSamples:    1440,
		ScanFreqHz:    10,
		MinQuality:    10,
		EnvMinQuality: 10,
		RangeCoeffC1:  1.0,
		RangeCoeffC2:  0.0,
		NumBuffers:    3,
		OpenTimeout:   5 * time.Second,
		NoDataTimeout: 30 * time.Second,
	}
}

// Validate checks that the configuration is in range.
func (c *DeviceConfig) Validate() error {
	if c.NumSamples <= 0 {
		return fmt.Errorf("NumSamples must be positive, got %d", c.NumSamples)
	}
	if c.MaxRange <= 0 {
		return fmt.Errorf("MaxRange must be positive, got %f", c.MaxRange)
	}
	if c.NumBuffers < 1 {
		return fmt.Errorf("NumBuffers must be at least 1, got %d", c.NumBuffers)
	}
	if c.OpenTimeout <= 0 {
		return fmt.Errorf("OpenTimeout must be positive, got %v", c.OpenTimeout)
	}
	if c.NoDataTimeout <= 0 {
		return fmt.Errorf("NoDataTimeout must be positive, got %v", c.NoDataTimeout)
	}
	return nil
}

func (c *DeviceConfig) WithFamily(f string) *DeviceConfig     { c.Family = f; return c }
func (c *DeviceConfig) WithDevicePath(p string) *DeviceConfig { c.DevicePath = p; return c }
func (c *DeviceConfig) WithNumSamples(n int) *DeviceConfig    { c.NumSamples = n; return c }
func (c *DeviceConfig) WithMaxRange(r float64) *DeviceConfig  { c.MaxRange = r; return c }
func (c *DeviceConfig) WithRangeCoeffs(c1, c2 float64) *DeviceConfig {
	c.RangeCoeffC1, c.RangeCoeffC2 = c1, c2
	return c
}
func (c *DeviceConfig) WithNumBuffers(n int) *DeviceConfig { c.NumBuffers = n; return c }
