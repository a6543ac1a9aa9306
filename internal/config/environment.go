package config

import (
	"fmt"
	"time"
)

// EnvironmentConfig provides a configuration builder for EnvironmentModel
// (C2): scan duration, erode/smooth filter size, adaptation, and the
// subtraction threshold.
type EnvironmentConfig struct {
	ScanSec           time.Duration // duration of a learning pass (lidar.env.scanSec, default: 2s)
	AdaptSec          time.Duration // 0 disables continuous adaptation (lidar.env.adaptSec, default: 0)
	Threshold         float64       // metres added beyond env distance before subtraction fires (default: 0.1)
	MinQuality        int           // quality floor during Scan (default: 10)
	FilterMinDistance float64       // metres; erode/smooth closeness gate (lidar.env.filterMinDistance, default: 0.1)
	FilterSize        float64       // radians; erode/smooth angular window (lidar.env.filterSize, default: 0.1)
}

// DefaultEnvironmentConfig returns an EnvironmentConfig with the defaults
// named in the lidar.env.* tunable table.
func DefaultEnvironmentConfig() *EnvironmentConfig {
	return &EnvironmentConfig{
		ScanSec:           2 * time.Second,
		AdaptSec:          0,
		Threshold:         0.1,
		MinQuality:        10,
		FilterMinDistance: 0.1,
		FilterSize:        0.1,
	}
}

// Validate checks that the configuration is in range.
func (c *EnvironmentConfig) Validate() error {
	if c.ScanSec < 0 {
		return fmt.Errorf("ScanSec must be non-negative, got %v", c.ScanSec)
	}
	if c.AdaptSec < 0 {
		return fmt.Errorf("AdaptSec must be non-negative, got %v", c.AdaptSec)
	}
	if c.Threshold < 0 {
		return fmt.Errorf("Threshold must be non-negative, got %f", c.Threshold)
	}
	if c.FilterMinDistance < 0 {
		return fmt.Errorf("FilterMinDistance must be non-negative, got %f", c.FilterMinDistance)
	}
	if c.FilterSize <= 0 {
		return fmt.Errorf("FilterSize must be positive, got %f", c.FilterSize)
	}
	return nil
}

func (c *EnvironmentConfig) WithScanSec(d time.Duration) *EnvironmentConfig {
	c.ScanSec = d
	return c
}
func (c *EnvironmentConfig) WithAdaptSec(d time.Duration) *EnvironmentConfig {
	c.AdaptSec = d
	return c
}
func (c *EnvironmentConfig) WithThreshold(t float64) *EnvironmentConfig {
	c.Threshold = t
	return c
}
func (c *EnvironmentConfig) WithMinQuality(q int) *EnvironmentConfig {
	c.MinQuality = q
	return c
}
func (c *EnvironmentConfig) WithFilterMinDistance(d float64) *EnvironmentConfig {
	c.FilterMinDistance = d
	return c
}
func (c *EnvironmentConfig) WithFilterSize(s float64) *EnvironmentConfig {
	c.FilterSize = s
	return c
}

// ObjectConfig provides a configuration builder for ObjectSegmenter (C3).
type ObjectConfig struct {
	MaxDistance   float64 // metres; gap that starts a new blob (lidar.object.maxDistance, default: 0.3)
	MinExtent     float64 // metres; minimum chord to finalise a blob (lidar.object.minExtent, default: 0.02)
	MaxExtent     float64 // metres; chord above which a blob is split (lidar.object.maxExtent, default: 1.0)
	TrackDistance float64 // metres; frame-to-frame blob match radius (lidar.object.trackDistance, default: 0.3)
	MaxCurvature  float64 // radians; curvature clamp divisor (default: pi/2)
	MaxMarkerDistance float64 // metres; marker-pair max centre distance (default: 2.5)
}

// DefaultObjectConfig returns an ObjectConfig with the defaults named in the
// lidar.object.* tunable table.
func DefaultObjectConfig() *ObjectConfig {
	return &ObjectConfig{
		MaxDistance:       0.3,
		MinExtent:         0.02,
		MaxExtent:         1.0,
		TrackDistance:     0.3,
		MaxCurvature:      1.5707963267948966,
		MaxMarkerDistance: 2.5,
	}
}

// Validate checks that the configuration is in range.
func (c *ObjectConfig) Validate() error {
	if c.MaxDistance <= 0 {
		return fmt.Errorf("MaxDistance must be positive, got %f", c.MaxDistance)
	}
	if c.MinExtent < 0 {
		return fmt.Errorf("MinExtent must be non-negative, got %f", c.MinExtent)
	}
	if c.MaxExtent <= c.MinExtent {
		return fmt.Errorf("MaxExtent (%f) must exceed MinExtent (%f)", c.MaxExtent, c.MinExtent)
	}
	if c.TrackDistance <= 0 {
		return fmt.Errorf("TrackDistance must be positive, got %f", c.TrackDistance)
	}
	if c.MaxCurvature <= 0 {
		return fmt.Errorf("MaxCurvature must be positive, got %f", c.MaxCurvature)
	}
	if c.MaxMarkerDistance <= 0 {
		return fmt.Errorf("MaxMarkerDistance must be positive, got %f", c.MaxMarkerDistance)
	}
	return nil
}

func (c *ObjectConfig) WithMaxDistance(d float64) *ObjectConfig { c.MaxDistance = d; return c }
func (c *ObjectConfig) WithMinExtent(d float64) *ObjectConfig   { c.MinExtent = d; return c }
func (c *ObjectConfig) WithMaxExtent(d float64) *ObjectConfig   { c.MaxExtent = d; return c }
func (c *ObjectConfig) WithTrackDistance(d float64) *ObjectConfig {
	c.TrackDistance = d
	return c
}
func (c *ObjectConfig) WithMaxMarkerDistance(d float64) *ObjectConfig {
	c.MaxMarkerDistance = d
	return c
}
