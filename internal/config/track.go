// Package config holds the builder-style tunable groups consumed by every
// component of the fusion pipeline, plus the process-wide ProcessConfig that
// composes them.
package config

import (
	"fmt"
	"time"
)

// TrackConfig provides a configuration builder for the MultiStageTracker
// (C6). It allows setting parameters with defaults and validation before the
// tracker is constructed.
type TrackConfig struct {
	UniteDistance      float64 // metres; merged-blob unite radius (default: 0.3)
	TrackDistance       float64 // metres; predicted-to-merged match radius (default: 0.5)
	TrackOldestFactor   float64 // multiplier applied to TrackDistance for the steal pass (default: 1.5)
	LatentDistance      float64 // metres; latent-id adoption radius (default: 0.5)
	LatentLifeTime      time.Duration // time a latent id survives unclaimed (default: 10s)
	ObjectMaxSize       float64 // metres; objects larger than this are ignored (default: 3.0)
	TrackMotionPredict  float64 // seconds of motion extrapolation (default: 0.3)
	KeepTime            time.Duration // grace period before an unmatched object drops (default: 1s)
	MinActiveTime       time.Duration // minimum age before a candidate activates (default: 500ms)
	MinActiveFraction   float64 // touch-rate required during MinActiveTime (default: 0.25)
	TrackFilterWeight   float64 // blends into the motion alpha (default: 0)
	TrackSmoothing      float64 // position smoothing factor s (default: 0.6)
	Distance2D          bool    // ignore z when computing distances (default: true)
	PrivateTimeout      time.Duration // private-flag continuity requirement (default: 5s)
	ImmobileTimeout     time.Duration // immobility continuity requirement (default: 5s)
	ImmobileDistance    float64 // metres; anchor radius for immobility (default: 0.1)
}

// DefaultTrackConfig returns a TrackConfig with the defaults named in the
// track.* tunable table.
func DefaultTrackConfig() *TrackConfig {
	return &TrackConfig{
		UniteDistance:      0.3,
		TrackDistance:      0.5,
		TrackOldestFactor:  1.5,
		LatentDistance:     0.5,
		LatentLifeTime:     10 * time.Second,
		ObjectMaxSize:      3.0,
		TrackMotionPredict: 0.3,
		KeepTime:           time.Second,
		MinActiveTime:      500 * time.Millisecond,
		MinActiveFraction:  0.25,
		TrackFilterWeight:  0,
		TrackSmoothing:     0.6,
		Distance2D:         true,
		PrivateTimeout:     5 * time.Second,
		ImmobileTimeout:    5 * time.Second,
		ImmobileDistance:   0.1,
	}
}

// Validate checks that the configuration is in range.
func (c *TrackConfig) Validate() error {
	if c.UniteDistance < 0 {
		return fmt.Errorf("UniteDistance must be non-negative, got %f", c.UniteDistance)
	}
	if c.TrackDistance < 0 {
		return fmt.Errorf("TrackDistance must be non-negative, got %f", c.TrackDistance)
	}
	if c.TrackOldestFactor < 1 {
		return fmt.Errorf("TrackOldestFactor must be >= 1, got %f", c.TrackOldestFactor)
	}
	if c.LatentDistance < 0 {
		return fmt.Errorf("LatentDistance must be non-negative, got %f", c.LatentDistance)
	}
	if c.LatentLifeTime < 0 {
		return fmt.Errorf("LatentLifeTime must be non-negative, got %v", c.LatentLifeTime)
	}
	if c.ObjectMaxSize <= 0 {
		return fmt.Errorf("ObjectMaxSize must be positive, got %f", c.ObjectMaxSize)
	}
	if c.KeepTime < 0 {
		return fmt.Errorf("KeepTime must be non-negative, got %v", c.KeepTime)
	}
	if c.MinActiveTime < 0 {
		return fmt.Errorf("MinActiveTime must be non-negative, got %v", c.MinActiveTime)
	}
	if c.MinActiveFraction < 0 || c.MinActiveFraction > 1 {
		return fmt.Errorf("MinActiveFraction must be in [0, 1], got %f", c.MinActiveFraction)
	}
	if c.TrackSmoothing < 0 || c.TrackSmoothing > 1 {
		return fmt.Errorf("TrackSmoothing must be in [0, 1], got %f", c.TrackSmoothing)
	}
	if c.PrivateTimeout < 0 {
		return fmt.Errorf("PrivateTimeout must be non-negative, got %v", c.PrivateTimeout)
	}
	if c.ImmobileTimeout < 0 {
		return fmt.Errorf("ImmobileTimeout must be non-negative, got %v", c.ImmobileTimeout)
	}
	if c.ImmobileDistance < 0 {
		return fmt.Errorf("ImmobileDistance must be non-negative, got %f", c.ImmobileDistance)
	}
	return nil
}

func (c *TrackConfig) WithUniteDistance(d float64) *TrackConfig     { c.UniteDistance = d; return c }
func (c *TrackConfig) WithTrackDistance(d float64) *TrackConfig     { c.TrackDistance = d; return c }
func (c *TrackConfig) WithLatentDistance(d float64) *TrackConfig    { c.LatentDistance = d; return c }
func (c *TrackConfig) WithLatentLifeTime(d time.Duration) *TrackConfig {
	c.LatentLifeTime = d
	return c
}
func (c *TrackConfig) WithKeepTime(d time.Duration) *TrackConfig { c.KeepTime = d; return c }
func (c *TrackConfig) WithMinActiveTime(d time.Duration) *TrackConfig {
	c.MinActiveTime = d
	return c
}
func (c *TrackConfig) WithMinActiveFraction(f float64) *TrackConfig {
	c.MinActiveFraction = f
	return c
}
func (c *TrackConfig) WithTrackSmoothing(s float64) *TrackConfig { c.TrackSmoothing = s; return c }
func (c *TrackConfig) WithTrackMotionPredict(s float64) *TrackConfig {
	c.TrackMotionPredict = s
	return c
}
func (c *TrackConfig) WithPrivateTimeout(d time.Duration) *TrackConfig {
	c.PrivateTimeout = d
	return c
}
func (c *TrackConfig) WithImmobileTimeout(d time.Duration) *TrackConfig {
	c.ImmobileTimeout = d
	return c
}
func (c *TrackConfig) WithImmobileDistance(d float64) *TrackConfig {
	c.ImmobileDistance = d
	return c
}
func (c *TrackConfig) WithDistance2D(b bool) *TrackConfig { c.Distance2D = b; return c }
