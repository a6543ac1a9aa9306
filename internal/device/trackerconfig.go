package device

import (
	"github.com/banshee-data/lidarfusion/internal/config"
	"github.com/banshee-data/lidarfusion/internal/fusion"
)

// TrackerConfigFrom narrows a *config.TrackConfig to the fusion.TrackerConfig
// subset MultiStageTracker actually consumes, keeping internal/fusion free
// of a dependency on internal/config.
func TrackerConfigFrom(c *config.TrackConfig) fusion.TrackerConfig {
	mode := fusion.UniteStageMode
	return fusion.TrackerConfig{
		UniteDistance:      c.UniteDistance,
		TrackDistance:      c.TrackDistance,
		TrackOldestFactor:  c.TrackOldestFactor,
		LatentDistance:     c.LatentDistance,
		LatentLifeTime:     c.LatentLifeTime,
		TrackMotionPredict: c.TrackMotionPredict,
		KeepTime:           c.KeepTime,
		MinActiveTime:      c.MinActiveTime,
		MinActiveFraction:  c.MinActiveFraction,
		TrackFilterWeight:  c.TrackFilterWeight,
		TrackSmoothing:     c.TrackSmoothing,
		PrivateTimeout:     c.PrivateTimeout,
		ImmobileTimeout:    c.ImmobileTimeout,
		ImmobileDistance:   c.ImmobileDistance,
		UniteMode:          mode,
	}
}
