// Package scansource implements the §6 ScanSource contract: one adapter per
// hardware family, normalising vendor-specific framing into a flat slice of
// polar returns so nothing above this boundary knows which chipset it is
// talking to.
package scansource

import (
	"context"
	"time"

	"github.com/banshee-data/lidarfusion/internal/fusion"
)

// MotorState selects how a device's spinning motor (if any) should run.
type MotorState int

const (
	MotorOff MotorState = iota
	MotorOn
	MotorPWM
)

// DeviceInfo is the vendor identification returned by PingInfo.
type DeviceInfo struct {
	Model     string
	Firmware  string
	SerialNum string
}

// Spec is the immutable device geometry/rate returned by Open, matching
// spec.md §3's `spec = {max_range, num_samples, scan_freq, min_quality,
// env_min_quality}`.
type Spec struct {
	MaxRange     float64
	NumSamples   int
	ScanFreqHz   float64
	MinQuality   int
	EnvMinQuality int
}

// ScanSource is implemented by SerialSource and TCPSource (each taking a
// family name and a LineParser) and by the MockSource test double, and consumed by
// device.Stage. No per-vendor state may leak above this boundary.
type ScanSource interface {
	// Open connects to devicePath (a serial path or host:port) and returns
	// the device's fixed spec. baudHint is advisory; implementations that
	// don't need it may ignore it.
	Open(ctx context.Context, devicePath string, baudHint int) (Spec, error)
	Close() error
	// GrabScan blocks up to timeout for one full revolution and appends
	// normalised samples to out, returning true if any were read.
	GrabScan(ctx context.Context, out []fusion.RawSample, timeout time.Duration) ([]fusion.RawSample, bool)
	SetMotor(state MotorState, speedHz float64) error
	PingInfo(ctx context.Context) (DeviceInfo, error)
}
