// Package device implements DeviceStage (C4): the per-sensor state machine
// that owns a ScanSource, the ScanBuffer/EnvironmentModel/ObjectSegmenter
// triple, the rigid transform, and the scan goroutine that drives them.
package device

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/banshee-data/lidarfusion/internal/config"
	"github.com/banshee-data/lidarfusion/internal/fusion"
	"github.com/banshee-data/lidarfusion/internal/scansource"
)

// Status mirrors spec.md §3's DeviceStage status enum.
type Status int

const (
	StatusClosed Status = iota
	StatusOpening
	StatusReady
	StatusFailed
	StatusPoweringUp
)

func (s Status) String() string {
	switch s {
	case StatusClosed:
		return "closed"
	case StatusOpening:
		return "opening"
	case StatusReady:
		return "ready"
	case StatusFailed:
		return "failed"
	case StatusPoweringUp:
		return "powering_up"
	default:
		return "unknown"
	}
}

// PowerController toggles a platform power-control file on open/close.
// Stages without one run with a no-op controller (see NewStage).
type PowerController interface {
	PowerOn() error
	PowerOff() error
}

type noopPower struct{}

func (noopPower) PowerOn() error  { return nil }
func (noopPower) PowerOff() error { return nil }

// Snapshot is the lock-free read returned by GetObjects: the latest blob
// list plus the transform that produced it.
type Snapshot struct {
	Blobs     []fusion.Blob
	Transform fusion.Mat2x2
	At        time.Time
}

// Stage (C4) owns one sensor's entire pipeline and a goroutine driving it.
type Stage struct {
	id     string
	cfg    *config.DeviceConfig
	source scansource.ScanSource
	power  PowerController

	buffer    *fusion.ScanBuffer
	env       *fusion.EnvironmentModel
	segmenter *fusion.ObjectSegmenter

	mu           sync.RWMutex
	status       Status
	deviceMatrix fusion.Mat2x2 // raw -> local
	viewMatrix   fusion.Mat2x2 // local -> world
	matrix       fusion.Mat2x2 // composed: view * device
	snapshot     Snapshot
	envScanUntil time.Time
	lastSampleAt time.Time

	cancel context.CancelFunc
	done   chan struct{}
}

// NewStage builds a Stage. power may be nil, in which case power
// supervision is a no-op (most serial-attached LiDAR units have no
// software-controlled power rail).
func NewStage(id string, cfg *config.DeviceConfig, envCfg *config.EnvironmentConfig, objCfg *config.ObjectConfig, source scansource.ScanSource, power PowerController) *Stage {
	if power == nil {
		power = noopPower{}
	}
	s := &Stage{
		id:           id,
		cfg:          cfg,
		source:       source,
		power:        power,
		buffer:       fusion.NewScanBuffer(cfg.NumSamples, cfg.NumBuffers, cfg.RangeCoeffC1, cfg.RangeCoeffC2),
		env:          fusion.NewEnvironmentModel(cfg.NumSamples, envCfg.Threshold, cfg.EnvMinQuality, envCfg.FilterMinDistance, envCfg.FilterSize, envCfg.AdaptSec, cfg.Family),
		segmenter:    fusion.NewObjectSegmenter(objCfg.MaxDistance, objCfg.MinExtent, objCfg.MaxExtent, objCfg.TrackDistance, objCfg.MaxCurvature, objCfg.MaxMarkerDistance, cfg.MinQuality),
		deviceMatrix: fusion.Identity(),
		viewMatrix:   fusion.Identity(),
		matrix:       fusion.Identity(),
		status:       StatusClosed,
	}
	return s
}

// ID returns the stage's device identifier.
func (s *Stage) ID() string { return s.id }

// Status reports the current state machine position.
func (s *Stage) Status() Status {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.status
}

func (s *Stage) setStatus(v Status) {
	s.mu.Lock()
	s.status = v
	s.mu.Unlock()
}

// Open starts the scan goroutine in the background and returns immediately;
// the goroutine transitions Closed->Opening->{Ready|Failed} as the hardware
// responds.
func (s *Stage) Open(ctx context.Context) {
	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.done = make(chan struct{})
	s.setStatus(StatusOpening)

	go s.run(runCtx)
}

// Close signals the scan goroutine to stop, powers the device down, and
// waits for the goroutine to exit.
func (s *Stage) Close() error {
	if s.cancel != nil {
		s.cancel()
	}
	if s.done != nil {
		<-s.done
	}
	s.power.PowerOff()
	s.setStatus(StatusClosed)
	return s.source.Close()
}

// run is the scan goroutine: opens the hardware with retry, then loops
// scan_once at the device's native rate until ctx is cancelled.
func (s *Stage) run(ctx context.Context) {
	defer close(s.done)

	if err := s.power.PowerOn(); err != nil {
		log.Printf("device %s: power on failed: %v", s.id, err)
	}

	if err := s.openWithRetry(ctx); err != nil {
		s.setStatus(StatusFailed)
		return
	}
	s.setStatus(StatusReady)
	s.lastSampleAt = time.Now()

	period := time.Second
	if s.cfg.ScanFreqHz > 0 {
		period = time.Duration(float64(time.Second) / s.cfg.ScanFreqHz)
	}
	ticker := time.NewTicker(period)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			s.scanOnce(now)
			s.checkHealth(now)
		}
	}
}

func (s *Stage) openWithRetry(ctx context.Context) error {
	backoff := time.Second
	for {
		_, err := s.source.Open(ctx, s.cfg.DevicePath, s.cfg.BaudHint)
		if err == nil {
			return nil
		}
		log.Printf("device %s: open failed, retrying in %v: %v", s.id, backoff, err)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
	}
}

// scanOnce pulls one revolution of raw samples, runs C1, optionally feeds
// C2's learn/adapt pass, runs C3, and publishes the result.
func (s *Stage) scanOnce(now time.Time) {
	raw, ok := s.source.GrabScan(context.Background(), nil, s.cfg.NoDataTimeout/10)
	if !ok {
		return
	}
	s.lastSampleAt = now

	s.mu.Lock()
	s.buffer.Push(raw)
	ring := s.buffer.Ring(0)
	s.mu.Unlock()

	if now.Before(s.envScanUntil) {
		s.env.Scan(ring, now)
		s.env.Process()
	}
	s.env.Adapt(ring, now)

	blobs := s.segmenter.Segment(ring, s.buffer, s.env)

	s.mu.Lock()
	s.snapshot = Snapshot{Blobs: blobs, Transform: s.matrix, At: now}
	s.mu.Unlock()
}

// checkHealth implements the §4.4 hot-plug policy: 30s of silence marks the
// stage "no data" and restarts the opening sequence; a transient 1s gap
// just clears current samples while the stage stays Ready.
func (s *Stage) checkHealth(now time.Time) {
	silence := now.Sub(s.lastSampleAt)
	if silence > s.cfg.NoDataTimeout {
		log.Printf("device %s: no data for %v, reopening", s.id, silence)
		s.setStatus(StatusOpening)
		s.source.Close()
		if err := s.openWithRetry(context.Background()); err != nil {
			s.setStatus(StatusFailed)
			return
		}
		s.setStatus(StatusReady)
		s.lastSampleAt = now
	} else if silence > time.Second {
		s.mu.Lock()
		s.snapshot.Blobs = nil
		s.mu.Unlock()
	}
}

// recomposeMatrix updates matrix = view_matrix * device_matrix and
// re-applies it to the ScanBuffer; callers hold s.mu.
func (s *Stage) recomposeMatrix() {
	s.matrix = s.viewMatrix.Mul(s.deviceMatrix)
	s.buffer.SetTransform(s.matrix)
}

// SetDeviceMatrix mutates the raw->local transform and re-applies the
// composed matrix atomically.
func (s *Stage) SetDeviceMatrix(m fusion.Mat2x2) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deviceMatrix = m
	s.recomposeMatrix()
}

// SetViewMatrix mutates the local->world transform and re-applies the
// composed matrix atomically.
func (s *Stage) SetViewMatrix(m fusion.Mat2x2) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.viewMatrix = m
	s.recomposeMatrix()
}

// Matrix returns the composed view*device transform.
func (s *Stage) Matrix() fusion.Mat2x2 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.matrix
}

// EnvScan arms a learning pass for the given duration; subsequent scan_once
// calls feed C2's Scan until the window elapses.
func (s *Stage) EnvScan(d time.Duration) {
	s.mu.Lock()
	s.envScanUntil = time.Now().Add(d)
	s.mu.Unlock()
}

// EnvReset clears the learned environment model.
func (s *Stage) EnvReset() { s.env.Reset() }

// Environment exposes the environment model for save/load by internal/files.
func (s *Stage) Environment() *fusion.EnvironmentModel { return s.env }

// SetAccum enters or leaves registration accumulation mode on the
// underlying ScanBuffer.
func (s *Stage) SetAccum(on bool) { s.buffer.SetAccumMode(on) }

// Buffer exposes the ScanBuffer for RegistrationSolver accumulation reads.
func (s *Stage) Buffer() *fusion.ScanBuffer { return s.buffer }

// Segmenter exposes the ObjectSegmenter so RegistrationSolver can pull
// marker pairs from the latest blob list.
func (s *Stage) Segmenter() *fusion.ObjectSegmenter { return s.segmenter }

// GetObjects is a lock-free-for-callers read of the most recent blob
// snapshot.
func (s *Stage) GetObjects() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshot
}

// String implements fmt.Stringer for diagnostics.
func (s *Stage) String() string {
	return fmt.Sprintf("device(%s, %s, status=%s)", s.id, s.cfg.Family, s.Status())
}
