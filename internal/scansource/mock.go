package scansource

import (
	"context"
	"time"

	"github.com/banshee-data/lidarfusion/internal/fusion"
)

// MockSource is a ScanSource test double that replays a fixed sequence of
// scans, one per GrabScan call, then repeats the last scan forever.
type MockSource struct {
	Spec  Spec
	Scans [][]fusion.RawSample

	next   int
	opened bool
	motor  MotorState
}

func (m *MockSource) Open(ctx context.Context, devicePath string, baudHint int) (Spec, error) {
	m.opened = true
	return m.Spec, nil
}

func (m *MockSource) Close() error {
	m.opened = false
	return nil
}

func (m *MockSource) GrabScan(ctx context.Context, out []fusion.RawSample, timeout time.Duration) ([]fusion.RawSample, bool) {
	if len(m.Scans) == 0 {
		return out, false
	}
	idx := m.next
	if idx >= len(m.Scans) {
		idx = len(m.Scans) - 1
	} else {
		m.next++
	}
	return append(out, m.Scans[idx]...), true
}

func (m *MockSource) SetMotor(state MotorState, speedHz float64) error {
	m.motor = state
	return nil
}

func (m *MockSource) PingInfo(ctx context.Context) (DeviceInfo, error) {
	return DeviceInfo{Model: "mock"}, nil
}
