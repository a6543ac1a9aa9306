package scansource

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/banshee-data/lidarfusion/internal/fusion"
	"github.com/banshee-data/lidarfusion/internal/serialmux"
)

// LineParser turns one line emitted by a family's firmware into a raw
// sample. Returning ok=false skips the line (framing noise, partial reads,
// checksum failures the family's own protocol already rejected).
type LineParser func(line string) (fusion.RawSample, bool)

// CSVLineParser parses "angle_rad,distance_m,quality" lines, the framing
// used by the ldlidar/ydlidar family of serial devices once their firmware
// driver has stripped the vendor header.
func CSVLineParser(line string) (fusion.RawSample, bool) {
	parts := strings.Split(strings.TrimSpace(line), ",")
	if len(parts) != 3 {
		return fusion.RawSample{}, false
	}
	angle, err1 := strconv.ParseFloat(parts[0], 64)
	dist, err2 := strconv.ParseFloat(parts[1], 64)
	quality, err3 := strconv.Atoi(parts[2])
	if err1 != nil || err2 != nil || err3 != nil {
		return fusion.RawSample{}, false
	}
	return fusion.RawSample{AngleRad: angle, DistanceM: dist, Quality: quality}, true
}

// SerialSource implements ScanSource over a serial-attached device via
// internal/serialmux, the line-subscription multiplexer the teacher uses
// for its own serial-attached sensor.
type SerialSource struct {
	family  string
	startup []string
	parse   LineParser
	spec    Spec

	mux      serialmux.SerialMuxInterface
	subID    string
	lines    chan string
}

// NewSerialSource builds a SerialSource for one hardware family. startup is
// the family's bring-up AT-command sequence, sent by Initialize.
func NewSerialSource(family string, startup []string, parse LineParser, spec Spec) *SerialSource {
	return &SerialSource{family: family, startup: startup, parse: parse, spec: spec}
}

func (s *SerialSource) Open(ctx context.Context, devicePath string, baudHint int) (Spec, error) {
	opts := serialmux.PortOptions{BaudRate: baudHint}

	mux, err := serialmux.NewRealSerialMux(devicePath, opts)
	if err != nil {
		return Spec{}, fmt.Errorf("scansource: open %s (%s): %w", devicePath, s.family, err)
	}
	s.mux = mux

	if err := s.mux.Initialize(s.startup); err != nil {
		s.mux.Close()
		return Spec{}, fmt.Errorf("scansource: initialize %s (%s): %w", devicePath, s.family, err)
	}

	s.subID, s.lines = s.mux.Subscribe()
	return s.spec, nil
}

func (s *SerialSource) Close() error {
	if s.mux == nil {
		return nil
	}
	s.mux.Unsubscribe(s.subID)
	return s.mux.Close()
}

// GrabScan drains buffered lines until timeout elapses or the context is
// cancelled, parsing each with the family's LineParser.
func (s *SerialSource) GrabScan(ctx context.Context, out []fusion.RawSample, timeout time.Duration) ([]fusion.RawSample, bool) {
	deadline := time.NewTimer(timeout)
	defer deadline.Stop()

	got := false
	for {
		select {
		case <-ctx.Done():
			return out, got
		case <-deadline.C:
			return out, got
		case line, ok := <-s.lines:
			if !ok {
				return out, got
			}
			if sample, parsed := s.parse(line); parsed {
				out = append(out, sample)
				got = true
			}
		}
	}
}

func (s *SerialSource) SetMotor(state MotorState, speedHz float64) error {
	var cmd string
	switch state {
	case MotorOff:
		cmd = "MOTOR OFF"
	case MotorOn:
		cmd = "MOTOR ON"
	case MotorPWM:
		cmd = fmt.Sprintf("MOTOR PWM %.2f", speedHz)
	}
	return s.mux.SendCommand(cmd)
}

func (s *SerialSource) PingInfo(ctx context.Context) (DeviceInfo, error) {
	return DeviceInfo{Model: s.family}, nil
}
