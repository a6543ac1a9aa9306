package scansource

import (
	"bufio"
	"context"
	"fmt"
	"net"
	"time"

	"github.com/banshee-data/lidarfusion/internal/fusion"
)

// TCPSource implements ScanSource over a TCP-relay device: a vendor bridge
// or network-attached sensor head that emits the same line-framed protocol
// a serial device would, just over a socket instead of a tty. devicePath is
// a "host:port" address; baudHint is ignored.
type TCPSource struct {
	family string
	parse  LineParser
	spec   Spec

	dialTimeout time.Duration

	conn   net.Conn
	reader *bufio.Scanner
	lines  chan string
	done   chan struct{}
}

// NewTCPSource builds a TCPSource for one hardware family's TCP relay.
func NewTCPSource(family string, parse LineParser, spec Spec) *TCPSource {
	return &TCPSource{family: family, parse: parse, spec: spec, dialTimeout: 5 * time.Second}
}

func (t *TCPSource) Open(ctx context.Context, devicePath string, baudHint int) (Spec, error) {
	dialer := net.Dialer{Timeout: t.dialTimeout}
	conn, err := dialer.DialContext(ctx, "tcp", devicePath)
	if err != nil {
		return Spec{}, fmt.Errorf("scansource: dial %s (%s): %w", devicePath, t.family, err)
	}
	t.conn = conn
	t.reader = bufio.NewScanner(conn)
	t.lines = make(chan string, 64)
	t.done = make(chan struct{})

	go t.pump()
	return t.spec, nil
}

// pump reads newline-framed lines off the socket and forwards them to
// GrabScan, the same line-per-return shape CSVLineParser expects from a
// serial device.
func (t *TCPSource) pump() {
	defer close(t.lines)
	for t.reader.Scan() {
		select {
		case t.lines <- t.reader.Text():
		case <-t.done:
			return
		}
	}
}

func (t *TCPSource) Close() error {
	if t.done != nil {
		close(t.done)
	}
	if t.conn == nil {
		return nil
	}
	return t.conn.Close()
}

// GrabScan drains buffered lines until timeout elapses or the context is
// cancelled, parsing each with the family's LineParser.
func (t *TCPSource) GrabScan(ctx context.Context, out []fusion.RawSample, timeout time.Duration) ([]fusion.RawSample, bool) {
	deadline := time.NewTimer(timeout)
	defer deadline.Stop()

	got := false
	for {
		select {
		case <-ctx.Done():
			return out, got
		case <-deadline.C:
			return out, got
		case line, ok := <-t.lines:
			if !ok {
				return out, got
			}
			if sample, parsed := t.parse(line); parsed {
				out = append(out, sample)
				got = true
			}
		}
	}
}

// SetMotor is a no-op for TCP relays: motor control on these devices lives
// on the vendor bridge, not behind this socket.
func (t *TCPSource) SetMotor(state MotorState, speedHz float64) error {
	return nil
}

func (t *TCPSource) PingInfo(ctx context.Context) (DeviceInfo, error) {
	return DeviceInfo{Model: t.family}, nil
}
