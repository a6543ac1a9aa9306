// Package observer implements ObserverBus (C8): the observer trait, rect/
// ellipse region gating, the field filter mask, the scheme/template
// expression engine, and the concrete MessageSink implementations fan-out
// writes to.
package observer

import (
	"context"
	"fmt"
	"net"
	"os"
	"sync"

	"github.com/coder/websocket"
	"github.com/nats-io/nats.go"
)

// MessageSink is the §6 sink contract: send(kind, payload), flush(),
// is_open(). kind distinguishes payload framing (e.g. "osc", "json",
// "text") for sinks that multiplex several message shapes.
type MessageSink interface {
	Send(kind string, payload []byte) error
	Flush() error
	IsOpen() bool
	Close() error
}

// FileSink appends every message to an open file, one write per Send; the
// original's append-only OFile semantics.
type FileSink struct {
	mu sync.Mutex
	f  *os.File
}

func NewFileSink(path string) (*FileSink, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("observer: open sink file %s: %w", path, err)
	}
	return &FileSink{f: f}, nil
}

func (s *FileSink) Send(kind string, payload []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.f.Write(payload)
	return err
}
func (s *FileSink) Flush() error   { return s.f.Sync() }
func (s *FileSink) IsOpen() bool   { return s.f != nil }
func (s *FileSink) Close() error   { return s.f.Close() }

// UDPSink sends each message as one UDP datagram, used for the OSC bundle
// and raw text sink variants.
type UDPSink struct {
	conn *net.UDPConn
}

func NewUDPSink(addr string) (*UDPSink, error) {
	raddr, err := net.ResolveUDPAddr("udp", addr)
	if err != nil {
		return nil, fmt.Errorf("observer: resolve udp sink %s: %w", addr, err)
	}
	conn, err := net.DialUDP("udp", nil, raddr)
	if err != nil {
		return nil, fmt.Errorf("observer: dial udp sink %s: %w", addr, err)
	}
	return &UDPSink{conn: conn}, nil
}

func (s *UDPSink) Send(kind string, payload []byte) error {
	_, err := s.conn.Write(payload)
	return err
}
func (s *UDPSink) Flush() error { return nil }
func (s *UDPSink) IsOpen() bool { return s.conn != nil }
func (s *UDPSink) Close() error { return s.conn.Close() }

// PubSubSink publishes every message to a NATS subject, standing in for
// the original's MQTT publish sink (no MQTT client is present anywhere in
// the retrieval pack; nats.go is the pub/sub client the pack does carry,
// see DESIGN.md).
type PubSubSink struct {
	nc      *nats.Conn
	subject string
}

func NewPubSubSink(url, subject string) (*PubSubSink, error) {
	nc, err := nats.Connect(url)
	if err != nil {
		return nil, fmt.Errorf("observer: connect nats sink %s: %w", url, err)
	}
	return &PubSubSink{nc: nc, subject: subject}, nil
}

func (s *PubSubSink) Send(kind string, payload []byte) error {
	return s.nc.Publish(s.subject+"."+kind, payload)
}
func (s *PubSubSink) Flush() error { return s.nc.Flush() }
func (s *PubSubSink) IsOpen() bool { return s.nc != nil && s.nc.IsConnected() }
func (s *PubSubSink) Close() error { s.nc.Close(); return nil }

// WebSocketSink broadcasts every message to one connected client.
type WebSocketSink struct {
	mu   sync.Mutex
	conn *websocket.Conn
	ctx  context.Context
}

func NewWebSocketSink(ctx context.Context, conn *websocket.Conn) *WebSocketSink {
	return &WebSocketSink{ctx: ctx, conn: conn}
}

func (s *WebSocketSink) Send(kind string, payload []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn.Write(s.ctx, websocket.MessageBinary, payload)
}
func (s *WebSocketSink) Flush() error { return nil }
func (s *WebSocketSink) IsOpen() bool { return s.conn != nil }
func (s *WebSocketSink) Close() error { return s.conn.Close(websocket.StatusNormalClosure, "closing") }

// CallbackSink hands every message to a Go function, the boundary a foreign
// runtime (e.g. a Lua observer) would sit behind.
type CallbackSink struct {
	fn   func(kind string, payload []byte)
	open bool
}

func NewCallbackSink(fn func(kind string, payload []byte)) *CallbackSink {
	return &CallbackSink{fn: fn, open: true}
}

func (s *CallbackSink) Send(kind string, payload []byte) error {
	if !s.open {
		return fmt.Errorf("observer: callback sink closed")
	}
	s.fn(kind, payload)
	return nil
}
func (s *CallbackSink) Flush() error { return nil }
func (s *CallbackSink) IsOpen() bool { return s.open }
func (s *CallbackSink) Close() error { s.open = false; return nil }
