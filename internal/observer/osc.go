package observer

import (
	"bytes"
	"encoding/binary"
	"fmt"
)

// OSCSink formats each scheme-engine line as one OSC 1.0 message and hands
// it to an underlying datagram sink (typically a UDPSink). Hand-rolled
// since no OSC client library is present anywhere in the retrieval pack —
// see DESIGN.md.
type OSCSink struct {
	datagram MessageSink
}

func NewOSCSink(datagram MessageSink) *OSCSink {
	return &OSCSink{datagram: datagram}
}

func (s *OSCSink) Send(address string, args ...any) error {
	msg, err := EncodeOSCMessage(address, args...)
	if err != nil {
		return err
	}
	return s.datagram.Send("osc", msg)
}

func (s *OSCSink) Flush() error { return s.datagram.Flush() }
func (s *OSCSink) IsOpen() bool { return s.datagram.IsOpen() }
func (s *OSCSink) Close() error { return s.datagram.Close() }

// EncodeOSCMessage builds an OSC 1.0 message: a null-padded address
// pattern, a null-padded type tag string, then each argument in its
// OSC-required 4-byte-aligned binary form. Supported types: int32, float32,
// string, bool.
func EncodeOSCMessage(address string, args ...any) ([]byte, error) {
	var buf bytes.Buffer
	writeOSCString(&buf, address)

	tags := ","
	var argBuf bytes.Buffer
	for _, a := range args {
		switch v := a.(type) {
		case int:
			tags += "i"
			binary.Write(&argBuf, binary.BigEndian, int32(v))
		case int32:
			tags += "i"
			binary.Write(&argBuf, binary.BigEndian, v)
		case float32:
			tags += "f"
			binary.Write(&argBuf, binary.BigEndian, v)
		case float64:
			tags += "f"
			binary.Write(&argBuf, binary.BigEndian, float32(v))
		case string:
			tags += "s"
			writeOSCString(&argBuf, v)
		case bool:
			if v {
				tags += "T"
			} else {
				tags += "F"
			}
		default:
			return nil, fmt.Errorf("observer: unsupported OSC argument type %T", a)
		}
	}

	writeOSCString(&buf, tags)
	buf.Write(argBuf.Bytes())
	return buf.Bytes(), nil
}

// writeOSCString appends s null-terminated and zero-padded to a 4-byte
// boundary, per the OSC 1.0 spec.
func writeOSCString(buf *bytes.Buffer, s string) {
	buf.WriteString(s)
	buf.WriteByte(0)
	for buf.Len()%4 != 0 {
		buf.WriteByte(0)
	}
}
