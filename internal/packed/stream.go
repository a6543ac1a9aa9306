package packed

import (
	"fmt"
	"io"

	"github.com/banshee-data/lidarfusion/internal/fusion"
)

// Writer appends frames to an io.Writer (an open packed file or a live
// socket), matching the original's append-only OFile.
type Writer struct {
	w io.Writer
}

func NewWriter(w io.Writer) *Writer { return &Writer{w: w} }

func (w *Writer) PutHeader(h Header) error {
	_, err := w.w.Write(h.MarshalBinary())
	return err
}

// PutFrame stamps the frame's header.Size from its entry count and writes
// header + uuid + entries, V2-encoded.
func (w *Writer) PutFrame(f Frame) error {
	f.Header.Size = uint16(len(f.Entries))
	if err := w.PutHeader(f.Header); err != nil {
		return err
	}
	uuidBytes := f.UUID.Bytes()
	if _, err := w.w.Write(uuidBytes[:]); err != nil {
		return err
	}
	for _, e := range f.Entries {
		if _, err := w.w.Write(e.EncodeV2()); err != nil {
			return err
		}
	}
	return nil
}

// Reader is a random-access, buffered reader over a complete packed
// recording, supporting byte-granularity resync (Sync), fraction-based
// seek (Play), and binary-search time seek (SyncToTime) — all mirroring
// the original buffered IFile.
type Reader struct {
	buf       []byte
	pos       int
	beginTime uint64 // first header's timestamp in the file, the playback epoch
	curTime   uint64 // current_time: timestamp - beginTime at the last sync
}

// NewReader wraps a fully-read recording buffer and locates beginTime by
// scanning from the start, exactly as the original's open()/openBuffer()
// do before rewinding to position 0.
func NewReader(buf []byte) (*Reader, error) {
	r := &Reader{buf: buf}
	for {
		h, err := r.peekHeader()
		if err != nil {
			break
		}
		if h.Zero == 0 {
			r.beginTime = h.Timestamp
			break
		}
		r.pos += 4
	}
	r.pos = 0
	return r, nil
}

func (r *Reader) peekHeader() (Header, error) {
	if r.pos+HeaderSize > len(r.buf) {
		return Header{}, io.EOF
	}
	return UnmarshalHeader(r.buf[r.pos:])
}

func (r *Reader) Tell() int   { return r.pos }
func (r *Reader) Size() int   { return len(r.buf) }
func (r *Reader) Seek(pos int) {
	if pos < 0 {
		pos = 0
	}
	if pos > len(r.buf) {
		pos = len(r.buf)
	}
	r.pos = pos
}
func (r *Reader) IsEOF() bool { return r.pos >= len(r.buf) }

// PlayPos is the current read position as a fraction of the file.
func (r *Reader) PlayPos() float64 {
	if len(r.buf) == 0 {
		return 0
	}
	return float64(r.pos) / float64(len(r.buf))
}

func (r *Reader) read(n int) ([]byte, error) {
	if r.pos+n > len(r.buf) {
		return nil, io.EOF
	}
	b := r.buf[r.pos : r.pos+n]
	r.pos += n
	return b, nil
}

func (r *Reader) GetHeader() (Header, error) {
	b, err := r.read(HeaderSize)
	if err != nil {
		return Header{}, err
	}
	h, err := UnmarshalHeader(b)
	if err != nil {
		return Header{}, err
	}
	if h.Zero != 0 {
		return Header{}, fmt.Errorf("packed: corrupt header at %d", r.pos-HeaderSize)
	}
	return h, nil
}

func (r *Reader) GetUUID() (fusion.UUID, error) {
	b, err := r.read(16)
	if err != nil {
		return fusion.UUID{}, err
	}
	var arr [16]byte
	copy(arr[:], b)
	return fusion.UUIDFromBytes(arr), nil
}

// GetFrame reads one frame. If skipHeader is false (the common case), the
// header must already be known to be a FrameHeader.
func (r *Reader) GetFrame(skipHeader bool, header Header) (Frame, error) {
	h := header
	if !skipHeader {
		var err error
		h, err = r.GetHeader()
		if err != nil {
			return Frame{}, err
		}
		if !h.IsType(FrameHeader) {
			return Frame{}, fmt.Errorf("packed: expected frame header, got type %d", h.Flags&uint16(TypeBits))
		}
	}

	uuid, err := r.GetUUID()
	if err != nil {
		return Frame{}, err
	}

	version := h.Version()
	recSize := Size(version)
	entries := make([]Binary, 0, h.Size)
	for i := 0; i < int(h.Size); i++ {
		b, err := r.read(recSize)
		if err != nil {
			return Frame{}, err
		}
		bin, _, err := DecodeBinary(b, version)
		if err != nil {
			return Frame{}, err
		}
		entries = append(entries, bin)
	}

	return Frame{Header: h, UUID: uuid, Entries: entries}, nil
}

// Sync scans forward 4 bytes at a time (the width of Header.Zero) until it
// finds a well-formed Frame or Start header, matching the original's
// corruption-tolerant resync. Returns the playback-relative current time,
// or 0 if no valid header is found before EOF.
func (r *Reader) Sync() uint64 {
	for {
		h, err := r.peekHeader()
		if err != nil {
			return 0
		}
		if h.Zero == 0 && (h.IsType(FrameHeader) || h.IsType(StartHeader)) {
			r.curTime = h.Timestamp - r.beginTime
			return r.curTime
		}
		r.Seek(r.pos + 4)
	}
}

// Play seeks to a fraction [0,1] of the file (rounded down to a 4-byte
// boundary, as Header.Zero-width resync requires) and resyncs.
func (r *Reader) Play(fraction float64) uint64 {
	pos := int(fraction * float64(len(r.buf)))
	pos -= pos % 4
	r.Seek(pos)
	return r.Sync()
}

// SyncToTime binary-searches the playback fraction space for the position
// whose decoded time best matches playTimeMs, converging when either the
// decoded time matches exactly or successive probes land on the same byte
// position (the original's "lastPos" stall check).
func (r *Reader) SyncToTime(playTimeMs uint64) uint64 {
	lo, hi := 0.0, 1.0
	lastPos := -1

	for lo < hi {
		mid := 0.5 * (lo + hi)
		t := r.Play(mid)
		if t == 0 {
			return t
		}
		pos := r.Tell()
		if pos == lastPos {
			return t
		}
		lastPos = pos

		switch {
		case t > playTimeMs:
			hi = mid
		case t < playTimeMs:
			lo = mid
		default:
			return t
		}
	}
	return r.curTime
}

// CurrentTime is the last time recorded by Sync/Play/SyncToTime, relative
// to the recording's first header timestamp.
func (r *Reader) CurrentTime() uint64 { return r.curTime }

// TimeStamp is the absolute timestamp (beginTime + currentTime).
func (r *Reader) TimeStamp() uint64 { return r.beginTime + r.curTime }
