// Package playback implements PlaybackEngine (C9): time-synced replay of
// one packed recording per virtual device, with one device designated the
// sync source that the others align their read cursors to.
package playback

import (
	"fmt"
	"math"
	"time"

	"github.com/banshee-data/lidarfusion/internal/config"
	"github.com/banshee-data/lidarfusion/internal/packed"
	"github.com/banshee-data/lidarfusion/internal/timeutil"
)

// maxSleep bounds the per-frame pacing sleep, per spec.md §5.
const maxSleep = 750 * time.Millisecond

// deviceReplay pairs one virtual device's reader with its own playback
// epoch, since only the sync source's begin_time anchors the session.
type deviceReplay struct {
	id        string
	reader    *packed.Reader
	beginTime uint64
	startTime uint64 // wall-clock ms this device's current_time=0 maps to
}

// Engine (C9) drives N deviceReplay cursors in lock-step against the sync
// source's timeline, publishing the fused position into the process-wide
// PlaybackClock atomics every component reads from.
type Engine struct {
	clock timeutil.Clock
	gclk  *config.PlaybackClock

	devices []*deviceReplay
	syncIdx int
}

// NewEngine wraps readers, one per device, in playback order; syncIdx
// selects which is the sync source. gclk is the process-wide clock every
// other component observes (ProcessConfig.Clock).
func NewEngine(clock timeutil.Clock, gclk *config.PlaybackClock, ids []string, readers []*packed.Reader, syncIdx int) (*Engine, error) {
	if len(ids) != len(readers) {
		return nil, fmt.Errorf("playback: %d ids but %d readers", len(ids), len(readers))
	}
	if syncIdx < 0 || syncIdx >= len(readers) {
		return nil, fmt.Errorf("playback: sync index %d out of range", syncIdx)
	}

	e := &Engine{clock: clock, gclk: gclk, syncIdx: syncIdx}
	for i, r := range readers {
		e.devices = append(e.devices, &deviceReplay{id: ids[i], reader: r})
	}
	return e, nil
}

// SetPlayPos implements §4.9's set_play_pos: the sync source seeks to
// fraction f, then every other device re-derives its start_time/begin_time
// from the sync source and binary-searches to the matching record.
func (e *Engine) SetPlayPos(f float64) {
	sync := e.devices[e.syncIdx]
	currentTime := sync.reader.Play(f)
	sync.beginTime = sync.reader.TimeStamp() - currentTime
	sync.startTime = uint64(e.clock.Now().UnixMilli()) - currentTime

	for i, d := range e.devices {
		if i == e.syncIdx {
			continue
		}
		d.beginTime = sync.beginTime
		d.startTime = sync.startTime
		d.reader.SyncToTime(currentTime)
	}

	e.gclk.PlayPos.Store(uint64(math.Float32bits(float32(sync.reader.PlayPos()))))
	e.gclk.CurrentTimeMs.Store(int64(currentTime))
	e.gclk.TimeStampMs.Store(sync.beginTime + currentTime)
	e.gclk.TimeStampRefMs.Store(sync.beginTime)
}

// Pause freezes the clock; Resume continues it from the frozen value.
func (e *Engine) Pause()      { e.gclk.Paused.Store(true) }
func (e *Engine) Resume() {
	if e.gclk.Paused.Load() {
		now := uint64(e.clock.Now().UnixMilli())
		frozen := uint64(e.gclk.CurrentTimeMs.Load())
		for _, d := range e.devices {
			d.startTime = now - frozen
		}
	}
	e.gclk.Paused.Store(false)
}
func (e *Engine) Paused() bool { return e.gclk.Paused.Load() }

// CurrentTime is the sync source's current_time in ms since playback start.
func (e *Engine) CurrentTime() int64 { return e.gclk.CurrentTimeMs.Load() }

// TimeStamp is the absolute wall timestamp the playback clock represents.
func (e *Engine) TimeStamp() uint64 { return e.gclk.TimeStampMs.Load() }

// FrameResult is one device's next due frame, or Skip if its cursor is
// ahead of the current playback time and should be retried next tick.
type FrameResult struct {
	DeviceIdx int
	Frame     packed.Frame
	Skip      bool
	EOF       bool
}

// Tick advances the clock (unless paused) and, for every device whose next
// frame's record_time has arrived, reads and returns it. Per §4.9: if the
// next record is later than current_time, sleep the delta (capped at
// maxSleep) and let the caller retry; if earlier or equal, read it now.
func (e *Engine) Tick() []FrameResult {
	if e.gclk.Paused.Load() {
		return nil
	}

	now := uint64(e.clock.Now().UnixMilli())
	results := make([]FrameResult, 0, len(e.devices))

	for i, d := range e.devices {
		pos := d.reader.Tell()
		header, err := d.reader.GetHeader()
		if err != nil {
			results = append(results, FrameResult{DeviceIdx: i, EOF: true})
			continue
		}
		if !header.IsType(headerTypeFrame) {
			continue
		}

		recordTime := header.Timestamp - d.beginTime
		currentTime := now - d.startTime

		if recordTime > currentTime {
			// leave the cursor at this header and retry next tick
			d.reader.Seek(pos)
			delta := time.Duration(recordTime-currentTime) * time.Millisecond
			timeutil.CappedSleep(e.clock, delta, maxSleep)
			results = append(results, FrameResult{DeviceIdx: i, Skip: true})
			continue
		}

		frame, err := d.reader.GetFrame(true, header)
		if err != nil {
			results = append(results, FrameResult{DeviceIdx: i, EOF: true})
			continue
		}
		results = append(results, FrameResult{DeviceIdx: i, Frame: frame})
	}

	sync := e.devices[e.syncIdx]
	e.gclk.CurrentTimeMs.Store(int64(now - sync.startTime))
	e.gclk.TimeStampMs.Store(sync.beginTime + now - sync.startTime)
	e.gclk.PlayPos.Store(uint64(math.Float32bits(float32(sync.reader.PlayPos()))))

	return results
}

const headerTypeFrame = packed.FrameHeader
