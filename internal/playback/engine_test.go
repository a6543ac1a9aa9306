package playback

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/banshee-data/lidarfusion/internal/config"
	"github.com/banshee-data/lidarfusion/internal/fusion"
	"github.com/banshee-data/lidarfusion/internal/packed"
	"github.com/banshee-data/lidarfusion/internal/timeutil"
)

func writeRecording(t *testing.T, tstamps []uint64) *packed.Reader {
	t.Helper()
	var buf bytes.Buffer
	w := packed.NewWriter(&buf)
	for i, ts := range tstamps {
		f := packed.NewFrame(ts, fusion.NewUUID(int64(ts), uint32(i)))
		f.Add(uint32(i), 1.0, 1.0, 0.2, fusion.FlagTouched)
		require.NoError(t, w.PutFrame(f))
	}
	r, err := packed.NewReader(buf.Bytes())
	require.NoError(t, err)
	return r
}

func TestNewEngineRejectsMismatchedLengths(t *testing.T) {
	r := writeRecording(t, []uint64{1000})
	_, err := NewEngine(timeutil.RealClock{}, &config.PlaybackClock{}, []string{"a", "b"}, []*packed.Reader{r}, 0)
	require.Error(t, err)
}

func TestNewEngineRejectsOutOfRangeSyncIdx(t *testing.T) {
	r := writeRecording(t, []uint64{1000})
	_, err := NewEngine(timeutil.RealClock{}, &config.PlaybackClock{}, []string{"a"}, []*packed.Reader{r}, 1)
	require.Error(t, err)
}

func TestEngineSetPlayPosSeeksAndPublishesClock(t *testing.T) {
	r := writeRecording(t, []uint64{1000, 2000, 3000})
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	clock := timeutil.NewMockClock(base)
	gclk := &config.PlaybackClock{}

	e, err := NewEngine(clock, gclk, []string{"a"}, []*packed.Reader{r}, 0)
	require.NoError(t, err)

	e.SetPlayPos(0)

	require.Equal(t, int64(0), gclk.CurrentTimeMs.Load())
	require.Equal(t, uint64(1000), gclk.TimeStampMs.Load())
	require.Equal(t, uint64(1000), gclk.TimeStampRefMs.Load())
}

func TestEngineTickEmitsFrameWhenDueThenSkipsAhead(t *testing.T) {
	r := writeRecording(t, []uint64{1000, 2000, 3000})
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	clock := timeutil.NewMockClock(base)
	gclk := &config.PlaybackClock{}

	e, err := NewEngine(clock, gclk, []string{"a"}, []*packed.Reader{r}, 0)
	require.NoError(t, err)
	e.SetPlayPos(0)

	// first frame's record_time (0) already matches current_time (0):
	// it is due immediately.
	results := e.Tick()
	require.Len(t, results, 1)
	require.False(t, results[0].Skip)
	require.False(t, results[0].EOF)
	require.Len(t, results[0].Frame.Entries, 1)

	// second frame is 1000ms out; the clock hasn't moved, so it must be
	// skipped and the delta slept, capped at maxSleep.
	results = e.Tick()
	require.Len(t, results, 1)
	require.True(t, results[0].Skip)

	sleeps := clock.Sleeps()
	require.Len(t, sleeps, 1)
	require.Equal(t, maxSleep, sleeps[0])

	// advance the clock to exactly when the second frame is due.
	clock.Advance(1000 * time.Millisecond)
	results = e.Tick()
	require.Len(t, results, 1)
	require.False(t, results[0].Skip)
	require.False(t, results[0].EOF)
}

func TestEngineTickReportsEOFPastLastFrame(t *testing.T) {
	r := writeRecording(t, []uint64{1000})
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	clock := timeutil.NewMockClock(base)
	gclk := &config.PlaybackClock{}

	e, err := NewEngine(clock, gclk, []string{"a"}, []*packed.Reader{r}, 0)
	require.NoError(t, err)
	e.SetPlayPos(0)

	results := e.Tick()
	require.Len(t, results, 1)
	require.False(t, results[0].EOF)

	results = e.Tick()
	require.Len(t, results, 1)
	require.True(t, results[0].EOF)
}

func TestEngineTickReturnsNilWhenPaused(t *testing.T) {
	r := writeRecording(t, []uint64{1000})
	clock := timeutil.NewMockClock(time.Now())
	gclk := &config.PlaybackClock{}

	e, err := NewEngine(clock, gclk, []string{"a"}, []*packed.Reader{r}, 0)
	require.NoError(t, err)
	e.SetPlayPos(0)

	e.Pause()
	require.True(t, e.Paused())
	require.Nil(t, e.Tick())

	e.Resume()
	require.False(t, e.Paused())
}

func TestEngineCurrentTimeAndTimeStampReflectClock(t *testing.T) {
	r := writeRecording(t, []uint64{1000, 2000})
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	clock := timeutil.NewMockClock(base)
	gclk := &config.PlaybackClock{}

	e, err := NewEngine(clock, gclk, []string{"a"}, []*packed.Reader{r}, 0)
	require.NoError(t, err)
	e.SetPlayPos(0)
	e.Tick()

	require.Equal(t, int64(0), e.CurrentTime())
	require.Equal(t, uint64(1000), e.TimeStamp())
}
