package config

import (
	"encoding/json"
	"fmt"
	"os"
	"sync/atomic"
)

// NotifyFunc is the process-wide notification/error callback. The source
// keeps a single global function pointer for this; ProcessConfig holds it as
// an atomic.Value so any component can read the current callback without a
// mutex, matching the "background threads receive clones of the relevant
// atomic fields" design note.
type NotifyFunc func(kind, message string)

// PlaybackClock is the process-wide set of atomics driving PlaybackEngine
// (C9): play position as a fraction of file length, the fused current time,
// and the reference timestamps used to align multiple devices.
type PlaybackClock struct {
	PlayPos       atomic.Uint64 // float32 bits; fraction [0,1]
	CurrentTimeMs atomic.Int64
	TimeStampMs   atomic.Uint64
	TimeStampRefMs atomic.Uint64
	Paused        atomic.Bool
}

// ProcessConfig is the single struct handed to every component at
// construction, composing the per-group tunables plus the process-wide
// global state the original source kept as TrackGlobal::defaults, a
// notification callback, and a singleton playback clock.
type ProcessConfig struct {
	Track       *TrackConfig
	Environment *EnvironmentConfig
	Object      *ObjectConfig
	Register    *RegisterConfig

	notify atomic.Value // holds NotifyFunc
	Clock  *PlaybackClock
}

// DefaultProcessConfig returns a ProcessConfig built from each group's
// defaults.
func DefaultProcessConfig() *ProcessConfig {
	pc := &ProcessConfig{
		Track:       DefaultTrackConfig(),
		Environment: DefaultEnvironmentConfig(),
		Object:      DefaultObjectConfig(),
		Register:    DefaultRegisterConfig(),
		Clock:       &PlaybackClock{},
	}
	pc.notify.Store(NotifyFunc(func(string, string) {}))
	return pc
}

// Validate validates every composed group.
func (pc *ProcessConfig) Validate() error {
	if err := pc.Track.Validate(); err != nil {
		return fmt.Errorf("track config: %w", err)
	}
	if err := pc.Environment.Validate(); err != nil {
		return fmt.Errorf("environment config: %w", err)
	}
	if err := pc.Object.Validate(); err != nil {
		return fmt.Errorf("object config: %w", err)
	}
	if err := pc.Register.Validate(); err != nil {
		return fmt.Errorf("register config: %w", err)
	}
	return nil
}

// SetNotify installs the process-wide notification callback.
func (pc *ProcessConfig) SetNotify(fn NotifyFunc) {
	if fn == nil {
		fn = func(string, string) {}
	}
	pc.notify.Store(fn)
}

// Notify invokes the current notification callback.
func (pc *ProcessConfig) Notify(kind, message string) {
	pc.notify.Load().(NotifyFunc)(kind, message)
}

// tunableFile mirrors the on-disk shape for LoadProcessConfig: pointer
// fields so a JSON document may leave out whole groups. A group that is
// present replaces the default group whole; fields it leaves out are zero,
// not defaulted.
type tunableFile struct {
	Track       *TrackConfig       `json:"track,omitempty"`
	Environment *EnvironmentConfig `json:"lidar_env,omitempty"`
	Object      *ObjectConfig      `json:"lidar_object,omitempty"`
	Register    *RegisterConfig    `json:"lidar_register,omitempty"`
}

const maxTunableFileBytes = 1 << 20 // 1 MiB, matches the teacher's config size cap

// LoadProcessConfig reads a JSON tunable file and layers it over the
// defaults; any group omitted from the file keeps its default value.
func LoadProcessConfig(path string) (*ProcessConfig, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("stat config file: %w", err)
	}
	if info.Size() > maxTunableFileBytes {
		return nil, fmt.Errorf("config file %s exceeds %d bytes", path, maxTunableFileBytes)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	var file tunableFile
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse config file %s: %w", path, err)
	}

	pc := DefaultProcessConfig()
	if file.Track != nil {
		pc.Track = file.Track
	}
	if file.Environment != nil {
		pc.Environment = file.Environment
	}
	if file.Object != nil {
		pc.Object = file.Object
	}
	if file.Register != nil {
		pc.Register = file.Register
	}

	if err := pc.Validate(); err != nil {
		return nil, fmt.Errorf("config file %s: %w", path, err)
	}
	return pc, nil
}

// MustLoadDefaultProcessConfig returns DefaultProcessConfig(), panicking if
// validation somehow fails. Intended for tests and command wiring only.
func MustLoadDefaultProcessConfig() *ProcessConfig {
	pc := DefaultProcessConfig()
	if err := pc.Validate(); err != nil {
		panic(fmt.Sprintf("default process config failed validation: %v", err))
	}
	return pc
}
