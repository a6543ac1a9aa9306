package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDefaultProcessConfigPassesValidate(t *testing.T) {
	pc := DefaultProcessConfig()
	require.NoError(t, pc.Validate())
}

func TestProcessConfigValidatePropagatesGroupError(t *testing.T) {
	pc := DefaultProcessConfig()
	pc.Track.UniteDistance = -1
	err := pc.Validate()
	require.Error(t, err)
	require.Contains(t, err.Error(), "track config")
}

func TestProcessConfigNotifyDefaultsToNoOp(t *testing.T) {
	pc := DefaultProcessConfig()
	require.NotPanics(t, func() { pc.Notify("info", "hello") })
}

func TestProcessConfigSetNotifyInvokesInstalledCallback(t *testing.T) {
	pc := DefaultProcessConfig()
	var gotKind, gotMsg string
	pc.SetNotify(func(kind, msg string) { gotKind, gotMsg = kind, msg })

	pc.Notify("warn", "disk low")
	require.Equal(t, "warn", gotKind)
	require.Equal(t, "disk low", gotMsg)
}

func TestProcessConfigSetNotifyNilFallsBackToNoOp(t *testing.T) {
	pc := DefaultProcessConfig()
	pc.SetNotify(nil)
	require.NotPanics(t, func() { pc.Notify("info", "x") })
}

func TestMustLoadDefaultProcessConfigReturnsValidConfig(t *testing.T) {
	require.NotPanics(t, func() {
		pc := MustLoadDefaultProcessConfig()
		require.NotNil(t, pc.Track)
	})
}

func TestLoadProcessConfigLayersPartialFileOverDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tuning.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"track":{"UniteDistance":0.9,"TrackDistance":0.5,"TrackOldestFactor":1.5,"LatentDistance":0.5,"ObjectMaxSize":3.0,"MinActiveFraction":0.25,"TrackSmoothing":0.6}}`), 0o644))

	pc, err := LoadProcessConfig(path)
	require.NoError(t, err)
	require.Equal(t, 0.9, pc.Track.UniteDistance)
	require.Equal(t, DefaultEnvironmentConfig(), pc.Environment)
}

func TestLoadProcessConfigMissingFileErrors(t *testing.T) {
	_, err := LoadProcessConfig(filepath.Join(t.TempDir(), "missing.json"))
	require.Error(t, err)
}

func TestLoadProcessConfigRejectsInvalidJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tuning.json")
	require.NoError(t, os.WriteFile(path, []byte(`{not json`), 0o644))

	_, err := LoadProcessConfig(path)
	require.Error(t, err)
}

func TestLoadProcessConfigRejectsFailingValidation(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tuning.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"track":{"UniteDistance":-1}}`), 0o644))

	_, err := LoadProcessConfig(path)
	require.Error(t, err)
}

func TestLoadProcessConfigRejectsOversizedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tuning.json")
	big := make([]byte, maxTunableFileBytes+1)
	for i := range big {
		big[i] = ' '
	}
	require.NoError(t, os.WriteFile(path, big, 0o644))

	_, err := LoadProcessConfig(path)
	require.Error(t, err)
}
