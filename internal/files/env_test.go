package files

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/banshee-data/lidarfusion/internal/fsutil"
	"github.com/banshee-data/lidarfusion/internal/fusion"
)

func TestWriteEnvThenReadEnvRoundTrip(t *testing.T) {
	fsys := fsutil.NewMemoryFileSystem()
	records := []EnvRecord{
		{Angle: 0, Distance: 1.5, Quality: 127},
		{Angle: 1.5708, Distance: 2.25, Quality: 64},
	}
	require.NoError(t, WriteEnv(fsys, "env.txt", records))

	got, err := ReadEnv(fsys, "env.txt")
	require.NoError(t, err)
	require.Equal(t, records, got)
}

func TestReadEnvIgnoresBlankLines(t *testing.T) {
	fsys := fsutil.NewMemoryFileSystem()
	require.NoError(t, fsys.WriteFile("env.txt", []byte("0 1 100\n\n1 2 50\n"), 0o644))

	got, err := ReadEnv(fsys, "env.txt")
	require.NoError(t, err)
	require.Len(t, got, 2)
}

func TestReadEnvRejectsWrongFieldCount(t *testing.T) {
	fsys := fsutil.NewMemoryFileSystem()
	require.NoError(t, fsys.WriteFile("env.txt", []byte("0 1\n"), 0o644))

	_, err := ReadEnv(fsys, "env.txt")
	require.Error(t, err)
}

func TestReadEnvRejectsNonNumericField(t *testing.T) {
	fsys := fsutil.NewMemoryFileSystem()
	require.NoError(t, fsys.WriteFile("env.txt", []byte("x 1 100\n"), 0o644))

	_, err := ReadEnv(fsys, "env.txt")
	require.Error(t, err)
}

func TestReadEnvMissingFileErrors(t *testing.T) {
	fsys := fsutil.NewMemoryFileSystem()
	_, err := ReadEnv(fsys, "missing.txt")
	require.Error(t, err)
}

func TestEnvRecordsFromSamplesPairsByIndexAndTruncatesToShorter(t *testing.T) {
	angles := []float64{0, 1, 2}
	samples := []fusion.EnvironmentSample{
		{Distance: 1.1, Quality: 10},
		{Distance: 2.2, Quality: 20},
	}
	out := EnvRecordsFromSamples(angles, samples)
	require.Len(t, out, 2)
	require.Equal(t, EnvRecord{Angle: 0, Distance: 1.1, Quality: 10}, out[0])
	require.Equal(t, EnvRecord{Angle: 1, Distance: 2.2, Quality: 20}, out[1])
}
