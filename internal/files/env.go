// Package files implements the plain-text config-directory formats named in
// spec.md §6: per-device env snapshots, device/view matrix pairs, and the
// device group membership map, all read/written through
// internal/fsutil.FileSystem for testability.
package files

import (
	"bufio"
	"bytes"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/banshee-data/lidarfusion/internal/fsutil"
	"github.com/banshee-data/lidarfusion/internal/fusion"
)

// EnvRecord is one learned-background angular bin, one line of an env file:
// "angle distance quality".
type EnvRecord struct {
	Angle    float64
	Distance float64
	Quality  int
}

// ReadEnv parses an env file: one "angle distance quality" record per line,
// blank lines ignored.
func ReadEnv(fsys fsutil.FileSystem, path string) ([]EnvRecord, error) {
	data, err := fsys.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("files: read env %s: %w", path, err)
	}

	var out []EnvRecord
	scanner := bufio.NewScanner(bytes.NewReader(data))
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) != 3 {
			return nil, fmt.Errorf("files: env %s line %d: want 3 fields, got %d", path, lineNo, len(fields))
		}
		angle, err := strconv.ParseFloat(fields[0], 64)
		if err != nil {
			return nil, fmt.Errorf("files: env %s line %d: angle: %w", path, lineNo, err)
		}
		dist, err := strconv.ParseFloat(fields[1], 64)
		if err != nil {
			return nil, fmt.Errorf("files: env %s line %d: distance: %w", path, lineNo, err)
		}
		quality, err := strconv.Atoi(fields[2])
		if err != nil {
			return nil, fmt.Errorf("files: env %s line %d: quality: %w", path, lineNo, err)
		}
		out = append(out, EnvRecord{Angle: angle, Distance: dist, Quality: quality})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("files: scan env %s: %w", path, err)
	}
	return out, nil
}

// WriteEnv writes records in ReadEnv's format, one per line.
func WriteEnv(fsys fsutil.FileSystem, path string, records []EnvRecord) error {
	var buf bytes.Buffer
	for _, r := range records {
		fmt.Fprintf(&buf, "%g %g %d\n", r.Angle, r.Distance, r.Quality)
	}
	if err := fsutil.EnsureDir(fsys, filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("files: write env %s: %w", path, err)
	}
	if err := fsys.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("files: write env %s: %w", path, err)
	}
	return nil
}

// EnvRecordsFromSamples snapshots an EnvironmentModel's current bins into
// EnvRecords for WriteEnv, pairing each bin with its angle.
func EnvRecordsFromSamples(angles []float64, samples []fusion.EnvironmentSample) []EnvRecord {
	n := len(samples)
	if len(angles) < n {
		n = len(angles)
	}
	out := make([]EnvRecord, n)
	for i := 0; i < n; i++ {
		out[i] = EnvRecord{Angle: angles[i], Distance: samples[i].Distance, Quality: samples[i].Quality}
	}
	return out
}
