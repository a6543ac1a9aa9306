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

// MatrixPair is one device's calibration, two lines of six floats each:
// device_matrix then view_matrix, per spec.md §6.
type MatrixPair struct {
	Device fusion.Mat2x2
	View   fusion.Mat2x2
}

// ReadMatrix parses a matrix file's two lines.
func ReadMatrix(fsys fsutil.FileSystem, path string) (MatrixPair, error) {
	data, err := fsys.ReadFile(path)
	if err != nil {
		return MatrixPair{}, fmt.Errorf("files: read matrix %s: %w", path, err)
	}

	var lines []string
	scanner := bufio.NewScanner(bytes.NewReader(data))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		lines = append(lines, line)
	}
	if err := scanner.Err(); err != nil {
		return MatrixPair{}, fmt.Errorf("files: scan matrix %s: %w", path, err)
	}
	if len(lines) != 2 {
		return MatrixPair{}, fmt.Errorf("files: matrix %s: want 2 lines, got %d", path, len(lines))
	}

	device, err := parseMatrixLine(path, lines[0])
	if err != nil {
		return MatrixPair{}, err
	}
	view, err := parseMatrixLine(path, lines[1])
	if err != nil {
		return MatrixPair{}, err
	}
	return MatrixPair{Device: device, View: view}, nil
}

func parseMatrixLine(path, line string) (fusion.Mat2x2, error) {
	fields := strings.Fields(line)
	if len(fields) != 6 {
		return fusion.Mat2x2{}, fmt.Errorf("files: matrix %s: want 6 fields, got %d", path, len(fields))
	}
	vals := make([]float64, 6)
	for i, f := range fields {
		v, err := strconv.ParseFloat(f, 64)
		if err != nil {
			return fusion.Mat2x2{}, fmt.Errorf("files: matrix %s: field %d: %w", path, i, err)
		}
		vals[i] = v
	}
	return fusion.Mat2x2{M00: vals[0], M01: vals[1], M10: vals[2], M11: vals[3], Tx: vals[4], Ty: vals[5]}, nil
}

// WriteMatrix writes a MatrixPair in ReadMatrix's two-line format.
func WriteMatrix(fsys fsutil.FileSystem, path string, pair MatrixPair) error {
	var buf bytes.Buffer
	writeMatrixLine(&buf, pair.Device)
	writeMatrixLine(&buf, pair.View)
	if err := fsutil.EnsureDir(fsys, filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("files: write matrix %s: %w", path, err)
	}
	if err := fsys.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("files: write matrix %s: %w", path, err)
	}
	return nil
}

func writeMatrixLine(buf *bytes.Buffer, m fusion.Mat2x2) {
	fmt.Fprintf(buf, "%g %g %g %g %g %g\n", m.M00, m.M01, m.M10, m.M11, m.Tx, m.Ty)
}
