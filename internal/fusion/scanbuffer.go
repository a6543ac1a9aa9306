package fusion

import "math"

// RawSample is one vendor-normalised return handed up through the ScanSource
// contract, before binning and range correction.
type RawSample struct {
	AngleRad  float64
	DistanceM float64
	Quality   int // 0-127
}

// ScanBuffer (C1) holds NumBuffers rings of NumSamples polar samples: ring 0
// is always the latest scan, ring k is k frames back.
type ScanBuffer struct {
	numSamples int
	rangeC1    float64
	rangeC2    float64
	transform  Mat2x2

	rings [][]PolarSample // rings[0] latest ... rings[n-1] oldest

	accum      []Vec2 // accumulation-mode running sum, per bin
	accumCount []int  // accumulation-mode sample count, per bin
	accumMode  bool
}

// NewScanBuffer allocates a ScanBuffer with numBuffers rings of numSamples
// bins each.
func NewScanBuffer(numSamples, numBuffers int, rangeC1, rangeC2 float64) *ScanBuffer {
	if numBuffers < 1 {
		numBuffers = 1
	}
	sb := &ScanBuffer{
		numSamples: numSamples,
		rangeC1:    rangeC1,
		rangeC2:    rangeC2,
		transform:  Identity(),
		rings:      make([][]PolarSample, numBuffers),
		accum:      make([]Vec2, numSamples),
		accumCount: make([]int, numSamples),
	}
	for i := range sb.rings {
		sb.rings[i] = make([]PolarSample, numSamples)
	}
	return sb
}

// SetTransform installs the device's composed matrix (view_matrix *
// device_matrix) used to compute Coord from polar coordinates.
func (sb *ScanBuffer) SetTransform(m Mat2x2) { sb.transform = m }

// bin maps an angle in radians to a ring index, wrapping into [0, 2π).
func (sb *ScanBuffer) bin(angle float64) int {
	const twoPi = 2 * math.Pi
	a := math.Mod(angle, twoPi)
	if a < 0 {
		a += twoPi
	}
	idx := int(a / twoPi * float64(sb.numSamples))
	if idx >= sb.numSamples {
		idx = sb.numSamples - 1
	}
	return idx
}

func polarToCart(angle, distance float64) Vec2 {
	return Vec2{X: distance * math.Cos(angle), Y: distance * math.Sin(angle)}
}

// Push rotates the rings (ring k becomes ring k+1) and writes a new scan
// into ring 0: resets all bins to invalid, then for each raw sample computes
// the bin, applies the linear range correction d' = d*(c1 + c2*d), and
// stores the transformed Cartesian coordinate.
func (sb *ScanBuffer) Push(raw []RawSample) {
	for k := len(sb.rings) - 1; k > 0; k-- {
		copy(sb.rings[k], sb.rings[k-1])
	}

	ring0 := sb.rings[0]
	for i := range ring0 {
		ring0[i] = PolarSample{SourceIndex: i}
	}

	for _, r := range raw {
		idx := sb.bin(r.AngleRad)
		dist := r.DistanceM * (sb.rangeC1 + sb.rangeC2*r.DistanceM)
		ring0[idx] = PolarSample{
			Angle:         r.AngleRad,
			Distance:      dist,
			Quality:       r.Quality,
			SourceQuality: r.Quality,
			Coord:         sb.transform.Apply(polarToCart(r.AngleRad, dist)),
			SourceIndex:   idx,
			Touched:       true,
		}
	}

	if sb.accumMode {
		for i, s := range ring0 {
			if s.Touched {
				sb.accum[i] = sb.accum[i].Add(s.Coord)
				sb.accumCount[i]++
			}
		}
	}
}

// Ring returns ring k (0 = latest). Callers must not mutate the slice.
func (sb *ScanBuffer) Ring(k int) []PolarSample {
	if k < 0 || k >= len(sb.rings) {
		return nil
	}
	return sb.rings[k]
}

// NumSamples returns the ring width.
func (sb *ScanBuffer) NumSamples() int { return sb.numSamples }

// TemporallyNoisy reports whether bin i had a low-quality source reading in
// any of the last N-1 rings (temporal denoising, §4.1).
func (sb *ScanBuffer) TemporallyNoisy(i, minQuality int) bool {
	for k := 1; k < len(sb.rings); k++ {
		if sb.rings[k][i].SourceQuality <= minQuality && sb.rings[k][i].SourceQuality != 0 {
			return true
		}
	}
	return false
}

// SetAccumMode enters or leaves accumulation mode (used during
// registration, §4.5). Leaving clears the accumulators.
func (sb *ScanBuffer) SetAccumMode(on bool) {
	sb.accumMode = on
	if !on {
		for i := range sb.accum {
			sb.accum[i] = Vec2{}
			sb.accumCount[i] = 0
		}
	}
}

// AccumAverage returns the running per-bin average coordinate and sample
// count while in accumulation mode.
func (sb *ScanBuffer) AccumAverage(i int) (Vec2, int) {
	if sb.accumCount[i] == 0 {
		return Vec2{}, 0
	}
	return sb.accum[i].Scale(1 / float64(sb.accumCount[i])), sb.accumCount[i]
}

// CleanupAccum drops bins whose count fell below an adaptive threshold
// derived from the average scan rate and expected sample rate, per §4.1
// scenario 4: a bin that only saw a handful of updates over the
// accumulation window is too sparse to trust.
func (sb *ScanBuffer) CleanupAccum(avgFPS float64, accumSeconds float64) {
	if avgFPS <= 0 {
		return
	}
	expected := avgFPS * accumSeconds
	threshold := int(expected * 0.1)
	for i := range sb.accumCount {
		if sb.accumCount[i] < threshold {
			sb.accum[i] = Vec2{}
			sb.accumCount[i] = 0
		}
	}
}
