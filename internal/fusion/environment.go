package fusion

import (
	"math"
	"time"

	"gonum.org/v1/gonum/stat"
)

// EnvironmentModel (C2) learns, erodes/smooths, and adaptively subtracts a
// per-angle minimum-distance map — the learned static background.
type EnvironmentModel struct {
	numSamples int

	rawEnv   []EnvironmentSample // learned minimum per bin
	env      []EnvironmentSample // raw_env after erode+smooth
	depthEnv []EnvironmentSample // adapting lower envelope

	threshold         float64
	minQuality        int
	filterMinDistance float64
	filterSize        float64 // radians
	adaptSec          time.Duration

	deviceFamily string // skips erode/smooth for certain families, see DESIGN.md open question
}

// NewEnvironmentModel allocates an EnvironmentModel for a ring of the given
// width.
func NewEnvironmentModel(numSamples int, threshold float64, minQuality int, filterMinDistance, filterSize float64, adaptSec time.Duration, deviceFamily string) *EnvironmentModel {
	return &EnvironmentModel{
		numSamples:        numSamples,
		rawEnv:            make([]EnvironmentSample, numSamples),
		env:               make([]EnvironmentSample, numSamples),
		depthEnv:          make([]EnvironmentSample, numSamples),
		threshold:         threshold,
		minQuality:        minQuality,
		filterMinDistance: filterMinDistance,
		filterSize:        filterSize,
		adaptSec:          adaptSec,
		deviceFamily:      deviceFamily,
	}
}

// confidence implements the §4.2 learn-time weighting:
// confidence = quality_norm^1.8 + distance_norm^0.25; only accepted when >=1.
func confidence(qualityNorm, distanceNorm float64) float64 {
	return math.Pow(qualityNorm, 1.8) + math.Pow(distanceNorm, 0.25)
}

// Scan folds one live ring into raw_env: for each bin, if the incoming
// quality clears env_min_quality and (no prior value or the new distance is
// closer), store it, gated by the learn-time confidence weight.
func (e *EnvironmentModel) Scan(ring []PolarSample, now time.Time) {
	for i, s := range ring {
		if !s.Touched || s.Quality <= e.minQuality || math.IsNaN(s.Distance) {
			continue
		}
		qualityNorm := float64(s.Quality) / 127.0
		distanceNorm := 0.0
		if s.Distance > 0 {
			distanceNorm = 1.0 / (1.0 + s.Distance)
		}
		if confidence(qualityNorm, distanceNorm) < 1 {
			continue
		}
		prior := e.rawEnv[i]
		if prior.Quality == 0 || s.Distance < prior.Distance {
			e.rawEnv[i] = EnvironmentSample{Distance: s.Distance, Quality: s.Quality, UpdatedAt: now}
		}
	}
}

// steps computes the erode/smooth window from the angular filter size, per
// §4.2: steps = round(filterSize/(2π) * numSamples).
func (e *EnvironmentModel) steps() int {
	s := int(math.Round(e.filterSize / (2 * math.Pi) * float64(e.numSamples)))
	if s < 1 {
		s = 1
	}
	return s
}

// Process runs erode then smooth over raw_env into env. Certain device
// families skip this pass entirely; preserved per spec.md §9's open
// question until a test demonstrates equivalent behaviour without the
// branch.
func (e *EnvironmentModel) Process() {
	if e.deviceFamily == "ms200" || e.deviceFamily == "st27" {
		copy(e.env, e.rawEnv)
		return
	}

	steps := e.steps()
	eroded := e.erode(steps)
	e.env = e.smooth(eroded, steps)
}

func (e *EnvironmentModel) erode(steps int) []EnvironmentSample {
	out := make([]EnvironmentSample, e.numSamples)
	n := e.numSamples
	for i := 0; i < n; i++ {
		self := e.rawEnv[i]
		best := self
		for k := -steps; k <= steps; k++ {
			if k == 0 {
				continue
			}
			j := ((i+k)%n + n) % n
			cand := e.rawEnv[j]
			if cand.Quality == 0 {
				continue
			}
			if self.Quality != 0 && math.Abs(cand.Distance-self.Distance) > e.filterMinDistance {
				continue
			}
			if best.Quality == 0 || cand.Distance < best.Distance {
				best = cand
			}
		}
		out[i] = best
	}
	return out
}

func (e *EnvironmentModel) smooth(in []EnvironmentSample, steps int) []EnvironmentSample {
	out := make([]EnvironmentSample, e.numSamples)
	n := e.numSamples
	for i := 0; i < n; i++ {
		sample := in[i]
		if sample.Quality == 0 {
			out[i] = sample
			continue
		}
		weightedSum := sample.Distance
		weightTotal := 1.0
		denom := steps - 1
		if denom < 1 {
			denom = 1
		}
		for k := 1; k <= steps; k++ {
			alpha := 1 - 0.3*float64(k)/float64(denom)
			for _, j := range []int{((i-k)%n + n) % n, (i + k) % n} {
				cand := in[j]
				if cand.Quality == 0 {
					continue
				}
				// only mix in neighbours closer than the sample by less
				// than filterMinDistance
				if cand.Distance < sample.Distance && sample.Distance-cand.Distance < e.filterMinDistance {
					weightedSum += alpha * cand.Distance
					weightTotal += alpha
				}
			}
		}
		out[i] = EnvironmentSample{
			Distance:  weightedSum / weightTotal,
			Quality:   sample.Quality,
			UpdatedAt: sample.UpdatedAt,
		}
	}
	return out
}

// Adapt advances the adapting lower envelope for the current live scan, per
// §4.2. No-op if adaptation is not armed (adaptSec <= 0).
func (e *EnvironmentModel) Adapt(ring []PolarSample, now time.Time) {
	if e.adaptSec <= 0 {
		return
	}
	for i, s := range ring {
		if !s.Touched || math.IsNaN(s.Distance) {
			continue
		}
		z := s.Distance
		dz := e.depthEnv[i]
		if dz.Quality == 0 {
			e.depthEnv[i] = EnvironmentSample{Distance: z, Quality: s.Quality, UpdatedAt: now}
			continue
		}
		switch {
		case z < dz.Distance:
			e.depthEnv[i] = EnvironmentSample{Distance: z, Quality: s.Quality, UpdatedAt: now}
		case z > dz.Distance+e.threshold:
			if now.Sub(dz.UpdatedAt) > e.adaptSec {
				e.rawEnv[i] = EnvironmentSample{Distance: z, Quality: s.Quality, UpdatedAt: now}
			}
		default:
			e.depthEnv[i].UpdatedAt = now
		}
	}
}

// Subtract reports whether bin i is classified as environment: env[i] is
// confident and the live sample sits beyond env distance minus threshold.
func (e *EnvironmentModel) Subtract(i int, sample PolarSample) bool {
	env := e.env[i]
	if env.Quality <= e.minQuality {
		return false
	}
	return sample.Distance > env.Distance-e.threshold
}

// Env returns the processed environment sample for bin i.
func (e *EnvironmentModel) Env(i int) EnvironmentSample { return e.env[i] }

// RawEnv returns the learned-minimum sample for bin i.
func (e *EnvironmentModel) RawEnv(i int) EnvironmentSample { return e.rawEnv[i] }

// Reset clears all three buffers, per DeviceStage.env_reset().
func (e *EnvironmentModel) Reset() {
	for i := range e.rawEnv {
		e.rawEnv[i] = EnvironmentSample{}
		e.env[i] = EnvironmentSample{}
		e.depthEnv[i] = EnvironmentSample{}
	}
}

// MeanDistance reports the confidence-weighted mean and standard deviation
// of the learned environment's valid distances, exposed for the admin
// surface / env_save diagnostics; uses gonum/stat for the weighted moments.
func (e *EnvironmentModel) MeanDistance() (mean, stddev float64) {
	var xs, ws []float64
	for _, s := range e.env {
		if s.Quality == 0 {
			continue
		}
		xs = append(xs, s.Distance)
		ws = append(ws, float64(s.Quality))
	}
	if len(xs) == 0 {
		return 0, 0
	}
	mean = stat.Mean(xs, ws)
	variance := stat.Variance(xs, ws)
	return mean, math.Sqrt(variance)
}
