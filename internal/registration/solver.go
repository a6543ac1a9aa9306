// Package registration implements RegistrationSolver (C5): finding the
// pairwise rigid 2D transforms that place every DeviceStage into a shared
// world frame, then closing the transitive graph between them.
package registration

import (
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/banshee-data/lidarfusion/internal/config"
	"github.com/banshee-data/lidarfusion/internal/fusion"
)

const phi = 1.618033988749895 // golden angle base for the Fibonacci-spiral translation search

// MarkerPair is one device's candidate marker: two nearby blobs reported as
// a unit, per §4.3.2.
type MarkerPair struct {
	A, B fusion.Blob
}

// Centroid returns the midpoint of the pair.
func (m MarkerPair) Centroid() fusion.Vec2 {
	return fusion.Vec2{X: (m.A.Center.X + m.B.Center.X) / 2, Y: (m.A.Center.Y + m.B.Center.Y) / 2}
}

// Edge is a weighted directed registration result between two devices.
type Edge struct {
	Matrix   fusion.Mat2x2
	Residual float64
	Valid    bool
}

// Solver (C5) accumulates marker observations from n devices in
// accumulation mode and solves for each device's device_matrix.
type Solver struct {
	cfg *config.RegisterConfig
	n   int

	edges [][]Edge // edges[i][j]: device i -> device j
}

// NewSolver allocates a Solver for n devices.
func NewSolver(cfg *config.RegisterConfig, n int) *Solver {
	edges := make([][]Edge, n)
	for i := range edges {
		edges[i] = make([]Edge, n)
	}
	return &Solver{cfg: cfg, n: n, edges: edges}
}

// Solve runs step 2 of §4.5 for every ordered pair (i,j), then closes the
// transitive graph, and returns each device's device_matrix with device 0
// as the frame origin. ok is false if the pass is not complete: some pair
// never found an edge within MarkerMatchDifference.
func (s *Solver) Solve(markers [][]MarkerPair) (matrices []fusion.Mat2x2, ok bool) {
	for i := 0; i < s.n; i++ {
		for j := 0; j < s.n; j++ {
			if i == j {
				s.edges[i][j] = Edge{Matrix: fusion.Identity(), Valid: true}
				continue
			}
			s.edges[i][j] = s.solvePair(markers[i], markers[j])
		}
	}

	s.closeGraph()

	matrices = make([]fusion.Mat2x2, s.n)
	matrices[0] = fusion.Identity()
	complete := true
	for j := 1; j < s.n; j++ {
		e := s.edges[0][j]
		if !e.Valid {
			complete = false
			continue
		}
		matrices[j] = e.Matrix
	}
	return matrices, complete
}

// solvePair implements §4.5 step 2: for every (mi, mj) candidate pair,
// search rotation coarse-then-fine and a Fibonacci-spiral translation
// offset, keeping the transform with lowest residual.
func (s *Solver) solvePair(mi, mj []MarkerPair) Edge {
	best := Edge{Residual: math.Inf(1)}

	for _, a := range mi {
		for _, b := range mj {
			t := s.searchTransform(a, b)
			if t.Residual < best.Residual {
				best = t
			}
		}
	}

	if best.Residual < s.cfg.MarkerMatchDifference {
		best.Valid = true
	}
	return best
}

// searchTransform runs the coarse rotation pass, refines with the fine
// pass centred on the coarse winner, then at each candidate rotation scans
// Fibonacci-spiral translation offsets around the pair centroids.
func (s *Solver) searchTransform(a, b MarkerPair) Edge {
	coarse := s.rotationSearch(a, b, 0, s.cfg.CoarseRotationRangeRad, s.cfg.CoarseRotationSamples)
	fineRange := s.cfg.CoarseRotationRangeRad / s.cfg.FineRotationDivisor
	return s.rotationSearch(a, b, coarse.angle, fineRange, s.cfg.FineRotationSamples).edge
}

type rotationCandidate struct {
	angle float64
	edge  Edge
}

func (s *Solver) rotationSearch(a, b MarkerPair, center, halfRange float64, numSamples int) rotationCandidate {
	best := rotationCandidate{edge: Edge{Residual: math.Inf(1)}}
	if numSamples < 1 {
		numSamples = 1
	}
	for k := 0; k < numSamples; k++ {
		frac := 0.0
		if numSamples > 1 {
			frac = float64(k)/float64(numSamples-1)*2 - 1 // -1..1
		}
		angle := center + frac*halfRange
		edge := s.translationSearch(a, b, angle)
		if edge.Residual < best.edge.Residual {
			best = rotationCandidate{angle: angle, edge: edge}
		}
	}
	return best
}

// translationSearch tries a Fibonacci-spiral sample of translation offsets
// around the pair centroids for a fixed rotation angle, per §4.5:
// radiusWeight = maxRadius/sqrt(numSamples), angle_i = i*phi.
func (s *Solver) translationSearch(a, b MarkerPair, rotation float64) Edge {
	rot := rotationMatrix(rotation)

	centroidA := a.Centroid()
	centroidB := b.Centroid()
	rotatedB := rot.Apply(centroidB)
	baseT := centroidA.Sub(rotatedB)

	const numSamples = 32
	const maxRadius = 0.5 // metres; translation search radius around the centroid estimate
	radiusWeight := maxRadius / math.Sqrt(float64(numSamples))

	best := Edge{Residual: math.Inf(1)}
	for i := 0; i < numSamples; i++ {
		r := radiusWeight * math.Sqrt(float64(i))
		theta := float64(i) * phi
		offset := fusion.Vec2{X: r * math.Cos(theta), Y: r * math.Sin(theta)}

		candidate := fusion.Mat2x2{M00: rot.M00, M01: rot.M01, M10: rot.M10, M11: rot.M11, Tx: baseT.X + offset.X, Ty: baseT.Y + offset.Y}
		res := pairResidual(candidate, a, b)
		if res < best.Residual {
			best = Edge{Matrix: candidate, Residual: res}
		}
	}
	return best
}

func rotationMatrix(theta float64) fusion.Mat2x2 {
	c, sn := math.Cos(theta), math.Sin(theta)
	return fusion.Mat2x2{M00: c, M01: -sn, M10: sn, M11: c}
}

// pairResidual is the sum of squared distances between transformed blob b
// centres and blob a centres, matched in both orientations since a marker
// pair has no inherent ordering.
func pairResidual(t fusion.Mat2x2, a, b MarkerPair) float64 {
	direct := sq(t.Apply(b.A.Center).Sub(a.A.Center)) + sq(t.Apply(b.B.Center).Sub(a.B.Center))
	swapped := sq(t.Apply(b.A.Center).Sub(a.B.Center)) + sq(t.Apply(b.B.Center).Sub(a.A.Center))
	return math.Min(direct, swapped)
}

func sq(v fusion.Vec2) float64 { return v.X*v.X + v.Y*v.Y }

// composeTransforms computes m∘n (apply n then m) using gonum/mat for the
// 2x2 linear-part multiplication, the linear-algebra backbone used across
// the pack wherever a dense matrix solve is called for.
func composeTransforms(m, n fusion.Mat2x2) fusion.Mat2x2 {
	mm := mat.NewDense(2, 2, []float64{m.M00, m.M01, m.M10, m.M11})
	nn := mat.NewDense(2, 2, []float64{n.M00, n.M01, n.M10, n.M11})
	var prod mat.Dense
	prod.Mul(mm, nn)

	linear := fusion.Mat2x2{M00: prod.At(0, 0), M01: prod.At(0, 1), M10: prod.At(1, 0), M11: prod.At(1, 1)}
	t := m.Apply(fusion.Vec2{X: n.Tx, Y: n.Ty})
	linear.Tx = t.X
	linear.Ty = t.Y
	return linear
}

// closeGraph implements §4.5's transitive closing: for up to
// GraphCloseRounds rounds, if i->k and k->j both exist and their composed
// residual beats the current direct i->j, replace the direct edge.
func (s *Solver) closeGraph() {
	for round := 0; round < s.cfg.GraphCloseRounds; round++ {
		changed := false
		for i := 0; i < s.n; i++ {
			for j := 0; j < s.n; j++ {
				if i == j {
					continue
				}
				for k := 0; k < s.n; k++ {
					if k == i || k == j {
						continue
					}
					ik := s.edges[i][k]
					kj := s.edges[k][j]
					if !ik.Valid || !kj.Valid {
						continue
					}
					composed := composeTransforms(ik.Matrix, kj.Matrix)
					residual := ik.Residual + kj.Residual
					direct := s.edges[i][j]
					if !direct.Valid || residual < direct.Residual {
						s.edges[i][j] = Edge{Matrix: composed, Residual: residual, Valid: true}
						changed = true
					}
				}
			}
		}
		if !changed {
			break
		}
	}
}
