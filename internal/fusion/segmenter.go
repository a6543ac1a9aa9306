package fusion

import (
	"math"
	"sort"
)

// ObjectSegmenter (C3) groups valid samples from a ScanBuffer ring into
// Blobs and detects marker pairs for registration.
type ObjectSegmenter struct {
	cfg segmenterConfig

	lastBlobs []Blob // previous frame's blobs, for oid carry-over
	nextOID   int
}

// segmenterConfig avoids importing internal/config from internal/fusion to
// keep the dependency graph leaf-ward; device.Stage constructs one from
// *config.ObjectConfig.
type segmenterConfig struct {
	MaxDistance       float64
	MinExtent         float64
	MaxExtent         float64
	TrackDistance     float64
	MaxCurvature      float64
	MaxMarkerDistance float64
	MinQuality        int
}

// NewObjectSegmenter constructs a segmenter from the §6 lidar.object.*
// tunables.
func NewObjectSegmenter(maxDistance, minExtent, maxExtent, trackDistance, maxCurvature, maxMarkerDistance float64, minQuality int) *ObjectSegmenter {
	return &ObjectSegmenter{
		cfg: segmenterConfig{
			MaxDistance:       maxDistance,
			MinExtent:         minExtent,
			MaxExtent:         maxExtent,
			TrackDistance:     trackDistance,
			MaxCurvature:      maxCurvature,
			MaxMarkerDistance: maxMarkerDistance,
			MinQuality:        minQuality,
		},
		nextOID: 1,
	}
}

// validMask computes per-bin validity: quality above threshold, not
// temporally noisy, not classified as environment.
func (s *ObjectSegmenter) validMask(ring []PolarSample, env *EnvironmentModel) []bool {
	n := len(ring)
	valid := make([]bool, n)
	for i, sample := range ring {
		if !sample.Touched || !sample.Valid(s.cfg.MinQuality) {
			continue
		}
		if env != nil && env.Subtract(i, sample) {
			continue
		}
		valid[i] = true
	}
	return valid
}

// Segment walks ring, temporally-denoised sb, and env to produce the
// ordered blob list for this frame, carrying oid from the prior frame where
// a match is found within TrackDistance.
func (s *ObjectSegmenter) Segment(ring []PolarSample, sb *ScanBuffer, env *EnvironmentModel) []Blob {
	n := len(ring)
	if n == 0 {
		s.lastBlobs = nil
		return nil
	}

	valid := s.validMask(ring, env)
	if sb != nil {
		for i := range valid {
			if valid[i] && sb.TemporallyNoisy(i, s.cfg.MinQuality) {
				valid[i] = false
			}
		}
	}

	anchor := s.findAnchor(valid)
	groups := s.walkGroups(ring, valid, anchor)
	blobs := s.finalize(ring, groups)

	s.carryOIDs(blobs)
	s.lastBlobs = blobs
	return blobs
}

// findAnchor locates a bin whose previous neighbour is invalid, anchoring
// the ring walk so wrap-around groups aren't split arbitrarily.
func (s *ObjectSegmenter) findAnchor(valid []bool) int {
	n := len(valid)
	for i := 0; i < n; i++ {
		prev := (i - 1 + n) % n
		if valid[i] && !valid[prev] {
			return i
		}
	}
	return 0
}

func (s *ObjectSegmenter) walkGroups(ring []PolarSample, valid []bool, anchor int) [][]int {
	n := len(ring)
	var groups [][]int
	var current []int
	var prevCoord Vec2
	havePrev := false

	for step := 0; step < n; step++ {
		i := (anchor + step) % n
		if !valid[i] {
			if len(current) > 0 {
				groups = append(groups, current)
				current = nil
			}
			havePrev = false
			continue
		}
		coord := ring[i].Coord
		if havePrev {
			d := coord.Sub(prevCoord)
			if gapDistance(d) > s.cfg.MaxDistance {
				if len(current) > 0 {
					groups = append(groups, current)
				}
				current = nil
			}
		}
		current = append(current, i)
		prevCoord = coord
		havePrev = true
	}
	if len(current) > 0 {
		groups = append(groups, current)
	}

	// Merge first and last groups if they are continuous across the wrap
	// anchor point (anchor was chosen so this merge is rarely needed, but
	// a single valid run spanning the whole ring still requires it).
	if len(groups) > 1 {
		first := groups[0]
		last := groups[len(groups)-1]
		d := ring[first[0]].Coord.Sub(ring[last[len(last)-1]].Coord)
		if gapDistance(d) <= s.cfg.MaxDistance {
			merged := append(append([]int{}, last...), first...)
			groups = append([][]int{merged}, groups[1:len(groups)-1]...)
		}
	}

	return groups
}

func gapDistance(d Vec2) float64 {
	return math.Sqrt(d.X*d.X + d.Y*d.Y)
}

func (s *ObjectSegmenter) finalize(ring []PolarSample, groups [][]int) []Blob {
	var blobs []Blob
	for _, g := range groups {
		chord := gapDistance(ring[g[0]].Coord.Sub(ring[g[len(g)-1]].Coord))
		if chord < s.cfg.MinExtent {
			continue
		}
		if chord > s.cfg.MaxExtent {
			blobs = append(blobs, s.split(ring, g)...)
			continue
		}
		blobs = append(blobs, s.buildBlob(ring, g, false))
	}
	return blobs
}

// split breaks a too-long group into n = ceil(chord/MaxExtent) pieces in one
// pass (pieces are not split again): for exactly 2 pieces, pick the
// split index maximising the sum of the two sub-chord curvatures (§4.3.1);
// for more than 2, split uniformly.
func (s *ObjectSegmenter) split(ring []PolarSample, g []int) []Blob {
	if len(g) < 2 {
		return []Blob{s.buildBlob(ring, g, true)}
	}

	chord := gapDistance(ring[g[0]].Coord.Sub(ring[g[len(g)-1]].Coord))
	n := int(math.Ceil(chord / s.cfg.MaxExtent))
	if n < 2 {
		n = 2
	}

	if n == 2 {
		bestIdx := len(g) / 2
		bestScore := -1.0
		for split := 1; split < len(g); split++ {
			left := g[:split]
			right := g[split:]
			score := blobCurvature(ring, left) + blobCurvature(ring, right)
			if score > bestScore {
				bestScore = score
				bestIdx = split
			}
		}
		var out []Blob
		out = append(out, s.buildBlob(ring, g[:bestIdx], true))
		out = append(out, s.buildBlob(ring, g[bestIdx:], true))
		return out
	}

	// uniform split into n pieces
	var out []Blob
	step := len(g) / n
	if step < 1 {
		step = 1
	}
	for i := 0; i < len(g); i += step {
		end := i + step
		if end > len(g) {
			end = len(g)
		}
		out = append(out, s.buildBlob(ring, g[i:end], true))
	}
	return out
}

func blobCurvature(ring []PolarSample, g []int) float64 {
	if len(g) < 3 {
		return 0
	}
	mid := len(g) / 2
	return curvature(ring[g[0]].Coord, ring[g[mid]].Coord, ring[g[len(g)-1]].Coord, math.Pi/2)
}

// curvature implements §4.3.1: for three points p0,p1,p2, curvature =
// asin(|v0 x v1|) / (pi/2) / maxCurvature, clamped to [0,1].
func curvature(p0, p1, p2 Vec2, maxCurvature float64) float64 {
	v0 := unit(p1.Sub(p0))
	v1 := unit(p2.Sub(p1))
	cross := v0.X*v1.Y - v0.Y*v1.X
	if cross > 1 {
		cross = 1
	} else if cross < -1 {
		cross = -1
	}
	c := math.Asin(math.Abs(cross)) / (math.Pi / 2) / maxCurvature
	if c < 0 {
		c = 0
	}
	if c > 1 {
		c = 1
	}
	return c
}

func unit(v Vec2) Vec2 {
	l := gapDistance(v)
	if l == 0 {
		return Vec2{}
	}
	return Vec2{X: v.X / l, Y: v.Y / l}
}

func (s *ObjectSegmenter) buildBlob(ring []PolarSample, g []int, isSplit bool) Blob {
	lower := ring[g[0]]
	higher := ring[g[len(g)-1]]

	var sumX, sumY, localX, localY, minDist float64
	minDist = math.Inf(1)
	for _, idx := range g {
		sumX += ring[idx].Coord.X
		sumY += ring[idx].Coord.Y
		// device-frame point; the mean of these is matrix_inv * center
		local := polarToCart(ring[idx].Angle, ring[idx].Distance)
		localX += local.X
		localY += local.Y
		if ring[idx].Distance < minDist {
			minDist = ring[idx].Distance
		}
	}
	center := Vec2{X: sumX / float64(len(g)), Y: sumY / float64(len(g))}
	extent := gapDistance(higher.Coord.Sub(lower.Coord))

	curv := 0.0
	if len(g) >= 3 {
		curv = curvature(lower.Coord, center, higher.Coord, s.cfg.MaxCurvature)
	}

	normal := Vec2{X: localX / float64(len(g)), Y: localY / float64(len(g))}
	normLen := gapDistance(normal)
	closest := 0.0
	if c := normLen - minDist; c > 0 && c < 1 {
		closest = c
	}

	return Blob{
		Type:        BlobTypeBlob,
		LowerIndex:  g[0],
		HigherIndex: g[len(g)-1],
		LowerCoord:  lower.Coord,
		HigherCoord: higher.Coord,
		Center:      center,
		Normal:      unit(normal),
		Extent:      extent,
		Closest:     closest,
		Curvature:   curv,
		IsSplit:     isSplit,
		Size:        extent / 2,
	}
}

// blobMatchPair is a candidate (new blob, last-frame blob) pairing sorted
// ascending by distance for the greedy oid carry-over pass.
type blobMatchPair struct {
	newIdx  int
	lastIdx int
	distance float64
}

// carryOIDs re-runs frame-to-frame blob matching against the prior frame's
// blobs to carry stable oids, per §4.3's "greedy by sorted distance,
// distance <= object_track_distance": every candidate pair within
// TrackDistance is sorted ascending and bound first-come-first-served, not
// solved for a globally optimal assignment.
func (s *ObjectSegmenter) carryOIDs(blobs []Blob) {
	if len(s.lastBlobs) == 0 {
		for i := range blobs {
			blobs[i].OID = s.nextOID
			s.nextOID++
		}
		return
	}

	var pairs []blobMatchPair
	for i := range blobs {
		for j := range s.lastBlobs {
			d := blobs[i].distanceTo(s.lastBlobs[j])
			if d <= s.cfg.TrackDistance {
				pairs = append(pairs, blobMatchPair{i, j, d})
			}
		}
	}
	sort.Slice(pairs, func(a, b int) bool { return pairs[a].distance < pairs[b].distance })

	boundNew := make(map[int]bool, len(blobs))
	boundLast := make(map[int]bool, len(s.lastBlobs))
	for _, p := range pairs {
		if boundNew[p.newIdx] || boundLast[p.lastIdx] {
			continue
		}
		blobs[p.newIdx].OID = s.lastBlobs[p.lastIdx].OID
		boundNew[p.newIdx] = true
		boundLast[p.lastIdx] = true
	}
	for i := range blobs {
		if !boundNew[i] {
			blobs[i].OID = s.nextOID
			s.nextOID++
		}
	}
}

// Markers returns every unordered pair of blobs whose centre-to-centre
// distance is below MaxMarkerDistance, per §4.3.2.
func (s *ObjectSegmenter) Markers(blobs []Blob) [][2]Blob {
	var out [][2]Blob
	for i := 0; i < len(blobs); i++ {
		for j := i + 1; j < len(blobs); j++ {
			d := gapDistance(blobs[i].Center.Sub(blobs[j].Center))
			if d < s.cfg.MaxMarkerDistance {
				out = append(out, [2]Blob{blobs[i], blobs[j]})
			}
		}
	}
	return out
}
