// Package fusion implements the per-device scan pipeline (ScanBuffer,
// EnvironmentModel, ObjectSegmenter) and the cross-device MultiStageTracker
// that turns raw polar returns into a stable population of tracked objects.
package fusion

import (
	"math"
	"time"
)

// Vec2 is a 2D Cartesian point or vector in the world frame (metres).
type Vec2 struct {
	X, Y float64
}

// Sub returns a-b.
func (a Vec2) Sub(b Vec2) Vec2 { return Vec2{a.X - b.X, a.Y - b.Y} }

// Add returns a+b.
func (a Vec2) Add(b Vec2) Vec2 { return Vec2{a.X + b.X, a.Y + b.Y} }

// Scale returns a*s.
func (a Vec2) Scale(s float64) Vec2 { return Vec2{a.X * s, a.Y * s} }

// Mat2x2 is a 2x2 rotation (or general linear) matrix plus a translation,
// i.e. a rigid or affine 2D transform: p' = M*p + T.
type Mat2x2 struct {
	M00, M01, M10, M11 float64
	Tx, Ty              float64
}

// Identity returns the identity transform.
func Identity() Mat2x2 {
	return Mat2x2{M00: 1, M11: 1}
}

// Apply transforms a point.
func (m Mat2x2) Apply(p Vec2) Vec2 {
	return Vec2{
		X: m.M00*p.X + m.M01*p.Y + m.Tx,
		Y: m.M10*p.X + m.M11*p.Y + m.Ty,
	}
}

// Mul composes two transforms: (m∘n)(p) = m(n(p)).
func (m Mat2x2) Mul(n Mat2x2) Mat2x2 {
	return Mat2x2{
		M00: m.M00*n.M00 + m.M01*n.M10,
		M01: m.M00*n.M01 + m.M01*n.M11,
		M10: m.M10*n.M00 + m.M11*n.M10,
		M11: m.M10*n.M01 + m.M11*n.M11,
		Tx:  m.M00*n.Tx + m.M01*n.Ty + m.Tx,
		Ty:  m.M10*n.Tx + m.M11*n.Ty + m.Ty,
	}
}

// Inverse returns the inverse of a rigid (rotation+translation) transform.
func (m Mat2x2) Inverse() Mat2x2 {
	det := m.M00*m.M11 - m.M01*m.M10
	if det == 0 {
		return Identity()
	}
	inv := Mat2x2{
		M00: m.M11 / det,
		M01: -m.M01 / det,
		M10: -m.M10 / det,
		M11: m.M00 / det,
	}
	t := inv.Apply(Vec2{-m.Tx, -m.Ty})
	inv.Tx, inv.Ty = t.X, t.Y
	return inv
}

// PolarSample is a single angular-bin slot in a ScanBuffer (C1).
type PolarSample struct {
	Angle         float64 // radians
	Distance      float64 // metres, 0 or NaN means no echo
	Quality       int     // 0-127, vendor-normalised
	SourceQuality int     // pre-denoise quality, used by temporal noise rejection
	Coord         Vec2    // transformed Cartesian point in world frame
	SourceIndex   int     // angular bin index this sample was written to
	OID           int     // object id assigned by ObjectSegmenter, 0 = unassigned
	Touched       bool    // this bin was written in the current scan
}

// Valid reports whether the sample passes the quality floor. Environment
// classification (EnvironmentModel.Subtract) is layered on top by
// ObjectSegmenter.validMask, and temporal-noise rejection
// (ScanBuffer.TemporallyNoisy) by ObjectSegmenter.Segment.
func (s PolarSample) Valid(minQuality int) bool {
	return s.Quality > minQuality
}

// EnvironmentSample is one angular bin of the learned background (C2).
type EnvironmentSample struct {
	Distance   float64
	Quality    int
	UpdatedAt  time.Time
}

// BlobType distinguishes an ordinary object blob from a registration marker
// union, mirroring BlobMarkerUnion::Type in the original source.
type BlobType int

const (
	BlobTypeBlob BlobType = iota
	BlobTypeMarker
)

// Blob is a contiguous run of valid samples treated as one 2D object chord
// (C3).
type Blob struct {
	Type BlobType

	LowerIndex  int // angular bin index, inclusive
	HigherIndex int // angular bin index, inclusive; may wrap past LowerIndex

	LowerCoord  Vec2
	HigherCoord Vec2
	Center      Vec2
	Normal      Vec2 // matrix_inv * center, normalised
	Extent      float64
	Closest     float64 // ||matrix_inv * center|| - min(distance) if positive and < 1m, else 0
	Curvature   float64 // 0..1
	IsSplit     bool
	OID         int

	Size   float64 // half-extent, used by size-weighted mixing
	NumID  int     // marker numeric id, BlobTypeMarker only
}

// distanceTo mirrors BlobMarkerUnion::distanceTo: markers only match other
// markers sharing the same NumID (distance 0), else are unreachable; blobs
// use plain 2D euclidean distance between centres (distance2D is always
// true in this 2D pipeline, per spec.md's Non-goals).
func (b Blob) distanceTo(other Blob) float64 {
	if b.Type == BlobTypeMarker || other.Type == BlobTypeMarker {
		if b.Type == BlobTypeMarker && other.Type == BlobTypeMarker && b.NumID == other.NumID {
			return 0
		}
		return 1e6
	}
	d := b.Center.Sub(other.Center)
	return math.Hypot(d.X, d.Y)
}

// mixWith blends b with other using a size-weighted average when weight<0:
// weight = size/(size+other.size) if both sizes are positive, else 0.5.
// Grounded on BlobMarkerUnion::mixWith (original_source/.../BlobMarkerUnionTrackable.h).
func (b Blob) mixWith(other Blob, weight float64) Blob {
	if weight < 0 {
		weight = 0.5
		if b.Size > 0 && other.Size > 0 {
			weight = b.Size / (b.Size + other.Size)
		}
	}
	oneMinus := 1 - weight
	out := b
	out.Center.X = weight*b.Center.X + oneMinus*other.Center.X
	out.Center.Y = weight*b.Center.Y + oneMinus*other.Center.Y
	out.Size = weight*b.Size + oneMinus*other.Size
	return out
}

// Flags are the per-object state bits carried on a TrackedObject and on the
// wire (packed Binary.Flags).
type Flags uint16

const (
	FlagTouched Flags = 1 << iota
	FlagPrivate
	FlagPortal
	FlagGreen
	FlagLatent
	FlagImmobile
	FlagOccluded
)

func (f Flags) Has(bit Flags) bool { return f&bit != 0 }

// LatentEntry is one parked id waiting for possible re-inheritance by a
// nearby activated object, per spec.md §4.6 "Drop".
type LatentEntry struct {
	UUID      UUID
	ExpiresAt time.Time
}

// TrackedObject (C6) is the unit the tracker manages and the bus emits.
type TrackedObject struct {
	ID   string
	UUID UUID

	FirstSeen time.Time
	LastSeen  time.Time

	Pos          Vec2
	Motion       Vec2
	PredictedPos Vec2
	Size         float64
	Confidence   float64
	NumWeight    int

	Flags     Flags
	LatentIDs map[string]LatentEntry

	FirstImmobilePos Vec2
	FirstImmobileTS  time.Time
	FirstPrivateTS   time.Time

	// StageIdx/SlotIdx resolve this object's originating DeviceStage entry
	// without a raw pointer, per spec.md §9's arena-of-indices note: the
	// tracker references entries by (stage_idx, slot_idx), never by pointer.
	StageIdx int
	SlotIdx  int
}

// IsActivated reports whether the object has been tracked long enough to
// carry a stable id, per spec.md §3's invariant.
func (o *TrackedObject) IsActivated(minActiveTime time.Duration) bool {
	return o.LastSeen.Sub(o.FirstSeen) > minActiveTime && o.ID != ""
}
