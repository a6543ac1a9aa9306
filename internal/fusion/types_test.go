package fusion

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestMat2x2ApplyIdentity(t *testing.T) {
	m := Identity()
	p := Vec2{X: 3, Y: -2}
	require.Equal(t, p, m.Apply(p))
}

func TestMat2x2InverseRoundTrip(t *testing.T) {
	theta := math.Pi / 6
	m := Mat2x2{
		M00: math.Cos(theta), M01: -math.Sin(theta),
		M10: math.Sin(theta), M11: math.Cos(theta),
		Tx: 1.5, Ty: -0.5,
	}
	inv := m.Inverse()

	p := Vec2{X: 2, Y: 3}
	got := inv.Apply(m.Apply(p))
	require.InDelta(t, p.X, got.X, 1e-9)
	require.InDelta(t, p.Y, got.Y, 1e-9)
}

func TestMat2x2MulComposesLeftToRight(t *testing.T) {
	translate := Mat2x2{M00: 1, M11: 1, Tx: 1, Ty: 0}
	scale := Mat2x2{M00: 2, M11: 2}
	composed := translate.Mul(scale)

	got := composed.Apply(Vec2{X: 1, Y: 1})
	want := translate.Apply(scale.Apply(Vec2{X: 1, Y: 1}))
	require.Equal(t, want, got)
}

func TestBlobDistanceToMarkersOnlyMatchSameNumID(t *testing.T) {
	a := Blob{Type: BlobTypeMarker, NumID: 1}
	b := Blob{Type: BlobTypeMarker, NumID: 1}
	c := Blob{Type: BlobTypeMarker, NumID: 2}

	require.Equal(t, 0.0, a.distanceTo(b))
	require.Greater(t, a.distanceTo(c), 1000.0)
}

func TestBlobDistanceToMarkerVsBlobUnreachable(t *testing.T) {
	marker := Blob{Type: BlobTypeMarker, NumID: 1}
	blob := Blob{Type: BlobTypeBlob, Center: Vec2{X: 1, Y: 1}}
	require.Greater(t, marker.distanceTo(blob), 1000.0)
}

func TestBlobDistanceToPlainBlobsUseEuclidean(t *testing.T) {
	a := Blob{Center: Vec2{X: 0, Y: 0}}
	b := Blob{Center: Vec2{X: 3, Y: 4}}
	require.Equal(t, 5.0, a.distanceTo(b))
}

func TestBlobMixWithSizeWeighted(t *testing.T) {
	a := Blob{Center: Vec2{X: 0, Y: 0}, Size: 1}
	b := Blob{Center: Vec2{X: 10, Y: 0}, Size: 3}

	mixed := a.mixWith(b, -1)
	// weight = 1/(1+3) = 0.25, so center = 0.25*0 + 0.75*10 = 7.5
	require.InDelta(t, 7.5, mixed.Center.X, 1e-9)
}

func TestBlobMixWithFallsBackToEvenSplit(t *testing.T) {
	a := Blob{Center: Vec2{X: 0, Y: 0}, Size: 0}
	b := Blob{Center: Vec2{X: 10, Y: 0}, Size: 0}

	mixed := a.mixWith(b, -1)
	require.InDelta(t, 5.0, mixed.Center.X, 1e-9)
}

func TestFlagsHas(t *testing.T) {
	f := FlagPrivate | FlagLatent
	require.True(t, f.Has(FlagPrivate))
	require.True(t, f.Has(FlagLatent))
	require.False(t, f.Has(FlagPortal))
}

func TestTrackedObjectIsActivated(t *testing.T) {
	now := time.Now()
	o := &TrackedObject{ID: "x1", FirstSeen: now.Add(-time.Second), LastSeen: now}
	require.True(t, o.IsActivated(500*time.Millisecond))
	require.False(t, o.IsActivated(2*time.Second))

	unnamed := &TrackedObject{FirstSeen: now.Add(-time.Second), LastSeen: now}
	require.False(t, unnamed.IsActivated(500*time.Millisecond))
}

func TestPolarSampleValid(t *testing.T) {
	s := PolarSample{Quality: 10}
	require.True(t, s.Valid(5))
	require.False(t, s.Valid(10))
}
