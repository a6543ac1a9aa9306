package observer

import (
	"time"

	"github.com/banshee-data/lidarfusion/internal/fusion"
)

// RegionShape selects rect vs ellipse containment.
type RegionShape int

const (
	RegionRect RegionShape = iota
	RegionEllipse
)

// Region is one gating area an observer watches, per §4.8 "Rect gating".
type Region struct {
	Name       string
	Shape      RegionShape
	X, Y       float64 // world-space origin (top-left for rect, centre for ellipse)
	Width, Height float64
	Centred    bool // remap so (0,0) is the rect centre
	Normalised bool // additionally scale by 1/width, 1/height

	Counters RegionCounters

	inside map[string]time.Time // object id -> time it entered this region
}

// RegionCounters accumulates the per-region lifecycle statistics named in
// §4.8.
type RegionCounters struct {
	Enter          int
	Leave          int
	Gate           int // currently-inside count
	AvgLifespan    time.Duration
	SwitchDuration time.Duration

	totalLifespan time.Duration
	lastLeaveAt   time.Time
}

// NewRegion constructs a Region with its membership tracker initialised.
func NewRegion(name string, shape RegionShape, x, y, w, h float64, centred, normalised bool) *Region {
	return &Region{Name: name, Shape: shape, X: x, Y: y, Width: w, Height: h, Centred: centred, Normalised: normalised, inside: map[string]time.Time{}}
}

// remap applies the centred/normalised transform to a world point before
// containment is tested.
func (r *Region) remap(p fusion.Vec2) fusion.Vec2 {
	x, y := p.X-r.X, p.Y-r.Y
	if r.Centred && r.Shape == RegionRect {
		x -= r.Width / 2
		y -= r.Height / 2
	}
	if r.Normalised && r.Width != 0 && r.Height != 0 {
		x /= r.Width
		y /= r.Height
	}
	return fusion.Vec2{X: x, Y: y}
}

// Contains reports whether p falls inside the region.
func (r *Region) Contains(p fusion.Vec2) bool {
	q := r.remap(p)
	switch r.Shape {
	case RegionEllipse:
		rx, ry := r.Width/2, r.Height/2
		if r.Normalised {
			rx, ry = 0.5, 0.5
		}
		if rx == 0 || ry == 0 {
			return false
		}
		return (q.X*q.X)/(rx*rx)+(q.Y*q.Y)/(ry*ry) <= 1
	default:
		w, h := r.Width, r.Height
		if r.Normalised {
			w, h = 1, 1
		}
		if r.Centred {
			return q.X >= -w/2 && q.X <= w/2 && q.Y >= -h/2 && q.Y <= h/2
		}
		return q.X >= 0 && q.X <= w && q.Y >= 0 && q.Y <= h
	}
}

// Update folds one object's position into this region's membership and
// counters for the current frame, reporting whether the object is
// currently inside (the bus only dispatches report() for regions reporting
// true).
func (r *Region) Update(id string, p fusion.Vec2, now time.Time) bool {
	_, wasInside := r.inside[id]
	isInside := r.Contains(p)

	switch {
	case isInside && !wasInside:
		r.inside[id] = now
		r.Counters.Enter++
		r.Counters.Gate++
		if !r.Counters.lastLeaveAt.IsZero() {
			r.Counters.SwitchDuration = now.Sub(r.Counters.lastLeaveAt)
		}
	case !isInside && wasInside:
		enteredAt := r.inside[id]
		delete(r.inside, id)
		r.Counters.Leave++
		r.Counters.Gate--
		r.Counters.totalLifespan += now.Sub(enteredAt)
		if r.Counters.Leave > 0 {
			r.Counters.AvgLifespan = r.Counters.totalLifespan / time.Duration(r.Counters.Leave)
		}
		r.Counters.lastLeaveAt = now
	}

	return isInside
}
