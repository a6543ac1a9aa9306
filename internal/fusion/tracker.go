package fusion

import (
	"fmt"
	"math"
	"sort"
	"time"
)

// UniteMode selects how blobs from multiple DeviceStages are folded into one
// merged population, per §4.6 "Unite".
type UniteMode int

const (
	// UniteStageMode iteratively adds each substage's blobs into merged,
	// mixing matches with weight 1/num_weight.
	UniteStageMode UniteMode = iota
	// UniteSingleStageMode concatenates all substage blobs then repeatedly
	// fuses the closest pair until none remain within UniteDistance.
	UniteSingleStageMode
)

// TrackerConfig is the subset of §6 track.* tunables the tracker consumes;
// device.TrackerConfigFrom builds one from *config.TrackConfig to keep fusion free of a
// dependency on internal/config.
type TrackerConfig struct {
	UniteDistance      float64
	TrackDistance      float64
	TrackOldestFactor  float64
	LatentDistance     float64
	LatentLifeTime     time.Duration
	TrackMotionPredict float64
	KeepTime           time.Duration
	MinActiveTime      time.Duration
	MinActiveFraction  float64
	TrackFilterWeight  float64
	TrackSmoothing     float64
	PrivateTimeout     time.Duration
	ImmobileTimeout    time.Duration
	ImmobileDistance   float64
	UniteMode          UniteMode
}

// TrackableMask reports the classification bits an external collaborator
// assigns to an activated object (Private, Portal, Occluded), per §4.6
// "Classify". A nil mask never sets any bit.
type TrackableMask func(obj *TrackedObject) Flags

// MultiStageTracker (C6) unites per-device blobs into one tracked
// population, assigning stable ids and flags frame over frame.
type MultiStageTracker struct {
	cfg  TrackerConfig
	mask TrackableMask

	current   []*TrackedObject
	nextNumID uint32
}

// NewMultiStageTracker constructs a tracker. mask may be nil.
func NewMultiStageTracker(cfg TrackerConfig, mask TrackableMask) *MultiStageTracker {
	return &MultiStageTracker{cfg: cfg, mask: mask, nextNumID: 1}
}

// mergedBlob pairs a Blob with the originating (stageIdx, slotIdx) so the
// tracker never needs a raw pointer back into a DeviceStage, per spec.md
// §9's arena-of-indices note.
type mergedBlob struct {
	Blob
	StageIdx  int
	SlotIdx   int
	NumWeight int
}

// Unite folds every DeviceStage's blob list into one merged population.
func (t *MultiStageTracker) Unite(stageBlobs [][]Blob) []mergedBlob {
	switch t.cfg.UniteMode {
	case UniteSingleStageMode:
		return t.uniteSingleStage(stageBlobs)
	default:
		return t.uniteStageMode(stageBlobs)
	}
}

func (t *MultiStageTracker) uniteStageMode(stageBlobs [][]Blob) []mergedBlob {
	var merged []mergedBlob
	for stageIdx, blobs := range stageBlobs {
		for slotIdx, b := range blobs {
			bestJ := -1
			bestD := math.Inf(1)
			for j := range merged {
				d := b.distanceTo(merged[j].Blob)
				if d < t.cfg.UniteDistance && d < bestD {
					bestD = d
					bestJ = j
				}
			}
			if bestJ >= 0 {
				merged[bestJ].NumWeight++
				weight := 1.0 / float64(merged[bestJ].NumWeight)
				merged[bestJ].Blob = merged[bestJ].Blob.mixWith(b, 1-weight)
			} else {
				merged = append(merged, mergedBlob{Blob: b, StageIdx: stageIdx, SlotIdx: slotIdx, NumWeight: 1})
			}
		}
	}
	return merged
}

func (t *MultiStageTracker) uniteSingleStage(stageBlobs [][]Blob) []mergedBlob {
	var merged []mergedBlob
	for stageIdx, blobs := range stageBlobs {
		for slotIdx, b := range blobs {
			merged = append(merged, mergedBlob{Blob: b, StageIdx: stageIdx, SlotIdx: slotIdx, NumWeight: 1})
		}
	}

	for {
		bestI, bestJ := -1, -1
		bestD := t.cfg.UniteDistance
		for i := 0; i < len(merged); i++ {
			for j := i + 1; j < len(merged); j++ {
				d := merged[i].Blob.distanceTo(merged[j].Blob)
				if d < bestD {
					bestD = d
					bestI, bestJ = i, j
				}
			}
		}
		if bestI < 0 {
			break
		}
		merged[bestI].NumWeight += merged[bestJ].NumWeight
		weight := float64(merged[bestI].NumWeight-merged[bestJ].NumWeight) / float64(merged[bestI].NumWeight)
		merged[bestI].Blob = merged[bestI].Blob.mixWith(merged[bestJ].Blob, weight)
		merged = append(merged[:bestJ], merged[bestJ+1:]...)
	}
	return merged
}

// predict advances every current entry's PredictedPos.
func (t *MultiStageTracker) predict(dt time.Duration) {
	dtSec := dt.Seconds()
	for _, o := range t.current {
		o.PredictedPos = o.Pos.Add(o.Motion.Scale(t.cfg.TrackMotionPredict * dtSec))
	}
}

// matchPair is a candidate (current, merged) pairing sorted ascending by
// distance for the greedy match pass.
type matchPair struct {
	currentIdx int
	mergedIdx  int
	distance   float64
}

// match implements §4.6 "Match": sort all candidate pairs within
// TrackDistance ascending, greedily bind them, then let an older activated
// current steal a binding from a non-activated current within the wider
// TrackOldestFactor*TrackDistance radius.
func (t *MultiStageTracker) match(merged []mergedBlob, now time.Time) (currentToMerged map[int]int, boundMerged map[int]bool) {
	var pairs []matchPair
	for ci, o := range t.current {
		for mi, m := range merged {
			d := dist(o.PredictedPos, m.Center)
			if d <= t.cfg.TrackDistance {
				pairs = append(pairs, matchPair{ci, mi, d})
			}
		}
	}
	sort.Slice(pairs, func(i, j int) bool { return pairs[i].distance < pairs[j].distance })

	currentToMerged = make(map[int]int)
	boundMerged = make(map[int]bool)
	boundCurrent := make(map[int]bool)

	for _, p := range pairs {
		if boundCurrent[p.currentIdx] || boundMerged[p.mergedIdx] {
			continue
		}
		currentToMerged[p.currentIdx] = p.mergedIdx
		boundCurrent[p.currentIdx] = true
		boundMerged[p.mergedIdx] = true
	}

	// Steal pass: an older activated current objects may steal a binding
	// held by a non-activated current, if within TrackOldestFactor*TrackDistance.
	wideDistance := t.cfg.TrackDistance * t.cfg.TrackOldestFactor
	for ci, o := range t.current {
		if boundCurrent[ci] || !o.IsActivated(t.cfg.MinActiveTime) {
			continue
		}
		bestMerged := -1
		bestD := wideDistance
		for mi, m := range merged {
			holderCI := -1
			for hci, hmi := range currentToMerged {
				if hmi == mi {
					holderCI = hci
					break
				}
			}
			if holderCI < 0 || t.current[holderCI].IsActivated(t.cfg.MinActiveTime) {
				continue
			}
			d := dist(o.PredictedPos, m.Center)
			if d < bestD {
				bestD = d
				bestMerged = mi
			}
		}
		if bestMerged >= 0 {
			for hci, hmi := range currentToMerged {
				if hmi == bestMerged {
					delete(currentToMerged, hci)
					boundCurrent[hci] = false
					break
				}
			}
			currentToMerged[ci] = bestMerged
			boundCurrent[ci] = true
		}
	}

	return currentToMerged, boundMerged
}

func dist(a, b Vec2) float64 {
	d := a.Sub(b)
	return math.Hypot(d.X, d.Y)
}

// updateMotion implements §4.6 "Update motion" for matched pairs and the
// coasting rule for unmatched current objects.
func (t *MultiStageTracker) updateMotion(currentToMerged map[int]int, merged []mergedBlob, now time.Time, dt time.Duration) {
	alpha := 0.25 * (1 - t.cfg.TrackFilterWeight)
	dtSec := dt.Seconds()

	for ci, o := range t.current {
		mi, matched := currentToMerged[ci]
		if matched && dt > time.Second/80 {
			newPos := merged[mi].Center
			delta := newPos.Sub(o.Pos).Scale(1 / dtSec)
			o.Motion = o.Motion.Scale(1 - alpha).Add(delta.Scale(alpha))
			capSpeed(&o.Motion, 1.0)
		} else if !matched {
			age := now.Sub(o.LastSeen)
			coastAlpha := t.cfg.TrackMotionPredict
			if t.cfg.KeepTime > 0 {
				frac := float64(age) / float64(t.cfg.KeepTime)
				if frac > 1 {
					frac = 1
				}
				coastAlpha = t.cfg.TrackMotionPredict * (1 - frac)
			}
			o.Pos = o.Pos.Add(o.Motion.Scale(coastAlpha))
		}
	}
}

func capSpeed(motion *Vec2, maxSpeed float64) {
	if math.Abs(motion.X) > maxSpeed {
		motion.X = math.Copysign(maxSpeed, motion.X)
	}
	if math.Abs(motion.Y) > maxSpeed {
		motion.Y = math.Copysign(maxSpeed, motion.Y)
	}
}

// smooth implements §4.6 "Smooth": blend position toward the new match
// unless the step fails the isValidSpeed plausibility test, in which case
// the position snaps directly.
func (t *MultiStageTracker) smooth(currentToMerged map[int]int, merged []mergedBlob, dt time.Duration) {
	s := t.cfg.TrackSmoothing
	for ci, o := range t.current {
		mi, matched := currentToMerged[ci]
		if !matched {
			continue
		}
		newPos := merged[mi].Center
		if isValidSpeed(o.Pos, newPos, dt) {
			o.Pos = o.Pos.Scale(s).Add(newPos.Scale(1 - s))
		} else {
			o.Pos = newPos
		}
	}
}

func isValidSpeed(oldPos, newPos Vec2, dt time.Duration) bool {
	if dt <= 0 || dt >= 5*time.Second {
		return false
	}
	d := dist(oldPos, newPos)
	speed := d / dt.Seconds()
	return speed < 2.0
}

// activate implements §4.6 "Activate": a new merged blob with no current
// binding becomes a provisional current entry; provisional entries graduate
// to an id once old and touched enough.
func (t *MultiStageTracker) activate(merged []mergedBlob, boundMerged map[int]bool, now time.Time) {
	for mi, m := range merged {
		if boundMerged[mi] {
			continue
		}
		obj := &TrackedObject{
			Pos:       m.Center,
			Size:      m.Size,
			FirstSeen: now,
			LastSeen:  now,
			NumWeight: 1,
			LatentIDs: map[string]LatentEntry{},
			StageIdx:  m.StageIdx,
			SlotIdx:   m.SlotIdx,
		}
		t.current = append(t.current, obj)
	}

	for _, o := range t.current {
		if o.ID != "" {
			continue
		}
		if o.LastSeen.Sub(o.FirstSeen) <= t.cfg.MinActiveTime {
			continue
		}
		if inherited := t.claimLatent(o); inherited != "" {
			o.ID = inherited
			continue
		}
		o.ID = fmt.Sprintf("obj-%d", t.nextNumID)
		o.UUID = NewUUID(o.FirstSeen.UnixMilli(), t.nextNumID)
		t.nextNumID++
	}
}

// claimLatent looks for a latent id parked on any nearby activated
// neighbour and, if found, removes and returns it.
func (t *MultiStageTracker) claimLatent(o *TrackedObject) string {
	for _, other := range t.current {
		if other == o || len(other.LatentIDs) == 0 {
			continue
		}
		for id, entry := range other.LatentIDs {
			if dist(o.Pos, other.Pos) <= t.cfg.LatentDistance {
				delete(other.LatentIDs, id)
				o.UUID = DeriveUUID(entry.UUID, t.nextNumID)
				t.nextNumID++
				return id
			}
		}
	}
	return ""
}

// classify runs the external trackable mask and tracks private/immobile
// continuity, per §4.6 "Classify".
func (t *MultiStageTracker) classify(now time.Time) {
	for _, o := range t.current {
		if o.ID == "" {
			continue
		}

		var bits Flags
		if t.mask != nil {
			bits = t.mask(o)
		}
		o.Flags = (o.Flags &^ (FlagPrivate | FlagPortal | FlagOccluded)) | (bits & (FlagPrivate | FlagPortal | FlagOccluded))

		if bits.Has(FlagPrivate) {
			if o.FirstPrivateTS.IsZero() {
				o.FirstPrivateTS = now
			}
			if now.Sub(o.FirstPrivateTS) >= t.cfg.PrivateTimeout {
				o.Flags |= FlagPrivate
			}
		} else {
			o.FirstPrivateTS = time.Time{}
		}

		if o.FirstImmobileTS.IsZero() {
			o.FirstImmobilePos = o.Pos
			o.FirstImmobileTS = now
		} else if dist(o.Pos, o.FirstImmobilePos) > t.cfg.ImmobileDistance {
			o.FirstImmobilePos = o.Pos
			o.FirstImmobileTS = now
			o.Flags &^= FlagImmobile
		} else if now.Sub(o.FirstImmobileTS) >= t.cfg.ImmobileTimeout {
			o.Flags |= FlagImmobile
		}
	}
}

// dropThreshold returns how long an untouched current entry may go before
// drop removes it. Activated entries get the wide KeepTime budget; a
// provisional (never-activated) entry gets the much tighter
// MinActiveTime*MinActiveFraction gate per §4.6 "Activate" — it must be
// touched at least that often or it never survives long enough to
// accumulate the MinActiveTime span activate() requires.
func (t *MultiStageTracker) dropThreshold(o *TrackedObject) time.Duration {
	if o.ID == "" {
		return time.Duration(float64(t.cfg.MinActiveTime) * t.cfg.MinActiveFraction)
	}
	return t.cfg.KeepTime
}

// drop removes unmatched current objects past their drop threshold, parking
// their id as a latent on the nearest activated neighbour unless they are
// in a portal.
func (t *MultiStageTracker) drop(currentToMerged map[int]int, now time.Time, dt time.Duration) {
	var kept []*TrackedObject
	for ci, o := range t.current {
		_, matched := currentToMerged[ci]
		// entries activate() created this frame are new, not unmatched
		fresh := o.FirstSeen.Equal(now)
		if matched || fresh || now.Sub(o.LastSeen) < t.dropThreshold(o) {
			if matched {
				o.LastSeen = now
			}
			kept = append(kept, o)
			continue
		}

		if o.ID != "" && !o.Flags.Has(FlagPortal) {
			t.parkLatent(o, dt)
		}
	}

	// expire latent ids
	for _, o := range kept {
		for id, entry := range o.LatentIDs {
			if now.After(entry.ExpiresAt) {
				delete(o.LatentIDs, id)
			}
		}
	}
	t.current = kept
}

func (t *MultiStageTracker) parkLatent(dropped *TrackedObject, dt time.Duration) {
	cone := 5 * dt.Seconds() * (math.Hypot(dropped.Motion.X, dropped.Motion.Y))
	radius := t.cfg.LatentDistance + cone

	var nearest *TrackedObject
	bestD := radius
	for _, o := range t.current {
		if o == dropped || o.ID == "" {
			continue
		}
		d := dist(dropped.Pos, o.Pos)
		if d <= bestD {
			bestD = d
			nearest = o
		}
	}
	if nearest == nil {
		return
	}
	nearest.LatentIDs[dropped.ID] = LatentEntry{
		UUID:      dropped.UUID,
		ExpiresAt: dropped.LastSeen.Add(t.cfg.LatentLifeTime),
	}
}

// Step runs one full frame through Unite/Predict/Match/UpdateMotion/Smooth/
// Activate/Classify/Drop and returns the activated, non-occluded population
// (§4.6 "Emit").
func (t *MultiStageTracker) Step(stageBlobs [][]Blob, now time.Time, dt time.Duration) []TrackedObject {
	merged := t.Unite(stageBlobs)
	t.predict(dt)
	currentToMerged, boundMerged := t.match(merged, now)
	t.updateMotion(currentToMerged, merged, now, dt)
	t.smooth(currentToMerged, merged, dt)
	t.activate(merged, boundMerged, now)
	t.classify(now)
	t.drop(currentToMerged, now, dt)

	var out []TrackedObject
	for _, o := range t.current {
		if o.ID == "" || o.Flags.Has(FlagOccluded) {
			continue
		}
		out = append(out, *o)
		for id, entry := range o.LatentIDs {
			shadow := *o
			shadow.ID = id
			shadow.UUID = entry.UUID
			shadow.Flags |= FlagLatent
			out = append(out, shadow)
		}
	}
	return out
}

// Current exposes the live tracked population for diagnostics/tests.
func (t *MultiStageTracker) Current() []*TrackedObject { return t.current }
