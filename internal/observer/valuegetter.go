package observer

import (
	"fmt"
	"time"

	"github.com/banshee-data/lidarfusion/internal/fusion"
)

// ValueKind classifies how a value_getters entry changes frame to frame,
// driving the scheme engine's has_update/has_static/has_dynamic firing
// rule (§4.8).
type ValueKind int

const (
	// KindDynamic changes on essentially every report (position, motion).
	KindDynamic ValueKind = iota
	// KindStatic changes rarely (id, size) — worth reporting once, not
	// every frame.
	KindStatic
)

// ValueGetter reads one named field off a TrackedObject, classified as
// static or dynamic so the scheme engine can decide whether a change is
// "new information" worth a line.
type ValueGetter struct {
	Name string
	Kind ValueKind
	Get  func(o *fusion.TrackedObject) any
}

// valueGetters is the registry of known fields a scheme line can reference,
// grounded on spec.md §4.8's named value_getters table.
var valueGetters = []ValueGetter{
	{"id", KindStatic, func(o *fusion.TrackedObject) any { return o.ID }},
	{"uuid", KindStatic, func(o *fusion.TrackedObject) any { return o.UUID.String() }},
	{"x", KindDynamic, func(o *fusion.TrackedObject) any { return o.Pos.X }},
	{"y", KindDynamic, func(o *fusion.TrackedObject) any { return o.Pos.Y }},
	{"motion_x", KindDynamic, func(o *fusion.TrackedObject) any { return o.Motion.X }},
	{"motion_y", KindDynamic, func(o *fusion.TrackedObject) any { return o.Motion.Y }},
	{"size", KindStatic, func(o *fusion.TrackedObject) any { return o.Size }},
	{"confidence", KindDynamic, func(o *fusion.TrackedObject) any { return o.Confidence }},
	{"private", KindStatic, func(o *fusion.TrackedObject) any { return o.Flags.Has(fusion.FlagPrivate) }},
	{"portal", KindStatic, func(o *fusion.TrackedObject) any { return o.Flags.Has(fusion.FlagPortal) }},
	{"immobile", KindStatic, func(o *fusion.TrackedObject) any { return o.Flags.Has(fusion.FlagImmobile) }},
	{"latent", KindStatic, func(o *fusion.TrackedObject) any { return o.Flags.Has(fusion.FlagLatent) }},
	{"age_ms", KindDynamic, func(o *fusion.TrackedObject) any {
		return o.LastSeen.Sub(o.FirstSeen).Milliseconds()
	}},
}

func lookupGetter(name string) (ValueGetter, bool) {
	for _, g := range valueGetters {
		if g.Name == name {
			return g, true
		}
	}
	return ValueGetter{}, false
}

// objectState is the scheme engine's per-object, per-observer memory of the
// last reported value for every field, used to compute has_update.
type objectState struct {
	values map[string]any
	seenAt time.Time
}

// update evaluates every known getter against o and reports, per field,
// whether the value changed since the last call (has_update) — the state
// map is mutated in place to the new values.
func (s *objectState) update(o *fusion.TrackedObject, now time.Time) map[string]bool {
	if s.values == nil {
		s.values = map[string]any{}
	}
	changed := map[string]bool{}
	for _, g := range valueGetters {
		v := g.Get(o)
		old, existed := s.values[g.Name]
		changed[g.Name] = !existed || !equalValue(old, v)
		s.values[g.Name] = v
	}
	s.seenAt = now
	return changed
}

func equalValue(a, b any) bool {
	af, aok := a.(float64)
	bf, bok := b.(float64)
	if aok && bok {
		return af == bf
	}
	return fmt.Sprint(a) == fmt.Sprint(b)
}

// hasStatic/hasDynamic classify whether any field of the given kind changed
// in this update (the changed map from objectState.update), per §4.8's firing rule
// "has_update || (has_static && !has_dynamic) || force_update".
func hasKind(changed map[string]bool, kind ValueKind) bool {
	for name, c := range changed {
		if !c {
			continue
		}
		g, ok := lookupGetter(name)
		if ok && g.Kind == kind {
			return true
		}
	}
	return false
}
