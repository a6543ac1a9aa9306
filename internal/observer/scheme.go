package observer

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/banshee-data/lidarfusion/internal/fusion"
)

// Known scheme lifecycle names, per §4.8.
const (
	SchemeStart        = "start"
	SchemeStop         = "stop"
	SchemeFrameBegin   = "frame_begin"
	SchemeFrameEnd     = "frame_end"
	SchemeObjectsBegin = "objects_begin"
	SchemeObjectsEnd   = "objects_end"
	SchemeObject       = "object"
	SchemeObjectEnter  = "objectEnter"
	SchemeObjectMove   = "objectMove"
	SchemeObjectLeave  = "objectLeave"
)

// condOp is a comparison operator a condition clause may use.
type condOp int

const (
	opNone condOp = iota
	opEq
	opNeq
	opLt
	opLte
	opGt
	opGte
)

var condOps = map[string]condOp{
	"==": opEq, "!=": opNeq, "<=": opLte, ">=": opGte, "<": opLt, ">": opGt,
}

// condition is a single "(NAME? CONDITION)" guard on a scheme line, e.g.
// "(size > 0.2)" or "(private == true)". An empty Field means the line is
// unconditional.
type condition struct {
	field string
	op    condOp
	value string
}

// parseCondition parses the text between a line's parentheses. An empty
// string is a valid, always-true condition.
func parseCondition(s string) (condition, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return condition{}, nil
	}
	for opStr, op := range condOps {
		if i := strings.Index(s, opStr); i >= 0 {
			return condition{
				field: strings.TrimSpace(s[:i]),
				op:    op,
				value: strings.TrimSpace(s[i+len(opStr):]),
			}, nil
		}
	}
	return condition{}, fmt.Errorf("observer: condition %q has no recognised operator", s)
}

// eval tests the condition against the current getter values.
func (c condition) eval(values map[string]any) bool {
	if c.field == "" {
		return true
	}
	v, ok := values[c.field]
	if !ok {
		return false
	}
	lhs := fmt.Sprint(v)
	rhs := c.value

	if lf, err1 := strconv.ParseFloat(lhs, 64); err1 == nil {
		if rf, err2 := strconv.ParseFloat(rhs, 64); err2 == nil {
			switch c.op {
			case opEq:
				return lf == rf
			case opNeq:
				return lf != rf
			case opLt:
				return lf < rf
			case opLte:
				return lf <= rf
			case opGt:
				return lf > rf
			case opGte:
				return lf >= rf
			}
		}
	}

	switch c.op {
	case opEq:
		return lhs == rhs
	case opNeq:
		return lhs != rhs
	default:
		return false
	}
}

// component is one piece of a scheme line's template: either a literal
// string or a "$field" value reference.
type component struct {
	literal string
	field   string // non-empty means "substitute the current value of this field"
}

// Line is one parsed "(NAME? CONDITION) component component ..." scheme
// rule bound to a lifecycle name.
type Line struct {
	Name      string
	Cond      condition
	Template  []component
}

// ParseLine parses one scheme source line. The leading "(...)" clause is
// optional; components are whitespace-separated, with "$field" substituted
// from value_getters and anything else treated as a literal.
func ParseLine(name, src string) (Line, error) {
	src = strings.TrimSpace(src)
	cond := condition{}
	if strings.HasPrefix(src, "(") {
		end := strings.IndexByte(src, ')')
		if end < 0 {
			return Line{}, fmt.Errorf("observer: scheme line %q missing closing paren", src)
		}
		var err error
		cond, err = parseCondition(src[1:end])
		if err != nil {
			return Line{}, err
		}
		src = strings.TrimSpace(src[end+1:])
	}

	var comps []component
	for _, tok := range strings.Fields(src) {
		if strings.HasPrefix(tok, "$") {
			comps = append(comps, component{field: tok[1:]})
		} else {
			comps = append(comps, component{literal: tok})
		}
	}
	return Line{Name: name, Cond: cond, Template: comps}, nil
}

// Render expands the line's template against the current getter values,
// space-joining components.
func (l Line) Render(values map[string]any) string {
	parts := make([]string, 0, len(l.Template))
	for _, c := range l.Template {
		if c.field != "" {
			if v, ok := values[c.field]; ok {
				parts = append(parts, fmt.Sprint(v))
				continue
			}
			parts = append(parts, "")
			continue
		}
		parts = append(parts, c.literal)
	}
	return strings.Join(parts, " ")
}

// Scheme is a parsed set of lines grouped by lifecycle name, the unit the
// bus dispatches per-frame and per-object events through.
type Scheme struct {
	lines map[string][]Line
}

// ParseScheme parses a full scheme source: one "name: line" per input line,
// blank lines and lines starting with "#" ignored.
func ParseScheme(src string) (*Scheme, error) {
	s := &Scheme{lines: map[string][]Line{}}
	for _, raw := range strings.Split(src, "\n") {
		raw = strings.TrimSpace(raw)
		if raw == "" || strings.HasPrefix(raw, "#") {
			continue
		}
		i := strings.IndexByte(raw, ':')
		if i < 0 {
			return nil, fmt.Errorf("observer: scheme line %q missing name:", raw)
		}
		name := strings.TrimSpace(raw[:i])
		line, err := ParseLine(name, raw[i+1:])
		if err != nil {
			return nil, err
		}
		s.lines[name] = append(s.lines[name], line)
	}
	return s, nil
}

// Fire renders every line bound to name whose condition holds and whose
// firing rule (has_update || (has_static && !has_dynamic) || force) is
// satisfied. force is set for lifecycle events (enter/leave) where the
// line must run regardless of field deltas.
func (s *Scheme) Fire(name string, values map[string]any, changed map[string]bool, force bool) []string {
	var out []string
	hasUpdate := false
	for _, c := range changed {
		if c {
			hasUpdate = true
			break
		}
	}
	hasStatic := hasKind(changed, KindStatic)
	hasDynamic := hasKind(changed, KindDynamic)
	fire := force || hasUpdate || (hasStatic && !hasDynamic)

	if !fire {
		return nil
	}
	for _, l := range s.lines[name] {
		if !l.Cond.eval(values) {
			continue
		}
		out = append(out, l.Render(values))
	}
	return out
}

// objectValues builds the value map Fire/eval operate over, the bridge
// between fusion.TrackedObject and the scheme engine's string world.
func objectValues(o *fusion.TrackedObject, now time.Time) map[string]any {
	values := make(map[string]any, len(valueGetters))
	for _, g := range valueGetters {
		values[g.Name] = g.Get(o)
	}
	return values
}
