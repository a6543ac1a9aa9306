package observer

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseConditionOperators(t *testing.T) {
	c, err := parseCondition("size > 0.2")
	require.NoError(t, err)
	require.Equal(t, "size", c.field)
	require.Equal(t, opGt, c.op)
	require.Equal(t, "0.2", c.value)

	c, err = parseCondition("")
	require.NoError(t, err)
	require.Equal(t, condition{}, c)

	_, err = parseCondition("size ~ 1")
	require.Error(t, err)
}

func TestConditionEvalNumericComparison(t *testing.T) {
	c, err := parseCondition("size > 0.2")
	require.NoError(t, err)
	require.True(t, c.eval(map[string]any{"size": 0.5}))
	require.False(t, c.eval(map[string]any{"size": 0.1}))
}

func TestConditionEvalStringComparison(t *testing.T) {
	c, err := parseCondition("private == true")
	require.NoError(t, err)
	require.True(t, c.eval(map[string]any{"private": true}))
	require.False(t, c.eval(map[string]any{"private": false}))
}

func TestConditionEvalMissingFieldIsFalse(t *testing.T) {
	c, err := parseCondition("size > 0.2")
	require.NoError(t, err)
	require.False(t, c.eval(map[string]any{}))
}

func TestParseLineWithConditionAndTemplate(t *testing.T) {
	l, err := ParseLine(SchemeObject, "(size > 0.2) object $id at $x , $y")
	require.NoError(t, err)
	require.Equal(t, SchemeObject, l.Name)
	require.Equal(t, "size", l.Cond.field)
	require.Len(t, l.Template, 6)
}

func TestParseLineMissingClosingParenErrors(t *testing.T) {
	_, err := ParseLine(SchemeObject, "(size > 0.2 object $id")
	require.Error(t, err)
}

func TestLineRenderSubstitutesFields(t *testing.T) {
	l, err := ParseLine(SchemeObject, "object $id at $x")
	require.NoError(t, err)
	out := l.Render(map[string]any{"id": "a1", "x": 1.5})
	require.Equal(t, "object a1 at 1.5", out)
}

func TestLineRenderMissingFieldSubstitutesEmpty(t *testing.T) {
	l, err := ParseLine(SchemeObject, "object $id")
	require.NoError(t, err)
	out := l.Render(map[string]any{})
	require.Equal(t, "object ", out)
}

func TestParseSchemeGroupsLinesByName(t *testing.T) {
	src := "# comment\n" +
		"object: object $id\n" +
		"objectEnter: enter $id\n" +
		"\n" +
		"object: (size > 1) big $id\n"
	s, err := ParseScheme(src)
	require.NoError(t, err)
	require.Len(t, s.lines[SchemeObject], 2)
	require.Len(t, s.lines[SchemeObjectEnter], 1)
}

func TestParseSchemeMissingColonErrors(t *testing.T) {
	_, err := ParseScheme("object $id")
	require.Error(t, err)
}

func TestSchemeFireAppliesConditionAndFiringRule(t *testing.T) {
	s, err := ParseScheme("object: (size > 0.2) big $id\nobject: small $id\n")
	require.NoError(t, err)

	values := map[string]any{"size": 0.5, "id": "a1"}
	changed := map[string]bool{"size": true}
	out := s.Fire(SchemeObject, values, changed, false)
	require.Equal(t, []string{"big a1", "small a1"}, out)
}

func TestSchemeFireSkipsWhenNoUpdateAndNotForced(t *testing.T) {
	s, err := ParseScheme("object: $id\n")
	require.NoError(t, err)

	out := s.Fire(SchemeObject, map[string]any{"id": "a1"}, map[string]bool{"id": false}, false)
	require.Nil(t, out)
}

func TestSchemeFireForcedIgnoresFiringRule(t *testing.T) {
	s, err := ParseScheme("objectLeave: bye $id\n")
	require.NoError(t, err)

	out := s.Fire(SchemeObjectLeave, map[string]any{"id": "a1"}, map[string]bool{}, true)
	require.Equal(t, []string{"bye a1"}, out)
}
