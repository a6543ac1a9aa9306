package observer

import "strings"

// FieldFilter is a named-field mask parsed from the default filter string
// syntax "name[=alias],name,...", per §4.8. Only fields present in the
// filter are reported; an alias renames the field in the scheme output.
type FieldFilter struct {
	order   []string
	aliases map[string]string
}

// ParseFieldFilter parses "x=px,y=py,size,flags" into a FieldFilter. An
// empty string means "no filter": every field passes through unrenamed.
func ParseFieldFilter(s string) *FieldFilter {
	f := &FieldFilter{aliases: map[string]string{}}
	s = strings.TrimSpace(s)
	if s == "" {
		return f
	}
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		name, alias := part, part
		if i := strings.IndexByte(part, '='); i >= 0 {
			name = strings.TrimSpace(part[:i])
			alias = strings.TrimSpace(part[i+1:])
		}
		f.order = append(f.order, name)
		f.aliases[name] = alias
	}
	return f
}

// Allows reports whether name passes the filter.
func (f *FieldFilter) Allows(name string) bool {
	if len(f.order) == 0 {
		return true
	}
	_, ok := f.aliases[name]
	return ok
}

// Alias returns the output name for a field, applying any rename.
func (f *FieldFilter) Alias(name string) string {
	if alias, ok := f.aliases[name]; ok {
		return alias
	}
	return name
}

// Fields returns the filter's field names in declaration order. An empty
// filter returns nil, signalling "all fields, default names".
func (f *FieldFilter) Fields() []string { return f.order }
