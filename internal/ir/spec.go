package ir

import "sort"

// Entry is one named raw descriptor as authored.
type Entry struct {
	Name string
	Raw  any
}

// Spec is an ordered set of raw descriptors.
//
// Declaration order matters: continuations bind to the preceding entry
// and barriers wait on every earlier one. Every authoring surface (Go
// literals, YAML, CUE) produces a Spec so the order survives decoding.
type Spec []Entry

// S builds a Spec from alternating name/value arguments.
//
//	ir.S("x", 10, "width", []any{100, 10})
//
// Panics if a name is not a string or the argument count is odd.
func S(pairs ...any) Spec {
	if len(pairs)%2 != 0 {
		panic("ir.S: odd number of arguments")
	}
	spec := make(Spec, 0, len(pairs)/2)
	for i := 0; i < len(pairs); i += 2 {
		name, ok := pairs[i].(string)
		if !ok {
			panic("ir.S: name must be a string")
		}
		spec = append(spec, Entry{Name: name, Raw: pairs[i+1]})
	}
	return spec
}

// SpecFromMap orders a plain map by key. Go maps carry no declaration
// order, so callers that depend on chaining should build a Spec directly.
func SpecFromMap(m map[string]any) Spec {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	spec := make(Spec, len(keys))
	for i, k := range keys {
		spec[i] = Entry{Name: k, Raw: m[k]}
	}
	return spec
}

// Get returns the raw descriptor for name.
func (s Spec) Get(name string) (any, bool) {
	for _, e := range s {
		if e.Name == name {
			return e.Raw, true
		}
	}
	return nil, false
}

// Has reports whether name is present.
func (s Spec) Has(name string) bool {
	_, ok := s.Get(name)
	return ok
}

// Names returns entry names in declaration order.
func (s Spec) Names() []string {
	names := make([]string, len(s))
	for i, e := range s {
		names[i] = e.Name
	}
	return names
}
