package attr

import (
	"math"
	"sort"
)

// Marker is the value stored for a selected option.
const Marker = 1.0

// State is the mutable raw attribute map of one character.
type State map[Key]float64

// Derived is the evaluator output: raw attributes plus computed values.
type Derived map[Key]float64

// Diagnostic is one nonzero diagnostic note.
type Diagnostic struct {
	Key      Key
	Severity float64
}

// NamedValue pairs a key name with its value.
type NamedValue struct {
	Name  string
	Value float64
}

// Get returns the value for k, or 0.
func (s State) Get(k Key) float64 { return s[k] }

// Has reports whether k is present.
func (s State) Has(k Key) bool {
	_, ok := s[k]
	return ok
}

// Set stores v for k, deleting the key when v is zero. It reports whether
// the state changed.
func (s State) Set(k Key, v float64) bool {
	old, had := s[k]
	if v == 0 {
		if !had {
			return false
		}
		delete(s, k)
		return true
	}
	if had && old == v {
		return false
	}
	s[k] = v
	return true
}

// Choose replaces the marker of a single-choice namespace with name.
func (s State) Choose(ns Namespace, name string) bool {
	changed := false
	for k := range s {
		if k.Namespace == ns && k.Name != name {
			delete(s, k)
			changed = true
		}
	}
	if s.Set(NewKey(ns, name), Marker) {
		changed = true
	}
	return changed
}

// Chosen returns the selected name of a single-choice namespace.
func (s State) Chosen(ns Namespace) (string, bool) {
	names := s.Names(ns)
	if len(names) == 0 {
		return "", false
	}
	return names[0], true
}

// Names returns the sorted names of all keys in ns with a nonzero value.
func (s State) Names(ns Namespace) []string {
	var names []string
	for k, v := range s {
		if k.Namespace == ns && v != 0 {
			names = append(names, k.Name)
		}
	}
	sort.Strings(names)
	return names
}

// Sum totals the values in ns.
func (s State) Sum(ns Namespace) float64 {
	total := 0.0
	for k, v := range s {
		if k.Namespace == ns {
			total += v
		}
	}
	return total
}

// Keys returns all keys sorted by rendered form.
func (s State) Keys() []Key {
	return sortedKeys(s)
}

// Clone returns an independent copy.
func (s State) Clone() State {
	out := make(State, len(s))
	for k, v := range s {
		out[k] = v
	}
	return out
}

// Replace overwrites s in place with the contents of other.
func (s State) Replace(other State) {
	for k := range s {
		delete(s, k)
	}
	for k, v := range other {
		s[k] = v
	}
}

// Equal reports whether both states hold the same values.
func (s State) Equal(other State) bool {
	if len(s) != len(other) {
		return false
	}
	for k, v := range s {
		if ov, ok := other[k]; !ok || ov != v {
			return false
		}
	}
	return true
}

// Get returns the value for k, or 0.
func (d Derived) Get(k Key) float64 { return d[k] }

// Has reports whether k is present.
func (d Derived) Has(k Key) bool {
	_, ok := d[k]
	return ok
}

// Keys returns all keys sorted by rendered form.
func (d Derived) Keys() []Key {
	return sortedKeys(d)
}

// Entries returns the sorted named values in ns under qualifier.
func (d Derived) Entries(ns Namespace, qualifier string) []NamedValue {
	var out []NamedValue
	for k, v := range d {
		if k.Namespace == ns && k.Qualifier == qualifier {
			out = append(out, NamedValue{Name: k.Name, Value: v})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Qualifiers returns the sorted distinct qualifiers used in ns.
func (d Derived) Qualifiers(ns Namespace) []string {
	seen := map[string]bool{}
	var out []string
	for k := range d {
		if k.Namespace == ns && !seen[k.Qualifier] {
			seen[k.Qualifier] = true
			out = append(out, k.Qualifier)
		}
	}
	sort.Strings(out)
	return out
}

// Diagnostics returns nonzero diagnostic notes sorted by key.
func (d Derived) Diagnostics() []Diagnostic {
	var out []Diagnostic
	for _, k := range sortedKeys(d) {
		if !k.Namespace.Diagnostic() {
			continue
		}
		if v := d[k]; v != 0 && !math.IsNaN(v) {
			out = append(out, Diagnostic{Key: k, Severity: v})
		}
	}
	return out
}

// Violations counts nonzero diagnostic notes.
func (d Derived) Violations() int {
	return len(d.Diagnostics())
}

func sortedKeys[M ~map[Key]float64](m M) []Key {
	keys := make([]Key, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].String() < keys[j].String() })
	return keys
}
