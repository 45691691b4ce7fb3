// Package catalog holds the immutable choice catalog: named categories of
// valid options (races, classes, feats, spells...) each carrying opaque
// metadata.
//
// A Catalog is built once at startup, from files or from the SQLite store,
// and is read-only thereafter. Entry order within a category is preserved so
// that seeded sampling over catalog entries replays identically.
package catalog

import (
	"fmt"
	"sort"
	"strings"

	apperrors "github.com/louisbranch/charforge/internal/platform/errors"
)

// Entry is one option in a category.
type Entry struct {
	Name string
	Meta map[string]any
}

// Section is an ordered category used to build a Catalog.
type Section struct {
	Category string
	Entries  []Entry
}

// Catalog is an immutable set of ordered categories.
type Catalog struct {
	order   []string
	entries map[string][]Entry
	index   map[string]map[string]int
}

// New validates sections and builds a Catalog. Category and entry names
// must be non-empty and unique within their scope.
func New(sections ...Section) (*Catalog, error) {
	c := &Catalog{
		entries: make(map[string][]Entry, len(sections)),
		index:   make(map[string]map[string]int, len(sections)),
	}
	for _, section := range sections {
		category := strings.TrimSpace(section.Category)
		if category == "" {
			return nil, apperrors.New(apperrors.CodeCatalogInvalid, "catalog category name is required")
		}
		if _, dup := c.entries[category]; dup {
			return nil, apperrors.WithMetadata(apperrors.CodeCatalogInvalid,
				fmt.Sprintf("duplicate catalog category %q", category),
				map[string]string{"Category": category})
		}
		idx := make(map[string]int, len(section.Entries))
		list := make([]Entry, 0, len(section.Entries))
		for _, entry := range section.Entries {
			name := strings.TrimSpace(entry.Name)
			if name == "" {
				return nil, apperrors.WithMetadata(apperrors.CodeCatalogInvalid,
					fmt.Sprintf("catalog category %q has an entry without a name", category),
					map[string]string{"Category": category})
			}
			if _, dup := idx[name]; dup {
				return nil, apperrors.WithMetadata(apperrors.CodeCatalogInvalid,
					fmt.Sprintf("duplicate entry %q in catalog category %q", name, category),
					map[string]string{"Category": category, "Entry": name})
			}
			idx[name] = len(list)
			list = append(list, Entry{Name: name, Meta: copyMeta(entry.Meta)})
		}
		c.order = append(c.order, category)
		c.entries[category] = list
		c.index[category] = idx
	}
	return c, nil
}

// MustNew is New for static fixtures; it panics on invalid input.
func MustNew(sections ...Section) *Catalog {
	c, err := New(sections...)
	if err != nil {
		panic(err)
	}
	return c
}

// Categories returns category names in build order.
func (c *Catalog) Categories() []string {
	if c == nil {
		return nil
	}
	return append([]string(nil), c.order...)
}

// HasCategory reports whether category exists, even when it is empty.
func (c *Catalog) HasCategory(category string) bool {
	if c == nil {
		return false
	}
	_, ok := c.entries[category]
	return ok
}

// Entries returns the entries of category in order, or nil when unknown.
func (c *Catalog) Entries(category string) []Entry {
	if c == nil {
		return nil
	}
	list, ok := c.entries[category]
	if !ok {
		return nil
	}
	return append([]Entry(nil), list...)
}

// Names returns the entry names of category in order.
func (c *Catalog) Names(category string) []string {
	if c == nil {
		return nil
	}
	list := c.entries[category]
	names := make([]string, 0, len(list))
	for _, e := range list {
		names = append(names, e.Name)
	}
	return names
}

// Lookup returns the named entry of category.
func (c *Catalog) Lookup(category, name string) (Entry, bool) {
	if c == nil {
		return Entry{}, false
	}
	i, ok := c.index[category][name]
	if !ok {
		return Entry{}, false
	}
	return c.entries[category][i], true
}

// LookupFold is Lookup ignoring case and surrounding space.
func (c *Catalog) LookupFold(category, name string) (Entry, bool) {
	if c == nil {
		return Entry{}, false
	}
	if e, ok := c.Lookup(category, name); ok {
		return e, true
	}
	name = strings.TrimSpace(name)
	for _, e := range c.entries[category] {
		if strings.EqualFold(e.Name, name) {
			return e, true
		}
	}
	return Entry{}, false
}

// Has reports whether category contains name.
func (c *Catalog) Has(category, name string) bool {
	_, ok := c.Lookup(category, name)
	return ok
}

// Len returns the total number of entries across categories.
func (c *Catalog) Len() int {
	if c == nil {
		return 0
	}
	n := 0
	for _, list := range c.entries {
		n += len(list)
	}
	return n
}

// Sections returns the catalog contents as build sections.
func (c *Catalog) Sections() []Section {
	if c == nil {
		return nil
	}
	out := make([]Section, 0, len(c.order))
	for _, category := range c.order {
		out = append(out, Section{Category: category, Entries: c.Entries(category)})
	}
	return out
}

// String returns the first string value of field.
func (e Entry) String(field string) string {
	switch v := e.Meta[field].(type) {
	case string:
		return v
	case []any:
		if len(v) > 0 {
			if s, ok := v[0].(string); ok {
				return s
			}
		}
	}
	return ""
}

// Int returns field as an integer.
func (e Entry) Int(field string) (int, bool) {
	return toInt(e.Meta[field])
}

// Strings returns field as a string list; a scalar string yields one item.
func (e Entry) Strings(field string) []string {
	switch v := e.Meta[field].(type) {
	case string:
		return []string{v}
	case []string:
		return append([]string(nil), v...)
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}

// IntMap returns field as a name -> integer map.
func (e Entry) IntMap(field string) map[string]int {
	raw, ok := e.Meta[field].(map[string]any)
	if !ok {
		return nil
	}
	out := make(map[string]int, len(raw))
	for k, v := range raw {
		if n, ok := toInt(v); ok {
			out[k] = n
		}
	}
	return out
}

// HasType reports whether the entry's "types" metadata contains t.
func (e Entry) HasType(t string) bool {
	for _, have := range e.Strings("types") {
		if strings.EqualFold(have, t) {
			return true
		}
	}
	return false
}

// Untyped reports whether the entry has no "types" metadata.
func (e Entry) Untyped() bool {
	return len(e.Strings("types")) == 0
}

func toInt(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case float64:
		return int(n), true
	case uint64:
		return int(n), true
	}
	return 0, false
}

func copyMeta(meta map[string]any) map[string]any {
	if len(meta) == 0 {
		return nil
	}
	out := make(map[string]any, len(meta))
	keys := make([]string, 0, len(meta))
	for k := range meta {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		out[k] = normalizeValue(meta[k])
	}
	return out
}

// normalizeValue converts decoder-specific shapes (YAML map[string]any with
// ints, JSON float64) into the JSON-compatible set the accessors expect.
func normalizeValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, item := range t {
			out[k] = normalizeValue(item)
		}
		return out
	case map[any]any:
		out := make(map[string]any, len(t))
		for k, item := range t {
			out[fmt.Sprint(k)] = normalizeValue(item)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, item := range t {
			out[i] = normalizeValue(item)
		}
		return out
	case []string:
		out := make([]any, len(t))
		for i, item := range t {
			out[i] = item
		}
		return out
	case int:
		return float64(t)
	case int64:
		return float64(t)
	case uint64:
		return float64(t)
	default:
		return v
	}
}
