// Package attr defines the typed attribute keys and value maps shared by the
// character generator, the repairer and rule evaluators.
//
// Raw attributes are the choices a player (or the generator) makes directly:
// class levels, feats, skills. Derived attributes are computed by an
// evaluator from the raw map and include diagnostic notes. Both are keyed by
// Key, whose namespace is validated against a fixed lookup table instead of
// being assembled from ad hoc strings.
package attr

import "strings"

// Namespace identifies the family an attribute key belongs to.
type Namespace int

const (
	NamespaceUnknown Namespace = iota

	// Raw namespaces.
	Level
	HitPoints
	Abilities
	Levels
	Race
	Gender
	Background
	Alignment
	Deity
	Domains
	Feats
	Features
	Skills
	Tools
	Languages
	Weapons
	Armors
	Shields
	Goodies
	Spells

	// Derived namespaces.
	SanityNotes
	ValidationNotes
	Choices
	Count
	Deficit
	SpellsKnown
	SpellsPerDay
	AbilityMods
	Stats
)

// shape describes how keys in a namespace are laid out and used.
type shape struct {
	name string
	// derived namespaces are produced by evaluators and never set directly.
	derived bool
	// nameless namespaces hold a single scalar (level, hitPoints).
	nameless bool
	// qualified namespaces carry a qualifier between namespace and name
	// (choices.skills.Arcana, count.feats.General).
	qualified bool
	// single namespaces hold exactly one presence marker.
	single bool
	// category is the catalog category whose entries name the keys.
	category string
}

var shapes = map[Namespace]shape{
	Level:      {name: "level", nameless: true},
	HitPoints:  {name: "hitPoints", nameless: true},
	Abilities:  {name: "abilities"},
	Levels:     {name: "levels", category: "classes"},
	Race:       {name: "race", single: true, category: "races"},
	Gender:     {name: "gender", single: true, category: "genders"},
	Background: {name: "background", single: true, category: "backgrounds"},
	Alignment:  {name: "alignment", single: true, category: "alignments"},
	Deity:      {name: "deity", single: true, category: "deities"},
	Domains:    {name: "domains", category: "domains"},
	Feats:      {name: "feats", category: "feats"},
	Features:   {name: "features", category: "features"},
	Skills:     {name: "skills", category: "skills"},
	Tools:      {name: "tools", category: "tools"},
	Languages:  {name: "languages", category: "languages"},
	Weapons:    {name: "weapons", category: "weapons"},
	Armors:     {name: "armors", category: "armors"},
	Shields:    {name: "shields", category: "shields"},
	Goodies:    {name: "goodies", category: "goodies"},
	Spells:     {name: "spells", category: "spells"},

	SanityNotes:     {name: "sanityNotes", derived: true},
	ValidationNotes: {name: "validationNotes", derived: true},
	Choices:         {name: "choices", derived: true, qualified: true},
	Count:           {name: "count", derived: true, qualified: true},
	Deficit:         {name: "deficit", derived: true},
	SpellsKnown:     {name: "spellsKnown", derived: true, qualified: true},
	SpellsPerDay:    {name: "spellsPerDay", derived: true, qualified: true},
	AbilityMods:     {name: "abilityMods", derived: true},
	Stats:           {name: "stats", derived: true},
}

var byName = func() map[string]Namespace {
	index := make(map[string]Namespace, len(shapes))
	for ns, s := range shapes {
		index[s.name] = ns
	}
	return index
}()

// RawNamespaces lists the raw namespaces in declaration order.
func RawNamespaces() []Namespace {
	out := make([]Namespace, 0, int(Spells))
	for ns := Level; ns <= Spells; ns++ {
		out = append(out, ns)
	}
	return out
}

// LookupNamespace resolves a namespace by its exact name.
func LookupNamespace(name string) (Namespace, bool) {
	ns, ok := byName[name]
	return ns, ok
}

// LookupNamespaceFold resolves a raw namespace by name ignoring case, also
// accepting the backing catalog category ("Alignment", "classes").
func LookupNamespaceFold(name string) (Namespace, bool) {
	name = strings.TrimSpace(name)
	for _, ns := range RawNamespaces() {
		s := shapes[ns]
		if strings.EqualFold(s.name, name) || (s.category != "" && strings.EqualFold(s.category, name)) {
			return ns, true
		}
	}
	return NamespaceUnknown, false
}

// String returns the namespace name used in rendered keys.
func (ns Namespace) String() string {
	if s, ok := shapes[ns]; ok {
		return s.name
	}
	return "unknown"
}

// Valid reports whether the namespace is declared.
func (ns Namespace) Valid() bool {
	_, ok := shapes[ns]
	return ok
}

// Derived reports whether keys in the namespace are evaluator output.
func (ns Namespace) Derived() bool { return shapes[ns].derived }

// Nameless reports whether the namespace holds a single scalar.
func (ns Namespace) Nameless() bool { return shapes[ns].nameless }

// Qualified reports whether keys carry a qualifier segment.
func (ns Namespace) Qualified() bool { return shapes[ns].qualified }

// SingleChoice reports whether the namespace holds exactly one marker.
func (ns Namespace) SingleChoice() bool { return shapes[ns].single }

// Category returns the catalog category backing key names, if any.
func (ns Namespace) Category() string { return shapes[ns].category }

// Countable reports whether the namespace is a multi-entry allocation that
// can be grown or shrunk entry by entry.
func (ns Namespace) Countable() bool {
	s, ok := shapes[ns]
	if !ok || s.derived || s.nameless || s.single {
		return false
	}
	return true
}

// Diagnostic reports whether keys in the namespace are diagnostic notes.
func (ns Namespace) Diagnostic() bool {
	return ns == SanityNotes || ns == ValidationNotes
}

// InferCategory returns the raw namespace whose name is the longest prefix
// of a diagnostic name: "skillsAllocated" -> Skills, "levelsAllocated" ->
// Levels.
func InferCategory(diagnosticName string) (Namespace, bool) {
	best := NamespaceUnknown
	bestLen := 0
	for _, ns := range RawNamespaces() {
		name := shapes[ns].name
		if len(name) > bestLen && strings.HasPrefix(diagnosticName, name) {
			best = ns
			bestLen = len(name)
		}
	}
	return best, best != NamespaceUnknown
}
