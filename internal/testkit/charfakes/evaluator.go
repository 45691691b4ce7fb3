// Package charfakes provides programmable in-memory collaborators for
// generator and repairer tests.
package charfakes

import (
	"github.com/louisbranch/charforge/internal/character/attr"
	"github.com/louisbranch/charforge/internal/character/catalog"
)

// Rule adds derived values computed from raw into out.
type Rule func(raw attr.State, out attr.Derived)

// Evaluator is a rules.Evaluator driven by Go closures.
type Evaluator struct {
	Catalog      *catalog.Catalog
	Rules        []Rule
	Requirements map[attr.Key]string
	Calls        int
}

// NewEvaluator constructs an Evaluator backed by cat.
func NewEvaluator(cat *catalog.Catalog, rules ...Rule) *Evaluator {
	return &Evaluator{
		Catalog:      cat,
		Rules:        rules,
		Requirements: make(map[attr.Key]string),
	}
}

// Require registers requirement text for a diagnostic key.
func (e *Evaluator) Require(key string, text string) *Evaluator {
	e.Requirements[attr.MustParseKey(key)] = text
	return e
}

func (e *Evaluator) Evaluate(raw attr.State) attr.Derived {
	e.Calls++
	out := make(attr.Derived, len(raw))
	for k, v := range raw {
		out[k] = v
	}
	for _, rule := range e.Rules {
		rule(raw, out)
	}
	return out
}

func (e *Evaluator) Choices(category string) []catalog.Entry {
	return e.Catalog.Entries(category)
}

func (e *Evaluator) Requirement(diagnostic attr.Key) (string, bool) {
	text, ok := e.Requirements[diagnostic]
	return text, ok
}

// Deficit publishes deficit.<ns> = want(raw) - allocated entries.
func Deficit(ns attr.Namespace, want func(raw attr.State) int) Rule {
	return func(raw attr.State, out attr.Derived) {
		have := len(raw.Names(ns))
		out[attr.NewKey(attr.Deficit, ns.String())] = float64(want(raw) - have)
	}
}

// Allocated publishes sanityNotes.<ns>Allocated = want(raw) - allocated
// entries, so deficits are positive and excesses negative.
func Allocated(ns attr.Namespace, want func(raw attr.State) int) Rule {
	return func(raw attr.State, out attr.Derived) {
		have := len(raw.Names(ns))
		out[attr.NewKey(attr.SanityNotes, ns.String()+"Allocated")] = float64(want(raw) - have)
	}
}

// Fixed returns a constant want function.
func Fixed(n int) func(attr.State) int {
	return func(attr.State) int { return n }
}

// Note sets diagnostic key to severity whenever cond holds.
func Note(key string, cond func(raw attr.State) bool, severity float64) Rule {
	k := attr.MustParseKey(key)
	return func(raw attr.State, out attr.Derived) {
		if cond(raw) {
			out[k] = severity
		} else {
			out[k] = 0
		}
	}
}

// Publish copies a static derived value.
func Publish(key string, value float64) Rule {
	k := attr.MustParseKey(key)
	return func(_ attr.State, out attr.Derived) {
		out[k] = value
	}
}
