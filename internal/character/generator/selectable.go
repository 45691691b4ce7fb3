package generator

import (
	"strconv"
	"strings"

	"github.com/louisbranch/charforge/internal/character/attr"
	"github.com/louisbranch/charforge/internal/character/catalog"
	"github.com/louisbranch/charforge/internal/character/rules"
)

// generalType is the allocation type that untyped options may fill.
const generalType = "General"

// grantSelectable fills every count.<ns>.<type> allocation with options of
// that type. Each round grants a random batch, re-evaluates, and reverts any
// grant whose own diagnostic turned nonzero; sampled options leave the pool
// either way so the loop always terminates.
func (g *Generator) grantSelectable(state attr.State, ns attr.Namespace) {
	types := g.eval.Evaluate(state).Entries(attr.Count, ns.String())
	for _, t := range types {
		countKey := attr.QualifiedKey(attr.Count, ns.String(), t.Name)
		derived := g.eval.Evaluate(state)
		remaining := int(derived.Get(countKey))
		if remaining <= 0 {
			continue
		}
		pool := g.eligible(state, derived, ns, matchesType(t.Name))
		for remaining > 0 && len(pool) > 0 {
			baseline := nonzeroDiagnostics(derived)
			batch := PickAttrs(g.rng, pool, remaining)
			for _, name := range batch {
				state.Set(attr.NewKey(ns, name), attr.Marker)
			}
			after := g.eval.Evaluate(state)
			for _, name := range batch {
				if grantRejected(baseline, after, name) {
					state.Set(attr.NewKey(ns, name), 0)
				}
			}
			pool = without(pool, batch)
			derived = g.eval.Evaluate(state)
			remaining = int(derived.Get(countKey))
		}
	}
}

func matchesType(t string) func(catalog.Entry) bool {
	return func(e catalog.Entry) bool {
		if e.HasType(t) {
			return true
		}
		return strings.EqualFold(t, generalType) && e.Untyped()
	}
}

// grantRejected reports whether a diagnostic named after the option appeared
// or changed from zero.
func grantRejected(baseline map[attr.Key]bool, after attr.Derived, option string) bool {
	norm := rules.NormalizeName(option)
	for _, ns := range []attr.Namespace{attr.SanityNotes, attr.ValidationNotes} {
		key := attr.NewKey(ns, norm)
		if after.Get(key) != 0 && !baseline[key] {
			return true
		}
	}
	return false
}

// learnSpells fills spellsKnown.<source>.<level> deficits, capped by the
// published spellsPerDay for the same slot.
func (g *Generator) learnSpells(state attr.State) {
	derived := g.eval.Evaluate(state)
	for _, source := range derived.Qualifiers(attr.SpellsKnown) {
		for _, slot := range derived.Entries(attr.SpellsKnown, source) {
			want := int(slot.Value)
			if want <= 0 {
				continue
			}
			level, err := strconv.Atoi(slot.Name)
			if err != nil {
				continue
			}
			perDayKey := attr.QualifiedKey(attr.SpellsPerDay, source, slot.Name)
			if derived.Has(perDayKey) {
				if perDay := int(derived.Get(perDayKey)); perDay < want {
					want = perDay
				}
			}
			pool := g.spellPool(state, source, level)
			for _, name := range PickAttrs(g.rng, pool, want) {
				state.Set(attr.NewKey(attr.Spells, name), attr.Marker)
			}
		}
	}
}

// spellPool lists unknown spells castable at level by source. The "domain"
// source draws from the union of the character's chosen domains.
func (g *Generator) spellPool(state attr.State, source string, level int) []string {
	domains := state.Names(attr.Domains)
	var out []string
	for _, e := range g.entries(attr.Spells.Category()) {
		if state.Get(attr.NewKey(attr.Spells, e.Name)) != 0 {
			continue
		}
		if strings.EqualFold(source, "domain") {
			byDomain := e.IntMap("domains")
			for _, d := range domains {
				if lvl, ok := byDomain[d]; ok && lvl == level {
					out = append(out, e.Name)
					break
				}
			}
			continue
		}
		if lvl, ok := e.IntMap("classes")[source]; ok && lvl == level {
			out = append(out, e.Name)
		}
	}
	return out
}

func without(pool, drop []string) []string {
	gone := make(map[string]bool, len(drop))
	for _, d := range drop {
		gone[d] = true
	}
	out := make([]string, 0, len(pool))
	for _, p := range pool {
		if !gone[p] {
			out = append(out, p)
		}
	}
	return out
}
