package generator

import (
	"strings"

	"github.com/louisbranch/charforge/internal/character/attr"
)

// conflictMarkers name validation diagnostics that disqualify a class pick.
var conflictMarkers = []string{"BaseAttack", "CasterLevel", "Spells"}

// allocateLevels spends the unallocated level budget across one to three
// classes. The increments always sum to the budget as long as at least one
// class is available.
func (g *Generator) allocateLevels(state attr.State) {
	levelKey := attr.Scalar(attr.Level)
	level := int(state.Get(levelKey))
	if level <= 0 {
		level = g.drawLevel()
		state.Set(levelKey, float64(level))
	}
	budget := level - int(state.Sum(attr.Levels))
	if budget <= 0 {
		return
	}

	count := g.drawClassCount()
	if count > budget {
		count = budget
	}

	var picked []string
	for _, part := range composition(g.rng, budget, count) {
		class, ok := g.pickClass(state, picked)
		if !ok {
			return
		}
		if !contains(picked, class) {
			picked = append(picked, class)
		}
		key := attr.NewKey(attr.Levels, class)
		state.Set(key, state.Get(key)+float64(part))
	}
}

// pickClass speculatively tries each eligible class not yet picked in this
// run. A class is accepted when one more level in it introduces no new
// base-attack, caster-level or spell validation diagnostic.
func (g *Generator) pickClass(state attr.State, picked []string) (string, bool) {
	derived := g.eval.Evaluate(state)
	candidates := g.classCandidates(state, derived)
	baseline := nonzeroDiagnostics(derived)

	var fresh []string
	for _, c := range candidates {
		if !contains(picked, c) {
			fresh = append(fresh, c)
		}
	}
	g.rng.Shuffle(len(fresh), func(i, j int) { fresh[i], fresh[j] = fresh[j], fresh[i] })

	for _, class := range fresh {
		key := attr.NewKey(attr.Levels, class)
		prior := state.Get(key)
		state.Set(key, prior+1)
		after := g.eval.Evaluate(state)
		state.Set(key, prior)
		if !introducesConflict(baseline, after) {
			return class, true
		}
	}

	if len(picked) > 0 {
		return picked[g.rng.IntN(len(picked))], true
	}
	if len(candidates) > 0 {
		return candidates[0], true
	}
	return "", false
}

// classCandidates lists eligible classes, including ones already leveled.
func (g *Generator) classCandidates(state attr.State, derived attr.Derived) []string {
	published := derived.Entries(attr.Choices, attr.Levels.String())
	var out []string
	if len(published) > 0 {
		for _, nv := range published {
			if nv.Value != 0 && (g.catalogLacks(attr.Levels) || g.catalog.Has(attr.Levels.Category(), nv.Name)) {
				out = append(out, nv.Name)
			}
		}
		return out
	}
	for _, e := range g.entries(attr.Levels.Category()) {
		out = append(out, e.Name)
	}
	return out
}

func (g *Generator) catalogLacks(ns attr.Namespace) bool {
	return len(g.catalog.Names(ns.Category())) == 0
}

func introducesConflict(baseline map[attr.Key]bool, after attr.Derived) bool {
	for _, d := range after.Diagnostics() {
		if d.Key.Namespace != attr.ValidationNotes || baseline[d.Key] {
			continue
		}
		for _, marker := range conflictMarkers {
			if strings.Contains(d.Key.Name, marker) {
				return true
			}
		}
	}
	return false
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
