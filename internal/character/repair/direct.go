package repair

import (
	"context"
	"math"
	"strings"

	"github.com/louisbranch/charforge/internal/character/attr"
	"github.com/louisbranch/charforge/internal/character/generator"
	"github.com/louisbranch/charforge/internal/character/requirement"
	"github.com/louisbranch/charforge/internal/character/rules"
)

// Direct satisfies requirement clauses by setting the attributes they name.
//
// Each unsatisfied AND-term tries a random alternative first and then the
// others, stopping at the first one that changes the state. Keys it sets are
// locked for the rest of the pass.
type Direct struct{}

func (Direct) Fix(_ context.Context, pass *Pass, problem Problem) bool {
	if !problem.HasRequirement {
		return false
	}
	fixed := false
	for _, term := range problem.Requirement.Terms {
		if pass.termHolds(term, problem) {
			continue
		}
		for _, clause := range randomFirst(pass, term.Alternatives) {
			if pass.apply(clause, problem) {
				fixed = true
				break
			}
		}
	}
	return fixed
}

func randomFirst(pass *Pass, alts []requirement.Clause) []requirement.Clause {
	if len(alts) <= 1 {
		return alts
	}
	i := pass.Rand.IntN(len(alts))
	out := make([]requirement.Clause, 0, len(alts))
	out = append(out, alts[i])
	out = append(out, alts[:i]...)
	return append(out, alts[i+1:]...)
}

// target is what a clause resolves to: a single key or a whole category.
type target struct {
	key      attr.Key
	category attr.Namespace
}

func (t target) whole() bool { return t.category != attr.NamespaceUnknown }

// resolve maps a clause attribute to a target. Order: combinator category,
// full key ("feats.Alert", "Feats Alert"), state key by name, category name,
// catalog entry name.
func (p *Pass) resolve(c requirement.Clause, problem Problem) (target, bool) {
	if c.Combinator != requirement.CombineNone {
		if problem.Category != attr.NamespaceUnknown {
			return target{category: problem.Category}, true
		}
		if ns, ok := attr.LookupNamespaceFold(c.Attribute); ok {
			return target{category: ns}, true
		}
		return target{}, false
	}
	if k, ok := p.fullKey(c.Attribute); ok {
		return target{key: k}, true
	}
	for _, k := range p.State.Keys() {
		if strings.EqualFold(k.Name, strings.TrimSpace(c.Attribute)) {
			return target{key: k}, true
		}
	}
	if ns, ok := attr.LookupNamespaceFold(c.Attribute); ok {
		if ns.Nameless() {
			return target{key: attr.Scalar(ns)}, true
		}
		return target{category: ns}, true
	}
	for _, ns := range attr.RawNamespaces() {
		category := ns.Category()
		if category == "" {
			continue
		}
		if e, ok := p.Catalog.LookupFold(category, c.Attribute); ok {
			return target{key: attr.NewKey(ns, e.Name)}, true
		}
	}
	return target{}, false
}

// fullKey accepts a rendered key or "<Namespace> <Name>".
func (p *Pass) fullKey(s string) (attr.Key, bool) {
	s = strings.TrimSpace(s)
	if k, err := attr.ParseKey(s); err == nil {
		return p.canonical(k), true
	}
	head, rest, ok := strings.Cut(s, " ")
	if !ok {
		return attr.Key{}, false
	}
	ns, ok := attr.LookupNamespaceFold(head)
	rest = strings.TrimSpace(rest)
	if !ok || ns.Nameless() || rest == "" {
		return attr.Key{}, false
	}
	return p.canonical(attr.NewKey(ns, rest)), true
}

// canonical restores the catalog spelling of a key name.
func (p *Pass) canonical(k attr.Key) attr.Key {
	if category := k.Namespace.Category(); category != "" && !k.Namespace.Derived() {
		if e, ok := p.Catalog.LookupFold(category, k.Name); ok {
			k.Name = e.Name
		}
	}
	return k
}

func (p *Pass) termHolds(term requirement.Term, problem Problem) bool {
	for _, c := range term.Alternatives {
		if p.holds(c, problem) {
			return true
		}
	}
	return false
}

func (p *Pass) holds(c requirement.Clause, problem Problem) bool {
	t, ok := p.resolve(c, problem)
	if !ok {
		v, found := p.derivedByName(c.Attribute)
		return found && !c.Textual() && c.Compare(v)
	}
	if !t.whole() {
		v := p.Derived.Get(t.key)
		if c.Textual() {
			if v == 0 {
				return c.Op.Negative()
			}
			return c.Match(t.key.Name)
		}
		return c.Compare(v)
	}

	present := p.State.Names(t.category)
	if c.Textual() {
		if c.Op.Negative() {
			for _, name := range present {
				if !c.Match(name) {
					return false
				}
			}
			return true
		}
		for _, name := range present {
			if c.Match(name) {
				return true
			}
		}
		return false
	}
	return c.Compare(p.aggregate(c, t.category))
}

// derivedByName finds a derived value by its name or normalized name.
func (p *Pass) derivedByName(name string) (float64, bool) {
	name = strings.TrimSpace(name)
	norm := rules.NormalizeName(name)
	for _, k := range p.Derived.Keys() {
		if k.Namespace.Diagnostic() {
			continue
		}
		if strings.EqualFold(k.Name, name) || k.Name == norm {
			return p.Derived[k], true
		}
	}
	return 0, false
}

func (p *Pass) aggregate(c requirement.Clause, ns attr.Namespace) float64 {
	if c.Combinator == requirement.CombineMax {
		best := 0.0
		for _, name := range p.State.Names(ns) {
			best = math.Max(best, p.State.Get(attr.NewKey(ns, name)))
		}
		return best
	}
	return p.State.Sum(ns)
}

func (p *Pass) apply(c requirement.Clause, problem Problem) bool {
	t, ok := p.resolve(c, problem)
	if !ok {
		return false
	}
	var changed bool
	if t.whole() {
		changed = p.applyCategory(c, t.category)
	} else {
		changed = p.applyKey(c, t.key)
	}
	if changed {
		p.Tracef("applied %q for %s", c.String(), problem.Key)
	}
	return changed
}

func (p *Pass) applyKey(c requirement.Clause, k attr.Key) bool {
	if !k.Raw() || p.Locked(k) {
		return false
	}
	current := p.State.Get(k)
	var next float64
	switch {
	case c.Textual():
		if c.Op.Negative() {
			next = 0
		} else {
			next = attr.Marker
		}
	case c.Compare(current):
		return false
	case c.Op == requirement.OpNE:
		next = attr.Marker
		if c.Value.Number != 0 {
			next = 0
		}
	default:
		next = c.Value.Number
	}
	if next != 0 && !p.member(k) {
		return false
	}
	return p.set(k, next)
}

func (p *Pass) applyCategory(c requirement.Clause, ns attr.Namespace) bool {
	if c.Textual() {
		if c.Op.Negative() {
			return p.exclude(c, ns)
		}
		return p.include(c, ns)
	}

	current := p.aggregate(c, ns)
	if c.Compare(current) {
		return false
	}
	want := c.Value.Number
	if c.Op == requirement.OpNE {
		want = current + 1
	}

	if c.Combinator == requirement.CombineMax {
		if want < current {
			changed := false
			for _, name := range p.State.Names(ns) {
				k := attr.NewKey(ns, name)
				if p.State.Get(k) > want && !p.Locked(k) && p.set(k, want) {
					changed = true
				}
			}
			return changed
		}
		k, ok := p.randomEntry(ns, true)
		if !ok {
			return false
		}
		return p.set(k, want)
	}

	if want > current {
		return p.grow(ns, want-current)
	}
	return p.shrink(ns, current-want)
}

// include selects an option of ns matching a positive textual clause.
func (p *Pass) include(c requirement.Clause, ns attr.Namespace) bool {
	var candidates []attr.Key
	for _, name := range p.options(ns) {
		k := attr.NewKey(ns, name)
		if c.Match(name) && !p.Locked(k) {
			candidates = append(candidates, k)
		}
	}
	if len(candidates) == 0 {
		return false
	}
	return p.set(candidates[p.Rand.IntN(len(candidates))], attr.Marker)
}

// exclude removes options matching a negative textual clause; single-choice
// categories get a random non-matching replacement.
func (p *Pass) exclude(c requirement.Clause, ns attr.Namespace) bool {
	changed := false
	for _, name := range p.State.Names(ns) {
		k := attr.NewKey(ns, name)
		if !c.Match(name) && !p.Locked(k) && p.set(k, 0) {
			changed = true
		}
	}
	if !changed || !ns.SingleChoice() {
		return changed
	}
	var replacements []string
	for _, name := range p.options(ns) {
		if c.Match(name) && !p.Locked(attr.NewKey(ns, name)) {
			replacements = append(replacements, name)
		}
	}
	if len(replacements) > 0 {
		p.set(attr.NewKey(ns, replacements[p.Rand.IntN(len(replacements))]), attr.Marker)
	}
	return true
}

// grow raises the total of ns by amount: new markers for bag categories,
// otherwise extra value on one entry.
func (p *Pass) grow(ns attr.Namespace, amount float64) bool {
	if p.markerBag(ns) {
		var fresh []string
		for _, name := range p.options(ns) {
			k := attr.NewKey(ns, name)
			if !p.State.Has(k) && !p.Locked(k) {
				fresh = append(fresh, name)
			}
		}
		changed := false
		for _, name := range generator.PickAttrs(p.Rand, fresh, int(math.Ceil(amount))) {
			if p.set(attr.NewKey(ns, name), attr.Marker) {
				changed = true
			}
		}
		return changed
	}
	k, ok := p.randomEntry(ns, true)
	if !ok {
		return false
	}
	return p.set(k, p.State.Get(k)+amount)
}

// shrink lowers the total of ns by amount, taking from random entries.
func (p *Pass) shrink(ns attr.Namespace, amount float64) bool {
	changed := false
	for amount > 0 {
		k, ok := p.randomEntry(ns, false)
		if !ok {
			break
		}
		v := p.State.Get(k)
		take := math.Min(v, amount)
		if !p.set(k, v-take) {
			break
		}
		amount -= take
		changed = true
	}
	return changed
}

// randomEntry picks an unlocked present entry of ns, or with fallback an
// unlocked option from the catalog.
func (p *Pass) randomEntry(ns attr.Namespace, fallback bool) (attr.Key, bool) {
	var keys []attr.Key
	for _, name := range p.State.Names(ns) {
		if k := attr.NewKey(ns, name); !p.Locked(k) {
			keys = append(keys, k)
		}
	}
	if len(keys) == 0 && fallback {
		for _, name := range p.options(ns) {
			if k := attr.NewKey(ns, name); !p.Locked(k) {
				keys = append(keys, k)
			}
		}
	}
	if len(keys) == 0 {
		return attr.Key{}, false
	}
	return keys[p.Rand.IntN(len(keys))], true
}

// options lists the valid names of ns.
func (p *Pass) options(ns attr.Namespace) []string {
	if ns == attr.Abilities {
		return rules.Abilities
	}
	category := ns.Category()
	if category == "" {
		return nil
	}
	if names := p.Catalog.Names(category); len(names) > 0 {
		return names
	}
	var names []string
	for _, e := range p.Evaluator.Choices(category) {
		names = append(names, e.Name)
	}
	return names
}

// member reports whether a catalog-backed key names a known option.
func (p *Pass) member(k attr.Key) bool {
	if k.Namespace == attr.Abilities || k.Namespace.Nameless() {
		return true
	}
	for _, name := range p.options(k.Namespace) {
		if name == k.Name {
			return true
		}
	}
	return false
}

// markerBag reports whether ns holds presence markers rather than amounts.
func (p *Pass) markerBag(ns attr.Namespace) bool {
	return ns.Countable() && ns != attr.Levels && ns != attr.Abilities
}

// set writes k, honoring single-choice namespaces, and locks it on change.
func (p *Pass) set(k attr.Key, v float64) bool {
	var changed bool
	if k.Namespace.SingleChoice() && v != 0 {
		changed = p.State.Choose(k.Namespace, k.Name)
	} else {
		changed = p.State.Set(k, v)
	}
	if changed {
		p.Lock(k)
	}
	return changed
}
