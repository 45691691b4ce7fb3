package repair

import (
	"context"
	"math"

	"github.com/louisbranch/charforge/internal/character/attr"
	"github.com/louisbranch/charforge/internal/character/requirement"
	"github.com/louisbranch/charforge/internal/character/rules"
)

// Strategy attempts to fix one problem. It reports whether the state
// changed.
type Strategy interface {
	Fix(ctx context.Context, pass *Pass, problem Problem) bool
}

// StrategyFunc adapts a function to Strategy.
type StrategyFunc func(ctx context.Context, pass *Pass, problem Problem) bool

func (f StrategyFunc) Fix(ctx context.Context, pass *Pass, problem Problem) bool {
	return f(ctx, pass, problem)
}

// Chain tries strategies in order and stops at the first fix.
type Chain []Strategy

func (c Chain) Fix(ctx context.Context, pass *Pass, problem Problem) bool {
	for _, s := range c {
		if s.Fix(ctx, pass, problem) {
			return true
		}
	}
	return false
}

// DefaultStrategy returns direct, excess, deficit and ability fixes in
// priority order.
func DefaultStrategy() Strategy {
	return Chain{Direct{}, Excess{}, Deficit{}, Abilities{}}
}

// Excess removes random entries from an over-allocated countable category,
// one unit at a time. Removals are not locked.
type Excess struct{}

func (Excess) Fix(_ context.Context, pass *Pass, problem Problem) bool {
	if problem.Severity >= 0 || !problem.Category.Countable() {
		return false
	}
	changed := false
	for n := int(math.Ceil(-problem.Severity)); n > 0; n-- {
		names := pass.State.Names(problem.Category)
		if len(names) == 0 {
			break
		}
		key := attr.NewKey(problem.Category, names[pass.Rand.IntN(len(names))])
		if pass.State.Set(key, math.Max(pass.State.Get(key)-1, 0)) {
			changed = true
			pass.Tracef("removed one from %s", key)
		}
	}
	return changed
}

// Deficit asks the generator to fill an under-allocated category. Additions
// are not locked.
type Deficit struct{}

func (Deficit) Fix(ctx context.Context, pass *Pass, problem Problem) bool {
	if problem.Severity <= 0 || pass.Generator == nil {
		return false
	}
	ns := problem.Category
	if ns == attr.NamespaceUnknown || ns == attr.Abilities || !pass.Generator.Supports(ns) {
		return false
	}
	before := pass.State.Clone()
	if err := pass.Generator.Randomize(ctx, pass.State, ns.String()); err != nil {
		return false
	}
	if pass.State.Equal(before) {
		return false
	}
	pass.Tracef("generated %s", ns)
	return true
}

// Diagnostic names handled by Abilities.
const (
	AbilityMinimumNote   = "abilityMinimum"
	AbilityModifiersNote = "abilityModifiers"
)

// Abilities handles the two ability diagnostics: abilityMinimum raises a
// random ability below the minimum up to it, abilityModifiers adds +2 to
// every ability whose modifier is not positive.
type Abilities struct{}

func (Abilities) Fix(_ context.Context, pass *Pass, problem Problem) bool {
	switch problem.Key.Name {
	case AbilityMinimumNote:
		minimum := float64(rules.DefaultAbilityMinimum)
		if v, ok := firstNumber(problem.Requirement); ok && problem.HasRequirement {
			minimum = v
		}
		var low []attr.Key
		for _, ability := range rules.Abilities {
			key := attr.NewKey(attr.Abilities, ability)
			if !pass.Locked(key) && pass.State.Get(key) < minimum {
				low = append(low, key)
			}
		}
		if len(low) == 0 {
			return false
		}
		key := low[pass.Rand.IntN(len(low))]
		pass.State.Set(key, minimum)
		pass.Lock(key)
		pass.Tracef("raised %s to %v", key, minimum)
		return true
	case AbilityModifiersNote:
		changed := false
		for _, ability := range rules.Abilities {
			key := attr.NewKey(attr.Abilities, ability)
			score := pass.State.Get(key)
			if rules.AbilityModifier(score) <= 0 && pass.State.Set(key, score+2) {
				changed = true
			}
		}
		return changed
	}
	return false
}

func firstNumber(req requirement.Requirement) (float64, bool) {
	for _, term := range req.Terms {
		for _, c := range term.Alternatives {
			if c.Value.IsNumber && !c.Defaulted {
				return c.Value.Number, true
			}
		}
	}
	return 0, false
}
