// Package rules defines the contract of the attribute evaluator consumed by
// the generator and the repairer, plus small rule helpers shared by
// evaluator implementations.
package rules

import (
	"math"

	"github.com/louisbranch/charforge/internal/character/attr"
	"github.com/louisbranch/charforge/internal/character/catalog"
)

// Evaluator turns raw choices into derived attributes and diagnostics.
//
// Evaluate must be deterministic and side-effect free; the result contains
// every raw key plus the derived ones. Choices returns nil for unknown
// categories. Requirement returns the requirement text registered for a
// diagnostic key.
type Evaluator interface {
	Evaluate(raw attr.State) attr.Derived
	Choices(category string) []catalog.Entry
	Requirement(diagnostic attr.Key) (string, bool)
}

// Abilities lists the six ability score names in sheet order.
var Abilities = []string{"Str", "Dex", "Con", "Int", "Wis", "Cha"}

// AbilityModifier returns floor((score-10)/2).
func AbilityModifier(score float64) float64 {
	return math.Floor((score - 10) / 2)
}

// DefaultAbilityMinimum is the score abilityMinimum repairs raise to when the
// requirement text names no value.
const DefaultAbilityMinimum = 13
