// Package dice implements seedable dice primitives used by character
// generation: plain rolls, keep-highest rolls and hit-die expressions.
package dice

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"sort"
	"strconv"
	"strings"
)

// ErrMissingDice indicates a roll request had no dice specified.
var ErrMissingDice = errors.New("at least one die must be provided")

// ErrInvalidDiceSpec indicates a die specification has invalid fields.
var ErrInvalidDiceSpec = errors.New("dice must have positive sides and count")

// Spec describes a die to roll and how many times to roll it.
type Spec struct {
	Sides int
	Count int
}

// Roll holds the results of one Spec.
type Roll struct {
	Sides   int
	Results []int
	Total   int
}

// Result holds the rolls of a request in Spec order.
type Result struct {
	Rolls []Roll
	Total int
}

// ParseSpec parses "NdF" notation ("1d10", "2d4"). A bare "dF" means one
// die.
func ParseSpec(s string) (Spec, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	count, sides, ok := strings.Cut(s, "d")
	if !ok {
		return Spec{}, fmt.Errorf("%w: %q", ErrInvalidDiceSpec, s)
	}
	n := 1
	if count != "" {
		v, err := strconv.Atoi(count)
		if err != nil {
			return Spec{}, fmt.Errorf("%w: %q", ErrInvalidDiceSpec, s)
		}
		n = v
	}
	f, err := strconv.Atoi(sides)
	if err != nil {
		return Spec{}, fmt.Errorf("%w: %q", ErrInvalidDiceSpec, s)
	}
	spec := Spec{Sides: f, Count: n}
	if !spec.Valid() {
		return Spec{}, fmt.Errorf("%w: %q", ErrInvalidDiceSpec, s)
	}
	return spec, nil
}

// Valid reports whether the spec has positive sides and count.
func (s Spec) Valid() bool {
	return s.Sides > 0 && s.Count > 0
}

// Max returns the highest total the spec can roll.
func (s Spec) Max() int {
	return s.Sides * s.Count
}

// String renders the spec in NdF notation.
func (s Spec) String() string {
	return fmt.Sprintf("%dd%d", s.Count, s.Sides)
}

// RollWithRng rolls every spec in slice order and reports each roll and the
// grand total.
func RollWithRng(rng *rand.Rand, specs []Spec) (Result, error) {
	if len(specs) == 0 {
		return Result{}, ErrMissingDice
	}

	rolls := make([]Roll, 0, len(specs))
	total := 0

	for _, spec := range specs {
		if !spec.Valid() {
			return Result{}, ErrInvalidDiceSpec
		}

		results := make([]int, spec.Count)
		rollTotal := 0
		for i := 0; i < spec.Count; i++ {
			value := rollDie(rng, spec.Sides)
			results[i] = value
			rollTotal += value
		}

		rolls = append(rolls, Roll{
			Sides:   spec.Sides,
			Results: results,
			Total:   rollTotal,
		})
		total += rollTotal
	}

	return Result{
		Rolls: rolls,
		Total: total,
	}, nil
}

// KeepHighest rolls spec and sums the keep highest dice. The raw results are
// returned in roll order.
func KeepHighest(rng *rand.Rand, spec Spec, keep int) (int, []int, error) {
	if !spec.Valid() || keep <= 0 || keep > spec.Count {
		return 0, nil, ErrInvalidDiceSpec
	}
	results := make([]int, spec.Count)
	for i := range results {
		results[i] = rollDie(rng, spec.Sides)
	}
	sorted := append([]int(nil), results...)
	sort.Sort(sort.Reverse(sort.IntSlice(sorted)))
	total := 0
	for _, v := range sorted[:keep] {
		total += v
	}
	return total, results, nil
}

// AbilityScore rolls 4d6 and keeps the highest three.
func AbilityScore(rng *rand.Rand) int {
	total, _, _ := KeepHighest(rng, Spec{Sides: 6, Count: 4}, 3)
	return total
}

// rollDie rolls a single die with the provided number of sides.
func rollDie(rng *rand.Rand, sides int) int {
	return rng.IntN(sides) + 1
}
