package generator

import (
	"context"
	"errors"
	"math/rand/v2"
	"sort"
	"testing"

	"github.com/louisbranch/charforge/internal/character/attr"
	"github.com/louisbranch/charforge/internal/character/catalog"
	"github.com/louisbranch/charforge/internal/dice"
	"github.com/louisbranch/charforge/internal/testkit/charfakes"
)

func newRand(seed uint64) *rand.Rand {
	return rand.New(rand.NewPCG(seed, seed+1))
}

func names(category string, list ...string) catalog.Section {
	s := catalog.Section{Category: category}
	for _, n := range list {
		s.Entries = append(s.Entries, catalog.Entry{Name: n})
	}
	return s
}

func levelOf(raw attr.State) int {
	return int(raw.Get(attr.Scalar(attr.Level)))
}

func TestPickAttrsBoundsAndUniqueness(t *testing.T) {
	pool := []string{"a", "b", "c", "d", "e"}
	for seed := uint64(0); seed < 50; seed++ {
		rng := newRand(seed)
		for k := -1; k <= 7; k++ {
			got := PickAttrs(rng, pool, k)
			limit := min(max(k, 0), len(pool))
			if len(got) != limit {
				t.Fatalf("PickAttrs(k=%d) returned %d items, want %d", k, len(got), limit)
			}
			seen := map[string]bool{}
			for _, v := range got {
				if seen[v] {
					t.Fatalf("PickAttrs(k=%d) duplicate %q in %v", k, v, got)
				}
				seen[v] = true
			}
		}
	}
	if pool[0] != "a" || pool[4] != "e" {
		t.Fatalf("pool mutated: %v", pool)
	}
}

func TestCompositionSumsToTotal(t *testing.T) {
	rng := newRand(9)
	for total := 1; total <= 8; total++ {
		for parts := 1; parts <= 3; parts++ {
			got := composition(rng, total, parts)
			sum := 0
			for _, p := range got {
				if p <= 0 {
					t.Fatalf("composition(%d, %d) has non-positive part: %v", total, parts, got)
				}
				sum += p
			}
			if sum != total {
				t.Fatalf("composition(%d, %d) = %v, sum %d", total, parts, got, sum)
			}
		}
	}
}

func TestRandomizeAbilities(t *testing.T) {
	eval := charfakes.NewEvaluator(nil)
	for seed := uint64(0); seed < 50; seed++ {
		state := attr.State{}
		gen := New(eval, nil, newRand(seed))
		if err := gen.Randomize(context.Background(), state, "abilities"); err != nil {
			t.Fatalf("Randomize: %v", err)
		}

		replay := newRand(seed)
		for _, ability := range []string{"Str", "Dex", "Con", "Int", "Wis", "Cha"} {
			rolls := make([]int, 4)
			for i := range rolls {
				rolls[i] = replay.IntN(6) + 1
			}
			sort.Ints(rolls)
			want := float64(rolls[1] + rolls[2] + rolls[3])
			got := state.Get(attr.NewKey(attr.Abilities, ability))
			if got < 3 || got > 18 || got != want {
				t.Fatalf("seed %d: %s = %v, want %v", seed, ability, got, want)
			}
		}
	}
}

func TestRandomizeSingleAbility(t *testing.T) {
	state := attr.State{}
	gen := New(charfakes.NewEvaluator(nil), nil, newRand(1))
	if err := gen.Randomize(context.Background(), state, "abilities.Str"); err != nil {
		t.Fatalf("Randomize: %v", err)
	}
	if len(state) != 1 || !state.Has(attr.NewKey(attr.Abilities, "Str")) {
		t.Fatalf("state = %v, want only abilities.Str", state)
	}
}

func TestRandomizeUnknownAttribute(t *testing.T) {
	gen := New(charfakes.NewEvaluator(nil), nil, newRand(1))
	for _, name := range []string{"wibble", "sanityNotes.x", "choices"} {
		if err := gen.Randomize(context.Background(), attr.State{}, name); !errors.Is(err, ErrUnknownAttribute) {
			t.Fatalf("Randomize(%q) error = %v, want ErrUnknownAttribute", name, err)
		}
	}
}

func TestLevelsSumToBudget(t *testing.T) {
	cat := catalog.MustNew(names("classes", "Fighter", "Rogue", "Wizard", "Cleric"))
	eval := charfakes.NewEvaluator(cat)
	for seed := uint64(0); seed < 200; seed++ {
		for level := 1; level <= 8; level++ {
			state := attr.State{attr.Scalar(attr.Level): float64(level)}
			gen := New(eval, cat, newRand(seed))
			if err := gen.Randomize(context.Background(), state, "levels"); err != nil {
				t.Fatalf("Randomize: %v", err)
			}
			if got := int(state.Sum(attr.Levels)); got != level {
				t.Fatalf("seed %d level %d: allocated %d (%v)", seed, level, got, state)
			}
			if n := len(state.Names(attr.Levels)); n < 1 || n > 3 {
				t.Fatalf("seed %d: %d classes", seed, n)
			}
		}
	}
}

func TestLevelsDrawsMissingLevel(t *testing.T) {
	cat := catalog.MustNew(names("classes", "Fighter"))
	state := attr.State{}
	gen := New(charfakes.NewEvaluator(cat), cat, newRand(5))
	if err := gen.Randomize(context.Background(), state, "levels"); err != nil {
		t.Fatalf("Randomize: %v", err)
	}
	level := levelOf(state)
	if level < 1 || level > 8 {
		t.Fatalf("level = %d, want 1..8", level)
	}
	if got := int(state.Get(attr.NewKey(attr.Levels, "Fighter"))); got != level {
		t.Fatalf("levels.Fighter = %d, want %d", got, level)
	}
}

func TestLevelsSingleEligibleClass(t *testing.T) {
	cat := catalog.MustNew(names("classes", "Fighter", "Wizard", "Rogue"))
	eval := charfakes.NewEvaluator(cat,
		charfakes.Publish("choices.levels.Rogue", 1),
	)
	for seed := uint64(0); seed < 50; seed++ {
		state := attr.State{attr.Scalar(attr.Level): 5}
		gen := New(eval, cat, newRand(seed))
		if err := gen.Randomize(context.Background(), state, "levels"); err != nil {
			t.Fatalf("Randomize: %v", err)
		}
		want := attr.State{attr.Scalar(attr.Level): 5, attr.NewKey(attr.Levels, "Rogue"): 5}
		if !state.Equal(want) {
			t.Fatalf("seed %d: state = %v, want %v", seed, state, want)
		}
	}
}

func TestLevelsAvoidCasterConflicts(t *testing.T) {
	cat := catalog.MustNew(names("classes", "Fighter", "Wizard"))
	eval := charfakes.NewEvaluator(cat,
		charfakes.Note("validationNotes.wizardCasterLevel", func(raw attr.State) bool {
			return raw.Get(attr.NewKey(attr.Levels, "Wizard")) > 0
		}, 1),
	)
	for seed := uint64(0); seed < 50; seed++ {
		state := attr.State{attr.Scalar(attr.Level): 1}
		gen := New(eval, cat, newRand(seed))
		if err := gen.Randomize(context.Background(), state, "levels"); err != nil {
			t.Fatalf("Randomize: %v", err)
		}
		if state.Has(attr.NewKey(attr.Levels, "Wizard")) {
			t.Fatalf("seed %d: picked conflicting class: %v", seed, state)
		}
	}
}

func TestGoodiesFollowDeficit(t *testing.T) {
	cat := catalog.MustNew(names("goodies", "Rope", "Lantern", "Rations", "Bedroll", "Chalk"))
	eval := charfakes.NewEvaluator(cat,
		charfakes.Deficit(attr.Goodies, func(raw attr.State) int { return (levelOf(raw) + 1) / 3 }),
	)
	for seed := uint64(0); seed < 50; seed++ {
		state := attr.State{attr.Scalar(attr.Level): 5}
		gen := New(eval, cat, newRand(seed))
		if err := gen.Randomize(context.Background(), state, "goodies"); err != nil {
			t.Fatalf("Randomize: %v", err)
		}
		goodies := state.Names(attr.Goodies)
		if len(goodies) != 2 {
			t.Fatalf("seed %d: goodies = %v, want 2", seed, goodies)
		}
		for _, g := range goodies {
			if !cat.Has("goodies", g) || state.Get(attr.NewKey(attr.Goodies, g)) != attr.Marker {
				t.Fatalf("seed %d: bad goodie %q", seed, g)
			}
		}
	}
}

func TestBagRespectsPublishedChoices(t *testing.T) {
	cat := catalog.MustNew(names("skills", "Arcana", "Athletics", "Stealth"))
	eval := charfakes.NewEvaluator(cat,
		charfakes.Deficit(attr.Skills, charfakes.Fixed(3)),
		charfakes.Publish("choices.skills.Stealth", 1),
		charfakes.Publish("choices.skills.Arcana", 1),
		charfakes.Publish("choices.skills.Forgery", 1),
	)
	state := attr.State{attr.NewKey(attr.Skills, "Arcana"): 1}
	gen := New(eval, cat, newRand(3))
	if err := gen.Randomize(context.Background(), state, "skills"); err != nil {
		t.Fatalf("Randomize: %v", err)
	}
	got := state.Names(attr.Skills)
	if len(got) != 2 || got[0] != "Arcana" || got[1] != "Stealth" {
		t.Fatalf("skills = %v, want [Arcana Stealth]", got)
	}
}

func TestDeityWithinOneAlignmentStep(t *testing.T) {
	cat := catalog.MustNew(catalog.Section{Category: "deities", Entries: []catalog.Entry{
		{Name: "Heironeous", Meta: map[string]any{"alignment": "Lawful Good"}},
		{Name: "Pelor", Meta: map[string]any{"alignment": "Neutral Good"}},
		{Name: "Obad-Hai", Meta: map[string]any{"alignment": "Neutral"}},
		{Name: "Nerull", Meta: map[string]any{"alignment": "Neutral Evil"}},
	}})
	eval := charfakes.NewEvaluator(cat)
	for seed := uint64(0); seed < 50; seed++ {
		state := attr.State{attr.NewKey(attr.Alignment, "Lawful Good"): 1}
		gen := New(eval, cat, newRand(seed))
		if err := gen.Randomize(context.Background(), state, "deity"); err != nil {
			t.Fatalf("Randomize: %v", err)
		}
		deity, ok := state.Chosen(attr.Deity)
		if !ok || (deity != "Heironeous" && deity != "Pelor") {
			t.Fatalf("seed %d: deity = %q", seed, deity)
		}
	}

	lawful := catalog.MustNew(catalog.Section{Category: "deities", Entries: []catalog.Entry{
		{Name: "Heironeous", Meta: map[string]any{"alignment": "Lawful Good"}},
		{Name: "Pelor", Meta: map[string]any{"alignment": "Neutral Good"}},
	}})
	state := attr.State{attr.NewKey(attr.Alignment, "Chaotic Evil"): 1, attr.NewKey(attr.Deity, "Pelor"): 1}
	gen := New(charfakes.NewEvaluator(lawful), lawful, newRand(1))
	if err := gen.Randomize(context.Background(), state, "deity"); err != nil {
		t.Fatalf("Randomize: %v", err)
	}
	if deity, _ := state.Chosen(attr.Deity); deity != "Pelor" {
		t.Fatalf("deity = %q, want unchanged Pelor", deity)
	}
}

func TestSingleChoiceReplacesMarker(t *testing.T) {
	cat := catalog.MustNew(names("races", "Elf", "Dwarf", "Human"))
	state := attr.State{attr.NewKey(attr.Race, "Orc"): 1}
	gen := New(charfakes.NewEvaluator(cat), cat, newRand(4))
	if err := gen.Randomize(context.Background(), state, "race"); err != nil {
		t.Fatalf("Randomize: %v", err)
	}
	races := state.Names(attr.Race)
	if len(races) != 1 || !cat.Has("races", races[0]) {
		t.Fatalf("races = %v", races)
	}
}

func TestFeatsRevertRejectedGrants(t *testing.T) {
	cat := catalog.MustNew(catalog.Section{Category: "feats", Entries: []catalog.Entry{
		{Name: "Alert"},
		{Name: "Power Attack", Meta: map[string]any{"types": []any{"General", "Fighter"}}},
		{Name: "Toughness"},
		{Name: "Weapon Focus", Meta: map[string]any{"types": []any{"Fighter"}}},
	}})
	granted := func(raw attr.State) int { return len(raw.Names(attr.Feats)) }
	eval := charfakes.NewEvaluator(cat,
		func(raw attr.State, out attr.Derived) {
			out[attr.QualifiedKey(attr.Count, "feats", "General")] = float64(2 - granted(raw))
		},
		charfakes.Note("validationNotes.powerAttack", func(raw attr.State) bool {
			return raw.Has(attr.NewKey(attr.Feats, "Power Attack"))
		}, 1),
	)
	for seed := uint64(0); seed < 50; seed++ {
		state := attr.State{}
		gen := New(eval, cat, newRand(seed))
		if err := gen.Randomize(context.Background(), state, "feats"); err != nil {
			t.Fatalf("Randomize: %v", err)
		}
		feats := state.Names(attr.Feats)
		if len(feats) != 2 {
			t.Fatalf("seed %d: feats = %v, want 2", seed, feats)
		}
		for _, f := range feats {
			if f == "Power Attack" || f == "Weapon Focus" {
				t.Fatalf("seed %d: granted %q", seed, f)
			}
		}
	}
}

func TestSpellsCappedByPerDay(t *testing.T) {
	cat := catalog.MustNew(catalog.Section{Category: "spells", Entries: []catalog.Entry{
		{Name: "Magic Missile", Meta: map[string]any{"classes": map[string]any{"Wizard": 1}}},
		{Name: "Shield", Meta: map[string]any{"classes": map[string]any{"Wizard": 1}}},
		{Name: "Sleep", Meta: map[string]any{"classes": map[string]any{"Wizard": 1}}},
		{Name: "Fireball", Meta: map[string]any{"classes": map[string]any{"Wizard": 3}, "domains": map[string]any{"Fire": 3}}},
		{Name: "Burning Hands", Meta: map[string]any{"domains": map[string]any{"Fire": 1}}},
		{Name: "Bless", Meta: map[string]any{"domains": map[string]any{"Good": 1}}},
	}})
	eval := charfakes.NewEvaluator(cat,
		charfakes.Publish("spellsKnown.Wizard.1", 3),
		charfakes.Publish("spellsPerDay.Wizard.1", 2),
		charfakes.Publish("spellsKnown.domain.1", 1),
	)
	state := attr.State{attr.NewKey(attr.Domains, "Fire"): 1}
	gen := New(eval, cat, newRand(8))
	if err := gen.Randomize(context.Background(), state, "spells"); err != nil {
		t.Fatalf("Randomize: %v", err)
	}
	spells := state.Names(attr.Spells)
	if len(spells) != 3 {
		t.Fatalf("spells = %v, want 2 wizard + 1 domain", spells)
	}
	if !state.Has(attr.NewKey(attr.Spells, "Burning Hands")) {
		t.Fatalf("spells = %v, want Burning Hands from the Fire domain", spells)
	}
	if state.Has(attr.NewKey(attr.Spells, "Fireball")) || state.Has(attr.NewKey(attr.Spells, "Bless")) {
		t.Fatalf("spells = %v, drew outside the slot level or domain", spells)
	}
}

func TestHitPoints(t *testing.T) {
	cat := catalog.MustNew(catalog.Section{Category: "classes", Entries: []catalog.Entry{
		{Name: "Fighter", Meta: map[string]any{"hitDie": "1d10"}},
		{Name: "Wizard", Meta: map[string]any{"hitDie": "1d4"}},
	}})
	eval := charfakes.NewEvaluator(cat)

	state := attr.State{attr.NewKey(attr.Levels, "Fighter"): 1, attr.NewKey(attr.Levels, "Wizard"): 1}
	if err := New(eval, cat, newRand(1)).Randomize(context.Background(), state, "hitPoints"); err != nil {
		t.Fatalf("Randomize: %v", err)
	}
	if got := state.Get(attr.Scalar(attr.HitPoints)); got != 14 {
		t.Fatalf("hitPoints = %v, want 14", got)
	}

	belowMax := false
	for seed := uint64(0); seed < 50; seed++ {
		state := attr.State{attr.NewKey(attr.Levels, "Fighter"): 3}
		if err := New(eval, cat, newRand(seed)).Randomize(context.Background(), state, "hitPoints"); err != nil {
			t.Fatalf("Randomize: %v", err)
		}
		got := state.Get(attr.Scalar(attr.HitPoints))
		if got < 12 || got > 30 {
			t.Fatalf("seed %d: hitPoints = %v, want 12..30", seed, got)
		}
		belowMax = belowMax || got < 30

		replay, err := dice.RollWithRng(newRand(seed), []dice.Spec{{Sides: 10, Count: 1}, {Sides: 10, Count: 1}})
		if err != nil {
			t.Fatalf("RollWithRng: %v", err)
		}
		if want := float64(10 + replay.Total); got != want {
			t.Fatalf("seed %d: hitPoints = %v, want %v from the same rolls", seed, got, want)
		}
	}
	if !belowMax {
		t.Fatal("later levels always rolled the maximum, want a roll of the hit die")
	}
}

func TestHitPointsMultiDieRollsFromCount(t *testing.T) {
	cat := catalog.MustNew(catalog.Section{Category: "classes", Entries: []catalog.Entry{
		{Name: "Brute", Meta: map[string]any{"hitDie": "2d6"}},
	}})
	eval := charfakes.NewEvaluator(cat)

	// Level one gives 12 and level two rolls 2d6.
	belowFaces := false
	for seed := uint64(0); seed < 50; seed++ {
		state := attr.State{attr.NewKey(attr.Levels, "Brute"): 2}
		if err := New(eval, cat, newRand(seed)).Randomize(context.Background(), state, "hitPoints"); err != nil {
			t.Fatalf("Randomize: %v", err)
		}
		got := state.Get(attr.Scalar(attr.HitPoints))
		if got < 14 || got > 24 {
			t.Fatalf("seed %d: hitPoints = %v, want 14..24", seed, got)
		}
		belowFaces = belowFaces || got < 18
	}
	if !belowFaces {
		t.Fatal("expected some second-level rolls below the die's faces")
	}
}

func TestRandomizeDeterministicReplay(t *testing.T) {
	cat := catalog.MustNew(
		names("classes", "Fighter", "Rogue", "Wizard"),
		names("skills", "Arcana", "Athletics", "Stealth", "Perception", "Survival"),
		names("races", "Elf", "Dwarf", "Human"),
	)
	eval := charfakes.NewEvaluator(cat,
		charfakes.Deficit(attr.Skills, func(raw attr.State) int { return 1 + levelOf(raw)/2 }),
	)
	run := func() attr.State {
		state := attr.State{}
		gen := New(eval, cat, newRand(77))
		for _, name := range []string{"race", "abilities", "levels", "skills"} {
			if err := gen.Randomize(context.Background(), state, name); err != nil {
				t.Fatalf("Randomize(%s): %v", name, err)
			}
		}
		return state
	}
	first, second := run(), run()
	if !first.Equal(second) {
		t.Fatalf("replay diverged:\n%v\n%v", first, second)
	}
}
