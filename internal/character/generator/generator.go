// Package generator fills unset character attributes with weighted,
// dependency-aware random choices.
//
// The generator mutates the caller's state in place, one named attribute at a
// time, and consults the evaluator both to discover what is still missing
// (deficits, counts, eligible choices) and to reject speculative picks that
// introduce new diagnostics. All randomness comes from the injected
// generator, so a seeded run replays exactly.
package generator

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"strings"

	"github.com/louisbranch/charforge/internal/character/attr"
	"github.com/louisbranch/charforge/internal/character/catalog"
	"github.com/louisbranch/charforge/internal/character/rules"
	"github.com/louisbranch/charforge/internal/dice"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// ErrUnknownAttribute indicates the generator has no behavior for a name.
var ErrUnknownAttribute = errors.New("no generator for attribute")

const tracerName = "github.com/louisbranch/charforge/internal/character/generator"

// Generator randomizes character attributes.
type Generator struct {
	eval    rules.Evaluator
	catalog *catalog.Catalog
	rng     *rand.Rand
	tracer  trace.Tracer

	levelWeights      []float64
	classCountWeights []float64
}

// Option configures a Generator.
type Option func(*Generator)

// WithTracer overrides the tracer used for randomize spans.
func WithTracer(tracer trace.Tracer) Option {
	return func(g *Generator) {
		if tracer != nil {
			g.tracer = tracer
		}
	}
}

// WithLevelTable overrides the cumulative probability table used to draw a
// total character level; entry i is P(level <= i+1).
func WithLevelTable(cumulative []float64) Option {
	return func(g *Generator) {
		if w := weightsFromCumulative(cumulative); w != nil {
			g.levelWeights = w
		}
	}
}

// WithClassCountWeights overrides the relative weights of multiclassing into
// 1, 2, 3... classes.
func WithClassCountWeights(weights []float64) Option {
	return func(g *Generator) {
		if validWeights(weights) {
			g.classCountWeights = append([]float64(nil), weights...)
		}
	}
}

// DefaultLevelTable is the cumulative distribution of total level over 1-8.
var DefaultLevelTable = []float64{0.30, 0.50, 0.65, 0.77, 0.86, 0.93, 0.97, 1.00}

// DefaultClassCountWeights weights 1, 2 and 3 classes.
var DefaultClassCountWeights = []float64{0.60, 0.30, 0.10}

// New builds a Generator. The catalog may be nil when the evaluator exposes
// every category through Choices.
func New(eval rules.Evaluator, cat *catalog.Catalog, rng *rand.Rand, opts ...Option) *Generator {
	g := &Generator{
		eval:              eval,
		catalog:           cat,
		rng:               rng,
		tracer:            otel.Tracer(tracerName),
		levelWeights:      weightsFromCumulative(DefaultLevelTable),
		classCountWeights: append([]float64(nil), DefaultClassCountWeights...),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Randomize fills the named attribute. name is a namespace ("skills",
// "levels", "abilities") or a full key ("abilities.Str").
func (g *Generator) Randomize(ctx context.Context, state attr.State, name string) error {
	ns, key, err := resolveName(name)
	if err != nil {
		return err
	}
	if !g.Supports(ns) {
		return fmt.Errorf("%w: %q", ErrUnknownAttribute, name)
	}

	_, span := g.tracer.Start(ctx, "generator.Randomize", trace.WithAttributes(
		attribute.String("charforge.attribute", name),
	))
	defer span.End()

	before := len(state)
	g.randomize(state, ns, key)
	span.SetAttributes(attribute.Int("charforge.state_delta", len(state)-before))
	return nil
}

// Supports reports whether Randomize has a behavior for ns.
func (g *Generator) Supports(ns attr.Namespace) bool {
	switch ns {
	case attr.Level, attr.HitPoints, attr.Abilities, attr.Levels,
		attr.Race, attr.Gender, attr.Background, attr.Alignment, attr.Deity,
		attr.Domains, attr.Feats, attr.Features, attr.Spells,
		attr.Skills, attr.Tools, attr.Languages, attr.Weapons,
		attr.Armors, attr.Shields, attr.Goodies:
		return true
	}
	return false
}

func (g *Generator) randomize(state attr.State, ns attr.Namespace, key attr.Key) {
	switch ns {
	case attr.Abilities:
		g.rollAbilities(state, key.Name)
	case attr.Level:
		state.Set(attr.Scalar(attr.Level), float64(g.drawLevel()))
	case attr.Levels:
		g.allocateLevels(state)
	case attr.Deity:
		g.pickDeity(state)
	case attr.Race, attr.Gender, attr.Background, attr.Alignment:
		g.pickSingle(state, ns)
	case attr.Feats, attr.Features:
		g.grantSelectable(state, ns)
	case attr.Spells:
		g.learnSpells(state)
	case attr.HitPoints:
		g.rollHitPoints(state)
	default:
		g.fillBag(state, ns)
	}
}

func resolveName(name string) (attr.Namespace, attr.Key, error) {
	name = strings.TrimSpace(name)
	if strings.Contains(name, ".") {
		key, err := attr.ParseKey(name)
		if err != nil {
			return attr.NamespaceUnknown, attr.Key{}, fmt.Errorf("%w: %v", ErrUnknownAttribute, err)
		}
		return key.Namespace, key, nil
	}
	ns, ok := attr.LookupNamespaceFold(name)
	if !ok {
		return attr.NamespaceUnknown, attr.Key{}, fmt.Errorf("%w: %q", ErrUnknownAttribute, name)
	}
	return ns, attr.Key{Namespace: ns}, nil
}

func (g *Generator) rollAbilities(state attr.State, only string) {
	if only != "" {
		state.Set(attr.NewKey(attr.Abilities, only), float64(dice.AbilityScore(g.rng)))
		return
	}
	for _, ability := range rules.Abilities {
		state.Set(attr.NewKey(attr.Abilities, ability), float64(dice.AbilityScore(g.rng)))
	}
}

func (g *Generator) pickSingle(state attr.State, ns attr.Namespace) {
	entries := g.entries(ns.Category())
	if len(entries) == 0 {
		return
	}
	state.Choose(ns, entries[g.rng.IntN(len(entries))].Name)
}

// pickDeity draws among deities within one grid step of the character's
// alignment; without an alignment every deity qualifies.
func (g *Generator) pickDeity(state attr.State) {
	entries := g.entries(attr.Deity.Category())
	alignment, aligned := state.Chosen(attr.Alignment)
	var candidates []string
	for _, e := range entries {
		if !aligned || rules.AlignmentsNear(e.String("alignment"), alignment, 1) {
			candidates = append(candidates, e.Name)
		}
	}
	if len(candidates) == 0 {
		return
	}
	state.Choose(attr.Deity, candidates[g.rng.IntN(len(candidates))])
}

func (g *Generator) fillBag(state attr.State, ns attr.Namespace) {
	derived := g.eval.Evaluate(state)
	howMany := int(derived.Get(attr.NewKey(attr.Deficit, ns.String())))
	if howMany <= 0 {
		return
	}
	pool := g.eligible(state, derived, ns, nil)
	for _, name := range PickAttrs(g.rng, pool, howMany) {
		state.Set(attr.NewKey(ns, name), attr.Marker)
	}
}

func (g *Generator) rollHitPoints(state attr.State) {
	total := 0
	for _, class := range state.Names(attr.Levels) {
		levels := int(state.Get(attr.NewKey(attr.Levels, class)))
		if levels <= 0 {
			continue
		}
		entry, ok := g.lookup(attr.Levels.Category(), class)
		if !ok {
			continue
		}
		spec, err := dice.ParseSpec(entry.String("hitDie"))
		if err != nil {
			continue
		}
		total += spec.Max()
		if levels == 1 {
			continue
		}
		// Every later level rolls the hit die itself.
		later := make([]dice.Spec, levels-1)
		for i := range later {
			later[i] = spec
		}
		rolled, err := dice.RollWithRng(g.rng, later)
		if err != nil {
			continue
		}
		total += rolled.Total
	}
	if total > 0 {
		state.Set(attr.Scalar(attr.HitPoints), float64(total))
	}
}

// entries returns the catalog entries of category, falling back to the
// evaluator's view when the catalog does not carry it.
func (g *Generator) entries(category string) []catalog.Entry {
	if entries := g.catalog.Entries(category); len(entries) > 0 {
		return entries
	}
	return g.eval.Choices(category)
}

func (g *Generator) lookup(category, name string) (catalog.Entry, bool) {
	if e, ok := g.catalog.Lookup(category, name); ok {
		return e, true
	}
	for _, e := range g.eval.Choices(category) {
		if e.Name == name {
			return e, true
		}
	}
	return catalog.Entry{}, false
}

// eligible returns the option names of ns that may still be granted: the
// evaluator's published choices.<ns>.* when present, else the catalog
// category, minus names already in state and those rejected by keep.
func (g *Generator) eligible(state attr.State, derived attr.Derived, ns attr.Namespace, keep func(catalog.Entry) bool) []string {
	entries := g.entries(ns.Category())
	known := make(map[string]catalog.Entry, len(entries))
	for _, e := range entries {
		known[e.Name] = e
	}

	published := derived.Entries(attr.Choices, ns.String())
	var names []string
	if len(published) > 0 {
		for _, nv := range published {
			if nv.Value == 0 {
				continue
			}
			if len(known) > 0 {
				if _, ok := known[nv.Name]; !ok {
					continue
				}
			}
			names = append(names, nv.Name)
		}
	} else {
		for _, e := range entries {
			names = append(names, e.Name)
		}
	}

	out := names[:0]
	for _, name := range names {
		if state.Get(attr.NewKey(ns, name)) != 0 {
			continue
		}
		if keep != nil {
			e, ok := known[name]
			if !ok || !keep(e) {
				continue
			}
		}
		out = append(out, name)
	}
	return out
}

// nonzeroDiagnostics indexes the nonzero diagnostics of derived.
func nonzeroDiagnostics(derived attr.Derived) map[attr.Key]bool {
	out := make(map[attr.Key]bool)
	for _, d := range derived.Diagnostics() {
		out[d.Key] = true
	}
	return out
}
