// Package repair nudges a character state toward zero diagnostics.
//
// MakeValid runs a bounded fixed-point loop: each pass evaluates the state,
// turns every nonzero diagnostic into a Problem and hands it to a Strategy.
// The loop stops at the first pass that changes nothing or after the pass
// budget. The repairer never reports an error; unsatisfiable problems are
// left in place and optionally traced. The best state seen is restored when
// the run ends worse than it started.
package repair

import (
	"context"
	"fmt"
	"math/rand/v2"

	"github.com/louisbranch/charforge/internal/character/attr"
	"github.com/louisbranch/charforge/internal/character/catalog"
	"github.com/louisbranch/charforge/internal/character/generator"
	"github.com/louisbranch/charforge/internal/character/requirement"
	"github.com/louisbranch/charforge/internal/character/rules"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// DefaultMaxPasses bounds the outer repair loop.
const DefaultMaxPasses = 8

const tracerName = "github.com/louisbranch/charforge/internal/character/repair"

// Report summarizes one MakeValid run.
type Report struct {
	Passes     int      `json:"passes"`
	Fixes      int      `json:"fixes"`
	Initial    int      `json:"initial"`
	Final      int      `json:"final"`
	FixedPoint bool     `json:"fixed_point"`
	Restored   bool     `json:"restored"`
	Notes      []string `json:"notes,omitempty"`
}

// Repairer runs the repair loop.
type Repairer struct {
	eval      rules.Evaluator
	gen       *generator.Generator
	catalog   *catalog.Catalog
	rng       *rand.Rand
	strategy  Strategy
	maxPasses int
	trace     bool
	tracer    trace.Tracer
}

// Option configures a Repairer.
type Option func(*Repairer)

// WithMaxPasses overrides the pass budget.
func WithMaxPasses(n int) Option {
	return func(r *Repairer) {
		if n > 0 {
			r.maxPasses = n
		}
	}
}

// WithTrace records per-problem notes in the report.
func WithTrace(enabled bool) Option {
	return func(r *Repairer) {
		r.trace = enabled
	}
}

// WithStrategy replaces the default strategy chain.
func WithStrategy(s Strategy) Option {
	return func(r *Repairer) {
		if s != nil {
			r.strategy = s
		}
	}
}

// WithTracer overrides the tracer used for repair spans.
func WithTracer(tracer trace.Tracer) Option {
	return func(r *Repairer) {
		if tracer != nil {
			r.tracer = tracer
		}
	}
}

// New builds a Repairer. gen is used for deficit fixes and may be nil when
// the strategy chain does not need it.
func New(eval rules.Evaluator, gen *generator.Generator, cat *catalog.Catalog, rng *rand.Rand, opts ...Option) *Repairer {
	r := &Repairer{
		eval:      eval,
		gen:       gen,
		catalog:   cat,
		rng:       rng,
		strategy:  DefaultStrategy(),
		maxPasses: DefaultMaxPasses,
		tracer:    otel.Tracer(tracerName),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// MakeValid repairs state in place.
func (r *Repairer) MakeValid(ctx context.Context, state attr.State) Report {
	ctx, span := r.tracer.Start(ctx, "repair.MakeValid")
	defer span.End()

	var report Report
	derived := r.eval.Evaluate(state)
	report.Initial = derived.Violations()

	best := state.Clone()
	bestCount := report.Initial

	for report.Passes < r.maxPasses {
		report.Passes++
		fixes := r.runPass(ctx, state, derived, report.Passes, &report)
		report.Fixes += fixes

		derived = r.eval.Evaluate(state)
		if count := derived.Violations(); count < bestCount {
			best = state.Clone()
			bestCount = count
		}
		if fixes == 0 {
			report.FixedPoint = true
			break
		}
	}

	report.Final = derived.Violations()
	if report.Final > bestCount {
		state.Replace(best)
		report.Final = bestCount
		report.Restored = true
		report.FixedPoint = false
		r.note(&report, "restored best state with %d diagnostics", bestCount)
	}
	if report.Final > 0 && r.trace {
		for _, d := range r.eval.Evaluate(state).Diagnostics() {
			r.note(&report, "unresolved %s = %v", d.Key, d.Severity)
		}
	}

	span.SetAttributes(
		attribute.Int("charforge.repair.passes", report.Passes),
		attribute.Int("charforge.repair.fixes", report.Fixes),
		attribute.Int("charforge.repair.initial", report.Initial),
		attribute.Int("charforge.repair.final", report.Final),
	)
	return report
}

func (r *Repairer) runPass(ctx context.Context, state attr.State, derived attr.Derived, n int, report *Report) int {
	ctx, span := r.tracer.Start(ctx, "repair.Pass", trace.WithAttributes(attribute.Int("charforge.repair.pass", n)))
	defer span.End()

	pass := &Pass{
		State:     state,
		Derived:   derived,
		Catalog:   r.catalog,
		Generator: r.gen,
		Evaluator: r.eval,
		Rand:      r.rng,
		locked:    make(map[attr.Key]bool),
	}
	if r.trace {
		pass.tracef = func(format string, args ...any) {
			r.note(report, "pass %d: "+format, append([]any{n}, args...)...)
		}
	}

	fixes := 0
	for _, d := range derived.Diagnostics() {
		if pass.Derived.Get(d.Key) == 0 {
			continue
		}
		problem := r.problem(pass, d)
		if r.strategy.Fix(ctx, pass, problem) {
			fixes++
			pass.Refresh()
			pass.Tracef("fixed %s", d.Key)
			continue
		}
		pass.Tracef("no fix for %s = %v", d.Key, d.Severity)
	}
	span.SetAttributes(attribute.Int("charforge.repair.fixes", fixes))
	return fixes
}

func (r *Repairer) problem(pass *Pass, d attr.Diagnostic) Problem {
	p := Problem{
		Key:      d.Key,
		Severity: pass.Derived.Get(d.Key),
	}
	p.Category, _ = attr.InferCategory(d.Key.Name)
	text, ok := r.eval.Requirement(d.Key)
	if !ok {
		return p
	}
	req, err := requirement.Parse(text)
	if err != nil {
		pass.Tracef("requirement %s: %v", d.Key, err)
	}
	if len(req.Terms) > 0 {
		p.Requirement = req
		p.HasRequirement = true
	}
	return p
}

func (r *Repairer) note(report *Report, format string, args ...any) {
	if !r.trace {
		return
	}
	report.Notes = append(report.Notes, fmt.Sprintf(format, args...))
}

// Problem is one nonzero diagnostic handed to a Strategy.
type Problem struct {
	Key      attr.Key
	Severity float64
	// Category is the raw namespace inferred from the diagnostic name, or
	// NamespaceUnknown.
	Category       attr.Namespace
	Requirement    requirement.Requirement
	HasRequirement bool
}

// Pass is the mutable context shared by strategies during one pass.
type Pass struct {
	State     attr.State
	Derived   attr.Derived
	Catalog   *catalog.Catalog
	Generator *generator.Generator
	Evaluator rules.Evaluator
	Rand      *rand.Rand

	locked map[attr.Key]bool
	tracef func(format string, args ...any)
}

// Lock protects k from further direct fixes in this pass.
func (p *Pass) Lock(k attr.Key) { p.locked[k] = true }

// Locked reports whether k was directly fixed earlier in this pass.
func (p *Pass) Locked(k attr.Key) bool { return p.locked[k] }

// Refresh re-evaluates the state after a fix.
func (p *Pass) Refresh() {
	p.Derived = p.Evaluator.Evaluate(p.State)
}

// Tracef records a debug note when tracing is enabled.
func (p *Pass) Tracef(format string, args ...any) {
	if p.tracef != nil {
		p.tracef(format, args...)
	}
}
