// Package forge assembles a catalog, a rule set, the generator and the
// repairer into one character-building session. The CLI and the MCP server
// both build characters through it.
package forge

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/louisbranch/charforge/internal/character/attr"
	"github.com/louisbranch/charforge/internal/character/catalog"
	"github.com/louisbranch/charforge/internal/character/generator"
	"github.com/louisbranch/charforge/internal/character/repair"
	"github.com/louisbranch/charforge/internal/character/rules"
	"github.com/louisbranch/charforge/internal/character/rules/luarules"
	"github.com/louisbranch/charforge/internal/character/storage/sqlite"
	"github.com/louisbranch/charforge/internal/content/starter"
	apperrors "github.com/louisbranch/charforge/internal/platform/errors"
	"github.com/louisbranch/charforge/internal/random"
)

// DefaultOrder is the attribute order used for a fresh character. Later
// attributes read the earlier ones (class levels gate skills, deity gates
// domains, and so on).
var DefaultOrder = []string{
	"abilities", "race", "gender", "background", "alignment", "levels",
	"deity", "domains", "hitPoints", "skills", "languages", "tools",
	"weapons", "armors", "shields", "goodies", "feats", "features", "spells",
}

// Source selects where the catalog and the rule script come from.
type Source struct {
	// CatalogDB is a SQLite store written by the catalog importer. It wins
	// over ContentDir.
	CatalogDB string
	// ContentDir is a directory of JSON/YAML category files.
	ContentDir string
	// Ruleset is a Lua rule script path. Empty uses the starter rules.
	Ruleset string
}

// Forge builds characters against one catalog and evaluator.
type Forge struct {
	catalog *catalog.Catalog
	eval    rules.Evaluator
}

// New wraps an already loaded catalog and evaluator.
func New(cat *catalog.Catalog, eval rules.Evaluator) *Forge {
	return &Forge{catalog: cat, eval: eval}
}

// Open loads the catalog and rule script described by src. The starter
// content fills in whatever src leaves empty.
func Open(ctx context.Context, src Source, opts ...luarules.Option) (*Forge, error) {
	cat, err := loadCatalog(ctx, src)
	if err != nil {
		return nil, err
	}

	var eval *luarules.Evaluator
	if path := strings.TrimSpace(src.Ruleset); path != "" {
		eval, err = loadScript(path, cat, opts...)
	} else {
		eval, err = starter.Rules(cat, opts...)
	}
	if err != nil {
		return nil, err
	}
	return New(cat, eval), nil
}

func loadScript(path string, cat *catalog.Catalog, opts ...luarules.Option) (*luarules.Evaluator, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, apperrors.WrapWithMetadata(apperrors.CodeRulesetLoad,
			"read rule script", map[string]string{"Script": path}, err)
	}
	return luarules.Load(path, string(data), cat, opts...)
}

func loadCatalog(ctx context.Context, src Source) (*catalog.Catalog, error) {
	if path := strings.TrimSpace(src.CatalogDB); path != "" {
		store, err := sqlite.Open(path)
		if err != nil {
			return nil, apperrors.Wrap(apperrors.CodeCatalogNotFound, "open catalog store", err)
		}
		defer store.Close()
		return store.LoadCatalog(ctx)
	}
	if dir := strings.TrimSpace(src.ContentDir); dir != "" {
		return catalog.LoadFS(os.DirFS(dir), ".")
	}
	return starter.Catalog()
}

// Catalog returns the loaded catalog.
func (f *Forge) Catalog() *catalog.Catalog { return f.catalog }

// Categories returns the catalog categories in order.
func (f *Forge) Categories() []string { return f.catalog.Categories() }

// Evaluator returns the loaded rule evaluator.
func (f *Forge) Evaluator() rules.Evaluator { return f.eval }

// Request describes one build.
type Request struct {
	// Seed replays a previous build. Zero draws a fresh seed.
	Seed uint64
	// State is the starting character; it is not modified.
	State attr.State
	// Attrs lists the attributes to randomize, in order. Nil means
	// DefaultOrder when State is empty and nothing otherwise.
	Attrs     []string
	Repair    bool
	Trace     bool
	MaxPasses int
}

// Diagnostic is one unresolved diagnostic of a build result.
type Diagnostic struct {
	Key         string  `json:"key"`
	Severity    float64 `json:"severity"`
	Requirement string  `json:"requirement,omitempty"`
}

// Result is the outcome of a build.
type Result struct {
	Seed        uint64         `json:"seed"`
	State       attr.State     `json:"state"`
	Diagnostics []Diagnostic   `json:"diagnostics,omitempty"`
	Report      *repair.Report `json:"report,omitempty"`
}

// Build randomizes the requested attributes and optionally repairs the
// result.
func (f *Forge) Build(ctx context.Context, req Request) (Result, error) {
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}
	seed, _, err := random.Resolve(req.Seed)
	if err != nil {
		return Result{}, err
	}
	state := attr.State{}
	if req.State != nil {
		state = req.State.Clone()
	}
	attrs := req.Attrs
	if attrs == nil && len(state) == 0 {
		attrs = DefaultOrder
	}

	rng := random.New(seed)
	gen := generator.New(f.eval, f.catalog, rng)
	for _, name := range attrs {
		if err := gen.Randomize(ctx, state, name); err != nil {
			return Result{}, apperrors.WrapWithMetadata(apperrors.CodeAttributeUnknown,
				fmt.Sprintf("randomize %s", name), map[string]string{"Attribute": name}, err)
		}
	}

	result := Result{Seed: seed, State: state}
	if req.Repair {
		report := repair.New(f.eval, gen, f.catalog, rng,
			repair.WithTrace(req.Trace),
			repair.WithMaxPasses(req.MaxPasses),
		).MakeValid(ctx, state)
		result.Report = &report
	}
	result.Diagnostics = f.Diagnose(state)
	return result, nil
}

// Diagnose evaluates state and returns its nonzero diagnostics with their
// requirement texts.
func (f *Forge) Diagnose(state attr.State) []Diagnostic {
	var out []Diagnostic
	for _, d := range f.eval.Evaluate(state).Diagnostics() {
		text, _ := f.eval.Requirement(d.Key)
		out = append(out, Diagnostic{Key: d.Key.String(), Severity: d.Severity, Requirement: text})
	}
	return out
}

// Choices returns the entries of category matching an AIP-160 filter.
func (f *Forge) Choices(category, filter string) ([]catalog.Entry, error) {
	category = strings.TrimSpace(category)
	if !f.catalog.HasCategory(category) {
		return nil, apperrors.WithMetadata(apperrors.CodeCatalogNotFound,
			fmt.Sprintf("unknown category %q", category), map[string]string{"Category": category})
	}
	pred, err := catalog.ParseFilter(filter)
	if err != nil {
		return nil, err
	}
	return f.catalog.Find(category, pred), nil
}
