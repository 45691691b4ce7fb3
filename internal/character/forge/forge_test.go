package forge

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/louisbranch/charforge/internal/character/attr"
	"github.com/louisbranch/charforge/internal/character/storage/sqlite"
	"github.com/louisbranch/charforge/internal/content/starter"
	apperrors "github.com/louisbranch/charforge/internal/platform/errors"
)

func openStarter(t *testing.T) *Forge {
	t.Helper()
	f, err := Open(context.Background(), Source{})
	if err != nil {
		t.Fatalf("open starter forge: %v", err)
	}
	return f
}

func TestBuildDefaultOrder(t *testing.T) {
	f := openStarter(t)
	result, err := f.Build(context.Background(), Request{Seed: 11, Repair: true})
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if result.Seed != 11 {
		t.Fatalf("seed = %d, want 11", result.Seed)
	}
	if result.Report == nil {
		t.Fatal("expected repair report")
	}
	if got := len(result.Diagnostics); got != result.Report.Final {
		t.Fatalf("diagnostics = %d, want report final %d", got, result.Report.Final)
	}
	if _, ok := result.State.Chosen(attr.Race); !ok {
		t.Fatalf("expected a race in %v", result.State)
	}
	if level := result.State.Get(attr.Scalar(attr.Level)); level < 1 || level > 8 {
		t.Fatalf("level = %v", level)
	}
}

func TestBuildReplaysSeed(t *testing.T) {
	f := openStarter(t)
	first, err := f.Build(context.Background(), Request{Seed: 5, Repair: true})
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	second, err := f.Build(context.Background(), Request{Seed: 5, Repair: true})
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if !first.State.Equal(second.State) {
		t.Fatalf("states differ:\n%v\n%v", first.State, second.State)
	}
}

func TestBuildDoesNotMutateInput(t *testing.T) {
	f := openStarter(t)
	input := attr.State{attr.NewKey(attr.Race, "Elf"): attr.Marker}
	result, err := f.Build(context.Background(), Request{Seed: 3, State: input, Attrs: []string{"abilities"}})
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if len(input) != 1 {
		t.Fatalf("input mutated: %v", input)
	}
	if !result.State.Has(attr.NewKey(attr.Race, "Elf")) {
		t.Fatalf("expected race to be kept: %v", result.State)
	}
	if result.State.Sum(attr.Abilities) == 0 {
		t.Fatalf("expected abilities to be rolled: %v", result.State)
	}
	if result.Report != nil {
		t.Fatal("unexpected report without repair")
	}
}

func TestBuildNonEmptyStateSkipsDefaultOrder(t *testing.T) {
	f := openStarter(t)
	input := attr.State{attr.NewKey(attr.Gender, "Female"): attr.Marker}
	result, err := f.Build(context.Background(), Request{Seed: 3, State: input})
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if !result.State.Equal(input) {
		t.Fatalf("state = %v, want %v", result.State, input)
	}
}

func TestBuildRejectsUnknownAttribute(t *testing.T) {
	f := openStarter(t)
	_, err := f.Build(context.Background(), Request{Seed: 1, Attrs: []string{"stats"}})
	if apperrors.GetCode(err) != apperrors.CodeAttributeUnknown {
		t.Fatalf("code = %v, want %v", apperrors.GetCode(err), apperrors.CodeAttributeUnknown)
	}
}

func TestBuildCanceledContext(t *testing.T) {
	f := openStarter(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := f.Build(ctx, Request{Seed: 1}); err == nil {
		t.Fatal("expected canceled context error")
	}
}

func TestDiagnoseIncludesRequirement(t *testing.T) {
	f := openStarter(t)
	state := attr.State{
		attr.Scalar(attr.Level):                 1,
		attr.NewKey(attr.Levels, "Rogue"):       1,
		attr.NewKey(attr.Armors, "Chain Shirt"): 1,
	}
	for _, d := range f.Diagnose(state) {
		if d.Key == "validationNotes.armorProficiencyMedium" {
			if d.Requirement == "" {
				t.Fatal("expected requirement text")
			}
			return
		}
	}
	t.Fatal("expected armorProficiencyMedium diagnostic")
}

func TestChoices(t *testing.T) {
	f := openStarter(t)
	spells, err := f.Choices("spells", `class = "Wizard" AND level = 1`)
	if err != nil {
		t.Fatalf("choices: %v", err)
	}
	if len(spells) == 0 {
		t.Fatal("expected first level wizard spells")
	}
	for _, s := range spells {
		if _, ok := s.IntMap("classes")["Wizard"]; !ok {
			t.Fatalf("%s is not a wizard spell", s.Name)
		}
	}

	if _, err := f.Choices("vehicles", ""); apperrors.GetCode(err) != apperrors.CodeCatalogNotFound {
		t.Fatalf("code = %v, want %v", apperrors.GetCode(err), apperrors.CodeCatalogNotFound)
	}
	if _, err := f.Choices("spells", "level >"); apperrors.GetCode(err) != apperrors.CodeFilterInvalid {
		t.Fatalf("code = %v, want %v", apperrors.GetCode(err), apperrors.CodeFilterInvalid)
	}
}

func TestOpenFromCatalogStore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.db")
	store, err := sqlite.Open(path)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	cat, err := starter.Catalog()
	if err != nil {
		t.Fatalf("starter catalog: %v", err)
	}
	if _, err := store.SaveCatalog(context.Background(), cat, "starter"); err != nil {
		t.Fatalf("save catalog: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("close store: %v", err)
	}

	f, err := Open(context.Background(), Source{CatalogDB: path})
	if err != nil {
		t.Fatalf("open forge: %v", err)
	}
	if f.Catalog().Len() != cat.Len() {
		t.Fatalf("len = %d, want %d", f.Catalog().Len(), cat.Len())
	}
}

func TestOpenFromContentDirAndRuleset(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "races.yaml"), []byte("- name: Elf\n- name: Dwarf\n"), 0o600); err != nil {
		t.Fatalf("write races: %v", err)
	}
	script := filepath.Join(dir, "rules.lua")
	if err := os.WriteFile(script, []byte("requirements = {}\nfunction evaluate(raw) return {} end\n"), 0o600); err != nil {
		t.Fatalf("write rules: %v", err)
	}

	f, err := Open(context.Background(), Source{ContentDir: dir, Ruleset: script})
	if err != nil {
		t.Fatalf("open forge: %v", err)
	}
	if names := f.Catalog().Names("races"); len(names) != 2 {
		t.Fatalf("races = %v", names)
	}
	result, err := f.Build(context.Background(), Request{Seed: 2, Attrs: []string{"race"}})
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if _, ok := result.State.Chosen(attr.Race); !ok {
		t.Fatalf("expected a race: %v", result.State)
	}
}

func TestOpenErrors(t *testing.T) {
	ctx := context.Background()
	if _, err := Open(ctx, Source{ContentDir: filepath.Join(t.TempDir(), "missing")}); apperrors.GetCode(err) != apperrors.CodeCatalogNotFound {
		t.Fatalf("code = %v, want %v", apperrors.GetCode(err), apperrors.CodeCatalogNotFound)
	}
	if _, err := Open(ctx, Source{Ruleset: filepath.Join(t.TempDir(), "missing.lua")}); apperrors.GetCode(err) != apperrors.CodeRulesetLoad {
		t.Fatalf("code = %v, want %v", apperrors.GetCode(err), apperrors.CodeRulesetLoad)
	}
	emptyDB := filepath.Join(t.TempDir(), "empty.db")
	if _, err := Open(ctx, Source{CatalogDB: emptyDB}); apperrors.GetCode(err) != apperrors.CodeCatalogEmpty {
		t.Fatalf("code = %v, want %v", apperrors.GetCode(err), apperrors.CodeCatalogEmpty)
	}
}

func TestSimulate(t *testing.T) {
	f := openStarter(t)
	sim, err := f.Simulate(context.Background(), Request{Seed: 100}, 6)
	if err != nil {
		t.Fatalf("simulate: %v", err)
	}
	if sim.Runs != 6 || sim.FirstSeed != 100 {
		t.Fatalf("simulation = %+v", sim)
	}
	level, ok := sim.Metrics["level"]
	if !ok {
		t.Fatalf("missing level metric: %v", sim.Metrics)
	}
	if level.Min < 1 || level.Max > 8 || level.Mean < level.Min || level.Mean > level.Max {
		t.Fatalf("level summary = %+v", level)
	}
	final := sim.Metrics["final"]
	initial := sim.Metrics["initial"]
	if final.Mean > initial.Mean {
		t.Fatalf("repair made things worse on average: %+v vs %+v", final, initial)
	}

	if _, err := f.Simulate(context.Background(), Request{}, 0); err == nil {
		t.Fatal("expected error for zero runs")
	}
}
