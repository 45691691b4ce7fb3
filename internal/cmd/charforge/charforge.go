// Package charforge parses charforge command flags and prints built
// characters, simulations or catalog listings as JSON.
package charforge

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/louisbranch/charforge/internal/character/attr"
	"github.com/louisbranch/charforge/internal/character/forge"
	entrypoint "github.com/louisbranch/charforge/internal/platform/cmd"
	apperrors "github.com/louisbranch/charforge/internal/platform/errors"
)

// Config holds charforge command configuration.
type Config struct {
	CatalogDB  string `env:"CHARFORGE_CATALOG_DB"`
	ContentDir string `env:"CHARFORGE_CONTENT_DIR"`
	Ruleset    string `env:"CHARFORGE_RULESET"`
	MaxPasses  int    `env:"CHARFORGE_MAX_PASSES" envDefault:"8"`

	Seed         uint64
	Attrs        []string
	Input        string
	Repair       bool
	Trace        bool
	Simulate     int
	ListCategory string
	Filter       string
}

// ParseConfig parses environment and flags into a Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	if err := entrypoint.ParseConfig(&cfg); err != nil {
		return Config{}, err
	}

	var attrs string
	fs.StringVar(&cfg.CatalogDB, "catalog-db", cfg.CatalogDB, "SQLite catalog written by catalog-importer")
	fs.StringVar(&cfg.ContentDir, "content-dir", cfg.ContentDir, "directory of JSON/YAML catalog files")
	fs.StringVar(&cfg.Ruleset, "ruleset", cfg.Ruleset, "Lua rule script (default: starter rules)")
	fs.IntVar(&cfg.MaxPasses, "max-passes", cfg.MaxPasses, "maximum repair passes")
	fs.Uint64Var(&cfg.Seed, "seed", 0, "seed to replay (0 draws a fresh one)")
	fs.StringVar(&attrs, "attrs", "", "comma separated attributes to randomize (default: full character)")
	fs.StringVar(&cfg.Input, "input", "", "JSON file with a starting character state")
	fs.BoolVar(&cfg.Repair, "repair", false, "repair the character after randomizing")
	fs.BoolVar(&cfg.Trace, "trace", false, "include repair trace notes in the report")
	fs.IntVar(&cfg.Simulate, "simulate", 0, "build N repaired characters and print summary statistics")
	fs.StringVar(&cfg.ListCategory, "list-category", "", "list the entries of a catalog category")
	fs.StringVar(&cfg.Filter, "filter", "", "AIP-160 filter for -list-category")
	if err := entrypoint.ParseArgs(fs, args); err != nil {
		return Config{}, err
	}

	cfg.Attrs = splitAttrs(attrs)
	if cfg.Simulate < 0 {
		return Config{}, fmt.Errorf("simulate must be positive, got %d", cfg.Simulate)
	}
	if cfg.Filter != "" && cfg.ListCategory == "" {
		return Config{}, errors.New("filter requires list-category")
	}
	return cfg, nil
}

func splitAttrs(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// Run builds, simulates or lists according to cfg and writes JSON to out.
func Run(ctx context.Context, cfg Config, out io.Writer) error {
	return entrypoint.RunWithTelemetry(ctx, entrypoint.ServiceCharforge, func(ctx context.Context) error {
		return run(ctx, cfg, out)
	})
}

func run(ctx context.Context, cfg Config, out io.Writer) error {
	if out == nil {
		out = io.Discard
	}
	f, err := forge.Open(ctx, forge.Source{
		CatalogDB:  cfg.CatalogDB,
		ContentDir: cfg.ContentDir,
		Ruleset:    cfg.Ruleset,
	})
	if err != nil {
		return fmt.Errorf("open forge: %w", err)
	}

	if cfg.ListCategory != "" {
		entries, err := f.Choices(cfg.ListCategory, cfg.Filter)
		if err != nil {
			return err
		}
		listed := make([]entryOutput, 0, len(entries))
		for _, e := range entries {
			listed = append(listed, entryOutput{Name: e.Name, Meta: e.Meta})
		}
		return writeJSON(out, listed)
	}

	req, err := buildRequest(cfg)
	if err != nil {
		return err
	}
	if cfg.Simulate > 0 {
		sim, err := f.Simulate(ctx, req, cfg.Simulate)
		if err != nil {
			return err
		}
		return writeJSON(out, sim)
	}
	result, err := f.Build(ctx, req)
	if err != nil {
		return err
	}
	return writeJSON(out, result)
}

type entryOutput struct {
	Name string         `json:"name"`
	Meta map[string]any `json:"meta,omitempty"`
}

func buildRequest(cfg Config) (forge.Request, error) {
	req := forge.Request{
		Seed:      cfg.Seed,
		Attrs:     cfg.Attrs,
		Repair:    cfg.Repair,
		Trace:     cfg.Trace,
		MaxPasses: cfg.MaxPasses,
	}
	if cfg.Input == "" {
		return req, nil
	}
	state, err := readState(cfg.Input)
	if err != nil {
		return forge.Request{}, err
	}
	req.State = state
	return req, nil
}

func readState(path string) (attr.State, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read input %s: %w", path, err)
	}
	var state attr.State
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, apperrors.WrapWithMetadata(apperrors.CodeAttributeMalformed,
			"decode input state", map[string]string{"File": path}, err)
	}
	return state, nil
}

func writeJSON(out io.Writer, value any) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(value)
}
