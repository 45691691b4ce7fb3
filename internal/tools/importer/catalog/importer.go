// Package catalogimporter validates a directory of catalog files and imports
// it into the SQLite catalog store.
package catalogimporter

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/louisbranch/charforge/internal/character/attr"
	"github.com/louisbranch/charforge/internal/character/catalog"
	"github.com/louisbranch/charforge/internal/character/requirement"
	"github.com/louisbranch/charforge/internal/character/rules/luarules"
	"github.com/louisbranch/charforge/internal/character/storage/sqlite"
	"github.com/louisbranch/charforge/internal/content/starter"
	entrypoint "github.com/louisbranch/charforge/internal/platform/cmd"
	apperrors "github.com/louisbranch/charforge/internal/platform/errors"
)

// Config holds configuration for the catalog importer.
type Config struct {
	Dir     string `env:"CHARFORGE_CONTENT_DIR"`
	DBPath  string `env:"CHARFORGE_CATALOG_DB" envDefault:"data/charforge.db"`
	Ruleset string `env:"CHARFORGE_RULESET"`
	Starter bool
	DryRun  bool
}

// ParseConfig parses environment and CLI flags into a Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	if err := entrypoint.ParseConfig(&cfg); err != nil {
		return Config{}, err
	}

	fs.StringVar(&cfg.Dir, "dir", cfg.Dir, "directory containing catalog JSON/YAML files")
	fs.StringVar(&cfg.DBPath, "db-path", cfg.DBPath, "catalog database path")
	fs.StringVar(&cfg.Ruleset, "ruleset", cfg.Ruleset, "Lua rule script to check against the catalog (default: starter rules)")
	fs.BoolVar(&cfg.Starter, "starter", false, "import the embedded starter catalog instead of -dir")
	fs.BoolVar(&cfg.DryRun, "dry-run", false, "validate without writing to the database")
	if err := entrypoint.ParseArgs(fs, args); err != nil {
		return Config{}, err
	}

	if !cfg.Starter && strings.TrimSpace(cfg.Dir) == "" {
		return Config{}, errors.New("dir is required")
	}
	if !cfg.DryRun && strings.TrimSpace(cfg.DBPath) == "" {
		return Config{}, errors.New("db-path is required")
	}
	return cfg, nil
}

// Run executes the importer using the provided Config.
func Run(ctx context.Context, cfg Config, out io.Writer) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if out == nil {
		out = io.Discard
	}

	cat, source, err := readCatalog(cfg)
	if err != nil {
		return err
	}
	if err := validateCatalog(cat); err != nil {
		return fmt.Errorf("validate %s: %w", source, err)
	}
	requirements, err := checkRules(cat, cfg.Ruleset)
	if err != nil {
		return fmt.Errorf("check rules: %w", err)
	}

	if cfg.DryRun {
		_, err = fmt.Fprintf(out, "validated %d categories, %d entries and %d requirements from %s\n",
			len(cat.Categories()), cat.Len(), requirements, source)
		return err
	}

	if dir := filepath.Dir(cfg.DBPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return apperrors.Wrap(apperrors.CodeStorageWrite, "create database directory", err)
		}
	}
	store, err := sqlite.Open(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("open catalog store: %w", err)
	}
	defer store.Close()

	record, err := store.SaveCatalog(ctx, cat, source)
	if err != nil {
		return fmt.Errorf("import %s: %w", source, err)
	}
	_, err = fmt.Fprintf(out, "imported %d categories and %d entries from %s into %s (import %d)\n",
		record.Categories, record.Entries, source, cfg.DBPath, record.ID)
	return err
}

func readCatalog(cfg Config) (*catalog.Catalog, string, error) {
	if cfg.Starter {
		cat, err := starter.Catalog()
		return cat, "starter", err
	}
	dir := strings.TrimSpace(cfg.Dir)
	if dir == "" {
		return nil, "", errors.New("dir is required")
	}
	cat, err := catalog.LoadFS(os.DirFS(dir), ".")
	if err != nil {
		return nil, "", fmt.Errorf("read %s: %w", dir, err)
	}
	return cat, dir, nil
}

// reference links a metadata field to the category its values must name.
type reference struct {
	category string
	field    string
	target   string
	// keys reads the field as a name -> level map.
	keys bool
}

var references = []reference{
	{category: "classes", field: "classSkills", target: "skills"},
	{category: "classes", field: "alignments", target: "alignments"},
	{category: "deities", field: "alignment", target: "alignments"},
	{category: "deities", field: "domains", target: "domains"},
	{category: "spells", field: "classes", target: "classes", keys: true},
	{category: "spells", field: "domains", target: "domains", keys: true},
}

// validateCatalog checks cross-category references and attribute keys used
// as prerequisites. Every problem is reported, not only the first.
func validateCatalog(cat *catalog.Catalog) error {
	var problems []error
	for _, ref := range references {
		if !cat.HasCategory(ref.category) || !cat.HasCategory(ref.target) {
			continue
		}
		for _, entry := range cat.Entries(ref.category) {
			var names []string
			if ref.keys {
				for name := range entry.IntMap(ref.field) {
					names = append(names, name)
				}
				sort.Strings(names)
			} else {
				names = entry.Strings(ref.field)
			}
			for _, name := range names {
				if !cat.Has(ref.target, name) {
					problems = append(problems, fmt.Errorf("%s %q: %s names unknown %s entry %q",
						ref.category, entry.Name, ref.field, ref.target, name))
				}
			}
		}
	}
	for _, entry := range cat.Entries("feats") {
		prereqs := entry.IntMap("prereqs")
		keys := make([]string, 0, len(prereqs))
		for key := range prereqs {
			keys = append(keys, key)
		}
		sort.Strings(keys)
		for _, key := range keys {
			if _, err := attr.ParseKey(key); err != nil {
				problems = append(problems, fmt.Errorf("feats %q: prerequisite %q: %w", entry.Name, key, err))
			}
		}
	}
	if len(problems) > 0 {
		return apperrors.Wrap(apperrors.CodeCatalogInvalid, "catalog references", errors.Join(problems...))
	}
	return nil
}

// checkRules loads the rule script against cat and parses every requirement
// it registers. It returns the number of requirements.
func checkRules(cat *catalog.Catalog, path string) (int, error) {
	var (
		eval *luarules.Evaluator
		err  error
	)
	if path = strings.TrimSpace(path); path != "" {
		data, readErr := os.ReadFile(path)
		if readErr != nil {
			return 0, apperrors.WrapWithMetadata(apperrors.CodeRulesetLoad,
				"read rule script", map[string]string{"Script": path}, readErr)
		}
		eval, err = luarules.Load(path, string(data), cat)
	} else {
		eval, err = starter.Rules(cat)
	}
	if err != nil {
		return 0, err
	}

	reqs := eval.Requirements()
	keys := make([]attr.Key, 0, len(reqs))
	for k := range reqs {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].String() < keys[j].String() })
	var problems []error
	for _, k := range keys {
		if _, err := requirement.Parse(reqs[k]); err != nil {
			problems = append(problems, fmt.Errorf("%s: %w", k, err))
		}
	}
	if len(problems) > 0 {
		return 0, apperrors.Wrap(apperrors.CodeRequirementInvalid, "parse requirements", errors.Join(problems...))
	}
	return len(reqs), nil
}
