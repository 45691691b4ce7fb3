// Package starter embeds the default catalog and Lua rule set shipped with
// charforge.
package starter

import (
	"embed"
	"io/fs"

	"github.com/louisbranch/charforge/internal/character/catalog"
	"github.com/louisbranch/charforge/internal/character/rules/luarules"
)

// RulesPath is the rule script path inside FS.
const RulesPath = "rules.lua"

// CatalogDir is the catalog directory inside FS.
const CatalogDir = "catalog"

//go:embed rules.lua catalog/*.yaml catalog/*.json
var FS embed.FS

// Catalog loads the embedded catalog.
func Catalog() (*catalog.Catalog, error) {
	return catalog.LoadFS(FS, CatalogDir)
}

// CatalogFS returns the embedded catalog directory as its own filesystem.
func CatalogFS() fs.FS {
	sub, err := fs.Sub(FS, CatalogDir)
	if err != nil {
		panic(err)
	}
	return sub
}

// Rules loads the embedded rule script against cat.
func Rules(cat *catalog.Catalog, opts ...luarules.Option) (*luarules.Evaluator, error) {
	return luarules.LoadFS(FS, RulesPath, cat, opts...)
}

// Load returns the embedded catalog and its rule evaluator.
func Load(opts ...luarules.Option) (*catalog.Catalog, *luarules.Evaluator, error) {
	cat, err := Catalog()
	if err != nil {
		return nil, nil, err
	}
	eval, err := Rules(cat, opts...)
	if err != nil {
		return nil, nil, err
	}
	return cat, eval, nil
}
