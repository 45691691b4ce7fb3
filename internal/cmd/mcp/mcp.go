// Package mcp parses MCP command flags and selects stdio or HTTP transport.
package mcp

import (
	"context"
	"flag"

	"github.com/louisbranch/charforge/internal/character/forge"
	entrypoint "github.com/louisbranch/charforge/internal/platform/cmd"
	mcpservice "github.com/louisbranch/charforge/internal/services/mcp/service"
)

// Config holds MCP command configuration.
type Config struct {
	CatalogDB  string `env:"CHARFORGE_CATALOG_DB"`
	ContentDir string `env:"CHARFORGE_CONTENT_DIR"`
	Ruleset    string `env:"CHARFORGE_RULESET"`
	HTTPAddr   string `env:"CHARFORGE_MCP_HTTP_ADDR" envDefault:"localhost:8081"`
	Transport  string `env:"CHARFORGE_MCP_TRANSPORT" envDefault:"stdio"`
}

// ParseConfig parses environment and flags into a Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	if err := entrypoint.ParseConfig(&cfg); err != nil {
		return Config{}, err
	}

	fs.StringVar(&cfg.CatalogDB, "catalog-db", cfg.CatalogDB, "SQLite catalog written by catalog-importer")
	fs.StringVar(&cfg.ContentDir, "content-dir", cfg.ContentDir, "directory of JSON/YAML catalog files")
	fs.StringVar(&cfg.Ruleset, "ruleset", cfg.Ruleset, "Lua rule script (default: starter rules)")
	fs.StringVar(&cfg.HTTPAddr, "http-addr", cfg.HTTPAddr, "HTTP server address (for HTTP transport)")
	fs.StringVar(&cfg.Transport, "transport", cfg.Transport, "Transport type: stdio or http")
	if err := entrypoint.ParseArgs(fs, args); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Run starts the MCP protocol adapter.
func Run(ctx context.Context, cfg Config) error {
	return entrypoint.RunWithTelemetry(ctx, entrypoint.ServiceMCP, func(ctx context.Context) error {
		return mcpservice.Run(ctx, mcpservice.Config{
			Source: forge.Source{
				CatalogDB:  cfg.CatalogDB,
				ContentDir: cfg.ContentDir,
				Ruleset:    cfg.Ruleset,
			},
			Transport: mcpservice.TransportKind(cfg.Transport),
			HTTPAddr:  cfg.HTTPAddr,
		})
	})
}
