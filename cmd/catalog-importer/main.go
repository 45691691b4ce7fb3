package main

import (
	"context"
	"flag"
	"os"

	entrypoint "github.com/louisbranch/charforge/internal/platform/cmd"
	"github.com/louisbranch/charforge/internal/platform/config"
	catalogimporter "github.com/louisbranch/charforge/internal/tools/importer/catalog"
)

func main() {
	cfg, err := catalogimporter.ParseConfig(flag.CommandLine, os.Args[1:])
	if err != nil {
		config.Exitf("Error: %v", err)
	}

	err = entrypoint.RunWithTelemetry(context.Background(), entrypoint.ServiceCatalogImporter, func(ctx context.Context) error {
		return catalogimporter.Run(ctx, cfg, os.Stdout)
	})
	if err != nil {
		config.ExitErr("Error", err)
	}
}
