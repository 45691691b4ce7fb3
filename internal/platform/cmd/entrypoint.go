// Package cmd holds the startup steps shared by the charforge binaries:
// configuration loading and the telemetry lifecycle around a run.
package cmd

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"strings"

	"github.com/louisbranch/charforge/internal/platform/config"
	"github.com/louisbranch/charforge/internal/platform/otel"
	"github.com/louisbranch/charforge/internal/platform/timeouts"
	otelapi "go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
)

// Service names, used for telemetry and log prefixes.
const (
	ServiceCharforge       = "charforge"
	ServiceCatalogImporter = "catalog-importer"
	ServiceMCP             = "mcp"
)

// ParseConfig loads the optional dotenv file and then environment defaults
// into cfg. Commands register their flags afterwards so that flags override
// the environment.
func ParseConfig[T any](cfg *T) error {
	if cfg == nil {
		return errors.New("config target is required")
	}
	if err := config.LoadDotEnv(); err != nil {
		return err
	}
	return config.ParseEnv(cfg)
}

// ParseArgs parses command-line flags.
func ParseArgs(fs *flag.FlagSet, args []string) error {
	if fs == nil {
		return errors.New("flag parser is required")
	}
	if args == nil {
		args = []string{}
	}
	return fs.Parse(args)
}

// RunWithTelemetry sets up tracing for service, runs run inside a root span
// and flushes the exporter on the way out.
func RunWithTelemetry(ctx context.Context, service string, run func(context.Context) error) error {
	service = strings.TrimSpace(service)
	if service == "" {
		return fmt.Errorf("service name is required")
	}
	if run == nil {
		return fmt.Errorf("run function is required")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	shutdown, err := otel.Setup(ctx, service)
	if err != nil {
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), timeouts.Shutdown)
		defer cancel()
		if err := shutdown(shutdownCtx); err != nil {
			log.Printf("%s otel shutdown: %v", service, err)
		}
	}()

	ctx, span := otelapi.Tracer("charforge/cmd").Start(ctx, service+".run")
	defer span.End()
	if err := run(ctx); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	return nil
}
