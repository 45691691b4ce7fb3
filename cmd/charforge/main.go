package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	charforgecmd "github.com/louisbranch/charforge/internal/cmd/charforge"
	"github.com/louisbranch/charforge/internal/platform/config"
)

// main builds a character, runs a simulation or lists catalog entries.
func main() {
	cfg, err := charforgecmd.ParseConfig(flag.CommandLine, os.Args[1:])
	if err != nil {
		config.Exitf("Error: %v", err)
	}
	log.SetPrefix("[CHARFORGE] ")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := charforgecmd.Run(ctx, cfg, os.Stdout); err != nil {
		stop()
		config.ExitErr("Error", err)
	}
}
