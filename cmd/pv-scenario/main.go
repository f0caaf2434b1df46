package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/iwvelando/pv-scenario/internal/cli"
)

func main() {
	// An interrupt cancels a running calculation; its results are discarded.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := cli.NewRootCmd().ExecuteContext(ctx)
	stop()
	if err != nil {
		os.Exit(1)
	}
}
