package main

import (
	"context"
	"log"
	"os"

	"github.com/dmitrijs2005/lanpos/internal/app"
	"github.com/dmitrijs2005/lanpos/internal/buildinfo"
	"github.com/dmitrijs2005/lanpos/internal/cli"
	"github.com/dmitrijs2005/lanpos/internal/config"
	"github.com/dmitrijs2005/lanpos/internal/logging"
)

// posctl runs a register with the operator console in the foreground.
func main() {

	buildinfo.PrintBuildData(os.Stdout)

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("%v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	app.InitSignalHandler(cancel)

	// logs go to stderr so they can be redirected away from the console
	logger := logging.NewJSON(os.Stderr, logging.ParseLevel(cfg.LogLevel))
	a, err := app.NewApp(ctx, cfg, logger)
	if err != nil {
		log.Fatalf("%v", err)
	}
	defer a.Close()

	go func() {
		if err := a.Run(ctx); err != nil {
			logger.Error(ctx, "background services stopped", "error", err)
		}
	}()

	var opts []cli.Option
	if a.Archiver != nil {
		opts = append(opts, cli.WithArchiver(a.Archiver))
	}
	cli.NewConsole(a.Coordination, a.Shifts, os.Stdin, os.Stdout, opts...).Run(ctx)
}
