package main

import (
	"context"
	"log"
	"os"

	"github.com/dmitrijs2005/lanpos/internal/app"
	"github.com/dmitrijs2005/lanpos/internal/buildinfo"
	"github.com/dmitrijs2005/lanpos/internal/config"
	"github.com/dmitrijs2005/lanpos/internal/logging"
)

func main() {

	buildinfo.PrintBuildData(os.Stdout)

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("%v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	app.InitSignalHandler(cancel)

	logger := logging.NewJSON(os.Stdout, logging.ParseLevel(cfg.LogLevel))
	a, err := app.NewApp(ctx, cfg, logger)
	if err != nil {
		log.Fatalf("%v", err)
	}
	defer a.Close()

	if err := a.Run(ctx); err != nil {
		logger.Error(ctx, "register stopped", "error", err)
	}
}
