package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/FAForever/rating-server/app"
	"github.com/FAForever/rating-server/config"
)

func main() {
	configFile := flag.String("config", "config.yaml", "Path to the configuration file")
	flag.Parse()

	cfg, err := config.LoadConfig(*configFile)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	application, err := app.NewApp(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to initialize app: %v", err)
	}

	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-interrupt
		application.Logger.Info("Shutdown signal received")
		cancel()
	}()

	if err := application.Run(ctx); err != nil && err != context.Canceled {
		application.Logger.Error("Application stopped with error", "error", err)
	}

	// Drain the rating queue before releasing connections; jobs already
	// accepted must not be lost by a clean shutdown.
	drainCtx, drainCancel := context.WithTimeout(context.Background(), cfg.Rating.DrainTimeout)
	defer drainCancel()
	application.Close(drainCtx)

	application.Logger.Info("Application shut down gracefully")
}
