package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/gantryio/gantry/internal/app"
	"github.com/gantryio/gantry/internal/config"
	"github.com/gantryio/gantry/internal/logger"
	"github.com/gantryio/gantry/internal/version"
)

func main() {
	if len(os.Args) > 1 && os.Args[1] == "--version" {
		fmt.Println(version.Banner(true))
		os.Exit(0)
	}
	fmt.Println(version.Banner(false))

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log, cleanup, err := logger.New(&logger.Config{
		Level:      cfg.Logging.Level,
		LogDir:     cfg.Logging.LogDir,
		MaxSize:    cfg.Logging.MaxSize,
		MaxBackups: cfg.Logging.MaxBackups,
		MaxAge:     cfg.Logging.MaxAge,
		FileOutput: cfg.Logging.FileOutput,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialise logger: %v\n", err)
		os.Exit(1)
	}
	defer cleanup()
	slog.SetDefault(log)

	log.Info("initialising", "version", version.Version, "pid", os.Getpid(), "config", cfg.Filename)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	application, err := app.New(cfg, log)
	if err != nil {
		logger.FatalWithLogger(log, "failed to build gateway", "error", err)
	}

	errCh := make(chan error, 1)
	if err := application.Start(ctx, errCh); err != nil {
		logger.FatalWithLogger(log, "failed to start gateway", "error", err)
	}

	config.Watch(func(fresh *config.Config) {
		log.Info("configuration reloaded; pool settings apply to new pools",
			"config", fresh.Filename)
	})

	select {
	case sig := <-sigCh:
		log.Info("shutdown signal received", "signal", sig.String())
	case err := <-errCh:
		log.Error("gateway failed", "error", err)
	case <-ctx.Done():
	}

	cancel()
	application.Stop()
}
