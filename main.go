package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"intigra/internal/app"
	"intigra/internal/config"
	"intigra/internal/logger"
)

func main() {
	var root = &cobra.Command{
		Use:           "intigra",
		Short:         "Document question answering backend",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(serveCMD(), migrateCMD(), ingestCMD(), queryCMD())
	if err := root.Execute(); err != nil {
		slog.Error("command failed", "error", err)
		os.Exit(1)
	}
}

// setup loads config and installs the process logger.
func setup() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	slog.SetDefault(logger.New(os.Stdout, cfg.LogLevel))
	return cfg, nil
}

// build bootstraps infrastructure and wires the app. The returned cleanup
// releases everything build acquired.
func build(ctx context.Context, cfg *config.Config) (*app.App, func(), error) {
	deps, err := app.Bootstrap(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}
	prov, err := app.NewProviders(ctx, cfg)
	if err != nil {
		deps.Close()
		return nil, nil, err
	}

	var a *app.App
	if deps.NSQProducer != nil {
		a, err = app.New(cfg, deps.DB, deps.NSQProducer, prov)
	} else {
		a, err = app.New(cfg, deps.DB, nil, prov)
	}
	if err != nil {
		prov.Close()
		deps.Close()
		return nil, nil, err
	}

	cleanup := func() {
		a.Close()
		prov.Close()
		deps.Close()
	}
	return a, cleanup, nil
}

func run(ctx context.Context, cfg *config.Config) error {
	a, cleanup, err := build(ctx, cfg)
	if err != nil {
		return err
	}
	defer cleanup()
	return a.Run(ctx)
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}
