package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"crypto_dash/internal/app"
)

func main() {
	configPath := flag.String("config", "configs/config.yaml", "path to the YAML config file")
	flag.Parse()

	// 1. System Bootstrapping
	bootstrap := app.NewBootstrap()
	if err := bootstrap.Initialize(*configPath); err != nil {
		// The logger may not exist yet, and the UI has not taken the terminal.
		fmt.Fprintf(os.Stderr, "bootstrapping failed: %v\n", err)
		os.Exit(1)
	}
	defer bootstrap.Close()

	// 2. Graceful Shutdown Context
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 3. Dashboard (blocks until quit)
	if err := bootstrap.Run(ctx); err != nil {
		slog.Error("Dashboard exited with error", slog.Any("error", err))
		fmt.Fprintf(os.Stderr, "%v\n", err)
		bootstrap.Close()
		os.Exit(1)
	}

	slog.Info("Shutting down gracefully")
}
