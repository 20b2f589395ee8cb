// Command export fetches one price series from the backend and writes it to disk
// in the same format as the dashboard's export keys.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"crypto_dash/internal/domain"
	"crypto_dash/internal/export"
	"crypto_dash/internal/gateway"
	"crypto_dash/internal/infra"
	"crypto_dash/internal/panel"
)

func main() {
	var (
		configPath = flag.String("config", "configs/config.yaml", "path to the YAML config file")
		symbol     = flag.String("symbol", "", "entity to export, e.g. BTC-USD or a detail URL")
		rng        = flag.String("range", "1d", "price range: 1d, 1y or 10y")
		format     = flag.String("format", "csv", "output format: csv or json")
		out        = flag.String("out", "", "output directory (default ui.export_dir)")
	)
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	path, err := run(ctx, *configPath, *symbol, *rng, *format, *out)
	if err != nil {
		fmt.Fprintf(os.Stderr, "export: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(path)
}

func run(ctx context.Context, configPath, symbol, rng, format, out string) (string, error) {
	if symbol == "" {
		return "", errors.New("-symbol is required")
	}
	id, ok := panel.ResolveEntity(symbol)
	if !ok {
		return "", fmt.Errorf("-symbol %q: %w", symbol, domain.ErrUnresolvedEntity)
	}
	f, err := export.ParseFormat(format)
	if err != nil {
		return "", err
	}
	key := domain.NormalizeRange(rng, "")
	if key == "" {
		return "", fmt.Errorf("unknown range %q", rng)
	}

	cfg, err := infra.LoadConfig(configPath)
	if errors.Is(err, domain.ErrConfigNotFound) {
		cfg, err = infra.DefaultConfig()
	}
	if err != nil {
		return "", err
	}
	logger := infra.NewLogger(cfg)
	slog.SetDefault(logger)

	gw, err := gateway.New(gateway.ConfigFrom(cfg.API), gateway.WithLogger(logger))
	if err != nil {
		return "", err
	}

	series := gw.FetchPriceSeries(ctx, id, key)
	if len(series) == 0 {
		return "", fmt.Errorf("no %s data for %s", key, id)
	}

	if out == "" {
		out = cfg.UI.ExportDir
	}
	path, err := export.WriteFile(out, id, key, f, series)
	if err != nil {
		return "", err
	}
	slog.Info("Exported series", slog.String("symbol", id), slog.String("range", string(key)),
		slog.Int("points", len(series)), slog.String("path", path))
	return path, nil
}
