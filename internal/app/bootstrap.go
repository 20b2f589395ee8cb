package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/pprof"
	"sync"
	"time"

	"crypto_dash/internal/domain"
	"crypto_dash/internal/gateway"
	"crypto_dash/internal/infra"
	"crypto_dash/internal/infra/storage"
	"crypto_dash/internal/pagination"
	"crypto_dash/internal/panel"
	"crypto_dash/internal/store"
	"crypto_dash/internal/ui"
)

// Bootstrap orchestrates the application startup sequence
type Bootstrap struct {
	Config  *infra.Config
	Storage *storage.Storage
	Metrics *infra.Metrics
	Prom    *infra.PromRecorder
	Gateway *gateway.Gateway
	Store   *store.Store
	Icons   *infra.IconCache

	Listing  *pagination.Controller
	Composer *panel.Composer
}

// NewBootstrap creates a new Bootstrap instance
func NewBootstrap() *Bootstrap {
	return &Bootstrap{}
}

// Initialize loads the config at path and wires every component. A missing file
// falls back to defaults and the environment.
func (b *Bootstrap) Initialize(path string) error {
	// 1. Load Config
	cfg, err := infra.LoadConfig(path)
	if errors.Is(err, domain.ErrConfigNotFound) {
		cfg, err = infra.DefaultConfig()
	}
	if err != nil {
		return err // Let main handle the error
	}
	b.Config = cfg

	// 2. Setup Logger
	logger := infra.NewLogger(cfg)
	slog.SetDefault(logger)
	slog.Info("Bootstrapping crypto-dash", slog.String("config", path), slog.String("api", cfg.API.BaseURL))

	// 3. Initialize Storage (DB)
	db, err := storage.NewStorage(cfg.Storage.Path)
	if err != nil {
		return err
	}
	b.Storage = db
	slog.Info("Database initialized")

	// 4. Metrics and the backend gateway
	b.Metrics = infra.NewMetrics()
	b.Prom = infra.NewPromRecorder()
	gw, err := gateway.New(gateway.ConfigFrom(cfg.API),
		gateway.WithObserver(b.Metrics),
		gateway.WithObserver(b.Prom),
		gateway.WithLogger(logger),
	)
	if err != nil {
		return err
	}
	b.Gateway = gw

	// 5. Session state and the controllers writing into it
	initial := store.Default()
	initial.Theme = domain.ParseTheme(cfg.UI.Theme)
	initial.Pagination.PageSize = cfg.UI.PageSize
	initial.Detail.Range = domain.NormalizeRange(cfg.UI.DefaultRange, domain.Range1D)
	b.Store = store.New(initial)

	b.Listing = pagination.New(b.Store, gw, pagination.Options{
		PageSizes: cfg.UI.PageSizes,
		TopN:      cfg.UI.TopN,
		Prefs:     db,
		Logger:    logger,
	})
	b.Composer = panel.New(b.Store, gw, panel.Options{
		DefaultRange:     domain.RangeKey(cfg.UI.DefaultRange),
		ForecastLookback: cfg.UI.ForecastLookback,
		SentimentWindow:  cfg.UI.SentimentWindow,
		SentimentLimit:   cfg.UI.SentimentLimit,
		CacheObserver:    cacheObservers{b.Metrics, b.Prom},
		Logger:           logger,
	})

	// 6. Icon cache for the card accents
	icons, err := infra.NewIconCache(cfg.Storage.IconDir)
	if err != nil {
		// Cards render without accents.
		slog.Warn("Icon cache unavailable", slog.Any("error", err))
	} else {
		b.Icons = icons
		slog.Info("Icon cache ready")
	}

	return nil
}

// Close releases the database.
func (b *Bootstrap) Close() error {
	if b.Storage == nil {
		return nil
	}
	return b.Storage.Close()
}

// SyncAssets records the summary-card entries in the database and fetches their
// icons, once the first unfiltered page has been captured.
func (b *Bootstrap) SyncAssets(ctx context.Context) {
	top := b.Store.State().TopEntries
	if len(top) == 0 {
		return
	}
	slog.Info("Starting asset synchronization", slog.Int("entries", len(top)))

	symbols := make([]string, 0, len(top))
	for _, e := range top {
		if err := b.Storage.UpsertAsset(e); err != nil {
			slog.Error("Failed to upsert asset", slog.String("id", e.ID), slog.Any("error", err))
		}
		symbols = append(symbols, e.Symbol)
	}

	if b.Icons != nil {
		b.Icons.Warm(ctx, symbols)
	}
	slog.Info("Asset synchronization completed")
}

// syncOnCapture runs SyncAssets the first time TopEntries is captured.
func (b *Bootstrap) syncOnCapture(ctx context.Context) *store.Subscription {
	var once sync.Once
	return b.Store.Subscribe(func(next domain.DashboardState, delta *store.Delta, _ domain.DashboardState) {
		if !delta.Has("topCaptured") || !next.TopCaptured {
			return
		}
		once.Do(func() { go b.SyncAssets(ctx) })
	})
}

// Run restores saved preferences, starts the background workers and blocks in
// the terminal UI until the user quits or ctx is cancelled.
func (b *Bootstrap) Run(ctx context.Context) error {
	if err := b.Listing.Restore(); err != nil {
		slog.Warn("Failed to restore preferences", slog.Any("error", err))
	}

	capture := b.syncOnCapture(ctx)
	defer capture.Unsubscribe()

	if addr := b.Config.Debug.Addr; addr != "" {
		srv := b.debugServer(addr)
		go func() {
			slog.Info("Debug server started", slog.String("addr", addr))
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				slog.Error("Debug server failed", slog.Any("error", err))
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
	}

	if url := b.Config.Stream.WSURL; url != "" {
		stream := infra.NewTickerStream(url, b.Store, streamObservers{b.Metrics, b.Prom})
		if err := stream.Start(ctx); err != nil {
			slog.Error("Failed to start ticker stream", slog.Any("error", err))
		} else {
			defer stream.Stop()
			slog.Info("Ticker stream started", slog.String("url", url))
		}
	}

	opts := []ui.RendererOption{
		ui.WithStatus(b.Metrics),
		ui.WithSparkline(b.Config.UI.SparklinePoints, b.Config.UI.SparklineJitter),
	}
	if b.Icons != nil {
		opts = append(opts, ui.WithAccents(b.Icons))
	}

	m := ui.NewModel(ctx, b.Store.State(), b.Listing, b.Composer, ui.ModelOptions{
		Renderer:  ui.NewRenderer(opts...),
		ExportDir: b.Config.UI.ExportDir,
		Logger:    slog.Default(),
	})

	slog.Info("Dashboard running")
	if err := ui.Run(ctx, b.Store, m); err != nil {
		return fmt.Errorf("ui: %w", err)
	}
	return nil
}

// debugServer serves pprof and the Prometheus registry.
func (b *Bootstrap) debugServer(addr string) *http.Server {
	mux := http.NewServeMux()
	mux.HandleFunc("/debug/pprof/", pprof.Index)
	mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
	mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
	mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
	mux.HandleFunc("/debug/pprof/trace", pprof.Trace)
	mux.Handle("/metrics", b.Prom.Handler())
	return &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
}

// cacheObservers fans cache lookups out to every recorder.
type cacheObservers []panel.CacheObserver

func (c cacheObservers) ObserveCache(hit bool) {
	for _, o := range c {
		o.ObserveCache(hit)
	}
}

type streamObservers []infra.StreamObserver

func (s streamObservers) ObserveStream(connected bool) {
	for _, o := range s {
		o.ObserveStream(connected)
	}
}

func (s streamObservers) ObserveTick() {
	for _, o := range s {
		o.ObserveTick()
	}
}
