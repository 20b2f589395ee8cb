package panel

import (
	"context"
	"log/slog"
	"net/url"
	"slices"
	"strings"
	"sync"

	"crypto_dash/internal/domain"
	"crypto_dash/internal/store"

	"golang.org/x/sync/singleflight"
)

// PanelSource is the part of the gateway the detail view needs.
type PanelSource interface {
	FetchPriceSeries(ctx context.Context, id string, rng domain.RangeKey) domain.PriceSeries
	FetchIndicators(ctx context.Context, id string) *domain.Indicators
	FetchForecast(ctx context.Context, id string, lookback int) *domain.Forecast
	FetchSentiment(ctx context.Context, id, window string, limit int) *domain.Sentiment
	FetchOnchain(ctx context.Context, id string) *domain.Onchain
	FetchSignal(ctx context.Context, id string) *domain.Signal
}

// Options configures the detail fetches. Zero values take the defaults.
type Options struct {
	DefaultRange     domain.RangeKey
	ForecastLookback int
	SentimentWindow  string
	SentimentLimit   int
	CacheObserver    CacheObserver // optional
	Logger           *slog.Logger
}

func (o *Options) setDefaults() {
	o.DefaultRange = domain.NormalizeRange(string(o.DefaultRange), domain.Range1D)
	if o.ForecastLookback <= 0 {
		o.ForecastLookback = 30
	}
	if o.SentimentWindow == "" {
		o.SentimentWindow = "1d"
	}
	if o.SentimentLimit <= 0 {
		o.SentimentLimit = 30
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
}

// Composer fills the detail view for one entity. Each panel is fetched on its own and
// written to the store as soon as it settles; a failed panel never blocks the others.
type Composer struct {
	st     *store.Store
	src    PanelSource
	opts   Options
	logger *slog.Logger

	cache  *RangeCache
	flight singleflight.Group
}

// New creates a composer writing into st.
func New(st *store.Store, src PanelSource, opts Options) *Composer {
	opts.setDefaults()
	return &Composer{
		st:     st,
		src:    src,
		opts:   opts,
		logger: opts.Logger.With("module", "panel"),
		cache:  NewRangeCache(""),
	}
}

// Cache exposes the range cache for status display.
func (c *Composer) Cache() *RangeCache {
	return c.cache
}

// ResolveEntity extracts the entity id from a navigation string: a bare id, a URL or
// path with a symbol, id or s query parameter, or else the last path segment.
func ResolveEntity(nav string) (string, bool) {
	nav = strings.TrimSpace(nav)
	if nav == "" {
		return "", false
	}
	if !strings.ContainsAny(nav, "/?#") {
		return nav, true
	}

	u, err := url.Parse(nav)
	if err != nil {
		return "", false
	}
	// A parameter that is present names the entity, even when it is blank.
	q := u.Query()
	present := false
	for _, key := range []string{"symbol", "id", "s"} {
		if !q.Has(key) {
			continue
		}
		present = true
		if v := strings.TrimSpace(q.Get(key)); v != "" {
			return v, true
		}
	}
	if present {
		return "", false
	}

	segments := strings.Split(strings.Trim(u.Path, "/"), "/")
	last := strings.TrimSpace(segments[len(segments)-1])
	if last == "" {
		return "", false
	}
	return last, true
}

// Open shows the detail view for nav and returns once every panel has settled.
func (c *Composer) Open(ctx context.Context, nav string) {
	id, ok := ResolveEntity(nav)
	if !ok {
		c.logger.Warn("Unresolvable detail target", slog.String("nav", nav), slog.Any("error", domain.ErrUnresolvedEntity))
		c.st.Apply(func(prev domain.DashboardState) *store.Delta {
			return store.NewDelta().SetView(domain.ViewDetail).SetDetail(domain.DetailState{
				Range:            c.opts.DefaultRange,
				Generation:       prev.Detail.Generation + 1,
				SeriesStatus:     domain.PanelUnavailable,
				IndicatorsStatus: domain.PanelUnavailable,
				ForecastStatus:   domain.PanelUnavailable,
				SentimentStatus:  domain.PanelUnavailable,
				OnchainStatus:    domain.PanelUnavailable,
				SignalStatus:     domain.PanelUnavailable,
			})
		})
		return
	}

	if c.cache.Entity() != id {
		c.cache.Reset(id)
	}

	rng := c.opts.DefaultRange
	var gen uint64
	c.st.Apply(func(prev domain.DashboardState) *store.Delta {
		gen = prev.Detail.Generation + 1
		return store.NewDelta().SetView(domain.ViewDetail).SetDetail(domain.DetailState{
			EntityID:         id,
			Range:            rng,
			Generation:       gen,
			SeriesStatus:     domain.PanelLoading,
			IndicatorsStatus: domain.PanelLoading,
			ForecastStatus:   domain.PanelLoading,
			SentimentStatus:  domain.PanelLoading,
			OnchainStatus:    domain.PanelLoading,
			SignalStatus:     domain.PanelLoading,
		})
	})
	c.logger.Debug("Opening detail", slog.String("id", id), slog.Uint64("generation", gen))

	var wg sync.WaitGroup
	wg.Add(4)
	go func() {
		defer wg.Done()
		c.loadSeries(ctx, gen, id, rng)
	}()
	go func() {
		defer wg.Done()
		ind := c.src.FetchIndicators(ctx, id)
		c.update(gen, id, func(d *domain.DetailState) bool {
			d.Indicators, d.IndicatorsStatus = ind, status(ind != nil)
			return true
		})
	}()
	go func() {
		defer wg.Done()
		fc := c.src.FetchForecast(ctx, id, c.opts.ForecastLookback)
		c.update(gen, id, func(d *domain.DetailState) bool {
			d.Forecast, d.ForecastStatus = fc, status(fc != nil)
			return true
		})
	}()
	go func() {
		defer wg.Done()
		s, o, sig := Join3(
			func() *domain.Sentiment {
				return c.src.FetchSentiment(ctx, id, c.opts.SentimentWindow, c.opts.SentimentLimit)
			},
			func() *domain.Onchain { return c.src.FetchOnchain(ctx, id) },
			func() *domain.Signal { return c.src.FetchSignal(ctx, id) },
		)
		c.update(gen, id, func(d *domain.DetailState) bool {
			d.Sentiment, d.SentimentStatus = s, status(s != nil)
			d.Onchain, d.OnchainStatus = o, status(o != nil)
			d.Signal, d.SignalStatus = sig, status(sig != nil)
			return true
		})
	}()
	wg.Wait()
}

// SwitchRange re-runs only the price series for the displayed entity.
// It reports false when no entity is shown or rng is not a supported range.
func (c *Composer) SwitchRange(ctx context.Context, rng domain.RangeKey) bool {
	if !slices.Contains(domain.Ranges, rng) {
		return false
	}
	cur := c.st.State().Detail
	id, gen := cur.EntityID, cur.Generation
	if id == "" {
		return false
	}

	if s, hit := c.lookup(id, rng); hit {
		c.update(gen, id, func(d *domain.DetailState) bool {
			d.Range, d.Series, d.SeriesStatus = rng, s, domain.PanelReady
			return true
		})
		return true
	}

	c.update(gen, id, func(d *domain.DetailState) bool {
		d.Range, d.Series, d.SeriesStatus = rng, nil, domain.PanelLoading
		return true
	})
	c.settleSeries(gen, id, rng, c.fetch(ctx, id, rng))
	return true
}

func (c *Composer) loadSeries(ctx context.Context, gen uint64, id string, rng domain.RangeKey) {
	s, hit := c.lookup(id, rng)
	if !hit {
		s = c.fetch(ctx, id, rng)
	}
	c.settleSeries(gen, id, rng, s)
}

// settleSeries writes series unless the user has switched to another range meanwhile.
func (c *Composer) settleSeries(gen uint64, id string, rng domain.RangeKey, series domain.PriceSeries) {
	c.update(gen, id, func(d *domain.DetailState) bool {
		if d.Range != rng {
			return false
		}
		d.Series, d.SeriesStatus = series, status(len(series) > 0)
		return true
	})
}

func (c *Composer) lookup(id string, rng domain.RangeKey) (domain.PriceSeries, bool) {
	s, hit := c.cache.Get(id, rng)
	if obs := c.opts.CacheObserver; obs != nil {
		obs.ObserveCache(hit)
	}
	return s, hit
}

// fetch collapses concurrent misses for the same key into one call.
// Empty results are not cached so a later visit retries.
func (c *Composer) fetch(ctx context.Context, id string, rng domain.RangeKey) domain.PriceSeries {
	v, _, _ := c.flight.Do(id+"|"+string(rng), func() (any, error) {
		if s, ok := c.cache.peek(id, rng); ok {
			return s, nil
		}
		s := c.src.FetchPriceSeries(ctx, id, rng)
		if len(s) > 0 {
			c.cache.Put(id, rng, s)
		}
		return s, nil
	})
	return v.(domain.PriceSeries)
}

// update patches the detail state unless the user has since opened something else.
// fn returns false to leave the state alone.
func (c *Composer) update(gen uint64, id string, fn func(*domain.DetailState) bool) {
	c.st.Apply(func(prev domain.DashboardState) *store.Delta {
		if prev.Detail.Generation != gen || prev.Detail.EntityID != id {
			c.logger.Debug("Dropping stale panel result", slog.String("id", id), slog.Uint64("generation", gen))
			return nil
		}
		d := prev.Detail
		if !fn(&d) {
			return nil
		}
		return store.NewDelta().SetDetail(d)
	})
}

func status(ok bool) domain.PanelStatus {
	if ok {
		return domain.PanelReady
	}
	return domain.PanelUnavailable
}
