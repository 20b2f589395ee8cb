package pagination

import (
	"context"
	"log/slog"
	"slices"
	"strconv"
	"strings"
	"sync/atomic"

	"crypto_dash/internal/domain"
	"crypto_dash/internal/store"
)

// EntriesSource is the part of the gateway the controller drives.
type EntriesSource interface {
	FetchEntriesPage(ctx context.Context, page, pageSize int, query string) (domain.EntriesPage, bool)
	FetchAllEntries(ctx context.Context, pageSize int) []domain.MarketEntry
}

// Prefs persists user choices across sessions.
type Prefs interface {
	Watched() ([]string, error)
	SetWatched(id string, watched bool) error
	Preference(key string) (string, bool, error)
	SetPreference(key, value string) error
}

// DefaultPageSizes are the selectable page sizes.
var DefaultPageSizes = []int{10, 50, 100}

// DefaultTopN is how many entries the summary cards show.
const DefaultTopN = 5

// Options configures a Controller. Zero values take the defaults.
type Options struct {
	PageSizes []int
	TopN      int
	Prefs     Prefs // optional
	Logger    *slog.Logger
}

// Controller owns page, page size and query, and drives listing fetches.
// All state lives in the store; the controller keeps only an in-flight counter.
type Controller struct {
	st     *store.Store
	src    EntriesSource
	opts   Options
	logger *slog.Logger

	inflight atomic.Int32
}

// New creates a controller writing into st.
func New(st *store.Store, src EntriesSource, opts Options) *Controller {
	if len(opts.PageSizes) == 0 {
		opts.PageSizes = DefaultPageSizes
	}
	if opts.TopN <= 0 {
		opts.TopN = DefaultTopN
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Controller{
		st:     st,
		src:    src,
		opts:   opts,
		logger: logger.With("module", "pagination"),
	}
}

// TotalPages is max(1, ceil(total/size)).
func TotalPages(total, size int) int {
	return domain.TotalPages(total, size)
}

// PageSizes returns the allowed page sizes.
func (c *Controller) PageSizes() []int {
	return slices.Clone(c.opts.PageSizes)
}

// Load fetches the current page with the current query.
func (c *Controller) Load(ctx context.Context) bool {
	s := c.st.State()
	return c.fetch(ctx, s.Pagination.CurrentPage, s.Pagination.PageSize, s.Query)
}

// SetQuery resets to page 1 and fetches it with text as the filter.
func (c *Controller) SetQuery(ctx context.Context, text string) bool {
	text = strings.TrimSpace(text)
	var size int
	c.st.Apply(func(prev domain.DashboardState) *store.Delta {
		p := prev.Pagination
		p.CurrentPage = 1
		size = p.PageSize
		return store.NewDelta().SetQuery(text).SetPagination(p).SetView(domain.ViewTable)
	})
	return c.fetch(ctx, 1, size, text)
}

// SetPageSize switches to size, resets to page 1 and re-fetches.
// A size outside the allowed set is rejected and changes nothing.
func (c *Controller) SetPageSize(ctx context.Context, size int) bool {
	if !slices.Contains(c.opts.PageSizes, size) {
		return false
	}

	var query string
	c.st.Apply(func(prev domain.DashboardState) *store.Delta {
		query = prev.Query
		return store.NewDelta().SetPagination(domain.PaginationState{PageSize: size, CurrentPage: 1})
	})
	c.persist(domain.PrefPageSize, strconv.Itoa(size))

	c.fetch(ctx, 1, size, query)
	return true
}

// GoToPage fetches page n if it is within the latest page bounds.
// Out-of-range requests are ignored and return false.
func (c *Controller) GoToPage(ctx context.Context, n int) bool {
	s := c.st.State()
	if n < 1 || n > s.TotalPages() {
		return false
	}
	c.fetch(ctx, n, s.Pagination.PageSize, s.Query)
	return true
}

// NextPage moves forward one page if there is one.
func (c *Controller) NextPage(ctx context.Context) bool {
	return c.GoToPage(ctx, c.st.State().Pagination.CurrentPage+1)
}

// PrevPage moves back one page if there is one.
func (c *Controller) PrevPage(ctx context.Context) bool {
	return c.GoToPage(ctx, c.st.State().Pagination.CurrentPage-1)
}

// fetch issues one listing request and writes its result in a single patch.
// The page written is the response's own page clamped against the response's total,
// so rows and page number always describe the same fetch even when responses
// complete out of order. A response whose page size or query no longer matches the
// store only settles Loading.
func (c *Controller) fetch(ctx context.Context, page, size int, query string) bool {
	c.begin()
	result, ok := c.src.FetchEntriesPage(ctx, page, size, query)
	if !ok {
		c.logger.Warn("Listing fetch failed, keeping current rows",
			slog.Int("page", page),
			slog.Int("page_size", size),
			slog.String("query", query),
		)
		c.end()
		return false
	}

	c.st.Apply(func(prev domain.DashboardState) *store.Delta {
		d := store.NewDelta().SetLoading(c.inflight.Add(-1) > 0)

		// A response for another page size or query was superseded while in flight.
		if size != prev.Pagination.PageSize || query != prev.Query {
			c.logger.Debug("Discarding superseded listing page",
				slog.Int("page", page),
				slog.Int("page_size", size),
				slog.String("query", query),
			)
		} else {
			p := domain.PaginationState{PageSize: size, CurrentPage: page}
			d.SetEntries(result.Entries).
				SetTotalEntries(result.Total).
				SetPagination(p.Clamp(result.Total))
		}

		// Summary cards come from the first unfiltered page 1 and never change after.
		if page == 1 && query == "" && !prev.TopCaptured && len(result.Entries) > 0 {
			d.SetTopEntries(domain.TopByRank(result.Entries, c.opts.TopN)).SetTopCaptured(true)
		}
		return d
	})
	return true
}

func (c *Controller) begin() {
	c.inflight.Add(1)
	c.st.Apply(func(prev domain.DashboardState) *store.Delta {
		if prev.Loading {
			return nil
		}
		return store.NewDelta().SetLoading(true)
	})
}

func (c *Controller) end() {
	c.st.Apply(func(prev domain.DashboardState) *store.Delta {
		loading := c.inflight.Add(-1) > 0
		if prev.Loading == loading {
			return nil
		}
		return store.NewDelta().SetLoading(loading)
	})
}

// ToggleWatch flips id's watchlist membership and returns the new membership.
func (c *Controller) ToggleWatch(id string) bool {
	if id == "" {
		return false
	}
	var member bool
	c.st.Apply(func(prev domain.DashboardState) *store.Delta {
		member = !prev.Watchlist.Has(id)
		d := store.NewDelta().SetWatchlist(prev.Watchlist.With(id, member))
		if !member && prev.View == domain.ViewWatchlist {
			d.SetWatchEntries(slices.DeleteFunc(slices.Clone(prev.WatchEntries), func(e domain.MarketEntry) bool {
				return e.ID == id
			}))
		}
		return d
	})

	if c.opts.Prefs != nil {
		if err := c.opts.Prefs.SetWatched(id, member); err != nil {
			c.logger.Warn("Failed to persist watchlist", slog.String("id", id), slog.Any("error", err))
		}
	}
	return member
}

// ShowWatchlist resolves the watchlist against the full listing and switches to it.
func (c *Controller) ShowWatchlist(ctx context.Context) {
	c.st.Patch(store.NewDelta().SetView(domain.ViewWatchlist))
	c.begin()

	all := c.src.FetchAllEntries(ctx, slices.Max(c.opts.PageSizes))

	c.st.Apply(func(prev domain.DashboardState) *store.Delta {
		watched := make([]domain.MarketEntry, 0, len(prev.Watchlist))
		for _, e := range all {
			if prev.Watchlist.Has(e.ID) {
				watched = append(watched, e)
			}
		}
		return store.NewDelta().SetWatchEntries(watched).SetLoading(c.inflight.Add(-1) > 0)
	})
}

// ShowTable returns to the paginated table.
func (c *Controller) ShowTable() {
	c.st.Patch(store.NewDelta().SetView(domain.ViewTable))
}

// ToggleTheme switches between light and dark.
func (c *Controller) ToggleTheme() domain.Theme {
	var next domain.Theme
	c.st.Apply(func(prev domain.DashboardState) *store.Delta {
		next = prev.Theme.Toggle()
		return store.NewDelta().SetTheme(next)
	})
	c.persist(domain.PrefTheme, string(next))
	return next
}

// Restore loads watchlist, theme and page size saved by an earlier session.
// It must run before Load so the first fetch uses the saved page size.
func (c *Controller) Restore() error {
	prefs := c.opts.Prefs
	if prefs == nil {
		return nil
	}

	ids, err := prefs.Watched()
	if err != nil {
		return err
	}
	d := store.NewDelta().SetWatchlist(domain.NewWatchlist(ids...))

	if v, ok, err := prefs.Preference(domain.PrefTheme); err != nil {
		return err
	} else if ok {
		d.SetTheme(domain.ParseTheme(v))
	}

	if v, ok, err := prefs.Preference(domain.PrefPageSize); err != nil {
		return err
	} else if ok {
		if size, convErr := strconv.Atoi(v); convErr == nil && slices.Contains(c.opts.PageSizes, size) {
			d.SetPagination(domain.PaginationState{PageSize: size, CurrentPage: 1})
		}
	}

	c.st.Patch(d)
	c.logger.Info("Restored preferences", slog.Int("watched", len(ids)))
	return nil
}

func (c *Controller) persist(key, value string) {
	if c.opts.Prefs == nil {
		return
	}
	if err := c.opts.Prefs.SetPreference(key, value); err != nil {
		c.logger.Warn("Failed to persist preference", slog.String("key", key), slog.Any("error", err))
	}
}
