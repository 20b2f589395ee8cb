package store

import "crypto_dash/internal/domain"

// Delta is a partial DashboardState. Only fields that were set are replaced;
// replacement is shallow, so a set Detail swaps the whole DetailState.
type Delta struct {
	entries      *[]domain.MarketEntry
	totalEntries *int
	topEntries   *[]domain.MarketEntry
	topCaptured  *bool
	query        *string
	watchlist    *domain.Watchlist
	theme        *domain.Theme
	pagination   *domain.PaginationState
	view         *domain.View
	watchEntries *[]domain.MarketEntry
	detail       *domain.DetailState
	loading      *bool
	stream       *domain.StreamStatus
}

// NewDelta starts an empty delta.
func NewDelta() *Delta { return &Delta{} }

func (d *Delta) SetEntries(v []domain.MarketEntry) *Delta      { d.entries = &v; return d }
func (d *Delta) SetTotalEntries(v int) *Delta                  { d.totalEntries = &v; return d }
func (d *Delta) SetTopEntries(v []domain.MarketEntry) *Delta   { d.topEntries = &v; return d }
func (d *Delta) SetTopCaptured(v bool) *Delta                  { d.topCaptured = &v; return d }
func (d *Delta) SetQuery(v string) *Delta                      { d.query = &v; return d }
func (d *Delta) SetWatchlist(v domain.Watchlist) *Delta        { d.watchlist = &v; return d }
func (d *Delta) SetTheme(v domain.Theme) *Delta                { d.theme = &v; return d }
func (d *Delta) SetPagination(v domain.PaginationState) *Delta { d.pagination = &v; return d }
func (d *Delta) SetView(v domain.View) *Delta                  { d.view = &v; return d }
func (d *Delta) SetWatchEntries(v []domain.MarketEntry) *Delta { d.watchEntries = &v; return d }
func (d *Delta) SetDetail(v domain.DetailState) *Delta         { d.detail = &v; return d }
func (d *Delta) SetLoading(v bool) *Delta                      { d.loading = &v; return d }
func (d *Delta) SetStream(v domain.StreamStatus) *Delta        { d.stream = &v; return d }

// Empty reports whether the delta sets nothing. A nil delta is empty.
func (d *Delta) Empty() bool {
	return d == nil || len(d.Fields()) == 0
}

// Fields names the fields the delta sets, in DashboardState order.
func (d *Delta) Fields() []string {
	if d == nil {
		return nil
	}
	var out []string
	add := func(set bool, name string) {
		if set {
			out = append(out, name)
		}
	}
	add(d.entries != nil, "entries")
	add(d.totalEntries != nil, "totalEntries")
	add(d.topEntries != nil, "topEntries")
	add(d.topCaptured != nil, "topCaptured")
	add(d.query != nil, "query")
	add(d.watchlist != nil, "watchlist")
	add(d.theme != nil, "theme")
	add(d.pagination != nil, "pagination")
	add(d.view != nil, "view")
	add(d.watchEntries != nil, "watchEntries")
	add(d.detail != nil, "detail")
	add(d.loading != nil, "loading")
	add(d.stream != nil, "stream")
	return out
}

// Has reports whether the named field is set.
func (d *Delta) Has(field string) bool {
	for _, f := range d.Fields() {
		if f == field {
			return true
		}
	}
	return false
}

func (d *Delta) applyTo(s *domain.DashboardState) {
	if d.entries != nil {
		s.Entries = *d.entries
	}
	if d.totalEntries != nil {
		s.TotalEntries = *d.totalEntries
	}
	if d.topEntries != nil {
		s.TopEntries = *d.topEntries
	}
	if d.topCaptured != nil {
		s.TopCaptured = *d.topCaptured
	}
	if d.query != nil {
		s.Query = *d.query
	}
	if d.watchlist != nil {
		s.Watchlist = *d.watchlist
	}
	if d.theme != nil {
		s.Theme = *d.theme
	}
	if d.pagination != nil {
		s.Pagination = *d.pagination
	}
	if d.view != nil {
		s.View = *d.view
	}
	if d.watchEntries != nil {
		s.WatchEntries = *d.watchEntries
	}
	if d.detail != nil {
		s.Detail = *d.detail
	}
	if d.loading != nil {
		s.Loading = *d.loading
	}
	if d.stream != nil {
		s.Stream = *d.stream
	}
}
