package domain

import (
	"sort"
)

// Theme is the dashboard colour scheme.
type Theme string

const (
	ThemeLight Theme = "light"
	ThemeDark  Theme = "dark"
)

// Toggle returns the other theme.
func (t Theme) Toggle() Theme {
	if t == ThemeLight {
		return ThemeDark
	}
	return ThemeLight
}

// ParseTheme falls back to dark for anything it does not recognize.
func ParseTheme(s string) Theme {
	if Theme(s) == ThemeLight {
		return ThemeLight
	}
	return ThemeDark
}

// View is the screen currently shown.
type View int

const (
	ViewTable View = iota
	ViewWatchlist
	ViewDetail
)

func (v View) String() string {
	switch v {
	case ViewWatchlist:
		return "watchlist"
	case ViewDetail:
		return "detail"
	default:
		return "table"
	}
}

// DefaultPageSize is used until the user picks another size.
const DefaultPageSize = 50

// PaginationState is the table's position.
type PaginationState struct {
	PageSize    int
	CurrentPage int // 1-based
}

// TotalPages is max(1, ceil(total/pageSize)).
func TotalPages(total, pageSize int) int {
	if pageSize <= 0 || total <= 0 {
		return 1
	}
	return (total + pageSize - 1) / pageSize
}

// Clamp forces CurrentPage into [1, TotalPages(total)].
func (p PaginationState) Clamp(total int) PaginationState {
	last := TotalPages(total, p.PageSize)
	if p.CurrentPage < 1 {
		p.CurrentPage = 1
	}
	if p.CurrentPage > last {
		p.CurrentPage = last
	}
	return p
}

// Watchlist is a membership-only set of entry ids.
type Watchlist map[string]struct{}

// NewWatchlist builds a set from ids.
func NewWatchlist(ids ...string) Watchlist {
	w := make(Watchlist, len(ids))
	for _, id := range ids {
		w[id] = struct{}{}
	}
	return w
}

// Has reports membership. Safe on a nil set.
func (w Watchlist) Has(id string) bool {
	_, ok := w[id]
	return ok
}

// Clone copies the set. A nil set stays nil.
func (w Watchlist) Clone() Watchlist {
	if w == nil {
		return nil
	}
	out := make(Watchlist, len(w))
	for k := range w {
		out[k] = struct{}{}
	}
	return out
}

// With returns a copy that includes or excludes id.
func (w Watchlist) With(id string, member bool) Watchlist {
	out := make(Watchlist, len(w)+1)
	for k := range w {
		out[k] = struct{}{}
	}
	if member {
		out[id] = struct{}{}
	} else {
		delete(out, id)
	}
	return out
}

// IDs returns members sorted.
func (w Watchlist) IDs() []string {
	return sortedKeys(w)
}

// PanelStatus is the lifecycle of one detail panel.
type PanelStatus int

const (
	PanelIdle PanelStatus = iota
	PanelLoading
	PanelReady
	PanelUnavailable
)

func (s PanelStatus) String() string {
	switch s {
	case PanelLoading:
		return "loading"
	case PanelReady:
		return "ready"
	case PanelUnavailable:
		return "unavailable"
	default:
		return "idle"
	}
}

// DetailState is everything the detail view shows for one entity.
type DetailState struct {
	EntityID string
	Range    RangeKey
	// Generation increases on every Open; results from an older generation are dropped.
	Generation uint64

	Series       PriceSeries
	SeriesStatus PanelStatus

	Indicators       *Indicators
	IndicatorsStatus PanelStatus

	Forecast       *Forecast
	ForecastStatus PanelStatus

	// Sentiment, on-chain and signal settle together.
	Sentiment       *Sentiment
	SentimentStatus PanelStatus
	Onchain         *Onchain
	OnchainStatus   PanelStatus
	Signal          *Signal
	SignalStatus    PanelStatus
}

// StreamStatus describes the live ticker feed.
type StreamStatus struct {
	Enabled   bool
	Connected bool
	Ticks     uint64
}

// DashboardState is the single process-wide view model.
type DashboardState struct {
	Entries      []MarketEntry
	TotalEntries int
	TopEntries   []MarketEntry
	TopCaptured  bool
	Query        string
	Watchlist    Watchlist
	Theme        Theme

	Pagination   PaginationState
	View         View
	WatchEntries []MarketEntry
	Detail       DetailState
	Loading      bool
	Stream       StreamStatus
}

// TotalPages for the current state.
func (s DashboardState) TotalPages() int {
	return TotalPages(s.TotalEntries, s.Pagination.PageSize)
}

// Clone deep-copies the slices and maps so the copy can be handed to readers.
// Payload pointers inside Detail are shared; they are immutable once stored.
func (s DashboardState) Clone() DashboardState {
	out := s
	out.Entries = cloneEntries(s.Entries)
	out.TopEntries = cloneEntries(s.TopEntries)
	out.WatchEntries = cloneEntries(s.WatchEntries)
	out.Watchlist = s.Watchlist.Clone()
	return out
}

func cloneEntries(in []MarketEntry) []MarketEntry {
	if in == nil {
		return nil
	}
	out := make([]MarketEntry, len(in))
	copy(out, in)
	return out
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
