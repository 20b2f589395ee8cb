package pagination

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"crypto_dash/internal/domain"
	"crypto_dash/internal/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type call struct {
	page, size int
	query      string
}

type fakeSource struct {
	mu      sync.Mutex
	entries []domain.MarketEntry
	calls   []call
	fail    bool
	gates   map[int]chan struct{} // page -> released when closed
}

func newFakeSource(n int) *fakeSource {
	entries := make([]domain.MarketEntry, n)
	for i := range entries {
		sym := fmt.Sprintf("C%03d-USD", i+1)
		entries[i] = domain.MarketEntry{
			ID:     sym,
			Symbol: sym,
			Name:   fmt.Sprintf("Coin %d", i+1),
			Price:  domain.KnownNum(float64(1000 - i)),
			Rank:   domain.Rank{Value: i + 1, Known: true},
		}
	}
	// One recognizable entry for query tests.
	entries[40].ID, entries[40].Symbol, entries[40].Name = "BTC-USD", "BTC-USD", "Bitcoin"
	return &fakeSource{entries: entries, gates: map[int]chan struct{}{}}
}

func (f *fakeSource) FetchEntriesPage(ctx context.Context, page, size int, query string) (domain.EntriesPage, bool) {
	f.mu.Lock()
	f.calls = append(f.calls, call{page, size, query})
	gate := f.gates[page]
	fail := f.fail
	f.mu.Unlock()

	if gate != nil {
		<-gate
	}
	if fail {
		return domain.EntriesPage{}, false
	}

	var matched []domain.MarketEntry
	for _, e := range f.entries {
		if query == "" || strings.Contains(strings.ToUpper(e.Symbol+e.Name), strings.ToUpper(query)) {
			matched = append(matched, e)
		}
	}
	start := (page - 1) * size
	if start > len(matched) {
		start = len(matched)
	}
	end := min(start+size, len(matched))
	return domain.EntriesPage{Entries: matched[start:end], Total: len(matched)}, true
}

func (f *fakeSource) FetchAllEntries(ctx context.Context, size int) []domain.MarketEntry {
	var all []domain.MarketEntry
	for page := 1; ; page++ {
		p, ok := f.FetchEntriesPage(ctx, page, size, "")
		if !ok || len(p.Entries) == 0 {
			return all
		}
		all = append(all, p.Entries...)
		if len(all) >= p.Total {
			return all
		}
	}
}

func (f *fakeSource) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

type memPrefs struct {
	watched map[string]bool
	values  map[string]string
}

func newMemPrefs() *memPrefs {
	return &memPrefs{watched: map[string]bool{}, values: map[string]string{}}
}

func (m *memPrefs) Watched() ([]string, error) {
	var ids []string
	for id, w := range m.watched {
		if w {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

func (m *memPrefs) SetWatched(id string, watched bool) error {
	m.watched[id] = watched
	return nil
}

func (m *memPrefs) Preference(key string) (string, bool, error) {
	v, ok := m.values[key]
	return v, ok, nil
}

func (m *memPrefs) SetPreference(key, value string) error {
	m.values[key] = value
	return nil
}

func setup(t *testing.T, n int) (*Controller, *store.Store, *fakeSource) {
	t.Helper()
	st := store.New(store.Default())
	src := newFakeSource(n)
	return New(st, src, Options{}), st, src
}

func TestTotalPages(t *testing.T) {
	assert.Equal(t, 3, TotalPages(137, 50))
	assert.Equal(t, 2, TotalPages(100, 50))
	assert.Equal(t, 1, TotalPages(0, 50))
	assert.Equal(t, 14, TotalPages(137, 10))
}

func TestLoad_FirstPage(t *testing.T) {
	c, st, _ := setup(t, 137)
	require.True(t, c.Load(context.Background()))

	s := st.State()
	assert.Len(t, s.Entries, 50)
	assert.Equal(t, 137, s.TotalEntries)
	assert.Equal(t, 3, s.TotalPages())
	assert.Equal(t, 1, s.Pagination.CurrentPage)
	assert.False(t, s.Loading)
	require.Len(t, s.TopEntries, DefaultTopN)
	assert.Equal(t, "C001-USD", s.TopEntries[0].ID)
}

func TestGoToPage_Bounds(t *testing.T) {
	ctx := context.Background()
	c, st, src := setup(t, 137)
	c.Load(ctx)

	require.True(t, c.GoToPage(ctx, 3))
	s := st.State()
	assert.Equal(t, 3, s.Pagination.CurrentPage)
	assert.Len(t, s.Entries, 37)

	calls := src.callCount()
	assert.False(t, c.GoToPage(ctx, 4))
	assert.False(t, c.GoToPage(ctx, 0))
	assert.Equal(t, calls, src.callCount(), "out-of-range pages must not fetch")
	assert.Equal(t, 3, st.State().Pagination.CurrentPage)

	assert.False(t, c.NextPage(ctx))
	assert.True(t, c.PrevPage(ctx))
	assert.Equal(t, 2, st.State().Pagination.CurrentPage)
}

func TestSetQuery_ResetsToFirstPage(t *testing.T) {
	ctx := context.Background()
	c, st, src := setup(t, 137)
	c.Load(ctx)
	c.GoToPage(ctx, 2)

	require.True(t, c.SetQuery(ctx, "  BTC "))

	s := st.State()
	assert.Equal(t, "BTC", s.Query)
	assert.Equal(t, 1, s.Pagination.CurrentPage)
	require.Len(t, s.Entries, 1)
	assert.Equal(t, "BTC-USD", s.Entries[0].ID)
	assert.Equal(t, 1, s.TotalEntries)

	last := src.calls[len(src.calls)-1]
	assert.Equal(t, call{page: 1, size: 50, query: "BTC"}, last)
}

func TestSetPageSize(t *testing.T) {
	ctx := context.Background()
	prefs := newMemPrefs()
	st := store.New(store.Default())
	c := New(st, newFakeSource(137), Options{Prefs: prefs})
	c.Load(ctx)
	c.GoToPage(ctx, 3)

	require.True(t, c.SetPageSize(ctx, 10))
	s := st.State()
	assert.Equal(t, domain.PaginationState{PageSize: 10, CurrentPage: 1}, s.Pagination)
	assert.Len(t, s.Entries, 10)
	assert.Equal(t, 14, s.TotalPages())
	assert.Equal(t, "10", prefs.values[domain.PrefPageSize])

	assert.False(t, c.SetPageSize(ctx, 25))
	assert.Equal(t, 10, st.State().Pagination.PageSize)
}

func TestTopEntries_StableAcrossPagingAndQueries(t *testing.T) {
	ctx := context.Background()
	c, st, _ := setup(t, 137)
	c.Load(ctx)
	top := st.State().TopEntries

	c.GoToPage(ctx, 2)
	c.SetQuery(ctx, "BTC")
	c.SetQuery(ctx, "")
	c.SetPageSize(ctx, 100)

	assert.Equal(t, top, st.State().TopEntries)
}

func TestTopEntries_NotCapturedFromFilteredLoad(t *testing.T) {
	ctx := context.Background()
	c, st, _ := setup(t, 137)

	c.SetQuery(ctx, "BTC")
	assert.False(t, st.State().TopCaptured)

	c.SetQuery(ctx, "")
	s := st.State()
	assert.True(t, s.TopCaptured)
	assert.Equal(t, "C001-USD", s.TopEntries[0].ID)
}

func TestFetchFailure_KeepsRows(t *testing.T) {
	ctx := context.Background()
	c, st, src := setup(t, 137)
	c.Load(ctx)
	before := st.State().Entries

	src.fail = true
	assert.False(t, c.Load(ctx))

	s := st.State()
	assert.Equal(t, before, s.Entries)
	assert.False(t, s.Loading)
}

func TestOutOfOrderResponses_RowsMatchPage(t *testing.T) {
	ctx := context.Background()
	c, st, src := setup(t, 137)
	c.Load(ctx)

	gate := make(chan struct{})
	src.mu.Lock()
	src.gates[2] = gate
	src.mu.Unlock()

	done := make(chan struct{})
	go func() {
		defer close(done)
		c.GoToPage(ctx, 2)
	}()

	// Wait until the page-2 request is in flight.
	require.Eventually(t, func() bool { return src.callCount() == 2 }, time.Second, time.Millisecond)
	assert.True(t, st.State().Loading)

	c.GoToPage(ctx, 3)
	assert.Equal(t, 3, st.State().Pagination.CurrentPage)
	assert.True(t, st.State().Loading, "page 2 is still outstanding")

	close(gate)
	<-done

	s := st.State()
	assert.False(t, s.Loading)
	assert.Equal(t, 2, s.Pagination.CurrentPage)
	assert.Equal(t, "C051-USD", s.Entries[0].ID, "rows belong to the page shown")
}

func TestToggleWatch_PersistsAndRestores(t *testing.T) {
	ctx := context.Background()
	prefs := newMemPrefs()
	st := store.New(store.Default())
	src := newFakeSource(137)
	c := New(st, src, Options{Prefs: prefs})

	assert.True(t, c.ToggleWatch("BTC-USD"))
	assert.True(t, c.ToggleWatch("C002-USD"))
	assert.False(t, c.ToggleWatch("C002-USD"))
	assert.Equal(t, []string{"BTC-USD"}, st.State().Watchlist.IDs())
	assert.Equal(t, domain.ThemeLight, c.ToggleTheme())

	fresh := store.New(store.Default())
	c2 := New(fresh, src, Options{Prefs: prefs})
	require.NoError(t, c2.Restore())

	s := fresh.State()
	assert.Equal(t, []string{"BTC-USD"}, s.Watchlist.IDs())
	assert.Equal(t, domain.ThemeLight, s.Theme)

	c2.ShowWatchlist(ctx)
	s = fresh.State()
	assert.Equal(t, domain.ViewWatchlist, s.View)
	require.Len(t, s.WatchEntries, 1)
	assert.Equal(t, "BTC-USD", s.WatchEntries[0].ID)

	c2.ToggleWatch("BTC-USD")
	assert.Empty(t, fresh.State().WatchEntries)

	c2.ShowTable()
	assert.Equal(t, domain.ViewTable, fresh.State().View)
}

func TestRestore_IgnoresDisallowedPageSize(t *testing.T) {
	prefs := newMemPrefs()
	prefs.values[domain.PrefPageSize] = "100"
	st := store.New(store.Default())
	c := New(st, newFakeSource(10), Options{Prefs: prefs})
	require.NoError(t, c.Restore())
	assert.Equal(t, 100, st.State().Pagination.PageSize)

	prefs.values[domain.PrefPageSize] = "7"
	st = store.New(store.Default())
	c = New(st, newFakeSource(10), Options{Prefs: prefs})
	require.NoError(t, c.Restore())
	assert.Equal(t, domain.DefaultPageSize, st.State().Pagination.PageSize)
}

func TestSupersededResponses_Discarded(t *testing.T) {
	cases := []struct {
		name     string
		change   func(ctx context.Context, c *Controller)
		wantSize int
		wantIDs  int
		wantTop  string
	}{
		{"page size", func(ctx context.Context, c *Controller) { c.SetPageSize(ctx, 10) }, 10, 10, "C001-USD"},
		{"query", func(ctx context.Context, c *Controller) { c.SetQuery(ctx, "bitcoin") }, 50, 1, "BTC-USD"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			ctx := context.Background()
			c, st, src := setup(t, 137)
			c.Load(ctx)

			gate := make(chan struct{})
			src.mu.Lock()
			src.gates[3] = gate
			src.mu.Unlock()

			done := make(chan struct{})
			go func() {
				defer close(done)
				c.GoToPage(ctx, 3)
			}()
			require.Eventually(t, func() bool { return src.callCount() == 2 }, time.Second, time.Millisecond)

			tc.change(ctx, c)
			close(gate)
			<-done

			s := st.State()
			assert.False(t, s.Loading)
			assert.Equal(t, tc.wantSize, s.Pagination.PageSize)
			assert.Equal(t, 1, s.Pagination.CurrentPage, "the late page-3 response must not move the pager")
			require.Len(t, s.Entries, tc.wantIDs)
			assert.Equal(t, tc.wantTop, s.Entries[0].ID)
		})
	}
}
