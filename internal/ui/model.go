package ui

import (
	"context"
	"log/slog"
	"slices"

	"crypto_dash/internal/domain"
	"crypto_dash/internal/export"
	"crypto_dash/internal/store"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
)

// Listing drives the table. Implemented by pagination.Controller.
type Listing interface {
	Load(ctx context.Context) bool
	SetQuery(ctx context.Context, text string) bool
	SetPageSize(ctx context.Context, size int) bool
	NextPage(ctx context.Context) bool
	PrevPage(ctx context.Context) bool
	ToggleWatch(id string) bool
	ShowWatchlist(ctx context.Context)
	ShowTable()
	ToggleTheme() domain.Theme
	PageSizes() []int
}

// Detail drives the detail view. Implemented by panel.Composer.
type Detail interface {
	Open(ctx context.Context, nav string)
	SwitchRange(ctx context.Context, rng domain.RangeKey) bool
}

// Messages.
type stateMsg struct{ state domain.DashboardState }

type exportedMsg struct {
	path string
	err  error
}

// Model is the bubbletea model. It holds the latest store snapshot and never writes
// the store itself: every controller call runs in a tea.Cmd, off the event loop.
type Model struct {
	ctx       context.Context
	listing   Listing
	detail    Detail
	renderer  *Renderer
	exportDir string
	logger    *slog.Logger

	state     domain.DashboardState
	cursor    int
	bindings  []Binding
	search    textinput.Model
	searching bool
	flash     string
}

// ModelOptions configures a Model.
type ModelOptions struct {
	Renderer  *Renderer
	ExportDir string
	Logger    *slog.Logger
}

// NewModel creates a model showing initial.
func NewModel(ctx context.Context, initial domain.DashboardState, listing Listing, detail Detail, opts ModelOptions) Model {
	if opts.Renderer == nil {
		opts.Renderer = NewRenderer()
	}
	if opts.ExportDir == "" {
		opts.ExportDir = "exports"
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	ti := textinput.New()
	ti.Placeholder = "symbol or name"
	ti.Prompt = "Search: "
	ti.CharLimit = 64

	return Model{
		ctx:       ctx,
		listing:   listing,
		detail:    detail,
		renderer:  opts.Renderer,
		exportDir: opts.ExportDir,
		logger:    opts.Logger.With("module", "ui"),
		state:     initial,
		bindings:  opts.Renderer.Render(initial, 0).Bindings,
		search:    ti,
	}
}

// Bindings returns the key table currently in effect.
func (m Model) Bindings() []Binding {
	return m.bindings
}

func (m Model) Init() tea.Cmd {
	return m.run(func(ctx context.Context) { m.listing.Load(ctx) })
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case stateMsg:
		if msg.state.View != m.state.View {
			m.cursor = 0
		}
		m.state = msg.state
		m.cursor = clampCursor(m.cursor, len(m.rows()))
		// Replace, never append: each frame brings its own binding table.
		m.bindings = m.renderer.Render(m.state, m.cursor).Bindings
		return m, nil

	case exportedMsg:
		if msg.err != nil {
			m.logger.Warn("Export failed", slog.Any("error", msg.err))
			m.flash = "export failed: " + msg.err.Error()
		} else {
			m.logger.Info("Exported series", slog.String("path", msg.path))
			m.flash = "exported " + msg.path
		}
		return m, nil

	case tea.KeyMsg:
		if m.searching {
			return m.updateSearch(msg)
		}
		if msg.String() == "ctrl+c" {
			return m, tea.Quit
		}
		for _, b := range m.bindings {
			if b.Key == msg.String() {
				m.flash = ""
				return m.dispatch(b.Action)
			}
		}
	}
	return m, nil
}

func (m Model) updateSearch(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "enter":
		m.searching = false
		m.search.Blur()
		m.cursor = 0
		text := m.search.Value()
		return m, m.run(func(ctx context.Context) { m.listing.SetQuery(ctx, text) })
	case "esc":
		m.searching = false
		m.search.Blur()
		return m, nil
	case "ctrl+c":
		return m, tea.Quit
	}
	var cmd tea.Cmd
	m.search, cmd = m.search.Update(msg)
	return m, cmd
}

func (m Model) dispatch(a Action) (tea.Model, tea.Cmd) {
	switch a {
	case ActionQuit:
		return m, tea.Quit
	case ActionUp:
		m.cursor = clampCursor(m.cursor-1, len(m.rows()))
	case ActionDown:
		m.cursor = clampCursor(m.cursor+1, len(m.rows()))
	case ActionOpen:
		if id := m.selectedID(); id != "" {
			return m, m.run(func(ctx context.Context) { m.detail.Open(ctx, id) })
		}
	case ActionBack:
		return m, m.run(func(context.Context) { m.listing.ShowTable() })
	case ActionNextPage:
		m.cursor = 0
		return m, m.run(func(ctx context.Context) { m.listing.NextPage(ctx) })
	case ActionPrevPage:
		m.cursor = 0
		return m, m.run(func(ctx context.Context) { m.listing.PrevPage(ctx) })
	case ActionSearch:
		m.searching = true
		m.search.SetValue(m.state.Query)
		return m, m.search.Focus()
	case ActionPageSize:
		size := nextPageSize(m.listing.PageSizes(), m.state.Pagination.PageSize)
		m.cursor = 0
		return m, m.run(func(ctx context.Context) { m.listing.SetPageSize(ctx, size) })
	case ActionWatch:
		if id := m.selectedID(); id != "" {
			return m, m.run(func(context.Context) { m.listing.ToggleWatch(id) })
		}
	case ActionWatchlist:
		return m, m.run(func(ctx context.Context) { m.listing.ShowWatchlist(ctx) })
	case ActionTheme:
		return m, m.run(func(context.Context) { m.listing.ToggleTheme() })
	case ActionRange1D:
		return m, m.switchRange(domain.Range1D)
	case ActionRange1Y:
		return m, m.switchRange(domain.Range1Y)
	case ActionRange10Y:
		return m, m.switchRange(domain.Range10Y)
	case ActionExportCSV:
		return m, m.export(export.FormatCSV)
	case ActionExportJSON:
		return m, m.export(export.FormatJSON)
	}
	return m, nil
}

func (m Model) switchRange(rng domain.RangeKey) tea.Cmd {
	return m.run(func(ctx context.Context) { m.detail.SwitchRange(ctx, rng) })
}

// export writes the series already on screen; it makes no network call.
func (m Model) export(f export.Format) tea.Cmd {
	d := m.state.Detail
	dir := m.exportDir
	return func() tea.Msg {
		path, err := export.WriteFile(dir, d.EntityID, d.Range, f, d.Series)
		return exportedMsg{path: path, err: err}
	}
}

func (m Model) run(f func(ctx context.Context)) tea.Cmd {
	ctx := m.ctx
	return func() tea.Msg {
		f(ctx)
		return nil
	}
}

func (m Model) rows() []domain.MarketEntry {
	if m.state.View == domain.ViewWatchlist {
		return m.state.WatchEntries
	}
	return m.state.Entries
}

func (m Model) selectedID() string {
	if m.state.View == domain.ViewDetail {
		return m.state.Detail.EntityID
	}
	rows := m.rows()
	if len(rows) == 0 {
		return ""
	}
	return rows[clampCursor(m.cursor, len(rows))].ID
}

func nextPageSize(sizes []int, current int) int {
	if len(sizes) == 0 {
		return current
	}
	i := slices.Index(sizes, current)
	return sizes[(i+1)%len(sizes)]
}

func (m Model) View() string {
	body := m.renderer.Render(m.state, m.cursor).Body
	if m.searching {
		body += "\n" + m.search.View()
	}
	if m.flash != "" {
		body += "\n" + paletteFor(m.state.Theme).warn.Render(m.flash)
	}
	return body
}

// Run starts the program and forwards every store change to it until ctx ends or the user quits.
func Run(ctx context.Context, st *store.Store, m Model) error {
	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx))

	sub := st.Subscribe(func(next domain.DashboardState, _ *store.Delta, _ domain.DashboardState) {
		p.Send(stateMsg{state: next})
	})
	defer sub.Unsubscribe()

	_, err := p.Run()
	if err != nil && ctx.Err() != nil {
		return nil
	}
	return err
}
