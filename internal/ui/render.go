package ui

import (
	"fmt"
	"math/rand/v2"
	"slices"
	"strings"
	"time"

	"crypto_dash/internal/domain"
	"crypto_dash/internal/format"
	"crypto_dash/internal/infra"
	"crypto_dash/internal/panel"

	"github.com/charmbracelet/lipgloss"
)

// Action is what a key binding does.
type Action int

const (
	ActionQuit Action = iota
	ActionUp
	ActionDown
	ActionOpen
	ActionBack
	ActionNextPage
	ActionPrevPage
	ActionSearch
	ActionPageSize
	ActionWatch
	ActionWatchlist
	ActionTheme
	ActionRange1D
	ActionRange1Y
	ActionRange10Y
	ActionExportCSV
	ActionExportJSON
)

// Binding maps a key to an action.
type Binding struct {
	Key    string
	Help   string
	Action Action
}

// View is one rendered frame and the key bindings valid for it.
type View struct {
	Body     string
	Bindings []Binding
}

// AccentSource supplies an icon colour per symbol.
type AccentSource interface {
	Accent(symbol string) (string, bool)
}

// StatusSource supplies gateway and stream counters for the status bar.
type StatusSource interface {
	Snapshot() infra.MetricsSnapshot
}

// RendererOption configures a Renderer.
type RendererOption func(*Renderer)

// WithRand sets the factory for the sparkline noise source. Each Render draws a new one.
func WithRand(f func() *rand.Rand) RendererOption {
	return func(r *Renderer) { r.newRand = f }
}

// WithAccents colours the summary cards by icon.
func WithAccents(a AccentSource) RendererOption {
	return func(r *Renderer) { r.accents = a }
}

// WithStatus shows counters in the status bar.
func WithStatus(s StatusSource) RendererOption {
	return func(r *Renderer) { r.status = s }
}

// WithSparkline sets the card sparkline length and jitter percent.
func WithSparkline(points int, jitter float64) RendererOption {
	return func(r *Renderer) {
		if points >= 2 {
			r.sparkPoints = points
		}
		if jitter >= 0 {
			r.jitter = jitter
		}
	}
}

// Renderer turns a state snapshot into text. Apart from sparkline noise it is a pure function
// of its input.
type Renderer struct {
	accents     AccentSource
	status      StatusSource
	newRand     func() *rand.Rand
	sparkPoints int
	jitter      float64
}

// NewRenderer creates a renderer with 24-point sparklines.
func NewRenderer(opts ...RendererOption) *Renderer {
	r := &Renderer{
		newRand: func() *rand.Rand {
			return rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
		},
		sparkPoints: 24,
		jitter:      0.6,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Render draws state with the row at cursor highlighted.
func (r *Renderer) Render(s domain.DashboardState, cursor int) View {
	p := paletteFor(s.Theme)
	var b strings.Builder

	b.WriteString(p.title.Render("crypto-dash"))
	b.WriteString(p.dim.Render(fmt.Sprintf("  [%s · %s]", s.View, s.Theme)))
	if s.Loading {
		b.WriteString(p.warn.Render("  loading…"))
	}
	b.WriteString("\n\n")

	switch s.View {
	case domain.ViewDetail:
		r.detail(&b, p, s)
	case domain.ViewWatchlist:
		b.WriteString(p.header.Render(fmt.Sprintf("Watchlist · %d watched", len(s.Watchlist))))
		b.WriteString("\n")
		r.table(&b, p, s.WatchEntries, s.Watchlist, cursor)
	default:
		r.cards(&b, p, s.TopEntries)
		query := s.Query
		if query == "" {
			query = p.dim.Render("(none)")
		}
		b.WriteString("Search: " + query + "\n\n")
		r.table(&b, p, s.Entries, s.Watchlist, cursor)
		b.WriteString("\n")
		b.WriteString(p.header.Render(fmt.Sprintf("Page %d / %d · %d entries · size %d",
			s.Pagination.CurrentPage, s.TotalPages(), s.TotalEntries, s.Pagination.PageSize)))
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(r.statusBar(p, s))
	b.WriteString("\n")

	bindings := bindingsFor(s.View)
	help := make([]string, 0, len(bindings))
	for _, bd := range bindings {
		help = append(help, bd.Key+" "+bd.Help)
	}
	b.WriteString(p.dim.Render(strings.Join(help, " · ")))

	return View{Body: b.String(), Bindings: bindings}
}

func bindingsFor(v domain.View) []Binding {
	common := []Binding{
		{"t", "theme", ActionTheme},
		{"q", "quit", ActionQuit},
	}
	var out []Binding
	switch v {
	case domain.ViewDetail:
		out = []Binding{
			{"1", "1d", ActionRange1D},
			{"2", "1y", ActionRange1Y},
			{"3", "10y", ActionRange10Y},
			{"c", "csv", ActionExportCSV},
			{"j", "json", ActionExportJSON},
			{"w", "watch", ActionWatch},
			{"esc", "back", ActionBack},
		}
	case domain.ViewWatchlist:
		out = []Binding{
			{"up", "up", ActionUp},
			{"down", "down", ActionDown},
			{"enter", "open", ActionOpen},
			{"w", "unwatch", ActionWatch},
			{"esc", "back", ActionBack},
		}
	default:
		out = []Binding{
			{"up", "up", ActionUp},
			{"down", "down", ActionDown},
			{"enter", "open", ActionOpen},
			{"n", "next", ActionNextPage},
			{"p", "prev", ActionPrevPage},
			{"/", "search", ActionSearch},
			{"z", "size", ActionPageSize},
			{"w", "watch", ActionWatch},
			{"W", "watchlist", ActionWatchlist},
		}
	}
	return append(out, common...)
}

func (r *Renderer) cards(b *strings.Builder, p palette, top []domain.MarketEntry) {
	if len(top) == 0 {
		return
	}
	rng := r.newRand()
	cards := make([]string, 0, len(top))
	for _, e := range top {
		glyph := p.dim.Render("●")
		if r.accents != nil {
			if hex, ok := r.accents.Accent(e.Symbol); ok {
				glyph = lipgloss.NewStyle().Foreground(lipgloss.Color(hex)).Render("●")
			}
		}
		pct, class := format.Percent(e.Change)
		line := panel.Sparkline(e.Change, r.sparkPoints, r.jitter, rng)
		cards = append(cards, p.card.Render(strings.Join([]string{
			glyph + " " + p.text.Bold(true).Render(e.Symbol),
			p.text.Render(format.Price(e.Price)),
			p.class(class).Render(pct),
			p.class(class).Render(spark(line)),
		}, "\n")))
	}
	b.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, cards...))
	b.WriteString("\n")
}

const tableRow = "%-2s %-5s %-12s %-18s %14s %9s %10s %10s"

func (r *Renderer) table(b *strings.Builder, p palette, entries []domain.MarketEntry, watch domain.Watchlist, cursor int) {
	b.WriteString(p.header.Render(fmt.Sprintf(tableRow, "", "#", "Symbol", "Name", "Price", "24h", "Volume", "Mkt Cap")))
	b.WriteString("\n")
	if len(entries) == 0 {
		b.WriteString(p.dim.Render("  no entries"))
		b.WriteString("\n")
		return
	}

	cursor = clampCursor(cursor, len(entries))
	for i, e := range entries {
		mark := ""
		if watch.Has(e.ID) {
			mark = "★"
		}
		rank := format.Placeholder
		if e.Rank.Known {
			rank = fmt.Sprint(e.Rank.Value)
		}
		pct, _ := format.Percent(e.Change)
		row := fmt.Sprintf(tableRow, mark, rank, truncate(e.Symbol, 12), truncate(e.Name, 18),
			format.Price(e.Price), pct, opaque(e.Volume), opaque(e.MarketCap))

		style := p.text
		if mark != "" {
			style = p.watch
		} else if dir := format.Class(e.ChangeDirection()); dir != format.ClassNeutral {
			style = p.class(dir)
		}
		if i == cursor {
			style = style.Background(p.cursor)
		}
		b.WriteString(style.Render(row))
		b.WriteString("\n")
	}
}

func (r *Renderer) detail(b *strings.Builder, p palette, s domain.DashboardState) {
	d := s.Detail
	if d.EntityID == "" {
		b.WriteString(p.warn.Render("Unknown asset"))
		b.WriteString("\n")
	} else {
		title := d.EntityID
		if s.Watchlist.Has(d.EntityID) {
			title += " ★"
		}
		b.WriteString(p.title.Render(title))
		b.WriteString("   ")
		for _, rk := range domain.Ranges {
			label := " " + string(rk) + " "
			if rk == d.Range {
				b.WriteString(p.status.Render(label))
			} else {
				b.WriteString(p.dim.Render(label))
			}
		}
		b.WriteString("\n")
	}

	top := lipgloss.JoinHorizontal(lipgloss.Top,
		r.panelBox(p, "Price "+d.Range.Granularity(), d.SeriesStatus, func() string { return seriesBody(p, d.Series) }),
		r.panelBox(p, "Indicators", d.IndicatorsStatus, func() string { return indicatorsBody(p, d.Indicators) }),
		r.panelBox(p, "Forecast", d.ForecastStatus, func() string { return forecastBody(p, d.Forecast) }),
	)
	bottom := lipgloss.JoinHorizontal(lipgloss.Top,
		r.panelBox(p, "Sentiment", d.SentimentStatus, func() string { return sentimentBody(p, d.Sentiment) }),
		r.panelBox(p, "On-chain", d.OnchainStatus, func() string { return onchainBody(d.Onchain) }),
		r.panelBox(p, "Signal", d.SignalStatus, func() string { return signalBody(p, d.Sentiment, d.Onchain, d.Signal) }),
	)
	b.WriteString(top)
	b.WriteString("\n")
	b.WriteString(bottom)
	b.WriteString("\n")
}

func (r *Renderer) panelBox(p palette, title string, st domain.PanelStatus, body func() string) string {
	var content string
	switch st {
	case domain.PanelReady:
		content = body()
	case domain.PanelUnavailable:
		content = p.warn.Render("unavailable")
	default:
		content = p.dim.Render("loading…")
	}
	return p.panel.Width(34).Render(p.header.Render(title) + "\n" + content)
}

func seriesBody(p palette, s domain.PriceSeries) string {
	if len(s) == 0 {
		return format.Placeholder
	}
	closes := s.Closes()
	last, _ := s.Last()
	first := s[0]
	var change domain.Num
	if first.Close.Known && last.Close.Known && first.Close.Value != 0 {
		change = domain.KnownNum((last.Close.Value/first.Close.Value - 1) * 100)
	}
	pct, class := format.Percent(change)
	return strings.Join([]string{
		p.class(class).Render(spark(downsample(closes, 30))),
		"Close " + format.Price(last.Close) + "  " + p.class(class).Render(pct),
		p.dim.Render(fmt.Sprintf("%d bars · %s → %s", len(s),
			first.Date.Format("2006-01-02"), last.Date.Format("2006-01-02"))),
	}, "\n")
}

func indicatorsBody(p palette, ind *domain.Indicators) string {
	lines := make([]string, 0, len(ind.Timeframes))
	for _, tf := range []string{"1d", "1y", "10y"} {
		t, ok := ind.Timeframes[tf]
		if !ok {
			continue
		}
		sum := t.Summary
		lines = append(lines, fmt.Sprintf("%-4s %s  %s", tf,
			p.class(format.SignalClass(sum.Overall)).Render(fmt.Sprintf("%-4s", sum.Overall)),
			p.dim.Render(fmt.Sprintf("B%d S%d H%d", sum.Buy, sum.Sell, sum.Hold))))
	}
	if t, ok := ind.Timeframes["1d"]; ok {
		for _, name := range t.Names() {
			rd := t.Indicators[name]
			lines = append(lines, fmt.Sprintf("  %-10s %10s %s", truncate(name, 10), format.Number(rd.Value, 2),
				p.class(format.SignalClass(rd.Signal)).Render(rd.Signal)))
		}
	}
	if len(lines) == 0 {
		return format.Placeholder
	}
	return strings.Join(lines, "\n")
}

func forecastBody(p palette, f *domain.Forecast) string {
	lines := []string{
		"Next day " + format.Price(f.NextDayPrediction),
		p.dim.Render(fmt.Sprintf("RMSE %s · MAPE %s · R² %s",
			format.Number(f.Metrics.RMSE, 2), format.Number(f.Metrics.MAPE, 2), format.Number(f.Metrics.R2, 3))),
	}
	for _, pt := range f.OneWeekForecast {
		lines = append(lines, fmt.Sprintf("  +%dd %-10s %s", pt.DayOffset, pt.Date, format.Price(pt.Predicted)))
	}
	return strings.Join(lines, "\n")
}

func sentimentBody(p palette, s *domain.Sentiment) string {
	label := s.Label
	if label == "" {
		label = format.Placeholder
	}
	lines := []string{
		fmt.Sprintf("Avg %s  %s", format.Number(s.Average, 3), label),
	}
	if len(s.Counts) > 0 {
		lines = append(lines, p.dim.Render(fmt.Sprintf("+%d −%d =%d",
			s.Counts["positive"], s.Counts["negative"], s.Counts["neutral"])))
	}
	for i, it := range s.Items {
		if i == 5 {
			break
		}
		_, class := format.Percent(it.Sentiment)
		lines = append(lines, p.class(class).Render("• ")+truncate(it.Title, 28))
	}
	return strings.Join(lines, "\n")
}

func onchainBody(o *domain.Onchain) string {
	lines := []string{
		"TVL      " + format.CompactUSD(o.TVL()),
		"Txs      " + format.Count(o.TxCount),
		"Active   " + format.Count(o.ActiveAddresses),
		"NVT      " + format.Number(o.NVT, 1),
		"Hashrate " + format.Number(o.Hashrate, 0),
	}
	if o.Note != "" {
		lines = append(lines, truncate(o.Note, 30))
	}
	return strings.Join(lines, "\n")
}

func signalBody(p palette, s *domain.Sentiment, o *domain.Onchain, sig *domain.Signal) string {
	c := panel.Consensus(s, o, sig)
	agree := p.positive.Render("aligned")
	if !c.Aligned {
		agree = p.warn.Render("mixed")
	}
	lines := []string{
		p.class(format.SignalClass(sig.Direction)).Render(sig.Direction) +
			"  score " + format.Score(sig.Score) + "  conf " + format.Confidence(sig.Confidence),
		fmt.Sprintf("%s · sent %s · chain %s", agree, c.Sentiment, c.Onchain),
	}
	for _, e := range sig.Explanation {
		lines = append(lines, "• "+truncate(e, 28))
	}
	return strings.Join(lines, "\n")
}

func (r *Renderer) statusBar(p palette, s domain.DashboardState) string {
	parts := make([]string, 0, 4)
	if r.status != nil {
		m := r.status.Snapshot()
		parts = append(parts,
			fmt.Sprintf("api %d req · %d fail · %s avg", m.RequestsTotal, m.FailuresTotal, m.AvgLatency.Round(time.Millisecond)),
			fmt.Sprintf("breakers %d open", m.OpenBreakers),
			fmt.Sprintf("cache %d/%d", m.CacheHits, m.CacheMisses),
		)
	}
	switch {
	case !s.Stream.Enabled:
		parts = append(parts, "stream off")
	case s.Stream.Connected:
		parts = append(parts, fmt.Sprintf("stream live (%d ticks)", s.Stream.Ticks))
	default:
		parts = append(parts, "stream reconnecting")
	}
	return p.status.Render(" " + strings.Join(parts, " · ") + " ")
}

var sparkRunes = []rune("▁▂▃▄▅▆▇█")

// spark draws values as a row of block characters scaled to their own min and max.
func spark(values []float64) string {
	if len(values) == 0 {
		return ""
	}
	lo, hi := slices.Min(values), slices.Max(values)
	out := make([]rune, len(values))
	for i, v := range values {
		idx := len(sparkRunes) / 2
		if hi > lo {
			idx = int((v - lo) / (hi - lo) * float64(len(sparkRunes)-1))
		}
		out[i] = sparkRunes[idx]
	}
	return string(out)
}

// downsample keeps at most n evenly spaced values, always including the last.
func downsample(values []float64, n int) []float64 {
	if len(values) <= n || n < 2 {
		return values
	}
	out := make([]float64, n)
	step := float64(len(values)-1) / float64(n-1)
	for i := range out {
		out[i] = values[int(float64(i)*step+0.5)]
	}
	return out
}

func opaque(o domain.Opaque) string {
	if o.Num.Known {
		return format.CompactUSD(o)
	}
	if o.Text != "" {
		return truncate(o.Text, 10)
	}
	return format.Placeholder
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}

func clampCursor(cursor, n int) int {
	if n == 0 {
		return 0
	}
	return min(max(cursor, 0), n-1)
}
