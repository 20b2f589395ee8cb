package gateway

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
	"time"

	"crypto_dash/internal/domain"
)

// pageShape tags the body shapes the symbols endpoint is known to return.
type pageShape int

const (
	shapeUnknown  pageShape = iota
	shapeBare               // [entry, ...]
	shapeEnvelope           // {"items": [...], "total": n}
)

func (s pageShape) String() string {
	switch s {
	case shapeBare:
		return "bare"
	case shapeEnvelope:
		return "envelope"
	default:
		return "unknown"
	}
}

// classifyPage is the single place a symbols body is inspected for its shape.
func classifyPage(raw any) (pageShape, []any, any) {
	switch v := raw.(type) {
	case []any:
		return shapeBare, v, nil
	case map[string]any:
		if items, ok := v["items"].([]any); ok {
			return shapeEnvelope, items, v["total"]
		}
	}
	return shapeUnknown, nil, nil
}

// decodeEntriesPage normalizes any symbols body. Unknown shapes yield an empty page.
func decodeEntriesPage(raw any) (domain.EntriesPage, pageShape) {
	shape, items, rawTotal := classifyPage(raw)

	entries := make([]domain.MarketEntry, 0, len(items))
	seen := make(map[string]struct{}, len(items))
	for _, it := range items {
		obj, ok := it.(map[string]any)
		if !ok {
			continue
		}
		e, ok := decodeEntry(obj)
		if !ok {
			continue
		}
		// Identifiers are unique within a page; the first occurrence wins.
		if _, dup := seen[e.ID]; dup {
			continue
		}
		seen[e.ID] = struct{}{}
		entries = append(entries, e)
	}

	total := len(items)
	if shape == shapeEnvelope {
		if n, ok := wholeNum(domain.ParseNum(rawTotal)); ok {
			total = n
		}
	}
	return domain.EntriesPage{Entries: entries, Total: total}, shape
}

// decodeEntry reads one listing row. The symbol is the stable id; the backend's
// numeric id is a row number and changes with the query.
func decodeEntry(m map[string]any) (domain.MarketEntry, bool) {
	symbol := str(m["symbol"])
	id := symbol
	if id == "" {
		id = str(m["id"])
	}
	if id == "" {
		return domain.MarketEntry{}, false
	}

	name := str(m["name"])
	if name == "" {
		name = symbol
	}

	return domain.MarketEntry{
		ID:        id,
		Symbol:    symbol,
		Name:      name,
		Price:     domain.ParseNum(m["price"]),
		Change:    domain.ParseNum(first(m, "change", "change_pct", "percent_change")),
		Volume:    domain.ParseOpaque(first(m, "vol", "volume")),
		MarketCap: domain.ParseOpaque(first(m, "mcap", "market_cap")),
		Rank:      parseRank(m["rank"]),
	}, true
}

func parseRank(v any) domain.Rank {
	n := domain.ParseNum(v)
	if !n.Known || n.Value < 1 || n.Value > math.MaxInt32 {
		return domain.Rank{}
	}
	return domain.Rank{Value: int(math.Round(n.Value)), Known: true}
}

// decodeSeries accepts a bare point list or an object wrapping one.
// Points without a parsable date are dropped.
func decodeSeries(raw any) domain.PriceSeries {
	var items []any
	switch v := raw.(type) {
	case []any:
		items = v
	case map[string]any:
		for _, key := range []string{"items", "prices", "data"} {
			if list, ok := v[key].([]any); ok {
				items = list
				break
			}
		}
	}

	points := make([]domain.PricePoint, 0, len(items))
	for _, it := range items {
		m, ok := it.(map[string]any)
		if !ok {
			continue
		}
		date, ok := parseTime(m["date"])
		if !ok {
			continue
		}
		points = append(points, domain.PricePoint{
			Date:   date,
			Open:   domain.ParseNum(m["open"]),
			High:   domain.ParseNum(m["high"]),
			Low:    domain.ParseNum(m["low"]),
			Close:  domain.ParseNum(m["close"]),
			Volume: domain.ParseNum(m["volume"]),
		})
	}
	return domain.NewPriceSeries(points)
}

// payloadObject returns the body as an object unless it is an error envelope.
// Some services answer 200 with {"error": "..."}.
func payloadObject(raw any) (map[string]any, bool) {
	m, ok := raw.(map[string]any)
	if !ok {
		return nil, false
	}
	for _, key := range []string{"error", "detail"} {
		if v, present := m[key]; present && v != nil && str(v) != "" {
			return nil, false
		}
	}
	return m, true
}

func decodeIndicators(raw any) (*domain.Indicators, bool) {
	m, ok := payloadObject(raw)
	if !ok {
		return nil, false
	}
	tfs, ok := m["timeframes"].(map[string]any)
	if !ok {
		return nil, false
	}

	out := &domain.Indicators{Timeframes: make(map[string]domain.TimeframeIndicators, len(tfs))}
	for tf, block := range tfs {
		b, ok := block.(map[string]any)
		if !ok {
			continue
		}
		ti := domain.TimeframeIndicators{
			From:        str(b["from"]),
			To:          str(b["to"]),
			Granularity: str(b["granularity"]),
			Indicators:  make(map[string]domain.IndicatorReading),
		}
		if inds, ok := b["indicators"].(map[string]any); ok {
			for name, v := range inds {
				switch r := v.(type) {
				case map[string]any:
					ti.Indicators[name] = domain.IndicatorReading{
						Value:  domain.ParseNum(r["value"]),
						Signal: strings.ToUpper(str(r["signal"])),
					}
				default:
					ti.Indicators[name] = domain.IndicatorReading{Value: domain.ParseNum(r)}
				}
			}
		}
		ti.Summary = decodeSummary(b["summary"], ti.Indicators)
		out.Timeframes[strings.ToLower(tf)] = ti
	}
	return out, true
}

// decodeSummary reads vote counts if present, otherwise tallies them from the readings.
func decodeSummary(raw any, readings map[string]domain.IndicatorReading) domain.SignalSummary {
	s := domain.SignalSummary{Close: domain.Unknown}
	m, _ := raw.(map[string]any)
	if m != nil {
		s.Date = str(m["date"])
		s.Close = domain.ParseNum(m["close"])
		s.Overall = strings.ToUpper(str(m["overall"]))
	}

	buy, sell, hold := domain.ParseNum(m["buy"]), domain.ParseNum(m["sell"]), domain.ParseNum(m["hold"])
	if buy.Known || sell.Known || hold.Known {
		s.Buy, _ = wholeNum(buy)
		s.Sell, _ = wholeNum(sell)
		s.Hold, _ = wholeNum(hold)
	} else {
		for _, r := range readings {
			switch {
			case strings.Contains(r.Signal, "BUY"):
				s.Buy++
			case strings.Contains(r.Signal, "SELL"):
				s.Sell++
			case r.Signal != "":
				s.Hold++
			}
		}
	}

	if s.Overall == "" && s.Buy+s.Sell+s.Hold > 0 {
		switch {
		case s.Buy > s.Sell:
			s.Overall = "BUY"
		case s.Sell > s.Buy:
			s.Overall = "SELL"
		default:
			s.Overall = "HOLD"
		}
	}
	return s
}

func decodeForecast(raw any) (*domain.Forecast, bool) {
	m, ok := payloadObject(raw)
	if !ok {
		return nil, false
	}

	f := &domain.Forecast{
		TrainRatio:        domain.ParseNum(m["train_ratio"]),
		NextDayPrediction: domain.ParseNum(m["next_day_prediction"]),
	}
	if n, ok := wholeNum(domain.ParseNum(m["lookback"])); ok {
		f.Lookback = n
	}
	if mt, ok := m["metrics"].(map[string]any); ok {
		f.Metrics = domain.ForecastMetrics{
			RMSE: domain.ParseNum(mt["rmse"]),
			MAPE: domain.ParseNum(mt["mape"]),
			R2:   domain.ParseNum(mt["r2"]),
		}
	}
	for _, it := range list(m["test_predictions"]) {
		f.TestPredictions = append(f.TestPredictions, domain.ForecastTestPoint{
			Date:      str(it["date"]),
			Actual:    domain.ParseNum(it["actual"]),
			Predicted: domain.ParseNum(it["predicted"]),
		})
	}
	for i, it := range list(m["one_week_forecast"]) {
		off := i + 1
		if n, ok := wholeNum(domain.ParseNum(it["day_offset"])); ok {
			off = n
		}
		f.OneWeekForecast = append(f.OneWeekForecast, domain.ForecastDayPoint{
			DayOffset: off,
			Date:      str(it["date"]),
			Predicted: domain.ParseNum(it["predicted"]),
		})
	}

	// An object with none of the forecast fields is not a forecast.
	if !f.NextDayPrediction.Known && len(f.OneWeekForecast) == 0 && len(f.TestPredictions) == 0 {
		return nil, false
	}
	return f, true
}

func decodeSentiment(raw any) (*domain.Sentiment, bool) {
	m, ok := payloadObject(raw)
	if !ok {
		return nil, false
	}
	summary, hasSummary := m["summary"].(map[string]any)
	_, hasItems := m["items"].([]any)
	if !hasSummary && !hasItems {
		return nil, false
	}

	s := &domain.Sentiment{
		Average:  domain.Unknown,
		Counts:   counts(nil),
		BySource: counts(m["by_source"]),
	}
	if hasSummary {
		s.Average = domain.ParseNum(summary["avg"])
		s.Label = strings.ToLower(str(summary["label"]))
		s.Counts = counts(summary["counts"])
	}
	for _, it := range list(m["items"]) {
		published, _ := parseTime(it["published_at"])
		s.Items = append(s.Items, domain.SentimentItem{
			Title:       str(it["title"]),
			URL:         str(it["url"]),
			Source:      str(it["source"]),
			Sentiment:   domain.ParseNum(it["sentiment"]),
			Label:       strings.ToLower(str(it["label"])),
			PublishedAt: published,
		})
	}
	return s, true
}

func decodeOnchain(raw any) (*domain.Onchain, bool) {
	m, ok := payloadObject(raw)
	if !ok {
		return nil, false
	}
	metrics, ok := m["metrics"].(map[string]any)
	if !ok {
		return nil, false
	}
	return &domain.Onchain{
		TVLChainUSD:     domain.ParseNum(metrics["tvl_chain_usd"]),
		TVLProtocolUSD:  domain.ParseNum(metrics["tvl_protocol_usd"]),
		TxCount:         domain.ParseNum(metrics["tx_count"]),
		ActiveAddresses: domain.ParseNum(metrics["active_addresses"]),
		NVT:             domain.ParseNum(metrics["nvt"]),
		Hashrate:        domain.ParseNum(metrics["hashrate"]),
		Note:            str(m["note"]),
	}, true
}

func decodeSignal(raw any) (*domain.Signal, bool) {
	m, ok := payloadObject(raw)
	if !ok {
		return nil, false
	}
	sig, ok := m["signal"].(map[string]any)
	if !ok {
		return nil, false
	}

	out := &domain.Signal{
		Direction:  strings.ToUpper(str(sig["direction"])),
		Score:      domain.ParseNum(sig["score"]),
		Confidence: domain.ParseNum(sig["confidence"]),
	}
	if out.Direction == "" {
		out.Direction = "NEUTRAL"
	}
	if in, ok := m["inputs"].(map[string]any); ok {
		out.Inputs = make(map[string]domain.Num, len(in))
		for k, v := range in {
			out.Inputs[k] = domain.ParseNum(v)
		}
	}
	if ex, ok := m["explanation"].([]any); ok {
		for _, line := range ex {
			if s := str(line); s != "" {
				out.Explanation = append(out.Explanation, s)
			}
		}
	}
	return out, true
}

// str renders scalar JSON values as text. Objects, arrays and null are "".
func str(v any) string {
	switch x := v.(type) {
	case string:
		return strings.TrimSpace(x)
	case json.Number:
		return x.String()
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(x)
	default:
		return ""
	}
}

func first(m map[string]any, keys ...string) any {
	for _, k := range keys {
		if v, ok := m[k]; ok && v != nil {
			return v
		}
	}
	return nil
}

// list returns the object elements of a JSON array, skipping anything else.
func list(v any) []map[string]any {
	arr, _ := v.([]any)
	out := make([]map[string]any, 0, len(arr))
	for _, it := range arr {
		if m, ok := it.(map[string]any); ok {
			out = append(out, m)
		}
	}
	return out
}

func counts(v any) map[string]int {
	out := make(map[string]int)
	m, _ := v.(map[string]any)
	for k, raw := range m {
		if n, ok := wholeNum(domain.ParseNum(raw)); ok {
			out[k] = n
		}
	}
	return out
}

// wholeNum converts a count-like number to int. Fractions, negatives and values
// beyond int32 are rejected.
func wholeNum(n domain.Num) (int, bool) {
	if !n.Known || n.Value < 0 || n.Value > math.MaxInt32 || n.Value != math.Trunc(n.Value) {
		return 0, false
	}
	return int(n.Value), true
}

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
	time.RFC1123Z,
	time.RFC1123,
}

// parseTime accepts the date formats seen from the backend and epoch seconds or milliseconds.
func parseTime(v any) (time.Time, bool) {
	if s, ok := v.(string); ok {
		s = strings.TrimSpace(s)
		for _, layout := range timeLayouts {
			if t, err := time.Parse(layout, s); err == nil {
				return t.UTC(), true
			}
		}
		return time.Time{}, false
	}

	n := domain.ParseNum(v)
	if !n.Known || n.Value <= 0 {
		return time.Time{}, false
	}
	if n.Value > 1e12 {
		return time.UnixMilli(int64(n.Value)).UTC(), true
	}
	return time.Unix(int64(n.Value), 0).UTC(), true
}
