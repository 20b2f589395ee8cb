package gateway

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeRaw(t *testing.T, s string) any {
	t.Helper()
	dec := json.NewDecoder(strings.NewReader(s))
	dec.UseNumber()
	var v any
	require.NoError(t, dec.Decode(&v))
	return v
}

func TestClassifyPage(t *testing.T) {
	tests := []struct {
		body  string
		shape pageShape
		total int
	}{
		{`[{"symbol":"A"}]`, shapeBare, 1},
		{`{"items":[{"symbol":"A"},{"symbol":"B"}],"total":"40"}`, shapeEnvelope, 40},
		{`{"items":[{"symbol":"A"}]}`, shapeEnvelope, 1},
		{`{"items":[{"symbol":"A"}],"total":-3}`, shapeEnvelope, 1},
		{`{"items":[{"symbol":"A"}],"total":1e30}`, shapeEnvelope, 1},
		{`{"items":[{"symbol":"A"},{"symbol":"B"}],"total":12.5}`, shapeEnvelope, 2},
		{`{"items":"nope"}`, shapeUnknown, 0},
		{`"hello"`, shapeUnknown, 0},
		{`null`, shapeUnknown, 0},
	}

	for _, tt := range tests {
		t.Run(tt.body, func(t *testing.T) {
			page, shape := decodeEntriesPage(decodeRaw(t, tt.body))
			assert.Equal(t, tt.shape, shape, "shape %s", shape)
			assert.Equal(t, tt.total, page.Total)
		})
	}
}

func TestDecodeEntriesPage_SkipsBadRowsAndDuplicates(t *testing.T) {
	page, _ := decodeEntriesPage(decodeRaw(t, `[
		{"symbol":"A","rank":2},
		42,
		{"name":"no id"},
		{"id":7,"name":"numeric id"},
		{"symbol":"A","rank":9}
	]`))

	require.Len(t, page.Entries, 2)
	assert.Equal(t, "A", page.Entries[0].ID)
	assert.Equal(t, 2, page.Entries[0].Rank.Value, "first occurrence wins")
	assert.Equal(t, "7", page.Entries[1].ID)
	assert.Equal(t, 5, page.Total, "bare total is the raw length")
}

func TestParseTime(t *testing.T) {
	want := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)

	for _, in := range []any{"2024-05-01", "2024-05-01T00:00:00Z", "2024-05-01 00:00:00", json.Number("1714521600"), json.Number("1714521600000")} {
		got, ok := parseTime(in)
		if assert.True(t, ok, "%v", in) {
			assert.True(t, want.Equal(got), "%v -> %s", in, got)
		}
	}

	for _, in := range []any{"yesterday", nil, json.Number("-1"), true} {
		_, ok := parseTime(in)
		assert.False(t, ok, "%v", in)
	}
}

func TestDecodeForecast_RejectsEmptyObject(t *testing.T) {
	_, ok := decodeForecast(decodeRaw(t, `{"symbol":"BTC-USD"}`))
	assert.False(t, ok)

	_, ok = decodeForecast(decodeRaw(t, `{"detail":"LSTM microservice unavailable"}`))
	assert.False(t, ok)
}

func TestDecodeSummary_ExplicitCountsWin(t *testing.T) {
	ind, ok := decodeIndicators(decodeRaw(t, `{"timeframes":{"1Y":{
		"indicators":{"rsi":{"value":50,"signal":"BUY"}},
		"summary":{"buy":0,"sell":3,"hold":1,"overall":"strong sell"}}}}`))
	require.True(t, ok)

	s := ind.Timeframes["1y"].Summary
	assert.Equal(t, 3, s.Sell)
	assert.Equal(t, 0, s.Buy)
	assert.Equal(t, "STRONG SELL", s.Overall)
}

func TestDecode_OversizedCountsRejected(t *testing.T) {
	ind, ok := decodeIndicators(decodeRaw(t, `{"timeframes":{"1d":{
		"summary":{"buy":1e30,"sell":2.5,"hold":-4}}}}`))
	require.True(t, ok)
	s := ind.Timeframes["1d"].Summary
	assert.Zero(t, s.Buy)
	assert.Zero(t, s.Sell)
	assert.Zero(t, s.Hold)

	f, ok := decodeForecast(decodeRaw(t, `{"lookback":1e300,"next_day_prediction":1,
		"one_week_forecast":[{"day_offset":1e20,"predicted":2},{"day_offset":3,"predicted":4}]}`))
	require.True(t, ok)
	assert.Zero(t, f.Lookback)
	require.Len(t, f.OneWeekForecast, 2)
	assert.Equal(t, 1, f.OneWeekForecast[0].DayOffset, "falls back to position")
	assert.Equal(t, 3, f.OneWeekForecast[1].DayOffset)

	sent, ok := decodeSentiment(decodeRaw(t, `{"summary":{"counts":{"positive":1e25,"neutral":7}}}`))
	require.True(t, ok)
	assert.NotContains(t, sent.Counts, "positive")
	assert.Equal(t, 7, sent.Counts["neutral"])

	page, _ := decodeEntriesPage(decodeRaw(t, `[{"symbol":"A","rank":1e30}]`))
	require.Len(t, page.Entries, 1)
	assert.False(t, page.Entries[0].Rank.Known)
}
