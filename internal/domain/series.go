package domain

import (
	"sort"
	"strings"
	"time"
)

// RangeKey is a normalized price-history timeframe.
type RangeKey string

const (
	Range1D  RangeKey = "1d"
	Range1Y  RangeKey = "1y"
	Range10Y RangeKey = "10y"
)

// Ranges lists every supported timeframe in display order.
var Ranges = []RangeKey{Range1D, Range1Y, Range10Y}

// Granularity is the bar size the backend resamples a range to.
func (r RangeKey) Granularity() string {
	switch r {
	case Range1Y:
		return "weekly"
	case Range10Y:
		return "monthly"
	default:
		return "daily"
	}
}

// NormalizeRange maps free text onto a RangeKey, falling back to def.
func NormalizeRange(s string, def RangeKey) RangeKey {
	key := RangeKey(strings.ToLower(strings.TrimSpace(s)))
	for _, r := range Ranges {
		if r == key {
			return r
		}
	}
	return def
}

// PricePoint is a single OHLCV bar.
type PricePoint struct {
	Date   time.Time `json:"date"`
	Open   Num       `json:"-"`
	High   Num       `json:"-"`
	Low    Num       `json:"-"`
	Close  Num       `json:"-"`
	Volume Num       `json:"-"`
}

// PriceSeries is sorted ascending by date and never mutated after construction.
type PriceSeries []PricePoint

// NewPriceSeries copies points into a date-ordered series.
func NewPriceSeries(points []PricePoint) PriceSeries {
	out := make(PriceSeries, len(points))
	copy(out, points)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Date.Before(out[j].Date)
	})
	return out
}

// Closes returns the known closing prices in order.
func (s PriceSeries) Closes() []float64 {
	out := make([]float64, 0, len(s))
	for _, p := range s {
		if p.Close.Known {
			out = append(out, p.Close.Value)
		}
	}
	return out
}

// Last returns the most recent point.
func (s PriceSeries) Last() (PricePoint, bool) {
	if len(s) == 0 {
		return PricePoint{}, false
	}
	return s[len(s)-1], true
}
