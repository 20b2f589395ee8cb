package domain

import (
	"encoding/json"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// Num is a nullable number. The zero value is Unknown, which is not the same as 0.
type Num struct {
	Value float64
	Known bool
}

// Unknown marks a missing or unparsable numeric field.
var Unknown = Num{}

// KnownNum wraps v. NaN and Inf collapse to Unknown.
func KnownNum(v float64) Num {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return Unknown
	}
	return Num{Value: v, Known: true}
}

// ParseNum reads a loosely typed JSON value. Numbers, numeric strings ("12.5",
// "1,234") and json.Number are accepted; anything else is Unknown.
func ParseNum(v any) Num {
	switch x := v.(type) {
	case float64:
		return KnownNum(x)
	case float32:
		return KnownNum(float64(x))
	case int:
		return KnownNum(float64(x))
	case int64:
		return KnownNum(float64(x))
	case json.Number:
		f, err := x.Float64()
		if err != nil {
			return Unknown
		}
		return KnownNum(f)
	case string:
		s := strings.ReplaceAll(strings.TrimSpace(x), ",", "")
		if s == "" {
			return Unknown
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return Unknown
		}
		return KnownNum(f)
	default:
		return Unknown
	}
}

// ParseOpaque keeps non-numeric text for display instead of discarding it.
func ParseOpaque(v any) Opaque {
	n := ParseNum(v)
	if n.Known {
		return Opaque{Num: n}
	}
	if s, ok := v.(string); ok {
		return Opaque{Num: Unknown, Text: strings.TrimSpace(s)}
	}
	return Opaque{}
}

// Direction returns "positive", "negative", or "neutral" for the value as displayed
// with two decimals, so a change that rounds to zero is neutral.
func (n Num) Direction() string {
	if !n.Known {
		return "neutral"
	}
	switch decimal.NewFromFloat(n.Value).Round(2).Sign() {
	case 1:
		return "positive"
	case -1:
		return "negative"
	default:
		return "neutral"
	}
}

// Opaque is a display value the backend may send as a number or as free text.
type Opaque struct {
	Num  Num
	Text string
}

// Decimal returns the numeric value as a decimal, if known.
func (o Opaque) Decimal() (decimal.Decimal, bool) {
	if !o.Num.Known {
		return decimal.Zero, false
	}
	return decimal.NewFromFloat(o.Num.Value), true
}

// Rank is a nullable 1-based position in the market-cap ordering.
type Rank struct {
	Value int
	Known bool
}

// MarketEntry is one tradable asset as shown in the ranked table.
type MarketEntry struct {
	ID        string `json:"id"`
	Symbol    string `json:"symbol"`
	Name      string `json:"name"`
	Price     Num    `json:"-"`
	Change    Num    `json:"-"` // percent
	Volume    Opaque `json:"-"`
	MarketCap Opaque `json:"-"`
	Rank      Rank   `json:"-"`
}

// ChangeDirection returns "positive", "negative", or "neutral"
func (e MarketEntry) ChangeDirection() string {
	return e.Change.Direction()
}

// EntriesPage is one normalized page of the symbols listing.
type EntriesPage struct {
	Entries []MarketEntry
	Total   int
}

// TopByRank returns the first n entries ordered by ascending rank.
// Unranked entries sort last; ties keep their original order.
func TopByRank(entries []MarketEntry, n int) []MarketEntry {
	sorted := make([]MarketEntry, len(entries))
	copy(sorted, entries)

	sort.SliceStable(sorted, func(i, j int) bool {
		a, b := sorted[i].Rank, sorted[j].Rank
		if a.Known != b.Known {
			return a.Known
		}
		if !a.Known {
			return false
		}
		return a.Value < b.Value
	})

	if n < len(sorted) {
		sorted = sorted[:n]
	}
	return sorted
}
