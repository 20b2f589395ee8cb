// Package format turns raw market values into display strings and style classes.
// Every formatter accepts loosely typed input and returns Placeholder for anything
// it cannot read as a finite number.
package format

import (
	"encoding/json"
	"math"
	"math/big"
	"strconv"
	"strings"

	"crypto_dash/internal/domain"

	"github.com/dustin/go-humanize"
	"github.com/shopspring/decimal"
)

// Placeholder is shown for missing or non-numeric values.
const Placeholder = "—"

// Class is a style class for colouring a value.
type Class string

const (
	ClassPositive Class = "positive"
	ClassNegative Class = "negative"
	ClassNeutral  Class = "neutral"
	ClassBullish  Class = "bullish"
	ClassBearish  Class = "bearish"
)

// Value reads v as a finite float64.
func Value(v any) (float64, bool) {
	var f float64
	switch x := v.(type) {
	case nil:
		return 0, false
	case float64:
		f = x
	case float32:
		f = float64(x)
	case int:
		f = float64(x)
	case int8:
		f = float64(x)
	case int16:
		f = float64(x)
	case int32:
		f = float64(x)
	case int64:
		f = float64(x)
	case uint:
		f = float64(x)
	case uint8:
		f = float64(x)
	case uint16:
		f = float64(x)
	case uint32:
		f = float64(x)
	case uint64:
		f = float64(x)
	case *float64:
		if x == nil {
			return 0, false
		}
		f = *x
	case domain.Num:
		if !x.Known {
			return 0, false
		}
		f = x.Value
	case *domain.Num:
		if x == nil {
			return 0, false
		}
		return Value(*x)
	case domain.Opaque:
		if d, ok := x.Decimal(); ok {
			return Value(d)
		}
		return Value(x.Text)
	case decimal.Decimal:
		f = x.InexactFloat64()
	case json.Number:
		return Value(string(x))
	case string:
		s := strings.TrimSpace(x)
		s = strings.TrimPrefix(s, "$")
		s = strings.TrimSuffix(s, "%")
		s = strings.ReplaceAll(s, ",", "")
		if s == "" {
			return 0, false
		}
		p, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, false
		}
		f = p
	default:
		return 0, false
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

// Price renders v as USD. Values of at least one unit get two grouped decimals;
// smaller values keep at least four significant digits.
func Price(v any) string {
	f, ok := Value(v)
	if !ok {
		return Placeholder
	}
	if f == 0 {
		return "$0.00"
	}

	sign := ""
	if f < 0 {
		sign = "-"
		f = -f
	}
	if f < 1 {
		places := -int(math.Floor(math.Log10(f))) - 1 + 4
		places = min(max(places, 4), 12)
		// 0.99996 rounds to 1.0000 and is shown at unit scale.
		if d := decimal.NewFromFloat(f).Round(int32(places)); d.LessThan(decimal.New(1, 0)) {
			return sign + "$" + d.StringFixed(int32(places))
		}
	}
	return sign + "$" + grouped(f, 2)
}

// Percent renders v as a signed percentage with two decimals. Anything that rounds
// to zero is "+0.00%" and neutral.
func Percent(v any) (string, Class) {
	f, ok := Value(v)
	if !ok {
		return Placeholder, ClassNeutral
	}
	class := Class(domain.KnownNum(f).Direction())
	d := decimal.NewFromFloat(f).Round(2)
	if class == ClassNegative {
		return d.StringFixed(2) + "%", class
	}
	return "+" + d.StringFixed(2) + "%", class
}

// SignalClass maps an indicator or signal label onto bullish, bearish or neutral.
// Matching is case-insensitive and by substring, so "STRONG_BULLISH" and "strong buy" both count.
func SignalClass(label any) Class {
	var s string
	switch x := label.(type) {
	case string:
		s = x
	case interface{ String() string }:
		s = x.String()
	default:
		return ClassNeutral
	}
	s = strings.ToLower(s)
	switch {
	case strings.Contains(s, "buy"), strings.Contains(s, "bull"):
		return ClassBullish
	case strings.Contains(s, "sell"), strings.Contains(s, "bear"):
		return ClassBearish
	default:
		return ClassNeutral
	}
}

var compactUnits = []struct {
	suffix string
	size   decimal.Decimal
}{
	{"T", decimal.New(1, 12)},
	{"B", decimal.New(1, 9)},
	{"M", decimal.New(1, 6)},
	{"K", decimal.New(1, 3)},
}

// CompactUSD renders large amounts as $1.23T, $4.56B, $7.89M or $12.35K.
func CompactUSD(v any) string {
	f, ok := Value(v)
	if !ok {
		return Placeholder
	}
	sign := ""
	if f < 0 {
		sign = "-"
		f = -f
	}

	d := decimal.NewFromFloat(f)
	thousand := decimal.New(1, 3)
	for i, u := range compactUnits {
		if d.LessThan(u.size) {
			continue
		}
		scaled := d.Div(u.size).Round(2)
		// 999.999K rounds to 1000.00K; show it as 1.00M instead.
		if i > 0 && scaled.GreaterThanOrEqual(thousand) {
			scaled = d.Div(compactUnits[i-1].size).Round(2)
			u = compactUnits[i-1]
		}
		return sign + "$" + scaled.StringFixed(2) + u.suffix
	}
	// 999.999 rounds to 1000.00; show it as 1.00K.
	if r := d.Round(2); r.GreaterThanOrEqual(thousand) {
		return sign + "$" + r.Div(thousand).Round(2).StringFixed(2) + "K"
	}
	return sign + "$" + d.StringFixed(2)
}

// Number renders v with grouping and the given number of decimals.
func Number(v any, places int) string {
	f, ok := Value(v)
	if !ok {
		return Placeholder
	}
	return grouped(f, max(places, 0))
}

// Count renders v as a grouped integer.
func Count(v any) string {
	f, ok := Value(v)
	if !ok {
		return Placeholder
	}
	return grouped(f, 0)
}

// Confidence renders a 0..1 ratio as a whole percentage. Values above 1 are taken as
// already being percentages.
func Confidence(v any) string {
	f, ok := Value(v)
	if !ok {
		return Placeholder
	}
	if math.Abs(f) <= 1 {
		f *= 100
	}
	return strconv.FormatFloat(math.Round(f), 'f', 0, 64) + "%"
}

// Score renders a signed score with two decimals.
func Score(v any) string {
	f, ok := Value(v)
	if !ok {
		return Placeholder
	}
	d := decimal.NewFromFloat(f).Round(2)
	if d.IsNegative() {
		return d.StringFixed(2)
	}
	return "+" + d.StringFixed(2)
}

// grouped formats f with thousands separators and exactly places decimals.
// The integer part goes through big.Int, so magnitudes past int64 keep their digits.
func grouped(f float64, places int) string {
	places = min(places, 9)
	fixed := decimal.NewFromFloat(f).StringFixed(int32(places))

	sign := ""
	if strings.HasPrefix(fixed, "-") {
		sign = "-"
		fixed = fixed[1:]
	}
	whole, frac, _ := strings.Cut(fixed, ".")
	n, ok := new(big.Int).SetString(whole, 10)
	if !ok {
		return Placeholder
	}
	out := sign + humanize.BigComma(n)
	if frac != "" {
		out += "." + frac
	}
	return out
}
