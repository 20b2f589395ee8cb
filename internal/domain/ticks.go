package domain

import "strings"

// Tick is one live price update for an asset.
type Tick struct {
	ID     string
	Symbol string
	Price  Num
	Change Num
}

// matches reports whether the tick targets e, by id or case-insensitive symbol.
func (t Tick) matches(e MarketEntry) bool {
	if t.ID != "" {
		return t.ID == e.ID
	}
	return t.Symbol != "" && strings.EqualFold(t.Symbol, e.Symbol)
}

// ApplyTicks returns a copy of entries with matching ticks applied, and how many
// entries changed. Unknown tick fields keep the current value. The input is not modified.
func ApplyTicks(entries []MarketEntry, ticks []Tick) ([]MarketEntry, int) {
	out := make([]MarketEntry, len(entries))
	copy(out, entries)

	changed := 0
	for i := range out {
		hit := false
		for _, t := range ticks {
			if !t.matches(out[i]) {
				continue
			}
			if t.Price.Known {
				out[i].Price = t.Price
				hit = true
			}
			if t.Change.Known {
				out[i].Change = t.Change
				hit = true
			}
		}
		if hit {
			changed++
		}
	}
	return out, changed
}
