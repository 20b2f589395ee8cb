package domain

import (
	"encoding/json"
	"testing"
)

func TestParseNum(t *testing.T) {
	tests := []struct {
		name  string
		in    any
		want  float64
		known bool
	}{
		{"float", 12.5, 12.5, true},
		{"zero is known", 0.0, 0, true},
		{"numeric string", "12.5", 12.5, true},
		{"grouped string", "1,234.5", 1234.5, true},
		{"json number", json.Number("42"), 42, true},
		{"int", 7, 7, true},
		{"garbage string", "n/a", 0, false},
		{"empty string", " ", 0, false},
		{"nil", nil, 0, false},
		{"bool", true, 0, false},
		{"NaN string", "NaN", 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ParseNum(tt.in)
			if got.Known != tt.known || (tt.known && got.Value != tt.want) {
				t.Errorf("ParseNum(%v) = %+v, want %v known=%v", tt.in, got, tt.want, tt.known)
			}
		})
	}
}

func TestParseOpaque(t *testing.T) {
	if o := ParseOpaque("1.2B"); o.Num.Known || o.Text != "1.2B" {
		t.Errorf("Expected text fallback, got %+v", o)
	}
	if o := ParseOpaque(3e9); !o.Num.Known || o.Text != "" {
		t.Errorf("Expected numeric, got %+v", o)
	}
}

func TestApplyTicks(t *testing.T) {
	entries := []MarketEntry{
		{ID: "BTC-USD", Symbol: "BTC", Price: KnownNum(100), Change: KnownNum(1)},
		{ID: "ETH-USD", Symbol: "ETH", Price: KnownNum(10), Change: KnownNum(2)},
	}

	out, n := ApplyTicks(entries, []Tick{
		{ID: "BTC-USD", Price: KnownNum(101)},
		{Symbol: "eth", Change: KnownNum(-3)},
		{ID: "SOL-USD", Price: KnownNum(5)},
	})

	if n != 2 {
		t.Errorf("Expected 2 changed entries, got %d", n)
	}
	if out[0].Price.Value != 101 || out[0].Change.Value != 1 {
		t.Errorf("BTC = %+v", out[0])
	}
	if out[1].Price.Value != 10 || out[1].Change.Value != -3 {
		t.Errorf("ETH = %+v", out[1])
	}
	if entries[0].Price.Value != 100 {
		t.Error("ApplyTicks must not modify its input")
	}
}
