// Package export writes the price series already on screen to CSV or JSON.
package export

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"crypto_dash/internal/domain"
)

// Format is an export file format.
type Format string

const (
	FormatCSV  Format = "csv"
	FormatJSON Format = "json"
)

// ParseFormat accepts "csv" or "json" in any case.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case FormatCSV, FormatJSON:
		return f, nil
	default:
		return "", fmt.Errorf("unsupported export format %q", s)
	}
}

const dateLayout = "2006-01-02"

var header = []string{"date", "open", "high", "low", "close", "volume"}

// CSV writes one row per point. Unknown values are empty cells.
func CSV(w io.Writer, series domain.PriceSeries) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(header); err != nil {
		return err
	}
	for _, p := range series {
		row := []string{
			p.Date.Format(dateLayout),
			cell(p.Open), cell(p.High), cell(p.Low), cell(p.Close), cell(p.Volume),
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func cell(n domain.Num) string {
	if !n.Known {
		return ""
	}
	return strconv.FormatFloat(n.Value, 'f', -1, 64)
}

// Point is the JSON form of one bar. Unknown values are null.
type Point struct {
	Date   string   `json:"date"`
	Open   *float64 `json:"open"`
	High   *float64 `json:"high"`
	Low    *float64 `json:"low"`
	Close  *float64 `json:"close"`
	Volume *float64 `json:"volume"`
}

// Document is the JSON export.
type Document struct {
	Entity string  `json:"entity"`
	Range  string  `json:"range"`
	Points []Point `json:"points"`
}

// JSON writes an indented Document.
func JSON(w io.Writer, entity string, rng domain.RangeKey, series domain.PriceSeries) error {
	doc := Document{Entity: entity, Range: string(rng), Points: make([]Point, 0, len(series))}
	for _, p := range series {
		doc.Points = append(doc.Points, Point{
			Date:   p.Date.Format(dateLayout),
			Open:   ptr(p.Open),
			High:   ptr(p.High),
			Low:    ptr(p.Low),
			Close:  ptr(p.Close),
			Volume: ptr(p.Volume),
		})
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(doc)
}

func ptr(n domain.Num) *float64 {
	if !n.Known {
		return nil
	}
	v := n.Value
	return &v
}

// FileName is <entity>_<range>.<format> with path separators removed from entity.
func FileName(entity string, rng domain.RangeKey, format Format) string {
	safe := strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ':', '*', '?', '"', '<', '>', '|', ' ':
			return '_'
		}
		return r
	}, entity)
	return fmt.Sprintf("%s_%s.%s", safe, rng, format)
}

// WriteFile writes series into dir and returns the file path.
func WriteFile(dir, entity string, rng domain.RangeKey, format Format, series domain.PriceSeries) (string, error) {
	if entity == "" {
		return "", fmt.Errorf("export: no entity")
	}
	if len(series) == 0 {
		return "", fmt.Errorf("export %s %s: empty series", entity, rng)
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("export: create dir: %w", err)
	}

	path := filepath.Join(dir, FileName(entity, rng, format))
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("export: %w", err)
	}
	defer f.Close()

	switch format {
	case FormatCSV:
		err = CSV(f, series)
	case FormatJSON:
		err = JSON(f, entity, rng, series)
	default:
		err = fmt.Errorf("unsupported export format %q", format)
	}
	if err != nil {
		return "", fmt.Errorf("export %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("export %s: %w", path, err)
	}
	return path, nil
}
