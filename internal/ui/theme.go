package ui

import (
	"crypto_dash/internal/domain"
	"crypto_dash/internal/format"

	"github.com/charmbracelet/lipgloss"
)

// palette is one colour scheme.
type palette struct {
	title    lipgloss.Style
	header   lipgloss.Style
	text     lipgloss.Style
	dim      lipgloss.Style
	positive lipgloss.Style
	negative lipgloss.Style
	watch    lipgloss.Style
	cursor   lipgloss.Color
	card     lipgloss.Style
	panel    lipgloss.Style
	status   lipgloss.Style
	warn     lipgloss.Style
}

var darkPalette = palette{
	title:    lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12")),
	header:   lipgloss.NewStyle().Foreground(lipgloss.Color("245")),
	text:     lipgloss.NewStyle().Foreground(lipgloss.Color("15")),
	dim:      lipgloss.NewStyle().Foreground(lipgloss.Color("245")),
	positive: lipgloss.NewStyle().Foreground(lipgloss.Color("10")),
	negative: lipgloss.NewStyle().Foreground(lipgloss.Color("9")),
	watch:    lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("208")),
	cursor:   lipgloss.Color("236"),
	card:     lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("240")).Padding(0, 1),
	panel:    lipgloss.NewStyle().Border(lipgloss.NormalBorder()).BorderForeground(lipgloss.Color("240")).Padding(0, 1),
	status:   lipgloss.NewStyle().Foreground(lipgloss.Color("0")).Background(lipgloss.Color("6")),
	warn:     lipgloss.NewStyle().Foreground(lipgloss.Color("11")),
}

var lightPalette = palette{
	title:    lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("25")),
	header:   lipgloss.NewStyle().Foreground(lipgloss.Color("240")),
	text:     lipgloss.NewStyle().Foreground(lipgloss.Color("0")),
	dim:      lipgloss.NewStyle().Foreground(lipgloss.Color("244")),
	positive: lipgloss.NewStyle().Foreground(lipgloss.Color("28")),
	negative: lipgloss.NewStyle().Foreground(lipgloss.Color("160")),
	watch:    lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("166")),
	cursor:   lipgloss.Color("254"),
	card:     lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("250")).Padding(0, 1),
	panel:    lipgloss.NewStyle().Border(lipgloss.NormalBorder()).BorderForeground(lipgloss.Color("250")).Padding(0, 1),
	status:   lipgloss.NewStyle().Foreground(lipgloss.Color("15")).Background(lipgloss.Color("25")),
	warn:     lipgloss.NewStyle().Foreground(lipgloss.Color("130")),
}

func paletteFor(t domain.Theme) palette {
	if t == domain.ThemeLight {
		return lightPalette
	}
	return darkPalette
}

// class picks the style for a formatter class.
func (p palette) class(c format.Class) lipgloss.Style {
	switch c {
	case format.ClassPositive, format.ClassBullish:
		return p.positive
	case format.ClassNegative, format.ClassBearish:
		return p.negative
	default:
		return p.dim
	}
}
