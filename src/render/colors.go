package render

import (
	chart "github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"
)

// fallbackPalette stands in if the chart backend yields no usable default
// color for an index.
var fallbackPalette = []drawing.Color{
	drawing.ColorFromHex("1f77b4"),
	drawing.ColorFromHex("ff7f0e"),
	drawing.ColorFromHex("2ca02c"),
	drawing.ColorFromHex("d62728"),
	drawing.ColorFromHex("9467bd"),
	drawing.ColorFromHex("8c564b"),
	drawing.ColorFromHex("e377c2"),
	drawing.ColorFromHex("7f7f7f"),
	drawing.ColorFromHex("bcbd22"),
	drawing.ColorFromHex("17becf"),
}

// ColorMap assigns one stable color per run name for the duration of a single
// rendering pass, in first-encountered order. A run keeps its color across
// every subplot of the figure.
type ColorMap struct {
	assigned map[string]drawing.Color
	next     int
}

// NewColorMap builds a fresh assignment table with the palette cursor at the
// start. One map per rendering pass; never shared across runs of the tool.
func NewColorMap() *ColorMap {
	return &ColorMap{assigned: map[string]drawing.Color{}}
}

// Color returns the color for run, assigning the next palette entry on first
// encounter. The backend's default palette wraps by itself; the fixed
// fallback covers an empty or unusable backend color.
func (m *ColorMap) Color(run string) drawing.Color {
	if c, ok := m.assigned[run]; ok {
		return c
	}
	c := chart.GetDefaultColor(m.next)
	if c.IsZero() {
		c = fallbackPalette[m.next%len(fallbackPalette)]
	}
	m.next++
	m.assigned[run] = c
	return c
}
