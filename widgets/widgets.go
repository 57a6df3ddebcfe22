// Package widgets renders terminal gauges and sparklines for the status
// client views. Values are utilization percentages, so everything here is
// scaled against a fixed 0-100 range.
package widgets

import (
	"fmt"
	"math"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Color thresholds shared by gauges and sparklines.
const (
	thresholdWarning = 70
	thresholdDanger  = 90
)

var (
	colorOK      = lipgloss.Color("#22C55E")
	colorWarning = lipgloss.Color("#EAB308")
	colorDanger  = lipgloss.Color("#EF4444")
	colorMuted   = lipgloss.Color("#6B7280")
)

// sparkBlocks are the unicode block characters for sparkline rendering,
// lowest to highest.
var sparkBlocks = []rune{'▁', '▂', '▃', '▄', '▅', '▆', '▇', '█'}

// percentColor maps a utilization percentage onto the threshold colors.
func percentColor(percent float64) lipgloss.Color {
	switch {
	case percent >= thresholdDanger:
		return colorDanger
	case percent >= thresholdWarning:
		return colorWarning
	default:
		return colorOK
	}
}

// Gauge renders a labelled horizontal utilization bar:
//
//	cpu  ████████░░░░░░░░░░░░  42.5%
//
// A negative percent (the unavailable sentinel) renders as "n/a".
func Gauge(label string, percent float64, width int) string {
	if width <= 0 {
		width = 20
	}

	var b strings.Builder
	if label != "" {
		fmt.Fprintf(&b, "%-5s", label)
	}

	if percent < 0 {
		b.WriteString(strings.Repeat("░", width))
		b.WriteString("   n/a")
		return b.String()
	}

	clamped := math.Min(100, percent)
	filled := int(math.Round(clamped / 100.0 * float64(width)))

	style := lipgloss.NewStyle().Foreground(percentColor(clamped))
	b.WriteString(style.Render(strings.Repeat("█", filled)))
	b.WriteString(strings.Repeat("░", width-filled))
	fmt.Fprintf(&b, " %5.1f%%", percent)

	return b.String()
}

// Sparkline renders the series as unicode blocks on a fixed 0-100 scale,
// most recent value last. When the series is longer than width, only the
// most recent width values are shown; negative (unavailable) values render
// as the lowest block in a muted color.
func Sparkline(series []float64, width int) string {
	if len(series) == 0 {
		return ""
	}
	if width > 0 && len(series) > width {
		series = series[len(series)-width:]
	}

	var b strings.Builder
	for _, v := range series {
		if v < 0 {
			b.WriteString(lipgloss.NewStyle().Foreground(colorMuted).Render(string(sparkBlocks[0])))
			continue
		}
		norm := math.Min(100, v) / 100.0
		idx := int(norm * float64(len(sparkBlocks)-1))
		style := lipgloss.NewStyle().Foreground(percentColor(v))
		b.WriteString(style.Render(string(sparkBlocks[idx])))
	}
	return b.String()
}
