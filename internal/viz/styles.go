package viz

import (
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/san-kum/brainjam/internal/jam"
)

// styles are rebuilt whenever the theme changes.
type styles struct {
	panel   lipgloss.Style
	header  lipgloss.Style
	label   lipgloss.Style
	value   lipgloss.Style
	muted   lipgloss.Style
	graph   lipgloss.Style
	running lipgloss.Style
	paused  lipgloss.Style
	low     lipgloss.Style
	mid     lipgloss.Style
	high    lipgloss.Style
}

func newStyles(t Theme) styles {
	return styles{
		panel: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(t.Border).
			Padding(0, 2),
		header: lipgloss.NewStyle().
			Bold(true).
			Foreground(t.Primary).
			BorderStyle(lipgloss.NormalBorder()).
			BorderBottom(true).
			BorderForeground(t.Border),
		label:   lipgloss.NewStyle().Foreground(t.Muted).Width(22),
		value:   lipgloss.NewStyle().Foreground(t.Accent).Bold(true),
		muted:   lipgloss.NewStyle().Foreground(t.Muted).Italic(true),
		graph:   lipgloss.NewStyle().Foreground(t.Accent).Padding(1, 0),
		running: lipgloss.NewStyle().Bold(true).Foreground(t.Calm),
		paused:  lipgloss.NewStyle().Bold(true).Foreground(t.Warm),
		low:     lipgloss.NewStyle().Foreground(t.Calm),
		mid:     lipgloss.NewStyle().Foreground(t.Warm),
		high:    lipgloss.NewStyle().Foreground(t.Hot),
	}
}

// badge colors a behavior label by how much energy it carries.
func (s styles) badge(b jam.Behavior) string {
	text := " " + strings.ToUpper(b.String()) + " "
	switch b {
	case jam.Active:
		return s.high.Bold(true).Reverse(true).Render(text)
	case jam.Responsive:
		return s.mid.Bold(true).Reverse(true).Render(text)
	case jam.Calm:
		return s.low.Bold(true).Reverse(true).Render(text)
	}
	return s.muted.Render(" - ")
}

func (s styles) level(v float64) lipgloss.Style {
	switch {
	case v > 0.7:
		return s.high
	case v > 0.35:
		return s.mid
	}
	return s.low
}

// Meter draws v in [0,1] as a bar width cells wide.
func Meter(v float64, width int) string {
	filled := int(jam.Unit(v)*float64(width) + 0.5)
	return strings.Repeat("█", filled) + strings.Repeat("░", width-filled)
}

var sparks = []rune{'▁', '▂', '▃', '▄', '▅', '▆', '▇', '█'}

// Sparkline draws the last width values of vs scaled between lo and hi.
func Sparkline(vs []float64, lo, hi float64, width int) string {
	if len(vs) > width {
		vs = vs[len(vs)-width:]
	}
	rng := hi - lo
	if rng <= 0 {
		rng = 1
	}
	var b strings.Builder
	for _, v := range vs {
		idx := int((v - lo) / rng * float64(len(sparks)-1))
		b.WriteRune(sparks[max(0, min(idx, len(sparks)-1))])
	}
	if pad := width - len(vs); pad > 0 {
		b.WriteString(strings.Repeat(" ", pad))
	}
	return b.String()
}
