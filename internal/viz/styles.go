package viz

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// styles holds the lipgloss styles of the viewer for one theme.
type styles struct {
	canvas   lipgloss.Style
	panel    lipgloss.Style
	header   lipgloss.Style
	label    lipgloss.Style
	value    lipgloss.Style
	running  lipgloss.Style
	paused   lipgloss.Style
	failed   lipgloss.Style
	graph    lipgloss.Style
	help     lipgloss.Style
	selected lipgloss.Style
	kinds    [KindContact + 1]lipgloss.Style
}

func newStyles(t Theme) styles {
	s := styles{
		canvas:   lipgloss.NewStyle().Padding(1, 2),
		panel:    lipgloss.NewStyle().Border(lipgloss.NormalBorder(), false, false, false, true).BorderForeground(t.Muted).Padding(1, 2).Width(42),
		header:   lipgloss.NewStyle().Foreground(t.Accent).Bold(true).MarginBottom(1),
		label:    lipgloss.NewStyle().Foreground(t.Muted).Width(12),
		value:    lipgloss.NewStyle().Foreground(t.Text),
		running:  lipgloss.NewStyle().Foreground(t.Accent).Bold(true),
		paused:   lipgloss.NewStyle().Foreground(t.Warning).Bold(true),
		failed:   lipgloss.NewStyle().Foreground(t.Error).Bold(true),
		graph:    lipgloss.NewStyle().Foreground(t.Dynamic).Padding(1, 0),
		help:     lipgloss.NewStyle().Foreground(t.Muted).MarginTop(1),
		selected: lipgloss.NewStyle().Foreground(t.Joint).Bold(true),
	}
	for k := range s.kinds {
		s.kinds[k] = lipgloss.NewStyle().Foreground(t.Color(Kind(k)))
	}
	return s
}

func (s styles) kind(k Kind) lipgloss.Style {
	if int(k) < len(s.kinds) {
		return s.kinds[k]
	}
	return s.kinds[KindDynamic]
}

// ProgressBar renders a bar filled to fraction of width.
func ProgressBar(fraction float64, width int, style lipgloss.Style) string {
	filled := int(fraction * float64(width))
	filled = max(0, min(width, filled))
	return style.Render(strings.Repeat("█", filled) + strings.Repeat("░", width-filled))
}
