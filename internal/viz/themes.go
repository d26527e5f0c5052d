package viz

import "github.com/charmbracelet/lipgloss"

// Theme colours the viewer and SVG output. Colours are hex strings.
type Theme struct {
	Name       string
	Dynamic    lipgloss.Color
	Sleeping   lipgloss.Color
	Static     lipgloss.Color
	Trigger    lipgloss.Color
	Joint      lipgloss.Color
	Contact    lipgloss.Color
	Background lipgloss.Color
	Text       lipgloss.Color
	Muted      lipgloss.Color
	Accent     lipgloss.Color
	Warning    lipgloss.Color
	Error      lipgloss.Color
}

var (
	ThemeNeon = Theme{
		Name:       "neon",
		Dynamic:    lipgloss.Color("#00ffff"),
		Sleeping:   lipgloss.Color("#4466aa"),
		Static:     lipgloss.Color("#888888"),
		Trigger:    lipgloss.Color("#ffff00"),
		Joint:      lipgloss.Color("#ff00ff"),
		Contact:    lipgloss.Color("#ff4444"),
		Background: lipgloss.Color("#0a0a0a"),
		Text:       lipgloss.Color("#ffffff"),
		Muted:      lipgloss.Color("#666666"),
		Accent:     lipgloss.Color("#00ff88"),
		Warning:    lipgloss.Color("#ff8800"),
		Error:      lipgloss.Color("#ff0000"),
	}

	ThemePhosphor = Theme{
		Name:       "phosphor",
		Dynamic:    lipgloss.Color("#00ff00"),
		Sleeping:   lipgloss.Color("#007700"),
		Static:     lipgloss.Color("#005500"),
		Trigger:    lipgloss.Color("#88ff88"),
		Joint:      lipgloss.Color("#ccffcc"),
		Contact:    lipgloss.Color("#ffff00"),
		Background: lipgloss.Color("#001100"),
		Text:       lipgloss.Color("#00ff00"),
		Muted:      lipgloss.Color("#005500"),
		Accent:     lipgloss.Color("#88ff88"),
		Warning:    lipgloss.Color("#ffff00"),
		Error:      lipgloss.Color("#ff0000"),
	}

	ThemePaper = Theme{
		Name:       "paper",
		Dynamic:    lipgloss.Color("#1f4e9c"),
		Sleeping:   lipgloss.Color("#8aa4cf"),
		Static:     lipgloss.Color("#555555"),
		Trigger:    lipgloss.Color("#c98a00"),
		Joint:      lipgloss.Color("#a0307a"),
		Contact:    lipgloss.Color("#d02020"),
		Background: lipgloss.Color("#fdfdf8"),
		Text:       lipgloss.Color("#111111"),
		Muted:      lipgloss.Color("#888888"),
		Accent:     lipgloss.Color("#1f4e9c"),
		Warning:    lipgloss.Color("#c98a00"),
		Error:      lipgloss.Color("#d02020"),
	}

	Themes = []Theme{ThemeNeon, ThemePhosphor, ThemePaper}
)

// GetTheme returns the named theme, or the first one when unknown.
func GetTheme(name string) Theme {
	for _, t := range Themes {
		if t.Name == name {
			return t
		}
	}
	return Themes[0]
}

func ThemeNames() []string {
	names := make([]string, len(Themes))
	for i, t := range Themes {
		names[i] = t.Name
	}
	return names
}

// Color returns the colour of segments of kind k.
func (t Theme) Color(k Kind) lipgloss.Color {
	switch k {
	case KindSleeping:
		return t.Sleeping
	case KindStatic:
		return t.Static
	case KindTrigger:
		return t.Trigger
	case KindJoint:
		return t.Joint
	case KindContact:
		return t.Contact
	}
	return t.Dynamic
}
