package viz

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// Choice is one scene offered by the picker.
type Choice struct {
	Name        string
	Description string
	Presets     []string
}

// LaunchFunc builds the viewer for a scene and preset; preset is empty for
// the scene defaults.
type LaunchFunc func(scene, preset string) (*Model, error)

const (
	pickScene = iota
	pickPreset
)

var (
	pickTitle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#00cccc")).Bold(true)
	pickSub      = lipgloss.NewStyle().Foreground(lipgloss.Color("#666688"))
	pickCursor   = lipgloss.NewStyle().Foreground(lipgloss.Color("#00ffff")).Bold(true)
	pickActive   = lipgloss.NewStyle().Foreground(lipgloss.Color("#ffffff")).Bold(true)
	pickActiveD  = lipgloss.NewStyle().Foreground(lipgloss.Color("#ff88ff"))
	pickInactive = lipgloss.NewStyle().Foreground(lipgloss.Color("#555566"))
	pickKey      = lipgloss.NewStyle().Foreground(lipgloss.Color("#00aaaa")).Bold(true)
)

// Picker lets the user pick a scene and a preset, then hands the terminal
// to the live viewer.
type Picker struct {
	choices       []Choice
	launch        LaunchFunc
	stage, cursor int
	scene         int
	width, height int
	err           error
}

func NewPicker(choices []Choice, launch LaunchFunc) *Picker {
	return &Picker{choices: choices, launch: launch}
}

func (p *Picker) Init() tea.Cmd { return nil }

func (p *Picker) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		p.width, p.height = msg.Width, msg.Height
	case tea.KeyMsg:
		return p.key(msg.String())
	}
	return p, nil
}

// options lists the presets of the chosen scene, defaults first.
func (p *Picker) options() []string {
	return append([]string{"(defaults)"}, p.choices[p.scene].Presets...)
}

func (p *Picker) key(k string) (tea.Model, tea.Cmd) {
	n := len(p.choices)
	if p.stage == pickPreset {
		n = len(p.options())
	}
	switch k {
	case "q", "ctrl+c":
		return p, tea.Quit
	case "up", "k":
		p.cursor = max(0, p.cursor-1)
	case "down", "j":
		p.cursor = min(n-1, p.cursor+1)
	case "esc":
		if p.stage == pickPreset {
			p.stage, p.cursor = pickScene, p.scene
		}
	case "enter", " ":
		if p.stage == pickScene {
			if len(p.choices) == 0 {
				return p, nil
			}
			p.scene, p.stage, p.cursor = p.cursor, pickPreset, 0
			p.err = nil
			return p, nil
		}
		preset := ""
		if p.cursor > 0 {
			preset = p.options()[p.cursor]
		}
		live, err := p.launch(p.choices[p.scene].Name, preset)
		if err != nil {
			p.err = err
			return p, nil
		}
		if p.width > 0 {
			live.resize(p.width, p.height)
		}
		return live, live.Init()
	}
	return p, nil
}

func (p *Picker) View() string {
	var b strings.Builder
	var items, descs []string
	if p.stage == pickScene {
		b.WriteString("\n\n    " + pickTitle.Render("RIGIDSIM") + "\n    " + pickSub.Render("rigid body scenes") + "\n")
		for _, c := range p.choices {
			items = append(items, c.Name)
			descs = append(descs, c.Description)
		}
	} else {
		c := p.choices[p.scene]
		b.WriteString("\n\n    " + pickTitle.Render(strings.ToUpper(c.Name)) + "\n    " + pickSub.Render(c.Description) + "\n")
		items = p.options()
		descs = make([]string, len(items))
	}
	b.WriteString("    " + pickSub.Render("─────────────────────────") + "\n\n")

	for i, name := range items {
		desc := descs[i]
		if len(desc) > 40 {
			desc = desc[:37] + "..."
		}
		if i == p.cursor {
			b.WriteString(fmt.Sprintf("    %s %s  %s\n", pickCursor.Render("▸"), pickActive.Render(fmt.Sprintf("%-16s", name)), pickActiveD.Render(desc)))
		} else {
			b.WriteString(fmt.Sprintf("    %s  %s\n", pickInactive.Render(fmt.Sprintf("  %-16s", name)), pickInactive.Render(desc)))
		}
	}
	if p.err != nil {
		b.WriteString("\n    " + lipgloss.NewStyle().Foreground(lipgloss.Color("#ff4444")).Render(p.err.Error()) + "\n")
	}

	hint := func(key, what string) string { return pickKey.Render(key) + pickSub.Render(" "+what+"  ") }
	b.WriteString("\n    " + hint("j/k", "navigate") + hint("enter", "select"))
	if p.stage == pickPreset {
		b.WriteString(hint("esc", "back"))
	}
	b.WriteString(hint("q", "quit") + "\n")
	return b.String()
}

// RunPicker starts the picker in the alternate screen.
func RunPicker(choices []Choice, launch LaunchFunc) error {
	_, err := tea.NewProgram(NewPicker(choices, launch), tea.WithAltScreen()).Run()
	return err
}
