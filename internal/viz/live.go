package viz

import (
	"fmt"
	"image"
	"image/color"
	"image/gif"
	"os"
	"strconv"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/guptarohit/asciigraph"

	"github.com/san-kum/rigidsim/internal/sim"
)

const (
	defaultWidth    = 80
	defaultHeight   = 24
	panelWidth      = 48
	historyCapacity = 600
	maxSubsteps     = 16
	tickRate        = time.Second / 60
)

type TickMsg time.Time

// BuildFunc creates a fresh simulator for the viewer and for resets.
type BuildFunc func() (*sim.Simulator, error)

// Model is the live viewer: it steps a simulator on every tick and draws
// the world as a wireframe beside a stats panel.
type Model struct {
	name     string
	build    BuildFunc
	sim      *sim.Simulator
	dt       float64
	substeps int

	canvas *Canvas
	camera *Camera
	fitted bool
	opts   FrameOptions
	theme  int
	styles styles

	running  bool
	err      error
	message  string
	energy   []float64
	showHelp bool

	recording bool
	frames    []*image.Paletted
	gifPath   string
}

// NewModel builds the first simulator right away so configuration errors
// surface before the program starts.
func NewModel(name string, dt float64, build BuildFunc) (*Model, error) {
	s, err := build()
	if err != nil {
		return nil, err
	}
	m := &Model{
		name:     name,
		build:    build,
		sim:      s,
		dt:       dt,
		substeps: 1,
		canvas:   NewCanvas(defaultWidth, defaultHeight),
		camera:   NewCamera(),
		opts:     FrameOptions{Joints: true},
		styles:   newStyles(Themes[0]),
		running:  true,
		energy:   make([]float64, 0, historyCapacity),
		gifPath:  "rigidsim.gif",
	}
	m.draw()
	return m, nil
}

// SetTheme selects a theme by name.
func (m *Model) SetTheme(name string) {
	for i, t := range Themes {
		if t.Name == name {
			m.theme = i
			m.styles = newStyles(t)
		}
	}
}

// SetGIFPath sets where recordings are written.
func (m *Model) SetGIFPath(path string) { m.gifPath = path }

func (m *Model) Err() error { return m.err }

func tick() tea.Cmd {
	return tea.Tick(tickRate, func(t time.Time) tea.Msg { return TickMsg(t) })
}

func (m *Model) Init() tea.Cmd { return tick() }

func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.resize(msg.Width, msg.Height)
	case tea.KeyMsg:
		return m, m.key(msg.String())
	case TickMsg:
		if m.running && m.err == nil {
			for i := 0; i < m.substeps; i++ {
				if !m.advance() {
					break
				}
			}
		}
		m.draw()
		if m.recording {
			m.captureFrame()
		}
		return m, tick()
	}
	return m, nil
}

func (m *Model) key(k string) tea.Cmd {
	switch k {
	case "q", "ctrl+c":
		return tea.Quit
	case " ":
		m.running = !m.running
	case ".":
		if !m.running {
			m.advance()
			m.draw()
		}
	case "r":
		m.reset()
	case "]":
		m.substeps = min(maxSubsteps, m.substeps*2)
	case "[":
		m.substeps = max(1, m.substeps/2)
	case "left", "h":
		m.camera.Orbit(-0.1, 0)
	case "right", "l":
		m.camera.Orbit(0.1, 0)
	case "up", "k":
		m.camera.Orbit(0, 0.1)
	case "down", "j":
		m.camera.Orbit(0, -0.1)
	case "+", "=":
		m.camera.ZoomIn()
	case "-", "_":
		m.camera.ZoomOut()
	case "f":
		m.fitted = false
	case "c":
		m.opts.Contacts = !m.opts.Contacts
	case "o":
		m.opts.Joints = !m.opts.Joints
	case "t":
		m.theme = (m.theme + 1) % len(Themes)
		m.styles = newStyles(Themes[m.theme])
	case "g":
		m.toggleRecording()
	case "?":
		m.showHelp = !m.showHelp
	}
	m.draw()
	return nil
}

// advance steps once and records the energy. It reports false once the
// simulator failed.
func (m *Model) advance() bool {
	if m.err != nil {
		return false
	}
	if err := m.sim.Step(m.dt); err != nil {
		m.err = err
		m.running = false
		return false
	}
	w := m.sim.World()
	m.energy = append(m.energy, sim.KineticEnergy(w)+sim.PotentialEnergy(w))
	if len(m.energy) > historyCapacity {
		m.energy = m.energy[1:]
	}
	return true
}

func (m *Model) reset() {
	s, err := m.build()
	if err != nil {
		m.err = err
		m.running = false
		return
	}
	m.sim = s
	m.err = nil
	m.message = ""
	m.energy = m.energy[:0]
	m.running = true
	m.draw()
}

func (m *Model) resize(w, h int) {
	cw := max(20, w-panelWidth-6)
	ch := max(10, h-4)
	if cw != m.canvas.Width || ch != m.canvas.Height {
		m.canvas = NewCanvas(cw, ch)
		m.frames = nil
		m.recording = false
	}
	m.draw()
}

func (m *Model) draw() {
	frame := BuildFrame(m.sim.World(), m.opts)
	if !m.fitted {
		m.camera.Fit(frame.Bounds)
		m.fitted = true
	}
	m.canvas.Clear()
	Render(m.canvas, frame, m.camera)
}

func (m *Model) View() string {
	st := m.sim.World().Stats()
	var s strings.Builder
	s.WriteString(m.styles.header.Render(strings.ToUpper(m.name)) + "\n")

	switch {
	case m.err != nil:
		s.WriteString(m.styles.failed.Render("FAILED") + "\n" + m.styles.value.Render(wrap(m.err.Error(), panelWidth-6)) + "\n")
	case m.running:
		s.WriteString(m.styles.running.Render(fmt.Sprintf("RUNNING x%d", m.substeps)) + "\n")
	default:
		s.WriteString(m.styles.paused.Render("PAUSED") + "\n")
	}
	if m.recording {
		s.WriteString(m.styles.failed.Render(fmt.Sprintf("REC %d frames", len(m.frames))) + "\n")
	}
	if m.message != "" {
		s.WriteString(m.styles.label.Width(0).Render(m.message) + "\n")
	}

	if len(m.energy) > 1 {
		chart := asciigraph.Plot(m.energy, asciigraph.Height(5), asciigraph.Width(30), asciigraph.Caption("Total energy"))
		s.WriteString(m.styles.graph.Render(chart) + "\n")
	}

	row := func(label, value string) {
		s.WriteString(m.styles.label.Render(label) + m.styles.value.Render(value) + "\n")
	}
	row("Time", fmt.Sprintf("%.2fs", m.sim.Time()))
	row("Steps", strconv.FormatUint(st.Steps, 10))
	row("Bodies", strconv.Itoa(st.Bodies))
	row("Joints", strconv.Itoa(st.Joints))
	row("Islands", strconv.Itoa(st.Islands))
	row("Contacts", strconv.Itoa(st.Manifolds))
	row("Min sep", fmt.Sprintf("%.4f", st.MinSeparation))
	if len(m.energy) > 0 {
		row("Energy", fmt.Sprintf("%.2f", m.energy[len(m.energy)-1]))
	}
	asleep := 0.0
	if st.Bodies > 0 {
		asleep = float64(st.Sleeping) / float64(st.Bodies)
	}
	row("Asleep", ProgressBar(asleep, 16, m.styles.kind(KindSleeping))+fmt.Sprintf(" %d", st.Sleeping))
	row("Theme", Themes[m.theme].Name)

	s.WriteString(m.styles.help.Render("SP:Pause .:Step R:Reset Q:Quit\n[ ]:Speed ←→↑↓:Orbit +-:Zoom\nC:Contacts O:Joints T:Theme ?:Help"))

	canvasView := m.styles.canvas.Render(m.canvas.Styled(m.styles.kind))
	mainView := lipgloss.JoinHorizontal(lipgloss.Top, canvasView, m.styles.panel.Render(s.String()))
	if m.showHelp {
		return helpText + "\n\n" + mainView
	}
	return mainView
}

const helpText = `
╔══════════════════════════════════════╗
║          KEYBOARD SHORTCUTS          ║
╠══════════════════════════════════════╣
║  Space    Pause or resume            ║
║  .        Single step while paused   ║
║  R        Rebuild the scene          ║
║  [ ]      Halve or double speed      ║
║  Arrows   Orbit the camera (hjkl)    ║
║  + -      Zoom                       ║
║  F        Refit the camera           ║
║  C        Toggle contact points      ║
║  O        Toggle joints              ║
║  G        Toggle GIF recording       ║
║  T        Cycle themes               ║
║  Q        Quit                       ║
╚══════════════════════════════════════╝`

func wrap(text string, width int) string {
	var out strings.Builder
	line := 0
	for _, word := range strings.Fields(text) {
		if line > 0 && line+len(word)+1 > width {
			out.WriteByte('\n')
			line = 0
		} else if line > 0 {
			out.WriteByte(' ')
			line++
		}
		out.WriteString(word)
		line += len(word)
	}
	return out.String()
}

func (m *Model) toggleRecording() {
	if !m.recording {
		m.recording = true
		m.frames = make([]*image.Paletted, 0)
		m.message = ""
		return
	}
	m.recording = false
	if err := m.saveGIF(); err != nil {
		m.message = "gif: " + err.Error()
	} else if len(m.frames) > 0 {
		m.message = fmt.Sprintf("saved %d frames to %s", len(m.frames), m.gifPath)
	}
	m.frames = nil
}

// palette maps index 0 to the background and 1+k to segment kind k.
func (m *Model) palette() color.Palette {
	t := Themes[m.theme]
	p := color.Palette{hexColor(t.Background)}
	for k := KindDynamic; k <= KindContact; k++ {
		p = append(p, hexColor(t.Color(k)))
	}
	return p
}

// captureFrame paints every lit dot as a 4x4 pixel block.
func (m *Model) captureFrame() {
	const dot = 4
	w, h := m.canvas.Size()
	img := image.NewPaletted(image.Rect(0, 0, w*dot, h*dot), m.palette())
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			if !m.canvas.Lit(x, y) {
				continue
			}
			idx := uint8(1 + m.canvas.kinds[(y/4)*m.canvas.Width+x/2])
			for py := 0; py < dot; py++ {
				for px := 0; px < dot; px++ {
					img.SetColorIndex(x*dot+px, y*dot+py, idx)
				}
			}
		}
	}
	m.frames = append(m.frames, img)
}

func (m *Model) saveGIF() error {
	if len(m.frames) == 0 {
		return nil
	}
	anim := gif.GIF{LoopCount: 0}
	for _, frame := range m.frames {
		anim.Image = append(anim.Image, frame)
		anim.Delay = append(anim.Delay, 2)
	}
	f, err := os.Create(m.gifPath)
	if err != nil {
		return err
	}
	defer f.Close()
	if err := gif.EncodeAll(f, &anim); err != nil {
		return err
	}
	return f.Close()
}

// hexColor parses "#rrggbb", falling back to grey.
func hexColor(c lipgloss.Color) color.RGBA {
	s := strings.TrimPrefix(string(c), "#")
	v, err := strconv.ParseUint(s, 16, 32)
	if err != nil || len(s) != 6 {
		return color.RGBA{0x80, 0x80, 0x80, 0xff}
	}
	return color.RGBA{uint8(v >> 16), uint8(v >> 8), uint8(v), 0xff}
}

// Run starts the viewer in the alternate screen.
func Run(m *Model) error {
	_, err := tea.NewProgram(m, tea.WithAltScreen()).Run()
	return err
}
