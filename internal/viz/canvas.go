package viz

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Braille cells hold 2x4 dots:
//
//	1 4
//	2 5
//	3 6
//	7 8
//
// starting at U+2800.
const brailleBase = 0x2800

var dotBits = [4][2]uint8{
	{0x01, 0x08},
	{0x02, 0x10},
	{0x04, 0x20},
	{0x40, 0x80},
}

// Canvas is a dot surface of Width x Height terminal cells, addressed in
// dots: (Width*2) x (Height*4).
// Set records Pen as the kind of the touched cell; the last writer of a
// cell decides its colour.
type Canvas struct {
	Width, Height int
	Pen           Kind
	cells         []uint8
	kinds         []Kind
}

func NewCanvas(w, h int) *Canvas {
	return &Canvas{Width: w, Height: h, cells: make([]uint8, w*h), kinds: make([]Kind, w*h)}
}

// Size returns the canvas size in dots.
func (c *Canvas) Size() (int, int) { return c.Width * 2, c.Height * 4 }

func (c *Canvas) cell(x, y int) (int, uint8, bool) {
	if x < 0 || y < 0 || x >= c.Width*2 || y >= c.Height*4 {
		return 0, 0, false
	}
	return (y/4)*c.Width + x/2, dotBits[y%4][x%2], true
}

func (c *Canvas) Set(x, y int) {
	if i, bit, ok := c.cell(x, y); ok {
		c.cells[i] |= bit
		c.kinds[i] = c.Pen
	}
}

func (c *Canvas) Unset(x, y int) {
	if i, bit, ok := c.cell(x, y); ok {
		c.cells[i] &^= bit
	}
}

// Lit reports whether the dot at (x, y) is set.
func (c *Canvas) Lit(x, y int) bool {
	i, bit, ok := c.cell(x, y)
	return ok && c.cells[i]&bit != 0
}

func (c *Canvas) Clear() {
	clear(c.cells)
	clear(c.kinds)
}

// Line draws a Bresenham line between two dots.
func (c *Canvas) Line(x0, y0, x1, y1 int) {
	dx := abs(x1 - x0)
	dy := -abs(y1 - y0)
	sx, sy := 1, 1
	if x0 > x1 {
		sx = -1
	}
	if y0 > y1 {
		sy = -1
	}
	err := dx + dy

	for {
		c.Set(x0, y0)
		if x0 == x1 && y0 == y1 {
			return
		}
		e2 := 2 * err
		if e2 >= dy {
			err += dy
			x0 += sx
		}
		if e2 <= dx {
			err += dx
			y0 += sy
		}
	}
}

func (c *Canvas) String() string {
	var b strings.Builder
	b.Grow(c.Height * (c.Width*3 + 1))
	for row := 0; row < c.Height; row++ {
		for _, bits := range c.cells[row*c.Width : (row+1)*c.Width] {
			b.WriteRune(rune(brailleBase + int(bits)))
		}
		b.WriteByte('\n')
	}
	return b.String()
}

// Styled renders the canvas with runs of same-kind cells coloured by
// style. Empty cells are left unstyled.
func (c *Canvas) Styled(style func(Kind) lipgloss.Style) string {
	var b strings.Builder
	var run strings.Builder
	for row := 0; row < c.Height; row++ {
		start := row * c.Width
		for col := 0; col < c.Width; {
			i := start + col
			empty, kind := c.cells[i] == 0, c.kinds[i]
			run.Reset()
			for col < c.Width {
				j := start + col
				if (c.cells[j] == 0) != empty || (!empty && c.kinds[j] != kind) {
					break
				}
				run.WriteRune(rune(brailleBase + int(c.cells[j])))
				col++
			}
			if empty {
				b.WriteString(run.String())
			} else {
				b.WriteString(style(kind).Render(run.String()))
			}
		}
		b.WriteByte('\n')
	}
	return b.String()
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}
