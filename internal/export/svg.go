// Package export renders frames and sampled channels as SVG.
package export

import (
	"fmt"
	"strings"

	"github.com/san-kum/rigidsim/internal/viz"
)

const svgHeader = `<?xml version="1.0" encoding="UTF-8"?>
<svg xmlns="http://www.w3.org/2000/svg" width="%d" height="%d" viewBox="0 0 %d %d">
<rect width="100%%" height="100%%" fill="%s"/>
`

// FrameToSVG draws the frame as it appears through cam, one polyline group
// per segment kind.
func FrameToSVG(frame *viz.Frame, cam *viz.Camera, width, height int, theme viz.Theme) string {
	if frame == nil || cam == nil || width <= 0 || height <= 0 {
		return ""
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, svgHeader, width, height, width, height, theme.Background)

	lines := frame.Project(cam, float64(width), float64(height))
	// keep painter order but batch consecutive lines of the same kind
	for i := 0; i < len(lines); {
		kind := lines[i].Kind
		fmt.Fprintf(&sb, `<g stroke="%s" stroke-width="%.1f" stroke-linecap="round">`+"\n", theme.Color(kind), strokeWidth(kind))
		for ; i < len(lines) && lines[i].Kind == kind; i++ {
			l := lines[i]
			fmt.Fprintf(&sb, `<line x1="%.1f" y1="%.1f" x2="%.1f" y2="%.1f"/>`+"\n", l.X1, l.Y1, l.X2, l.Y2)
		}
		sb.WriteString("</g>\n")
	}

	sb.WriteString("</svg>")
	return sb.String()
}

func strokeWidth(k viz.Kind) float64 {
	switch k {
	case viz.KindStatic:
		return 1
	case viz.KindContact:
		return 2
	}
	return 1.5
}

// SeriesToSVG plots values against times as a single path with 10%
// padding on both axes.
func SeriesToSVG(times, values []float64, width, height int, strokeColor string) string {
	n := min(len(times), len(values))
	if n < 2 {
		return ""
	}

	minX, maxX := times[0], times[0]
	minY, maxY := values[0], values[0]
	for i := 0; i < n; i++ {
		minX, maxX = min(minX, times[i]), max(maxX, times[i])
		minY, maxY = min(minY, values[i]), max(maxY, values[i])
	}

	rangeX := maxX - minX
	rangeY := maxY - minY
	if rangeX == 0 {
		rangeX = 1
	}
	if rangeY == 0 {
		rangeY = 1
	}
	minX -= rangeX * 0.1
	maxX += rangeX * 0.1
	minY -= rangeY * 0.1
	maxY += rangeY * 0.1
	rangeX = maxX - minX
	rangeY = maxY - minY

	var sb strings.Builder
	fmt.Fprintf(&sb, svgHeader, width, height, width, height, "#0a0a0a")
	fmt.Fprintf(&sb, `<path fill="none" stroke="%s" stroke-width="1.5" d="M`, strokeColor)

	for i := 0; i < n; i++ {
		x := (times[i] - minX) / rangeX * float64(width)
		y := float64(height) - (values[i]-minY)/rangeY*float64(height)
		if i == 0 {
			fmt.Fprintf(&sb, "%.1f,%.1f", x, y)
		} else {
			fmt.Fprintf(&sb, " L%.1f,%.1f", x, y)
		}
	}

	sb.WriteString(`"/>
</svg>`)
	return sb.String()
}
