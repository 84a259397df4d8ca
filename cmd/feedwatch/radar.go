package main

import (
	"math"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/skyroute/flightfeed/pkg/coordinates"
)

// Terminal cells are roughly twice as tall as they are wide.
const aspectRatio = 0.5

// radarSize returns the scope dimensions in cells for the current window.
func (m model) radarSize() (int, int) {
	w := m.width - 60 // Reserve space for the flight list
	if w < 40 {
		w = 40
	}
	h := m.height - 8 // Header, detail and help lines
	if h < 20 {
		h = 20
	}
	return w, h
}

// radiusKm converts the query radius in degrees of latitude to kilometres.
func (m model) radiusKm() float64 {
	return m.radius * coordinates.EarthRadiusKm * coordinates.DegreesToRadians
}

// radarToScreen converts a position to scope cell coordinates.
// Returns -1,-1 if the position is outside the scope radius.
func (m model) radarToScreen(pos coordinates.Geographic) (int, int) {
	distance := coordinates.DistanceKm(m.center, pos)
	radius := m.radiusKm()
	if distance > radius {
		return -1, -1
	}

	w, h := m.radarSize()
	centerX, centerY := w/2, h/2

	// Fit the radius into the smaller (aspect-corrected) dimension
	maxY := float64(h/2 - 1)
	maxX := float64(w/2-1) * aspectRatio
	scale := math.Min(maxX, maxY) / radius

	bearing := coordinates.Bearing(m.center, pos) * coordinates.DegreesToRadians
	dx := distance * math.Sin(bearing) * scale / aspectRatio
	dy := -distance * math.Cos(bearing) * scale

	x := centerX + int(math.Round(dx))
	y := centerY + int(math.Round(dy))
	if x < 0 || x >= w || y < 0 || y >= h {
		return -1, -1
	}
	return x, y
}

// renderRadar draws the range ring, every flight's predicted position and
// the selected flight's trajectory.
func (m model) renderRadar() string {
	w, h := m.radarSize()

	grid := make([][]rune, h)
	colors := make([][]string, h)
	for y := range grid {
		grid[y] = []rune(strings.Repeat(" ", w))
		colors[y] = make([]string, w)
	}
	plot := func(pos coordinates.Geographic, r rune, color string) {
		if x, y := m.radarToScreen(pos); x >= 0 {
			grid[y][x] = r
			colors[y][x] = color
		}
	}

	// Range ring at the query radius
	for az := 0.0; az < 360; az += 3 {
		ring := coordinates.Destination(m.center, az, m.radiusKm()*0.999)
		plot(ring, '·', "237")
	}
	plot(m.center, '+', "208")

	if m.selected < len(m.flights) {
		for _, p := range m.flights[m.selected].Trajectory {
			plot(p, '∙', "39")
		}
	}

	for i, f := range m.flights {
		switch {
		case i == m.selected:
			plot(f.PredictedPosition, '◉', "46")
		case f.OnGround:
			plot(f.PredictedPosition, '○', "244")
		default:
			plot(f.PredictedPosition, '●', "226")
		}
	}

	styles := map[string]lipgloss.Style{}
	var out strings.Builder
	for y := range grid {
		for x, r := range grid[y] {
			c := colors[y][x]
			if c == "" {
				out.WriteRune(r)
				continue
			}
			style, ok := styles[c]
			if !ok {
				style = lipgloss.NewStyle().Foreground(lipgloss.Color(c))
				styles[c] = style
			}
			out.WriteString(style.Render(string(r)))
		}
		if y < h-1 {
			out.WriteString("\n")
		}
	}
	return out.String()
}
