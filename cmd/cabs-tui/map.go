package main

import (
	"math"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/fusiondrive/CABSFlight/pkg/geo"
	"github.com/fusiondrive/CABSFlight/pkg/polyline"
)

// Map viewport dimensions
const (
	mapWidth  = 80
	mapHeight = 26
)

// baseSpanDegrees is the latitude span of the viewport at zoom 1.0, sized
// so a campus fits on screen.
const baseSpanDegrees = 0.045

// headingGlyphs maps eight compass sectors to arrows, north first.
var headingGlyphs = []rune{'↑', '↗', '→', '↘', '↓', '↙', '←', '↖'}

func headingGlyph(heading float64) rune {
	sector := int(math.Mod(heading+22.5, 360) / 45)
	return headingGlyphs[sector%8]
}

// latLonToScreen projects a point onto the viewport grid. Longitude is
// stretched by cos(latitude) so distances read roughly true on screen.
func (m model) latLonToScreen(p geo.Point) (int, int) {
	latSpan := baseSpanDegrees / m.zoom
	lonSpan := latSpan * 2.0 / math.Cos(m.center.Latitude*math.Pi/180)

	x := int((p.Longitude-m.center.Longitude)/lonSpan*float64(mapWidth-2)) + (mapWidth-2)/2
	y := (mapHeight-1)/2 - int((p.Latitude-m.center.Latitude)/latSpan*float64(mapHeight-1))
	return x, y
}

func onGrid(x, y int) bool {
	return x >= 0 && x < mapWidth-2 && y >= 0 && y < mapHeight
}

// renderMap draws the route path, stops, trails, and animated bus markers.
func (m model) renderMap() string {
	var out strings.Builder

	borderStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	out.WriteString(borderStyle.Render("┌" + strings.Repeat("─", mapWidth-2) + "┐"))
	out.WriteString("\n")

	grid := make([][]rune, mapHeight)
	for i := range grid {
		grid[i] = make([]rune, mapWidth-2)
		for j := range grid[i] {
			grid[i][j] = ' '
		}
	}

	// Route pattern paths first, everything else draws over them
	if m.route != nil {
		for _, pattern := range m.route.Patterns {
			points, err := polyline.Decode(pattern.EncodedPath)
			if err != nil {
				continue
			}
			for _, p := range points {
				if x, y := m.latLonToScreen(p); onGrid(x, y) {
					grid[y][x] = '·'
				}
			}
		}

		for _, stop := range m.route.Stops {
			x, y := m.latLonToScreen(geo.Point{Latitude: stop.Latitude, Longitude: stop.Longitude})
			if onGrid(x, y) {
				grid[y][x] = '◦'
			}
		}
	}

	// Breadcrumb trails
	for _, trail := range m.trails {
		for _, p := range trail.positions {
			if x, y := m.latLonToScreen(p); onGrid(x, y) {
				if grid[y][x] == ' ' || grid[y][x] == '·' {
					grid[y][x] = '.'
				}
			}
		}
	}

	// Buses last so they always show
	selected := m.session.SelectedVehicleID()
	for _, v := range m.vehicles {
		x, y := m.latLonToScreen(v.Position())
		if !onGrid(x, y) {
			continue
		}
		if v.ID == selected {
			grid[y][x] = '●'
		} else {
			grid[y][x] = headingGlyph(v.Heading)
		}
	}

	busStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("75"))
	selStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("226")).Bold(true)
	stopStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("244"))
	pathStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("237"))

	for y := 0; y < mapHeight; y++ {
		out.WriteString(borderStyle.Render("│"))
		for x := 0; x < mapWidth-2; x++ {
			char := grid[y][x]
			switch char {
			case '●':
				out.WriteString(selStyle.Render(string(char)))
			case '↑', '↗', '→', '↘', '↓', '↙', '←', '↖':
				out.WriteString(busStyle.Render(string(char)))
			case '◦':
				out.WriteString(stopStyle.Render(string(char)))
			case '·', '.':
				out.WriteString(pathStyle.Render(string(char)))
			default:
				out.WriteRune(char)
			}
		}
		out.WriteString(borderStyle.Render("│"))
		out.WriteString("\n")
	}

	out.WriteString(borderStyle.Render("└" + strings.Repeat("─", mapWidth-2) + "┘"))

	return out.String()
}
