// CABSFlight TUI
// Interactive terminal map of campus bus positions with animated markers.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/fusiondrive/CABSFlight/pkg/config"
	"github.com/fusiondrive/CABSFlight/pkg/geo"
	"github.com/fusiondrive/CABSFlight/pkg/tracking"
	"github.com/fusiondrive/CABSFlight/pkg/transit"
)

var configPath = flag.String("config", "configs/config.json", "Path to configuration file")

// Vehicle trail stores recent positions for breadcrumb display
type vehicleTrail struct {
	positions []geo.Point
	maxLength int
}

type model struct {
	cfg     *config.Config
	session *tracking.Session
	frames  chan []transit.VehicleSnapshot

	routes   []transit.Route
	routeIdx int
	route    *transit.Route

	vehicles []transit.VehicleSnapshot
	trails   map[string]*vehicleTrail

	mapMode bool
	loading bool
	center  geo.Point
	zoom    float64
	err     string
}

// frameMsg carries one animation frame into the update loop.
type frameMsg []transit.VehicleSnapshot

// routesMsg carries the loaded route list.
type routesMsg []transit.Route

// routeSelectedMsg reports a completed route switch.
type routeSelectedMsg struct {
	route *transit.Route
	err   error
}

type tickMsg time.Time

func tick() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// waitForFrame blocks on the frame channel and feeds the next animation
// frame into the program.
func waitForFrame(frames chan []transit.VehicleSnapshot) tea.Cmd {
	return func() tea.Msg {
		return frameMsg(<-frames)
	}
}

func (m model) loadRoutes() tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		routes, err := m.session.LoadRoutes(ctx)
		if err != nil {
			return routeSelectedMsg{err: err}
		}
		return routesMsg(routes)
	}
}

func (m model) selectRoute(code string) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := m.session.SelectRoute(ctx, code); err != nil {
			return routeSelectedMsg{err: err}
		}
		return routeSelectedMsg{route: m.session.SelectedRoute()}
	}
}

func (m model) Init() tea.Cmd {
	return tea.Batch(m.loadRoutes(), waitForFrame(m.frames), tick())
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)

	case routesMsg:
		m.routes = msg
		m.err = ""
		return m, nil

	case routeSelectedMsg:
		m.loading = false
		if msg.err != nil {
			m.err = fmt.Sprintf("route switch failed: %v", msg.err)
			return m, nil
		}
		m.route = msg.route
		m.mapMode = true
		m.err = ""
		m.trails = make(map[string]*vehicleTrail)
		m.centerOnRoute()
		if err := m.session.StartTracking(context.Background()); err != nil {
			m.err = err.Error()
		}
		return m, nil

	case frameMsg:
		m.vehicles = msg
		m.recordTrails()
		return m, waitForFrame(m.frames)

	case tickMsg:
		// Surface fetch failures recorded between frames
		if e := m.session.Err(); e != "" {
			m.err = e
		} else if m.err != "" && strings.HasPrefix(m.err, "failed to update") {
			m.err = ""
		}
		return m, tick()
	}

	return m, nil
}

func (m model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c", "q":
		return m, tea.Quit

	case "up", "k":
		if !m.mapMode && m.routeIdx > 0 {
			m.routeIdx--
		}
	case "down", "j":
		if !m.mapMode && m.routeIdx < len(m.routes)-1 {
			m.routeIdx++
		}

	case "enter", " ":
		if !m.mapMode && len(m.routes) > 0 {
			m.loading = true
			return m, m.selectRoute(m.routes[m.routeIdx].Code)
		}
		if m.mapMode {
			m.toggleNearestSelection()
		}

	case "b", "esc":
		if m.mapMode {
			m.mapMode = false
			m.session.StopTracking()
			m.session.ClearSelection()
		}

	case "s":
		if m.mapMode {
			if m.session.Tracking() {
				m.session.StopTracking()
			} else if err := m.session.StartTracking(context.Background()); err != nil {
				m.err = err.Error()
			}
		}

	case "tab":
		if m.mapMode {
			m.cycleVehicleSelection()
		}
	case "c":
		m.session.ClearSelection()

	case "+", "=":
		if m.zoom < 16.0 {
			m.zoom *= 1.5
		}
	case "-", "_":
		if m.zoom > 0.25 {
			m.zoom /= 1.5
		}
	case "0":
		m.zoom = 1.0
		m.centerOnRoute()
	}

	return m, nil
}

// centerOnRoute recenters the viewport on the selected route's stops, or
// the campus center when the route has none.
func (m *model) centerOnRoute() {
	m.center = geo.Point{Latitude: m.cfg.Campus.Latitude, Longitude: m.cfg.Campus.Longitude}
	if m.route == nil || len(m.route.Stops) == 0 {
		return
	}

	var lat, lon float64
	for _, stop := range m.route.Stops {
		lat += stop.Latitude
		lon += stop.Longitude
	}
	n := float64(len(m.route.Stops))
	m.center = geo.Point{Latitude: lat / n, Longitude: lon / n}
}

// recordTrails appends the current frame positions to each vehicle's
// breadcrumb trail.
func (m *model) recordTrails() {
	for _, v := range m.vehicles {
		trail := m.trails[v.ID]
		if trail == nil {
			trail = &vehicleTrail{maxLength: 20}
			m.trails[v.ID] = trail
		}
		trail.positions = append(trail.positions, v.Position())
		if len(trail.positions) > trail.maxLength {
			trail.positions = trail.positions[1:]
		}
	}
}

// cycleVehicleSelection moves the selection to the next vehicle on screen.
func (m *model) cycleVehicleSelection() {
	if len(m.vehicles) == 0 {
		return
	}

	current := m.session.SelectedVehicleID()
	next := 0
	for i, v := range m.vehicles {
		if v.ID == current {
			next = (i + 1) % len(m.vehicles)
			break
		}
	}
	m.session.ClearSelection()
	m.session.SelectVehicle(m.vehicles[next].ID)
}

// toggleNearestSelection selects the vehicle nearest the viewport center,
// or clears the selection if it is already selected.
func (m *model) toggleNearestSelection() {
	if len(m.vehicles) == 0 {
		return
	}

	nearest := m.vehicles[0]
	best := geo.DistanceMeters(m.center, nearest.Position())
	for _, v := range m.vehicles[1:] {
		if d := geo.DistanceMeters(m.center, v.Position()); d < best {
			best = d
			nearest = v
		}
	}
	m.session.SelectVehicle(nearest.ID)
}

func main() {
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	frames := make(chan []transit.VehicleSnapshot, 8)
	source := transit.NewClient(cfg.Feed.BaseURL, cfg.Feed.RequestsPerSecond)
	session := tracking.NewSession(source, tracking.Options{
		PollInterval:       cfg.Feed.PollInterval(),
		TransitionDuration: cfg.Animation.TransitionDuration(),
		FrameInterval:      cfg.Animation.FrameInterval(),
		OnFrame: func(frame []transit.VehicleSnapshot) {
			// Never block the animation loop; a dropped frame is
			// replaced by the next one within milliseconds
			select {
			case frames <- frame:
			default:
			}
		},
	})
	defer session.Close()

	m := model{
		cfg:     cfg,
		session: session,
		frames:  frames,
		trails:  make(map[string]*vehicleTrail),
		center:  geo.Point{Latitude: cfg.Campus.Latitude, Longitude: cfg.Campus.Longitude},
		zoom:    1.0,
	}

	p := tea.NewProgram(m, tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("86")).
			Background(lipgloss.Color("235")).
			Padding(0, 1)
	helpStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	errStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	delayStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("208"))
)

func (m model) View() string {
	var s strings.Builder

	title := "CABSFLIGHT CAMPUS MAP"
	if !m.mapMode {
		title = "CABSFLIGHT ROUTE SELECT"
	}
	s.WriteString(titleStyle.Render(title))
	s.WriteString("\n\n")

	if m.err != "" {
		s.WriteString(errStyle.Render("Error: " + m.err))
		s.WriteString("\n\n")
	}

	if m.loading {
		s.WriteString("Loading route...\n")
		return s.String()
	}

	if !m.mapMode {
		s.WriteString(m.renderRouteList())
		s.WriteString("\n")
		s.WriteString(helpStyle.Render("↑/↓: Select  ENTER: Track route  Q: Quit"))
		return s.String()
	}

	s.WriteString(m.renderMap())
	s.WriteString("\n")
	s.WriteString(m.renderVehicleList())
	s.WriteString("\n")
	s.WriteString(helpStyle.Render("TAB: Next bus  ENTER: Select  C: Clear  S: Pause/Resume  +/-: Zoom  B: Routes  Q: Quit"))
	s.WriteString("\n")

	return s.String()
}

func (m model) renderRouteList() string {
	var list strings.Builder

	headerStyle := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("39"))
	list.WriteString(headerStyle.Render("Campus Routes:"))
	list.WriteString(fmt.Sprintf(" (%d)\n\n", len(m.routes)))

	if len(m.routes) == 0 {
		list.WriteString(helpStyle.Render("  Loading routes..."))
		list.WriteString("\n")
		return list.String()
	}

	for i, route := range m.routes {
		prefix := "  "
		if i == m.routeIdx {
			prefix = "→ "
		}

		line := fmt.Sprintf("%s%-4s %s", prefix, route.Code, route.Name)
		if i == m.routeIdx {
			line = lipgloss.NewStyle().Background(lipgloss.Color("237")).Render(line)
		}
		list.WriteString(line)
		list.WriteString("\n")
	}

	return list.String()
}

func (m model) renderVehicleList() string {
	var list strings.Builder

	headerStyle := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("39"))
	name := ""
	if m.route != nil {
		name = m.route.Name
	}
	list.WriteString(headerStyle.Render(name))
	status := " live"
	if !m.session.Tracking() {
		status = " paused"
	}
	list.WriteString(fmt.Sprintf(" | %d buses%s\n", len(m.vehicles), status))

	selected := m.session.SelectedVehicleID()
	for _, v := range m.vehicles {
		prefix := "  "
		if v.ID == selected {
			prefix = "→ "
		}

		line := fmt.Sprintf("%s%-10s %-24s %3d mph  next stop %s (%dm)",
			prefix, v.ID, v.Destination, v.Speed, v.NextStopID, v.NextStopDistance)
		if v.Delayed {
			line += delayStyle.Render("  DELAYED")
		}
		if v.ID == selected {
			line = lipgloss.NewStyle().Background(lipgloss.Color("237")).Render(line)
		}
		list.WriteString(line)
		list.WriteString("\n")
	}

	return list.String()
}
