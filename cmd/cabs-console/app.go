package main

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"

	"github.com/fusiondrive/CABSFlight/pkg/config"
	"github.com/fusiondrive/CABSFlight/pkg/tracking"
	"github.com/fusiondrive/CABSFlight/pkg/transit"
)

// AppConfig holds the application configuration
type AppConfig struct {
	Config  *config.Config
	Source  transit.VehicleSource
	Options tracking.Options
}

// App represents the main application
type App struct {
	config  *config.Config
	session *tracking.Session
	frames  chan []transit.VehicleSnapshot

	// UI components
	tviewApp   *tview.Application
	routeList  *tview.List
	board      *tview.TextView
	telemetry  *tview.TextView
	controls   *tview.TextView
	logs       *tview.TextView
	rootLayout *tview.Flex

	// State
	mu       sync.RWMutex
	vehicles []transit.VehicleSnapshot

	stopChan chan struct{}
	stopOnce sync.Once
}

// NewApp creates a new application instance
func NewApp(cfg *AppConfig) *App {
	app := &App{
		config:   cfg.Config,
		frames:   make(chan []transit.VehicleSnapshot, 8),
		stopChan: make(chan struct{}),
	}

	opts := cfg.Options
	opts.OnFrame = func(frame []transit.VehicleSnapshot) {
		// Never stall the animation loop on a busy UI
		select {
		case app.frames <- frame:
		default:
		}
	}
	app.session = tracking.NewSession(cfg.Source, opts)

	app.setupUI()
	return app
}

// setupUI initializes the user interface
func (a *App) setupUI() {
	a.tviewApp = tview.NewApplication()

	a.createRouteList()
	a.createBoardPanel()
	a.createTelemetryPanel()
	a.createControlsPanel()
	a.createLogsPanel()

	a.createLayout()

	a.tviewApp.SetInputCapture(a.handleKeyboard)
}

// createRouteList creates the route selection panel
func (a *App) createRouteList() {
	a.routeList = tview.NewList().
		ShowSecondaryText(false).
		SetHighlightFullLine(true)
	a.routeList.SetBorder(true).SetTitle(" Routes ")

	a.routeList.SetSelectedFunc(func(index int, code, name string, shortcut rune) {
		go a.trackRoute(code)
	})
}

// createBoardPanel creates the live vehicle board
func (a *App) createBoardPanel() {
	a.board = tview.NewTextView().
		SetDynamicColors(true).
		SetScrollable(false)
	a.board.SetBorder(true).SetTitle(" Live Buses ")
	a.board.SetText("[gray]Select a route to begin tracking[-]")
}

// createTelemetryPanel creates the telemetry info panel
func (a *App) createTelemetryPanel() {
	a.telemetry = tview.NewTextView().
		SetDynamicColors(true).
		SetScrollable(false)
	a.telemetry.SetBorder(true).SetTitle(" Telemetry ")

	a.updateTelemetry()
}

// createControlsPanel creates the controls/shortcuts panel
func (a *App) createControlsPanel() {
	a.controls = tview.NewTextView().
		SetDynamicColors(true).
		SetScrollable(false)
	a.controls.SetBorder(true).SetTitle(" Controls ")

	controlsText := `[yellow]ROUTES[-]
  [white]↑/↓, j/k[-]  Select
  [white]ENTER[-]     Track route

[yellow]VEHICLES[-]
  [white]TAB[-]       Next bus
  [white]c[-]         Clear selection

[yellow]CONTROL[-]
  [white]SPACE[-]     Pause/Resume
  [white]q[-]         Quit`

	a.controls.SetText(controlsText)
}

// createLogsPanel creates the log viewer panel
func (a *App) createLogsPanel() {
	a.logs = tview.NewTextView().
		SetDynamicColors(true).
		SetScrollable(true).
		SetMaxLines(100)
	a.logs.SetBorder(true).SetTitle(" Logs ")

	a.addLog("INFO", "Application started")
}

// createLayout creates the main layout with panels
func (a *App) createLayout() {
	// Left column: routes over the live board
	left := tview.NewFlex().
		SetDirection(tview.FlexRow).
		AddItem(a.routeList, 0, 3, true).
		AddItem(a.board, 0, 7, false)

	// Right sidebar with 3 panels
	sidebar := tview.NewFlex().
		SetDirection(tview.FlexRow).
		AddItem(a.telemetry, 0, 4, false).
		AddItem(a.controls, 0, 3, false).
		AddItem(a.logs, 0, 3, false)

	a.rootLayout = tview.NewFlex().
		SetDirection(tview.FlexColumn).
		AddItem(left, 0, 7, true).
		AddItem(sidebar, 0, 3, false)

	a.tviewApp.SetRoot(a.rootLayout, true)
}

// handleKeyboard handles keyboard input
func (a *App) handleKeyboard(event *tcell.EventKey) *tcell.EventKey {
	key := event.Key()
	r := event.Rune()

	switch {
	case key == tcell.KeyEscape || r == 'q':
		a.Stop()
		return nil

	case key == tcell.KeyTab:
		a.selectNextVehicle()
		return nil
	case r == 'c':
		a.session.ClearSelection()
		a.refresh()
		return nil

	case r == ' ':
		a.toggleTracking()
		return nil

	case r == 'j':
		return tcell.NewEventKey(tcell.KeyDown, 0, tcell.ModNone)
	case r == 'k':
		return tcell.NewEventKey(tcell.KeyUp, 0, tcell.ModNone)
	}

	return event
}

// trackRoute switches tracking to the given route. Runs off the UI
// goroutine because the switch fetches route details synchronously.
func (a *App) trackRoute(code string) {
	a.addLog("INFO", fmt.Sprintf("Switching to route %s", code))

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := a.session.SelectRoute(ctx, code); err != nil {
		a.addLog("ERROR", fmt.Sprintf("Route switch failed: %v", err))
		return
	}
	if err := a.session.StartTracking(ctx); err != nil {
		a.addLog("ERROR", fmt.Sprintf("Tracking failed to start: %v", err))
		return
	}

	route := a.session.SelectedRoute()
	a.addLog("INFO", fmt.Sprintf("Tracking %s (%s), %d stops",
		route.Name, route.Code, len(route.Stops)))
	a.tviewApp.QueueUpdateDraw(a.refresh)
}

// selectNextVehicle moves the bus selection forward.
func (a *App) selectNextVehicle() {
	a.mu.RLock()
	vehicles := a.vehicles
	a.mu.RUnlock()

	if len(vehicles) == 0 {
		return
	}

	current := a.session.SelectedVehicleID()
	next := 0
	for i, v := range vehicles {
		if v.ID == current {
			next = (i + 1) % len(vehicles)
			break
		}
	}
	a.session.ClearSelection()
	a.session.SelectVehicle(vehicles[next].ID)

	a.addLog("DEBUG", fmt.Sprintf("Selected bus %s", vehicles[next].ID))
	a.refresh()
}

// toggleTracking pauses or resumes the live feed.
func (a *App) toggleTracking() {
	if a.session.Tracking() {
		a.session.StopTracking()
		a.addLog("INFO", "Live updates paused")
	} else {
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
			defer cancel()
			if err := a.session.StartTracking(ctx); err != nil {
				a.addLog("ERROR", fmt.Sprintf("Resume failed: %v", err))
				return
			}
			a.addLog("INFO", "Live updates resumed")
			a.tviewApp.QueueUpdateDraw(a.refresh)
		}()
		return
	}
	a.refresh()
}

// refresh redraws the data panels. Safe only on the UI goroutine;
// background goroutines go through QueueUpdateDraw instead.
func (a *App) refresh() {
	a.updateBoard()
	a.updateTelemetry()
}

// updateBoard rewrites the live vehicle board from the latest frame.
func (a *App) updateBoard() {
	a.mu.RLock()
	vehicles := a.vehicles
	a.mu.RUnlock()

	if a.session.SelectedRoute() == nil {
		a.board.SetText("[gray]Select a route to begin tracking[-]")
		return
	}
	if len(vehicles) == 0 {
		a.board.SetText("[gray]No buses reporting on this route[-]")
		return
	}

	selected := a.session.SelectedVehicleID()
	var text string
	for _, v := range vehicles {
		marker := "  "
		color := "white"
		if v.ID == selected {
			marker = "→ "
			color = "yellow"
		}

		delay := ""
		if v.Delayed {
			delay = " [red]DELAYED[-]"
		}

		text += fmt.Sprintf("%s[%s]%-10s[-] %-22s [gray]hdg[-] %3.0f° [gray]spd[-] %2d%s\n",
			marker, color, v.ID, v.Destination, v.Heading, v.Speed, delay)
		text += fmt.Sprintf("   [gray]next stop[-] %s [gray]in[-] %dm\n", v.NextStopID, v.NextStopDistance)
	}

	a.board.SetText(text)
}

// updateTelemetry updates the telemetry panel content
func (a *App) updateTelemetry() {
	a.mu.RLock()
	vehicles := a.vehicles
	a.mu.RUnlock()

	var text string

	// Selected bus section
	selected := a.session.SelectedVehicleID()
	var bus *transit.VehicleSnapshot
	for i := range vehicles {
		if vehicles[i].ID == selected {
			bus = &vehicles[i]
			break
		}
	}
	if bus != nil {
		text += fmt.Sprintf("[yellow]BUS:[-] [white]%s[-]\n", bus.ID)
		text += fmt.Sprintf("[gray]Dest:[-] [white]%s[-]\n", bus.Destination)
		text += fmt.Sprintf("[gray]Pos:[-]  [white]%.5f°, %.5f°[-]\n", bus.Latitude, bus.Longitude)
		text += fmt.Sprintf("[gray]Hdg:[-]  [white]%.0f°[-]  [gray]Spd:[-] [white]%d[-]\n", bus.Heading, bus.Speed)
		text += fmt.Sprintf("[gray]Stop:[-] [white]%s (%dm)[-]\n", bus.NextStopID, bus.NextStopDistance)
	} else {
		text += "[gray]No bus selected[-]\n"
	}

	text += "\n"

	// Route section
	if route := a.session.SelectedRoute(); route != nil {
		text += fmt.Sprintf("[yellow]ROUTE:[-] [white]%s[-] [gray](%s)[-]\n", route.Name, route.Code)
		text += fmt.Sprintf("[gray]Stops:[-] [white]%d[-]\n", len(route.Stops))
	} else {
		text += "[yellow]ROUTE:[-] [gray]none[-]\n"
	}

	text += "\n"

	// Feed section
	feed := "[green]LIVE[-]"
	if !a.session.Tracking() {
		feed = "[yellow]PAUSED[-]"
	}
	text += fmt.Sprintf("[yellow]FEED:[-] %s\n", feed)
	if e := a.session.Err(); e != "" {
		text += fmt.Sprintf("[red]%s[-]\n", e)
	}
	text += fmt.Sprintf("[gray]Buses:[-] [white]%d[-]\n", len(vehicles))
	text += fmt.Sprintf("[gray]Time:[-] [white]%s[-]\n", time.Now().Format("15:04:05"))

	a.telemetry.SetText(text)
}

// addLog adds a log message to the log panel
func (a *App) addLog(level, message string) {
	timestamp := time.Now().Format("15:04:05")
	var color string
	switch level {
	case "ERROR":
		color = "red"
	case "WARN":
		color = "yellow"
	case "INFO":
		color = "white"
	case "DEBUG":
		color = "gray"
	default:
		color = "white"
	}

	logLine := fmt.Sprintf("[gray]%s[-] [%s]%-5s[-] %s\n", timestamp, color, level, message)
	fmt.Fprint(a.logs, logLine)
}

// loadRoutes fills the route list panel.
func (a *App) loadRoutes() {
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	routes, err := a.session.LoadRoutes(ctx)
	if err != nil {
		a.addLog("ERROR", fmt.Sprintf("Failed to load routes: %v", err))
		return
	}

	a.tviewApp.QueueUpdateDraw(func() {
		a.routeList.Clear()
		for _, route := range routes {
			a.routeList.AddItem(route.Code, route.Name, 0, nil)
		}
	})
	a.addLog("INFO", fmt.Sprintf("Loaded %d routes", len(routes)))
}

// frameLoop feeds animation frames into the UI.
func (a *App) frameLoop() {
	for {
		select {
		case frame := <-a.frames:
			a.mu.Lock()
			a.vehicles = frame
			a.mu.Unlock()

			a.tviewApp.QueueUpdateDraw(func() {
				a.updateBoard()
				a.updateTelemetry()
			})
		case <-a.stopChan:
			return
		}
	}
}

// Run starts the application
func (a *App) Run() error {
	go a.loadRoutes()
	go a.frameLoop()

	return a.tviewApp.Run()
}

// Stop stops the application
func (a *App) Stop() {
	a.stopOnce.Do(func() {
		close(a.stopChan)
		a.session.Close()
		a.tviewApp.Stop()
	})
}
