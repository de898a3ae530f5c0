package tracking

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/fusiondrive/CABSFlight/pkg/transit"
)

// Options configures a Session. Zero values fall back to the package
// defaults.
type Options struct {
	// PollInterval is the spacing between vehicle fetches while tracking.
	PollInterval time.Duration

	// TransitionDuration and FrameInterval control the animator.
	TransitionDuration time.Duration
	FrameInterval      time.Duration

	// OnFrame receives every animation frame. See FrameFunc for the
	// calling constraints.
	OnFrame FrameFunc
}

// Session coordinates a vehicle source, the polling scheduler, and the
// animator into one tracking workflow: pick a route, poll its vehicles,
// animate position updates, surface fetch failures as a readable status
// message.
//
// All methods are safe for concurrent use. Fetch failures never stop the
// session; they are recorded and the next poll acts as the retry.
type Session struct {
	source   transit.VehicleSource
	animator *Animator
	poller   *Poller
	interval time.Duration

	mu          sync.Mutex
	routes      []transit.Route
	selected    *transit.Route
	selectedVeh string
	errMsg      string
	loading     bool
	tracking    bool
}

// NewSession creates a session over the given vehicle source.
func NewSession(source transit.VehicleSource, opts Options) *Session {
	interval := opts.PollInterval
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	return &Session{
		source:   source,
		animator: NewAnimator(opts.TransitionDuration, opts.FrameInterval, opts.OnFrame),
		poller:   NewPoller(),
		interval: interval,
	}
}

// StartTracking begins polling vehicle positions for the selected route.
// The route list is loaded on first use. Calling it while already tracking
// is a no-op. If no route is selected yet, tracking is armed and polling
// begins when SelectRoute is called.
func (s *Session) StartTracking(ctx context.Context) error {
	s.mu.Lock()
	if s.tracking {
		s.mu.Unlock()
		return nil
	}
	s.tracking = true
	selected := s.selected
	s.mu.Unlock()

	if _, err := s.LoadRoutes(ctx); err != nil {
		s.mu.Lock()
		s.tracking = false
		s.mu.Unlock()
		return err
	}

	if selected != nil {
		s.startPolling(selected.Code)
	}
	return nil
}

// LoadRoutes fetches the route list if it has not been loaded yet and
// returns it.
func (s *Session) LoadRoutes(ctx context.Context) ([]transit.Route, error) {
	s.mu.Lock()
	routes := s.routes
	s.mu.Unlock()
	if routes != nil {
		return routes, nil
	}

	routes, err := s.source.FetchAllRoutes(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading route list: %w", err)
	}

	s.mu.Lock()
	s.routes = routes
	s.mu.Unlock()
	return routes, nil
}

// StopTracking halts polling and freezes any animation in flight at its
// last displayed frame. Idempotent. Vehicle and route state is retained so
// tracking can resume without reloading.
func (s *Session) StopTracking() {
	s.mu.Lock()
	s.tracking = false
	s.mu.Unlock()

	s.poller.Stop()
	s.animator.Cancel()
}

// SelectRoute switches the session to the given route: the animation state
// is cleared so no interpolation carries over from the previous route, the
// route's details are loaded, and its current vehicles are shown directly
// at their reported positions with no transition. If tracking is active,
// polling restarts against the new route.
func (s *Session) SelectRoute(ctx context.Context, routeCode string) error {
	s.poller.Stop()
	s.animator.Reset()

	s.mu.Lock()
	s.selected = nil
	s.selectedVeh = ""
	s.errMsg = ""
	s.loading = true
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.loading = false
		s.mu.Unlock()
	}()

	route, err := s.source.FetchRouteDetails(ctx, routeCode)
	if err != nil {
		s.recordError(err)
		return fmt.Errorf("loading route %s: %w", routeCode, err)
	}

	s.mu.Lock()
	s.selected = route
	tracking := s.tracking
	s.mu.Unlock()

	// Seed the display synchronously so the caller sees vehicles as soon
	// as this returns, even when tracking has not started yet. The
	// animator was just reset, so they appear directly in place.
	vehicles, err := s.source.FetchVehicles(ctx, routeCode)
	if err != nil {
		s.recordError(err)
	} else {
		s.applyVehicles(vehicles)
	}

	if tracking {
		s.startPolling(routeCode)
	}
	return nil
}

// SelectVehicle marks a vehicle as selected. Selecting the vehicle that is
// already selected clears the selection. Selection is display state only
// and has no effect on polling or animation.
func (s *Session) SelectVehicle(vehicleID string) {
	s.mu.Lock()
	if s.selectedVeh == vehicleID {
		s.selectedVeh = ""
	} else {
		s.selectedVeh = vehicleID
	}
	s.mu.Unlock()
}

// ClearSelection deselects any selected vehicle.
func (s *Session) ClearSelection() {
	s.mu.Lock()
	s.selectedVeh = ""
	s.mu.Unlock()
}

// Displayed returns the current animation frame.
func (s *Session) Displayed() []transit.VehicleSnapshot {
	return s.animator.Displayed()
}

// Routes returns the loaded route list, or nil before the first load.
func (s *Session) Routes() []transit.Route {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.routes
}

// SelectedRoute returns the active route with its loaded details, or nil.
func (s *Session) SelectedRoute() *transit.Route {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.selected
}

// SelectedVehicleID returns the selected vehicle's ID, or "" when none.
func (s *Session) SelectedVehicleID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.selectedVeh
}

// Err returns the most recent fetch failure as a readable message, or ""
// when the last fetch succeeded.
func (s *Session) Err() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.errMsg
}

// Loading reports whether a route switch is in progress.
func (s *Session) Loading() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loading
}

// Tracking reports whether the session is polling for updates.
func (s *Session) Tracking() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tracking
}

// Close stops tracking and releases the underlying vehicle source.
func (s *Session) Close() error {
	s.StopTracking()
	return s.source.Close()
}

// startPolling begins the fetch cycle for a route, superseding any cycle
// already running.
func (s *Session) startPolling(routeCode string) {
	s.poller.Start(
		func(ctx context.Context) ([]transit.VehicleSnapshot, error) {
			return s.source.FetchVehicles(ctx, routeCode)
		},
		s.interval,
		s.applyVehicles,
		s.recordError,
	)
}

// applyVehicles hands a successful fetch to the animator and clears any
// recorded error.
//
// One narrow exception: when the fetch is empty and no vehicle set has been
// confirmed yet, the result is dropped. A display seeded by other means
// (replayed or injected data) is not wiped out by a feed that has not
// reported anything.
func (s *Session) applyVehicles(vehicles []transit.VehicleSnapshot) {
	if len(vehicles) == 0 && len(s.animator.Confirmed()) == 0 {
		return
	}

	s.mu.Lock()
	s.errMsg = ""
	s.mu.Unlock()

	s.animator.Begin(vehicles)
}

// recordError stores a fetch failure as a readable status message. The
// displayed vehicle set is left untouched; the next poll is the retry.
func (s *Session) recordError(err error) {
	s.mu.Lock()
	s.errMsg = fmt.Sprintf("failed to update vehicle positions: %v", err)
	s.mu.Unlock()
}
