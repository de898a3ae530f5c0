// Package transit defines the campus bus data model and the network
// collaborator that feeds the tracking engine.
package transit

import (
	"context"
	"sort"
	"time"

	"github.com/fusiondrive/CABSFlight/pkg/geo"
)

// VehicleSnapshot is one vehicle's reported state at a single fetch instant.
// Snapshots are immutable; the tracking engine builds new ones when it
// interpolates between polls.
type VehicleSnapshot struct {
	// ID is the stable vehicle identifier, unique within a route at a
	// given instant and stable across polls for the same physical bus.
	ID string

	// Latitude in decimal degrees (-90 to +90)
	Latitude float64

	// Longitude in decimal degrees (-180 to +180)
	Longitude float64

	// Heading in degrees (0-360, circular)
	// 0 = North, 90 = East, 180 = South, 270 = West
	Heading float64

	// Speed in whole units as reported by the feed (non-negative)
	Speed int

	// Destination is the headsign text, if reported
	Destination string

	// Delayed is set when the feed flags the vehicle as behind schedule
	Delayed bool

	// PatternID is the route pattern the vehicle is running, if reported
	PatternID string

	// NextStopID identifies the upcoming stop, if reported
	NextStopID string

	// NextStopDistance is the remaining distance to the next stop in
	// meters (0 when not reported)
	NextStopDistance int

	// UpdatedAt is the feed's last-update timestamp (zero when not reported)
	UpdatedAt time.Time
}

// Position returns the snapshot's location as a geo.Point.
func (v VehicleSnapshot) Position() geo.Point {
	return geo.Point{Latitude: v.Latitude, Longitude: v.Longitude}
}

// Stop is a named boarding location on a route.
type Stop struct {
	ID        string
	Name      string
	Latitude  float64
	Longitude float64
}

// Position returns the stop's location as a geo.Point.
func (s Stop) Position() geo.Point {
	return geo.Point{Latitude: s.Latitude, Longitude: s.Longitude}
}

// RoutePattern is one directional path variant of a route. The path is an
// encoded polyline; pkg/polyline decodes it for display.
type RoutePattern struct {
	ID          string
	Direction   string
	EncodedPath string
}

// Route is a campus bus route. Stops and Patterns are only populated after a
// detail fetch; the route list endpoint returns the identifying fields alone.
type Route struct {
	// Code is the short unique route identifier (e.g., "CC", "ER")
	Code string

	// Name is the rider-facing display name
	Name string

	// Color is the route's hex display color (e.g., "#BB0000")
	Color string

	Stops    []Stop
	Patterns []RoutePattern
}

// VehicleSource is the interface the tracking engine consumes for all
// network access. The HTTP client implements it for the live feed; tests
// substitute doubles.
type VehicleSource interface {
	// FetchAllRoutes returns every route the system serves, without
	// stops or patterns.
	FetchAllRoutes(ctx context.Context) ([]Route, error)

	// FetchRouteDetails returns the full route record, including stops
	// and patterns, for one route code.
	FetchRouteDetails(ctx context.Context, routeCode string) (*Route, error)

	// FetchVehicles returns the current vehicle set for one route code.
	FetchVehicles(ctx context.Context, routeCode string) ([]VehicleSnapshot, error)

	// Close cleanly shuts down the source.
	Close() error
}

// StopsByDistance returns the route's stops sorted nearest-first from a
// point. The input slice is not modified.
func StopsByDistance(stops []Stop, from geo.Point) []Stop {
	sorted := make([]Stop, len(stops))
	copy(sorted, stops)
	sort.Slice(sorted, func(i, j int) bool {
		return geo.DistanceMeters(from, sorted[i].Position()) <
			geo.DistanceMeters(from, sorted[j].Position())
	})
	return sorted
}

// NearestStop returns the stop closest to a point, or nil for an empty list.
func NearestStop(stops []Stop, from geo.Point) *Stop {
	var nearest *Stop
	best := 0.0
	for i := range stops {
		d := geo.DistanceMeters(from, stops[i].Position())
		if nearest == nil || d < best {
			nearest = &stops[i]
			best = d
		}
	}
	return nearest
}
