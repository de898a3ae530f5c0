// Package geo provides the distance and bearing math used by the tracking
// engine and the map views. All positions are WGS84 decimal degrees.
package geo

import "math"

// Constants for coordinate calculations
const (
	// DegreesToRadians converts degrees to radians
	DegreesToRadians = math.Pi / 180.0

	// RadiansToDegrees converts radians to degrees
	RadiansToDegrees = 180.0 / math.Pi

	// EarthRadiusMeters is the Earth's mean radius in meters (WGS84)
	EarthRadiusMeters = 6371000.0
)

// Point is a position on Earth's surface.
type Point struct {
	// Latitude in decimal degrees (-90 to +90)
	// Positive = North, Negative = South
	Latitude float64

	// Longitude in decimal degrees (-180 to +180)
	// Positive = East, Negative = West
	Longitude float64
}

// DistanceMeters calculates the great-circle distance between two points.
// Uses the Haversine formula, which is accurate at campus scale and beyond.
func DistanceMeters(from, to Point) float64 {
	lat1Rad := from.Latitude * DegreesToRadians
	lat2Rad := to.Latitude * DegreesToRadians

	dLat := (to.Latitude - from.Latitude) * DegreesToRadians
	dLon := (to.Longitude - from.Longitude) * DegreesToRadians

	// Haversine formula
	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1Rad)*math.Cos(lat2Rad)*
			math.Sin(dLon/2)*math.Sin(dLon/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))

	return EarthRadiusMeters * c
}

// Bearing calculates the initial bearing (forward azimuth) from one point to
// another along a great circle.
// Returns bearing in degrees (0-360), where 0/360 = North, 90 = East.
func Bearing(from, to Point) float64 {
	lat1 := from.Latitude * DegreesToRadians
	lon1 := from.Longitude * DegreesToRadians
	lat2 := to.Latitude * DegreesToRadians
	lon2 := to.Longitude * DegreesToRadians

	dLon := lon2 - lon1
	y := math.Sin(dLon) * math.Cos(lat2)
	x := math.Cos(lat1)*math.Sin(lat2) - math.Sin(lat1)*math.Cos(lat2)*math.Cos(dLon)
	bearing := math.Atan2(y, x) * RadiansToDegrees

	// Normalize to 0-360
	if bearing < 0 {
		bearing += 360
	}

	return bearing
}

// NormalizeHeading ensures a heading is in the range [0, 360).
func NormalizeHeading(heading float64) float64 {
	h := math.Mod(heading, 360.0)
	if h < 0 {
		h += 360.0
	}
	return h
}

// HeadingDelta returns the signed shortest angular difference from one
// heading to another, in the range [-180, 180]. A bus turning from 350° to
// 10° yields +20, not -340, so markers rotate the short way around.
func HeadingDelta(from, to float64) float64 {
	diff := to - from
	if diff > 180 {
		diff -= 360
	}
	if diff < -180 {
		diff += 360
	}
	return diff
}
