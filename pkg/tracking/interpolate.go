// Package tracking implements the live-position tracking engine: snapshot
// interpolation, the frame-driven animator, the polling scheduler, and the
// session coordinator that ties them to a vehicle source.
package tracking

import (
	"github.com/fusiondrive/CABSFlight/pkg/geo"
	"github.com/fusiondrive/CABSFlight/pkg/transit"
)

// EaseOutCubic maps linear progress to an ease-out cubic curve, 1-(1-p)^3.
// Motion starts fast and decelerates into the target, which reads naturally
// for markers settling onto a new reported position.
func EaseOutCubic(p float64) float64 {
	inv := 1.0 - p
	return 1.0 - inv*inv*inv
}

// Interpolate produces an intermediate snapshot between two same-identity
// snapshots at the given progress in [0,1]. Position is linear; heading
// follows the shortest angular path so markers never spin the long way
// around the 0/360 boundary. All discrete fields (speed, destination,
// delayed, pattern, next stop, timestamps) take the target's values.
//
// Pure function; callers are responsible for clamping progress.
func Interpolate(from, to transit.VehicleSnapshot, progress float64) transit.VehicleSnapshot {
	out := to
	out.Latitude = from.Latitude + (to.Latitude-from.Latitude)*progress
	out.Longitude = from.Longitude + (to.Longitude-from.Longitude)*progress
	out.Heading = geo.NormalizeHeading(from.Heading + geo.HeadingDelta(from.Heading, to.Heading)*progress)
	return out
}
