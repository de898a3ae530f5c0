// Package polyline decodes Google-encoded polyline strings into geographic
// points. Route pattern paths arrive from the feed in this format.
package polyline

import (
	"fmt"

	"github.com/fusiondrive/CABSFlight/pkg/geo"
)

// Decode converts an encoded polyline string into a sequence of points.
// Coordinates are encoded as deltas at 1e-5 precision.
func Decode(encoded string) ([]geo.Point, error) {
	var points []geo.Point
	var lat, lon int64

	i := 0
	for i < len(encoded) {
		dLat, n, err := decodeValue(encoded[i:])
		if err != nil {
			return nil, fmt.Errorf("bad latitude delta at offset %d: %w", i, err)
		}
		i += n
		lat += dLat

		dLon, n, err := decodeValue(encoded[i:])
		if err != nil {
			return nil, fmt.Errorf("bad longitude delta at offset %d: %w", i, err)
		}
		i += n
		lon += dLon

		points = append(points, geo.Point{
			Latitude:  float64(lat) / 1e5,
			Longitude: float64(lon) / 1e5,
		})
	}

	return points, nil
}

// decodeValue reads one zigzag-encoded signed value from the head of s.
// Returns the value and the number of bytes consumed.
func decodeValue(s string) (int64, int, error) {
	var result int64
	var shift uint

	for i := 0; i < len(s); i++ {
		b := int64(s[i]) - 63
		if b < 0 {
			return 0, 0, fmt.Errorf("invalid character %q", s[i])
		}
		result |= (b & 0x1f) << shift
		if b < 0x20 {
			// Low bit carries the sign
			if result&1 != 0 {
				return ^(result >> 1), i + 1, nil
			}
			return result >> 1, i + 1, nil
		}
		shift += 5
	}

	return 0, 0, fmt.Errorf("truncated value")
}
