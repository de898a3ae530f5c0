package tracking

import (
	"math"
	"testing"
	"time"

	"github.com/fusiondrive/CABSFlight/pkg/transit"
)

func TestEaseOutCubic(t *testing.T) {
	tests := []struct {
		name     string
		progress float64
		want     float64
	}{
		{"Start", 0.0, 0.0},
		{"Midpoint", 0.5, 0.875},
		{"End", 1.0, 1.0},
		{"Quarter", 0.25, 1.0 - 0.75*0.75*0.75},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := EaseOutCubic(tt.progress)
			if math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("EaseOutCubic(%v) = %v, want %v", tt.progress, got, tt.want)
			}
		})
	}
}

func TestInterpolatePosition(t *testing.T) {
	from := transit.VehicleSnapshot{ID: "bus-1", Latitude: 40.0000, Longitude: -83.0200, Heading: 90}
	to := transit.VehicleSnapshot{ID: "bus-1", Latitude: 40.0040, Longitude: -83.0160, Heading: 90}

	t.Run("Progress zero holds start position", func(t *testing.T) {
		got := Interpolate(from, to, 0.0)
		if got.Latitude != from.Latitude || got.Longitude != from.Longitude {
			t.Errorf("Expected start position (%v, %v), got (%v, %v)",
				from.Latitude, from.Longitude, got.Latitude, got.Longitude)
		}
	})

	t.Run("Progress one lands exactly on target", func(t *testing.T) {
		got := Interpolate(from, to, 1.0)
		if got.Latitude != to.Latitude || got.Longitude != to.Longitude {
			t.Errorf("Expected target position (%v, %v), got (%v, %v)",
				to.Latitude, to.Longitude, got.Latitude, got.Longitude)
		}
		if got.Heading != to.Heading {
			t.Errorf("Expected target heading %v, got %v", to.Heading, got.Heading)
		}
	})

	t.Run("Midpoint is halfway", func(t *testing.T) {
		got := Interpolate(from, to, 0.5)
		wantLat := (from.Latitude + to.Latitude) / 2
		wantLon := (from.Longitude + to.Longitude) / 2
		if math.Abs(got.Latitude-wantLat) > 1e-9 || math.Abs(got.Longitude-wantLon) > 1e-9 {
			t.Errorf("Expected midpoint (%v, %v), got (%v, %v)",
				wantLat, wantLon, got.Latitude, got.Longitude)
		}
	})
}

func TestInterpolateHeading(t *testing.T) {
	tests := []struct {
		name     string
		from     float64
		to       float64
		progress float64
		want     float64
	}{
		{"Simple clockwise", 10, 30, 0.5, 20},
		{"Crossing north clockwise", 350, 10, 0.5, 0},
		{"Crossing north counterclockwise", 10, 350, 0.5, 0},
		{"Crossing north clockwise endpoint", 350, 10, 1.0, 10},
		{"Opposite headings take positive path", 90, 270, 0.5, 180},
		{"No movement", 45, 45, 0.7, 45},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			from := transit.VehicleSnapshot{ID: "v", Heading: tt.from}
			to := transit.VehicleSnapshot{ID: "v", Heading: tt.to}
			got := Interpolate(from, to, tt.progress)
			if math.Abs(got.Heading-tt.want) > 1e-9 {
				t.Errorf("Interpolate heading %v -> %v at %v = %v, want %v",
					tt.from, tt.to, tt.progress, got.Heading, tt.want)
			}
		})
	}
}

// TestInterpolateDiscreteFields verifies that non-positional fields never
// blend; they switch to the target's values at every progress point.
func TestInterpolateDiscreteFields(t *testing.T) {
	updated := time.Date(2026, 8, 24, 12, 0, 0, 0, time.UTC)
	from := transit.VehicleSnapshot{
		ID: "bus-7", Speed: 10, Destination: "North Campus",
		Delayed: false, PatternID: "100", NextStopID: "stop-a", NextStopDistance: 400,
	}
	to := transit.VehicleSnapshot{
		ID: "bus-7", Speed: 25, Destination: "Medical Center",
		Delayed: true, PatternID: "101", NextStopID: "stop-b", NextStopDistance: 150,
		UpdatedAt: updated,
	}

	for _, progress := range []float64{0.0, 0.3, 0.99} {
		got := Interpolate(from, to, progress)
		if got.Speed != to.Speed {
			t.Errorf("At progress %v: speed = %d, want %d", progress, got.Speed, to.Speed)
		}
		if got.Destination != to.Destination {
			t.Errorf("At progress %v: destination = %q, want %q", progress, got.Destination, to.Destination)
		}
		if got.Delayed != to.Delayed {
			t.Errorf("At progress %v: delayed = %v, want %v", progress, got.Delayed, to.Delayed)
		}
		if got.PatternID != to.PatternID {
			t.Errorf("At progress %v: pattern = %q, want %q", progress, got.PatternID, to.PatternID)
		}
		if got.NextStopID != to.NextStopID {
			t.Errorf("At progress %v: next stop = %q, want %q", progress, got.NextStopID, to.NextStopID)
		}
		if got.NextStopDistance != to.NextStopDistance {
			t.Errorf("At progress %v: next stop distance = %d, want %d", progress, got.NextStopDistance, to.NextStopDistance)
		}
		if !got.UpdatedAt.Equal(to.UpdatedAt) {
			t.Errorf("At progress %v: updatedAt = %v, want %v", progress, got.UpdatedAt, to.UpdatedAt)
		}
	}
}
