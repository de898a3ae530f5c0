package transit

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func floatPtr(f float64) *float64 { return &f }
func intPtr(i int) *int           { return &i }

// TestNewClient tests client construction.
func TestNewClient(t *testing.T) {
	client := NewClient("https://api.test.edu/v2/bus", 1.0)

	if client == nil {
		t.Fatal("Expected client, got nil")
	}
	if client.baseURL != "https://api.test.edu/v2/bus" {
		t.Errorf("Expected baseURL https://api.test.edu/v2/bus, got %s", client.baseURL)
	}
	if client.httpClient == nil {
		t.Error("Expected HTTP client to be initialized")
	}
	if client.httpClient.Timeout != 10*time.Second {
		t.Errorf("Expected timeout 10s, got %v", client.httpClient.Timeout)
	}
	if client.limiter == nil {
		t.Error("Expected rate limiter to be initialized")
	}
}

// TestFetchVehicles tests fetching the vehicle set for a route.
func TestFetchVehicles(t *testing.T) {
	t.Run("Successful request", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			expectedPath := "/routes/CC/vehicles"
			if r.URL.Path != expectedPath {
				t.Errorf("Expected path %s, got %s", expectedPath, r.URL.Path)
			}

			var response vehiclesResponse
			response.Data.Vehicles = []feedVehicle{
				{
					ID:               "bus-401",
					Latitude:         floatPtr(40.0017),
					Longitude:        floatPtr(-83.0197),
					Heading:          floatPtr(350.0),
					Speed:            intPtr(18),
					Destination:      "Ohio Union",
					Delayed:          true,
					PatternID:        "CC-north",
					NextStopID:       "stop-12",
					NextStopDistance: intPtr(220),
					LastUpdated:      "2026-08-24T14:03:05Z",
				},
			}
			json.NewEncoder(w).Encode(response)
		}))
		defer server.Close()

		client := NewClient(server.URL, 0)
		vehicles, err := client.FetchVehicles(context.Background(), "CC")

		if err != nil {
			t.Fatalf("Expected no error, got: %v", err)
		}
		if len(vehicles) != 1 {
			t.Fatalf("Expected 1 vehicle, got %d", len(vehicles))
		}

		v := vehicles[0]
		if v.ID != "bus-401" {
			t.Errorf("Expected ID bus-401, got %s", v.ID)
		}
		if v.Latitude != 40.0017 {
			t.Errorf("Expected latitude 40.0017, got %f", v.Latitude)
		}
		if v.Heading != 350.0 {
			t.Errorf("Expected heading 350, got %f", v.Heading)
		}
		if v.Speed != 18 {
			t.Errorf("Expected speed 18, got %d", v.Speed)
		}
		if !v.Delayed {
			t.Error("Expected delayed flag to be set")
		}
		if v.NextStopDistance != 220 {
			t.Errorf("Expected next stop distance 220, got %d", v.NextStopDistance)
		}
		want := time.Date(2026, 8, 24, 14, 3, 5, 0, time.UTC)
		if !v.UpdatedAt.Equal(want) {
			t.Errorf("Expected UpdatedAt %v, got %v", want, v.UpdatedAt)
		}
	})

	t.Run("Drops malformed records silently", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var response vehiclesResponse
			response.Data.Vehicles = []feedVehicle{
				{ID: "", Latitude: floatPtr(40.0), Longitude: floatPtr(-83.0)},          // no identity
				{ID: "bus-402", Latitude: nil, Longitude: floatPtr(-83.0)},              // no latitude
				{ID: "bus-403", Latitude: floatPtr(40.0), Longitude: nil},               // no longitude
				{ID: "bus-404", Latitude: floatPtr(40.01), Longitude: floatPtr(-83.01)}, // valid
			}
			json.NewEncoder(w).Encode(response)
		}))
		defer server.Close()

		client := NewClient(server.URL, 0)
		vehicles, err := client.FetchVehicles(context.Background(), "CC")

		if err != nil {
			t.Fatalf("Expected no error, got: %v", err)
		}
		if len(vehicles) != 1 {
			t.Fatalf("Expected only the valid vehicle, got %d", len(vehicles))
		}
		if vehicles[0].ID != "bus-404" {
			t.Errorf("Expected bus-404 to survive, got %s", vehicles[0].ID)
		}
	})

	t.Run("Handles rate limit error", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Retry-After", "30")
			w.WriteHeader(http.StatusTooManyRequests)
			w.Write([]byte("Rate limit exceeded"))
		}))
		defer server.Close()

		client := NewClient(server.URL, 0)
		_, err := client.FetchVehicles(context.Background(), "CC")

		if err == nil {
			t.Fatal("Expected rate limit error, got nil")
		}

		rle, ok := IsRateLimitError(err)
		if !ok {
			t.Fatal("Expected RateLimitError type")
		}
		if rle.StatusCode != 429 {
			t.Errorf("Expected status 429, got %d", rle.StatusCode)
		}
		if rle.RetryAfter != 30*time.Second {
			t.Errorf("Expected retry after 30s, got %v", rle.RetryAfter)
		}
	})

	t.Run("Handles HTTP error", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
			w.Write([]byte("Internal error"))
		}))
		defer server.Close()

		client := NewClient(server.URL, 0)
		_, err := client.FetchVehicles(context.Background(), "CC")

		if err == nil {
			t.Fatal("Expected error, got nil")
		}
	})
}

// TestFetchAllRoutes tests fetching the route list.
func TestFetchAllRoutes(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/routes" {
			t.Errorf("Expected path /routes, got %s", r.URL.Path)
		}

		var response routesResponse
		response.Data.Routes = []feedRoute{
			{Code: "CC", Name: "Campus Connector", Color: "#BB0000"},
			{Code: "", Name: "Broken entry"}, // dropped: no code
			{Code: "ER", Name: "East Residential", Color: "#666666"},
		}
		json.NewEncoder(w).Encode(response)
	}))
	defer server.Close()

	client := NewClient(server.URL, 0)
	routes, err := client.FetchAllRoutes(context.Background())

	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if len(routes) != 2 {
		t.Fatalf("Expected 2 routes, got %d", len(routes))
	}
	if routes[0].Code != "CC" || routes[1].Code != "ER" {
		t.Errorf("Unexpected route codes: %s, %s", routes[0].Code, routes[1].Code)
	}
}

// TestFetchRouteDetails tests fetching stops and patterns for one route.
func TestFetchRouteDetails(t *testing.T) {
	t.Run("Full detail", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path != "/routes/CC" {
				t.Errorf("Expected path /routes/CC, got %s", r.URL.Path)
			}

			var response routeDetailResponse
			response.Data.Route = &feedRoute{
				Code:  "CC",
				Name:  "Campus Connector",
				Color: "#BB0000",
				Stops: []feedStop{
					{ID: "stop-12", Name: "Ohio Union", Latitude: 39.9983, Longitude: -83.0086},
					{ID: "stop-13", Name: "RPAC", Latitude: 40.0004, Longitude: -83.0180},
				},
				Patterns: []feedPattern{
					{ID: "CC-north", Direction: "North", EncodedPath: "_p~iF~ps|U_ulLnnqC"},
				},
			}
			json.NewEncoder(w).Encode(response)
		}))
		defer server.Close()

		client := NewClient(server.URL, 0)
		route, err := client.FetchRouteDetails(context.Background(), "CC")

		if err != nil {
			t.Fatalf("Expected no error, got: %v", err)
		}
		if route.Code != "CC" {
			t.Errorf("Expected code CC, got %s", route.Code)
		}
		if len(route.Stops) != 2 {
			t.Errorf("Expected 2 stops, got %d", len(route.Stops))
		}
		if len(route.Patterns) != 1 {
			t.Errorf("Expected 1 pattern, got %d", len(route.Patterns))
		}
	})

	t.Run("Missing route", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			json.NewEncoder(w).Encode(routeDetailResponse{})
		}))
		defer server.Close()

		client := NewClient(server.URL, 0)
		_, err := client.FetchRouteDetails(context.Background(), "ZZ")

		if err == nil {
			t.Fatal("Expected error for missing route, got nil")
		}
	})
}

// TestNearestStop tests nearest-distance stop selection.
func TestNearestStop(t *testing.T) {
	stops := []Stop{
		{ID: "a", Name: "Far", Latitude: 40.10, Longitude: -83.00},
		{ID: "b", Name: "Near", Latitude: 40.01, Longitude: -83.00},
		{ID: "c", Name: "Mid", Latitude: 40.05, Longitude: -83.00},
	}

	nearest := NearestStop(stops, VehicleSnapshot{Latitude: 40.0, Longitude: -83.0}.Position())
	if nearest == nil {
		t.Fatal("Expected a stop, got nil")
	}
	if nearest.ID != "b" {
		t.Errorf("Expected nearest stop b, got %s", nearest.ID)
	}

	if got := NearestStop(nil, VehicleSnapshot{}.Position()); got != nil {
		t.Errorf("Expected nil for empty stop list, got %v", got)
	}

	sorted := StopsByDistance(stops, VehicleSnapshot{Latitude: 40.0, Longitude: -83.0}.Position())
	wantOrder := []string{"b", "c", "a"}
	for i, id := range wantOrder {
		if sorted[i].ID != id {
			t.Errorf("StopsByDistance[%d] = %s, want %s", i, sorted[i].ID, id)
		}
	}
	// Input order untouched
	if stops[0].ID != "a" {
		t.Error("StopsByDistance modified its input")
	}
}
