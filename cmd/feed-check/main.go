package main

import (
	"context"
	"flag"
	"log"
	"time"

	"github.com/fusiondrive/CABSFlight/pkg/config"
	"github.com/fusiondrive/CABSFlight/pkg/geo"
	"github.com/fusiondrive/CABSFlight/pkg/transit"
)

// main is a test program to verify transit feed connectivity.
// It fetches the route list, pulls one route's detail and live vehicles,
// and reports each bus's distance from the campus center.
func main() {
	configPath := flag.String("config", "configs/config.json", "Path to configuration file")
	routeCode := flag.String("route", "", "Route to probe (default: first route in the feed)")
	flag.Parse()

	log.Println("Transit Feed Check - CABS live positions")
	log.Println("=====================================")

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	center := geo.Point{Latitude: cfg.Campus.Latitude, Longitude: cfg.Campus.Longitude}
	log.Printf("Feed: %s", cfg.Feed.BaseURL)
	log.Printf("Campus center: %.4f°N, %.4f°W (%s)",
		center.Latitude, -center.Longitude, cfg.Campus.Name)

	client := transit.NewClient(cfg.Feed.BaseURL, cfg.Feed.RequestsPerSecond)
	defer client.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	// One-shot probe, so transient failures get a bounded backoff retry
	// rather than the tracker's poll-again-next-cycle policy
	retry := transit.DefaultRetryConfig()

	start := time.Now()
	routes, err := transit.RetryWithBackoff(ctx, retry, func() ([]transit.Route, error) {
		return client.FetchAllRoutes(ctx)
	})
	if err != nil {
		log.Fatalf("Failed to fetch routes: %v", err)
	}
	log.Printf("Fetched %d routes in %v", len(routes), time.Since(start).Round(time.Millisecond))
	for _, r := range routes {
		log.Printf("  %-4s %s", r.Code, r.Name)
	}

	if len(routes) == 0 {
		log.Fatal("Feed returned no routes")
	}

	code := *routeCode
	if code == "" {
		code = routes[0].Code
	}

	start = time.Now()
	route, err := transit.RetryWithBackoff(ctx, retry, func() (*transit.Route, error) {
		return client.FetchRouteDetails(ctx, code)
	})
	if err != nil {
		log.Fatalf("Failed to fetch route %s: %v", code, err)
	}
	log.Printf("Route %s (%s): %d stops, %d patterns (%v)",
		route.Code, route.Name, len(route.Stops), len(route.Patterns),
		time.Since(start).Round(time.Millisecond))

	start = time.Now()
	vehicles, err := transit.RetryWithBackoff(ctx, retry, func() ([]transit.VehicleSnapshot, error) {
		return client.FetchVehicles(ctx, code)
	})
	if err != nil {
		log.Fatalf("Failed to fetch vehicles: %v", err)
	}
	log.Printf("Fetched %d buses in %v", len(vehicles), time.Since(start).Round(time.Millisecond))
	log.Println()

	for _, v := range vehicles {
		distance := geo.DistanceMeters(center, v.Position())
		bearing := geo.Bearing(center, v.Position())

		delay := ""
		if v.Delayed {
			delay = "  DELAYED"
		}

		log.Printf("%-10s %-22s %9.5f,%10.5f  hdg %3.0f°  spd %2d  %.0fm @ %3.0f° from campus%s",
			v.ID, v.Destination, v.Latitude, v.Longitude, v.Heading, v.Speed,
			distance, bearing, delay)
	}

	if len(vehicles) == 0 {
		log.Println("No buses currently reporting on this route")
	}

	log.Println()
	log.Println("Feed check complete")
}
