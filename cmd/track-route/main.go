package main

import (
	"context"
	"flag"
	"log"
	"time"

	"github.com/fusiondrive/CABSFlight/pkg/config"
	"github.com/fusiondrive/CABSFlight/pkg/tracking"
	"github.com/fusiondrive/CABSFlight/pkg/transit"
)

// main implements a complete route tracking demonstration.
// This shows the full integration of:
// - Transit feed acquisition (routes, stops, vehicles)
// - Fixed-interval polling with failure recovery
// - Smooth position animation between updates
// - Nearest-stop resolution along the route
func main() {
	configPath := flag.String("config", "configs/config.json", "Path to configuration file")
	routeCode := flag.String("route", "", "Route code to track (e.g., CC)")
	vehicleID := flag.String("vehicle", "", "Follow a single bus by ID")
	duration := flag.Int("duration", 60, "Tracking duration in seconds")
	listRoutes := flag.Bool("list", false, "List available routes and exit")
	showFrames := flag.Bool("frames", false, "Print every animation frame instead of one line per update")
	flag.Parse()

	log.Println("===========================================")
	log.Println("  CABSFlight Route Tracking - Live Demo")
	log.Println("===========================================")

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	log.Printf("Configuration loaded from: %s", *configPath)
	log.Printf("Feed: %s (poll every %v)", cfg.Feed.BaseURL, cfg.Feed.PollInterval())
	log.Printf("Animation: %v transitions at %d fps",
		cfg.Animation.TransitionDuration(), cfg.Animation.FrameRate)

	source := transit.NewClient(cfg.Feed.BaseURL, cfg.Feed.RequestsPerSecond)
	defer source.Close()

	ctx := context.Background()

	if *listRoutes {
		routes, err := source.FetchAllRoutes(ctx)
		if err != nil {
			log.Fatalf("Failed to fetch routes: %v", err)
		}
		log.Printf("Available routes (%d):", len(routes))
		for _, route := range routes {
			log.Printf("  %-4s %s", route.Code, route.Name)
		}
		return
	}

	if *routeCode == "" {
		log.Fatal("Error: -route is required (use -list to see available routes)")
	}

	frames := make(chan []transit.VehicleSnapshot, 8)
	session := tracking.NewSession(source, tracking.Options{
		PollInterval:       cfg.Feed.PollInterval(),
		TransitionDuration: cfg.Animation.TransitionDuration(),
		FrameInterval:      cfg.Animation.FrameInterval(),
		OnFrame: func(frame []transit.VehicleSnapshot) {
			select {
			case frames <- frame:
			default:
			}
		},
	})
	defer session.Close()

	log.Printf("Selecting route %s...", *routeCode)
	if err := session.SelectRoute(ctx, *routeCode); err != nil {
		log.Fatalf("Failed to select route: %v", err)
	}

	route := session.SelectedRoute()
	log.Printf("Tracking %s (%s): %d stops, %d patterns",
		route.Name, route.Code, len(route.Stops), len(route.Patterns))

	if *vehicleID != "" {
		session.SelectVehicle(*vehicleID)
		log.Printf("Following bus %s", *vehicleID)
	}

	if err := session.StartTracking(ctx); err != nil {
		log.Fatalf("Failed to start tracking: %v", err)
	}

	deadline := time.After(time.Duration(*duration) * time.Second)
	status := time.NewTicker(cfg.Feed.PollInterval())
	defer status.Stop()

	lastErr := ""
	for {
		select {
		case frame := <-frames:
			if *showFrames {
				printFrame(route, frame, session.SelectedVehicleID())
			}

		case <-status.C:
			if e := session.Err(); e != "" && e != lastErr {
				log.Printf("⚠ %s (will retry next poll)", e)
			}
			lastErr = session.Err()
			if !*showFrames {
				printFrame(route, session.Displayed(), session.SelectedVehicleID())
			}

		case <-deadline:
			session.StopTracking()
			log.Printf("Tracking complete after %ds", *duration)
			return
		}
	}
}

// printFrame logs one line per bus in the frame, or just the followed bus
// when one is selected.
func printFrame(route *transit.Route, frame []transit.VehicleSnapshot, selected string) {
	if len(frame) == 0 {
		log.Println("No buses reporting")
		return
	}

	for _, v := range frame {
		if selected != "" && v.ID != selected {
			continue
		}

		delay := ""
		if v.Delayed {
			delay = "  DELAYED"
		}

		stop := v.NextStopID
		if stop == "" {
			if nearest := transit.NearestStop(route.Stops, v.Position()); nearest != nil {
				stop = nearest.ID
			}
		}

		log.Printf("%-10s %-22s %9.5f,%10.5f  hdg %3.0f°  spd %2d  next %s (%dm)%s",
			v.ID, v.Destination, v.Latitude, v.Longitude, v.Heading, v.Speed,
			stop, v.NextStopDistance, delay)
	}
}
