package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/fusiondrive/CABSFlight/pkg/config"
	"github.com/fusiondrive/CABSFlight/pkg/tracking"
	"github.com/fusiondrive/CABSFlight/pkg/transit"
)

var (
	// Version information (set by build flags)
	version = "dev"
	commit  = "unknown"
)

func main() {
	configPath := flag.String("config", "configs/config.json", "Path to configuration file")
	showVersion := flag.Bool("version", false, "Show version information")
	showHelp := flag.Bool("help", false, "Show help information")
	flag.Parse()

	if *showVersion {
		fmt.Printf("cabs-console version %s (commit: %s)\n", version, commit)
		os.Exit(0)
	}

	if *showHelp {
		printHelp()
		os.Exit(0)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	source := transit.NewClient(cfg.Feed.BaseURL, cfg.Feed.RequestsPerSecond)

	app := NewApp(&AppConfig{
		Config: cfg,
		Source: source,
		Options: tracking.Options{
			PollInterval:       cfg.Feed.PollInterval(),
			TransitionDuration: cfg.Animation.TransitionDuration(),
			FrameInterval:      cfg.Animation.FrameInterval(),
		},
	})

	if err := app.Run(); err != nil {
		log.Fatalf("Application error: %v", err)
	}
}

// printHelp prints usage information
func printHelp() {
	fmt.Println("cabs-console - Multi-panel terminal console for CABSFlight")
	fmt.Println()
	fmt.Println("USAGE:")
	fmt.Println("  cabs-console [options]")
	fmt.Println()
	fmt.Println("OPTIONS:")
	fmt.Println("  -config string")
	fmt.Println("        Path to configuration file (default: configs/config.json)")
	fmt.Println("  -version")
	fmt.Println("        Show version information")
	fmt.Println("  -help")
	fmt.Println("        Show this help message")
	fmt.Println()
	fmt.Println("KEYBOARD SHORTCUTS:")
	fmt.Println("  Navigation:")
	fmt.Println("    ↑/↓ or j/k     Select route")
	fmt.Println("    ENTER          Track selected route")
	fmt.Println()
	fmt.Println("  Vehicles:")
	fmt.Println("    TAB            Select next bus")
	fmt.Println("    c              Clear bus selection")
	fmt.Println()
	fmt.Println("  Control:")
	fmt.Println("    SPACE          Pause/resume live updates")
	fmt.Println("    q or ESC       Quit application")
	fmt.Println()
	fmt.Println("FEATURES:")
	fmt.Println("  - Multi-panel layout: routes, live vehicle board, telemetry, logs")
	fmt.Println("  - Smoothly animated position updates between feed polls")
	fmt.Println("  - Per-bus destination, delay, and next-stop details")
}
