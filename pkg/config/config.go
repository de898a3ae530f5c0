package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Config represents the complete application configuration.
// Configuration is loaded from a JSON file with environment overrides
// for sensitive values.
type Config struct {
	Server    ServerConfig    `json:"server"`
	Database  DatabaseConfig  `json:"database"`
	Feed      FeedConfig      `json:"feed"`
	Animation AnimationConfig `json:"animation"`
	Campus    CampusConfig    `json:"campus"`
}

// ServerConfig contains HTTP server configuration.
type ServerConfig struct {
	// Port is the HTTP server port (default: 8080)
	Port string `json:"port"`

	// Host is the server bind address (default: "0.0.0.0")
	Host string `json:"host"`

	// AllowedOrigins restricts browser access to the live vehicle feed.
	// An empty list allows any origin.
	AllowedOrigins []string `json:"allowed_origins"`
}

// DatabaseConfig contains database connection settings. The database holds
// rider preferences (favorite routes, last selected route); the live vehicle
// feed never touches it.
type DatabaseConfig struct {
	// Host is the database server hostname
	Host string `json:"host"`

	// Port is the database server port
	Port int `json:"port"`

	// Database is the database name
	Database string `json:"database"`

	// Username for database authentication
	Username string `json:"username"`

	// Password for database authentication (should be loaded from environment)
	Password string `json:"password"`

	// SSLMode for PostgreSQL connections (disable, require, verify-ca, verify-full)
	SSLMode string `json:"ssl_mode"`

	// MaxOpenConns is the maximum number of open connections
	MaxOpenConns int `json:"max_open_conns"`

	// MaxIdleConns is the maximum number of idle connections
	MaxIdleConns int `json:"max_idle_conns"`
}

// FeedConfig contains the transit feed client settings.
type FeedConfig struct {
	// BaseURL is the transit feed API root
	BaseURL string `json:"base_url"`

	// PollIntervalSeconds is how often vehicle positions are refreshed
	PollIntervalSeconds int `json:"poll_interval_seconds"`

	// RequestsPerSecond caps the outbound request rate.
	// 0 = no rate limit.
	RequestsPerSecond float64 `json:"requests_per_second"`
}

// AnimationConfig controls how vehicle markers move between position
// updates.
type AnimationConfig struct {
	// TransitionMillis is how long one position transition takes. It
	// should stay comfortably under the poll interval so a transition
	// finishes before the next update arrives.
	TransitionMillis int `json:"transition_millis"`

	// FrameRate is the number of animation frames per second
	FrameRate int `json:"frame_rate"`
}

// CampusConfig contains the default map viewport.
type CampusConfig struct {
	// Name is a friendly identifier for the campus
	Name string `json:"name"`

	// Latitude and Longitude are the map center in decimal degrees
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`

	// TimeZone is the IANA timezone name used for schedule display
	TimeZone string `json:"timezone"`
}

// Load reads configuration from a JSON file.
// If the file doesn't exist, returns a default configuration.
func Load(path string) (*Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		cfg := DefaultConfig()
		cfg.applyEnvironmentOverrides()
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg.applyEnvironmentOverrides()

	return &cfg, nil
}

// Save writes the configuration to a JSON file.
func (c *Config) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port: "8080",
			Host: "0.0.0.0",
		},
		Database: DatabaseConfig{
			Host:         "localhost",
			Port:         5432,
			Database:     "cabsflight",
			Username:     "cabsflight",
			SSLMode:      "disable",
			MaxOpenConns: 25,
			MaxIdleConns: 5,
		},
		Feed: FeedConfig{
			BaseURL:             "https://content.osu.edu/v2/bus",
			PollIntervalSeconds: 3,
			RequestsPerSecond:   5.0,
		},
		Animation: AnimationConfig{
			TransitionMillis: 900,
			FrameRate:        60,
		},
		Campus: CampusConfig{
			Name:      "Columbus Campus",
			Latitude:  40.0017,
			Longitude: -83.0197,
			TimeZone:  "America/New_York",
		},
	}
}

// PollInterval returns the vehicle refresh interval as a duration.
func (f *FeedConfig) PollInterval() time.Duration {
	if f.PollIntervalSeconds <= 0 {
		return 3 * time.Second
	}
	return time.Duration(f.PollIntervalSeconds) * time.Second
}

// TransitionDuration returns the animation transition length as a duration.
func (a *AnimationConfig) TransitionDuration() time.Duration {
	if a.TransitionMillis <= 0 {
		return 900 * time.Millisecond
	}
	return time.Duration(a.TransitionMillis) * time.Millisecond
}

// FrameInterval returns the spacing between animation frames.
func (a *AnimationConfig) FrameInterval() time.Duration {
	if a.FrameRate <= 0 {
		return time.Second / 60
	}
	return time.Second / time.Duration(a.FrameRate)
}

// ConnectionString builds a PostgreSQL DSN from the database settings.
func (d *DatabaseConfig) ConnectionString() string {
	return fmt.Sprintf("host=%s port=%d dbname=%s user=%s password=%s sslmode=%s",
		d.Host, d.Port, d.Database, d.Username, d.Password, d.SSLMode)
}

// applyEnvironmentOverrides applies environment variable overrides to the
// config. This allows sensitive data like passwords to be kept out of
// config files.
func (c *Config) applyEnvironmentOverrides() {
	if port := os.Getenv("CABSFLIGHT_PORT"); port != "" {
		c.Server.Port = port
	}
	if dbPassword := os.Getenv("CABSFLIGHT_DB_PASSWORD"); dbPassword != "" {
		c.Database.Password = dbPassword
	}
	if feedURL := os.Getenv("CABSFLIGHT_FEED_URL"); feedURL != "" {
		c.Feed.BaseURL = feedURL
	}
}
