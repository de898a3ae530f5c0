package db

import (
	"context"
	"log"
	"strings"
	"time"

	"github.com/fusiondrive/CABSFlight/pkg/config"
)

// ReconnectWithRetry attempts to reconnect to the database with exponential
// backoff. This provides resilience against temporary database outages.
//
// maxRetries of 0 retries forever.
func ReconnectWithRetry(cfg config.DatabaseConfig, maxRetries int, initialDelay time.Duration) (*DB, error) {
	delay := initialDelay
	attempt := 0

	for {
		attempt++

		log.Printf("Database connection attempt %d...", attempt)

		db, err := Connect(cfg)
		if err == nil {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			pingErr := db.PingContext(ctx)
			cancel()
			if pingErr == nil {
				log.Println("Database reconnected successfully")
				return db, nil
			}

			db.Close()
			err = pingErr
		}

		if maxRetries > 0 && attempt >= maxRetries {
			log.Printf("Failed to reconnect after %d attempts", attempt)
			return nil, err
		}

		log.Printf("Connection failed: %v (retry in %v)", err, delay)
		time.Sleep(delay)

		// Exponential backoff with cap at 60 seconds
		delay *= 2
		if delay > 60*time.Second {
			delay = 60 * time.Second
		}
	}
}

// EnsureConnection checks if the database connection is alive and
// reconnects if needed. Call before operations that must not fail on a
// stale pool.
func EnsureConnection(db *DB, cfg config.DatabaseConfig) (*DB, error) {
	if db == nil {
		log.Println("Database connection is nil, attempting to reconnect...")
		return ReconnectWithRetry(cfg, 3, 1*time.Second)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		log.Printf("Database connection lost: %v", err)
		db.Close()
		return ReconnectWithRetry(cfg, 3, 1*time.Second)
	}

	return db, nil
}

// HealthCheck reports whether the database is ready for operations.
func HealthCheck(db *DB) bool {
	if db == nil {
		return false
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		log.Printf("Health check failed - ping error: %v", err)
		return false
	}

	var result int
	if err := db.QueryRowContext(ctx, "SELECT 1").Scan(&result); err != nil {
		log.Printf("Health check failed - query error: %v", err)
		return false
	}

	return result == 1
}

// WithRetry executes a database operation with automatic retry on
// connection failures. Non-connection errors fail immediately.
func WithRetry(operation func() error, maxRetries int) error {
	var lastErr error

	for attempt := 0; attempt <= maxRetries; attempt++ {
		err := operation()
		if err == nil {
			return nil
		}

		lastErr = err

		if !isConnectionError(err) {
			return err
		}

		if attempt < maxRetries {
			waitTime := time.Duration(attempt+1) * time.Second
			log.Printf("Database operation failed (attempt %d/%d): %v (retry in %v)",
				attempt+1, maxRetries+1, err, waitTime)
			time.Sleep(waitTime)
		}
	}

	return lastErr
}

// isConnectionError matches errors worth retrying against the common
// transient failure patterns the driver surfaces as plain strings.
func isConnectionError(err error) bool {
	if err == nil {
		return false
	}

	msg := strings.ToLower(err.Error())
	for _, pattern := range []string{
		"connection refused",
		"broken pipe",
		"no connection",
		"connection reset",
		"eof",
		"timeout",
	} {
		if strings.Contains(msg, pattern) {
			return true
		}
	}

	return false
}
