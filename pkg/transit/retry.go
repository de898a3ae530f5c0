package transit

import (
	"context"
	"fmt"
	"math"
	"time"
)

// RetryConfig configures retry behavior with exponential backoff.
type RetryConfig struct {
	// MaxRetries is the maximum number of retry attempts (default: 3)
	MaxRetries int

	// InitialDelay is the initial backoff delay (default: 1 second)
	InitialDelay time.Duration

	// MaxDelay is the maximum backoff delay (default: 30 seconds)
	MaxDelay time.Duration

	// Multiplier is the backoff multiplier (default: 2.0 for exponential)
	Multiplier float64

	// RespectRetryAfter uses the Retry-After header if available (default: true)
	RespectRetryAfter bool
}

// DefaultRetryConfig returns sensible defaults for retry behavior.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:        3,
		InitialDelay:      time.Second,
		MaxDelay:          30 * time.Second,
		Multiplier:        2.0,
		RespectRetryAfter: true,
	}
}

// RetryWithBackoff executes a function with exponential backoff retry logic.
// HTTP 429 responses are handled specially by respecting Retry-After delays.
//
// Example usage:
//
//	vehicles, err := RetryWithBackoff(ctx, DefaultRetryConfig(), func() ([]VehicleSnapshot, error) {
//	    return client.FetchVehicles(ctx, "CC")
//	})
func RetryWithBackoff[T any](ctx context.Context, cfg RetryConfig, fn func() (T, error)) (T, error) {
	var result T
	var lastErr error
	delay := cfg.InitialDelay

	for attempt := 0; attempt <= cfg.MaxRetries; attempt++ {
		// First attempt (no delay)
		if attempt > 0 {
			// Check context before sleeping
			select {
			case <-ctx.Done():
				return result, fmt.Errorf("retry cancelled: %w", ctx.Err())
			case <-time.After(delay):
			}
		}

		res, err := fn()
		if err == nil {
			return res, nil
		}
		lastErr = err

		// Last attempt - don't calculate next delay
		if attempt == cfg.MaxRetries {
			break
		}

		// Rate limit errors carry their own preferred delay
		if rle, ok := IsRateLimitError(err); ok && cfg.RespectRetryAfter && rle.RetryAfter > 0 {
			delay = rle.RetryAfter
			continue
		}

		// delay = min(InitialDelay * Multiplier^attempt, MaxDelay)
		nextDelay := time.Duration(float64(cfg.InitialDelay) * math.Pow(cfg.Multiplier, float64(attempt)))
		if nextDelay > cfg.MaxDelay {
			delay = cfg.MaxDelay
		} else {
			delay = nextDelay
		}
	}

	return result, fmt.Errorf("max retries (%d) exceeded: %w", cfg.MaxRetries, lastErr)
}
