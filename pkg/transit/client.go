package transit

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"golang.org/x/time/rate"
)

// Client implements the VehicleSource interface for the campus bus API.
// The feed is a REST-style JSON service; one request per endpoint, no
// authentication.
type Client struct {
	// baseURL is the API base URL (default: https://content.campus.edu/v2/bus)
	baseURL string

	// httpClient is the HTTP client used for API requests
	httpClient *http.Client

	// limiter enforces the feed's requests-per-second budget
	limiter *rate.Limiter
}

// NewClient creates a new campus bus API client.
// requestsPerSecond caps outbound calls; 0 disables client-side limiting.
func NewClient(baseURL string, requestsPerSecond float64) *Client {
	limit := rate.Inf
	if requestsPerSecond > 0 {
		limit = rate.Limit(requestsPerSecond)
	}
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		limiter: rate.NewLimiter(limit, 1),
	}
}

// FetchAllRoutes returns the route list (identifying fields only).
// Uses the /routes endpoint.
func (c *Client) FetchAllRoutes(ctx context.Context) ([]Route, error) {
	var resp routesResponse
	if err := c.get(ctx, c.baseURL+"/routes", &resp); err != nil {
		return nil, err
	}

	routes := make([]Route, 0, len(resp.Data.Routes))
	for _, r := range resp.Data.Routes {
		// A route without a code cannot be selected or polled
		if r.Code == "" {
			continue
		}
		routes = append(routes, convertRoute(r))
	}
	return routes, nil
}

// FetchRouteDetails returns the full route record for one route code,
// including stops and patterns. Uses the /routes/{code} endpoint.
func (c *Client) FetchRouteDetails(ctx context.Context, routeCode string) (*Route, error) {
	var resp routeDetailResponse
	if err := c.get(ctx, fmt.Sprintf("%s/routes/%s", c.baseURL, routeCode), &resp); err != nil {
		return nil, err
	}

	if resp.Data.Route == nil {
		return nil, fmt.Errorf("route %s not found in feed response", routeCode)
	}

	route := convertRoute(*resp.Data.Route)
	return &route, nil
}

// FetchVehicles returns the current vehicle set for one route code.
// Uses the /routes/{code}/vehicles endpoint. Records missing identity or
// position are dropped; a partial set is not an error.
func (c *Client) FetchVehicles(ctx context.Context, routeCode string) ([]VehicleSnapshot, error) {
	var resp vehiclesResponse
	if err := c.get(ctx, fmt.Sprintf("%s/routes/%s/vehicles", c.baseURL, routeCode), &resp); err != nil {
		return nil, err
	}

	vehicles := make([]VehicleSnapshot, 0, len(resp.Data.Vehicles))
	for _, v := range resp.Data.Vehicles {
		// Skip vehicles with no identity or position
		if v.ID == "" || v.Latitude == nil || v.Longitude == nil {
			continue
		}
		vehicles = append(vehicles, convertVehicle(v))
	}
	return vehicles, nil
}

// Close cleanly shuts down the client.
// The feed has no persistent connections, so this is a no-op.
func (c *Client) Close() error {
	return nil
}

// get performs a rate-limited GET and decodes the JSON body into out.
func (c *Client) get(ctx context.Context, url string, out interface{}) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit wait cancelled: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to fetch bus data: %w", err)
	}
	defer resp.Body.Close()

	// Check for rate limit (HTTP 429)
	if resp.StatusCode == http.StatusTooManyRequests {
		return &RateLimitError{
			StatusCode: resp.StatusCode,
			RetryAfter: parseRetryAfter(resp.Header),
			Message:    "feed rate limit exceeded",
		}
	}

	// Check other error status codes
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("feed returned status %d: %s", resp.StatusCode, string(body))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to parse feed response: %w", err)
	}
	return nil
}

// routesResponse represents the JSON response from the /routes endpoint.
type routesResponse struct {
	Data struct {
		Routes []feedRoute `json:"routes"`
	} `json:"data"`
}

// routeDetailResponse represents the JSON response from /routes/{code}.
type routeDetailResponse struct {
	Data struct {
		Route *feedRoute `json:"route"`
	} `json:"data"`
}

// vehiclesResponse represents the JSON response from /routes/{code}/vehicles.
type vehiclesResponse struct {
	Data struct {
		Vehicles []feedVehicle `json:"vehicles"`
	} `json:"data"`
}

// feedRoute is a single route in the feed's JSON.
type feedRoute struct {
	Code     string        `json:"code"`
	Name     string        `json:"name"`
	Color    string        `json:"color"`
	Stops    []feedStop    `json:"stops"`
	Patterns []feedPattern `json:"patterns"`
}

type feedStop struct {
	ID        string  `json:"id"`
	Name      string  `json:"name"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

type feedPattern struct {
	ID          string `json:"id"`
	Direction   string `json:"direction"`
	EncodedPath string `json:"encodedPath"`
}

// feedVehicle is a single vehicle in the feed's JSON. Identity and position
// use pointers so that absent fields are distinguishable from zero values.
type feedVehicle struct {
	ID               string   `json:"id"`
	Latitude         *float64 `json:"latitude"`
	Longitude        *float64 `json:"longitude"`
	Heading          *float64 `json:"heading"`
	Speed            *int     `json:"speed"`
	Destination      string   `json:"destination"`
	Delayed          bool     `json:"delayed"`
	PatternID        string   `json:"patternId"`
	NextStopID       string   `json:"nextStopId"`
	NextStopDistance *int     `json:"nextStopDistance"`
	LastUpdated      string   `json:"lastUpdated"`
}

// convertRoute converts a feed route to our Route type.
func convertRoute(r feedRoute) Route {
	route := Route{
		Code:  r.Code,
		Name:  r.Name,
		Color: r.Color,
	}
	for _, s := range r.Stops {
		route.Stops = append(route.Stops, Stop{
			ID:        s.ID,
			Name:      s.Name,
			Latitude:  s.Latitude,
			Longitude: s.Longitude,
		})
	}
	for _, p := range r.Patterns {
		route.Patterns = append(route.Patterns, RoutePattern{
			ID:          p.ID,
			Direction:   p.Direction,
			EncodedPath: p.EncodedPath,
		})
	}
	return route
}

// convertVehicle converts a feed vehicle to a VehicleSnapshot.
// The caller has already verified identity and position are present.
func convertVehicle(v feedVehicle) VehicleSnapshot {
	snap := VehicleSnapshot{
		ID:          v.ID,
		Latitude:    *v.Latitude,
		Longitude:   *v.Longitude,
		Destination: v.Destination,
		Delayed:     v.Delayed,
		PatternID:   v.PatternID,
		NextStopID:  v.NextStopID,
	}
	if v.Heading != nil {
		snap.Heading = *v.Heading
	}
	if v.Speed != nil && *v.Speed > 0 {
		snap.Speed = *v.Speed
	}
	if v.NextStopDistance != nil && *v.NextStopDistance > 0 {
		snap.NextStopDistance = *v.NextStopDistance
	}
	if v.LastUpdated != "" {
		if ts, err := time.Parse(time.RFC3339, v.LastUpdated); err == nil {
			snap.UpdatedAt = ts
		}
	}
	return snap
}

// RateLimitError represents an HTTP 429 response with retry information.
type RateLimitError struct {
	StatusCode int
	RetryAfter time.Duration
	Message    string
}

func (e *RateLimitError) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("%s (retry after %v)", e.Message, e.RetryAfter)
	}
	return e.Message
}

// IsRateLimitError checks if an error is a rate limit error.
func IsRateLimitError(err error) (*RateLimitError, bool) {
	if rle, ok := err.(*RateLimitError); ok {
		return rle, true
	}
	return nil, false
}

// parseRetryAfter extracts the Retry-After header value.
// Returns the duration to wait, or 0 if the header is not present.
// Supports both delay-seconds (integer) and HTTP-date formats.
func parseRetryAfter(headers http.Header) time.Duration {
	retryAfter := headers.Get("Retry-After")
	if retryAfter == "" {
		return 0
	}

	// Try parsing as delay-seconds (e.g., "30")
	if seconds, err := strconv.Atoi(retryAfter); err == nil && seconds > 0 {
		return time.Duration(seconds) * time.Second
	}

	// Try parsing as HTTP-date (e.g., "Wed, 21 Oct 2015 07:28:00 GMT")
	if retryTime, err := http.ParseTime(retryAfter); err == nil {
		if d := time.Until(retryTime); d > 0 {
			return d
		}
	}

	return 0
}
