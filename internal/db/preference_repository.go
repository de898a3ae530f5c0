package db

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

// FavoriteRoute is a route a rider has pinned for quick access.
type FavoriteRoute struct {
	RouteCode string    `json:"route_code"`
	RouteName string    `json:"route_name"`
	AddedAt   time.Time `json:"added_at"`
}

// lastRouteKey is the preferences key holding the most recently selected
// route code.
const lastRouteKey = "last_route"

var (
	// ErrFavoriteNotFound is returned when a favorite cannot be found
	ErrFavoriteNotFound = errors.New("favorite route not found")
	// ErrNoLastRoute is returned when no route has been selected yet
	ErrNoLastRoute = errors.New("no last route recorded")
)

// PreferenceRepository provides methods for rider preference operations.
type PreferenceRepository struct {
	db *sql.DB
}

// NewPreferenceRepository creates a new preference repository.
func NewPreferenceRepository(db *sql.DB) *PreferenceRepository {
	return &PreferenceRepository{db: db}
}

// AddFavorite pins a route. Re-adding an existing favorite refreshes its
// display name and is not an error.
func (r *PreferenceRepository) AddFavorite(ctx context.Context, routeCode, routeName string) error {
	query := `
		INSERT INTO favorite_routes (route_code, route_name)
		VALUES ($1, $2)
		ON CONFLICT (route_code) DO UPDATE SET route_name = EXCLUDED.route_name
	`

	_, err := r.db.ExecContext(ctx, query, routeCode, routeName)
	return err
}

// RemoveFavorite unpins a route.
func (r *PreferenceRepository) RemoveFavorite(ctx context.Context, routeCode string) error {
	query := `DELETE FROM favorite_routes WHERE route_code = $1`

	result, err := r.db.ExecContext(ctx, query, routeCode)
	if err != nil {
		return err
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}

	if rows == 0 {
		return ErrFavoriteNotFound
	}

	return nil
}

// IsFavorite reports whether a route is pinned.
func (r *PreferenceRepository) IsFavorite(ctx context.Context, routeCode string) (bool, error) {
	query := `SELECT 1 FROM favorite_routes WHERE route_code = $1`

	var one int
	err := r.db.QueryRowContext(ctx, query, routeCode).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	return true, nil
}

// ListFavorites retrieves all pinned routes, most recently added first.
func (r *PreferenceRepository) ListFavorites(ctx context.Context) ([]FavoriteRoute, error) {
	query := `
		SELECT route_code, route_name, added_at
		FROM favorite_routes
		ORDER BY added_at DESC
	`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var favorites []FavoriteRoute
	for rows.Next() {
		var fav FavoriteRoute
		if err := rows.Scan(&fav.RouteCode, &fav.RouteName, &fav.AddedAt); err != nil {
			return nil, err
		}
		favorites = append(favorites, fav)
	}

	if err = rows.Err(); err != nil {
		return nil, err
	}

	return favorites, nil
}

// SetLastRoute records the most recently selected route so the next session
// can resume on it.
func (r *PreferenceRepository) SetLastRoute(ctx context.Context, routeCode string) error {
	query := `
		INSERT INTO rider_preferences (key, value, updated_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = NOW()
	`

	_, err := r.db.ExecContext(ctx, query, lastRouteKey, routeCode)
	return err
}

// LastRoute retrieves the most recently selected route code.
func (r *PreferenceRepository) LastRoute(ctx context.Context) (string, error) {
	query := `SELECT value FROM rider_preferences WHERE key = $1`

	var routeCode string
	err := r.db.QueryRowContext(ctx, query, lastRouteKey).Scan(&routeCode)
	if err == sql.ErrNoRows {
		return "", ErrNoLastRoute
	}
	if err != nil {
		return "", err
	}

	return routeCode, nil
}
