package db

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/fusiondrive/CABSFlight/pkg/config"
)

// TestNewPreferenceRepository tests repository construction.
func TestNewPreferenceRepository(t *testing.T) {
	repo := NewPreferenceRepository(nil)
	if repo == nil {
		t.Fatal("Expected non-nil repository")
	}
}

// testRepo connects to the database named by CABSFLIGHT_TEST_DB_NAME and
// returns a repository over a fresh schema. Tests are skipped when no test
// database is available.
func testRepo(t *testing.T) *PreferenceRepository {
	t.Helper()

	dbName := os.Getenv("CABSFLIGHT_TEST_DB_NAME")
	if dbName == "" {
		t.Skip("Set CABSFLIGHT_TEST_DB_NAME to run database tests")
	}

	cfg := config.DefaultConfig().Database
	cfg.Database = dbName
	if pw := os.Getenv("CABSFLIGHT_DB_PASSWORD"); pw != "" {
		cfg.Password = pw
	}

	database, err := Connect(cfg)
	if err != nil {
		t.Skipf("Test database unavailable: %v", err)
	}
	t.Cleanup(func() { database.Close() })

	ctx := context.Background()
	if err := database.InitSchema(ctx); err != nil {
		t.Fatalf("Failed to initialize schema: %v", err)
	}
	if _, err := database.ExecContext(ctx, `DELETE FROM favorite_routes; DELETE FROM rider_preferences`); err != nil {
		t.Fatalf("Failed to reset tables: %v", err)
	}

	return NewPreferenceRepository(database.DB)
}

// TestFavoriteLifecycle exercises add, list, check, and remove against a
// real database.
func TestFavoriteLifecycle(t *testing.T) {
	repo := testRepo(t)
	ctx := context.Background()

	if err := repo.AddFavorite(ctx, "CC", "Campus Connector"); err != nil {
		t.Fatalf("Failed to add favorite: %v", err)
	}
	time.Sleep(10 * time.Millisecond)
	if err := repo.AddFavorite(ctx, "ER", "East Residential"); err != nil {
		t.Fatalf("Failed to add favorite: %v", err)
	}

	// Re-adding refreshes the name without error
	if err := repo.AddFavorite(ctx, "CC", "Campus Connector Express"); err != nil {
		t.Fatalf("Expected re-add to succeed, got: %v", err)
	}

	favorites, err := repo.ListFavorites(ctx)
	if err != nil {
		t.Fatalf("Failed to list favorites: %v", err)
	}
	if len(favorites) != 2 {
		t.Fatalf("Expected 2 favorites, got %d", len(favorites))
	}
	// Most recently added first
	if favorites[0].RouteCode != "ER" {
		t.Errorf("Expected ER first, got %s", favorites[0].RouteCode)
	}

	isFav, err := repo.IsFavorite(ctx, "CC")
	if err != nil {
		t.Fatalf("Failed to check favorite: %v", err)
	}
	if !isFav {
		t.Error("Expected CC to be a favorite")
	}

	if err := repo.RemoveFavorite(ctx, "CC"); err != nil {
		t.Fatalf("Failed to remove favorite: %v", err)
	}
	if err := repo.RemoveFavorite(ctx, "CC"); !errors.Is(err, ErrFavoriteNotFound) {
		t.Errorf("Expected ErrFavoriteNotFound on double remove, got: %v", err)
	}

	isFav, err = repo.IsFavorite(ctx, "CC")
	if err != nil {
		t.Fatalf("Failed to check favorite: %v", err)
	}
	if isFav {
		t.Error("Expected CC no longer a favorite")
	}
}

// TestLastRoute exercises the resume-on-last-route preference.
func TestLastRoute(t *testing.T) {
	repo := testRepo(t)
	ctx := context.Background()

	if _, err := repo.LastRoute(ctx); !errors.Is(err, ErrNoLastRoute) {
		t.Errorf("Expected ErrNoLastRoute before any selection, got: %v", err)
	}

	if err := repo.SetLastRoute(ctx, "CC"); err != nil {
		t.Fatalf("Failed to set last route: %v", err)
	}
	if err := repo.SetLastRoute(ctx, "ER"); err != nil {
		t.Fatalf("Failed to update last route: %v", err)
	}

	code, err := repo.LastRoute(ctx)
	if err != nil {
		t.Fatalf("Failed to read last route: %v", err)
	}
	if code != "ER" {
		t.Errorf("Expected last route ER, got %s", code)
	}
}
