package db

import (
	"errors"
	"strings"
	"testing"

	"github.com/fusiondrive/CABSFlight/pkg/config"
)

// TestConnect tests database connection with various configurations.
func TestConnect(t *testing.T) {
	t.Run("Valid connection string formatting", func(t *testing.T) {
		cfg := config.DatabaseConfig{
			Host:         "localhost",
			Port:         5432,
			Username:     "testuser",
			Password:     "testpass",
			Database:     "testdb",
			SSLMode:      "disable",
			MaxOpenConns: 25,
			MaxIdleConns: 5,
		}

		// Note: This will fail to connect if no database is running,
		// but we're testing the connection string construction
		db, err := Connect(cfg)
		if err != nil {
			// Expected if no database is running
			// Just verify error message format
			if err.Error() == "" {
				t.Error("Expected non-empty error message")
			}
			return
		}

		// If database happens to be running, verify connection
		if db == nil {
			t.Fatal("Expected db to be non-nil")
		}
		if db.DB == nil {
			t.Error("Expected DB field to be initialized")
		}
		if db.config.Host != cfg.Host {
			t.Errorf("Expected host %s, got %s", cfg.Host, db.config.Host)
		}

		db.Close()
	})
}

// TestSchemaEmbedded verifies the schema file ships with the binary.
func TestSchemaEmbedded(t *testing.T) {
	data, err := schemaSQL.ReadFile("schema.sql")
	if err != nil {
		t.Fatalf("Expected embedded schema, got: %v", err)
	}
	if len(data) == 0 {
		t.Fatal("Expected non-empty schema")
	}

	for _, table := range []string{"favorite_routes", "rider_preferences"} {
		if !strings.Contains(string(data), table) {
			t.Errorf("Expected schema to define table %s", table)
		}
	}
}

// TestIsConnectionError tests transient failure classification.
func TestIsConnectionError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"Nil error", nil, false},
		{"Connection refused", errors.New("dial tcp: connection refused"), true},
		{"Broken pipe", errors.New("write: broken pipe"), true},
		{"Unexpected EOF", errors.New("unexpected EOF"), true},
		{"Timeout", errors.New("i/o timeout"), true},
		{"Constraint violation", errors.New("pq: duplicate key value"), false},
		{"Syntax error", errors.New("pq: syntax error at or near"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := isConnectionError(tt.err); got != tt.want {
				t.Errorf("isConnectionError(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}

// TestWithRetry tests the retry wrapper's stop conditions.
func TestWithRetry(t *testing.T) {
	t.Run("Success first attempt", func(t *testing.T) {
		calls := 0
		err := WithRetry(func() error {
			calls++
			return nil
		}, 3)
		if err != nil {
			t.Fatalf("Expected no error, got: %v", err)
		}
		if calls != 1 {
			t.Errorf("Expected 1 call, got %d", calls)
		}
	})

	t.Run("Non-connection error fails immediately", func(t *testing.T) {
		calls := 0
		wantErr := errors.New("pq: relation does not exist")
		err := WithRetry(func() error {
			calls++
			return wantErr
		}, 3)
		if !errors.Is(err, wantErr) {
			t.Errorf("Expected original error, got: %v", err)
		}
		if calls != 1 {
			t.Errorf("Expected no retries for non-connection error, got %d calls", calls)
		}
	})
}
