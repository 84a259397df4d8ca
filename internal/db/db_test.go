package db

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/skyroute/flightfeed/pkg/config"
)

// openTestDB creates a SQLite directory database under t.TempDir().
func openTestDB(t *testing.T) *DB {
	t.Helper()

	cfg := config.DefaultConfig().Database
	cfg.Driver = "sqlite3"
	cfg.Path = filepath.Join(t.TempDir(), "directory.db")

	db, err := Connect(context.Background(), cfg)
	if err != nil {
		t.Fatalf("Failed to connect: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if err := db.InitSchema(context.Background()); err != nil {
		t.Fatalf("Failed to init schema: %v", err)
	}
	return db
}

// TestConnect tests database connection with various configurations.
func TestConnect(t *testing.T) {
	t.Run("SQLite file database", func(t *testing.T) {
		db := openTestDB(t)
		if db.Driver() != "sqlite3" {
			t.Errorf("Expected sqlite3 driver, got %s", db.Driver())
		}
	})

	t.Run("Unsupported driver", func(t *testing.T) {
		_, err := Connect(context.Background(), config.DatabaseConfig{Driver: "mysql"})
		if err == nil {
			t.Fatal("Expected error for unsupported driver")
		}
	})

	t.Run("Postgres connection string formatting", func(t *testing.T) {
		dsn, err := dataSourceName(config.DatabaseConfig{
			Driver:   "postgres",
			Host:     "localhost",
			Port:     5432,
			Username: "testuser",
			Password: "testpass",
			Database: "testdb",
			SSLMode:  "disable",
		})
		if err != nil {
			t.Fatalf("Unexpected error: %v", err)
		}
		expected := "host=localhost port=5432 user=testuser password=testpass dbname=testdb sslmode=disable"
		if dsn != expected {
			t.Errorf("Expected %q, got %q", expected, dsn)
		}
	})
}

func TestInitSchemaIsIdempotent(t *testing.T) {
	db := openTestDB(t)
	if err := db.InitSchema(context.Background()); err != nil {
		t.Errorf("Expected second InitSchema to succeed, got %v", err)
	}
}

// TestGetStats tests database statistics retrieval.
func TestGetStats(t *testing.T) {
	db := openTestDB(t)

	if _, err := db.ExecContext(context.Background(),
		`INSERT INTO airlines (icao, iata, name, country) VALUES ('DAL', 'DL', 'Delta Air Lines', 'United States')`); err != nil {
		t.Fatal(err)
	}

	stats, err := db.GetStats(context.Background())
	if err != nil {
		t.Fatalf("Failed to get stats: %v", err)
	}
	if stats["airlines"] != int64(1) {
		t.Errorf("Expected 1 airline, got %v", stats["airlines"])
	}
	if stats["airports"] != int64(0) {
		t.Errorf("Expected 0 airports, got %v", stats["airports"])
	}
}

func TestHealthCheck(t *testing.T) {
	t.Run("Nil database", func(t *testing.T) {
		if HealthCheck(context.Background(), nil, nil) {
			t.Error("Expected nil database to be unhealthy")
		}
	})

	t.Run("Open database", func(t *testing.T) {
		db := openTestDB(t)
		if !HealthCheck(context.Background(), db, nil) {
			t.Error("Expected open database to be healthy")
		}
	})

	t.Run("Closed database", func(t *testing.T) {
		db := openTestDB(t)
		db.Close()
		if HealthCheck(context.Background(), db, nil) {
			t.Error("Expected closed database to be unhealthy")
		}
	})
}

func TestReconnectWithRetry(t *testing.T) {
	t.Run("Succeeds on first attempt", func(t *testing.T) {
		cfg := config.DatabaseConfig{Driver: "sqlite3", Path: filepath.Join(t.TempDir(), "r.db")}
		db, err := ReconnectWithRetry(context.Background(), cfg, 3, time.Millisecond, nil)
		if err != nil {
			t.Fatalf("Expected connection, got %v", err)
		}
		db.Close()
	})

	t.Run("Gives up after max retries", func(t *testing.T) {
		cfg := config.DatabaseConfig{Driver: "mysql"}
		_, err := ReconnectWithRetry(context.Background(), cfg, 2, time.Millisecond, nil)
		if err == nil {
			t.Fatal("Expected error after retries")
		}
	})

	t.Run("Stops when context is cancelled", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		cfg := config.DatabaseConfig{Driver: "mysql"}
		_, err := ReconnectWithRetry(ctx, cfg, 0, time.Hour, nil)
		if err != context.Canceled {
			t.Errorf("Expected context.Canceled, got %v", err)
		}
	})
}
