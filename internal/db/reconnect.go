package db

import (
	"context"
	"fmt"
	"time"

	"github.com/skyroute/flightfeed/pkg/config"
	"github.com/skyroute/flightfeed/pkg/logger"
)

// ReconnectWithRetry connects to the database with exponential backoff.
// This lets the service start while a database container is still booting.
//
// Parameters:
//   - maxRetries: Maximum number of connection attempts (0 = until ctx is done)
//   - initialDelay: Initial wait time between retries
//
// Returns: Connected database or error if all retries exhausted
func ReconnectWithRetry(ctx context.Context, cfg config.DatabaseConfig, maxRetries int, initialDelay time.Duration, log *logger.Logger) (*DB, error) {
	if log == nil {
		log = logger.Discard()
	}
	delay := initialDelay
	attempt := 0

	for {
		attempt++
		log.Debug("Database connection attempt %d (%s)", attempt, cfg.Driver)

		db, err := Connect(ctx, cfg)
		if err == nil {
			if attempt > 1 {
				log.Info("Database connected after %d attempts", attempt)
			}
			return db, nil
		}

		if maxRetries > 0 && attempt >= maxRetries {
			return nil, fmt.Errorf("failed to connect after %d attempts: %w", attempt, err)
		}

		log.Warn("Database connection failed: %v (retry in %v)", err, delay)
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(delay):
		}

		// Exponential backoff with cap at 60 seconds
		delay *= 2
		if delay > 60*time.Second {
			delay = 60 * time.Second
		}
	}
}

// HealthCheck reports whether the database answers a ping and a trivial query.
func HealthCheck(ctx context.Context, db *DB, log *logger.Logger) bool {
	if db == nil {
		return false
	}
	if log == nil {
		log = logger.Discard()
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		log.Warn("Health check failed - ping error: %v", err)
		return false
	}

	var result int
	if err := db.QueryRowContext(ctx, "SELECT 1").Scan(&result); err != nil {
		log.Warn("Health check failed - query error: %v", err)
		return false
	}

	if result != 1 {
		log.Warn("Health check failed - unexpected result: %d", result)
		return false
	}

	return true
}
