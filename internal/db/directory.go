package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/skyroute/flightfeed/internal/feed"
	"github.com/skyroute/flightfeed/pkg/logger"
)

// Directory is the SQL-backed airline, aircraft and airport store used to
// annotate flights. Airlines are held in memory because every flight in
// every response is matched against them; the other lookups hit the
// database.
type Directory struct {
	db  *DB
	log *logger.Logger

	mu       sync.RWMutex
	airlines map[string]feed.Airline // keyed by ICAO designator
}

var _ feed.Directory = (*Directory)(nil)

// NewDirectory creates a directory over db. Call LoadAirlines before use.
func NewDirectory(db *DB, log *logger.Logger) *Directory {
	if log == nil {
		log = logger.Discard()
	}
	return &Directory{
		db:       db,
		log:      log,
		airlines: make(map[string]feed.Airline),
	}
}

// LoadAirlines replaces the in-memory airline table with the database contents.
func (d *Directory) LoadAirlines(ctx context.Context) (int, error) {
	rows, err := d.db.QueryContext(ctx,
		`SELECT icao, iata, name, country FROM airlines`)
	if err != nil {
		return 0, fmt.Errorf("failed to query airlines: %w", err)
	}
	defer rows.Close()

	airlines := make(map[string]feed.Airline)
	for rows.Next() {
		var a feed.Airline
		if err := rows.Scan(&a.ICAO, &a.IATA, &a.Name, &a.Country); err != nil {
			return 0, fmt.Errorf("failed to scan airline: %w", err)
		}
		airlines[strings.ToUpper(a.ICAO)] = a
	}
	if err := rows.Err(); err != nil {
		return 0, fmt.Errorf("failed to read airlines: %w", err)
	}

	d.mu.Lock()
	d.airlines = airlines
	d.mu.Unlock()

	d.log.Info("Loaded %d airlines into directory", len(airlines))
	return len(airlines), nil
}

// AirlineForCallsign matches the three-letter ICAO designator that
// prefixes airline callsigns ("DAL123" -> DAL). General aviation
// registrations like "N123AB" don't match.
func (d *Directory) AirlineForCallsign(callsign string) (*feed.Airline, bool) {
	prefix, ok := callsignPrefix(callsign)
	if !ok {
		return nil, false
	}

	d.mu.RLock()
	a, found := d.airlines[prefix]
	d.mu.RUnlock()
	if !found {
		return nil, false
	}
	return &a, true
}

func callsignPrefix(callsign string) (string, bool) {
	cs := strings.ToUpper(strings.TrimSpace(callsign))
	if len(cs) < 4 {
		return "", false
	}
	for i := 0; i < 3; i++ {
		if cs[i] < 'A' || cs[i] > 'Z' {
			return "", false
		}
	}
	// flight number must start with a digit
	if cs[3] < '0' || cs[3] > '9' {
		return "", false
	}
	return cs[:3], true
}

// AircraftByICAO24 returns the registered airframe, or nil if unknown.
func (d *Directory) AircraftByICAO24(ctx context.Context, icao24 string) (*feed.Aircraft, error) {
	var a feed.Aircraft
	err := d.db.QueryRowContext(ctx,
		`SELECT icao24, registration, manufacturer, model, type_code, operator
		 FROM aircraft
		 WHERE icao24 = $1`,
		strings.ToLower(strings.TrimSpace(icao24)),
	).Scan(&a.ICAO24, &a.Registration, &a.Manufacturer, &a.Model, &a.TypeCode, &a.Operator)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query aircraft: %w", err)
	}
	return &a, nil
}

// AirportByCode looks an airport up by ICAO code, falling back to IATA.
// Returns nil if neither matches.
func (d *Directory) AirportByCode(ctx context.Context, code string) (*feed.Airport, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	if code == "" {
		return nil, nil
	}

	var a feed.Airport
	err := d.db.QueryRowContext(ctx,
		`SELECT code, iata, name, city, country, latitude, longitude
		 FROM airports
		 WHERE code = $1 OR iata = $1
		 ORDER BY CASE WHEN code = $1 THEN 0 ELSE 1 END
		 LIMIT 1`,
		code,
	).Scan(&a.Code, &a.IATA, &a.Name, &a.City, &a.Country, &a.Latitude, &a.Longitude)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query airport: %w", err)
	}
	return &a, nil
}

// UpsertAirline inserts or updates an airline and refreshes the in-memory entry.
func (d *Directory) UpsertAirline(ctx context.Context, a feed.Airline) error {
	a.ICAO = strings.ToUpper(strings.TrimSpace(a.ICAO))
	if a.ICAO == "" {
		return errors.New("airline ICAO designator is required")
	}

	_, err := d.db.ExecContext(ctx,
		`INSERT INTO airlines (icao, iata, name, country)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (icao) DO UPDATE SET
		     iata = EXCLUDED.iata,
		     name = EXCLUDED.name,
		     country = EXCLUDED.country`,
		a.ICAO, a.IATA, a.Name, a.Country,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert airline %s: %w", a.ICAO, err)
	}

	d.mu.Lock()
	d.airlines[a.ICAO] = a
	d.mu.Unlock()
	return nil
}

// UpsertAircraft inserts or updates an airframe record.
func (d *Directory) UpsertAircraft(ctx context.Context, a feed.Aircraft) error {
	a.ICAO24 = strings.ToLower(strings.TrimSpace(a.ICAO24))
	if a.ICAO24 == "" {
		return errors.New("aircraft icao24 is required")
	}

	_, err := d.db.ExecContext(ctx,
		`INSERT INTO aircraft (icao24, registration, manufacturer, model, type_code, operator)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 ON CONFLICT (icao24) DO UPDATE SET
		     registration = EXCLUDED.registration,
		     manufacturer = EXCLUDED.manufacturer,
		     model = EXCLUDED.model,
		     type_code = EXCLUDED.type_code,
		     operator = EXCLUDED.operator`,
		a.ICAO24, a.Registration, a.Manufacturer, a.Model, a.TypeCode, a.Operator,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert aircraft %s: %w", a.ICAO24, err)
	}
	return nil
}

// UpsertAirport inserts or updates an airport record.
func (d *Directory) UpsertAirport(ctx context.Context, a feed.Airport) error {
	a.Code = strings.ToUpper(strings.TrimSpace(a.Code))
	a.IATA = strings.ToUpper(strings.TrimSpace(a.IATA))
	if a.Code == "" {
		return errors.New("airport code is required")
	}

	_, err := d.db.ExecContext(ctx,
		`INSERT INTO airports (code, iata, name, city, country, latitude, longitude)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 ON CONFLICT (code) DO UPDATE SET
		     iata = EXCLUDED.iata,
		     name = EXCLUDED.name,
		     city = EXCLUDED.city,
		     country = EXCLUDED.country,
		     latitude = EXCLUDED.latitude,
		     longitude = EXCLUDED.longitude`,
		a.Code, a.IATA, a.Name, a.City, a.Country, a.Latitude, a.Longitude,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert airport %s: %w", a.Code, err)
	}
	return nil
}

// Healthy reports whether the backing database is reachable.
func (d *Directory) Healthy(ctx context.Context) bool {
	return HealthCheck(ctx, d.db, d.log)
}

// Stats returns directory row counts.
func (d *Directory) Stats(ctx context.Context) (map[string]interface{}, error) {
	return d.db.GetStats(ctx)
}
