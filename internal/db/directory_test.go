package db

import (
	"context"
	"testing"

	"github.com/skyroute/flightfeed/internal/feed"
)

func newTestDirectory(t *testing.T) *Directory {
	t.Helper()
	ctx := context.Background()
	dir := NewDirectory(openTestDB(t), nil)

	airlines := []feed.Airline{
		{ICAO: "DAL", IATA: "DL", Name: "Delta Air Lines", Country: "United States"},
		{ICAO: "BAW", IATA: "BA", Name: "British Airways", Country: "United Kingdom"},
	}
	for _, a := range airlines {
		if err := dir.UpsertAirline(ctx, a); err != nil {
			t.Fatalf("Failed to upsert airline: %v", err)
		}
	}
	if err := dir.UpsertAircraft(ctx, feed.Aircraft{
		ICAO24: "A1B2C3", Registration: "N123DL", Manufacturer: "Airbus", Model: "A321-211", TypeCode: "A321", Operator: "Delta Air Lines",
	}); err != nil {
		t.Fatalf("Failed to upsert aircraft: %v", err)
	}
	airports := []feed.Airport{
		{Code: "KBOS", IATA: "BOS", Name: "Boston Logan International", City: "Boston", Country: "United States", Latitude: 42.3656, Longitude: -71.0096},
		{Code: "EGLL", IATA: "LHR", Name: "London Heathrow", City: "London", Country: "United Kingdom", Latitude: 51.4700, Longitude: -0.4543},
	}
	for _, a := range airports {
		if err := dir.UpsertAirport(ctx, a); err != nil {
			t.Fatalf("Failed to upsert airport: %v", err)
		}
	}
	return dir
}

func TestAirlineForCallsign(t *testing.T) {
	dir := newTestDirectory(t)

	tests := []struct {
		callsign string
		want     string
	}{
		{"DAL123", "DAL"},
		{"dal123 ", "DAL"},
		{"BAW9", "BAW"},
		{"N123AB", ""},
		{"DALX12", ""},
		{"UAL456", ""},
		{"DA", ""},
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(tt.callsign, func(t *testing.T) {
			airline, ok := dir.AirlineForCallsign(tt.callsign)
			if tt.want == "" {
				if ok {
					t.Errorf("Expected no match, got %+v", airline)
				}
				return
			}
			if !ok {
				t.Fatalf("Expected match %s, got none", tt.want)
			}
			if airline.ICAO != tt.want {
				t.Errorf("Expected %s, got %s", tt.want, airline.ICAO)
			}
		})
	}
}

func TestLoadAirlines(t *testing.T) {
	dir := newTestDirectory(t)

	// A fresh directory over the same database starts empty until loaded.
	reloaded := NewDirectory(dir.db, nil)
	if _, ok := reloaded.AirlineForCallsign("DAL123"); ok {
		t.Error("Expected no airlines before LoadAirlines")
	}

	n, err := reloaded.LoadAirlines(context.Background())
	if err != nil {
		t.Fatalf("Failed to load airlines: %v", err)
	}
	if n != 2 {
		t.Errorf("Expected 2 airlines, got %d", n)
	}
	if _, ok := reloaded.AirlineForCallsign("DAL123"); !ok {
		t.Error("Expected DAL after LoadAirlines")
	}
}

func TestAircraftByICAO24(t *testing.T) {
	dir := newTestDirectory(t)
	ctx := context.Background()

	t.Run("Known airframe, any case", func(t *testing.T) {
		a, err := dir.AircraftByICAO24(ctx, "A1B2C3")
		if err != nil {
			t.Fatalf("Unexpected error: %v", err)
		}
		if a == nil || a.Model != "A321-211" {
			t.Errorf("Expected A321-211, got %+v", a)
		}
	})

	t.Run("Unknown airframe", func(t *testing.T) {
		a, err := dir.AircraftByICAO24(ctx, "ffffff")
		if err != nil || a != nil {
			t.Errorf("Expected nil, nil; got %+v, %v", a, err)
		}
	})

	t.Run("Upsert replaces", func(t *testing.T) {
		if err := dir.UpsertAircraft(ctx, feed.Aircraft{ICAO24: "a1b2c3", Model: "A321neo"}); err != nil {
			t.Fatal(err)
		}
		a, _ := dir.AircraftByICAO24(ctx, "a1b2c3")
		if a == nil || a.Model != "A321neo" {
			t.Errorf("Expected updated model, got %+v", a)
		}
	})
}

func TestAirportByCode(t *testing.T) {
	dir := newTestDirectory(t)
	ctx := context.Background()

	tests := []struct {
		code string
		want string
	}{
		{"KBOS", "KBOS"},
		{"bos", "KBOS"},
		{"LHR", "EGLL"},
		{"ZZZZ", ""},
		{"", ""},
	}

	for _, tt := range tests {
		t.Run("Code "+tt.code, func(t *testing.T) {
			a, err := dir.AirportByCode(ctx, tt.code)
			if err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}
			if tt.want == "" {
				if a != nil {
					t.Errorf("Expected nil, got %+v", a)
				}
				return
			}
			if a == nil || a.Code != tt.want {
				t.Fatalf("Expected %s, got %+v", tt.want, a)
			}
		})
	}

	t.Run("Coordinates round trip", func(t *testing.T) {
		a, _ := dir.AirportByCode(ctx, "KBOS")
		if a.Latitude != 42.3656 || a.Longitude != -71.0096 {
			t.Errorf("Expected 42.3656,-71.0096; got %v,%v", a.Latitude, a.Longitude)
		}
	})
}

func TestDirectoryValidation(t *testing.T) {
	dir := newTestDirectory(t)
	ctx := context.Background()

	if err := dir.UpsertAirline(ctx, feed.Airline{Name: "Nameless"}); err == nil {
		t.Error("Expected error for airline without ICAO")
	}
	if err := dir.UpsertAircraft(ctx, feed.Aircraft{}); err == nil {
		t.Error("Expected error for aircraft without icao24")
	}
	if err := dir.UpsertAirport(ctx, feed.Airport{Name: "Nowhere"}); err == nil {
		t.Error("Expected error for airport without code")
	}
	if !dir.Healthy(ctx) {
		t.Error("Expected directory to be healthy")
	}
}
