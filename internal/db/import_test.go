package db

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

const directoryYAML = `airlines:
  - icao: dal
    iata: DL
    name: Delta Air Lines
    country: United States
aircraft:
  - icao24: A1B2C3
    registration: N123DL
    model: A321-211
    type_code: A321
airports:
  - code: kbos
    iata: bos
    name: Boston Logan International
    lat: 42.3656
    lng: -71.0096
`

func writeFile(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(body), 0644); err != nil {
		t.Fatalf("Failed to write %s: %v", name, err)
	}
	return path
}

func TestImport(t *testing.T) {
	ctx := context.Background()

	t.Run("YAML seed fills the directory", func(t *testing.T) {
		dir := NewDirectory(openTestDB(t), nil)

		f, err := ReadDirectoryFile(writeFile(t, "directory.yaml", directoryYAML))
		if err != nil {
			t.Fatalf("Expected no error, got: %v", err)
		}
		counts, err := dir.Import(ctx, f)
		if err != nil {
			t.Fatalf("Expected no error, got: %v", err)
		}
		if counts != (ImportCounts{Airlines: 1, Aircraft: 1, Airports: 1}) {
			t.Errorf("Unexpected counts: %+v", counts)
		}

		if airline, ok := dir.AirlineForCallsign("DAL42"); !ok || airline.IATA != "DL" {
			t.Errorf("Expected DAL in memory, got %+v", airline)
		}
		aircraft, err := dir.AircraftByICAO24(ctx, "a1b2c3")
		if err != nil || aircraft == nil || aircraft.TypeCode != "A321" {
			t.Errorf("Expected imported aircraft, got %+v (%v)", aircraft, err)
		}
		airport, err := dir.AirportByCode(ctx, "BOS")
		if err != nil || airport == nil || airport.Code != "KBOS" || airport.Latitude != 42.3656 {
			t.Errorf("Expected imported airport, got %+v (%v)", airport, err)
		}
	})

	t.Run("JSON seed is accepted", func(t *testing.T) {
		dir := NewDirectory(openTestDB(t), nil)
		body := `{"airports":[{"code":"EGLL","iata":"LHR","name":"London Heathrow","lat":51.47,"lng":-0.4543}]}`

		f, err := ReadDirectoryFile(writeFile(t, "directory.json", body))
		if err != nil {
			t.Fatalf("Expected no error, got: %v", err)
		}
		counts, err := dir.Import(ctx, f)
		if err != nil {
			t.Fatalf("Expected no error, got: %v", err)
		}
		if counts.Airports != 1 {
			t.Errorf("Expected 1 airport, got %d", counts.Airports)
		}
	})

	t.Run("Invalid record stops the import", func(t *testing.T) {
		dir := NewDirectory(openTestDB(t), nil)
		f := &DirectoryFile{
			Airlines: []AirlineRecord{{ICAO: "BAW", Name: "British Airways"}, {Name: "No code"}},
		}

		counts, err := dir.Import(ctx, f)
		if err == nil {
			t.Fatal("Expected error for airline without ICAO")
		}
		if counts.Airlines != 1 {
			t.Errorf("Expected 1 airline written before the error, got %d", counts.Airlines)
		}
	})

	t.Run("Missing file", func(t *testing.T) {
		if _, err := ReadDirectoryFile(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
			t.Error("Expected error for missing file")
		}
	})
}
