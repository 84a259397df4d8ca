package db

import (
	"context"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/skyroute/flightfeed/internal/feed"
)

// DirectoryFile is the seed format accepted by Import. YAML and JSON bodies
// are both read by ReadDirectoryFile.
type DirectoryFile struct {
	Airlines []AirlineRecord  `yaml:"airlines"`
	Aircraft []AircraftRecord `yaml:"aircraft"`
	Airports []AirportRecord  `yaml:"airports"`
}

type AirlineRecord struct {
	ICAO    string `yaml:"icao"`
	IATA    string `yaml:"iata"`
	Name    string `yaml:"name"`
	Country string `yaml:"country"`
}

type AircraftRecord struct {
	ICAO24       string `yaml:"icao24"`
	Registration string `yaml:"registration"`
	Manufacturer string `yaml:"manufacturer"`
	Model        string `yaml:"model"`
	TypeCode     string `yaml:"type_code"`
	Operator     string `yaml:"operator"`
}

type AirportRecord struct {
	Code      string  `yaml:"code"`
	IATA      string  `yaml:"iata"`
	Name      string  `yaml:"name"`
	City      string  `yaml:"city"`
	Country   string  `yaml:"country"`
	Latitude  float64 `yaml:"lat"`
	Longitude float64 `yaml:"lng"`
}

// ImportCounts reports how many records of each kind were written.
type ImportCounts struct {
	Airlines int
	Aircraft int
	Airports int
}

// ReadDirectoryFile parses a directory seed file.
func ReadDirectoryFile(path string) (*DirectoryFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read directory file: %w", err)
	}

	var f DirectoryFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse directory file: %w", err)
	}
	return &f, nil
}

// Import upserts every record in f. It stops at the first invalid record;
// rows written before it are kept.
func (d *Directory) Import(ctx context.Context, f *DirectoryFile) (ImportCounts, error) {
	var counts ImportCounts

	for _, a := range f.Airlines {
		if err := d.UpsertAirline(ctx, feed.Airline{ICAO: a.ICAO, IATA: a.IATA, Name: a.Name, Country: a.Country}); err != nil {
			return counts, err
		}
		counts.Airlines++
	}

	for _, a := range f.Aircraft {
		err := d.UpsertAircraft(ctx, feed.Aircraft{
			ICAO24:       a.ICAO24,
			Registration: a.Registration,
			Manufacturer: a.Manufacturer,
			Model:        a.Model,
			TypeCode:     a.TypeCode,
			Operator:     a.Operator,
		})
		if err != nil {
			return counts, err
		}
		counts.Aircraft++
	}

	for _, a := range f.Airports {
		err := d.UpsertAirport(ctx, feed.Airport{
			Code:      a.Code,
			IATA:      a.IATA,
			Name:      a.Name,
			City:      a.City,
			Country:   a.Country,
			Latitude:  a.Latitude,
			Longitude: a.Longitude,
		})
		if err != nil {
			return counts, err
		}
		counts.Airports++
	}

	d.log.Info("Imported %d airlines, %d aircraft, %d airports", counts.Airlines, counts.Aircraft, counts.Airports)
	return counts, nil
}
