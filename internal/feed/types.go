package feed

import (
	"context"
	"errors"

	"github.com/skyroute/flightfeed/pkg/coordinates"
	"github.com/skyroute/flightfeed/pkg/opensky"
)

// DefaultRadius is the query radius in degrees when none is given.
const DefaultRadius = 2.0

var (
	// ErrFlightNotFound means the aircraft is neither cached nor seen upstream.
	ErrFlightNotFound = errors.New("flight not found")

	// ErrInvalidQuery wraps validation failures of caller input.
	ErrInvalidQuery = errors.New("invalid query")

	// ErrUnknownAirport means a destination airport code did not resolve.
	ErrUnknownAirport = errors.New("unknown airport")
)

// Query is a region request: centre and radius in degrees.
type Query struct {
	Lat    float64
	Lng    float64
	Radius float64
}

// Flight is a FlightState plus the per-response derived fields.
type Flight struct {
	opensky.FlightState

	PredictedPosition coordinates.Geographic   `json:"predictedPosition"`
	PredictedAltitude *float64                 `json:"predictedAltitude,omitempty"`
	Trajectory        []coordinates.Geographic `json:"trajectory"`

	Airline     *Airline  `json:"airline,omitempty"`
	Aircraft    *Aircraft `json:"aircraft,omitempty"`
	Destination *Airport  `json:"destination,omitempty"`
}

// Result is the answer to a region query.
type Result struct {
	Flights       []Flight `json:"flights"`
	Cached        bool     `json:"cached"`
	Timestamp     int64    `json:"timestamp"`
	Authenticated bool     `json:"authenticated"`
	Error         string   `json:"error,omitempty"`
}

// Destination is either a coordinate pair or an airport code.
type Destination struct {
	Lat     *float64 `json:"lat,omitempty"`
	Lng     *float64 `json:"lng,omitempty"`
	Airport string   `json:"airport,omitempty"`
}

// LookupRequest asks for one aircraft, optionally with a path to a destination.
type LookupRequest struct {
	ICAO24      string       `json:"icao24"`
	Destination *Destination `json:"destination,omitempty"`
}

// Airline is a carrier from the directory.
type Airline struct {
	ICAO    string `json:"icao"`
	IATA    string `json:"iata,omitempty"`
	Name    string `json:"name"`
	Country string `json:"country,omitempty"`
}

// Aircraft is an airframe from the directory.
type Aircraft struct {
	ICAO24       string `json:"icao24"`
	Registration string `json:"registration,omitempty"`
	Manufacturer string `json:"manufacturer,omitempty"`
	Model        string `json:"model,omitempty"`
	TypeCode     string `json:"typeCode,omitempty"`
	Operator     string `json:"operator,omitempty"`
}

// Airport is a destination. Code is empty for raw coordinates.
type Airport struct {
	Code      string  `json:"code,omitempty"`
	IATA      string  `json:"iata,omitempty"`
	Name      string  `json:"name,omitempty"`
	City      string  `json:"city,omitempty"`
	Country   string  `json:"country,omitempty"`
	Latitude  float64 `json:"lat"`
	Longitude float64 `json:"lng"`
}

// Position returns the airport location.
func (a Airport) Position() coordinates.Geographic {
	return coordinates.Geographic{Latitude: a.Latitude, Longitude: a.Longitude}
}

// Directory annotates flights with carrier, airframe and airport data.
// AirlineForCallsign is served from memory and is called for every flight;
// the other lookups hit the backing store.
type Directory interface {
	AirlineForCallsign(callsign string) (*Airline, bool)
	AircraftByICAO24(ctx context.Context, icao24 string) (*Aircraft, error)
	AirportByCode(ctx context.Context, code string) (*Airport, error)
}
