// Package opensky is a client for the OpenSky Network state-vector API.
//
// It covers the two calls the flight feed needs: a bounding-box query over
// /states/all and a single-aircraft query by ICAO 24-bit address. Requests
// are authenticated through a TokenSource (OAuth2 client credentials) and fall
// back to anonymous access when no token is available.
package opensky

import (
	"fmt"
	"math"
	"net/url"
	"strconv"

	"github.com/skyroute/flightfeed/pkg/coordinates"
)

// PositionSource identifies how an aircraft position was obtained.
type PositionSource int

const (
	SourceADSB    PositionSource = 0
	SourceASTERIX PositionSource = 1
	SourceMLAT    PositionSource = 2
	SourceFLARM   PositionSource = 3
)

func (s PositionSource) String() string {
	switch s {
	case SourceADSB:
		return "ADS-B"
	case SourceASTERIX:
		return "ASTERIX"
	case SourceMLAT:
		return "MLAT"
	case SourceFLARM:
		return "FLARM"
	default:
		return "unknown"
	}
}

// FlightState is one observed aircraft at a point in time.
// Every FlightState produced by this package has a valid position.
type FlightState struct {
	// ICAO24 is the unique 24-bit transponder address (lower-case hex)
	ICAO24 string `json:"icao24"`

	// Callsign is trimmed of the upstream space padding; may be empty
	Callsign string `json:"callsign"`

	OriginCountry string `json:"originCountry"`

	// TimePosition and LastContact are Unix seconds
	TimePosition *int64 `json:"timePosition"`
	LastContact  *int64 `json:"lastContact"`

	Longitude float64 `json:"longitude"`
	Latitude  float64 `json:"latitude"`

	// BaroAltitude and GeoAltitude are meters
	BaroAltitude *float64 `json:"baroAltitude"`
	GeoAltitude  *float64 `json:"geoAltitude"`

	OnGround bool `json:"onGround"`

	// Velocity is ground speed in m/s (0 if unknown)
	Velocity float64 `json:"velocity"`

	// TrueTrack is the heading in degrees clockwise from north (0 if unknown)
	TrueTrack float64 `json:"trueTrack"`

	// VerticalRate in m/s, positive when climbing (0 if unknown)
	VerticalRate float64 `json:"verticalRate"`

	Sensors        []int          `json:"sensors,omitempty"`
	Squawk         *string        `json:"squawk"`
	SPI            bool           `json:"spi"`
	PositionSource PositionSource `json:"positionSource"`
}

// Position returns the last observed position.
func (f FlightState) Position() coordinates.Geographic {
	return coordinates.Geographic{Latitude: f.Latitude, Longitude: f.Longitude}
}

// BoundingBox is a lat/lng rectangle for a /states/all query.
type BoundingBox struct {
	LaMin float64
	LaMax float64
	LoMin float64
	LoMax float64
}

// NewBoundingBox builds the box centred on (lat, lng) extending radius
// degrees in each direction, clamped to the valid coordinate ranges.
func NewBoundingBox(lat, lng, radius float64) BoundingBox {
	radius = math.Abs(radius)
	return BoundingBox{
		LaMin: math.Max(lat-radius, -90),
		LaMax: math.Min(lat+radius, 90),
		LoMin: math.Max(lng-radius, -180),
		LoMax: math.Min(lng+radius, 180),
	}
}

// Area returns the box area in square degrees.
func (b BoundingBox) Area() float64 {
	return (b.LaMax - b.LaMin) * (b.LoMax - b.LoMin)
}

// EstimatedCredits returns the upstream credit cost of querying this box.
// The value is advisory; the upstream service is the rate-limit authority.
func (b BoundingBox) EstimatedCredits() int {
	area := b.Area()
	switch {
	case area <= 25:
		return 1
	case area <= 100:
		return 2
	case area <= 400:
		return 3
	default:
		return 4
	}
}

// Values encodes the box as query parameters.
func (b BoundingBox) Values() url.Values {
	v := url.Values{}
	v.Set("lamin", formatCoord(b.LaMin))
	v.Set("lomin", formatCoord(b.LoMin))
	v.Set("lamax", formatCoord(b.LaMax))
	v.Set("lomax", formatCoord(b.LoMax))
	return v
}

func (b BoundingBox) String() string {
	return fmt.Sprintf("[%.4f,%.4f]x[%.4f,%.4f]", b.LaMin, b.LaMax, b.LoMin, b.LoMax)
}

func formatCoord(v float64) string {
	return strconv.FormatFloat(v, 'f', 4, 64)
}
