package opensky

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/skyroute/flightfeed/pkg/coordinates"
)

// stateColumns is the number of columns in a state vector row:
//
//	[icao24, callsign, origin_country, time_position, last_contact,
//	 longitude, latitude, baro_altitude, on_ground, velocity,
//	 true_track, vertical_rate, sensors, geo_altitude, squawk, spi,
//	 position_source]
//
// Extended responses append a category column, which is ignored.
const stateColumns = 17

// statesResponse is the /states/all payload.
type statesResponse struct {
	Time   int64           `json:"time"`
	States json.RawMessage `json:"states"`
}

// ParseReport describes what ParseStates kept and dropped.
type ParseReport struct {
	Time       int64
	Rows       int
	Incomplete int
	Invalid    int
}

// ErrMalformedPayload is wrapped by ParseStates when the response body does
// not have the expected shape.
var ErrMalformedPayload = errors.New("malformed states payload")

// ParseStates decodes a /states/all body into FlightStates. Rows that are
// too short, lack an icao24 or fail the position-validity rule are dropped.
// A null states field is a valid empty result; a body without a states field
// is malformed.
func ParseStates(body []byte) ([]FlightState, ParseReport, error) {
	var report ParseReport

	var resp statesResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, report, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}
	report.Time = resp.Time

	raw := strings.TrimSpace(string(resp.States))
	if raw == "" {
		return nil, report, fmt.Errorf("%w: missing states field", ErrMalformedPayload)
	}
	if raw == "null" {
		return []FlightState{}, report, nil
	}

	var rows []json.RawMessage
	if err := json.Unmarshal(resp.States, &rows); err != nil {
		return nil, report, fmt.Errorf("%w: states is not an array", ErrMalformedPayload)
	}
	report.Rows = len(rows)

	states := make([]FlightState, 0, len(rows))
	for _, rawRow := range rows {
		var row []any
		if err := json.Unmarshal(rawRow, &row); err != nil || len(row) < stateColumns {
			report.Incomplete++
			continue
		}

		state, ok := parseRow(row)
		if !ok {
			report.Invalid++
			continue
		}
		states = append(states, state)
	}

	return states, report, nil
}

// parseRow maps one state vector row. It returns false when the row has no
// identity or no valid position.
func parseRow(row []any) (FlightState, bool) {
	icao24, _ := row[0].(string)
	icao24 = strings.ToLower(strings.TrimSpace(icao24))
	if icao24 == "" {
		return FlightState{}, false
	}

	lng, lngOK := row[5].(float64)
	lat, latOK := row[6].(float64)
	if !lngOK || !latOK || !coordinates.ValidPosition(lat, lng) {
		return FlightState{}, false
	}

	state := FlightState{
		ICAO24:       icao24,
		Callsign:     strings.TrimSpace(stringAt(row, 1)),
		Longitude:    lng,
		Latitude:     lat,
		TimePosition: int64At(row, 3),
		LastContact:  int64At(row, 4),
		BaroAltitude: float64At(row, 7),
		GeoAltitude:  float64At(row, 13),
	}
	state.OriginCountry = stringAt(row, 2)
	state.OnGround, _ = row[8].(bool)
	state.SPI, _ = row[15].(bool)

	// Unknown kinematics default to zero.
	if v := float64At(row, 9); v != nil {
		state.Velocity = *v
	}
	if v := float64At(row, 10); v != nil {
		state.TrueTrack = coordinates.NormalizeAzimuth(*v)
	}
	if v := float64At(row, 11); v != nil {
		state.VerticalRate = *v
	}

	if s, ok := row[14].(string); ok {
		state.Squawk = &s
	}
	if sensors, ok := row[12].([]any); ok {
		state.Sensors = make([]int, 0, len(sensors))
		for _, id := range sensors {
			if n, ok := id.(float64); ok {
				state.Sensors = append(state.Sensors, int(n))
			}
		}
	}
	if src := float64At(row, 16); src != nil {
		state.PositionSource = PositionSource(int(*src))
	}

	return state, true
}

func stringAt(row []any, i int) string {
	s, _ := row[i].(string)
	return s
}

func float64At(row []any, i int) *float64 {
	v, ok := row[i].(float64)
	if !ok {
		return nil
	}
	return &v
}

func int64At(row []any, i int) *int64 {
	v, ok := row[i].(float64)
	if !ok {
		return nil
	}
	n := int64(v)
	return &n
}
