package coordinates

import (
	"math"
	"testing"
)

// TestBearing tests initial bearing between points
func TestBearing(t *testing.T) {
	origin := Geographic{Latitude: 40.0, Longitude: -74.0}

	tests := []struct {
		name string
		to   Geographic
		want float64
	}{
		{"Due north", Geographic{Latitude: 41.0, Longitude: -74.0}, 0.0},
		{"Due south", Geographic{Latitude: 39.0, Longitude: -74.0}, 180.0},
		{"Roughly east", Geographic{Latitude: 40.0, Longitude: -73.0}, 89.7},
		{"Roughly west", Geographic{Latitude: 40.0, Longitude: -75.0}, 270.3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Bearing(origin, tt.to)
			if math.Abs(got-tt.want) > 0.5 {
				t.Errorf("Expected bearing ~%.1f, got %.3f", tt.want, got)
			}
		})
	}
}

// TestDistanceKm tests great-circle distance
func TestDistanceKm(t *testing.T) {
	t.Run("One degree of latitude", func(t *testing.T) {
		d := DistanceKm(Geographic{Latitude: 0, Longitude: 10}, Geographic{Latitude: 1, Longitude: 10})
		if math.Abs(d-111.19) > 0.1 {
			t.Errorf("Expected ~111.19 km, got %f", d)
		}
	})

	t.Run("JFK to LHR", func(t *testing.T) {
		jfk := Geographic{Latitude: 40.6413, Longitude: -73.7781}
		lhr := Geographic{Latitude: 51.4700, Longitude: -0.4543}
		d := DistanceKm(jfk, lhr)
		if math.Abs(d-5555) > 15 {
			t.Errorf("Expected ~5555 km, got %f", d)
		}
	})

	t.Run("Same point", func(t *testing.T) {
		p := Geographic{Latitude: 12.5, Longitude: 99.1}
		if d := DistanceKm(p, p); d != 0 {
			t.Errorf("Expected 0, got %f", d)
		}
	})

	t.Run("Nautical miles conversion", func(t *testing.T) {
		a := Geographic{Latitude: 0, Longitude: 0.5}
		b := Geographic{Latitude: 1, Longitude: 0.5}
		if nm := DistanceNauticalMiles(a, b); math.Abs(nm-60.04) > 0.1 {
			t.Errorf("Expected ~60 nm, got %f", nm)
		}
	})
}

// TestDestination tests projecting along a bearing
func TestDestination(t *testing.T) {
	start := Geographic{Latitude: 40.0, Longitude: -74.0}

	t.Run("Round trip distance and bearing", func(t *testing.T) {
		for _, bearing := range []float64{0, 45, 90, 135, 180, 225, 270, 315} {
			dest := Destination(start, bearing, 500)
			if d := DistanceKm(start, dest); math.Abs(d-500) > 0.01 {
				t.Errorf("Bearing %.0f: expected 500 km, got %f", bearing, d)
			}
			if b := Bearing(start, dest); math.Abs(normalizeDiff(b-bearing)) > 0.01 {
				t.Errorf("Bearing %.0f: expected initial bearing back, got %f", bearing, b)
			}
		}
	})

	t.Run("Zero distance is identity", func(t *testing.T) {
		if got := Destination(start, 123, 0); got != start {
			t.Errorf("Expected %v, got %v", start, got)
		}
	})

	t.Run("Crossing the antimeridian wraps", func(t *testing.T) {
		dest := Destination(Geographic{Latitude: 0, Longitude: 179.5}, 90, 200)
		if dest.Longitude > 180 || dest.Longitude < -180 {
			t.Errorf("Longitude not normalized: %f", dest.Longitude)
		}
		if dest.Longitude > 0 {
			t.Errorf("Expected wrap to negative longitude, got %f", dest.Longitude)
		}
	})
}

// TestInterpolate tests great-circle interpolation
func TestInterpolate(t *testing.T) {
	jfk := Geographic{Latitude: 40.6413, Longitude: -73.7781}
	lhr := Geographic{Latitude: 51.4700, Longitude: -0.4543}

	t.Run("Endpoints are exact", func(t *testing.T) {
		if got := Interpolate(jfk, lhr, 0); got != jfk {
			t.Errorf("Expected start, got %v", got)
		}
		if got := Interpolate(jfk, lhr, 1); got != lhr {
			t.Errorf("Expected end, got %v", got)
		}
	})

	t.Run("Midpoint is equidistant", func(t *testing.T) {
		mid := Interpolate(jfk, lhr, 0.5)
		d1 := DistanceKm(jfk, mid)
		d2 := DistanceKm(mid, lhr)
		if math.Abs(d1-d2) > 0.01 {
			t.Errorf("Expected equal halves, got %f and %f", d1, d2)
		}
	})

	t.Run("Great circle bows north of the rhumb line", func(t *testing.T) {
		mid := Interpolate(jfk, lhr, 0.5)
		straight := (jfk.Latitude + lhr.Latitude) / 2
		if mid.Latitude <= straight {
			t.Errorf("Expected midpoint latitude above %f, got %f", straight, mid.Latitude)
		}
	})
}

// TestValidPosition tests the ingestion validity rule
func TestValidPosition(t *testing.T) {
	tests := []struct {
		name     string
		lat, lng float64
		want     bool
	}{
		{"Normal position", 40.0, -74.0, true},
		{"Boundary values", 90, -180, true},
		{"Null island", 0, 0, false},
		{"Zero latitude only", 0, 10, true},
		{"Latitude out of range", 91, 10, false},
		{"Longitude out of range", 10, -180.5, false},
		{"NaN latitude", math.NaN(), 10, false},
		{"Infinite longitude", 10, math.Inf(1), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ValidPosition(tt.lat, tt.lng); got != tt.want {
				t.Errorf("ValidPosition(%v, %v) = %v, want %v", tt.lat, tt.lng, got, tt.want)
			}
		})
	}
}

func TestNormalizeLongitude(t *testing.T) {
	tests := map[float64]float64{
		0:    0,
		180:  180,
		-180: -180,
		181:  -179,
		-181: 179,
		540:  -180,
	}
	for in, want := range tests {
		if got := NormalizeLongitude(in); math.Abs(got-want) > 1e-9 {
			t.Errorf("NormalizeLongitude(%v) = %v, want %v", in, got, want)
		}
	}
}

func normalizeDiff(d float64) float64 {
	for d > 180 {
		d -= 360
	}
	for d < -180 {
		d += 360
	}
	return d
}
