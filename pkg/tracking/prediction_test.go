package tracking

import (
	"math"
	"testing"
	"time"

	"github.com/skyroute/flightfeed/pkg/coordinates"
	"github.com/skyroute/flightfeed/pkg/opensky"
)

func cruising() opensky.FlightState {
	alt := 10000.0
	return opensky.FlightState{
		ICAO24:       "abc123",
		Latitude:     40.0,
		Longitude:    -74.0,
		BaroAltitude: &alt,
		Velocity:     250.0, // 900 km/h
		TrueTrack:    90.0,
	}
}

// TestPredictPosition tests dead reckoning.
func TestPredictPosition(t *testing.T) {
	t.Run("Zero elapsed returns observed position", func(t *testing.T) {
		f := cruising()
		if got := PredictPosition(f, 0); got != f.Position() {
			t.Errorf("Expected %v, got %v", f.Position(), got)
		}
	})

	t.Run("Negative elapsed returns observed position", func(t *testing.T) {
		f := cruising()
		if got := PredictPosition(f, -5*time.Second); got != f.Position() {
			t.Errorf("Expected %v, got %v", f.Position(), got)
		}
	})

	t.Run("Distance matches velocity and time", func(t *testing.T) {
		f := cruising()
		got := PredictPosition(f, time.Minute)

		// 900 km/h for one minute
		d := coordinates.DistanceKm(f.Position(), got)
		if math.Abs(d-15.0) > 0.001 {
			t.Errorf("Expected 15 km, got %f", d)
		}
		if got.Longitude <= f.Longitude {
			t.Errorf("Expected eastward movement, got %v", got)
		}
	})

	t.Run("Follows the track", func(t *testing.T) {
		f := cruising()
		f.TrueTrack = 180
		got := PredictPosition(f, time.Minute)
		if got.Latitude >= f.Latitude {
			t.Errorf("Expected southward movement, got %v", got)
		}
		if math.Abs(got.Longitude-f.Longitude) > 1e-9 {
			t.Errorf("Expected constant longitude, got %f", got.Longitude)
		}
	})
}

// TestGroundedInvariant checks that grounded or stationary aircraft never move.
func TestGroundedInvariant(t *testing.T) {
	grounded := cruising()
	grounded.OnGround = true

	stationary := cruising()
	stationary.Velocity = 0

	for _, f := range []opensky.FlightState{grounded, stationary} {
		for _, elapsed := range []time.Duration{0, time.Millisecond, time.Second, time.Hour, 48 * time.Hour} {
			if got := PredictPosition(f, elapsed); got != f.Position() {
				t.Errorf("onGround=%v velocity=%v elapsed=%v: expected %v, got %v",
					f.OnGround, f.Velocity, elapsed, f.Position(), got)
			}
		}
	}
}

// TestPredictionMonotonicity checks that predicted distance never shrinks as
// elapsed time grows.
func TestPredictionMonotonicity(t *testing.T) {
	for _, track := range []float64{0, 37, 90, 181, 270, 359} {
		f := cruising()
		f.TrueTrack = track
		origin := PredictPosition(f, 0)

		prev := 0.0
		for s := 0; s <= 3600; s += 30 {
			d := coordinates.DistanceKm(origin, PredictPosition(f, time.Duration(s)*time.Second))
			if d+1e-9 < prev {
				t.Fatalf("track %.0f: distance decreased at %ds (%f < %f)", track, s, d, prev)
			}
			prev = d
		}
	}
}

func TestPredictAltitude(t *testing.T) {
	t.Run("Climb", func(t *testing.T) {
		f := cruising()
		f.VerticalRate = 5
		alt := PredictAltitude(f, 10*time.Second)
		if alt == nil || *alt != 10050 {
			t.Errorf("Expected 10050, got %v", alt)
		}
	})

	t.Run("Floored at zero", func(t *testing.T) {
		f := cruising()
		f.VerticalRate = -100
		alt := PredictAltitude(f, 10*time.Minute)
		if alt == nil || *alt != 0 {
			t.Errorf("Expected 0, got %v", alt)
		}
	})

	t.Run("Unknown altitude", func(t *testing.T) {
		f := cruising()
		f.BaroAltitude = nil
		if alt := PredictAltitude(f, time.Second); alt != nil {
			t.Errorf("Expected nil, got %v", *alt)
		}
	})
}

// TestBuildTrajectory tests endpoint exactness and degenerate cases.
func TestBuildTrajectory(t *testing.T) {
	a := coordinates.Geographic{Latitude: 40.6413, Longitude: -73.7781}
	b := coordinates.Geographic{Latitude: 51.4700, Longitude: -0.4543}

	t.Run("Endpoints are exact", func(t *testing.T) {
		for _, n := range []int{1, 2, 7, 100, MaxTrajectorySegments} {
			points := BuildTrajectory(a, b, n)
			if len(points) != n+1 {
				t.Fatalf("n=%d: expected %d points, got %d", n, n+1, len(points))
			}
			if coordinates.DistanceKm(points[0], a) > 1e-6 {
				t.Errorf("n=%d: first point %v, expected %v", n, points[0], a)
			}
			if coordinates.DistanceKm(points[n], b) > 1e-6 {
				t.Errorf("n=%d: last point %v, expected %v", n, points[n], b)
			}
		}
	})

	t.Run("Points are evenly spaced", func(t *testing.T) {
		points := BuildTrajectory(a, b, 10)
		step := coordinates.DistanceKm(a, b) / 10
		for i := 1; i < len(points); i++ {
			if d := coordinates.DistanceKm(points[i-1], points[i]); math.Abs(d-step) > 0.01 {
				t.Errorf("Segment %d: expected %f km, got %f", i, step, d)
			}
		}
	})

	t.Run("Zero segments is a single point", func(t *testing.T) {
		points := BuildTrajectory(a, b, 0)
		if len(points) != 1 || points[0] != a {
			t.Errorf("Expected [a], got %v", points)
		}
	})

	t.Run("Degenerate path is a single point", func(t *testing.T) {
		points := BuildTrajectory(a, a, 50)
		if len(points) != 1 || points[0] != a {
			t.Errorf("Expected [a], got %v", points)
		}
	})

	t.Run("Segments are capped", func(t *testing.T) {
		points := BuildTrajectory(a, b, 10000)
		if len(points) != MaxTrajectorySegments+1 {
			t.Errorf("Expected %d points, got %d", MaxTrajectorySegments+1, len(points))
		}
		if points[0] != a || points[len(points)-1] != b {
			t.Errorf("Expected capped path to keep its endpoints, got %v .. %v", points[0], points[len(points)-1])
		}
	})
}

func TestSegments(t *testing.T) {
	elapsed := []struct {
		in   time.Duration
		want int
	}{
		{0, 1},
		{50 * time.Millisecond, 1},
		{time.Second, 10},
		{15 * time.Second, 150},
		{time.Minute, MaxTrajectorySegments},
	}
	for _, tt := range elapsed {
		if got := SegmentsForElapsed(tt.in); got != tt.want {
			t.Errorf("SegmentsForElapsed(%v) = %d, want %d", tt.in, got, tt.want)
		}
	}

	distance := []struct {
		in   float64
		want int
	}{
		{0, 1},
		{10, 1},
		{26, 2},
		{5555, 223},
		{20000, MaxTrajectorySegments},
	}
	for _, tt := range distance {
		if got := SegmentsForDistance(tt.in); got != tt.want {
			t.Errorf("SegmentsForDistance(%v) = %d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestTrajectoryTo(t *testing.T) {
	from := coordinates.Geographic{Latitude: 40.0, Longitude: -74.0}
	to := coordinates.Geographic{Latitude: 41.0, Longitude: -74.0}

	// ~111 km -> 5 segments
	points := TrajectoryTo(from, to)
	if len(points) != 6 {
		t.Errorf("Expected 6 points, got %d", len(points))
	}
}
