// Package tracking extrapolates aircraft positions between polls and builds
// the great-circle paths clients animate along.
package tracking

import (
	"math"
	"time"

	"github.com/skyroute/flightfeed/pkg/coordinates"
	"github.com/skyroute/flightfeed/pkg/opensky"
)

const (
	// MaxTrajectorySegments caps the number of segments in any trajectory.
	MaxTrajectorySegments = 300

	// segmentInterval is how much elapsed time one animation segment covers.
	segmentInterval = 100 * time.Millisecond

	// segmentLengthKm is the spacing of destination trajectory points.
	segmentLengthKm = 25.0
)

// PredictPosition predicts where an aircraft is after elapsed time has passed
// since it was observed (dead reckoning).
//
// Grounded or stationary aircraft, and non-positive elapsed times, return the
// observed position unchanged. Otherwise the aircraft is assumed to hold its
// ground speed and track, and is moved along the great circle leaving its
// position at TrueTrack:
//
//	distanceKm = velocity(m/s) * 3.6 * elapsedMs / 3_600_000
func PredictPosition(flight opensky.FlightState, elapsed time.Duration) coordinates.Geographic {
	origin := flight.Position()
	if flight.OnGround || flight.Velocity <= 0 || elapsed <= 0 {
		return origin
	}

	velocityKmh := flight.Velocity * coordinates.MetersPerSecondToKmh
	distanceKm := velocityKmh * (float64(elapsed.Milliseconds()) / 3_600_000)

	return coordinates.Destination(origin, flight.TrueTrack, distanceKm)
}

// PredictAltitude extrapolates barometric altitude (meters) with the current
// vertical rate, floored at zero. Returns nil when altitude is unknown.
func PredictAltitude(flight opensky.FlightState, elapsed time.Duration) *float64 {
	if flight.BaroAltitude == nil {
		return nil
	}
	alt := *flight.BaroAltitude
	if !flight.OnGround && elapsed > 0 {
		alt = math.Max(0, alt+flight.VerticalRate*elapsed.Seconds())
	}
	return &alt
}

// BuildTrajectory returns segments+1 points along the great circle from start
// to end, with segments capped at MaxTrajectorySegments. The first point is
// start and the last is end. segments <= 0 or a degenerate path
// (start == end) yields the single point start.
func BuildTrajectory(start, end coordinates.Geographic, segments int) []coordinates.Geographic {
	if segments <= 0 || coordinates.SamePoint(start, end) {
		return []coordinates.Geographic{start}
	}
	if segments > MaxTrajectorySegments {
		segments = MaxTrajectorySegments
	}

	points := make([]coordinates.Geographic, segments+1)
	points[0] = start
	for i := 1; i < segments; i++ {
		points[i] = coordinates.Interpolate(start, end, float64(i)/float64(segments))
	}
	points[segments] = end
	return points
}

// SegmentsForElapsed scales trajectory resolution with how stale the sample
// is: one segment per 100ms, at least 1, at most MaxTrajectorySegments.
func SegmentsForElapsed(elapsed time.Duration) int {
	return clampSegments(int(elapsed / segmentInterval))
}

// SegmentsForDistance returns one segment per 25km of path, at least 1, at
// most MaxTrajectorySegments.
func SegmentsForDistance(distanceKm float64) int {
	if math.IsNaN(distanceKm) || distanceKm <= 0 {
		return 1
	}
	return clampSegments(int(math.Ceil(distanceKm / segmentLengthKm)))
}

// TrajectoryTo builds the great-circle path from a position to a destination
// with distance-scaled resolution.
func TrajectoryTo(from, to coordinates.Geographic) []coordinates.Geographic {
	return BuildTrajectory(from, to, SegmentsForDistance(coordinates.DistanceKm(from, to)))
}

func clampSegments(n int) int {
	if n < 1 {
		return 1
	}
	if n > MaxTrajectorySegments {
		return MaxTrajectorySegments
	}
	return n
}
