// Package coordinates provides spherical-earth geodesy helpers: bearings,
// great-circle distances, destination points and great-circle interpolation.
//
// All positions are WGS84 latitude/longitude in decimal degrees. The Earth is
// modelled as a sphere of mean radius EarthRadiusKm, which is accurate to well
// under 0.5% for the distances a flight feed animates.
package coordinates

import "math"

// Constants for coordinate calculations
const (
	// DegreesToRadians converts degrees to radians
	DegreesToRadians = math.Pi / 180.0

	// RadiansToDegrees converts radians to degrees
	RadiansToDegrees = 180.0 / math.Pi

	// EarthRadiusKm is the Earth's radius in kilometers (WGS84 mean radius)
	EarthRadiusKm = 6371.0

	// MetersPerSecondToKmh converts m/s to km/h
	MetersPerSecondToKmh = 3.6

	// epsilon is the angular distance (radians) below which two points are
	// treated as the same point
	epsilon = 1e-12
)

// Geographic represents a position on Earth's surface.
type Geographic struct {
	// Latitude in decimal degrees (-90 to +90)
	// Positive = North, Negative = South
	Latitude float64 `json:"lat"`

	// Longitude in decimal degrees (-180 to +180)
	// Positive = East, Negative = West
	Longitude float64 `json:"lng"`
}

// ToRadians converts the Geographic coordinates to radians.
// Returns (latRad, lonRad).
func (g Geographic) ToRadians() (float64, float64) {
	return g.Latitude * DegreesToRadians, g.Longitude * DegreesToRadians
}

// Valid reports whether the position is finite, inside the coordinate ranges
// and not the (0,0) "null island" sentinel upstream feeds use for "unknown".
func (g Geographic) Valid() bool {
	return ValidPosition(g.Latitude, g.Longitude)
}

// ValidPosition is the position-validity rule applied at ingestion.
func ValidPosition(lat, lng float64) bool {
	if math.IsNaN(lat) || math.IsNaN(lng) || math.IsInf(lat, 0) || math.IsInf(lng, 0) {
		return false
	}
	if math.Abs(lat) > 90 || math.Abs(lng) > 180 {
		return false
	}
	return !(lat == 0 && lng == 0)
}

// NormalizeAzimuth ensures azimuth is in the range [0, 360).
func NormalizeAzimuth(azimuth float64) float64 {
	az := math.Mod(azimuth, 360.0)
	if az < 0 {
		az += 360.0
	}
	return az
}

// NormalizeLongitude wraps a longitude into [-180, 180].
func NormalizeLongitude(lon float64) float64 {
	if lon >= -180 && lon <= 180 {
		return lon
	}
	lon = math.Mod(lon+180, 360)
	if lon < 0 {
		lon += 360
	}
	return lon - 180
}

// Bearing calculates the initial bearing (forward azimuth) from one point to another.
// Returns bearing in degrees (0-360), where 0/360 = North, 90 = East, 180 = South, 270 = West.
func Bearing(from, to Geographic) float64 {
	lat1, lon1 := from.ToRadians()
	lat2, lon2 := to.ToRadians()

	dLon := lon2 - lon1
	y := math.Sin(dLon) * math.Cos(lat2)
	x := math.Cos(lat1)*math.Sin(lat2) - math.Sin(lat1)*math.Cos(lat2)*math.Cos(dLon)

	return NormalizeAzimuth(math.Atan2(y, x) * RadiansToDegrees)
}

// angularDistance returns the central angle between two points in radians
// using the haversine formula (stable for small separations).
func angularDistance(from, to Geographic) float64 {
	lat1, lon1 := from.ToRadians()
	lat2, lon2 := to.ToRadians()

	dLat := lat2 - lat1
	dLon := lon2 - lon1

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*
			math.Sin(dLon/2)*math.Sin(dLon/2)
	return 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
}

// DistanceKm calculates the great-circle distance between two points in kilometers.
func DistanceKm(from, to Geographic) float64 {
	return EarthRadiusKm * angularDistance(from, to)
}

// DistanceNauticalMiles calculates the great-circle distance in nautical miles.
func DistanceNauticalMiles(from, to Geographic) float64 {
	return DistanceKm(from, to) / 1.852
}

// Destination projects a point distanceKm along the great circle that leaves
// from at the given initial bearing (degrees, 0 = North).
//
//	lat2 = asin(sin(lat1)*cos(d) + cos(lat1)*sin(d)*cos(θ))
//	lon2 = lon1 + atan2(sin(θ)*sin(d)*cos(lat1), cos(d) - sin(lat1)*sin(lat2))
func Destination(from Geographic, bearingDeg, distanceKm float64) Geographic {
	if distanceKm == 0 {
		return from
	}

	latRad, lonRad := from.ToRadians()
	bearingRad := bearingDeg * DegreesToRadians
	d := distanceKm / EarthRadiusKm

	newLatRad := math.Asin(
		math.Sin(latRad)*math.Cos(d) +
			math.Cos(latRad)*math.Sin(d)*math.Cos(bearingRad),
	)
	newLonRad := lonRad + math.Atan2(
		math.Sin(bearingRad)*math.Sin(d)*math.Cos(latRad),
		math.Cos(d)-math.Sin(latRad)*math.Sin(newLatRad),
	)

	return Geographic{
		Latitude:  newLatRad * RadiansToDegrees,
		Longitude: NormalizeLongitude(newLonRad * RadiansToDegrees),
	}
}

// Interpolate returns the point at fraction (0..1) of the way along the
// great circle from one point to another, using spherical linear interpolation.
// fraction=0 returns from exactly, fraction=1 returns to exactly.
func Interpolate(from, to Geographic, fraction float64) Geographic {
	if fraction <= 0 {
		return from
	}
	if fraction >= 1 {
		return to
	}

	d := angularDistance(from, to)
	if d < epsilon {
		return from
	}
	// Antipodal points have no unique great circle.
	if math.Sin(d) < epsilon {
		if fraction < 0.5 {
			return from
		}
		return to
	}

	lat1, lon1 := from.ToRadians()
	lat2, lon2 := to.ToRadians()

	a := math.Sin((1-fraction)*d) / math.Sin(d)
	b := math.Sin(fraction*d) / math.Sin(d)

	// Convert to Cartesian coordinates
	x := a*math.Cos(lat1)*math.Cos(lon1) + b*math.Cos(lat2)*math.Cos(lon2)
	y := a*math.Cos(lat1)*math.Sin(lon1) + b*math.Cos(lat2)*math.Sin(lon2)
	z := a*math.Sin(lat1) + b*math.Sin(lat2)

	latRad := math.Atan2(z, math.Sqrt(x*x+y*y))
	lonRad := math.Atan2(y, x)

	return Geographic{
		Latitude:  latRad * RadiansToDegrees,
		Longitude: lonRad * RadiansToDegrees,
	}
}

// SamePoint reports whether two positions are closer than the interpolation
// epsilon, i.e. whether a path between them degenerates to a single point.
func SamePoint(a, b Geographic) bool {
	return angularDistance(a, b) < epsilon
}
