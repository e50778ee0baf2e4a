// Package geo provides the planar geometry primitives used by the shadow
// projection pipeline: geographic points, polygons, local meter projection,
// convex hulls and polygon clipping.
//
// All polygon math is done on a local equirectangular projection anchored at
// the shape being measured. At patio scale (tens of meters) the projection
// error is far below the accuracy of building-footprint data, which is the
// dominant error source for this engine.
package geo

import "math"

const (
	// EarthRadiusM is the mean Earth radius used for great-circle math.
	EarthRadiusM = 6371000.0

	// metersPerDegreeLat is the approximate length of one degree of latitude.
	metersPerDegreeLat = 111320.0
)

// Point is a geographic coordinate in degrees.
type Point struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// DegToRad converts degrees to radians.
func DegToRad(deg float64) float64 { return deg * math.Pi / 180.0 }

// RadToDeg converts radians to degrees.
func RadToDeg(rad float64) float64 { return rad * 180.0 / math.Pi }

// NormalizeDeg normalizes an angle to [0, 360).
func NormalizeDeg(a float64) float64 { return a - 360.0*math.Floor(a/360.0) }

// DistanceMeters returns the haversine great-circle distance between two
// points in meters.
func DistanceMeters(a, b Point) float64 {
	latA := DegToRad(a.Lat)
	latB := DegToRad(b.Lat)
	dLat := DegToRad(b.Lat - a.Lat)
	dLon := DegToRad(b.Lon - a.Lon)

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(latA)*math.Cos(latB)*math.Sin(dLon/2)*math.Sin(dLon/2)
	return 2 * EarthRadiusM * math.Asin(math.Min(1, math.Sqrt(h)))
}

// DestinationPoint returns the point reached by travelling distanceM meters
// from origin along the given compass bearing (0 = north, 90 = east).
// Uses the local flat-earth approximation, which is exact enough for the
// sub-kilometer displacements produced by shadow projection.
func DestinationPoint(origin Point, distanceM, bearingDeg float64) Point {
	br := DegToRad(bearingDeg)
	dNorth := distanceM * math.Cos(br)
	dEast := distanceM * math.Sin(br)

	dLat := dNorth / metersPerDegreeLat
	dLon := dEast / (metersPerDegreeLat * math.Cos(DegToRad(origin.Lat)))

	return Point{
		Lat: origin.Lat + dLat,
		Lon: origin.Lon + dLon,
	}
}
