package geo

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// squareAt builds an axis-aligned square of the given side length in meters,
// with its southwest corner at the origin point.
func squareAt(origin Point, sideM float64) Polygon {
	ne := DestinationPoint(DestinationPoint(origin, sideM, 0), sideM, 90)
	return Polygon{
		origin,
		{Lat: origin.Lat, Lon: ne.Lon},
		ne,
		{Lat: ne.Lat, Lon: origin.Lon},
	}
}

var gothenburg = Point{Lat: 57.7089, Lon: 11.9746}

func TestAreaM2Square(t *testing.T) {
	sq := squareAt(gothenburg, 10)
	assert.InDelta(t, 100.0, sq.AreaM2(), 1.0)
}

func TestAreaM2Degenerate(t *testing.T) {
	assert.Zero(t, Polygon{}.AreaM2())
	assert.Zero(t, Polygon{gothenburg}.AreaM2())
	assert.Zero(t, Polygon{gothenburg, {Lat: 57.71, Lon: 11.98}}.AreaM2())

	// Collinear vertices enclose nothing.
	collinear := Polygon{
		{Lat: 57.70, Lon: 11.97},
		{Lat: 57.71, Lon: 11.97},
		{Lat: 57.72, Lon: 11.97},
	}
	assert.InDelta(t, 0.0, collinear.AreaM2(), 1e-6)
}

func TestCentroidSquare(t *testing.T) {
	sq := squareAt(gothenburg, 20)
	c := sq.Centroid()

	mid := DestinationPoint(DestinationPoint(gothenburg, 10, 0), 10, 90)
	assert.InDelta(t, mid.Lat, c.Lat, 1e-6)
	assert.InDelta(t, mid.Lon, c.Lon, 1e-6)
}

func TestDistanceMeters(t *testing.T) {
	p := DestinationPoint(gothenburg, 150, 45)
	assert.InDelta(t, 150.0, DistanceMeters(gothenburg, p), 1.5)
}

func TestDestinationPointBearings(t *testing.T) {
	north := DestinationPoint(gothenburg, 100, 0)
	assert.Greater(t, north.Lat, gothenburg.Lat)
	assert.InDelta(t, gothenburg.Lon, north.Lon, 1e-9)

	east := DestinationPoint(gothenburg, 100, 90)
	assert.Greater(t, east.Lon, gothenburg.Lon)
	assert.InDelta(t, gothenburg.Lat, east.Lat, 1e-9)

	south := DestinationPoint(gothenburg, 100, 180)
	assert.Less(t, south.Lat, gothenburg.Lat)
}

func TestConvexHullContainsInputs(t *testing.T) {
	sq := squareAt(gothenburg, 30)
	// Add an interior point; the hull must ignore it.
	pts := append(Polygon{sq.Centroid()}, sq...)

	hull := ConvexHull(pts)
	require.NotNil(t, hull)
	assert.Len(t, hull, 4)
	assert.InDelta(t, sq.AreaM2(), hull.AreaM2(), 1.0)
}

func TestConvexHullDegenerate(t *testing.T) {
	assert.Nil(t, ConvexHull(Polygon{gothenburg, gothenburg, gothenburg}))
	assert.Nil(t, ConvexHull(Polygon{gothenburg}))
}

func TestClipToConvexOverlap(t *testing.T) {
	sq := squareAt(gothenburg, 20)
	// A second square shifted 10 m east overlaps half of the first.
	shifted := squareAt(DestinationPoint(gothenburg, 10, 90), 20)

	clipped := ClipToConvex(sq, shifted)
	require.NotNil(t, clipped)
	assert.InDelta(t, 200.0, clipped.AreaM2At(sq[0]), 4.0)
}

func TestClipToConvexContained(t *testing.T) {
	outer := squareAt(gothenburg, 40)
	inner := squareAt(DestinationPoint(DestinationPoint(gothenburg, 10, 0), 10, 90), 10)

	clipped := ClipToConvex(inner, outer)
	require.NotNil(t, clipped)
	assert.InDelta(t, inner.AreaM2(), clipped.AreaM2At(inner[0]), 1.0)
}

func TestClipToConvexDisjoint(t *testing.T) {
	sq := squareAt(gothenburg, 10)
	far := squareAt(DestinationPoint(gothenburg, 500, 90), 10)

	assert.Nil(t, ClipToConvex(sq, far))
}

func TestClipToConvexDegenerateInputs(t *testing.T) {
	sq := squareAt(gothenburg, 10)
	assert.Nil(t, ClipToConvex(sq, Polygon{}))
	assert.Nil(t, ClipToConvex(nil, sq))
}

func sumAreaAt(anchor Point, polys []Polygon) float64 {
	var sum float64
	for _, p := range polys {
		sum += p.AreaM2At(anchor)
	}
	return sum
}

func TestSubtractConvexHalfOverlap(t *testing.T) {
	sq := squareAt(gothenburg, 20)
	// A square shifted 10 m east covers the eastern half.
	shifted := squareAt(DestinationPoint(gothenburg, 10, 90), 20)

	outside := SubtractConvex(sq, shifted)
	require.NotEmpty(t, outside)
	assert.InDelta(t, 200.0, sumAreaAt(sq[0], outside), 4.0)
}

func TestSubtractConvexContained(t *testing.T) {
	outer := squareAt(gothenburg, 40)
	inner := squareAt(DestinationPoint(DestinationPoint(gothenburg, 10, 0), 10, 90), 10)

	// Subtracting an interior hole leaves area(outer) - area(inner), split
	// across several pieces.
	outside := SubtractConvex(outer, inner)
	require.NotEmpty(t, outside)
	assert.InDelta(t, outer.AreaM2()-inner.AreaM2At(outer[0]), sumAreaAt(outer[0], outside), 6.0)

	// Subtracting a covering polygon leaves nothing.
	assert.Empty(t, SubtractConvex(inner, outer))
}

func TestSubtractConvexDisjoint(t *testing.T) {
	sq := squareAt(gothenburg, 10)
	far := squareAt(DestinationPoint(gothenburg, 500, 90), 10)

	outside := SubtractConvex(sq, far)
	assert.InDelta(t, sq.AreaM2(), sumAreaAt(sq[0], outside), 1.0)
}

func TestSubtractConvexComplementPartition(t *testing.T) {
	sq := squareAt(gothenburg, 20)
	clip := squareAt(DestinationPoint(DestinationPoint(gothenburg, 5, 0), 5, 90), 20)

	anchor := sq[0]
	inside := ClipToConvex(sq, clip)
	require.NotNil(t, inside)
	outside := SubtractConvex(sq, clip)

	assert.InDelta(t, sq.AreaM2(), inside.AreaM2At(anchor)+sumAreaAt(anchor, outside), 4.0,
		"inside and outside pieces must partition the subject")
}

func TestSubtractConvexDegenerateInputs(t *testing.T) {
	sq := squareAt(gothenburg, 10)

	assert.Nil(t, SubtractConvex(nil, sq))

	// Degenerate clip removes nothing.
	outside := SubtractConvex(sq, Polygon{gothenburg})
	require.Len(t, outside, 1)
	assert.InDelta(t, sq.AreaM2(), outside[0].AreaM2(), 0.5)
}

func TestContainsPoint(t *testing.T) {
	sq := squareAt(gothenburg, 20)
	assert.True(t, sq.ContainsPoint(sq.Centroid()))
	assert.False(t, sq.ContainsPoint(DestinationPoint(gothenburg, 100, 90)))
}

func TestNormalizeDeg(t *testing.T) {
	assert.InDelta(t, 10.0, NormalizeDeg(370), 1e-9)
	assert.InDelta(t, 350.0, NormalizeDeg(-10), 1e-9)
	assert.InDelta(t, 0.0, NormalizeDeg(720), 1e-9)
}

func TestProjectionRoundTrip(t *testing.T) {
	anchor := gothenburg
	pt := Point{Lat: 57.7102, Lon: 11.9788}
	back := unproject(project(pt, anchor), anchor)
	assert.InDelta(t, pt.Lat, back.Lat, 1e-9)
	assert.InDelta(t, pt.Lon, back.Lon, 1e-9)
	// Sanity on magnitudes: ~0.0013 deg lat is ~145 m.
	pl := project(pt, anchor)
	assert.InDelta(t, 144.7, pl.Y, 1.0)
	assert.True(t, math.Abs(pl.X) > 100)
}
