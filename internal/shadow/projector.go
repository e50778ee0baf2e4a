// Package shadow implements 2.5D shadow projection: building footprints are
// swept along the anti-solar direction and approximated by the convex hull of
// original and displaced vertices, then clipped against patio polygons to
// split surface area into shadowed and sunlit parts.
//
// The convex hull construction is a deliberate conservative approximation of
// a true swept extrusion; the confidence penalties below are calibrated to
// it.
package shadow

import (
	"math"

	"terrasol/internal/geo"
	"terrasol/internal/types"
)

const (
	// MinReliableElevationDeg is the sun elevation below which shadows are
	// excluded rather than computed. Low-angle shadows are unreliable: tiny
	// height errors produce enormous length errors.
	MinReliableElevationDeg = 5.0

	// MaxShadowDistanceM caps shadow length to bound geometry blow-up at low
	// sun angles.
	MaxShadowDistanceM = 200.0
)

// Confidence penalty factors. Multiplicative on a base of 1.0, then scaled by
// the height-source trust tier and clamped to [0,1].
const (
	lowElevationDeg    = 10.0
	lowElevationFactor = 0.7
	midElevationDeg    = 20.0
	midElevationFactor = 0.9
	longShadowM        = 100.0
	longShadowFactor   = 0.8
	midShadowM         = 50.0
	midShadowFactor    = 0.9
)

// Projection is one building's shadow at one instant. Ephemeral: computed
// per request or time slice, never persisted individually.
type Projection struct {
	Polygon         geo.Polygon
	LengthM         float64
	DirectionDeg    float64
	BuildingID      string
	BuildingHeightM float64
	Solar           types.SolarPosition
	Confidence      float64
}

// Project returns the shadow cast by the building under the given solar
// position, or nil when the sun is below the horizon, below the reliable
// elevation threshold, or the footprint is degenerate.
func Project(b types.Building, sp types.SolarPosition) *Projection {
	if sp.ElevationDeg <= 0 || sp.ElevationDeg < MinReliableElevationDeg {
		return nil
	}
	if !b.Footprint.Valid() {
		return nil
	}

	height := b.Height()
	length := height / math.Tan(geo.DegToRad(sp.ElevationDeg))
	if length > MaxShadowDistanceM {
		length = MaxShadowDistanceM
	}

	// Shadow travels opposite the sun.
	direction := geo.NormalizeDeg(sp.AzimuthDeg + 180.0)

	// Displace every footprint vertex and hull the union of original and
	// displaced vertices.
	combined := make(geo.Polygon, 0, 2*len(b.Footprint))
	combined = append(combined, b.Footprint...)
	for _, v := range b.Footprint {
		combined = append(combined, geo.DestinationPoint(v, length, direction))
	}

	hull := geo.ConvexHull(combined)
	if hull == nil {
		return nil
	}

	return &Projection{
		Polygon:         hull,
		LengthM:         length,
		DirectionDeg:    direction,
		BuildingID:      b.ID,
		BuildingHeightM: height,
		Solar:           sp,
		Confidence:      projectionConfidence(sp.ElevationDeg, length, b.HeightSource),
	}
}

// projectionConfidence derives the per-shadow confidence from elevation,
// shadow length and the trust tier of the height data.
func projectionConfidence(elevationDeg, lengthM float64, src types.HeightSource) float64 {
	conf := 1.0

	switch {
	case elevationDeg < lowElevationDeg:
		conf *= lowElevationFactor
	case elevationDeg < midElevationDeg:
		conf *= midElevationFactor
	}

	switch {
	case lengthM > longShadowM:
		conf *= longShadowFactor
	case lengthM > midShadowM:
		conf *= midShadowFactor
	}

	conf *= src.TrustFactor()
	return types.ClampUnit(conf)
}

// Coverage splits the target polygon's area into shadowed and sunlit square
// meters under the given projections. The shadowed region is the target's
// intersection with the union of all shadow polygons. Each new shadow piece
// contributes only the part not already covered by earlier hulls, so overlap
// between any number of shadows is counted once. Degenerate or empty
// intersections degrade to "no shadow" for that projection. The partition
// invariant holds by construction: sunlit + shadowed = area(target).
func Coverage(target geo.Polygon, projections []*Projection) (shadowedM2, sunlitM2 float64) {
	if !target.Valid() {
		return 0, 0
	}

	anchor := target[0]
	total := target.AreaM2At(anchor)

	var (
		hulls    []geo.Polygon
		shadowed float64
	)
	for _, pr := range projections {
		if pr == nil || !pr.Polygon.Valid() {
			continue
		}
		piece := geo.ClipToConvex(target, pr.Polygon)
		if piece == nil {
			continue
		}

		// Carve away the region earlier hulls already cover; what remains
		// is this shadow's fresh contribution to the union.
		fragments := []geo.Polygon{piece}
		for _, prev := range hulls {
			var next []geo.Polygon
			for _, frag := range fragments {
				next = append(next, geo.SubtractConvex(frag, prev)...)
			}
			fragments = next
			if len(fragments) == 0 {
				break
			}
		}
		for _, frag := range fragments {
			shadowed += frag.AreaM2At(anchor)
		}

		hulls = append(hulls, pr.Polygon)
	}

	if shadowed < 0 {
		shadowed = 0
	}
	if shadowed > total {
		shadowed = total
	}

	return shadowed, total - shadowed
}
