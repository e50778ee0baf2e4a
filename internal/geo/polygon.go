package geo

import (
	"math"
	"sort"
)

// Polygon is an open ring of geographic vertices. The closing edge from the
// last vertex back to the first is implicit. Winding order does not matter;
// area functions return absolute values.
type Polygon []Point

// planar is a point in the local meter projection.
type planar struct {
	X, Y float64
}

// Valid reports whether the polygon has enough vertices to enclose area.
func (p Polygon) Valid() bool { return len(p) >= 3 }

// anchor returns the projection anchor for the polygon (first vertex).
// Degenerate polygons anchor at the origin; their area is zero regardless.
func (p Polygon) anchor() Point {
	if len(p) == 0 {
		return Point{}
	}
	return p[0]
}

// project converts a geographic point to local meters relative to the anchor.
func project(pt, anchor Point) planar {
	return planar{
		X: (pt.Lon - anchor.Lon) * metersPerDegreeLat * math.Cos(DegToRad(anchor.Lat)),
		Y: (pt.Lat - anchor.Lat) * metersPerDegreeLat,
	}
}

// unproject converts a local-meter point back to geographic coordinates.
func unproject(pl planar, anchor Point) Point {
	return Point{
		Lat: anchor.Lat + pl.Y/metersPerDegreeLat,
		Lon: anchor.Lon + pl.X/(metersPerDegreeLat*math.Cos(DegToRad(anchor.Lat))),
	}
}

func (p Polygon) toPlanar(anchor Point) []planar {
	out := make([]planar, len(p))
	for i, pt := range p {
		out[i] = project(pt, anchor)
	}
	return out
}

func fromPlanar(ring []planar, anchor Point) Polygon {
	out := make(Polygon, len(ring))
	for i, pl := range ring {
		out[i] = unproject(pl, anchor)
	}
	return out
}

// shoelace returns the signed area of a planar ring in square meters.
func shoelace(ring []planar) float64 {
	if len(ring) < 3 {
		return 0
	}
	var sum float64
	for i := range ring {
		j := (i + 1) % len(ring)
		sum += ring[i].X*ring[j].Y - ring[j].X*ring[i].Y
	}
	return sum / 2
}

// AreaM2 returns the polygon's area in square meters. Degenerate polygons
// (fewer than three vertices, or collinear) report zero.
func (p Polygon) AreaM2() float64 {
	return p.AreaM2At(p.anchor())
}

// AreaM2At returns the area measured in a projection anchored at the given
// point. Callers comparing areas across polygons (e.g. a patio against its
// clipped shadow pieces) must use a shared anchor so the projections agree.
func (p Polygon) AreaM2At(anchor Point) float64 {
	return math.Abs(shoelace(p.toPlanar(anchor)))
}

// Centroid returns the area-weighted centroid of the polygon. For degenerate
// polygons it falls back to the vertex mean, which is still a usable
// reference location for solar position lookup.
func (p Polygon) Centroid() Point {
	if len(p) == 0 {
		return Point{}
	}

	anchor := p.anchor()
	ring := p.toPlanar(anchor)
	a := shoelace(ring)
	if math.Abs(a) < 1e-9 {
		var sLat, sLon float64
		for _, pt := range p {
			sLat += pt.Lat
			sLon += pt.Lon
		}
		return Point{Lat: sLat / float64(len(p)), Lon: sLon / float64(len(p))}
	}

	var cx, cy float64
	for i := range ring {
		j := (i + 1) % len(ring)
		cross := ring[i].X*ring[j].Y - ring[j].X*ring[i].Y
		cx += (ring[i].X + ring[j].X) * cross
		cy += (ring[i].Y + ring[j].Y) * cross
	}
	cx /= 6 * a
	cy /= 6 * a
	return unproject(planar{X: cx, Y: cy}, anchor)
}

// ConvexHull returns the convex hull of the polygon's vertices using
// Andrew's monotone chain, computed in the local projection. The result is
// counter-clockwise. Inputs with fewer than three distinct vertices return
// nil.
func ConvexHull(points Polygon) Polygon {
	if len(points) < 3 {
		return nil
	}

	anchor := points.anchor()
	pts := points.toPlanar(anchor)

	sort.Slice(pts, func(i, j int) bool {
		if pts[i].X != pts[j].X {
			return pts[i].X < pts[j].X
		}
		return pts[i].Y < pts[j].Y
	})

	// Deduplicate after sorting; repeated vertices break the chain invariant.
	uniq := pts[:1]
	for _, pt := range pts[1:] {
		last := uniq[len(uniq)-1]
		if math.Abs(pt.X-last.X) > 1e-9 || math.Abs(pt.Y-last.Y) > 1e-9 {
			uniq = append(uniq, pt)
		}
	}
	pts = uniq
	if len(pts) < 3 {
		return nil
	}

	cross := func(o, a, b planar) float64 {
		return (a.X-o.X)*(b.Y-o.Y) - (a.Y-o.Y)*(b.X-o.X)
	}

	var lower []planar
	for _, pt := range pts {
		for len(lower) >= 2 && cross(lower[len(lower)-2], lower[len(lower)-1], pt) <= 0 {
			lower = lower[:len(lower)-1]
		}
		lower = append(lower, pt)
	}

	var upper []planar
	for i := len(pts) - 1; i >= 0; i-- {
		pt := pts[i]
		for len(upper) >= 2 && cross(upper[len(upper)-2], upper[len(upper)-1], pt) <= 0 {
			upper = upper[:len(upper)-1]
		}
		upper = append(upper, pt)
	}

	hull := append(lower[:len(lower)-1], upper[:len(upper)-1]...)
	if len(hull) < 3 {
		return nil
	}
	return fromPlanar(hull, anchor)
}

// ClipToConvex clips the subject polygon against a convex clip polygon using
// Sutherland-Hodgman and returns the intersection region. The subject may be
// non-convex; zero-width bridge edges that the algorithm can introduce cancel
// out in area computations. Returns nil when the intersection is empty or
// either input is degenerate.
func ClipToConvex(subject, clip Polygon) Polygon {
	if !subject.Valid() || !clip.Valid() {
		return nil
	}

	anchor := subject.anchor()
	out := subject.toPlanar(anchor)
	clipRing := ensureCCW(clip.toPlanar(anchor))

	for i := range clipRing {
		if len(out) == 0 {
			return nil
		}
		a := clipRing[i]
		b := clipRing[(i+1)%len(clipRing)]
		out = clipAgainstEdge(out, a, b)
	}

	if len(out) < 3 {
		return nil
	}
	return fromPlanar(out, anchor)
}

// SubtractConvex returns the parts of the subject polygon lying outside the
// convex clip polygon, as disjoint polygons. Each clip edge peels off the
// slice of the remainder beyond it, so the pieces partition subject minus
// clip exactly. Returns the subject itself when the clip is degenerate, nil
// when the subject is.
func SubtractConvex(subject, clip Polygon) []Polygon {
	if !subject.Valid() {
		return nil
	}
	if !clip.Valid() {
		return []Polygon{subject}
	}

	anchor := subject.anchor()
	remaining := subject.toPlanar(anchor)
	clipRing := ensureCCW(clip.toPlanar(anchor))

	var out []Polygon
	for i := range clipRing {
		if len(remaining) == 0 {
			break
		}
		a := clipRing[i]
		b := clipRing[(i+1)%len(clipRing)]

		// Reversed edge keeps the side outside the CCW clip ring.
		outside := clipAgainstEdge(remaining, b, a)
		if len(outside) >= 3 {
			out = append(out, fromPlanar(outside, anchor))
		}
		remaining = clipAgainstEdge(remaining, a, b)
	}
	return out
}

// ensureCCW returns the ring in counter-clockwise order, which the clipping
// edge test requires.
func ensureCCW(ring []planar) []planar {
	if shoelace(ring) >= 0 {
		return ring
	}
	rev := make([]planar, len(ring))
	for i := range ring {
		rev[i] = ring[len(ring)-1-i]
	}
	return rev
}

// clipAgainstEdge keeps the part of the ring on the inside (left) of the
// directed edge a->b.
func clipAgainstEdge(ring []planar, a, b planar) []planar {
	inside := func(p planar) bool {
		return (b.X-a.X)*(p.Y-a.Y)-(b.Y-a.Y)*(p.X-a.X) >= 0
	}
	intersect := func(p, q planar) planar {
		// Line a-b against segment p-q.
		a1 := b.Y - a.Y
		b1 := a.X - b.X
		c1 := a1*a.X + b1*a.Y
		a2 := q.Y - p.Y
		b2 := p.X - q.X
		c2 := a2*p.X + b2*p.Y
		det := a1*b2 - a2*b1
		if math.Abs(det) < 1e-12 {
			return p
		}
		return planar{X: (b2*c1 - b1*c2) / det, Y: (a1*c2 - a2*c1) / det}
	}

	var out []planar
	for i := range ring {
		cur := ring[i]
		prev := ring[(i+len(ring)-1)%len(ring)]
		switch {
		case inside(cur) && inside(prev):
			out = append(out, cur)
		case inside(cur) && !inside(prev):
			out = append(out, intersect(prev, cur), cur)
		case !inside(cur) && inside(prev):
			out = append(out, intersect(prev, cur))
		}
	}
	return out
}

// ContainsPoint reports whether the point lies inside the polygon using the
// ray-casting rule in the local projection.
func (p Polygon) ContainsPoint(pt Point) bool {
	if !p.Valid() {
		return false
	}
	anchor := p.anchor()
	ring := p.toPlanar(anchor)
	target := project(pt, anchor)

	inside := false
	for i := range ring {
		j := (i + len(ring) - 1) % len(ring)
		if (ring[i].Y > target.Y) != (ring[j].Y > target.Y) {
			x := (ring[j].X-ring[i].X)*(target.Y-ring[i].Y)/(ring[j].Y-ring[i].Y) + ring[i].X
			if target.X < x {
				inside = !inside
			}
		}
	}
	return inside
}
