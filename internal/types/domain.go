// Package types defines the shared domain value types, enumerations, error
// taxonomy, and clock abstraction for the terrasol engine. Calculation
// pipeline types are immutable values; persistence-facing records
// (PrecomputedSunExposure, PrecomputationSchedule) live alongside them but
// are only mutated by the precompute engine.
package types

import (
	"time"

	"terrasol/internal/geo"
)

// HeightSource identifies where a building or patio height value came from.
// Sources are ordered by descending trust; TrustFactor maps each tier to the
// multiplicative confidence factor applied to shadows derived from it.
type HeightSource string

const (
	HeightSourceSurveyed      HeightSource = "surveyed"
	HeightSourceOSM           HeightSource = "osm"
	HeightSourceHeuristic     HeightSource = "heuristic"
	HeightSourceAdminOverride HeightSource = "admin_override"
)

// DefaultBuildingHeightM is assumed when a building has no height data.
const DefaultBuildingHeightM = 10.0

// TrustFactor returns the confidence multiplier for height data from this
// source. Unknown sources get the most conservative factor.
func (s HeightSource) TrustFactor() float64 {
	switch s {
	case HeightSourceSurveyed:
		return 1.0
	case HeightSourceOSM:
		return 0.85
	case HeightSourceHeuristic:
		return 0.7
	default:
		return 0.6
	}
}

// Building is a read-only shadow caster owned by the building-data
// collaborator. Footprint vertices are geographic (lat/lon degrees).
type Building struct {
	ID           string       `json:"id"`
	Footprint    geo.Polygon  `json:"footprint"`
	HeightM      float64      `json:"height_m"`
	HeightSource HeightSource `json:"height_source"`
	Quality      float64      `json:"quality"` // [0,1]
}

// Height returns the building height, substituting the default when the
// stored value is missing or nonsensical.
func (b Building) Height() float64 {
	if b.HeightM <= 0 {
		return DefaultBuildingHeightM
	}
	return b.HeightM
}

// Patio is the read-only target surface owned by the venue-management
// collaborator.
type Patio struct {
	ID              string       `json:"id"`
	Footprint       geo.Polygon  `json:"footprint"`
	HeightOverrideM float64      `json:"height_override_m,omitempty"`
	HeightSource    HeightSource `json:"height_source,omitempty"`
	PolygonQuality  float64      `json:"polygon_quality"` // [0,1]
}

// Centroid returns the patio's reference location for solar position lookup.
func (p Patio) Centroid() geo.Point {
	return p.Footprint.Centroid()
}

// AreaM2 returns the patio surface area in square meters.
func (p Patio) AreaM2() float64 {
	return p.Footprint.AreaM2()
}

// ClampUnit clamps v to [0, 1]. Confidence values throughout the engine are
// required to stay in this range regardless of inputs.
func ClampUnit(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// ClampPercent clamps v to [0, 100].
func ClampPercent(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}

// TimeRange is a half-open [Start, End) interval.
type TimeRange struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Contains reports whether t falls within the range.
func (r TimeRange) Contains(t time.Time) bool {
	return !t.Before(r.Start) && t.Before(r.End)
}
