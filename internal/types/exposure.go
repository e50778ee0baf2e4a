package types

import "time"

// ExposureState classifies how much of a patio is in direct sun.
type ExposureState string

const (
	StateSunny   ExposureState = "sunny"
	StatePartial ExposureState = "partial"
	StateShaded  ExposureState = "shaded"
	StateNoSun   ExposureState = "no_sun"
)

// Exposure state thresholds, evaluated only when the sun is visible.
const (
	// SunnyThresholdPct is the minimum exposure percentage for Sunny.
	SunnyThresholdPct = 70.0
	// PartialThresholdPct is the minimum exposure percentage for Partial.
	PartialThresholdPct = 30.0
)

// ClassifyExposure maps an exposure percentage to a state. Callers must
// handle the sun-below-horizon case (StateNoSun) before calling.
func ClassifyExposure(exposurePct float64) ExposureState {
	switch {
	case exposurePct >= SunnyThresholdPct:
		return StateSunny
	case exposurePct >= PartialThresholdPct:
		return StatePartial
	default:
		return StateShaded
	}
}

// IsFavorable reports whether the state counts toward a sun window.
func (s ExposureState) IsFavorable() bool {
	return s == StateSunny || s == StatePartial
}

// ConfidenceTier buckets a confidence percentage for display and ranking.
type ConfidenceTier string

const (
	ConfidenceHigh   ConfidenceTier = "high"
	ConfidenceMedium ConfidenceTier = "medium"
	ConfidenceLow    ConfidenceTier = "low"
)

// Confidence tier thresholds (percentage form) and caps. Centralized so the
// calculator and any display layer share one source of truth.
const (
	ConfidenceHighMinPct   = 70.0
	ConfidenceMediumMinPct = 40.0

	// ForecastConfidenceCapPct bounds confidence when the weather signal is a
	// forecast rather than a live observation.
	ForecastConfidenceCapPct = 90.0
	// EstimatedConfidenceCapPct bounds confidence when either the geometry or
	// the weather signal is missing; such results are labeled estimated.
	EstimatedConfidenceCapPct = 60.0
)

// ClassifyConfidence maps a confidence percentage to its tier.
func ClassifyConfidence(confidencePct float64) ConfidenceTier {
	switch {
	case confidencePct >= ConfidenceHighMinPct:
		return ConfidenceHigh
	case confidencePct >= ConfidenceMediumMinPct:
		return ConfidenceMedium
	default:
		return ConfidenceLow
	}
}

// ExposureSource tags where a timeline point's value came from.
type ExposureSource string

const (
	SourceRealtime    ExposureSource = "realtime"
	SourcePrecomputed ExposureSource = "precomputed"
)

// ConfidenceFactors is the per-signal breakdown behind a blended confidence
// score. All values are [0,1].
type ConfidenceFactors struct {
	Geometry     float64 `json:"geometry"`
	HeightTrust  float64 `json:"height_trust"`
	ShadowMean   float64 `json:"shadow_mean"`
	CloudSignal  float64 `json:"cloud_signal"`
	WeatherKnown bool    `json:"weather_known"`
}

// ShadowContribution records one building's shadow over a patio at one
// instant. Ephemeral: computed per request, never persisted individually.
type ShadowContribution struct {
	BuildingID      string  `json:"building_id"`
	BuildingHeightM float64 `json:"building_height_m"`
	LengthM         float64 `json:"length_m"`
	DirectionDeg    float64 `json:"direction_deg"`
	Confidence      float64 `json:"confidence"`
	ShadowedAreaM2  float64 `json:"shadowed_area_m2"`
}

// PatioSunExposure is the computed output for one (patio, timestamp).
type PatioSunExposure struct {
	PatioID         string               `json:"patio_id"`
	Timestamp       time.Time            `json:"timestamp"`
	ExposurePct     float64              `json:"exposure_pct"` // [0,100]
	State           ExposureState        `json:"state"`
	ConfidencePct   float64              `json:"confidence_pct"` // [0,100]
	ConfidenceTier  ConfidenceTier       `json:"confidence_tier"`
	Estimated       bool                 `json:"estimated"`
	SunlitAreaM2    float64              `json:"sunlit_area_m2"`
	ShadedAreaM2    float64              `json:"shaded_area_m2"`
	Shadows         []ShadowContribution `json:"shadows,omitempty"`
	Factors         ConfidenceFactors    `json:"factors"`
	Weather         *ProcessedWeather    `json:"weather,omitempty"`
	Solar           SolarPosition        `json:"solar"`
	ComputeDuration time.Duration        `json:"compute_duration_ns"`
	Source          ExposureSource       `json:"source"`
}

// TimelinePoint is one slot of a SunExposureTimeline.
type TimelinePoint struct {
	Timestamp time.Time        `json:"timestamp"`
	Exposure  PatioSunExposure `json:"exposure"`
	Source    ExposureSource   `json:"source"`
	Stale     bool             `json:"stale"`
}

// SunExposureTimeline is an ordered, finite sequence of exposure points for
// one patio over a requested range. Fully re-derivable from inputs.
type SunExposureTimeline struct {
	PatioID     string          `json:"patio_id"`
	Range       TimeRange       `json:"range"`
	StepMinutes int             `json:"step_minutes"`
	Points      []TimelinePoint `json:"points"`
	GeneratedAt time.Time       `json:"generated_at"`
}

// WindowQuality tiers a sun window for ranking.
type WindowQuality string

const (
	WindowExcellent WindowQuality = "excellent"
	WindowGood      WindowQuality = "good"
	WindowFair      WindowQuality = "fair"
	WindowPoor      WindowQuality = "poor"
)

// SunWindow is a contiguous interval of favorable exposure within a
// timeline. Derived entirely from the timeline; recomputed with it.
type SunWindow struct {
	PatioID        string        `json:"patio_id"`
	Start          time.Time     `json:"start"`
	End            time.Time     `json:"end"`
	PeakTime       time.Time     `json:"peak_time"`
	PeakPct        float64       `json:"peak_pct"`
	MinPct         float64       `json:"min_pct"`
	MaxPct         float64       `json:"max_pct"`
	AvgPct         float64       `json:"avg_pct"`
	AvgConfidence  float64       `json:"avg_confidence_pct"`
	Quality        WindowQuality `json:"quality"`
	Recommended    bool          `json:"recommended"`
	Reason         string        `json:"reason,omitempty"`
	PriorityScore  float64       `json:"priority_score"`
}

// Duration returns the window length.
func (w SunWindow) Duration() time.Duration {
	return w.End.Sub(w.Start)
}
