// Package exposure implements the sun exposure calculator: it composes the
// solar position, shadow projection and weather interpolation results for one
// patio and instant into an exposure percentage, a state classification, and
// a blended multi-factor confidence score.
//
// The calculator is pure and stateless apart from its injected collaborators,
// so it is safe to call concurrently from batch workers and the on-demand
// serving path.
package exposure

import (
	"log/slog"
	"time"

	"terrasol/internal/astro"
	"terrasol/internal/geo"
	"terrasol/internal/shadow"
	"terrasol/internal/types"
)

// Confidence blend weights. Geometry quality splits between the patio
// polygon score, building height trust, and per-shadow confidence; when a
// weather signal is present it contributes the remaining share.
const (
	polygonQualityWeight = 0.4
	heightTrustWeight    = 0.3
	shadowMeanWeight     = 0.3

	geometryShare = 0.6
	weatherShare  = 0.4

	// defaultPolygonQuality substitutes for an unset patio quality score.
	defaultPolygonQuality = 0.5
)

// Calculator computes PatioSunExposure values.
type Calculator struct {
	astro  *astro.Calculator
	logger *slog.Logger
	clock  types.Clock
}

// NewCalculator creates a Calculator. Nil logger and clock fall back to
// defaults.
func NewCalculator(astroCalc *astro.Calculator, logger *slog.Logger, clock types.Clock) *Calculator {
	if logger == nil {
		logger = slog.Default()
	}
	if clock == nil {
		clock = types.RealClock{}
	}
	return &Calculator{astro: astroCalc, logger: logger, clock: clock}
}

// Compute returns the sun exposure for the patio at the given UTC instant.
// weather may be nil; the result then carries a capped, estimated
// confidence. The function never fails: geometric degeneracy degrades to
// fully sunlit with reduced confidence.
func (c *Calculator) Compute(patio types.Patio, buildings []types.Building, at time.Time, weather *types.ProcessedWeather) types.PatioSunExposure {
	started := c.clock.Now()

	centroid := patio.Centroid()
	sp := c.astro.Compute(at, centroid.Lat, centroid.Lon)

	// Sun below the horizon: certain no-sun, no geometry needed.
	if !sp.IsSunVisible() {
		return types.PatioSunExposure{
			PatioID:         patio.ID,
			Timestamp:       at.UTC(),
			ExposurePct:     0,
			State:           types.StateNoSun,
			ConfidencePct:   100,
			ConfidenceTier:  types.ConfidenceHigh,
			SunlitAreaM2:    0,
			ShadedAreaM2:    patio.AreaM2(),
			Factors:         types.ConfidenceFactors{Geometry: 1, HeightTrust: 1, ShadowMean: 1},
			Weather:         weather,
			Solar:           sp,
			ComputeDuration: c.clock.Now().Sub(started),
			Source:          types.SourceRealtime,
		}
	}

	projections := make([]*shadow.Projection, 0, len(buildings))
	for _, b := range buildings {
		if pr := shadow.Project(b, sp); pr != nil {
			projections = append(projections, pr)
		}
	}

	geomKnown := patio.Footprint.Valid() && patio.AreaM2() > 0

	var exposurePct, sunlit, shadowed float64
	if geomKnown {
		shadowed, sunlit = shadow.Coverage(patio.Footprint, projections)
		total := sunlit + shadowed
		if total > 0 {
			exposurePct = types.ClampPercent(100 * sunlit / total)
		} else {
			exposurePct = 100
		}
	} else {
		// Degenerate patio geometry: recover as fully sunlit, confidence
		// capped below.
		exposurePct = 100
	}

	contributions := contributionsFor(patio.Footprint, projections)

	factors := confidenceFactors(patio, buildings, projections, weather)
	confidencePct, estimated := blendConfidence(factors, geomKnown, weather)

	result := types.PatioSunExposure{
		PatioID:         patio.ID,
		Timestamp:       at.UTC(),
		ExposurePct:     exposurePct,
		State:           types.ClassifyExposure(exposurePct),
		ConfidencePct:   confidencePct,
		ConfidenceTier:  types.ClassifyConfidence(confidencePct),
		Estimated:       estimated,
		SunlitAreaM2:    sunlit,
		ShadedAreaM2:    shadowed,
		Shadows:         contributions,
		Factors:         factors,
		Weather:         weather,
		Solar:           sp,
		ComputeDuration: c.clock.Now().Sub(started),
		Source:          types.SourceRealtime,
	}

	c.logger.Debug("computed sun exposure",
		"patio_id", patio.ID,
		"timestamp", at.UTC().Format(time.RFC3339),
		"exposure_pct", exposurePct,
		"state", string(result.State),
		"confidence_pct", confidencePct,
		"shadows", len(contributions),
		"duration", result.ComputeDuration.String(),
	)

	return result
}

// confidenceFactors assembles the per-signal confidence breakdown.
func confidenceFactors(patio types.Patio, buildings []types.Building, projections []*shadow.Projection, weather *types.ProcessedWeather) types.ConfidenceFactors {
	polyQ := patio.PolygonQuality
	if polyQ <= 0 {
		polyQ = defaultPolygonQuality
	}

	heightTrust := 1.0
	if len(buildings) > 0 {
		var sum float64
		for _, b := range buildings {
			sum += b.HeightSource.TrustFactor()
		}
		heightTrust = sum / float64(len(buildings))
	}

	shadowMean := 1.0
	if len(projections) > 0 {
		var sum float64
		for _, pr := range projections {
			sum += pr.Confidence
		}
		shadowMean = sum / float64(len(projections))
	}

	geometry := types.ClampUnit(
		polygonQualityWeight*polyQ + heightTrustWeight*heightTrust + shadowMeanWeight*shadowMean,
	)

	f := types.ConfidenceFactors{
		Geometry:    geometry,
		HeightTrust: heightTrust,
		ShadowMean:  shadowMean,
	}
	if weather != nil {
		f.WeatherKnown = true
		f.CloudSignal = types.ClampUnit(weather.Confidence)
	}
	return f
}

// blendConfidence combines geometry and weather signals into a percentage,
// applying the forecast and estimated caps.
func blendConfidence(f types.ConfidenceFactors, geomKnown bool, weather *types.ProcessedWeather) (pct float64, estimated bool) {
	var conf float64
	if f.WeatherKnown {
		conf = geometryShare*f.Geometry + weatherShare*f.CloudSignal
	} else {
		conf = f.Geometry
	}
	pct = types.ClampPercent(conf * 100)

	if weather != nil && weather.IsForecast && pct > types.ForecastConfidenceCapPct {
		pct = types.ForecastConfidenceCapPct
	}
	if !f.WeatherKnown || !geomKnown {
		estimated = true
		if pct > types.EstimatedConfidenceCapPct {
			pct = types.EstimatedConfidenceCapPct
		}
	}
	return pct, estimated
}

// contributionsFor summarizes each projection's overlap with the patio.
// Projections whose shadow misses the patio entirely are omitted.
func contributionsFor(footprint geo.Polygon, projections []*shadow.Projection) []types.ShadowContribution {
	if !footprint.Valid() || len(projections) == 0 {
		return nil
	}

	anchor := footprint[0]
	out := make([]types.ShadowContribution, 0, len(projections))
	for _, pr := range projections {
		clipped := geo.ClipToConvex(footprint, pr.Polygon)
		if clipped == nil {
			continue
		}
		out = append(out, types.ShadowContribution{
			BuildingID:      pr.BuildingID,
			BuildingHeightM: pr.BuildingHeightM,
			LengthM:         pr.LengthM,
			DirectionDeg:    pr.DirectionDeg,
			Confidence:      pr.Confidence,
			ShadowedAreaM2:  clipped.AreaM2At(anchor),
		})
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
