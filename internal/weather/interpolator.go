// Package weather normalizes raw weather samples to a specific location and
// time. Spatial interpolation uses inverse-distance weighting over the
// nearest grid samples; temporal interpolation is linear between two
// time-ordered samples. The engine never fails on missing weather: callers
// receive nil and degrade to a capped, estimated confidence.
package weather

import (
	"sort"
	"time"

	"terrasol/internal/geo"
	"terrasol/internal/types"
)

const (
	// maxSpatialSamples bounds how many nearest grid samples contribute to
	// an inverse-distance blend.
	maxSpatialSamples = 4

	// zeroDistanceWeight substitutes for 1/distance when the target sits on
	// a grid sample, avoiding division blow-up.
	zeroDistanceWeight = 1e6

	// minDistanceM is the distance below which a sample counts as co-located.
	minDistanceM = 1.0
)

// InterpolateSpatial blends grid samples to the target point. With a single
// sample it is returned verbatim, relocated to the target. With two or more,
// up to four nearest samples are combined by inverse-distance weighting.
// Returns nil when no samples are supplied.
func InterpolateSpatial(target geo.Point, samples []types.WeatherSlice) *types.ProcessedWeather {
	if len(samples) == 0 {
		return nil
	}
	if len(samples) == 1 {
		pw := processed(samples[0])
		pw.Location = &geo.Point{Lat: target.Lat, Lon: target.Lon}
		return &pw
	}

	type weighted struct {
		slice  types.WeatherSlice
		dist   float64
		weight float64
	}

	ws := make([]weighted, 0, len(samples))
	for _, s := range samples {
		d := zeroDistanceWeight // samples without a location sort last
		if s.Location != nil {
			d = geo.DistanceMeters(target, *s.Location)
		}
		ws = append(ws, weighted{slice: s, dist: d})
	}
	sort.Slice(ws, func(i, j int) bool { return ws[i].dist < ws[j].dist })

	if len(ws) > maxSpatialSamples {
		ws = ws[:maxSpatialSamples]
	}

	var totalWeight float64
	for i := range ws {
		if ws[i].dist < minDistanceM {
			ws[i].weight = zeroDistanceWeight
		} else {
			ws[i].weight = 1.0 / ws[i].dist
		}
		totalWeight += ws[i].weight
	}

	var cloud, prob, intensity, temp, conf float64
	forecast := false
	for _, w := range ws {
		f := w.weight / totalWeight
		cloud += f * w.slice.CloudCoverPct
		prob += f * w.slice.PrecipProb
		intensity += f * w.slice.PrecipIntensity
		temp += f * w.slice.TemperatureC
		conf += f * w.slice.Confidence
		if w.slice.IsForecast {
			forecast = true
		}
	}

	nearest := ws[0].slice
	return &types.ProcessedWeather{
		Timestamp:       nearest.Timestamp,
		Location:        &geo.Point{Lat: target.Lat, Lon: target.Lon},
		CloudCoverPct:   types.ClampPercent(cloud),
		PrecipProb:      types.ClampUnit(prob),
		PrecipIntensity: intensity,
		TemperatureC:    temp,
		Condition:       types.ClassifyCondition(cloud, intensity),
		IsForecast:      forecast,
		Source:          nearest.Source,
		Confidence:      types.ClampUnit(conf),
	}
}

// InterpolateTemporal linearly interpolates cloud cover, precipitation and
// confidence between two time-ordered samples by elapsed-time fraction.
// Targets outside the bracket clamp to the nearer sample.
func InterpolateTemporal(at time.Time, before, after types.WeatherSlice) types.ProcessedWeather {
	if after.Timestamp.Before(before.Timestamp) {
		before, after = after, before
	}

	if !at.After(before.Timestamp) {
		pw := processed(before)
		pw.Timestamp = at
		return pw
	}
	if !at.Before(after.Timestamp) {
		pw := processed(after)
		pw.Timestamp = at
		return pw
	}

	span := after.Timestamp.Sub(before.Timestamp).Seconds()
	frac := at.Sub(before.Timestamp).Seconds() / span

	lerp := func(a, b float64) float64 { return a + frac*(b-a) }

	cloud := lerp(before.CloudCoverPct, after.CloudCoverPct)
	intensity := lerp(before.PrecipIntensity, after.PrecipIntensity)

	return types.ProcessedWeather{
		Timestamp:       at,
		Location:        before.Location,
		CloudCoverPct:   types.ClampPercent(cloud),
		PrecipProb:      types.ClampUnit(lerp(before.PrecipProb, after.PrecipProb)),
		PrecipIntensity: intensity,
		TemperatureC:    lerp(before.TemperatureC, after.TemperatureC),
		Condition:       types.ClassifyCondition(cloud, intensity),
		IsForecast:      before.IsForecast || after.IsForecast,
		Source:          before.Source,
		Confidence:      types.ClampUnit(lerp(before.Confidence, after.Confidence)),
	}
}

// processed converts a raw slice to its normalized form with the condition
// class resolved.
func processed(s types.WeatherSlice) types.ProcessedWeather {
	return types.ProcessedWeather{
		Timestamp:       s.Timestamp,
		Location:        s.Location,
		CloudCoverPct:   types.ClampPercent(s.CloudCoverPct),
		PrecipProb:      types.ClampUnit(s.PrecipProb),
		PrecipIntensity: s.PrecipIntensity,
		TemperatureC:    s.TemperatureC,
		Condition:       types.ClassifyCondition(s.CloudCoverPct, s.PrecipIntensity),
		IsForecast:      s.IsForecast,
		Source:          s.Source,
		Confidence:      types.ClampUnit(s.Confidence),
	}
}
