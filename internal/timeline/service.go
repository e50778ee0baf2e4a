// Package timeline assembles sun exposure timelines for patios. Each slot is
// served from the precomputed store when a fresh row exists within the
// tolerance window, and computed in real time otherwise. Contiguous favorable
// slots are grouped into ranked sun windows.
package timeline

import (
	"context"
	"log/slog"
	"sort"
	"time"

	"terrasol/internal/cache"
	"terrasol/internal/exposure"
	"terrasol/internal/types"
	"terrasol/internal/weather"
)

const (
	// PrecomputedTolerance is how far a stored row's timestamp may sit from
	// the requested slot and still be served.
	PrecomputedTolerance = 5 * time.Minute

	// staleConfidenceFactor discounts the confidence of rows flagged stale by
	// an upstream geometry change. They remain servable until overwritten.
	staleConfidenceFactor = 0.8

	// MaxTimelineSlots bounds a single request.
	MaxTimelineSlots = 24 * 60
)

// ExposureStore is the persistence surface the service reads precomputed
// rows from and backfills realtime results into.
type ExposureStore interface {
	FindNearest(ctx context.Context, patioID string, at time.Time, tolerance time.Duration) (*types.PrecomputedSunExposure, error)
	SaveBatch(ctx context.Context, rows []types.PrecomputedSunExposure) error
}

// Service serves timelines. The weather source and cache are optional; both
// degrade gracefully when absent.
type Service struct {
	calc     *exposure.Calculator
	store    ExposureStore
	source   weather.Source
	cache    *cache.TimelineCache
	clock    types.Clock
	logger   *slog.Logger
	backfill bool
}

// NewService creates a timeline Service. store is required; source and cache
// may be nil.
func NewService(calc *exposure.Calculator, store ExposureStore, source weather.Source, tlCache *cache.TimelineCache, clock types.Clock, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	if clock == nil {
		clock = types.RealClock{}
	}
	return &Service{
		calc:     calc,
		store:    store,
		source:   source,
		cache:    tlCache,
		clock:    clock,
		logger:   logger,
		backfill: true,
	}
}

// SetBackfill toggles write-behind of realtime-computed slots into the
// precomputed store.
func (s *Service) SetBackfill(enabled bool) {
	s.backfill = enabled
}

// GetTimeline returns the exposure timeline for the patio over [from, to) at
// the given step. Weather unavailability is not an error; affected slots are
// served with estimated confidence.
func (s *Service) GetTimeline(ctx context.Context, patio types.Patio, buildings []types.Building, from, to time.Time, stepMinutes int) (*types.SunExposureTimeline, error) {
	if err := validateRequest(patio, from, to, stepMinutes); err != nil {
		return nil, err
	}

	rng := types.TimeRange{Start: from.UTC(), End: to.UTC()}

	if tl, ok := s.cache.Get(ctx, patio.ID, rng, stepMinutes); ok {
		s.logger.DebugContext(ctx, "timeline served from cache", "patio_id", patio.ID)
		return tl, nil
	}

	samples := s.fetchWeather(ctx, patio, rng)

	step := time.Duration(stepMinutes) * time.Minute
	var (
		points   []types.TimelinePoint
		computed []types.PrecomputedSunExposure
	)
	for slot := rng.Start; slot.Before(rng.End); slot = slot.Add(step) {
		point, fresh := s.pointAt(ctx, patio, buildings, slot, samples)
		points = append(points, point)
		if fresh != nil {
			computed = append(computed, *fresh)
		}
	}

	tl := &types.SunExposureTimeline{
		PatioID:     patio.ID,
		Range:       rng,
		StepMinutes: stepMinutes,
		Points:      points,
		GeneratedAt: s.clock.Now(),
	}

	s.cache.Put(ctx, tl)

	if s.backfill && len(computed) > 0 {
		if err := s.store.SaveBatch(ctx, computed); err != nil {
			s.logger.WarnContext(ctx, "timeline backfill failed",
				"patio_id", patio.ID,
				"rows", len(computed),
				"error", err,
			)
		}
	}

	return tl, nil
}

// pointAt resolves one slot: precomputed when a tolerable row exists, else
// realtime. The second return is the snapshot to backfill, nil for
// precomputed hits.
func (s *Service) pointAt(ctx context.Context, patio types.Patio, buildings []types.Building, slot time.Time, samples []types.WeatherSlice) (types.TimelinePoint, *types.PrecomputedSunExposure) {
	row, err := s.store.FindNearest(ctx, patio.ID, slot, PrecomputedTolerance)
	if err != nil {
		s.logger.WarnContext(ctx, "precomputed lookup failed, computing realtime",
			"patio_id", patio.ID,
			"slot", slot.Format(time.RFC3339),
			"error", err,
		)
	}
	// Rows past expiry are awaiting the retention sweep; unlike stale rows
	// they are not servable and fall through to realtime.
	if row != nil && !row.ExpiresAt.IsZero() && !row.ExpiresAt.After(s.clock.Now()) {
		row = nil
	}
	if row != nil {
		return types.TimelinePoint{
			Timestamp: slot,
			Exposure:  fromPrecomputed(row),
			Source:    types.SourcePrecomputed,
			Stale:     row.IsStale,
		}, nil
	}

	w := weatherAt(slot, samples)
	result := s.calc.Compute(patio, buildings, slot, w)

	point := types.TimelinePoint{
		Timestamp: slot,
		Exposure:  result,
		Source:    types.SourceRealtime,
	}
	return point, snapshotOf(result)
}

// fetchWeather pulls raw samples for the request range. Missing source or
// upstream failure yields nil; the calculator degrades per slot.
func (s *Service) fetchWeather(ctx context.Context, patio types.Patio, rng types.TimeRange) []types.WeatherSlice {
	if s.source == nil {
		return nil
	}
	samples, err := s.source.Samples(ctx, patio.Centroid(), rng)
	if err != nil {
		s.logger.WarnContext(ctx, "weather unavailable for timeline, serving estimated",
			"patio_id", patio.ID,
			"error", err,
		)
		return nil
	}
	return samples
}

// weatherAt interpolates the slot's weather from the fetched samples, or nil
// when none are usable.
func weatherAt(slot time.Time, samples []types.WeatherSlice) *types.ProcessedWeather {
	if len(samples) == 0 {
		return nil
	}

	sorted := make([]types.WeatherSlice, len(samples))
	copy(sorted, samples)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Timestamp.Before(sorted[j].Timestamp) })

	// Find the bracketing pair around the slot.
	idx := sort.Search(len(sorted), func(i int) bool { return !sorted[i].Timestamp.Before(slot) })
	switch {
	case idx == 0:
		w := weather.InterpolateTemporal(slot, sorted[0], sorted[0])
		return &w
	case idx == len(sorted):
		w := weather.InterpolateTemporal(slot, sorted[len(sorted)-1], sorted[len(sorted)-1])
		return &w
	default:
		w := weather.InterpolateTemporal(slot, sorted[idx-1], sorted[idx])
		return &w
	}
}

// fromPrecomputed rehydrates a stored snapshot into a servable exposure,
// discounting confidence for stale rows.
func fromPrecomputed(row *types.PrecomputedSunExposure) types.PatioSunExposure {
	confidence := row.ConfidencePct
	if row.IsStale {
		confidence = types.ClampPercent(confidence * staleConfidenceFactor)
	}
	return types.PatioSunExposure{
		PatioID:        row.PatioID,
		Timestamp:      row.Timestamp,
		ExposurePct:    row.ExposurePct,
		State:          row.State,
		ConfidencePct:  confidence,
		ConfidenceTier: types.ClassifyConfidence(confidence),
		Estimated:      row.IsStale,
		SunlitAreaM2:   row.SunlitAreaM2,
		ShadedAreaM2:   row.ShadedAreaM2,
		Weather:        row.Weather,
		Source:         types.SourcePrecomputed,
	}
}

// snapshotOf converts a realtime result into a precomputed row for
// write-behind backfill. Results land under the current computation version
// with a two-day retention horizon.
func snapshotOf(e types.PatioSunExposure) *types.PrecomputedSunExposure {
	ts := e.Timestamp
	return &types.PrecomputedSunExposure{
		PatioID:            e.PatioID,
		Date:               time.Date(ts.Year(), ts.Month(), ts.Day(), 0, 0, 0, 0, time.UTC),
		Timestamp:          ts,
		ExposurePct:        e.ExposurePct,
		State:              e.State,
		ConfidencePct:      e.ConfidencePct,
		SunlitAreaM2:       e.SunlitAreaM2,
		ShadedAreaM2:       e.ShadedAreaM2,
		Weather:            e.Weather,
		ComputedAt:         ts,
		ExpiresAt:          ts.Add(48 * time.Hour),
		ComputationVersion: types.ComputationVersion,
	}
}

func validateRequest(patio types.Patio, from, to time.Time, stepMinutes int) error {
	if !patio.Footprint.Valid() {
		return types.NewAppError(types.ErrCodeValidationMissingPolygon, "patio footprint is missing or degenerate", nil)
	}
	c := patio.Centroid()
	if c.Lat < -90 || c.Lat > 90 {
		return types.NewAppError(types.ErrCodeValidationInvalidLat, "latitude out of range", nil)
	}
	if c.Lon < -180 || c.Lon > 180 {
		return types.NewAppError(types.ErrCodeValidationInvalidLon, "longitude out of range", nil)
	}
	if !to.After(from) {
		return types.NewAppError(types.ErrCodeValidationTimeRange, "range end must be after start", nil)
	}
	if stepMinutes <= 0 {
		return types.NewAppError(types.ErrCodeValidationStep, "step must be positive", nil)
	}
	if int(to.Sub(from).Minutes())/stepMinutes > MaxTimelineSlots {
		return types.NewAppError(types.ErrCodeValidationTimeRange, "requested range produces too many slots", nil)
	}
	return nil
}
