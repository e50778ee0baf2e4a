package scheduler

import (
	"context"
	"log/slog"
	"time"

	"terrasol/internal/cache"
	"terrasol/internal/types"
)

// RefreshHorizonDays is how many target dates get a fresh run enqueued after
// a patio's surroundings change.
const RefreshHorizonDays = 2

// StalenessStore is the repository surface for flagging rows.
type StalenessStore interface {
	MarkStale(ctx context.Context, patioID string, from time.Time) (int64, error)
}

// RunTrigger enqueues precomputation runs.
type RunTrigger interface {
	EnqueueDate(ctx context.Context, targetDate time.Time, reason string) error
}

// StalenessService reacts to upstream geometry changes: affected precomputed
// rows are flagged (not deleted, they stay servable as degraded fallbacks),
// the hot cache is invalidated, and fresh runs are enqueued.
type StalenessService struct {
	store   StalenessStore
	cache   *cache.TimelineCache
	trigger RunTrigger
	clock   types.Clock
	logger  *slog.Logger
}

// NewStalenessService creates a StalenessService. cache and trigger may be
// nil.
func NewStalenessService(store StalenessStore, tlCache *cache.TimelineCache, trigger RunTrigger, clock types.Clock, logger *slog.Logger) *StalenessService {
	if logger == nil {
		logger = slog.Default()
	}
	if clock == nil {
		clock = types.RealClock{}
	}
	return &StalenessService{store: store, cache: tlCache, trigger: trigger, clock: clock, logger: logger}
}

// MarkPatioStale flags the patio's future precomputed rows and schedules
// their replacement. Returns the number of rows flagged. Enqueue failures
// are logged, not fatal: the stale flag alone already degrades confidence
// correctly.
func (s *StalenessService) MarkPatioStale(ctx context.Context, patioID string) (int64, error) {
	now := s.clock.Now()

	flagged, err := s.store.MarkStale(ctx, patioID, now)
	if err != nil {
		return 0, err
	}

	s.cache.Invalidate(ctx, patioID)

	if s.trigger != nil {
		day := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
		for i := 0; i < RefreshHorizonDays; i++ {
			date := day.AddDate(0, 0, i)
			if err := s.trigger.EnqueueDate(ctx, date, "patio geometry changed: "+patioID); err != nil {
				s.logger.ErrorContext(ctx, "failed to enqueue refresh run",
					"patio_id", patioID,
					"target_date", date.Format(time.DateOnly),
					"error", err,
				)
			}
		}
	}

	s.logger.InfoContext(ctx, "patio marked stale",
		"patio_id", patioID,
		"rows_flagged", flagged,
	)
	return flagged, nil
}
