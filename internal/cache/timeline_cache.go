package cache

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"terrasol/internal/types"
)

// DefaultTimelineTTL bounds how long a served timeline may be reused before
// weather drift makes it worth recomputing.
const DefaultTimelineTTL = 5 * time.Minute

// TimelineCache stores assembled timelines keyed by patio, range, and step.
// Invalidation is generational: each patio carries a counter that is bumped
// when its geometry or surroundings change, which orphans every cached
// timeline built under the old generation. A nil *TimelineCache is valid and
// always misses.
type TimelineCache struct {
	store  Store
	ttl    time.Duration
	logger *slog.Logger
}

// NewTimelineCache creates a TimelineCache over the given store. A
// non-positive ttl falls back to DefaultTimelineTTL.
func NewTimelineCache(store Store, ttl time.Duration, logger *slog.Logger) *TimelineCache {
	if logger == nil {
		logger = slog.Default()
	}
	if ttl <= 0 {
		ttl = DefaultTimelineTTL
	}
	return &TimelineCache{store: store, ttl: ttl, logger: logger}
}

// Get returns the cached timeline for the request, or (nil, false) on a miss.
// Store errors are logged and reported as misses.
func (c *TimelineCache) Get(ctx context.Context, patioID string, rng types.TimeRange, stepMinutes int) (*types.SunExposureTimeline, bool) {
	if c == nil {
		return nil, false
	}

	key, err := c.timelineKey(ctx, patioID, rng, stepMinutes)
	if err != nil {
		c.logger.WarnContext(ctx, "timeline cache unavailable, treating as miss", "patio_id", patioID, "error", err)
		return nil, false
	}

	var tl types.SunExposureTimeline
	found, err := c.store.GetJSON(ctx, key, &tl)
	if err != nil {
		c.logger.WarnContext(ctx, "timeline cache read failed, treating as miss", "patio_id", patioID, "error", err)
		return nil, false
	}
	if !found {
		return nil, false
	}
	return &tl, true
}

// Put stores the timeline. Failures are logged and swallowed; the cache never
// fails a request.
func (c *TimelineCache) Put(ctx context.Context, tl *types.SunExposureTimeline) {
	if c == nil || tl == nil {
		return
	}

	key, err := c.timelineKey(ctx, tl.PatioID, tl.Range, tl.StepMinutes)
	if err != nil {
		c.logger.WarnContext(ctx, "timeline cache unavailable, skipping store", "patio_id", tl.PatioID, "error", err)
		return
	}

	if err := c.store.SetJSON(ctx, key, tl, c.ttl); err != nil {
		c.logger.WarnContext(ctx, "timeline cache write failed", "patio_id", tl.PatioID, "error", err)
	}
}

// Invalidate bumps the patio's generation counter, orphaning every cached
// timeline for it.
func (c *TimelineCache) Invalidate(ctx context.Context, patioID string) {
	if c == nil {
		return
	}
	if _, err := c.store.Incr(ctx, generationKey(patioID)); err != nil {
		c.logger.WarnContext(ctx, "timeline cache invalidation failed", "patio_id", patioID, "error", err)
	}
}

// timelineKey builds the versioned cache key for a timeline request. The
// generation counter read doubles as the liveness probe for Get and Put.
func (c *TimelineCache) timelineKey(ctx context.Context, patioID string, rng types.TimeRange, stepMinutes int) (string, error) {
	var gen int64
	found, err := c.store.GetJSON(ctx, generationKey(patioID), &gen)
	if err != nil {
		return "", err
	}
	if !found {
		gen = 0
	}
	return fmt.Sprintf("timeline:%s:g%d:%d:%d:%d", patioID, gen, rng.Start.Unix(), rng.End.Unix(), stepMinutes), nil
}

func generationKey(patioID string) string {
	return "timeline:gen:" + patioID
}
