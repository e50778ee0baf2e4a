package weather

import (
	"context"
	"log/slog"
	"time"

	"github.com/sony/gobreaker/v2"

	"terrasol/internal/geo"
	"terrasol/internal/types"
)

// Source is the collaborator interface through which the engine obtains raw
// weather samples for a location and time range. Implementations wrap the
// external ingestion service; the engine itself performs no network I/O.
type Source interface {
	Samples(ctx context.Context, near geo.Point, rng types.TimeRange) ([]types.WeatherSlice, error)
}

// GuardedSource wraps a Source with a circuit breaker so that a failing
// upstream degrades requests to "no weather available" (capped confidence)
// instead of stalling the on-demand path behind repeated timeouts.
type GuardedSource struct {
	inner   Source
	breaker *gobreaker.CircuitBreaker[[]types.WeatherSlice]
	logger  *slog.Logger
}

// NewGuardedSource creates a GuardedSource around the given Source.
func NewGuardedSource(inner Source, logger *slog.Logger) *GuardedSource {
	if logger == nil {
		logger = slog.Default()
	}

	cb := gobreaker.NewCircuitBreaker[[]types.WeatherSlice](gobreaker.Settings{
		Name:        "weather-source",
		MaxRequests: 1,
		Interval:    60 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures > 5
		},
	})

	return &GuardedSource{inner: inner, breaker: cb, logger: logger}
}

// Samples fetches raw samples through the breaker. Upstream or breaker-open
// failures surface as an upstream AppError; callers treat that as "weather
// unknown" rather than failing the exposure request.
func (g *GuardedSource) Samples(ctx context.Context, near geo.Point, rng types.TimeRange) ([]types.WeatherSlice, error) {
	slices, err := g.breaker.Execute(func() ([]types.WeatherSlice, error) {
		return g.inner.Samples(ctx, near, rng)
	})
	if err != nil {
		g.logger.WarnContext(ctx, "weather source unavailable",
			"error", err,
			"breaker_state", g.breaker.State().String(),
		)
		return nil, types.NewAppError(types.ErrCodeUpstreamWeather, "weather source unavailable", err)
	}
	return slices, nil
}
