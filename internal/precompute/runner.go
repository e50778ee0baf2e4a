// Package precompute implements the daily precomputation engine. A run
// claims its schedule row via a compare-and-set, fans out over patios with
// bounded concurrency, computes the full 10-minute slot grid for each, and
// persists every patio-day as one atomic batch.
package precompute

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"terrasol/internal/exposure"
	"terrasol/internal/types"
	"terrasol/internal/weather"
)

const (
	// DefaultStepMinutes is the precomputed slot grid resolution.
	DefaultStepMinutes = 10

	// DefaultConcurrency bounds the patio fan-out.
	DefaultConcurrency = 8

	// DefaultRetention is how long precomputed rows stay servable.
	DefaultRetention = 48 * time.Hour

	// DefaultMaxRetries bounds how often a failed date is re-enqueued.
	DefaultMaxRetries = 3

	// progressEvery controls how many processed patios elapse between
	// schedule progress updates.
	progressEvery = 10
)

// PatioSource supplies the patios to precompute and their shadow casters.
type PatioSource interface {
	ListPatios(ctx context.Context) ([]types.Patio, error)
	NearbyBuildings(ctx context.Context, patio types.Patio) ([]types.Building, error)
}

// ScheduleStore is the schedule state machine surface.
type ScheduleStore interface {
	Upsert(ctx context.Context, targetDate time.Time) (*types.PrecomputationSchedule, error)
	TryStart(ctx context.Context, targetDate time.Time, jobID string, patiosTotal int) (bool, error)
	UpdateProgress(ctx context.Context, targetDate time.Time, processed int) error
	Complete(ctx context.Context, targetDate time.Time, processed int) error
	Fail(ctx context.Context, targetDate time.Time, processed int, errMsg string) error
	Cancel(ctx context.Context, targetDate time.Time) (bool, error)
	ResetForRetry(ctx context.Context, targetDate time.Time, maxRetries int) (bool, error)
}

// BatchWriter persists one patio-day of precomputed rows atomically.
type BatchWriter interface {
	SaveBatch(ctx context.Context, rows []types.PrecomputedSunExposure) error
}

// Requeuer re-enqueues a failed date for another attempt.
type Requeuer interface {
	EnqueueDate(ctx context.Context, targetDate time.Time, reason string) error
}

// MetricsPublisher receives run statistics. Implementations must never fail
// the run.
type MetricsPublisher interface {
	PublishRunMetrics(ctx context.Context, stats RunStats)
}

// RunStats summarizes one precomputation run.
type RunStats struct {
	TargetDate      time.Time
	PatiosTotal     int
	PatiosProcessed int
	PatioFailures   int
	RowsWritten     int
	Duration        time.Duration
}

// Runner executes precomputation runs.
type Runner struct {
	patios    PatioSource
	schedules ScheduleStore
	writer    BatchWriter
	calc      *exposure.Calculator
	source    weather.Source
	requeue   Requeuer
	metrics   MetricsPublisher
	clock     types.Clock
	logger    *slog.Logger

	StepMinutes int
	Concurrency int
	Retention   time.Duration
	MaxRetries  int
}

// NewRunner creates a Runner. source, requeue, and metrics may be nil.
func NewRunner(patios PatioSource, schedules ScheduleStore, writer BatchWriter, calc *exposure.Calculator, source weather.Source, requeue Requeuer, metrics MetricsPublisher, clock types.Clock, logger *slog.Logger) *Runner {
	if logger == nil {
		logger = slog.Default()
	}
	if clock == nil {
		clock = types.RealClock{}
	}
	return &Runner{
		patios:      patios,
		schedules:   schedules,
		writer:      writer,
		calc:        calc,
		source:      source,
		requeue:     requeue,
		metrics:     metrics,
		clock:       clock,
		logger:      logger,
		StepMinutes: DefaultStepMinutes,
		Concurrency: DefaultConcurrency,
		Retention:   DefaultRetention,
		MaxRetries:  DefaultMaxRetries,
	}
}

// Run executes the precomputation for targetDate under jobID. A date already
// running or terminal yields a conflict error without side effects. Patio
// failures are isolated: the run continues, finishes as failed, and is
// re-enqueued while the retry budget lasts.
func (r *Runner) Run(ctx context.Context, targetDate time.Time, jobID string) (*RunStats, error) {
	started := r.clock.Now()
	date := midnightUTC(targetDate)

	if _, err := r.schedules.Upsert(ctx, date); err != nil {
		return nil, err
	}

	patios, err := r.patios.ListPatios(ctx)
	if err != nil {
		return nil, err
	}

	claimed, err := r.schedules.TryStart(ctx, date, jobID, len(patios))
	if err != nil {
		return nil, err
	}
	if !claimed {
		r.logger.InfoContext(ctx, "precompute run already claimed, skipping",
			"target_date", date.Format(time.DateOnly),
			"job_id", jobID,
		)
		return nil, types.NewAppError(types.ErrCodeConflictRunActive, "a run for this date is already active or finished", nil)
	}

	r.logger.InfoContext(ctx, "precompute run started",
		"target_date", date.Format(time.DateOnly),
		"job_id", jobID,
		"patios", len(patios),
		"step_minutes", r.StepMinutes,
	)

	stats := RunStats{TargetDate: date, PatiosTotal: len(patios)}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.Concurrency)

	var mu sync.Mutex
	var firstErr error

	for _, patio := range patios {
		g.Go(func() error {
			defer func() {
				if p := recover(); p != nil {
					mu.Lock()
					stats.PatioFailures++
					if firstErr == nil {
						firstErr = fmt.Errorf("panic computing patio %s: %v", patio.ID, p)
					}
					mu.Unlock()
					r.logger.ErrorContext(gctx, "panic during patio precompute",
						"patio_id", patio.ID,
						"panic", fmt.Sprint(p),
					)
				}
			}()

			rows, err := r.computePatioDay(gctx, patio, date)
			if err == nil {
				err = r.writer.SaveBatch(gctx, rows)
			}

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				stats.PatioFailures++
				if firstErr == nil {
					firstErr = err
				}
				r.logger.ErrorContext(gctx, "patio precompute failed",
					"patio_id", patio.ID,
					"target_date", date.Format(time.DateOnly),
					"error", err,
				)
				return nil
			}

			stats.PatiosProcessed++
			stats.RowsWritten += len(rows)
			if stats.PatiosProcessed%progressEvery == 0 {
				if perr := r.schedules.UpdateProgress(gctx, date, stats.PatiosProcessed); perr != nil {
					r.logger.WarnContext(gctx, "failed to update run progress", "error", perr)
				}
			}
			return nil
		})
	}
	_ = g.Wait()

	stats.Duration = r.clock.Now().Sub(started)

	if ctx.Err() != nil {
		if _, cerr := r.schedules.Cancel(context.WithoutCancel(ctx), date); cerr != nil {
			r.logger.ErrorContext(ctx, "failed to mark cancelled run", "error", cerr)
		}
		return &stats, types.NewAppError(types.ErrCodeInternalUnexpected, "precompute run cancelled", ctx.Err())
	}

	if stats.PatioFailures > 0 {
		msg := fmt.Sprintf("%d of %d patios failed: %v", stats.PatioFailures, stats.PatiosTotal, firstErr)
		if err := r.schedules.Fail(ctx, date, stats.PatiosProcessed, msg); err != nil {
			return &stats, err
		}
		r.maybeRequeue(ctx, date)
		r.publish(ctx, stats)
		return &stats, types.NewAppError(types.ErrCodeInternalUnexpected, msg, firstErr)
	}

	if err := r.schedules.Complete(ctx, date, stats.PatiosProcessed); err != nil {
		return &stats, err
	}

	r.logger.InfoContext(ctx, "precompute run completed",
		"target_date", date.Format(time.DateOnly),
		"job_id", jobID,
		"patios_processed", stats.PatiosProcessed,
		"rows_written", stats.RowsWritten,
		"duration", stats.Duration.String(),
	)
	r.publish(ctx, stats)
	return &stats, nil
}

// computePatioDay builds the full slot grid for one patio.
func (r *Runner) computePatioDay(ctx context.Context, patio types.Patio, date time.Time) ([]types.PrecomputedSunExposure, error) {
	buildings, err := r.patios.NearbyBuildings(ctx, patio)
	if err != nil {
		return nil, err
	}

	samples := r.fetchWeather(ctx, patio, date)

	step := time.Duration(r.StepMinutes) * time.Minute
	end := date.AddDate(0, 0, 1)
	computedAt := r.clock.Now()

	var rows []types.PrecomputedSunExposure
	for slot := date; slot.Before(end); slot = slot.Add(step) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		w := slotWeather(slot, samples)
		result := r.calc.Compute(patio, buildings, slot, w)

		rows = append(rows, types.PrecomputedSunExposure{
			PatioID:            patio.ID,
			Date:               date,
			Timestamp:          slot,
			ExposurePct:        result.ExposurePct,
			State:              result.State,
			ConfidencePct:      result.ConfidencePct,
			SunlitAreaM2:       result.SunlitAreaM2,
			ShadedAreaM2:       result.ShadedAreaM2,
			Weather:            result.Weather,
			ComputedAt:         computedAt,
			ExpiresAt:          end.Add(r.Retention),
			ComputationVersion: types.ComputationVersion,
		})
	}
	return rows, nil
}

func (r *Runner) fetchWeather(ctx context.Context, patio types.Patio, date time.Time) []types.WeatherSlice {
	if r.source == nil {
		return nil
	}
	rng := types.TimeRange{Start: date, End: date.AddDate(0, 0, 1)}
	samples, err := r.source.Samples(ctx, patio.Centroid(), rng)
	if err != nil {
		r.logger.WarnContext(ctx, "weather unavailable for precompute, rows will be estimated",
			"patio_id", patio.ID,
			"error", err,
		)
		return nil
	}
	return samples
}

func (r *Runner) maybeRequeue(ctx context.Context, date time.Time) {
	if r.requeue == nil {
		return
	}
	reset, err := r.schedules.ResetForRetry(ctx, date, r.MaxRetries)
	if err != nil {
		r.logger.ErrorContext(ctx, "failed to reset schedule for retry", "error", err)
		return
	}
	if !reset {
		r.logger.WarnContext(ctx, "retry budget exhausted, leaving run failed",
			"target_date", date.Format(time.DateOnly),
		)
		return
	}
	if err := r.requeue.EnqueueDate(ctx, date, "retry after failed run"); err != nil {
		r.logger.ErrorContext(ctx, "failed to re-enqueue run", "error", err)
	}
}

func (r *Runner) publish(ctx context.Context, stats RunStats) {
	if r.metrics != nil {
		r.metrics.PublishRunMetrics(ctx, stats)
	}
}

// slotWeather linearly interpolates the slot's weather from time-sorted
// samples. Assumes samples arrive ordered; out-of-order inputs still clamp
// safely inside InterpolateTemporal.
func slotWeather(slot time.Time, samples []types.WeatherSlice) *types.ProcessedWeather {
	if len(samples) == 0 {
		return nil
	}
	for i := 0; i < len(samples)-1; i++ {
		if !slot.Before(samples[i].Timestamp) && slot.Before(samples[i+1].Timestamp) {
			w := weather.InterpolateTemporal(slot, samples[i], samples[i+1])
			return &w
		}
	}
	nearest := samples[0]
	if slot.After(samples[len(samples)-1].Timestamp) {
		nearest = samples[len(samples)-1]
	}
	w := weather.InterpolateTemporal(slot, nearest, nearest)
	return &w
}

func midnightUTC(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
}
