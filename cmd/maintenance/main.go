// Package main is the entrypoint for the Maintenance Lambda function.
//
// The Lambda acts as a maintenance multiplexer: EventBridge rules send JSON
// payloads naming a TaskType, and the handler routes execution to the
// appropriate scheduler service. Consolidating the low-frequency tasks into a
// single Lambda reduces cold starts and infrastructure sprawl.
//
// Tasks:
//   - retention_sweep: archive and purge precomputed rows past their expiry.
//   - mark_patio_stale: flag a patio's rows after an upstream geometry change
//     and enqueue refresh runs.
//   - enqueue_run: enqueue precomputation for the upcoming dates (nightly).
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/jackc/pgx/v5/pgxpool"

	"terrasol/internal/cache"
	"terrasol/internal/config"
	"terrasol/internal/db"
	"terrasol/internal/queue"
	"terrasol/internal/scheduler"
)

// RetentionSweeper runs the retention sweep.
type RetentionSweeper interface {
	Sweep(ctx context.Context) (scheduler.SweepStats, error)
}

// StalenessMarker flags a patio's precomputed rows.
type StalenessMarker interface {
	MarkPatioStale(ctx context.Context, patioID string) (int64, error)
}

// RunEnqueuer enqueues precomputation runs.
type RunEnqueuer interface {
	EnqueueDate(ctx context.Context, targetDate time.Time, reason string) error
}

// Handler holds the dependencies for the maintenance Lambda handler.
type Handler struct {
	retention RetentionSweeper
	staleness StalenessMarker
	enqueuer  RunEnqueuer
	logger    *slog.Logger
}

// Handle routes a MaintenancePayload to the appropriate service.
func (h *Handler) Handle(ctx context.Context, payload scheduler.MaintenancePayload) (string, error) {
	now := time.Now().UTC()
	if payload.ReferenceTime != nil {
		now = payload.ReferenceTime.UTC()
	}

	h.logger.InfoContext(ctx, "maintenance handler invoked",
		"task", string(payload.Task),
		"reference_time", now.Format(time.RFC3339),
	)

	switch payload.Task {
	case scheduler.TaskRetentionSweep:
		stats, err := h.retention.Sweep(ctx)
		if err != nil {
			return "", fmt.Errorf("retention sweep failed: %w", err)
		}
		return fmt.Sprintf("retention sweep complete: %d rows purged, %d archived in %d batches",
			stats.RowsPurged, stats.RowsArchived, stats.Batches), nil

	case scheduler.TaskMarkPatioStale:
		if payload.PatioID == "" {
			return "", fmt.Errorf("mark_patio_stale requires patio_id")
		}
		flagged, err := h.staleness.MarkPatioStale(ctx, payload.PatioID)
		if err != nil {
			return "", fmt.Errorf("mark patio stale failed: %w", err)
		}
		return fmt.Sprintf("patio %s marked stale: %d rows flagged", payload.PatioID, flagged), nil

	case scheduler.TaskEnqueueRun:
		day := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
		enqueued := 0
		for i := 0; i < scheduler.RefreshHorizonDays; i++ {
			date := day.AddDate(0, 0, i)
			if err := h.enqueuer.EnqueueDate(ctx, date, "scheduled horizon refresh"); err != nil {
				return "", fmt.Errorf("enqueueing run for %s: %w", date.Format(time.DateOnly), err)
			}
			enqueued++
		}
		return fmt.Sprintf("enqueued %d precompute runs", enqueued), nil

	case "":
		return "", fmt.Errorf("empty task type in maintenance payload")

	default:
		return "", fmt.Errorf("unknown task type: %q", payload.Task)
	}
}

func parseLogLevel(s string) slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return slog.LevelInfo
	}
	return level
}

func main() {
	cfg := config.MustLoad()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: parseLogLevel(cfg.LogLevel),
	}))
	slog.SetDefault(logger)

	logger.Info("maintenance Lambda initializing (cold start)",
		"environment", cfg.Environment,
		"service", cfg.Service,
	)

	ctx := context.Background()

	pool, err := pgxpool.New(ctx, cfg.Database.URL)
	if err != nil {
		logger.Error("failed to create database pool", "error", err)
		os.Exit(1)
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.AWS.Region))
	if err != nil {
		logger.Error("failed to load AWS SDK config", "error", err)
		os.Exit(1)
	}

	sqsClient := sqs.NewFromConfig(awsCfg, func(o *sqs.Options) {
		if cfg.AWS.EndpointURL != "" {
			o.BaseEndpoint = aws.String(cfg.AWS.EndpointURL)
		}
	})

	var sink scheduler.ArchiveSink
	if cfg.AWS.ArchiveBucket != "" {
		s3Client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
			if cfg.AWS.EndpointURL != "" {
				o.BaseEndpoint = aws.String(cfg.AWS.EndpointURL)
				o.UsePathStyle = true
			}
		})
		sink = scheduler.NewS3ArchiveSink(s3Client, cfg.AWS.ArchiveBucket, logger)
	} else {
		logger.Warn("ARCHIVE_BUCKET not set, expired rows will be purged without archival")
	}

	var tlCache *cache.TimelineCache
	if cfg.Redis.Addr != "" {
		client, err := cache.NewClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, logger)
		if err != nil {
			logger.Warn("timeline cache unavailable, staleness will skip invalidation", "error", err)
		} else {
			tlCache = cache.NewTimelineCache(client, cfg.Redis.TimelineTTL, logger)
		}
	}

	exposureRepo := db.NewExposureRepository(pool)
	trigger := queue.NewPrecomputeTrigger(sqsClient, cfg.AWS.PrecomputeQueue, nil, logger)

	retention := scheduler.NewRetentionService(exposureRepo, sink, nil, logger)
	retention.BatchSize = cfg.Engine.SweepBatchSize
	staleness := scheduler.NewStalenessService(exposureRepo, tlCache, trigger, nil, logger)

	handler := &Handler{
		retention: retention,
		staleness: staleness,
		enqueuer:  trigger,
		logger:    logger,
	}

	logger.Info("maintenance Lambda initialized",
		"archive_bucket", cfg.AWS.ArchiveBucket,
		"sweep_batch_size", cfg.Engine.SweepBatchSize,
	)

	lambda.Start(handler.Handle)
}
