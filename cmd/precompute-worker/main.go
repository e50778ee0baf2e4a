// Package main is the entrypoint for the Precompute Worker Lambda function.
//
// The worker consumes PrecomputeMessages from the precompute SQS queue and
// executes one full precomputation run per message. Runs are idempotent per
// target date: the schedule row's compare-and-set rejects a second starter,
// so duplicate or redelivered messages are acknowledged without recomputing.
//
// Cold start:
//  1. Initialize structured logger.
//  2. Load and validate configuration from the environment.
//  3. Open the pgx connection pool.
//  4. Initialize SQS and CloudWatch clients.
//  5. Wire repositories, calculator, and the precompute Runner.
//  6. Register handler and call lambda.Start.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/jackc/pgx/v5/pgxpool"

	"terrasol/internal/astro"
	"terrasol/internal/config"
	"terrasol/internal/db"
	"terrasol/internal/exposure"
	"terrasol/internal/metrics"
	"terrasol/internal/precompute"
	"terrasol/internal/queue"
	"terrasol/internal/types"
	"terrasol/internal/weather"
)

// Handler holds the dependencies for the precompute worker Lambda handler.
type Handler struct {
	runner *precompute.Runner
	logger *slog.Logger
}

// Handle processes an SQS event containing one or more precompute messages.
// Each message is processed independently; messages that fail are returned in
// batchItemFailures so SQS retries only those. A run conflict means another
// worker already owns the date and is acknowledged as success.
func (h *Handler) Handle(ctx context.Context, sqsEvent events.SQSEvent) (events.SQSEventResponse, error) {
	response := events.SQSEventResponse{}

	for _, record := range sqsEvent.Records {
		if err := h.processMessage(ctx, record); err != nil {
			h.logger.ErrorContext(ctx, "failed to process precompute message",
				"message_id", record.MessageId,
				"error", err,
			)
			response.BatchItemFailures = append(response.BatchItemFailures,
				events.SQSBatchItemFailure{ItemIdentifier: record.MessageId},
			)
		}
	}

	return response, nil
}

// processMessage executes the precomputation run for a single message.
func (h *Handler) processMessage(ctx context.Context, record events.SQSMessage) error {
	var msg types.PrecomputeMessage
	if err := json.Unmarshal([]byte(record.Body), &msg); err != nil {
		h.logger.ErrorContext(ctx, "failed to unmarshal precompute message",
			"message_id", record.MessageId,
			"error", err,
		)
		// Permanent parse failure, do not retry.
		return nil
	}

	h.logger.InfoContext(ctx, "processing precompute message",
		"job_id", msg.JobID,
		"target_date", msg.TargetDate.Format("2006-01-02"),
		"reason", msg.Reason,
	)

	stats, err := h.runner.Run(ctx, msg.TargetDate, msg.JobID)
	if err != nil {
		var appErr *types.AppError
		if errors.As(err, &appErr) && appErr.Code == types.ErrCodeConflictRunActive {
			h.logger.InfoContext(ctx, "run already active for date, acknowledging message",
				"job_id", msg.JobID,
				"target_date", msg.TargetDate.Format("2006-01-02"),
			)
			return nil
		}
		return err
	}

	h.logger.InfoContext(ctx, "precompute message processed",
		"job_id", msg.JobID,
		"patios_processed", stats.PatiosProcessed,
		"rows_written", stats.RowsWritten,
	)
	return nil
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

	logger.Info("precompute worker initializing (cold start)",
		"environment", cfg.Environment,
		"service", cfg.Service,
	)

	ctx := context.Background()

	poolCfg, err := pgxpool.ParseConfig(cfg.Database.URL)
	if err != nil {
		logger.Error("failed to parse database URL", "error", err)
		os.Exit(1)
	}
	poolCfg.MaxConns = int32(cfg.Database.MaxConns)
	poolCfg.MinConns = int32(cfg.Database.MinConns)
	poolCfg.MaxConnLifetime = cfg.Database.MaxConnLifetime
	poolCfg.ConnConfig.ConnectTimeout = cfg.Database.AcquireTimeout

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
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
	cwClient := cloudwatch.NewFromConfig(awsCfg, func(o *cloudwatch.Options) {
		if cfg.AWS.EndpointURL != "" {
			o.BaseEndpoint = aws.String(cfg.AWS.EndpointURL)
		}
	})

	calc := exposure.NewCalculator(astro.NewCalculator(astro.CentralEuropeanTime{}), logger, nil)
	source := weather.NewGuardedSource(db.NewWeatherRepository(pool), logger)
	trigger := queue.NewPrecomputeTrigger(sqsClient, cfg.AWS.PrecomputeQueue, nil, logger)
	runMetrics := metrics.NewRunMetrics(cwClient, logger)

	runner := precompute.NewRunner(
		db.NewPatioRepository(pool),
		db.NewScheduleRepository(pool),
		db.NewTxExposureWriter(pool),
		calc,
		source,
		trigger,
		runMetrics,
		nil,
		logger,
	)
	runner.StepMinutes = cfg.Engine.StepMinutes
	runner.Concurrency = cfg.Engine.Concurrency
	runner.Retention = cfg.Engine.Retention
	runner.MaxRetries = cfg.Engine.MaxRetries

	handler := &Handler{runner: runner, logger: logger}

	logger.Info("precompute worker initialized",
		"precompute_queue", cfg.AWS.PrecomputeQueue,
		"step_minutes", cfg.Engine.StepMinutes,
		"concurrency", cfg.Engine.Concurrency,
	)

	// Local mode: read a JSON SQS event from stdin instead of starting the
	// Lambda runtime, for integration testing without the AWS Lambda RIE.
	if cfg.Environment == "local" {
		logger.Info("APP_ENV=local: reading SQS event from stdin")
		payload, err := io.ReadAll(os.Stdin)
		if err != nil {
			logger.Error("failed to read stdin", "error", err)
			os.Exit(1)
		}
		var sqsEvent events.SQSEvent
		if err := json.Unmarshal(payload, &sqsEvent); err != nil {
			logger.Error("failed to parse stdin as SQS event", "error", err)
			os.Exit(1)
		}
		response, err := handler.Handle(ctx, sqsEvent)
		if err != nil {
			logger.Error("handler execution failed", "error", err)
			os.Exit(1)
		}
		if len(response.BatchItemFailures) > 0 {
			respJSON, _ := json.MarshalIndent(response, "", "  ")
			fmt.Fprintln(os.Stderr, string(respJSON))
			os.Exit(1)
		}
		logger.Info("handler execution completed",
			"records_processed", len(sqsEvent.Records),
		)
		return
	}

	lambda.Start(handler.Handle)
}
