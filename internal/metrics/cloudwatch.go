// Package metrics publishes precomputation run statistics to CloudWatch.
// Metric emission is best-effort: failures are logged, never propagated.
package metrics

import (
	"context"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	cwtypes "github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"

	"terrasol/internal/precompute"
)

// Namespace is the CloudWatch namespace for all engine metrics.
const Namespace = "Terrasol/Precompute"

// Metric names.
const (
	metricRunDuration     = "RunDuration"
	metricPatiosProcessed = "PatiosProcessed"
	metricPatioFailures   = "PatioFailures"
	metricRowsWritten     = "RowsWritten"
)

// CloudWatchClient abstracts the CloudWatch PutMetricData operation for
// testability.
type CloudWatchClient interface {
	PutMetricData(ctx context.Context, params *cloudwatch.PutMetricDataInput, optFns ...func(*cloudwatch.Options)) (*cloudwatch.PutMetricDataOutput, error)
}

// RunMetrics publishes per-run statistics under the engine namespace.
type RunMetrics struct {
	client CloudWatchClient
	logger *slog.Logger
}

// NewRunMetrics creates a RunMetrics publisher.
func NewRunMetrics(client CloudWatchClient, logger *slog.Logger) *RunMetrics {
	if logger == nil {
		logger = slog.Default()
	}
	return &RunMetrics{client: client, logger: logger}
}

// PublishRunMetrics emits one datum per statistic, dimensioned by target
// date.
func (m *RunMetrics) PublishRunMetrics(ctx context.Context, stats precompute.RunStats) {
	dims := []cwtypes.Dimension{
		{
			Name:  aws.String("TargetDate"),
			Value: aws.String(stats.TargetDate.Format("2006-01-02")),
		},
	}

	input := &cloudwatch.PutMetricDataInput{
		Namespace: aws.String(Namespace),
		MetricData: []cwtypes.MetricDatum{
			{
				MetricName: aws.String(metricRunDuration),
				Value:      aws.Float64(float64(stats.Duration.Milliseconds())),
				Unit:       cwtypes.StandardUnitMilliseconds,
				Dimensions: dims,
			},
			{
				MetricName: aws.String(metricPatiosProcessed),
				Value:      aws.Float64(float64(stats.PatiosProcessed)),
				Unit:       cwtypes.StandardUnitCount,
				Dimensions: dims,
			},
			{
				MetricName: aws.String(metricPatioFailures),
				Value:      aws.Float64(float64(stats.PatioFailures)),
				Unit:       cwtypes.StandardUnitCount,
				Dimensions: dims,
			},
			{
				MetricName: aws.String(metricRowsWritten),
				Value:      aws.Float64(float64(stats.RowsWritten)),
				Unit:       cwtypes.StandardUnitCount,
				Dimensions: dims,
			},
		},
	}

	if _, err := m.client.PutMetricData(ctx, input); err != nil {
		m.logger.ErrorContext(ctx, "failed to publish run metrics",
			"target_date", stats.TargetDate.Format("2006-01-02"),
			"error", err,
		)
	}
}
