// Package queue provides the SQS-based producer that enqueues precomputation
// runs for target dates.
package queue

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	sqsTypes "github.com/aws/aws-sdk-go-v2/service/sqs/types"
	"github.com/google/uuid"

	"terrasol/internal/types"
)

// SQSSender abstracts the SQS SendMessage operation for testability.
// Production code uses the *sqs.Client from aws-sdk-go-v2.
type SQSSender interface {
	SendMessage(ctx context.Context, params *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error)
}

// PrecomputeTrigger serializes PrecomputeMessages and sends them to the
// precompute worker queue.
type PrecomputeTrigger struct {
	client   SQSSender
	queueURL string
	clock    types.Clock
	logger   *slog.Logger
}

// NewPrecomputeTrigger creates a PrecomputeTrigger for the given queue URL.
func NewPrecomputeTrigger(client SQSSender, queueURL string, clock types.Clock, logger *slog.Logger) *PrecomputeTrigger {
	if logger == nil {
		logger = slog.Default()
	}
	if clock == nil {
		clock = types.RealClock{}
	}
	return &PrecomputeTrigger{client: client, queueURL: queueURL, clock: clock, logger: logger}
}

// EnqueueDate dispatches a precomputation request for the target date. The
// worker's compare-and-set makes duplicate messages for the same date
// harmless.
func (t *PrecomputeTrigger) EnqueueDate(ctx context.Context, targetDate time.Time, reason string) error {
	msg := types.PrecomputeMessage{
		JobID:      uuid.New().String(),
		TargetDate: targetDate.UTC(),
		Reason:     reason,
		EnqueuedAt: t.clock.Now(),
	}

	body, err := json.Marshal(msg)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalUnexpected, "failed to marshal precompute message", err)
	}

	input := &sqs.SendMessageInput{
		QueueUrl:    aws.String(t.queueURL),
		MessageBody: aws.String(string(body)),
		MessageAttributes: map[string]sqsTypes.MessageAttributeValue{
			"reason": {
				DataType:    aws.String("String"),
				StringValue: aws.String(reason),
			},
		},
	}

	if _, err := t.client.SendMessage(ctx, input); err != nil {
		return types.NewAppError(types.ErrCodeUpstreamQueue, "failed to send precompute message", err)
	}

	t.logger.InfoContext(ctx, "precompute message sent",
		"queue_url", t.queueURL,
		"job_id", msg.JobID,
		"target_date", msg.TargetDate.Format(time.DateOnly),
		"reason", reason,
	)
	return nil
}
