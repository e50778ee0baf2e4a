package scheduler

import (
	"bytes"
	"context"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"terrasol/internal/types"
)

// S3PutClient abstracts the S3 PutObject operation for testability.
type S3PutClient interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3ArchiveSink stores archive batches in an S3 bucket.
type S3ArchiveSink struct {
	client S3PutClient
	bucket string
	logger *slog.Logger
}

// NewS3ArchiveSink creates an S3ArchiveSink targeting the given bucket.
func NewS3ArchiveSink(client S3PutClient, bucket string, logger *slog.Logger) *S3ArchiveSink {
	if logger == nil {
		logger = slog.Default()
	}
	return &S3ArchiveSink{client: client, bucket: bucket, logger: logger}
}

// Store uploads one compressed archive object.
func (s *S3ArchiveSink) Store(ctx context.Context, key string, data []byte) error {
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("application/zstd"),
	})
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalUnexpected, "failed to upload archive object", err)
	}

	s.logger.DebugContext(ctx, "archive object stored",
		"bucket", s.bucket,
		"key", key,
		"bytes", len(data),
	)
	return nil
}
