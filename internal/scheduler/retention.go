// Package scheduler implements the maintenance services run by the
// maintenance Lambda: retention sweeps over expired precomputed rows and
// staleness handling for upstream geometry changes.
package scheduler

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/klauspost/compress/zstd"

	"terrasol/internal/types"
)

const (
	// DefaultSweepBatchSize bounds rows handled per archive/purge cycle.
	DefaultSweepBatchSize = 500

	// maxSweepBatches bounds one Sweep invocation so a huge backlog is
	// drained across several maintenance runs instead of one long one.
	maxSweepBatches = 50
)

// ExpiredStore is the repository surface the retention sweep needs.
type ExpiredStore interface {
	ListExpired(ctx context.Context, now time.Time, limit int) ([]types.PrecomputedSunExposure, error)
	PurgeExpired(ctx context.Context, now time.Time, limit int) (int64, error)
}

// ArchiveSink receives compressed archive objects. Implementations are
// typically S3-backed.
type ArchiveSink interface {
	Store(ctx context.Context, key string, data []byte) error
}

// SweepStats summarizes one retention sweep.
type SweepStats struct {
	RowsArchived int
	RowsPurged   int64
	Batches      int
}

// RetentionService archives and purges precomputed rows past their expiry.
type RetentionService struct {
	store  ExpiredStore
	sink   ArchiveSink
	clock  types.Clock
	logger *slog.Logger

	BatchSize int
}

// NewRetentionService creates a RetentionService. sink may be nil, in which
// case expired rows are purged without archival.
func NewRetentionService(store ExpiredStore, sink ArchiveSink, clock types.Clock, logger *slog.Logger) *RetentionService {
	if logger == nil {
		logger = slog.Default()
	}
	if clock == nil {
		clock = types.RealClock{}
	}
	return &RetentionService{
		store:     store,
		sink:      sink,
		clock:     clock,
		logger:    logger,
		BatchSize: DefaultSweepBatchSize,
	}
}

// Sweep drains expired rows in fixed-size batches. Each batch is archived as
// zstd-compressed JSON before being purged; an archive failure stops the
// sweep so no row is purged unarchived.
func (s *RetentionService) Sweep(ctx context.Context) (SweepStats, error) {
	now := s.clock.Now()
	var stats SweepStats

	for stats.Batches < maxSweepBatches {
		if err := ctx.Err(); err != nil {
			return stats, err
		}

		rows, err := s.store.ListExpired(ctx, now, s.BatchSize)
		if err != nil {
			return stats, err
		}
		if len(rows) == 0 {
			break
		}

		if s.sink != nil {
			if err := s.archiveBatch(ctx, now, stats.Batches, rows); err != nil {
				return stats, err
			}
			stats.RowsArchived += len(rows)
		}

		purged, err := s.store.PurgeExpired(ctx, now, s.BatchSize)
		if err != nil {
			return stats, err
		}
		stats.RowsPurged += purged
		stats.Batches++

		if purged == 0 {
			break
		}
	}

	s.logger.InfoContext(ctx, "retention sweep finished",
		"rows_archived", stats.RowsArchived,
		"rows_purged", stats.RowsPurged,
		"batches", stats.Batches,
	)
	return stats, nil
}

func (s *RetentionService) archiveBatch(ctx context.Context, now time.Time, batch int, rows []types.PrecomputedSunExposure) error {
	payload, err := json.Marshal(rows)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalUnexpected, "failed to marshal archive batch", err)
	}

	enc, err := zstd.NewWriter(nil)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalUnexpected, "failed to create zstd encoder", err)
	}
	compressed := enc.EncodeAll(payload, nil)
	enc.Close()

	key := fmt.Sprintf("archive/exposures/%s/batch-%03d.json.zst", now.Format("2006-01-02T15-04-05"), batch)
	if err := s.sink.Store(ctx, key, compressed); err != nil {
		return types.NewAppError(types.ErrCodeInternalUnexpected, "failed to store archive batch", err)
	}
	return nil
}
