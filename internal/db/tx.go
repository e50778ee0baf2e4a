package db

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"terrasol/internal/types"
)

// TxExposureWriter persists precomputed batches atomically: each SaveBatch
// call runs inside its own transaction so a patio-day either lands whole or
// not at all.
type TxExposureWriter struct {
	pool *pgxpool.Pool
}

// NewTxExposureWriter creates a TxExposureWriter over the given pool.
func NewTxExposureWriter(pool *pgxpool.Pool) *TxExposureWriter {
	return &TxExposureWriter{pool: pool}
}

// SaveBatch writes the rows in a single transaction.
func (w *TxExposureWriter) SaveBatch(ctx context.Context, rows []types.PrecomputedSunExposure) error {
	if len(rows) == 0 {
		return nil
	}

	tx, err := w.pool.Begin(ctx)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to begin transaction", err)
	}
	defer tx.Rollback(ctx)

	if err := NewExposureRepository(tx).SaveBatch(ctx, rows); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to commit exposure batch", err)
	}
	return nil
}
