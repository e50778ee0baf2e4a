package db

import (
	"context"
	"encoding/json"
	"time"

	"terrasol/internal/types"
)

// ExposureRepository provides data access for the precomputed_sun_exposures
// table. Rows are date-partitioned snapshots written by precomputation runs
// and read by the timeline service's tolerance lookup.
type ExposureRepository struct {
	db DBTX
}

// NewExposureRepository creates an ExposureRepository backed by the given
// database connection (pool or transaction).
func NewExposureRepository(db DBTX) *ExposureRepository {
	return &ExposureRepository{db: db}
}

// SaveBatch upserts a batch of precomputed rows. A re-run for the same date
// overwrites prior rows for the same (patio_id, timestamp) and clears the
// stale flag. Callers wrap this in a transaction when a whole patio-day must
// land atomically.
func (r *ExposureRepository) SaveBatch(ctx context.Context, rows []types.PrecomputedSunExposure) error {
	if len(rows) == 0 {
		return nil
	}

	for i := range rows {
		row := &rows[i]

		var weatherJSON []byte
		if row.Weather != nil {
			b, err := json.Marshal(row.Weather)
			if err != nil {
				return types.NewAppError(types.ErrCodeInternalUnexpected, "failed to marshal weather snapshot", err)
			}
			weatherJSON = b
		}

		_, err := r.db.Exec(ctx,
			`INSERT INTO precomputed_sun_exposures
			 (patio_id, date, timestamp, exposure_pct, state, confidence_pct,
			  sunlit_area_m2, shaded_area_m2, weather, computed_at, expires_at,
			  computation_version, is_stale)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, FALSE)
			 ON CONFLICT (patio_id, timestamp) DO UPDATE SET
			   date = EXCLUDED.date,
			   exposure_pct = EXCLUDED.exposure_pct,
			   state = EXCLUDED.state,
			   confidence_pct = EXCLUDED.confidence_pct,
			   sunlit_area_m2 = EXCLUDED.sunlit_area_m2,
			   shaded_area_m2 = EXCLUDED.shaded_area_m2,
			   weather = EXCLUDED.weather,
			   computed_at = EXCLUDED.computed_at,
			   expires_at = EXCLUDED.expires_at,
			   computation_version = EXCLUDED.computation_version,
			   is_stale = FALSE`,
			row.PatioID,
			row.Date,
			row.Timestamp,
			row.ExposurePct,
			string(row.State),
			row.ConfidencePct,
			row.SunlitAreaM2,
			row.ShadedAreaM2,
			weatherJSON,
			row.ComputedAt,
			row.ExpiresAt,
			row.ComputationVersion,
		)
		if err != nil {
			return types.NewAppError(types.ErrCodeInternalDB, "failed to save precomputed exposure", err)
		}
	}
	return nil
}

// FindNearest returns the precomputed row closest to the requested instant
// within the tolerance window, restricted to the current computation version.
// A miss is normal and returns (nil, nil); the caller falls back to realtime
// computation.
func (r *ExposureRepository) FindNearest(ctx context.Context, patioID string, at time.Time, tolerance time.Duration) (*types.PrecomputedSunExposure, error) {
	rows, err := r.db.Query(ctx,
		`SELECT patio_id, date, timestamp, exposure_pct, state, confidence_pct,
		        sunlit_area_m2, shaded_area_m2, weather, computed_at, expires_at,
		        computation_version, is_stale
		 FROM precomputed_sun_exposures
		 WHERE patio_id = $1
		   AND timestamp BETWEEN $2 AND $3
		   AND computation_version = $4
		 ORDER BY ABS(EXTRACT(EPOCH FROM (timestamp - $5)))
		 LIMIT 1`,
		patioID,
		at.Add(-tolerance),
		at.Add(tolerance),
		types.ComputationVersion,
		at,
	)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to query precomputed exposure", err)
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, types.NewAppError(types.ErrCodeInternalDB, "error reading precomputed exposure", err)
		}
		return nil, nil
	}

	row, err := scanExposure(rows)
	if err != nil {
		return nil, err
	}
	return row, nil
}

// ListRange returns all current-version rows for the patio inside the
// half-open range, ordered by timestamp.
func (r *ExposureRepository) ListRange(ctx context.Context, patioID string, rng types.TimeRange) ([]types.PrecomputedSunExposure, error) {
	rows, err := r.db.Query(ctx,
		`SELECT patio_id, date, timestamp, exposure_pct, state, confidence_pct,
		        sunlit_area_m2, shaded_area_m2, weather, computed_at, expires_at,
		        computation_version, is_stale
		 FROM precomputed_sun_exposures
		 WHERE patio_id = $1
		   AND timestamp >= $2 AND timestamp < $3
		   AND computation_version = $4
		 ORDER BY timestamp`,
		patioID,
		rng.Start,
		rng.End,
		types.ComputationVersion,
	)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to list precomputed exposures", err)
	}
	defer rows.Close()

	var out []types.PrecomputedSunExposure
	for rows.Next() {
		row, err := scanExposure(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *row)
	}
	if err := rows.Err(); err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "error iterating precomputed exposures", err)
	}
	return out, nil
}

// MarkStale flags all rows for the patio from the given instant onward.
// Stale rows remain servable with reduced confidence until the next run
// overwrites them. Returns the number of rows flagged.
func (r *ExposureRepository) MarkStale(ctx context.Context, patioID string, from time.Time) (int64, error) {
	tag, err := r.db.Exec(ctx,
		`UPDATE precomputed_sun_exposures
		 SET is_stale = TRUE
		 WHERE patio_id = $1 AND timestamp >= $2 AND is_stale = FALSE`,
		patioID,
		from,
	)
	if err != nil {
		return 0, types.NewAppError(types.ErrCodeInternalDB, "failed to mark precomputed exposures stale", err)
	}
	return tag.RowsAffected(), nil
}

// PurgeExpired deletes rows past their expiry, bounded per call so the
// retention sweep can run in modest transactions. The subquery orders rows
// the same way ListExpired does, so a purge batch removes exactly the rows
// the sweep just archived. Returns the number of rows removed.
func (r *ExposureRepository) PurgeExpired(ctx context.Context, now time.Time, limit int) (int64, error) {
	tag, err := r.db.Exec(ctx,
		`DELETE FROM precomputed_sun_exposures
		 WHERE ctid IN (
		   SELECT ctid FROM precomputed_sun_exposures
		   WHERE expires_at < $1
		   ORDER BY expires_at, patio_id, timestamp
		   LIMIT $2
		 )`,
		now,
		limit,
	)
	if err != nil {
		return 0, types.NewAppError(types.ErrCodeInternalDB, "failed to purge expired exposures", err)
	}
	return tag.RowsAffected(), nil
}

// ListExpired returns up to limit expired rows, oldest first. The retention
// sweep archives these before purging.
func (r *ExposureRepository) ListExpired(ctx context.Context, now time.Time, limit int) ([]types.PrecomputedSunExposure, error) {
	rows, err := r.db.Query(ctx,
		`SELECT patio_id, date, timestamp, exposure_pct, state, confidence_pct,
		        sunlit_area_m2, shaded_area_m2, weather, computed_at, expires_at,
		        computation_version, is_stale
		 FROM precomputed_sun_exposures
		 WHERE expires_at < $1
		 ORDER BY expires_at, patio_id, timestamp
		 LIMIT $2`,
		now,
		limit,
	)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to list expired exposures", err)
	}
	defer rows.Close()

	var out []types.PrecomputedSunExposure
	for rows.Next() {
		row, err := scanExposure(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *row)
	}
	if err := rows.Err(); err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "error iterating expired exposures", err)
	}
	return out, nil
}

// scanExposure scans one row from the shared column list. The weather column
// is JSONB and may be NULL.
func scanExposure(row interface{ Scan(dest ...any) error }) (*types.PrecomputedSunExposure, error) {
	var (
		e           types.PrecomputedSunExposure
		state       string
		weatherJSON []byte
	)
	if err := row.Scan(
		&e.PatioID,
		&e.Date,
		&e.Timestamp,
		&e.ExposurePct,
		&state,
		&e.ConfidencePct,
		&e.SunlitAreaM2,
		&e.ShadedAreaM2,
		&weatherJSON,
		&e.ComputedAt,
		&e.ExpiresAt,
		&e.ComputationVersion,
		&e.IsStale,
	); err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to scan precomputed exposure", err)
	}
	e.State = types.ExposureState(state)

	if len(weatherJSON) > 0 {
		var w types.ProcessedWeather
		if err := json.Unmarshal(weatherJSON, &w); err != nil {
			return nil, types.NewAppError(types.ErrCodeInternalUnexpected, "failed to unmarshal weather snapshot", err)
		}
		e.Weather = &w
	}
	return &e, nil
}
