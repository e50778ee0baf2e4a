package db

import (
	"context"

	"terrasol/internal/geo"
	"terrasol/internal/types"
)

// weatherSearchRadiusM bounds the sample lookup around a location. Samples
// further out carry no useful signal for spatial interpolation.
const weatherSearchRadiusM = 50_000.0

// WeatherRepository reads raw weather samples from the table populated by the
// external ingestion service. It satisfies the weather Source interface;
// callers wrap it in a breaker-guarded adapter.
type WeatherRepository struct {
	db DBTX
}

// NewWeatherRepository creates a WeatherRepository backed by the given
// database connection.
func NewWeatherRepository(db DBTX) *WeatherRepository {
	return &WeatherRepository{db: db}
}

// Samples returns the samples near the given point within the time range,
// ordered by timestamp. The spatial prefilter is a bounding box around the
// point; the interpolator weighs exact distances.
func (r *WeatherRepository) Samples(ctx context.Context, near geo.Point, rng types.TimeRange) ([]types.WeatherSlice, error) {
	north := geo.DestinationPoint(near, weatherSearchRadiusM, 0)
	east := geo.DestinationPoint(near, weatherSearchRadiusM, 90)
	dLat := north.Lat - near.Lat
	dLon := east.Lon - near.Lon

	rows, err := r.db.Query(ctx,
		`SELECT timestamp, lat, lon, cloud_cover_pct, precip_probability,
		        precip_intensity_mmh, temperature_c, is_forecast, source, confidence
		 FROM weather_samples
		 WHERE timestamp >= $1 AND timestamp < $2
		   AND lat BETWEEN $3 AND $4
		   AND lon BETWEEN $5 AND $6
		 ORDER BY timestamp`,
		rng.Start, rng.End,
		near.Lat-dLat, near.Lat+dLat,
		near.Lon-dLon, near.Lon+dLon,
	)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to query weather samples", err)
	}
	defer rows.Close()

	var out []types.WeatherSlice
	for rows.Next() {
		var (
			s        types.WeatherSlice
			lat, lon float64
		)
		if err := rows.Scan(&s.Timestamp, &lat, &lon, &s.CloudCoverPct, &s.PrecipProb,
			&s.PrecipIntensity, &s.TemperatureC, &s.IsForecast, &s.Source, &s.Confidence); err != nil {
			return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to scan weather sample", err)
		}
		s.Location = &geo.Point{Lat: lat, Lon: lon}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "error iterating weather samples", err)
	}
	return out, nil
}
