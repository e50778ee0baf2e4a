package db

import (
	"context"
	"encoding/json"

	"terrasol/internal/geo"
	"terrasol/internal/shadow"
	"terrasol/internal/types"
)

// shadowSearchRadiusM bounds the building lookup around a patio. The margin
// over the maximum shadow reach covers footprint extent beyond the centroid.
const shadowSearchRadiusM = shadow.MaxShadowDistanceM + 50.0

// PatioRepository reads the patio and building snapshots synced from the
// upstream venue-management and building-data services. The engine never
// writes these tables.
type PatioRepository struct {
	db DBTX
}

// NewPatioRepository creates a PatioRepository backed by the given database
// connection (pool or transaction).
func NewPatioRepository(db DBTX) *PatioRepository {
	return &PatioRepository{db: db}
}

// ListPatios returns all active patios.
func (r *PatioRepository) ListPatios(ctx context.Context) ([]types.Patio, error) {
	rows, err := r.db.Query(ctx,
		`SELECT id, footprint, height_override_m, height_source, polygon_quality
		 FROM patios
		 WHERE active`,
	)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to list patios", err)
	}
	defer rows.Close()

	var out []types.Patio
	for rows.Next() {
		var (
			p             types.Patio
			footprintJSON []byte
			heightSource  *string
		)
		if err := rows.Scan(&p.ID, &footprintJSON, &p.HeightOverrideM, &heightSource, &p.PolygonQuality); err != nil {
			return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to scan patio", err)
		}
		if err := json.Unmarshal(footprintJSON, &p.Footprint); err != nil {
			return nil, types.NewAppError(types.ErrCodeInternalUnexpected, "failed to unmarshal patio footprint", err)
		}
		if heightSource != nil {
			p.HeightSource = types.HeightSource(*heightSource)
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "error iterating patios", err)
	}
	return out, nil
}

// NearbyBuildings returns the buildings within shadow reach of the patio,
// prefiltered in SQL by a bounding box around its centroid.
func (r *PatioRepository) NearbyBuildings(ctx context.Context, patio types.Patio) ([]types.Building, error) {
	c := patio.Centroid()
	north := geo.DestinationPoint(c, shadowSearchRadiusM, 0)
	east := geo.DestinationPoint(c, shadowSearchRadiusM, 90)
	dLat := north.Lat - c.Lat
	dLon := east.Lon - c.Lon

	rows, err := r.db.Query(ctx,
		`SELECT id, footprint, height_m, height_source, quality
		 FROM buildings
		 WHERE centroid_lat BETWEEN $1 AND $2
		   AND centroid_lon BETWEEN $3 AND $4`,
		c.Lat-dLat, c.Lat+dLat,
		c.Lon-dLon, c.Lon+dLon,
	)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to query nearby buildings", err)
	}
	defer rows.Close()

	var out []types.Building
	for rows.Next() {
		var (
			b             types.Building
			footprintJSON []byte
			heightSource  string
		)
		if err := rows.Scan(&b.ID, &footprintJSON, &b.HeightM, &heightSource, &b.Quality); err != nil {
			return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to scan building", err)
		}
		if err := json.Unmarshal(footprintJSON, &b.Footprint); err != nil {
			return nil, types.NewAppError(types.ErrCodeInternalUnexpected, "failed to unmarshal building footprint", err)
		}
		b.HeightSource = types.HeightSource(heightSource)
		out = append(out, b)
	}
	if err := rows.Err(); err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "error iterating buildings", err)
	}
	return out, nil
}

// GetPatio returns one patio by ID.
func (r *PatioRepository) GetPatio(ctx context.Context, patioID string) (*types.Patio, error) {
	var (
		p             types.Patio
		footprintJSON []byte
		heightSource  *string
	)
	err := r.db.QueryRow(ctx,
		`SELECT id, footprint, height_override_m, height_source, polygon_quality
		 FROM patios
		 WHERE id = $1 AND active`,
		patioID,
	).Scan(&p.ID, &footprintJSON, &p.HeightOverrideM, &heightSource, &p.PolygonQuality)
	if err != nil {
		if isNoRows(err) {
			return nil, types.NewAppError(types.ErrCodeValidationMissingPolygon, "patio not found", nil)
		}
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to get patio", err)
	}
	if err := json.Unmarshal(footprintJSON, &p.Footprint); err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalUnexpected, "failed to unmarshal patio footprint", err)
	}
	if heightSource != nil {
		p.HeightSource = types.HeightSource(*heightSource)
	}
	return &p, nil
}
