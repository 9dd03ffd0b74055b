package sqlite

import (
	"context"
	"database/sql"
	"time"

	"github.com/aussiebroadwan/fleetdesk/internal/gateway/domain"
)

type vehiclesRepo struct {
	db DBTX
}

const vehicleSelect = `
	SELECT id, org_id, name, vehicle_type, identifier, capacity, capacity_weight_kg, capacity_volume_m3,
	       fuel_type, range_km, icon, color, status, latitude, longitude, position_at, created_at, updated_at
	FROM vehicles`

func scanVehicle(row interface{ Scan(...any) error }) (domain.Vehicle, error) {
	var (
		v          domain.Vehicle
		identifier sql.NullString
		fuelType   sql.NullString
		status     string
		lat, lng   sql.NullFloat64
		positionAt sql.NullTime
	)
	err := row.Scan(&v.ID, &v.OrgID, &v.Name, &v.Type, &identifier, &v.Capacity, &v.CapacityWeightKg,
		&v.CapacityVolumeM3, &fuelType, &v.RangeKm, &v.Icon, &v.Color, &status, &lat, &lng, &positionAt,
		&v.CreatedAt, &v.UpdatedAt)
	if err != nil {
		return domain.Vehicle{}, mapNotFound(err)
	}
	v.Identifier = mapNullString(identifier)
	v.FuelType = mapNullString(fuelType)
	v.Status = domain.VehicleStatus(status)
	v.Position = mapNullPoint(lat, lng)
	v.PositionAt = mapNullTimePtr(positionAt)
	return v, nil
}

func (r *vehiclesRepo) CreateVehicle(ctx context.Context, v domain.Vehicle) error {
	now := time.Now().UTC()
	if v.CreatedAt.IsZero() {
		v.CreatedAt = now
	}
	if v.Status == "" {
		v.Status = domain.VehicleActive
	}

	var lat, lng sql.NullFloat64
	if v.Position != nil {
		lat = sql.NullFloat64{Float64: v.Position.Lat, Valid: true}
		lng = sql.NullFloat64{Float64: v.Position.Lng, Valid: true}
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO vehicles
			(id, org_id, name, vehicle_type, identifier, capacity, capacity_weight_kg, capacity_volume_m3,
			 fuel_type, range_km, icon, color, status, latitude, longitude, position_at, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		v.ID, v.OrgID, v.Name, v.Type, mapStringNull(v.Identifier), v.Capacity, v.CapacityWeightKg,
		v.CapacityVolumeM3, mapStringNull(v.FuelType), v.RangeKm, v.Icon, v.Color, string(v.Status),
		lat, lng, mapOptionalTime(v.PositionAt), v.CreatedAt.UTC(), v.CreatedAt.UTC())
	return mapConstraint(err)
}

func (r *vehiclesRepo) GetVehicle(ctx context.Context, orgID, id string) (domain.Vehicle, error) {
	return scanVehicle(r.db.QueryRowContext(ctx, vehicleSelect+` WHERE org_id = ? AND id = ?`, orgID, id))
}

func (r *vehiclesRepo) ListVehicles(ctx context.Context, orgID string) ([]domain.Vehicle, error) {
	rows, err := r.db.QueryContext(ctx, vehicleSelect+` WHERE org_id = ? ORDER BY name, id`, orgID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Vehicle
	for rows.Next() {
		v, err := scanVehicle(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

func (r *vehiclesRepo) UpdateVehiclePosition(ctx context.Context, orgID, id string, p domain.Point, at time.Time) error {
	return requireRow(r.db.ExecContext(ctx, `
		UPDATE vehicles SET latitude = ?, longitude = ?, position_at = ?, updated_at = ?
		WHERE org_id = ? AND id = ?`,
		p.Lat, p.Lng, at.UTC(), at.UTC(), orgID, id))
}

func (r *vehiclesRepo) DeleteVehicle(ctx context.Context, orgID, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM vehicles WHERE org_id = ? AND id = ?`, orgID, id)
	return requireRow(res, mapConstraint(err))
}
