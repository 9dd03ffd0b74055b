package sqlite

import (
	"context"
	"database/sql"
	"time"

	"github.com/aussiebroadwan/fleetdesk/internal/gateway/domain"
)

type sitesRepo struct {
	db DBTX
}

const siteSelect = `
	SELECT id, org_id, name, site_type, address, latitude, longitude, capacity_items_count, created_at
	FROM sites`

func scanSite(row interface{ Scan(...any) error }) (domain.Site, error) {
	var (
		s       domain.Site
		address sql.NullString
	)
	err := row.Scan(&s.ID, &s.OrgID, &s.Name, &s.Type, &address, &s.Location.Lat, &s.Location.Lng,
		&s.CapacityItems, &s.CreatedAt)
	if err != nil {
		return domain.Site{}, mapNotFound(err)
	}
	s.Address = mapNullString(address)
	return s, nil
}

func (r *sitesRepo) CreateSite(ctx context.Context, s domain.Site) error {
	if s.CreatedAt.IsZero() {
		s.CreatedAt = time.Now().UTC()
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO sites (id, org_id, name, site_type, address, latitude, longitude, capacity_items_count, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		s.ID, s.OrgID, s.Name, s.Type, mapStringNull(s.Address), s.Location.Lat, s.Location.Lng,
		s.CapacityItems, s.CreatedAt.UTC())
	return mapConstraint(err)
}

func (r *sitesRepo) GetSite(ctx context.Context, orgID, id string) (domain.Site, error) {
	return scanSite(r.db.QueryRowContext(ctx, siteSelect+` WHERE org_id = ? AND id = ?`, orgID, id))
}

func (r *sitesRepo) ListSites(ctx context.Context, orgID string) ([]domain.Site, error) {
	rows, err := r.db.QueryContext(ctx, siteSelect+` WHERE org_id = ? ORDER BY name, id`, orgID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Site
	for rows.Next() {
		s, err := scanSite(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func (r *sitesRepo) DeleteSite(ctx context.Context, orgID, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM sites WHERE org_id = ? AND id = ?`, orgID, id)
	return requireRow(res, mapConstraint(err))
}
