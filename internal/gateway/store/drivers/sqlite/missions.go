package sqlite

import (
	"context"
	"database/sql"
	"time"

	"github.com/aussiebroadwan/fleetdesk/internal/gateway/domain"
)

type missionsRepo struct {
	db DBTX
}

const missionSelect = `
	SELECT id, org_id, name, description, vehicle_id, route_type, planned_date, planned_start,
	       status, started_at, ended_at, created_at, updated_at
	FROM missions`

func scanMission(row interface{ Scan(...any) error }) (domain.Mission, error) {
	var (
		m            domain.Mission
		description  sql.NullString
		routeType    string
		status       string
		plannedStart sql.NullTime
		startedAt    sql.NullTime
		endedAt      sql.NullTime
	)
	err := row.Scan(&m.ID, &m.OrgID, &m.Name, &description, &m.VehicleID, &routeType, &m.PlannedDate,
		&plannedStart, &status, &startedAt, &endedAt, &m.CreatedAt, &m.UpdatedAt)
	if err != nil {
		return domain.Mission{}, mapNotFound(err)
	}
	m.Description = mapNullString(description)
	m.RouteType = domain.RouteType(routeType)
	m.Status = domain.MissionStatus(status)
	m.PlannedStart = mapNullTimePtr(plannedStart)
	m.StartedAt = mapNullTimePtr(startedAt)
	m.EndedAt = mapNullTimePtr(endedAt)
	return m, nil
}

func (r *missionsRepo) CreateMission(ctx context.Context, m domain.Mission) error {
	now := time.Now().UTC()
	if m.CreatedAt.IsZero() {
		m.CreatedAt = now
	}
	if m.Status == "" {
		m.Status = domain.MissionPlanned
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO missions
			(id, org_id, name, description, vehicle_id, route_type, planned_date, planned_start,
			 status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		m.ID, m.OrgID, m.Name, mapStringNull(m.Description), m.VehicleID, string(m.RouteType),
		m.PlannedDate.UTC(), mapOptionalTime(m.PlannedStart), string(m.Status),
		m.CreatedAt.UTC(), m.CreatedAt.UTC())
	if err != nil {
		return mapConstraint(err)
	}

	for _, s := range m.Stops {
		if s.Status == "" {
			s.Status = domain.StopPending
		}
		_, err := r.db.ExecContext(ctx, `
			INSERT INTO mission_stops (id, mission_id, site_id, seq, stop_type, item_ids, status)
			VALUES (?, ?, ?, ?, ?, ?, ?)`,
			s.ID, m.ID, s.SiteID, s.Order, string(s.Type), joinFields(s.ItemIDs), string(s.Status))
		if err != nil {
			return mapConstraint(err)
		}
	}

	for _, itemID := range m.ItemIDs {
		_, err := r.db.ExecContext(ctx,
			`INSERT INTO mission_items (mission_id, item_id) VALUES (?, ?)`, m.ID, itemID)
		if err != nil {
			return mapConstraint(err)
		}
	}
	return nil
}

func (r *missionsRepo) GetMission(ctx context.Context, orgID, id string) (domain.Mission, error) {
	m, err := scanMission(r.db.QueryRowContext(ctx, missionSelect+` WHERE org_id = ? AND id = ?`, orgID, id))
	if err != nil {
		return domain.Mission{}, err
	}
	if err := r.hydrate(ctx, &m); err != nil {
		return domain.Mission{}, err
	}
	return m, nil
}

func (r *missionsRepo) ListMissions(ctx context.Context, orgID string) ([]domain.Mission, error) {
	return r.list(ctx, missionSelect+`
		WHERE org_id = ? ORDER BY planned_date DESC, planned_start, id`, orgID)
}

func (r *missionsRepo) ListMissionsWithItem(ctx context.Context, orgID, itemID string) ([]domain.Mission, error) {
	return r.list(ctx, missionSelect+`
		WHERE org_id = ? AND id IN (SELECT mission_id FROM mission_items WHERE item_id = ?)
		ORDER BY created_at DESC, id DESC`, orgID, itemID)
}

// list reads every row before hydrating, since a pinned single connection
// cannot serve a second query while rows are open.
func (r *missionsRepo) list(ctx context.Context, query string, args ...any) ([]domain.Mission, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}

	var out []domain.Mission
	for rows.Next() {
		m, err := scanMission(rows)
		if err != nil {
			_ = rows.Close()
			return nil, err
		}
		out = append(out, m)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range out {
		if err := r.hydrate(ctx, &out[i]); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// hydrate loads the mission's stops and carried items.
func (r *missionsRepo) hydrate(ctx context.Context, m *domain.Mission) error {
	stops, err := r.stops(ctx, m.ID)
	if err != nil {
		return err
	}
	m.Stops = stops

	rows, err := r.db.QueryContext(ctx,
		`SELECT item_id FROM mission_items WHERE mission_id = ? ORDER BY item_id`, m.ID)
	if err != nil {
		return err
	}
	defer rows.Close()

	m.ItemIDs = nil
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return err
		}
		m.ItemIDs = append(m.ItemIDs, id)
	}
	return rows.Err()
}

func (r *missionsRepo) stops(ctx context.Context, missionID string) ([]domain.Stop, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, mission_id, site_id, seq, stop_type, item_ids, status, arrived_at, departed_at
		FROM mission_stops WHERE mission_id = ? ORDER BY seq, id`, missionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Stop
	for rows.Next() {
		var (
			s          domain.Stop
			stopType   string
			itemIDs    string
			status     string
			arrivedAt  sql.NullTime
			departedAt sql.NullTime
		)
		err := rows.Scan(&s.ID, &s.MissionID, &s.SiteID, &s.Order, &stopType, &itemIDs, &status,
			&arrivedAt, &departedAt)
		if err != nil {
			return nil, err
		}
		s.Type = domain.StopType(stopType)
		s.Status = domain.StopStatus(status)
		s.ItemIDs = splitAndFilter(itemIDs)
		s.ArrivedAt = mapNullTimePtr(arrivedAt)
		s.DepartedAt = mapNullTimePtr(departedAt)
		out = append(out, s)
	}
	return out, rows.Err()
}

func (r *missionsRepo) UpdateMissionStatus(
	ctx context.Context,
	orgID, id string,
	st domain.MissionStatus,
	startedAt, endedAt *time.Time,
) error {
	return requireRow(r.db.ExecContext(ctx, `
		UPDATE missions
		SET status = ?, started_at = COALESCE(?, started_at), ended_at = COALESCE(?, ended_at), updated_at = ?
		WHERE org_id = ? AND id = ?`,
		string(st), mapOptionalTime(startedAt), mapOptionalTime(endedAt), time.Now().UTC(), orgID, id))
}

func (r *missionsRepo) UpdateStopStatus(
	ctx context.Context,
	missionID, stopID string,
	st domain.StopStatus,
	arrivedAt, departedAt *time.Time,
) error {
	return requireRow(r.db.ExecContext(ctx, `
		UPDATE mission_stops
		SET status = ?, arrived_at = COALESCE(?, arrived_at), departed_at = COALESCE(?, departed_at)
		WHERE mission_id = ? AND id = ?`,
		string(st), mapOptionalTime(arrivedAt), mapOptionalTime(departedAt), missionID, stopID))
}

func (r *missionsRepo) DeleteMission(ctx context.Context, orgID, id string) error {
	return requireRow(r.db.ExecContext(ctx, `DELETE FROM missions WHERE org_id = ? AND id = ?`, orgID, id))
}
