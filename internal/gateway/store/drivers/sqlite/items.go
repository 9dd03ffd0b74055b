package sqlite

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/aussiebroadwan/fleetdesk/internal/gateway/domain"
)

type itemsRepo struct {
	db DBTX
}

const itemSelect = `
	SELECT id, org_id, name, item_type, priority, description, pickup_site_id, dropoff_site_id,
	       status, created_at, updated_at
	FROM items`

func scanItem(row interface{ Scan(...any) error }) (domain.Item, error) {
	var (
		i           domain.Item
		priority    string
		status      string
		description sql.NullString
		pickup      sql.NullString
		dropoff     sql.NullString
	)
	err := row.Scan(&i.ID, &i.OrgID, &i.Name, &i.Type, &priority, &description, &pickup, &dropoff,
		&status, &i.CreatedAt, &i.UpdatedAt)
	if err != nil {
		return domain.Item{}, mapNotFound(err)
	}
	i.Priority = domain.ItemPriority(priority)
	i.Status = domain.ItemStatus(status)
	i.Description = mapNullString(description)
	i.PickupSiteID = mapNullString(pickup)
	i.DropoffSiteID = mapNullString(dropoff)
	return i, nil
}

func (r *itemsRepo) list(ctx context.Context, query string, args ...any) ([]domain.Item, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Item
	for rows.Next() {
		i, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, i)
	}
	return out, rows.Err()
}

func (r *itemsRepo) CreateItem(ctx context.Context, i domain.Item) error {
	if i.CreatedAt.IsZero() {
		i.CreatedAt = time.Now().UTC()
	}
	if i.Status == "" {
		i.Status = domain.ItemPending
	}
	if i.Priority == "" {
		i.Priority = domain.PriorityStandard
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO items
			(id, org_id, name, item_type, priority, description, pickup_site_id, dropoff_site_id,
			 status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		i.ID, i.OrgID, i.Name, i.Type, string(i.Priority), mapStringNull(i.Description),
		mapStringNull(i.PickupSiteID), mapStringNull(i.DropoffSiteID), string(i.Status),
		i.CreatedAt.UTC(), i.CreatedAt.UTC())
	return mapConstraint(err)
}

func (r *itemsRepo) GetItem(ctx context.Context, orgID, id string) (domain.Item, error) {
	return scanItem(r.db.QueryRowContext(ctx, itemSelect+` WHERE org_id = ? AND id = ?`, orgID, id))
}

func (r *itemsRepo) ListItems(ctx context.Context, orgID string) ([]domain.Item, error) {
	return r.list(ctx, itemSelect+` WHERE org_id = ? ORDER BY created_at, id`, orgID)
}

func (r *itemsRepo) ListItemsAtSite(ctx context.Context, orgID, siteID string) ([]domain.Item, error) {
	return r.list(ctx, itemSelect+`
		WHERE org_id = ? AND (pickup_site_id = ? OR dropoff_site_id = ?)
		ORDER BY created_at, id`, orgID, siteID, siteID)
}

func (r *itemsRepo) ListItemsMissingDropoff(ctx context.Context, orgID string) ([]domain.Item, error) {
	return r.list(ctx, itemSelect+`
		WHERE org_id = ? AND dropoff_site_id IS NULL AND status IN (?, ?)
		ORDER BY created_at, id`, orgID, string(domain.ItemAssigned), string(domain.ItemInTransit))
}

func (r *itemsRepo) AssignItems(
	ctx context.Context,
	orgID string,
	ids []string,
	status domain.ItemStatus,
	dropoffSiteID string,
) error {
	if len(ids) == 0 {
		return nil
	}

	args := []any{string(status), time.Now().UTC()}
	set := `status = ?, updated_at = ?`
	if dropoffSiteID != "" {
		set += `, dropoff_site_id = ?`
		args = append(args, dropoffSiteID)
	}
	args = append(args, orgID)
	for _, id := range ids {
		args = append(args, id)
	}

	_, err := r.db.ExecContext(ctx,
		`UPDATE items SET `+set+` WHERE org_id = ? AND id IN (`+placeholders(len(ids))+`)`, args...)
	return mapConstraint(err)
}

func (r *itemsRepo) SetItemDropoff(ctx context.Context, orgID, id, siteID string) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE items SET dropoff_site_id = ?, updated_at = ? WHERE org_id = ? AND id = ?`,
		mapStringNull(siteID), time.Now().UTC(), orgID, id)
	return requireRow(res, mapConstraint(err))
}

func (r *itemsRepo) DeleteItem(ctx context.Context, orgID, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM items WHERE org_id = ? AND id = ?`, orgID, id)
	return requireRow(res, mapConstraint(err))
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}
