package sqlite

import (
	"context"
	"time"

	"github.com/aussiebroadwan/fleetdesk/internal/gateway/domain"
)

type organizationsRepo struct {
	db DBTX
}

func (r *organizationsRepo) CreateOrganization(ctx context.Context, o domain.Organization) error {
	if o.CreatedAt.IsZero() {
		o.CreatedAt = time.Now().UTC()
	}
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO organizations (id, name, owner_id, created_at) VALUES (?, ?, ?, ?)`,
		o.ID, o.Name, o.OwnerID, o.CreatedAt.UTC())
	return mapConstraint(err)
}

func (r *organizationsRepo) GetOrganization(ctx context.Context, id string) (domain.Organization, error) {
	var o domain.Organization
	err := r.db.QueryRowContext(ctx,
		`SELECT id, name, owner_id, created_at FROM organizations WHERE id = ?`, id,
	).Scan(&o.ID, &o.Name, &o.OwnerID, &o.CreatedAt)
	if err != nil {
		return domain.Organization{}, mapNotFound(err)
	}
	return o, nil
}
