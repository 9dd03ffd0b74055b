package sqlite

import (
	"context"
	"database/sql"
	"time"

	"github.com/aussiebroadwan/fleetdesk/internal/gateway/domain"
)

type profilesRepo struct {
	db DBTX
}

func (r *profilesRepo) UpsertProfile(ctx context.Context, p domain.Profile) error {
	var override sql.NullString
	if p.RoleOverride != nil {
		override = sql.NullString{String: string(*p.RoleOverride), Valid: true}
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO profiles (user_id, first_name, last_name, role_override, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (user_id) DO UPDATE SET
			first_name = excluded.first_name,
			last_name = excluded.last_name,
			role_override = excluded.role_override,
			updated_at = excluded.updated_at`,
		p.UserID, p.FirstName, p.LastName, override, time.Now().UTC(),
	)
	return err
}

func (r *profilesRepo) GetProfile(ctx context.Context, userID string) (domain.Profile, error) {
	var (
		p        domain.Profile
		override sql.NullString
	)
	err := r.db.QueryRowContext(ctx, `
		SELECT user_id, first_name, last_name, role_override, updated_at
		FROM profiles WHERE user_id = ?`, userID,
	).Scan(&p.UserID, &p.FirstName, &p.LastName, &override, &p.UpdatedAt)
	if err != nil {
		return domain.Profile{}, mapNotFound(err)
	}
	if override.Valid {
		role := domain.Role(override.String)
		p.RoleOverride = &role
	}
	return p, nil
}
