package sqlite

import (
	"context"
	"time"

	"github.com/aussiebroadwan/fleetdesk/internal/gateway/domain"
)

type membershipsRepo struct {
	db DBTX
}

const membershipSelect = `
	SELECT m.org_id, m.user_id, u.email, m.role, m.org_role, m.approved, m.created_at, m.updated_at
	FROM memberships m JOIN users u ON u.id = m.user_id`

func scanMembership(row interface{ Scan(...any) error }) (domain.Membership, error) {
	var (
		m       domain.Membership
		role    string
		orgRole string
	)
	if err := row.Scan(&m.OrgID, &m.UserID, &m.Email, &role, &orgRole, &m.Approved, &m.CreatedAt, &m.UpdatedAt); err != nil {
		return domain.Membership{}, mapNotFound(err)
	}
	m.Role = domain.Role(role)
	m.OrgRole = domain.OrgRole(orgRole)
	return m, nil
}

func (r *membershipsRepo) CreateMembership(ctx context.Context, m domain.Membership) error {
	now := time.Now().UTC()
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO memberships (org_id, user_id, role, org_role, approved, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		m.OrgID, m.UserID, string(m.Role), string(m.OrgRole), m.Approved, now, now)
	return mapConstraint(err)
}

func (r *membershipsRepo) GetMembership(ctx context.Context, orgID, userID string) (domain.Membership, error) {
	return scanMembership(r.db.QueryRowContext(ctx,
		membershipSelect+` WHERE m.org_id = ? AND m.user_id = ?`, orgID, userID))
}

func (r *membershipsRepo) GetPrimaryMembership(ctx context.Context, userID string) (domain.Membership, error) {
	return scanMembership(r.db.QueryRowContext(ctx,
		membershipSelect+` WHERE m.user_id = ? AND m.approved = 1 ORDER BY m.created_at, m.org_id LIMIT 1`, userID))
}

func (r *membershipsRepo) ListMembers(ctx context.Context, orgID string) ([]domain.Membership, error) {
	rows, err := r.db.QueryContext(ctx, membershipSelect+` WHERE m.org_id = ? ORDER BY m.created_at, m.user_id`, orgID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Membership
	for rows.Next() {
		m, err := scanMembership(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func (r *membershipsRepo) UpdateMemberRole(
	ctx context.Context,
	orgID, userID string,
	role domain.Role,
	orgRole domain.OrgRole,
) error {
	return requireRow(r.db.ExecContext(ctx, `
		UPDATE memberships SET role = ?, org_role = ?, updated_at = ?
		WHERE org_id = ? AND user_id = ?`,
		string(role), string(orgRole), time.Now().UTC(), orgID, userID))
}
