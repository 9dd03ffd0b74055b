package sqlite

import (
	"context"
	"database/sql"
	"time"

	"github.com/aussiebroadwan/fleetdesk/internal/gateway/domain"
)

type invitationsRepo struct {
	db DBTX
}

func (r *invitationsRepo) CreateInvitation(ctx context.Context, inv domain.Invitation) error {
	if inv.CreatedAt.IsZero() {
		inv.CreatedAt = time.Now().UTC()
	}
	if inv.Status == "" {
		inv.Status = domain.InvitationPending
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO invitations
			(id, org_id, inviter_id, email, role, org_role, token_hash, status, expires_at, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		inv.ID, inv.OrgID, inv.InviterID, inv.Email, string(inv.Role), string(inv.OrgRole),
		inv.TokenHash, string(inv.Status), inv.ExpiresAt.UTC(), inv.CreatedAt.UTC())
	return mapConstraint(err)
}

func (r *invitationsRepo) GetInvitationByTokenHash(ctx context.Context, hash string) (domain.Invitation, error) {
	var (
		inv        domain.Invitation
		role       string
		orgRole    string
		status     string
		acceptedAt sql.NullTime
		acceptedBy sql.NullString
	)
	err := r.db.QueryRowContext(ctx, `
		SELECT id, org_id, inviter_id, email, role, org_role, token_hash, status,
		       expires_at, accepted_at, accepted_by, created_at
		FROM invitations WHERE token_hash = ?`, hash,
	).Scan(&inv.ID, &inv.OrgID, &inv.InviterID, &inv.Email, &role, &orgRole, &inv.TokenHash, &status,
		&inv.ExpiresAt, &acceptedAt, &acceptedBy, &inv.CreatedAt)
	if err != nil {
		return domain.Invitation{}, mapNotFound(err)
	}
	inv.Role = domain.Role(role)
	inv.OrgRole = domain.OrgRole(orgRole)
	inv.Status = domain.InvitationStatus(status)
	inv.AcceptedAt = mapNullTimePtr(acceptedAt)
	inv.AcceptedBy = mapNullString(acceptedBy)
	return inv, nil
}

func (r *invitationsRepo) MarkInvitationAccepted(ctx context.Context, id, userID string, at time.Time) error {
	return requireRow(r.db.ExecContext(ctx, `
		UPDATE invitations SET status = 'accepted', accepted_at = ?, accepted_by = ?
		WHERE id = ? AND status = 'pending'`, at.UTC(), userID, id))
}

func (r *invitationsRepo) DeleteExpiredInvitations(ctx context.Context, now time.Time) (int64, error) {
	return rowsAffected(r.db.ExecContext(ctx,
		`DELETE FROM invitations WHERE status = 'pending' AND expires_at < ?`, now.UTC()))
}
