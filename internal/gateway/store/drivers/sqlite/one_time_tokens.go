package sqlite

import (
	"context"
	"database/sql"
	"time"

	"github.com/aussiebroadwan/fleetdesk/internal/gateway/domain"
)

type oneTimeTokensRepo struct {
	db DBTX
}

func (r *oneTimeTokensRepo) CreateOneTimeToken(ctx context.Context, t domain.OneTimeToken) error {
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now().UTC()
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO one_time_tokens (id, user_id, type, fingerprint, redirect_to, expires_at, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		t.ID, t.UserID, string(t.Type), t.Fingerprint, t.RedirectTo, t.ExpiresAt.UTC(), t.CreatedAt.UTC())
	return mapConstraint(err)
}

func (r *oneTimeTokensRepo) GetOneTimeTokenByFingerprint(
	ctx context.Context,
	fingerprint string,
) (domain.OneTimeToken, error) {
	var (
		t      domain.OneTimeToken
		typ    string
		usedAt sql.NullTime
	)
	err := r.db.QueryRowContext(ctx, `
		SELECT id, user_id, type, fingerprint, redirect_to, expires_at, used_at, created_at
		FROM one_time_tokens WHERE fingerprint = ?`, fingerprint,
	).Scan(&t.ID, &t.UserID, &typ, &t.Fingerprint, &t.RedirectTo, &t.ExpiresAt, &usedAt, &t.CreatedAt)
	if err != nil {
		return domain.OneTimeToken{}, mapNotFound(err)
	}
	t.Type = domain.OTPType(typ)
	t.UsedAt = mapNullTimePtr(usedAt)
	return t, nil
}

func (r *oneTimeTokensRepo) MarkOneTimeTokenUsed(ctx context.Context, id string, at time.Time) error {
	return requireRow(r.db.ExecContext(ctx,
		`UPDATE one_time_tokens SET used_at = ? WHERE id = ? AND used_at IS NULL`, at.UTC(), id))
}

func (r *oneTimeTokensRepo) DeleteUserTokens(ctx context.Context, userID string, t domain.OTPType) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM one_time_tokens WHERE user_id = ? AND type = ? AND used_at IS NULL`, userID, string(t))
	return err
}

func (r *oneTimeTokensRepo) DeleteExpiredOneTimeTokens(ctx context.Context, now time.Time) (int64, error) {
	return rowsAffected(r.db.ExecContext(ctx,
		`DELETE FROM one_time_tokens WHERE expires_at < ? OR used_at IS NOT NULL`, now.UTC()))
}
