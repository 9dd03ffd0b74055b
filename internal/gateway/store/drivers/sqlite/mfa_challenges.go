package sqlite

import (
	"context"
	"time"

	"github.com/aussiebroadwan/fleetdesk/internal/gateway/domain"
)

type mfaChallengesRepo struct {
	db DBTX
}

const mfaChallengeColumns = `id, user_id, amr, attempts, expires_at, created_at`

func scanMFAChallenge(row interface{ Scan(...any) error }) (domain.MFAChallenge, error) {
	var (
		c   domain.MFAChallenge
		amr string
	)
	if err := row.Scan(&c.ID, &c.UserID, &amr, &c.Attempts, &c.ExpiresAt, &c.CreatedAt); err != nil {
		return domain.MFAChallenge{}, mapNotFound(err)
	}
	c.AMR = splitAndFilter(amr)
	return c, nil
}

func (r *mfaChallengesRepo) CreateMFAChallenge(ctx context.Context, c domain.MFAChallenge) error {
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now().UTC()
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO mfa_challenges (id, user_id, amr, attempts, expires_at, created_at)
		VALUES (?, ?, ?, 0, ?, ?)`,
		c.ID, c.UserID, joinFields(c.AMR), c.ExpiresAt.UTC(), c.CreatedAt.UTC())
	return mapConstraint(err)
}

func (r *mfaChallengesRepo) GetMFAChallenge(ctx context.Context, id string, now time.Time) (domain.MFAChallenge, error) {
	return scanMFAChallenge(r.db.QueryRowContext(ctx,
		`SELECT `+mfaChallengeColumns+` FROM mfa_challenges WHERE id = ? AND expires_at > ?`, id, now.UTC()))
}

func (r *mfaChallengesRepo) IncrementMFAChallengeAttempts(ctx context.Context, id string) (domain.MFAChallenge, error) {
	if err := requireRow(r.db.ExecContext(ctx,
		`UPDATE mfa_challenges SET attempts = attempts + 1 WHERE id = ?`, id)); err != nil {
		return domain.MFAChallenge{}, err
	}
	return scanMFAChallenge(r.db.QueryRowContext(ctx,
		`SELECT `+mfaChallengeColumns+` FROM mfa_challenges WHERE id = ?`, id))
}

func (r *mfaChallengesRepo) DeleteMFAChallenge(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM mfa_challenges WHERE id = ?`, id)
	return err
}

func (r *mfaChallengesRepo) DeleteExpiredMFAChallenges(ctx context.Context, now time.Time) (int64, error) {
	return rowsAffected(r.db.ExecContext(ctx, `DELETE FROM mfa_challenges WHERE expires_at < ?`, now.UTC()))
}
