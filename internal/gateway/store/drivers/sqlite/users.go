package sqlite

import (
	"context"
	"database/sql"
	"time"

	"github.com/aussiebroadwan/fleetdesk/internal/gateway/domain"
)

type usersRepo struct {
	db DBTX
}

const userColumns = `id, email, password_hash, email_confirmed_at, mfa_enabled_at, mfa_secret, created_at, updated_at`

func scanUser(row interface{ Scan(...any) error }) (domain.User, error) {
	var (
		u         domain.User
		confirmed sql.NullTime
		mfaAt     sql.NullTime
		secret    sql.NullString
	)
	if err := row.Scan(&u.ID, &u.Email, &u.PasswordHash, &confirmed, &mfaAt, &secret, &u.CreatedAt, &u.UpdatedAt); err != nil {
		return domain.User{}, mapNotFound(err)
	}
	u.EmailConfirmedAt = mapNullTimePtr(confirmed)
	u.MFAEnabledAt = mapNullTimePtr(mfaAt)
	u.MFASecret = mapNullStringPtr(secret)
	u.CreatedAt = u.CreatedAt.UTC()
	u.UpdatedAt = u.UpdatedAt.UTC()
	return u, nil
}

func (r *usersRepo) CreateUser(ctx context.Context, u domain.User) error {
	now := time.Now().UTC()
	if u.CreatedAt.IsZero() {
		u.CreatedAt = now
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO users (id, email, password_hash, email_confirmed_at, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		u.ID, u.Email, u.PasswordHash, mapOptionalTime(u.EmailConfirmedAt), u.CreatedAt.UTC(), now,
	)
	return mapConstraint(err)
}

func (r *usersRepo) GetUserByID(ctx context.Context, id string) (domain.User, error) {
	return scanUser(r.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = ?`, id))
}

func (r *usersRepo) GetUserByEmail(ctx context.Context, email string) (domain.User, error) {
	return scanUser(r.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE email = ? COLLATE NOCASE`, email))
}

func (r *usersRepo) ConfirmEmail(ctx context.Context, userID string, at time.Time) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE users SET email_confirmed_at = COALESCE(email_confirmed_at, ?), updated_at = ?
		WHERE id = ?`, at.UTC(), at.UTC(), userID)
	return err
}

func (r *usersRepo) UpdatePasswordHash(ctx context.Context, userID string, newHash string) error {
	return requireRow(r.db.ExecContext(ctx,
		`UPDATE users SET password_hash = ?, updated_at = ? WHERE id = ?`,
		newHash, time.Now().UTC(), userID))
}

func (r *usersRepo) SetMFASecret(ctx context.Context, userID string, secret string) error {
	return requireRow(r.db.ExecContext(ctx,
		`UPDATE users SET mfa_secret = ?, updated_at = ? WHERE id = ?`,
		mapStringNull(secret), time.Now().UTC(), userID))
}

func (r *usersRepo) EnableMFA(ctx context.Context, userID string, at time.Time) error {
	return requireRow(r.db.ExecContext(ctx,
		`UPDATE users SET mfa_enabled_at = ?, updated_at = ? WHERE id = ? AND mfa_secret IS NOT NULL`,
		at.UTC(), at.UTC(), userID))
}

func (r *usersRepo) DisableMFA(ctx context.Context, userID string) error {
	return requireRow(r.db.ExecContext(ctx,
		`UPDATE users SET mfa_enabled_at = NULL, mfa_secret = NULL, updated_at = ? WHERE id = ?`,
		time.Now().UTC(), userID))
}
