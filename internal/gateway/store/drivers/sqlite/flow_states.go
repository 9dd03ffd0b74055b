package sqlite

import (
	"context"
	"database/sql"
	"time"

	"github.com/aussiebroadwan/fleetdesk/internal/gateway/domain"
)

type flowStatesRepo struct {
	db DBTX
}

func (r *flowStatesRepo) CreateFlowState(ctx context.Context, f domain.FlowState) error {
	if f.CreatedAt.IsZero() {
		f.CreatedAt = time.Now().UTC()
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO flow_states
			(id, user_id, code_hash, code_challenge, code_challenge_method, amr, aal, expires_at, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		f.ID, f.UserID, f.CodeHash, f.CodeChallenge, f.CodeChallengeMethod,
		joinFields(f.AMR), f.AAL, f.ExpiresAt.UTC(), f.CreatedAt.UTC())
	return mapConstraint(err)
}

func (r *flowStatesRepo) GetFlowStateByCodeHash(ctx context.Context, hash string) (domain.FlowState, error) {
	var (
		f      domain.FlowState
		amr    string
		usedAt sql.NullTime
	)
	err := r.db.QueryRowContext(ctx, `
		SELECT id, user_id, code_hash, code_challenge, code_challenge_method, amr, aal, expires_at, used_at, created_at
		FROM flow_states WHERE code_hash = ?`, hash,
	).Scan(&f.ID, &f.UserID, &f.CodeHash, &f.CodeChallenge, &f.CodeChallengeMethod,
		&amr, &f.AAL, &f.ExpiresAt, &usedAt, &f.CreatedAt)
	if err != nil {
		return domain.FlowState{}, mapNotFound(err)
	}
	f.AMR = splitAndFilter(amr)
	f.UsedAt = mapNullTimePtr(usedAt)
	return f, nil
}

func (r *flowStatesRepo) MarkFlowStateUsed(ctx context.Context, id string, at time.Time) error {
	return requireRow(r.db.ExecContext(ctx,
		`UPDATE flow_states SET used_at = ? WHERE id = ? AND used_at IS NULL`, at.UTC(), id))
}

func (r *flowStatesRepo) DeleteExpiredFlowStates(ctx context.Context, now time.Time) (int64, error) {
	return rowsAffected(r.db.ExecContext(ctx,
		`DELETE FROM flow_states WHERE expires_at < ? OR used_at IS NOT NULL`, now.UTC()))
}
