package sqlite

import (
	"context"
	"database/sql"

	"github.com/aussiebroadwan/fleetdesk/internal/gateway/store"
)

type txStore struct {
	tx *sql.Tx
}

func newTx(tx *sql.Tx) *txStore {
	return &txStore{tx: tx}
}

func (t *txStore) Commit() error   { return t.tx.Commit() }
func (t *txStore) Rollback() error { return t.tx.Rollback() }

func (t *txStore) Close() error { return nil } // caller commits or rolls back; the DB stays open

// Ping is a no-op for transactions; the connection is already held.
func (t *txStore) Ping(ctx context.Context) error {
	return nil
}

func (t *txStore) Tx(ctx context.Context) (store.Tx, error) {
	// Nested tx not supported; could emulate with SAVEPOINT if needed
	return nil, sql.ErrTxDone
}

func (t *txStore) WithTx(ctx context.Context, fn func(tx store.Tx) error) error {
	return sql.ErrTxDone
}

func (t *txStore) Users() store.Users                 { return &usersRepo{db: t.tx} }
func (t *txStore) Profiles() store.Profiles           { return &profilesRepo{db: t.tx} }
func (t *txStore) Organizations() store.Organizations { return &organizationsRepo{db: t.tx} }
func (t *txStore) Memberships() store.Memberships     { return &membershipsRepo{db: t.tx} }
func (t *txStore) OneTimeTokens() store.OneTimeTokens { return &oneTimeTokensRepo{db: t.tx} }
func (t *txStore) FlowStates() store.FlowStates       { return &flowStatesRepo{db: t.tx} }
func (t *txStore) Invitations() store.Invitations     { return &invitationsRepo{db: t.tx} }
func (t *txStore) BackupCodes() store.BackupCodes     { return &backupCodesRepo{db: t.tx} }
func (t *txStore) MFAChallenges() store.MFAChallenges { return &mfaChallengesRepo{db: t.tx} }
func (t *txStore) Vehicles() store.Vehicles           { return &vehiclesRepo{db: t.tx} }
func (t *txStore) Sites() store.Sites                 { return &sitesRepo{db: t.tx} }
func (t *txStore) Items() store.Items                 { return &itemsRepo{db: t.tx} }
func (t *txStore) Missions() store.Missions           { return &missionsRepo{db: t.tx} }

func (t *txStore) ApplyMigrations() error { return nil } // migrations run before any tx
