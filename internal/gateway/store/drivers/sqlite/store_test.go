package sqlite_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/aussiebroadwan/fleetdesk/internal/gateway/domain"
	"github.com/aussiebroadwan/fleetdesk/internal/gateway/store"
	"github.com/aussiebroadwan/fleetdesk/internal/gateway/store/drivers/sqlite"
	"github.com/aussiebroadwan/fleetdesk/pkg/idx"
	"github.com/stretchr/testify/require"
)

func newStore(t *testing.T) *sqlite.Store {
	t.Helper()
	s, err := sqlite.NewStore(":memory:")
	require.NoError(t, err)
	require.NoError(t, s.ApplyMigrations())
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func createUser(t *testing.T, s store.Store, email string) domain.User {
	t.Helper()
	u := domain.User{ID: idx.New().String(), Email: email, PasswordHash: "hash"}
	require.NoError(t, s.Users().CreateUser(context.Background(), u))
	return u
}

func TestMigrationsAreIdempotent(t *testing.T) {
	s := newStore(t)
	require.NoError(t, s.ApplyMigrations())
	require.NoError(t, s.Ping(context.Background()))
}

func TestUsers(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)

	u := createUser(t, s, "Dispatch@Example.com")

	t.Run("email lookup ignores case", func(t *testing.T) {
		got, err := s.Users().GetUserByEmail(ctx, "dispatch@example.com")
		require.NoError(t, err)
		require.Equal(t, u.ID, got.ID)
		require.False(t, got.Confirmed())
	})

	t.Run("duplicate email", func(t *testing.T) {
		err := s.Users().CreateUser(ctx, domain.User{ID: idx.New().String(), Email: "DISPATCH@example.com"})
		require.ErrorIs(t, err, store.ErrAlreadyExists)
	})

	t.Run("missing user", func(t *testing.T) {
		_, err := s.Users().GetUserByID(ctx, "nope")
		require.ErrorIs(t, err, store.ErrNotFound)
	})

	t.Run("confirm keeps the first timestamp", func(t *testing.T) {
		first := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)
		require.NoError(t, s.Users().ConfirmEmail(ctx, u.ID, first))
		require.NoError(t, s.Users().ConfirmEmail(ctx, u.ID, first.Add(time.Hour)))

		got, err := s.Users().GetUserByID(ctx, u.ID)
		require.NoError(t, err)
		require.NotNil(t, got.EmailConfirmedAt)
		require.True(t, first.Equal(*got.EmailConfirmedAt))
	})

	t.Run("mfa lifecycle", func(t *testing.T) {
		require.ErrorIs(t, s.Users().EnableMFA(ctx, u.ID, time.Now()), store.ErrNotFound, "needs a secret first")

		require.NoError(t, s.Users().SetMFASecret(ctx, u.ID, "JBSWY3DPEHPK3PXP"))
		require.NoError(t, s.Users().EnableMFA(ctx, u.ID, time.Now()))

		got, err := s.Users().GetUserByID(ctx, u.ID)
		require.NoError(t, err)
		require.True(t, got.MFAEnabled())
		require.Equal(t, "JBSWY3DPEHPK3PXP", *got.MFASecret)

		require.NoError(t, s.Users().DisableMFA(ctx, u.ID))
		got, err = s.Users().GetUserByID(ctx, u.ID)
		require.NoError(t, err)
		require.False(t, got.MFAEnabled())
		require.Nil(t, got.MFASecret)
	})
}

func TestProfilesAndMemberships(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)

	owner := createUser(t, s, "owner@example.com")
	driver := createUser(t, s, "driver@example.com")

	override := domain.RoleSupervisor
	require.NoError(t, s.Profiles().UpsertProfile(ctx, domain.Profile{UserID: owner.ID, FirstName: "Olive", RoleOverride: &override}))
	require.NoError(t, s.Profiles().UpsertProfile(ctx, domain.Profile{UserID: owner.ID, FirstName: "Olivia", RoleOverride: &override}))

	p, err := s.Profiles().GetProfile(ctx, owner.ID)
	require.NoError(t, err)
	require.Equal(t, "Olivia", p.FirstName)
	require.Equal(t, domain.RoleSupervisor, *p.RoleOverride)

	_, err = s.Profiles().GetProfile(ctx, driver.ID)
	require.ErrorIs(t, err, store.ErrNotFound)

	org := domain.Organization{ID: idx.New().String(), Name: "Acme Freight", OwnerID: owner.ID}
	require.NoError(t, s.Organizations().CreateOrganization(ctx, org))

	require.NoError(t, s.Memberships().CreateMembership(ctx, domain.Membership{
		OrgID: org.ID, UserID: owner.ID, Role: domain.RoleAdmin, OrgRole: domain.OrgRoleOwner, Approved: true,
	}))
	require.NoError(t, s.Memberships().CreateMembership(ctx, domain.Membership{
		OrgID: org.ID, UserID: driver.ID, Role: domain.RoleDriver, OrgRole: domain.OrgRoleMember,
	}))
	require.ErrorIs(t, s.Memberships().CreateMembership(ctx, domain.Membership{
		OrgID: org.ID, UserID: driver.ID, Role: domain.RoleDriver, OrgRole: domain.OrgRoleMember,
	}), store.ErrAlreadyExists)

	_, err = s.Memberships().GetPrimaryMembership(ctx, driver.ID)
	require.ErrorIs(t, err, store.ErrNotFound, "unapproved memberships do not count")

	members, err := s.Memberships().ListMembers(ctx, org.ID)
	require.NoError(t, err)
	require.Len(t, members, 2)
	require.Equal(t, "owner@example.com", members[0].Email)

	require.NoError(t, s.Memberships().UpdateMemberRole(ctx, org.ID, driver.ID, domain.RoleDispatcher, domain.OrgRoleManager))
	m, err := s.Memberships().GetMembership(ctx, org.ID, driver.ID)
	require.NoError(t, err)
	require.Equal(t, domain.RoleDispatcher, m.Role)
	require.Equal(t, domain.OrgRoleManager, m.OrgRole)

	require.ErrorIs(t,
		s.Memberships().UpdateMemberRole(ctx, org.ID, "ghost", domain.RoleDriver, domain.OrgRoleMember),
		store.ErrNotFound)
}

func TestOneTimeTokens(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)
	u := createUser(t, s, "client@example.com")
	now := time.Now().UTC()

	live := domain.OneTimeToken{
		ID: idx.New().String(), UserID: u.ID, Type: domain.OTPSignup,
		Fingerprint: "fp-live", RedirectTo: "/home", ExpiresAt: now.Add(time.Hour),
	}
	stale := domain.OneTimeToken{
		ID: idx.New().String(), UserID: u.ID, Type: domain.OTPRecovery,
		Fingerprint: "fp-stale", ExpiresAt: now.Add(-time.Hour),
	}
	require.NoError(t, s.OneTimeTokens().CreateOneTimeToken(ctx, live))
	require.NoError(t, s.OneTimeTokens().CreateOneTimeToken(ctx, stale))

	got, err := s.OneTimeTokens().GetOneTimeTokenByFingerprint(ctx, "fp-live")
	require.NoError(t, err)
	require.Equal(t, domain.OTPSignup, got.Type)
	require.Equal(t, "/home", got.RedirectTo)
	require.Nil(t, got.UsedAt)

	require.NoError(t, s.OneTimeTokens().MarkOneTimeTokenUsed(ctx, live.ID, now))
	require.ErrorIs(t, s.OneTimeTokens().MarkOneTimeTokenUsed(ctx, live.ID, now), store.ErrNotFound)

	n, err := s.OneTimeTokens().DeleteExpiredOneTimeTokens(ctx, now)
	require.NoError(t, err)
	require.EqualValues(t, 2, n, "expired and used tokens are swept")
}

func TestFlowStatesSingleUse(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)
	u := createUser(t, s, "flow@example.com")

	f := domain.FlowState{
		ID: idx.New().String(), UserID: u.ID, CodeHash: "code-hash",
		CodeChallenge: "challenge", CodeChallengeMethod: "S256",
		AMR: []string{"pwd", "mfa"}, AAL: domain.AAL2, ExpiresAt: time.Now().Add(5 * time.Minute),
	}
	require.NoError(t, s.FlowStates().CreateFlowState(ctx, f))

	got, err := s.FlowStates().GetFlowStateByCodeHash(ctx, "code-hash")
	require.NoError(t, err)
	require.Equal(t, []string{"pwd", "mfa"}, got.AMR)
	require.Equal(t, domain.AAL2, got.AAL)

	require.NoError(t, s.FlowStates().MarkFlowStateUsed(ctx, f.ID, time.Now()))
	require.ErrorIs(t, s.FlowStates().MarkFlowStateUsed(ctx, f.ID, time.Now()), store.ErrNotFound)
}

func TestInvitations(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)
	owner := createUser(t, s, "boss@example.com")
	org := domain.Organization{ID: idx.New().String(), Name: "Depot", OwnerID: owner.ID}
	require.NoError(t, s.Organizations().CreateOrganization(ctx, org))

	inv := domain.Invitation{
		ID: idx.New().String(), OrgID: org.ID, InviterID: owner.ID, Email: "new@example.com",
		Role: domain.RoleDriver, OrgRole: domain.OrgRoleMember, TokenHash: "inv-hash",
		ExpiresAt: time.Now().Add(7 * 24 * time.Hour),
	}
	require.NoError(t, s.Invitations().CreateInvitation(ctx, inv))

	got, err := s.Invitations().GetInvitationByTokenHash(ctx, "inv-hash")
	require.NoError(t, err)
	require.Equal(t, domain.InvitationPending, got.Status)
	require.True(t, got.Redeemable(time.Now()))

	require.NoError(t, s.Invitations().MarkInvitationAccepted(ctx, inv.ID, owner.ID, time.Now()))
	require.ErrorIs(t, s.Invitations().MarkInvitationAccepted(ctx, inv.ID, owner.ID, time.Now()), store.ErrNotFound)

	got, err = s.Invitations().GetInvitationByTokenHash(ctx, "inv-hash")
	require.NoError(t, err)
	require.Equal(t, domain.InvitationAccepted, got.Status)
	require.Equal(t, owner.ID, got.AcceptedBy)
}

func TestBackupCodesAndChallenges(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)
	u := createUser(t, s, "mfa@example.com")

	for _, code := range []string{"a", "b", "c"} {
		require.NoError(t, s.BackupCodes().CreateBackupCode(ctx, u.ID, code))
	}
	ok, err := s.BackupCodes().ConsumeBackupCode(ctx, u.ID, "b")
	require.NoError(t, err)
	require.True(t, ok)
	ok, err = s.BackupCodes().ConsumeBackupCode(ctx, u.ID, "b")
	require.NoError(t, err)
	require.False(t, ok)

	count, err := s.BackupCodes().CountUserBackupCodes(ctx, u.ID)
	require.NoError(t, err)
	require.Equal(t, 2, count)

	now := time.Now().UTC()
	c := domain.MFAChallenge{ID: idx.New().String(), UserID: u.ID, AMR: []string{"pwd"}, ExpiresAt: now.Add(5 * time.Minute)}
	require.NoError(t, s.MFAChallenges().CreateMFAChallenge(ctx, c))

	got, err := s.MFAChallenges().IncrementMFAChallengeAttempts(ctx, c.ID)
	require.NoError(t, err)
	require.Equal(t, 1, got.Attempts)

	_, err = s.MFAChallenges().GetMFAChallenge(ctx, c.ID, now.Add(time.Hour))
	require.ErrorIs(t, err, store.ErrNotFound, "expired challenges are invisible")

	_, err = s.MFAChallenges().IncrementMFAChallengeAttempts(ctx, "missing")
	require.ErrorIs(t, err, store.ErrNotFound)
}

func TestWithTxRollsBack(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)

	boom := errors.New("boom")
	err := s.WithTx(ctx, func(tx store.Tx) error {
		require.NoError(t, tx.Users().CreateUser(ctx, domain.User{ID: idx.New().String(), Email: "tx@example.com"}))
		return boom
	})
	require.ErrorIs(t, err, boom)

	_, err = s.Users().GetUserByEmail(ctx, "tx@example.com")
	require.ErrorIs(t, err, store.ErrNotFound)

	require.NoError(t, s.WithTx(ctx, func(tx store.Tx) error {
		return tx.Users().CreateUser(ctx, domain.User{ID: idx.New().String(), Email: "tx@example.com"})
	}))
	_, err = s.Users().GetUserByEmail(ctx, "tx@example.com")
	require.NoError(t, err)
}
