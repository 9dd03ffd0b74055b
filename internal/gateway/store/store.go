package store

import (
	"context"
	"errors"
	"time"

	"github.com/aussiebroadwan/fleetdesk/internal/gateway/domain"
)

var (
	ErrNotFound      = errors.New("store: not found")
	ErrAlreadyExists = errors.New("store: already exists")
	ErrInUse         = errors.New("store: still referenced")
)

// Store is the root data access interface. Drivers implement it and expose
// sub-repositories; a Tx exposes the same repos bound to one transaction.
type Store interface {
	Users() Users
	Profiles() Profiles
	Organizations() Organizations
	Memberships() Memberships
	OneTimeTokens() OneTimeTokens
	FlowStates() FlowStates
	Invitations() Invitations
	BackupCodes() BackupCodes
	MFAChallenges() MFAChallenges

	Vehicles() Vehicles
	Sites() Sites
	Items() Items
	Missions() Missions

	ApplyMigrations() error

	// Tx starts a read/write transaction and returns a Tx-scoped Store.
	// The caller MUST call Commit() or Rollback() on the returned Tx.
	Tx(ctx context.Context) (Tx, error)

	// WithTx runs fn in a transaction, committing when fn returns nil and
	// rolling back otherwise.
	WithTx(ctx context.Context, fn func(tx Tx) error) error

	// Close releases any underlying resources.
	Close() error

	// Ping verifies the database connection is still alive.
	Ping(ctx context.Context) error
}

// Tx is a transactional store. It embeds the same repos but adds Commit/Rollback.
type Tx interface {
	Store
	Commit() error
	Rollback() error
}

type Users interface {
	// CreateUser inserts a new user. A taken email gives ErrAlreadyExists.
	CreateUser(ctx context.Context, u domain.User) error

	GetUserByID(ctx context.Context, id string) (domain.User, error)

	// GetUserByEmail matches case-insensitively.
	GetUserByEmail(ctx context.Context, email string) (domain.User, error)

	// ConfirmEmail sets email_confirmed_at if it is still null.
	ConfirmEmail(ctx context.Context, userID string, at time.Time) error

	// UpdatePasswordHash sets the password_hash (argon2) and bumps updated_at.
	UpdatePasswordHash(ctx context.Context, userID string, newHash string) error

	// SetMFASecret stores a pending TOTP secret without enabling MFA.
	SetMFASecret(ctx context.Context, userID string, secret string) error

	// EnableMFA marks MFA as enabled (sets mfa_enabled_at).
	EnableMFA(ctx context.Context, userID string, at time.Time) error

	// DisableMFA clears mfa_enabled_at and mfa_secret.
	DisableMFA(ctx context.Context, userID string) error
}

type Profiles interface {
	// UpsertProfile creates or replaces the profile row.
	UpsertProfile(ctx context.Context, p domain.Profile) error

	GetProfile(ctx context.Context, userID string) (domain.Profile, error)
}

type Organizations interface {
	CreateOrganization(ctx context.Context, o domain.Organization) error
	GetOrganization(ctx context.Context, id string) (domain.Organization, error)
}

type Memberships interface {
	// CreateMembership fails with ErrAlreadyExists for a duplicate pair.
	CreateMembership(ctx context.Context, m domain.Membership) error

	GetMembership(ctx context.Context, orgID, userID string) (domain.Membership, error)

	// GetPrimaryMembership returns the user's oldest approved membership.
	GetPrimaryMembership(ctx context.Context, userID string) (domain.Membership, error)

	// ListMembers returns every membership of the organization, oldest first.
	ListMembers(ctx context.Context, orgID string) ([]domain.Membership, error)

	UpdateMemberRole(ctx context.Context, orgID, userID string, role domain.Role, orgRole domain.OrgRole) error
}

type OneTimeTokens interface {
	CreateOneTimeToken(ctx context.Context, t domain.OneTimeToken) error

	// GetOneTimeTokenByFingerprint returns the token regardless of expiry or
	// use; callers decide.
	GetOneTimeTokenByFingerprint(ctx context.Context, fingerprint string) (domain.OneTimeToken, error)

	// MarkOneTimeTokenUsed consumes the token. ErrNotFound when it was
	// already used.
	MarkOneTimeTokenUsed(ctx context.Context, id string, at time.Time) error

	// DeleteUserTokens drops unused tokens of one type so only the newest
	// link works.
	DeleteUserTokens(ctx context.Context, userID string, t domain.OTPType) error

	DeleteExpiredOneTimeTokens(ctx context.Context, now time.Time) (int64, error)
}

type FlowStates interface {
	CreateFlowState(ctx context.Context, f domain.FlowState) error
	GetFlowStateByCodeHash(ctx context.Context, hash string) (domain.FlowState, error)

	// MarkFlowStateUsed consumes the code. ErrNotFound when it was already
	// used.
	MarkFlowStateUsed(ctx context.Context, id string, at time.Time) error

	DeleteExpiredFlowStates(ctx context.Context, now time.Time) (int64, error)
}

type Invitations interface {
	CreateInvitation(ctx context.Context, inv domain.Invitation) error
	GetInvitationByTokenHash(ctx context.Context, hash string) (domain.Invitation, error)

	// MarkInvitationAccepted flips a pending invitation. ErrNotFound when it
	// is no longer pending.
	MarkInvitationAccepted(ctx context.Context, id, userID string, at time.Time) error

	// DeleteExpiredInvitations removes pending invitations past expiry.
	DeleteExpiredInvitations(ctx context.Context, now time.Time) (int64, error)
}

type BackupCodes interface {
	// CreateBackupCode stores a backup code fingerprint for a user.
	CreateBackupCode(ctx context.Context, userID string, codeHash string) error

	// ConsumeBackupCode deletes the code and reports whether it existed.
	ConsumeBackupCode(ctx context.Context, userID string, codeHash string) (bool, error)

	// DeleteAllBackupCodes removes all backup codes for a user.
	DeleteAllBackupCodes(ctx context.Context, userID string) error

	// CountUserBackupCodes returns the number of backup codes for a user.
	CountUserBackupCodes(ctx context.Context, userID string) (int, error)
}

type MFAChallenges interface {
	CreateMFAChallenge(ctx context.Context, c domain.MFAChallenge) error

	// GetMFAChallenge returns an unexpired challenge.
	GetMFAChallenge(ctx context.Context, id string, now time.Time) (domain.MFAChallenge, error)

	// IncrementMFAChallengeAttempts bumps the failure counter and returns the
	// updated row.
	IncrementMFAChallengeAttempts(ctx context.Context, id string) (domain.MFAChallenge, error)

	DeleteMFAChallenge(ctx context.Context, id string) error

	DeleteExpiredMFAChallenges(ctx context.Context, now time.Time) (int64, error)
}

// Fleet repositories scope every lookup by organization, so a row of
// another organization reads as ErrNotFound.

type Vehicles interface {
	CreateVehicle(ctx context.Context, v domain.Vehicle) error
	GetVehicle(ctx context.Context, orgID, id string) (domain.Vehicle, error)
	ListVehicles(ctx context.Context, orgID string) ([]domain.Vehicle, error)
	UpdateVehiclePosition(ctx context.Context, orgID, id string, p domain.Point, at time.Time) error

	// DeleteVehicle fails with ErrInUse while a mission uses the vehicle.
	DeleteVehicle(ctx context.Context, orgID, id string) error
}

type Sites interface {
	CreateSite(ctx context.Context, s domain.Site) error
	GetSite(ctx context.Context, orgID, id string) (domain.Site, error)
	ListSites(ctx context.Context, orgID string) ([]domain.Site, error)

	// DeleteSite fails with ErrInUse while a mission stops there. Items
	// picked up or dropped there lose the reference.
	DeleteSite(ctx context.Context, orgID, id string) error
}

type Items interface {
	CreateItem(ctx context.Context, i domain.Item) error
	GetItem(ctx context.Context, orgID, id string) (domain.Item, error)
	ListItems(ctx context.Context, orgID string) ([]domain.Item, error)

	// ListItemsAtSite returns items picked up or dropped at the site.
	ListItemsAtSite(ctx context.Context, orgID, siteID string) ([]domain.Item, error)

	// ListItemsMissingDropoff returns assigned or in-transit items without
	// a dropoff site.
	ListItemsMissingDropoff(ctx context.Context, orgID string) ([]domain.Item, error)

	// AssignItems sets the status of ids and, when dropoffSiteID is not
	// empty, their dropoff site.
	AssignItems(ctx context.Context, orgID string, ids []string, status domain.ItemStatus, dropoffSiteID string) error

	// SetItemDropoff sets the dropoff site. An empty siteID clears it.
	SetItemDropoff(ctx context.Context, orgID, id, siteID string) error

	// DeleteItem fails with ErrInUse while a mission carries the item.
	DeleteItem(ctx context.Context, orgID, id string) error
}

type Missions interface {
	// CreateMission stores the mission with its stops and item list.
	CreateMission(ctx context.Context, m domain.Mission) error

	// GetMission returns the mission with its stops in sequence order.
	GetMission(ctx context.Context, orgID, id string) (domain.Mission, error)

	// ListMissions returns missions newest planned date first.
	ListMissions(ctx context.Context, orgID string) ([]domain.Mission, error)

	// ListMissionsWithItem returns the missions carrying itemID, newest
	// first.
	ListMissionsWithItem(ctx context.Context, orgID, itemID string) ([]domain.Mission, error)

	// UpdateMissionStatus sets the status and the start or end time when
	// given.
	UpdateMissionStatus(ctx context.Context, orgID, id string, st domain.MissionStatus, startedAt, endedAt *time.Time) error

	UpdateStopStatus(ctx context.Context, missionID, stopID string, st domain.StopStatus, arrivedAt, departedAt *time.Time) error

	DeleteMission(ctx context.Context, orgID, id string) error
}
