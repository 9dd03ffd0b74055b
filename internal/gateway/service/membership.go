package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/aussiebroadwan/fleetdesk/internal/gateway/domain"
	"github.com/aussiebroadwan/fleetdesk/internal/gateway/store"
	"github.com/aussiebroadwan/fleetdesk/pkg/cryptox"
	"github.com/aussiebroadwan/fleetdesk/pkg/idx"
	"github.com/aussiebroadwan/fleetdesk/pkg/slogx"
)

// DefaultInvitationTTL is how long an invitation link stays valid.
const DefaultInvitationTTL = 7 * 24 * time.Hour

// MembershipService manages organizations, their members and the
// application role each user acts under.
type MembershipService struct {
	Store   store.Store
	Hasher  cryptox.PasswordHasher
	Mailer  Mailer
	SiteURL string

	InvitationTTL     time.Duration
	MinPasswordLength int

	Now func() time.Time
}

func (s *MembershipService) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

// ResolvedRole is the role a session is issued with.
type ResolvedRole struct {
	Role  domain.Role
	OrgID string
}

// ResolveRole picks the user's application role: a profile override wins,
// then the primary approved membership, then staff.
func (s *MembershipService) ResolveRole(ctx context.Context, userID string) (ResolvedRole, error) {
	var out ResolvedRole

	m, err := s.Store.Memberships().GetPrimaryMembership(ctx, userID)
	switch {
	case err == nil:
		out = ResolvedRole{Role: m.Role, OrgID: m.OrgID}
	case errors.Is(err, store.ErrNotFound):
		out = ResolvedRole{Role: domain.RoleStaff}
	default:
		return ResolvedRole{}, fmt.Errorf("load membership: %w", err)
	}

	p, err := s.Store.Profiles().GetProfile(ctx, userID)
	switch {
	case err == nil:
		if p.RoleOverride != nil {
			out.Role = *p.RoleOverride
		}
	case errors.Is(err, store.ErrNotFound):
	default:
		return ResolvedRole{}, fmt.Errorf("load profile: %w", err)
	}

	return out, nil
}

// CreateOrganization creates an organization owned by ownerID, who joins
// it as admin.
func (s *MembershipService) CreateOrganization(ctx context.Context, ownerID, name string) (domain.Organization, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return domain.Organization{}, ErrValidation.WithMessage("organization name is required")
	}

	now := s.now()
	org := domain.Organization{
		ID:        idx.NewAt(now).String(),
		Name:      name,
		OwnerID:   ownerID,
		CreatedAt: now,
	}

	err := s.Store.WithTx(ctx, func(tx store.Tx) error {
		if err := tx.Organizations().CreateOrganization(ctx, org); err != nil {
			return fmt.Errorf("create organization: %w", err)
		}
		return tx.Memberships().CreateMembership(ctx, domain.Membership{
			OrgID:     org.ID,
			UserID:    ownerID,
			Role:      domain.RoleAdmin,
			OrgRole:   domain.OrgRoleOwner,
			Approved:  true,
			CreatedAt: now,
			UpdatedAt: now,
		})
	})
	if err != nil {
		return domain.Organization{}, err
	}

	slogx.FromContext(ctx).Info("organization created", slog.String("org_id", org.ID))
	return org, nil
}

// InviteParams are the inputs of Invite.
type InviteParams struct {
	OrgID     string
	InviterID string
	Email     string
	Role      domain.Role
	OrgRole   domain.OrgRole
}

// Invite creates a pending invitation and mails its link. Only owners may
// hand out the admin role.
func (s *MembershipService) Invite(ctx context.Context, p InviteParams) (domain.Invitation, error) {
	email, err := normalizeEmail(p.Email)
	if err != nil {
		return domain.Invitation{}, err
	}
	if _, err := domain.ParseRole(string(p.Role)); err != nil {
		return domain.Invitation{}, ErrValidation.WithMessage(err.Error())
	}
	if p.OrgRole == "" {
		p.OrgRole = domain.OrgRoleMember
	}
	if _, err := domain.ParseOrgRole(string(p.OrgRole)); err != nil || p.OrgRole == domain.OrgRoleOwner {
		return domain.Invitation{}, ErrValidation.WithMessage(fmt.Sprintf("cannot invite as %q", p.OrgRole))
	}

	inviter, err := s.manager(ctx, p.OrgID, p.InviterID)
	if err != nil {
		return domain.Invitation{}, err
	}
	if p.Role == domain.RoleAdmin && inviter.OrgRole != domain.OrgRoleOwner {
		return domain.Invitation{}, ErrForbidden
	}

	token, err := cryptox.GenerateToken(cryptox.TokenSize256)
	if err != nil {
		return domain.Invitation{}, err
	}

	ttl := s.InvitationTTL
	if ttl <= 0 {
		ttl = DefaultInvitationTTL
	}
	now := s.now()
	inv := domain.Invitation{
		ID:        idx.NewAt(now).String(),
		OrgID:     p.OrgID,
		InviterID: p.InviterID,
		Email:     email,
		Role:      p.Role,
		OrgRole:   p.OrgRole,
		TokenHash: cryptox.FingerprintToken(token),
		Status:    domain.InvitationPending,
		ExpiresAt: now.Add(ttl),
		CreatedAt: now,
	}
	if err := s.Store.Invitations().CreateInvitation(ctx, inv); err != nil {
		return domain.Invitation{}, fmt.Errorf("store invitation: %w", err)
	}

	if s.Mailer != nil {
		link := strings.TrimSuffix(s.SiteURL, "/") + "/auth/accept-invitation?" + url.Values{"token": {token}}.Encode()
		if err := s.Mailer.Send(ctx, Message{To: email, Kind: string(domain.OTPInvite), Link: link}); err != nil {
			return domain.Invitation{}, fmt.Errorf("send invitation: %w", err)
		}
	}

	slogx.FromContext(ctx).Info("invitation created",
		slog.String("org_id", p.OrgID), slog.String("invitation_id", inv.ID), slog.String("role", string(p.Role)))
	return inv, nil
}

// AcceptInvitationParams are the inputs of AcceptInvitation.
type AcceptInvitationParams struct {
	Token     string
	Email     string
	Password  string
	FirstName string
	LastName  string
}

// AcceptInvitation redeems an invitation: it creates a confirmed account,
// its profile and an approved membership in one transaction.
func (s *MembershipService) AcceptInvitation(ctx context.Context, p AcceptInvitationParams) (*domain.Identity, error) {
	token := strings.TrimSpace(p.Token)
	if token == "" {
		return nil, ErrInvitationInvalid
	}
	email, err := normalizeEmail(p.Email)
	if err != nil {
		return nil, err
	}
	if err := checkPassword(p.Password, s.MinPasswordLength); err != nil {
		return nil, err
	}
	hash, err := s.Hasher.Hash(p.Password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	now := s.now()
	var id *domain.Identity

	err = s.Store.WithTx(ctx, func(tx store.Tx) error {
		inv, err := tx.Invitations().GetInvitationByTokenHash(ctx, cryptox.FingerprintToken(token))
		if errors.Is(err, store.ErrNotFound) {
			return ErrInvitationInvalid
		}
		if err != nil {
			return err
		}
		if !inv.Redeemable(now) || !strings.EqualFold(inv.Email, email) {
			return ErrInvitationInvalid
		}

		user := domain.User{
			ID:               idx.NewAt(now).String(),
			Email:            email,
			PasswordHash:     hash,
			EmailConfirmedAt: &now,
			CreatedAt:        now,
			UpdatedAt:        now,
		}
		if err := tx.Users().CreateUser(ctx, user); err != nil {
			if errors.Is(err, store.ErrAlreadyExists) {
				return ErrUserAlreadyExists
			}
			return err
		}

		err = tx.Profiles().UpsertProfile(ctx, domain.Profile{
			UserID:    user.ID,
			FirstName: strings.TrimSpace(p.FirstName),
			LastName:  strings.TrimSpace(p.LastName),
			UpdatedAt: now,
		})
		if err != nil {
			return fmt.Errorf("create profile: %w", err)
		}

		err = tx.Memberships().CreateMembership(ctx, domain.Membership{
			OrgID:     inv.OrgID,
			UserID:    user.ID,
			Role:      inv.Role,
			OrgRole:   inv.OrgRole,
			Approved:  true,
			CreatedAt: now,
			UpdatedAt: now,
		})
		if err != nil {
			return fmt.Errorf("create membership: %w", err)
		}

		if err := tx.Invitations().MarkInvitationAccepted(ctx, inv.ID, user.ID, now); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return ErrInvitationInvalid
			}
			return err
		}

		id = &domain.Identity{
			UserID: user.ID,
			Email:  user.Email,
			AMR:    []string{domain.AMRInvite},
			AAL:    domain.AAL1,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	slogx.FromContext(ctx).Info("invitation accepted", slog.String("user_id", id.UserID))
	return id, nil
}

// ListMembers returns the organization's members. Any member may list.
func (s *MembershipService) ListMembers(ctx context.Context, orgID, actorID string) ([]domain.Membership, error) {
	if _, err := s.member(ctx, orgID, actorID); err != nil {
		return nil, err
	}
	return s.Store.Memberships().ListMembers(ctx, orgID)
}

// UpdateMemberRole changes a member's application role. The owner's
// membership cannot be changed and only owners may grant admin.
func (s *MembershipService) UpdateMemberRole(ctx context.Context, orgID, actorID, userID string, role domain.Role) (domain.Membership, error) {
	if _, err := domain.ParseRole(string(role)); err != nil {
		return domain.Membership{}, ErrValidation.WithMessage(err.Error())
	}

	actor, err := s.manager(ctx, orgID, actorID)
	if err != nil {
		return domain.Membership{}, err
	}
	if role == domain.RoleAdmin && actor.OrgRole != domain.OrgRoleOwner {
		return domain.Membership{}, ErrForbidden
	}

	target, err := s.Store.Memberships().GetMembership(ctx, orgID, userID)
	if errors.Is(err, store.ErrNotFound) {
		return domain.Membership{}, ErrUserNotFound
	}
	if err != nil {
		return domain.Membership{}, err
	}
	if target.OrgRole == domain.OrgRoleOwner {
		return domain.Membership{}, ErrForbidden.WithMessage("the owner's role cannot be changed")
	}

	if err := s.Store.Memberships().UpdateMemberRole(ctx, orgID, userID, role, target.OrgRole); err != nil {
		return domain.Membership{}, fmt.Errorf("update member role: %w", err)
	}
	target.Role = role

	slogx.FromContext(ctx).Info("member role updated",
		slog.String("org_id", orgID), slog.String("member_id", userID), slog.String("role", string(role)))
	return target, nil
}

func (s *MembershipService) member(ctx context.Context, orgID, userID string) (domain.Membership, error) {
	return approvedMember(ctx, s.Store, orgID, userID)
}

// approvedMember loads the caller's membership. An unknown organization is
// ErrOrganizationNotFound; a missing or unapproved membership is
// ErrForbidden.
func approvedMember(ctx context.Context, st store.Store, orgID, userID string) (domain.Membership, error) {
	if _, err := st.Organizations().GetOrganization(ctx, orgID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.Membership{}, ErrOrganizationNotFound
		}
		return domain.Membership{}, err
	}
	m, err := st.Memberships().GetMembership(ctx, orgID, userID)
	if errors.Is(err, store.ErrNotFound) || (err == nil && !m.Approved) {
		return domain.Membership{}, ErrForbidden
	}
	return m, err
}

func (s *MembershipService) manager(ctx context.Context, orgID, userID string) (domain.Membership, error) {
	m, err := s.member(ctx, orgID, userID)
	if err != nil {
		return domain.Membership{}, err
	}
	if !m.OrgRole.CanManageMembers() {
		return domain.Membership{}, ErrForbidden
	}
	return m, nil
}
