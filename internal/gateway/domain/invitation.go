package domain

import "time"

type InvitationStatus string

const (
	InvitationPending  InvitationStatus = "pending"
	InvitationAccepted InvitationStatus = "accepted"
	InvitationRevoked  InvitationStatus = "revoked"
)

type Invitation struct {
	ID          string
	OrgID       string
	InviterID   string
	Email       string
	Role        Role
	OrgRole     OrgRole
	TokenHash   string
	Status      InvitationStatus
	ExpiresAt   time.Time
	AcceptedAt  *time.Time
	AcceptedBy  string
	CreatedAt   time.Time
}

// Redeemable reports whether the invitation can still be accepted at now.
func (i *Invitation) Redeemable(now time.Time) bool {
	return i.Status == InvitationPending && now.Before(i.ExpiresAt)
}
