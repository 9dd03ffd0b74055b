package domain

import (
	"slices"
	"time"
)

// Authentication method references.
const (
	AMRPassword  = "pwd"
	AMROTP       = "otp"
	AMRMFA       = "mfa"
	AMRInvite    = "invite"
	AMRMagicLink = "magiclink"
)

// Authenticator assurance levels.
const (
	AAL1 = "aal1"
	AAL2 = "aal2"
)

// Identity is a proven user, as returned by an identity provider after a
// link verification or code exchange.
type Identity struct {
	UserID string
	Email  string
	AMR    []string
	AAL    string
}

// WithMFA returns a copy upgraded to AAL2.
func (id Identity) WithMFA() Identity {
	out := id
	out.AMR = append(slices.Clone(id.AMR), AMRMFA)
	out.AAL = AAL2
	return out
}

// Session is the result of issuing a session token for an identity.
type Session struct {
	AccessToken string
	TokenType   string
	ExpiresIn   int
	ExpiresAt   time.Time
	UserID      string
	Email       string
	Role        Role
	OrgID       string
	AAL         string
}
