package domain

import (
	"fmt"
	"time"
)

// OTPType is the kind of email link a token hash was minted for.
type OTPType string

const (
	OTPSignup      OTPType = "signup"
	OTPInvite      OTPType = "invite"
	OTPMagicLink   OTPType = "magiclink"
	OTPRecovery    OTPType = "recovery"
	OTPEmailChange OTPType = "email_change"
	OTPEmail       OTPType = "email"
)

// ParseOTPType accepts only the known link types.
func ParseOTPType(s string) (OTPType, error) {
	t := OTPType(s)
	switch t {
	case OTPSignup, OTPInvite, OTPMagicLink, OTPRecovery, OTPEmailChange, OTPEmail:
		return t, nil
	}
	return "", fmt.Errorf("unknown otp type %q", s)
}

// Matches reports whether a token minted as t may be redeemed as want.
// "email" is the generic type and redeems signup and magic link tokens.
func (t OTPType) Matches(want OTPType) bool {
	if t == want {
		return true
	}
	return want == OTPEmail && (t == OTPSignup || t == OTPMagicLink)
}

// ConfirmsEmail reports whether redeeming the token proves ownership of the
// address.
func (t OTPType) ConfirmsEmail() bool {
	switch t {
	case OTPSignup, OTPInvite, OTPMagicLink, OTPEmail, OTPRecovery:
		return true
	}
	return false
}

// OneTimeToken backs an emailed link. Only the fingerprint of the token
// hash is stored.
type OneTimeToken struct {
	ID          string
	UserID      string
	Type        OTPType
	Fingerprint string
	RedirectTo  string
	ExpiresAt   time.Time
	UsedAt      *time.Time
	CreatedAt   time.Time
}

// FlowState is a pending PKCE authorization code.
type FlowState struct {
	ID                  string
	UserID              string
	CodeHash            string
	CodeChallenge       string
	CodeChallengeMethod string
	AMR                 []string
	AAL                 string
	ExpiresAt           time.Time
	UsedAt              *time.Time
	CreatedAt           time.Time
}
