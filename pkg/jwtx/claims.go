package jwtx

import (
	"crypto/rand"
	"encoding/base64"
	"slices"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// DefaultSessionTTL is the lifetime of a session token when the caller does
// not configure one.
const DefaultSessionTTL = time.Hour

// Authenticator assurance levels.
const (
	AAL1 = "aal1"
	AAL2 = "aal2"
)

// Claims are the session-token claims. The shape follows the GoTrue access
// token so the web app can read either provider's tokens the same way.
type Claims struct {
	jwt.RegisteredClaims

	// Session ID
	SID string `json:"sid,omitempty"`

	Email string `json:"email,omitempty"`

	// Application role resolved at issue time ("dispatcher", "driver", ...).
	Role string `json:"role,omitempty"`

	// Organization the role was resolved against. Empty for staff.
	OrgID string `json:"org_id,omitempty"`

	// Authenticator assurance level, "aal1" or "aal2".
	AAL string `json:"aal,omitempty"`

	// Authentication Methods Reference ["pwd","otp","mfa"]
	AMR []string `json:"amr,omitempty"`
}

// ClaimsParams groups the inputs of NewSessionClaims.
type ClaimsParams struct {
	Subject  string
	SID      string
	Email    string
	Role     string
	OrgID    string
	AAL      string
	AMR      []string
	Issuer   string
	Audience []string
	TTL      time.Duration
	Now      time.Time
}

// NewSessionClaims builds minimally-correct claims.
func NewSessionClaims(p ClaimsParams) Claims {
	if p.TTL <= 0 {
		p.TTL = DefaultSessionTTL
	}
	if p.Now.IsZero() {
		p.Now = time.Now().UTC()
	}
	if p.AAL == "" {
		p.AAL = AAL1
	}

	return Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    p.Issuer,
			Subject:   p.Subject,
			Audience:  jwt.ClaimStrings(p.Audience),
			IssuedAt:  jwt.NewNumericDate(p.Now),
			NotBefore: jwt.NewNumericDate(p.Now),
			ExpiresAt: jwt.NewNumericDate(p.Now.Add(p.TTL)),
			ID:        NewJTI(),
		},
		SID:   p.SID,
		Email: p.Email,
		Role:  p.Role,
		OrgID: p.OrgID,
		AAL:   p.AAL,
		AMR:   p.AMR,
	}
}

// NewJTI returns a URL-safe random identifier for the "jti" claim.
func NewJTI() string {
	var b [20]byte
	_, _ = rand.Read(b[:])
	return base64.RawURLEncoding.EncodeToString(b[:])
}

// HasMethod reports whether method appears in the amr claim.
func (c *Claims) HasMethod(method string) bool {
	return slices.Contains(c.AMR, method)
}

// ValidateIssuer checks if the issuer matches expected value.
func (c *Claims) ValidateIssuer(expected string) error {
	if expected == "" {
		return nil // nothing to enforce
	}
	if c.Issuer != expected {
		return ErrIssuer
	}
	return nil
}

// ValidateAudience checks if at least one expected audience is present.
func (c *Claims) ValidateAudience(expected []string) error {
	if len(expected) == 0 {
		return nil // nothing to enforce
	}
	for _, want := range expected {
		if slices.Contains(c.Audience, want) {
			return nil
		}
	}
	return ErrAudience
}

// ValidateExpiry checks exp and nbf with a grace period for clock skew.
func (c *Claims) ValidateExpiry(leeway time.Duration) error {
	now := time.Now().UTC()

	if c.ExpiresAt != nil && now.After(c.ExpiresAt.Add(leeway)) {
		return ErrExpired
	}
	if c.NotBefore != nil && now.Before(c.NotBefore.Add(-leeway)) {
		return ErrNotYetValid
	}
	return nil
}
