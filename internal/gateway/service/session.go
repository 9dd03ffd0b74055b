package service

import (
	"context"
	"fmt"
	"time"

	"github.com/aussiebroadwan/fleetdesk/internal/gateway/domain"
	"github.com/aussiebroadwan/fleetdesk/pkg/idx"
	"github.com/aussiebroadwan/fleetdesk/pkg/jwtx"
)

// RoleResolver decides the role a session is issued with.
type RoleResolver interface {
	ResolveRole(ctx context.Context, userID string) (ResolvedRole, error)
}

// SessionService turns a proven identity into a signed session token.
type SessionService struct {
	Signer   *jwtx.Signer
	Verifier *jwtx.Verifier
	Roles    RoleResolver
	Issuer   string
	Audience []string
	TTL      time.Duration

	Now func() time.Time
}

func (s *SessionService) ttl() time.Duration {
	if s.TTL > 0 {
		return s.TTL
	}
	return jwtx.DefaultSessionTTL
}

// Issue resolves the identity's role and signs a session token for it.
func (s *SessionService) Issue(ctx context.Context, id domain.Identity) (domain.Session, error) {
	resolved, err := s.Roles.ResolveRole(ctx, id.UserID)
	if err != nil {
		return domain.Session{}, fmt.Errorf("resolve role: %w", err)
	}

	now := time.Now().UTC()
	if s.Now != nil {
		now = s.Now().UTC()
	}

	claims := jwtx.NewSessionClaims(jwtx.ClaimsParams{
		Subject:  id.UserID,
		SID:      idx.NewAt(now).String(),
		Email:    id.Email,
		Role:     string(resolved.Role),
		OrgID:    resolved.OrgID,
		AAL:      id.AAL,
		AMR:      id.AMR,
		Issuer:   s.Issuer,
		Audience: s.Audience,
		TTL:      s.ttl(),
		Now:      now,
	})

	token, err := s.Signer.Sign(claims)
	if err != nil {
		return domain.Session{}, fmt.Errorf("sign session: %w", err)
	}

	return domain.Session{
		AccessToken: token,
		TokenType:   "bearer",
		ExpiresIn:   int(s.ttl().Seconds()),
		ExpiresAt:   claims.ExpiresAt.Time,
		UserID:      id.UserID,
		Email:       id.Email,
		Role:        resolved.Role,
		OrgID:       resolved.OrgID,
		AAL:         claims.AAL,
	}, nil
}

// Verify checks a session token and returns its claims.
func (s *SessionService) Verify(token string) (*jwtx.Claims, error) {
	return s.Verifier.Verify(token)
}
