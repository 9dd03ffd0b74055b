package http

import (
	"context"
	"fmt"
	"net/http"

	"github.com/aussiebroadwan/fleetdesk/internal/gateway/domain"
	"github.com/aussiebroadwan/fleetdesk/internal/gateway/service"
	"github.com/aussiebroadwan/fleetdesk/pkg/authsdk"
	"github.com/aussiebroadwan/fleetdesk/pkg/httpx"
)

// sessionWriter issues sessions for proven identities and renders them as
// a cookie or a JSON body.
type sessionWriter struct {
	Sessions *service.SessionService
	Identity *service.IdentityService
	Cookie   httpx.CookieOptions
}

// issue signs a session for id.
func (s *sessionWriter) issue(ctx context.Context, id *domain.Identity) (domain.Session, error) {
	if id == nil {
		return domain.Session{}, fmt.Errorf("issue session: no identity")
	}
	return s.Sessions.Issue(ctx, *id)
}

// setCookie issues a session and stores it in the session cookie.
func (s *sessionWriter) setCookie(w http.ResponseWriter, r *http.Request, id *domain.Identity) error {
	sess, err := s.issue(r.Context(), id)
	if err != nil {
		return err
	}
	s.Cookie.Set(w, sess.AccessToken)
	return nil
}

// writeJSON issues a session and writes it as a SessionResponse.
func (s *sessionWriter) writeJSON(w http.ResponseWriter, r *http.Request, id *domain.Identity) {
	ctx := r.Context()

	sess, err := s.issue(ctx, id)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	resp := authsdk.SessionResponse{
		AccessToken: sess.AccessToken,
		TokenType:   sess.TokenType,
		ExpiresIn:   sess.ExpiresIn,
		ExpiresAt:   sess.ExpiresAt.Unix(),
		Role:        string(sess.Role),
		OrgID:       sess.OrgID,
		AAL:         sess.AAL,
		User:        authsdk.User{ID: sess.UserID, Email: sess.Email, Role: string(sess.Role)},
	}

	// Remote identities have no local account row.
	if s.Identity != nil {
		if u, err := s.Identity.GetUser(ctx, sess.UserID); err == nil {
			resp.User = toUser(u, sess.Role)
		}
	}

	httpx.WriteJSON(w, http.StatusOK, resp)
}

func toUser(u domain.User, role domain.Role) authsdk.User {
	return authsdk.User{
		ID:               u.ID,
		Email:            u.Email,
		Role:             string(role),
		EmailConfirmedAt: u.EmailConfirmedAt,
		MFAEnabled:       u.MFAEnabled(),
		CreatedAt:        u.CreatedAt,
	}
}
