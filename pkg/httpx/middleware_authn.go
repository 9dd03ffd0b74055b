package httpx

import (
	"net/http"
	"strings"

	"github.com/aussiebroadwan/fleetdesk/pkg/jwtx"
	"github.com/aussiebroadwan/fleetdesk/pkg/slogx"
)

// TokenVerifier validates a session token.
type TokenVerifier interface {
	Verify(token string) (*jwtx.Claims, error)
}

// TokenFromRequest returns the bearer token, falling back to the session
// cookie so browser navigations and API clients share one code path.
func TokenFromRequest(r *http.Request, cookie CookieOptions) string {
	if authz := r.Header.Get("Authorization"); strings.HasPrefix(authz, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(authz, "Bearer "))
	}
	if cookie.Name != "" {
		return cookie.Read(r)
	}
	return ""
}

// Authenticate verifies the caller's session when one is presented and
// stores the claims on the context. Anonymous requests pass through
// untouched; an invalid token is treated as anonymous.
func Authenticate(v TokenVerifier, cookie CookieOptions) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := TokenFromRequest(r, cookie)
			if raw == "" {
				next.ServeHTTP(w, r)
				return
			}

			ctx := r.Context()
			claims, err := v.Verify(raw)
			if err != nil {
				slogx.FromContext(ctx).Debug("session token rejected", "err", err)
				next.ServeHTTP(w, r)
				return
			}

			ctx = WithClaims(ctx, claims)
			ctx = slogx.WithUser(ctx, claims.Subject, claims.Role)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireSession rejects requests without verified claims with an RFC 6750
// bearer error.
func RequireSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := ClaimsFromContext(r.Context()); !ok {
			writeBearerError(w, "missing or invalid session")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RFC 6750-compliant error response for bearer auth.
func writeBearerError(w http.ResponseWriter, desc string) {
	w.Header().Set("WWW-Authenticate", `Bearer error="invalid_token", error_description="`+desc+`"`)
	WriteError(w, http.StatusUnauthorized, "invalid_token", desc)
}
