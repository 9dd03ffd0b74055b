package authsdk

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/aussiebroadwan/fleetdesk/pkg/cryptox"
	"github.com/aussiebroadwan/fleetdesk/pkg/jwtx"
	"github.com/stretchr/testify/require"
)

func newStubServer(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return NewClient(srv.URL + "/")
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func TestSignInWithPassword(t *testing.T) {
	t.Parallel()

	expires := time.Now().Add(time.Hour).Truncate(time.Second)
	client := newStubServer(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/auth/v1/token", r.URL.Path)
		require.Equal(t, GrantPassword, r.URL.Query().Get("grant_type"))
		require.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var req TokenRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Equal(t, "a@example.com", req.Email)

		writeJSON(w, http.StatusOK, SessionResponse{
			AccessToken: "tok",
			TokenType:   "bearer",
			ExpiresIn:   3600,
			ExpiresAt:   expires.Unix(),
			Role:        "driver",
			OrgID:       "org1",
			AAL:         "aal1",
			User:        User{ID: "u1", Email: "a@example.com"},
		})
	})

	sess, err := client.SignInWithPassword(context.Background(), "a@example.com", "pw")
	require.NoError(t, err)
	require.Equal(t, "tok", sess.AccessToken)
	require.Equal(t, "driver", sess.Role)
	require.Equal(t, "org1", sess.OrgID)
	require.Equal(t, "u1", sess.User.ID)
	require.True(t, sess.ExpiresAt.Equal(expires))
	require.False(t, sess.Expired())
}

func TestMFARequired(t *testing.T) {
	t.Parallel()

	client := newStubServer(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Query().Get("grant_type") {
		case GrantPassword:
			writeJSON(w, http.StatusConflict, MFARequiredResponse{
				Error:    ErrorCodeMFARequired,
				MFAToken: "challenge",
				Methods:  []string{"totp", "backup_code"},
			})
		case GrantMFATOTP:
			var req TokenRequest
			require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
			require.Equal(t, "challenge", req.MFAToken)
			require.Equal(t, "123456", req.Code)
			writeJSON(w, http.StatusOK, SessionResponse{AccessToken: "tok", ExpiresIn: 60, AAL: "aal2"})
		}
	})

	_, err := client.SignInWithPassword(context.Background(), "a@example.com", "pw")
	var mfa *MFARequiredError
	require.True(t, errors.As(err, &mfa))
	require.Equal(t, "challenge", mfa.MFAToken)
	require.Equal(t, []string{"totp", "backup_code"}, mfa.Methods)

	sess, err := client.ChallengeMFA(context.Background(), mfa, "totp", "123456")
	require.NoError(t, err)
	require.Equal(t, "aal2", sess.AAL)
	require.WithinDuration(t, time.Now().Add(time.Minute), sess.ExpiresAt, 5*time.Second)
}

func TestAPIErrors(t *testing.T) {
	t.Parallel()

	t.Run("structured", func(t *testing.T) {
		client := newStubServer(t, func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "invalid_credentials", ErrorDescription: "invalid login credentials"})
		})

		_, err := client.SignInWithPassword(context.Background(), "a@example.com", "pw")
		var apiErr *APIError
		require.True(t, errors.As(err, &apiErr))
		require.Equal(t, http.StatusBadRequest, apiErr.StatusCode)
		require.Equal(t, "invalid_credentials", apiErr.ErrorCode())
	})

	t.Run("rate limited", func(t *testing.T) {
		client := newStubServer(t, func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusTooManyRequests, ErrorResponse{Error: ErrorCodeRateLimited})
		})

		err := client.SendMagicLink(context.Background(), "a@example.com", "")
		var apiErr *APIError
		require.True(t, errors.As(err, &apiErr))
		require.Equal(t, ErrorCodeRateLimited, apiErr.Code)
	})

	t.Run("unstructured", func(t *testing.T) {
		client := newStubServer(t, func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "bad gateway", http.StatusBadGateway)
		})

		_, err := client.GetLiveness(context.Background())
		var apiErr *APIError
		require.True(t, errors.As(err, &apiErr))
		require.Equal(t, http.StatusBadGateway, apiErr.StatusCode)
		require.Equal(t, ErrorCodeServerError, apiErr.Code)
	})
}

func TestEmailLinks(t *testing.T) {
	t.Parallel()

	var paths []string
	var bodies []EmailLinkRequest
	client := newStubServer(t, func(w http.ResponseWriter, r *http.Request) {
		var req EmailLinkRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		paths = append(paths, r.URL.Path)
		bodies = append(bodies, req)
		w.WriteHeader(http.StatusNoContent)
	})

	ctx := context.Background()
	require.NoError(t, client.SendMagicLink(ctx, "a@example.com", "/home"))
	require.NoError(t, client.Resend(ctx, "a@example.com", "signup", ""))
	require.NoError(t, client.Recover(ctx, "a@example.com", ""))

	require.Equal(t, []string{"/auth/v1/otp", "/auth/v1/resend", "/auth/v1/recover"}, paths)
	require.Equal(t, "/home", bodies[0].RedirectTo)
	require.Equal(t, "signup", bodies[1].Type)
}

func TestSessionSendsBearer(t *testing.T) {
	t.Parallel()

	client := newStubServer(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		switch r.URL.Path {
		case "/v1/access/check":
			require.Equal(t, "/home/team", r.URL.Query().Get("path"))
			writeJSON(w, http.StatusOK, AccessCheckResponse{Path: "/home/team", Role: "staff", Redirect: "/home/settings"})
		case "/v1/navigation":
			require.Equal(t, "fr-FR", r.URL.Query().Get("lang"))
			writeJSON(w, http.StatusOK, NavigationResponse{Role: "staff", Items: []NavItem{{ID: "settings", Label: "Paramètres"}}})
		case "/v1/organizations/org1/members":
			writeJSON(w, http.StatusOK, MembersResponse{Members: []Member{{UserID: "u1", Role: "admin", OrgRole: "owner"}}})
		case "/auth/v1/logout":
			w.WriteHeader(http.StatusNoContent)
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
		}
	})

	sess := client.NewSessionFromToken("tok")
	require.False(t, sess.Expired())
	ctx := context.Background()

	check, err := sess.CheckAccess(ctx, "/home/team")
	require.NoError(t, err)
	require.False(t, check.Allowed)
	require.Equal(t, "/home/settings", check.Redirect)

	nav, err := sess.Navigation(ctx, "fr-FR")
	require.NoError(t, err)
	require.Equal(t, "Paramètres", nav.Items[0].Label)

	members, err := sess.ListMembers(ctx, "org1")
	require.NoError(t, err)
	require.Len(t, members, 1)

	require.NoError(t, sess.Logout(ctx))
}

func TestCallbackError(t *testing.T) {
	t.Parallel()

	client := newStubServer(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/auth/callback/error", r.URL.Path)
		require.Equal(t, "auth:errors.otp_expired", r.URL.Query().Get("error"))
		require.Equal(t, "otp_expired", r.URL.Query().Get("code"))
		require.Empty(t, r.URL.Query().Get("lang"))
		writeJSON(w, http.StatusOK, CallbackErrorResponse{
			Error:  "auth:errors.otp_expired",
			Action: CallbackAction{ID: "resend_link"},
		})
	})

	out, err := client.CallbackError(context.Background(), "auth:errors.otp_expired", "otp_expired", "")
	require.NoError(t, err)
	require.Equal(t, "resend_link", out.Action.ID)
}

func TestSessionVerifier(t *testing.T) {
	t.Parallel()

	pemKey, err := cryptox.GenerateEd25519Key()
	require.NoError(t, err)
	signer, err := jwtx.NewSigner("", pemKey)
	require.NoError(t, err)

	jwk := signer.PublicJWK()
	client := newStubServer(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/.well-known/jwks.json", r.URL.Path)
		writeJSON(w, http.StatusOK, JWKSResponse{Keys: []JWK{{
			Kty: jwk.Kty, Use: jwk.Use, Alg: jwk.Alg, Kid: jwk.Kid, Crv: jwk.Crv, X: jwk.X,
		}}})
	})

	token, err := signer.Sign(jwtx.NewSessionClaims(jwtx.ClaimsParams{
		Subject: "user-1",
		Role:    "driver",
		Issuer:  "fleetdesk",
		TTL:     time.Minute,
	}))
	require.NoError(t, err)

	v, err := client.SessionVerifier(context.Background(), "fleetdesk")
	require.NoError(t, err)
	claims, err := v.Verify(token)
	require.NoError(t, err)
	require.Equal(t, "driver", claims.Role)

	other, err := client.SessionVerifier(context.Background(), "someone-else")
	require.NoError(t, err)
	_, err = other.Verify(token)
	require.Error(t, err)

	bad := newStubServer(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, JWKSResponse{Keys: []JWK{{Kty: "RSA", Kid: "k1"}}})
	})
	_, err = bad.SessionVerifier(context.Background(), "")
	require.Error(t, err)
}
