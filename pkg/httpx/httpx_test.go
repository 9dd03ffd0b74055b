package httpx_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/aussiebroadwan/fleetdesk/pkg/httpx"
	"github.com/aussiebroadwan/fleetdesk/pkg/jwtx"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
)

func TestChainOrder(t *testing.T) {
	var order []string
	mw := func(name string) httpx.Middleware {
		return func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				order = append(order, name)
				next.ServeHTTP(w, r)
			})
		}
	}

	h := httpx.Chain(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		order = append(order, "handler")
	}), mw("outer"), mw("inner"))

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, []string{"outer", "inner", "handler"}, order)
}

type stubVerifier map[string]*jwtx.Claims

func (s stubVerifier) Verify(token string) (*jwtx.Claims, error) {
	if c, ok := s[token]; ok {
		return c, nil
	}
	return nil, errors.New("bad token")
}

func TestAuthenticate(t *testing.T) {
	cookie := httpx.CookieOptions{Name: "fd_session"}
	v := stubVerifier{
		"good": {RegisteredClaims: jwt.RegisteredClaims{Subject: "user-1"}, Role: "driver"},
	}

	var seen *jwtx.Claims
	h := httpx.Chain(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = httpx.ClaimsFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	}), httpx.Authenticate(v, cookie))

	t.Run("bearer header", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Bearer good")
		h.ServeHTTP(httptest.NewRecorder(), req)
		require.NotNil(t, seen)
		require.Equal(t, "user-1", seen.Subject)
	})

	t.Run("session cookie", func(t *testing.T) {
		seen = nil
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.AddCookie(&http.Cookie{Name: "fd_session", Value: "good"})
		h.ServeHTTP(httptest.NewRecorder(), req)
		require.NotNil(t, seen)
	})

	t.Run("invalid token is anonymous", func(t *testing.T) {
		seen = nil
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Bearer forged")
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code)
		require.Nil(t, seen)
	})
}

func TestRequireSession(t *testing.T) {
	h := httpx.RequireSession(okHandler)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	require.Contains(t, rec.Header().Get("WWW-Authenticate"), `error="invalid_token"`)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req = req.WithContext(httpx.WithClaims(context.Background(), &jwtx.Claims{}))
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestCookieOptions(t *testing.T) {
	opts := httpx.CookieOptions{Name: "__oauth_pkce", Secure: true}

	rec := httptest.NewRecorder()
	opts.Set(rec, "verifier")
	c := rec.Result().Cookies()[0]
	require.Equal(t, "verifier", c.Value)
	require.True(t, c.HttpOnly)
	require.True(t, c.Secure)
	require.Equal(t, "/", c.Path)
	require.Equal(t, http.SameSiteLaxMode, c.SameSite)

	rec = httptest.NewRecorder()
	opts.Clear(rec)
	require.Equal(t, -1, rec.Result().Cookies()[0].MaxAge)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	require.Empty(t, opts.Read(req))
	req.AddCookie(&http.Cookie{Name: "__oauth_pkce", Value: "v"})
	require.Equal(t, "v", opts.Read(req))
}

func TestDecodeJSON(t *testing.T) {
	var dst struct {
		Email string `json:"email"`
	}

	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"email":"a@b.c","extra":1}`))
	req.Header.Set("Content-Type", "application/json; charset=utf-8")
	require.NoError(t, httpx.DecodeJSON(req, &dst))
	require.Equal(t, "a@b.c", dst.Email)

	req = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(""))
	require.ErrorContains(t, httpx.DecodeJSON(req, &dst), "empty")

	req = httptest.NewRequest(http.MethodPost, "/", strings.NewReader("email=x"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	require.Error(t, httpx.DecodeJSON(req, &dst))
}
