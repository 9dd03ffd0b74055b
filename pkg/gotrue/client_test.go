package gotrue_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/aussiebroadwan/fleetdesk/pkg/gotrue"
	"github.com/stretchr/testify/require"
)

func TestVerifyOTP(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/auth/v1/verify", r.URL.Path)
		require.Equal(t, "anon", r.Header.Get("apikey"))
		require.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		require.Equal(t, "signup", body["type"])
		require.Equal(t, "hash123", body["token_hash"])

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token":"at","token_type":"bearer","expires_in":3600,"refresh_token":"rt","user":{"id":"u1","email":"a@example.com"}}`))
	}))
	defer srv.Close()

	c := gotrue.New(srv.URL+"/auth/v1/", "anon")
	sess, err := c.VerifyOTP(context.Background(), "signup", "hash123")
	require.NoError(t, err)
	require.Equal(t, "at", sess.AccessToken)
	require.Equal(t, 3600, sess.ExpiresIn)
	require.Equal(t, "u1", sess.User.ID)
	require.Equal(t, "a@example.com", sess.User.Email)
}

func TestVerifyOTPExpired(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte(`{"code":403,"error_code":"otp_expired","msg":"Email link is invalid or has expired"}`))
	}))
	defer srv.Close()

	_, err := gotrue.New(srv.URL, "").VerifyOTP(context.Background(), "magiclink", "x")
	require.Error(t, err)

	var apiErr *gotrue.APIError
	require.True(t, errors.As(err, &apiErr))
	require.Equal(t, http.StatusForbidden, apiErr.Status)
	require.Equal(t, gotrue.CodeOTPExpired, apiErr.ErrorCode())
	require.Equal(t, "Email link is invalid or has expired", apiErr.Message)
}

func TestExchangeCode(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/token", r.URL.Path)
		require.Equal(t, "pkce", r.URL.Query().Get("grant_type"))

		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		require.Equal(t, "code-1", body["auth_code"])
		require.Equal(t, "verifier-1", body["code_verifier"])

		_, _ = w.Write([]byte(`{"access_token":"at","user":{"id":"u2","email":"b@example.com"}}`))
	}))
	defer srv.Close()

	sess, err := gotrue.New(srv.URL, "").ExchangeCode(context.Background(), "code-1", "verifier-1")
	require.NoError(t, err)
	require.Equal(t, "u2", sess.User.ID)
}

func TestExchangeCodeEmptyInputsSkipNetwork(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
	}))
	defer srv.Close()

	c := gotrue.New(srv.URL, "")
	for _, in := range [][2]string{{"", "v"}, {"c", ""}, {"", ""}} {
		_, err := c.ExchangeCode(context.Background(), in[0], in[1])
		require.ErrorIs(t, err, gotrue.ErrEmptyCodeOrVerifier)

		var apiErr *gotrue.APIError
		require.True(t, errors.As(err, &apiErr))
		require.Equal(t, gotrue.CodeBadCodeVerifier, apiErr.ErrorCode())
		require.Contains(t, apiErr.Message, "both auth code and code verifier should be non-empty")
	}
	require.Zero(t, calls.Load())
}

func TestErrorShapes(t *testing.T) {
	cases := []struct {
		name    string
		status  int
		body    string
		code    string
		message string
	}{
		{"current", 400, `{"code":400,"error_code":"bad_code_verifier","msg":"code challenge does not match"}`, "bad_code_verifier", "code challenge does not match"},
		{"oauth", 400, `{"error":"invalid_grant","error_description":"Invalid login credentials"}`, "invalid_grant", "Invalid login credentials"},
		{"message only", 422, `{"message":"invalid request: both auth code and code verifier should be non-empty"}`, "", "invalid request: both auth code and code verifier should be non-empty"},
		{"not json", 502, `upstream down`, gotrue.CodeUnexpected, "upstream down"},
		{"empty", 500, ``, gotrue.CodeUnexpected, "Internal Server Error"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.status)
				_, _ = w.Write([]byte(tc.body))
			}))
			defer srv.Close()

			_, err := gotrue.New(srv.URL, "").ExchangeCode(context.Background(), "c", "v")
			var apiErr *gotrue.APIError
			require.True(t, errors.As(err, &apiErr))
			require.Equal(t, tc.status, apiErr.Status)
			require.Equal(t, tc.code, apiErr.Code)
			require.Equal(t, tc.message, apiErr.Message)
		})
	}
}

func TestContextCancelled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := gotrue.New(srv.URL, "").VerifyOTP(ctx, "email", "x")
	require.ErrorIs(t, err, context.Canceled)
}
