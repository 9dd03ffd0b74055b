package callback_test

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"testing"

	"github.com/aussiebroadwan/fleetdesk/internal/gateway/callback"
	"github.com/aussiebroadwan/fleetdesk/internal/gateway/domain"
	"github.com/aussiebroadwan/fleetdesk/pkg/gotrue"
	"github.com/stretchr/testify/require"
)

type fakeProvider struct {
	verifyCalls   int
	exchangeCalls int
	gotType       domain.OTPType
	gotHash       string
	gotCode       string
	gotVerifier   string
	err           error
}

func (f *fakeProvider) VerifyOTP(_ context.Context, t domain.OTPType, hash string) (*domain.Identity, error) {
	f.verifyCalls++
	f.gotType, f.gotHash = t, hash
	if f.err != nil {
		return nil, f.err
	}
	return &domain.Identity{UserID: "u1", Email: "a@example.com", AMR: []string{domain.AMROTP}, AAL: domain.AAL1}, nil
}

func (f *fakeProvider) ExchangeCode(_ context.Context, code, verifier string) (*domain.Identity, error) {
	f.exchangeCalls++
	f.gotCode, f.gotVerifier = code, verifier
	if f.err != nil {
		return nil, f.err
	}
	return &domain.Identity{UserID: "u1", Email: "a@example.com", AMR: []string{domain.AMRPassword}, AAL: domain.AAL1}, nil
}

// emptyProvider reports success without an identity.
type emptyProvider struct{}

func (emptyProvider) VerifyOTP(context.Context, domain.OTPType, string) (*domain.Identity, error) {
	return nil, nil
}

func (emptyProvider) ExchangeCode(context.Context, string, string) (*domain.Identity, error) {
	return nil, nil
}

type codedError struct{ code string }

func (e codedError) Error() string     { return "provider said " + e.code }
func (e codedError) ErrorCode() string { return e.code }

func request(t *testing.T, raw, host string) callback.Request {
	t.Helper()
	u, err := url.Parse(raw)
	require.NoError(t, err)
	return callback.Request{URL: u, Host: host}
}

var params = callback.Params{RedirectPath: "/home"}

func TestVerifyTokenHashSuccess(t *testing.T) {
	p := &fakeProvider{}
	r := callback.NewResolver(p)

	out := r.VerifyTokenHash(context.Background(),
		request(t, "https://app.example.com/auth/confirm?token_hash=abc&type=signup&next=/home/settings&callback=/x", "app.example.com"),
		params)

	require.True(t, out.OK())
	require.Nil(t, out.Failure)
	require.Equal(t, "u1", out.Identity.UserID)
	require.Equal(t, 1, p.verifyCalls)
	require.Equal(t, domain.OTPSignup, p.gotType)
	require.Equal(t, "abc", p.gotHash)

	require.Equal(t, "app.example.com", out.Location.Host)
	require.Equal(t, "/home/settings", out.Location.Path)
	q := out.Location.Query()
	require.Empty(t, q.Get("token_hash"))
	require.Empty(t, q.Get("type"))
	require.Empty(t, q.Get("next"))
	require.Equal(t, "/x", q.Get("callback"))
}

func TestVerifyTokenHashDefaultsToRedirectPath(t *testing.T) {
	out := callback.NewResolver(&fakeProvider{}).VerifyTokenHash(context.Background(),
		request(t, "https://app.example.com/auth/confirm?token_hash=abc&type=email", ""), params)
	require.True(t, out.OK())
	require.Equal(t, "/home", out.Location.Path)
	require.Empty(t, out.Location.RawQuery)
}

func TestVerifyTokenHashNext(t *testing.T) {
	cases := []struct {
		name string
		next string
		path string
	}{
		{"plain", "/home/driver", "/home/driver"},
		{"nested next wins", "/auth/sign-in?next=/home/client", "/home/client"},
		{"own path without nested", "/home/settings?tab=profile", "/home/settings"},
		{"absolute url nested next", "https://app.example.com/auth/callback?next=/home/driver", "/home/driver"},
		{"absolute url own path", "https://app.example.com/home/client", "/home/client"},
		{"absolute url keeps only the path", "https://evil.example.com/home/settings", "/home/settings"},
		{"absolute url with double slash path ignored", "https://app.example.com//evil.example.com", "/home"},
		{"non-http scheme ignored", "javascript:alert(1)", "/home"},
		{"protocol relative ignored", "//evil.example.com/steal", "/home"},
		{"unparsable ignored", "/%zz", "/home"},
		{"nested external falls back to path", "/welcome?next=https://evil.example.com", "/welcome"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			u := &url.URL{Scheme: "https", Host: "app.example.com", Path: "/auth/confirm"}
			u.RawQuery = url.Values{"token_hash": {"h"}, "type": {"magiclink"}, "next": {tc.next}}.Encode()

			out := callback.NewResolver(&fakeProvider{}).VerifyTokenHash(context.Background(),
				callback.Request{URL: u}, params)
			require.True(t, out.OK())
			require.Equal(t, tc.path, out.Location.Path)
			require.Equal(t, "app.example.com", out.Location.Host)
		})
	}
}

func TestVerifyTokenHashCallbackParamFallback(t *testing.T) {
	out := callback.NewResolver(&fakeProvider{}).VerifyTokenHash(context.Background(),
		request(t, "https://app.example.com/auth/confirm?token_hash=h&type=recovery&callback=/update-password", ""), params)
	require.True(t, out.OK())
	require.Equal(t, "/update-password", out.Location.Path)
	require.Equal(t, "/update-password", out.Location.Query().Get("callback"))
}

func TestVerifyTokenHashAbsoluteCallbackParam(t *testing.T) {
	u := &url.URL{Scheme: "https", Host: "app.example.com", Path: "/auth/confirm"}
	u.RawQuery = url.Values{
		"token_hash": {"h"},
		"type":       {"invite"},
		"callback":   {"https://app.example.com/auth/callback?next=/home/driver"},
	}.Encode()

	out := callback.NewResolver(&fakeProvider{}).VerifyTokenHash(context.Background(),
		callback.Request{URL: u}, params)
	require.True(t, out.OK())
	require.Equal(t, "/home/driver", out.Location.Path)
	require.Equal(t, "app.example.com", out.Location.Host)
}

func TestVerifyTokenHashHostOverride(t *testing.T) {
	r := callback.NewResolver(&fakeProvider{})

	out := r.VerifyTokenHash(context.Background(),
		request(t, "http://localhost:3000/auth/confirm?token_hash=h&type=email", "fleet.example.com:443"), params)
	require.Equal(t, "fleet.example.com", out.Location.Host)

	out = r.VerifyTokenHash(context.Background(),
		request(t, "http://localhost:3000/auth/confirm?token_hash=h&type=email", "localhost:3000"), params)
	require.Equal(t, "localhost:3000", out.Location.Host)

	out = r.VerifyTokenHash(context.Background(),
		request(t, "https://app.example.com/auth/confirm?token_hash=h&type=email", "other.example.com"), params)
	require.Equal(t, "app.example.com", out.Location.Host)
}

func TestVerifyTokenHashMissingParams(t *testing.T) {
	for _, raw := range []string{
		"https://app.example.com/auth/confirm",
		"https://app.example.com/auth/confirm?token_hash=h",
		"https://app.example.com/auth/confirm?type=signup&next=/home/driver",
	} {
		p := &fakeProvider{}
		out := callback.NewResolver(p).VerifyTokenHash(context.Background(), request(t, raw, ""), params)

		require.False(t, out.OK(), raw)
		require.Zero(t, p.verifyCalls, raw)
		require.ErrorIs(t, out.Failure, callback.ErrMalformedCallback)
		require.Equal(t, callback.MessageGeneric, out.Failure.MessageKey)
		require.Equal(t, callback.DefaultErrorPath, out.Location.Path)
		require.Equal(t, callback.MessageGeneric, out.Location.Query().Get("error"))
		require.Empty(t, out.Location.Query().Get("next"))
		require.Empty(t, out.Location.Query().Get("type"))
	}
}

func TestVerifyTokenHashProviderFailure(t *testing.T) {
	cases := []struct {
		name string
		err  error
		key  string
		code string
	}{
		{"expired", codedError{"otp_expired"}, callback.MessageOTPExpired, "otp_expired"},
		{"verifier", codedError{"bad_code_verifier"}, callback.MessageCodeVerifierMismatch, "bad_code_verifier"},
		{"wrapped api error", fmt.Errorf("remote: %w", &gotrue.APIError{Status: 403, Code: "otp_expired"}), callback.MessageOTPExpired, "otp_expired"},
		{"other", errors.New("boom"), callback.MessageGeneric, ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			p := &fakeProvider{err: tc.err}
			out := callback.NewResolver(p).VerifyTokenHash(context.Background(),
				request(t, "https://app.example.com/auth/confirm?token_hash=h&type=signup&next=/home/driver", ""),
				callback.Params{RedirectPath: "/home", ErrorPath: "/oops"})

			require.False(t, out.OK())
			require.Equal(t, 1, p.verifyCalls)
			require.Nil(t, out.Identity)
			require.Equal(t, tc.key, out.Failure.MessageKey)
			require.Equal(t, tc.code, out.Failure.Code)
			require.ErrorIs(t, out.Failure, tc.err)

			require.Equal(t, "/oops", out.Location.Path)
			q := out.Location.Query()
			require.Equal(t, tc.key, q.Get("error"))
			require.Equal(t, tc.code, q.Get("code"))
			require.Empty(t, q.Get("token_hash"))
		})
	}
}

func TestExchangeCodeSuccess(t *testing.T) {
	p := &fakeProvider{}
	req := request(t, "https://app.example.com/auth/callback?code=c1&next=/home/client?tab=trips", "")
	req.CodeVerifier = "v1"

	out := callback.NewResolver(p).ExchangeCode(context.Background(), req, params)
	require.True(t, out.OK())
	require.Equal(t, "c1", p.gotCode)
	require.Equal(t, "v1", p.gotVerifier)
	require.Equal(t, "https://app.example.com/home/client?tab=trips", out.Location.String())
}

func TestExchangeCodeNextDefaultsAndRejectsExternal(t *testing.T) {
	r := callback.NewResolver(&fakeProvider{})

	out := r.ExchangeCode(context.Background(), request(t, "https://app.example.com/auth/callback?code=c", ""), params)
	require.Equal(t, "/home", out.Location.Path)

	u := &url.URL{Scheme: "https", Host: "app.example.com", Path: "/auth/callback"}
	u.RawQuery = url.Values{"code": {"c"}, "next": {"https://evil.example.com"}}.Encode()
	out = r.ExchangeCode(context.Background(), callback.Request{URL: u}, params)
	require.Equal(t, "app.example.com", out.Location.Host)
	require.Equal(t, "/home", out.Location.Path)
}

func TestExchangeCodeFailure(t *testing.T) {
	p := &fakeProvider{err: gotrue.ErrEmptyCodeOrVerifier}
	out := callback.NewResolver(p).ExchangeCode(context.Background(),
		request(t, "https://app.example.com/auth/callback?code=c1&next=/home", ""), params)

	require.False(t, out.OK())
	require.Equal(t, callback.MessageCodeVerifierMismatch, out.Failure.MessageKey)
	require.Equal(t, "/auth/callback/error", out.Location.Path)
	require.Equal(t, callback.MessageCodeVerifierMismatch, out.Location.Query().Get("error"))
	require.Equal(t, "bad_code_verifier", out.Location.Query().Get("code"))
}

func TestExchangeCodeReportedError(t *testing.T) {
	p := &fakeProvider{}
	out := callback.NewResolver(p).ExchangeCode(context.Background(),
		request(t, "https://app.example.com/auth/callback?error=access_denied&error_code=otp_expired&error_description=expired", ""), params)

	require.False(t, out.OK())
	require.Zero(t, p.exchangeCalls)
	require.Equal(t, callback.MessageOTPExpired, out.Failure.MessageKey)
	require.Equal(t, "otp_expired", out.Location.Query().Get("code"))
}

func TestExchangeCodeMalformed(t *testing.T) {
	p := &fakeProvider{}
	out := callback.NewResolver(p).ExchangeCode(context.Background(),
		request(t, "https://app.example.com/auth/callback?next=/home/driver", ""), params)

	require.False(t, out.OK())
	require.Zero(t, p.exchangeCalls)
	require.ErrorIs(t, out.Failure, callback.ErrMalformedCallback)
	require.Equal(t, callback.DefaultErrorPath, out.Location.Path)
}

func TestClassify(t *testing.T) {
	cases := []struct {
		err  error
		code string
		key  string
	}{
		{codedError{"otp_expired"}, "otp_expired", callback.MessageOTPExpired},
		{codedError{"bad_code_verifier"}, "bad_code_verifier", callback.MessageCodeVerifierMismatch},
		{errors.New("invalid request: both auth code and code verifier should be non-empty"), "", callback.MessageCodeVerifierMismatch},
		{codedError{"flow_state_expired"}, "flow_state_expired", callback.MessageGeneric},
		{errors.New("network down"), "", callback.MessageGeneric},
		{nil, "", callback.MessageGeneric},
	}
	for _, tc := range cases {
		code, key := callback.Classify(tc.err)
		require.Equal(t, tc.code, code, "%v", tc.err)
		require.Equal(t, tc.key, key, "%v", tc.err)
	}
}

func TestMissingIdentityIsAFailure(t *testing.T) {
	r := callback.NewResolver(emptyProvider{})

	out := r.VerifyTokenHash(context.Background(),
		request(t, "https://app.example.com/auth/confirm?token_hash=h&type=email&next=/home/driver", ""), params)
	require.False(t, out.OK())
	require.NotNil(t, out.Failure)
	require.ErrorIs(t, out.Failure.Cause, callback.ErrNoIdentity)
	require.Equal(t, callback.DefaultErrorPath, out.Location.Path)
	require.Equal(t, callback.MessageGeneric, out.Location.Query().Get("error"))

	out = r.ExchangeCode(context.Background(),
		request(t, "https://app.example.com/auth/callback?code=c", ""), params)
	require.False(t, out.OK())
	require.ErrorIs(t, out.Failure.Cause, callback.ErrNoIdentity)
	require.Equal(t, callback.DefaultErrorPath, out.Location.Path)
}
