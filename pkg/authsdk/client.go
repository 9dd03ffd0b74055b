package authsdk

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Client talks to the fleetdesk gateway. It covers the public endpoints
// and hands out a Session for the authenticated ones.
type Client struct {
	BaseURL    string
	HTTPClient *http.Client
}

// NewClient creates a gateway client.
func NewClient(baseURL string) *Client {
	return &Client{
		BaseURL: strings.TrimSuffix(baseURL, "/"),
		HTTPClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// SignUp registers an unconfirmed account. A confirmation link is mailed.
func (c *Client) SignUp(ctx context.Context, req SignUpRequest) (*User, error) {
	resp, err := c.doRequest(ctx, http.MethodPost, "/auth/v1/signup", "", req)
	if err != nil {
		return nil, err
	}

	var u User
	if err := decodeJSON(resp, &u, http.StatusOK); err != nil {
		return nil, err
	}
	return &u, nil
}

// SignInWithPassword runs the password grant. Accounts with MFA enabled
// return *MFARequiredError.
func (c *Client) SignInWithPassword(ctx context.Context, email, password string) (*Session, error) {
	return c.token(ctx, GrantPassword, TokenRequest{Email: email, Password: password})
}

// ExchangeCode runs the PKCE grant.
func (c *Client) ExchangeCode(ctx context.Context, code, verifier string) (*Session, error) {
	return c.token(ctx, GrantPKCE, TokenRequest{AuthCode: code, CodeVerifier: verifier})
}

// ChallengeMFA completes a password sign-in with a TOTP or backup code.
func (c *Client) ChallengeMFA(ctx context.Context, mfa *MFARequiredError, method, code string) (*Session, error) {
	return c.token(ctx, GrantMFATOTP, TokenRequest{MFAToken: mfa.MFAToken, Method: method, Code: code})
}

func (c *Client) token(ctx context.Context, grant string, req TokenRequest) (*Session, error) {
	path := "/auth/v1/token?" + url.Values{"grant_type": {grant}}.Encode()
	resp, err := c.doRequest(ctx, http.MethodPost, path, "", req)
	if err != nil {
		return nil, err
	}

	var sr SessionResponse
	if err := decodeJSON(resp, &sr, http.StatusOK); err != nil {
		return nil, err
	}
	return newSession(c, &sr), nil
}

// Verify redeems an emailed token hash and returns a session.
func (c *Client) Verify(ctx context.Context, otpType, tokenHash string) (*Session, error) {
	resp, err := c.doRequest(ctx, http.MethodPost, "/auth/v1/verify", "", VerifyRequest{Type: otpType, TokenHash: tokenHash})
	if err != nil {
		return nil, err
	}

	var sr SessionResponse
	if err := decodeJSON(resp, &sr, http.StatusOK); err != nil {
		return nil, err
	}
	return newSession(c, &sr), nil
}

// SendMagicLink mails a sign-in link.
func (c *Client) SendMagicLink(ctx context.Context, email, redirectTo string) error {
	return c.emailLink(ctx, "/auth/v1/otp", EmailLinkRequest{Email: email, RedirectTo: redirectTo})
}

// Resend mails a fresh link of the given type.
func (c *Client) Resend(ctx context.Context, email, otpType, redirectTo string) error {
	return c.emailLink(ctx, "/auth/v1/resend", EmailLinkRequest{Email: email, Type: otpType, RedirectTo: redirectTo})
}

// Recover mails a password recovery link.
func (c *Client) Recover(ctx context.Context, email, redirectTo string) error {
	return c.emailLink(ctx, "/auth/v1/recover", EmailLinkRequest{Email: email, RedirectTo: redirectTo})
}

func (c *Client) emailLink(ctx context.Context, path string, req EmailLinkRequest) error {
	resp, err := c.doRequest(ctx, http.MethodPost, path, "", req)
	if err != nil {
		return err
	}
	return checkStatusNoContent(resp)
}

// AcceptInvitation redeems an invitation and returns the new member's
// session.
func (c *Client) AcceptInvitation(ctx context.Context, req AcceptInvitationRequest) (*Session, error) {
	resp, err := c.doRequest(ctx, http.MethodPost, "/auth/accept-invitation", "", req)
	if err != nil {
		return nil, err
	}

	var sr SessionResponse
	if err := decodeJSON(resp, &sr, http.StatusOK); err != nil {
		return nil, err
	}
	return newSession(c, &sr), nil
}

// CallbackError fetches the localized error payload for a failed callback.
func (c *Client) CallbackError(ctx context.Context, errorKey, code, lang string) (*CallbackErrorResponse, error) {
	q := url.Values{"error": {errorKey}}
	if code != "" {
		q.Set("code", code)
	}
	if lang != "" {
		q.Set("lang", lang)
	}

	resp, err := c.doRequest(ctx, http.MethodGet, "/auth/callback/error?"+q.Encode(), "", nil)
	if err != nil {
		return nil, err
	}

	var out CallbackErrorResponse
	if err := decodeJSON(resp, &out, http.StatusOK); err != nil {
		return nil, err
	}
	return &out, nil
}
