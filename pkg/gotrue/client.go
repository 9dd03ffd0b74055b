// Package gotrue is a small client for GoTrue compatible identity
// providers (Supabase Auth). It covers the two calls the auth callback
// needs: redeeming an emailed token hash and exchanging a PKCE code.
package gotrue

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Client talks to one GoTrue instance. BaseURL is the auth root, for
// example https://project.supabase.co/auth/v1.
type Client struct {
	BaseURL    string
	APIKey     string
	HTTPClient *http.Client
}

// New returns a client with a 10 second timeout.
func New(baseURL, apiKey string) *Client {
	return &Client{
		BaseURL: strings.TrimSuffix(baseURL, "/"),
		APIKey:  apiKey,
		HTTPClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// User is the subset of the GoTrue user object the gateway reads.
type User struct {
	ID               string     `json:"id"`
	Email            string     `json:"email"`
	Role             string     `json:"role,omitempty"`
	EmailConfirmedAt *time.Time `json:"email_confirmed_at,omitempty"`
}

// Session is the token response returned by /verify and /token.
type Session struct {
	AccessToken  string `json:"access_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int    `json:"expires_in"`
	ExpiresAt    int64  `json:"expires_at,omitempty"`
	RefreshToken string `json:"refresh_token"`
	User         User   `json:"user"`
}

// VerifyOTP redeems the token hash of an emailed link.
func (c *Client) VerifyOTP(ctx context.Context, otpType, tokenHash string) (*Session, error) {
	body := map[string]string{
		"type":       otpType,
		"token_hash": tokenHash,
	}
	var out Session
	if err := c.post(ctx, "/verify", nil, body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ExchangeCode trades a PKCE authorization code and its verifier for a
// session. Empty inputs fail locally with bad_code_verifier.
func (c *Client) ExchangeCode(ctx context.Context, code, verifier string) (*Session, error) {
	if code == "" || verifier == "" {
		return nil, ErrEmptyCodeOrVerifier
	}

	body := map[string]string{
		"auth_code":     code,
		"code_verifier": verifier,
	}
	var out Session
	if err := c.post(ctx, "/token", url.Values{"grant_type": {"pkce"}}, body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) post(ctx context.Context, path string, query url.Values, in, out any) error {
	payload, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("gotrue: encode request: %w", err)
	}

	target := c.BaseURL + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("gotrue: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if c.APIKey != "" {
		req.Header.Set("apikey", c.APIKey)
		req.Header.Set("Authorization", "Bearer "+c.APIKey)
	}

	hc := c.HTTPClient
	if hc == nil {
		hc = http.DefaultClient
	}
	resp, err := hc.Do(req)
	if err != nil {
		return fmt.Errorf("gotrue: send request: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("gotrue: read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return parseError(resp.StatusCode, data)
	}

	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("gotrue: decode response: %w", err)
	}
	return nil
}
