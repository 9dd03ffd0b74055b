package authsdk

import (
	"context"
	"fmt"
	"net/http"

	"github.com/aussiebroadwan/fleetdesk/pkg/jwtx"
)

// GetLiveness checks if the service is alive.
func (c *Client) GetLiveness(ctx context.Context) (*HealthResponse, error) {
	resp, err := c.doRequest(ctx, http.MethodGet, "/livez", "", nil)
	if err != nil {
		return nil, err
	}

	var health HealthResponse
	if err := decodeJSON(resp, &health, http.StatusOK); err != nil {
		return nil, err
	}

	return &health, nil
}

// GetReadiness checks if the service is ready.
func (c *Client) GetReadiness(ctx context.Context) (*HealthResponse, error) {
	resp, err := c.doRequest(ctx, http.MethodGet, "/readyz", "", nil)
	if err != nil {
		return nil, err
	}

	var health HealthResponse
	if err := decodeJSON(resp, &health, http.StatusOK); err != nil {
		return nil, err
	}

	return &health, nil
}

// GetJWKS fetches the keys that verify session tokens.
func (c *Client) GetJWKS(ctx context.Context) (*JWKSResponse, error) {
	resp, err := c.doRequest(ctx, http.MethodGet, "/.well-known/jwks.json", "", nil)
	if err != nil {
		return nil, err
	}

	var jwks JWKSResponse
	if err := decodeJSON(resp, &jwks, http.StatusOK); err != nil {
		return nil, err
	}

	return &jwks, nil
}

// SessionVerifier fetches the key set and returns a verifier for session
// tokens issued by issuer. An empty issuer skips the iss check.
func (c *Client) SessionVerifier(ctx context.Context, issuer string) (*jwtx.Verifier, error) {
	jwks, err := c.GetJWKS(ctx)
	if err != nil {
		return nil, err
	}

	v := jwtx.NewVerifier(jwtx.VerifyOptions{Issuer: issuer})
	for _, k := range jwks.Keys {
		pub, err := jwtx.JWK{Kty: k.Kty, Crv: k.Crv, X: k.X}.PublicKey()
		if err != nil {
			return nil, fmt.Errorf("key %s: %w", k.Kid, err)
		}
		v.AddKey(k.Kid, pub)
	}
	return v, nil
}
