// Package callback resolves where an auth-callback request goes next: it
// redeems the emailed token hash or the PKCE code through a Provider and
// turns the result into a redirect target.
package callback

import (
	"context"
	"errors"
	"net/url"

	"github.com/aussiebroadwan/fleetdesk/internal/gateway/domain"
)

// DefaultErrorPath is the page failures are sent to.
const DefaultErrorPath = "/auth/callback/error"

// ErrMalformedCallback is the cause of a failure when the request lacks
// the parameters needed to call the provider.
var ErrMalformedCallback = errors.New("callback: malformed callback request")

// ErrNoIdentity is the cause of a failure when the provider reported
// success without returning an identity.
var ErrNoIdentity = errors.New("callback: provider returned no identity")

// Provider is the identity provider the resolver redeems tokens with.
type Provider interface {
	VerifyOTP(ctx context.Context, otpType domain.OTPType, tokenHash string) (*domain.Identity, error)
	ExchangeCode(ctx context.Context, code, verifier string) (*domain.Identity, error)
}

// Params configures one resolution.
type Params struct {
	RedirectPath string
	ErrorPath    string
}

func (p Params) errorPath() string {
	if p.ErrorPath == "" {
		return DefaultErrorPath
	}
	return p.ErrorPath
}

// Request is the incoming callback. URL must be absolute; Host is the raw
// Host header; CodeVerifier is the PKCE verifier cookie (code flow only).
type Request struct {
	URL          *url.URL
	Host         string
	CodeVerifier string
}

// Failure describes why the callback did not produce an identity.
// MessageKey is an i18n key; Code is the provider's error code, if any.
type Failure struct {
	Code       string
	MessageKey string
	Cause      error
}

func (f *Failure) Error() string {
	if f.Cause == nil {
		return f.MessageKey
	}
	return f.MessageKey + ": " + f.Cause.Error()
}

func (f *Failure) Unwrap() error { return f.Cause }

// Outcome is the result of resolving a callback request.
type Outcome struct {
	Location *url.URL
	Identity *domain.Identity
	Failure  *Failure
}

// OK reports whether the provider accepted the request.
func (o Outcome) OK() bool { return o.Failure == nil && o.Identity != nil }
