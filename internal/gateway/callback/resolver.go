package callback

import (
	"context"
	"net"
	"net/url"
	"strings"

	"github.com/aussiebroadwan/fleetdesk/internal/gateway/domain"
	"github.com/aussiebroadwan/fleetdesk/pkg/slogx"
)

// Resolver turns callback requests into outcomes.
type Resolver struct {
	Provider Provider
}

func NewResolver(p Provider) *Resolver {
	return &Resolver{Provider: p}
}

// VerifyTokenHash handles the emailed-link callback
// (?token_hash=..&type=..&next=..). The provider is called at most once;
// every failure is returned as a Failure routed to the error page.
func (r *Resolver) VerifyTokenHash(ctx context.Context, req Request, params Params) Outcome {
	log := slogx.FromContext(ctx)

	target := baseURL(req)
	q := req.URL.Query()

	tokenHash := q.Get("token_hash")
	otpType := q.Get("type")

	target.Path = params.RedirectPath
	if next := nextParam(q); next != "" {
		if p, ok := nextPath(next); ok {
			target.Path = p
		} else {
			log.Warn("ignoring callback next", "next", next)
		}
	}

	q.Del("token_hash")
	q.Del("type")
	q.Del("next")

	if tokenHash == "" || otpType == "" {
		log.Warn("callback missing token_hash or type")
		return failed(target, q, params, &Failure{MessageKey: MessageGeneric, Cause: ErrMalformedCallback})
	}

	id, err := r.Provider.VerifyOTP(ctx, domain.OTPType(otpType), tokenHash)
	if err != nil {
		code, key := Classify(err)
		log.Warn("verify otp failed", "type", otpType, "code", code, "err", err)
		return failed(target, q, params, &Failure{Code: code, MessageKey: key, Cause: err})
	}
	if id == nil {
		log.Error("provider returned no identity", "type", otpType)
		return failed(target, q, params, &Failure{MessageKey: MessageGeneric, Cause: ErrNoIdentity})
	}

	target.RawQuery = q.Encode()
	return Outcome{Location: target, Identity: id}
}

// ExchangeCode handles the PKCE callback (?code=..&next=..). A request
// with neither code nor error is treated as malformed.
func (r *Resolver) ExchangeCode(ctx context.Context, req Request, params Params) Outcome {
	log := slogx.FromContext(ctx)

	origin := baseURL(req)
	origin.RawQuery = ""
	q := req.URL.Query()

	next := &url.URL{Path: params.RedirectPath}
	if raw := q.Get("next"); raw != "" {
		if u, ok := localURL(raw); ok {
			next = u
		} else {
			log.Warn("ignoring callback next", "next", raw)
		}
	}

	code := q.Get("code")
	switch {
	case code != "":
		id, err := r.Provider.ExchangeCode(ctx, code, req.CodeVerifier)
		if err != nil {
			pcode, key := Classify(err)
			log.Warn("code exchange failed", "code", pcode, "err", err)
			return failed(origin, url.Values{}, params, &Failure{Code: pcode, MessageKey: key, Cause: err})
		}
		if id == nil {
			log.Error("provider returned no identity")
			return failed(origin, url.Values{}, params, &Failure{MessageKey: MessageGeneric, Cause: ErrNoIdentity})
		}
		target := *origin
		target.Path = next.Path
		target.RawQuery = next.RawQuery
		return Outcome{Location: &target, Identity: id}

	case q.Get("error") != "":
		reported := &reportedError{
			code:        firstNonEmpty(q.Get("error_code"), q.Get("error")),
			description: q.Get("error_description"),
		}
		pcode, key := Classify(reported)
		log.Warn("provider reported callback error", "code", pcode, "description", reported.description)
		return failed(origin, url.Values{}, params, &Failure{Code: pcode, MessageKey: key, Cause: reported})
	}

	log.Warn("callback missing code")
	return failed(origin, url.Values{}, params, &Failure{MessageKey: MessageGeneric, Cause: ErrMalformedCallback})
}

func failed(target *url.URL, q url.Values, params Params, f *Failure) Outcome {
	target.Path = params.errorPath()
	q.Set("error", f.MessageKey)
	if f.Code != "" {
		q.Set("code", f.Code)
	}
	target.RawQuery = q.Encode()
	return Outcome{Location: target, Failure: f}
}

// baseURL copies the request URL, replacing a localhost:port origin with
// the public Host header when the two disagree.
func baseURL(req Request) *url.URL {
	u := *req.URL
	u.Fragment = ""
	u.RawFragment = ""
	u.RawPath = ""
	if strings.Contains(u.Host, "localhost:") && req.Host != "" && !strings.Contains(req.Host, "localhost") {
		u.Host = stripPort(req.Host)
	}
	return &u
}

func stripPort(hostport string) string {
	if host, _, err := net.SplitHostPort(hostport); err == nil {
		return host
	}
	return hostport
}

func nextParam(q url.Values) string {
	if v := q.Get("next"); v != "" {
		return v
	}
	return q.Get("callback")
}

// nextPath resolves a next value to a local path. The value may be a local
// path or an absolute http(s) URL; only its path is kept, never its host.
// A nested next parameter wins over the value's own path.
func nextPath(raw string) (string, bool) {
	u, ok := localURL(raw)
	if !ok {
		if u, ok = absoluteURL(raw); !ok {
			return "", false
		}
	}
	if nested := u.Query().Get("next"); nested != "" {
		if n, ok := localURL(nested); ok {
			return n.Path, true
		}
	}
	if !isLocalPath(u.Path) {
		return "", false
	}
	return u.Path, true
}

func absoluteURL(raw string) (*url.URL, bool) {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return nil, false
	}
	p := u.Path
	if p == "" {
		p = "/"
	}
	return &url.URL{Path: p, RawQuery: u.RawQuery}, true
}

func isLocalPath(p string) bool {
	return strings.HasPrefix(p, "/") && !strings.HasPrefix(p, "//") && !strings.HasPrefix(p, "/\\")
}

// localURL accepts only same-origin absolute paths.
func localURL(raw string) (*url.URL, bool) {
	if !isLocalPath(raw) {
		return nil, false
	}
	u, err := url.Parse(raw)
	if err != nil || u.Scheme != "" || u.Host != "" || u.Path == "" {
		return nil, false
	}
	return &url.URL{Path: u.Path, RawQuery: u.RawQuery}, true
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
