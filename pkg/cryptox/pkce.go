package cryptox

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"strings"
)

const (
	PKCEMethodS256  = "S256"
	PKCEMethodPlain = "plain"
)

// NewCodeVerifier returns a fresh PKCE verifier (RFC 7636, 43 chars).
func NewCodeVerifier() (string, error) {
	return GenerateToken(TokenSize256)
}

// S256Challenge derives the S256 code challenge for verifier.
func S256Challenge(verifier string) string {
	sum := sha256.Sum256([]byte(verifier))
	return base64.RawURLEncoding.EncodeToString(sum[:])
}

// NormalizeChallengeMethod canonicalizes method. An empty method means S256.
// The second return is false for unsupported methods.
func NormalizeChallengeMethod(method string) (string, bool) {
	method = strings.TrimSpace(method)
	switch {
	case method == "", strings.EqualFold(method, PKCEMethodS256):
		return PKCEMethodS256, true
	case strings.EqualFold(method, PKCEMethodPlain):
		return PKCEMethodPlain, true
	default:
		return "", false
	}
}

// VerifyCodeChallenge reports whether verifier satisfies challenge.
func VerifyCodeChallenge(challenge, method, verifier string) bool {
	challenge = strings.TrimSpace(challenge)
	verifier = strings.TrimSpace(verifier)
	if challenge == "" || verifier == "" {
		return false
	}

	method, ok := NormalizeChallengeMethod(method)
	if !ok {
		return false
	}

	expected := verifier
	if method == PKCEMethodS256 {
		expected = S256Challenge(verifier)
	}
	return subtle.ConstantTimeCompare([]byte(challenge), []byte(expected)) == 1
}
