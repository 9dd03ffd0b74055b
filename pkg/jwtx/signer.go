package jwtx

import (
	"crypto/ed25519"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"

	"github.com/aussiebroadwan/fleetdesk/pkg/cryptox"
	"github.com/golang-jwt/jwt/v5"
)

// Signer signs session tokens with an Ed25519 key.
type Signer struct {
	kid string
	key ed25519.PrivateKey
	pub ed25519.PublicKey
}

// NewSigner loads a PKCS8 PEM Ed25519 key. An empty kid is derived from the
// public key so restarts with the same key keep the same kid.
func NewSigner(kid string, pemKey []byte) (*Signer, error) {
	key, err := cryptox.ParseEd25519Key(pemKey)
	if err != nil {
		return nil, fmt.Errorf("jwtx: %w", err)
	}

	pub := key.Public().(ed25519.PublicKey)
	if kid == "" {
		kid = Thumbprint(pub)
	}

	return &Signer{kid: kid, key: key, pub: pub}, nil
}

func (s *Signer) Alg() string                  { return jwt.SigningMethodEdDSA.Alg() }
func (s *Signer) KID() string                  { return s.kid }
func (s *Signer) PublicKey() ed25519.PublicKey { return s.pub }

// Sign turns claims into a compact JWS with the kid header set.
func (s *Signer) Sign(claims Claims) (string, error) {
	if len(s.key) != ed25519.PrivateKeySize {
		return "", errors.New("jwtx: invalid Ed25519 private key size")
	}

	t := jwt.NewWithClaims(jwt.SigningMethodEdDSA, claims)
	t.Header["kid"] = s.kid
	return t.SignedString(s.key)
}

// PublicJWK returns the JWK published at /.well-known/jwks.json.
func (s *Signer) PublicJWK() JWK {
	return NewEd25519JWK(s.kid, "sig", s.Alg(), s.pub)
}

// Thumbprint is a short stable identifier for an Ed25519 public key.
func Thumbprint(pub ed25519.PublicKey) string {
	sum := sha256.Sum256(pub)
	return base64.RawURLEncoding.EncodeToString(sum[:12])
}
