package app

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/aussiebroadwan/fleetdesk/pkg/cryptox"
	"github.com/aussiebroadwan/fleetdesk/pkg/jwtx"
)

// InitSessionKeys loads the Ed25519 session key from cfg.KeyFile, creating
// it on first boot. Without a key file a fresh key is generated and every
// session ends when the process stops.
func InitSessionKeys(cfg Config, logger *slog.Logger) (*jwtx.Signer, *jwtx.Verifier, error) {
	var (
		pemKey []byte
		err    error
	)

	if cfg.KeyFile != "" {
		pemKey, err = cryptox.LoadOrCreateEd25519Key(cfg.KeyFile)
		if err != nil {
			return nil, nil, fmt.Errorf("load session key: %w", err)
		}
	} else {
		pemKey, err = cryptox.GenerateEd25519Key()
		if err != nil {
			return nil, nil, fmt.Errorf("generate session key: %w", err)
		}
	}

	signer, err := jwtx.NewSigner("", pemKey)
	if err != nil {
		return nil, nil, err
	}
	verifier := jwtx.NewVerifier(jwtx.VerifyOptions{
		Issuer: cfg.Issuer,
		Leeway: 30 * time.Second,
	}, signer)

	if cfg.KeyFile != "" {
		logger.Info("session signing key loaded", "kid", signer.KID(), "path", cfg.KeyFile)
	} else {
		logger.Warn("generated ephemeral session key, sessions end on restart", "kid", signer.KID())
	}
	return signer, verifier, nil
}
