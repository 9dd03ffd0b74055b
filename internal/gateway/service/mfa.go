package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/aussiebroadwan/fleetdesk/internal/gateway/domain"
	"github.com/aussiebroadwan/fleetdesk/internal/gateway/store"
	"github.com/aussiebroadwan/fleetdesk/pkg/cryptox"
	"github.com/aussiebroadwan/fleetdesk/pkg/slogx"
	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
)

const (
	backupCodeCount = 10
	backupCodeBytes = cryptox.TokenSize128

	// MaxMFAAttempts is the number of failed codes a challenge tolerates.
	MaxMFAAttempts = 5
)

type MFAService struct {
	Store  store.Store
	Issuer string // shown in authenticator apps, e.g. "fleetdesk"

	Now func() time.Time
}

func (s *MFAService) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

// EnrollTOTP generates a secret for the user. MFA stays disabled until
// VerifyTOTP confirms a code; enrolling again replaces a pending secret.
func (s *MFAService) EnrollTOTP(ctx context.Context, userID string) (domain.MFAEnrollment, error) {
	u, err := s.user(ctx, userID)
	if err != nil {
		return domain.MFAEnrollment{}, err
	}
	if u.MFAEnabled() {
		return domain.MFAEnrollment{}, ErrMFAAlreadyEnabled
	}

	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      s.Issuer,
		AccountName: u.Email,
		Period:      30,
		Digits:      otp.DigitsSix,
		Algorithm:   otp.AlgorithmSHA1,
	})
	if err != nil {
		return domain.MFAEnrollment{}, fmt.Errorf("generate totp key: %w", err)
	}

	if err := s.Store.Users().SetMFASecret(ctx, userID, key.Secret()); err != nil {
		return domain.MFAEnrollment{}, fmt.Errorf("store mfa secret: %w", err)
	}

	return domain.MFAEnrollment{
		Secret:  key.Secret(),
		URI:     key.URL(),
		Issuer:  s.Issuer,
		Account: u.Email,
	}, nil
}

// VerifyTOTP activates MFA after a valid code and returns fresh backup
// codes. The plain codes are only ever returned here.
func (s *MFAService) VerifyTOTP(ctx context.Context, userID, code string) ([]string, error) {
	u, err := s.user(ctx, userID)
	if err != nil {
		return nil, err
	}
	if u.MFAEnabled() {
		return nil, ErrMFAAlreadyEnabled
	}
	if u.MFASecret == nil || *u.MFASecret == "" {
		return nil, ErrMFANotEnrolled
	}
	if !s.validate(code, *u.MFASecret) {
		return nil, ErrMFAVerificationFailed
	}

	codes, err := newBackupCodes()
	if err != nil {
		return nil, err
	}

	err = s.Store.WithTx(ctx, func(tx store.Tx) error {
		if err := storeBackupCodes(ctx, tx, userID, codes); err != nil {
			return err
		}
		if err := tx.Users().EnableMFA(ctx, userID, s.now()); err != nil {
			return fmt.Errorf("enable mfa: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	slogx.FromContext(ctx).Info("mfa enabled", slog.String("user_id", userID))
	return codes, nil
}

// RegenerateBackupCodes replaces every backup code after a valid TOTP code.
func (s *MFAService) RegenerateBackupCodes(ctx context.Context, userID, code string) ([]string, error) {
	if err := s.checkCode(ctx, userID, code); err != nil {
		return nil, err
	}

	codes, err := newBackupCodes()
	if err != nil {
		return nil, err
	}

	err = s.Store.WithTx(ctx, func(tx store.Tx) error {
		if err := tx.BackupCodes().DeleteAllBackupCodes(ctx, userID); err != nil {
			return fmt.Errorf("delete backup codes: %w", err)
		}
		return storeBackupCodes(ctx, tx, userID, codes)
	})
	if err != nil {
		return nil, err
	}
	return codes, nil
}

// Unenroll disables MFA after a valid TOTP code.
func (s *MFAService) Unenroll(ctx context.Context, userID, code string) error {
	if err := s.checkCode(ctx, userID, code); err != nil {
		return err
	}

	err := s.Store.WithTx(ctx, func(tx store.Tx) error {
		if err := tx.BackupCodes().DeleteAllBackupCodes(ctx, userID); err != nil {
			return fmt.Errorf("delete backup codes: %w", err)
		}
		if err := tx.Users().DisableMFA(ctx, userID); err != nil {
			return fmt.Errorf("disable mfa: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	slogx.FromContext(ctx).Info("mfa disabled", slog.String("user_id", userID))
	return nil
}

// Challenge completes a password sign-in that stopped at MFA. A TOTP or
// backup code upgrades the identity to AAL2. After MaxMFAAttempts wrong
// codes the challenge is dropped and the user must sign in again.
func (s *MFAService) Challenge(ctx context.Context, mfaToken, method, code string) (*domain.Identity, error) {
	l := slogx.FromContext(ctx)

	ch, err := s.Store.MFAChallenges().GetMFAChallenge(ctx, mfaToken, s.now())
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrMFAChallengeExpired
	}
	if err != nil {
		return nil, err
	}

	if ch.Attempts >= MaxMFAAttempts {
		_ = s.Store.MFAChallenges().DeleteMFAChallenge(ctx, ch.ID)
		return nil, ErrTooManyAttempts
	}

	u, err := s.user(ctx, ch.UserID)
	if err != nil {
		return nil, err
	}
	if !u.MFAEnabled() || u.MFASecret == nil {
		return nil, ErrMFANotEnabled
	}

	var ok bool
	switch method {
	case "", domain.MFAMethodTOTP:
		ok = s.validate(code, *u.MFASecret)
	case domain.MFAMethodBackupCode:
		ok, err = s.Store.BackupCodes().ConsumeBackupCode(ctx, u.ID, cryptox.FingerprintToken(strings.TrimSpace(code)))
		if err != nil {
			return nil, fmt.Errorf("consume backup code: %w", err)
		}
	default:
		return nil, ErrValidation.WithMessage(fmt.Sprintf("unsupported mfa method %q", method))
	}

	if !ok {
		updated, err := s.Store.MFAChallenges().IncrementMFAChallengeAttempts(ctx, ch.ID)
		if err != nil {
			return nil, fmt.Errorf("count mfa attempt: %w", err)
		}
		l.Info("mfa challenge failed", slog.String("user_id", u.ID), slog.Int("attempts", updated.Attempts))
		if updated.Attempts >= MaxMFAAttempts {
			_ = s.Store.MFAChallenges().DeleteMFAChallenge(ctx, ch.ID)
			return nil, ErrTooManyAttempts
		}
		return nil, ErrMFAVerificationFailed
	}

	if err := s.Store.MFAChallenges().DeleteMFAChallenge(ctx, ch.ID); err != nil {
		return nil, fmt.Errorf("delete mfa challenge: %w", err)
	}

	id := domain.Identity{UserID: u.ID, Email: u.Email, AMR: ch.AMR}.WithMFA()
	return &id, nil
}

// BackupCodesRemaining reports how many unused backup codes the user has.
func (s *MFAService) BackupCodesRemaining(ctx context.Context, userID string) (int, error) {
	return s.Store.BackupCodes().CountUserBackupCodes(ctx, userID)
}

func (s *MFAService) checkCode(ctx context.Context, userID, code string) error {
	u, err := s.user(ctx, userID)
	if err != nil {
		return err
	}
	if !u.MFAEnabled() || u.MFASecret == nil {
		return ErrMFANotEnabled
	}
	if !s.validate(code, *u.MFASecret) {
		return ErrMFAVerificationFailed
	}
	return nil
}

func (s *MFAService) validate(code, secret string) bool {
	ok, err := totp.ValidateCustom(strings.TrimSpace(code), secret, s.now(), totp.ValidateOpts{
		Period:    30,
		Skew:      1,
		Digits:    otp.DigitsSix,
		Algorithm: otp.AlgorithmSHA1,
	})
	return err == nil && ok
}

func (s *MFAService) user(ctx context.Context, userID string) (domain.User, error) {
	u, err := s.Store.Users().GetUserByID(ctx, userID)
	if errors.Is(err, store.ErrNotFound) {
		return domain.User{}, ErrUserNotFound
	}
	return u, err
}

func newBackupCodes() ([]string, error) {
	codes := make([]string, backupCodeCount)
	for i := range backupCodeCount {
		c, err := cryptox.GenerateToken(backupCodeBytes)
		if err != nil {
			return nil, fmt.Errorf("generate backup code: %w", err)
		}
		codes[i] = c
	}
	return codes, nil
}

func storeBackupCodes(ctx context.Context, tx store.Tx, userID string, codes []string) error {
	for _, c := range codes {
		if err := tx.BackupCodes().CreateBackupCode(ctx, userID, cryptox.FingerprintToken(c)); err != nil {
			return fmt.Errorf("store backup code: %w", err)
		}
	}
	return nil
}
