package service_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/aussiebroadwan/fleetdesk/internal/gateway/domain"
	"github.com/aussiebroadwan/fleetdesk/internal/gateway/service"
	"github.com/pquerna/otp/totp"
	"github.com/stretchr/testify/require"
)

func enableMFA(t *testing.T, f *fixture, userID string) (secret string, backup []string) {
	t.Helper()
	ctx := context.Background()

	enr, err := f.mfa.EnrollTOTP(ctx, userID)
	require.NoError(t, err)
	require.NotEmpty(t, enr.Secret)
	require.Contains(t, enr.URI, "otpauth://totp/")
	require.Equal(t, "fleetdesk", enr.Issuer)

	code, err := totp.GenerateCode(enr.Secret, time.Now())
	require.NoError(t, err)

	backup, err = f.mfa.VerifyTOTP(ctx, userID, code)
	require.NoError(t, err)
	return enr.Secret, backup
}

func mfaToken(t *testing.T, f *fixture, email, password string) string {
	t.Helper()
	_, err := f.ident.SignInWithPassword(context.Background(), email, password)
	var mfaErr *service.MFARequiredError
	require.True(t, errors.As(err, &mfaErr), "want mfa required, got %v", err)
	require.Equal(t, []string{domain.MFAMethodTOTP, domain.MFAMethodBackupCode}, mfaErr.Methods)
	return mfaErr.MFAToken
}

func TestMFAEnrollment(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	u := f.confirmedUser(t, "a@example.com", "correct horse")

	_, err := f.mfa.VerifyTOTP(ctx, u.ID, "123456")
	require.ErrorIs(t, err, service.ErrMFANotEnrolled)

	enr, err := f.mfa.EnrollTOTP(ctx, u.ID)
	require.NoError(t, err)

	_, err = f.mfa.VerifyTOTP(ctx, u.ID, "000000")
	require.ErrorIs(t, err, service.ErrMFAVerificationFailed)

	code, err := totp.GenerateCode(enr.Secret, time.Now())
	require.NoError(t, err)
	backup, err := f.mfa.VerifyTOTP(ctx, u.ID, code)
	require.NoError(t, err)
	require.Len(t, backup, 10)

	n, err := f.mfa.BackupCodesRemaining(ctx, u.ID)
	require.NoError(t, err)
	require.Equal(t, 10, n)

	_, err = f.mfa.EnrollTOTP(ctx, u.ID)
	require.ErrorIs(t, err, service.ErrMFAAlreadyEnabled)

	_, err = f.mfa.EnrollTOTP(ctx, "missing")
	require.ErrorIs(t, err, service.ErrUserNotFound)
}

func TestMFAChallengeWithTOTP(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	u := f.confirmedUser(t, "a@example.com", "correct horse")
	secret, _ := enableMFA(t, f, u.ID)

	token := mfaToken(t, f, "a@example.com", "correct horse")

	_, err := f.mfa.Challenge(ctx, token, domain.MFAMethodTOTP, "000000")
	require.ErrorIs(t, err, service.ErrMFAVerificationFailed)

	code, err := totp.GenerateCode(secret, time.Now())
	require.NoError(t, err)
	id, err := f.mfa.Challenge(ctx, token, domain.MFAMethodTOTP, code)
	require.NoError(t, err)
	require.Equal(t, u.ID, id.UserID)
	require.Equal(t, domain.AAL2, id.AAL)
	require.Equal(t, []string{domain.AMRPassword, domain.AMRMFA}, id.AMR)

	// The challenge is consumed.
	_, err = f.mfa.Challenge(ctx, token, domain.MFAMethodTOTP, code)
	require.ErrorIs(t, err, service.ErrMFAChallengeExpired)
}

func TestMFAChallengeWithBackupCode(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	u := f.confirmedUser(t, "a@example.com", "correct horse")
	_, backup := enableMFA(t, f, u.ID)

	id, err := f.mfa.Challenge(ctx, mfaToken(t, f, "a@example.com", "correct horse"), domain.MFAMethodBackupCode, backup[0])
	require.NoError(t, err)
	require.Equal(t, domain.AAL2, id.AAL)

	// Backup codes are single use.
	_, err = f.mfa.Challenge(ctx, mfaToken(t, f, "a@example.com", "correct horse"), domain.MFAMethodBackupCode, backup[0])
	require.ErrorIs(t, err, service.ErrMFAVerificationFailed)

	n, err := f.mfa.BackupCodesRemaining(ctx, u.ID)
	require.NoError(t, err)
	require.Equal(t, 9, n)

	_, err = f.mfa.Challenge(ctx, mfaToken(t, f, "a@example.com", "correct horse"), "sms", "1")
	require.ErrorIs(t, err, service.ErrValidation)
}

func TestMFAChallengeAttemptLimit(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	u := f.confirmedUser(t, "a@example.com", "correct horse")
	secret, _ := enableMFA(t, f, u.ID)

	token := mfaToken(t, f, "a@example.com", "correct horse")
	for i := 1; i < service.MaxMFAAttempts; i++ {
		_, err := f.mfa.Challenge(ctx, token, domain.MFAMethodTOTP, "000000")
		require.ErrorIs(t, err, service.ErrMFAVerificationFailed, "attempt %d", i)
	}
	_, err := f.mfa.Challenge(ctx, token, domain.MFAMethodTOTP, "000000")
	require.ErrorIs(t, err, service.ErrTooManyAttempts)

	code, err := totp.GenerateCode(secret, time.Now())
	require.NoError(t, err)
	_, err = f.mfa.Challenge(ctx, token, domain.MFAMethodTOTP, code)
	require.ErrorIs(t, err, service.ErrMFAChallengeExpired)
}

func TestMFARegenerateAndUnenroll(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	u := f.confirmedUser(t, "a@example.com", "correct horse")
	secret, old := enableMFA(t, f, u.ID)

	code, err := totp.GenerateCode(secret, time.Now())
	require.NoError(t, err)

	fresh, err := f.mfa.RegenerateBackupCodes(ctx, u.ID, code)
	require.NoError(t, err)
	require.Len(t, fresh, 10)
	require.NotEqual(t, old, fresh)

	require.ErrorIs(t, f.mfa.Unenroll(ctx, u.ID, "000000"), service.ErrMFAVerificationFailed)
	require.NoError(t, f.mfa.Unenroll(ctx, u.ID, code))

	n, err := f.mfa.BackupCodesRemaining(ctx, u.ID)
	require.NoError(t, err)
	require.Zero(t, n)

	id, err := f.ident.SignInWithPassword(ctx, "a@example.com", "correct horse")
	require.NoError(t, err)
	require.Equal(t, domain.AAL1, id.AAL)

	require.ErrorIs(t, f.mfa.Unenroll(ctx, u.ID, code), service.ErrMFANotEnabled)
}
