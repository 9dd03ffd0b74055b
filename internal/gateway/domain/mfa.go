package domain

import "time"

// MFA methods offered after a password sign-in.
const (
	MFAMethodTOTP       = "totp"
	MFAMethodBackupCode = "backup_code"
)

// MFAChallenge is the pending second step of a password sign-in. The ID is
// the mfa_token handed to the client.
type MFAChallenge struct {
	ID        string
	UserID    string
	AMR       []string
	Attempts  int // failed attempts, capped to stop brute force
	ExpiresAt time.Time
	CreatedAt time.Time
}

// MFAEnrollment is returned when TOTP enrollment starts.
type MFAEnrollment struct {
	Secret  string // base32 TOTP secret
	URI     string // otpauth:// URL for QR codes
	Issuer  string
	Account string
}
