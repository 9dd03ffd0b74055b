package service

import (
	"errors"
	"fmt"
	"net/http"
)

// AuthError is an identity-provider failure. Code uses the GoTrue error
// vocabulary so the callback resolver classifies local and remote failures
// the same way.
type AuthError struct {
	Status  int
	Code    string
	Message string
}

func (e *AuthError) Error() string { return fmt.Sprintf("%s: %s", e.Code, e.Message) }

// ErrorCode exposes the machine readable code.
func (e *AuthError) ErrorCode() string { return e.Code }

// Is matches any AuthError with the same code, so a customized message
// still satisfies errors.Is against the sentinel.
func (e *AuthError) Is(target error) bool {
	var t *AuthError
	if !errors.As(target, &t) {
		return false
	}
	return t.Code == e.Code
}

// WithMessage returns a copy carrying a different message.
func (e *AuthError) WithMessage(msg string) *AuthError {
	out := *e
	out.Message = msg
	return &out
}

var (
	ErrValidation         = &AuthError{http.StatusBadRequest, "validation_failed", "invalid request"}
	ErrWeakPassword       = &AuthError{http.StatusUnprocessableEntity, "weak_password", "password is too short"}
	ErrUserAlreadyExists  = &AuthError{http.StatusUnprocessableEntity, "user_already_exists", "a user with this email address has already been registered"}
	ErrUserNotFound       = &AuthError{http.StatusNotFound, "user_not_found", "user not found"}
	ErrInvalidCredentials = &AuthError{http.StatusBadRequest, "invalid_credentials", "invalid login credentials"}
	ErrEmailNotConfirmed  = &AuthError{http.StatusBadRequest, "email_not_confirmed", "email not confirmed"}
	ErrOTPExpired         = &AuthError{http.StatusForbidden, "otp_expired", "email link is invalid or has expired"}

	ErrEmptyCodeOrVerifier = &AuthError{http.StatusBadRequest, "bad_code_verifier", "invalid request: both auth code and code verifier should be non-empty"}
	ErrBadCodeVerifier     = &AuthError{http.StatusBadRequest, "bad_code_verifier", "code challenge does not match previously saved code verifier"}
	ErrFlowStateNotFound   = &AuthError{http.StatusNotFound, "flow_state_not_found", "invalid flow state, no valid flow state found"}
	ErrFlowStateExpired    = &AuthError{http.StatusBadRequest, "flow_state_expired", "invalid flow state, flow state has expired"}

	ErrMFAAlreadyEnabled     = &AuthError{http.StatusUnprocessableEntity, "mfa_factor_already_exists", "MFA is already enabled"}
	ErrMFANotEnrolled        = &AuthError{http.StatusUnprocessableEntity, "mfa_factor_not_found", "MFA enrollment has not been started"}
	ErrMFANotEnabled         = &AuthError{http.StatusUnprocessableEntity, "mfa_factor_not_found", "MFA is not enabled"}
	ErrMFAVerificationFailed = &AuthError{http.StatusUnprocessableEntity, "mfa_verification_failed", "invalid MFA code"}
	ErrMFAChallengeExpired   = &AuthError{http.StatusUnprocessableEntity, "mfa_challenge_expired", "MFA challenge has expired, sign in again"}
	ErrTooManyAttempts       = &AuthError{http.StatusTooManyRequests, "too_many_attempts", "too many failed MFA attempts, sign in again"}

	ErrInvitationInvalid    = &AuthError{http.StatusBadRequest, "invitation_invalid", "invitation is invalid or has expired"}
	ErrForbidden            = &AuthError{http.StatusForbidden, "not_admin", "not allowed to manage this organization"}
	ErrOrganizationNotFound = &AuthError{http.StatusNotFound, "organization_not_found", "organization not found"}

	ErrVehicleNotFound = &AuthError{http.StatusNotFound, "vehicle_not_found", "vehicle not found"}
	ErrSiteNotFound    = &AuthError{http.StatusNotFound, "site_not_found", "site not found"}
	ErrItemNotFound    = &AuthError{http.StatusNotFound, "item_not_found", "item not found"}
	ErrMissionNotFound = &AuthError{http.StatusNotFound, "mission_not_found", "mission not found"}
	ErrStopNotFound    = &AuthError{http.StatusNotFound, "stop_not_found", "stop not found"}
	ErrInUse           = &AuthError{http.StatusConflict, "resource_in_use", "still used by a mission"}
	ErrMissionClosed   = &AuthError{http.StatusConflict, "mission_closed", "mission is completed or cancelled"}
)

// MFARequiredError is returned by a password sign-in when the account has
// TOTP enabled. MFAToken identifies the pending challenge.
type MFARequiredError struct {
	MFAToken string
	Methods  []string
}

func (e *MFARequiredError) Error() string { return "mfa_required" }

func (e *MFARequiredError) ErrorCode() string { return "mfa_required" }
