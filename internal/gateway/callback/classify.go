package callback

import (
	"errors"
	"strings"
)

// Message keys shown on the error page.
const (
	MessageOTPExpired           = "auth:errors.otp_expired"
	MessageCodeVerifierMismatch = "auth:errors.codeVerifierMismatch"
	MessageGeneric              = "auth:authenticationErrorAlertBody"
)

const (
	codeOTPExpired      = "otp_expired"
	codeBadCodeVerifier = "bad_code_verifier"

	emptyCodeOrVerifier = "both auth code and code verifier should be non-empty"
)

// ErrorCoder is implemented by provider errors that carry a machine
// readable code.
type ErrorCoder interface {
	ErrorCode() string
}

// Classify maps a provider error to its message key and returns the
// provider code when one is exposed.
func Classify(err error) (code, messageKey string) {
	if err == nil {
		return "", MessageGeneric
	}

	var coder ErrorCoder
	if errors.As(err, &coder) {
		code = coder.ErrorCode()
	}

	switch {
	case code == codeOTPExpired:
		return code, MessageOTPExpired
	case code == codeBadCodeVerifier:
		return code, MessageCodeVerifierMismatch
	case strings.Contains(err.Error(), emptyCodeOrVerifier):
		return code, MessageCodeVerifierMismatch
	}
	return code, MessageGeneric
}

// reportedError is an error the provider put on the callback URL instead
// of a code.
type reportedError struct {
	code        string
	description string
}

func (e *reportedError) Error() string {
	if e.description == "" {
		return e.code
	}
	return e.code + ": " + e.description
}

func (e *reportedError) ErrorCode() string { return e.code }
