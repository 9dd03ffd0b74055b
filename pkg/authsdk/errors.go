package authsdk

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
)

// Error codes the gateway returns besides the GoTrue vocabulary.
const (
	ErrorCodeInvalidRequest = "invalid_request"
	ErrorCodeInvalidToken   = "invalid_token"
	ErrorCodeServerError    = "server_error"
	ErrorCodeMFARequired    = "mfa_required"
	ErrorCodeAccessDenied   = "access_denied"
	ErrorCodeRateLimited    = "over_request_rate_limit"
)

// APIError is a non-2xx response from the gateway.
type APIError struct {
	StatusCode  int
	Code        string
	Description string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s (%d): %s", e.Code, e.StatusCode, e.Description)
}

// ErrorCode returns the machine readable code.
func (e *APIError) ErrorCode() string { return e.Code }

// MFARequiredError is returned when a password sign-in needs a second
// factor. Pass MFAToken to Client.ChallengeMFA.
type MFARequiredError struct {
	MFAToken string
	Methods  []string
}

func (e *MFARequiredError) Error() string {
	return fmt.Sprintf("MFA required: available methods=%v", e.Methods)
}

func (e *MFARequiredError) ErrorCode() string { return ErrorCodeMFARequired }

// parseErrorResponse turns an error body into *APIError or
// *MFARequiredError.
func parseErrorResponse(resp *http.Response, body []byte) error {
	if resp.StatusCode == http.StatusConflict {
		var mfa MFARequiredResponse
		if err := json.Unmarshal(body, &mfa); err == nil && mfa.Error == ErrorCodeMFARequired {
			return &MFARequiredError{MFAToken: mfa.MFAToken, Methods: mfa.Methods}
		}
	}

	var er ErrorResponse
	if err := json.Unmarshal(body, &er); err == nil && er.Error != "" {
		return &APIError{StatusCode: resp.StatusCode, Code: er.Error, Description: er.ErrorDescription}
	}

	desc := strings.TrimSpace(string(body))
	if desc == "" {
		desc = http.StatusText(resp.StatusCode)
	}
	return &APIError{StatusCode: resp.StatusCode, Code: ErrorCodeServerError, Description: desc}
}
