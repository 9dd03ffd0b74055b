package gotrue

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
)

// Error codes the gateway reacts to.
const (
	CodeOTPExpired       = "otp_expired"
	CodeBadCodeVerifier  = "bad_code_verifier"
	CodeFlowStateExpired = "flow_state_expired"
	CodeUnexpected       = "unexpected_failure"
)

// EmptyCodeOrVerifierMessage is the provider's wording for a code exchange
// attempted without both halves.
const EmptyCodeOrVerifierMessage = "invalid request: both auth code and code verifier should be non-empty"

// ErrEmptyCodeOrVerifier is returned by ExchangeCode without a network call.
var ErrEmptyCodeOrVerifier = &APIError{
	Status:  http.StatusBadRequest,
	Code:    CodeBadCodeVerifier,
	Message: EmptyCodeOrVerifierMessage,
}

// APIError is a non-2xx response from the provider.
type APIError struct {
	Status  int
	Code    string
	Message string
}

func (e *APIError) Error() string {
	if e.Code == "" {
		return fmt.Sprintf("gotrue: %d: %s", e.Status, e.Message)
	}
	return fmt.Sprintf("gotrue: %s: %s", e.Code, e.Message)
}

// ErrorCode exposes the machine readable code.
func (e *APIError) ErrorCode() string { return e.Code }

// errorBody accepts both the current shape
// ({"code":400,"error_code":"otp_expired","msg":"..."}) and the OAuth
// shape ({"error":"invalid_grant","error_description":"..."}).
type errorBody struct {
	ErrorCode        string `json:"error_code"`
	Msg              string `json:"msg"`
	Message          string `json:"message"`
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
}

func parseError(status int, data []byte) *APIError {
	out := &APIError{Status: status}

	var body errorBody
	if err := json.Unmarshal(data, &body); err != nil {
		out.Code = CodeUnexpected
		out.Message = strings.TrimSpace(string(data))
		if out.Message == "" {
			out.Message = http.StatusText(status)
		}
		return out
	}

	out.Code = firstNonEmpty(body.ErrorCode, body.Error)
	out.Message = firstNonEmpty(body.Msg, body.Message, body.ErrorDescription, http.StatusText(status))
	return out
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
