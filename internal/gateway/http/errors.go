package http

import (
	"errors"
	"net/http"

	"github.com/aussiebroadwan/fleetdesk/internal/gateway/service"
	"github.com/aussiebroadwan/fleetdesk/pkg/authsdk"
	"github.com/aussiebroadwan/fleetdesk/pkg/httpx"
	"github.com/aussiebroadwan/fleetdesk/pkg/slogx"
)

// writeServiceError maps service failures onto the JSON error envelope.
// Anything that is not an *AuthError is logged and hidden behind a 500.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var mfa *service.MFARequiredError
	if errors.As(err, &mfa) {
		writeMFARequired(w, mfa)
		return
	}

	var ae *service.AuthError
	if errors.As(err, &ae) {
		httpx.WriteError(w, ae.Status, ae.Code, ae.Message)
		return
	}

	slogx.FromContext(r.Context()).Error("request failed", "err", err)
	httpx.WriteError(w, http.StatusInternalServerError, authsdk.ErrorCodeServerError, "internal server error")
}

// writeMFARequired answers 409: the credentials were right but the
// account needs a second factor.
func writeMFARequired(w http.ResponseWriter, e *service.MFARequiredError) {
	httpx.WriteJSON(w, http.StatusConflict, authsdk.MFARequiredResponse{
		Error:            authsdk.ErrorCodeMFARequired,
		ErrorDescription: "Multi-factor authentication is required to complete this request",
		MFAToken:         e.MFAToken,
		Methods:          e.Methods,
	})
}

func writeBadRequest(w http.ResponseWriter, desc string) {
	httpx.WriteError(w, http.StatusBadRequest, authsdk.ErrorCodeInvalidRequest, desc)
}
