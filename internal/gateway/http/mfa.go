package http

import (
	"net/http"

	"github.com/aussiebroadwan/fleetdesk/internal/gateway/service"
	"github.com/aussiebroadwan/fleetdesk/pkg/authsdk"
	"github.com/aussiebroadwan/fleetdesk/pkg/httpx"
	"github.com/aussiebroadwan/fleetdesk/pkg/slogx"
)

// MFAHandler handles all MFA-related endpoints.
type MFAHandler struct {
	MFA *service.MFAService
}

// HandleEnroll handles POST /v1/mfa/totp/enroll
//
//	@Summary		Enroll in TOTP MFA
//	@Description	Generates a TOTP secret for the signed-in user. MFA stays off until the first code is verified.
//	@Tags			MFA
//	@Security		BearerAuth
//	@Produce		json
//	@Success		200	{object}	authsdk.TOTPEnrollResponse	"TOTP secret and otpauth URI"
//	@Failure		401	{object}	authsdk.ErrorResponse		"Invalid or missing session"
//	@Failure		422	{object}	authsdk.ErrorResponse		"MFA already enabled"
//	@Failure		500	{object}	authsdk.ErrorResponse		"Internal server error"
//	@Router			/v1/mfa/totp/enroll [post].
func (h *MFAHandler) HandleEnroll(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := httpx.UserIDFromContext(ctx)

	enroll, err := h.MFA.EnrollTOTP(ctx, userID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, authsdk.TOTPEnrollResponse{
		Secret:  enroll.Secret,
		URI:     enroll.URI,
		Issuer:  enroll.Issuer,
		Account: enroll.Account,
	})
}

// HandleVerify handles POST /v1/mfa/totp/verify
//
//	@Summary		Verify TOTP code and enable MFA
//	@Description	Verifies a TOTP code and enables MFA for the user. Returns backup codes.
//	@Tags			MFA
//	@Security		BearerAuth
//	@Accept			json
//	@Produce		json
//	@Param			request	body		authsdk.TOTPCodeRequest		true	"TOTP code"
//	@Success		200		{object}	authsdk.BackupCodesResponse	"Backup codes (shown once)"
//	@Failure		400		{object}	authsdk.ErrorResponse		"Invalid request"
//	@Failure		401		{object}	authsdk.ErrorResponse		"Invalid or missing session"
//	@Failure		422		{object}	authsdk.ErrorResponse		"Invalid code or no pending enrollment"
//	@Router			/v1/mfa/totp/verify [post].
func (h *MFAHandler) HandleVerify(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := httpx.UserIDFromContext(ctx)

	var req authsdk.TOTPCodeRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		writeBadRequest(w, err.Error())
		return
	}

	codes, err := h.MFA.VerifyTOTP(ctx, userID, req.Code)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	slogx.FromContext(ctx).Info("mfa enabled")
	httpx.WriteJSON(w, http.StatusOK, authsdk.BackupCodesResponse{BackupCodes: codes})
}

// HandleRegenerateBackupCodes handles POST /v1/mfa/backup-codes
//
//	@Summary		Regenerate backup codes
//	@Description	Replaces every backup code after checking a current TOTP code.
//	@Tags			MFA
//	@Security		BearerAuth
//	@Accept			json
//	@Produce		json
//	@Param			request	body		authsdk.TOTPCodeRequest		true	"TOTP code"
//	@Success		200		{object}	authsdk.BackupCodesResponse	"Backup codes (shown once)"
//	@Failure		401		{object}	authsdk.ErrorResponse		"Invalid or missing session"
//	@Failure		422		{object}	authsdk.ErrorResponse		"Invalid code or MFA not enabled"
//	@Router			/v1/mfa/backup-codes [post].
func (h *MFAHandler) HandleRegenerateBackupCodes(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := httpx.UserIDFromContext(ctx)

	var req authsdk.TOTPCodeRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		writeBadRequest(w, err.Error())
		return
	}

	codes, err := h.MFA.RegenerateBackupCodes(ctx, userID, req.Code)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, authsdk.BackupCodesResponse{BackupCodes: codes})
}

// HandleDisable handles DELETE /v1/mfa/totp
//
//	@Summary		Disable TOTP MFA
//	@Description	Turns MFA off and deletes the backup codes after checking a current TOTP code.
//	@Tags			MFA
//	@Security		BearerAuth
//	@Accept			json
//	@Param			request	body	authsdk.TOTPCodeRequest	true	"TOTP code"
//	@Success		204
//	@Failure		401	{object}	authsdk.ErrorResponse	"Invalid or missing session"
//	@Failure		422	{object}	authsdk.ErrorResponse	"Invalid code or MFA not enabled"
//	@Router			/v1/mfa/totp [delete].
func (h *MFAHandler) HandleDisable(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := httpx.UserIDFromContext(ctx)

	var req authsdk.TOTPCodeRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		writeBadRequest(w, err.Error())
		return
	}

	if err := h.MFA.Unenroll(ctx, userID, req.Code); err != nil {
		writeServiceError(w, r, err)
		return
	}

	slogx.FromContext(ctx).Info("mfa disabled")
	w.WriteHeader(http.StatusNoContent)
}
