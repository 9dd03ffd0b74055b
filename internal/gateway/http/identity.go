package http

import (
	"net/http"

	"github.com/aussiebroadwan/fleetdesk/internal/gateway/domain"
	"github.com/aussiebroadwan/fleetdesk/internal/gateway/service"
	"github.com/aussiebroadwan/fleetdesk/pkg/authsdk"
	"github.com/aussiebroadwan/fleetdesk/pkg/httpx"
	"github.com/aussiebroadwan/fleetdesk/pkg/slogx"
)

// IdentityHandler serves the GoTrue compatible /auth/v1 API backed by the
// local identity provider.
type IdentityHandler struct {
	Identity *service.IdentityService
	MFA      *service.MFAService
	Members  *service.MembershipService
	Sessions *sessionWriter
}

// HandleSignUp handles POST /auth/v1/signup
//
//	@Summary		Sign up
//	@Description	Creates an unconfirmed account and mails a confirmation link to /auth/confirm.
//	@Tags			Identity
//	@Accept			json
//	@Produce		json
//	@Param			request	body		authsdk.SignUpRequest	true	"Credentials"
//	@Success		200		{object}	authsdk.User
//	@Failure		400		{object}	authsdk.ErrorResponse	"Invalid email"
//	@Failure		422		{object}	authsdk.ErrorResponse	"Weak password or email taken"
//	@Router			/auth/v1/signup [post].
func (h *IdentityHandler) HandleSignUp(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req authsdk.SignUpRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		writeBadRequest(w, err.Error())
		return
	}

	u, err := h.Identity.SignUp(ctx, req.Email, req.Password, req.RedirectTo)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, toUser(u, ""))
}

// HandleToken handles POST /auth/v1/token
//
//	@Summary		Token endpoint
//	@Description	Issues a session for one of three grants: password (email, password), pkce (auth_code, code_verifier) or mfa_totp (mfa_token, method, code).
//	@Description	A password grant for an account with MFA enabled returns 409 with an mfa_token.
//	@Tags			Identity
//	@Accept			json
//	@Produce		json
//	@Param			grant_type	query		string					true	"Grant type"	Enums(password, pkce, mfa_totp)
//	@Param			request		body		authsdk.TokenRequest	true	"Grant parameters"
//	@Success		200			{object}	authsdk.SessionResponse
//	@Failure		400			{object}	authsdk.ErrorResponse		"Invalid grant"
//	@Failure		404			{object}	authsdk.ErrorResponse		"Unknown authorization code"
//	@Failure		409			{object}	authsdk.MFARequiredResponse	"MFA required"
//	@Failure		422			{object}	authsdk.ErrorResponse		"Invalid MFA code"
//	@Failure		429			{object}	authsdk.ErrorResponse		"Too many attempts"
//	@Router			/auth/v1/token [post].
func (h *IdentityHandler) HandleToken(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	grant := r.URL.Query().Get("grant_type")

	var req authsdk.TokenRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		writeBadRequest(w, err.Error())
		return
	}

	var (
		id  *domain.Identity
		err error
	)
	switch grant {
	case authsdk.GrantPassword:
		id, err = h.Identity.SignInWithPassword(ctx, req.Email, req.Password)
	case authsdk.GrantPKCE:
		id, err = h.Identity.ExchangeCode(ctx, req.AuthCode, req.CodeVerifier)
	case authsdk.GrantMFATOTP:
		method := req.Method
		if method == "" {
			method = domain.MFAMethodTOTP
		}
		id, err = h.MFA.Challenge(ctx, req.MFAToken, method, req.Code)
	default:
		httpx.WriteError(w, http.StatusBadRequest, "unsupported_grant_type", "grant_type must be password, pkce or mfa_totp")
		return
	}
	if err != nil {
		log.Info("token grant rejected", "grant_type", grant, "err", err)
		writeServiceError(w, r, err)
		return
	}

	h.Sessions.writeJSON(w, r, id)
}

// HandleVerify handles POST /auth/v1/verify
//
//	@Summary		Verify a token hash
//	@Description	Redeems the token hash of an emailed link and returns a session. Used by clients that handle links themselves instead of /auth/confirm.
//	@Tags			Identity
//	@Accept			json
//	@Produce		json
//	@Param			request	body		authsdk.VerifyRequest	true	"Link type and token hash"
//	@Success		200		{object}	authsdk.SessionResponse
//	@Failure		400		{object}	authsdk.ErrorResponse	"Invalid request"
//	@Failure		403		{object}	authsdk.ErrorResponse	"otp_expired"
//	@Router			/auth/v1/verify [post].
func (h *IdentityHandler) HandleVerify(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req authsdk.VerifyRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		writeBadRequest(w, err.Error())
		return
	}

	otpType, err := domain.ParseOTPType(req.Type)
	if err != nil {
		writeServiceError(w, r, service.ErrValidation.WithMessage(err.Error()))
		return
	}

	id, err := h.Identity.VerifyOTP(ctx, otpType, req.TokenHash)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	h.Sessions.writeJSON(w, r, id)
}

// HandleMagicLink handles POST /auth/v1/otp
//
//	@Summary		Send a magic link
//	@Description	Mails a sign-in link. Unknown addresses are accepted silently.
//	@Tags			Identity
//	@Accept			json
//	@Param			request	body	authsdk.EmailLinkRequest	true	"Email and redirect"
//	@Success		204
//	@Failure		400	{object}	authsdk.ErrorResponse	"Invalid email"
//	@Router			/auth/v1/otp [post].
func (h *IdentityHandler) HandleMagicLink(w http.ResponseWriter, r *http.Request) {
	var req authsdk.EmailLinkRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		writeBadRequest(w, err.Error())
		return
	}

	if err := h.Identity.SendMagicLink(r.Context(), req.Email, req.RedirectTo); err != nil {
		writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleResend handles POST /auth/v1/resend
//
//	@Summary		Resend a link
//	@Description	Mails a fresh link of the given type and voids the older ones. This is the follow-up offered for expired links.
//	@Tags			Identity
//	@Accept			json
//	@Param			request	body	authsdk.EmailLinkRequest	true	"Email, link type and redirect"
//	@Success		204
//	@Failure		400	{object}	authsdk.ErrorResponse	"Invalid email or type"
//	@Router			/auth/v1/resend [post].
func (h *IdentityHandler) HandleResend(w http.ResponseWriter, r *http.Request) {
	var req authsdk.EmailLinkRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		writeBadRequest(w, err.Error())
		return
	}

	otpType := domain.OTPSignup
	if req.Type != "" {
		t, err := domain.ParseOTPType(req.Type)
		if err != nil {
			writeServiceError(w, r, service.ErrValidation.WithMessage(err.Error()))
			return
		}
		otpType = t
	}

	if err := h.Identity.ResendLink(r.Context(), req.Email, otpType, req.RedirectTo); err != nil {
		writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleRecover handles POST /auth/v1/recover
//
//	@Summary		Password recovery
//	@Description	Mails a recovery link. Without redirect_to the link continues to /update-password.
//	@Tags			Identity
//	@Accept			json
//	@Param			request	body	authsdk.EmailLinkRequest	true	"Email and redirect"
//	@Success		204
//	@Failure		400	{object}	authsdk.ErrorResponse	"Invalid email"
//	@Router			/auth/v1/recover [post].
func (h *IdentityHandler) HandleRecover(w http.ResponseWriter, r *http.Request) {
	var req authsdk.EmailLinkRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		writeBadRequest(w, err.Error())
		return
	}

	if err := h.Identity.RequestRecovery(r.Context(), req.Email, req.RedirectTo); err != nil {
		writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleGetUser handles GET /auth/v1/user
//
//	@Summary		Current user
//	@Tags			Identity
//	@Security		BearerAuth
//	@Produce		json
//	@Success		200	{object}	authsdk.User
//	@Failure		401	{object}	authsdk.ErrorResponse	"Invalid or missing session"
//	@Router			/auth/v1/user [get].
func (h *IdentityHandler) HandleGetUser(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	claims, _ := httpx.ClaimsFromContext(ctx)

	u, err := h.Identity.GetUser(ctx, claims.Subject)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, toUser(u, domain.Role(claims.Role)))
}

// HandleUpdateUser handles PUT /auth/v1/user
//
//	@Summary		Update password
//	@Description	Sets a new password for the signed-in user and voids pending recovery links.
//	@Tags			Identity
//	@Security		BearerAuth
//	@Accept			json
//	@Produce		json
//	@Param			request	body		authsdk.UpdateUserRequest	true	"New password"
//	@Success		200		{object}	authsdk.User
//	@Failure		401		{object}	authsdk.ErrorResponse	"Invalid or missing session"
//	@Failure		422		{object}	authsdk.ErrorResponse	"Weak password"
//	@Router			/auth/v1/user [put].
func (h *IdentityHandler) HandleUpdateUser(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	claims, _ := httpx.ClaimsFromContext(ctx)

	var req authsdk.UpdateUserRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		writeBadRequest(w, err.Error())
		return
	}

	if err := h.Identity.UpdatePassword(ctx, claims.Subject, req.Password); err != nil {
		writeServiceError(w, r, err)
		return
	}

	u, err := h.Identity.GetUser(ctx, claims.Subject)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, toUser(u, domain.Role(claims.Role)))
}

// HandleLogout handles POST /auth/v1/logout
//
//	@Summary		Sign out
//	@Description	Clears the session cookie. Session tokens are stateless and stay valid until they expire.
//	@Tags			Identity
//	@Success		204
//	@Router			/auth/v1/logout [post].
func (h *IdentityHandler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	h.Sessions.Cookie.Clear(w)
	if userID := httpx.UserIDFromContext(r.Context()); userID != "" {
		slogx.FromContext(r.Context()).Info("user signed out")
	}
	httpx.NoCache(w)
	w.WriteHeader(http.StatusNoContent)
}

// HandleAcceptInvitation handles POST /auth/accept-invitation
//
//	@Summary		Accept an invitation
//	@Description	Creates the invited account with its profile and approved membership and returns a session for it.
//	@Tags			Organizations
//	@Accept			json
//	@Produce		json
//	@Param			request	body		authsdk.AcceptInvitationRequest	true	"Invitation token and new account"
//	@Success		200		{object}	authsdk.SessionResponse
//	@Failure		400		{object}	authsdk.ErrorResponse	"Invalid or expired invitation"
//	@Failure		422		{object}	authsdk.ErrorResponse	"Weak password or email taken"
//	@Router			/auth/accept-invitation [post].
func (h *IdentityHandler) HandleAcceptInvitation(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req authsdk.AcceptInvitationRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		writeBadRequest(w, err.Error())
		return
	}

	id, err := h.Members.AcceptInvitation(ctx, service.AcceptInvitationParams{
		Token:     req.Token,
		Email:     req.Email,
		Password:  req.Password,
		FirstName: req.FirstName,
		LastName:  req.LastName,
	})
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	h.Sessions.writeJSON(w, r, id)
}
