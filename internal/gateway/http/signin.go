package http

import (
	"net/http"
	"net/url"

	"github.com/aussiebroadwan/fleetdesk/internal/gateway/domain"
	"github.com/aussiebroadwan/fleetdesk/internal/gateway/service"
	"github.com/aussiebroadwan/fleetdesk/pkg/cryptox"
	"github.com/aussiebroadwan/fleetdesk/pkg/httpx"
	"github.com/aussiebroadwan/fleetdesk/pkg/slogx"
)

// SignInHandler serves the browser sign-in form. A successful sign-in is
// turned into a PKCE code and finished by GET /auth/callback, so browsers
// and the email links share one session path.
type SignInHandler struct {
	Identity   *service.IdentityService
	MFA        *service.MFAService
	PKCECookie httpx.CookieOptions
}

// HandlePassword handles POST /auth/sign-in
//
//	@Summary		Browser password sign-in
//	@Description	Checks the credentials, stores a PKCE verifier cookie and redirects to /auth/callback with a fresh code. Accounts with MFA enabled get 409 with an mfa_token for POST /auth/sign-in/mfa.
//	@Tags			Callback
//	@Accept			x-www-form-urlencoded
//	@Produce		json
//	@Param			email		formData	string	true	"Email"
//	@Param			password	formData	string	true	"Password"
//	@Param			next		formData	string	false	"Local path to continue to"
//	@Success		303			"Redirect to /auth/callback"
//	@Failure		400			{object}	authsdk.ErrorResponse		"Invalid credentials"
//	@Failure		409			{object}	authsdk.MFARequiredResponse	"MFA required"
//	@Failure		429			{object}	authsdk.ErrorResponse		"Rate limit exceeded"
//	@Router			/auth/sign-in [post].
func (h *SignInHandler) HandlePassword(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	if err := r.ParseForm(); err != nil {
		writeBadRequest(w, "invalid form body")
		return
	}

	id, err := h.Identity.SignInWithPassword(ctx, r.PostFormValue("email"), r.PostFormValue("password"))
	if err != nil {
		log.Info("browser sign-in rejected", "err", err)
		writeServiceError(w, r, err)
		return
	}

	h.redirectWithCode(w, r, id)
}

// HandleMFA handles POST /auth/sign-in/mfa
//
//	@Summary		Browser MFA step
//	@Description	Completes a password sign-in with a TOTP or backup code, then continues like POST /auth/sign-in.
//	@Tags			Callback
//	@Accept			x-www-form-urlencoded
//	@Produce		json
//	@Param			mfa_token	formData	string	true	"Token from the 409 response"
//	@Param			method		formData	string	false	"totp (default) or backup_code"
//	@Param			code		formData	string	true	"TOTP or backup code"
//	@Param			next		formData	string	false	"Local path to continue to"
//	@Success		303			"Redirect to /auth/callback"
//	@Failure		422			{object}	authsdk.ErrorResponse	"Invalid code or expired challenge"
//	@Failure		429			{object}	authsdk.ErrorResponse	"Too many attempts"
//	@Router			/auth/sign-in/mfa [post].
func (h *SignInHandler) HandleMFA(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if err := r.ParseForm(); err != nil {
		writeBadRequest(w, "invalid form body")
		return
	}

	method := r.PostFormValue("method")
	if method == "" {
		method = domain.MFAMethodTOTP
	}

	id, err := h.MFA.Challenge(ctx, r.PostFormValue("mfa_token"), method, r.PostFormValue("code"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	h.redirectWithCode(w, r, id)
}

func (h *SignInHandler) redirectWithCode(w http.ResponseWriter, r *http.Request, id *domain.Identity) {
	ctx := r.Context()

	verifier, err := cryptox.NewCodeVerifier()
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	code, err := h.Identity.Authorize(ctx, *id, cryptox.S256Challenge(verifier), cryptox.PKCEMethodS256)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	h.PKCECookie.Set(w, verifier)

	q := url.Values{"code": {code}}
	if next := r.PostFormValue("next"); next != "" {
		q.Set("next", next)
	}

	httpx.NoCache(w)
	http.Redirect(w, r, "/auth/callback?"+q.Encode(), http.StatusSeeOther)
}
