package http

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/aussiebroadwan/fleetdesk/internal/gateway/callback"
	"github.com/aussiebroadwan/fleetdesk/pkg/authsdk"
	"github.com/aussiebroadwan/fleetdesk/pkg/httpx"
	"github.com/aussiebroadwan/fleetdesk/pkg/i18nx"
	"github.com/aussiebroadwan/fleetdesk/pkg/slogx"
)

// Follow-up actions offered by the callback error page.
const (
	ActionResendLink = "resend_link"
	ActionSignIn     = "sign_in"
)

// CallbackHandler redeems emailed links and PKCE codes.
type CallbackHandler struct {
	Resolver     *callback.Resolver
	Sessions     *sessionWriter
	PKCECookie   httpx.CookieOptions
	RedirectPath string
	Bundle       *i18nx.Bundle
}

func (h *CallbackHandler) params() callback.Params {
	return callback.Params{RedirectPath: h.RedirectPath, ErrorPath: callback.DefaultErrorPath}
}

// HandleConfirm handles GET /auth/confirm
//
//	@Summary		Redeem an emailed link
//	@Description	Verifies the token hash of a signup, invite, magic link or recovery email. On success a session cookie is set and the browser is sent to next; on failure it is sent to the callback error page.
//	@Tags			Callback
//	@Param			token_hash	query	string	true	"Token hash from the email link"
//	@Param			type		query	string	true	"Link type"	Enums(signup, invite, magiclink, recovery, email_change, email)
//	@Param			next		query	string	false	"Local path to continue to"
//	@Success		303			"Redirect to next or to the error page"
//	@Router			/auth/confirm [get].
func (h *CallbackHandler) HandleConfirm(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	out := h.Resolver.VerifyTokenHash(ctx, callbackRequest(r, ""), h.params())
	h.finish(w, r, out)
}

// HandleCallback handles GET /auth/callback
//
//	@Summary		Exchange a PKCE code
//	@Description	Exchanges the authorization code with the verifier held in the __oauth_pkce cookie. The cookie is always cleared.
//	@Tags			Callback
//	@Param			code				query	string	false	"Authorization code"
//	@Param			next				query	string	false	"Local path to continue to"
//	@Param			error				query	string	false	"Error reported by the provider"
//	@Param			error_code			query	string	false	"Provider error code"
//	@Param			error_description	query	string	false	"Provider error description"
//	@Success		303					"Redirect to next or to the error page"
//	@Router			/auth/callback [get].
func (h *CallbackHandler) HandleCallback(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	verifier := h.PKCECookie.Read(r)
	h.PKCECookie.Clear(w)

	out := h.Resolver.ExchangeCode(ctx, callbackRequest(r, verifier), h.params())
	h.finish(w, r, out)
}

func (h *CallbackHandler) finish(w http.ResponseWriter, r *http.Request, out callback.Outcome) {
	log := slogx.FromContext(r.Context())

	if out.OK() {
		if err := h.Sessions.setCookie(w, r, out.Identity); err != nil {
			log.Error("failed to issue session", "err", err)
			out.Location.Path = callback.DefaultErrorPath
			out.Location.RawQuery = url.Values{"error": {callback.MessageGeneric}}.Encode()
		} else {
			log.Info("callback signed in", "user_id", out.Identity.UserID, "aal", out.Identity.AAL)
		}
	}

	httpx.NoCache(w)
	http.Redirect(w, r, out.Location.String(), http.StatusSeeOther)
}

// HandleError handles GET /auth/callback/error
//
//	@Summary		Callback error details
//	@Description	Returns the localized title, message and follow-up action for a failed callback. An expired link offers to resend it; everything else offers to sign in again.
//	@Tags			Callback
//	@Produce		json
//	@Param			error	query		string	false	"Message key from the failed callback"
//	@Param			code	query		string	false	"Provider error code"
//	@Param			lang	query		string	false	"Preferred language"
//	@Success		200		{object}	authsdk.CallbackErrorResponse
//	@Router			/auth/callback/error [get].
func (h *CallbackHandler) HandleError(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	tag := h.Bundle.ResolveTag(r)

	key := q.Get("error")
	if !strings.HasPrefix(key, "auth:") || !h.Bundle.Has(key) {
		key = callback.MessageGeneric
	}
	code := q.Get("code")

	action := authsdk.CallbackAction{
		ID:    ActionSignIn,
		Label: h.Bundle.Translate(tag, "auth:actions.backToSignIn"),
		Path:  "/auth/sign-in",
	}
	if code == "otp_expired" || key == callback.MessageOTPExpired {
		action = authsdk.CallbackAction{
			ID:    ActionResendLink,
			Label: h.Bundle.Translate(tag, "auth:actions.resendLink"),
			Path:  "/auth/v1/resend",
		}
	}

	httpx.WriteJSON(w, http.StatusOK, authsdk.CallbackErrorResponse{
		Error:   key,
		Code:    code,
		Locale:  tag.String(),
		Title:   h.Bundle.Translate(tag, "auth:authenticationErrorAlertTitle"),
		Message: h.Bundle.Translate(tag, key),
		Action:  action,
	})
}

// callbackRequest rebuilds the absolute URL the gateway was reached at.
// Behind a proxy the URL keeps the internal host and Host carries the
// forwarded public one.
func callbackRequest(r *http.Request, verifier string) callback.Request {
	u := *r.URL
	u.Scheme = "http"
	if r.TLS != nil || strings.EqualFold(r.Header.Get("X-Forwarded-Proto"), "https") {
		u.Scheme = "https"
	}
	u.Host = r.Host

	host := r.Host
	if fwd := strings.TrimSpace(r.Header.Get("X-Forwarded-Host")); fwd != "" {
		host, _, _ = strings.Cut(fwd, ",")
		host = strings.TrimSpace(host)
	}

	return callback.Request{URL: &u, Host: host, CodeVerifier: verifier}
}
