package http

import (
	"net/http"

	"github.com/aussiebroadwan/fleetdesk/internal/gateway/access"
	"github.com/aussiebroadwan/fleetdesk/internal/gateway/domain"
	"github.com/aussiebroadwan/fleetdesk/pkg/authsdk"
	"github.com/aussiebroadwan/fleetdesk/pkg/httpx"
	"github.com/aussiebroadwan/fleetdesk/pkg/i18nx"
	"golang.org/x/text/language"
)

// AccessHandler answers route access questions for the session's role.
type AccessHandler struct {
	Access     *access.Resolver
	Navigation []access.NavItem
	Bundle     *i18nx.Bundle
}

// HandleCheck handles GET /v1/access/check
//
//	@Summary		Check route access
//	@Description	Reports whether the session's role may open path. Denied paths carry the redirect the guard would use.
//	@Tags			Access
//	@Security		BearerAuth
//	@Produce		json
//	@Param			path	query		string	true	"Route path, e.g. /home/team"
//	@Success		200		{object}	authsdk.AccessCheckResponse
//	@Failure		400		{object}	authsdk.ErrorResponse	"Missing path"
//	@Failure		401		{object}	authsdk.ErrorResponse	"Invalid or missing session"
//	@Router			/v1/access/check [get].
func (h *AccessHandler) HandleCheck(w http.ResponseWriter, r *http.Request) {
	claims, _ := httpx.ClaimsFromContext(r.Context())

	path := r.URL.Query().Get("path")
	if path == "" {
		writeBadRequest(w, "path is required")
		return
	}

	role := domain.Role(claims.Role)
	redirect, denied := h.Access.ResolveRedirect(role, path)

	resp := authsdk.AccessCheckResponse{
		Path:    access.Normalize(path),
		Role:    claims.Role,
		Allowed: !denied,
	}
	if denied {
		resp.Redirect = redirect
	}
	httpx.WriteJSON(w, http.StatusOK, resp)
}

// HandleNavigation handles GET /v1/navigation
//
//	@Summary		Navigation for the session's role
//	@Description	Returns the navigation tree with entries the role cannot open removed and labels translated.
//	@Tags			Access
//	@Security		BearerAuth
//	@Produce		json
//	@Param			lang	query		string	false	"Preferred language"
//	@Success		200		{object}	authsdk.NavigationResponse
//	@Failure		401		{object}	authsdk.ErrorResponse	"Invalid or missing session"
//	@Router			/v1/navigation [get].
func (h *AccessHandler) HandleNavigation(w http.ResponseWriter, r *http.Request) {
	claims, _ := httpx.ClaimsFromContext(r.Context())
	tag := h.Bundle.ResolveTag(r)

	items := h.Access.FilterNavigation(domain.Role(claims.Role), h.Navigation)

	httpx.WriteJSON(w, http.StatusOK, authsdk.NavigationResponse{
		Role:  claims.Role,
		Items: h.translate(tag, items),
	})
}

func (h *AccessHandler) translate(tag language.Tag, items []access.NavItem) []authsdk.NavItem {
	out := make([]authsdk.NavItem, 0, len(items))
	for _, it := range items {
		n := authsdk.NavItem{
			ID:    it.ID,
			Label: h.Bundle.Translate(tag, it.Label),
			Path:  it.Path,
		}
		if len(it.Children) > 0 {
			n.Children = h.translate(tag, it.Children)
		}
		out = append(out, n)
	}
	return out
}
