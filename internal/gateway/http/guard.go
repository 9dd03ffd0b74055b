package http

import (
	"net/http"
	"net/http/httputil"
	"net/url"

	"github.com/aussiebroadwan/fleetdesk/internal/gateway/access"
	"github.com/aussiebroadwan/fleetdesk/internal/gateway/domain"
	"github.com/aussiebroadwan/fleetdesk/pkg/httpx"
	"github.com/aussiebroadwan/fleetdesk/pkg/slogx"
)

// Headers the guard sets on proxied requests. Inbound copies are dropped.
const (
	HeaderUserID = "X-Fleetdesk-User-Id"
	HeaderRole   = "X-Fleetdesk-Role"
	HeaderOrgID  = "X-Fleetdesk-Org-Id"
)

// Guard protects the web app's /home tree. Anonymous requests go to the
// sign-in page with next set; denied requests go to the role's fallback
// route; allowed requests reach Upstream.
type Guard struct {
	Access   *access.Resolver
	Upstream http.Handler
}

func (g *Guard) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	log := slogx.FromContext(r.Context())

	claims, ok := httpx.ClaimsFromContext(r.Context())
	if !ok {
		next := r.URL.Path
		if r.URL.RawQuery != "" {
			next += "?" + r.URL.RawQuery
		}
		target := g.Access.SignInPath() + "?" + url.Values{"next": {next}}.Encode()
		http.Redirect(w, r, target, http.StatusSeeOther)
		return
	}

	role := domain.Role(claims.Role)
	if target, denied := g.Access.ResolveRedirect(role, r.URL.Path); denied {
		if access.Normalize(target) == access.Normalize(r.URL.Path) {
			// The fallback route is itself denied; redirecting would loop.
			log.Error("fallback route denied for role", "role", role, "path", target)
			httpx.WriteError(w, http.StatusForbidden, "access_denied", "route not available for this role")
			return
		}
		log.Info("route denied", "path", r.URL.Path, "redirect", target)
		http.Redirect(w, r, target, http.StatusSeeOther)
		return
	}

	if g.Upstream == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	g.Upstream.ServeHTTP(w, r)
}

// NewUpstreamProxy reverse-proxies guarded requests to the web app at
// target, passing the caller's identity in X-Fleetdesk-* headers.
func NewUpstreamProxy(target *url.URL) *httputil.ReverseProxy {
	return &httputil.ReverseProxy{
		Rewrite: func(pr *httputil.ProxyRequest) {
			pr.SetURL(target)
			pr.SetXForwarded()
			pr.Out.Host = pr.In.Host

			pr.Out.Header.Del(HeaderUserID)
			pr.Out.Header.Del(HeaderRole)
			pr.Out.Header.Del(HeaderOrgID)
			if claims, ok := httpx.ClaimsFromContext(pr.In.Context()); ok {
				pr.Out.Header.Set(HeaderUserID, claims.Subject)
				pr.Out.Header.Set(HeaderRole, claims.Role)
				if claims.OrgID != "" {
					pr.Out.Header.Set(HeaderOrgID, claims.OrgID)
				}
			}
		},
		ErrorHandler: func(w http.ResponseWriter, r *http.Request, err error) {
			slogx.FromContext(r.Context()).Error("upstream request failed", "err", err)
			httpx.WriteError(w, http.StatusBadGateway, "upstream_unavailable", "the web app is not reachable")
		},
	}
}
