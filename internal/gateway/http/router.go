package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/aussiebroadwan/fleetdesk/internal/gateway/access"
	"github.com/aussiebroadwan/fleetdesk/internal/gateway/callback"
	"github.com/aussiebroadwan/fleetdesk/internal/gateway/service"
	"github.com/aussiebroadwan/fleetdesk/internal/gateway/store"
	"github.com/aussiebroadwan/fleetdesk/pkg/httpx"
	"github.com/aussiebroadwan/fleetdesk/pkg/i18nx"
	"github.com/aussiebroadwan/fleetdesk/pkg/slogx"

	_ "github.com/aussiebroadwan/fleetdesk/api/gateway" // Swagger docs
	httpSwagger "github.com/swaggo/http-swagger"
)

// Cookie names.
const (
	SessionCookieName = "fd_session"
	PKCECookieName    = "__oauth_pkce"
)

// DefaultRedirectPath is where a successful callback lands without next.
const DefaultRedirectPath = "/home"

// Router holds shared dependencies for HTTP handlers.
type Router struct {
	Mux         *http.ServeMux
	middlewares []httpx.Middleware

	buildVersion string
	startTime    time.Time
	logger       *slog.Logger
	store        store.Store

	Sessions   *service.SessionService
	Identity   *service.IdentityService
	MFA        *service.MFAService
	Members    *service.MembershipService
	Fleet      *service.FleetService
	Callback   *callback.Resolver
	Access     *access.Resolver
	Navigation []access.NavItem
	Bundle     *i18nx.Bundle

	// Upstream receives guarded /home requests. Nil answers 204.
	Upstream http.Handler

	Limits        httpx.RateLimits
	SessionCookie httpx.CookieOptions
	PKCECookie    httpx.CookieOptions
	RedirectPath  string
}

func NewRouter(
	sessions *service.SessionService,
	buildVersion string,
	st store.Store,
	logger *slog.Logger,
) *Router {
	r := &Router{
		Mux:          http.NewServeMux(),
		buildVersion: buildVersion,
		startTime:    time.Now(),
		store:        st,
		logger:       logger,
		Sessions:     sessions,
		Navigation:   access.DefaultNavigation(),
		Bundle:       i18nx.Default(),
		Limits:       httpx.DefaultRateLimits(),
		SessionCookie: httpx.CookieOptions{
			Name:   SessionCookieName,
			Path:   "/",
			MaxAge: sessions.TTL,
		},
		PKCECookie: httpx.CookieOptions{
			Name:   PKCECookieName,
			Path:   "/auth",
			MaxAge: 5 * time.Minute,
		},
		RedirectPath: DefaultRedirectPath,
	}

	// Set default middleware chain
	r.middlewares = []httpx.Middleware{
		slogx.HTTPMiddleware(r.logger),
	}

	return r
}

// ApplyRoutes registers every route. Call it once the exported
// dependencies are set.
func (r *Router) ApplyRoutes() {
	r.middlewares = append(r.middlewares, httpx.Authenticate(r.Sessions, r.SessionCookie))

	r.registerCallback()
	r.registerIdentity()
	r.registerMFA()
	r.registerOrganizations()
	r.registerFleet()
	r.registerAccess()
	r.registerGuard()
	r.registerSystem()

	r.Mux.Handle("/swagger/", httpSwagger.Handler())
}

// ServeHTTP implements http.Handler for Router and applies the global middleware chain.
//
//	@title			fleetdesk Gateway API
//	@version		0.1.0
//	@description	Authentication gateway for the fleetdesk web app: email-link and PKCE callbacks, a GoTrue compatible identity API, organizations, fleet planning, and role based route access.
//	@description
//	@description				Session tokens are EdDSA signed JWTs, sent as a bearer token or the fd_session cookie.
//
//	@contact.name				AussieBroadWAN Team
//	@contact.url				https://github.com/aussiebroadwan/fleetdesk
//
//	@license.name				MIT
//	@license.url				https://opensource.org/licenses/MIT
//
//	@host						localhost:8080
//	@BasePath					/
//
//	@schemes					http https
//
//	@securityDefinitions.apikey	BearerAuth
//	@in							header
//	@name						Authorization
//	@description				Session token. Format: "Bearer {token}".
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	httpx.Chain(r.Mux, r.middlewares...).ServeHTTP(w, req)
}

func (r *Router) sessionWriter() *sessionWriter {
	return &sessionWriter{
		Sessions: r.Sessions,
		Identity: r.Identity,
		Cookie:   r.SessionCookie,
	}
}

func (r *Router) registerCallback() {
	h := &CallbackHandler{
		Resolver:     r.Callback,
		Sessions:     r.sessionWriter(),
		PKCECookie:   r.PKCECookie,
		RedirectPath: r.RedirectPath,
		Bundle:       r.Bundle,
	}

	// Link and code redemption: moderate, each call hits the provider.
	r.Mux.Handle("GET /auth/confirm",
		httpx.Chain(http.HandlerFunc(h.HandleConfirm),
			httpx.RateLimitByIP(r.Limits.Moderate),
		),
	)
	r.Mux.Handle("GET /auth/callback",
		httpx.Chain(http.HandlerFunc(h.HandleCallback),
			httpx.RateLimitByIP(r.Limits.Moderate),
		),
	)
	r.Mux.Handle("GET /auth/callback/error",
		httpx.Chain(http.HandlerFunc(h.HandleError),
			httpx.RateLimitByIP(r.Limits.Lenient),
		),
	)

	signIn := &SignInHandler{
		Identity:   r.Identity,
		MFA:        r.MFA,
		PKCECookie: r.PKCECookie,
	}

	// Credential checks: strict, keyed by IP and email against spraying.
	r.Mux.Handle("POST /auth/sign-in",
		httpx.Chain(http.HandlerFunc(signIn.HandlePassword),
			httpx.RateLimitByIPAndFormField(r.Limits.Strict, "email"),
		),
	)
	r.Mux.Handle("POST /auth/sign-in/mfa",
		httpx.Chain(http.HandlerFunc(signIn.HandleMFA),
			httpx.RateLimitByIP(r.Limits.Strict),
		),
	)
}

func (r *Router) registerIdentity() {
	h := &IdentityHandler{
		Identity: r.Identity,
		MFA:      r.MFA,
		Sessions: r.sessionWriter(),
		Members:  r.Members,
	}

	r.Mux.Handle("POST /auth/v1/signup",
		httpx.Chain(http.HandlerFunc(h.HandleSignUp),
			httpx.RateLimitByIP(r.Limits.Strict),
		),
	)
	r.Mux.Handle("POST /auth/v1/token",
		httpx.Chain(http.HandlerFunc(h.HandleToken),
			httpx.RateLimitByIP(r.Limits.Strict),
		),
	)
	r.Mux.Handle("POST /auth/v1/verify",
		httpx.Chain(http.HandlerFunc(h.HandleVerify),
			httpx.RateLimitByIP(r.Limits.Moderate),
		),
	)

	// Email sends: strict, every call mails someone.
	r.Mux.Handle("POST /auth/v1/otp",
		httpx.Chain(http.HandlerFunc(h.HandleMagicLink),
			httpx.RateLimitByIP(r.Limits.Strict),
		),
	)
	r.Mux.Handle("POST /auth/v1/resend",
		httpx.Chain(http.HandlerFunc(h.HandleResend),
			httpx.RateLimitByIP(r.Limits.Strict),
		),
	)
	r.Mux.Handle("POST /auth/v1/recover",
		httpx.Chain(http.HandlerFunc(h.HandleRecover),
			httpx.RateLimitByIP(r.Limits.Strict),
		),
	)

	r.Mux.Handle("GET /auth/v1/user",
		httpx.Chain(http.HandlerFunc(h.HandleGetUser),
			httpx.RequireSession,
			httpx.RateLimitByUser(r.Limits.Lenient),
		),
	)
	r.Mux.Handle("PUT /auth/v1/user",
		httpx.Chain(http.HandlerFunc(h.HandleUpdateUser),
			httpx.RequireSession,
			httpx.RateLimitByUser(r.Limits.Moderate),
		),
	)
	r.Mux.Handle("POST /auth/v1/logout",
		httpx.Chain(http.HandlerFunc(h.HandleLogout),
			httpx.RateLimitByIP(r.Limits.Moderate),
		),
	)

	r.Mux.Handle("POST /auth/accept-invitation",
		httpx.Chain(http.HandlerFunc(h.HandleAcceptInvitation),
			httpx.RateLimitByIP(r.Limits.Strict),
		),
	)
}

func (r *Router) registerMFA() {
	h := &MFAHandler{MFA: r.MFA}

	r.Mux.Handle("POST /v1/mfa/totp/enroll",
		httpx.Chain(http.HandlerFunc(h.HandleEnroll),
			httpx.RequireSession,
			httpx.RateLimitByUser(r.Limits.Moderate),
		),
	)
	r.Mux.Handle("POST /v1/mfa/totp/verify",
		httpx.Chain(http.HandlerFunc(h.HandleVerify),
			httpx.RequireSession,
			httpx.RateLimitByUser(r.Limits.Strict),
		),
	)
	r.Mux.Handle("DELETE /v1/mfa/totp",
		httpx.Chain(http.HandlerFunc(h.HandleDisable),
			httpx.RequireSession,
			httpx.RateLimitByUser(r.Limits.Strict),
		),
	)
	r.Mux.Handle("POST /v1/mfa/backup-codes",
		httpx.Chain(http.HandlerFunc(h.HandleRegenerateBackupCodes),
			httpx.RequireSession,
			httpx.RateLimitByUser(r.Limits.Strict),
		),
	)
}

func (r *Router) registerOrganizations() {
	h := &OrganizationHandler{Members: r.Members}

	r.Mux.Handle("POST /v1/organizations",
		httpx.Chain(http.HandlerFunc(h.HandleCreate),
			httpx.RequireSession,
			httpx.RateLimitByUser(r.Limits.Moderate),
		),
	)
	r.Mux.Handle("POST /v1/organizations/{id}/invitations",
		httpx.Chain(http.HandlerFunc(h.HandleInvite),
			httpx.RequireSession,
			httpx.RateLimitByUser(r.Limits.Moderate),
		),
	)
	r.Mux.Handle("GET /v1/organizations/{id}/members",
		httpx.Chain(http.HandlerFunc(h.HandleListMembers),
			httpx.RequireSession,
			httpx.RateLimitByUser(r.Limits.Lenient),
		),
	)
	r.Mux.Handle("PUT /v1/organizations/{id}/members/{userID}",
		httpx.Chain(http.HandlerFunc(h.HandleUpdateMember),
			httpx.RequireSession,
			httpx.RateLimitByUser(r.Limits.Moderate),
		),
	)
}

func (r *Router) registerFleet() {
	h := &FleetHandler{Fleet: r.Fleet}

	// Planning follows the Map Builder page, operating follows the driver page.
	plan := func(fn http.HandlerFunc, limit httpx.RateLimitConfig) http.Handler {
		return httpx.Chain(fn,
			httpx.RequireSession,
			RequirePage(r.Access, MapBuilderPage),
			httpx.RateLimitByUser(limit),
		)
	}
	operate := func(fn http.HandlerFunc, limit httpx.RateLimitConfig) http.Handler {
		return httpx.Chain(fn,
			httpx.RequireSession,
			RequirePage(r.Access, DriverPage),
			httpx.RateLimitByUser(limit),
		)
	}

	const org = "/v1/organizations/{id}"

	r.Mux.Handle("GET "+org+"/vehicles", plan(h.HandleListVehicles, r.Limits.Lenient))
	r.Mux.Handle("POST "+org+"/vehicles", plan(h.HandleCreateVehicle, r.Limits.Moderate))
	r.Mux.Handle("DELETE "+org+"/vehicles/{vehicleID}", plan(h.HandleDeleteVehicle, r.Limits.Moderate))
	r.Mux.Handle("PUT "+org+"/vehicles/{vehicleID}/position", operate(h.HandleUpdateVehiclePosition, r.Limits.Lenient))

	r.Mux.Handle("GET "+org+"/sites", plan(h.HandleListSites, r.Limits.Lenient))
	r.Mux.Handle("POST "+org+"/sites", plan(h.HandleCreateSite, r.Limits.Moderate))
	r.Mux.Handle("GET "+org+"/sites/{siteID}", plan(h.HandleGetSite, r.Limits.Lenient))
	r.Mux.Handle("DELETE "+org+"/sites/{siteID}", plan(h.HandleDeleteSite, r.Limits.Moderate))

	r.Mux.Handle("GET "+org+"/items", plan(h.HandleListItems, r.Limits.Lenient))
	r.Mux.Handle("POST "+org+"/items", plan(h.HandleCreateItem, r.Limits.Moderate))
	r.Mux.Handle("DELETE "+org+"/items/{itemID}", plan(h.HandleDeleteItem, r.Limits.Moderate))
	r.Mux.Handle("POST "+org+"/items/repair-dropoffs", plan(h.HandleRepairDropoffs, r.Limits.Strict))

	r.Mux.Handle("GET "+org+"/missions", operate(h.HandleListMissions, r.Limits.Lenient))
	r.Mux.Handle("GET "+org+"/missions/{missionID}", operate(h.HandleGetMission, r.Limits.Lenient))
	r.Mux.Handle("POST "+org+"/missions", plan(h.HandleCreateMission, r.Limits.Moderate))
	r.Mux.Handle("DELETE "+org+"/missions/{missionID}", plan(h.HandleDeleteMission, r.Limits.Moderate))
	r.Mux.Handle("PUT "+org+"/missions/{missionID}/status", operate(h.HandleUpdateMissionStatus, r.Limits.Moderate))
	r.Mux.Handle("PUT "+org+"/missions/{missionID}/stops/{stopID}/status", operate(h.HandleUpdateStopStatus, r.Limits.Moderate))
}

func (r *Router) registerAccess() {
	h := &AccessHandler{
		Access:     r.Access,
		Navigation: r.Navigation,
		Bundle:     r.Bundle,
	}

	r.Mux.Handle("GET /v1/access/check",
		httpx.Chain(http.HandlerFunc(h.HandleCheck),
			httpx.RequireSession,
			httpx.RateLimitByUser(r.Limits.Lenient),
		),
	)
	r.Mux.Handle("GET /v1/navigation",
		httpx.Chain(http.HandlerFunc(h.HandleNavigation),
			httpx.RequireSession,
			httpx.RateLimitByUser(r.Limits.Lenient),
		),
	)
}

func (r *Router) registerGuard() {
	g := &Guard{
		Access:   r.Access,
		Upstream: r.Upstream,
	}

	r.Mux.Handle("/home", g)
	r.Mux.Handle("/home/", g)
}

func (r *Router) registerSystem() {
	r.Mux.Handle("GET /livez",
		httpx.Chain(LivezHandler(r.startTime, r.buildVersion),
			httpx.RateLimitByIP(r.Limits.Public),
		),
	)
	r.Mux.Handle("GET /readyz",
		httpx.Chain(ReadyzHandler(r.startTime, r.buildVersion, r.store, r.Sessions),
			httpx.RateLimitByIP(r.Limits.Public),
		),
	)
	r.Mux.Handle("GET /.well-known/jwks.json",
		httpx.Chain(JWKSHandler(r.Sessions.Signer),
			httpx.RateLimitByIP(r.Limits.Public),
		),
	)
}
