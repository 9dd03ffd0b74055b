package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aussiebroadwan/fleetdesk/internal/gateway/access"
	"github.com/aussiebroadwan/fleetdesk/internal/gateway/callback"
	httpapi "github.com/aussiebroadwan/fleetdesk/internal/gateway/http"
	"github.com/aussiebroadwan/fleetdesk/internal/gateway/service"
	"github.com/aussiebroadwan/fleetdesk/internal/gateway/store"
	"github.com/aussiebroadwan/fleetdesk/internal/gateway/store/drivers/sqlite"
	"github.com/aussiebroadwan/fleetdesk/pkg/cryptox"
	"github.com/aussiebroadwan/fleetdesk/pkg/gotrue"
	"github.com/aussiebroadwan/fleetdesk/pkg/httpx"
	"github.com/aussiebroadwan/fleetdesk/pkg/i18nx"
	"github.com/aussiebroadwan/fleetdesk/pkg/jwtx"
	"github.com/aussiebroadwan/fleetdesk/pkg/slogx"
)

// BuildVersion is overridden at build time via -ldflags.
var BuildVersion = "v0.1.0"

const serviceName = "fleetdesk-gateway"

// Application holds the gateway and everything it depends on.
type Application struct {
	cfg    Config
	logger *slog.Logger

	db       store.Store
	signer   *jwtx.Signer
	verifier *jwtx.Verifier
	hasher   cryptox.PasswordHasher
	policy   access.Policy

	identityService     *service.IdentityService
	mfaService          *service.MFAService
	membershipService   *service.MembershipService
	fleetService        *service.FleetService
	sessionService      *service.SessionService
	bootstrapService    *service.BootstrapService
	housekeepingService *service.HousekeepingService
	callbackResolver    *callback.Resolver

	shutdownTracing func(context.Context) error

	server *http.Server
	router *httpapi.Router
}

// New builds the application. Nothing listens until Run.
func New(cfg Config) (*Application, error) {
	app := &Application{
		cfg: cfg,
		logger: slogx.New(slogx.Config{
			Service: serviceName,
			Version: BuildVersion,
			Env:     cfg.Env,
			Level:   cfg.LogLevel,
			Format:  cfg.LogFormat,
		}),
	}

	ctx := context.Background()

	shutdownTracing, err := InitTracing(ctx, cfg.OTELEndpoint, serviceName, BuildVersion)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize tracing: %w", err)
	}
	app.shutdownTracing = shutdownTracing

	pepper, err := cryptox.LoadOrCreatePepper(cfg.PepperFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load pepper: %w", err)
	}
	app.hasher = cryptox.PasswordHasher{Pepper: pepper}

	if err := app.initPolicy(); err != nil {
		return nil, err
	}

	if err := app.initDatabase(); err != nil {
		return nil, err
	}

	app.signer, app.verifier, err = InitSessionKeys(cfg, app.logger)
	if err != nil {
		_ = app.db.Close()
		return nil, fmt.Errorf("failed to initialize session keys: %w", err)
	}

	app.initServices()

	if err := app.bootstrap(ctx); err != nil {
		_ = app.db.Close()
		return nil, err
	}

	if err := app.initHTTP(); err != nil {
		_ = app.db.Close()
		return nil, err
	}

	return app, nil
}

// Handler exposes the router, mainly for tests.
func (app *Application) Handler() http.Handler { return app.router }

// Run serves until SIGINT or SIGTERM, then shuts down gracefully.
func (app *Application) Run() error {
	app.housekeepingService.Start()

	app.logger.Info("gateway starting",
		"port", app.cfg.Port,
		"version", BuildVersion,
		"provider", app.cfg.Provider,
	)

	serverErrors := make(chan error, 1)
	go func() {
		serverErrors <- app.server.ListenAndServe()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
	case sig := <-shutdown:
		app.logger.Info("shutdown signal received", "signal", sig)

		if err := app.Shutdown(); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
	}

	return nil
}

// Shutdown drains in-flight requests, stops background work and closes
// the database.
func (app *Application) Shutdown() error {
	app.logger.Info("shutting down gateway...")

	ctx, cancel := context.WithTimeout(context.Background(), app.cfg.ShutdownGracePeriod)
	defer cancel()

	if err := app.server.Shutdown(ctx); err != nil {
		app.logger.Error("graceful server shutdown failed", "error", err)
		if err := app.server.Close(); err != nil {
			app.logger.Error("error closing server", "error", err)
		}
	}

	app.housekeepingService.Stop()

	if err := app.shutdownTracing(ctx); err != nil {
		app.logger.Error("error flushing traces", "error", err)
	}

	if err := app.db.Close(); err != nil {
		app.logger.Error("error closing database", "error", err)
		return err
	}

	app.logger.Info("gateway stopped")
	return nil
}

func (app *Application) initPolicy() error {
	app.policy = access.DefaultPolicy()
	if app.cfg.PolicyFile == "" {
		return nil
	}

	p, err := access.LoadPolicy(app.cfg.PolicyFile)
	if err != nil {
		return fmt.Errorf("failed to load route policy: %w", err)
	}
	app.policy = p
	app.logger.Info("route policy loaded", "path", app.cfg.PolicyFile)
	return nil
}

func (app *Application) initDatabase() error {
	dsn := fmt.Sprintf("file:%s?_busy_timeout=5000&_journal_mode=WAL", app.cfg.DatabaseFile)
	db, err := sqlite.NewStore(dsn)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	app.db = db

	if err := db.ApplyMigrations(); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to apply database migrations: %w", err)
	}

	app.logger.Info("database migrations applied successfully")
	return nil
}

func (app *Application) initServices() {
	mailer := &service.LogMailer{Logger: app.logger, Bundle: i18nx.Default()}

	app.identityService = &service.IdentityService{
		Store:   app.db,
		Hasher:  app.hasher,
		Mailer:  mailer,
		SiteURL: app.cfg.SiteURL,
	}
	app.mfaService = &service.MFAService{
		Store:  app.db,
		Issuer: app.cfg.Issuer,
	}
	app.membershipService = &service.MembershipService{
		Store:   app.db,
		Hasher:  app.hasher,
		Mailer:  mailer,
		SiteURL: app.cfg.SiteURL,
	}
	app.fleetService = &service.FleetService{Store: app.db}
	app.sessionService = &service.SessionService{
		Signer:   app.signer,
		Verifier: app.verifier,
		Roles:    app.membershipService,
		Issuer:   app.cfg.Issuer,
		TTL:      app.cfg.SessionTTL,
	}
	app.bootstrapService = &service.BootstrapService{
		Store:  app.db,
		Hasher: app.hasher,
	}

	var provider callback.Provider = app.identityService
	if app.cfg.Provider == ProviderGoTrue {
		provider = callback.NewRemoteProvider(gotrue.New(app.cfg.GoTrueURL, app.cfg.GoTrueKey))
		app.logger.Info("callbacks redeemed by remote provider", "url", app.cfg.GoTrueURL)
	}
	app.callbackResolver = callback.NewResolver(provider)

	app.housekeepingService = service.NewHousekeepingService(
		app.db,
		app.logger,
		app.cfg.HousekeepingInterval,
	)
}

func (app *Application) bootstrap(ctx context.Context) error {
	if app.cfg.BootstrapAdminEmail == "" {
		return nil
	}

	created, err := app.bootstrapService.EnsureAdmin(ctx, app.cfg.BootstrapAdminEmail, app.cfg.BootstrapAdminPassword)
	if err != nil {
		return fmt.Errorf("failed to bootstrap admin: %w", err)
	}
	if created {
		app.logger.Info("bootstrap admin created", "email", app.cfg.BootstrapAdminEmail)
	}
	return nil
}

func (app *Application) initHTTP() error {
	router := httpapi.NewRouter(app.sessionService, BuildVersion, app.db, app.logger)

	router.Identity = app.identityService
	router.MFA = app.mfaService
	router.Members = app.membershipService
	router.Fleet = app.fleetService
	router.Callback = app.callbackResolver
	router.Access = access.NewResolver(app.policy)
	router.Limits = httpx.LoadRateLimits()
	router.SessionCookie.Secure = app.cfg.CookieSecure
	router.PKCECookie.Secure = app.cfg.CookieSecure

	if app.cfg.UpstreamURL != "" {
		target, err := url.Parse(app.cfg.UpstreamURL)
		if err != nil {
			return fmt.Errorf("invalid upstream url: %w", err)
		}
		router.Upstream = httpapi.NewUpstreamProxy(target)
		app.logger.Info("guarded routes proxied", "upstream", target.String())
	}

	router.ApplyRoutes()
	app.router = router

	app.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", app.cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 3 * time.Second,
	}
	return nil
}
