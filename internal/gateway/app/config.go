package app

import (
	"fmt"
	"net/url"
	"time"

	"github.com/caarlos0/env/v11"
)

// Identity provider modes.
const (
	ProviderLocal  = "local"
	ProviderGoTrue = "gotrue"
)

type Config struct {
	SiteURL string `env:"GATEWAY_SITE_URL" envDefault:"http://localhost:8080"` // public origin used in emailed links
	Port    int    `env:"PORT" envDefault:"8080"`
	Issuer  string `env:"GATEWAY_ISSUER" envDefault:"fleetdesk"`

	DatabaseFile string `env:"GATEWAY_DATABASE_FILE" envDefault:"gateway.db"`
	PepperFile   string `env:"GATEWAY_PEPPER_FILE" envDefault:"pepper"`
	// KeyFile holds the session signing key. Empty generates a key per
	// process, so sessions end on restart.
	KeyFile    string        `env:"GATEWAY_KEY_FILE"`
	SessionTTL time.Duration `env:"GATEWAY_SESSION_TTL" envDefault:"1h"`

	// Provider selects who redeems callback links: the built-in identity
	// service or a GoTrue compatible server.
	Provider   string `env:"GATEWAY_PROVIDER" envDefault:"local"`
	GoTrueURL  string `env:"GATEWAY_GOTRUE_URL"`
	GoTrueKey  string `env:"GATEWAY_GOTRUE_ANON_KEY"`
	PolicyFile string `env:"GATEWAY_POLICY_FILE"`

	UpstreamURL  string `env:"GATEWAY_UPSTREAM_URL"` // web app behind the /home guard
	CookieSecure bool   `env:"GATEWAY_COOKIE_SECURE" envDefault:"false"`

	BootstrapAdminEmail    string `env:"GATEWAY_BOOTSTRAP_ADMIN_EMAIL"`
	BootstrapAdminPassword string `env:"GATEWAY_BOOTSTRAP_ADMIN_PASSWORD"`

	OTELEndpoint string `env:"OTEL_EXPORTER_OTLP_ENDPOINT"`

	Env                  string        `env:"ENV" envDefault:"dev"`
	LogLevel             string        `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat            string        `env:"LOG_FORMAT" envDefault:"json"`
	ShutdownGracePeriod  time.Duration `env:"SHUTDOWN_GRACE_PERIOD" envDefault:"10s"`
	HousekeepingInterval time.Duration `env:"HOUSEKEEPING_INTERVAL" envDefault:"1h"`
}

// LoadConfig reads the configuration from the environment.
func LoadConfig() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	if _, err := url.ParseRequestURI(c.SiteURL); err != nil {
		return fmt.Errorf("GATEWAY_SITE_URL: %w", err)
	}
	switch c.Provider {
	case ProviderLocal:
	case ProviderGoTrue:
		if c.GoTrueURL == "" {
			return fmt.Errorf("GATEWAY_GOTRUE_URL is required when GATEWAY_PROVIDER=%s", ProviderGoTrue)
		}
	default:
		return fmt.Errorf("GATEWAY_PROVIDER: unknown provider %q", c.Provider)
	}
	if c.UpstreamURL != "" {
		if _, err := url.ParseRequestURI(c.UpstreamURL); err != nil {
			return fmt.Errorf("GATEWAY_UPSTREAM_URL: %w", err)
		}
	}
	if (c.BootstrapAdminEmail == "") != (c.BootstrapAdminPassword == "") {
		return fmt.Errorf("GATEWAY_BOOTSTRAP_ADMIN_EMAIL and GATEWAY_BOOTSTRAP_ADMIN_PASSWORD must be set together")
	}
	if c.SessionTTL <= 0 {
		return fmt.Errorf("GATEWAY_SESSION_TTL must be positive")
	}
	return nil
}
