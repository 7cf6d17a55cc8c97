package config

import (
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"
)

const (
	rateLimitProduction  = 100
	rateLimitDefault     = 600
	minSessionSecretSize = 32
)

// reservedRoutes are the fixed paths served by the API router.
var reservedRoutes = []string{
	"/healthz",
	"/metrics",
	"/static/",
	"/login",
	"/auth/login",
	"/auth/logout",
	"/auth/config",
	"/auth/google/start",
	"/auth/me",
	"/admin",
	"/admin/users",
}

// APIConfig holds runtime configuration for the admin API service. It is
// built once at start-up and passed by value to the components that need it.
type APIConfig struct {
	Environment        string        `env:"APP_ENV" envDefault:"development"`
	Addr               string        `env:"API_ADDR" envDefault:":3000"`
	PublicBaseURL      string        `env:"PUBLIC_BASE_URL" envDefault:"http://localhost:3000"`
	DatabaseURL        Secret        `env:"DATABASE_URL"`
	RunMigrations      bool          `env:"DB_RUN_MIGRATIONS" envDefault:"true"`
	SessionSecret      Secret        `env:"SESSION_SECRET"`
	SessionTTL         time.Duration `env:"SESSION_TTL" envDefault:"8h"`
	GoogleClientID     string        `env:"GOOGLE_CLIENT_ID"`
	GoogleClientSecret Secret        `env:"GOOGLE_CLIENT_SECRET"`
	GoogleOAuthEnabled bool          `env:"GOOGLE_OAUTH_ENABLED" envDefault:"true"`
	OAuthRedirectURL   string        `env:"OAUTH_REDIRECT_URL" envDefault:"http://localhost:3000/auth/callback"`
	OAuthStateTTL      time.Duration `env:"OAUTH_STATE_TTL" envDefault:"10m"`
	AdminEmailDomain   string        `env:"ADMIN_EMAIL_DOMAIN" envDefault:"gentlespacerealty.com"`
	SuperAdminEmail    string        `env:"SUPER_ADMIN_EMAIL" envDefault:"admin@gentlespacerealty.com"`
	RoleRefreshOnLogin bool          `env:"ROLE_REFRESH_ON_LOGIN" envDefault:"false"`
	RedisAddr          string        `env:"REDIS_ADDR"`
	RedisPassword      Secret        `env:"REDIS_PASSWORD"`
	RedisDB            int           `env:"REDIS_DB" envDefault:"0"`
	RateLimitRequests  int           `env:"RATE_LIMIT_REQUESTS"`
	RateLimitWindow    time.Duration `env:"RATE_LIMIT_WINDOW" envDefault:"15m"`
	StaticCacheTTL     time.Duration `env:"STATIC_CACHE_TTL" envDefault:"24h"`
	APICacheTTL        time.Duration `env:"API_CACHE_TTL" envDefault:"5m"`
	CORSAllowedOrigins []string      `env:"CORS_ALLOWED_ORIGINS" envSeparator:","`
	AMQPURL            Secret        `env:"AMQP_URL"`
	AMQPExchange       string        `env:"AMQP_EXCHANGE" envDefault:"auth.events"`
	OTLPEndpoint       string        `env:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	LogLevel           string        `env:"LOG_LEVEL" envDefault:"info"`
	LogSecrets         bool          `env:"LOG_SECRETS" envDefault:"false"`
}

// LoadAPIConfig constructs and validates an APIConfig from environment variables.
func LoadAPIConfig() (APIConfig, error) {
	var cfg APIConfig
	if err := parse(&cfg); err != nil {
		return APIConfig{}, fmt.Errorf("parse environment: %w", err)
	}
	cfg.normalize()
	if err := cfg.Validate(); err != nil {
		return APIConfig{}, err
	}
	return cfg, nil
}

func (c *APIConfig) normalize() {
	c.Environment = strings.ToLower(strings.TrimSpace(c.Environment))
	c.AdminEmailDomain = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(c.AdminEmailDomain), "@"))
	c.SuperAdminEmail = strings.ToLower(strings.TrimSpace(c.SuperAdminEmail))
	c.GoogleClientID = strings.TrimSpace(c.GoogleClientID)
	c.PublicBaseURL = strings.TrimRight(strings.TrimSpace(c.PublicBaseURL), "/")
	origins := c.CORSAllowedOrigins[:0]
	for _, origin := range c.CORSAllowedOrigins {
		if trimmed := strings.TrimSpace(origin); trimmed != "" {
			origins = append(origins, trimmed)
		}
	}
	c.CORSAllowedOrigins = origins
}

// Validate reports every configuration problem at once.
func (c APIConfig) Validate() error {
	var errs []error
	if !c.DatabaseURL.IsSet() {
		errs = append(errs, errors.New("DATABASE_URL is required"))
	}
	if !c.SessionSecret.IsSet() {
		errs = append(errs, errors.New("SESSION_SECRET is required"))
	} else if c.IsProduction() && len(c.SessionSecret.Reveal()) < minSessionSecretSize {
		errs = append(errs, fmt.Errorf("SESSION_SECRET must be at least %d bytes in production", minSessionSecretSize))
	}
	if c.SessionTTL <= 0 {
		errs = append(errs, errors.New("SESSION_TTL must be positive"))
	}
	if c.OAuthStateTTL <= 0 {
		errs = append(errs, errors.New("OAUTH_STATE_TTL must be positive"))
	}
	if err := requireAbsoluteURL("OAUTH_REDIRECT_URL", c.OAuthRedirectURL); err != nil {
		errs = append(errs, err)
	}
	if err := c.CheckCallbackPath(); err != nil {
		errs = append(errs, err)
	}
	if err := requireAbsoluteURL("PUBLIC_BASE_URL", c.PublicBaseURL); err != nil {
		errs = append(errs, err)
	}
	if c.AdminEmailDomain == "" {
		errs = append(errs, errors.New("ADMIN_EMAIL_DOMAIN is required"))
	}
	if c.SuperAdminEmail != "" && !strings.Contains(c.SuperAdminEmail, "@") {
		errs = append(errs, errors.New("SUPER_ADMIN_EMAIL must be an email address"))
	}
	if c.RateLimitRequests < 0 {
		errs = append(errs, errors.New("RATE_LIMIT_REQUESTS must not be negative"))
	}
	if c.RateLimitWindow <= 0 {
		errs = append(errs, errors.New("RATE_LIMIT_WINDOW must be positive"))
	}
	if _, err := ParseLevel(c.LogLevel); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// IsProduction reports whether the service runs in production.
func (c APIConfig) IsProduction() bool {
	return c.Environment == "production" || c.Environment == "prod"
}

// IsDevelopment reports whether the service runs in local development.
func (c APIConfig) IsDevelopment() bool {
	return isDevelopment(c.Environment)
}

// RevealSecrets reports whether secrets may be written to logs. It requires
// both the explicit LOG_SECRETS toggle and a development environment.
func (c APIConfig) RevealSecrets() bool {
	return c.LogSecrets && c.IsDevelopment()
}

// RateLimit returns the request budget per window: 100 per 15 minutes in
// production unless overridden.
func (c APIConfig) RateLimit() (int, time.Duration) {
	window := c.RateLimitWindow
	if window <= 0 {
		window = 15 * time.Minute
	}
	if c.RateLimitRequests > 0 {
		return c.RateLimitRequests, window
	}
	if c.IsProduction() {
		return rateLimitProduction, window
	}
	return rateLimitDefault, window
}

// GoogleStatus reports whether Google sign-in can be offered and, if not, why.
func (c APIConfig) GoogleStatus() (bool, string) {
	switch {
	case !c.GoogleOAuthEnabled:
		return false, "Google sign-in is disabled by configuration (GOOGLE_OAUTH_ENABLED=false)."
	case c.GoogleClientID == "":
		return false, "Google sign-in is not configured: GOOGLE_CLIENT_ID is missing."
	case !c.GoogleClientSecret.IsSet():
		return false, "Google sign-in is not configured: GOOGLE_CLIENT_SECRET is missing."
	}
	return true, ""
}

// CallbackPath returns the request path of the configured OAuth redirect URL.
func (c APIConfig) CallbackPath() string {
	parsed, err := url.Parse(c.OAuthRedirectURL)
	if err != nil || parsed.Path == "" {
		return "/auth/callback"
	}
	return parsed.Path
}

// CheckCallbackPath rejects an OAUTH_REDIRECT_URL path that the router
// already serves or cannot register as a literal route.
func (c APIConfig) CheckCallbackPath() error {
	path := c.CallbackPath()
	if !strings.HasPrefix(path, "/") || strings.ContainsAny(path, "{} \t\r\n") {
		return fmt.Errorf("OAUTH_REDIRECT_URL path %q is not a valid route", path)
	}
	if path == "/" || strings.HasPrefix(path, "/static/") {
		return fmt.Errorf("OAUTH_REDIRECT_URL path %q overlaps a built-in route", path)
	}
	for _, route := range reservedRoutes {
		if path == route {
			return fmt.Errorf("OAUTH_REDIRECT_URL path %q overlaps a built-in route", path)
		}
	}
	return nil
}

// LogValue implements slog.LogValuer. Secrets stay redacted unless
// RevealSecrets is true.
func (c APIConfig) LogValue() slog.Value {
	secret := func(key string, s Secret) slog.Attr {
		if c.RevealSecrets() {
			return slog.String(key, s.Reveal())
		}
		return slog.Any(key, s)
	}
	limit, window := c.RateLimit()
	return slog.GroupValue(
		slog.String("environment", c.Environment),
		slog.String("addr", c.Addr),
		slog.String("public_base_url", c.PublicBaseURL),
		secret("database_url", c.DatabaseURL),
		secret("session_secret", c.SessionSecret),
		slog.Duration("session_ttl", c.SessionTTL),
		slog.String("google_client_id", c.GoogleClientID),
		secret("google_client_secret", c.GoogleClientSecret),
		slog.String("oauth_redirect_url", c.OAuthRedirectURL),
		slog.String("admin_email_domain", c.AdminEmailDomain),
		slog.Bool("role_refresh_on_login", c.RoleRefreshOnLogin),
		slog.String("redis_addr", c.RedisAddr),
		secret("redis_password", c.RedisPassword),
		secret("amqp_url", c.AMQPURL),
		slog.Int("rate_limit", limit),
		slog.Duration("rate_window", window),
		slog.String("otlp_endpoint", c.OTLPEndpoint),
	)
}

// ParseLevel maps LOG_LEVEL values onto slog levels.
func ParseLevel(value string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.TrimSpace(value))); err != nil {
		return slog.LevelInfo, fmt.Errorf("LOG_LEVEL %q is invalid", value)
	}
	return level, nil
}

func requireAbsoluteURL(key, value string) error {
	parsed, err := url.Parse(strings.TrimSpace(value))
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return fmt.Errorf("%s must be an absolute URL", key)
	}
	return nil
}
