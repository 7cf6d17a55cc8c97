package config

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"
	"time"
)

func validConfig() APIConfig {
	return APIConfig{
		Environment:        "production",
		Addr:               ":3000",
		PublicBaseURL:      "https://admin.gentlespacerealty.com",
		DatabaseURL:        "postgres://app:pg-password@db:5432/realty",
		SessionSecret:      Secret(strings.Repeat("s", 40)),
		SessionTTL:         8 * time.Hour,
		GoogleClientID:     "1234.apps.googleusercontent.com",
		GoogleClientSecret: "GOCSPX-top-secret",
		GoogleOAuthEnabled: true,
		OAuthRedirectURL:   "https://admin.gentlespacerealty.com/auth/callback",
		OAuthStateTTL:      10 * time.Minute,
		AdminEmailDomain:   "gentlespacerealty.com",
		SuperAdminEmail:    "admin@gentlespacerealty.com",
		RateLimitWindow:    15 * time.Minute,
		LogLevel:           "info",
	}
}

func TestLoadAPIConfigFromEnvironment(t *testing.T) {
	t.Setenv("APP_ENV", "staging")
	t.Setenv("DATABASE_URL", "postgres://app:pw@db:5432/realty")
	t.Setenv("SESSION_SECRET", "staging-session-secret")
	t.Setenv("GOOGLE_CLIENT_ID", " client-id ")
	t.Setenv("ADMIN_EMAIL_DOMAIN", "@GentleSpaceRealty.com")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://a.example, ,https://b.example")

	cfg, err := LoadAPIConfig()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.GoogleClientID != "client-id" {
		t.Fatalf("expected trimmed client id, got %q", cfg.GoogleClientID)
	}
	if cfg.AdminEmailDomain != "gentlespacerealty.com" {
		t.Fatalf("unexpected admin domain: %q", cfg.AdminEmailDomain)
	}
	if len(cfg.CORSAllowedOrigins) != 2 {
		t.Fatalf("expected two origins, got %v", cfg.CORSAllowedOrigins)
	}
	if cfg.SessionTTL != 8*time.Hour || cfg.APICacheTTL != 5*time.Minute || cfg.StaticCacheTTL != 24*time.Hour {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
	if cfg.CallbackPath() != "/auth/callback" {
		t.Fatalf("unexpected callback path: %s", cfg.CallbackPath())
	}
}

func TestLoadAPIConfigReportsAllProblems(t *testing.T) {
	t.Setenv("APP_ENV", "production")
	t.Setenv("DATABASE_URL", "")
	t.Setenv("SESSION_SECRET", "")
	t.Setenv("OAUTH_REDIRECT_URL", "/relative")

	_, err := LoadAPIConfig()
	if err == nil {
		t.Fatalf("expected validation error")
	}
	for _, want := range []string{"DATABASE_URL", "SESSION_SECRET", "OAUTH_REDIRECT_URL"} {
		if !strings.Contains(err.Error(), want) {
			t.Fatalf("expected %s in error: %v", want, err)
		}
	}
}

func TestValidateShortSessionSecretInProduction(t *testing.T) {
	cfg := validConfig()
	cfg.SessionSecret = "short"
	if err := cfg.Validate(); err == nil || !strings.Contains(err.Error(), "at least") {
		t.Fatalf("expected short secret rejection, got %v", err)
	}
	cfg.Environment = "development"
	if err := cfg.Validate(); err != nil {
		t.Fatalf("expected development to accept short secret, got %v", err)
	}
}

func TestValidateRejectsCallbackOnBuiltInRoute(t *testing.T) {
	for _, path := range []string{"/login", "/auth/login", "/admin", "/admin/users", "/healthz", "/", "/static/cb", "/auth/{provider}"} {
		cfg := validConfig()
		cfg.OAuthRedirectURL = "https://admin.gentlespacerealty.com" + path
		if err := cfg.Validate(); err == nil || !strings.Contains(err.Error(), "OAUTH_REDIRECT_URL") {
			t.Fatalf("path %s: expected OAUTH_REDIRECT_URL rejection, got %v", path, err)
		}
	}
	cfg := validConfig()
	cfg.OAuthRedirectURL = "https://admin.gentlespacerealty.com/auth/google/callback"
	if err := cfg.Validate(); err != nil {
		t.Fatalf("expected custom callback path to be accepted, got %v", err)
	}
}

func TestRateLimitDefaults(t *testing.T) {
	cfg := validConfig()
	limit, window := cfg.RateLimit()
	if limit != 100 || window != 15*time.Minute {
		t.Fatalf("unexpected production limit: %d/%s", limit, window)
	}
	cfg.Environment = "development"
	if limit, _ := cfg.RateLimit(); limit != 600 {
		t.Fatalf("unexpected development limit: %d", limit)
	}
	cfg.RateLimitRequests = 7
	if limit, _ := cfg.RateLimit(); limit != 7 {
		t.Fatalf("expected override, got %d", limit)
	}
}

func TestGoogleStatus(t *testing.T) {
	cfg := validConfig()
	if ok, reason := cfg.GoogleStatus(); !ok || reason != "" {
		t.Fatalf("expected enabled, got %v %q", ok, reason)
	}
	cfg.GoogleClientSecret = ""
	if ok, reason := cfg.GoogleStatus(); ok || !strings.Contains(reason, "GOOGLE_CLIENT_SECRET") {
		t.Fatalf("expected missing secret reason, got %v %q", ok, reason)
	}
	cfg.GoogleOAuthEnabled = false
	if ok, reason := cfg.GoogleStatus(); ok || !strings.Contains(reason, "disabled") {
		t.Fatalf("expected disabled reason, got %v %q", ok, reason)
	}
}

func TestConfigLogValueRedactsSecrets(t *testing.T) {
	cfg := validConfig()
	var buf bytes.Buffer
	log := slog.New(slog.NewJSONHandler(&buf, nil))
	log.Info("config loaded", "config", cfg)

	out := buf.String()
	for _, leaked := range []string{"GOCSPX-top-secret", "pg-password", strings.Repeat("s", 40)} {
		if strings.Contains(out, leaked) {
			t.Fatalf("log leaked %q: %s", leaked, out)
		}
	}
	if !strings.Contains(out, "1234.apps.googleusercontent.com") {
		t.Fatalf("expected public client id in log: %s", out)
	}
}

func TestConfigLogValueRevealsOnlyInDevelopment(t *testing.T) {
	cfg := validConfig()
	cfg.LogSecrets = true
	if cfg.RevealSecrets() {
		t.Fatalf("production must never reveal secrets")
	}
	cfg.Environment = "development"
	if !cfg.RevealSecrets() {
		t.Fatalf("expected development toggle to reveal secrets")
	}
	var buf bytes.Buffer
	slog.New(slog.NewJSONHandler(&buf, nil)).Info("config", "config", cfg)
	if !strings.Contains(buf.String(), "GOCSPX-top-secret") {
		t.Fatalf("expected revealed secret: %s", buf.String())
	}
}

func TestSecretFormatting(t *testing.T) {
	s := Secret("hunter2")
	if s.String() != "[redacted]" {
		t.Fatalf("unexpected String: %q", s.String())
	}
	text, _ := s.MarshalText()
	if string(text) != "[redacted]" {
		t.Fatalf("unexpected MarshalText: %q", text)
	}
	if s.Reveal() != "hunter2" {
		t.Fatalf("unexpected Reveal: %q", s.Reveal())
	}
}
