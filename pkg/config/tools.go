package config

import (
	"errors"
	"fmt"
	"strings"
)

// MigrateConfig holds configuration for the schema migration tool.
type MigrateConfig struct {
	Environment string `env:"APP_ENV" envDefault:"development"`
	DatabaseURL Secret `env:"DATABASE_URL"`
}

// LoadMigrateConfig reads MigrateConfig from the environment.
func LoadMigrateConfig() (MigrateConfig, error) {
	var cfg MigrateConfig
	if err := parse(&cfg); err != nil {
		return MigrateConfig{}, fmt.Errorf("parse environment: %w", err)
	}
	if !cfg.DatabaseURL.IsSet() {
		return MigrateConfig{}, errors.New("DATABASE_URL is required")
	}
	return cfg, nil
}

// AdminConfig holds configuration for the adminctl operator tool. It shares
// the role policy keys with the API so both assign roles identically.
type AdminConfig struct {
	Environment      string `env:"APP_ENV" envDefault:"development"`
	DatabaseURL      Secret `env:"DATABASE_URL"`
	AdminEmailDomain string `env:"ADMIN_EMAIL_DOMAIN" envDefault:"gentlespacerealty.com"`
	SuperAdminEmail  string `env:"SUPER_ADMIN_EMAIL" envDefault:"admin@gentlespacerealty.com"`
	LogLevel         string `env:"LOG_LEVEL" envDefault:"warn"`
}

// LoadAdminConfig reads AdminConfig from the environment.
func LoadAdminConfig() (AdminConfig, error) {
	var cfg AdminConfig
	if err := parse(&cfg); err != nil {
		return AdminConfig{}, fmt.Errorf("parse environment: %w", err)
	}
	cfg.AdminEmailDomain = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(cfg.AdminEmailDomain), "@"))
	cfg.SuperAdminEmail = strings.ToLower(strings.TrimSpace(cfg.SuperAdminEmail))
	if !cfg.DatabaseURL.IsSet() {
		return AdminConfig{}, errors.New("DATABASE_URL is required")
	}
	return cfg, nil
}

// APIConfig returns an APIConfig carrying the role policy so services built
// for the API can be reused by the tool.
func (c AdminConfig) APIConfig() APIConfig {
	return APIConfig{
		Environment:      c.Environment,
		DatabaseURL:      c.DatabaseURL,
		AdminEmailDomain: c.AdminEmailDomain,
		SuperAdminEmail:  c.SuperAdminEmail,
		LogLevel:         c.LogLevel,
	}
}
