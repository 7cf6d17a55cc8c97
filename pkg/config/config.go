package config

import (
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"strings"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

const redacted = "[redacted]"

// Secret holds a confidential configuration value. It never prints or logs its
// contents; call Reveal to obtain the raw value.
type Secret string

// UnmarshalText lets env parsing populate the secret.
func (s *Secret) UnmarshalText(text []byte) error {
	*s = Secret(strings.TrimSpace(string(text)))
	return nil
}

// Reveal returns the raw secret value.
func (s Secret) Reveal() string {
	return string(s)
}

// IsSet reports whether a non-empty value was configured.
func (s Secret) IsSet() bool {
	return strings.TrimSpace(string(s)) != ""
}

// String implements fmt.Stringer without exposing the value.
func (s Secret) String() string {
	if !s.IsSet() {
		return ""
	}
	return redacted
}

// LogValue implements slog.LogValuer.
func (s Secret) LogValue() slog.Value {
	if !s.IsSet() {
		return slog.StringValue("")
	}
	return slog.StringValue(redacted)
}

// MarshalText keeps secrets out of JSON and text encodings.
func (s Secret) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// parse populates target from the process environment, loading a .env file
// first when running in development.
func parse(target any) error {
	if isDevelopment(os.Getenv("APP_ENV")) {
		if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return err
		}
	}
	return env.Parse(target)
}

func isDevelopment(environment string) bool {
	switch strings.ToLower(strings.TrimSpace(environment)) {
	case "", "development", "dev", "local":
		return true
	}
	return false
}
