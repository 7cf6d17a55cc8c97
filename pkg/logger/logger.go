package logger

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

var sensitiveKeys = []string{"secret", "password", "token", "authorization", "cookie", "code_verifier", "database_url", "amqp_url"}

// Options tunes logger construction.
type Options struct {
	Writer io.Writer
	Level  slog.Level
	// RevealSecrets disables key-based redaction. Only the development
	// debugging toggle should set it.
	RevealSecrets bool
}

// New returns a JSON slog.Logger configured for the given service name.
func New(service string, level slog.Level) *slog.Logger {
	return NewWithOptions(service, Options{Level: level})
}

// NewWithOptions is New with an explicit destination and redaction policy.
func NewWithOptions(service string, opts Options) *slog.Logger {
	w := opts.Writer
	if w == nil {
		w = os.Stdout
	}
	handlerOpts := &slog.HandlerOptions{Level: opts.Level}
	if !opts.RevealSecrets {
		handlerOpts.ReplaceAttr = redactAttr
	}
	h := slog.NewJSONHandler(w, handlerOpts)
	return slog.New(h).With("service", service)
}

// redactAttr masks non-empty string attributes whose key names a credential.
func redactAttr(_ []string, a slog.Attr) slog.Attr {
	if a.Value.Kind() != slog.KindString || a.Value.String() == "" {
		return a
	}
	if IsSensitiveKey(a.Key) {
		return slog.String(a.Key, "[redacted]")
	}
	return a
}

// IsSensitiveKey reports whether an attribute key names a credential.
func IsSensitiveKey(key string) bool {
	lower := strings.ToLower(key)
	for _, s := range sensitiveKeys {
		if strings.Contains(lower, s) {
			return true
		}
	}
	return false
}
