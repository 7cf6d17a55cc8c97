package logger

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"
)

func TestLoggerRedactsSensitiveKeys(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithOptions("test", Options{Writer: &buf, Level: slog.LevelDebug})

	log.Info("token exchange", "client_secret", "GOCSPX-very-secret", "access_token", "ya29.token", "email", "agent@gentlespacerealty.com")

	out := buf.String()
	for _, leaked := range []string{"GOCSPX-very-secret", "ya29.token"} {
		if strings.Contains(out, leaked) {
			t.Fatalf("log line leaked %q: %s", leaked, out)
		}
	}
	if !strings.Contains(out, "agent@gentlespacerealty.com") {
		t.Fatalf("expected non-sensitive attributes to survive: %s", out)
	}
	if !strings.Contains(out, `"service":"test"`) {
		t.Fatalf("expected service attribute: %s", out)
	}
}

func TestLoggerRevealSecretsDisablesRedaction(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithOptions("test", Options{Writer: &buf, Level: slog.LevelInfo, RevealSecrets: true})

	log.Info("debug", "client_secret", "visible-in-dev")

	if !strings.Contains(buf.String(), "visible-in-dev") {
		t.Fatalf("expected secret to be visible with RevealSecrets: %s", buf.String())
	}
}

func TestIsSensitiveKey(t *testing.T) {
	cases := map[string]bool{
		"password":             true,
		"GOOGLE_CLIENT_SECRET": true,
		"refresh_token":        true,
		"email":                false,
		"user_id":              false,
	}
	for key, want := range cases {
		if got := IsSensitiveKey(key); got != want {
			t.Fatalf("IsSensitiveKey(%q) = %v, want %v", key, got, want)
		}
	}
}
