package main

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestRemoteLoginThenUsers(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", dir)
	t.Setenv("HOME", dir)

	mux := http.NewServeMux()
	mux.HandleFunc("POST /auth/login", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"user":       map[string]string{"id": "u1", "email": "agent@gentlespacerealty.com", "role": "admin"},
			"token":      "remote-token",
			"expires_at": "2026-10-18T18:00:00Z",
		})
	})
	mux.HandleFunc("GET /admin/users", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer remote-token" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"users": []map[string]string{{"id": "u1", "email": "agent@gentlespacerealty.com", "role": "admin", "auth_provider": "google"}}})
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	c, out := newTestCLI(nil, "")
	if err := c.run([]string{"remote", "users"}); err == nil || !strings.Contains(err.Error(), "login first") {
		t.Fatalf("expected login hint, got %v", err)
	}
	if err := c.run([]string{"remote", "login", "--api", srv.URL, "--email", "agent@gentlespacerealty.com", "--password", "pw"}); err != nil {
		t.Fatalf("login: %v", err)
	}
	if !strings.Contains(out.String(), "logged in as agent@gentlespacerealty.com (admin)") {
		t.Fatalf("unexpected login output %q", out.String())
	}
	out.Reset()
	if err := c.run([]string{"remote", "users"}); err != nil {
		t.Fatalf("users: %v", err)
	}
	if !strings.Contains(out.String(), "agent@gentlespacerealty.com") || !strings.Contains(out.String(), "google") {
		t.Fatalf("unexpected users output %q", out.String())
	}
}
