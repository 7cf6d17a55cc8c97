package client

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func newAPIServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("POST /auth/login", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		_ = json.NewDecoder(r.Body).Decode(&body)
		if body["password"] != "right-password" {
			w.WriteHeader(http.StatusUnauthorized)
			_ = json.NewEncoder(w).Encode(map[string]string{"error": "invalid email or password"})
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"user":  map[string]string{"id": "u1", "email": body["email"], "role": "admin"},
			"token": "session-token",
		})
	})
	mux.HandleFunc("GET /admin/users", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer session-token" {
			w.WriteHeader(http.StatusUnauthorized)
			_ = json.NewEncoder(w).Encode(map[string]string{"error": "authentication required"})
			return
		}
		if r.URL.Query().Get("limit") != "10" {
			t.Errorf("unexpected query %q", r.URL.RawQuery)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"users": []map[string]string{{"id": "u1", "email": "agent@gentlespacerealty.com", "role": "admin"}}})
	})
	mux.HandleFunc("POST /admin/users/{id}/role", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		_ = json.NewDecoder(r.Body).Decode(&body)
		_ = json.NewEncoder(w).Encode(map[string]any{"user": map[string]string{"id": r.PathValue("id"), "role": body["role"]}})
	})
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		_ = json.NewEncoder(w).Encode(map[string]any{"status": "degraded", "components": map[string]any{"redis": map[string]string{"status": "down"}}})
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestLoginAndListUsers(t *testing.T) {
	srv := newAPIServer(t)
	c, err := New(srv.URL, WithHTTPClient(srv.Client()))
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	ctx := context.Background()

	if _, err := c.Login(ctx, "agent@gentlespacerealty.com", "wrong"); !IsStatus(err, http.StatusUnauthorized) {
		t.Fatalf("expected 401 APIError, got %v", err)
	}
	login, err := c.Login(ctx, "agent@gentlespacerealty.com", "right-password")
	if err != nil || login.Token != "session-token" {
		t.Fatalf("unexpected login: %+v %v", login, err)
	}
	users, err := c.ListUsers(ctx, login.Token, 10, 0)
	if err != nil || len(users) != 1 || users[0].Role != "admin" {
		t.Fatalf("unexpected users: %+v %v", users, err)
	}
	updated, err := c.ChangeRole(ctx, login.Token, "u 2", "super_admin")
	if err != nil || updated.ID != "u 2" || updated.Role != "super_admin" {
		t.Fatalf("unexpected role change: %+v %v", updated, err)
	}
}

func TestHealthReturnsDegradedReport(t *testing.T) {
	srv := newAPIServer(t)
	c, _ := New(srv.URL)
	report, err := c.Health(context.Background())
	if !IsStatus(err, http.StatusServiceUnavailable) {
		t.Fatalf("expected 503, got %v", err)
	}
	if report.Components["redis"]["status"] != "down" {
		t.Fatalf("unexpected report %+v", report)
	}
}

func TestNewNormalisesBaseURL(t *testing.T) {
	c, err := New(" admin.example.com/ ")
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if c.BaseURL() != "http://admin.example.com" {
		t.Fatalf("unexpected base %q", c.BaseURL())
	}
	if d, _ := New(""); d.BaseURL() != defaultBaseURL {
		t.Fatalf("unexpected default %q", d.BaseURL())
	}
}
