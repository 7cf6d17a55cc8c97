package main

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/swami086/gentle-space-realty/internal/domain"
	"github.com/swami086/gentle-space-realty/internal/repository"
	"github.com/swami086/gentle-space-realty/pkg/config"
	"github.com/swami086/gentle-space-realty/pkg/crypto"
)

type memoryUsers struct {
	byEmail map[string]*domain.User
}

func (m *memoryUsers) CreateUser(_ context.Context, u *domain.User) error {
	if _, ok := m.byEmail[u.Email]; ok {
		return repository.ErrConflict
	}
	copied := *u
	m.byEmail[u.Email] = &copied
	return nil
}

func (m *memoryUsers) FindOrCreateUser(ctx context.Context, u *domain.User) (*domain.User, bool, error) {
	if existing, ok := m.byEmail[u.Email]; ok {
		return existing, false, nil
	}
	return u, true, m.CreateUser(ctx, u)
}

func (m *memoryUsers) GetUserByEmail(_ context.Context, email string) (*domain.User, error) {
	if u, ok := m.byEmail[domain.NormalizeEmail(email)]; ok {
		copied := *u
		return &copied, nil
	}
	return nil, repository.ErrNotFound
}

func (m *memoryUsers) GetUserByID(_ context.Context, id string) (*domain.User, error) {
	for _, u := range m.byEmail {
		if u.ID == id {
			copied := *u
			return &copied, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (m *memoryUsers) ListUsers(context.Context, int, int) ([]domain.User, error) {
	var out []domain.User
	for _, u := range m.byEmail {
		out = append(out, *u)
	}
	return out, nil
}

func (m *memoryUsers) UpdateUserRole(_ context.Context, id string, role domain.Role) (*domain.User, error) {
	for _, u := range m.byEmail {
		if u.ID == id {
			u.Role = role
			copied := *u
			return &copied, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (m *memoryUsers) RecordLogin(context.Context, string, time.Time) error { return nil }

func newTestCLI(users *memoryUsers, stdin string) (cli, *bytes.Buffer) {
	out := &bytes.Buffer{}
	return cli{
		stdin:   strings.NewReader(stdin),
		stdinFD: -1,
		stdout:  out,
		stderr:  &bytes.Buffer{},
		loadCfg: func() (config.AdminConfig, error) {
			return config.AdminConfig{
				Environment:      "development",
				DatabaseURL:      "postgres://test",
				AdminEmailDomain: "gentlespacerealty.com",
				SuperAdminEmail:  "admin@gentlespacerealty.com",
				LogLevel:         "error",
			}, nil
		},
		openStore: func(context.Context, config.AdminConfig) (repository.UserRepository, func(), error) {
			return users, func() {}, nil
		},
	}, out
}

func TestUserCreateAssignsRoleFromDomain(t *testing.T) {
	users := &memoryUsers{byEmail: map[string]*domain.User{}}
	c, out := newTestCLI(users, "a-long-enough-password\n")
	if err := c.run([]string{"user", "create", "--email", "Admin@GentleSpaceRealty.com", "--name", "Owner"}); err != nil {
		t.Fatalf("create: %v", err)
	}
	stored := users.byEmail["admin@gentlespacerealty.com"]
	if stored == nil || stored.Role != domain.RoleSuperAdmin {
		t.Fatalf("expected super admin, got %+v", stored)
	}
	if err := crypto.ComparePassword(stored.PasswordHash, "a-long-enough-password"); err != nil {
		t.Fatalf("password from stdin not stored: %v", err)
	}
	if !strings.Contains(out.String(), "role=super_admin") {
		t.Fatalf("unexpected output %q", out.String())
	}

	c, _ = newTestCLI(users, "")
	err := c.run([]string{"user", "create", "--email", "admin@gentlespacerealty.com", "--password", "another-long-password"})
	if err == nil || !strings.Contains(err.Error(), "already exists") {
		t.Fatalf("expected duplicate error, got %v", err)
	}
}

func TestUserCreateWarnsForNonAdminDomain(t *testing.T) {
	users := &memoryUsers{byEmail: map[string]*domain.User{}}
	c, out := newTestCLI(users, "")
	if err := c.run([]string{"user", "create", "--email", "buyer@gmail.com", "--password", "a-long-enough-password"}); err != nil {
		t.Fatalf("create: %v", err)
	}
	if !strings.Contains(out.String(), "cannot sign in to the admin area") {
		t.Fatalf("expected warning, got %q", out.String())
	}
}

func TestUserRoleUpdates(t *testing.T) {
	users := &memoryUsers{byEmail: map[string]*domain.User{
		"buyer@gmail.com": {ID: "u1", Email: "buyer@gmail.com", Role: domain.RoleUser},
	}}
	c, out := newTestCLI(users, "")
	if err := c.run([]string{"user", "role", "--email", "buyer@gmail.com", "--role", "admin"}); err != nil {
		t.Fatalf("role: %v", err)
	}
	if users.byEmail["buyer@gmail.com"].Role != domain.RoleAdmin {
		t.Fatalf("role not updated")
	}
	if !strings.Contains(out.String(), "user -> admin") {
		t.Fatalf("unexpected output %q", out.String())
	}
	if err := c.run([]string{"user", "role", "--email", "buyer@gmail.com", "--role", "owner"}); err == nil {
		t.Fatalf("expected unknown role error")
	}
	if err := c.run([]string{"user", "role", "--email", "ghost@gmail.com", "--role", "admin"}); err == nil {
		t.Fatalf("expected missing user error")
	}
}

func TestPolicyCommand(t *testing.T) {
	c, out := newTestCLI(nil, "")
	args := []string{"policy", "--domain", "gentlespacerealty.com", "--super-admin", "admin@gentlespacerealty.com",
		"agent@gentlespacerealty.com", "admin@gentlespacerealty.com", "someone@gmail.com"}
	if err := c.run(args); err != nil {
		t.Fatalf("policy: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	want := []string{
		"agent@gentlespacerealty.com\tadmin\tadmin access allowed",
		"admin@gentlespacerealty.com\tsuper_admin\tadmin access allowed",
		"someone@gmail.com\tuser\tadmin access denied",
	}
	if len(lines) != len(want) {
		t.Fatalf("unexpected output %q", out.String())
	}
	for i := range want {
		if lines[i] != want[i] {
			t.Fatalf("line %d = %q, want %q", i, lines[i], want[i])
		}
	}
}

func TestUnknownCommand(t *testing.T) {
	c, out := newTestCLI(nil, "")
	if err := c.run([]string{"deploy"}); err == nil {
		t.Fatalf("expected error")
	}
	if !strings.Contains(out.String(), "Usage:") {
		t.Fatalf("expected usage output")
	}
}
