package repository

import (
	"context"
	"time"

	"github.com/swami086/gentle-space-realty/internal/domain"
)

// UserRepository persists users.
type UserRepository interface {
	CreateUser(ctx context.Context, user *domain.User) error
	// FindOrCreateUser returns the user stored under user.Email, inserting
	// user when no row exists. created reports whether the insert happened.
	FindOrCreateUser(ctx context.Context, user *domain.User) (stored *domain.User, created bool, err error)
	GetUserByEmail(ctx context.Context, email string) (*domain.User, error)
	GetUserByID(ctx context.Context, id string) (*domain.User, error)
	ListUsers(ctx context.Context, limit, offset int) ([]domain.User, error)
	UpdateUserRole(ctx context.Context, id string, role domain.Role) (*domain.User, error)
	RecordLogin(ctx context.Context, id string, at time.Time) error
}

// OAuthStateStore keeps in-flight authorization requests. Consume returns
// ErrNotFound for unknown, already consumed or expired states.
type OAuthStateStore interface {
	SaveState(ctx context.Context, state domain.OAuthState, ttl time.Duration) error
	ConsumeState(ctx context.Context, state string) (*domain.OAuthState, error)
}
