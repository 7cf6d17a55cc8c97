package domain

import "time"

// AuthProvider values recorded on a user.
const (
	AuthProviderPassword = "password"
	AuthProviderGoogle   = "google"
)

// User represents an account of the admin back office.
type User struct {
	ID              string
	Email           string
	Name            string
	Role            Role
	PasswordHash    []byte
	AuthProvider    string
	ProviderSubject string
	CreatedAt       time.Time
	UpdatedAt       time.Time
	LastLoginAt     *time.Time
}

// CanAccessAdmin reports whether the user may reach the admin area.
func (u User) CanAccessAdmin() bool {
	return u.Role.CanAccessAdmin()
}

// HasPassword reports whether the account can use password login.
func (u User) HasPassword() bool {
	return len(u.PasswordHash) > 0
}
