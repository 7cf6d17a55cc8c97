package domain

import (
	"errors"
	"strings"
)

// Role is an access-level tag that decides which areas a user may reach.
type Role string

const (
	RoleUser       Role = "user"
	RoleAdmin      Role = "admin"
	RoleSuperAdmin Role = "super_admin"
)

// Default policy values.
const (
	DefaultAdminDomain     = "gentlespacerealty.com"
	DefaultSuperAdminEmail = "admin@gentlespacerealty.com"
)

// ErrUnknownRole is returned by ParseRole for values outside the enumeration.
var ErrUnknownRole = errors.New("domain: unknown role")

// ParseRole validates a role name.
func ParseRole(value string) (Role, error) {
	switch Role(strings.ToLower(strings.TrimSpace(value))) {
	case RoleUser:
		return RoleUser, nil
	case RoleAdmin:
		return RoleAdmin, nil
	case RoleSuperAdmin:
		return RoleSuperAdmin, nil
	}
	return "", ErrUnknownRole
}

// CanAccessAdmin reports whether the role may reach the admin dashboard.
func (r Role) CanAccessAdmin() bool {
	return r == RoleAdmin || r == RoleSuperAdmin
}

// CanManageRoles reports whether the role may change other users' roles.
func (r Role) CanManageRoles() bool {
	return r == RoleSuperAdmin
}

// RolePolicy assigns roles from the domain of an email address.
type RolePolicy struct {
	AdminDomain     string
	SuperAdminEmail string
}

// DefaultRolePolicy is the policy for the gentlespacerealty.com organisation.
var DefaultRolePolicy = RolePolicy{
	AdminDomain:     DefaultAdminDomain,
	SuperAdminEmail: DefaultSuperAdminEmail,
}

// NewRolePolicy builds a policy, falling back to the defaults for empty values.
func NewRolePolicy(adminDomain, superAdminEmail string) RolePolicy {
	p := RolePolicy{
		AdminDomain:     strings.ToLower(strings.TrimPrefix(strings.TrimSpace(adminDomain), "@")),
		SuperAdminEmail: NormalizeEmail(superAdminEmail),
	}
	if p.AdminDomain == "" {
		p.AdminDomain = DefaultAdminDomain
	}
	if p.SuperAdminEmail == "" {
		p.SuperAdminEmail = DefaultSuperAdminEmail
	}
	return p
}

// RoleFor returns the role an email receives:
//   - the super admin address → super_admin
//   - any other address at exactly the admin domain → admin
//   - everything else, including malformed addresses → user
func (p RolePolicy) RoleFor(email string) Role {
	normalized := NormalizeEmail(email)
	local, domainPart, ok := SplitEmail(normalized)
	if !ok {
		return RoleUser
	}
	if p.SuperAdminEmail != "" && normalized == p.SuperAdminEmail {
		return RoleSuperAdmin
	}
	if domainPart == p.AdminDomain && local != "" {
		return RoleAdmin
	}
	return RoleUser
}

// DomainToRole applies DefaultRolePolicy.
func DomainToRole(email string) Role {
	return DefaultRolePolicy.RoleFor(email)
}

// NormalizeEmail trims and lower-cases an address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// SplitEmail separates an address into local part and domain. ok is false
// unless there is exactly one '@' with text on both sides.
func SplitEmail(email string) (local, domainPart string, ok bool) {
	at := strings.LastIndex(email, "@")
	if at <= 0 || at == len(email)-1 {
		return "", "", false
	}
	local, domainPart = email[:at], email[at+1:]
	if strings.Contains(local, "@") {
		return "", "", false
	}
	return local, domainPart, true
}
