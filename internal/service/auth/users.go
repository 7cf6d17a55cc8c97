package auth

import (
	"context"
	"fmt"
	"strings"

	"github.com/swami086/gentle-space-realty/internal/domain"
)

// ListUsers returns a page of users for the admin dashboard.
func (s Service) ListUsers(ctx context.Context, actor *domain.User, limit, offset int) ([]domain.User, error) {
	if actor == nil || !actor.CanAccessAdmin() {
		return nil, ErrForbidden
	}
	return s.users.ListUsers(ctx, limit, offset)
}

// ChangeRole sets the role of userID. Only super admins may change roles and
// a super admin cannot demote themselves.
func (s Service) ChangeRole(ctx context.Context, actor *domain.User, userID string, role string) (*domain.User, error) {
	if actor == nil || !actor.Role.CanManageRoles() {
		return nil, ErrForbidden
	}
	parsed, err := domain.ParseRole(role)
	if err != nil {
		return nil, fmt.Errorf("%w: %q", err, role)
	}
	target := strings.TrimSpace(userID)
	if target == "" {
		return nil, fmt.Errorf("%w: user id required", ErrInvalidInput)
	}
	if target == actor.ID && parsed != domain.RoleSuperAdmin {
		return nil, ErrSelfDemotion
	}
	updated, err := s.users.UpdateUserRole(ctx, target, parsed)
	if err != nil {
		return nil, err
	}
	s.logger.Info("user role changed", "user_id", updated.ID, "role", updated.Role, "actor_id", actor.ID)
	return updated, nil
}
