package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/oauth2"

	"github.com/swami086/gentle-space-realty/internal/domain"
	"github.com/swami086/gentle-space-realty/internal/repository"
)

// CallbackInput holds the query parameters of a provider callback.
type CallbackInput struct {
	Code             string
	State            string
	Error            string
	ErrorCode        string
	ErrorDescription string
}

// CallbackResult is the outcome of HandleCallback. Decision is DecisionDeny
// for a signed-in user without admin access; that case returns a nil error.
type CallbackResult struct {
	User       *domain.User
	Created    bool
	Decision   domain.Decision
	State      domain.LoginState
	Session    Session
	RedirectTo string
	History    []domain.LoginState
}

// ProviderStatus reports whether provider can be used and, if not, why.
func (s Service) ProviderStatus(provider string) (bool, string) {
	if provider == ProviderGoogle {
		if enabled, reason := s.cfg.GoogleStatus(); !enabled {
			return false, reason
		}
	}
	if _, ok := s.providers[provider]; !ok {
		return false, fmt.Sprintf("Sign-in provider %q is not configured.", provider)
	}
	return true, ""
}

func (s Service) provider(name string) (IdentityProvider, error) {
	if enabled, reason := s.ProviderStatus(name); !enabled {
		if name != ProviderGoogle {
			if _, known := s.providers[name]; !known {
				return nil, fmt.Errorf("%w: %s", ErrUnknownProvider, name)
			}
		}
		return nil, &ConfigurationError{Provider: name, Description: reason}
	}
	return s.providers[name], nil
}

// StartProviderLogin creates a single-use state with a PKCE verifier and
// returns the provider consent URL. A disabled provider returns a
// ConfigurationError and stores nothing.
func (s Service) StartProviderLogin(ctx context.Context, provider, redirectTo string) (string, error) {
	attempt := domain.NewLoginAttempt(provider, s.now())
	p, err := s.provider(provider)
	if err != nil {
		_ = attempt.Advance(domain.LoginStateFailed, s.now())
		s.metrics.recordLogin(provider, "config_error")
		return "", err
	}
	now := s.now().UTC()
	state := domain.OAuthState{
		State:        uuid.NewString(),
		Provider:     provider,
		CodeVerifier: oauth2.GenerateVerifier(),
		RedirectTo:   domain.LocalRedirectPath(redirectTo),
		CreatedAt:    now,
		ExpiresAt:    now.Add(s.cfg.OAuthStateTTL),
	}
	if err := s.states.SaveState(ctx, state, s.cfg.OAuthStateTTL); err != nil {
		return "", fmt.Errorf("%w: save login state: %v", ErrProviderUnavailable, err)
	}
	if err := attempt.Advance(domain.LoginStateAwaitingProviderRedirect, s.now()); err != nil {
		return "", err
	}
	s.logger.Debug("provider login started", "provider", provider)
	return p.AuthCodeURL(state.State, state.CodeVerifier), nil
}

// HandleCallback completes a provider login: it consumes the state, exchanges
// the code, finds or creates the user and decides whether the role may reach
// the admin area.
func (s Service) HandleCallback(ctx context.Context, provider string, in CallbackInput) (CallbackResult, error) {
	attempt := domain.NewLoginAttempt(provider, s.now())
	if err := attempt.Advance(domain.LoginStateProcessingCallback, s.now()); err != nil {
		return CallbackResult{}, err
	}
	fail := func(err error) (CallbackResult, error) {
		_ = attempt.Advance(domain.LoginStateFailed, s.now())
		kind := Classify(err)
		s.metrics.recordLogin(provider, kind.String())
		s.logger.Warn("provider login failed", "provider", provider, "kind", kind.String(), "error", err)
		return CallbackResult{Decision: domain.DecisionDeny, State: attempt.State, History: attempt.History()}, err
	}

	if err := providerErrorFromCallback(provider, in); err != nil {
		s.discardState(ctx, in.State)
		return fail(err)
	}
	p, err := s.provider(provider)
	if err != nil {
		s.discardState(ctx, in.State)
		return fail(err)
	}
	if strings.TrimSpace(in.State) == "" {
		return fail(ErrInvalidState)
	}
	stored, err := s.states.ConsumeState(ctx, strings.TrimSpace(in.State))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return fail(ErrInvalidState)
		}
		return fail(fmt.Errorf("%w: load login state: %v", ErrProviderUnavailable, err))
	}
	if stored.Provider != provider || stored.Expired(s.now()) {
		return fail(ErrInvalidState)
	}
	if strings.TrimSpace(in.Code) == "" {
		return fail(ErrMissingCode)
	}

	identity, err := p.Exchange(ctx, strings.TrimSpace(in.Code), stored.CodeVerifier)
	if err != nil {
		return fail(err)
	}
	email := domain.NormalizeEmail(identity.Email)
	if email == "" || !identity.EmailVerified {
		return fail(ErrEmailNotVerified)
	}

	user, created, err := s.findOrCreate(ctx, provider, email, identity)
	if err != nil {
		return fail(fmt.Errorf("%w: %v", ErrProviderUnavailable, err))
	}
	result := CallbackResult{User: user, Created: created, RedirectTo: stored.RedirectTo}
	if created {
		s.metrics.recordProvisioned(string(user.Role))
		s.logger.Info("user provisioned", "user_id", user.ID, "role", user.Role, "provider", provider)
		s.publish(ctx, s.event(EventUserProvisioned, user, provider))
	}

	if !user.CanAccessAdmin() {
		_ = attempt.Advance(domain.LoginStateDenied, s.now())
		s.metrics.recordLogin(provider, "denied")
		s.logger.Info("provider login denied", "user_id", user.ID, "role", user.Role, "provider", provider)
		s.publish(ctx, s.event(EventLoginDenied, user, provider))
		result.Decision = domain.DecisionDeny
		result.State = attempt.State
		result.History = attempt.History()
		return result, nil
	}

	session, err := s.IssueSession(user)
	if err != nil {
		return fail(err)
	}
	_ = attempt.Advance(domain.LoginStateAuthorized, s.now())
	s.recordLogin(ctx, user)
	s.metrics.recordLogin(provider, "authorized")
	s.logger.Info("user logged in", "user_id", user.ID, "method", provider)
	s.publish(ctx, s.event(EventLoginSucceeded, user, provider))
	result.Decision = domain.DecisionAllow
	result.Session = session
	result.State = attempt.State
	result.History = attempt.History()
	return result, nil
}

func (s Service) findOrCreate(ctx context.Context, provider, email string, identity Identity) (*domain.User, bool, error) {
	now := s.now().UTC()
	candidate := &domain.User{
		ID:              uuid.NewString(),
		Email:           email,
		Name:            firstNonEmpty(identity.Name, email),
		Role:            s.policy.RoleFor(email),
		AuthProvider:    provider,
		ProviderSubject: identity.Subject,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	user, created, err := s.users.FindOrCreateUser(ctx, candidate)
	if err != nil {
		return nil, false, err
	}
	if created || !s.cfg.RoleRefreshOnLogin {
		return user, created, nil
	}
	role := s.policy.RoleFor(user.Email)
	if role == user.Role {
		return user, false, nil
	}
	updated, err := s.users.UpdateUserRole(ctx, user.ID, role)
	if err != nil {
		return nil, false, fmt.Errorf("refresh role: %w", err)
	}
	s.logger.Info("user role refreshed", "user_id", user.ID, "from", user.Role, "to", role)
	return updated, false, nil
}

// discardState drops a state the callback will not use so it cannot be replayed.
func (s Service) discardState(ctx context.Context, state string) {
	if strings.TrimSpace(state) == "" {
		return
	}
	_, _ = s.states.ConsumeState(ctx, strings.TrimSpace(state))
}
