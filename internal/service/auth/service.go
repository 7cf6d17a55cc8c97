package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"log/slog"

	"github.com/google/uuid"

	"github.com/swami086/gentle-space-realty/internal/domain"
	"github.com/swami086/gentle-space-realty/internal/repository"
	"github.com/swami086/gentle-space-realty/pkg/config"
	"github.com/swami086/gentle-space-realty/pkg/crypto"
	jwtpkg "github.com/swami086/gentle-space-realty/pkg/jwt"
)

const methodPassword = domain.AuthProviderPassword

// Service handles authentication workflows.
type Service struct {
	users     repository.UserRepository
	states    repository.OAuthStateStore
	providers map[string]IdentityProvider
	events    EventPublisher
	metrics   *Metrics
	logger    *slog.Logger
	cfg       config.APIConfig
	policy    domain.RolePolicy
	now       func() time.Time
}

// Option customises a Service.
type Option func(*Service)

// WithProvider registers an identity provider under its name.
func WithProvider(p IdentityProvider) Option {
	return func(s *Service) {
		if p != nil {
			s.providers[p.Name()] = p
		}
	}
}

// WithEvents routes auth events to publisher.
func WithEvents(publisher EventPublisher) Option {
	return func(s *Service) {
		if publisher != nil {
			s.events = publisher
		}
	}
}

// WithMetrics records login outcomes on m.
func WithMetrics(m *Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// New constructs a Service.
func New(users repository.UserRepository, states repository.OAuthStateStore, logger *slog.Logger, cfg config.APIConfig, opts ...Option) Service {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	s := Service{
		users:     users,
		states:    states,
		providers: make(map[string]IdentityProvider),
		events:    nopPublisher{},
		logger:    logger,
		cfg:       cfg,
		policy:    domain.NewRolePolicy(cfg.AdminEmailDomain, cfg.SuperAdminEmail),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(&s)
	}
	return s
}

// Session is a signed admin session token.
type Session struct {
	Token     string
	ExpiresAt time.Time
}

// Policy returns the role policy in force.
func (s Service) Policy() domain.RolePolicy {
	return s.policy
}

// Login authenticates an email/password pair. Unknown email and wrong
// password both yield ErrInvalidCredentials; a valid user without an admin
// role yields ErrAccessDenied.
func (s Service) Login(ctx context.Context, email, password string) (*domain.User, Session, error) {
	normalized := domain.NormalizeEmail(email)
	if normalized == "" || password == "" {
		s.metrics.recordLogin(methodPassword, "invalid")
		return nil, Session{}, ErrInvalidCredentials
	}
	user, err := s.users.GetUserByEmail(ctx, normalized)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			crypto.CompareDummy(password)
			s.metrics.recordLogin(methodPassword, "invalid")
			return nil, Session{}, ErrInvalidCredentials
		}
		s.metrics.recordLogin(methodPassword, "error")
		return nil, Session{}, fmt.Errorf("load user: %w", err)
	}
	if err := crypto.ComparePassword(user.PasswordHash, password); err != nil {
		s.metrics.recordLogin(methodPassword, "invalid")
		s.logger.Info("password login rejected", "user_id", user.ID)
		return nil, Session{}, ErrInvalidCredentials
	}
	if !user.CanAccessAdmin() {
		s.metrics.recordLogin(methodPassword, "denied")
		s.logger.Info("password login denied", "user_id", user.ID, "role", user.Role)
		s.publish(ctx, s.event(EventLoginDenied, user, methodPassword))
		return user, Session{}, ErrAccessDenied
	}
	session, err := s.IssueSession(user)
	if err != nil {
		return nil, Session{}, err
	}
	s.recordLogin(ctx, user)
	s.metrics.recordLogin(methodPassword, "authorized")
	s.logger.Info("user logged in", "user_id", user.ID, "method", methodPassword)
	s.publish(ctx, s.event(EventLoginSucceeded, user, methodPassword))
	return user, session, nil
}

// CreatePasswordUser stores a password account with the role the policy assigns.
func (s Service) CreatePasswordUser(ctx context.Context, email, name, password string) (*domain.User, error) {
	normalized := domain.NormalizeEmail(email)
	if _, _, ok := domain.SplitEmail(normalized); !ok {
		return nil, fmt.Errorf("%w: email %q is malformed", ErrInvalidInput, email)
	}
	hash, err := crypto.HashPassword(password)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	now := s.now().UTC()
	user := &domain.User{
		ID:           uuid.NewString(),
		Email:        normalized,
		Name:         strings.TrimSpace(name),
		Role:         s.policy.RoleFor(normalized),
		PasswordHash: hash,
		AuthProvider: domain.AuthProviderPassword,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.users.CreateUser(ctx, user); err != nil {
		return nil, err
	}
	s.logger.Info("user registered", "user_id", user.ID, "role", user.Role)
	return user, nil
}

// IssueSession signs a session token for user.
func (s Service) IssueSession(user *domain.User) (Session, error) {
	token, expiresAt, err := jwtpkg.GenerateToken(user.ID, user.Email, string(user.Role), s.cfg.SessionSecret.Reveal(), s.cfg.SessionTTL)
	if err != nil {
		return Session{}, fmt.Errorf("issue session: %w", err)
	}
	return Session{Token: token, ExpiresAt: expiresAt}, nil
}

// Authorize validates a session token and returns the associated user and
// claims. Access decisions use the stored role, not the one in the token.
func (s Service) Authorize(ctx context.Context, token string) (*domain.User, *jwtpkg.Claims, error) {
	trimmed := strings.TrimSpace(token)
	if trimmed == "" {
		return nil, nil, ErrTokenRequired
	}
	claims, err := jwtpkg.Parse(trimmed, s.cfg.SessionSecret.Reveal())
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrInvalidCredentials, err)
	}
	user, err := s.users.GetUserByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, nil, ErrInvalidCredentials
		}
		return nil, nil, err
	}
	return user, claims, nil
}

func (s Service) recordLogin(ctx context.Context, user *domain.User) {
	if err := s.users.RecordLogin(ctx, user.ID, s.now()); err != nil {
		s.logger.Warn("record login failed", "user_id", user.ID, "error", err)
	}
}

func (s Service) event(kind string, user *domain.User, method string) Event {
	return Event{
		Type:       kind,
		UserID:     user.ID,
		Email:      user.Email,
		Role:       string(user.Role),
		Method:     method,
		OccurredAt: s.now().UTC(),
	}
}
