package auth

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/swami086/gentle-space-realty/internal/domain"
	"github.com/swami086/gentle-space-realty/internal/repository/memory"
)

type providerStub struct {
	mu           sync.Mutex
	identity     Identity
	exchangeErr  error
	gotCode      string
	gotVerifier  string
	exchangeHits int
}

func (p *providerStub) Name() string { return ProviderGoogle }

func (p *providerStub) AuthCodeURL(state, verifier string) string {
	q := url.Values{}
	q.Set("state", state)
	q.Set("verifier", verifier)
	return "https://accounts.example.test/auth?" + q.Encode()
}

func (p *providerStub) Exchange(_ context.Context, code, verifier string) (Identity, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.exchangeHits++
	p.gotCode = code
	p.gotVerifier = verifier
	if p.exchangeErr != nil {
		return Identity{}, p.exchangeErr
	}
	return p.identity, nil
}

type callbackFixture struct {
	svc      Service
	repo     *userRepoStub
	states   *memory.StateStore
	provider *providerStub
	events   *publisherStub
}

func newCallbackFixture(t *testing.T, email string, opts ...Option) *callbackFixture {
	t.Helper()
	f := &callbackFixture{
		repo:     newUserRepoStub(),
		states:   memory.NewStateStore(),
		provider: &providerStub{identity: Identity{Subject: "sub-1", Email: email, EmailVerified: true, Name: "Pat Agent"}},
		events:   &publisherStub{},
	}
	t.Cleanup(f.states.Close)
	all := append([]Option{WithProvider(f.provider), WithEvents(f.events)}, opts...)
	f.svc = New(f.repo, f.states, nil, testConfig(), all...)
	return f
}

// start runs StartProviderLogin and returns the state it issued.
func (f *callbackFixture) start(t *testing.T) string {
	t.Helper()
	authURL, err := f.svc.StartProviderLogin(context.Background(), ProviderGoogle, "/admin")
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	parsed, err := url.Parse(authURL)
	if err != nil {
		t.Fatalf("parse auth url: %v", err)
	}
	return parsed.Query().Get("state")
}

func (f *callbackFixture) callback(t *testing.T) (CallbackResult, error) {
	t.Helper()
	state := f.start(t)
	return f.svc.HandleCallback(context.Background(), ProviderGoogle, CallbackInput{Code: "auth-code", State: state})
}

func TestCallbackFirstLoginAssignsRole(t *testing.T) {
	cases := []struct {
		email    string
		role     domain.Role
		decision domain.Decision
		state    domain.LoginState
	}{
		{"agent@gentlespacerealty.com", domain.RoleAdmin, domain.DecisionAllow, domain.LoginStateAuthorized},
		{"admin@gentlespacerealty.com", domain.RoleSuperAdmin, domain.DecisionAllow, domain.LoginStateAuthorized},
		{"buyer@gmail.com", domain.RoleUser, domain.DecisionDeny, domain.LoginStateDenied},
	}
	for _, tc := range cases {
		t.Run(tc.email, func(t *testing.T) {
			f := newCallbackFixture(t, tc.email)
			result, err := f.callback(t)
			if err != nil {
				t.Fatalf("callback: %v", err)
			}
			if !result.Created || result.User.Role != tc.role {
				t.Fatalf("expected created %s user, got created=%v role=%s", tc.role, result.Created, result.User.Role)
			}
			if result.Decision != tc.decision || result.State != tc.state {
				t.Fatalf("unexpected decision %s / state %s", result.Decision, result.State)
			}
			if tc.decision == domain.DecisionAllow && result.Session.Token == "" {
				t.Fatalf("authorized login must carry a session")
			}
			if tc.decision == domain.DecisionDeny && result.Session.Token != "" {
				t.Fatalf("denied login must not carry a session")
			}
			if result.User.AuthProvider != domain.AuthProviderGoogle || result.User.ProviderSubject != "sub-1" {
				t.Fatalf("provider fields not stored: %+v", result.User)
			}
			keys := f.events.published()
			if len(keys) != 2 || keys[0] != EventUserProvisioned {
				t.Fatalf("unexpected events %v", keys)
			}
		})
	}
}

func TestCallbackPassesVerifierToExchange(t *testing.T) {
	f := newCallbackFixture(t, "agent@gentlespacerealty.com")
	authURL, err := f.svc.StartProviderLogin(context.Background(), ProviderGoogle, "")
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	parsed, _ := url.Parse(authURL)
	verifier := parsed.Query().Get("verifier")
	if len(verifier) < 43 {
		t.Fatalf("verifier too short: %q", verifier)
	}
	if _, err := f.svc.HandleCallback(context.Background(), ProviderGoogle, CallbackInput{Code: "auth-code", State: parsed.Query().Get("state")}); err != nil {
		t.Fatalf("callback: %v", err)
	}
	if f.provider.gotVerifier != verifier || f.provider.gotCode != "auth-code" {
		t.Fatalf("exchange got code=%q verifier=%q", f.provider.gotCode, f.provider.gotVerifier)
	}
}

func TestCallbackSecondLoginDoesNotDuplicate(t *testing.T) {
	f := newCallbackFixture(t, "agent@gentlespacerealty.com")
	first, err := f.callback(t)
	if err != nil {
		t.Fatalf("first callback: %v", err)
	}
	f.provider.identity.Email = "AGENT@gentlespacerealty.com"
	second, err := f.callback(t)
	if err != nil {
		t.Fatalf("second callback: %v", err)
	}
	if second.Created {
		t.Fatalf("second login must not create a user")
	}
	if first.User.ID != second.User.ID || f.repo.count() != 1 {
		t.Fatalf("expected one user, have %d (ids %s / %s)", f.repo.count(), first.User.ID, second.User.ID)
	}
}

func TestCallbackStateIsSingleUse(t *testing.T) {
	f := newCallbackFixture(t, "agent@gentlespacerealty.com")
	state := f.start(t)
	if _, err := f.svc.HandleCallback(context.Background(), ProviderGoogle, CallbackInput{Code: "c", State: state}); err != nil {
		t.Fatalf("first use: %v", err)
	}
	result, err := f.svc.HandleCallback(context.Background(), ProviderGoogle, CallbackInput{Code: "c", State: state})
	if !errors.Is(err, ErrInvalidState) {
		t.Fatalf("expected ErrInvalidState on replay, got %v", err)
	}
	if result.State != domain.LoginStateFailed || Classify(err) != KindInvalid {
		t.Fatalf("unexpected replay outcome state=%s kind=%s", result.State, Classify(err))
	}
	if f.provider.exchangeHits != 1 {
		t.Fatalf("replayed state must not reach the provider")
	}
}

func TestCallbackUnknownStateRejected(t *testing.T) {
	f := newCallbackFixture(t, "agent@gentlespacerealty.com")
	_, err := f.svc.HandleCallback(context.Background(), ProviderGoogle, CallbackInput{Code: "c", State: "forged"})
	if !errors.Is(err, ErrInvalidState) {
		t.Fatalf("expected ErrInvalidState, got %v", err)
	}
	if f.repo.count() != 0 {
		t.Fatalf("no user may be created for a forged state")
	}
}

func TestCallbackProviderDisabledCreatesNoUser(t *testing.T) {
	inputs := []CallbackInput{
		{Error: "invalid_request", ErrorDescription: "Unsupported provider: provider is not enabled"},
		{ErrorCode: "provider_disabled", ErrorDescription: "Google sign-in is turned off for this project"},
	}
	for _, in := range inputs {
		f := newCallbackFixture(t, "agent@gentlespacerealty.com")
		in.State = f.start(t)
		result, err := f.svc.HandleCallback(context.Background(), ProviderGoogle, in)
		var cfgErr *ConfigurationError
		if !errors.As(err, &cfgErr) {
			t.Fatalf("expected ConfigurationError, got %v", err)
		}
		if cfgErr.Description != in.ErrorDescription {
			t.Fatalf("description must be surfaced verbatim, got %q", cfgErr.Description)
		}
		if Classify(err) != KindConfiguration || result.State != domain.LoginStateFailed {
			t.Fatalf("unexpected kind %s state %s", Classify(err), result.State)
		}
		if f.repo.count() != 0 || f.provider.exchangeHits != 0 {
			t.Fatalf("provider-disabled callback must not create users or exchange codes")
		}
		if _, err := f.svc.HandleCallback(context.Background(), ProviderGoogle, CallbackInput{Code: "c", State: in.State}); !errors.Is(err, ErrInvalidState) {
			t.Fatalf("state of a failed callback must be discarded, got %v", err)
		}
	}
}

func TestCallbackGoogleDisabledByConfig(t *testing.T) {
	cfg := testConfig()
	cfg.GoogleClientSecret = ""
	repo := newUserRepoStub()
	states := memory.NewStateStore()
	defer states.Close()
	svc := New(repo, states, nil, cfg, WithProvider(&providerStub{}))

	if _, err := svc.StartProviderLogin(context.Background(), ProviderGoogle, ""); Classify(err) != KindConfiguration {
		t.Fatalf("expected configuration error from start, got %v", err)
	}
	if states.Len() != 0 {
		t.Fatalf("disabled provider must not store state")
	}
	_, err := svc.HandleCallback(context.Background(), ProviderGoogle, CallbackInput{Code: "c", State: "s"})
	var cfgErr *ConfigurationError
	if !errors.As(err, &cfgErr) || !strings.Contains(cfgErr.Description, "GOOGLE_CLIENT_SECRET") {
		t.Fatalf("expected configuration error naming the missing key, got %v", err)
	}
	if repo.count() != 0 {
		t.Fatalf("no user may be created")
	}
}

func TestCallbackUnknownProvider(t *testing.T) {
	f := newCallbackFixture(t, "agent@gentlespacerealty.com")
	if _, err := f.svc.StartProviderLogin(context.Background(), "myspace", ""); !errors.Is(err, ErrUnknownProvider) {
		t.Fatalf("expected ErrUnknownProvider, got %v", err)
	}
}

func TestCallbackCancelledConsent(t *testing.T) {
	f := newCallbackFixture(t, "agent@gentlespacerealty.com")
	state := f.start(t)
	_, err := f.svc.HandleCallback(context.Background(), ProviderGoogle, CallbackInput{State: state, Error: "access_denied"})
	if !errors.Is(err, ErrLoginCancelled) || Classify(err) != KindInvalid {
		t.Fatalf("expected cancelled/invalid, got %v (%s)", err, Classify(err))
	}
}

func TestCallbackTransientFailures(t *testing.T) {
	t.Run("provider", func(t *testing.T) {
		f := newCallbackFixture(t, "agent@gentlespacerealty.com")
		f.provider.exchangeErr = errors.New("dial tcp: i/o timeout")
		_, err := f.callback(t)
		if Classify(err) != KindTransient {
			t.Fatalf("expected transient, got %s (%v)", Classify(err), err)
		}
	})
	t.Run("database", func(t *testing.T) {
		f := newCallbackFixture(t, "agent@gentlespacerealty.com")
		f.repo.findErr = errors.New("connection reset by peer")
		result, err := f.callback(t)
		if !errors.Is(err, ErrProviderUnavailable) || Classify(err) != KindTransient {
			t.Fatalf("expected transient, got %v", err)
		}
		if result.State != domain.LoginStateFailed {
			t.Fatalf("expected failed state, got %s", result.State)
		}
	})
	t.Run("provider server error param", func(t *testing.T) {
		f := newCallbackFixture(t, "agent@gentlespacerealty.com")
		_, err := f.svc.HandleCallback(context.Background(), ProviderGoogle, CallbackInput{Error: "temporarily_unavailable"})
		if Classify(err) != KindTransient {
			t.Fatalf("expected transient, got %s", Classify(err))
		}
	})
}

func TestCallbackRequiresVerifiedEmail(t *testing.T) {
	f := newCallbackFixture(t, "agent@gentlespacerealty.com")
	f.provider.identity.EmailVerified = false
	_, err := f.callback(t)
	if !errors.Is(err, ErrEmailNotVerified) {
		t.Fatalf("expected ErrEmailNotVerified, got %v", err)
	}
	if f.repo.count() != 0 {
		t.Fatalf("unverified identity must not create a user")
	}
}

func TestCallbackRoleRefresh(t *testing.T) {
	existing := &domain.User{ID: "u-1", Email: "agent@gentlespacerealty.com", Role: domain.RoleUser}

	f := newCallbackFixture(t, existing.Email)
	f.repo.byEmail[existing.Email] = &domain.User{ID: existing.ID, Email: existing.Email, Role: existing.Role}
	result, err := f.callback(t)
	if err != nil {
		t.Fatalf("callback: %v", err)
	}
	if result.User.Role != domain.RoleUser || result.Decision != domain.DecisionDeny {
		t.Fatalf("role must stay fixed by default, got %s", result.User.Role)
	}

	cfg := testConfig()
	cfg.RoleRefreshOnLogin = true
	g := newCallbackFixture(t, existing.Email)
	g.svc = New(g.repo, g.states, nil, cfg, WithProvider(g.provider), WithEvents(g.events))
	g.repo.byEmail[existing.Email] = &domain.User{ID: existing.ID, Email: existing.Email, Role: existing.Role}
	result, err = g.callback(t)
	if err != nil {
		t.Fatalf("callback: %v", err)
	}
	if result.User.Role != domain.RoleAdmin || result.Decision != domain.DecisionAllow || g.repo.updateCalls != 1 {
		t.Fatalf("expected refreshed admin role, got %s (updates %d)", result.User.Role, g.repo.updateCalls)
	}
}

func TestCallbackRedirectIsSanitised(t *testing.T) {
	f := newCallbackFixture(t, "agent@gentlespacerealty.com")
	for target, want := range map[string]string{
		"/admin/users?page=2":   "/admin/users?page=2",
		"https://evil.example/": "",
		"//evil.example/":       "",
		`/\evil.example`:        "",
	} {
		authURL, err := f.svc.StartProviderLogin(context.Background(), ProviderGoogle, target)
		if err != nil {
			t.Fatalf("start: %v", err)
		}
		parsed, _ := url.Parse(authURL)
		result, err := f.svc.HandleCallback(context.Background(), ProviderGoogle, CallbackInput{Code: "c", State: parsed.Query().Get("state")})
		if err != nil {
			t.Fatalf("callback: %v", err)
		}
		if result.RedirectTo != want {
			t.Fatalf("redirect %q: got %q want %q", target, result.RedirectTo, want)
		}
	}
}

func TestCallbackExpiredState(t *testing.T) {
	now := time.Now().UTC()
	f := newCallbackFixture(t, "agent@gentlespacerealty.com", WithClock(func() time.Time { return now }))
	state := f.start(t)
	now = now.Add(11 * time.Minute)
	if _, err := f.svc.HandleCallback(context.Background(), ProviderGoogle, CallbackInput{Code: "c", State: state}); !errors.Is(err, ErrInvalidState) {
		t.Fatalf("expected expired state to be rejected, got %v", err)
	}
}

func TestCallbackLogsContainNoSecrets(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	f := newCallbackFixture(t, "agent@gentlespacerealty.com")
	f.svc = New(f.repo, f.states, logger, testConfig(), WithProvider(f.provider))

	authURL, err := f.svc.StartProviderLogin(context.Background(), ProviderGoogle, "")
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	parsed, _ := url.Parse(authURL)
	result, err := f.svc.HandleCallback(context.Background(), ProviderGoogle, CallbackInput{Code: "secret-auth-code", State: parsed.Query().Get("state")})
	if err != nil {
		t.Fatalf("callback: %v", err)
	}
	out := buf.String()
	for _, secret := range []string{"google-client-secret-value", testSessionSecret, "secret-auth-code", parsed.Query().Get("verifier"), result.Session.Token} {
		if strings.Contains(out, secret) {
			t.Fatalf("log output leaked %q", secret)
		}
	}
}

func TestClassify(t *testing.T) {
	cases := map[error]ErrorKind{
		nil:                               KindNone,
		&ConfigurationError{}:             KindConfiguration,
		ErrAccessDenied:                   KindDenied,
		ErrInvalidState:                   KindInvalid,
		ErrInvalidCredentials:             KindUnauthenticated,
		errors.New("boom"):                KindTransient,
		&ProviderError{kind: KindInvalid}: KindInvalid,
	}
	for err, want := range cases {
		if got := Classify(err); got != want {
			t.Fatalf("Classify(%v) = %s, want %s", err, got, want)
		}
	}
}
