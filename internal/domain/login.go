package domain

import (
	"fmt"
	"time"
)

// LoginState enumerates the phases of an external-identity login attempt.
type LoginState string

const (
	LoginStateIdle                     LoginState = "idle"
	LoginStateAwaitingProviderRedirect LoginState = "awaiting_provider_redirect"
	LoginStateProcessingCallback       LoginState = "processing_callback"
	LoginStateAuthorized               LoginState = "authorized"
	LoginStateDenied                   LoginState = "denied"
	LoginStateFailed                   LoginState = "failed"
)

// Decision is the routing outcome of a callback.
type Decision string

const (
	DecisionAllow Decision = "allow"
	DecisionDeny  Decision = "deny"
)

var loginTransitions = map[LoginState][]LoginState{
	LoginStateIdle:                     {LoginStateAwaitingProviderRedirect, LoginStateProcessingCallback, LoginStateFailed},
	LoginStateAwaitingProviderRedirect: {LoginStateProcessingCallback, LoginStateFailed},
	LoginStateProcessingCallback:       {LoginStateAuthorized, LoginStateDenied, LoginStateFailed},
}

// Terminal reports whether no further transition is possible for the request.
func (s LoginState) Terminal() bool {
	return s == LoginStateAuthorized || s == LoginStateDenied || s == LoginStateFailed
}

// LoginAttempt tracks one pass through the login state machine. A new attempt
// starts at Idle; terminal states end it.
type LoginAttempt struct {
	Provider  string
	State     LoginState
	UpdatedAt time.Time
	history   []LoginState
}

// NewLoginAttempt returns an attempt in the Idle state.
func NewLoginAttempt(provider string, now time.Time) *LoginAttempt {
	return &LoginAttempt{
		Provider:  provider,
		State:     LoginStateIdle,
		UpdatedAt: now.UTC(),
		history:   []LoginState{LoginStateIdle},
	}
}

// Advance moves the attempt to next, rejecting transitions the machine does not allow.
func (a *LoginAttempt) Advance(next LoginState, now time.Time) error {
	for _, allowed := range loginTransitions[a.State] {
		if allowed == next {
			a.State = next
			a.UpdatedAt = now.UTC()
			a.history = append(a.history, next)
			return nil
		}
	}
	return fmt.Errorf("domain: invalid login transition %s -> %s", a.State, next)
}

// History returns the states visited, in order.
func (a *LoginAttempt) History() []LoginState {
	out := make([]LoginState, len(a.history))
	copy(out, a.history)
	return out
}

// OAuthState is the server-side half of an authorization request: the
// opaque state value sent to the provider and the PKCE verifier bound to it.
type OAuthState struct {
	State        string    `json:"state"`
	Provider     string    `json:"provider"`
	CodeVerifier string    `json:"code_verifier"`
	RedirectTo   string    `json:"redirect_to,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	ExpiresAt    time.Time `json:"expires_at"`
}

// Expired reports whether the state is expired relative to now.
func (s OAuthState) Expired(now time.Time) bool {
	if s.ExpiresAt.IsZero() {
		return false
	}
	return now.UTC().After(s.ExpiresAt.UTC())
}
