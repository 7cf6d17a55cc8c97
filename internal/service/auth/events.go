package auth

import (
	"context"
	"time"
)

// Routing keys published on the auth events exchange.
const (
	EventUserProvisioned = "auth.user_provisioned"
	EventLoginSucceeded  = "auth.login_succeeded"
	EventLoginDenied     = "auth.login_denied"
)

// EventPublisher delivers auth events to downstream consumers such as the
// notification mailer.
type EventPublisher interface {
	PublishJSON(ctx context.Context, key string, v any) error
}

// Event is the JSON body of every auth event.
type Event struct {
	Type       string    `json:"type"`
	UserID     string    `json:"user_id,omitempty"`
	Email      string    `json:"email"`
	Role       string    `json:"role,omitempty"`
	Method     string    `json:"method"`
	OccurredAt time.Time `json:"occurred_at"`
}

type nopPublisher struct{}

func (nopPublisher) PublishJSON(context.Context, string, any) error { return nil }

const publishTimeout = 2 * time.Second

// publish sends an event without letting broker trouble fail the login.
func (s Service) publish(ctx context.Context, event Event) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()
	if err := s.events.PublishJSON(ctx, event.Type, event); err != nil {
		s.logger.Warn("publish auth event failed", "event", event.Type, "user_id", event.UserID, "error", err)
	}
}
