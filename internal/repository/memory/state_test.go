package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/swami086/gentle-space-realty/internal/domain"
	"github.com/swami086/gentle-space-realty/internal/repository"
)

func TestStateStoreConsumeOnce(t *testing.T) {
	store := NewStateStore()
	defer store.Close()
	ctx := context.Background()

	if err := store.SaveState(ctx, domain.OAuthState{State: "abc", CodeVerifier: "v"}, time.Minute); err != nil {
		t.Fatalf("save: %v", err)
	}
	got, err := store.ConsumeState(ctx, "abc")
	if err != nil {
		t.Fatalf("consume: %v", err)
	}
	if got.CodeVerifier != "v" {
		t.Fatalf("unexpected verifier %q", got.CodeVerifier)
	}
	if _, err := store.ConsumeState(ctx, "abc"); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("expected second consume to fail, got %v", err)
	}
}

func TestStateStoreExpiry(t *testing.T) {
	store := NewStateStore()
	defer store.Close()
	now := time.Date(2026, time.May, 1, 9, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return now }
	ctx := context.Background()

	if err := store.SaveState(ctx, domain.OAuthState{State: "old"}, time.Minute); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := store.SaveState(ctx, domain.OAuthState{State: "fresh"}, time.Hour); err != nil {
		t.Fatalf("save: %v", err)
	}
	now = now.Add(2 * time.Minute)
	if _, err := store.ConsumeState(ctx, "old"); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("expected expired state to be rejected, got %v", err)
	}
	store.cleanup(now)
	if store.Len() != 1 {
		t.Fatalf("expected sweep to keep only fresh state, have %d", store.Len())
	}
}

func TestStateStoreRejectsEmpty(t *testing.T) {
	store := NewStateStore()
	defer store.Close()
	if err := store.SaveState(context.Background(), domain.OAuthState{}, time.Minute); !errors.Is(err, repository.ErrInvalidArgument) {
		t.Fatalf("expected invalid argument, got %v", err)
	}
}
