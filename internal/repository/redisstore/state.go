package redisstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	redis "github.com/redis/go-redis/v9"

	"github.com/swami086/gentle-space-realty/internal/domain"
	"github.com/swami086/gentle-space-realty/internal/repository"
)

const defaultKeyPrefix = "gsr:oauth_state:"

// StateStore keeps OAuth states in Redis with a TTL. Consumption uses GETDEL
// so a state can be redeemed once across all API replicas.
type StateStore struct {
	client *redis.Client
	prefix string
}

var _ repository.OAuthStateStore = (*StateStore)(nil)

// NewStateStore wraps an existing client.
func NewStateStore(client *redis.Client) *StateStore {
	return &StateStore{client: client, prefix: defaultKeyPrefix}
}

// SaveState stores state until ttl elapses.
func (s *StateStore) SaveState(ctx context.Context, state domain.OAuthState, ttl time.Duration) error {
	key := strings.TrimSpace(state.State)
	if key == "" {
		return repository.ErrInvalidArgument
	}
	if ttl <= 0 {
		return fmt.Errorf("redisstore: non-positive ttl %s", ttl)
	}
	payload, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("encode oauth state: %w", err)
	}
	if err := s.client.Set(ctx, s.prefix+key, payload, ttl).Err(); err != nil {
		return fmt.Errorf("save oauth state: %w", err)
	}
	return nil
}

// ConsumeState returns and deletes the stored state.
func (s *StateStore) ConsumeState(ctx context.Context, state string) (*domain.OAuthState, error) {
	key := strings.TrimSpace(state)
	if key == "" {
		return nil, repository.ErrNotFound
	}
	raw, err := s.client.GetDel(ctx, s.prefix+key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("consume oauth state: %w", err)
	}
	var stored domain.OAuthState
	if err := json.Unmarshal(raw, &stored); err != nil {
		return nil, fmt.Errorf("decode oauth state: %w", err)
	}
	if stored.Expired(time.Now()) {
		return nil, repository.ErrNotFound
	}
	return &stored, nil
}
