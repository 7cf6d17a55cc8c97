package memory

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/swami086/gentle-space-realty/internal/domain"
	"github.com/swami086/gentle-space-realty/internal/repository"
)

const stateSweepInterval = time.Minute

// StateStore is a process-local OAuth state store for single-replica and
// development deployments.
type StateStore struct {
	mu      sync.Mutex
	entries map[string]domain.OAuthState
	now     func() time.Time
	stopCh  chan struct{}
	once    sync.Once
}

var _ repository.OAuthStateStore = (*StateStore)(nil)

// NewStateStore starts a store with a background sweep. Call Close to stop it.
func NewStateStore() *StateStore {
	s := &StateStore{
		entries: make(map[string]domain.OAuthState),
		now:     time.Now,
		stopCh:  make(chan struct{}),
	}
	go s.sweepLoop()
	return s
}

func (s *StateStore) SaveState(_ context.Context, state domain.OAuthState, ttl time.Duration) error {
	key := strings.TrimSpace(state.State)
	if key == "" || ttl <= 0 {
		return repository.ErrInvalidArgument
	}
	if state.ExpiresAt.IsZero() {
		state.ExpiresAt = s.now().Add(ttl).UTC()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[key] = state
	return nil
}

func (s *StateStore) ConsumeState(_ context.Context, state string) (*domain.OAuthState, error) {
	key := strings.TrimSpace(state)
	s.mu.Lock()
	stored, ok := s.entries[key]
	delete(s.entries, key)
	s.mu.Unlock()
	if !ok || stored.Expired(s.now()) {
		return nil, repository.ErrNotFound
	}
	return &stored, nil
}

// Len reports the number of retained states.
func (s *StateStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

func (s *StateStore) sweepLoop() {
	ticker := time.NewTicker(stateSweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			s.cleanup(s.now())
		case <-s.stopCh:
			return
		}
	}
}

func (s *StateStore) cleanup(now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for key, state := range s.entries {
		if state.Expired(now) {
			delete(s.entries, key)
		}
	}
}

// Close stops the sweep goroutine.
func (s *StateStore) Close() {
	s.once.Do(func() {
		close(s.stopCh)
	})
}
