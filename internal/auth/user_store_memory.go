package auth

import (
	"context"
	"fmt"
	"sync"

	"github.com/clipstream/backend/internal/models"
	"github.com/clipstream/backend/internal/repositories"
)

// ErrStoreMiss indicates the in-memory store has no matching record. It wraps
// repositories.ErrNotFound so callers classify misses the same way on every
// store.
var ErrStoreMiss = fmt.Errorf("user not found: %w", repositories.ErrNotFound)

// NewInMemoryUserStore returns a SessionUserStore backed by an in-memory map,
// for tests and local development.
func NewInMemoryUserStore() *InMemoryUserStore {
	return &InMemoryUserStore{users: make(map[string]models.User)}
}

// InMemoryUserStore implements SessionUserStore with CAS semantics matching
// the SQL implementation.
type InMemoryUserStore struct {
	mu    sync.Mutex
	users map[string]models.User
}

// Put seeds a user record.
func (s *InMemoryUserStore) Put(user models.User) {
	s.mu.Lock()
	s.users[user.ID] = user
	s.mu.Unlock()
}

// FindByID retrieves a user by id.
func (s *InMemoryUserStore) FindByID(_ context.Context, id string) (models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	user, ok := s.users[id]
	if !ok {
		return models.User{}, ErrStoreMiss
	}
	return user, nil
}

// SetRefreshToken unconditionally overwrites the stored refresh token.
func (s *InMemoryUserStore) SetRefreshToken(_ context.Context, userID, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	user, ok := s.users[userID]
	if !ok {
		return ErrStoreMiss
	}
	user.RefreshToken = token
	s.users[userID] = user
	return nil
}

// SwapRefreshToken replaces the stored token only when the previous value
// still matches.
func (s *InMemoryUserStore) SwapRefreshToken(_ context.Context, userID, previous, next string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	user, ok := s.users[userID]
	if !ok || user.RefreshToken != previous {
		return ErrStoreMiss
	}
	user.RefreshToken = next
	s.users[userID] = user
	return nil
}
