package session

import (
	"context"
	"sync"

	"cartsync/internal/core"
	"cartsync/pkg/apperrors"
)

// MemoryStore implements the session slot in memory. It does not survive
// restarts and is meant for tests and ephemeral runs.
type MemoryStore struct {
	token  core.Token
	closed bool
	mu     sync.RWMutex
}

var _ core.ISessionStore = (*MemoryStore)(nil)

// NewMemoryStore returns an empty store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// NewMemoryStoreWithToken returns a store pre-seeded with token
func NewMemoryStoreWithToken(token core.Token) *MemoryStore {
	return &MemoryStore{token: token}
}

// Get returns the stored token, ok=false when the slot is empty
func (s *MemoryStore) Get(ctx context.Context) (core.Token, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return "", false, apperrors.ErrStoreClosed
	}
	return s.token, s.token != "", nil
}

// Set replaces the stored token
func (s *MemoryStore) Set(ctx context.Context, token core.Token) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return apperrors.ErrStoreClosed
	}
	s.token = token
	return nil
}

// Clear empties the slot
func (s *MemoryStore) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return apperrors.ErrStoreClosed
	}
	s.token = ""
	return nil
}

// Ping reports ErrStoreClosed after Close
func (s *MemoryStore) Ping(ctx context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return apperrors.ErrStoreClosed
	}
	return nil
}

// Close marks the store closed; later calls fail
func (s *MemoryStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}
