// Package session holds the active session token and the durable slot it is
// restored from.
package session

import (
	"context"
	"fmt"
	"sync"

	"cartsync/internal/core"
)

// Session is the in-process view of the current login. At most one token is
// active at a time; its validity is only ever judged by the order service.
type Session struct {
	mu    sync.RWMutex
	token core.Token
}

var _ core.TokenSource = (*Session)(nil)

// New returns an unauthenticated session
func New() *Session {
	return &Session{}
}

// Token returns the active token, ok=false when unauthenticated
func (s *Session) Token() (core.Token, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token, s.token != ""
}

// SetToken activates token. An empty token deactivates the session.
func (s *Session) SetToken(token core.Token) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = token
}

// Active reports whether a token is set
func (s *Session) Active() bool {
	_, ok := s.Token()
	return ok
}

// Pinger is implemented by stores that can report reachability
type Pinger interface {
	Ping(ctx context.Context) error
}

// OpenStore builds the configured session slot
func OpenStore(kind, path, key string) (core.ISessionStore, error) {
	switch kind {
	case "memory":
		return NewMemoryStore(), nil
	case "sqlite", "":
		return NewSQLiteStore(path, key)
	default:
		return nil, fmt.Errorf("unknown session store %q", kind)
	}
}
