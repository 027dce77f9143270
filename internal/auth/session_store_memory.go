package auth

import (
	"context"
	"errors"
	"sync"
	"time"
)

// InMemorySessionStore keeps sessions in a map. It backs tests and single-process development
// runs; sessions are lost on restart.
type InMemorySessionStore struct {
	mu      sync.Mutex
	byToken map[string]Session
}

// NewInMemorySessionStore returns an empty store.
func NewInMemorySessionStore() *InMemorySessionStore {
	return &InMemorySessionStore{byToken: make(map[string]Session)}
}

func (s *InMemorySessionStore) Save(_ context.Context, session Session) error {
	if session.Token == "" {
		return errors.New("session token must not be empty")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.byToken[session.Token] = session
	return nil
}

func (s *InMemorySessionStore) Find(_ context.Context, token string) (Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	session, ok := s.byToken[token]
	if !ok {
		return Session{}, ErrSessionNotFound
	}
	return session, nil
}

func (s *InMemorySessionStore) Delete(_ context.Context, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.byToken, token)
	return nil
}

// PurgeExpired drops sessions that expired before now and reports how many were removed.
func (s *InMemorySessionStore) PurgeExpired(now time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	removed := 0
	for token, session := range s.byToken {
		if session.ExpiresAt.Before(now) {
			delete(s.byToken, token)
			removed++
		}
	}
	return removed
}

// Has reports whether token is stored.
func (s *InMemorySessionStore) Has(token string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.byToken[token]
	return ok
}
