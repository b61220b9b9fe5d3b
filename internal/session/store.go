// Package session manages linked-account sessions. Sessions live in
// memory and are referenced from the browser by a sealed cookie, so the
// Discogs token pair never reaches the client.
package session

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/vinylroom/vinylroom-server/internal/domain"
)

// Store holds active sessions in memory. Restarting the server drops
// all sessions, which simply sends visitors back to demo mode.
type Store struct {
	mu       sync.RWMutex
	sessions map[string]*domain.Session
	ttl      time.Duration
}

// NewStore creates a session store with the given session lifetime.
func NewStore(ttl time.Duration) *Store {
	return &Store{
		sessions: make(map[string]*domain.Session),
		ttl:      ttl,
	}
}

// Create mints a session for a linked Discogs account.
func (s *Store) Create(username, accessToken, accessSecret string) *domain.Session {
	now := time.Now()
	sess := &domain.Session{
		ID:              uuid.NewString(),
		DiscogsUsername: username,
		AccessToken:     accessToken,
		AccessSecret:    accessSecret,
		CreatedAt:       now,
		ExpiresAt:       now.Add(s.ttl),
	}

	s.mu.Lock()
	s.sessions[sess.ID] = sess
	s.mu.Unlock()
	return sess
}

// Get returns the session with id, or nil when it is unknown or
// expired. Expired sessions are removed on lookup.
func (s *Store) Get(id string) *domain.Session {
	s.mu.RLock()
	sess, ok := s.sessions[id]
	s.mu.RUnlock()
	if !ok {
		return nil
	}
	if sess.Expired() {
		s.Delete(id)
		return nil
	}
	return sess
}

// Delete removes the session with id.
func (s *Store) Delete(id string) {
	s.mu.Lock()
	delete(s.sessions, id)
	s.mu.Unlock()
}

// Len returns the number of stored sessions, expired ones included.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// Cleanup removes expired sessions and returns how many were removed.
func (s *Store) Cleanup() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	removed := 0
	for id, sess := range s.sessions {
		if sess.Expired() {
			delete(s.sessions, id)
			removed++
		}
	}
	return removed
}
