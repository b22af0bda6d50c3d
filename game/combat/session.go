package combat

import (
	"sync"
	"time"
)

// Session is the combat state of one player.
type Session struct {
	MobInstanceID string
	MobName       string
	StartedAt     time.Time
	LastActive    time.Time
}

// SessionStore holds combat sessions keyed by player id.
type SessionStore struct {
	mu       sync.Mutex
	sessions map[string]*Session
	now      func() time.Time
}

// NewSessionStore creates an empty SessionStore.
func NewSessionStore() *SessionStore {
	return &SessionStore{sessions: make(map[string]*Session), now: time.Now}
}

// Start records a new session for playerID.
func (s *SessionStore) Start(playerID string, mob *MobInstance) {
	now := s.now()
	s.mu.Lock()
	s.sessions[playerID] = &Session{
		MobInstanceID: mob.InstanceID,
		MobName:       mob.Name,
		StartedAt:     now,
		LastActive:    now,
	}
	s.mu.Unlock()
}

// Get returns a copy of the player's session.
func (s *SessionStore) Get(playerID string) (Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[playerID]
	if !ok {
		return Session{}, false
	}
	return *sess, true
}

// InCombat reports whether playerID has a session.
func (s *SessionStore) InCombat(playerID string) bool {
	_, ok := s.Get(playerID)
	return ok
}

// Touch marks the session as active now.
func (s *SessionStore) Touch(playerID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if sess, ok := s.sessions[playerID]; ok {
		sess.LastActive = s.now()
	}
}

func (s *SessionStore) Clear(playerID string) {
	s.mu.Lock()
	delete(s.sessions, playerID)
	s.mu.Unlock()
}

// Idle lists players whose session has not been touched for ttl.
func (s *SessionStore) Idle(ttl time.Duration) []string {
	cutoff := s.now().Add(-ttl)
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []string
	for id, sess := range s.sessions {
		if sess.LastActive.Before(cutoff) {
			out = append(out, id)
		}
	}
	return out
}
