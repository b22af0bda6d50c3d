package event

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/ryanroundhouse/punk-mud-sub000/cache"
)

const sessionKeyPrefix = "event:session:"

// Session is a player's position in an event or conversation tree.
type Session struct {
	EventID      string   `json:"eventId"`
	NodeID       string   `json:"nodeId"`
	ActorID      string   `json:"actorId,omitempty"`
	IsStoryEvent bool     `json:"isStoryEvent"`
	History      []string `json:"history"`
}

// SessionStore keeps event sessions in the cache with an idle TTL that is
// refreshed on every save.
type SessionStore struct {
	cache cache.Cache
	ttl   time.Duration
}

// NewSessionStore creates a SessionStore. ttl <= 0 disables expiry.
func NewSessionStore(c cache.Cache, ttl time.Duration) *SessionStore {
	return &SessionStore{cache: c, ttl: ttl}
}

func sessionKey(playerID string) string { return sessionKeyPrefix + playerID }

// Get returns the player's session, or nil when there is none.
func (s *SessionStore) Get(ctx context.Context, playerID string) (*Session, error) {
	raw, err := s.cache.Get(ctx, sessionKey(playerID))
	if cache.IsNotFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load event session: %w", err)
	}
	var sess Session
	if err := json.Unmarshal([]byte(raw), &sess); err != nil {
		// unreadable sessions are dropped
		_ = s.Clear(ctx, playerID)
		return nil, nil
	}
	return &sess, nil
}

// Save writes the session and restarts its TTL.
func (s *SessionStore) Save(ctx context.Context, playerID string, sess *Session) error {
	data, err := json.Marshal(sess)
	if err != nil {
		return err
	}
	if err := s.cache.Set(ctx, sessionKey(playerID), string(data), s.ttl); err != nil {
		return fmt.Errorf("save event session: %w", err)
	}
	return nil
}

// Exists reports whether the player has a live session without decoding it.
func (s *SessionStore) Exists(ctx context.Context, playerID string) (bool, error) {
	return s.cache.Exists(ctx, sessionKey(playerID))
}

// Touch restarts the session TTL without rewriting it.
func (s *SessionStore) Touch(ctx context.Context, playerID string) error {
	if s.ttl <= 0 {
		return nil
	}
	return s.cache.Expire(ctx, sessionKey(playerID), s.ttl)
}

// Clear drops the player's session.
func (s *SessionStore) Clear(ctx context.Context, playerID string) error {
	return s.cache.Del(ctx, sessionKey(playerID))
}
