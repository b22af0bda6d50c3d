package player

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
)

// SessionManager maintains the registry of all connected PlayerSessions and
// implements Messenger on top of it.
type SessionManager struct {
	mu       sync.RWMutex
	sessions map[string]*PlayerSession // playerID → session
	presence *Presence
	logger   *zap.Logger
}

// NewSessionManager creates a new SessionManager. presence may be nil, in
// which case location broadcasts fall back to each session's recorded room.
func NewSessionManager(presence *Presence, logger *zap.Logger) *SessionManager {
	return &SessionManager{
		sessions: make(map[string]*PlayerSession),
		presence: presence,
		logger:   logger,
	}
}

// Register adds a session. If a previous session exists for the same player,
// it is closed first (handles duplicate login / reconnect).
func (sm *SessionManager) Register(s *PlayerSession) {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	if old, ok := sm.sessions[s.PlayerID]; ok {
		old.Close()
		sm.logger.Info("duplicate session displaced",
			zap.String("player_id", s.PlayerID))
	}
	sm.sessions[s.PlayerID] = s
	sm.logger.Info("player session registered",
		zap.String("player_id", s.PlayerID),
		zap.String("avatar", s.AvatarName))
}

// Unregister removes s if it is still the current session for its player.
func (sm *SessionManager) Unregister(s *PlayerSession) {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	if cur, ok := sm.sessions[s.PlayerID]; ok && cur == s {
		delete(sm.sessions, s.PlayerID)
		sm.logger.Info("player session unregistered", zap.String("player_id", s.PlayerID))
	}
}

// Get returns the session for a player, or nil if not found.
func (sm *SessionManager) Get(playerID string) *PlayerSession {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	return sm.sessions[playerID]
}

// GetByName finds a session by avatar name (case-insensitive).
func (sm *SessionManager) GetByName(name string) *PlayerSession {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	for _, s := range sm.sessions {
		if strings.EqualFold(s.AvatarName, name) {
			return s
		}
	}
	return nil
}

// Count returns the number of currently connected sessions.
func (sm *SessionManager) Count() int {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	return len(sm.sessions)
}

func encodePayload(payload interface{}) (json.RawMessage, error) {
	if s, ok := payload.(string); ok {
		payload = TextMessage{Message: s}
	}
	return json.Marshal(payload)
}

// SendToPlayer delivers payload on channel. Offline players are skipped.
func (sm *SessionManager) SendToPlayer(playerID, channel string, payload interface{}) {
	s := sm.Get(playerID)
	if s == nil {
		return
	}
	raw, err := encodePayload(payload)
	if err != nil {
		sm.logger.Error("failed to marshal payload",
			zap.String("channel", channel), zap.Error(err))
		return
	}
	s.Send(&Packet{Type: channel, Payload: raw})
}

// BroadcastToLocation sends payload on the system channel to every player in
// the location except excludePlayerID.
func (sm *SessionManager) BroadcastToLocation(ctx context.Context, locationID string, payload interface{}, excludePlayerID string) {
	raw, err := encodePayload(payload)
	if err != nil {
		sm.logger.Error("failed to marshal broadcast payload", zap.Error(err))
		return
	}
	data, _ := json.Marshal(&Packet{Type: ChannelSystem, Payload: raw})

	for _, s := range sm.inLocation(ctx, locationID) {
		if s.PlayerID == excludePlayerID {
			continue
		}
		s.SendRaw(data)
	}
}

func (sm *SessionManager) inLocation(ctx context.Context, locationID string) []*PlayerSession {
	if sm.presence != nil {
		ids, err := sm.presence.Members(ctx, locationID)
		if err != nil {
			sm.logger.Warn("presence lookup failed",
				zap.String("location_id", locationID), zap.Error(err))
			return nil
		}
		out := make([]*PlayerSession, 0, len(ids))
		for _, id := range ids {
			if s := sm.Get(id); s != nil {
				out = append(out, s)
			}
		}
		return out
	}
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	var out []*PlayerSession
	for _, s := range sm.sessions {
		if s.Location() == locationID {
			out = append(out, s)
		}
	}
	return out
}

// CloseAllSessions gracefully closes all connected sessions.
func (sm *SessionManager) CloseAllSessions() {
	sm.mu.Lock()
	sessions := make([]*PlayerSession, 0, len(sm.sessions))
	for _, s := range sm.sessions {
		sessions = append(sessions, s)
	}
	sm.mu.Unlock()

	sm.logger.Info("closing all sessions", zap.Int("count", len(sessions)))
	for _, s := range sessions {
		s.Close()
	}

	// Wait for read loops to unregister (with timeout)
	maxWait := 10 * time.Second
	start := time.Now()
	for time.Since(start) < maxWait {
		if sm.Count() == 0 {
			break
		}
		time.Sleep(100 * time.Millisecond)
	}
}
