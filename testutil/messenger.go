package testutil

import (
	"context"
	"strings"
	"sync"

	"github.com/ryanroundhouse/punk-mud-sub000/game/player"
)

// SentMessage is one SendToPlayer or BroadcastToLocation call.
type SentMessage struct {
	PlayerID   string // empty for broadcasts
	LocationID string // set for broadcasts
	Channel    string
	Payload    interface{}
	Exclude    string
}

// Text returns the payload as a string when it is one.
func (m SentMessage) Text() string {
	switch p := m.Payload.(type) {
	case string:
		return p
	case player.TextMessage:
		return p.Message
	}
	return ""
}

// RecordingMessenger records every message for assertions.
type RecordingMessenger struct {
	mu   sync.Mutex
	Sent []SentMessage
}

var _ player.Messenger = (*RecordingMessenger)(nil)

func (r *RecordingMessenger) SendToPlayer(playerID, channel string, payload interface{}) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Sent = append(r.Sent, SentMessage{PlayerID: playerID, Channel: channel, Payload: payload})
}

func (r *RecordingMessenger) BroadcastToLocation(_ context.Context, locationID string, payload interface{}, exclude string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Sent = append(r.Sent, SentMessage{LocationID: locationID, Channel: player.ChannelSystem, Payload: payload, Exclude: exclude})
}

// Texts returns the text of every message sent to playerID on channel.
func (r *RecordingMessenger) Texts(playerID, channel string) []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []string
	for _, m := range r.Sent {
		if m.PlayerID == playerID && m.Channel == channel {
			out = append(out, m.Text())
		}
	}
	return out
}

// Contains reports whether any text sent to playerID on channel contains sub.
func (r *RecordingMessenger) Contains(playerID, channel, sub string) bool {
	for _, txt := range r.Texts(playerID, channel) {
		if strings.Contains(txt, sub) {
			return true
		}
	}
	return false
}

// Broadcasts returns broadcasts to locationID.
func (r *RecordingMessenger) Broadcasts(locationID string) []SentMessage {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []SentMessage
	for _, m := range r.Sent {
		if m.LocationID == locationID {
			out = append(out, m)
		}
	}
	return out
}

// Reset drops recorded messages.
func (r *RecordingMessenger) Reset() {
	r.mu.Lock()
	r.Sent = nil
	r.mu.Unlock()
}
