package player

import "context"

// Messenger channels.
const (
	ChannelCombat       = "combat"
	ChannelError        = "error"
	ChannelSuccess      = "success"
	ChannelInfo         = "info"
	ChannelQuests       = "quests"
	ChannelChat         = "chat"
	ChannelPlayerStatus = "playerStatus"
	ChannelList         = "list"
	ChannelSystem       = "system"
)

// Messenger delivers text and structured payloads to connected players.
// A string payload is wrapped as {"message": "..."}.
type Messenger interface {
	SendToPlayer(playerID, channel string, payload interface{})
	BroadcastToLocation(ctx context.Context, locationID string, payload interface{}, excludePlayerID string)
}

// TextMessage is the wire form of a plain string payload.
type TextMessage struct {
	Message string `json:"message"`
}

// StatusPayload is sent on the playerStatus channel after combat exchanges.
type StatusPayload struct {
	CurrentHitpoints int `json:"currentHitpoints"`
	Hitpoints        int `json:"hitpoints"`
	CurrentEnergy    int `json:"currentEnergy"`
	Energy           int `json:"energy"`
	Level            int `json:"level"`
	Experience       int `json:"experience"`
}
