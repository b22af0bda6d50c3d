package ws

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/ryanroundhouse/punk-mud-sub000/game/player"
	mw "github.com/ryanroundhouse/punk-mud-sub000/middleware"
	"go.uber.org/zap"
)

// GameHandlers turns ws packets into game commands.
type GameHandlers struct {
	game    Game
	limiter *mw.KeyedLimiter
	logger  *zap.Logger
}

// NewGameHandlers creates GameHandlers. limiter throttles commands per
// player and may be nil.
func NewGameHandlers(game Game, limiter *mw.KeyedLimiter, logger *zap.Logger) *GameHandlers {
	return &GameHandlers{game: game, limiter: limiter, logger: logger}
}

// RegisterHandlers registers all game packet handlers on the router.
func (gh *GameHandlers) RegisterHandlers(r *Router) {
	r.On("command", gh.HandleCommand)
	r.On("ping", gh.HandlePing)
	r.Default(gh.handleUnknown)
}

type commandPayload struct {
	Input string `json:"input"`
}

// HandleCommand processes {"type":"command","payload":{"input":"..."}}.
func (gh *GameHandlers) HandleCommand(ctx context.Context, s *player.PlayerSession, raw json.RawMessage) error {
	var req commandPayload
	if err := json.Unmarshal(raw, &req); err != nil {
		return fmt.Errorf("command payload: %w", err)
	}
	if gh.limiter != nil && !gh.limiter.Allow(s.PlayerID) {
		sendText(s, player.ChannelError, "You are typing too fast.")
		return nil
	}
	return gh.game.Handle(ctx, s.PlayerID, req.Input)
}

type pingPayload struct {
	TS int64 `json:"ts"`
}

// HandlePing answers a client heartbeat.
func (gh *GameHandlers) HandlePing(_ context.Context, s *player.PlayerSession, raw json.RawMessage) error {
	var req pingPayload
	if len(raw) > 0 {
		_ = json.Unmarshal(raw, &req)
	}
	s.SendHeartbeatPong(req.TS)
	return nil
}

func (gh *GameHandlers) handleUnknown(_ context.Context, s *player.PlayerSession, _ json.RawMessage) error {
	sendText(s, player.ChannelError, "Unknown packet type.")
	return nil
}

func sendText(s *player.PlayerSession, channel, msg string) {
	raw, _ := json.Marshal(player.TextMessage{Message: msg})
	s.Send(&player.Packet{Type: channel, Payload: raw})
}
