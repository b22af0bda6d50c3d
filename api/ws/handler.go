package ws

import (
	"context"
	"errors"
	"net/http"
	"runtime/debug"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/ryanroundhouse/punk-mud-sub000/config"
	"github.com/ryanroundhouse/punk-mud-sub000/game/commands"
	"github.com/ryanroundhouse/punk-mud-sub000/game/player"
	"github.com/ryanroundhouse/punk-mud-sub000/model"
	"go.uber.org/zap"
)

// Game is the command layer a connection drives.
type Game interface {
	Login(ctx context.Context, name string) (*model.Character, error)
	Connect(ctx context.Context, playerID string) error
	Handle(ctx context.Context, playerID, input string) error
	Disconnect(ctx context.Context, playerID string)
}

// Handler is the Gin handler for GET /ws.
type Handler struct {
	game     Game
	sm       *player.SessionManager
	router   *Router
	logger   *zap.Logger
	upgrader websocket.Upgrader
}

// NewHandler creates a new WebSocket Handler.
// sec.AllowedOrigins controls which WebSocket origins are accepted.
// An empty slice permits all origins (development only).
func NewHandler(game Game, sec config.SecurityConfig, sm *player.SessionManager, router *Router, logger *zap.Logger) *Handler {
	h := &Handler{
		game:   game,
		sm:     sm,
		router: router,
		logger: logger,
	}
	allowed := sec.AllowedOrigins
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		CheckOrigin: func(r *http.Request) bool {
			if len(allowed) == 0 {
				return true // dev mode: allow all
			}
			origin := r.Header.Get("Origin")
			for _, o := range allowed {
				if o == origin {
					return true
				}
			}
			return false
		},
	}
	return h
}

// ServeWS handles GET /ws?name=<avatar>.
func (h *Handler) ServeWS(c *gin.Context) {
	name := c.Query("name")
	if name == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing name"})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()
	p, err := h.game.Login(ctx, name)
	if errors.Is(err, commands.ErrBadName) {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err != nil {
		h.logger.Error("login failed", zap.String("name", name), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "login failed"})
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Error("ws upgrade failed", zap.Error(err))
		return
	}

	sess := player.NewPlayerSession(p.ID, p.AvatarName, conn, h.logger)
	sess.SetLocation(p.LocationID)
	h.sm.Register(sess)
	if err := h.game.Connect(context.Background(), p.ID); err != nil {
		h.logger.Error("connect failed", zap.String("player_id", p.ID), zap.Error(err))
	}

	// Start read pump (blocks until connection closes).
	h.readPump(sess)
}

// readPump reads messages from the WebSocket connection and dispatches them.
func (h *Handler) readPump(s *player.PlayerSession) {
	defer func() {
		if r := recover(); r != nil {
			h.logger.Error("panic in ws read loop",
				zap.String("player_id", s.PlayerID),
				zap.Any("recover", r),
				zap.String("stack", string(debug.Stack())))
		}
		h.handleDisconnect(s)
	}()

	s.SetReadDeadline()
	s.Conn.SetPongHandler(func(string) error {
		s.SetReadDeadline()
		return nil
	})

	for {
		_, raw, err := s.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err,
				websocket.CloseGoingAway,
				websocket.CloseNormalClosure,
				websocket.CloseNoStatusReceived) {
				h.logger.Warn("ws unexpected close",
					zap.String("player_id", s.PlayerID),
					zap.Error(err))
			}
			return
		}
		// Reset read deadline on any message (heartbeat or otherwise).
		s.SetReadDeadline()
		h.router.Dispatch(s, raw)
	}
}

// handleDisconnect cleans up the session after the connection closes. A
// session displaced by a reconnect leaves the game state alone.
func (h *Handler) handleDisconnect(s *player.PlayerSession) {
	s.Close()
	h.sm.Unregister(s)
	if h.sm.Get(s.PlayerID) != nil {
		return
	}
	h.game.Disconnect(context.Background(), s.PlayerID)
	h.logger.Info("player disconnected", zap.String("player_id", s.PlayerID))
}
