package chat

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/ryanroundhouse/punk-mud-sub000/cache"
	"github.com/ryanroundhouse/punk-mud-sub000/game/player"
	"github.com/ryanroundhouse/punk-mud-sub000/model"
	"go.uber.org/zap"
)

const (
	maxMsgLen      = 200
	defaultHistory = 50
	channelPrefix  = "chat:location:"
)

// Roster lists the players standing in a location.
type Roster interface {
	Members(ctx context.Context, locationID string) ([]string, error)
}

// Entry is one stored chat line.
type Entry struct {
	FromID   string `json:"from_id"`
	FromName string `json:"from_name"`
	Content  string `json:"content"`
	TS       int64  `json:"ts"`
}

// Channel is the pubsub channel and history key for a location.
func Channel(locationID string) string { return channelPrefix + locationID }

// Handler implements location chat.
type Handler struct {
	cache   cache.Cache
	pubsub  cache.PubSub
	roster  Roster
	msg     player.Messenger
	history int
	logger  *zap.Logger
}

// NewHandler creates a new chat Handler. history <= 0 uses the default.
func NewHandler(c cache.Cache, ps cache.PubSub, roster Roster, msg player.Messenger, history int, logger *zap.Logger) *Handler {
	if history <= 0 {
		history = defaultHistory
	}
	return &Handler{cache: c, pubsub: ps, roster: roster, msg: msg, history: history, logger: logger}
}

// Say publishes content to the speaker's location and echoes it back.
func (h *Handler) Say(ctx context.Context, p *model.Character, content string) error {
	content = strings.TrimSpace(content)
	if content == "" {
		h.msg.SendToPlayer(p.ID, player.ChannelError, "Say what?")
		return nil
	}
	if len([]rune(content)) > maxMsgLen {
		h.msg.SendToPlayer(p.ID, player.ChannelError, fmt.Sprintf("Messages are limited to %d characters.", maxMsgLen))
		return nil
	}

	entry := Entry{FromID: p.ID, FromName: p.AvatarName, Content: content, TS: time.Now().UnixMilli()}
	data, err := json.Marshal(entry)
	if err != nil {
		return err
	}
	key := Channel(p.LocationID)
	if err := h.pubsub.Publish(ctx, key, string(data)); err != nil {
		return fmt.Errorf("chat publish %q: %w", key, err)
	}
	h.msg.SendToPlayer(p.ID, player.ChannelChat, fmt.Sprintf("You say: %s", content))
	if err := h.cache.LPush(ctx, key, string(data)); err != nil {
		h.logger.Warn("chat history push failed", zap.String("channel", key), zap.Error(err))
		return nil
	}
	if err := h.cache.LTrim(ctx, key, 0, int64(h.history-1)); err != nil {
		h.logger.Warn("chat history trim failed", zap.String("channel", key), zap.Error(err))
	}
	return nil
}

// Subscribe relays published lines for locationIDs to the players standing
// there, speaker excluded. The returned stop function ends the relay and
// waits for it to exit.
func (h *Handler) Subscribe(ctx context.Context, locationIDs ...string) (func(), error) {
	if len(locationIDs) == 0 {
		return func() {}, nil
	}
	channels := make([]string, len(locationIDs))
	for i, id := range locationIDs {
		channels[i] = Channel(id)
	}

	subCtx, cancel := context.WithCancel(ctx)
	msgCh, unsub, err := h.pubsub.Subscribe(subCtx, channels...)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("chat subscribe: %w", err)
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			select {
			case m, ok := <-msgCh:
				if !ok {
					return
				}
				h.deliver(subCtx, m)
			case <-subCtx.Done():
				return
			}
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			cancel()
			unsub()
			<-done
		})
	}, nil
}

func (h *Handler) deliver(ctx context.Context, m *cache.Message) {
	var e Entry
	if err := json.Unmarshal([]byte(m.Payload), &e); err != nil {
		h.logger.Warn("chat payload dropped", zap.String("channel", m.Channel), zap.Error(err))
		return
	}
	locationID := strings.TrimPrefix(m.Channel, channelPrefix)
	members, err := h.roster.Members(ctx, locationID)
	if err != nil {
		h.logger.Warn("chat roster failed", zap.String("location_id", locationID), zap.Error(err))
		return
	}
	line := fmt.Sprintf("%s says: %s", e.FromName, e.Content)
	for _, id := range members {
		if id != e.FromID {
			h.msg.SendToPlayer(id, player.ChannelChat, line)
		}
	}
}

// History returns up to count recent lines of a location, oldest first.
func (h *Handler) History(ctx context.Context, locationID string, count int) ([]Entry, error) {
	if count <= 0 || count > h.history {
		count = h.history
	}
	raw, err := h.cache.LRange(ctx, Channel(locationID), 0, int64(count-1))
	if err != nil {
		return nil, err
	}
	out := make([]Entry, 0, len(raw))
	for i := len(raw) - 1; i >= 0; i-- {
		var e Entry
		if err := json.Unmarshal([]byte(raw[i]), &e); err != nil {
			continue
		}
		out = append(out, e)
	}
	return out, nil
}

// SendHistory pushes the recent lines of a location to a player.
func (h *Handler) SendHistory(ctx context.Context, playerID, locationID string, count int) {
	entries, err := h.History(ctx, locationID, count)
	if err != nil {
		h.logger.Warn("chat history load failed", zap.String("location_id", locationID), zap.Error(err))
		return
	}
	for _, e := range entries {
		h.msg.SendToPlayer(playerID, player.ChannelChat, fmt.Sprintf("%s says: %s", e.FromName, e.Content))
	}
}
