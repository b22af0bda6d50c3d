// Package quest advances players through quest event graphs: completion
// events, direct activation, actor conversations and kill counters.
package quest

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/ryanroundhouse/punk-mud-sub000/audit"
	"github.com/ryanroundhouse/punk-mud-sub000/game/character"
	"github.com/ryanroundhouse/punk-mud-sub000/game/player"
	"github.com/ryanroundhouse/punk-mud-sub000/model"
	"go.uber.org/zap"
)

// Update kinds.
const (
	UpdateStart        = "quest_start"
	UpdateProgress     = "quest_progress"
	UpdateComplete     = "quest_complete"
	UpdateKillProgress = "quest_kill_progress"
)

// Update describes one change to a player's quest log.
type Update struct {
	Type       string
	QuestID    string
	QuestTitle string
	EventID    string
	Message    string
	Experience int
	LevelUp    bool
	NewLevel   int
	ClassName  string
	Remaining  int
}

// PlayerStore loads and fully saves players with their quest records.
type PlayerStore interface {
	FindByID(ctx context.Context, id string) (*model.Character, error)
	Save(ctx context.Context, c *model.Character) error
}

// QuestStore resolves quest definitions.
type QuestStore interface {
	FindByID(ctx context.Context, id string) (*model.Quest, error)
	FindAll(ctx context.Context) ([]model.Quest, error)
}

// ExperienceAwarder grants experience to a stored player.
type ExperienceAwarder interface {
	AwardExperience(ctx context.Context, playerID string, amount int) (character.Award, error)
}

// ClassGranter applies a class to a player in memory.
type ClassGranter interface {
	GrantClass(ctx context.Context, c *model.Character, classID string) (*model.Class, error)
}

// Deps are the collaborators of the Engine.
type Deps struct {
	Players    PlayerStore
	Quests     QuestStore
	Experience ExperienceAwarder
	Classes    ClassGranter
	Messenger  player.Messenger
	Audit      audit.Logger
}

// Engine is the quest progression engine.
type Engine struct {
	players PlayerStore
	quests  QuestStore
	xp      ExperienceAwarder
	classes ClassGranter
	msg     player.Messenger
	audit   audit.Logger
	logger  *zap.Logger
	now     func() time.Time
}

// NewEngine creates an Engine.
func NewEngine(d Deps, logger *zap.Logger) *Engine {
	if d.Audit == nil {
		d.Audit = audit.Nop{}
	}
	return &Engine{
		players: d.Players,
		quests:  d.Quests,
		xp:      d.Experience,
		classes: d.Classes,
		msg:     d.Messenger,
		audit:   d.Audit,
		logger:  logger,
		now:     time.Now,
	}
}

// pending is an in-memory quest change waiting to be persisted.
type pending struct {
	update *Update
	xp     int
}

// HandleQuestProgression applies the first matching rule: advance an
// in-progress quest whose current event leads to one of completionEventIDs,
// activate questToActivate, start a quest offered by actorID, or advance a
// quest whose next event belongs to actorID. It returns nil when nothing
// applies. p is refreshed from the store after any change.
func (e *Engine) HandleQuestProgression(ctx context.Context, p *model.Character, actorID string, completionEventIDs []string, questToActivate string) (*Update, error) {
	defs, err := e.loadDefs(ctx)
	if err != nil {
		return nil, err
	}

	if len(completionEventIDs) > 0 {
		want := make(map[string]struct{}, len(completionEventIDs))
		for _, id := range completionEventIDs {
			want[id] = struct{}{}
		}
		if pend, ok := e.advanceMatching(ctx, p, defs, func(next *model.QuestEvent) bool {
			_, hit := want[next.ID]
			return hit
		}); ok {
			return pend.update, e.commit(ctx, p, pend)
		}
	}

	if questToActivate != "" && !p.HasActiveQuest(questToActivate) {
		// an unknown quest falls through to the actor checks
		if def := findDef(defs, questToActivate); def != nil {
			if pend, ok := e.startQuest(ctx, p, def); ok {
				return pend.update, e.commit(ctx, p, pend)
			}
			return nil, nil
		}
		e.logger.Warn("quest to activate not found",
			zap.String("player_id", p.ID), zap.String("quest_id", questToActivate))
	}

	if actorID == "" {
		return nil, nil
	}
	for i := range defs {
		def := &defs[i]
		if p.HasQuest(def.ID) {
			continue
		}
		if start := def.StartEvent(); start != nil && start.ActorID == actorID {
			if pend, ok := e.startQuest(ctx, p, def); ok {
				return pend.update, e.commit(ctx, p, pend)
			}
		}
	}

	if pend, ok := e.advanceMatching(ctx, p, defs, func(next *model.QuestEvent) bool {
		return next.ActorID == actorID && next.EventType != model.QuestEventKill
	}); ok {
		return pend.update, e.commit(ctx, p, pend)
	}
	return nil, nil
}

// HandleMobKill counts a kill of templateID against every active quest whose
// current event leads to a matching kill event. A counter reaching zero
// advances the quest.
func (e *Engine) HandleMobKill(ctx context.Context, p *model.Character, templateID string) ([]*Update, error) {
	defs, err := e.loadDefs(ctx)
	if err != nil {
		return nil, err
	}
	var pends []pending
	for i := range p.Quests {
		rec := &p.Quests[i]
		if rec.Completed {
			continue
		}
		def := findDef(defs, rec.QuestID)
		if def == nil {
			continue
		}
		cur := def.Event(rec.CurrentEventID)
		if cur == nil {
			continue
		}
		for _, ch := range cur.Choices {
			next := def.Event(ch.NextEventID)
			if next == nil || next.EventType != model.QuestEventKill || next.MobID != templateID {
				continue
			}
			remaining := 0
			if kp := rec.Kills(next.ID); kp != nil {
				kp.Remaining--
				remaining = kp.Remaining
			} else {
				qty := next.Quantity
				if qty < 1 {
					qty = 1
				}
				remaining = qty - 1
				rec.KillProgress = append(rec.KillProgress, model.KillProgress{EventID: next.ID, Remaining: remaining})
			}
			if remaining <= 0 {
				rec.ClearKills(next.ID)
				pends = append(pends, e.advance(ctx, p, rec, def, next))
			} else {
				pends = append(pends, pending{update: &Update{
					Type:       UpdateKillProgress,
					QuestID:    def.ID,
					QuestTitle: def.Title,
					EventID:    next.ID,
					Remaining:  remaining,
					Message:    fmt.Sprintf("%s: %d remaining.", def.Title, remaining),
				}})
			}
			break
		}
	}
	if len(pends) == 0 {
		return nil, nil
	}
	if err := e.commit(ctx, p, pends...); err != nil {
		return nil, err
	}
	out := make([]*Update, len(pends))
	for i, pd := range pends {
		out[i] = pd.update
	}
	return out, nil
}

func (e *Engine) loadDefs(ctx context.Context) ([]model.Quest, error) {
	defs, err := e.quests.FindAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("load quests: %w", err)
	}
	return defs, nil
}

func findDef(defs []model.Quest, id string) *model.Quest {
	for i := range defs {
		if defs[i].ID == id {
			return &defs[i]
		}
	}
	return nil
}

// advanceMatching advances the first in-progress quest whose current event
// has a choice leading to an event accepted by match.
func (e *Engine) advanceMatching(ctx context.Context, p *model.Character, defs []model.Quest, match func(*model.QuestEvent) bool) (pending, bool) {
	for i := range p.Quests {
		rec := &p.Quests[i]
		if rec.Completed {
			continue
		}
		def := findDef(defs, rec.QuestID)
		if def == nil {
			e.logger.Warn("quest record references unknown quest",
				zap.String("player_id", p.ID), zap.String("quest_id", rec.QuestID))
			continue
		}
		cur := def.Event(rec.CurrentEventID)
		if cur == nil {
			e.logger.Warn("quest record references unknown event",
				zap.String("player_id", p.ID),
				zap.String("quest_id", rec.QuestID),
				zap.String("event_id", rec.CurrentEventID))
			continue
		}
		for _, ch := range cur.Choices {
			next := def.Event(ch.NextEventID)
			if next != nil && match(next) {
				return e.advance(ctx, p, rec, def, next), true
			}
		}
	}
	return pending{}, false
}

// advance moves rec onto next in memory and applies next's rewards.
func (e *Engine) advance(ctx context.Context, p *model.Character, rec *model.UserQuest, def *model.Quest, next *model.QuestEvent) pending {
	if rec.CurrentEventID != "" {
		rec.CompletedEventIDs = append(rec.CompletedEventIDs, rec.CurrentEventID)
	}
	rec.CurrentEventID = next.ID
	rec.KillProgress = nil

	u := &Update{
		Type:       UpdateProgress,
		QuestID:    def.ID,
		QuestTitle: def.Title,
		EventID:    next.ID,
	}
	xp := e.applyRewards(ctx, p, next, u)
	if next.IsEnd {
		now := e.now()
		rec.Completed = true
		rec.CompletedAt = &now
		u.Type = UpdateComplete
		u.Message = "Quest completed: " + def.Title
	} else {
		u.Message = "Quest updated: " + def.Title
	}
	if next.Message != "" {
		u.Message += "\n" + next.Message
	}
	return pending{update: u, xp: xp}
}

func (e *Engine) startQuest(ctx context.Context, p *model.Character, def *model.Quest) (pending, bool) {
	start := def.StartEvent()
	if start == nil {
		e.logger.Warn("quest has no start event", zap.String("quest_id", def.ID))
		return pending{}, false
	}
	p.Quests = append(p.Quests, model.UserQuest{
		CharID:            p.ID,
		QuestID:           def.ID,
		CurrentEventID:    start.ID,
		CompletedEventIDs: []string{},
	})
	u := &Update{
		Type:       UpdateStart,
		QuestID:    def.ID,
		QuestTitle: def.Title,
		EventID:    start.ID,
		Message:    "New quest: " + def.Title,
	}
	if start.Message != "" {
		u.Message += "\n" + start.Message
	}
	xp := e.applyRewards(ctx, p, start, u)
	return pending{update: u, xp: xp}, true
}

// applyRewards grants classes in memory and returns the experience owed.
func (e *Engine) applyRewards(ctx context.Context, p *model.Character, ev *model.QuestEvent, u *Update) int {
	xp := 0
	for _, r := range ev.Rewards {
		switch r.Type {
		case model.RewardExperience:
			n, err := strconv.Atoi(strings.TrimSpace(r.Value))
			if err != nil || n < 0 {
				e.logger.Warn("bad experience reward",
					zap.String("event_id", ev.ID), zap.String("value", r.Value))
				continue
			}
			xp += n
		case model.RewardGainClass:
			class, err := e.classes.GrantClass(ctx, p, r.Value)
			if err != nil {
				e.logger.Warn("class reward failed",
					zap.String("player_id", p.ID),
					zap.String("class_id", r.Value),
					zap.Error(err))
				continue
			}
			u.ClassName = class.Name
		default:
			e.logger.Warn("unknown quest reward",
				zap.String("event_id", ev.ID), zap.String("type", r.Type))
		}
	}
	return xp
}

// commit saves p, awards owed experience, refreshes p and notifies.
func (e *Engine) commit(ctx context.Context, p *model.Character, pends ...pending) error {
	if err := e.players.Save(ctx, p); err != nil {
		return fmt.Errorf("save quest progress: %w", err)
	}
	for _, pd := range pends {
		if pd.xp <= 0 {
			continue
		}
		award, err := e.xp.AwardExperience(ctx, p.ID, pd.xp)
		if err != nil {
			e.logger.Error("quest experience award failed",
				zap.String("player_id", p.ID),
				zap.String("quest_id", pd.update.QuestID),
				zap.Int("amount", pd.xp),
				zap.Error(err))
			continue
		}
		pd.update.Experience = pd.xp
		pd.update.LevelUp = award.LeveledUp()
		pd.update.NewLevel = award.NewLevel
	}
	if fresh, err := e.players.FindByID(ctx, p.ID); err == nil {
		*p = *fresh
	} else {
		e.logger.Warn("player refresh after quest update failed",
			zap.String("player_id", p.ID), zap.Error(err))
	}

	for _, pd := range pends {
		e.notify(p.ID, pd.update)
		switch pd.update.Type {
		case UpdateStart:
			e.auditUpdate(p.ID, audit.ActionQuestStart, pd.update)
		case UpdateComplete:
			e.auditUpdate(p.ID, audit.ActionQuestComplete, pd.update)
		}
	}
	return nil
}

func (e *Engine) notify(playerID string, u *Update) {
	if e.msg == nil {
		return
	}
	lines := []string{u.Message}
	if u.ClassName != "" {
		lines = append(lines, fmt.Sprintf("You are now a %s.", u.ClassName))
	}
	if u.Experience > 0 {
		xp := fmt.Sprintf("You gained %d experience.", u.Experience)
		if u.LevelUp {
			xp += fmt.Sprintf(" You reached level %d!", u.NewLevel)
		}
		lines = append(lines, xp)
	}
	e.msg.SendToPlayer(playerID, player.ChannelQuests, strings.Join(lines, "\n"))
}

func (e *Engine) auditUpdate(playerID, action string, u *Update) {
	e.audit.Log(audit.AuditEntry{
		PlayerID: playerID,
		Action:   action,
		Detail: map[string]interface{}{
			"quest_id": u.QuestID,
			"event_id": u.EventID,
			"xp":       u.Experience,
		},
	})
}
