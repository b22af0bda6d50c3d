package combat

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ryanroundhouse/punk-mud-sub000/audit"
	"github.com/ryanroundhouse/punk-mud-sub000/game/dice"
	"github.com/ryanroundhouse/punk-mud-sub000/game/player"
	"github.com/ryanroundhouse/punk-mud-sub000/model"
	"github.com/ryanroundhouse/punk-mud-sub000/store"
	"go.uber.org/zap"
)

// ErrNoMob is returned when a template id does not resolve to a mob.
var ErrNoMob = errors.New("combat: mob unavailable")

// PlayerStore is the persistence combat needs for players.
type PlayerStore interface {
	FindByID(ctx context.Context, id string) (*model.Character, error)
	UpdateFields(ctx context.Context, id string, fields map[string]interface{}) error
}

// LocationStore resolves locations for flee exits.
type LocationStore interface {
	FindByID(ctx context.Context, id string) (*model.Location, error)
}

// KillHandler is notified after a player defeats a mob.
type KillHandler interface {
	OnMobKilled(ctx context.Context, playerID string, mob *MobInstance)
}

// Relocator moves a player to another location.
type Relocator interface {
	Relocate(ctx context.Context, c *model.Character, locationID string) error
}

// Options tune combat rules.
type Options struct {
	FleeChance      float64
	StartLocationID string
}

// Deps are the collaborators of the combat Service.
type Deps struct {
	Players   PlayerStore
	Moves     MoveStore
	Locations LocationStore
	Factory   *MobFactory
	Roller    dice.Roller
	Messenger player.Messenger
	Audit     audit.Logger
}

// Service runs player-versus-mob combat.
type Service struct {
	players   PlayerStore
	moves     MoveStore
	locations LocationStore
	factory   *MobFactory
	roller    dice.Roller
	msg       player.Messenger
	audit     audit.Logger

	mobs     *MobRegistry
	sessions *SessionStore
	delays   *DelayStore
	effects  *EffectStore
	resolver *Resolver

	kills     KillHandler
	relocator Relocator
	opts      Options
	logger    *zap.Logger
}

// NewService creates a combat Service with empty state stores.
func NewService(d Deps, opts Options, logger *zap.Logger) *Service {
	if d.Audit == nil {
		d.Audit = audit.Nop{}
	}
	if d.Roller == nil {
		d.Roller = dice.New()
	}
	effects := NewEffectStore()
	return &Service{
		players:   d.Players,
		moves:     d.Moves,
		locations: d.Locations,
		factory:   d.Factory,
		roller:    d.Roller,
		msg:       d.Messenger,
		audit:     d.Audit,
		mobs:      NewMobRegistry(),
		sessions:  NewSessionStore(),
		delays:    NewDelayStore(),
		effects:   effects,
		resolver:  NewResolver(effects, d.Roller),
		opts:      opts,
		logger:    logger,
	}
}

// SetKillHandler wires the post-victory hook.
func (svc *Service) SetKillHandler(h KillHandler) { svc.kills = h }

// SetRelocator wires player relocation for flee and death.
func (svc *Service) SetRelocator(r Relocator) { svc.relocator = r }

// Mobs exposes the encounter registry.
func (svc *Service) Mobs() *MobRegistry { return svc.mobs }

// Effects exposes the effect store.
func (svc *Service) Effects() *EffectStore { return svc.effects }

// Delays exposes the delay store.
func (svc *Service) Delays() *DelayStore { return svc.delays }

// InCombat reports whether playerID is fighting.
func (svc *Service) InCombat(playerID string) bool { return svc.sessions.InCombat(playerID) }

func (svc *Service) combatMsg(playerID, text string) {
	svc.msg.SendToPlayer(playerID, player.ChannelCombat, text)
}

func (svc *Service) errorMsg(playerID, text string) {
	svc.msg.SendToPlayer(playerID, player.ChannelError, text)
}

// SpawnEncounter places a fresh mob from templateID in front of playerID,
// replacing any idle encounter. It does nothing while the player fights.
func (svc *Service) SpawnEncounter(ctx context.Context, playerID, templateID string) (*MobInstance, error) {
	if svc.InCombat(playerID) {
		return svc.mobs.Get(playerID), nil
	}
	mob, err := svc.factory.Instantiate(ctx, templateID)
	if err != nil {
		return nil, err
	}
	svc.mobs.Set(playerID, mob)
	return mob, nil
}

// ClearEncounter drops an idle encounter. Fights in progress are untouched.
func (svc *Service) ClearEncounter(playerID string) {
	if !svc.InCombat(playerID) {
		svc.mobs.Clear(playerID)
	}
}

// HandleFight engages the player's current encounter. target optionally
// names the mob.
func (svc *Service) HandleFight(ctx context.Context, playerID, target string) error {
	p, err := svc.players.FindByID(ctx, playerID)
	if err != nil {
		return err
	}
	if svc.InCombat(playerID) {
		svc.errorMsg(playerID, "You are already in combat!")
		return nil
	}
	mob := svc.mobs.Get(playerID)
	if mob == nil || !mob.Alive() || !mob.Matches(target) {
		if target == "" {
			svc.errorMsg(playerID, "There is nothing here to fight.")
		} else {
			svc.errorMsg(playerID, fmt.Sprintf("There is no %s here.", target))
		}
		return nil
	}
	return svc.engage(ctx, p, mob)
}

// StartCombat instantiates templateID and engages it immediately.
func (svc *Service) StartCombat(ctx context.Context, playerID, templateID string) error {
	p, err := svc.players.FindByID(ctx, playerID)
	if err != nil {
		return err
	}
	if svc.InCombat(playerID) {
		svc.errorMsg(playerID, "You are already in combat!")
		return nil
	}
	mob, err := svc.factory.Instantiate(ctx, templateID)
	if err != nil {
		svc.logger.Warn("combat mob instantiate failed",
			zap.String("player_id", playerID),
			zap.String("mob_id", templateID),
			zap.Error(err))
		return fmt.Errorf("%w: %s", ErrNoMob, templateID)
	}
	return svc.engage(ctx, p, mob)
}

func (svc *Service) engage(ctx context.Context, p *model.Character, mob *MobInstance) error {
	svc.mobs.Set(p.ID, mob)
	svc.sessions.Start(p.ID, mob)
	svc.delays.Clear(p.ID, mob.InstanceID)
	svc.effects.Clear(p.ID, mob.InstanceID)

	intro := fmt.Sprintf("You engage %s in combat!", mob.Name)
	if mob.Description != "" {
		intro += "\n" + mob.Description
	}
	svc.combatMsg(p.ID, intro)
	if err := svc.queueMobMove(mob, p.ID); err != nil {
		return err
	}
	return svc.processUntilInput(ctx, p, mob)
}

// currentFight loads the player and their live opponent. A session whose
// mob has vanished is cleared.
func (svc *Service) currentFight(ctx context.Context, playerID string) (*model.Character, *MobInstance, error) {
	p, err := svc.players.FindByID(ctx, playerID)
	if err != nil {
		return nil, nil, err
	}
	sess, ok := svc.sessions.Get(playerID)
	if !ok {
		svc.errorMsg(playerID, "You are not in combat.")
		return nil, nil, nil
	}
	mob := svc.mobs.Get(playerID)
	if mob == nil || mob.InstanceID != sess.MobInstanceID || !mob.Alive() {
		svc.endCombat(playerID, sess.MobInstanceID)
		svc.msg.SendToPlayer(playerID, player.ChannelInfo, "Your opponent is no longer here.")
		return nil, nil, nil
	}
	return p, mob, nil
}

// HandleCombatCommand queues the named move and runs the fight until the
// player must choose again.
func (svc *Service) HandleCombatCommand(ctx context.Context, playerID, moveName string) error {
	p, mob, err := svc.currentFight(ctx, playerID)
	if err != nil || p == nil {
		return err
	}
	moveName = strings.TrimSpace(moveName)
	move, err := svc.moves.FindByName(ctx, moveName)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		svc.logger.Error("move lookup failed", zap.String("move", moveName), zap.Error(err))
	}
	if err != nil || !p.KnowsMove(move.ID) {
		svc.errorMsg(playerID, fmt.Sprintf("You don't know a move called %q.", moveName))
		return nil
	}
	if queued, ok := svc.delays.Get(playerID); ok {
		svc.errorMsg(playerID, fmt.Sprintf("You are already preparing %s!", queued.Move.Name))
		return nil
	}
	svc.delays.Queue(playerID, *move, mob.InstanceID)
	svc.sessions.Touch(playerID)
	svc.combatMsg(playerID, fmt.Sprintf("You begin preparing %s.", move.Name))
	return svc.processUntilInput(ctx, p, mob)
}

// HandleFlee lets the mob strike once, then rolls for escape.
func (svc *Service) HandleFlee(ctx context.Context, playerID string) error {
	p, mob, err := svc.currentFight(ctx, playerID)
	if err != nil || p == nil {
		return err
	}
	svc.sessions.Touch(playerID)

	if len(mob.Moves) > 0 {
		if err := svc.execute(mob.Moves[0].Move.WithDefaults(), mob, p); err != nil {
			return err
		}
		svc.persistStats(ctx, p)
		svc.sendStatus(p)
		if !alive(p) {
			return svc.defeat(ctx, p, mob)
		}
	}

	escaped, err := dice.Chance(svc.roller, svc.opts.FleeChance)
	if err != nil {
		return fmt.Errorf("flee roll: %w", err)
	}
	if !escaped {
		svc.combatMsg(playerID, "You fail to escape!")
		return nil
	}
	loc, err := svc.locations.FindByID(ctx, p.LocationID)
	if err != nil || len(loc.Exits) == 0 {
		if err != nil {
			svc.logger.Warn("flee location lookup failed",
				zap.String("player_id", playerID), zap.Error(err))
		}
		svc.combatMsg(playerID, "There is nowhere to run!")
		return nil
	}
	idx, err := dice.Pick(svc.roller, len(loc.Exits))
	if err != nil {
		return fmt.Errorf("flee exit roll: %w", err)
	}
	exit := loc.Exits[idx]
	svc.endCombat(playerID, mob.InstanceID)
	svc.combatMsg(playerID, fmt.Sprintf("You flee %s!", exit.Direction))
	svc.audit.Log(audit.AuditEntry{
		PlayerID: playerID,
		Action:   audit.ActionCombatFlee,
		Detail:   map[string]string{"mob": mob.Name, "to": exit.Target},
	})
	return svc.relocate(ctx, p, exit.Target)
}

// IdlePlayers lists players whose fight has been untouched for ttl.
func (svc *Service) IdlePlayers(ttl time.Duration) []string {
	return svc.sessions.Idle(ttl)
}

// Expire ends an idle fight.
func (svc *Service) Expire(playerID string) {
	sess, ok := svc.sessions.Get(playerID)
	if !ok {
		return
	}
	svc.endCombat(playerID, sess.MobInstanceID)
	svc.msg.SendToPlayer(playerID, player.ChannelInfo, fmt.Sprintf("%s loses interest and wanders off.", sess.MobName))
}

// EndCombat drops all combat state of playerID (disconnect).
func (svc *Service) EndCombat(playerID string) {
	if sess, ok := svc.sessions.Get(playerID); ok {
		svc.endCombat(playerID, sess.MobInstanceID)
		return
	}
	svc.mobs.Clear(playerID)
	svc.delays.Clear(playerID)
	svc.effects.Clear(playerID)
}

func (svc *Service) endCombat(playerID, mobInstanceID string) {
	svc.sessions.Clear(playerID)
	svc.mobs.Clear(playerID)
	svc.delays.Clear(playerID, mobInstanceID)
	svc.effects.Clear(playerID, mobInstanceID)
}

func (svc *Service) relocate(ctx context.Context, p *model.Character, locationID string) error {
	if svc.relocator != nil {
		return svc.relocator.Relocate(ctx, p, locationID)
	}
	p.LocationID = locationID
	return svc.players.UpdateFields(ctx, p.ID, map[string]interface{}{"location_id": locationID})
}
