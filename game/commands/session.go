package commands

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/ryanroundhouse/punk-mud-sub000/game/character"
	"github.com/ryanroundhouse/punk-mud-sub000/game/combat"
	"github.com/ryanroundhouse/punk-mud-sub000/game/player"
	"github.com/ryanroundhouse/punk-mud-sub000/model"
	"github.com/ryanroundhouse/punk-mud-sub000/store"
	"go.uber.org/zap"
)

const maxNameLen = 32

// ErrBadName is returned by Login for unusable avatar names.
var ErrBadName = errors.New("commands: invalid avatar name")

// Login returns the character named name, creating it at the start
// location on first use.
func (d *Dispatcher) Login(ctx context.Context, name string) (*model.Character, error) {
	name = strings.TrimSpace(name)
	if name == "" || len(name) > maxNameLen || strings.ContainsAny(name, " \t\r\n") {
		return nil, ErrBadName
	}
	c, err := d.players.FindByName(ctx, name)
	if err == nil {
		return c, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return nil, err
	}
	c = character.New(name, d.opts.StartLocationID)
	if err := d.players.Create(ctx, c); err != nil {
		return nil, err
	}
	d.logger.Info("character created", zap.String("player_id", c.ID), zap.String("avatar", name))
	return c, nil
}

// Connect places a freshly connected player in their location.
func (d *Dispatcher) Connect(ctx context.Context, playerID string) error {
	unlock := d.locks.Lock(playerID)
	defer unlock()

	p, err := d.players.FindByID(ctx, playerID)
	if err != nil {
		return err
	}
	if p.LocationID == "" {
		p.LocationID = d.opts.StartLocationID
	}
	// a reconnect that displaced a live session is already in the room
	present, _ := d.presence.Contains(ctx, p.ID, p.LocationID)
	if err := d.presence.Move(ctx, p.ID, "", p.LocationID); err != nil {
		d.logger.Warn("presence update failed", zap.String("player_id", p.ID), zap.Error(err))
	}
	if !present {
		d.msg.BroadcastToLocation(ctx, p.LocationID, fmt.Sprintf("%s has connected.", p.AvatarName), p.ID)
	}
	d.msg.SendToPlayer(p.ID, player.ChannelSuccess, fmt.Sprintf("Welcome back, %s.", p.AvatarName))
	d.status(p)
	if loc := d.currentLocation(ctx, p); loc != nil {
		d.describe(ctx, p, loc)
	}
	d.chat.SendHistory(ctx, p.ID, p.LocationID, d.opts.ChatHistory)
	return nil
}

// Disconnect drops every transient state of the player.
func (d *Dispatcher) Disconnect(ctx context.Context, playerID string) {
	unlock := d.locks.Lock(playerID)
	defer unlock()

	d.combat.EndCombat(playerID)
	if err := d.events.Abandon(ctx, playerID); err != nil {
		d.logger.Warn("event session clear failed", zap.String("player_id", playerID), zap.Error(err))
	}
	p, err := d.players.FindByID(ctx, playerID)
	if err != nil {
		d.logger.Warn("disconnect lookup failed", zap.String("player_id", playerID), zap.Error(err))
		return
	}
	if err := d.presence.Leave(ctx, playerID, p.LocationID); err != nil {
		d.logger.Warn("presence leave failed", zap.String("player_id", playerID), zap.Error(err))
	}
	d.msg.BroadcastToLocation(ctx, p.LocationID, fmt.Sprintf("%s has disconnected.", p.AvatarName), playerID)
}

// OnMobKilled awards the mob's experience and advances kill quests. It runs
// inside the combat call and therefore under the player's lock.
func (d *Dispatcher) OnMobKilled(ctx context.Context, playerID string, mob *combat.MobInstance) {
	if mob.ExperiencePoints > 0 {
		award, err := d.chars.AwardExperience(ctx, playerID, mob.ExperiencePoints)
		if err != nil {
			d.logger.Warn("kill experience not awarded",
				zap.String("player_id", playerID),
				zap.String("mob_id", mob.TemplateID),
				zap.Error(err))
		} else {
			d.msg.SendToPlayer(playerID, player.ChannelSuccess, award.Summary())
		}
	}

	p, err := d.players.FindByID(ctx, playerID)
	if err != nil {
		d.logger.Warn("kill quest lookup failed", zap.String("player_id", playerID), zap.Error(err))
		return
	}
	if _, err := d.quests.HandleMobKill(ctx, p, mob.TemplateID); err != nil {
		d.logger.Warn("kill quest progression failed",
			zap.String("player_id", playerID),
			zap.String("mob_id", mob.TemplateID),
			zap.Error(err))
	}
}

// SweepIdle ends fights that have been untouched for the idle TTL. Event
// sessions expire on their own through the cache TTL.
func (d *Dispatcher) SweepIdle(ctx context.Context) int {
	if d.opts.IdleTTL <= 0 {
		return 0
	}
	ids := d.combat.IdlePlayers(d.opts.IdleTTL)
	for _, id := range ids {
		unlock := d.locks.Lock(id)
		d.combat.Expire(id)
		unlock()
	}
	if len(ids) > 0 {
		d.logger.Info("idle fights expired", zap.Int("count", len(ids)))
	}
	return len(ids)
}
