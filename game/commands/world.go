package commands

import (
	"context"
	"fmt"
	"strings"

	"github.com/ryanroundhouse/punk-mud-sub000/game/dice"
	"github.com/ryanroundhouse/punk-mud-sub000/game/player"
	"github.com/ryanroundhouse/punk-mud-sub000/model"
	"go.uber.org/zap"
)

var directionAliases = map[string]string{
	"n": "north", "s": "south", "e": "east", "w": "west",
	"ne": "northeast", "nw": "northwest", "se": "southeast", "sw": "southwest",
	"u": "up", "d": "down",
}

func findExit(loc *model.Location, dir string) (model.Exit, bool) {
	if loc == nil {
		return model.Exit{}, false
	}
	dir = strings.ToLower(strings.TrimSpace(dir))
	if full, ok := directionAliases[dir]; ok {
		dir = full
	}
	if dir == "" {
		return model.Exit{}, false
	}
	for _, e := range loc.Exits {
		if strings.EqualFold(e.Direction, dir) {
			return e, true
		}
	}
	return model.Exit{}, false
}

// currentLocation returns nil when the player's location cannot be loaded.
func (d *Dispatcher) currentLocation(ctx context.Context, p *model.Character) *model.Location {
	if p.LocationID == "" {
		return nil
	}
	loc, err := d.locations.FindByID(ctx, p.LocationID)
	if err != nil {
		d.logger.Warn("location lookup failed",
			zap.String("player_id", p.ID),
			zap.String("location_id", p.LocationID),
			zap.Error(err))
		return nil
	}
	return loc
}

func (d *Dispatcher) move(ctx context.Context, p *model.Character, dir string) error {
	if strings.TrimSpace(dir) == "" {
		d.msg.SendToPlayer(p.ID, player.ChannelError, "Move where?")
		return nil
	}
	exit, ok := findExit(d.currentLocation(ctx, p), dir)
	if !ok {
		d.msg.SendToPlayer(p.ID, player.ChannelError, "You can't go that way.")
		return nil
	}
	return d.Relocate(ctx, p, exit.Target)
}

// Relocate moves c to locationID: it persists the new location, updates
// presence, tells both rooms, rolls a mob encounter, describes the new room
// and starts its story event. Callers must hold the player's lock.
func (d *Dispatcher) Relocate(ctx context.Context, c *model.Character, locationID string) error {
	loc, err := d.locations.FindByID(ctx, locationID)
	if err != nil {
		return err
	}
	from := c.LocationID
	if err := d.players.UpdateFields(ctx, c.ID, map[string]interface{}{"location_id": loc.ID}); err != nil {
		return err
	}
	c.LocationID = loc.ID

	if err := d.presence.Move(ctx, c.ID, from, loc.ID); err != nil {
		d.logger.Warn("presence update failed", zap.String("player_id", c.ID), zap.Error(err))
	}
	if from != "" && from != loc.ID {
		d.msg.BroadcastToLocation(ctx, from, fmt.Sprintf("%s leaves.", c.AvatarName), c.ID)
	}
	d.msg.BroadcastToLocation(ctx, loc.ID, fmt.Sprintf("%s arrives.", c.AvatarName), c.ID)

	d.combat.ClearEncounter(c.ID)
	if len(loc.MobSpawns) > 0 && !d.combat.InCombat(c.ID) {
		if idx, err := dice.Pick(d.roller, len(loc.MobSpawns)); err != nil {
			d.logger.Warn("mob spawn roll failed", zap.String("location_id", loc.ID), zap.Error(err))
		} else if _, err := d.combat.SpawnEncounter(ctx, c.ID, loc.MobSpawns[idx]); err != nil {
			d.logger.Warn("mob spawn failed",
				zap.String("location_id", loc.ID),
				zap.String("mob_id", loc.MobSpawns[idx]),
				zap.Error(err))
		}
	}

	d.describe(ctx, c, loc)

	if loc.EventID != "" && !d.combat.InCombat(c.ID) && !d.events.HasSession(ctx, c.ID) {
		res, err := d.events.StartEvent(ctx, c, loc.EventID)
		if err != nil {
			d.logger.Warn("story event failed to start",
				zap.String("location_id", loc.ID),
				zap.String("event_id", loc.EventID),
				zap.Error(err))
			return nil
		}
		return d.deliverEvent(ctx, c.ID, res)
	}
	return nil
}

func (d *Dispatcher) look(ctx context.Context, p *model.Character) error {
	loc := d.currentLocation(ctx, p)
	if loc == nil {
		d.msg.SendToPlayer(p.ID, player.ChannelError, "You are nowhere.")
		return nil
	}
	d.describe(ctx, p, loc)
	return nil
}

func (d *Dispatcher) describe(ctx context.Context, p *model.Character, loc *model.Location) {
	var b strings.Builder
	b.WriteString(loc.Name)
	if loc.Description != "" {
		b.WriteString("\n" + loc.Description)
	}

	if len(loc.Exits) > 0 {
		dirs := make([]string, len(loc.Exits))
		for i, e := range loc.Exits {
			dirs[i] = e.Direction
		}
		b.WriteString("\nExits: " + strings.Join(dirs, ", "))
	} else {
		b.WriteString("\nThere are no obvious exits.")
	}

	actors, err := d.actors.FindByLocation(ctx, loc.ID)
	if err != nil {
		d.logger.Warn("actor lookup failed", zap.String("location_id", loc.ID), zap.Error(err))
	}
	names := make([]string, 0, len(actors))
	for _, a := range actors {
		names = append(names, a.Name)
	}
	names = append(names, d.otherPlayers(ctx, p, loc.ID)...)
	if len(names) > 0 {
		b.WriteString("\nYou see: " + strings.Join(names, ", "))
	}

	if mob := d.combat.Mobs().Get(p.ID); mob != nil && mob.Alive() {
		fmt.Fprintf(&b, "\nA %s is here.", mob.Name)
	}
	d.msg.SendToPlayer(p.ID, player.ChannelList, b.String())
}

func (d *Dispatcher) otherPlayers(ctx context.Context, p *model.Character, locationID string) []string {
	ids, err := d.presence.Members(ctx, locationID)
	if err != nil {
		return nil
	}
	var out []string
	for _, id := range ids {
		if id == p.ID {
			continue
		}
		other, err := d.players.FindByID(ctx, id)
		if err != nil {
			continue
		}
		out = append(out, other.AvatarName)
	}
	return out
}

func (d *Dispatcher) findActor(ctx context.Context, p *model.Character, name string) (*model.Actor, error) {
	actors, err := d.actors.FindByLocation(ctx, p.LocationID)
	if err != nil {
		return nil, err
	}
	name = strings.ToLower(strings.TrimSpace(name))
	for i := range actors {
		if strings.EqualFold(actors[i].Name, name) {
			return &actors[i], nil
		}
	}
	for i := range actors {
		if strings.HasPrefix(strings.ToLower(actors[i].Name), name) {
			return &actors[i], nil
		}
	}
	return nil, nil
}

// talk opens the actor's conversation, falls back to quest progression with
// the actor, and finally to one of the actor's idle lines.
func (d *Dispatcher) talk(ctx context.Context, p *model.Character, name string) error {
	if strings.TrimSpace(name) == "" {
		d.msg.SendToPlayer(p.ID, player.ChannelError, "Talk to whom?")
		return nil
	}
	actor, err := d.findActor(ctx, p, name)
	if err != nil {
		return err
	}
	if actor == nil {
		d.msg.SendToPlayer(p.ID, player.ChannelError, fmt.Sprintf("There is no one called %s here.", name))
		return nil
	}

	res, err := d.events.StartConversation(ctx, p, actor.ID)
	if err != nil {
		return err
	}
	if res != nil {
		return d.deliverEvent(ctx, p.ID, res)
	}

	update, err := d.quests.HandleQuestProgression(ctx, p, actor.ID, nil, "")
	if err != nil {
		d.logger.Warn("quest progression from talk failed",
			zap.String("player_id", p.ID),
			zap.String("actor_id", actor.ID),
			zap.Error(err))
	}
	if update != nil {
		return nil
	}

	if len(actor.ChatMessages) == 0 {
		d.msg.SendToPlayer(p.ID, player.ChannelChat, fmt.Sprintf("%s has nothing to say.", actor.Name))
		return nil
	}
	idx, err := dice.Pick(d.roller, len(actor.ChatMessages))
	if err != nil {
		return fmt.Errorf("talk %s: %w", actor.ID, err)
	}
	line := actor.ChatMessages[idx]
	d.msg.SendToPlayer(p.ID, player.ChannelChat, fmt.Sprintf("%s says: %s", actor.Name, line))
	return nil
}
