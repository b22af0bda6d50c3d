// Package commands turns raw player input into game actions. Every input of
// one player runs under that player's lock; the dispatcher owns the wiring
// between the event machine, combat, quests, chat and movement.
package commands

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ryanroundhouse/punk-mud-sub000/audit"
	"github.com/ryanroundhouse/punk-mud-sub000/game/character"
	"github.com/ryanroundhouse/punk-mud-sub000/game/chat"
	"github.com/ryanroundhouse/punk-mud-sub000/game/combat"
	"github.com/ryanroundhouse/punk-mud-sub000/game/dice"
	"github.com/ryanroundhouse/punk-mud-sub000/game/event"
	"github.com/ryanroundhouse/punk-mud-sub000/game/player"
	"github.com/ryanroundhouse/punk-mud-sub000/game/quest"
	"github.com/ryanroundhouse/punk-mud-sub000/model"
	"github.com/ryanroundhouse/punk-mud-sub000/store"
	"go.uber.org/zap"
)

const genericError = "Something went wrong. Please try again."

// PlayerStore is the player persistence the dispatcher needs.
type PlayerStore interface {
	FindByID(ctx context.Context, id string) (*model.Character, error)
	FindByName(ctx context.Context, name string) (*model.Character, error)
	Create(ctx context.Context, c *model.Character) error
	UpdateFields(ctx context.Context, id string, fields map[string]interface{}) error
}

// LocationStore resolves locations.
type LocationStore interface {
	FindByID(ctx context.Context, id string) (*model.Location, error)
}

// ActorStore lists the actors of a location.
type ActorStore interface {
	FindByLocation(ctx context.Context, locationID string) ([]model.Actor, error)
}

// QuestStore resolves quest definitions for the journal.
type QuestStore interface {
	FindByID(ctx context.Context, id string) (*model.Quest, error)
}

// Deps are the collaborators of the Dispatcher.
type Deps struct {
	Players    PlayerStore
	Locations  LocationStore
	Actors     ActorStore
	QuestDefs  QuestStore
	Events     *event.Machine
	Combat     *combat.Service
	Quests     *quest.Engine
	Characters *character.Service
	Chat       *chat.Handler
	Presence   *player.Presence
	Messenger  player.Messenger
	Roller     dice.Roller
	Records    audit.Reader // optional
}

// Options tune the dispatcher.
type Options struct {
	StartLocationID string
	IdleTTL         time.Duration
	ChatHistory     int
}

// Dispatcher routes player input.
type Dispatcher struct {
	players   PlayerStore
	locations LocationStore
	actors    ActorStore
	questDefs QuestStore
	events    *event.Machine
	combat    *combat.Service
	quests    *quest.Engine
	chars     *character.Service
	chat      *chat.Handler
	presence  *player.Presence
	msg       player.Messenger
	roller    dice.Roller
	records   audit.Reader
	locks     *player.KeyedMutex
	opts      Options
	logger    *zap.Logger
}

// NewDispatcher creates a Dispatcher and registers it as the combat
// service's kill handler and relocator.
func NewDispatcher(d Deps, opts Options, logger *zap.Logger) *Dispatcher {
	if d.Roller == nil {
		d.Roller = dice.New()
	}
	dsp := &Dispatcher{
		players:   d.Players,
		locations: d.Locations,
		actors:    d.Actors,
		questDefs: d.QuestDefs,
		events:    d.Events,
		combat:    d.Combat,
		quests:    d.Quests,
		chars:     d.Characters,
		chat:      d.Chat,
		presence:  d.Presence,
		msg:       d.Messenger,
		roller:    d.Roller,
		records:   d.Records,
		locks:     player.NewKeyedMutex(),
		opts:      opts,
		logger:    logger,
	}
	d.Combat.SetKillHandler(dsp)
	d.Combat.SetRelocator(dsp)
	return dsp
}

func splitCommand(input string) (verb, rest string) {
	input = strings.TrimSpace(input)
	if i := strings.IndexAny(input, " \t"); i >= 0 {
		return strings.ToLower(input[:i]), strings.TrimSpace(input[i+1:])
	}
	return strings.ToLower(input), ""
}

// Handle runs one line of player input.
func (d *Dispatcher) Handle(ctx context.Context, playerID, input string) error {
	input = strings.TrimSpace(input)
	if input == "" {
		return nil
	}
	unlock := d.locks.Lock(playerID)
	defer unlock()

	err := d.route(ctx, playerID, input)
	if err != nil {
		d.logger.Error("command failed",
			zap.String("player_id", playerID),
			zap.String("input", input),
			zap.Error(err))
		d.msg.SendToPlayer(playerID, player.ChannelError, genericError)
	}
	return err
}

func (d *Dispatcher) route(ctx context.Context, playerID, input string) error {
	res, err := d.events.HandleInput(ctx, playerID, input)
	if err != nil {
		return err
	}
	if res != nil {
		return d.deliverEvent(ctx, playerID, res)
	}

	verb, rest := splitCommand(input)
	if d.combat.InCombat(playerID) {
		switch verb {
		case "flee", "run":
			return d.combat.HandleFlee(ctx, playerID)
		case "say", "look", "l", "status", "help":
		default:
			return d.combat.HandleCombatCommand(ctx, playerID, input)
		}
	}

	p, err := d.players.FindByID(ctx, playerID)
	if err != nil {
		return err
	}
	switch verb {
	case "fight", "attack", "kill":
		return d.combat.HandleFight(ctx, playerID, rest)
	case "talk":
		return d.talk(ctx, p, rest)
	case "say":
		return d.chat.Say(ctx, p, rest)
	case "move", "go":
		return d.move(ctx, p, rest)
	case "look", "l":
		return d.look(ctx, p)
	case "status":
		d.status(p)
		return nil
	case "quests", "journal":
		return d.journal(ctx, p)
	case "history":
		return d.history(ctx, p)
	case "help":
		d.msg.SendToPlayer(playerID, player.ChannelInfo, helpText)
		return nil
	}
	if _, ok := findExit(d.currentLocation(ctx, p), verb); ok {
		return d.move(ctx, p, verb)
	}
	d.msg.SendToPlayer(playerID, player.ChannelError, fmt.Sprintf("Unknown command: %s. Type \"help\" for a list of commands.", verb))
	return nil
}

const helpText = `Commands:
  look                 describe your surroundings
  move <direction>     walk through an exit (or just type the direction)
  talk <name>          talk to someone here
  say <text>           speak to everyone here
  fight [name]         attack what is in front of you
  <move name>          use a combat move while fighting
  flee                 try to escape a fight
  status               show your condition
  quests               show your quest journal
  history              show your recent fights and quests`

func (d *Dispatcher) deliverEvent(ctx context.Context, playerID string, res *event.Result) error {
	if res.Message != "" {
		channel := player.ChannelInfo
		if res.Error {
			channel = player.ChannelError
		}
		d.msg.SendToPlayer(playerID, channel, res.Message)
	}
	if res.Teleport == nil {
		return nil
	}
	p, err := d.players.FindByID(ctx, playerID)
	if err != nil {
		return err
	}
	if err := d.Relocate(ctx, p, res.Teleport.LocationID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			d.logger.Warn("event teleport target missing",
				zap.String("player_id", playerID),
				zap.String("location_id", res.Teleport.LocationID))
			return nil
		}
		return err
	}
	return nil
}

func (d *Dispatcher) status(p *model.Character) {
	d.msg.SendToPlayer(p.ID, player.ChannelPlayerStatus, player.StatusPayload{
		CurrentHitpoints: p.Stat(model.StatCurrentHitpoints),
		Hitpoints:        p.Stat(model.StatHitpoints),
		CurrentEnergy:    p.Stat(model.StatCurrentEnergy),
		Energy:           p.Stat(model.StatEnergy),
		Level:            p.Level(),
		Experience:       p.Experience,
	})
	class := p.Class()
	if class == "" {
		class = "no class"
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%s, level %d (%s)\nHP %d/%d  Energy %d/%d  XP %d/%d",
		p.AvatarName, p.Level(), class,
		p.Stat(model.StatCurrentHitpoints), p.Stat(model.StatHitpoints),
		p.Stat(model.StatCurrentEnergy), p.Stat(model.StatEnergy),
		p.Experience, character.ExperienceForLevel(p.Level()+1))
	for _, a := range model.Attributes {
		fmt.Fprintf(&b, "\n  %-9s %d", a, p.Stat(a))
	}
	d.msg.SendToPlayer(p.ID, player.ChannelInfo, b.String())
}

func (d *Dispatcher) journal(ctx context.Context, p *model.Character) error {
	var lines []string
	for _, rec := range p.Quests {
		if rec.Completed {
			continue
		}
		def, err := d.questDefs.FindByID(ctx, rec.QuestID)
		if err != nil {
			d.logger.Warn("journal quest missing",
				zap.String("player_id", p.ID),
				zap.String("quest_id", rec.QuestID),
				zap.Error(err))
			continue
		}
		line := def.Title
		if ev := def.Event(rec.CurrentEventID); ev != nil && ev.Message != "" {
			line += ": " + ev.Message
		}
		lines = append(lines, line)
	}
	if len(lines) == 0 {
		d.msg.SendToPlayer(p.ID, player.ChannelQuests, "You have no active quests.")
		return nil
	}
	d.msg.SendToPlayer(p.ID, player.ChannelQuests, "Active quests:\n"+strings.Join(lines, "\n"))
	return nil
}
