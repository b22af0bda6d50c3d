// Package event runs per-player conversations and story events: it walks an
// event tree one numeric choice at a time and executes the special choice
// kinds (combat, skill check, teleport, quest triggers).
package event

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/ryanroundhouse/punk-mud-sub000/game/dice"
	"github.com/ryanroundhouse/punk-mud-sub000/game/eventtree"
	"github.com/ryanroundhouse/punk-mud-sub000/game/gate"
	"github.com/ryanroundhouse/punk-mud-sub000/game/quest"
	"github.com/ryanroundhouse/punk-mud-sub000/model"
	"github.com/ryanroundhouse/punk-mud-sub000/store"
	"go.uber.org/zap"
)

const (
	endMessage       = "The conversation ends."
	brokenMessage    = "The conversation trails off."
	tiredMessage     = "You are too exhausted to fight."
	noFoeMessage     = "Your opponent is nowhere to be found."
	combatEnergyCost = 1
)

// EventStore resolves events and actor conversations.
type EventStore interface {
	FindByID(ctx context.Context, id string) (*model.Event, error)
	FindConversation(ctx context.Context, actorID string) (*model.Event, error)
}

// PlayerStore is the player persistence the machine needs.
type PlayerStore interface {
	FindByID(ctx context.Context, id string) (*model.Character, error)
	UpdateFields(ctx context.Context, id string, fields map[string]interface{}) error
}

// QuestProgressor applies quest completion events and activations.
type QuestProgressor interface {
	HandleQuestProgression(ctx context.Context, p *model.Character, actorID string, completionEventIDs []string, questToActivate string) (*quest.Update, error)
}

// CombatStarter starts a fight against a fresh mob instance.
type CombatStarter interface {
	StartCombat(ctx context.Context, playerID, templateID string) error
}

// TeleportAction asks the caller to move the player.
type TeleportAction struct {
	LocationID string
}

// Result is the outcome of one step.
type Result struct {
	Message         string
	HasChoices      bool
	IsEnd           bool
	Error           bool
	CombatInitiated bool
	Teleport        *TeleportAction
}

// Response is a rendered node.
type Response struct {
	Message    string
	HasChoices bool
	IsEnd      bool
	Choices    []gate.IndexedChoice
}

// Deps are the collaborators of the Machine.
type Deps struct {
	Events   EventStore
	Players  PlayerStore
	Quests   QuestProgressor
	Combat   CombatStarter
	Sessions *SessionStore
	Roller   dice.Roller
}

// Machine is the event and conversation state machine.
type Machine struct {
	events   EventStore
	players  PlayerStore
	quests   QuestProgressor
	combat   CombatStarter
	sessions *SessionStore
	roller   dice.Roller
	logger   *zap.Logger
}

// NewMachine creates a Machine.
func NewMachine(d Deps, logger *zap.Logger) *Machine {
	if d.Roller == nil {
		d.Roller = dice.New()
	}
	return &Machine{
		events:   d.Events,
		players:  d.Players,
		quests:   d.Quests,
		combat:   d.Combat,
		sessions: d.Sessions,
		roller:   d.Roller,
		logger:   logger,
	}
}

// FormatResponse renders the prompt and the player's visible choices.
func FormatResponse(tree *eventtree.Tree, node eventtree.Node, p gate.Player) Response {
	valid := gate.FilterChoicesByRestrictions(tree, node.Choices, p)
	var b strings.Builder
	b.WriteString(node.Prompt)
	if len(valid) > 0 {
		b.WriteString("\n\nResponses:")
		for i, c := range valid {
			fmt.Fprintf(&b, "\n%d. %s", i+1, c.Choice.Text)
		}
	}
	return Response{
		Message:    b.String(),
		HasChoices: len(valid) > 0,
		IsEnd:      len(valid) == 0,
		Choices:    valid,
	}
}

// HasSession reports whether the player is inside an event.
func (m *Machine) HasSession(ctx context.Context, playerID string) bool {
	ok, err := m.sessions.Exists(ctx, playerID)
	return err == nil && ok
}

// Abandon drops the player's session.
func (m *Machine) Abandon(ctx context.Context, playerID string) error {
	return m.sessions.Clear(ctx, playerID)
}

// StartEvent opens eventID at its root for p.
func (m *Machine) StartEvent(ctx context.Context, p *model.Character, eventID string) (*Result, error) {
	ev, err := m.events.FindByID(ctx, eventID)
	if err != nil {
		return nil, err
	}
	return m.begin(ctx, p, ev)
}

// StartConversation opens the actor's conversation. It returns nil when the
// actor has none.
func (m *Machine) StartConversation(ctx context.Context, p *model.Character, actorID string) (*Result, error) {
	ev, err := m.events.FindConversation(ctx, actorID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return m.begin(ctx, p, ev)
}

func (m *Machine) begin(ctx context.Context, p *model.Character, ev *model.Event) (*Result, error) {
	tree, err := eventtree.Parse(ev.RootNode)
	if err != nil {
		return nil, fmt.Errorf("event %q: %w", ev.ID, err)
	}
	root, _ := tree.Root()
	tree.EnsureConsistentQuestEvents(root.ID)

	resp := FormatResponse(tree, root, p)
	if !resp.HasChoices {
		_ = m.sessions.Clear(ctx, p.ID)
		return &Result{Message: resp.Message, IsEnd: true}, nil
	}
	sess := &Session{
		EventID:      ev.ID,
		NodeID:       root.ID,
		ActorID:      ev.ActorID,
		IsStoryEvent: ev.IsStoryEvent,
		History:      []string{},
	}
	if err := m.sessions.Save(ctx, p.ID, sess); err != nil {
		return nil, err
	}
	return &Result{Message: resp.Message, HasChoices: true}, nil
}

// HandleInput consumes one choice. It returns nil when the player has no
// session so the input can be handled as a command instead.
func (m *Machine) HandleInput(ctx context.Context, playerID, input string) (*Result, error) {
	sess, err := m.sessions.Get(ctx, playerID)
	if err != nil {
		m.logger.Error("event session load failed", zap.String("player_id", playerID), zap.Error(err))
		return m.terminate(ctx, playerID, brokenMessage), nil
	}
	if sess == nil {
		return nil, nil
	}
	p, err := m.players.FindByID(ctx, playerID)
	if err != nil {
		return nil, err
	}

	tree, err := m.loadTree(ctx, sess.EventID)
	if err != nil {
		m.logger.Warn("event session tree unavailable",
			zap.String("player_id", playerID),
			zap.String("event_id", sess.EventID),
			zap.Error(err))
		return m.terminate(ctx, playerID, brokenMessage), nil
	}
	node, ok := tree.FindNode(sess.NodeID)
	if !ok {
		m.logger.Warn("event session node missing",
			zap.String("player_id", playerID),
			zap.String("event_id", sess.EventID),
			zap.String("node_id", sess.NodeID))
		return m.terminate(ctx, playerID, brokenMessage), nil
	}
	tree.EnsureConsistentQuestEvents(node.ID)

	valid := gate.FilterChoicesByRestrictions(tree, node.Choices, p)
	if len(valid) == 0 {
		return m.terminate(ctx, playerID, node.Prompt), nil
	}
	picked, err := gate.ValidateChoiceInput(input, valid)
	if err != nil {
		// keep the session alive for a retry
		if serr := m.sessions.Touch(ctx, playerID); serr != nil {
			m.logger.Warn("event session refresh failed", zap.String("player_id", playerID), zap.Error(serr))
		}
		return &Result{Error: true, Message: err.Error(), HasChoices: true}, nil
	}
	return m.execute(ctx, sess, tree, p, picked.Choice)
}

func (m *Machine) loadTree(ctx context.Context, eventID string) (*eventtree.Tree, error) {
	ev, err := m.events.FindByID(ctx, eventID)
	if err != nil {
		return nil, err
	}
	return eventtree.Parse(ev.RootNode)
}

func (m *Machine) terminate(ctx context.Context, playerID, msg string) *Result {
	if err := m.sessions.Clear(ctx, playerID); err != nil {
		m.logger.Warn("event session clear failed", zap.String("player_id", playerID), zap.Error(err))
	}
	return &Result{Message: msg, IsEnd: true}
}

func (m *Machine) execute(ctx context.Context, sess *Session, tree *eventtree.Tree, p *model.Character, c eventtree.Choice) (*Result, error) {
	switch {
	case c.MobID != "":
		return m.startCombat(ctx, p, c), nil
	case c.IsSkillCheck():
		return m.skillCheck(ctx, sess, tree, p, c)
	}

	res, err := m.branch(ctx, sess, tree, p, c)
	if err != nil {
		return nil, err
	}
	if c.TeleportToNode != "" {
		res.Teleport = &TeleportAction{LocationID: c.TeleportToNode}
	}
	return res, nil
}

func (m *Machine) startCombat(ctx context.Context, p *model.Character, c eventtree.Choice) *Result {
	energy := p.Stat(model.StatCurrentEnergy)
	if energy < combatEnergyCost {
		return m.terminate(ctx, p.ID, tiredMessage)
	}
	p.SetStat(model.StatCurrentEnergy, energy-combatEnergyCost)
	if err := m.players.UpdateFields(ctx, p.ID, map[string]interface{}{"stats": p.Stats}); err != nil {
		m.logger.Error("combat energy cost not saved", zap.String("player_id", p.ID), zap.Error(err))
	}
	m.terminate(ctx, p.ID, "")

	if err := m.combat.StartCombat(ctx, p.ID, c.MobID); err != nil {
		m.logger.Warn("event combat failed to start",
			zap.String("player_id", p.ID),
			zap.String("mob_id", c.MobID),
			zap.Error(err))
		return &Result{Message: noFoeMessage, IsEnd: true}
	}
	return &Result{IsEnd: true, CombatInitiated: true}
}

func (m *Machine) skillCheck(ctx context.Context, sess *Session, tree *eventtree.Tree, p *model.Character, c eventtree.Choice) (*Result, error) {
	roll, err := dice.D20(m.roller)
	if err != nil {
		return nil, fmt.Errorf("skill check %s: %w", c.SkillCheckStat, err)
	}
	stat := p.Stat(c.SkillCheckStat)
	total := roll + stat
	passed := total >= c.SkillCheckTargetNumber

	verdict, target := "Failure.", c.Failure
	if passed {
		verdict, target = "Success!", c.Next
	}
	text := fmt.Sprintf("Skill check (%s): rolled %d + %d = %d vs %d. %s",
		c.SkillCheckStat, roll, stat, total, c.SkillCheckTargetNumber, verdict)

	if target == "" {
		return m.terminate(ctx, p.ID, text), nil
	}
	node, ok := tree.FindNode(target)
	if !ok {
		return m.terminate(ctx, p.ID, text), nil
	}
	return m.continueTo(ctx, sess, tree, p, node, text)
}

// branch applies quest triggers from the choice or its next node, then
// continues. Choice-level values take precedence.
func (m *Machine) branch(ctx context.Context, sess *Session, tree *eventtree.Tree, p *model.Character, c eventtree.Choice) (*Result, error) {
	var next eventtree.Node
	hasNext := false
	if c.Next != "" {
		if next, hasNext = tree.FindNode(c.Next); !hasNext {
			return m.terminate(ctx, p.ID, brokenMessage), nil
		}
	}

	events := c.QuestCompletionEvents
	if len(events) == 0 && hasNext {
		events = next.QuestCompletionEvents
	}
	activate := c.ActivateQuestID
	if activate == "" && hasNext {
		activate = next.ActivateQuestID
	}
	if len(events) > 0 || activate != "" {
		if _, err := m.quests.HandleQuestProgression(ctx, p, sess.ActorID, events, activate); err != nil {
			m.logger.Warn("quest progression from event failed",
				zap.String("player_id", p.ID),
				zap.String("event_id", sess.EventID),
				zap.Error(err))
		}
		fresh, err := m.players.FindByID(ctx, p.ID)
		if err != nil {
			return nil, err
		}
		p = fresh
	}

	if !hasNext {
		return m.terminate(ctx, p.ID, endMessage), nil
	}
	return m.continueTo(ctx, sess, tree, p, next, "")
}

func (m *Machine) continueTo(ctx context.Context, sess *Session, tree *eventtree.Tree, p *model.Character, node eventtree.Node, prefix string) (*Result, error) {
	tree.EnsureConsistentQuestEvents(node.ID)
	resp := FormatResponse(tree, node, p)
	msg := resp.Message
	if prefix != "" {
		msg = prefix + "\n\n" + msg
	}
	if !resp.HasChoices {
		return m.terminate(ctx, p.ID, msg), nil
	}
	sess.History = append(sess.History, sess.NodeID)
	sess.NodeID = node.ID
	if err := m.sessions.Save(ctx, p.ID, sess); err != nil {
		return nil, err
	}
	return &Result{Message: msg, HasChoices: true}, nil
}
