package commands

import (
	"context"
	"testing"
	"time"

	"github.com/ryanroundhouse/punk-mud-sub000/game/character"
	"github.com/ryanroundhouse/punk-mud-sub000/game/chat"
	"github.com/ryanroundhouse/punk-mud-sub000/game/combat"
	"github.com/ryanroundhouse/punk-mud-sub000/game/dice"
	"github.com/ryanroundhouse/punk-mud-sub000/game/event"
	"github.com/ryanroundhouse/punk-mud-sub000/game/player"
	"github.com/ryanroundhouse/punk-mud-sub000/game/quest"
	"github.com/ryanroundhouse/punk-mud-sub000/model"
	"github.com/ryanroundhouse/punk-mud-sub000/store"
	"github.com/ryanroundhouse/punk-mud-sub000/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/datatypes"
)

type world struct {
	d        *Dispatcher
	st       *store.Stores
	msg      *testutil.RecordingMessenger
	presence *player.Presence
	pid      string
}

func seedWorld(t *testing.T, st *store.Stores) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, st.Moves.Upsert(ctx,
		model.Move{ID: "mv-punch", Name: "Punch", AttackStat: "body", DefenceStat: "body", Delay: 1, BasePower: 50, DamageDice: 1},
		model.Move{ID: "mv-claw", Name: "Claw", AttackStat: "body", DefenceStat: "body", Delay: 3, BasePower: 1, DamageDice: 1},
	))
	require.NoError(t, st.Mobs.Upsert(ctx, model.MobTemplate{
		ID:               "thug",
		Name:             "Thug",
		Stats:            datatypes.NewJSONType(model.Stats{model.StatHitpoints: 10, "body": 1}),
		ExperiencePoints: 25,
		Moves:            datatypes.JSONSlice[model.MobMove]{{MoveID: "mv-claw", UsageChance: 100}},
	}))
	require.NoError(t, st.Locations.Upsert(ctx,
		model.Location{ID: "loc-0", Name: "Neon Bar", Description: "Smoke and synth music.",
			Exits: datatypes.JSONSlice[model.Exit]{{Direction: "east", Target: "loc-1"}, {Direction: "up", Target: "loc-2"}}},
		model.Location{ID: "loc-1", Name: "Back Alley",
			Exits:     datatypes.JSONSlice[model.Exit]{{Direction: "west", Target: "loc-0"}},
			MobSpawns: datatypes.JSONSlice[string]{"thug"}},
		model.Location{ID: "loc-2", Name: "Lobby", EventID: "ev-elevator"},
		model.Location{ID: "loc-roof", Name: "Roof"},
	))
	require.NoError(t, st.Actors.Upsert(ctx,
		model.Actor{ID: "fixer", Name: "Fixer", LocationID: "loc-0"},
		model.Actor{ID: "vendor", Name: "Vendor", LocationID: "loc-0",
			ChatMessages: datatypes.JSONSlice[string]{"Bring me proof."}},
	))
	require.NoError(t, st.Events.Upsert(ctx,
		model.Event{ID: "ev-fixer", ActorID: "fixer", RootNode: datatypes.JSON(`{
		  "prompt": "Need work?",
		  "choices": [{"text": "Yes", "nextNode": {"prompt": "Come back later."}}, {"text": "Exit"}]}`)},
		model.Event{ID: "ev-elevator", IsStoryEvent: true, RootNode: datatypes.JSON(`{
		  "prompt": "An elevator waits.",
		  "choices": [{"text": "Ride up", "teleportToNode": "loc-roof"}]}`)},
	))
	require.NoError(t, st.Quests.Upsert(ctx, model.Quest{
		ID:    "q-bounty",
		Title: "Bounty",
		Events: datatypes.JSONSlice[model.QuestEvent]{
			{ID: "b-start", IsStart: true, ActorID: "vendor", Message: "Take out a thug.",
				Choices: []model.QuestChoice{{NextEventID: "b-kill"}}},
			{ID: "b-kill", EventType: model.QuestEventKill, MobID: "thug", Quantity: 1, IsEnd: true,
				Message: "The vendor pays up.",
				Rewards: []model.Reward{{Type: model.RewardExperience, Value: "100"}}},
		},
	}))
}

func newWorld(t *testing.T, roller dice.Roller, opts Options) *world {
	t.Helper()
	ctx := context.Background()
	st := store.New(testutil.SetupTestDB(t))
	seedWorld(t, st)
	c, ps := testutil.SetupTestCache(t)

	p := character.New("Neo", "loc-0")
	p.Moves = datatypes.JSONSlice[string]{"mv-punch"}
	require.NoError(t, st.Players.Create(ctx, p))

	logger := zap.NewNop()
	msg := &testutil.RecordingMessenger{}
	presence := player.NewPresence(c)
	chars := character.NewService(st.Players, st.Classes, logger)
	quests := quest.NewEngine(quest.Deps{
		Players:    st.Players,
		Quests:     st.Quests,
		Experience: chars,
		Classes:    chars,
		Messenger:  msg,
	}, logger)
	fights := combat.NewService(combat.Deps{
		Players:   st.Players,
		Moves:     st.Moves,
		Locations: st.Locations,
		Factory:   combat.NewMobFactory(st.Mobs, st.Moves, logger),
		Roller:    roller,
		Messenger: msg,
	}, combat.Options{FleeChance: 0.5, StartLocationID: "loc-0"}, logger)
	events := event.NewMachine(event.Deps{
		Events:   st.Events,
		Players:  st.Players,
		Quests:   quests,
		Combat:   fights,
		Sessions: event.NewSessionStore(c, time.Minute),
		Roller:   roller,
	}, logger)

	chatH := chat.NewHandler(c, ps, presence, msg, 10, logger)
	stopChat, err := chatH.Subscribe(ctx, "loc-0", "loc-1", "loc-2", "loc-roof")
	require.NoError(t, err)
	t.Cleanup(stopChat)

	d := NewDispatcher(Deps{
		Players:    st.Players,
		Locations:  st.Locations,
		Actors:     st.Actors,
		QuestDefs:  st.Quests,
		Events:     events,
		Combat:     fights,
		Quests:     quests,
		Characters: chars,
		Chat:       chatH,
		Presence:   presence,
		Messenger:  msg,
		Roller:     roller,
	}, opts, logger)
	return &world{d: d, st: st, msg: msg, presence: presence, pid: p.ID}
}

func (w *world) do(t *testing.T, input string) {
	t.Helper()
	require.NoError(t, w.d.Handle(context.Background(), w.pid, input))
}

func (w *world) reload(t *testing.T) *model.Character {
	t.Helper()
	p, err := w.st.Players.FindByID(context.Background(), w.pid)
	require.NoError(t, err)
	return p
}

func TestMove_RelocatesAndSpawnsEncounter(t *testing.T) {
	w := newWorld(t, dice.NewScript(1), Options{})
	w.do(t, "go east")

	assert.Equal(t, "loc-1", w.reload(t).LocationID)
	members, err := w.presence.Members(context.Background(), "loc-1")
	require.NoError(t, err)
	assert.Contains(t, members, w.pid)

	assert.True(t, w.msg.Contains(w.pid, player.ChannelList, "Back Alley"))
	assert.True(t, w.msg.Contains(w.pid, player.ChannelList, "A Thug is here."))
	left := w.msg.Broadcasts("loc-0")
	require.Len(t, left, 1)
	assert.Equal(t, "Neo leaves.", left[0].Text())
	assert.Equal(t, w.pid, left[0].Exclude)
}

func TestMove_DirectionShorthandAndBadExit(t *testing.T) {
	w := newWorld(t, dice.NewScript(1), Options{})
	w.do(t, "south")
	assert.True(t, w.msg.Contains(w.pid, player.ChannelError, "Unknown command: south"))

	w.do(t, "move south")
	assert.True(t, w.msg.Contains(w.pid, player.ChannelError, "You can't go that way."))

	w.do(t, "e")
	assert.Equal(t, "loc-1", w.reload(t).LocationID)
}

func TestLook_DescribesRoom(t *testing.T) {
	w := newWorld(t, dice.NewScript(), Options{})
	w.do(t, "look")

	texts := w.msg.Texts(w.pid, player.ChannelList)
	require.Len(t, texts, 1)
	assert.Equal(t, "Neon Bar\nSmoke and synth music.\nExits: east, up\nYou see: Fixer, Vendor", texts[0])
}

func TestTalk_OpensConversationAndRoutesChoices(t *testing.T) {
	w := newWorld(t, dice.NewScript(), Options{})
	w.do(t, "talk fix")
	assert.True(t, w.msg.Contains(w.pid, player.ChannelInfo, "Need work?\n\nResponses:\n1. Yes\n2. Exit"))

	w.do(t, "look")
	assert.True(t, w.msg.Contains(w.pid, player.ChannelError, "Please enter a number between 1 and 2."),
		"input goes to the open conversation first")

	w.do(t, "2")
	assert.True(t, w.msg.Contains(w.pid, player.ChannelInfo, "The conversation ends."))

	w.msg.Reset()
	w.do(t, "look")
	assert.NotEmpty(t, w.msg.Texts(w.pid, player.ChannelList))
}

func TestTalk_StartsQuestThenFallsBackToChatter(t *testing.T) {
	w := newWorld(t, dice.NewScript(), Options{})
	w.do(t, "talk vendor")
	assert.True(t, w.msg.Contains(w.pid, player.ChannelQuests, "New quest: Bounty"))
	assert.True(t, w.reload(t).HasActiveQuest("q-bounty"))

	w.do(t, "talk vendor")
	assert.Equal(t, []string{"Vendor says: Bring me proof."}, w.msg.Texts(w.pid, player.ChannelChat))

	w.do(t, "talk nobody")
	assert.True(t, w.msg.Contains(w.pid, player.ChannelError, "There is no one called nobody here."))
}

func TestKill_AwardsExperienceAndAdvancesQuest(t *testing.T) {
	w := newWorld(t, dice.NewScript(1, 15, 1, 1), Options{})
	w.do(t, "talk vendor")
	w.do(t, "east")
	w.do(t, "fight thug")
	require.True(t, w.d.combat.InCombat(w.pid))

	w.do(t, "punch")
	assert.False(t, w.d.combat.InCombat(w.pid))
	assert.True(t, w.msg.Contains(w.pid, player.ChannelCombat, "You have defeated Thug!"))
	assert.True(t, w.msg.Contains(w.pid, player.ChannelSuccess, "You gained 25 experience."))
	assert.True(t, w.msg.Contains(w.pid, player.ChannelQuests, "Quest completed: Bounty"))

	p := w.reload(t)
	assert.Equal(t, 125, p.Experience)
	assert.Equal(t, 2, p.Level())
	rec := p.QuestRecord("q-bounty")
	require.NotNil(t, rec)
	assert.True(t, rec.Completed)
}

func TestCombat_UnknownMoveWhileFighting(t *testing.T) {
	w := newWorld(t, dice.NewScript(1), Options{})
	w.do(t, "east")
	w.do(t, "fight")
	w.do(t, "dance")
	assert.True(t, w.msg.Contains(w.pid, player.ChannelError, `You don't know a move called "dance".`))
	assert.True(t, w.d.combat.InCombat(w.pid))
}

func TestStoryEventTeleports(t *testing.T) {
	w := newWorld(t, dice.NewScript(), Options{})
	w.do(t, "up")
	assert.True(t, w.msg.Contains(w.pid, player.ChannelInfo, "An elevator waits."))

	w.do(t, "1")
	assert.Equal(t, "loc-roof", w.reload(t).LocationID)
	assert.True(t, w.msg.Contains(w.pid, player.ChannelList, "Roof"))
}

func TestSay_ReachesRoom(t *testing.T) {
	w := newWorld(t, dice.NewScript(), Options{})
	ctx := context.Background()
	require.NoError(t, w.presence.Move(ctx, "other", "", "loc-0"))

	w.do(t, "say hello there")
	assert.True(t, w.msg.Contains(w.pid, player.ChannelChat, "You say: hello there"))
	assert.Eventually(t, func() bool {
		return w.msg.Contains("other", player.ChannelChat, "Neo says: hello there")
	}, time.Second, 10*time.Millisecond)
}

func TestSweepIdle_ExpiresStaleFights(t *testing.T) {
	w := newWorld(t, dice.NewScript(1), Options{IdleTTL: time.Nanosecond})
	w.do(t, "east")
	w.do(t, "fight")
	require.True(t, w.d.combat.InCombat(w.pid))

	time.Sleep(5 * time.Millisecond)
	assert.Equal(t, 1, w.d.SweepIdle(context.Background()))
	assert.False(t, w.d.combat.InCombat(w.pid))
	assert.True(t, w.msg.Contains(w.pid, player.ChannelInfo, "Thug loses interest"))
}

func TestLoginConnectDisconnect(t *testing.T) {
	w := newWorld(t, dice.NewScript(), Options{StartLocationID: "loc-0"})
	ctx := context.Background()

	_, err := w.d.Login(ctx, "two words")
	assert.ErrorIs(t, err, ErrBadName)

	fresh, err := w.d.Login(ctx, "Trinity")
	require.NoError(t, err)
	assert.Equal(t, "loc-0", fresh.LocationID)
	again, err := w.d.Login(ctx, "Trinity")
	require.NoError(t, err)
	assert.Equal(t, fresh.ID, again.ID)

	require.NoError(t, w.d.Connect(ctx, fresh.ID))
	members, err := w.presence.Members(ctx, "loc-0")
	require.NoError(t, err)
	assert.Contains(t, members, fresh.ID)
	assert.True(t, w.msg.Contains(fresh.ID, player.ChannelSuccess, "Welcome back, Trinity."))
	require.Len(t, w.msg.Broadcasts("loc-0"), 1)

	require.NoError(t, w.d.Connect(ctx, fresh.ID))
	assert.Len(t, w.msg.Broadcasts("loc-0"), 1, "reconnect is not announced twice")

	w.d.Disconnect(ctx, fresh.ID)
	members, err = w.presence.Members(ctx, "loc-0")
	require.NoError(t, err)
	assert.NotContains(t, members, fresh.ID)
}

func TestStatusAndJournal(t *testing.T) {
	w := newWorld(t, dice.NewScript(), Options{})
	w.do(t, "status")
	assert.True(t, w.msg.Contains(w.pid, player.ChannelInfo, "Neo, level 1 (no class)"))
	var sawStatus bool
	for _, m := range w.msg.Sent {
		if m.Channel == player.ChannelPlayerStatus {
			_, sawStatus = m.Payload.(player.StatusPayload)
		}
	}
	assert.True(t, sawStatus)

	w.do(t, "quests")
	assert.True(t, w.msg.Contains(w.pid, player.ChannelQuests, "You have no active quests."))

	w.do(t, "talk vendor")
	w.msg.Reset()
	w.do(t, "journal")
	assert.True(t, w.msg.Contains(w.pid, player.ChannelQuests, "Active quests:\nBounty"))
}
