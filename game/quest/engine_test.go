package quest

import (
	"context"
	"testing"

	"github.com/ryanroundhouse/punk-mud-sub000/game/character"
	"github.com/ryanroundhouse/punk-mud-sub000/game/player"
	"github.com/ryanroundhouse/punk-mud-sub000/model"
	"github.com/ryanroundhouse/punk-mud-sub000/store"
	"github.com/ryanroundhouse/punk-mud-sub000/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/datatypes"
)

type awardCall struct {
	PlayerID string
	Amount   int
}

// recordingAwarder records every award and forwards it to the real service.
type recordingAwarder struct {
	next  ExperienceAwarder
	calls []awardCall
}

func (r *recordingAwarder) AwardExperience(ctx context.Context, playerID string, amount int) (character.Award, error) {
	r.calls = append(r.calls, awardCall{playerID, amount})
	return r.next.AwardExperience(ctx, playerID, amount)
}

type harness struct {
	eng    *Engine
	st     *store.Stores
	msg    *testutil.RecordingMessenger
	awards *recordingAwarder
	p      *model.Character
}

func jobQuest() model.Quest {
	return model.Quest{
		ID:    "q-job",
		Title: "First Job",
		Events: datatypes.JSONSlice[model.QuestEvent]{
			{ID: "start", IsStart: true, ActorID: "fixer", Message: "The fixer has work for you.",
				Choices: []model.QuestChoice{{NextEventID: "mid"}}},
			{ID: "mid", ActorID: "fixer", Message: "Deliver the package.",
				Choices: []model.QuestChoice{{NextEventID: "end"}}},
			{ID: "end", IsEnd: true, Message: "Paid in full.",
				Rewards: []model.Reward{{Type: model.RewardExperience, Value: "100"}}},
		},
	}
}

func bountyQuest() model.Quest {
	return model.Quest{
		ID:    "q-bounty",
		Title: "Bounty",
		Events: datatypes.JSONSlice[model.QuestEvent]{
			{ID: "b-start", IsStart: true, Choices: []model.QuestChoice{{NextEventID: "b-kill"}}},
			{ID: "b-kill", EventType: model.QuestEventKill, MobID: "thug", Quantity: 2, IsEnd: true,
				Rewards: []model.Reward{{Type: model.RewardGainClass, Value: "cls-enf"}}},
		},
	}
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	ctx := context.Background()
	st := store.New(testutil.SetupTestDB(t))
	require.NoError(t, st.Quests.Upsert(ctx, jobQuest(), bountyQuest()))
	require.NoError(t, st.Classes.Upsert(ctx, model.Class{
		ID: "cls-enf", Name: "Enforcer",
		PrimaryStat: model.StatBody, SecondaryStat: model.StatReflexes,
		BaseHitpoints: 30, HitpointsPerLevel: 5,
		Moves: datatypes.JSONSlice[model.ClassMove]{{Level: 1, MoveID: "mv-punch"}},
	}))

	p := character.New("Neo", "loc-1")
	require.NoError(t, st.Players.Create(ctx, p))

	logger := zap.NewNop()
	chars := character.NewService(st.Players, st.Classes, logger)
	awards := &recordingAwarder{next: chars}
	msg := &testutil.RecordingMessenger{}
	eng := NewEngine(Deps{
		Players:    st.Players,
		Quests:     st.Quests,
		Experience: awards,
		Classes:    chars,
		Messenger:  msg,
	}, logger)
	return &harness{eng: eng, st: st, msg: msg, awards: awards, p: p}
}

func TestActivateThenComplete(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	u, err := h.eng.HandleQuestProgression(ctx, h.p, "", nil, "q-job")
	require.NoError(t, err)
	require.NotNil(t, u)
	assert.Equal(t, UpdateStart, u.Type)
	require.Len(t, h.p.Quests, 1)
	assert.Equal(t, "start", h.p.Quests[0].CurrentEventID)
	assert.True(t, h.msg.Contains(h.p.ID, player.ChannelQuests, "New quest: First Job"))

	u, err = h.eng.HandleQuestProgression(ctx, h.p, "", []string{"mid"}, "")
	require.NoError(t, err)
	require.NotNil(t, u)
	assert.Equal(t, UpdateProgress, u.Type)
	assert.Equal(t, []string{"start"}, []string(h.p.Quests[0].CompletedEventIDs))

	u, err = h.eng.HandleQuestProgression(ctx, h.p, "", []string{"end"}, "")
	require.NoError(t, err)
	require.NotNil(t, u)
	assert.Equal(t, UpdateComplete, u.Type)
	assert.Equal(t, []awardCall{{h.p.ID, 100}}, h.awards.calls)
	assert.Equal(t, 100, u.Experience)
	assert.True(t, u.LevelUp)
	assert.Equal(t, 2, u.NewLevel)

	rec := h.p.Quests[0]
	assert.True(t, rec.Completed)
	assert.NotNil(t, rec.CompletedAt)
	assert.Equal(t, []string{"start", "mid"}, []string(rec.CompletedEventIDs))
	assert.Equal(t, 100, h.p.Experience, "player refreshed after the award")
	assert.True(t, h.msg.Contains(h.p.ID, player.ChannelQuests, "You gained 100 experience. You reached level 2!"))
}

func TestNoMatchingEventIsNoop(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	_, err := h.eng.HandleQuestProgression(ctx, h.p, "", nil, "q-job")
	require.NoError(t, err)
	h.msg.Reset()

	before := append([]model.UserQuest(nil), h.p.Quests...)
	u, err := h.eng.HandleQuestProgression(ctx, h.p, "", []string{"end", "nowhere"}, "")
	require.NoError(t, err)
	assert.Nil(t, u)
	assert.Equal(t, before, h.p.Quests)
	assert.Empty(t, h.awards.calls)
	assert.Empty(t, h.msg.Sent)

	stored, err := h.st.Players.FindByID(ctx, h.p.ID)
	require.NoError(t, err)
	assert.Equal(t, "start", stored.Quests[0].CurrentEventID)
}

func TestActivationOfActiveQuestIsIgnored(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	_, err := h.eng.HandleQuestProgression(ctx, h.p, "", nil, "q-job")
	require.NoError(t, err)

	u, err := h.eng.HandleQuestProgression(ctx, h.p, "", nil, "q-job")
	require.NoError(t, err)
	assert.Nil(t, u)
	assert.Len(t, h.p.Quests, 1)

	u, err = h.eng.HandleQuestProgression(ctx, h.p, "", nil, "q-missing")
	require.NoError(t, err)
	assert.Nil(t, u)
}

func TestUnknownActivationFallsThroughToActor(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	u, err := h.eng.HandleQuestProgression(ctx, h.p, "fixer", nil, "q-missing")
	require.NoError(t, err)
	require.NotNil(t, u)
	assert.Equal(t, UpdateStart, u.Type)
	assert.Equal(t, "q-job", u.QuestID)
	assert.False(t, h.p.HasQuest("q-missing"))
}

func TestActorStartsAndAdvancesQuest(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	u, err := h.eng.HandleQuestProgression(ctx, h.p, "fixer", nil, "")
	require.NoError(t, err)
	require.NotNil(t, u)
	assert.Equal(t, UpdateStart, u.Type)
	assert.Equal(t, "q-job", u.QuestID)

	u, err = h.eng.HandleQuestProgression(ctx, h.p, "fixer", nil, "")
	require.NoError(t, err)
	require.NotNil(t, u)
	assert.Equal(t, UpdateProgress, u.Type)
	assert.Equal(t, "mid", h.p.Quests[0].CurrentEventID)

	// the end event is not authored by the fixer
	u, err = h.eng.HandleQuestProgression(ctx, h.p, "fixer", nil, "")
	require.NoError(t, err)
	assert.Nil(t, u)

	u, err = h.eng.HandleQuestProgression(ctx, h.p, "stranger", nil, "")
	require.NoError(t, err)
	assert.Nil(t, u)
}

func TestHandleMobKill_CountsThenAdvances(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	_, err := h.eng.HandleQuestProgression(ctx, h.p, "", nil, "q-bounty")
	require.NoError(t, err)
	h.msg.Reset()

	updates, err := h.eng.HandleMobKill(ctx, h.p, "rat")
	require.NoError(t, err)
	assert.Empty(t, updates)

	updates, err = h.eng.HandleMobKill(ctx, h.p, "thug")
	require.NoError(t, err)
	require.Len(t, updates, 1)
	assert.Equal(t, UpdateKillProgress, updates[0].Type)
	assert.Equal(t, 1, updates[0].Remaining)
	assert.True(t, h.msg.Contains(h.p.ID, player.ChannelQuests, "Bounty: 1 remaining."))
	require.Len(t, h.p.Quests[0].KillProgress, 1)
	assert.Equal(t, model.KillProgress{EventID: "b-kill", Remaining: 1}, h.p.Quests[0].KillProgress[0])

	updates, err = h.eng.HandleMobKill(ctx, h.p, "thug")
	require.NoError(t, err)
	require.Len(t, updates, 1)
	assert.Equal(t, UpdateComplete, updates[0].Type)
	assert.Equal(t, "Enforcer", updates[0].ClassName)
	assert.Empty(t, h.p.Quests[0].KillProgress)
	assert.True(t, h.p.Quests[0].Completed)

	assert.Equal(t, "Enforcer", h.p.ClassName)
	assert.Equal(t, 10+1+2, h.p.Stat(model.StatBody))
	assert.Equal(t, 35, h.p.Stat(model.StatHitpoints))
	assert.True(t, h.p.KnowsMove("mv-punch"))

	for _, txt := range h.msg.Texts(h.p.ID, player.ChannelQuests) {
		assert.NotContains(t, txt, "damage")
	}
}
