package model_test

import (
	"testing"

	"github.com/ryanroundhouse/punk-mud-sub000/model"
	"github.com/ryanroundhouse/punk-mud-sub000/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
)

func TestAutoMigrate_InsertAndQuery(t *testing.T) {
	db := testutil.SetupTestDB(t)

	// Character with quest records
	char := &model.Character{AvatarName: "Neo", LocationID: "loc-1"}
	char.SetStats(model.Stats{model.StatLevel: 2, model.StatCurrentHitpoints: 30})
	char.Moves = datatypes.JSONSlice[string]{"move-1"}
	char.Quests = []model.UserQuest{{
		QuestID:           "q1",
		CurrentEventID:    "e2",
		CompletedEventIDs: datatypes.JSONSlice[string]{"e1"},
	}}
	require.NoError(t, db.Create(char).Error)
	assert.NotEmpty(t, char.ID)

	var found model.Character
	require.NoError(t, db.Preload("Quests").First(&found, "id = ?", char.ID).Error)
	assert.Equal(t, "Neo", found.AvatarName)
	assert.Equal(t, 2, found.Level())
	assert.Equal(t, 30, found.Stat(model.StatCurrentHitpoints))
	require.Len(t, found.Quests, 1)
	assert.Equal(t, "e2", found.Quests[0].CurrentEventID)
	assert.True(t, found.HasQuest("q1"))
	assert.Contains(t, found.QuestEventIDs(), "e1")
	assert.Contains(t, found.QuestEventIDs(), "e2")

	// Content
	move := &model.Move{ID: "move-1", Name: "punch", Success: datatypes.JSONSlice[model.MoveEffect]{
		{Effect: model.EffectStun, Target: model.TargetOpponent, Rounds: 1},
	}}
	require.NoError(t, db.Create(move).Error)

	var m model.Move
	require.NoError(t, db.First(&m, "id = ?", "move-1").Error)
	require.Len(t, m.Success, 1)
	assert.Equal(t, model.EffectStun, m.Success[0].Effect)

	quest := &model.Quest{ID: "q1", Title: "Intro", Events: datatypes.JSONSlice[model.QuestEvent]{
		{ID: "e1", IsStart: true, Choices: []model.QuestChoice{{NextEventID: "e2"}}},
		{ID: "e2", IsEnd: true},
	}}
	require.NoError(t, db.Create(quest).Error)

	al := &model.AuditLog{TraceID: "trace-001", PlayerID: char.ID, Action: "combat_victory"}
	require.NoError(t, db.Create(al).Error)
}

func TestMove_WithDefaults(t *testing.T) {
	m := model.Move{Name: "jab"}.WithDefaults()
	assert.Equal(t, model.DefaultBasePower, m.BasePower)
	assert.Equal(t, model.DefaultScalingFactor, m.ScalingFactor)
	assert.Equal(t, model.DefaultDamageDice, m.DamageDice)
	assert.Equal(t, model.DefaultDelay, m.Delay)

	m = model.Move{Delay: 4, BasePower: 7}.WithDefaults()
	assert.Equal(t, 4, m.Delay)
	assert.Equal(t, 7, m.BasePower)
}

func TestMoveEffect_Validate(t *testing.T) {
	assert.NoError(t, model.MoveEffect{Effect: model.EffectStun, Rounds: 1}.Validate())
	assert.Error(t, model.MoveEffect{Effect: model.EffectReduceStat, Rounds: 1}.Validate())
	assert.NoError(t, model.MoveEffect{Effect: model.EffectIncreaseStat, Stat: "body", Amount: 2}.Validate())
	assert.Error(t, model.MoveEffect{Effect: "heal"}.Validate())
}

func TestQuest_EventLookup(t *testing.T) {
	q := model.Quest{Events: datatypes.JSONSlice[model.QuestEvent]{
		{ID: "a"}, {ID: "b", IsStart: true},
	}}
	require.NotNil(t, q.Event("a"))
	assert.Nil(t, q.Event("zz"))
	assert.Equal(t, "b", q.StartEvent().ID)
}
