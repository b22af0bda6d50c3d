package character_test

import (
	"context"
	"testing"

	"github.com/ryanroundhouse/punk-mud-sub000/game/character"
	"github.com/ryanroundhouse/punk-mud-sub000/model"
	"github.com/ryanroundhouse/punk-mud-sub000/store"
	"github.com/ryanroundhouse/punk-mud-sub000/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/datatypes"
)

func enforcer() *model.Class {
	return &model.Class{
		ID: "c-enf", Name: "Enforcer",
		PrimaryStat: model.StatBody, SecondaryStat: model.StatReflexes,
		BaseHitpoints: 20, HitpointsPerLevel: 5,
		Moves: datatypes.JSONSlice[model.ClassMove]{
			{Level: 1, MoveID: "m-punch"},
			{Level: 2, MoveID: "m-slam"},
			{Level: 5, MoveID: "m-crush"},
		},
	}
}

func TestDeriveStats(t *testing.T) {
	s := character.DeriveStats(enforcer(), 2, model.Stats{model.StatEnergy: 12, model.StatArmor: 3})
	assert.Equal(t, 10+2+4, s[model.StatBody], "primary grows 3 per level")
	assert.Equal(t, 10+2+2, s[model.StatReflexes], "secondary grows 2 per level")
	assert.Equal(t, 12, s[model.StatTech])
	assert.Equal(t, 30, s[model.StatHitpoints])
	assert.Equal(t, 30, s[model.StatCurrentHitpoints])
	assert.Equal(t, 12, s[model.StatEnergy])
	assert.Equal(t, 3, s[model.StatArmor])
}

func TestApplyClass_GrantsLevelGatedMoves(t *testing.T) {
	c := character.New("Neo", "loc")
	c.SetStat(model.StatLevel, 2)
	character.ApplyClass(c, enforcer())

	assert.Equal(t, "c-enf", c.ClassID)
	assert.Equal(t, "Enforcer", c.ClassName)
	assert.Equal(t, []string{"m-punch", "m-slam"}, []string(c.Moves))
}

func TestExperienceForLevel(t *testing.T) {
	assert.Equal(t, 0, character.ExperienceForLevel(1))
	assert.Equal(t, 100, character.ExperienceForLevel(2))
	assert.Equal(t, 300, character.ExperienceForLevel(3))
	assert.Equal(t, 600, character.ExperienceForLevel(4))
}

func TestApplyExperience_LevelsUpAcrossThresholds(t *testing.T) {
	c := character.New("Neo", "loc")
	character.ApplyClass(c, enforcer())
	c.SetStat(model.StatCurrentHitpoints, 1)

	a := character.ApplyExperience(c, enforcer(), 320)
	assert.Equal(t, 1, a.OldLevel)
	assert.Equal(t, 3, a.NewLevel)
	assert.True(t, a.LeveledUp())
	assert.Equal(t, []string{"m-slam"}, a.NewMoves)
	assert.Equal(t, 35, c.Stat(model.StatCurrentHitpoints), "refilled to new max")
	assert.Contains(t, a.Summary(), "level 3")

	a = character.ApplyExperience(c, enforcer(), 10)
	assert.False(t, a.LeveledUp())
	assert.Equal(t, 330, c.Experience)
}

func TestService_AwardExperiencePersists(t *testing.T) {
	db := testutil.SetupTestDB(t)
	st := store.New(db)
	ctx := context.Background()
	require.NoError(t, st.Classes.Upsert(ctx, *enforcer()))

	c := character.New("Neo", "loc")
	character.ApplyClass(c, enforcer())
	require.NoError(t, st.Players.Create(ctx, c))

	svc := character.NewService(st.Players, st.Classes, zap.NewNop())
	a, err := svc.AwardExperience(ctx, c.ID, 100)
	require.NoError(t, err)
	assert.Equal(t, 2, a.NewLevel)

	got, err := st.Players.FindByID(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, 100, got.Experience)
	assert.Equal(t, 2, got.Level())
	assert.True(t, got.KnowsMove("m-slam"))
}
