package combat

import (
	"errors"
	"testing"

	"github.com/ryanroundhouse/punk-mud-sub000/game/dice"
	"github.com/ryanroundhouse/punk-mud-sub000/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
)

func newPlayer(id, name string, stats model.Stats) *model.Character {
	c := &model.Character{ID: id, AvatarName: name}
	c.SetStats(stats)
	return c
}

func newMob(id, name string, stats model.Stats, moves ...MobMove) *MobInstance {
	return NewMobInstance(id, &model.MobTemplate{ID: "tpl-" + id, Name: name, Stats: datatypes.NewJSONType(stats)}, moves)
}

func TestResolveAttack_StrictWinAndTie(t *testing.T) {
	move := model.Move{Name: "jab", AttackStat: "body", DefenceStat: "body"}
	p := newPlayer("p1", "Neo", model.Stats{"body": 5})
	m := newMob("m1", "Thug", model.Stats{"body": 5, model.StatHitpoints: 10})

	r := NewResolver(NewEffectStore(), dice.NewScript(11, 10, 3))
	res, err := r.ResolveAttack(move, p, m)
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.GreaterOrEqual(t, res.Damage, 1)

	r = NewResolver(NewEffectStore(), dice.NewScript(10, 10))
	res, err = r.ResolveAttack(move, p, m)
	require.NoError(t, err)
	assert.False(t, res.Success, "ties favour the defender")
	assert.Equal(t, 0, res.Damage)
}

func TestResolveAttack_EndToEndDamage(t *testing.T) {
	move := model.Move{
		Name: "haymaker", BasePower: 5, ScalingFactor: 0.6, DamageDice: 8, Delay: 3,
		AttackStat: "body", DefenceStat: "agility",
	}
	p := newPlayer("p1", "Neo", model.Stats{"body": 10, model.StatLevel: 2})
	m := newMob("m1", "Thug", model.Stats{"agility": 8, model.StatArmor: 2, model.StatHitpoints: 30})

	r := NewResolver(NewEffectStore(), dice.NewScript(18, 3, 4))
	res, err := r.ResolveAttack(move, p, m)
	require.NoError(t, err)
	require.True(t, res.Success)
	assert.Equal(t, 28, res.AttackerTotal)
	assert.Equal(t, 11, res.DefenderTotal)
	assert.Equal(t, 4, res.DamageRoll)
	// floor((5 + 6 + 0 + 4 - 1) * 1.2 * 0.6) = floor(10.08)
	assert.Equal(t, 10, res.Damage)
	assert.Contains(t, res.Message, "Hit for 10 damage!")
}

func TestDamage_Floor(t *testing.T) {
	assert.Equal(t, 1, Damage(model.Move{BasePower: 1, Delay: 1}, 0, 0, 1, 40, 1))
	// defaults: basePower 3, scaling 0.6, delay 1
	assert.Equal(t, 1, Damage(model.Move{}, 0, 0, 1, 0, 0))
}

func TestResolveAttack_EffectsAndStun(t *testing.T) {
	move := model.Move{
		Name: "shock", AttackStat: "tech", DefenceStat: "tech",
		SuccessMessage: "[name] zaps [opponent]!",
		Success: datatypes.JSONSlice[model.MoveEffect]{
			{Effect: model.EffectStun, Target: model.TargetOpponent, Rounds: 1},
			{Effect: model.EffectReduceStat, Target: model.TargetOpponent, Stat: "tech", Amount: 2, Rounds: 2, Message: "[Opponent] feels sluggish."},
		},
		Failure: datatypes.JSONSlice[model.MoveEffect]{
			{Effect: model.EffectIncreaseStat, Target: model.TargetSelf, Stat: "tech", Amount: 1, Rounds: 1},
		},
	}
	p := newPlayer("p1", "Neo", model.Stats{"tech": 10})
	m := newMob("m1", "Drone", model.Stats{"tech": 0, model.StatHitpoints: 5})

	r := NewResolver(NewEffectStore(), dice.NewScript(10, 1, 1, 1, 20))
	res, err := r.ResolveAttack(move, p, m)
	require.NoError(t, err)
	require.True(t, res.Success)
	assert.Equal(t, 1, res.StunRounds)
	require.Len(t, res.Effects, 1, "stun is not returned as an effect")
	assert.Equal(t, "Neo", res.Effects[0].Initiator)
	assert.Contains(t, res.Message, "Neo zaps Drone!")

	res, err = r.ResolveAttack(move, p, m) // 11 vs 20
	require.NoError(t, err)
	require.False(t, res.Success)
	require.Len(t, res.Effects, 1)
	assert.Equal(t, model.EffectIncreaseStat, res.Effects[0].Effect)
}

func TestResolveAttack_UsesActiveEffects(t *testing.T) {
	effects := NewEffectStore()
	p := newPlayer("p1", "Neo", model.Stats{"body": 5})
	m := newMob("m1", "Thug", model.Stats{"body": 5, model.StatHitpoints: 5})
	effects.Add("p1", ActiveEffect{Effect: model.EffectIncreaseStat, Stat: "body", Amount: 1, Rounds: 2})

	r := NewResolver(effects, dice.NewScript(10, 10, 1))
	res, err := r.ResolveAttack(model.Move{AttackStat: "body", DefenceStat: "body"}, p, m)
	require.NoError(t, err)
	assert.True(t, res.Success, "the +1 body effect breaks the tie")
	assert.Equal(t, 16, res.AttackerTotal)
}

func TestResolveAttack_RollErrorPropagates(t *testing.T) {
	boom := errors.New("no entropy")
	r := NewResolver(NewEffectStore(), dice.Failing(boom))
	p := newPlayer("p1", "Neo", model.Stats{"body": 5})
	m := newMob("m1", "Thug", model.Stats{model.StatHitpoints: 5})
	_, err := r.ResolveAttack(model.Move{Name: "jab", AttackStat: "body"}, p, m)
	assert.ErrorIs(t, err, boom)
}

func TestApplyEffect_Targets(t *testing.T) {
	effects := NewEffectStore()
	r := NewResolver(effects, dice.NewScript())
	p := newPlayer("p1", "Neo", nil)
	m := newMob("m1", "Thug", model.Stats{model.StatHitpoints: 1})

	id := r.ApplyEffect(ActiveEffect{Effect: model.EffectIncreaseStat, Stat: "body", Amount: 1, Rounds: 1, Target: model.TargetSelf, Initiator: "Neo"}, p, m)
	assert.Equal(t, "p1", id)
	id = r.ApplyEffect(ActiveEffect{Effect: model.EffectReduceStat, Stat: "body", Amount: 1, Rounds: 1, Target: model.TargetOpponent, Initiator: "Neo"}, p, m)
	assert.Equal(t, "m1", id)
	// initiator named by the other side flips the roles
	id = r.ApplyEffect(ActiveEffect{Effect: model.EffectIncreaseStat, Stat: "body", Amount: 1, Rounds: 1, Target: model.TargetSelf, Initiator: "Thug"}, p, m)
	assert.Equal(t, "m1", id)

	assert.Equal(t, "", r.ApplyEffect(ActiveEffect{Effect: model.EffectStun, Rounds: 1}, p, m))
	assert.Len(t, effects.Get("m1"), 2)
}

func TestRenderTemplate(t *testing.T) {
	assert.Equal(t, "Neo hits Thug. Thug reels from Neo's blow.",
		RenderTemplate("[name] hits [opponent]. [Opponent] reels from [Self]'s blow.", "Neo", "Thug"))
}
