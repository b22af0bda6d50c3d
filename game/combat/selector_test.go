package combat

import (
	"errors"
	"testing"

	"github.com/ryanroundhouse/punk-mud-sub000/game/dice"
	"github.com/ryanroundhouse/punk-mud-sub000/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func weightedMob(weights ...int) *MobInstance {
	names := []string{"a", "b", "c", "d"}
	moves := make([]MobMove, len(weights))
	for i, w := range weights {
		moves[i] = MobMove{Move: model.Move{Name: names[i]}, UsageChance: w}
	}
	return newMob("m", "Mob", model.Stats{model.StatHitpoints: 1}, moves...)
}

func TestSelectMobMove_WeightBuckets(t *testing.T) {
	mob := weightedMob(30, 50, 20)
	cases := []struct {
		draw int
		want string
	}{
		{1, "a"},
		{29, "a"},
		{30, "a"}, // exactly spent on the first bucket
		{31, "b"},
		{80, "b"},
		{81, "c"},
		{100, "c"},
	}
	for _, tc := range cases {
		move, ok, err := SelectMobMove(mob, dice.NewScript(tc.draw))
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, tc.want, move.Name, "draw %d", tc.draw)
	}
}

func TestSelectMobMove_ZeroWeightsPickFirst(t *testing.T) {
	mob := weightedMob(0, 0, 0)
	s := dice.NewScript(50)
	move, ok, err := SelectMobMove(mob, s)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "a", move.Name)
	assert.Equal(t, 1, s.Remaining())
}

func TestSelectMobMove_SingleWeightedMoveSkipsRoll(t *testing.T) {
	s := dice.NewScript(7)
	move, ok, err := SelectMobMove(weightedMob(0, 40), s)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "b", move.Name)
	assert.Equal(t, 1, s.Remaining())
}

func TestSelectMobMove_DefaultsDelay(t *testing.T) {
	move, ok, err := SelectMobMove(weightedMob(10), dice.NewScript())
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 1, move.Delay)

	_, ok, err = SelectMobMove(weightedMob(), dice.NewScript())
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestSelectMobMove_RollError(t *testing.T) {
	boom := errors.New("no entropy")
	_, ok, err := SelectMobMove(weightedMob(10, 20), dice.Failing(boom))
	assert.ErrorIs(t, err, boom)
	assert.False(t, ok)
}
