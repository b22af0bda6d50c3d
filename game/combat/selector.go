package combat

import (
	"github.com/ryanroundhouse/punk-mud-sub000/game/dice"
	"github.com/ryanroundhouse/punk-mud-sub000/model"
)

// SelectMobMove picks a move by usage-chance weight. The draw is a roll in
// [1, total]; chances are subtracted in list order until the draw is spent.
// A single weighted move is chosen without rolling. All-zero weights fall
// back to the first move. ok is false when the mob has no moves at all.
func SelectMobMove(mob *MobInstance, roller dice.Roller) (move model.Move, ok bool, err error) {
	if len(mob.Moves) == 0 {
		return model.Move{}, false, nil
	}
	total, weighted := 0, 0
	pick := mob.Moves[0].Move
	for _, m := range mob.Moves {
		if m.UsageChance > 0 {
			total += m.UsageChance
			weighted++
			if weighted == 1 {
				pick = m.Move
			}
		}
	}
	if weighted > 1 {
		draw, err := roller.Roll(total)
		if err != nil {
			return model.Move{}, false, err
		}
		for _, m := range mob.Moves {
			if m.UsageChance <= 0 {
				continue
			}
			draw -= m.UsageChance
			if draw <= 0 {
				pick = m.Move
				break
			}
		}
	}
	return pick.WithDefaults(), true, nil
}
