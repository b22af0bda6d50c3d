package combat

import (
	"fmt"
	"math"
	"strings"

	"github.com/ryanroundhouse/punk-mud-sub000/game/dice"
	"github.com/ryanroundhouse/punk-mud-sub000/model"
)

// AttackResult is the outcome of one resolved move.
type AttackResult struct {
	Success       bool
	Damage        int
	AttackerRoll  int
	DefenderRoll  int
	AttackerTotal int
	DefenderTotal int
	DamageRoll    int
	Effects       []ActiveEffect // non-stun entries, initiator stamped
	StunRounds    int
	Message       string
}

// Resolver resolves single attacks. It reads active effects but never
// mutates combatants or the effect store.
type Resolver struct {
	effects *EffectStore
	roller  dice.Roller
}

// NewResolver creates a Resolver.
func NewResolver(effects *EffectStore, roller dice.Roller) *Resolver {
	return &Resolver{effects: effects, roller: roller}
}

// EffectiveStat is the base stat adjusted by active stat effects.
func (r *Resolver) EffectiveStat(c Combatant, stat string) int {
	if stat == "" {
		return 0
	}
	return c.Stat(stat) + r.effects.StatModifier(c.CombatantID(), stat)
}

// Damage computes the hit damage for a successful attack. It is never below 1.
func Damage(move model.Move, attackStat, weapon, diceRoll, armor, level int) int {
	move = move.WithDefaults()
	if level <= 0 {
		level = 1
	}
	raw := float64(move.BasePower) +
		float64(attackStat)*move.ScalingFactor +
		float64(weapon) +
		float64(diceRoll) -
		float64(armor)/2.0
	dmg := int(math.Floor(raw * (1 + float64(level)*0.1) * (float64(move.Delay) / 5.0)))
	if dmg < 1 {
		return 1
	}
	return dmg
}

// ResolveAttack rolls attacker against defender for move.
func (r *Resolver) ResolveAttack(move model.Move, attacker, defender Combatant) (AttackResult, error) {
	move = move.WithDefaults()
	var res AttackResult
	var err error
	if res.AttackerRoll, err = dice.D20(r.roller); err != nil {
		return res, fmt.Errorf("resolve %s: %w", move.Name, err)
	}
	if res.DefenderRoll, err = dice.D20(r.roller); err != nil {
		return res, fmt.Errorf("resolve %s: %w", move.Name, err)
	}
	atkStat := r.EffectiveStat(attacker, move.AttackStat)
	defStat := r.EffectiveStat(defender, move.DefenceStat)
	res.AttackerTotal = atkStat + res.AttackerRoll
	res.DefenderTotal = defStat + res.DefenderRoll
	res.Success = res.AttackerTotal > res.DefenderTotal

	applied := move.Failure
	tpl := move.FailureMessage
	if res.Success {
		applied = move.Success
		tpl = move.SuccessMessage
		if res.DamageRoll, err = r.roller.Roll(move.DamageDice); err != nil {
			return res, fmt.Errorf("resolve %s damage: %w", move.Name, err)
		}
		res.Damage = Damage(move, atkStat, attacker.WeaponBonus(), res.DamageRoll,
			defender.Stat(model.StatArmor), attacker.Stat(model.StatLevel))
	}

	for _, e := range applied {
		if e.Effect == model.EffectStun {
			continue
		}
		res.Effects = append(res.Effects, ActiveEffect{
			Effect:        e.Effect,
			Stat:          e.Stat,
			Amount:        e.Amount,
			Rounds:        e.Rounds,
			InitialRounds: e.Rounds,
			Target:        e.Target,
			Initiator:     attacker.DisplayName(),
			Message:       e.Message,
		})
	}
	res.StunRounds = StunRounds(applied)
	res.Message = r.describe(move, tpl, attacker, defender, atkStat, defStat, res)
	return res, nil
}

func (r *Resolver) describe(move model.Move, tpl string, attacker, defender Combatant, atkStat, defStat int, res AttackResult) string {
	if tpl == "" {
		if res.Success {
			tpl = "[name] uses " + move.Name + " on [opponent]!"
		} else {
			tpl = "[name] tries " + move.Name + " but [opponent] avoids it."
		}
	}
	var b strings.Builder
	b.WriteString(RenderTemplate(tpl, attacker.DisplayName(), defender.DisplayName()))
	fmt.Fprintf(&b, "\n%s rolled %d + %d = %d vs %s rolled %d + %d = %d",
		attacker.DisplayName(), res.AttackerRoll, atkStat, res.AttackerTotal,
		defender.DisplayName(), res.DefenderRoll, defStat, res.DefenderTotal)
	if res.Success {
		fmt.Fprintf(&b, "\nHit for %d damage!", res.Damage)
	} else {
		b.WriteString("\nMiss!")
	}
	if res.StunRounds > 0 {
		fmt.Fprintf(&b, "\n%s is stunned!", defender.DisplayName())
	}
	return b.String()
}

// RenderTemplate substitutes combat message placeholders.
func RenderTemplate(tpl, self, opponent string) string {
	return strings.NewReplacer(
		"[name]", self,
		"[Self]", self,
		"[opponent]", opponent,
		"[Opponent]", opponent,
	).Replace(tpl)
}

// ApplyEffect registers e on the combatant it targets and returns that
// combatant's id. Stun and empty effects are no-ops.
func (r *Resolver) ApplyEffect(e ActiveEffect, initiator, other Combatant) string {
	if e.Effect == "" || e.Effect == model.EffectStun {
		return ""
	}
	owner, opp := initiator, other
	if initiator.DisplayName() != e.Initiator && other.DisplayName() == e.Initiator {
		owner, opp = other, initiator
	}
	target := opp
	if e.Target == model.TargetSelf {
		target = owner
	}
	r.effects.Add(target.CombatantID(), e)
	return target.CombatantID()
}
