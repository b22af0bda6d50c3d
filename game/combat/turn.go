package combat

import (
	"context"
	"fmt"
	"strings"

	"github.com/ryanroundhouse/punk-mud-sub000/audit"
	"github.com/ryanroundhouse/punk-mud-sub000/game/player"
	"github.com/ryanroundhouse/punk-mud-sub000/model"
	"go.uber.org/zap"
)

// maxTicks bounds one scheduler run.
const maxTicks = 64

type statSetter interface {
	SetStat(name string, v int)
}

func alive(c Combatant) bool {
	return c.Stat(model.StatCurrentHitpoints) > 0
}

func (svc *Service) queueMobMove(mob *MobInstance, playerID string) error {
	if !mob.Alive() {
		return nil
	}
	move, ok, err := SelectMobMove(mob, svc.roller)
	if err != nil {
		return fmt.Errorf("select %s move: %w", mob.Name, err)
	}
	if ok {
		svc.delays.Queue(mob.InstanceID, move, playerID)
	}
	return nil
}

// processUntilInput advances both queued moves by the smaller remaining
// delay each tick and executes whichever is due, player first. It returns
// when the fight ends or the player has nothing queued.
func (svc *Service) processUntilInput(ctx context.Context, p *model.Character, mob *MobInstance) error {
	pid, mid := p.ID, mob.InstanceID
	for tick := 0; tick < maxTicks; tick++ {
		pe, ok := svc.delays.Get(pid)
		if !ok {
			svc.promptForMove(ctx, p)
			return nil
		}
		if _, queued := svc.delays.Get(mid); !queued {
			if err := svc.queueMobMove(mob, pid); err != nil {
				return err
			}
		}
		me, mobQueued := svc.delays.Get(mid)

		step := pe.Delay
		if mobQueued && me.Delay < step {
			step = me.Delay
		}
		svc.delays.Advance(step, pid, mid)

		playerReady := svc.delays.Ready(pid)
		mobReady := mobQueued && svc.delays.Ready(mid)
		if !playerReady && !mobReady {
			svc.sendPreparing(p, mob)
			return nil
		}

		if playerReady {
			entry, _ := svc.delays.Take(pid)
			if err := svc.execute(entry.Move, p, mob); err != nil {
				return err
			}
		}
		// re-check: the player's move may have stunned the mob back
		if alive(p) && mob.Alive() && svc.delays.Ready(mid) {
			entry, _ := svc.delays.Take(mid)
			if err := svc.execute(entry.Move, mob, p); err != nil {
				return err
			}
		}
		if mob.Alive() {
			if _, queued := svc.delays.Get(mid); !queued {
				if err := svc.queueMobMove(mob, pid); err != nil {
					return err
				}
			}
		}

		for _, e := range svc.effects.Tick(pid, mid) {
			if e.Stat != "" {
				svc.combatMsg(pid, fmt.Sprintf("The %s effect from %s wears off.", e.Stat, e.Initiator))
			}
		}
		svc.persistStats(ctx, p)
		svc.sendStatus(p)

		switch {
		case !mob.Alive():
			return svc.victory(ctx, p, mob)
		case !alive(p):
			return svc.defeat(ctx, p, mob)
		}
	}
	svc.logger.Warn("combat tick limit reached", zap.String("player_id", pid))
	return nil
}

// execute resolves one move and applies its damage, effects and stun.
func (svc *Service) execute(move model.Move, attacker, defender Combatant) error {
	res, err := svc.resolver.ResolveAttack(move, attacker, defender)
	if err != nil {
		return err
	}
	if res.Success {
		if s, ok := defender.(statSetter); ok {
			hp := defender.Stat(model.StatCurrentHitpoints) - res.Damage
			if hp < 0 {
				hp = 0
			}
			s.SetStat(model.StatCurrentHitpoints, hp)
		}
	}
	lines := []string{res.Message}
	for _, e := range res.Effects {
		svc.resolver.ApplyEffect(e, attacker, defender)
		if e.Message != "" {
			lines = append(lines, RenderTemplate(e.Message, attacker.DisplayName(), defender.DisplayName()))
		}
	}
	if res.StunRounds > 0 {
		svc.delays.AddStun(defender.CombatantID(), 2*res.StunRounds)
	}

	playerID := attacker.CombatantID()
	if _, isMob := attacker.(*MobInstance); isMob {
		playerID = defender.CombatantID()
	}
	svc.combatMsg(playerID, strings.Join(lines, "\n"))
	return nil
}

func (svc *Service) victory(ctx context.Context, p *model.Character, mob *MobInstance) error {
	svc.endCombat(p.ID, mob.InstanceID)
	svc.combatMsg(p.ID, fmt.Sprintf("You have defeated %s!", mob.Name))
	svc.audit.Log(audit.AuditEntry{
		PlayerID: p.ID,
		Action:   audit.ActionCombatVictory,
		Detail:   map[string]interface{}{"mob": mob.Name, "template_id": mob.TemplateID, "xp": mob.ExperiencePoints},
	})
	if svc.kills != nil {
		svc.kills.OnMobKilled(ctx, p.ID, mob)
	}
	return nil
}

func (svc *Service) defeat(ctx context.Context, p *model.Character, mob *MobInstance) error {
	svc.endCombat(p.ID, mob.InstanceID)
	p.SetStat(model.StatCurrentHitpoints, p.Stat(model.StatHitpoints))
	svc.persistStats(ctx, p)
	svc.combatMsg(p.ID, fmt.Sprintf("You have been defeated by %s. You wake up, bruised but alive.", mob.Name))
	svc.sendStatus(p)
	svc.audit.Log(audit.AuditEntry{
		PlayerID: p.ID,
		Action:   audit.ActionCombatDefeat,
		Detail:   map[string]string{"mob": mob.Name, "template_id": mob.TemplateID},
	})
	if svc.opts.StartLocationID != "" && p.LocationID != svc.opts.StartLocationID {
		return svc.relocate(ctx, p, svc.opts.StartLocationID)
	}
	return nil
}

func (svc *Service) persistStats(ctx context.Context, p *model.Character) {
	if err := svc.players.UpdateFields(ctx, p.ID, map[string]interface{}{"stats": p.Stats}); err != nil {
		svc.logger.Error("persist combat stats failed",
			zap.String("player_id", p.ID), zap.Error(err))
	}
}

func (svc *Service) sendStatus(p *model.Character) {
	svc.msg.SendToPlayer(p.ID, player.ChannelPlayerStatus, player.StatusPayload{
		CurrentHitpoints: p.Stat(model.StatCurrentHitpoints),
		Hitpoints:        p.Stat(model.StatHitpoints),
		CurrentEnergy:    p.Stat(model.StatCurrentEnergy),
		Energy:           p.Stat(model.StatEnergy),
		Level:            p.Level(),
		Experience:       p.Experience,
	})
}

func describeDelay(e DelayEntry) string {
	s := fmt.Sprintf("%s (%d)", e.Move.Name, e.Delay)
	if e.Stunned && e.Delay > e.Nominal {
		s += " stunned!"
	}
	return s
}

func (svc *Service) sendPreparing(p *model.Character, mob *MobInstance) {
	parts := []string{}
	if e, ok := svc.delays.Get(p.ID); ok {
		parts = append(parts, "You are preparing "+describeDelay(e))
	}
	if e, ok := svc.delays.Get(mob.InstanceID); ok {
		parts = append(parts, mob.Name+" is preparing "+describeDelay(e))
	}
	svc.combatMsg(p.ID, strings.Join(parts, "\n"))
}

func (svc *Service) promptForMove(ctx context.Context, p *model.Character) {
	names := make([]string, 0, len(p.Moves))
	for _, id := range p.Moves {
		m, err := svc.moves.FindByID(ctx, id)
		if err != nil {
			continue
		}
		names = append(names, m.Name)
	}
	msg := "Choose your next move"
	if len(names) > 0 {
		msg += ": " + strings.Join(names, ", ")
	}
	svc.combatMsg(p.ID, msg+" (or flee)")
}
