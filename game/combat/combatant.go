// Package combat implements delay-based two-party combat between a player
// and a mob encounter.
package combat

import (
	"strings"
	"sync"

	"github.com/ryanroundhouse/punk-mud-sub000/model"
)

// Combatant is the stat surface shared by players and mobs.
type Combatant interface {
	CombatantID() string
	DisplayName() string
	Stat(name string) int
	WeaponBonus() int
}

var _ Combatant = (*model.Character)(nil)

// MobMove is a resolved entry of a mob's weighted move list.
type MobMove struct {
	Move        model.Move
	UsageChance int
}

// MobInstance is an ephemeral mob scoped to one encounter.
type MobInstance struct {
	InstanceID       string
	TemplateID       string
	Name             string
	Description      string
	ExperiencePoints int
	Moves            []MobMove

	mu    sync.Mutex
	stats model.Stats
}

func (m *MobInstance) CombatantID() string { return m.InstanceID }
func (m *MobInstance) DisplayName() string { return m.Name }
func (m *MobInstance) WeaponBonus() int    { return 0 }

func (m *MobInstance) Stat(name string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stats[name]
}

// SetStat writes one stat on the instance only.
func (m *MobInstance) SetStat(name string, v int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.stats == nil {
		m.stats = model.Stats{}
	}
	m.stats[name] = v
}

// Alive reports whether the mob still has hitpoints.
func (m *MobInstance) Alive() bool {
	return m.Stat(model.StatCurrentHitpoints) > 0
}

// Matches reports whether name refers to this mob (case-insensitive prefix).
func (m *MobInstance) Matches(name string) bool {
	name = strings.TrimSpace(strings.ToLower(name))
	return name == "" || strings.HasPrefix(strings.ToLower(m.Name), name)
}

// NewMobInstance builds an instance with a private copy of stats. Current
// hitpoints default to max hitpoints.
func NewMobInstance(instanceID string, tpl *model.MobTemplate, moves []MobMove) *MobInstance {
	stats := tpl.Stats.Data().Clone()
	if stats[model.StatCurrentHitpoints] <= 0 {
		stats[model.StatCurrentHitpoints] = stats[model.StatHitpoints]
	}
	if stats[model.StatCurrentHitpoints] <= 0 {
		stats[model.StatCurrentHitpoints] = 1
	}
	return &MobInstance{
		InstanceID:       instanceID,
		TemplateID:       tpl.ID,
		Name:             tpl.Name,
		Description:      tpl.Description,
		ExperiencePoints: tpl.ExperiencePoints,
		Moves:            moves,
		stats:            stats,
	}
}
