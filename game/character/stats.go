package character

import (
	"github.com/ryanroundhouse/punk-mud-sub000/model"
)

const (
	baseAttribute    = 10
	defaultHitpoints = 20
	defaultEnergy    = 10
)

// DefaultStats is the stat block of a freshly created, classless character.
func DefaultStats() model.Stats {
	s := model.Stats{
		model.StatLevel:            1,
		model.StatHitpoints:        defaultHitpoints,
		model.StatCurrentHitpoints: defaultHitpoints,
		model.StatEnergy:           defaultEnergy,
		model.StatCurrentEnergy:    defaultEnergy,
		model.StatArmor:            0,
	}
	for _, a := range model.Attributes {
		s[a] = baseAttribute
	}
	return s
}

// New builds an unsaved character at the given location.
func New(avatarName, locationID string) *model.Character {
	c := &model.Character{AvatarName: avatarName, LocationID: locationID}
	c.SetStats(DefaultStats())
	return c
}

// DeriveStats recomputes a class member's stat block for level. Every
// attribute gets base 10 + 1 per level; the primary stat gains a further 2
// per level and the secondary 1, so they grow at 3x and 2x. Hitpoints are
// reset to the class maximum. Energy and armor are carried over from current.
func DeriveStats(class *model.Class, level int, current model.Stats) model.Stats {
	if level < 1 {
		level = 1
	}
	out := current.Clone()
	for _, a := range model.Attributes {
		out[a] = baseAttribute + level
	}
	if class.PrimaryStat != "" {
		out[class.PrimaryStat] += 2 * level
	}
	if class.SecondaryStat != "" {
		out[class.SecondaryStat] += level
	}
	hp := class.BaseHitpoints + class.HitpointsPerLevel*level
	if hp <= 0 {
		hp = defaultHitpoints
	}
	out[model.StatLevel] = level
	out[model.StatHitpoints] = hp
	out[model.StatCurrentHitpoints] = hp
	if out[model.StatEnergy] <= 0 {
		out[model.StatEnergy] = defaultEnergy
		out[model.StatCurrentEnergy] = defaultEnergy
	}
	return out
}

// ClassMovesFor returns the class move ids unlocked at level, in class order.
func ClassMovesFor(class *model.Class, level int) []string {
	var out []string
	for _, m := range class.Moves {
		if m.Level <= level {
			out = append(out, m.MoveID)
		}
	}
	return out
}

// GrantMoves appends moves the character does not yet know and returns the
// newly added ids.
func GrantMoves(c *model.Character, moveIDs []string) []string {
	var added []string
	for _, id := range moveIDs {
		if !c.KnowsMove(id) {
			c.Moves = append(c.Moves, id)
			added = append(added, id)
		}
	}
	return added
}

// ApplyClass grants class to c in memory: class fields, derived stats and
// level-gated moves.
func ApplyClass(c *model.Character, class *model.Class) {
	c.ClassID = class.ID
	c.ClassName = class.Name
	c.SetStats(DeriveStats(class, c.Level(), c.Stats.Data()))
	GrantMoves(c, ClassMovesFor(class, c.Level()))
}

// Refill restores hitpoints and energy to their maximums.
func Refill(c *model.Character) {
	s := c.Stats.Data().Clone()
	s[model.StatCurrentHitpoints] = s[model.StatHitpoints]
	s[model.StatCurrentEnergy] = s[model.StatEnergy]
	c.SetStats(s)
}
