package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Stat names used in Stats blocks.
const (
	StatBody             = "body"
	StatReflexes         = "reflexes"
	StatAgility          = "agility"
	StatTech             = "tech"
	StatLuck             = "luck"
	StatCharisma         = "charisma"
	StatLevel            = "level"
	StatHitpoints        = "hitpoints"
	StatCurrentHitpoints = "currentHitpoints"
	StatEnergy           = "energy"
	StatCurrentEnergy    = "currentEnergy"
	StatArmor            = "armor"
)

// Attributes lists the six primary attributes in display order.
var Attributes = []string{StatBody, StatReflexes, StatAgility, StatTech, StatLuck, StatCharisma}

// Stats is a named attribute block. Missing entries read as 0.
type Stats map[string]int

// Clone returns an independent copy of s.
func (s Stats) Clone() Stats {
	out := make(Stats, len(s))
	for k, v := range s {
		out[k] = v
	}
	return out
}

// Character is a player's durable record.
type Character struct {
	ID           string                     `gorm:"primaryKey;size:36" json:"id"`
	AvatarName   string                     `gorm:"uniqueIndex;size:32;not null" json:"avatar_name"`
	ClassID      string                     `gorm:"size:36" json:"class_id"`
	ClassName    string                     `gorm:"size:32" json:"class_name"`
	LocationID   string                     `gorm:"index:idx_char_location;size:36" json:"location_id"`
	Experience   int                        `gorm:"default:0" json:"experience"`
	Stats        datatypes.JSONType[Stats]  `json:"stats"`
	WeaponDamage int                        `gorm:"default:0" json:"weapon_damage"`
	Moves        datatypes.JSONSlice[string] `json:"moves"`
	Quests       []UserQuest                `gorm:"foreignKey:CharID" json:"quests"`
	CreatedAt    time.Time                  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt    time.Time                  `gorm:"autoUpdateTime" json:"updated_at"`
}

// BeforeCreate assigns a UUID when the caller did not supply an ID.
func (c *Character) BeforeCreate(_ *gorm.DB) error {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	return nil
}

// Stat returns the named stat, 0 when absent.
func (c *Character) Stat(name string) int {
	return c.Stats.Data()[name]
}

// SetStat writes one stat.
func (c *Character) SetStat(name string, v int) {
	s := c.Stats.Data().Clone()
	s[name] = v
	c.Stats = datatypes.NewJSONType(s)
}

// SetStats replaces the whole stat block.
func (c *Character) SetStats(s Stats) {
	c.Stats = datatypes.NewJSONType(s.Clone())
}

// Level defaults to 1 when unset.
func (c *Character) Level() int {
	if l := c.Stat(StatLevel); l > 0 {
		return l
	}
	return 1
}

// ---- combat surface ----

func (c *Character) CombatantID() string { return c.ID }
func (c *Character) DisplayName() string { return c.AvatarName }
func (c *Character) WeaponBonus() int    { return c.WeaponDamage }
func (c *Character) IsPlayer() bool      { return true }

// ---- quest / class surface used by choice gating ----

// HasClass reports whether the character has been granted a class.
func (c *Character) HasClass() bool { return c.ClassID != "" }

// Class returns the class display name ("" when classless).
func (c *Character) Class() string { return c.ClassName }

// HasQuest reports whether the character holds questID, active or completed.
func (c *Character) HasQuest(questID string) bool {
	return c.QuestRecord(questID) != nil
}

// HasActiveQuest reports whether the character holds questID and has not finished it.
func (c *Character) HasActiveQuest(questID string) bool {
	for i := range c.Quests {
		if c.Quests[i].QuestID == questID && !c.Quests[i].Completed {
			return true
		}
	}
	return false
}

// QuestRecord returns the record for questID or nil.
func (c *Character) QuestRecord(questID string) *UserQuest {
	for i := range c.Quests {
		if c.Quests[i].QuestID == questID {
			return &c.Quests[i]
		}
	}
	return nil
}

// QuestEventIDs returns every completed and current quest event id across all records.
func (c *Character) QuestEventIDs() map[string]struct{} {
	ids := make(map[string]struct{})
	for _, q := range c.Quests {
		for _, id := range q.CompletedEventIDs {
			ids[id] = struct{}{}
		}
		if q.CurrentEventID != "" {
			ids[q.CurrentEventID] = struct{}{}
		}
	}
	return ids
}

// KnowsMove reports whether moveID is in the character's move list.
func (c *Character) KnowsMove(moveID string) bool {
	for _, m := range c.Moves {
		if m == moveID {
			return true
		}
	}
	return false
}
