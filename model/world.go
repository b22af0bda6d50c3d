package model

import "gorm.io/datatypes"

// Location is a room of the game world.
type Location struct {
	ID          string                      `gorm:"primaryKey;size:36" json:"id"`
	Name        string                      `gorm:"size:64;not null" json:"name"`
	Description string                      `gorm:"type:text" json:"description"`
	Exits       datatypes.JSONSlice[Exit]   `json:"exits"`
	MobSpawns   datatypes.JSONSlice[string] `json:"mob_spawns"` // mob template ids
	EventID     string                      `gorm:"size:36" json:"event_id"` // story event fired on entry
}

// Exit links a location to another one.
type Exit struct {
	Direction string `json:"direction"`
	Target    string `json:"target"`
}

// Actor is a non-combat character players can talk to.
type Actor struct {
	ID           string                      `gorm:"primaryKey;size:36" json:"id"`
	Name         string                      `gorm:"size:64;not null" json:"name"`
	Description  string                      `gorm:"type:text" json:"description"`
	LocationID   string                      `gorm:"index:idx_actor_location;size:36" json:"location_id"`
	ChatMessages datatypes.JSONSlice[string] `json:"chat_messages"`
}

// MobTemplate is the blueprint for an ephemeral mob instance.
type MobTemplate struct {
	ID               string                      `gorm:"primaryKey;size:36" json:"id"`
	Name             string                      `gorm:"size:64;not null" json:"name"`
	Description      string                      `gorm:"type:text" json:"description"`
	Stats            datatypes.JSONType[Stats]   `json:"stats"`
	ExperiencePoints int                         `json:"experience_points"`
	Moves            datatypes.JSONSlice[MobMove] `json:"moves"`
}

// MobMove is a weighted entry of a mob's move list.
type MobMove struct {
	MoveID      string `json:"moveId"`
	UsageChance int    `json:"usageChance"`
}

// Event is an authored conversation or story event. RootNode holds the
// recursive node tree as JSON.
type Event struct {
	ID           string         `gorm:"primaryKey;size:36" json:"id"`
	Title        string         `gorm:"size:128" json:"title"`
	ActorID      string         `gorm:"index:idx_event_actor;size:36" json:"actor_id"`
	LocationID   string         `gorm:"size:36" json:"location_id"`
	IsStoryEvent bool           `gorm:"default:false" json:"is_story_event"`
	RootNode     datatypes.JSON `json:"root_node"`
}
