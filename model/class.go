package model

import "gorm.io/datatypes"

// Class is a player class definition.
type Class struct {
	ID                string                        `gorm:"primaryKey;size:36" json:"id"`
	Name              string                        `gorm:"uniqueIndex;size:32;not null" json:"name"`
	Description       string                        `gorm:"type:text" json:"description"`
	PrimaryStat       string                        `gorm:"size:32" json:"primary_stat"`
	SecondaryStat     string                        `gorm:"size:32" json:"secondary_stat"`
	BaseHitpoints     int                           `json:"base_hitpoints"`
	HitpointsPerLevel int                           `json:"hitpoints_per_level"`
	Moves             datatypes.JSONSlice[ClassMove] `json:"moves"`
}

// ClassMove unlocks MoveID at Level.
type ClassMove struct {
	Level  int    `json:"level"`
	MoveID string `json:"moveId"`
}
