package model

import (
	"fmt"

	"gorm.io/datatypes"
)

// Effect kinds.
const (
	EffectStun         = "stun"
	EffectReduceStat   = "reduceStat"
	EffectIncreaseStat = "increaseStat"
)

// Effect targets.
const (
	TargetSelf     = "self"
	TargetOpponent = "opponent"
)

// Move defaults applied when a field is left unset.
const (
	DefaultBasePower     = 3
	DefaultScalingFactor = 0.6
	DefaultDamageDice    = 6
	DefaultDelay         = 1
)

// Move is a combat move definition.
type Move struct {
	ID             string                         `gorm:"primaryKey;size:36" json:"id"`
	Name           string                         `gorm:"uniqueIndex;size:64;not null" json:"name"`
	HelpText       string                         `gorm:"type:text" json:"help_text"`
	AttackStat     string                         `gorm:"size:32" json:"attack_stat"`
	DefenceStat    string                         `gorm:"size:32" json:"defence_stat"`
	Delay          int                            `json:"delay"` // 1..8
	BasePower      int                            `json:"base_power"`
	ScalingFactor  float64                        `json:"scaling_factor"`
	DamageDice     int                            `json:"damage_dice"`
	SuccessMessage string                         `gorm:"type:text" json:"success_message"`
	FailureMessage string                         `gorm:"type:text" json:"failure_message"`
	Success        datatypes.JSONSlice[MoveEffect] `json:"success"`
	Failure        datatypes.JSONSlice[MoveEffect] `json:"failure"`
}

// MoveEffect is one success/failure effect application entry.
type MoveEffect struct {
	Effect  string `json:"effect"` // stun | reduceStat | increaseStat
	Target  string `json:"target"` // self | opponent
	Stat    string `json:"stat,omitempty"`
	Amount  int    `json:"amount,omitempty"`
	Rounds  int    `json:"rounds"`
	Message string `json:"message,omitempty"`
}

// Validate checks that stat modifiers name a stat and an amount.
func (e MoveEffect) Validate() error {
	switch e.Effect {
	case EffectStun:
		return nil
	case EffectReduceStat, EffectIncreaseStat:
		if e.Stat == "" || e.Amount == 0 {
			return fmt.Errorf("move effect %s requires stat and amount", e.Effect)
		}
		return nil
	default:
		return fmt.Errorf("unknown move effect %q", e.Effect)
	}
}

// WithDefaults returns a copy of m with unset numeric fields defaulted.
func (m Move) WithDefaults() Move {
	if m.BasePower == 0 {
		m.BasePower = DefaultBasePower
	}
	if m.ScalingFactor == 0 {
		m.ScalingFactor = DefaultScalingFactor
	}
	if m.DamageDice == 0 {
		m.DamageDice = DefaultDamageDice
	}
	if m.Delay == 0 {
		m.Delay = DefaultDelay
	}
	return m
}
