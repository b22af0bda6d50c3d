package character

import (
	"context"
	"fmt"

	"github.com/ryanroundhouse/punk-mud-sub000/model"
	"go.uber.org/zap"
)

// ExperienceForLevel is the cumulative experience needed to reach level.
func ExperienceForLevel(level int) int {
	if level <= 1 {
		return 0
	}
	return 100 * (level - 1) * level / 2
}

// Award describes the outcome of an experience grant.
type Award struct {
	Amount     int
	Experience int
	OldLevel   int
	NewLevel   int
	NewMoves   []string
}

// LeveledUp reports whether the award crossed a level threshold.
func (a Award) LeveledUp() bool { return a.NewLevel > a.OldLevel }

// Summary renders a short player-facing line.
func (a Award) Summary() string {
	msg := fmt.Sprintf("You gained %d experience.", a.Amount)
	if a.LeveledUp() {
		msg += fmt.Sprintf(" You reached level %d!", a.NewLevel)
	}
	return msg
}

// PlayerStore is the persistence the character service needs.
type PlayerStore interface {
	FindByID(ctx context.Context, id string) (*model.Character, error)
	Save(ctx context.Context, c *model.Character) error
}

// ClassStore resolves class definitions.
type ClassStore interface {
	FindByID(ctx context.Context, id string) (*model.Class, error)
}

// Service owns experience, levelling and class grants.
type Service struct {
	players PlayerStore
	classes ClassStore
	logger  *zap.Logger
}

// NewService creates a character Service.
func NewService(players PlayerStore, classes ClassStore, logger *zap.Logger) *Service {
	return &Service{players: players, classes: classes, logger: logger}
}

// ApplyExperience adds amount to c in memory and levels it up as far as the
// new total allows. class may be nil for classless characters.
func ApplyExperience(c *model.Character, class *model.Class, amount int) Award {
	a := Award{Amount: amount, OldLevel: c.Level()}
	if amount < 0 {
		amount = 0
	}
	c.Experience += amount
	level := a.OldLevel
	for c.Experience >= ExperienceForLevel(level+1) {
		level++
	}
	a.NewLevel = level
	a.Experience = c.Experience
	if level == a.OldLevel {
		return a
	}

	if class != nil {
		c.SetStats(DeriveStats(class, level, c.Stats.Data()))
		a.NewMoves = GrantMoves(c, ClassMovesFor(class, level))
	} else {
		c.SetStat(model.StatLevel, level)
	}
	Refill(c)
	return a
}

// AwardExperience loads the player, applies amount and saves.
func (svc *Service) AwardExperience(ctx context.Context, playerID string, amount int) (Award, error) {
	c, err := svc.players.FindByID(ctx, playerID)
	if err != nil {
		return Award{}, err
	}
	var class *model.Class
	if c.HasClass() {
		class, err = svc.classes.FindByID(ctx, c.ClassID)
		if err != nil {
			svc.logger.Warn("class lookup failed, levelling without class",
				zap.String("player_id", playerID),
				zap.String("class_id", c.ClassID),
				zap.Error(err))
			class = nil
		}
	}
	a := ApplyExperience(c, class, amount)
	if err := svc.players.Save(ctx, c); err != nil {
		return Award{}, err
	}
	if a.LeveledUp() {
		svc.logger.Info("player levelled up",
			zap.String("player_id", playerID),
			zap.Int("level", a.NewLevel))
	}
	return a, nil
}

// GrantClass resolves classID and applies it to c in memory.
func (svc *Service) GrantClass(ctx context.Context, c *model.Character, classID string) (*model.Class, error) {
	class, err := svc.classes.FindByID(ctx, classID)
	if err != nil {
		return nil, err
	}
	ApplyClass(c, class)
	return class, nil
}
