package combat

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/ryanroundhouse/punk-mud-sub000/model"
	"go.uber.org/zap"
)

// MobRegistry holds the current mob encounter of each player.
type MobRegistry struct {
	mu   sync.Mutex
	mobs map[string]*MobInstance // playerID → mob
}

// NewMobRegistry creates an empty MobRegistry.
func NewMobRegistry() *MobRegistry {
	return &MobRegistry{mobs: make(map[string]*MobInstance)}
}

func (r *MobRegistry) Set(playerID string, m *MobInstance) {
	r.mu.Lock()
	r.mobs[playerID] = m
	r.mu.Unlock()
}

func (r *MobRegistry) Get(playerID string) *MobInstance {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.mobs[playerID]
}

func (r *MobRegistry) Clear(playerID string) {
	r.mu.Lock()
	delete(r.mobs, playerID)
	r.mu.Unlock()
}

// MobTemplateStore resolves mob templates.
type MobTemplateStore interface {
	FindByID(ctx context.Context, id string) (*model.MobTemplate, error)
}

// MoveStore resolves moves.
type MoveStore interface {
	FindByID(ctx context.Context, id string) (*model.Move, error)
	FindByName(ctx context.Context, name string) (*model.Move, error)
}

// MobFactory instantiates ephemeral mobs from templates.
type MobFactory struct {
	templates MobTemplateStore
	moves     MoveStore
	logger    *zap.Logger
}

// NewMobFactory creates a MobFactory.
func NewMobFactory(templates MobTemplateStore, moves MoveStore, logger *zap.Logger) *MobFactory {
	return &MobFactory{templates: templates, moves: moves, logger: logger}
}

// Instantiate builds a fresh instance of templateID. Template moves that
// cannot be resolved are skipped.
func (f *MobFactory) Instantiate(ctx context.Context, templateID string) (*MobInstance, error) {
	tpl, err := f.templates.FindByID(ctx, templateID)
	if err != nil {
		return nil, fmt.Errorf("instantiate mob: %w", err)
	}
	moves := make([]MobMove, 0, len(tpl.Moves))
	for _, mm := range tpl.Moves {
		mv, err := f.moves.FindByID(ctx, mm.MoveID)
		if err != nil {
			f.logger.Warn("mob move missing",
				zap.String("mob_id", tpl.ID),
				zap.String("move_id", mm.MoveID),
				zap.Error(err))
			continue
		}
		moves = append(moves, MobMove{Move: *mv, UsageChance: mm.UsageChance})
	}
	return NewMobInstance(uuid.NewString(), tpl, moves), nil
}
