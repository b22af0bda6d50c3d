package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/ryanroundhouse/punk-mud-sub000/model"
	"gorm.io/gorm"
)

// PlayerStore persists characters together with their quest records.
type PlayerStore struct {
	db *gorm.DB
}

// NewPlayerStore creates a PlayerStore.
func NewPlayerStore(db *gorm.DB) *PlayerStore {
	return &PlayerStore{db: db}
}

// FindByID loads a character and its quest records.
func (s *PlayerStore) FindByID(ctx context.Context, id string) (*model.Character, error) {
	var c model.Character
	err := s.db.WithContext(ctx).Preload("Quests").First(&c, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("player %q: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("player %q: %w", id, err)
	}
	return &c, nil
}

// FindByName loads a character by avatar name.
func (s *PlayerStore) FindByName(ctx context.Context, name string) (*model.Character, error) {
	var c model.Character
	err := s.db.WithContext(ctx).Preload("Quests").First(&c, "avatar_name = ?", name).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("player %q: %w", name, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("player %q: %w", name, err)
	}
	return &c, nil
}

// Create inserts a new character.
func (s *PlayerStore) Create(ctx context.Context, c *model.Character) error {
	if err := s.db.WithContext(ctx).Create(c).Error; err != nil {
		return fmt.Errorf("create player: %w", err)
	}
	return nil
}

// Save writes the full character row and every quest record.
func (s *PlayerStore) Save(ctx context.Context, c *model.Character) error {
	err := s.db.WithContext(ctx).
		Session(&gorm.Session{FullSaveAssociations: true}).
		Save(c).Error
	if err != nil {
		return fmt.Errorf("save player %q: %w", c.ID, err)
	}
	return nil
}

// UpdateFields writes a partial set of columns on the character row.
func (s *PlayerStore) UpdateFields(ctx context.Context, id string, fields map[string]interface{}) error {
	res := s.db.WithContext(ctx).Model(&model.Character{}).Where("id = ?", id).Updates(fields)
	if res.Error != nil {
		return fmt.Errorf("update player %q: %w", id, res.Error)
	}
	return nil
}
