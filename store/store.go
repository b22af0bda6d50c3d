// Package store holds the gorm-backed persistence collaborators used by the
// game services.
package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/ryanroundhouse/punk-mud-sub000/model"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ErrNotFound is returned when a record does not exist.
var ErrNotFound = errors.New("store: not found")

// Catalog is a read-mostly table of authored content addressed by string id.
type Catalog[T any] struct {
	db   *gorm.DB
	name string
}

func newCatalog[T any](db *gorm.DB, name string) *Catalog[T] {
	return &Catalog[T]{db: db, name: name}
}

// FindByID loads one record.
func (c *Catalog[T]) FindByID(ctx context.Context, id string) (*T, error) {
	var v T
	err := c.db.WithContext(ctx).First(&v, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%s %q: %w", c.name, id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("%s %q: %w", c.name, id, err)
	}
	return &v, nil
}

// FindAll loads every record ordered by id.
func (c *Catalog[T]) FindAll(ctx context.Context) ([]T, error) {
	var out []T
	if err := c.db.WithContext(ctx).Order("id").Find(&out).Error; err != nil {
		return nil, fmt.Errorf("%s list: %w", c.name, err)
	}
	return out, nil
}

// Upsert inserts or fully replaces records by primary key.
func (c *Catalog[T]) Upsert(ctx context.Context, records ...T) error {
	if len(records) == 0 {
		return nil
	}
	err := c.db.WithContext(ctx).
		Clauses(clause.OnConflict{UpdateAll: true}).
		Create(&records).Error
	if err != nil {
		return fmt.Errorf("%s upsert: %w", c.name, err)
	}
	return nil
}

// MoveStore adds name lookup to the move catalog.
type MoveStore struct {
	*Catalog[model.Move]
}

// FindByName looks a move up by its display name, case-insensitively.
func (s *MoveStore) FindByName(ctx context.Context, name string) (*model.Move, error) {
	var m model.Move
	err := s.db.WithContext(ctx).First(&m, "LOWER(name) = LOWER(?)", name).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("move %q: %w", name, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("move %q: %w", name, err)
	}
	return &m, nil
}

// ActorStore adds location lookup to the actor catalog.
type ActorStore struct {
	*Catalog[model.Actor]
}

// FindByLocation returns the actors standing in a location.
func (s *ActorStore) FindByLocation(ctx context.Context, locationID string) ([]model.Actor, error) {
	var out []model.Actor
	err := s.db.WithContext(ctx).Where("location_id = ?", locationID).Order("name").Find(&out).Error
	if err != nil {
		return nil, fmt.Errorf("actors at %q: %w", locationID, err)
	}
	return out, nil
}

// EventStore adds actor lookup to the event catalog.
type EventStore struct {
	*Catalog[model.Event]
}

// FindConversation returns the non-story event bound to an actor.
func (s *EventStore) FindConversation(ctx context.Context, actorID string) (*model.Event, error) {
	var e model.Event
	err := s.db.WithContext(ctx).
		Where("actor_id = ? AND is_story_event = ?", actorID, false).
		First(&e).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("conversation for actor %q: %w", actorID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("conversation for actor %q: %w", actorID, err)
	}
	return &e, nil
}

// Stores bundles every store over one database handle.
type Stores struct {
	Players   *PlayerStore
	Quests    *Catalog[model.Quest]
	Classes   *Catalog[model.Class]
	Moves     *MoveStore
	Events    *EventStore
	Mobs      *Catalog[model.MobTemplate]
	Actors    *ActorStore
	Locations *Catalog[model.Location]
}

// New builds all stores over db.
func New(db *gorm.DB) *Stores {
	return &Stores{
		Players:   NewPlayerStore(db),
		Quests:    newCatalog[model.Quest](db, "quest"),
		Classes:   newCatalog[model.Class](db, "class"),
		Moves:     &MoveStore{newCatalog[model.Move](db, "move")},
		Events:    &EventStore{newCatalog[model.Event](db, "event")},
		Mobs:      newCatalog[model.MobTemplate](db, "mob"),
		Actors:    &ActorStore{newCatalog[model.Actor](db, "actor")},
		Locations: newCatalog[model.Location](db, "location"),
	}
}
