// Package resource reads the authored game content (moves, classes, mobs,
// locations, actors, events and quests) from a directory of JSON files and
// seeds it into the database.
package resource

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/ryanroundhouse/punk-mud-sub000/game/eventtree"
	"github.com/ryanroundhouse/punk-mud-sub000/model"
	"github.com/ryanroundhouse/punk-mud-sub000/store"
	"go.uber.org/zap"
)

// Content file names inside the content directory. Missing files load as empty.
const (
	MovesFile     = "Moves.json"
	ClassesFile   = "Classes.json"
	MobsFile      = "Mobs.json"
	LocationsFile = "Locations.json"
	ActorsFile    = "Actors.json"
	EventsFile    = "Events.json"
	QuestsFile    = "Quests.json"
)

// ContentLoader reads and holds all content files.
type ContentLoader struct {
	DataPath  string
	Moves     []model.Move
	Classes   []model.Class
	Mobs      []model.MobTemplate
	Locations []model.Location
	Actors    []model.Actor
	Events    []model.Event
	Quests    []model.Quest
}

// NewLoader creates a ContentLoader for the given directory.
func NewLoader(dataPath string) *ContentLoader {
	return &ContentLoader{DataPath: dataPath}
}

// Load reads every content file and validates cross references.
func (cl *ContentLoader) Load() error {
	loaders := []func() error{
		func() (err error) { cl.Moves, err = loadJSONArray[model.Move](cl.path(MovesFile)); return },
		func() (err error) { cl.Classes, err = loadJSONArray[model.Class](cl.path(ClassesFile)); return },
		func() (err error) { cl.Mobs, err = loadJSONArray[model.MobTemplate](cl.path(MobsFile)); return },
		func() (err error) { cl.Locations, err = loadJSONArray[model.Location](cl.path(LocationsFile)); return },
		func() (err error) { cl.Actors, err = loadJSONArray[model.Actor](cl.path(ActorsFile)); return },
		func() (err error) { cl.Events, err = loadJSONArray[model.Event](cl.path(EventsFile)); return },
		func() (err error) { cl.Quests, err = loadJSONArray[model.Quest](cl.path(QuestsFile)); return },
	}
	for _, fn := range loaders {
		if err := fn(); err != nil {
			return err
		}
	}
	return cl.Validate()
}

func (cl *ContentLoader) path(file string) string {
	return filepath.Join(cl.DataPath, file)
}

func loadJSONArray[T any](path string) ([]T, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("resource: read %s: %w", path, err)
	}
	var arr []T
	if err := json.Unmarshal(data, &arr); err != nil {
		return nil, fmt.Errorf("resource: parse %s: %w", path, err)
	}
	return arr, nil
}

// Validate checks the loaded content for broken references and malformed
// trees. All problems are reported together.
func (cl *ContentLoader) Validate() error {
	var errs []error
	bad := func(format string, args ...interface{}) {
		errs = append(errs, fmt.Errorf(format, args...))
	}

	moves := make(map[string]bool, len(cl.Moves))
	for _, m := range cl.Moves {
		moves[m.ID] = true
		for _, e := range append(append([]model.MoveEffect{}, m.Success...), m.Failure...) {
			if err := e.Validate(); err != nil {
				bad("move %s: %w", m.ID, err)
			}
		}
	}
	for _, c := range cl.Classes {
		for _, cm := range c.Moves {
			if !moves[cm.MoveID] {
				bad("class %s: unknown move %s", c.ID, cm.MoveID)
			}
		}
	}
	mobs := make(map[string]bool, len(cl.Mobs))
	for _, m := range cl.Mobs {
		mobs[m.ID] = true
		for _, mm := range m.Moves {
			if !moves[mm.MoveID] {
				bad("mob %s: unknown move %s", m.ID, mm.MoveID)
			}
		}
	}
	locations := make(map[string]bool, len(cl.Locations))
	for _, l := range cl.Locations {
		locations[l.ID] = true
	}
	events := make(map[string]bool, len(cl.Events))
	for _, e := range cl.Events {
		events[e.ID] = true
		if _, err := eventtree.Parse(e.RootNode); err != nil {
			bad("event %s: %w", e.ID, err)
		}
	}
	for _, l := range cl.Locations {
		for _, ex := range l.Exits {
			if !locations[ex.Target] {
				bad("location %s: exit %s leads to unknown location %s", l.ID, ex.Direction, ex.Target)
			}
		}
		for _, id := range l.MobSpawns {
			if !mobs[id] {
				bad("location %s: unknown mob spawn %s", l.ID, id)
			}
		}
		if l.EventID != "" && !events[l.EventID] {
			bad("location %s: unknown event %s", l.ID, l.EventID)
		}
	}
	for _, a := range cl.Actors {
		if a.LocationID != "" && !locations[a.LocationID] {
			bad("actor %s: unknown location %s", a.ID, a.LocationID)
		}
	}
	for _, q := range cl.Quests {
		if q.StartEvent() == nil {
			bad("quest %s: no start event", q.ID)
		}
		for _, ev := range q.Events {
			for _, ch := range ev.Choices {
				if q.Event(ch.NextEventID) == nil {
					bad("quest %s: event %s leads to unknown event %s", q.ID, ev.ID, ch.NextEventID)
				}
			}
		}
	}
	return errors.Join(errs...)
}

// Seed upserts the loaded content into the stores.
func (cl *ContentLoader) Seed(ctx context.Context, st *store.Stores, logger *zap.Logger) error {
	steps := []struct {
		name string
		n    int
		fn   func() error
	}{
		{"moves", len(cl.Moves), func() error { return st.Moves.Upsert(ctx, cl.Moves...) }},
		{"classes", len(cl.Classes), func() error { return st.Classes.Upsert(ctx, cl.Classes...) }},
		{"mobs", len(cl.Mobs), func() error { return st.Mobs.Upsert(ctx, cl.Mobs...) }},
		{"locations", len(cl.Locations), func() error { return st.Locations.Upsert(ctx, cl.Locations...) }},
		{"actors", len(cl.Actors), func() error { return st.Actors.Upsert(ctx, cl.Actors...) }},
		{"events", len(cl.Events), func() error { return st.Events.Upsert(ctx, cl.Events...) }},
		{"quests", len(cl.Quests), func() error { return st.Quests.Upsert(ctx, cl.Quests...) }},
	}
	for _, s := range steps {
		if err := s.fn(); err != nil {
			return fmt.Errorf("resource: seed %s: %w", s.name, err)
		}
		logger.Info("content seeded", zap.String("kind", s.name), zap.Int("count", s.n))
	}
	return nil
}
